package replay

import (
	"fmt"
	"sync"
	"time"

	"github.com/coder/quartz"

	"github.com/cardroomlabs/cardroom/internal/engine"
	"github.com/cardroomlabs/cardroom/internal/protocol"
)

// Speed and tick bounds.
const (
	MinSpeed = 0.25
	MaxSpeed = 10.0
	minTick  = 50 * time.Millisecond
)

// Sender delivers a replayState message to one spectator.
type Sender func(spectatorID string, payload protocol.ReplayStatePayload)

type viewer struct {
	position  int
	speed     float64
	isPlaying bool
	timer     *quartz.Timer

	showAllCards bool
	overrides    map[string]bool
}

// Instance is one loaded replay with per-spectator playback cursors.
// Spectators on the same replay are fully independent: pausing one
// never moves another.
type Instance struct {
	clock quartz.Clock
	file  *File
	send  Sender

	mu      sync.Mutex
	viewers map[string]*viewer
}

// NewInstance wraps a loaded file for playback.
func NewInstance(clock quartz.Clock, file *File, send Sender) *Instance {
	return &Instance{
		clock:   clock,
		file:    file,
		send:    send,
		viewers: make(map[string]*viewer),
	}
}

// SetSender installs the outbound delivery function. Must be called
// before the first control command.
func (in *Instance) SetSender(send Sender) {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.send = send
}

func (in *Instance) viewerLocked(spectatorID string) *viewer {
	v, ok := in.viewers[spectatorID]
	if !ok {
		v = &viewer{speed: 1.0, overrides: make(map[string]bool)}
		in.viewers[spectatorID] = v
	}
	return v
}

// Control applies one replayControl command for a spectator and sends
// the resulting replayState.
func (in *Instance) Control(spectatorID, command string, speed *float64, position *int) error {
	in.mu.Lock()
	defer in.mu.Unlock()

	v := in.viewerLocked(spectatorID)
	switch command {
	case protocol.ReplayPlay:
		if !v.isPlaying && v.position < len(in.file.Entries)-1 {
			v.isPlaying = true
			in.scheduleTickLocked(spectatorID, v)
		}
	case protocol.ReplayPause:
		in.pauseLocked(v)
	case protocol.ReplayStepForward:
		in.pauseLocked(v)
		v.position = clampPos(v.position+1, len(in.file.Entries))
	case protocol.ReplayStepBackward:
		in.pauseLocked(v)
		v.position = clampPos(v.position-1, len(in.file.Entries))
	case protocol.ReplayJumpRoundStart:
		in.pauseLocked(v)
		v.position = in.prevRoundBoundary(v.position)
	case protocol.ReplayJumpNextRound:
		in.pauseLocked(v)
		v.position = in.nextRoundBoundary(v.position)
	case protocol.ReplaySetSpeed:
		if speed == nil {
			return fmt.Errorf("set_speed without speed")
		}
		v.speed = clampSpeed(*speed)
	case protocol.ReplaySetPosition:
		if position == nil {
			return fmt.Errorf("set_position without position")
		}
		in.pauseLocked(v)
		v.position = clampPos(*position, len(in.file.Entries))
	default:
		return fmt.Errorf("unknown replay command %q", command)
	}

	in.sendStateLocked(spectatorID, v)
	return nil
}

// SetVisibility stores a spectator's card-visibility choice and
// resends the current position under the new policy.
func (in *Instance) SetVisibility(spectatorID string, showAllCards *bool, overrides map[string]bool) {
	in.mu.Lock()
	defer in.mu.Unlock()

	v := in.viewerLocked(spectatorID)
	if showAllCards != nil {
		v.showAllCards = *showAllCards
	}
	for id, show := range overrides {
		v.overrides[id] = show
	}
	in.sendStateLocked(spectatorID, v)
}

// RemoveViewer drops a spectator's cursor and cancels any pending tick.
func (in *Instance) RemoveViewer(spectatorID string) {
	in.mu.Lock()
	defer in.mu.Unlock()
	if v, ok := in.viewers[spectatorID]; ok {
		in.pauseLocked(v)
		delete(in.viewers, spectatorID)
	}
}

// ViewerCount reports active cursors; the manager unloads an instance
// at zero.
func (in *Instance) ViewerCount() int {
	in.mu.Lock()
	defer in.mu.Unlock()
	return len(in.viewers)
}

func (in *Instance) pauseLocked(v *viewer) {
	v.isPlaying = false
	if v.timer != nil {
		v.timer.Stop()
		v.timer = nil
	}
}

// scheduleTickLocked arms the next auto-advance using the recorded
// inter-entry gap scaled by speed, clamped below so dense event bursts
// stay watchable.
func (in *Instance) scheduleTickLocked(spectatorID string, v *viewer) {
	if v.position >= len(in.file.Entries)-1 {
		v.isPlaying = false
		return
	}
	gap := in.file.Entries[v.position+1].Timestamp - in.file.Entries[v.position].Timestamp
	delay := time.Duration(float64(gap)/v.speed) * time.Millisecond
	if delay < minTick {
		delay = minTick
	}
	v.timer = in.clock.AfterFunc(delay, func() {
		in.tick(spectatorID)
	})
}

func (in *Instance) tick(spectatorID string) {
	in.mu.Lock()
	defer in.mu.Unlock()

	v, ok := in.viewers[spectatorID]
	if !ok || !v.isPlaying {
		return
	}
	v.position = clampPos(v.position+1, len(in.file.Entries))
	if v.position >= len(in.file.Entries)-1 {
		v.isPlaying = false
		v.timer = nil
	} else {
		in.scheduleTickLocked(spectatorID, v)
	}
	in.sendStateLocked(spectatorID, v)
}

func isRoundBoundary(e Entry) bool {
	if e.Type != EntryEvent || e.Event == nil {
		return false
	}
	switch e.Event.EventType() {
	case engine.EventHandStart, engine.EventFlop, engine.EventTurn, engine.EventRiver:
		return true
	}
	return false
}

func (in *Instance) prevRoundBoundary(pos int) int {
	for i := pos - 1; i >= 0; i-- {
		if isRoundBoundary(in.file.Entries[i]) {
			return i
		}
	}
	return 0
}

func (in *Instance) nextRoundBoundary(pos int) int {
	for i := pos + 1; i < len(in.file.Entries); i++ {
		if isRoundBoundary(in.file.Entries[i]) {
			return i
		}
	}
	return len(in.file.Entries) - 1
}

// stateAt returns the engine state governing a position: the entry's
// own state for event entries, else the nearest earlier one (chat
// lines carry no state).
func (in *Instance) stateAt(pos int) *engine.State {
	for i := pos; i >= 0; i-- {
		if s := in.file.Entries[i].EngineState; s != nil {
			return s
		}
	}
	return nil
}

func (in *Instance) sendStateLocked(spectatorID string, v *viewer) {
	if in.send == nil || len(in.file.Entries) == 0 {
		return
	}
	entry := in.file.Entries[v.position]
	state := in.stateAt(v.position)

	payload := protocol.ReplayStatePayload{
		Position:     v.position,
		TotalEntries: len(in.file.Entries),
		IsPlaying:    v.isPlaying,
		Speed:        v.speed,
	}
	if state != nil {
		payload.GameState = engine.Project(state, "", func(p *engine.Player) bool {
			if show, ok := v.overrides[p.ID]; ok {
				return show
			}
			return v.showAllCards
		})
		payload.HandNumber = state.HandNumber
		payload.Stage = state.Stage
	}
	switch entry.Type {
	case EntryEvent:
		payload.Event = entry.Event
	case EntryChat:
		payload.Chat = entry.Chat
	}
	in.send(spectatorID, payload)
}

func clampPos(pos, total int) int {
	if pos < 0 {
		return 0
	}
	if pos > total-1 {
		return total - 1
	}
	return pos
}

func clampSpeed(speed float64) float64 {
	if speed < MinSpeed {
		return MinSpeed
	}
	if speed > MaxSpeed {
		return MaxSpeed
	}
	return speed
}
