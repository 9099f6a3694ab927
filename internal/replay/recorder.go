package replay

import (
	"sort"

	"github.com/coder/quartz"

	"github.com/cardroomlabs/cardroom/internal/engine"
	"github.com/cardroomlabs/cardroom/internal/protocol"
)

// Recorder accumulates one game's transitions. It lives inside the
// room executor, so no locking: all calls arrive on the room goroutine.
type Recorder struct {
	clock   quartz.Clock
	started bool
	start   int64 // UnixMilli of the first record

	cfg     GameConfig
	players map[string]PlayerInfo
	entries []Entry
}

// NewRecorder creates a recorder for one room.
func NewRecorder(clock quartz.Clock, cfg GameConfig) *Recorder {
	return &Recorder{
		clock:   clock,
		cfg:     cfg,
		players: make(map[string]PlayerInfo),
	}
}

func (r *Recorder) timestamp() int64 {
	now := r.clock.Now().UnixMilli()
	if !r.started {
		r.started = true
		r.start = now
	}
	return now - r.start
}

// RecordEvent appends one (event, state) pair. The state is cloned so
// later engine transitions cannot disturb recorded history.
func (r *Recorder) RecordEvent(ev engine.Event, state *engine.State) {
	r.entries = append(r.entries, Entry{
		Index:       len(r.entries),
		Timestamp:   r.timestamp(),
		Type:        EntryEvent,
		Event:       ev,
		EngineState: state.Clone(),
	})
	for _, p := range state.Players {
		if _, seen := r.players[p.ID]; !seen {
			r.players[p.ID] = PlayerInfo{
				ID:          p.ID,
				DisplayName: p.DisplayName,
				SeatIndex:   p.SeatIndex,
				Role:        p.Role,
			}
		}
	}
}

// RecordChat appends one chat line.
func (r *Recorder) RecordChat(chat protocol.ChatMessagePayload) {
	c := chat
	r.entries = append(r.entries, Entry{
		Index:     len(r.entries),
		Timestamp: r.timestamp(),
		Type:      EntryChat,
		Chat:      &c,
	})
}

// Len reports the number of recorded entries.
func (r *Recorder) Len() int { return len(r.entries) }

// Build assembles the serializable file, roster in seat order.
func (r *Recorder) Build() *File {
	players := make([]PlayerInfo, 0, len(r.players))
	for _, p := range r.players {
		players = append(players, p)
	}
	sort.Slice(players, func(i, j int) bool { return players[i].SeatIndex < players[j].SeatIndex })

	return &File{
		Version:    FileVersion,
		GameConfig: r.cfg,
		Players:    players,
		Entries:    r.entries,
	}
}
