package replay

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/coder/quartz"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardroomlabs/cardroom/internal/deck"
	"github.com/cardroomlabs/cardroom/internal/engine"
	"github.com/cardroomlabs/cardroom/internal/protocol"
	"github.com/cardroomlabs/cardroom/internal/randutil"
)

func headsUpConfig() GameConfig {
	return GameConfig{
		GameID:        "g-replay",
		GameName:      "table-1",
		GameType:      engine.GameTypeCash,
		SmallBlind:    5,
		BigBlind:      10,
		MaxPlayers:    6,
		StartingStack: 1000,
	}
}

// recordHeadsUpHand plays a rigged heads-up shove hand and records
// every transition, returning the file and the live transitions.
func recordHeadsUpHand(t *testing.T, clock quartz.Clock) (*File, []engine.Transition) {
	t.Helper()

	s := engine.NewState(engine.RoomConfig{
		GameID: "g-replay", GameName: "table-1", GameType: engine.GameTypeCash,
		SmallBlind: 5, BigBlind: 10, MaxPlayers: 6, StartingStack: 1000,
	})
	for _, id := range []string{"p0", "p1"} {
		ts, err := engine.Seat(s, id, id, engine.RolePlayer)
		require.NoError(t, err)
		s = ts[len(ts)-1].State
	}

	rigged := []deck.Card{"2c", "2d", "Ah", "As", "Kh", "Qd", "Jc", "Th", "9d"}
	ts, err := engine.StartHand(s, randutil.New(1), engine.WithDeck(rigged))
	require.NoError(t, err)
	all := append([]engine.Transition(nil), ts...)
	s = ts[len(ts)-1].State

	for _, id := range []string{"p0", "p1"} {
		ts, err = engine.ProcessAction(s, id, engine.ActionAllIn, 0)
		require.NoError(t, err)
		all = append(all, ts...)
		s = ts[len(ts)-1].State
	}

	rec := NewRecorder(clock, headsUpConfig())
	for _, tr := range all {
		rec.RecordEvent(tr.Event, tr.State)
	}
	return rec.Build(), all
}

type capture struct {
	mu       sync.Mutex
	payloads []protocol.ReplayStatePayload
}

func (c *capture) send(_ string, p protocol.ReplayStatePayload) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.payloads = append(c.payloads, p)
}

func (c *capture) all() []protocol.ReplayStatePayload {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]protocol.ReplayStatePayload(nil), c.payloads...)
}

func TestRecorderBuildsDenseEntries(t *testing.T) {
	file, live := recordHeadsUpHand(t, quartz.NewMock(t))

	assert.Equal(t, FileVersion, file.Version)
	require.Len(t, file.Entries, len(live))
	for i, e := range file.Entries {
		assert.Equal(t, i, e.Index)
		assert.Equal(t, EntryEvent, e.Type)
		require.NotNil(t, e.EngineState)
	}
	require.Len(t, file.Players, 2)
	assert.Equal(t, "p0", file.Players[0].ID)
}

func TestRecorderStatesAreIsolatedCopies(t *testing.T) {
	file, live := recordHeadsUpHand(t, quartz.NewMock(t))

	// Mutating the live state must not reach into the recording.
	live[0].State.HandNumber = 999
	assert.Equal(t, 1, file.Entries[0].EngineState.HandNumber)
}

func TestFileSaveLoadRoundTrip(t *testing.T) {
	file, _ := recordHeadsUpHand(t, quartz.NewMock(t))
	dir := t.TempDir()
	require.NoError(t, file.Save(dir))

	ids, err := ListDir(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"g-replay"}, ids)

	loaded, err := LoadFile(dir + "/g-replay" + fileExt)
	require.NoError(t, err)
	assert.Equal(t, file.GameConfig, loaded.GameConfig)
	assert.Equal(t, file.Players, loaded.Players)
	require.Len(t, loaded.Entries, len(file.Entries))
	for i := range loaded.Entries {
		assert.Equal(t, file.Entries[i].Event, loaded.Entries[i].Event, "entry %d", i)
		assert.Equal(t, file.Entries[i].EngineState.Stage, loaded.Entries[i].EngineState.Stage)
	}
}

// Stepping through a recorded hand must reproduce the live hand
// position by position.
func TestReplayStepMatchesLiveTransitions(t *testing.T) {
	mock := quartz.NewMock(t)
	file, live := recordHeadsUpHand(t, mock)

	var got capture
	in := NewInstance(mock, file, got.send)

	pos := 0
	require.NoError(t, in.Control("spec", protocol.ReplaySetPosition, nil, &pos))
	for i := 1; i < len(file.Entries); i++ {
		require.NoError(t, in.Control("spec", protocol.ReplayStepForward, nil, nil))
	}

	payloads := got.all()
	require.Len(t, payloads, len(live))
	for i, p := range payloads {
		assert.Equal(t, i, p.Position)
		assert.Equal(t, len(live), p.TotalEntries)
		assert.Equal(t, live[i].State.HandNumber, p.HandNumber, "position %d", i)
		assert.Equal(t, live[i].State.Stage, p.Stage, "position %d", i)
		assert.Equal(t, len(live[i].State.CommunityCards), len(p.GameState.CommunityCards), "position %d", i)

		switch live[i].Event.EventType() {
		case engine.EventFlop:
			assert.Len(t, p.GameState.CommunityCards, 3)
		case engine.EventTurn:
			assert.Len(t, p.GameState.CommunityCards, 4)
		case engine.EventRiver:
			assert.Len(t, p.GameState.CommunityCards, 5)
		}
	}
}

func TestReplayStepClampsAtEnds(t *testing.T) {
	mock := quartz.NewMock(t)
	file, _ := recordHeadsUpHand(t, mock)

	var got capture
	in := NewInstance(mock, file, got.send)

	require.NoError(t, in.Control("spec", protocol.ReplayStepBackward, nil, nil))
	payloads := got.all()
	assert.Equal(t, 0, payloads[len(payloads)-1].Position)

	end := len(file.Entries) + 50
	require.NoError(t, in.Control("spec", protocol.ReplaySetPosition, nil, &end))
	payloads = got.all()
	assert.Equal(t, len(file.Entries)-1, payloads[len(payloads)-1].Position)
}

func TestReplayPlayAdvancesOnClock(t *testing.T) {
	mock := quartz.NewMock(t)
	file, _ := recordHeadsUpHand(t, mock)

	var got capture
	in := NewInstance(mock, file, got.send)
	require.NoError(t, in.Control("spec", protocol.ReplayPlay, nil, nil))

	payloads := got.all()
	require.NotEmpty(t, payloads)
	assert.True(t, payloads[len(payloads)-1].IsPlaying)

	ctx := context.Background()
	for i := 1; i < len(file.Entries); i++ {
		mock.Advance(50 * time.Millisecond).MustWait(ctx)
	}

	payloads = got.all()
	last := payloads[len(payloads)-1]
	assert.Equal(t, len(file.Entries)-1, last.Position)
	assert.False(t, last.IsPlaying, "playback pauses at the final entry")
}

func TestReplayPauseCancelsTick(t *testing.T) {
	mock := quartz.NewMock(t)
	file, _ := recordHeadsUpHand(t, mock)

	var got capture
	in := NewInstance(mock, file, got.send)
	require.NoError(t, in.Control("spec", protocol.ReplayPlay, nil, nil))
	require.NoError(t, in.Control("spec", protocol.ReplayPause, nil, nil))

	payloads := got.all()
	last := payloads[len(payloads)-1]
	assert.False(t, last.IsPlaying)
	assert.Equal(t, 0, last.Position)
}

func TestReplaySpeedClamped(t *testing.T) {
	mock := quartz.NewMock(t)
	file, _ := recordHeadsUpHand(t, mock)

	var got capture
	in := NewInstance(mock, file, got.send)

	fast := 100.0
	require.NoError(t, in.Control("spec", protocol.ReplaySetSpeed, &fast, nil))
	slow := 0.01
	require.NoError(t, in.Control("spec", protocol.ReplaySetSpeed, &slow, nil))

	payloads := got.all()
	assert.Equal(t, MaxSpeed, payloads[0].Speed)
	assert.Equal(t, MinSpeed, payloads[1].Speed)
}

func TestReplayJumpRoundBoundaries(t *testing.T) {
	mock := quartz.NewMock(t)
	file, live := recordHeadsUpHand(t, mock)

	flopPos := -1
	for i, tr := range live {
		if tr.Event.EventType() == engine.EventFlop {
			flopPos = i
		}
	}
	require.GreaterOrEqual(t, flopPos, 0)

	var got capture
	in := NewInstance(mock, file, got.send)

	require.NoError(t, in.Control("spec", protocol.ReplayJumpNextRound, nil, nil))
	payloads := got.all()
	assert.Equal(t, flopPos, payloads[len(payloads)-1].Position,
		"first forward boundary after the deal is the flop")

	require.NoError(t, in.Control("spec", protocol.ReplayJumpRoundStart, nil, nil))
	payloads = got.all()
	assert.Equal(t, 0, payloads[len(payloads)-1].Position,
		"backward boundary from the flop is HAND_START")
}

func TestReplayCardVisibility(t *testing.T) {
	mock := quartz.NewMock(t)
	file, _ := recordHeadsUpHand(t, mock)

	var got capture
	in := NewInstance(mock, file, got.send)

	// Move to the deal so hole cards exist in the state.
	pos := 2
	require.NoError(t, in.Control("spec", protocol.ReplaySetPosition, nil, &pos))
	payloads := got.all()
	for _, p := range payloads[len(payloads)-1].GameState.Players {
		assert.Empty(t, p.HoleCards, "cards hidden by default")
	}

	show := true
	in.SetVisibility("spec", &show, map[string]bool{"p1": false})
	payloads = got.all()
	view := payloads[len(payloads)-1].GameState
	for _, p := range view.Players {
		if p.ID == "p1" {
			assert.Empty(t, p.HoleCards, "explicit hide wins over showAllCards")
		} else {
			assert.Len(t, p.HoleCards, 2)
		}
	}
}

func TestReplayViewersAreIndependent(t *testing.T) {
	mock := quartz.NewMock(t)
	file, _ := recordHeadsUpHand(t, mock)

	var a, b capture
	in := NewInstance(mock, file, func(id string, p protocol.ReplayStatePayload) {
		if id == "a" {
			a.send(id, p)
		} else {
			b.send(id, p)
		}
	})

	require.NoError(t, in.Control("a", protocol.ReplayStepForward, nil, nil))
	require.NoError(t, in.Control("a", protocol.ReplayStepForward, nil, nil))
	require.NoError(t, in.Control("b", protocol.ReplayStepForward, nil, nil))

	aLast := a.all()[len(a.all())-1]
	bLast := b.all()[len(b.all())-1]
	assert.Equal(t, 2, aLast.Position)
	assert.Equal(t, 1, bLast.Position)
}

func TestManagerSharesAndUnloadsInstances(t *testing.T) {
	mock := quartz.NewMock(t)
	file, _ := recordHeadsUpHand(t, mock)
	dir := t.TempDir()
	require.NoError(t, file.Save(dir))

	m := NewManager(dir, mock, testLogger())

	ids, err := m.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"g-replay"}, ids)

	var got capture
	first, err := m.Open("g-replay", got.send)
	require.NoError(t, err)
	second, err := m.Open("g-replay", got.send)
	require.NoError(t, err)
	assert.Same(t, first, second)

	require.NoError(t, first.Control("spec", protocol.ReplayStepForward, nil, nil))
	m.Release("g-replay", "spec")

	third, err := m.Open("g-replay", got.send)
	require.NoError(t, err)
	assert.NotSame(t, first, third, "instance unloads when the last viewer leaves")

	_, err = m.Open("missing", got.send)
	assert.Error(t, err)
}
