package server

import (
	"io"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/stretchr/testify/require"

	"github.com/cardroomlabs/cardroom/internal/engine"
	"github.com/cardroomlabs/cardroom/internal/protocol"
	"github.com/cardroomlabs/cardroom/internal/randutil"
	"github.com/cardroomlabs/cardroom/internal/store"
)

func testLogger() *log.Logger { return log.New(io.Discard) }

// frameSink captures outbound frames for assertions.
type frameSink struct {
	mu     sync.Mutex
	frames [][]byte
	closed bool
}

func newFrameSink() *frameSink { return &frameSink{} }

func (s *frameSink) SendFrame(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errBotClosed
	}
	s.frames = append(s.frames, data)
	return nil
}

func (s *frameSink) CloseSend() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}

func (s *frameSink) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// envelopes decodes every captured frame, skipping malformed ones.
func (s *frameSink) envelopes() []protocol.Envelope {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]protocol.Envelope, 0, len(s.frames))
	for _, f := range s.frames {
		env, err := protocol.DecodeEnvelope(f)
		if err != nil {
			continue
		}
		out = append(out, env)
	}
	return out
}

// gameStates decodes every gameState frame in capture order.
func (s *frameSink) gameStates() []protocol.GameStatePayload {
	var out []protocol.GameStatePayload
	for _, env := range s.envelopes() {
		if env.Action != protocol.ActionGameState {
			continue
		}
		p, err := protocol.DecodePayload[protocol.GameStatePayload](env)
		if err != nil {
			continue
		}
		out = append(out, p)
	}
	return out
}

func (s *frameSink) errorCodes() []string {
	var out []string
	for _, env := range s.envelopes() {
		if env.Action != protocol.ActionError {
			continue
		}
		if p, err := protocol.DecodePayload[protocol.ErrorPayload](env); err == nil {
			out = append(out, p.Code)
		}
	}
	return out
}

// roomFixture wires one ActiveGame against in-memory infrastructure
// with a mock clock.
type roomFixture struct {
	t        *testing.T
	clock    *quartz.Mock
	sessions *SessionManager
	db       *store.Store
	game     *ActiveGame
	sinks    map[string]*frameSink
}

func newRoomFixture(t *testing.T, mutate ...func(*GameOptions)) *roomFixture {
	t.Helper()
	return buildRoomFixture(t, nil, mutate...)
}

// newRestoredFixture builds the room via the crash-recovery path from
// a prebuilt engine state.
func newRestoredFixture(t *testing.T, state *engine.State, mutate ...func(*GameOptions)) *roomFixture {
	t.Helper()
	return buildRoomFixture(t, state, mutate...)
}

func buildRoomFixture(t *testing.T, restore *engine.State, mutate ...func(*GameOptions)) *roomFixture {
	t.Helper()
	logger := testLogger()
	clock := quartz.NewMock(t)

	db, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	writer := store.NewSnapshotWriter(db, logger)
	t.Cleanup(writer.Close)

	sessions := NewSessionManager(clock, logger)

	opts := GameOptions{
		ID:            "g-room",
		Name:          "test",
		GameType:      engine.GameTypeCash,
		SmallBlind:    5,
		BigBlind:      10,
		MaxPlayers:    6,
		StartingStack: 1000,
		Visibility:    engine.VisibilityShowdown,
		ActionTimeout: 30 * time.Second,
		HandDelay:     3 * time.Second,
		MinReady:      2,
	}
	for _, m := range mutate {
		m(&opts)
	}

	require.NoError(t, db.SaveGame(store.GameRecord{
		ID: opts.ID, Name: opts.Name, GameType: string(opts.GameType), Status: string(StatusWaiting),
	}))

	deps := Deps{
		Clock:     clock,
		RNG:       randutil.New(1),
		Logger:    logger,
		Sessions:  sessions,
		Store:     db,
		Snapshots: writer,
		ReplayDir: t.TempDir(),
	}
	var game *ActiveGame
	if restore != nil {
		game = RestoreActiveGame(restore, opts, deps)
	} else {
		game = NewActiveGame(opts, deps)
	}
	t.Cleanup(game.Stop)

	return &roomFixture{
		t:        t,
		clock:    clock,
		sessions: sessions,
		db:       db,
		game:     game,
		sinks:    make(map[string]*frameSink),
	}
}

func (f *roomFixture) connect(playerID, name string) *frameSink {
	sink := newFrameSink()
	f.sessions.Register(playerID, name, sink)
	f.sinks[playerID] = sink
	return sink
}

// sync blocks until the room executor has drained everything posted
// before this call.
func (f *roomFixture) sync() { f.game.Summary() }

// waitEvent polls a sink until a gameState frame carrying the given
// event type appears, returning that payload.
func waitEvent(t *testing.T, sink *frameSink, eventType string) protocol.GameStatePayload {
	t.Helper()
	var found protocol.GameStatePayload
	require.Eventually(t, func() bool {
		for _, p := range sink.gameStates() {
			if p.Event != nil && p.Event.EventType() == eventType {
				found = p
				return true
			}
		}
		return false
	}, 2*time.Second, 2*time.Millisecond, "no %s event arrived", eventType)
	return found
}

func waitAction(t *testing.T, sink *frameSink, action string) protocol.Envelope {
	t.Helper()
	var found protocol.Envelope
	require.Eventually(t, func() bool {
		for _, env := range sink.envelopes() {
			if env.Action == action {
				found = env
				return true
			}
		}
		return false
	}, 2*time.Second, 2*time.Millisecond, "no %s frame arrived", action)
	return found
}

func (f *roomFixture) waitForEvent(sink *frameSink, eventType string) protocol.GameStatePayload {
	f.t.Helper()
	return waitEvent(f.t, sink, eventType)
}

func (f *roomFixture) waitForAction(sink *frameSink, action string) protocol.Envelope {
	f.t.Helper()
	return waitAction(f.t, sink, action)
}

// startHeadsUp seats pa and pb, readies both, and waits for the first
// hand's deal. First hand: dealer seat 0, so pa posts SB and acts first.
func (f *roomFixture) startHeadsUp() (a, b *frameSink) {
	f.t.Helper()
	a = f.connect("pa", "Alice")
	b = f.connect("pb", "Bob")
	f.game.Join("pa", "Alice", engine.RolePlayer)
	f.game.Join("pb", "Bob", engine.RolePlayer)
	f.game.Ready("pa")
	f.game.Ready("pb")
	deal := f.waitForEvent(a, engine.EventDeal)
	require.Equal(f.t, "pa", deal.GameState.ActivePlayerID)
	f.sync()
	return a, b
}
