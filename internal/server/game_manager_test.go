package server

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/coder/quartz"
	"github.com/stretchr/testify/require"

	"github.com/cardroomlabs/cardroom/internal/engine"
	"github.com/cardroomlabs/cardroom/internal/protocol"
	"github.com/cardroomlabs/cardroom/internal/randutil"
	"github.com/cardroomlabs/cardroom/internal/store"
)

func TestForceStartGameSkipsReadyGate(t *testing.T) {
	f := newHandlerFixture(t)

	sinkA := newFrameSink()
	f.identify(sinkA, "Ann", "")
	f.send(sinkA, protocol.ActionJoinGame, protocol.JoinGamePayload{GameID: f.room.ID()})
	waitAction(t, sinkA, protocol.ActionGameJoined)

	sinkB := newFrameSink()
	f.identify(sinkB, "Ben", "")
	f.send(sinkB, protocol.ActionJoinGame, protocol.JoinGamePayload{GameID: f.room.ID()})
	waitAction(t, sinkB, protocol.ActionGameJoined)

	// Neither player is ready; a forced start deals anyway.
	require.True(t, f.games.ForceStartGame(f.room.ID()))
	waitEvent(t, sinkA, engine.EventDeal)

	require.False(t, f.games.ForceStartGame("no-such-game"))
}

func TestRemovePlayerUnseats(t *testing.T) {
	f := newHandlerFixture(t)

	sinkA := newFrameSink()
	f.identify(sinkA, "Ann", "")
	f.send(sinkA, protocol.ActionJoinGame, protocol.JoinGamePayload{GameID: f.room.ID()})
	waitAction(t, sinkA, protocol.ActionGameJoined)

	sinkB := newFrameSink()
	ben := f.identify(sinkB, "Ben", "")
	f.send(sinkB, protocol.ActionJoinGame, protocol.JoinGamePayload{GameID: f.room.ID()})
	waitAction(t, sinkB, protocol.ActionGameJoined)
	f.room.Summary()

	require.True(t, f.games.RemovePlayer(f.room.ID(), ben.PlayerID))
	left := waitEvent(t, sinkA, engine.EventPlayerLeft)
	require.Equal(t, 1, len(left.GameState.Players))
}

func TestSetSpectatorVisibilityImmediate(t *testing.T) {
	f := newHandlerFixture(t)

	sinkA := newFrameSink()
	f.identify(sinkA, "Ann", "")
	f.send(sinkA, protocol.ActionJoinGame, protocol.JoinGamePayload{GameID: f.room.ID()})
	sinkB := newFrameSink()
	f.identify(sinkB, "Ben", "")
	f.send(sinkB, protocol.ActionJoinGame, protocol.JoinGamePayload{GameID: f.room.ID()})
	f.send(sinkA, protocol.ActionReady, nil)
	f.send(sinkB, protocol.ActionReady, nil)
	waitEvent(t, sinkA, engine.EventDeal)

	require.True(t, f.games.SetSpectatorVisibility(f.room.ID(), engine.VisibilityImmediate))

	// A spectator joining mid-hand now sees every live hole card.
	sinkS := newFrameSink()
	f.identify(sinkS, "Railbird", "")
	f.send(sinkS, protocol.ActionJoinGame, protocol.JoinGamePayload{
		GameID: f.room.ID(), Role: engine.RoleSpectator,
	})
	env := waitAction(t, sinkS, protocol.ActionGameJoined)
	p, err := protocol.DecodePayload[protocol.GameJoinedPayload](env)
	require.NoError(t, err)
	for _, cp := range p.GameState.Players {
		if cp.Role == engine.RolePlayer {
			require.Len(t, cp.HoleCards, 2, "player %s cards hidden", cp.DisplayName)
		}
	}
}

func TestAddBotSeatsItself(t *testing.T) {
	f := newHandlerFixture(t)

	bot, ok := f.games.AddBot("Callie", f.room.ID(), f.handler)
	require.True(t, ok)
	t.Cleanup(bot.CloseSend)

	require.Eventually(t, func() bool {
		return f.room.Summary().PlayerCount == 1
	}, 2*time.Second, 2*time.Millisecond)

	_, ok = f.games.AddBot("Callie", "no-such-game", f.handler)
	require.False(t, ok)
}

func TestRestoreResurrectsSnapshottedRoom(t *testing.T) {
	logger := testLogger()
	clock := quartz.NewMock(t)

	db, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	writer := store.NewSnapshotWriter(db, logger)
	t.Cleanup(writer.Close)

	state := engine.NewState(engine.RoomConfig{
		GameID: "g-crashed", GameName: "main", GameType: engine.GameTypeCash,
		SmallBlind: 5, BigBlind: 10, MaxPlayers: 6, StartingStack: 1000,
	})
	state.HandNumber = 3
	data, err := json.Marshal(state)
	require.NoError(t, err)
	require.NoError(t, db.SaveSnapshot("g-crashed", data))
	// An undecodable snapshot is dropped, not restored.
	require.NoError(t, db.SaveSnapshot("g-broken", []byte("{")))

	games := NewGameManager(Deps{
		Clock:     clock,
		RNG:       randutil.New(1),
		Logger:    logger,
		Sessions:  NewSessionManager(clock, logger),
		Store:     db,
		Snapshots: writer,
		ReplayDir: t.TempDir(),
	})
	t.Cleanup(games.Shutdown)

	restored := games.Restore(DefaultConfig())
	require.True(t, restored["main"])

	g, ok := games.Get("g-crashed")
	require.True(t, ok)
	s := g.Summary()
	require.Equal(t, string(StatusActive), s.Status)
	require.Equal(t, "main", s.GameName)

	_, ok = games.Get("g-broken")
	require.False(t, ok)
	_, err = db.Snapshot("g-broken")
	require.ErrorIs(t, err, store.ErrNotFound)
}
