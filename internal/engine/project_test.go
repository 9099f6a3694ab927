package engine

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func projectedPlayer(t *testing.T, view ClientGameState, id string) ClientPlayer {
	t.Helper()
	for _, p := range view.Players {
		if p.ID == id {
			return p
		}
	}
	t.Fatalf("player %s not in projection", id)
	return ClientPlayer{}
}

func TestProjectionHidesOpponentCardsMidHand(t *testing.T) {
	s := startedGame(t, 1000, 1000, 1000)

	view := ToClientGameState(s, "p0", VisibilityShowdown)
	assert.Len(t, view.YourCards, 2)
	assert.Len(t, projectedPlayer(t, view, "p0").HoleCards, 2)
	assert.Empty(t, projectedPlayer(t, view, "p1").HoleCards)
	assert.Empty(t, projectedPlayer(t, view, "p2").HoleCards)
}

func TestProjectionNeverLeaksDeck(t *testing.T) {
	s := startedGame(t, 1000, 1000)
	view := ToClientGameState(s, "p0", VisibilityShowdown)

	raw, err := json.Marshal(view)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), `"deck"`)
}

func TestProjectionValidActionsOnlyForActivePlayer(t *testing.T) {
	s := startedGame(t, 1000, 1000, 1000)
	require.Equal(t, "p0", s.ActivePlayerID)

	active := ToClientGameState(s, "p0", VisibilityShowdown)
	assert.NotEmpty(t, active.ValidActions)

	waiting := ToClientGameState(s, "p1", VisibilityShowdown)
	assert.Empty(t, waiting.ValidActions)
}

func TestProjectionShowsAllCardsBetweenHands(t *testing.T) {
	s := startedGame(t, 1000, 1000)
	ts, err := ProcessAction(s, s.ActivePlayerID, ActionFold, 0)
	require.NoError(t, err)
	s = ts[len(ts)-1].State
	require.False(t, s.HandInProgress)

	view := ToClientGameState(s, "p1", VisibilityShowdown)
	assert.Len(t, projectedPlayer(t, view, "p0").HoleCards, 2)
}

func TestProjectionSpectatorVisibility(t *testing.T) {
	s := startedGame(t, 1000, 1000)
	ts, err := Seat(s, "watcher", "Watcher", RoleSpectator)
	require.NoError(t, err)
	s = ts[len(ts)-1].State

	hidden := ToClientGameState(s, "watcher", VisibilityShowdown)
	assert.Empty(t, projectedPlayer(t, hidden, "p0").HoleCards)
	assert.Empty(t, hidden.YourCards)

	delayed := ToClientGameState(s, "watcher", VisibilityDelayed)
	assert.Empty(t, projectedPlayer(t, delayed, "p0").HoleCards)

	live := ToClientGameState(s, "watcher", VisibilityImmediate)
	assert.Len(t, projectedPlayer(t, live, "p0").HoleCards, 2)
	assert.Len(t, projectedPlayer(t, live, "p1").HoleCards, 2)
}

func TestProjectionPlayersSortedBySeat(t *testing.T) {
	s := startedGame(t, 1000, 1000, 1000)
	view := ToClientGameState(s, "p0", VisibilityShowdown)
	require.Len(t, view.Players, 3)
	for i := 1; i < len(view.Players); i++ {
		assert.Less(t, view.Players[i-1].SeatIndex, view.Players[i].SeatIndex)
	}
}

func TestProjectWithForcedVisibility(t *testing.T) {
	s := startedGame(t, 1000, 1000)
	view := Project(s, "", func(*Player) bool { return true })
	assert.Len(t, projectedPlayer(t, view, "p0").HoleCards, 2)
	assert.Len(t, projectedPlayer(t, view, "p1").HoleCards, 2)
	assert.Empty(t, view.YourCards)
}
