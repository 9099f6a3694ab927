package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func potPlayer(id string, seat, share int, folded bool) *Player {
	return &Player{ID: id, SeatIndex: seat, Role: RolePlayer, PotShare: share, Folded: folded}
}

func TestCalculatePotsSingleTier(t *testing.T) {
	pots := CalculatePots([]*Player{
		potPlayer("a", 0, 100, false),
		potPlayer("b", 1, 100, false),
		potPlayer("c", 2, 100, false),
	})
	require.Len(t, pots, 1)
	assert.Equal(t, Pot{Amount: 300, Eligible: []string{"a", "b", "c"}}, pots[0])
}

func TestCalculatePotsShortAllInMakesSidePot(t *testing.T) {
	pots := CalculatePots([]*Player{
		potPlayer("a", 0, 50, false),
		potPlayer("b", 1, 100, false),
		potPlayer("c", 2, 100, false),
	})
	require.Len(t, pots, 2)
	assert.Equal(t, Pot{Amount: 150, Eligible: []string{"a", "b", "c"}}, pots[0])
	assert.Equal(t, Pot{Amount: 100, Eligible: []string{"b", "c"}}, pots[1])
}

func TestCalculatePotsFoldedChipsStayInButNotEligible(t *testing.T) {
	pots := CalculatePots([]*Player{
		potPlayer("a", 0, 20, true),
		potPlayer("b", 1, 100, false),
		potPlayer("c", 2, 100, false),
	})
	// Folded contributions merge into the pot the live players contest.
	require.Len(t, pots, 1)
	assert.Equal(t, Pot{Amount: 220, Eligible: []string{"b", "c"}}, pots[0])
}

func TestCalculatePotsThreeTiers(t *testing.T) {
	pots := CalculatePots([]*Player{
		potPlayer("a", 0, 25, false),
		potPlayer("b", 1, 75, false),
		potPlayer("c", 2, 200, false),
		potPlayer("d", 3, 200, false),
	})
	require.Len(t, pots, 3)
	assert.Equal(t, Pot{Amount: 100, Eligible: []string{"a", "b", "c", "d"}}, pots[0])
	assert.Equal(t, Pot{Amount: 150, Eligible: []string{"b", "c", "d"}}, pots[1])
	assert.Equal(t, Pot{Amount: 250, Eligible: []string{"c", "d"}}, pots[2])
}

func TestCalculatePotsEmpty(t *testing.T) {
	assert.Nil(t, CalculatePots(nil))
	assert.Nil(t, CalculatePots([]*Player{potPlayer("a", 0, 0, false)}))
}

func TestCalculatePotsIdempotent(t *testing.T) {
	players := []*Player{
		potPlayer("a", 0, 50, false),
		potPlayer("b", 1, 100, false),
		potPlayer("c", 2, 100, true),
	}
	first := CalculatePots(players)
	second := CalculatePots(players)
	assert.Equal(t, first, second)
}

func distState(dealer int, players ...*Player) *State {
	return &State{MaxPlayers: 6, DealerSeatIndex: dealer, Players: players}
}

func TestDistributePotsSingleWinner(t *testing.T) {
	s := distState(0,
		potPlayer("a", 0, 100, false),
		potPlayer("b", 1, 100, false),
	)
	winners := DistributePots(
		[]Pot{{Amount: 200, Eligible: []string{"a", "b"}}},
		map[string]RankedHand{"a": {Rank: 1}, "b": {Rank: 500}},
		s,
	)
	assert.Equal(t, []Winner{{PlayerID: "a", Amount: 200, PotIndex: 0}}, winners)
}

func TestDistributePotsSplitWithOddChip(t *testing.T) {
	s := distState(2,
		potPlayer("a", 0, 0, false),
		potPlayer("b", 1, 0, false),
		potPlayer("c", 2, 0, false),
	)
	winners := DistributePots(
		[]Pot{{Amount: 15, Eligible: []string{"a", "b"}}},
		map[string]RankedHand{"a": {Rank: 100}, "b": {Rank: 100}},
		s,
	)
	// Seat 0 sits closest clockwise from the seat-2 button, so the odd
	// chip lands there.
	assert.Equal(t, []Winner{
		{PlayerID: "a", Amount: 8, PotIndex: 0},
		{PlayerID: "b", Amount: 7, PotIndex: 0},
	}, winners)
}

func TestDistributePotsPerPotWinners(t *testing.T) {
	s := distState(0,
		potPlayer("a", 0, 50, false),
		potPlayer("b", 1, 100, false),
		potPlayer("c", 2, 100, false),
	)
	pots := []Pot{
		{Amount: 150, Eligible: []string{"a", "b", "c"}},
		{Amount: 100, Eligible: []string{"b", "c"}},
	}
	ranks := map[string]RankedHand{
		"a": {Rank: 1},
		"b": {Rank: 300},
		"c": {Rank: 200},
	}
	winners := DistributePots(pots, ranks, s)
	assert.Equal(t, []Winner{
		{PlayerID: "a", Amount: 150, PotIndex: 0},
		{PlayerID: "c", Amount: 100, PotIndex: 1},
	}, winners)
}

func TestAwardAllPots(t *testing.T) {
	winners := AwardAllPots([]Pot{{Amount: 150}, {Amount: 60}}, "b")
	assert.Equal(t, []Winner{
		{PlayerID: "b", Amount: 150, PotIndex: 0},
		{PlayerID: "b", Amount: 60, PotIndex: 1},
	}, winners)
}
