package deck

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardroomlabs/cardroom/internal/randutil"
)

func TestNewDeckHas52UniqueCards(t *testing.T) {
	cards := New()
	require.Len(t, cards, Size)

	seen := make(map[Card]bool)
	for _, c := range cards {
		require.True(t, c.Valid(), "card %q should be valid", c)
		require.False(t, seen[c], "card %q appears twice", c)
		seen[c] = true
	}
}

func TestShufflePreservesMultiset(t *testing.T) {
	original := New()
	shuffled := Shuffle(original, randutil.New(42))

	require.Len(t, shuffled, Size)
	counts := make(map[Card]int)
	for _, c := range shuffled {
		counts[c]++
	}
	for _, c := range original {
		assert.Equal(t, 1, counts[c])
	}

	// Input must be untouched.
	assert.Equal(t, New(), original)
}

func TestShuffleDeterministicWithSeed(t *testing.T) {
	a := Shuffle(New(), randutil.New(7))
	b := Shuffle(New(), randutil.New(7))
	assert.Equal(t, a, b)
}

func TestDeal(t *testing.T) {
	cards := New()
	dealt, rest, err := Deal(cards, 2)
	require.NoError(t, err)
	assert.Equal(t, cards[:2], dealt)
	assert.Len(t, rest, Size-2)
	assert.Equal(t, cards[2:], rest)
}

func TestDealTooMany(t *testing.T) {
	_, _, err := Deal(New()[:3], 4)
	require.Error(t, err)
}

func TestCardAccessors(t *testing.T) {
	c := Card("Ah")
	assert.Equal(t, byte('A'), c.Rank())
	assert.Equal(t, byte('h'), c.Suit())
	assert.Equal(t, 14, c.RankValue())
	assert.Equal(t, 2, Card("2s").RankValue())
}

func TestParse(t *testing.T) {
	for _, good := range []string{"Ah", "Tc", "6s", "2d"} {
		_, err := Parse(good)
		assert.NoError(t, err, good)
	}
	for _, bad := range []string{"", "A", "1h", "Ax", "10c", "ah"} {
		_, err := Parse(bad)
		assert.Error(t, err, bad)
	}
}
