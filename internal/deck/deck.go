package deck

import (
	"fmt"
	rand "math/rand/v2"
)

// Size is the number of cards in a full deck.
const Size = 52

// New returns the canonical 52-card deck: every rank of hearts, then
// diamonds, clubs and spades.
func New() []Card {
	cards := make([]Card, 0, Size)
	for _, s := range Suits {
		for _, r := range Ranks {
			cards = append(cards, Card([]byte{byte(r), byte(s)}))
		}
	}
	return cards
}

// Shuffle returns a new slice containing the same cards in a
// Fisher-Yates shuffled order. The input is not modified.
func Shuffle(cards []Card, rng *rand.Rand) []Card {
	out := make([]Card, len(cards))
	copy(out, cards)
	for i := len(out) - 1; i > 0; i-- {
		j := rng.IntN(i + 1)
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// Deal removes n cards from the top of the deck, returning the dealt
// cards and the remainder. Fails if the deck is short.
func Deal(cards []Card, n int) (dealt, rest []Card, err error) {
	if n > len(cards) {
		return nil, cards, fmt.Errorf("deal %d: only %d cards remain", n, len(cards))
	}
	dealt = make([]Card, n)
	copy(dealt, cards[:n])
	rest = make([]Card, len(cards)-n)
	copy(rest, cards[n:])
	return dealt, rest, nil
}
