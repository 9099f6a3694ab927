package engine

import (
	"fmt"

	holdem "github.com/chehsunliu/poker"

	"github.com/cardroomlabs/cardroom/internal/deck"
)

// RankedHand is the evaluator's verdict on a 7-card hand. Rank values
// compare across hands: lower is stronger.
type RankedHand struct {
	Rank        int32  `json:"rank"`
	Description string `json:"description"`
}

// Beats reports whether h is strictly stronger than other.
func (h RankedHand) Beats(other RankedHand) bool { return h.Rank < other.Rank }

// Ties reports whether h and other are equal in strength.
func (h RankedHand) Ties(other RankedHand) bool { return h.Rank == other.Rank }

// Evaluate ranks the best 5-card hand from two hole cards and the
// community cards.
func Evaluate(hole, community []deck.Card) (RankedHand, error) {
	if len(hole) != 2 {
		return RankedHand{}, fmt.Errorf("evaluate: want 2 hole cards, got %d", len(hole))
	}
	cards := make([]holdem.Card, 0, len(hole)+len(community))
	for _, c := range append(append([]deck.Card{}, hole...), community...) {
		if !c.Valid() {
			return RankedHand{}, fmt.Errorf("evaluate: invalid card %q", c)
		}
		cards = append(cards, holdem.NewCard(string(c)))
	}
	rank := holdem.Evaluate(cards)
	return RankedHand{Rank: rank, Description: holdem.RankString(rank)}, nil
}
