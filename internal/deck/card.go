// Package deck provides cards and deck operations for Texas Hold'em.
//
// Cards are encoded as two-character strings: rank followed by suit,
// e.g. "Ah", "Tc", "6s". Decks are plain []Card values and every
// operation returns new slices, so callers can snapshot and clone
// game state without defensive copying.
package deck

import "fmt"

// Card is a two-character rank+suit string.
type Card string

// Ranks in ascending order. "T" is ten.
const Ranks = "23456789TJQKA"

// Suits: hearts, diamonds, clubs, spades.
const Suits = "hdcs"

// Rank returns the rank character of the card.
func (c Card) Rank() byte {
	return c[0]
}

// Suit returns the suit character of the card.
func (c Card) Suit() byte {
	return c[1]
}

// Valid reports whether c is a well-formed card.
func (c Card) Valid() bool {
	if len(c) != 2 {
		return false
	}
	return rankIndex(c[0]) >= 0 && suitIndex(c[1]) >= 0
}

// RankValue returns the numeric rank of the card, 2..14 (ace high).
func (c Card) RankValue() int {
	return rankIndex(c[0]) + 2
}

func rankIndex(r byte) int {
	for i := 0; i < len(Ranks); i++ {
		if Ranks[i] == r {
			return i
		}
	}
	return -1
}

func suitIndex(s byte) int {
	for i := 0; i < len(Suits); i++ {
		if Suits[i] == s {
			return i
		}
	}
	return -1
}

// Parse validates a card string.
func Parse(s string) (Card, error) {
	c := Card(s)
	if !c.Valid() {
		return "", fmt.Errorf("invalid card %q", s)
	}
	return c, nil
}
