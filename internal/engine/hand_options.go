package engine

import "github.com/cardroomlabs/cardroom/internal/deck"

type handConfig struct {
	deckOverride []deck.Card
}

// HandOption customizes StartHand.
type HandOption func(*handConfig)

// WithDeck replaces the shuffled deck with a fixed card order, for
// deterministic tests and rigged scenarios.
func WithDeck(cards []deck.Card) HandOption {
	return func(cfg *handConfig) {
		cfg.deckOverride = append([]deck.Card(nil), cards...)
	}
}
