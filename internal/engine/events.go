package engine

import (
	"encoding/json"
	"fmt"

	"github.com/cardroomlabs/cardroom/internal/deck"
)

// Event type names as they appear on the wire and in replay files.
const (
	EventHandStart      = "HAND_START"
	EventBlindsPosted   = "BLINDS_POSTED"
	EventDeal           = "DEAL"
	EventFlop           = "FLOP"
	EventTurn           = "TURN"
	EventRiver          = "RIVER"
	EventPlayerAction   = "PLAYER_ACTION"
	EventPlayerTimeout  = "PLAYER_TIMEOUT"
	EventShowdown       = "SHOWDOWN"
	EventHandEnd        = "HAND_END"
	EventPlayerRevealed = "PLAYER_REVEALED"
	EventPlayerJoined   = "PLAYER_JOINED"
	EventPlayerLeft     = "PLAYER_LEFT"
)

// Event is a single engine-emitted game event. Concrete event structs
// carry their type name in a Type field so they serialize directly.
type Event interface {
	EventType() string
}

// ActionDetail describes a player action inside an event payload.
type ActionDetail struct {
	Type   ActionType `json:"type"`
	Amount int        `json:"amount,omitempty"`
}

// BlindPost records one posted blind.
type BlindPost struct {
	PlayerID string `json:"playerId"`
	Amount   int    `json:"amount"`
}

// ShowdownResult is one player's revealed hand at showdown.
type ShowdownResult struct {
	PlayerID        string      `json:"playerId"`
	HoleCards       []deck.Card `json:"holeCards"`
	HandRank        int32       `json:"handRank"`
	HandDescription string      `json:"handDescription"`
}

// Winner is one pot payout. A player winning two pots yields two entries.
type Winner struct {
	PlayerID string `json:"playerId"`
	Amount   int    `json:"amount"`
	PotIndex int    `json:"potIndex"`
}

type HandStartEvent struct {
	Type            string `json:"type"`
	HandNumber      int    `json:"handNumber"`
	DealerSeatIndex int    `json:"dealerSeatIndex"`
}

func NewHandStartEvent(handNumber, dealerSeat int) *HandStartEvent {
	return &HandStartEvent{Type: EventHandStart, HandNumber: handNumber, DealerSeatIndex: dealerSeat}
}

func (e *HandStartEvent) EventType() string { return EventHandStart }

type BlindsPostedEvent struct {
	Type       string    `json:"type"`
	SmallBlind BlindPost `json:"smallBlind"`
	BigBlind   BlindPost `json:"bigBlind"`
}

func NewBlindsPostedEvent(sb, bb BlindPost) *BlindsPostedEvent {
	return &BlindsPostedEvent{Type: EventBlindsPosted, SmallBlind: sb, BigBlind: bb}
}

func (e *BlindsPostedEvent) EventType() string { return EventBlindsPosted }

type DealEvent struct {
	Type string `json:"type"`
}

func NewDealEvent() *DealEvent { return &DealEvent{Type: EventDeal} }

func (e *DealEvent) EventType() string { return EventDeal }

type FlopEvent struct {
	Type  string      `json:"type"`
	Cards []deck.Card `json:"cards"`
}

func NewFlopEvent(cards []deck.Card) *FlopEvent {
	return &FlopEvent{Type: EventFlop, Cards: cards}
}

func (e *FlopEvent) EventType() string { return EventFlop }

type TurnEvent struct {
	Type string    `json:"type"`
	Card deck.Card `json:"card"`
}

func NewTurnEvent(card deck.Card) *TurnEvent { return &TurnEvent{Type: EventTurn, Card: card} }

func (e *TurnEvent) EventType() string { return EventTurn }

type RiverEvent struct {
	Type string    `json:"type"`
	Card deck.Card `json:"card"`
}

func NewRiverEvent(card deck.Card) *RiverEvent { return &RiverEvent{Type: EventRiver, Card: card} }

func (e *RiverEvent) EventType() string { return EventRiver }

type PlayerActionEvent struct {
	Type     string       `json:"type"`
	PlayerID string       `json:"playerId"`
	Action   ActionDetail `json:"action"`
}

func NewPlayerActionEvent(playerID string, action ActionDetail) *PlayerActionEvent {
	return &PlayerActionEvent{Type: EventPlayerAction, PlayerID: playerID, Action: action}
}

func (e *PlayerActionEvent) EventType() string { return EventPlayerAction }

type PlayerTimeoutEvent struct {
	Type          string       `json:"type"`
	PlayerID      string       `json:"playerId"`
	DefaultAction ActionDetail `json:"defaultAction"`
}

func NewPlayerTimeoutEvent(playerID string, action ActionDetail) *PlayerTimeoutEvent {
	return &PlayerTimeoutEvent{Type: EventPlayerTimeout, PlayerID: playerID, DefaultAction: action}
}

func (e *PlayerTimeoutEvent) EventType() string { return EventPlayerTimeout }

type ShowdownEvent struct {
	Type    string           `json:"type"`
	Results []ShowdownResult `json:"results"`
}

func NewShowdownEvent(results []ShowdownResult) *ShowdownEvent {
	return &ShowdownEvent{Type: EventShowdown, Results: results}
}

func (e *ShowdownEvent) EventType() string { return EventShowdown }

type HandEndEvent struct {
	Type    string   `json:"type"`
	Winners []Winner `json:"winners"`
}

func NewHandEndEvent(winners []Winner) *HandEndEvent {
	return &HandEndEvent{Type: EventHandEnd, Winners: winners}
}

func (e *HandEndEvent) EventType() string { return EventHandEnd }

type PlayerRevealedEvent struct {
	Type      string      `json:"type"`
	PlayerID  string      `json:"playerId"`
	HoleCards []deck.Card `json:"holeCards"`
}

func NewPlayerRevealedEvent(playerID string, holeCards []deck.Card) *PlayerRevealedEvent {
	return &PlayerRevealedEvent{Type: EventPlayerRevealed, PlayerID: playerID, HoleCards: holeCards}
}

func (e *PlayerRevealedEvent) EventType() string { return EventPlayerRevealed }

type PlayerJoinedEvent struct {
	Type        string `json:"type"`
	PlayerID    string `json:"playerId"`
	DisplayName string `json:"displayName"`
	SeatIndex   int    `json:"seatIndex"`
	Role        Role   `json:"role,omitempty"`
}

func NewPlayerJoinedEvent(playerID, displayName string, seatIndex int, role Role) *PlayerJoinedEvent {
	return &PlayerJoinedEvent{Type: EventPlayerJoined, PlayerID: playerID, DisplayName: displayName, SeatIndex: seatIndex, Role: role}
}

func (e *PlayerJoinedEvent) EventType() string { return EventPlayerJoined }

type PlayerLeftEvent struct {
	Type     string `json:"type"`
	PlayerID string `json:"playerId"`
}

func NewPlayerLeftEvent(playerID string) *PlayerLeftEvent {
	return &PlayerLeftEvent{Type: EventPlayerLeft, PlayerID: playerID}
}

func (e *PlayerLeftEvent) EventType() string { return EventPlayerLeft }

// DecodeEvent unmarshals a serialized event by peeking at its type field.
func DecodeEvent(raw json.RawMessage) (Event, error) {
	var peek struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &peek); err != nil {
		return nil, fmt.Errorf("decode event: %w", err)
	}

	var ev Event
	switch peek.Type {
	case EventHandStart:
		ev = &HandStartEvent{}
	case EventBlindsPosted:
		ev = &BlindsPostedEvent{}
	case EventDeal:
		ev = &DealEvent{}
	case EventFlop:
		ev = &FlopEvent{}
	case EventTurn:
		ev = &TurnEvent{}
	case EventRiver:
		ev = &RiverEvent{}
	case EventPlayerAction:
		ev = &PlayerActionEvent{}
	case EventPlayerTimeout:
		ev = &PlayerTimeoutEvent{}
	case EventShowdown:
		ev = &ShowdownEvent{}
	case EventHandEnd:
		ev = &HandEndEvent{}
	case EventPlayerRevealed:
		ev = &PlayerRevealedEvent{}
	case EventPlayerJoined:
		ev = &PlayerJoinedEvent{}
	case EventPlayerLeft:
		ev = &PlayerLeftEvent{}
	default:
		return nil, fmt.Errorf("decode event: unknown type %q", peek.Type)
	}

	if err := json.Unmarshal(raw, ev); err != nil {
		return nil, fmt.Errorf("decode %s event: %w", peek.Type, err)
	}
	return ev, nil
}

// EventList is a slice of events that round-trips through JSON.
type EventList []Event

func (l *EventList) UnmarshalJSON(data []byte) error {
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return err
	}
	out := make(EventList, 0, len(raws))
	for _, raw := range raws {
		ev, err := DecodeEvent(raw)
		if err != nil {
			return err
		}
		out = append(out, ev)
	}
	*l = out
	return nil
}
