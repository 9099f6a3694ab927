// Package protocol defines the JSON wire messages exchanged over a
// client WebSocket. Every frame is one Envelope; payload shapes are
// plain structs so both server and client code marshal them directly.
package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/cardroomlabs/cardroom/internal/engine"
)

// Client to server actions.
const (
	ActionIdentify             = "identify"
	ActionListGames            = "listGames"
	ActionJoinGame             = "joinGame"
	ActionReady                = "ready"
	ActionPlayerAction         = "playerAction"
	ActionRevealCards          = "revealCards"
	ActionChat                 = "chat"
	ActionLeaveGame            = "leaveGame"
	ActionReplayControl        = "replayControl"
	ActionReplayCardVisibility = "replayCardVisibility"
)

// Server to client actions.
const (
	ActionIdentified  = "identified"
	ActionGameList    = "gameList"
	ActionGameJoined  = "gameJoined"
	ActionGameState   = "gameState"
	ActionTimeWarning = "timeWarning"
	ActionGameOver    = "gameOver"
	ActionChatMessage = "chatMessage"
	ActionError       = "error"
	ActionReplayState = "replayState"
)

// Error codes carried in error payloads.
const (
	CodeInvalidAction  = "INVALID_ACTION"
	CodeOutOfTurn      = "OUT_OF_TURN"
	CodeInvalidAmount  = "INVALID_AMOUNT"
	CodeNotInGame      = "NOT_IN_GAME"
	CodeGameNotFound   = "GAME_NOT_FOUND"
	CodeGameFull       = "GAME_FULL"
	CodeAlreadyInGame  = "ALREADY_IN_GAME"
	CodeNotIdentified  = "NOT_IDENTIFIED"
	CodeInvalidMessage = "INVALID_MESSAGE"
	CodeStaleToken     = "STALE_TOKEN"
)

// Replay control commands.
const (
	ReplayPlay           = "play"
	ReplayPause          = "pause"
	ReplayStepForward    = "step_forward"
	ReplayStepBackward   = "step_backward"
	ReplayJumpRoundStart = "jump_round_start"
	ReplayJumpNextRound  = "jump_next_round"
	ReplaySetSpeed       = "set_speed"
	ReplaySetPosition    = "set_position"
)

// Envelope is the single frame shape in both directions.
type Envelope struct {
	Action  string          `json:"action"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Encode wraps a payload in an envelope and marshals the whole frame.
func Encode(action string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", action, err)
	}
	return json.Marshal(Envelope{Action: action, Payload: raw})
}

// DecodeEnvelope parses one inbound frame. The payload stays raw for
// the handler to decode once the action is known.
func DecodeEnvelope(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	if env.Action == "" {
		return Envelope{}, fmt.Errorf("decode envelope: missing action")
	}
	return env, nil
}

// DecodePayload unmarshals an envelope's payload into a typed struct.
func DecodePayload[T any](env Envelope) (T, error) {
	var out T
	if len(env.Payload) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(env.Payload, &out); err != nil {
		return out, fmt.Errorf("decode %s payload: %w", env.Action, err)
	}
	return out, nil
}

type IdentifyPayload struct {
	DisplayName    string `json:"displayName"`
	ReconnectToken string `json:"reconnectToken,omitempty"`
}

type JoinGamePayload struct {
	GameID string      `json:"gameId"`
	Role   engine.Role `json:"role,omitempty"`
}

type PlayerActionPayload struct {
	HandNumber int               `json:"handNumber"`
	Type       engine.ActionType `json:"type"`
	Amount     int               `json:"amount,omitempty"`
}

type RevealCardsPayload struct {
	HandNumber int `json:"handNumber"`
}

type ChatPayload struct {
	Message string `json:"message"`
}

type ReplayControlPayload struct {
	Command  string   `json:"command"`
	Speed    *float64 `json:"speed,omitempty"`
	Position *int     `json:"position,omitempty"`
}

type ReplayCardVisibilityPayload struct {
	ShowAllCards     *bool           `json:"showAllCards,omitempty"`
	PlayerVisibility map[string]bool `json:"playerVisibility,omitempty"`
}

type IdentifiedPayload struct {
	PlayerID       string             `json:"playerId"`
	ReconnectToken string             `json:"reconnectToken"`
	CurrentGame    *GameJoinedPayload `json:"currentGame,omitempty"`
}

// GameSummary is one row in the lobby listing.
type GameSummary struct {
	GameID      string          `json:"gameId"`
	GameName    string          `json:"gameName"`
	GameType    engine.GameType `json:"gameType"`
	Status      string          `json:"status"`
	PlayerCount int             `json:"playerCount"`
	MaxPlayers  int             `json:"maxPlayers"`
	SmallBlind  int             `json:"smallBlindAmount"`
	BigBlind    int             `json:"bigBlindAmount"`
}

type GameListPayload struct {
	Games []GameSummary `json:"games"`
}

type GameJoinedPayload struct {
	GameState  engine.ClientGameState `json:"gameState"`
	HandEvents engine.EventList       `json:"handEvents,omitempty"`
}

// ActionRequest tells the active player their options and clock.
type ActionRequest struct {
	ValidActions []engine.ValidAction `json:"validActions"`
	TimeToActMs  int64                `json:"timeToActMs"`
}

// GameStatePayload is the central broadcast: one event paired with the
// room state as of that event, plus an action request only when the
// recipient is the active player.
type GameStatePayload struct {
	GameState     engine.ClientGameState `json:"gameState"`
	Event         engine.Event           `json:"event"`
	ActionRequest *ActionRequest         `json:"actionRequest,omitempty"`
}

func (p *GameStatePayload) UnmarshalJSON(data []byte) error {
	var aux struct {
		GameState     engine.ClientGameState `json:"gameState"`
		Event         json.RawMessage        `json:"event"`
		ActionRequest *ActionRequest         `json:"actionRequest"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	p.GameState = aux.GameState
	p.ActionRequest = aux.ActionRequest
	if len(aux.Event) > 0 {
		ev, err := engine.DecodeEvent(aux.Event)
		if err != nil {
			return err
		}
		p.Event = ev
	}
	return nil
}

type TimeWarningPayload struct {
	RemainingMs int64 `json:"remainingMs"`
}

// Standing is one player's final result when a room completes.
type Standing struct {
	PlayerID    string `json:"playerId"`
	DisplayName string `json:"displayName"`
	Stack       int    `json:"stack"`
	Rank        int    `json:"rank"`
}

type GameOverPayload struct {
	GameID    string     `json:"gameId"`
	Reason    string     `json:"reason"`
	Standings []Standing `json:"standings"`
}

type ChatMessagePayload struct {
	PlayerID    string      `json:"playerId"`
	DisplayName string      `json:"displayName"`
	Message     string      `json:"message"`
	Timestamp   int64       `json:"timestamp"`
	Role        engine.Role `json:"role,omitempty"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

type ReplayStatePayload struct {
	Position     int                    `json:"position"`
	TotalEntries int                    `json:"totalEntries"`
	IsPlaying    bool                   `json:"isPlaying"`
	Speed        float64                `json:"speed"`
	GameState    engine.ClientGameState `json:"gameState"`
	Event        engine.Event           `json:"event,omitempty"`
	Chat         *ChatMessagePayload    `json:"chat,omitempty"`
	HandNumber   int                    `json:"handNumber"`
	Stage        engine.Stage           `json:"stage"`
}

func (p *ReplayStatePayload) UnmarshalJSON(data []byte) error {
	type alias ReplayStatePayload
	var aux struct {
		alias
		Event json.RawMessage `json:"event"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*p = ReplayStatePayload(aux.alias)
	if len(aux.Event) > 0 {
		ev, err := engine.DecodeEvent(aux.Event)
		if err != nil {
			return err
		}
		p.Event = ev
	}
	return nil
}

// ErrorFrom maps an engine validation error onto a wire error payload.
func ErrorFrom(err error) ErrorPayload {
	if engErr, ok := err.(*engine.Error); ok {
		return ErrorPayload{Code: engErr.Code, Message: engErr.Message}
	}
	return ErrorPayload{Code: CodeInvalidMessage, Message: err.Error()}
}
