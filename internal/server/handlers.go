package server

import (
	"errors"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/cardroomlabs/cardroom/internal/engine"
	"github.com/cardroomlabs/cardroom/internal/metrics"
	"github.com/cardroomlabs/cardroom/internal/protocol"
	"github.com/cardroomlabs/cardroom/internal/replay"
	"github.com/cardroomlabs/cardroom/internal/store"
)

// Handler dispatches inbound client frames. It resolves the session
// for the sending sink, then routes lobby messages itself and room
// messages into the owning room's executor.
type Handler struct {
	logger   *log.Logger
	sessions *SessionManager
	games    *GameManager
	replays  *replay.Manager
	db       *store.Store

	mu          sync.Mutex
	replayViews map[string]string
}

// NewHandler wires the dispatch layer.
func NewHandler(sessions *SessionManager, games *GameManager, replays *replay.Manager, db *store.Store, logger *log.Logger) *Handler {
	return &Handler{
		logger:      logger.WithPrefix("handler"),
		sessions:    sessions,
		games:       games,
		replays:     replays,
		db:          db,
		replayViews: make(map[string]string),
	}
}

func (h *Handler) sinkError(sink Sink, code, message string) {
	frame, err := protocol.Encode(protocol.ActionError, protocol.ErrorPayload{Code: code, Message: message})
	if err != nil {
		return
	}
	_ = sink.SendFrame(frame)
}

// HandleFrame processes one inbound frame from a sink. Every action
// except identify requires an identified session.
func (h *Handler) HandleFrame(sink Sink, data []byte) {
	env, err := protocol.DecodeEnvelope(data)
	if err != nil {
		h.sinkError(sink, protocol.CodeInvalidMessage, "malformed message")
		return
	}
	metrics.MessagesReceived.WithLabelValues(env.Action).Inc()

	if env.Action == protocol.ActionIdentify {
		h.handleIdentify(sink, env)
		return
	}

	playerID, ok := h.sessions.PlayerFor(sink)
	if !ok {
		h.sinkError(sink, protocol.CodeNotIdentified, "identify first")
		return
	}

	switch env.Action {
	case protocol.ActionListGames:
		h.sessions.Send(playerID, protocol.ActionGameList, protocol.GameListPayload{Games: h.games.List()})
	case protocol.ActionJoinGame:
		h.handleJoinGame(playerID, env)
	case protocol.ActionReady:
		if g, ok := h.roomFor(playerID); ok {
			g.Ready(playerID)
		}
	case protocol.ActionPlayerAction:
		h.handlePlayerAction(playerID, env)
	case protocol.ActionRevealCards:
		h.handleRevealCards(playerID, env)
	case protocol.ActionChat:
		h.handleChat(playerID, env)
	case protocol.ActionLeaveGame:
		h.handleLeaveGame(playerID)
	case protocol.ActionReplayControl:
		h.handleReplayControl(playerID, env)
	case protocol.ActionReplayCardVisibility:
		h.handleReplayCardVisibility(playerID, env)
	default:
		h.sessions.Send(playerID, protocol.ActionError, protocol.ErrorPayload{
			Code:    protocol.CodeInvalidMessage,
			Message: "unknown action " + env.Action,
		})
	}
}

// handleIdentify establishes or resumes an identity. A valid reconnect
// token resumes the stored player id; the token rotates on every
// successful identify so stolen tokens age out.
func (h *Handler) handleIdentify(sink Sink, env protocol.Envelope) {
	p, err := protocol.DecodePayload[protocol.IdentifyPayload](env)
	if err != nil || p.DisplayName == "" && p.ReconnectToken == "" {
		h.sinkError(sink, protocol.CodeInvalidMessage, "identify requires a display name")
		return
	}

	var (
		playerID    string
		displayName = p.DisplayName
		priorGameID string
	)
	if p.ReconnectToken != "" {
		rec, err := h.db.PlayerByToken(p.ReconnectToken)
		if errors.Is(err, store.ErrNotFound) {
			h.sinkError(sink, protocol.CodeStaleToken, "reconnect token is no longer valid")
			return
		}
		if err != nil {
			h.logger.Error("look up reconnect token", "error", err)
			h.sinkError(sink, protocol.CodeInvalidMessage, "identity lookup failed")
			return
		}
		playerID = rec.ID
		priorGameID = rec.GameID
		if displayName == "" {
			displayName = rec.DisplayName
		}
	} else {
		playerID = uuid.NewString()
	}

	token := uuid.NewString()
	if err := h.db.UpsertPlayer(store.PlayerRecord{
		ID:             playerID,
		DisplayName:    displayName,
		ReconnectToken: token,
		GameID:         priorGameID,
	}); err != nil {
		h.logger.Error("persist identity", "playerId", playerID, "error", err)
		h.sinkError(sink, protocol.CodeInvalidMessage, "identity could not be saved")
		return
	}

	h.sessions.Register(playerID, displayName, sink)

	resp := protocol.IdentifiedPayload{PlayerID: playerID, ReconnectToken: token}
	if priorGameID != "" {
		if g, ok := h.games.Get(priorGameID); ok {
			if snap := g.ClientSnapshot(playerID); snap != nil {
				h.sessions.SetGameID(playerID, priorGameID)
				g.Reconnect(playerID)
				resp.CurrentGame = snap
			}
		}
		// A seat assignment that cannot be resumed (game gone, or the
		// seat was cleared while away) is stale; drop it.
		if resp.CurrentGame == nil {
			if err := h.db.SetPlayerGame(playerID, ""); err != nil {
				h.logger.Error("clear stale seat assignment", "playerId", playerID, "error", err)
			}
		}
	}
	h.sessions.Send(playerID, protocol.ActionIdentified, resp)
	h.logger.Info("identified", "playerId", playerID, "displayName", displayName,
		"resumed", resp.CurrentGame != nil)
}

// handleJoinGame seats the player in a live room, or opens a finished
// game's replay when no live room has that id.
func (h *Handler) handleJoinGame(playerID string, env protocol.Envelope) {
	p, err := protocol.DecodePayload[protocol.JoinGamePayload](env)
	if err != nil || p.GameID == "" {
		h.sessions.Send(playerID, protocol.ActionError, protocol.ErrorPayload{
			Code: protocol.CodeInvalidMessage, Message: "joinGame requires a gameId",
		})
		return
	}

	if g, ok := h.games.Get(p.GameID); ok {
		if s, ok := h.sessions.Get(playerID); ok && s.GameID != "" && s.GameID != p.GameID {
			h.sessions.Send(playerID, protocol.ActionError, protocol.ErrorPayload{
				Code: protocol.CodeAlreadyInGame, Message: "leave your current game first",
			})
			return
		}
		role := p.Role
		if role == "" {
			role = engine.RolePlayer
		}
		name := playerID
		if s, ok := h.sessions.Get(playerID); ok {
			name = s.DisplayName
		}
		g.Join(playerID, name, role)
		return
	}

	h.openReplay(playerID, p.GameID)
}

func (h *Handler) openReplay(playerID, gameID string) {
	send := func(spectatorID string, payload protocol.ReplayStatePayload) {
		h.sessions.Send(spectatorID, protocol.ActionReplayState, payload)
	}
	inst, err := h.replays.Open(gameID, send)
	if err != nil {
		h.sessions.Send(playerID, protocol.ActionError, protocol.ErrorPayload{
			Code: protocol.CodeGameNotFound, Message: "no such game or replay",
		})
		return
	}

	h.mu.Lock()
	if prev, ok := h.replayViews[playerID]; ok && prev != gameID {
		h.replays.Release(prev, playerID)
	}
	h.replayViews[playerID] = gameID
	h.mu.Unlock()

	// Land the viewer on the first entry, paused.
	start := 0
	if err := inst.Control(playerID, protocol.ReplaySetPosition, nil, &start); err != nil {
		h.logger.Error("seed replay viewer", "gameId", gameID, "error", err)
	}
}

func (h *Handler) handlePlayerAction(playerID string, env protocol.Envelope) {
	p, err := protocol.DecodePayload[protocol.PlayerActionPayload](env)
	if err != nil {
		h.sessions.Send(playerID, protocol.ActionError, protocol.ErrorPayload{
			Code: protocol.CodeInvalidMessage, Message: "malformed playerAction",
		})
		return
	}
	if g, ok := h.roomFor(playerID); ok {
		g.SubmitAction(playerID, p.HandNumber, p.Type, p.Amount)
	}
}

func (h *Handler) handleRevealCards(playerID string, env protocol.Envelope) {
	p, err := protocol.DecodePayload[protocol.RevealCardsPayload](env)
	if err != nil {
		return
	}
	if g, ok := h.roomFor(playerID); ok {
		g.Reveal(playerID, p.HandNumber)
	}
}

func (h *Handler) handleChat(playerID string, env protocol.Envelope) {
	p, err := protocol.DecodePayload[protocol.ChatPayload](env)
	if err != nil || p.Message == "" {
		return
	}
	if g, ok := h.roomFor(playerID); ok {
		g.Chat(playerID, p.Message)
	}
}

func (h *Handler) handleLeaveGame(playerID string) {
	if g, ok := h.roomFor(playerID); ok {
		g.Leave(playerID)
		return
	}
	h.releaseReplay(playerID)
}

func (h *Handler) handleReplayControl(playerID string, env protocol.Envelope) {
	p, err := protocol.DecodePayload[protocol.ReplayControlPayload](env)
	if err != nil {
		return
	}
	inst, ok := h.replayFor(playerID)
	if !ok {
		h.sessions.Send(playerID, protocol.ActionError, protocol.ErrorPayload{
			Code: protocol.CodeGameNotFound, Message: "no replay loaded",
		})
		return
	}
	if err := inst.Control(playerID, p.Command, p.Speed, p.Position); err != nil {
		h.sessions.Send(playerID, protocol.ActionError, protocol.ErrorPayload{
			Code: protocol.CodeInvalidMessage, Message: err.Error(),
		})
	}
}

func (h *Handler) handleReplayCardVisibility(playerID string, env protocol.Envelope) {
	p, err := protocol.DecodePayload[protocol.ReplayCardVisibilityPayload](env)
	if err != nil {
		return
	}
	if inst, ok := h.replayFor(playerID); ok {
		inst.SetVisibility(playerID, p.ShowAllCards, p.PlayerVisibility)
	}
}

func (h *Handler) roomFor(playerID string) (*ActiveGame, bool) {
	s, ok := h.sessions.Get(playerID)
	if !ok || s.GameID == "" {
		h.sessions.Send(playerID, protocol.ActionError, protocol.ErrorPayload{
			Code: protocol.CodeNotInGame, Message: "join a game first",
		})
		return nil, false
	}
	g, ok := h.games.Get(s.GameID)
	if !ok {
		h.sessions.Send(playerID, protocol.ActionError, protocol.ErrorPayload{
			Code: protocol.CodeGameNotFound, Message: "game no longer exists",
		})
		return nil, false
	}
	return g, true
}

func (h *Handler) replayFor(playerID string) (*replay.Instance, bool) {
	h.mu.Lock()
	gameID, ok := h.replayViews[playerID]
	h.mu.Unlock()
	if !ok {
		return nil, false
	}
	send := func(spectatorID string, payload protocol.ReplayStatePayload) {
		h.sessions.Send(spectatorID, protocol.ActionReplayState, payload)
	}
	inst, err := h.replays.Open(gameID, send)
	if err != nil {
		return nil, false
	}
	return inst, true
}

func (h *Handler) releaseReplay(playerID string) {
	h.mu.Lock()
	gameID, ok := h.replayViews[playerID]
	delete(h.replayViews, playerID)
	h.mu.Unlock()
	if ok {
		h.replays.Release(gameID, playerID)
	}
}

// Disconnected runs the disconnect flow for a dropped sink. Players
// keep their seat; spectators and replay viewers are removed.
func (h *Handler) Disconnected(sink Sink) {
	playerID, ok := h.sessions.Disconnect(sink)
	if !ok {
		return
	}
	h.releaseReplay(playerID)
	if s, ok := h.sessions.Get(playerID); ok && s.GameID != "" {
		if g, ok := h.games.Get(s.GameID); ok {
			g.Disconnect(playerID)
		}
	}
}
