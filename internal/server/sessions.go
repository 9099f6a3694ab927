package server

import (
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"

	"github.com/cardroomlabs/cardroom/internal/protocol"
)

// Sink receives outbound frames for one client. WebSocket connections
// and in-process bots both implement it.
type Sink interface {
	// SendFrame enqueues one frame; it must never block on the peer.
	SendFrame(data []byte) error
	// CloseSend tears the sink down; duplicate calls are harmless.
	CloseSend()
}

// Session binds a player identity to its single live sink.
type Session struct {
	PlayerID    string
	DisplayName string
	GameID      string
	LastSeen    time.Time

	sink Sink
}

// SessionManager maps players to sinks and back. One lock guards both
// maps; lookups happen once per inbound message, so contention is low.
type SessionManager struct {
	logger *log.Logger
	clock  quartz.Clock

	mu       sync.Mutex
	byPlayer map[string]*Session
	bySink   map[Sink]string
}

// NewSessionManager creates an empty registry.
func NewSessionManager(clock quartz.Clock, logger *log.Logger) *SessionManager {
	return &SessionManager{
		logger:   logger.WithPrefix("sessions"),
		clock:    clock,
		byPlayer: make(map[string]*Session),
		bySink:   make(map[Sink]string),
	}
}

// Register binds a player to a sink. A player has at most one socket:
// an existing sink is closed and replaced, and the room binding
// survives so a reconnect lands back in the same game.
func (m *SessionManager) Register(playerID, displayName string, sink Sink) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if old, ok := m.byPlayer[playerID]; ok && old.sink != nil {
		if old.sink != sink {
			m.logger.Info("superseding session", "playerId", playerID)
			delete(m.bySink, old.sink)
			old.sink.CloseSend()
		}
		old.DisplayName = displayName
		old.LastSeen = m.clock.Now()
		old.sink = sink
	} else {
		m.byPlayer[playerID] = &Session{
			PlayerID:    playerID,
			DisplayName: displayName,
			LastSeen:    m.clock.Now(),
			sink:        sink,
		}
	}
	m.bySink[sink] = playerID
}

// Disconnect drops the binding for a sink and returns the player id it
// carried. A superseded socket no longer owns its player and returns
// ok=false.
func (m *SessionManager) Disconnect(sink Sink) (playerID string, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	playerID, ok = m.bySink[sink]
	if !ok {
		return "", false
	}
	delete(m.bySink, sink)
	if s, exists := m.byPlayer[playerID]; exists && s.sink == sink {
		s.sink = nil
	}
	return playerID, true
}

// PlayerFor resolves a sink to its player id.
func (m *SessionManager) PlayerFor(sink Sink) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.bySink[sink]
	return id, ok
}

// Send encodes and enqueues one message for a player. Messages for
// players with no live sink are dropped silently.
func (m *SessionManager) Send(playerID, action string, payload any) {
	frame, err := protocol.Encode(action, payload)
	if err != nil {
		m.logger.Error("encode outbound message", "action", action, "error", err)
		return
	}

	m.mu.Lock()
	s, ok := m.byPlayer[playerID]
	var sink Sink
	if ok {
		sink = s.sink
	}
	m.mu.Unlock()

	if sink == nil {
		return
	}
	if err := sink.SendFrame(frame); err != nil {
		m.logger.Debug("dropping frame for unwritable sink", "playerId", playerID)
	}
}

// SetGameID updates a player's room binding.
func (m *SessionManager) SetGameID(playerID, gameID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.byPlayer[playerID]; ok {
		s.GameID = gameID
	}
}

// Get returns a copy of a player's session.
func (m *SessionManager) Get(playerID string) (Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.byPlayer[playerID]; ok {
		out := *s
		out.sink = nil
		return out, true
	}
	return Session{}, false
}

// Connected reports whether a player currently has a live sink.
func (m *SessionManager) Connected(playerID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.byPlayer[playerID]
	return ok && s.sink != nil
}
