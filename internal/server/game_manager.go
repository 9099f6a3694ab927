package server

import (
	"encoding/json"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/cardroomlabs/cardroom/internal/engine"
	"github.com/cardroomlabs/cardroom/internal/gameid"
	"github.com/cardroomlabs/cardroom/internal/protocol"
	"github.com/cardroomlabs/cardroom/internal/store"
)

// GameManager owns the set of live rooms. It creates rooms from
// configuration, restores them from crash snapshots at boot, and
// routes lookups; everything inside a room goes through that room's
// executor.
type GameManager struct {
	deps   Deps
	logger *log.Logger

	mu    sync.Mutex
	rooms map[string]*ActiveGame
}

// NewGameManager constructs an empty manager. Call Restore, then
// CreateRoom for each configured room that was not restored.
func NewGameManager(deps Deps) *GameManager {
	return &GameManager{
		deps:   deps,
		logger: deps.Logger.WithPrefix("rooms"),
		rooms:  make(map[string]*ActiveGame),
	}
}

// Restore resurrects every room with a crash-recovery snapshot and
// returns the restored room names so configured rooms are not created
// twice.
func (m *GameManager) Restore(cfg *Config) map[string]bool {
	restored := make(map[string]bool)
	snaps, err := m.deps.Store.Snapshots()
	if err != nil {
		m.logger.Error("list snapshots", "error", err)
		return restored
	}
	for id, data := range snaps {
		var state engine.State
		if err := json.Unmarshal(data, &state); err != nil {
			m.logger.Error("decode snapshot, dropping it", "gameId", id, "error", err)
			if derr := m.deps.Store.DeleteSnapshot(id); derr != nil {
				m.logger.Error("delete bad snapshot", "gameId", id, "error", derr)
			}
			continue
		}
		opts := GameOptions{
			ID:            id,
			Name:          state.GameName,
			GameType:      state.GameType,
			SmallBlind:    state.SmallBlind,
			BigBlind:      state.BigBlind,
			MaxPlayers:    state.MaxPlayers,
			StartingStack: state.StartingStack,
			Visibility:    engine.VisibilityShowdown,
			ActionTimeout: cfg.ActionTimeout(),
			HandDelay:     cfg.HandDelay(),
			MinReady:      cfg.Server.MinReadyPlayers,
		}
		if rs := cfg.roomByName(state.GameName); rs != nil {
			opts.Visibility = engine.Visibility(rs.SpectatorVisibility)
		}
		g := RestoreActiveGame(&state, opts, m.deps)
		m.mu.Lock()
		m.rooms[id] = g
		m.mu.Unlock()
		restored[state.GameName] = true
		m.logger.Info("restored room from snapshot",
			"gameId", id, "name", state.GameName, "hand", state.HandNumber)
	}
	return restored
}

func (c *Config) roomByName(name string) *RoomSettings {
	for i := range c.Rooms {
		if c.Rooms[i].Name == name {
			return &c.Rooms[i]
		}
	}
	return nil
}

// CreateRoom creates and registers a fresh room.
func (m *GameManager) CreateRoom(rs RoomSettings, cfg *Config) *ActiveGame {
	opts := GameOptions{
		ID:            gameid.New(),
		Name:          rs.Name,
		GameType:      engine.GameType(rs.GameType),
		SmallBlind:    rs.SmallBlind,
		BigBlind:      rs.BigBlind,
		MaxPlayers:    rs.MaxPlayers,
		StartingStack: rs.StartingStack,
		Visibility:    engine.Visibility(rs.SpectatorVisibility),
		ActionTimeout: cfg.ActionTimeout(),
		HandDelay:     cfg.HandDelay(),
		MinReady:      cfg.Server.MinReadyPlayers,
	}
	g := NewActiveGame(opts, m.deps)

	cfgJSON, err := json.Marshal(map[string]any{
		"smallBlindAmount": opts.SmallBlind,
		"bigBlindAmount":   opts.BigBlind,
		"maxPlayers":       opts.MaxPlayers,
		"startingStack":    opts.StartingStack,
	})
	if err != nil {
		m.logger.Error("marshal room config", "gameId", opts.ID, "error", err)
	}
	if err := m.deps.Store.SaveGame(store.GameRecord{
		ID:       opts.ID,
		Name:     opts.Name,
		GameType: string(opts.GameType),
		Status:   string(StatusWaiting),
		Config:   cfgJSON,
	}); err != nil {
		m.logger.Error("persist game record", "gameId", opts.ID, "error", err)
	}

	m.mu.Lock()
	m.rooms[opts.ID] = g
	m.mu.Unlock()
	m.logger.Info("created room", "gameId", opts.ID, "name", rs.Name,
		"blinds", rs.SmallBlind, "maxPlayers", rs.MaxPlayers)
	return g
}

// ForceStartGame begins a hand in a room regardless of ready flags.
func (m *GameManager) ForceStartGame(gameID string) bool {
	g, ok := m.Get(gameID)
	if ok {
		g.ForceStart()
	}
	return ok
}

// RemovePlayer unseats a player from a room.
func (m *GameManager) RemovePlayer(gameID, playerID string) bool {
	g, ok := m.Get(gameID)
	if ok {
		g.Leave(playerID)
	}
	return ok
}

// SetSpectatorVisibility changes a room's hole-card policy for
// subsequent broadcasts.
func (m *GameManager) SetSpectatorVisibility(gameID string, mode engine.Visibility) bool {
	g, ok := m.Get(gameID)
	if ok {
		g.SetVisibility(mode)
	}
	return ok
}

// AddBot seats an in-process bot in a room and starts it.
func (m *GameManager) AddBot(name, gameID string, handler *Handler) (*Bot, bool) {
	g, ok := m.Get(gameID)
	if !ok {
		return nil, false
	}
	bot := NewBot(name, g.ID(), handler, m.deps.Logger)
	bot.Start()
	return bot, true
}

// Get returns the room with the given id.
func (m *GameManager) Get(gameID string) (*ActiveGame, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.rooms[gameID]
	return g, ok
}

// List returns a lobby summary for every room.
func (m *GameManager) List() []protocol.GameSummary {
	m.mu.Lock()
	rooms := make([]*ActiveGame, 0, len(m.rooms))
	for _, g := range m.rooms {
		rooms = append(rooms, g)
	}
	m.mu.Unlock()

	out := make([]protocol.GameSummary, 0, len(rooms))
	for _, g := range rooms {
		out = append(out, g.Summary())
	}
	return out
}

// Shutdown stops every room executor.
func (m *GameManager) Shutdown() {
	m.mu.Lock()
	rooms := make([]*ActiveGame, 0, len(m.rooms))
	for _, g := range m.rooms {
		rooms = append(rooms, g)
	}
	m.rooms = make(map[string]*ActiveGame)
	m.mu.Unlock()

	for _, g := range rooms {
		g.Stop()
	}
}
