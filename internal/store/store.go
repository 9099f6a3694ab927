// Package store persists identities, rooms, hand history and crash
// recovery snapshots in a single SQLite database.
package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("store: not found")

// Store wraps the SQLite connection. Safe for concurrent use; SQLite
// serializes writers internally.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and ensures the schema.
// Use ":memory:" for tests.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// A single connection keeps :memory: databases coherent and avoids
	// SQLITE_BUSY under concurrent room writers.
	db.SetMaxOpenConns(1)
	if err := createTables(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func createTables(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS players (
			id TEXT PRIMARY KEY,
			display_name TEXT NOT NULL,
			reconnect_token TEXT NOT NULL,
			game_id TEXT,
			last_seen TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS games (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			game_type TEXT NOT NULL,
			status TEXT NOT NULL,
			config TEXT NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS snapshots (
			game_id TEXT PRIMARY KEY,
			state TEXT NOT NULL,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS hands (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			game_id TEXT NOT NULL,
			hand_number INTEGER NOT NULL,
			events TEXT NOT NULL,
			winners TEXT NOT NULL,
			completed_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			UNIQUE (game_id, hand_number)
		)`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

// PlayerRecord is one persisted identity.
type PlayerRecord struct {
	ID             string
	DisplayName    string
	ReconnectToken string
	GameID         string
	LastSeen       time.Time
}

// UpsertPlayer stores an identity, replacing the token and name on
// conflict. Every successful identify rotates the token through here.
func (s *Store) UpsertPlayer(p PlayerRecord) error {
	_, err := s.db.Exec(`
		INSERT INTO players (id, display_name, reconnect_token, game_id, last_seen)
		VALUES (?, ?, ?, NULLIF(?, ''), CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET
			display_name = excluded.display_name,
			reconnect_token = excluded.reconnect_token,
			last_seen = CURRENT_TIMESTAMP
	`, p.ID, p.DisplayName, p.ReconnectToken, p.GameID)
	if err != nil {
		return fmt.Errorf("upsert player %s: %w", p.ID, err)
	}
	return nil
}

// Player fetches one identity by id.
func (s *Store) Player(id string) (PlayerRecord, error) {
	var p PlayerRecord
	var gameID sql.NullString
	err := s.db.QueryRow(`
		SELECT id, display_name, reconnect_token, game_id, last_seen
		FROM players WHERE id = ?
	`, id).Scan(&p.ID, &p.DisplayName, &p.ReconnectToken, &gameID, &p.LastSeen)
	if errors.Is(err, sql.ErrNoRows) {
		return PlayerRecord{}, ErrNotFound
	}
	if err != nil {
		return PlayerRecord{}, fmt.Errorf("load player %s: %w", id, err)
	}
	p.GameID = gameID.String
	return p, nil
}

// PlayerByToken fetches an identity by its current reconnect token.
func (s *Store) PlayerByToken(token string) (PlayerRecord, error) {
	var p PlayerRecord
	var gameID sql.NullString
	err := s.db.QueryRow(`
		SELECT id, display_name, reconnect_token, game_id, last_seen
		FROM players WHERE reconnect_token = ?
	`, token).Scan(&p.ID, &p.DisplayName, &p.ReconnectToken, &gameID, &p.LastSeen)
	if errors.Is(err, sql.ErrNoRows) {
		return PlayerRecord{}, ErrNotFound
	}
	if err != nil {
		return PlayerRecord{}, fmt.Errorf("load player by token: %w", err)
	}
	p.GameID = gameID.String
	return p, nil
}

// SetPlayerGame binds or clears a player's room assignment.
func (s *Store) SetPlayerGame(playerID, gameID string) error {
	_, err := s.db.Exec(
		`UPDATE players SET game_id = NULLIF(?, ''), last_seen = CURRENT_TIMESTAMP WHERE id = ?`,
		gameID, playerID)
	if err != nil {
		return fmt.Errorf("set player %s game: %w", playerID, err)
	}
	return nil
}

// GameRecord is one persisted room.
type GameRecord struct {
	ID       string
	Name     string
	GameType string
	Status   string
	Config   json.RawMessage
}

// SaveGame inserts or replaces a room row.
func (s *Store) SaveGame(g GameRecord) error {
	_, err := s.db.Exec(`
		INSERT INTO games (id, name, game_type, status, config)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			game_type = excluded.game_type,
			status = excluded.status,
			config = excluded.config
	`, g.ID, g.Name, g.GameType, g.Status, string(g.Config))
	if err != nil {
		return fmt.Errorf("save game %s: %w", g.ID, err)
	}
	return nil
}

// SetGameStatus updates a room's lifecycle status.
func (s *Store) SetGameStatus(gameID, status string) error {
	res, err := s.db.Exec(`UPDATE games SET status = ? WHERE id = ?`, status, gameID)
	if err != nil {
		return fmt.Errorf("set game %s status: %w", gameID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Games lists all persisted rooms.
func (s *Store) Games() ([]GameRecord, error) {
	rows, err := s.db.Query(`SELECT id, name, game_type, status, config FROM games ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list games: %w", err)
	}
	defer rows.Close()

	var out []GameRecord
	for rows.Next() {
		var g GameRecord
		var config string
		if err := rows.Scan(&g.ID, &g.Name, &g.GameType, &g.Status, &config); err != nil {
			return nil, fmt.Errorf("scan game row: %w", err)
		}
		g.Config = json.RawMessage(config)
		out = append(out, g)
	}
	return out, rows.Err()
}

// SaveSnapshot replaces the single crash-recovery snapshot for a room.
func (s *Store) SaveSnapshot(gameID string, state []byte) error {
	_, err := s.db.Exec(`
		INSERT INTO snapshots (game_id, state, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(game_id) DO UPDATE SET
			state = excluded.state,
			updated_at = CURRENT_TIMESTAMP
	`, gameID, string(state))
	if err != nil {
		return fmt.Errorf("save snapshot %s: %w", gameID, err)
	}
	return nil
}

// Snapshot loads a room's snapshot.
func (s *Store) Snapshot(gameID string) ([]byte, error) {
	var state string
	err := s.db.QueryRow(`SELECT state FROM snapshots WHERE game_id = ?`, gameID).Scan(&state)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load snapshot %s: %w", gameID, err)
	}
	return []byte(state), nil
}

// DeleteSnapshot removes a completed room's snapshot.
func (s *Store) DeleteSnapshot(gameID string) error {
	_, err := s.db.Exec(`DELETE FROM snapshots WHERE game_id = ?`, gameID)
	if err != nil {
		return fmt.Errorf("delete snapshot %s: %w", gameID, err)
	}
	return nil
}

// Snapshots returns every stored snapshot, for restart recovery.
func (s *Store) Snapshots() (map[string][]byte, error) {
	rows, err := s.db.Query(`SELECT game_id, state FROM snapshots`)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]byte)
	for rows.Next() {
		var gameID, state string
		if err := rows.Scan(&gameID, &state); err != nil {
			return nil, fmt.Errorf("scan snapshot row: %w", err)
		}
		out[gameID] = []byte(state)
	}
	return out, rows.Err()
}

// HandRecord is one completed hand's history row.
type HandRecord struct {
	GameID      string
	HandNumber  int
	Events      json.RawMessage
	Winners     json.RawMessage
	CompletedAt time.Time
}

// RecordHand appends a completed hand to the history.
func (s *Store) RecordHand(h HandRecord) error {
	_, err := s.db.Exec(`
		INSERT INTO hands (game_id, hand_number, events, winners)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(game_id, hand_number) DO UPDATE SET
			events = excluded.events,
			winners = excluded.winners
	`, h.GameID, h.HandNumber, string(h.Events), string(h.Winners))
	if err != nil {
		return fmt.Errorf("record hand %s/%d: %w", h.GameID, h.HandNumber, err)
	}
	return nil
}

// HandHistory returns a room's hands in hand-number order.
func (s *Store) HandHistory(gameID string) ([]HandRecord, error) {
	rows, err := s.db.Query(`
		SELECT game_id, hand_number, events, winners, completed_at
		FROM hands WHERE game_id = ? ORDER BY hand_number
	`, gameID)
	if err != nil {
		return nil, fmt.Errorf("load hand history %s: %w", gameID, err)
	}
	defer rows.Close()

	var out []HandRecord
	for rows.Next() {
		var h HandRecord
		var events, winners string
		if err := rows.Scan(&h.GameID, &h.HandNumber, &events, &winners, &h.CompletedAt); err != nil {
			return nil, fmt.Errorf("scan hand row: %w", err)
		}
		h.Events = json.RawMessage(events)
		h.Winners = json.RawMessage(winners)
		out = append(out, h)
	}
	return out, rows.Err()
}
