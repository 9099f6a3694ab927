// Package replay records finished games to disk and plays them back
// for spectators, each with an independent cursor.
package replay

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/cardroomlabs/cardroom/internal/engine"
	"github.com/cardroomlabs/cardroom/internal/fileutil"
	"github.com/cardroomlabs/cardroom/internal/protocol"
)

// FileVersion is the current replay file format version.
const FileVersion = 1

const fileExt = ".replay.json"

// Entry types.
const (
	EntryEvent = "event"
	EntryChat  = "chat"
)

// Entry is one recorded moment: either an engine event paired with the
// full state as of that event, or a chat line.
type Entry struct {
	Index     int   `json:"index"`
	Timestamp int64 `json:"timestamp"` // ms since recording start
	Type      string `json:"type"`

	Event       engine.Event  `json:"event,omitempty"`
	EngineState *engine.State `json:"engineState,omitempty"`

	Chat *protocol.ChatMessagePayload `json:"chat,omitempty"`
}

func (e *Entry) UnmarshalJSON(data []byte) error {
	var aux struct {
		Index       int                          `json:"index"`
		Timestamp   int64                        `json:"timestamp"`
		Type        string                       `json:"type"`
		Event       json.RawMessage              `json:"event"`
		EngineState *engine.State                `json:"engineState"`
		Chat        *protocol.ChatMessagePayload `json:"chat"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	e.Index = aux.Index
	e.Timestamp = aux.Timestamp
	e.Type = aux.Type
	e.EngineState = aux.EngineState
	e.Chat = aux.Chat
	if len(aux.Event) > 0 {
		ev, err := engine.DecodeEvent(aux.Event)
		if err != nil {
			return err
		}
		e.Event = ev
	}
	return nil
}

// GameConfig is the static room configuration stored in the file head.
type GameConfig struct {
	GameID        string          `json:"gameId"`
	GameName      string          `json:"gameName"`
	GameType      engine.GameType `json:"gameType"`
	SmallBlind    int             `json:"smallBlindAmount"`
	BigBlind      int             `json:"bigBlindAmount"`
	MaxPlayers    int             `json:"maxPlayers"`
	StartingStack int             `json:"startingStack"`
}

// PlayerInfo is one deduplicated roster entry.
type PlayerInfo struct {
	ID          string      `json:"id"`
	DisplayName string      `json:"displayName"`
	SeatIndex   int         `json:"seatIndex"`
	Role        engine.Role `json:"role"`
}

// File is a complete serialized replay.
type File struct {
	Version    int          `json:"version"`
	GameConfig GameConfig   `json:"gameConfig"`
	Players    []PlayerInfo `json:"players"`
	Entries    []Entry      `json:"entries"`
}

// Save writes the replay atomically to dir, keyed by game id.
func (f *File) Save(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create replay dir: %w", err)
	}
	data, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("marshal replay %s: %w", f.GameConfig.GameID, err)
	}
	path := filepath.Join(dir, f.GameConfig.GameID+fileExt)
	if err := fileutil.WriteFileAtomic(path, data, 0o644); err != nil {
		return fmt.Errorf("write replay %s: %w", f.GameConfig.GameID, err)
	}
	return nil
}

// LoadFile reads and validates one replay file.
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read replay: %w", err)
	}
	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse replay %s: %w", path, err)
	}
	if f.Version != FileVersion {
		return nil, fmt.Errorf("replay %s: unsupported version %d", path, f.Version)
	}
	for i, e := range f.Entries {
		if e.Index != i {
			return nil, fmt.Errorf("replay %s: entry %d carries index %d", path, i, e.Index)
		}
	}
	return &f, nil
}

// ListDir returns the game ids with a replay file in dir.
func ListDir(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list replays: %w", err)
	}
	var ids []string
	for _, e := range entries {
		if name := e.Name(); strings.HasSuffix(name, fileExt) {
			ids = append(ids, strings.TrimSuffix(name, fileExt))
		}
	}
	return ids, nil
}
