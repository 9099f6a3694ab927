package replay

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
)

// Manager loads replay files from a directory on demand and shares one
// Instance per game across its viewers.
type Manager struct {
	dir    string
	clock  quartz.Clock
	logger *log.Logger

	mu        sync.Mutex
	instances map[string]*Instance
}

// NewManager creates a manager over a replay directory.
func NewManager(dir string, clock quartz.Clock, logger *log.Logger) *Manager {
	return &Manager{
		dir:       dir,
		clock:     clock,
		logger:    logger.WithPrefix("replay"),
		instances: make(map[string]*Instance),
	}
}

// List returns the game ids with a stored replay.
func (m *Manager) List() ([]string, error) {
	return ListDir(m.dir)
}

// Open returns the shared instance for a recorded game, loading the
// file on first use.
func (m *Manager) Open(gameID string, send Sender) (*Instance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if in, ok := m.instances[gameID]; ok {
		return in, nil
	}
	file, err := LoadFile(filepath.Join(m.dir, gameID+fileExt))
	if err != nil {
		return nil, fmt.Errorf("open replay %s: %w", gameID, err)
	}
	m.logger.Info("loaded replay", "gameId", gameID, "entries", len(file.Entries))
	in := NewInstance(m.clock, file, send)
	m.instances[gameID] = in
	return in, nil
}

// Release drops one viewer; the instance unloads when none remain.
func (m *Manager) Release(gameID, spectatorID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	in, ok := m.instances[gameID]
	if !ok {
		return
	}
	in.RemoveViewer(spectatorID)
	if in.ViewerCount() == 0 {
		delete(m.instances, gameID)
	}
}
