package store

import (
	"sync"

	"github.com/charmbracelet/log"
)

// SnapshotWriter serializes snapshot writes onto one background
// goroutine so room executors never block on disk I/O. Writes per room
// coalesce: only the newest pending state is written.
type SnapshotWriter struct {
	store  *Store
	logger *log.Logger

	mu      sync.Mutex
	pending map[string][]byte
	wake    chan struct{}
	closed  bool
	done    chan struct{}
}

// NewSnapshotWriter starts the writer goroutine.
func NewSnapshotWriter(store *Store, logger *log.Logger) *SnapshotWriter {
	w := &SnapshotWriter{
		store:   store,
		logger:  logger.WithPrefix("snapshots"),
		pending: make(map[string][]byte),
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	go w.run()
	return w
}

// Enqueue schedules a snapshot write, replacing any pending state for
// the same room. Never blocks.
func (w *SnapshotWriter) Enqueue(gameID string, state []byte) {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.pending[gameID] = state
	w.mu.Unlock()

	select {
	case w.wake <- struct{}{}:
	default:
	}
}

// Close drains pending writes and stops the writer.
func (w *SnapshotWriter) Close() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	w.mu.Unlock()

	select {
	case w.wake <- struct{}{}:
	default:
	}
	<-w.done
}

func (w *SnapshotWriter) run() {
	defer close(w.done)
	for {
		w.mu.Lock()
		batch := w.pending
		w.pending = make(map[string][]byte)
		closed := w.closed
		w.mu.Unlock()

		for gameID, state := range batch {
			if err := w.store.SaveSnapshot(gameID, state); err != nil {
				w.logger.Error("snapshot write failed", "gameId", gameID, "error", err)
			}
		}
		if closed {
			return
		}
		<-w.wake
	}
}
