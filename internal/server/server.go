package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/gorilla/websocket"

	"github.com/cardroomlabs/cardroom/internal/metrics"
	"github.com/cardroomlabs/cardroom/internal/randutil"
	"github.com/cardroomlabs/cardroom/internal/replay"
	"github.com/cardroomlabs/cardroom/internal/store"
)

// Server assembles the whole process: persistence, sessions, rooms,
// replays and the WebSocket endpoint.
type Server struct {
	cfg    *Config
	logger *log.Logger

	db        *store.Store
	snapshots *store.SnapshotWriter
	sessions  *SessionManager
	games     *GameManager
	replays   *replay.Manager
	handler   *Handler
	bots      []*Bot

	upgrader websocket.Upgrader
	httpSrv  *http.Server
}

// New builds a server from configuration. Rooms with crash snapshots
// are restored; the remaining configured rooms are created fresh, and
// configured bots are seated.
func New(cfg *Config, logger *log.Logger) (*Server, error) {
	db, err := store.Open(cfg.Server.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	clock := quartz.NewReal()
	snapshots := store.NewSnapshotWriter(db, logger)
	sessions := NewSessionManager(clock, logger)

	deps := Deps{
		Clock:     clock,
		RNG:       randutil.NewFromTime(),
		Logger:    logger,
		Sessions:  sessions,
		Store:     db,
		Snapshots: snapshots,
		ReplayDir: cfg.Server.ReplayDir,
	}
	games := NewGameManager(deps)
	restored := games.Restore(cfg)
	byName := make(map[string]*ActiveGame)
	for _, rs := range cfg.Rooms {
		if restored[rs.Name] {
			continue
		}
		byName[rs.Name] = games.CreateRoom(rs, cfg)
	}

	replays := replay.NewManager(cfg.Server.ReplayDir, clock, logger)
	handler := NewHandler(sessions, games, replays, db, logger)

	s := &Server{
		cfg:       cfg,
		logger:    logger.WithPrefix("server"),
		db:        db,
		snapshots: snapshots,
		sessions:  sessions,
		games:     games,
		replays:   replays,
		handler:   handler,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}

	for _, bs := range cfg.Bots {
		for _, roomName := range bs.Rooms {
			g, ok := byName[roomName]
			if !ok {
				s.logger.Warn("bot configured for unknown room", "bot", bs.Name, "room", roomName)
				continue
			}
			if bot, ok := games.AddBot(bs.Name, g.ID(), handler); ok {
				s.bots = append(s.bots, bot)
			}
		}
	}

	return s, nil
}

// ListenAndServe runs the HTTP server until the context is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/health", s.handleHealth)
	mux.Handle("/metrics", metrics.Handler())

	s.httpSrv = &http.Server{
		Addr:    s.cfg.ListenAddress(),
		Handler: mux,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", s.cfg.ListenAddress())
		errCh <- s.httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	case <-ctx.Done():
		return s.Shutdown()
	}
}

// Shutdown stops accepting connections, halts every room and flushes
// pending snapshots.
func (s *Server) Shutdown() error {
	s.logger.Info("shutting down")

	if s.httpSrv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpSrv.Shutdown(ctx); err != nil {
			s.logger.Error("http shutdown", "error", err)
		}
	}

	for _, b := range s.bots {
		b.CloseSend()
	}
	s.games.Shutdown()
	s.snapshots.Close()
	return s.db.Close()
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("upgrade connection", "error", err)
		return
	}
	NewConnection(conn, s.handler, s.logger).Start()
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprint(w, "OK")
}
