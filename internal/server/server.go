package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"math-io-server/internal/config"
)

const cleanupInterval = 30 * time.Second

type Server struct {
	cfg       *config.Config
	log       zerolog.Logger
	rooms     *Registry
	conns     *ConnectionManager
	router    *Router
	limiter   *RateLimiter
	archive   ResultArchive
	startedAt time.Time

	stop     chan struct{}
	stopOnce sync.Once
}

// NewServer wires the server from cfg. With DATABASE_URL set, the result
// archive is opened and migrated first.
func NewServer(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*Server, *http.Server, error) {
	var archive ResultArchive = disabledArchive{}
	if cfg.DatabaseURL != "" {
		store, err := OpenResultStore(ctx, cfg.DatabaseURL, log)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open result store: %w", err)
		}
		archive = store
	} else {
		log.Info().Msg("DATABASE_URL not set, round results will not be archived")
	}

	s := newServer(cfg, log, archive)
	go s.cleanupTask()

	httpServer := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           s.RegisterRoutes(),
		IdleTimeout:       time.Minute,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s, httpServer, nil
}

func newServer(cfg *config.Config, log zerolog.Logger, archive ResultArchive) *Server {
	rooms := NewRegistry()
	conns := NewConnectionManager(cfg.Limits.WriteTimeout, log)

	return &Server{
		cfg:     cfg,
		log:     log,
		rooms:   rooms,
		conns:   conns,
		archive: archive,
		router: NewRouter(rooms, conns, archive, RouterConfig{
			CountdownDelay:     cfg.Rooms.CountdownDelay,
			DefaultMaxPlayers:  cfg.Rooms.DefaultMaxPlayers,
			DefaultDuration:    cfg.Rooms.DefaultDuration,
			StrictMoves:        cfg.Rooms.StrictRushMoves,
			GeneratorStepLimit: cfg.Rooms.GeneratorStepLimit,
		}, log),
		limiter:   NewRateLimiter(cfg.Limits.MessagesPerSecond, cfg.Limits.Burst),
		startedAt: time.Now(),
		stop:      make(chan struct{}),
	}
}

// cleanupTask reaps rooms that were created but stayed empty.
func (s *Server) cleanupTask() {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.router.ReapIdle(s.cfg.Rooms.EmptyRoomTTL)
		}
	}
}

// Shutdown closes every client connection and flushes the result archive.
func (s *Server) Shutdown(ctx context.Context) error {
	s.stopOnce.Do(func() { close(s.stop) })

	s.log.Info().Int("connections", s.conns.Count()).Int("rooms", s.rooms.Count()).Msg("closing client connections")
	s.conns.CloseAll("Server shutting down")

	done := make(chan struct{})
	go func() {
		s.archive.Close()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("result archive did not close in time: %w", ctx.Err())
	}
}
