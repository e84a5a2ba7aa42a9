package server

import (
	"context"
	"embed"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/rs/zerolog"

	"math-io-server/internal/game"
	"math-io-server/internal/room"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

const (
	defaultResultsLimit = 20
	maxResultsLimit     = 100
	recordQueueSize     = 256
)

// ResultArchive stores finished rounds. Room state itself is never persisted.
type ResultArchive interface {
	// RecordRound queues res without blocking the caller.
	RecordRound(res room.RoundResult)
	Recent(ctx context.Context, limit int) ([]RoundResultView, error)
	Health(ctx context.Context) string
	Close()
}

// ResultStore archives round results in Postgres. Writes happen on a
// background worker so rooms never wait on the database.
type ResultStore struct {
	pool  *pgxpool.Pool
	log   zerolog.Logger
	queue chan room.RoundResult
	wg    sync.WaitGroup

	// mu guards closed and every send on queue.
	mu     sync.Mutex
	closed bool
}

// OpenResultStore connects, applies migrations and starts the writer.
func OpenResultStore(ctx context.Context, databaseURL string, log zerolog.Logger) (*ResultStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to reach database: %w", err)
	}

	s := &ResultStore{
		pool:  pool,
		log:   log.With().Str("component", "results").Logger(),
		queue: make(chan room.RoundResult, recordQueueSize),
	}
	if err := s.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	s.wg.Add(1)
	go s.writer()
	return s, nil
}

// Migrate applies the embedded goose migrations.
func (s *ResultStore) Migrate(ctx context.Context) error {
	db := stdlib.OpenDBFromPool(s.pool)
	defer db.Close()

	goose.SetBaseFS(embedMigrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	s.log.Info().Msg("database migrations applied")
	return nil
}

// RecordRound drops res once Close has started. Room timers can still end a
// round while the server shuts down.
func (s *ResultStore) RecordRound(res room.RoundResult) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		s.log.Debug().Str("room_id", res.RoomID).Msg("result archive closed, dropping round result")
		return
	}
	select {
	case s.queue <- res:
	default:
		s.log.Warn().Str("room_id", res.RoomID).Msg("result queue full, dropping round result")
	}
}

func (s *ResultStore) writer() {
	defer s.wg.Done()
	for res := range s.queue {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if _, err := s.Save(ctx, res); err != nil {
			s.log.Error().Err(err).Str("room_id", res.RoomID).Msg("failed to save round result")
		}
		cancel()
	}
}

// Save inserts res and returns its id.
func (s *ResultStore) Save(ctx context.Context, res room.RoundResult) (int64, error) {
	var startedAt *time.Time
	if !res.StartedAt.IsZero() {
		startedAt = &res.StartedAt
	}
	var winner *string
	if res.Over.WinnerID != "" {
		winner = &res.Over.WinnerID
	}
	standings := res.Over.Standings
	if standings == nil {
		standings = []game.Player{}
	}

	query := `
		INSERT INTO round_results (room_id, game_id, mode, seed, reason, winner_id, score, standings, started_at, ended_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id
	`

	var id int64
	err := s.pool.QueryRow(ctx, query,
		res.RoomID,
		res.GameID,
		res.Mode,
		res.Seed,
		string(res.Over.Reason),
		winner,
		res.Over.Score,
		standings,
		startedAt,
		res.EndedAt,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to save result for room %s: %w", res.RoomID, err)
	}
	return id, nil
}

// Recent returns the latest results, newest first.
func (s *ResultStore) Recent(ctx context.Context, limit int) ([]RoundResultView, error) {
	limit = clampLimit(limit)

	query := `
		SELECT id, room_id, game_id, mode, seed, reason, COALESCE(winner_id, ''), score, standings,
		       COALESCE(started_at, ended_at), ended_at
		FROM round_results
		ORDER BY ended_at DESC, id DESC
		LIMIT $1
	`

	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query results: %w", err)
	}
	defer rows.Close()

	results := make([]RoundResultView, 0, limit)
	for rows.Next() {
		var v RoundResultView
		var reason string
		if err := rows.Scan(&v.ID, &v.RoomID, &v.GameID, &v.Mode, &v.Seed, &reason, &v.WinnerID,
			&v.Score, &v.Standings, &v.StartedAt, &v.EndedAt); err != nil {
			return nil, fmt.Errorf("failed to scan result row: %w", err)
		}
		v.Reason = game.Reason(reason)
		results = append(results, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating result rows: %w", err)
	}
	return results, nil
}

func (s *ResultStore) Health(ctx context.Context) string {
	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	if err := s.pool.Ping(ctx); err != nil {
		return "down"
	}
	return "up"
}

// Close drains queued results and closes the pool. Later calls are no-ops.
func (s *ResultStore) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.queue)
	s.mu.Unlock()

	s.wg.Wait()
	if s.pool != nil {
		s.pool.Close()
	}
}

// disabledArchive is used when no database is configured.
type disabledArchive struct{}

func (disabledArchive) RecordRound(room.RoundResult) {}

func (disabledArchive) Recent(context.Context, int) ([]RoundResultView, error) {
	return []RoundResultView{}, nil
}

func (disabledArchive) Health(context.Context) string { return "disabled" }
func (disabledArchive) Close()                        {}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultResultsLimit
	}
	return min(limit, maxResultsLimit)
}
