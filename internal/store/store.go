// Package store persists agent configurations and metric snapshots in
// PostgreSQL. The engine works without it; a nil *Store disables
// persistence.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/agentfleet/agentfleet/internal/config"
)

// ErrNotFound is returned when an agent id has no row.
var ErrNotFound = errors.New("agent not found")

// PoolInterface defines the pool operations the store needs, so tests
// can substitute a mock pool.
type PoolInterface interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

// Store wraps the PostgreSQL connection pool.
type Store struct {
	pool PoolInterface
	log  zerolog.Logger
}

// New creates a store on an existing pool.
func New(pool PoolInterface) *Store {
	return &Store{
		pool: pool,
		log:  config.NewLogger("store"),
	}
}

// Connect opens a connection pool and verifies connectivity.
func Connect(ctx context.Context, dsn string) (*Store, error) {
	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	poolCfg.MaxConns = 10
	poolCfg.MinConns = 2
	poolCfg.MaxConnLifetime = time.Hour
	poolCfg.MaxConnIdleTime = 30 * time.Minute
	poolCfg.HealthCheckPeriod = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := New(pool)
	s.log.Info().Msg("Database connection pool created successfully")
	return s, nil
}

// Close closes the underlying pool when the store owns one.
func (s *Store) Close() {
	if pool, ok := s.pool.(*pgxpool.Pool); ok && pool != nil {
		pool.Close()
		s.log.Info().Msg("Database connection pool closed")
	}
}

// Health checks database connectivity.
func (s *Store) Health(ctx context.Context) error {
	if pool, ok := s.pool.(*pgxpool.Pool); ok {
		return pool.Ping(ctx)
	}
	return nil
}

const schema = `
CREATE TABLE IF NOT EXISTS agents (
	id          TEXT PRIMARY KEY,
	owner_id    TEXT NOT NULL DEFAULT '',
	name        TEXT NOT NULL,
	agent_type  TEXT NOT NULL,
	personality JSONB NOT NULL DEFAULT '{}'::jsonb,
	limits      JSONB NOT NULL DEFAULT '{}'::jsonb,
	max_budget  DOUBLE PRECISION NOT NULL DEFAULT 0,
	symbols     TEXT[] NOT NULL DEFAULT '{}',
	is_running  BOOLEAN NOT NULL DEFAULT FALSE,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS agent_metrics (
	id               BIGSERIAL PRIMARY KEY,
	agent_id         TEXT NOT NULL REFERENCES agents(id) ON DELETE CASCADE,
	total_executions BIGINT NOT NULL,
	successful       BIGINT NOT NULL,
	failed           BIGINT NOT NULL,
	total_profit     DOUBLE PRECISION NOT NULL,
	avg_duration_ms  DOUBLE PRECISION NOT NULL,
	success_rate     DOUBLE PRECISION NOT NULL,
	last_execution   TIMESTAMPTZ,
	recorded_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_agent_metrics_agent_id
	ON agent_metrics (agent_id, recorded_at DESC);
`

// Migrate creates the schema when missing.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	s.log.Info().Msg("Schema is up to date")
	return nil
}
