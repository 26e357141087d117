package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/agentfleet/agentfleet/internal/agent"
)

// SaveAgent inserts or updates an agent configuration.
func (s *Store) SaveAgent(ctx context.Context, cfg agent.Config) error {
	personality, err := json.Marshal(cfg.Personality)
	if err != nil {
		return fmt.Errorf("failed to marshal personality: %w", err)
	}
	limits, err := json.Marshal(cfg.Limits)
	if err != nil {
		return fmt.Errorf("failed to marshal limits: %w", err)
	}

	query := `
		INSERT INTO agents (
			id, owner_id, name, agent_type, personality, limits,
			max_budget, symbols, is_running, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			owner_id = EXCLUDED.owner_id,
			name = EXCLUDED.name,
			agent_type = EXCLUDED.agent_type,
			personality = EXCLUDED.personality,
			limits = EXCLUDED.limits,
			max_budget = EXCLUDED.max_budget,
			symbols = EXCLUDED.symbols,
			is_running = EXCLUDED.is_running,
			updated_at = NOW()
	`

	createdAt := cfg.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err = s.pool.Exec(ctx, query,
		cfg.ID,
		cfg.OwnerID,
		cfg.Name,
		string(cfg.Type),
		personality,
		limits,
		cfg.MaxBudget,
		cfg.Symbols,
		cfg.IsRunning,
		createdAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save agent %s: %w", cfg.ID, err)
	}
	return nil
}

// GetAgent loads one agent configuration.
func (s *Store) GetAgent(ctx context.Context, id string) (*agent.Config, error) {
	query := `
		SELECT id, owner_id, name, agent_type, personality, limits,
		       max_budget, symbols, is_running, created_at
		FROM agents
		WHERE id = $1
	`

	cfg, err := scanAgent(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load agent %s: %w", id, err)
	}
	return cfg, nil
}

// ListAgents loads agent configurations, optionally only the running
// ones.
func (s *Store) ListAgents(ctx context.Context, runningOnly bool) ([]agent.Config, error) {
	query := `
		SELECT id, owner_id, name, agent_type, personality, limits,
		       max_budget, symbols, is_running, created_at
		FROM agents
	`
	if runningOnly {
		query += ` WHERE is_running = TRUE`
	}
	query += ` ORDER BY created_at ASC`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list agents: %w", err)
	}
	defer rows.Close()

	var configs []agent.Config
	for rows.Next() {
		cfg, err := scanAgent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan agent row: %w", err)
		}
		configs = append(configs, *cfg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read agent rows: %w", err)
	}
	return configs, nil
}

// UpdateAgentStatus flips the persisted running flag.
func (s *Store) UpdateAgentStatus(ctx context.Context, id string, running bool) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE agents SET is_running = $2, updated_at = NOW() WHERE id = $1`,
		id, running,
	)
	if err != nil {
		return fmt.Errorf("failed to update agent %s status: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteAgent removes an agent and its metric snapshots.
func (s *Store) DeleteAgent(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM agents WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete agent %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SaveMetricsSnapshot appends a point-in-time copy of an agent's
// aggregates.
func (s *Store) SaveMetricsSnapshot(ctx context.Context, agentID string, m agent.Metrics) error {
	query := `
		INSERT INTO agent_metrics (
			agent_id, total_executions, successful, failed,
			total_profit, avg_duration_ms, success_rate, last_execution
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	var lastExecution *time.Time
	if !m.LastExecution.IsZero() {
		lastExecution = &m.LastExecution
	}

	_, err := s.pool.Exec(ctx, query,
		agentID,
		m.TotalExecutions,
		m.Successful,
		m.Failed,
		m.TotalProfit,
		float64(m.AvgDuration.Milliseconds()),
		m.SuccessRate,
		lastExecution,
	)
	if err != nil {
		return fmt.Errorf("failed to save metrics for agent %s: %w", agentID, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAgent(row rowScanner) (*agent.Config, error) {
	var (
		cfg         agent.Config
		agentType   string
		personality []byte
		limits      []byte
	)

	err := row.Scan(
		&cfg.ID,
		&cfg.OwnerID,
		&cfg.Name,
		&agentType,
		&personality,
		&limits,
		&cfg.MaxBudget,
		&cfg.Symbols,
		&cfg.IsRunning,
		&cfg.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	cfg.Type = agent.Type(agentType)
	if err := json.Unmarshal(personality, &cfg.Personality); err != nil {
		return nil, fmt.Errorf("corrupt personality for agent %s: %w", cfg.ID, err)
	}
	if err := json.Unmarshal(limits, &cfg.Limits); err != nil {
		return nil, fmt.Errorf("corrupt limits for agent %s: %w", cfg.ID, err)
	}
	return &cfg, nil
}
