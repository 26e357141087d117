// Package engine schedules agent execution cycles. All registered
// agents share one ticker; each tick runs the active agents in bounded
// concurrent batches.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/agentfleet/agentfleet/internal/agent"
	"github.com/agentfleet/agentfleet/internal/config"
	"github.com/agentfleet/agentfleet/internal/exchange"
	"github.com/agentfleet/agentfleet/internal/metrics"
	"github.com/agentfleet/agentfleet/internal/notify"
)

// ErrAgentNotFound is returned by control operations for unknown ids.
var ErrAgentNotFound = errors.New("agent not found")

const (
	defaultTickInterval = 30 * time.Second
	defaultBatchSize    = 10
	defaultErrorBackoff = 5 * time.Second
)

// Store persists agent configurations across restarts. A nil Store
// keeps the engine fully in-memory.
type Store interface {
	SaveAgent(ctx context.Context, cfg agent.Config) error
	ListAgents(ctx context.Context, runningOnly bool) ([]agent.Config, error)
	UpdateAgentStatus(ctx context.Context, id string, running bool) error
	DeleteAgent(ctx context.Context, id string) error
	SaveMetricsSnapshot(ctx context.Context, agentID string, m agent.Metrics) error
}

// Status is a point-in-time view of the scheduler.
type Status struct {
	IsRunning       bool          `json:"is_running"`
	TotalAgents     int           `json:"total_agents"`
	RunningAgents   int           `json:"running_agents"`
	TotalExecutions int64         `json:"total_executions"`
	Uptime          time.Duration `json:"uptime"`
	StartedAt       time.Time     `json:"started_at,omitempty"`
}

// Engine owns the agent registry and the tick loop.
type Engine struct {
	cfg   config.EngineConfig
	deps  agent.Deps
	store Store
	log   zerolog.Logger

	mu        sync.RWMutex
	runtimes  map[string]*agent.Runtime
	running   bool
	startedAt time.Time
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// New creates an engine. store may be nil.
func New(cfg config.EngineConfig, deps agent.Deps, store Store) *Engine {
	if deps.Publisher == nil {
		deps.Publisher = notify.NopPublisher{}
	}
	return &Engine{
		cfg:      cfg,
		deps:     deps,
		store:    store,
		log:      config.NewLogger("engine"),
		runtimes: make(map[string]*agent.Runtime),
	}
}

// Start restores persisted agents and launches the tick loop. Calling
// Start on a running engine is a no-op.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		e.log.Debug().Msg("Engine already running")
		return nil
	}

	if err := e.restoreLocked(ctx); err != nil {
		e.mu.Unlock()
		return err
	}

	// The loop outlives the caller's context; Stop owns its lifetime.
	runCtx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	e.running = true
	e.startedAt = time.Now()

	e.wg.Add(1)
	go e.run(runCtx)
	e.mu.Unlock()

	e.publishStatus()
	e.log.Info().
		Dur("tick_interval", e.tickInterval()).
		Int("batch_size", e.batchSize()).
		Msg("Engine started")
	return nil
}

// Stop halts the tick loop and waits for the in-flight batch to drain.
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	e.running = false
	e.cancel()
	e.mu.Unlock()

	e.wg.Wait()
	e.flushMetrics()
	e.publishStatus()
	e.log.Info().Msg("Engine stopped")
}

// restoreLocked loads persisted agent configs that are not already
// registered.
func (e *Engine) restoreLocked(ctx context.Context) error {
	if e.store == nil {
		return nil
	}

	configs, err := e.store.ListAgents(ctx, false)
	if err != nil {
		return err
	}

	for _, cfg := range configs {
		if _, exists := e.runtimes[cfg.ID]; exists {
			continue
		}
		rt, err := agent.NewRuntime(cfg, e.deps)
		if err != nil {
			e.log.Error().Err(err).Str("agent_id", cfg.ID).Msg("Skipping unrestorable agent")
			continue
		}
		rt.SetRunning(cfg.IsRunning)
		e.runtimes[cfg.ID] = rt
	}

	e.log.Info().Int("agents", len(e.runtimes)).Msg("Restored persisted agents")
	return nil
}

func (e *Engine) run(ctx context.Context) {
	defer e.wg.Done()

	ticker := time.NewTicker(e.tickInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			err := e.tick(ctx)
			metrics.RecordTick(err)
			if err != nil {
				e.log.Error().Err(err).Msg("Tick failed")
				select {
				case <-ctx.Done():
					return
				case <-time.After(e.errorBackoff()):
				}
			}
		}
	}
}

// tick runs one cycle for every active agent, in batches. A batch runs
// concurrently; batches run one after another so a large fleet cannot
// stampede the market gateway.
func (e *Engine) tick(ctx context.Context) error {
	active := e.activeRuntimes()

	e.mu.RLock()
	total := len(e.runtimes)
	e.mu.RUnlock()
	metrics.SetAgentCounts(total, len(active))

	if len(active) == 0 {
		return nil
	}

	batchSize := e.batchSize()
	for start := 0; start < len(active); start += batchSize {
		if ctx.Err() != nil {
			return nil
		}

		end := start + batchSize
		if end > len(active) {
			end = len(active)
		}

		var g errgroup.Group
		for _, rt := range active[start:end] {
			rt := rt
			g.Go(func() error {
				e.runAgent(rt)
				return nil
			})
		}
		g.Wait()
	}
	return nil
}

// runAgent executes one cycle with the per-cycle deadline. The cycle
// context stands alone rather than deriving from the loop context:
// stopping the engine is an advisory flag, and an in-flight cycle
// always finishes. A failing or panicking agent never affects its
// batch mates; a panic is recorded as that agent's failed execution.
func (e *Engine) runAgent(rt *agent.Runtime) {
	agentID := rt.Config().ID

	defer func() {
		if rec := recover(); rec != nil {
			e.log.Error().Str("agent_id", agentID).Interface("panic", rec).Msg("Agent cycle panicked")
			exec := rt.RecordFailure(fmt.Sprintf("cycle panicked: %v", rec))
			metrics.RecordExecution(metrics.OutcomeFailure, exec.Duration.Seconds(), false)
		}
	}()

	cctx, cancel := context.WithTimeout(context.Background(), e.cfg.EffectiveCycleTimeout())
	defer cancel()

	exec, err := rt.RunCycle(cctx)
	metrics.RecordExecution(exec.Outcome, exec.Duration.Seconds(), exec.Decision.Fallback)
	metrics.TotalProfit.Add(exec.Profit)
	if err != nil {
		e.log.Warn().Err(err).Str("agent_id", agentID).Msg("Agent cycle failed")
	}

	if e.store != nil {
		if err := e.store.SaveMetricsSnapshot(cctx, agentID, rt.Metrics()); err != nil {
			e.log.Warn().Err(err).Str("agent_id", agentID).Msg("Failed to persist metrics snapshot")
		}
	}
}

// CreateAgent registers a new agent. The agent starts stopped unless
// its config says otherwise.
func (e *Engine) CreateAgent(ctx context.Context, cfg agent.Config) (agent.Config, error) {
	rt, err := agent.NewRuntime(cfg, e.deps)
	if err != nil {
		return agent.Config{}, err
	}

	rt.SetRunning(cfg.IsRunning)
	created := rt.Config()

	e.mu.Lock()
	if _, exists := e.runtimes[created.ID]; exists {
		e.mu.Unlock()
		return agent.Config{}, errors.New("agent id already registered")
	}
	e.runtimes[created.ID] = rt
	e.mu.Unlock()

	e.persistConfig(ctx, created)
	e.log.Info().
		Str("agent_id", created.ID).
		Str("agent_type", string(created.Type)).
		Msg("Agent created")
	return rt.Config(), nil
}

// StartAgent includes the agent in future ticks.
func (e *Engine) StartAgent(ctx context.Context, id string) error {
	rt := e.runtime(id)
	if rt == nil {
		return ErrAgentNotFound
	}
	rt.SetRunning(true)
	e.persistStatus(ctx, id, true)
	e.log.Info().Str("agent_id", id).Msg("Agent started")
	return nil
}

// StopAgent excludes the agent from future ticks. An in-flight cycle
// still finishes.
func (e *Engine) StopAgent(ctx context.Context, id string) error {
	rt := e.runtime(id)
	if rt == nil {
		return ErrAgentNotFound
	}
	rt.SetRunning(false)
	e.persistStatus(ctx, id, false)
	e.log.Info().Str("agent_id", id).Msg("Agent stopped")
	return nil
}

// RemoveAgent deletes the agent and its persisted state.
func (e *Engine) RemoveAgent(ctx context.Context, id string) error {
	e.mu.Lock()
	rt, exists := e.runtimes[id]
	if exists {
		delete(e.runtimes, id)
	}
	e.mu.Unlock()

	if !exists {
		return ErrAgentNotFound
	}
	rt.SetRunning(false)

	if e.store != nil {
		if err := e.store.DeleteAgent(ctx, id); err != nil && !errors.Is(err, ErrAgentNotFound) {
			e.log.Warn().Err(err).Str("agent_id", id).Msg("Failed to delete persisted agent")
		}
	}
	e.log.Info().Str("agent_id", id).Msg("Agent removed")
	return nil
}

// Agents lists the registered agent configs, oldest first.
func (e *Engine) Agents() []agent.Config {
	e.mu.RLock()
	defer e.mu.RUnlock()

	configs := make([]agent.Config, 0, len(e.runtimes))
	for _, rt := range e.runtimes {
		configs = append(configs, rt.Config())
	}
	sort.Slice(configs, func(i, j int) bool {
		if configs[i].CreatedAt.Equal(configs[j].CreatedAt) {
			return configs[i].ID < configs[j].ID
		}
		return configs[i].CreatedAt.Before(configs[j].CreatedAt)
	})
	return configs
}

// Agent returns one agent's config, nil when unknown.
func (e *Engine) Agent(id string) *agent.Config {
	rt := e.runtime(id)
	if rt == nil {
		return nil
	}
	cfg := rt.Config()
	return &cfg
}

// AgentMetrics returns an agent's aggregates, nil when unknown.
func (e *Engine) AgentMetrics(id string) *agent.Metrics {
	rt := e.runtime(id)
	if rt == nil {
		return nil
	}
	m := rt.Metrics()
	return &m
}

// ExecutionHistory returns an agent's retained executions, newest
// last. Unknown ids yield nil; limit <= 0 returns everything retained.
func (e *Engine) ExecutionHistory(id string, limit int) []agent.Execution {
	rt := e.runtime(id)
	if rt == nil {
		return nil
	}
	history := rt.History()
	if limit > 0 && len(history) > limit {
		history = history[len(history)-limit:]
	}
	return history
}

// AgentPortfolio returns an agent's paper account, nil when unknown.
func (e *Engine) AgentPortfolio(id string) *exchange.Portfolio {
	rt := e.runtime(id)
	if rt == nil {
		return nil
	}
	pf := rt.Portfolio()
	return &pf
}

// Status reports the scheduler state. It never fails.
func (e *Engine) Status() Status {
	e.mu.RLock()
	defer e.mu.RUnlock()

	st := Status{
		IsRunning:   e.running,
		TotalAgents: len(e.runtimes),
	}
	for _, rt := range e.runtimes {
		if rt.IsRunning() {
			st.RunningAgents++
		}
		st.TotalExecutions += rt.Metrics().TotalExecutions
	}
	if e.running {
		st.StartedAt = e.startedAt
		st.Uptime = time.Since(e.startedAt)
	}
	return st
}

func (e *Engine) runtime(id string) *agent.Runtime {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.runtimes[id]
}

func (e *Engine) activeRuntimes() []*agent.Runtime {
	e.mu.RLock()
	defer e.mu.RUnlock()

	active := make([]*agent.Runtime, 0, len(e.runtimes))
	for _, rt := range e.runtimes {
		if rt.IsRunning() {
			active = append(active, rt)
		}
	}
	sort.Slice(active, func(i, j int) bool {
		return active[i].Config().ID < active[j].Config().ID
	})
	return active
}

func (e *Engine) persistConfig(ctx context.Context, cfg agent.Config) {
	if e.store == nil {
		return
	}
	if err := e.store.SaveAgent(ctx, cfg); err != nil {
		e.log.Warn().Err(err).Str("agent_id", cfg.ID).Msg("Failed to persist agent")
	}
}

func (e *Engine) persistStatus(ctx context.Context, id string, running bool) {
	if e.store == nil {
		return
	}
	if err := e.store.UpdateAgentStatus(ctx, id, running); err != nil {
		e.log.Warn().Err(err).Str("agent_id", id).Msg("Failed to persist agent status")
	}
}

// flushMetrics writes a final snapshot for every agent on shutdown.
func (e *Engine) flushMetrics() {
	if e.store == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	e.mu.RLock()
	defer e.mu.RUnlock()
	for id, rt := range e.runtimes {
		if err := e.store.SaveMetricsSnapshot(ctx, id, rt.Metrics()); err != nil {
			e.log.Warn().Err(err).Str("agent_id", id).Msg("Failed to flush metrics snapshot")
		}
	}
}

func (e *Engine) publishStatus() {
	st := e.Status()
	e.deps.Publisher.Publish(notify.SubjectEngineStatus, st)
}

func (e *Engine) tickInterval() time.Duration {
	if e.cfg.TickInterval <= 0 {
		return defaultTickInterval
	}
	return e.cfg.TickInterval
}

func (e *Engine) batchSize() int {
	if e.cfg.BatchSize <= 0 {
		return defaultBatchSize
	}
	return e.cfg.BatchSize
}

func (e *Engine) errorBackoff() time.Duration {
	if e.cfg.ErrorBackoff <= 0 {
		return defaultErrorBackoff
	}
	return e.cfg.ErrorBackoff
}
