package agent

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/agentfleet/agentfleet/internal/config"
	"github.com/agentfleet/agentfleet/internal/exchange"
	"github.com/agentfleet/agentfleet/internal/market"
	"github.com/agentfleet/agentfleet/internal/memory"
	"github.com/agentfleet/agentfleet/internal/notify"
	"github.com/agentfleet/agentfleet/internal/oracle"
	"github.com/agentfleet/agentfleet/internal/risk"
	"github.com/agentfleet/agentfleet/internal/strategy"
)

const (
	candleInterval = "1h"

	promptLearnings = 5
	promptOutcomes  = 10
)

// Deps bundles the shared services a runtime needs.
type Deps struct {
	Gateway   market.Gateway
	Oracle    oracle.Oracle
	Publisher notify.Publisher

	EngineCfg   config.EngineConfig
	ExchangeCfg config.ExchangeConfig
	MarketCfg   config.MarketConfig
}

// Runtime executes one agent's decision cycles. The engine guarantees
// cycles for an agent never overlap, so only the metrics and history
// need the mutex.
type Runtime struct {
	cfg        Config
	deps       Deps
	exchange   *exchange.PaperExchange
	strategies []strategy.Strategy
	mem        *memory.Memory
	logger     zerolog.Logger
	rng        *rand.Rand

	mu      sync.RWMutex
	metrics Metrics
	history []Execution
	running bool
}

// NewRuntime builds a runtime for an agent config. The paper account
// is seeded fresh; strategies come from the personality's preferences
// or its style default.
func NewRuntime(cfg Config, deps Deps) (*Runtime, error) {
	if cfg.ID == "" {
		cfg.ID = uuid.New().String()
	}
	if cfg.Type == "" {
		cfg.Type = TypeTrading
	}
	if cfg.CreatedAt.IsZero() {
		cfg.CreatedAt = time.Now()
	}
	if len(cfg.Symbols) == 0 {
		cfg.Symbols = []string{"BTCUSDT", "ETHUSDT"}
	}
	if cfg.Limits.MaxPositionSize == 0 && cfg.Limits.MaxOpenPositions == 0 {
		allowed := cfg.Limits.AllowedSymbols
		cfg.Limits = risk.DefaultLimits(cfg.Personality.RiskTier())
		cfg.Limits.AllowedSymbols = allowed
	}
	if len(cfg.Limits.AllowedSymbols) == 0 {
		cfg.Limits.AllowedSymbols = cfg.Symbols
	}
	if deps.Gateway == nil {
		return nil, errors.New("market gateway is required")
	}
	if deps.Oracle == nil {
		return nil, errors.New("oracle is required")
	}
	if deps.Publisher == nil {
		deps.Publisher = notify.NopPublisher{}
	}

	names := cfg.Personality.PreferredStrategies
	if len(names) == 0 {
		names = strategy.ForStyle(cfg.Personality.TradingStyle)
	}
	tier := cfg.Personality.RiskTier()
	strategies := make([]strategy.Strategy, 0, len(names))
	for _, name := range names {
		s, err := strategy.New(name, strategy.DefaultConfig(name, tier))
		if err != nil {
			return nil, fmt.Errorf("agent %s: %w", cfg.ID, err)
		}
		strategies = append(strategies, s)
	}

	exchangeCfg := deps.ExchangeCfg
	if cfg.MaxBudget > 0 {
		exchangeCfg.InitialCapital = cfg.MaxBudget
	}

	h := fnv.New64a()
	h.Write([]byte(cfg.ID))

	return &Runtime{
		cfg:        cfg,
		deps:       deps,
		exchange:   exchange.NewPaperExchange(exchangeCfg, cfg.Limits, cfg.ID),
		strategies: strategies,
		mem:        memory.New(deps.EngineCfg.HistoryLimit, deps.EngineCfg.LearningsLimit),
		logger:     config.NewAgentLogger(cfg.ID, string(cfg.Type)),
		rng:        rand.New(rand.NewSource(int64(h.Sum64()))),
	}, nil
}

// Config returns a copy of the agent's configuration.
func (r *Runtime) Config() Config {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cfg := r.cfg
	cfg.IsRunning = r.running
	return cfg
}

// SetRunning flips the agent's running flag.
func (r *Runtime) SetRunning(running bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.running = running
}

// IsRunning reports whether the agent participates in engine ticks.
func (r *Runtime) IsRunning() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.running
}

// Metrics returns a snapshot of the agent's aggregates.
func (r *Runtime) Metrics() Metrics {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.metrics
}

// History returns the retained executions, oldest first.
func (r *Runtime) History() []Execution {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Execution, len(r.history))
	copy(out, r.history)
	return out
}

// Portfolio exposes the agent's paper account snapshot.
func (r *Runtime) Portfolio() exchange.Portfolio {
	return r.exchange.Portfolio()
}

// RunCycle executes one full decision cycle: gather, signal, decide,
// adjust, act, record. Every failure path still produces a recorded
// execution; the returned error mirrors Execution.Err for the engine's
// logs.
func (r *Runtime) RunCycle(ctx context.Context) (Execution, error) {
	start := time.Now()

	exec := Execution{
		ID:        uuid.New().String(),
		AgentID:   r.cfg.ID,
		Timestamp: start,
	}

	// Step 1: market context.
	snapshots := r.gatherMarket(ctx)
	if len(snapshots) == 0 {
		exec.Decision = *oracle.FallbackDecision(string(r.cfg.Type), "no market data")
		return r.resolve(exec, OutcomeFailure, 0, "no market data available", start), errors.New("no market data available")
	}

	prices := make(map[string]float64, len(snapshots))
	for _, snap := range snapshots {
		prices[snap.Ticker.Symbol] = snap.Ticker.Price
	}
	r.exchange.MarkPrices(prices)
	portfolio := r.exchange.Portfolio()

	// Step 2: strategy signals above the personality threshold.
	signals := r.runStrategies(snapshots)

	// Step 3: one oracle call over the rendered context.
	decision := r.decide(ctx, snapshots, portfolio, signals)

	// Step 4: personality adjustments.
	r.applyPersonality(decision, portfolio, prices)

	// Step 5: resolve the action.
	outcome, profit, errMsg := r.act(decision)

	exec.Decision = *decision

	// Step 6: record, learn, publish.
	result := r.resolve(exec, outcome, profit, errMsg, start)
	r.learn(result, snapshots)
	r.deps.Publisher.Publish(notify.ExecutionSubject(r.cfg.ID), result)

	if errMsg != "" {
		return result, errors.New(errMsg)
	}
	return result, nil
}

// RecordFailure appends a synthesized failed execution outside the
// normal cycle path, so crashes caught by the scheduler still show up
// in this agent's history and aggregates.
func (r *Runtime) RecordFailure(reason string) Execution {
	start := time.Now()
	exec := Execution{
		ID:        uuid.New().String(),
		AgentID:   r.cfg.ID,
		Timestamp: start,
		Decision:  *oracle.FallbackDecision(string(r.cfg.Type), reason),
	}
	return r.resolve(exec, OutcomeFailure, 0, reason, start)
}

// gatherMarket builds one snapshot per configured symbol. Failed
// symbols are skipped.
func (r *Runtime) gatherMarket(ctx context.Context) []market.Snapshot {
	candleLimit := r.deps.MarketCfg.CandleLimit
	if candleLimit <= 0 {
		candleLimit = 100
	}

	snapshots := make([]market.Snapshot, 0, len(r.cfg.Symbols))
	for _, symbol := range r.cfg.Symbols {
		snap, err := market.BuildSnapshot(ctx, r.deps.Gateway, symbol, candleInterval, candleLimit)
		if err != nil {
			r.logger.Warn().Err(err).Str("symbol", symbol).Msg("Skipping symbol without market data")
			continue
		}
		snapshots = append(snapshots, *snap)
	}
	return snapshots
}

// runStrategies collects signals and discards anything below the
// personality's confidence threshold or without direction.
func (r *Runtime) runStrategies(snapshots []market.Snapshot) []strategy.Signal {
	var signals []strategy.Signal
	for _, snap := range snapshots {
		for _, s := range r.strategies {
			sig := s.Analyze(snap.Ticker.Symbol, snap)
			if sig.Action == strategy.ActionHold {
				continue
			}
			if sig.Confidence < r.cfg.Personality.ConfidenceThreshold {
				continue
			}
			signals = append(signals, sig)
		}
	}
	return signals
}

func (r *Runtime) decide(ctx context.Context, snapshots []market.Snapshot, portfolio exchange.Portfolio, signals []strategy.Signal) *oracle.Decision {
	req := oracle.Request{
		Profile: oracle.Profile{
			Name:                r.cfg.Name,
			AgentType:           string(r.cfg.Type),
			TradingStyle:        r.cfg.Personality.TradingStyle,
			RiskTolerance:       r.cfg.Personality.RiskTolerance,
			Aggression:          r.cfg.Personality.Aggression,
			AnalyticalDepth:     r.cfg.Personality.AnalyticalDepth,
			ConfidenceThreshold: r.cfg.Personality.ConfidenceThreshold,
		},
		Market:    snapshots,
		Portfolio: portfolio,
		Signals:   signals,
		Learnings: r.mem.RecentLearnings(promptLearnings),
		Outcomes:  r.mem.RecentOutcomes(promptOutcomes),
	}

	decision, err := r.deps.Oracle.Decide(ctx, req)
	if err != nil || decision == nil {
		r.logger.Warn().Err(err).Msg("Oracle call failed, using fallback decision")
		return oracle.FallbackDecision(string(r.cfg.Type), "oracle call failed")
	}
	return decision
}

// applyPersonality adjusts oracle output for the agent's style:
// conservative agents trim confidence and halve the position budget,
// aggressive agents boost confidence and use it fully.
func (r *Runtime) applyPersonality(d *oracle.Decision, portfolio exchange.Portfolio, prices map[string]float64) {
	maxPct := r.cfg.Limits.MaxPositionSize

	switch r.cfg.Personality.TradingStyle {
	case StyleConservative:
		d.Confidence *= 0.8
		maxPct /= 2
	case StyleAggressive:
		d.Confidence = math.Min(100, d.Confidence*1.2)
	}

	trade, ok := d.Trade()
	if !ok || d.Action == strategy.ActionHold {
		return
	}

	price := prices[trade.Symbol]
	if price <= 0 || maxPct <= 0 {
		return
	}

	maxNotional := portfolio.TotalValue * maxPct / 100
	if trade.Quantity <= 0 {
		// Oracle left sizing to the runtime: scale the budget by
		// confidence.
		trade.Quantity = maxNotional * (d.Confidence / 100) / price
	} else if trade.Quantity*price > maxNotional {
		trade.Quantity = maxNotional / price
	}
	d.Params = trade
}

// act resolves the decision into an outcome. Hold decisions and
// fallbacks are safe no-ops recorded as success.
func (r *Runtime) act(d *oracle.Decision) (outcome string, profit float64, errMsg string) {
	if d.Action == strategy.ActionHold || d.Fallback {
		return OutcomeSuccess, 0, ""
	}

	switch d.Type {
	case oracle.DecisionTypeTrade:
		return r.actTrade(d)
	case oracle.DecisionTypeContent:
		return r.actContent(d)
	case oracle.DecisionTypeAutomation:
		return r.actAutomation(d)
	default:
		return OutcomeFailure, 0, fmt.Sprintf("unsupported decision type %q", d.Type)
	}
}

func (r *Runtime) actTrade(d *oracle.Decision) (string, float64, string) {
	trade, ok := d.Trade()
	if !ok || trade.Symbol == "" || trade.Quantity <= 0 {
		return OutcomeFailure, 0, "trade decision missing executable params"
	}

	side := exchange.OrderSideBuy
	if trade.Side == strategy.ActionSell || d.Action == strategy.ActionSell {
		side = exchange.OrderSideSell
	}

	price := r.lastPrice(trade.Symbol)
	if price <= 0 {
		return OutcomeFailure, 0, fmt.Sprintf("no price for %s", trade.Symbol)
	}

	entryPrice := 0.0
	for _, pos := range r.exchange.OpenPositions() {
		if pos.Symbol == trade.Symbol {
			entryPrice = pos.EntryPrice
		}
	}

	order, err := r.exchange.ExecuteOrder(trade.Symbol, side, trade.Quantity, price)
	if err != nil {
		var rej *risk.RejectionError
		if errors.As(err, &rej) {
			return OutcomeFailure, 0, rej.Reason
		}
		return OutcomeFailure, 0, err.Error()
	}

	// Realized profit on sells; buys open exposure at zero.
	profit := 0.0
	if side == exchange.OrderSideSell && entryPrice > 0 {
		profit = (order.AvgFillPrice-entryPrice)*order.FilledQty - order.Fee
	}
	return OutcomeSuccess, profit, ""
}

// actContent simulates publishing a piece of content: an engagement
// score that monetizes at a fixed rate.
func (r *Runtime) actContent(d *oracle.Decision) (string, float64, string) {
	engagement := r.rng.Float64() * 1000
	profit := engagement * 0.01

	platform := "unknown"
	if p, ok := d.Content(); ok && p.Platform != "" {
		platform = p.Platform
	}
	r.logger.Debug().
		Str("platform", platform).
		Float64("engagement", engagement).
		Float64("profit", profit).
		Msg("Simulated content execution")

	return OutcomeSuccess, profit, ""
}

// actAutomation simulates running a task: efficiency in [0.5, 1.0]
// valued at a flat rate.
func (r *Runtime) actAutomation(d *oracle.Decision) (string, float64, string) {
	efficiency := 0.5 + r.rng.Float64()*0.5
	profit := efficiency * 50

	taskType := "generic"
	if p, ok := d.Automation(); ok && p.TaskType != "" {
		taskType = p.TaskType
	}
	r.logger.Debug().
		Str("task_type", taskType).
		Float64("efficiency", efficiency).
		Float64("profit", profit).
		Msg("Simulated automation execution")

	return OutcomeSuccess, profit, ""
}

// lastPrice reads the mark set at the top of the cycle.
func (r *Runtime) lastPrice(symbol string) float64 {
	return r.exchange.LastPrice(symbol)
}

// resolve finalizes the execution record and updates the aggregates.
func (r *Runtime) resolve(exec Execution, outcome string, profit float64, errMsg string, start time.Time) Execution {
	exec.Outcome = outcome
	exec.Profit = profit
	exec.Err = errMsg
	exec.Duration = time.Since(start)

	r.mu.Lock()
	defer r.mu.Unlock()

	historyCap := r.deps.EngineCfg.HistoryLimit
	if historyCap <= 0 {
		historyCap = 100
	}
	r.history = append(r.history, exec)
	if len(r.history) > historyCap {
		r.history = r.history[len(r.history)-historyCap:]
	}

	m := &r.metrics
	m.TotalExecutions++
	if outcome == OutcomeSuccess {
		m.Successful++
	} else {
		m.Failed++
	}
	m.TotalProfit += profit
	m.AvgDuration += (exec.Duration - m.AvgDuration) / time.Duration(m.TotalExecutions)
	m.SuccessRate = float64(m.Successful) / float64(m.TotalExecutions) * 100
	m.LastExecution = exec.Timestamp

	level := zerolog.InfoLevel
	if outcome == OutcomeFailure {
		level = zerolog.WarnLevel
	}
	r.logger.WithLevel(level).
		Str("execution_id", exec.ID).
		Str("action", exec.Decision.Action).
		Str("outcome", outcome).
		Float64("profit", profit).
		Dur("duration", exec.Duration).
		Str("error", errMsg).
		Msg("Cycle resolved")

	return exec
}

// learn feeds the resolved decision into the agent's memory.
func (r *Runtime) learn(exec Execution, snapshots []market.Snapshot) {
	ctxSnap := snapshots[0]
	if trade, ok := exec.Decision.Trade(); ok {
		for _, snap := range snapshots {
			if snap.Ticker.Symbol == trade.Symbol {
				ctxSnap = snap
				break
			}
		}
	}

	outcome := memory.OutcomeSuccess
	if exec.Outcome == OutcomeFailure {
		outcome = memory.OutcomeFailure
	}

	r.mem.Record(memory.DecisionRecord{
		ID:         exec.ID,
		Timestamp:  exec.Timestamp,
		Action:     exec.Decision.Action,
		Confidence: exec.Decision.Confidence,
		Reasoning:  exec.Decision.Reasoning,
		Context: memory.MarketContext{
			Symbol: ctxSnap.Ticker.Symbol,
			Price:  ctxSnap.Ticker.Price,
			RSI:    ctxSnap.RSI,
			Trend:  string(ctxSnap.Trend),
		},
		Outcome: outcome,
		Profit:  exec.Profit,
	})
}

// Memory exposes the agent's memory for the engine's status queries.
func (r *Runtime) Memory() *memory.Memory {
	return r.mem
}
