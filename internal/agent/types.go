package agent

import (
	"time"

	"github.com/agentfleet/agentfleet/internal/oracle"
	"github.com/agentfleet/agentfleet/internal/risk"
)

// Type classifies what an agent does
type Type string

const (
	TypeTrading    Type = "trading"
	TypeContent    Type = "content"
	TypeAutomation Type = "automation"
)

// Trading styles
const (
	StyleConservative = "conservative"
	StyleBalanced     = "balanced"
	StyleAggressive   = "aggressive"
	StyleAnalytical   = "analytical"
	StyleCreative     = "creative"
)

// Personality shapes how an agent filters signals and sizes positions
type Personality struct {
	RiskTolerance       float64  `json:"risk_tolerance"`       // 0-100
	Aggression          float64  `json:"aggression"`           // 0-100
	AnalyticalDepth     float64  `json:"analytical_depth"`     // 0-100
	ConfidenceThreshold float64  `json:"confidence_threshold"` // 0-100, signals below are discarded
	TradingStyle        string   `json:"trading_style"`
	PreferredStrategies []string `json:"preferred_strategies,omitempty"`
}

// RiskTier buckets the risk tolerance into the strategy tiers.
func (p Personality) RiskTier() string {
	switch {
	case p.RiskTolerance <= 33:
		return "low"
	case p.RiskTolerance <= 66:
		return "medium"
	default:
		return "high"
	}
}

// Config is the durable definition of one agent
type Config struct {
	ID          string      `json:"id"`
	OwnerID     string      `json:"owner_id"`
	Name        string      `json:"name"`
	Type        Type        `json:"type"`
	Personality Personality `json:"personality"`
	Limits      risk.Limits `json:"limits"`
	MaxBudget   float64     `json:"max_budget"`
	Symbols     []string    `json:"symbols"`
	IsRunning   bool        `json:"is_running"`
	CreatedAt   time.Time   `json:"created_at"`
}

// Execution outcomes
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Execution records one completed cycle. Outcome is terminal: it is
// assigned exactly once, when the cycle resolves.
type Execution struct {
	ID        string          `json:"id"`
	AgentID   string          `json:"agent_id"`
	Timestamp time.Time       `json:"timestamp"`
	Decision  oracle.Decision `json:"decision"`
	Outcome   string          `json:"outcome"`
	Profit    float64         `json:"profit"`
	Err       string          `json:"error,omitempty"`
	Duration  time.Duration   `json:"duration"`
}

// Metrics aggregates an agent's executions. Updated incrementally on
// every cycle.
type Metrics struct {
	TotalExecutions int64         `json:"total_executions"`
	Successful      int64         `json:"successful"`
	Failed          int64         `json:"failed"`
	TotalProfit     float64       `json:"total_profit"`
	AvgDuration     time.Duration `json:"avg_duration"`
	SuccessRate     float64       `json:"success_rate"` // percent
	LastExecution   time.Time     `json:"last_execution"`
}
