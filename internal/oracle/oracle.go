package oracle

import (
	"context"
	"math"

	"github.com/agentfleet/agentfleet/internal/exchange"
	"github.com/agentfleet/agentfleet/internal/market"
	"github.com/agentfleet/agentfleet/internal/memory"
	"github.com/agentfleet/agentfleet/internal/strategy"
)

// Profile is the slice of an agent's personality the oracle reasons
// with.
type Profile struct {
	Name                string  `json:"name"`
	AgentType           string  `json:"agent_type"` // trading, content, automation
	TradingStyle        string  `json:"trading_style"`
	RiskTolerance       float64 `json:"risk_tolerance"`       // 0-100
	Aggression          float64 `json:"aggression"`           // 0-100
	AnalyticalDepth     float64 `json:"analytical_depth"`     // 0-100
	ConfidenceThreshold float64 `json:"confidence_threshold"` // 0-100
}

// Request is the rendered context for one decision
type Request struct {
	Profile   Profile
	Market    []market.Snapshot
	Portfolio exchange.Portfolio
	Signals   []strategy.Signal
	Learnings []memory.Learning
	Outcomes  []memory.DecisionRecord
}

// Oracle produces one decision per agent cycle. Implementations must
// return a usable decision on every path; transport and parse failures
// surface as fallback decisions, not errors. The error return exists
// for context cancellation only.
type Oracle interface {
	Decide(ctx context.Context, req Request) (*Decision, error)
}

// FallbackDecision is the safe answer when the oracle cannot be
// reached or returns garbage: hold, low confidence, and a note about
// what happened.
func FallbackDecision(agentType, note string) *Decision {
	d := &Decision{
		Type:       decisionTypeFor(agentType),
		Action:     strategy.ActionHold,
		Confidence: 20,
		Reasoning:  "Fallback decision: " + note,
		Fallback:   true,
	}
	return d
}

func decisionTypeFor(agentType string) DecisionType {
	switch agentType {
	case "content":
		return DecisionTypeContent
	case "automation":
		return DecisionTypeAutomation
	default:
		return DecisionTypeTrade
	}
}

// sanitize clamps confidence, defaults empty actions to HOLD and makes
// sure a HOLD alternative is always present.
func sanitize(d *Decision, agentType string) *Decision {
	if d.Type == "" {
		d.Type = decisionTypeFor(agentType)
	}
	if d.Action == "" {
		d.Action = strategy.ActionHold
	}
	d.Confidence = math.Max(0, math.Min(100, d.Confidence))

	hasHold := false
	for _, alt := range d.Alternatives {
		if alt.Action == strategy.ActionHold {
			hasHold = true
			break
		}
	}
	if !hasHold {
		d.Alternatives = append(d.Alternatives, Alternative{
			Action:     strategy.ActionHold,
			Confidence: 50,
			Reason:     "Stay flat and wait for clearer conditions",
		})
	}
	if len(d.Alternatives) > 3 {
		d.Alternatives = d.Alternatives[:3]
	}
	return d
}
