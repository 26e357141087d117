// Package strategy holds the deterministic signal generators that feed
// the decision oracle. Strategies are stateless: the same snapshot and
// config always produce the same signal.
package strategy

import (
	"fmt"

	"github.com/agentfleet/agentfleet/internal/market"
)

// Signal actions
const (
	ActionBuy  = "BUY"
	ActionSell = "SELL"
	ActionHold = "HOLD"
)

// Strategy names
const (
	NameMomentum      = "momentum"
	NameMeanReversion = "mean_reversion"
	NameBreakout      = "breakout"
)

// Signal is one strategy's read of a symbol
type Signal struct {
	Strategy     string             `json:"strategy"`
	Symbol       string             `json:"symbol"`
	Action       string             `json:"action"`
	Confidence   float64            `json:"confidence"` // 0-100
	Reason       string             `json:"reason"`
	TargetPrice  float64            `json:"target_price,omitempty"`
	StopLoss     float64            `json:"stop_loss,omitempty"`
	TakeProfit   float64            `json:"take_profit,omitempty"`
	PositionSize float64            `json:"position_size"` // percent of portfolio
	Timeframe    string             `json:"timeframe"`
	Indicators   map[string]float64 `json:"indicators,omitempty"`
}

// Config parameterizes a strategy for a risk tier
type Config struct {
	Name              string  `json:"name"`
	RiskLevel         string  `json:"risk_level"` // low, medium, high
	Timeframe         string  `json:"timeframe"`
	MaxPositionSize   float64 `json:"max_position_size"`
	StopLossPercent   float64 `json:"stop_loss_percent"`
	TakeProfitPercent float64 `json:"take_profit_percent"`
}

// Strategy analyzes one symbol's market snapshot
type Strategy interface {
	Name() string
	Analyze(symbol string, snap market.Snapshot) Signal
}

// base carries the shared per-tier arithmetic
type base struct {
	cfg Config
}

func (b base) riskMultiplier() float64 {
	switch b.cfg.RiskLevel {
	case "low":
		return 0.5
	case "high":
		return 1.5
	default:
		return 1.0
	}
}

// positionSize scales the tier's maximum by confidence and risk
// appetite, clamped to [0.1, max].
func (b base) positionSize(confidence float64) float64 {
	size := b.cfg.MaxPositionSize * (confidence / 100) * b.riskMultiplier()
	if size > b.cfg.MaxPositionSize {
		size = b.cfg.MaxPositionSize
	}
	if size < 0.1 {
		size = 0.1
	}
	return size
}

func (b base) stopLoss(price float64, action string) float64 {
	pct := b.cfg.StopLossPercent / 100
	if action == ActionBuy {
		return price * (1 - pct)
	}
	return price * (1 + pct)
}

func (b base) takeProfit(price float64, action string) float64 {
	pct := b.cfg.TakeProfitPercent / 100
	if action == ActionBuy {
		return price * (1 + pct)
	}
	return price * (1 - pct)
}

// finalize clamps confidence and attaches the derived levels.
func (b base) finalize(sig Signal, price float64) Signal {
	sig.Confidence = clamp(sig.Confidence, 0, 100)
	sig.TargetPrice = price
	sig.PositionSize = b.positionSize(sig.Confidence)
	if sig.Action != ActionHold {
		sig.StopLoss = b.stopLoss(price, sig.Action)
		sig.TakeProfit = b.takeProfit(price, sig.Action)
	}
	sig.Timeframe = b.cfg.Timeframe
	return sig
}

// holdSignal is the safe output when a strategy cannot analyze.
func (b base) holdSignal(name, symbol, reason string) Signal {
	return Signal{
		Strategy:  name,
		Symbol:    symbol,
		Action:    ActionHold,
		Reason:    reason,
		Timeframe: b.cfg.Timeframe,
	}
}

// volumeRatio compares the 24h volume against the typical volume.
func volumeRatio(snap market.Snapshot) float64 {
	if snap.AvgVolume <= 0 {
		return 1.0
	}
	return snap.Ticker.Volume24h / snap.AvgVolume
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// New builds a strategy by name.
func New(name string, cfg Config) (Strategy, error) {
	switch name {
	case NameMomentum:
		return &Momentum{base{cfg}}, nil
	case NameMeanReversion:
		return &MeanReversion{base{cfg}}, nil
	case NameBreakout:
		return &Breakout{base{cfg}}, nil
	default:
		return nil, fmt.Errorf("unknown strategy: %s", name)
	}
}

// Available lists the strategy names.
func Available() []string {
	return []string{NameMomentum, NameMeanReversion, NameBreakout}
}

// DefaultConfig returns the per-tier defaults for a strategy. Unknown
// tiers get the medium profile.
func DefaultConfig(name, riskLevel string) Config {
	cfg := Config{
		Name:      name,
		RiskLevel: riskLevel,
		Timeframe: "1h",
	}
	switch riskLevel {
	case "low":
		cfg.MaxPositionSize = 5
		cfg.StopLossPercent = 2
		cfg.TakeProfitPercent = 4
	case "high":
		cfg.MaxPositionSize = 20
		cfg.StopLossPercent = 5
		cfg.TakeProfitPercent = 10
	default:
		cfg.RiskLevel = riskLevel
		cfg.MaxPositionSize = 10
		cfg.StopLossPercent = 3
		cfg.TakeProfitPercent = 6
	}
	return cfg
}

// ForStyle maps a trading style to its default strategy mix.
func ForStyle(style string) []string {
	switch style {
	case "conservative":
		return []string{NameMeanReversion}
	case "aggressive":
		return []string{NameMomentum, NameBreakout}
	case "analytical":
		return []string{NameMomentum, NameMeanReversion, NameBreakout}
	case "creative":
		return []string{NameBreakout, NameMomentum}
	default:
		return []string{NameMomentum, NameMeanReversion}
	}
}
