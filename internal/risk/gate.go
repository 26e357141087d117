// Package risk validates orders against per-agent limits before they
// reach the venue. Validation is pure: no I/O, no clock, no state.
package risk

import "fmt"

// Limits holds the per-agent risk configuration.
type Limits struct {
	MaxPositionSize   float64  `json:"max_position_size"` // percent of portfolio value
	MaxDailyLoss      float64  `json:"max_daily_loss"`    // absolute quote currency amount
	MaxOpenPositions  int      `json:"max_open_positions"`
	StopLossPercent   float64  `json:"stop_loss_percent"`
	TakeProfitPercent float64  `json:"take_profit_percent"`
	AllowedSymbols    []string `json:"allowed_symbols"`
}

// OrderContext carries everything the gate needs to judge one order.
// The caller snapshots portfolio state; the gate never reads it live.
type OrderContext struct {
	Symbol           string
	Side             string // "BUY" or "SELL"
	Quantity         float64
	Price            float64
	PortfolioValue   float64
	AvailableBalance float64
	OpenPositions    int
	DailyPnL         float64
}

// Notional returns the order value in quote currency.
func (o *OrderContext) Notional() float64 {
	return o.Quantity * o.Price
}

// RejectionError reports why the gate refused an order.
type RejectionError struct {
	Reason string
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("order rejected: %s", e.Reason)
}

func reject(reason string) error {
	return &RejectionError{Reason: reason}
}

// Validate checks an order against the limits. The checks run in a
// fixed order and the first failure wins; nil means the order passed.
func Validate(order OrderContext, limits Limits) error {
	if len(limits.AllowedSymbols) > 0 && !contains(limits.AllowedSymbols, order.Symbol) {
		return reject("Trading pair not allowed")
	}

	if limits.MaxPositionSize > 0 && order.PortfolioValue > 0 {
		positionPercent := order.Notional() / order.PortfolioValue * 100
		if positionPercent > limits.MaxPositionSize {
			return reject("Position size exceeds maximum allowed")
		}
	}

	if order.Side == "BUY" && order.Notional() > order.AvailableBalance {
		return reject("Insufficient balance")
	}

	if limits.MaxOpenPositions > 0 && order.OpenPositions >= limits.MaxOpenPositions {
		return reject("Maximum open positions reached")
	}

	if limits.MaxDailyLoss > 0 && order.DailyPnL < -limits.MaxDailyLoss {
		return reject("Daily loss limit reached")
	}

	return nil
}

func contains(symbols []string, symbol string) bool {
	for _, s := range symbols {
		if s == symbol {
			return true
		}
	}
	return false
}

// DefaultLimits returns the limits for a risk tier. Unknown tiers get
// the medium profile.
func DefaultLimits(tier string) Limits {
	switch tier {
	case "low":
		return Limits{
			MaxPositionSize:   5,
			MaxDailyLoss:      200,
			MaxOpenPositions:  3,
			StopLossPercent:   2,
			TakeProfitPercent: 4,
		}
	case "high":
		return Limits{
			MaxPositionSize:   20,
			MaxDailyLoss:      1000,
			MaxOpenPositions:  10,
			StopLossPercent:   5,
			TakeProfitPercent: 10,
		}
	default:
		return Limits{
			MaxPositionSize:   10,
			MaxDailyLoss:      500,
			MaxOpenPositions:  5,
			StopLossPercent:   3,
			TakeProfitPercent: 6,
		}
	}
}
