package risk

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func baseLimits() Limits {
	return Limits{
		MaxPositionSize:  10,
		MaxDailyLoss:     500,
		MaxOpenPositions: 5,
		AllowedSymbols:   []string{"BTCUSDT", "ETHUSDT"},
	}
}

func baseOrder() OrderContext {
	return OrderContext{
		Symbol:           "BTCUSDT",
		Side:             "BUY",
		Quantity:         0.01,
		Price:            45000,
		PortfolioValue:   10000,
		AvailableBalance: 8000,
		OpenPositions:    1,
		DailyPnL:         0,
	}
}

func reason(t *testing.T, err error) string {
	t.Helper()
	var rej *RejectionError
	require.ErrorAs(t, err, &rej)
	return rej.Reason
}

func TestValidatePasses(t *testing.T) {
	assert.NoError(t, Validate(baseOrder(), baseLimits()))
}

func TestValidateSymbolAllowList(t *testing.T) {
	order := baseOrder()
	order.Symbol = "DOGEUSDT"

	err := Validate(order, baseLimits())
	assert.Equal(t, "Trading pair not allowed", reason(t, err))

	t.Run("empty list allows everything", func(t *testing.T) {
		limits := baseLimits()
		limits.AllowedSymbols = nil
		assert.NoError(t, Validate(order, limits))
	})
}

func TestValidatePositionSize(t *testing.T) {
	// 10k portfolio, 10% cap: a 1,500 order is rejected, an 800 order passes.
	limits := baseLimits()

	order := baseOrder()
	order.Quantity = 1
	order.Price = 1500

	err := Validate(order, limits)
	assert.Equal(t, "Position size exceeds maximum allowed", reason(t, err))

	order.Price = 800
	assert.NoError(t, Validate(order, limits))
}

func TestValidateInsufficientBalance(t *testing.T) {
	order := baseOrder()
	order.Quantity = 1
	order.Price = 900
	order.AvailableBalance = 850

	err := Validate(order, baseLimits())
	assert.Equal(t, "Insufficient balance", reason(t, err))

	t.Run("sells ignore available balance", func(t *testing.T) {
		order.Side = "SELL"
		assert.NoError(t, Validate(order, baseLimits()))
	})
}

func TestValidateMaxOpenPositions(t *testing.T) {
	order := baseOrder()
	order.OpenPositions = 5

	err := Validate(order, baseLimits())
	assert.Equal(t, "Maximum open positions reached", reason(t, err))
}

func TestValidateDailyLossLimit(t *testing.T) {
	order := baseOrder()
	order.DailyPnL = -600

	err := Validate(order, baseLimits())
	assert.Equal(t, "Daily loss limit reached", reason(t, err))

	order.DailyPnL = -400
	assert.NoError(t, Validate(order, baseLimits()))
}

func TestValidateOrderOfChecks(t *testing.T) {
	// Every check would fail here; the allow-list must win.
	order := OrderContext{
		Symbol:           "DOGEUSDT",
		Side:             "BUY",
		Quantity:         10,
		Price:            1000,
		PortfolioValue:   10000,
		AvailableBalance: 0,
		OpenPositions:    10,
		DailyPnL:         -10000,
	}

	err := Validate(order, baseLimits())
	assert.Equal(t, "Trading pair not allowed", reason(t, err))
}

func TestValidateIsPure(t *testing.T) {
	order := baseOrder()
	limits := baseLimits()

	first := Validate(order, limits)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Validate(order, limits))
	}
}

func TestRejectionErrorUnwrap(t *testing.T) {
	err := Validate(OrderContext{Symbol: "X", Side: "BUY"}, baseLimits())
	var rej *RejectionError
	assert.True(t, errors.As(err, &rej))
}

func TestDefaultLimits(t *testing.T) {
	low := DefaultLimits("low")
	assert.Equal(t, 5.0, low.MaxPositionSize)
	assert.Equal(t, 2.0, low.StopLossPercent)

	med := DefaultLimits("medium")
	assert.Equal(t, 10.0, med.MaxPositionSize)
	assert.Equal(t, DefaultLimits("unknown"), med)

	high := DefaultLimits("high")
	assert.Equal(t, 20.0, high.MaxPositionSize)
	assert.Equal(t, 10.0, high.TakeProfitPercent)
}
