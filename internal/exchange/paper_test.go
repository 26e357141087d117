package exchange

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentfleet/agentfleet/internal/config"
	"github.com/agentfleet/agentfleet/internal/risk"
)

func testExchangeConfig() config.ExchangeConfig {
	return config.ExchangeConfig{
		InitialCapital: 10000.0,
		QuoteAsset:     "USDT",
		BaseSlippage:   0.001,
		MaxImpact:      0.01,
		ImpactDivisor:  1000.0,
		TakerFee:       0.001,
	}
}

func testLimits() risk.Limits {
	return risk.Limits{
		MaxPositionSize:  10,
		MaxDailyLoss:     500,
		MaxOpenPositions: 5,
		AllowedSymbols:   []string{"BTCUSDT", "ETHUSDT"},
	}
}

func newTestExchange(t *testing.T) *PaperExchange {
	t.Helper()
	return NewPaperExchange(testExchangeConfig(), testLimits(), "agent-1")
}

func TestExecuteOrderBuyFillArithmetic(t *testing.T) {
	p := newTestExchange(t)

	order, err := p.ExecuteOrder("BTCUSDT", OrderSideBuy, 0.01, 45000)
	require.NoError(t, err)
	require.Equal(t, OrderStatusFilled, order.Status)

	// slippage = 0.1% base + 0.01/1000 impact = 0.101%
	assert.InDelta(t, 45045.45, order.AvgFillPrice, 0.001)
	assert.InDelta(t, 0.4504545, order.Fee, 1e-6)
	assert.Equal(t, 0.01, order.FilledQty)
	require.NotNil(t, order.FilledAt)

	pf := p.Portfolio()
	assert.InDelta(t, 10000-0.01*45045.45-0.4504545, pf.AvailableBalance, 1e-6)
}

func TestExecuteOrderSellSlippageAgainstTrader(t *testing.T) {
	p := newTestExchange(t)

	_, err := p.ExecuteOrder("BTCUSDT", OrderSideBuy, 0.01, 45000)
	require.NoError(t, err)

	order, err := p.ExecuteOrder("BTCUSDT", OrderSideSell, 0.01, 45000)
	require.NoError(t, err)

	// Sells fill below the quoted price.
	assert.Less(t, order.AvgFillPrice, 45000.0)
	assert.InDelta(t, 45000*(1-0.00101), order.AvgFillPrice, 0.001)
}

func TestSlippageImpactCap(t *testing.T) {
	p := newTestExchange(t)

	// 100 units: impact = min(100/1000, 0.01) = 0.01 uncapped value at cap
	assert.InDelta(t, 0.011, p.slippage(100), 1e-9)
	// 5000 units: impact capped at 1%
	assert.InDelta(t, 0.011, p.slippage(5000), 1e-9)
	// tiny order: essentially the base only
	assert.InDelta(t, 0.001+0.0001, p.slippage(0.1), 1e-9)
}

func TestPortfolioTotalEqualsSumOfHoldings(t *testing.T) {
	p := newTestExchange(t)

	_, err := p.ExecuteOrder("BTCUSDT", OrderSideBuy, 0.01, 45000)
	require.NoError(t, err)
	_, err = p.ExecuteOrder("ETHUSDT", OrderSideBuy, 0.1, 2500)
	require.NoError(t, err)

	p.MarkPrices(map[string]float64{"BTCUSDT": 46000, "ETHUSDT": 2400})

	pf := p.Portfolio()
	sum := 0.0
	for _, h := range pf.Holdings {
		sum += h.Value
	}
	assert.InDelta(t, sum, pf.TotalValue, 1e-9)
}

func TestExecuteOrderRejections(t *testing.T) {
	t.Run("position size", func(t *testing.T) {
		p := newTestExchange(t)
		// 1500 notional on a 10k portfolio breaches the 10% cap.
		order, err := p.ExecuteOrder("BTCUSDT", OrderSideBuy, 1, 1500)

		var rej *risk.RejectionError
		require.ErrorAs(t, err, &rej)
		assert.Equal(t, "Position size exceeds maximum allowed", rej.Reason)
		assert.Equal(t, OrderStatusRejected, order.Status)

		// An 800 notional order passes.
		order, err = p.ExecuteOrder("BTCUSDT", OrderSideBuy, 1, 800)
		require.NoError(t, err)
		assert.Equal(t, OrderStatusFilled, order.Status)
	})

	t.Run("symbol not allowed", func(t *testing.T) {
		p := newTestExchange(t)
		_, err := p.ExecuteOrder("DOGEUSDT", OrderSideBuy, 1, 10)

		var rej *risk.RejectionError
		require.ErrorAs(t, err, &rej)
		assert.Equal(t, "Trading pair not allowed", rej.Reason)
	})

	t.Run("sell more than held", func(t *testing.T) {
		p := newTestExchange(t)
		_, err := p.ExecuteOrder("BTCUSDT", OrderSideSell, 1, 100)

		var rej *risk.RejectionError
		require.ErrorAs(t, err, &rej)
		assert.Equal(t, "Insufficient balance", rej.Reason)
	})

	t.Run("rejection mutates nothing", func(t *testing.T) {
		p := newTestExchange(t)
		before := p.Portfolio()

		_, err := p.ExecuteOrder("DOGEUSDT", OrderSideBuy, 1, 10)
		require.Error(t, err)

		after := p.Portfolio()
		assert.Equal(t, before.TotalValue, after.TotalValue)
		assert.Equal(t, before.AvailableBalance, after.AvailableBalance)
	})
}

func TestPositionTracking(t *testing.T) {
	p := newTestExchange(t)

	_, err := p.ExecuteOrder("BTCUSDT", OrderSideBuy, 0.01, 45000)
	require.NoError(t, err)
	_, err = p.ExecuteOrder("BTCUSDT", OrderSideBuy, 0.01, 47000)
	require.NoError(t, err)

	positions := p.OpenPositions()
	require.Len(t, positions, 1)
	assert.InDelta(t, 0.02, positions[0].Quantity, 1e-12)
	// entry price averages across adds, between the two fills
	assert.Greater(t, positions[0].EntryPrice, 45000.0)
	assert.Less(t, positions[0].EntryPrice, 47100.0)

	_, err = p.ExecuteOrder("BTCUSDT", OrderSideSell, 0.02, 46000)
	require.NoError(t, err)
	assert.Empty(t, p.OpenPositions())
}

func TestConcurrentOrdersKeepInvariant(t *testing.T) {
	p := newTestExchange(t)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.ExecuteOrder("BTCUSDT", OrderSideBuy, 0.001, 45000)
		}()
	}
	wg.Wait()

	pf := p.Portfolio()
	sum := 0.0
	for _, h := range pf.Holdings {
		sum += h.Value
	}
	assert.InDelta(t, sum, pf.TotalValue, 1e-6)
	assert.GreaterOrEqual(t, pf.AvailableBalance, 0.0)
}
