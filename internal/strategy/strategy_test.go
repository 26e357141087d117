package strategy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentfleet/agentfleet/internal/market"
)

func mediumConfig(name string) Config {
	return DefaultConfig(name, "medium")
}

func snap(price, change, rsi, shortMA, longMA float64, trend market.Trend) market.Snapshot {
	return market.Snapshot{
		Ticker: market.Ticker{
			Symbol:           "BTCUSDT",
			Price:            price,
			ChangePercent24h: change,
			Volume24h:        1.5,
			High24h:          price * 1.05,
			Low24h:           price * 0.95,
		},
		RSI:       rsi,
		ShortMA:   shortMA,
		LongMA:    longMA,
		AvgVolume: 1.0,
		Trend:     trend,
	}
}

func TestMomentum(t *testing.T) {
	s, err := New(NameMomentum, mediumConfig(NameMomentum))
	require.NoError(t, err)

	t.Run("strong bullish momentum", func(t *testing.T) {
		sig := s.Analyze("BTCUSDT", snap(110, 3, 60, 105, 100, market.TrendBullish))

		assert.Equal(t, ActionBuy, sig.Action)
		// 60 + 3*5 + (80-60)/2 = 85
		assert.InDelta(t, 85, sig.Confidence, 0.001)
		assert.InDelta(t, 110*0.97, sig.StopLoss, 0.001)
		assert.InDelta(t, 110*1.06, sig.TakeProfit, 0.001)
		assert.InDelta(t, 8.5, sig.PositionSize, 0.001)
	})

	t.Run("strong bearish momentum", func(t *testing.T) {
		sig := s.Analyze("BTCUSDT", snap(90, -3, 40, 95, 100, market.TrendBearish))

		assert.Equal(t, ActionSell, sig.Action)
		// 60 + 3*5 + (40-20)/2 = 85
		assert.InDelta(t, 85, sig.Confidence, 0.001)
		assert.Greater(t, sig.StopLoss, 90.0)
		assert.Less(t, sig.TakeProfit, 90.0)
	})

	t.Run("weak bullish signal", func(t *testing.T) {
		sig := s.Analyze("BTCUSDT", snap(110, 0.5, 55, 105, 100, market.TrendBullish))

		assert.Equal(t, ActionBuy, sig.Action)
		assert.InDelta(t, 31, sig.Confidence, 0.001)
	})

	t.Run("overbought rsi holds", func(t *testing.T) {
		sig := s.Analyze("BTCUSDT", snap(110, 3, 85, 105, 100, market.TrendBullish))
		assert.Equal(t, ActionHold, sig.Action)
	})

	t.Run("confidence never negative", func(t *testing.T) {
		sig := s.Analyze("BTCUSDT", snap(110, -16, 55, 105, 100, market.TrendBullish))
		assert.Equal(t, 0.0, sig.Confidence)
	})

	t.Run("no market data holds", func(t *testing.T) {
		sig := s.Analyze("BTCUSDT", market.Snapshot{})
		assert.Equal(t, ActionHold, sig.Action)
	})
}

func TestMeanReversion(t *testing.T) {
	s, err := New(NameMeanReversion, mediumConfig(NameMeanReversion))
	require.NoError(t, err)

	t.Run("oversold buy", func(t *testing.T) {
		sig := s.Analyze("BTCUSDT", snap(95, -4, 25, 100, 100, market.TrendSideways))

		assert.Equal(t, ActionBuy, sig.Action)
		// 50 + (30-25) + 4 = 59
		assert.InDelta(t, 59, sig.Confidence, 0.001)
	})

	t.Run("oversold in downtrend holds", func(t *testing.T) {
		sig := s.Analyze("BTCUSDT", snap(95, -4, 25, 100, 100, market.TrendBearish))
		assert.NotEqual(t, ActionBuy, sig.Action)
	})

	t.Run("overbought sell", func(t *testing.T) {
		sig := s.Analyze("BTCUSDT", snap(105, 4, 78, 100, 100, market.TrendSideways))

		assert.Equal(t, ActionSell, sig.Action)
		// 50 + (78-70) + 4 = 62
		assert.InDelta(t, 62, sig.Confidence, 0.001)
	})

	t.Run("moderate oversold", func(t *testing.T) {
		sig := s.Analyze("BTCUSDT", snap(100, -2, 35, 100, 100, market.TrendSideways))

		assert.Equal(t, ActionBuy, sig.Action)
		assert.InDelta(t, 27, sig.Confidence, 0.001)
	})

	t.Run("extreme inputs cap at 85", func(t *testing.T) {
		sig := s.Analyze("BTCUSDT", snap(90, -30, 5, 100, 100, market.TrendSideways))
		assert.Equal(t, ActionBuy, sig.Action)
		assert.Equal(t, 85.0, sig.Confidence)
	})
}

func TestBreakout(t *testing.T) {
	s, err := New(NameBreakout, mediumConfig(NameBreakout))
	require.NoError(t, err)

	breakoutSnap := func(price float64, volRatio, change float64) market.Snapshot {
		return market.Snapshot{
			Ticker: market.Ticker{
				Symbol:           "BTCUSDT",
				Price:            price,
				ChangePercent24h: change,
				Volume24h:        volRatio,
				High24h:          100,
				Low24h:           90,
			},
			RSI:       55,
			AvgVolume: 1.0,
			Trend:     TrendFor(change),
		}
	}

	t.Run("bullish breakout", func(t *testing.T) {
		sig := s.Analyze("BTCUSDT", breakoutSnap(100.5, 2.0, 2))

		assert.Equal(t, ActionBuy, sig.Action)
		// 40 + 2*3 + 2*10 = 66
		assert.InDelta(t, 66, sig.Confidence, 0.001)
	})

	t.Run("bearish breakdown", func(t *testing.T) {
		sig := s.Analyze("BTCUSDT", breakoutSnap(89.7, 2.0, -2))

		assert.Equal(t, ActionSell, sig.Action)
		assert.InDelta(t, 66, sig.Confidence, 0.001)
	})

	t.Run("approaching resistance", func(t *testing.T) {
		sig := s.Analyze("BTCUSDT", breakoutSnap(100.05, 1.3, 0.5))

		assert.Equal(t, ActionBuy, sig.Action)
		assert.Equal(t, 35.0, sig.Confidence)
	})

	t.Run("approaching support", func(t *testing.T) {
		sig := s.Analyze("BTCUSDT", breakoutSnap(90.05, 1.3, -0.5))

		assert.Equal(t, ActionSell, sig.Action)
		assert.Equal(t, 35.0, sig.Confidence)
	})

	t.Run("low volume holds", func(t *testing.T) {
		sig := s.Analyze("BTCUSDT", breakoutSnap(100.5, 1.0, 2))
		assert.Equal(t, ActionHold, sig.Action)
	})
}

// TrendFor picks a trend label consistent with the 24h change; breakout
// ignores trend so any consistent value works.
func TrendFor(change float64) market.Trend {
	if change > 0 {
		return market.TrendBullish
	}
	if change < 0 {
		return market.TrendBearish
	}
	return market.TrendSideways
}

func TestPositionSizing(t *testing.T) {
	t.Run("scales with confidence and risk", func(t *testing.T) {
		low := base{DefaultConfig(NameMomentum, "low")}
		med := base{DefaultConfig(NameMomentum, "medium")}
		high := base{DefaultConfig(NameMomentum, "high")}

		// low: 5 * 0.8 * 0.5 = 2.0
		assert.InDelta(t, 2.0, low.positionSize(80), 0.001)
		// medium: 10 * 0.8 * 1.0 = 8.0
		assert.InDelta(t, 8.0, med.positionSize(80), 0.001)
		// high: 20 * 0.8 * 1.5 = 24, clamped to the 20 max
		assert.InDelta(t, 20.0, high.positionSize(80), 0.001)
	})

	t.Run("floor at 0.1", func(t *testing.T) {
		med := base{DefaultConfig(NameMomentum, "medium")}
		assert.Equal(t, 0.1, med.positionSize(0))
	})
}

func TestFactory(t *testing.T) {
	for _, name := range Available() {
		s, err := New(name, mediumConfig(name))
		require.NoError(t, err)
		assert.Equal(t, name, s.Name())
	}

	_, err := New("arbitrage", Config{})
	assert.Error(t, err)
}

func TestDefaultConfigTiers(t *testing.T) {
	low := DefaultConfig(NameMomentum, "low")
	assert.Equal(t, 5.0, low.MaxPositionSize)
	assert.Equal(t, 2.0, low.StopLossPercent)
	assert.Equal(t, 4.0, low.TakeProfitPercent)

	high := DefaultConfig(NameBreakout, "high")
	assert.Equal(t, 20.0, high.MaxPositionSize)
	assert.Equal(t, 5.0, high.StopLossPercent)
	assert.Equal(t, 10.0, high.TakeProfitPercent)
}

func TestForStyle(t *testing.T) {
	assert.Equal(t, []string{NameMeanReversion}, ForStyle("conservative"))
	assert.Equal(t, []string{NameMomentum, NameBreakout}, ForStyle("aggressive"))
	assert.Len(t, ForStyle("analytical"), 3)
	assert.Equal(t, []string{NameMomentum, NameMeanReversion}, ForStyle("balanced"))
	assert.Equal(t, ForStyle("balanced"), ForStyle("unknown"))
}
