package strategy

import (
	"fmt"
	"math"

	"github.com/agentfleet/agentfleet/internal/market"
)

// Momentum follows strong trends: it buys confirmed bullish momentum
// and sells confirmed bearish momentum, with a low-confidence entry
// when only the trend agrees.
type Momentum struct {
	base
}

func (s *Momentum) Name() string { return NameMomentum }

func (s *Momentum) Analyze(symbol string, snap market.Snapshot) Signal {
	price := snap.Ticker.Price
	if price <= 0 {
		return s.holdSignal(NameMomentum, symbol, "No market data")
	}

	change := snap.Ticker.ChangePercent24h
	rsi := snap.RSI
	volRatio := volumeRatio(snap)

	sig := Signal{
		Strategy: NameMomentum,
		Symbol:   symbol,
		Action:   ActionHold,
		Reason:   "No clear momentum signal",
		Indicators: map[string]float64{
			"rsi":          rsi,
			"short_ma":     snap.ShortMA,
			"long_ma":      snap.LongMA,
			"change_24h":   change,
			"volume_ratio": volRatio,
		},
	}

	switch {
	case snap.Trend == market.TrendBullish &&
		price > snap.ShortMA && snap.ShortMA > snap.LongMA &&
		rsi > 50 && rsi < 80 &&
		change > 2 && volRatio > 1.2:

		sig.Action = ActionBuy
		sig.Confidence = math.Min(90, 60+change*5+(80-rsi)/2)
		sig.Reason = fmt.Sprintf("Strong bullish momentum: %.2f%% gain, RSI %.1f, trending up", change, rsi)

	case snap.Trend == market.TrendBearish &&
		price < snap.ShortMA && snap.ShortMA < snap.LongMA &&
		rsi < 50 && rsi > 20 &&
		change < -2 && volRatio > 1.2:

		sig.Action = ActionSell
		sig.Confidence = math.Min(90, 60+math.Abs(change)*5+(rsi-20)/2)
		sig.Reason = fmt.Sprintf("Strong bearish momentum: %.2f%% loss, RSI %.1f, trending down", change, rsi)

	case snap.Trend == market.TrendBullish && rsi > 40 && rsi < 70:
		sig.Action = ActionBuy
		sig.Confidence = 30 + change*2
		sig.Reason = fmt.Sprintf("Weak bullish signal: trend up, RSI %.1f", rsi)
	}

	return s.finalize(sig, price)
}
