package strategy

import (
	"fmt"
	"math"

	"github.com/agentfleet/agentfleet/internal/market"
)

// MeanReversion buys oversold dips and sells overbought peaks around a
// simplified Bollinger band (SMA +/- 2%).
type MeanReversion struct {
	base
}

func (s *MeanReversion) Name() string { return NameMeanReversion }

func (s *MeanReversion) Analyze(symbol string, snap market.Snapshot) Signal {
	price := snap.Ticker.Price
	if price <= 0 {
		return s.holdSignal(NameMeanReversion, symbol, "No market data")
	}

	change := snap.Ticker.ChangePercent24h
	rsi := snap.RSI

	sma := snap.ShortMA
	if sma <= 0 {
		sma = price
	}
	upperBand := sma * 1.02
	lowerBand := sma * 0.98

	sig := Signal{
		Strategy: NameMeanReversion,
		Symbol:   symbol,
		Action:   ActionHold,
		Reason:   "No mean reversion signal",
		Indicators: map[string]float64{
			"rsi":        rsi,
			"sma":        sma,
			"upper_band": upperBand,
			"lower_band": lowerBand,
			"change_24h": change,
		},
	}

	switch {
	case rsi < 30 && price < lowerBand && change < -3 && snap.Trend != market.TrendBearish:
		sig.Action = ActionBuy
		sig.Confidence = math.Min(85, 50+(30-rsi)+math.Abs(change))
		sig.Reason = fmt.Sprintf("Oversold condition: RSI %.1f, below lower band, %.2f%% down", rsi, change)

	case rsi > 70 && price > upperBand && change > 3 && snap.Trend != market.TrendBullish:
		sig.Action = ActionSell
		sig.Confidence = math.Min(85, 50+(rsi-70)+change)
		sig.Reason = fmt.Sprintf("Overbought condition: RSI %.1f, above upper band, %.2f%% up", rsi, change)

	case rsi < 40 && change < -1:
		sig.Action = ActionBuy
		sig.Confidence = 25 + math.Abs(change)
		sig.Reason = fmt.Sprintf("Potential oversold: RSI %.1f, %.2f%% down", rsi, change)

	case rsi > 60 && change > 1:
		sig.Action = ActionSell
		sig.Confidence = 25 + change
		sig.Reason = fmt.Sprintf("Potential overbought: RSI %.1f, %.2f%% up", rsi, change)
	}

	return s.finalize(sig, price)
}
