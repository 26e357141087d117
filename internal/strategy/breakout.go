package strategy

import (
	"fmt"
	"math"

	"github.com/agentfleet/agentfleet/internal/market"
)

// Breakout trades moves beyond the 24h range on elevated volume, with
// fixed-confidence probes when price approaches a boundary.
type Breakout struct {
	base
}

func (s *Breakout) Name() string { return NameBreakout }

func (s *Breakout) Analyze(symbol string, snap market.Snapshot) Signal {
	price := snap.Ticker.Price
	if price <= 0 {
		return s.holdSignal(NameBreakout, symbol, "No market data")
	}

	change := snap.Ticker.ChangePercent24h
	volRatio := volumeRatio(snap)

	resistance := snap.Ticker.High24h
	support := snap.Ticker.Low24h
	rangePercent := 0.0
	if support > 0 {
		rangePercent = (resistance - support) / support * 100
	}

	sig := Signal{
		Strategy: NameBreakout,
		Symbol:   symbol,
		Action:   ActionHold,
		Reason:   "No breakout signal",
		Indicators: map[string]float64{
			"resistance":    resistance,
			"support":       support,
			"range_percent": rangePercent,
			"volume_ratio":  volRatio,
			"change_24h":    change,
		},
	}

	switch {
	case price > resistance*1.002 && volRatio > 1.5 && change > 1 && rangePercent > 2:
		sig.Action = ActionBuy
		sig.Confidence = math.Min(90, 40+change*3+volRatio*10)
		sig.Reason = fmt.Sprintf("Bullish breakout above %.2f, volume spike %.1fx", resistance, volRatio)

	case support > 0 && price < support*0.998 && volRatio > 1.5 && change < -1 && rangePercent > 2:
		sig.Action = ActionSell
		sig.Confidence = math.Min(90, 40+math.Abs(change)*3+volRatio*10)
		sig.Reason = fmt.Sprintf("Bearish breakdown below %.2f, volume spike %.1fx", support, volRatio)

	case resistance > 0 && price > resistance*0.999 && price < resistance*1.001 && volRatio > 1.2:
		sig.Action = ActionBuy
		sig.Confidence = 35
		sig.Reason = fmt.Sprintf("Approaching resistance %.2f, increased volume", resistance)

	case support > 0 && price < support*1.001 && price > support*0.999 && volRatio > 1.2:
		sig.Action = ActionSell
		sig.Confidence = 35
		sig.Reason = fmt.Sprintf("Approaching support %.2f, increased volume", support)
	}

	return s.finalize(sig, price)
}
