package market

import (
	"context"
	"fmt"

	"github.com/cinar/indicator/v2/momentum"
	"github.com/rs/zerolog/log"
)

const (
	rsiPeriod     = 14
	shortMAPeriod = 20
	longMAPeriod  = 50

	// neutralRSI is used whenever there is not enough history to
	// compute a real value.
	neutralRSI = 50.0
)

// RSI computes the Relative Strength Index over the given closes and
// returns the most recent value. Returns neutralRSI when there is not
// enough history.
func RSI(closes []float64, period int) float64 {
	if period < 1 || len(closes) <= period {
		return neutralRSI
	}

	pricesChan := make(chan float64, len(closes))
	for _, p := range closes {
		pricesChan <- p
	}
	close(pricesChan)

	rsi := momentum.NewRsiWithPeriod[float64](period)
	rsiChan := rsi.Compute(pricesChan)

	var last float64 = neutralRSI
	got := false
	for val := range rsiChan {
		last = val
		got = true
	}
	if !got {
		return neutralRSI
	}
	return last
}

// SMA computes the simple moving average of the last period closes.
// Returns 0 when there is not enough history.
func SMA(closes []float64, period int) float64 {
	if period < 1 || len(closes) < period {
		return 0
	}
	sum := 0.0
	for _, p := range closes[len(closes)-period:] {
		sum += p
	}
	return sum / float64(period)
}

// ClassifyTrend labels the trend from the current price and the two
// moving averages. Missing averages yield sideways.
func ClassifyTrend(price, shortMA, longMA float64) Trend {
	if shortMA == 0 || longMA == 0 {
		return TrendSideways
	}
	switch {
	case price > shortMA && shortMA > longMA:
		return TrendBullish
	case price < shortMA && shortMA < longMA:
		return TrendBearish
	default:
		return TrendSideways
	}
}

// BuildSnapshot assembles the per-symbol market context for one agent
// cycle. Candle failures degrade to neutral indicators rather than
// failing the cycle.
func BuildSnapshot(ctx context.Context, gw Gateway, symbol, interval string, limit int) (*Snapshot, error) {
	ticker, err := gw.Ticker(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch ticker for %s: %w", symbol, err)
	}

	snap := &Snapshot{
		Ticker:    *ticker,
		RSI:       neutralRSI,
		AvgVolume: ticker.Volume24h,
		Trend:     TrendSideways,
	}

	candles, err := gw.Candles(ctx, symbol, interval, limit)
	if err != nil {
		log.Warn().
			Err(err).
			Str("symbol", symbol).
			Msg("Candle fetch failed, using neutral indicators")
		return snap, nil
	}

	closes := make([]float64, len(candles))
	volumeSum := 0.0
	for i, c := range candles {
		closes[i] = c.Close
		volumeSum += c.Volume
	}

	snap.RSI = RSI(closes, rsiPeriod)
	snap.ShortMA = SMA(closes, shortMAPeriod)
	snap.LongMA = SMA(closes, longMAPeriod)
	snap.Trend = ClassifyTrend(ticker.Price, snap.ShortMA, snap.LongMA)

	// Approximate a typical 24h volume from hourly bars so the
	// strategies can compare today's volume against it.
	if len(candles) > 0 {
		snap.AvgVolume = volumeSum / float64(len(candles)) * 24
	}

	return snap, nil
}
