package market

import (
	"context"
	"time"
)

// Trend classifies the medium-term price direction of a symbol
type Trend string

const (
	TrendBullish  Trend = "bullish"
	TrendBearish  Trend = "bearish"
	TrendSideways Trend = "sideways"
)

// Ticker holds the 24h rolling statistics for a trading pair
type Ticker struct {
	Symbol           string    `json:"symbol"`
	Price            float64   `json:"price"`
	ChangePercent24h float64   `json:"change_percent_24h"`
	Volume24h        float64   `json:"volume_24h"`
	High24h          float64   `json:"high_24h"`
	Low24h           float64   `json:"low_24h"`
	Timestamp        time.Time `json:"timestamp"`
}

// Candle is a single OHLCV bar reduced to the fields the indicators use
type Candle struct {
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
}

// Snapshot is the per-symbol market context assembled once per agent cycle
type Snapshot struct {
	Ticker    Ticker  `json:"ticker"`
	RSI       float64 `json:"rsi"`
	ShortMA   float64 `json:"short_ma"` // SMA(20)
	LongMA    float64 `json:"long_ma"`  // SMA(50)
	AvgVolume float64 `json:"avg_volume"`
	Trend     Trend   `json:"trend"`
}

// Gateway provides market data for the agent runtimes. Implementations
// must be safe for concurrent use.
type Gateway interface {
	// Ticker returns the latest 24h statistics for a symbol.
	Ticker(ctx context.Context, symbol string) (*Ticker, error)

	// Candles returns up to limit recent bars for a symbol, oldest first.
	Candles(ctx context.Context, symbol, interval string, limit int) ([]Candle, error)
}
