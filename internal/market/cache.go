package market

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/agentfleet/agentfleet/internal/config"
)

// CachedGateway decorates a Gateway with Redis-backed caching. Cache
// failures are logged and treated as misses; writes happen off the
// request path.
type CachedGateway struct {
	inner     Gateway
	client    *redis.Client
	tickerTTL time.Duration
	candleTTL time.Duration
	logger    zerolog.Logger
}

// NewCachedGateway wraps inner with a Redis cache. If client is nil the
// inner gateway is returned unwrapped.
func NewCachedGateway(inner Gateway, client *redis.Client, cfg config.MarketConfig) Gateway {
	if client == nil {
		return inner
	}

	tickerTTL := cfg.TickerTTL
	if tickerTTL <= 0 {
		tickerTTL = 30 * time.Second
	}
	candleTTL := cfg.CandleTTL
	if candleTTL <= 0 {
		candleTTL = 5 * time.Minute
	}

	return &CachedGateway{
		inner:     inner,
		client:    client,
		tickerTTL: tickerTTL,
		candleTTL: candleTTL,
		logger:    config.NewLogger("market_cache"),
	}
}

// Ticker returns the cached ticker when fresh, otherwise fetches from
// the inner gateway and caches the result.
func (c *CachedGateway) Ticker(ctx context.Context, symbol string) (*Ticker, error) {
	key := tickerKey(symbol)

	var cached Ticker
	if c.get(ctx, key, &cached) {
		return &cached, nil
	}

	ticker, err := c.inner.Ticker(ctx, symbol)
	if err != nil {
		return nil, err
	}

	c.setAsync(key, ticker, c.tickerTTL)
	return ticker, nil
}

// Candles returns cached bars when fresh, otherwise fetches from the
// inner gateway and caches the result.
func (c *CachedGateway) Candles(ctx context.Context, symbol, interval string, limit int) ([]Candle, error) {
	key := candleKey(symbol, interval, limit)

	var cached []Candle
	if c.get(ctx, key, &cached) {
		return cached, nil
	}

	closes, err := c.inner.Candles(ctx, symbol, interval, limit)
	if err != nil {
		return nil, err
	}

	c.setAsync(key, closes, c.candleTTL)
	return closes, nil
}

// get loads and unmarshals a cache entry. Any failure is a miss.
func (c *CachedGateway) get(ctx context.Context, key string, dest interface{}) bool {
	cacheCtx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()

	raw, err := c.client.Get(cacheCtx, key).Result()
	if err != nil {
		if err != redis.Nil {
			c.logger.Debug().Err(err).Str("key", key).Msg("Redis get error, treating as cache miss")
		}
		return false
	}

	if err := json.Unmarshal([]byte(raw), dest); err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("Failed to unmarshal cached market data")
		return false
	}
	return true
}

// setAsync writes a cache entry off the request path so a slow Redis
// never delays an agent cycle.
func (c *CachedGateway) setAsync(key string, value interface{}, ttl time.Duration) {
	data, err := json.Marshal(value)
	if err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("Failed to marshal market data for cache")
		return
	}

	go func() {
		cacheCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		if err := c.client.Set(cacheCtx, key, data, ttl).Err(); err != nil {
			c.logger.Warn().Err(err).Str("key", key).Msg("Failed to cache market data")
		}
	}()
}

func tickerKey(symbol string) string {
	return fmt.Sprintf("agentfleet:market:ticker:%s", symbol)
}

func candleKey(symbol, interval string, limit int) string {
	return fmt.Sprintf("agentfleet:market:candles:%s:%s:%d", symbol, interval, limit)
}
