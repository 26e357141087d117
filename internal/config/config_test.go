package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "AgentFleet", cfg.App.Name)
	assert.Equal(t, 30*time.Second, cfg.Engine.TickInterval)
	assert.Equal(t, 10, cfg.Engine.BatchSize)
	assert.Equal(t, 5*time.Second, cfg.Engine.ErrorBackoff)
	assert.Equal(t, 100, cfg.Engine.HistoryLimit)
	assert.Equal(t, 10000.0, cfg.Exchange.InitialCapital)
	assert.Equal(t, "USDT", cfg.Exchange.QuoteAsset)
	assert.Equal(t, 0.001, cfg.Exchange.BaseSlippage)
	assert.Equal(t, 0.001, cfg.Exchange.TakerFee)
	assert.Equal(t, 100*time.Millisecond, cfg.Market.MinCallGap)
}

func TestEffectiveCycleTimeout(t *testing.T) {
	t.Run("derived from tick interval", func(t *testing.T) {
		ec := EngineConfig{TickInterval: 30 * time.Second}
		assert.Equal(t, 25*time.Second, ec.EffectiveCycleTimeout())
	})

	t.Run("explicit value wins", func(t *testing.T) {
		ec := EngineConfig{TickInterval: 30 * time.Second, CycleTimeout: 10 * time.Second}
		assert.Equal(t, 10*time.Second, ec.EffectiveCycleTimeout())
	})

	t.Run("short tick keeps full interval", func(t *testing.T) {
		ec := EngineConfig{TickInterval: 2 * time.Second}
		assert.Equal(t, 2*time.Second, ec.EffectiveCycleTimeout())
	})
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		cfg, err := Load("")
		require.NoError(t, err)
		return cfg
	}

	t.Run("valid defaults", func(t *testing.T) {
		assert.NoError(t, base().Validate())
	})

	t.Run("zero tick interval", func(t *testing.T) {
		cfg := base()
		cfg.Engine.TickInterval = 0
		assert.Error(t, cfg.Validate())
	})

	t.Run("negative capital", func(t *testing.T) {
		cfg := base()
		cfg.Exchange.InitialCapital = -100
		assert.Error(t, cfg.Validate())
	})

	t.Run("fee out of range", func(t *testing.T) {
		cfg := base()
		cfg.Exchange.TakerFee = 1.5
		assert.Error(t, cfg.Validate())
	})

	t.Run("empty oracle endpoint", func(t *testing.T) {
		cfg := base()
		cfg.Oracle.Endpoint = ""
		assert.Error(t, cfg.Validate())
	})
}

func TestGetDSN(t *testing.T) {
	db := DatabaseConfig{
		Host: "localhost", Port: 5432, User: "postgres",
		Password: "secret", Database: "agentfleet", SSLMode: "disable",
	}
	assert.Equal(t,
		"host=localhost port=5432 user=postgres password=secret dbname=agentfleet sslmode=disable",
		db.GetDSN())
}
