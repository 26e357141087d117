package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Engine     EngineConfig     `mapstructure:"engine"`
	Exchange   ExchangeConfig   `mapstructure:"exchange"`
	Market     MarketConfig     `mapstructure:"market"`
	Oracle     OracleConfig     `mapstructure:"oracle"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	NATS       NATSConfig       `mapstructure:"nats"`
	API        APIConfig        `mapstructure:"api"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
}

// AppConfig contains application-level settings
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"` // development, staging, production
	LogLevel    string `mapstructure:"log_level"`
	LogFormat   string `mapstructure:"log_format"` // "json" or "console"
}

// EngineConfig contains scheduler settings
type EngineConfig struct {
	TickInterval   time.Duration `mapstructure:"tick_interval"`   // 30s
	BatchSize      int           `mapstructure:"batch_size"`      // 10
	CycleTimeout   time.Duration `mapstructure:"cycle_timeout"`   // tick_interval - 5s when zero
	ErrorBackoff   time.Duration `mapstructure:"error_backoff"`   // 5s
	HistoryLimit   int           `mapstructure:"history_limit"`   // 100
	LearningsLimit int           `mapstructure:"learnings_limit"` // 50
}

// EffectiveCycleTimeout returns the per-cycle deadline, derived from the
// tick interval when not set explicitly.
func (c *EngineConfig) EffectiveCycleTimeout() time.Duration {
	if c.CycleTimeout > 0 {
		return c.CycleTimeout
	}
	if c.TickInterval > 5*time.Second {
		return c.TickInterval - 5*time.Second
	}
	return c.TickInterval
}

// ExchangeConfig contains paper trading venue settings
type ExchangeConfig struct {
	InitialCapital float64 `mapstructure:"initial_capital"` // 10000.0
	QuoteAsset     string  `mapstructure:"quote_asset"`     // "USDT"
	BaseSlippage   float64 `mapstructure:"base_slippage"`   // 0.001 (0.1%)
	MaxImpact      float64 `mapstructure:"max_impact"`      // 0.01 (1% cap on size impact)
	ImpactDivisor  float64 `mapstructure:"impact_divisor"`  // 1000.0
	TakerFee       float64 `mapstructure:"taker_fee"`       // 0.001 (0.1%)
}

// MarketConfig contains market data gateway settings
type MarketConfig struct {
	TickerTTL     time.Duration `mapstructure:"ticker_ttl"`      // 30s
	CandleTTL     time.Duration `mapstructure:"candle_ttl"`      // 5m
	MinCallGap    time.Duration `mapstructure:"min_call_gap"`    // 100ms between venue calls
	CandleLimit   int           `mapstructure:"candle_limit"`    // 100
	UseTestnet    bool          `mapstructure:"use_testnet"`     // false
	EnableCache   bool          `mapstructure:"enable_cache"`    // true
	BreakerTrips  uint32        `mapstructure:"breaker_trips"`   // 5 consecutive failures
	BreakerReset  time.Duration `mapstructure:"breaker_reset"`   // 60s
}

// OracleConfig contains decision oracle gateway settings
type OracleConfig struct {
	Endpoint    string  `mapstructure:"endpoint"`    // chat-completions URL
	Model       string  `mapstructure:"model"`       //
	Temperature float64 `mapstructure:"temperature"` // 0.7
	MaxTokens   int     `mapstructure:"max_tokens"`  // 2000
	Timeout     int     `mapstructure:"timeout"`     // ms
	MaxRetries  int     `mapstructure:"max_retries"` // 2
}

// GetTimeout returns the oracle timeout as time.Duration
func (c *OracleConfig) GetTimeout() time.Duration {
	return time.Duration(c.Timeout) * time.Millisecond
}

// DatabaseConfig contains PostgreSQL settings
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	SSLMode  string `mapstructure:"ssl_mode"`
	PoolSize int    `mapstructure:"pool_size"`
	Enabled  bool   `mapstructure:"enabled"`
}

// RedisConfig contains Redis settings
type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// NATSConfig contains NATS messaging settings
type NATSConfig struct {
	URL     string `mapstructure:"url"`
	Enabled bool   `mapstructure:"enabled"`
}

// APIConfig contains REST API settings
type APIConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// MonitoringConfig contains monitoring settings
type MonitoringConfig struct {
	PrometheusPort int  `mapstructure:"prometheus_port"`
	EnableMetrics  bool `mapstructure:"enable_metrics"`
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	v.AutomaticEnv()
	v.SetEnvPrefix("AGENTFLEET")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found; using defaults and environment variables
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// App defaults
	v.SetDefault("app.name", "AgentFleet")
	v.SetDefault("app.version", "0.1.0")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.log_level", "info")
	v.SetDefault("app.log_format", "json")

	// Engine defaults
	v.SetDefault("engine.tick_interval", "30s")
	v.SetDefault("engine.batch_size", 10)
	v.SetDefault("engine.error_backoff", "5s")
	v.SetDefault("engine.history_limit", 100)
	v.SetDefault("engine.learnings_limit", 50)

	// Exchange defaults
	v.SetDefault("exchange.initial_capital", 10000.0)
	v.SetDefault("exchange.quote_asset", "USDT")
	v.SetDefault("exchange.base_slippage", 0.001)
	v.SetDefault("exchange.max_impact", 0.01)
	v.SetDefault("exchange.impact_divisor", 1000.0)
	v.SetDefault("exchange.taker_fee", 0.001)

	// Market defaults
	v.SetDefault("market.ticker_ttl", "30s")
	v.SetDefault("market.candle_ttl", "5m")
	v.SetDefault("market.min_call_gap", "100ms")
	v.SetDefault("market.candle_limit", 100)
	v.SetDefault("market.use_testnet", false)
	v.SetDefault("market.enable_cache", true)
	v.SetDefault("market.breaker_trips", 5)
	v.SetDefault("market.breaker_reset", "60s")

	// Oracle defaults
	v.SetDefault("oracle.endpoint", "http://localhost:8080/v1/chat/completions")
	v.SetDefault("oracle.model", "gpt-4-turbo")
	v.SetDefault("oracle.temperature", 0.7)
	v.SetDefault("oracle.max_tokens", 2000)
	v.SetDefault("oracle.timeout", 25000)
	v.SetDefault("oracle.max_retries", 2)

	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.database", "agentfleet")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.pool_size", 10)
	v.SetDefault("database.enabled", false)

	// Redis defaults
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)

	// NATS defaults
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("nats.enabled", false)

	// API defaults
	v.SetDefault("api.host", "0.0.0.0")
	v.SetDefault("api.port", 8081)

	// Monitoring defaults
	v.SetDefault("monitoring.prometheus_port", 9100)
	v.SetDefault("monitoring.enable_metrics", true)
}

// Validate checks configuration consistency
func (c *Config) Validate() error {
	if c.Engine.TickInterval <= 0 {
		return fmt.Errorf("engine.tick_interval must be positive, got %s", c.Engine.TickInterval)
	}
	if c.Engine.BatchSize <= 0 {
		return fmt.Errorf("engine.batch_size must be positive, got %d", c.Engine.BatchSize)
	}
	if c.Engine.HistoryLimit <= 0 {
		return fmt.Errorf("engine.history_limit must be positive, got %d", c.Engine.HistoryLimit)
	}
	if c.Exchange.InitialCapital <= 0 {
		return fmt.Errorf("exchange.initial_capital must be positive, got %f", c.Exchange.InitialCapital)
	}
	if c.Exchange.TakerFee < 0 || c.Exchange.TakerFee >= 1 {
		return fmt.Errorf("exchange.taker_fee must be in [0, 1), got %f", c.Exchange.TakerFee)
	}
	if c.Exchange.BaseSlippage < 0 || c.Exchange.BaseSlippage >= 1 {
		return fmt.Errorf("exchange.base_slippage must be in [0, 1), got %f", c.Exchange.BaseSlippage)
	}
	if c.Oracle.Endpoint == "" {
		return fmt.Errorf("oracle.endpoint must not be empty")
	}
	return nil
}

// GetDSN returns the PostgreSQL connection string
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// GetRedisAddr returns the Redis address
func (c *RedisConfig) GetRedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// GetAPIAddr returns the API server address
func (c *APIConfig) GetAPIAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
