// Command engine runs the agent execution engine: the tick scheduler,
// the REST control surface and the Prometheus endpoint.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/agentfleet/agentfleet/internal/agent"
	"github.com/agentfleet/agentfleet/internal/api"
	"github.com/agentfleet/agentfleet/internal/config"
	"github.com/agentfleet/agentfleet/internal/engine"
	"github.com/agentfleet/agentfleet/internal/market"
	"github.com/agentfleet/agentfleet/internal/metrics"
	"github.com/agentfleet/agentfleet/internal/notify"
	"github.com/agentfleet/agentfleet/internal/oracle"
	"github.com/agentfleet/agentfleet/internal/store"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	config.InitLogger(cfg.App.LogLevel, cfg.App.LogFormat)

	log.Info().
		Str("environment", cfg.App.Environment).
		Msg("Starting AgentFleet engine")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Market data: Binance with an optional Redis read-through cache.
	var gateway market.Gateway = market.NewBinanceGateway(cfg.Market)
	if cfg.Market.EnableCache {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.GetRedisAddr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.Warn().Err(err).Msg("Redis unavailable, market cache disabled")
		} else {
			gateway = market.NewCachedGateway(gateway, redisClient, cfg.Market)
			defer redisClient.Close()
		}
	}

	// Decision oracle.
	apiKey := os.Getenv("AGENTFLEET_ORACLE_API_KEY")
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	oracleClient := oracle.NewClient(cfg.Oracle, apiKey)

	// Event publishing.
	var publisher notify.Publisher = notify.NopPublisher{}
	if cfg.NATS.Enabled {
		natsPub, err := notify.NewNATSPublisher(cfg.NATS.URL)
		if err != nil {
			log.Warn().Err(err).Msg("NATS unavailable, events disabled")
		} else {
			publisher = natsPub
			defer natsPub.Close()
		}
	}

	// Persistence.
	var st *store.Store
	var engineStore engine.Store
	if cfg.Database.Enabled {
		st, err = store.Connect(ctx, cfg.Database.GetDSN())
		if err != nil {
			log.Warn().Err(err).Msg("Database unavailable, running in-memory only")
		} else {
			defer st.Close()
			if err := st.Migrate(ctx); err != nil {
				log.Fatal().Err(err).Msg("Failed to apply database schema")
			}
			engineStore = st
		}
	}

	deps := agent.Deps{
		Gateway:     gateway,
		Oracle:      oracleClient,
		Publisher:   publisher,
		EngineCfg:   cfg.Engine,
		ExchangeCfg: cfg.Exchange,
		MarketCfg:   cfg.Market,
	}
	eng := engine.New(cfg.Engine, deps, engineStore)

	if err := eng.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to start engine")
	}

	// Prometheus endpoint.
	var metricsServer *metrics.Server
	if cfg.Monitoring.EnableMetrics {
		metricsServer = metrics.NewServer(cfg.Monitoring.PrometheusPort, log.Logger)
		metricsServer.SetStatusFunc(func() interface{} { return eng.Status() })
		if err := metricsServer.Start(); err != nil {
			log.Error().Err(err).Msg("Failed to start metrics server")
		}
	}

	// REST control surface.
	apiCfg := api.Config{
		Host:   cfg.API.Host,
		Port:   cfg.API.Port,
		Engine: eng,
	}
	if st != nil {
		apiCfg.Store = st
	}
	server := api.NewServer(apiCfg)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- server.Start()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		log.Error().Err(err).Msg("API server error")
	case sig := <-sigChan:
		log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
	}

	log.Info().Msg("Shutting down...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Failed to stop API server gracefully")
	}
	eng.Stop()
	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Failed to stop metrics server gracefully")
		}
	}

	log.Info().Msg("Engine stopped")
}
