package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentfleet/agentfleet/internal/agent"
	"github.com/agentfleet/agentfleet/internal/config"
	"github.com/agentfleet/agentfleet/internal/engine"
	"github.com/agentfleet/agentfleet/internal/market"
	"github.com/agentfleet/agentfleet/internal/oracle"
	"github.com/agentfleet/agentfleet/internal/strategy"
)

type stubGateway struct{}

func (stubGateway) Ticker(_ context.Context, symbol string) (*market.Ticker, error) {
	return &market.Ticker{Symbol: symbol, Price: 45000, High24h: 46000, Low24h: 44000, Volume24h: 2400}, nil
}

func (stubGateway) Candles(_ context.Context, _, _ string, _ int) ([]market.Candle, error) {
	candles := make([]market.Candle, 60)
	for i := range candles {
		candles[i] = market.Candle{Close: 44000 + 20*float64(i), Volume: 100}
	}
	return candles, nil
}

type holdOracle struct{}

func (holdOracle) Decide(_ context.Context, _ oracle.Request) (*oracle.Decision, error) {
	return &oracle.Decision{
		Type:       oracle.DecisionTypeTrade,
		Action:     strategy.ActionHold,
		Confidence: 50,
		Reasoning:  "flat",
	}, nil
}

type failingHealth struct{}

func (failingHealth) Health(context.Context) error { return errors.New("down") }

func testServer(t *testing.T, store HealthChecker) (*Server, *engine.Engine) {
	t.Helper()
	deps := agent.Deps{
		Gateway:   stubGateway{},
		Oracle:    holdOracle{},
		EngineCfg: config.EngineConfig{TickInterval: time.Hour, BatchSize: 10, HistoryLimit: 100, LearningsLimit: 50},
		ExchangeCfg: config.ExchangeConfig{
			InitialCapital: 10000, QuoteAsset: "USDT",
			BaseSlippage: 0.001, MaxImpact: 0.01, ImpactDivisor: 1000, TakerFee: 0.001,
		},
		MarketCfg: config.MarketConfig{CandleLimit: 60},
	}
	e := engine.New(deps.EngineCfg, deps, nil)
	t.Cleanup(e.Stop)
	return NewServer(Config{Engine: e, Store: store}), e
}

func doJSON(t *testing.T, s *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)
	return w
}

func sampleAgent() agent.Config {
	return agent.Config{
		ID:      "agent-1",
		Name:    "Alpha",
		Type:    agent.TypeTrading,
		Symbols: []string{"BTCUSDT"},
		Personality: agent.Personality{
			RiskTolerance:       50,
			ConfidenceThreshold: 60,
			TradingStyle:        agent.StyleBalanced,
		},
	}
}

func TestHealth(t *testing.T) {
	t.Run("healthy without store", func(t *testing.T) {
		s, _ := testServer(t, nil)
		w := doJSON(t, s, http.MethodGet, "/api/v1/health", nil)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("unhealthy store", func(t *testing.T) {
		s, _ := testServer(t, failingHealth{})
		w := doJSON(t, s, http.MethodGet, "/api/v1/health", nil)
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})
}

func TestEngineControl(t *testing.T) {
	s, e := testServer(t, nil)

	w := doJSON(t, s, http.MethodPost, "/api/v1/engine/start", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, e.Status().IsRunning)

	w = doJSON(t, s, http.MethodGet, "/api/v1/engine/status", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	var status engine.Status
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.True(t, status.IsRunning)

	w = doJSON(t, s, http.MethodPost, "/api/v1/engine/stop", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.False(t, e.Status().IsRunning)
}

func TestCreateAgent(t *testing.T) {
	t.Run("creates and returns config", func(t *testing.T) {
		s, e := testServer(t, nil)

		w := doJSON(t, s, http.MethodPost, "/api/v1/agents", sampleAgent())
		require.Equal(t, http.StatusCreated, w.Code)

		var created agent.Config
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
		assert.Equal(t, "agent-1", created.ID)
		assert.NotNil(t, e.Agent("agent-1"))
	})

	t.Run("rejects malformed body", func(t *testing.T) {
		s, _ := testServer(t, nil)

		req := httptest.NewRequest(http.MethodPost, "/api/v1/agents", bytes.NewReader([]byte("{not json")))
		w := httptest.NewRecorder()
		s.Router().ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("rejects duplicate id", func(t *testing.T) {
		s, _ := testServer(t, nil)

		w := doJSON(t, s, http.MethodPost, "/api/v1/agents", sampleAgent())
		require.Equal(t, http.StatusCreated, w.Code)
		w = doJSON(t, s, http.MethodPost, "/api/v1/agents", sampleAgent())
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestAgentControl(t *testing.T) {
	s, e := testServer(t, nil)

	w := doJSON(t, s, http.MethodPost, "/api/v1/agents", sampleAgent())
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(t, s, http.MethodPost, "/api/v1/agents/agent-1/start", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, e.Status().RunningAgents)

	w = doJSON(t, s, http.MethodPost, "/api/v1/agents/agent-1/stop", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 0, e.Status().RunningAgents)

	w = doJSON(t, s, http.MethodDelete, "/api/v1/agents/agent-1", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, 0, e.Status().TotalAgents)
}

func TestUnknownAgentResponses(t *testing.T) {
	s, _ := testServer(t, nil)

	t.Run("control operations return 404", func(t *testing.T) {
		for _, tc := range []struct {
			method string
			path   string
		}{
			{http.MethodPost, "/api/v1/agents/ghost/start"},
			{http.MethodPost, "/api/v1/agents/ghost/stop"},
			{http.MethodDelete, "/api/v1/agents/ghost"},
			{http.MethodGet, "/api/v1/agents/ghost"},
			{http.MethodGet, "/api/v1/agents/ghost/portfolio"},
		} {
			w := doJSON(t, s, tc.method, tc.path, nil)
			assert.Equal(t, http.StatusNotFound, w.Code, "%s %s", tc.method, tc.path)
		}
	})

	t.Run("reads return empty payloads", func(t *testing.T) {
		w := doJSON(t, s, http.MethodGet, "/api/v1/agents/ghost/metrics", nil)
		assert.Equal(t, http.StatusOK, w.Code)

		w = doJSON(t, s, http.MethodGet, "/api/v1/agents/ghost/history", nil)
		assert.Equal(t, http.StatusOK, w.Code)
		var payload struct {
			Count int `json:"count"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &payload))
		assert.Zero(t, payload.Count)
	})
}

func TestListAgents(t *testing.T) {
	s, _ := testServer(t, nil)

	w := doJSON(t, s, http.MethodPost, "/api/v1/agents", sampleAgent())
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(t, s, http.MethodGet, "/api/v1/agents", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var payload struct {
		Agents []agent.Config `json:"agents"`
		Count  int            `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &payload))
	assert.Equal(t, 1, payload.Count)
	assert.Equal(t, "agent-1", payload.Agents[0].ID)
}

func TestAgentPortfolio(t *testing.T) {
	s, _ := testServer(t, nil)

	w := doJSON(t, s, http.MethodPost, "/api/v1/agents", sampleAgent())
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(t, s, http.MethodGet, "/api/v1/agents/agent-1/portfolio", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var pf struct {
		TotalValue float64 `json:"total_value"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &pf))
	assert.Equal(t, 10000.0, pf.TotalValue)
}

func TestHistoryLimitValidation(t *testing.T) {
	s, _ := testServer(t, nil)

	w := doJSON(t, s, http.MethodGet, "/api/v1/agents/ghost/history?limit=nope", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
