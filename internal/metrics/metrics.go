// Package metrics exposes Prometheus instrumentation for the engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Execution outcomes form a bounded label set.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Engine metrics
var (
	TicksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "agentfleet_engine_ticks_total",
		Help: "Total number of scheduler ticks processed",
	})

	TickErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "agentfleet_engine_tick_errors_total",
		Help: "Total number of scheduler ticks that failed at the top level",
	})

	RegisteredAgents = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "agentfleet_registered_agents",
		Help: "Number of agents known to the engine",
	})

	RunningAgents = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "agentfleet_running_agents",
		Help: "Number of agents participating in ticks",
	})
)

// Agent execution metrics
var (
	ExecutionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agentfleet_executions_total",
		Help: "Total number of agent cycle executions by outcome",
	}, []string{"outcome"})

	CycleDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "agentfleet_cycle_duration_seconds",
		Help:    "Duration of a single agent decision cycle",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 25},
	})

	TotalProfit = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "agentfleet_total_profit_usd",
		Help: "Cumulative simulated profit across all agents in USD",
	})

	OracleFallbacks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "agentfleet_oracle_fallbacks_total",
		Help: "Total number of cycles resolved with a fallback decision",
	})
)

// API metrics
var (
	APIRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agentfleet_api_requests_total",
		Help: "Total number of API requests by method, route and status",
	}, []string{"method", "route", "status"})

	APIRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "agentfleet_api_request_duration_ms",
		Help:    "API request latency in milliseconds",
		Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
	}, []string{"method", "route"})
)

// RecordExecution records one resolved agent cycle.
func RecordExecution(outcome string, seconds float64, fallback bool) {
	ExecutionsTotal.WithLabelValues(outcome).Inc()
	CycleDuration.Observe(seconds)
	if fallback {
		OracleFallbacks.Inc()
	}
}

// RecordTick records one scheduler tick.
func RecordTick(err error) {
	TicksTotal.Inc()
	if err != nil {
		TickErrors.Inc()
	}
}

// SetAgentCounts updates the registry gauges.
func SetAgentCounts(total, running int) {
	RegisteredAgents.Set(float64(total))
	RunningAgents.Set(float64(running))
}

// RecordAPIRequest records one API request for the middleware.
func RecordAPIRequest(method, route, status string, durationMs float64) {
	APIRequestsTotal.WithLabelValues(method, route, status).Inc()
	APIRequestDuration.WithLabelValues(method, route).Observe(durationMs)
}
