// Package notify publishes engine events to NATS. Publishing is
// fire-and-forget: a broken broker never blocks or fails an agent
// cycle.
package notify

import (
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/agentfleet/agentfleet/internal/config"
)

// Subjects for engine events
const (
	SubjectEngineStatus = "engine.status"
	subjectExecutionFmt = "agents.execution.%s"
)

// ExecutionSubject returns the per-agent execution event subject.
func ExecutionSubject(agentID string) string {
	return fmt.Sprintf(subjectExecutionFmt, agentID)
}

// Publisher sends one event to a subject. Implementations swallow
// transport errors after logging them.
type Publisher interface {
	Publish(subject string, event interface{})
	Close()
}

// NATSPublisher publishes JSON events over a NATS connection
type NATSPublisher struct {
	nc     *nats.Conn
	logger zerolog.Logger
}

// NewNATSPublisher connects to the broker. A connection failure is
// returned so the host can decide whether to run without events.
func NewNATSPublisher(url string) (*NATSPublisher, error) {
	nc, err := nats.Connect(url,
		nats.MaxReconnects(-1),
		nats.RetryOnFailedConnect(true),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", url, err)
	}

	return &NATSPublisher{
		nc:     nc,
		logger: config.NewLogger("notify"),
	}, nil
}

// Publish marshals the event and sends it. Errors are logged and
// dropped.
func (p *NATSPublisher) Publish(subject string, event interface{}) {
	data, err := json.Marshal(event)
	if err != nil {
		p.logger.Warn().Err(err).Str("subject", subject).Msg("Failed to marshal event")
		return
	}
	if err := p.nc.Publish(subject, data); err != nil {
		p.logger.Warn().Err(err).Str("subject", subject).Msg("Failed to publish event")
	}
}

// Close drains the connection.
func (p *NATSPublisher) Close() {
	if err := p.nc.Drain(); err != nil {
		p.logger.Warn().Err(err).Msg("Failed to drain NATS connection")
	}
}

// NopPublisher drops every event. Used when NATS is disabled and in
// tests.
type NopPublisher struct{}

func (NopPublisher) Publish(string, interface{}) {}
func (NopPublisher) Close()                      {}
