// Package oracle calls the reasoning model that turns market context
// and strategy signals into a single decision per cycle. Every failure
// mode degrades to a safe HOLD fallback; the runtime never sees an
// unusable decision.
package oracle

import (
	"encoding/json"
	"fmt"
)

// DecisionType discriminates the params union
type DecisionType string

const (
	DecisionTypeTrade      DecisionType = "trade"
	DecisionTypeContent    DecisionType = "content"
	DecisionTypeAutomation DecisionType = "automation"
)

// Params is the tagged union of type-specific decision payloads
type Params interface {
	decisionParams()
}

// TradeParams carries a trade decision's order details
type TradeParams struct {
	Symbol   string  `json:"symbol"`
	Side     string  `json:"side"` // BUY or SELL
	Quantity float64 `json:"quantity"`
}

func (TradeParams) decisionParams() {}

// ContentParams carries a content decision's target
type ContentParams struct {
	Platform string `json:"platform"`
	Topic    string `json:"topic"`
}

func (ContentParams) decisionParams() {}

// AutomationParams carries an automation decision's task
type AutomationParams struct {
	TaskType string            `json:"task_type"`
	Args     map[string]string `json:"args,omitempty"`
}

func (AutomationParams) decisionParams() {}

// Alternative is a decision path the oracle considered but did not take
type Alternative struct {
	Action     string  `json:"action"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason,omitempty"`
}

// Decision is the oracle's answer for one agent cycle
type Decision struct {
	Type         DecisionType  `json:"type"`
	Action       string        `json:"action"`
	Confidence   float64       `json:"confidence"` // 0-100
	Reasoning    string        `json:"reasoning"`
	Params       Params        `json:"params,omitempty"`
	Alternatives []Alternative `json:"alternatives,omitempty"`
	Fallback     bool          `json:"fallback,omitempty"`
}

// decisionWire mirrors Decision with the params left raw so the tagged
// union can be decoded by type.
type decisionWire struct {
	Type         DecisionType    `json:"type"`
	Action       string          `json:"action"`
	Confidence   float64         `json:"confidence"`
	Reasoning    string          `json:"reasoning"`
	Params       json.RawMessage `json:"params,omitempty"`
	Alternatives []Alternative   `json:"alternatives,omitempty"`
	Fallback     bool            `json:"fallback,omitempty"`
}

// UnmarshalJSON decodes the params union according to the type tag.
func (d *Decision) UnmarshalJSON(data []byte) error {
	var wire decisionWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}

	d.Type = wire.Type
	d.Action = wire.Action
	d.Confidence = wire.Confidence
	d.Reasoning = wire.Reasoning
	d.Alternatives = wire.Alternatives
	d.Fallback = wire.Fallback
	d.Params = nil

	if len(wire.Params) == 0 || string(wire.Params) == "null" {
		return nil
	}

	switch wire.Type {
	case DecisionTypeTrade:
		var p TradeParams
		if err := json.Unmarshal(wire.Params, &p); err != nil {
			return fmt.Errorf("trade params: %w", err)
		}
		d.Params = p
	case DecisionTypeContent:
		var p ContentParams
		if err := json.Unmarshal(wire.Params, &p); err != nil {
			return fmt.Errorf("content params: %w", err)
		}
		d.Params = p
	case DecisionTypeAutomation:
		var p AutomationParams
		if err := json.Unmarshal(wire.Params, &p); err != nil {
			return fmt.Errorf("automation params: %w", err)
		}
		d.Params = p
	default:
		return fmt.Errorf("unknown decision type: %q", wire.Type)
	}
	return nil
}

// Trade returns the trade params when the decision carries them.
func (d *Decision) Trade() (TradeParams, bool) {
	p, ok := d.Params.(TradeParams)
	return p, ok
}

// Content returns the content params when the decision carries them.
func (d *Decision) Content() (ContentParams, bool) {
	p, ok := d.Params.(ContentParams)
	return p, ok
}

// Automation returns the automation params when the decision carries
// them.
func (d *Decision) Automation() (AutomationParams, bool) {
	p, ok := d.Params.(AutomationParams)
	return p, ok
}
