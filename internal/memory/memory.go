// Package memory keeps an agent's bounded decision history and the
// pattern learnings distilled from it. Everything lives in memory; the
// engine snapshots what it wants durable.
package memory

import (
	"fmt"
	"math"
	"sort"
	"sync"
	"time"
)

// Decision outcomes
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// MarketContext captures the conditions a decision was made under
type MarketContext struct {
	Symbol string  `json:"symbol,omitempty"`
	Price  float64 `json:"price,omitempty"`
	RSI    float64 `json:"rsi"`
	Trend  string  `json:"trend"`
}

// DecisionRecord is one resolved decision with its outcome
type DecisionRecord struct {
	ID        string        `json:"id"`
	Timestamp time.Time     `json:"timestamp"`
	Action    string        `json:"action"`
	Confidence float64      `json:"confidence"`
	Reasoning string        `json:"reasoning,omitempty"`
	Context   MarketContext `json:"context"`
	Outcome   string        `json:"outcome"`
	Profit    float64       `json:"profit"`
}

// Learning aggregates the outcomes of decisions sharing a pattern
type Learning struct {
	Pattern     string    `json:"pattern"`
	Condition   string    `json:"condition"`
	SuccessRate float64   `json:"success_rate"` // percent
	AvgProfit   float64   `json:"avg_profit"`
	Confidence  float64   `json:"confidence"` // min(100, success rate + 10)
	Occurrences int       `json:"occurrences"`
	LastUpdated time.Time `json:"last_updated"`
}

// Memory is one agent's decision log and learning store
type Memory struct {
	mu sync.RWMutex

	decisions    []DecisionRecord
	decisionCap  int
	learnings    map[string]*Learning
	learningsCap int
}

// New creates a memory with the given ring and learning capacities.
// Non-positive capacities fall back to 100 decisions and 50 learnings.
func New(decisionCap, learningsCap int) *Memory {
	if decisionCap <= 0 {
		decisionCap = 100
	}
	if learningsCap <= 0 {
		learningsCap = 50
	}
	return &Memory{
		decisionCap:  decisionCap,
		learnings:    make(map[string]*Learning),
		learningsCap: learningsCap,
	}
}

// PatternKey derives the learning bucket for a decision: action, trend
// and the RSI regime it happened in.
func PatternKey(action, trend string, rsi float64) string {
	return fmt.Sprintf("%s_%s_%s", action, trend, rsiBucket(rsi))
}

func rsiBucket(rsi float64) string {
	switch {
	case rsi > 70:
		return "overbought"
	case rsi < 30:
		return "oversold"
	default:
		return "neutral"
	}
}

// Record appends a resolved decision, evicting the oldest entry past
// the cap, and refreshes the learning for its pattern.
func (m *Memory) Record(rec DecisionRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.decisions = append(m.decisions, rec)
	if len(m.decisions) > m.decisionCap {
		m.decisions = m.decisions[len(m.decisions)-m.decisionCap:]
	}

	m.updateLearningLocked(rec)
}

// updateLearningLocked recomputes the pattern stats over the retained
// decisions that match the new record: same action, RSI within 20
// points.
func (m *Memory) updateLearningLocked(rec DecisionRecord) {
	matches := 0
	successes := 0
	profit := 0.0
	for _, d := range m.decisions {
		if d.Action != rec.Action {
			continue
		}
		if math.Abs(d.Context.RSI-rec.Context.RSI) >= 20 {
			continue
		}
		matches++
		profit += d.Profit
		if d.Outcome == OutcomeSuccess {
			successes++
		}
	}
	if matches == 0 {
		return
	}

	successRate := float64(successes) / float64(matches) * 100
	key := PatternKey(rec.Action, rec.Context.Trend, rec.Context.RSI)

	learning, ok := m.learnings[key]
	if !ok {
		learning = &Learning{
			Pattern: key,
			Condition: fmt.Sprintf("action=%s trend=%s rsi=%s",
				rec.Action, rec.Context.Trend, rsiBucket(rec.Context.RSI)),
		}
		m.learnings[key] = learning
	}

	learning.SuccessRate = successRate
	learning.AvgProfit = profit / float64(matches)
	learning.Confidence = math.Min(100, successRate+10)
	learning.Occurrences = matches
	learning.LastUpdated = rec.Timestamp

	m.evictStaleLearningsLocked()
}

func (m *Memory) evictStaleLearningsLocked() {
	for len(m.learnings) > m.learningsCap {
		var stalest string
		var stalestAt time.Time
		first := true
		for key, l := range m.learnings {
			if first || l.LastUpdated.Before(stalestAt) {
				stalest = key
				stalestAt = l.LastUpdated
				first = false
			}
		}
		delete(m.learnings, stalest)
	}
}

// RecentOutcomes returns up to n decisions, newest last.
func (m *Memory) RecentOutcomes(n int) []DecisionRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if n <= 0 || n > len(m.decisions) {
		n = len(m.decisions)
	}
	out := make([]DecisionRecord, n)
	copy(out, m.decisions[len(m.decisions)-n:])
	return out
}

// RecentLearnings returns up to n learnings, most recently updated
// first.
func (m *Memory) RecentLearnings(n int) []Learning {
	m.mu.RLock()
	defer m.mu.RUnlock()

	all := make([]Learning, 0, len(m.learnings))
	for _, l := range m.learnings {
		all = append(all, *l)
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].LastUpdated.After(all[j].LastUpdated)
	})

	if n > 0 && n < len(all) {
		all = all[:n]
	}
	return all
}

// Len returns the number of retained decisions.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.decisions)
}
