package oracle

import (
	"fmt"
	"strings"
)

// tradingPhilosophies describe each style in the system prompt
var tradingPhilosophies = map[string]string{
	"conservative": "Preserve capital first. Only act on high-probability setups and prefer smaller positions.",
	"balanced":     "Balance opportunity against risk. Take well-supported trades at moderate size.",
	"aggressive":   "Pursue momentum and breakouts decisively. Accept larger drawdowns for larger gains.",
	"analytical":   "Weigh every indicator and historical pattern before acting. Let the data decide.",
	"creative":     "Look for unconventional opportunities others miss, but respect the risk limits.",
}

// BuildSystemPrompt renders the role and personality header for a
// decision request.
func BuildSystemPrompt(p Profile) string {
	philosophy := tradingPhilosophies[p.TradingStyle]
	if philosophy == "" {
		philosophy = tradingPhilosophies["balanced"]
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "You are %s, an autonomous %s agent.\n\n", p.Name, p.AgentType)
	fmt.Fprintf(&sb, "Personality:\n")
	fmt.Fprintf(&sb, "- Trading style: %s. %s\n", p.TradingStyle, philosophy)
	fmt.Fprintf(&sb, "- Risk tolerance: %.0f/100\n", p.RiskTolerance)
	fmt.Fprintf(&sb, "- Aggression: %.0f/100\n", p.Aggression)
	fmt.Fprintf(&sb, "- Analytical depth: %.0f/100\n", p.AnalyticalDepth)
	fmt.Fprintf(&sb, "\nYou must answer with a single JSON object and nothing else:\n")
	sb.WriteString(decisionSchema)
	return sb.String()
}

const decisionSchema = `{
  "type": "trade" | "content" | "automation",
  "action": "BUY" | "SELL" | "HOLD" | "CREATE" | "EXECUTE",
  "confidence": 0-100,
  "reasoning": "why you chose this action",
  "params": {
    // trade: {"symbol": "...", "side": "BUY"|"SELL", "quantity": 0.0}
    // content: {"platform": "...", "topic": "..."}
    // automation: {"task_type": "...", "args": {}}
  },
  "alternatives": [
    {"action": "...", "confidence": 0-100, "reason": "..."}
  ]
}`

// BuildUserPrompt renders the full cycle context: market, portfolio,
// surviving signals, recent learnings and outcomes.
func BuildUserPrompt(req Request) string {
	var sb strings.Builder

	sb.WriteString("Market data:\n")
	for _, snap := range req.Market {
		fmt.Fprintf(&sb, "- %s: $%.2f (%+.2f%% 24h), RSI %.1f, trend %s, volume %.0f\n",
			snap.Ticker.Symbol, snap.Ticker.Price, snap.Ticker.ChangePercent24h,
			snap.RSI, snap.Trend, snap.Ticker.Volume24h)
	}

	fmt.Fprintf(&sb, "\nPortfolio: total $%.2f, available $%.2f, 24h P&L %+.2f (%+.2f%%)\n",
		req.Portfolio.TotalValue, req.Portfolio.AvailableBalance,
		req.Portfolio.PnL24h, req.Portfolio.PnLPercent24h)
	for _, h := range req.Portfolio.Holdings {
		fmt.Fprintf(&sb, "- %s: %.6f (value $%.2f)\n", h.Asset, h.Balance, h.Value)
	}

	if len(req.Signals) > 0 {
		sb.WriteString("\nStrategy signals:\n")
		for _, sig := range req.Signals {
			fmt.Fprintf(&sb, "- [%s] %s %s (confidence %.0f): %s\n",
				sig.Strategy, sig.Action, sig.Symbol, sig.Confidence, sig.Reason)
		}
	} else {
		sb.WriteString("\nStrategy signals: none above the confidence threshold.\n")
	}

	if len(req.Learnings) > 0 {
		sb.WriteString("\nWhat has worked before:\n")
		for _, l := range req.Learnings {
			fmt.Fprintf(&sb, "- %s: %.0f%% success over %d decisions, avg profit %.2f\n",
				l.Pattern, l.SuccessRate, l.Occurrences, l.AvgProfit)
		}
	}

	if len(req.Outcomes) > 0 {
		sb.WriteString("\nRecent decisions:\n")
		for _, o := range req.Outcomes {
			fmt.Fprintf(&sb, "- %s %s -> %s (profit %+.2f)\n",
				o.Timestamp.Format("01-02 15:04"), o.Action, o.Outcome, o.Profit)
		}
	}

	fmt.Fprintf(&sb, "\nDecide the single best action for this cycle. Your confidence threshold is %.0f; below it, hold.\n",
		req.Profile.ConfidenceThreshold)

	return sb.String()
}
