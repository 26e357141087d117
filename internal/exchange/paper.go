package exchange

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/agentfleet/agentfleet/internal/config"
	"github.com/agentfleet/agentfleet/internal/risk"
)

// PaperExchange simulates a spot venue for a single agent. Fills apply
// size-dependent slippage against the trader and a flat taker fee; all
// mutations happen under one mutex so a fill is atomic.
type PaperExchange struct {
	mu sync.RWMutex

	cfg    config.ExchangeConfig
	limits risk.Limits
	quote  string
	logger zerolog.Logger

	balances  map[string]float64 // asset -> free balance
	locked    map[string]float64 // asset -> locked balance
	prices    map[string]float64 // symbol -> last mark price
	positions map[string]*Position
	orders    []*Order

	anchorValue float64 // portfolio value at the start of the 24h window
	anchorTime  time.Time
}

// NewPaperExchange seeds a paper account with the configured capital in
// the quote asset.
func NewPaperExchange(cfg config.ExchangeConfig, limits risk.Limits, agentID string) *PaperExchange {
	quote := cfg.QuoteAsset
	if quote == "" {
		quote = "USDT"
	}
	capital := cfg.InitialCapital
	if capital <= 0 {
		capital = 10000.0
	}

	p := &PaperExchange{
		cfg:       cfg,
		limits:    limits,
		quote:     quote,
		logger:    config.NewLogger("paper_exchange").With().Str("agent_id", agentID).Logger(),
		balances:  map[string]float64{quote: capital},
		locked:    make(map[string]float64),
		prices:    make(map[string]float64),
		positions: make(map[string]*Position),

		anchorValue: capital,
		anchorTime:  time.Now(),
	}
	return p
}

// slippage computes the fractional price penalty for an order: a fixed
// base plus a size impact capped at the configured maximum.
func (p *PaperExchange) slippage(quantity float64) float64 {
	base := p.cfg.BaseSlippage
	if base == 0 {
		base = 0.001
	}
	divisor := p.cfg.ImpactDivisor
	if divisor == 0 {
		divisor = 1000.0
	}
	maxImpact := p.cfg.MaxImpact
	if maxImpact == 0 {
		maxImpact = 0.01
	}

	impact := quantity / divisor
	if impact > maxImpact {
		impact = maxImpact
	}
	return base + impact
}

func (p *PaperExchange) takerFee() float64 {
	if p.cfg.TakerFee == 0 {
		return 0.001
	}
	return p.cfg.TakerFee
}

// ExecuteOrder validates an order against the risk limits and fills it
// at the slipped price. On rejection the returned order carries the
// reason and the error is a *risk.RejectionError.
func (p *PaperExchange) ExecuteOrder(symbol string, side OrderSide, quantity, price float64) (*Order, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := time.Now()
	order := &Order{
		ID:        uuid.New().String(),
		Symbol:    symbol,
		Side:      side,
		Type:      OrderTypeMarket,
		Quantity:  quantity,
		Price:     price,
		Status:    OrderStatusPending,
		CreatedAt: now,
	}

	p.rollDailyWindowLocked(now)

	orderCtx := risk.OrderContext{
		Symbol:           symbol,
		Side:             string(side),
		Quantity:         quantity,
		Price:            price,
		PortfolioValue:   p.totalValueLocked(),
		AvailableBalance: p.balances[p.quote],
		OpenPositions:    len(p.positions),
		DailyPnL:         p.totalValueLocked() - p.anchorValue,
	}
	if err := risk.Validate(orderCtx, p.limits); err != nil {
		return p.rejectLocked(order, err)
	}

	slip := p.slippage(quantity)
	execPrice := price * (1 + slip)
	if side == OrderSideSell {
		execPrice = price * (1 - slip)
	}
	fee := quantity * execPrice * p.takerFee()

	base := p.baseAsset(symbol)
	switch side {
	case OrderSideBuy:
		cost := quantity*execPrice + fee
		if cost > p.balances[p.quote] {
			return p.rejectLocked(order, &risk.RejectionError{Reason: "Insufficient balance"})
		}
		p.balances[p.quote] -= cost
		p.balances[base] += quantity
		p.addPositionLocked(symbol, quantity, execPrice, now)

	case OrderSideSell:
		if quantity > p.balances[base] {
			return p.rejectLocked(order, &risk.RejectionError{Reason: "Insufficient balance"})
		}
		p.balances[base] -= quantity
		p.balances[p.quote] += quantity*execPrice - fee
		p.reducePositionLocked(symbol, quantity)
	}

	p.prices[symbol] = price

	order.Status = OrderStatusFilled
	order.FilledQty = quantity
	order.AvgFillPrice = execPrice
	order.Fee = fee
	order.FilledAt = &now
	p.orders = append(p.orders, order)

	p.logger.Info().
		Str("order_id", order.ID).
		Str("symbol", symbol).
		Str("side", string(side)).
		Float64("quantity", quantity).
		Float64("fill_price", execPrice).
		Float64("fee", fee).
		Msg("Paper order filled")

	return order, nil
}

func (p *PaperExchange) rejectLocked(order *Order, err error) (*Order, error) {
	order.Status = OrderStatusRejected
	order.RejectReason = err.Error()
	p.orders = append(p.orders, order)

	p.logger.Warn().
		Str("symbol", order.Symbol).
		Str("side", string(order.Side)).
		Float64("quantity", order.Quantity).
		Str("reason", order.RejectReason).
		Msg("Paper order rejected")

	return order, err
}

func (p *PaperExchange) addPositionLocked(symbol string, quantity, price float64, now time.Time) {
	pos, ok := p.positions[symbol]
	if !ok {
		p.positions[symbol] = &Position{
			Symbol:     symbol,
			Quantity:   quantity,
			EntryPrice: price,
			OpenedAt:   now,
		}
		return
	}
	total := pos.Quantity + quantity
	pos.EntryPrice = (pos.EntryPrice*pos.Quantity + price*quantity) / total
	pos.Quantity = total
}

func (p *PaperExchange) reducePositionLocked(symbol string, quantity float64) {
	pos, ok := p.positions[symbol]
	if !ok {
		return
	}
	pos.Quantity -= quantity
	if pos.Quantity <= 1e-12 {
		delete(p.positions, symbol)
	}
}

// MarkPrices revalues holdings at the given prices and rolls the 24h
// P&L window when it has expired.
func (p *PaperExchange) MarkPrices(prices map[string]float64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for symbol, price := range prices {
		if price > 0 {
			p.prices[symbol] = price
		}
	}
	p.rollDailyWindowLocked(time.Now())
}

func (p *PaperExchange) rollDailyWindowLocked(now time.Time) {
	if now.Sub(p.anchorTime) >= 24*time.Hour {
		p.anchorValue = p.totalValueLocked()
		p.anchorTime = now
	}
}

// totalValueLocked recomputes portfolio value from holdings. Quote
// balances count at face value, base assets at their last mark price.
func (p *PaperExchange) totalValueLocked() float64 {
	total := 0.0
	for asset, balance := range p.balances {
		total += p.valueOfLocked(asset, balance+p.locked[asset])
	}
	return total
}

func (p *PaperExchange) valueOfLocked(asset string, amount float64) float64 {
	if asset == p.quote {
		return amount
	}
	return amount * p.prices[asset+p.quote]
}

// Portfolio returns a snapshot of the paper account.
func (p *PaperExchange) Portfolio() Portfolio {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var holdings []Holding
	locked := 0.0
	for asset, balance := range p.balances {
		lockedAmt := p.locked[asset]
		if balance == 0 && lockedAmt == 0 {
			continue
		}
		holdings = append(holdings, Holding{
			Asset:   asset,
			Balance: balance,
			Locked:  lockedAmt,
			Value:   p.valueOfLocked(asset, balance+lockedAmt),
		})
		locked += p.valueOfLocked(asset, lockedAmt)
	}

	total := p.totalValueLocked()
	pnl := total - p.anchorValue
	pnlPercent := 0.0
	if p.anchorValue > 0 {
		pnlPercent = pnl / p.anchorValue * 100
	}

	return Portfolio{
		TotalValue:       total,
		AvailableBalance: p.balances[p.quote],
		LockedBalance:    locked,
		Holdings:         holdings,
		PnL24h:           pnl,
		PnLPercent24h:    pnlPercent,
	}
}

// OpenPositions returns the open positions keyed by symbol.
func (p *PaperExchange) OpenPositions() []Position {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]Position, 0, len(p.positions))
	for _, pos := range p.positions {
		out = append(out, *pos)
	}
	return out
}

// LastPrice returns the most recent mark price for a symbol, zero when
// the symbol was never marked.
func (p *PaperExchange) LastPrice(symbol string) float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.prices[symbol]
}

// Orders returns the order history, oldest first.
func (p *PaperExchange) Orders() []Order {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]Order, len(p.orders))
	for i, o := range p.orders {
		out[i] = *o
	}
	return out
}

func (p *PaperExchange) baseAsset(symbol string) string {
	return strings.TrimSuffix(symbol, p.quote)
}
