package exchange

import "time"

// OrderSide represents the direction of an order
type OrderSide string

const (
	OrderSideBuy  OrderSide = "BUY"
	OrderSideSell OrderSide = "SELL"
)

// OrderType represents the execution style of an order
type OrderType string

const (
	OrderTypeMarket OrderType = "MARKET"
	OrderTypeLimit  OrderType = "LIMIT"
)

// OrderStatus represents the lifecycle state of an order. Filled,
// cancelled and rejected are terminal.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusFilled    OrderStatus = "filled"
	OrderStatusCancelled OrderStatus = "cancelled"
	OrderStatusRejected  OrderStatus = "rejected"
)

// Order records one order and its fill outcome
type Order struct {
	ID           string      `json:"id"`
	Symbol       string      `json:"symbol"`
	Side         OrderSide   `json:"side"`
	Type         OrderType   `json:"type"`
	Quantity     float64     `json:"quantity"`
	Price        float64     `json:"price"` // market price at submission
	Status       OrderStatus `json:"status"`
	FilledQty    float64     `json:"filled_qty"`
	AvgFillPrice float64     `json:"avg_fill_price"`
	Fee          float64     `json:"fee"`
	RejectReason string      `json:"reject_reason,omitempty"`
	CreatedAt    time.Time   `json:"created_at"`
	FilledAt     *time.Time  `json:"filled_at,omitempty"`
}

// Holding is one asset balance inside a portfolio
type Holding struct {
	Asset   string  `json:"asset"`
	Balance float64 `json:"balance"`
	Locked  float64 `json:"locked"`
	Value   float64 `json:"value"` // in quote currency
}

// Portfolio is a point-in-time snapshot of an agent's paper account.
// TotalValue always equals the sum of holding values.
type Portfolio struct {
	TotalValue       float64   `json:"total_value"`
	AvailableBalance float64   `json:"available_balance"`
	LockedBalance    float64   `json:"locked_balance"`
	Holdings         []Holding `json:"holdings"`
	PnL24h           float64   `json:"pnl_24h"`
	PnLPercent24h    float64   `json:"pnl_percent_24h"`
}

// Position tracks an open exposure in one symbol
type Position struct {
	Symbol     string    `json:"symbol"`
	Quantity   float64   `json:"quantity"`
	EntryPrice float64   `json:"entry_price"` // average across adds
	OpenedAt   time.Time `json:"opened_at"`
}
