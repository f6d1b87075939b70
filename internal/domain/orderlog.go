package domain

import "time"

// OrderLog is one row of the append-only order journal. Realized P&L is
// derived exclusively from executed entries in this log.
type OrderLog struct {
	ID             int64
	AccountID      string
	Ticker         string
	StockName      string
	Exchange       Exchange
	Side           OrderSide
	Quantity       int64
	Price          float64
	Status         OrderStatus
	OrderID        string   // Broker order id, empty for failed/dry-run entries
	Message        string   // Broker response message or failure cause
	CompositeScore *float64 // Buy entries: score that selected the candidate
	ChangePercent  *float64 // Sell entries: unrealized change at decision time
	SellKind       SellKind // Sell entries: which rule produced the order
	SellReasons    []string // Sell entries: human-readable reasons
	CreatedAt      time.Time
}
