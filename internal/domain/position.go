package domain

import "time"

// Position is a currently held stock as reported by the brokerage.
type Position struct {
	AccountID     string    // Owning trading account
	Ticker        string    // Stock symbol (e.g. "AAPL", "TQQQ")
	StockName     string    // Display name from the brokerage, may be empty
	Exchange      Exchange  // Exchange the position trades on
	Quantity      int64     // Shares currently held
	PurchasePrice float64   // Average purchase price per share
	CurrentPrice  float64   // Latest price known at snapshot time (0 if unknown)
	PurchaseDate  time.Time // First acquisition date (zero value if unknown)
	IsLeveraged   bool      // Leveraged ETF: wider stops, doubled profit ladder
}

// ChangePercent returns the unrealized change from purchase to current price.
// Returns 0 when either price is missing.
func (p *Position) ChangePercent() float64 {
	if p.PurchasePrice <= 0 || p.CurrentPrice <= 0 {
		return 0
	}
	return (p.CurrentPrice - p.PurchasePrice) / p.PurchasePrice * 100
}

// MarketValue returns quantity times the current price.
func (p *Position) MarketValue() float64 {
	return float64(p.Quantity) * p.CurrentPrice
}

// WatchItem is a watchlist entry: a ticker the engine evaluates for buying.
// When UseLeverage is set, signals are computed on Ticker but orders go to
// LeverageTicker (e.g. QQQ -> TQQQ).
type WatchItem struct {
	AccountID      string
	Ticker         string
	StockName      string
	Exchange       Exchange
	UseLeverage    bool
	LeverageTicker string
}

// OrderTicker returns the ticker orders should be placed on.
func (w *WatchItem) OrderTicker() string {
	if w.UseLeverage && w.LeverageTicker != "" {
		return w.LeverageTicker
	}
	return w.Ticker
}
