package domain

import "time"

// TrailingStopRecord tracks the ratcheting stop for one held position.
// HighestPrice and DynamicStopPrice only ever move up while the record is
// active; deactivation is terminal and a later re-entry starts a fresh record.
type TrailingStopRecord struct {
	AccountID        string
	Ticker           string
	PurchasePrice    float64
	HighestPrice     float64   // Peak price observed since purchase
	HighestPriceDate time.Time // When the peak was last raised
	DistancePercent  float64   // Stop distance below the peak, in percent
	DynamicStopPrice float64   // Current stop level: peak * (1 - distance/100)
	IsLeveraged      bool
	Active           bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// NewTrailingStopRecord seeds a record at purchase: the peak starts at the
// purchase price and the stop sits the full distance below it.
func NewTrailingStopRecord(accountID, ticker string, purchasePrice, distancePercent float64, leveraged bool, now time.Time) *TrailingStopRecord {
	return &TrailingStopRecord{
		AccountID:        accountID,
		Ticker:           ticker,
		PurchasePrice:    purchasePrice,
		HighestPrice:     purchasePrice,
		HighestPriceDate: now,
		DistancePercent:  distancePercent,
		DynamicStopPrice: purchasePrice * (1 - distancePercent/100),
		IsLeveraged:      leveraged,
		Active:           true,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

// Ratchet observes a price and raises the peak and stop if the price makes a
// new high. Neither field ever moves down, so replaying an old price is a
// no-op. Returns true when the record changed.
func (r *TrailingStopRecord) Ratchet(price float64, now time.Time) bool {
	if !r.Active || price <= r.HighestPrice {
		return false
	}
	r.HighestPrice = price
	r.HighestPriceDate = now
	if candidate := price * (1 - r.DistancePercent/100); candidate > r.DynamicStopPrice {
		r.DynamicStopPrice = candidate
	}
	r.UpdatedAt = now
	return true
}

// Triggered reports whether the stop fires at the given price. The position
// must first be in profit by at least minProfitPercent from the purchase
// price; below that the stop stays silent even if the price is under the
// dynamic stop level.
func (r *TrailingStopRecord) Triggered(price, minProfitPercent float64) bool {
	if !r.Active || r.PurchasePrice <= 0 {
		return false
	}
	profitPercent := (price - r.PurchasePrice) / r.PurchasePrice * 100
	if profitPercent < minProfitPercent {
		return false
	}
	return price <= r.DynamicStopPrice
}
