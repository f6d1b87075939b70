package domain

import "time"

// PartialSale records one completed stage of the partial-profit ladder.
type PartialSale struct {
	Stage         int       `json:"stage"`
	ProfitPercent float64   `json:"profit_percent"` // Change percent at the time of the sale
	Quantity      int64     `json:"quantity"`
	Price         float64   `json:"price"`
	SoldAt        time.Time `json:"sold_at"`
}

// PartialProfitHistory tracks the staged profit-taking ladder for one
// position. Stages complete strictly in order and never refire; IsCompleted
// becomes true after the final stage and stays true for the lifetime of the
// position.
type PartialProfitHistory struct {
	AccountID       string
	Ticker          string
	InitialQuantity int64 // Quantity at purchase, the base for stage sizing
	Sales           []PartialSale
	IsCompleted     bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// NewPartialProfitHistory starts a fresh ladder after a buy fill.
func NewPartialProfitHistory(accountID, ticker string, initialQuantity int64, now time.Time) *PartialProfitHistory {
	return &PartialProfitHistory{
		AccountID:       accountID,
		Ticker:          ticker,
		InitialQuantity: initialQuantity,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// CompletedStages returns the set of stage numbers already sold.
func (h *PartialProfitHistory) CompletedStages() map[int]bool {
	done := make(map[int]bool, len(h.Sales))
	for _, s := range h.Sales {
		done[s.Stage] = true
	}
	return done
}

// NextStage returns the lowest stage number not yet completed, given the
// total number of stages in the ladder. Returns 0 when the ladder is done.
func (h *PartialProfitHistory) NextStage(totalStages int) int {
	if h.IsCompleted {
		return 0
	}
	done := h.CompletedStages()
	for stage := 1; stage <= totalStages; stage++ {
		if !done[stage] {
			return stage
		}
	}
	return 0
}

// RecordSale appends a completed stage and marks the ladder done when the
// final stage has been sold.
func (h *PartialProfitHistory) RecordSale(sale PartialSale, totalStages int, now time.Time) {
	h.Sales = append(h.Sales, sale)
	if sale.Stage >= totalStages {
		h.IsCompleted = true
	}
	h.UpdatedAt = now
}
