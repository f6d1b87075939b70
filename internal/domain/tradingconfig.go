package domain

import (
	"fmt"
	"time"
)

// TradingConfig holds the per-account auto-trading settings. Zero values are
// never meaningful; load via DefaultTradingConfig and mutate through Patch so
// every stored config has passed Validate.
type TradingConfig struct {
	Enabled                        bool      `json:"enabled"`
	MinCompositeScore              float64   `json:"min_composite_score"`   // Minimum composite score for a buy candidate
	MaxStocksToBuy                 int       `json:"max_stocks_to_buy"`     // Candidate list truncation
	MaxAmountPerStock              float64   `json:"max_amount_per_stock"`  // USD ceiling per buy order
	StopLossPercent                float64   `json:"stop_loss_percent"`     // Normal stop-loss threshold, negative
	UrgentStopLossPercent          float64   `json:"urgent_stop_loss_percent"`
	TakeProfitPercent              float64   `json:"take_profit_percent"`
	UseSentiment                   bool      `json:"use_sentiment"`
	MinSentimentScore              float64   `json:"min_sentiment_score"`
	AllowBuyExisting               bool      `json:"allow_buy_existing_stocks"`
	TrailingStopEnabled            bool      `json:"trailing_stop_enabled"`
	TrailingStopDistance           float64   `json:"trailing_stop_distance_percent"` // Percent below peak, normal stocks
	LeveragedTrailingStopDistance  float64   `json:"leveraged_trailing_stop_distance_percent"`
	TrailingStopMinProfit          float64   `json:"trailing_stop_min_profit_percent"` // Profit gate before the stop arms
	LeveragedTrailingStopMinProfit float64   `json:"leveraged_trailing_stop_min_profit_percent"`
	UpdatedAt                      time.Time `json:"updated_at"`
}

// DefaultTradingConfig returns the baseline settings used when an account has
// no stored config. Trading starts disabled.
func DefaultTradingConfig() *TradingConfig {
	return &TradingConfig{
		Enabled:                        false,
		MinCompositeScore:              2.0,
		MaxStocksToBuy:                 5,
		MaxAmountPerStock:              10000.0,
		StopLossPercent:                -7.0,
		UrgentStopLossPercent:          -10.0,
		TakeProfitPercent:              5.0,
		UseSentiment:                   true,
		MinSentimentScore:              0.15,
		AllowBuyExisting:               true,
		TrailingStopEnabled:            false,
		TrailingStopDistance:           5.0,
		LeveragedTrailingStopDistance:  7.0,
		TrailingStopMinProfit:          3.0,
		LeveragedTrailingStopMinProfit: 5.0,
	}
}

// Validate checks field ranges and returns an error naming the first invalid
// field.
func (c *TradingConfig) Validate() error {
	switch {
	case c.MaxStocksToBuy <= 0:
		return fmt.Errorf("max_stocks_to_buy must be positive, got %d", c.MaxStocksToBuy)
	case c.MaxAmountPerStock <= 0:
		return fmt.Errorf("max_amount_per_stock must be positive, got %.2f", c.MaxAmountPerStock)
	case c.StopLossPercent >= 0:
		return fmt.Errorf("stop_loss_percent must be negative, got %.2f", c.StopLossPercent)
	case c.UrgentStopLossPercent >= 0:
		return fmt.Errorf("urgent_stop_loss_percent must be negative, got %.2f", c.UrgentStopLossPercent)
	case c.UrgentStopLossPercent > c.StopLossPercent:
		return fmt.Errorf("urgent_stop_loss_percent (%.2f) must not be above stop_loss_percent (%.2f)", c.UrgentStopLossPercent, c.StopLossPercent)
	case c.TakeProfitPercent <= 0:
		return fmt.Errorf("take_profit_percent must be positive, got %.2f", c.TakeProfitPercent)
	case c.MinSentimentScore < -1 || c.MinSentimentScore > 1:
		return fmt.Errorf("min_sentiment_score must be within [-1, 1], got %.2f", c.MinSentimentScore)
	case c.TrailingStopDistance <= 0 || c.TrailingStopDistance >= 100:
		return fmt.Errorf("trailing_stop_distance_percent must be within (0, 100), got %.2f", c.TrailingStopDistance)
	case c.LeveragedTrailingStopDistance <= 0 || c.LeveragedTrailingStopDistance >= 100:
		return fmt.Errorf("leveraged_trailing_stop_distance_percent must be within (0, 100), got %.2f", c.LeveragedTrailingStopDistance)
	case c.TrailingStopMinProfit < 0:
		return fmt.Errorf("trailing_stop_min_profit_percent must not be negative, got %.2f", c.TrailingStopMinProfit)
	case c.LeveragedTrailingStopMinProfit < 0:
		return fmt.Errorf("leveraged_trailing_stop_min_profit_percent must not be negative, got %.2f", c.LeveragedTrailingStopMinProfit)
	}
	return nil
}

// DistanceFor returns the trailing-stop distance for the position kind.
func (c *TradingConfig) DistanceFor(leveraged bool) float64 {
	if leveraged {
		return c.LeveragedTrailingStopDistance
	}
	return c.TrailingStopDistance
}

// MinProfitFor returns the trailing-stop min-profit gate for the position kind.
func (c *TradingConfig) MinProfitFor(leveraged bool) float64 {
	if leveraged {
		return c.LeveragedTrailingStopMinProfit
	}
	return c.TrailingStopMinProfit
}

// TradingConfigPatch is a partial update; nil fields leave the current value
// untouched.
type TradingConfigPatch struct {
	Enabled                        *bool
	MinCompositeScore              *float64
	MaxStocksToBuy                 *int
	MaxAmountPerStock              *float64
	StopLossPercent                *float64
	UrgentStopLossPercent          *float64
	TakeProfitPercent              *float64
	UseSentiment                   *bool
	MinSentimentScore              *float64
	AllowBuyExisting               *bool
	TrailingStopEnabled            *bool
	TrailingStopDistance           *float64
	LeveragedTrailingStopDistance  *float64
	TrailingStopMinProfit          *float64
	LeveragedTrailingStopMinProfit *float64
}

// Apply returns a copy of c with the patch applied. The receiver is not
// modified, so a failed validation keeps the stored config intact.
func (c *TradingConfig) Apply(p *TradingConfigPatch) *TradingConfig {
	next := *c
	if p == nil {
		return &next
	}
	if p.Enabled != nil {
		next.Enabled = *p.Enabled
	}
	if p.MinCompositeScore != nil {
		next.MinCompositeScore = *p.MinCompositeScore
	}
	if p.MaxStocksToBuy != nil {
		next.MaxStocksToBuy = *p.MaxStocksToBuy
	}
	if p.MaxAmountPerStock != nil {
		next.MaxAmountPerStock = *p.MaxAmountPerStock
	}
	if p.StopLossPercent != nil {
		next.StopLossPercent = *p.StopLossPercent
	}
	if p.UrgentStopLossPercent != nil {
		next.UrgentStopLossPercent = *p.UrgentStopLossPercent
	}
	if p.TakeProfitPercent != nil {
		next.TakeProfitPercent = *p.TakeProfitPercent
	}
	if p.UseSentiment != nil {
		next.UseSentiment = *p.UseSentiment
	}
	if p.MinSentimentScore != nil {
		next.MinSentimentScore = *p.MinSentimentScore
	}
	if p.AllowBuyExisting != nil {
		next.AllowBuyExisting = *p.AllowBuyExisting
	}
	if p.TrailingStopEnabled != nil {
		next.TrailingStopEnabled = *p.TrailingStopEnabled
	}
	if p.TrailingStopDistance != nil {
		next.TrailingStopDistance = *p.TrailingStopDistance
	}
	if p.LeveragedTrailingStopDistance != nil {
		next.LeveragedTrailingStopDistance = *p.LeveragedTrailingStopDistance
	}
	if p.TrailingStopMinProfit != nil {
		next.TrailingStopMinProfit = *p.TrailingStopMinProfit
	}
	if p.LeveragedTrailingStopMinProfit != nil {
		next.LeveragedTrailingStopMinProfit = *p.LeveragedTrailingStopMinProfit
	}
	return &next
}
