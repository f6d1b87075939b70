package trailing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"stockpilot/internal/domain"
	"stockpilot/internal/ports"
)

// Tracker manages the trailing-stop lifecycle per (account, ticker) on top
// of the repository: Initialize on buy, Observe on every price refresh,
// IsTriggered during sell evaluation, Deactivate on full sell.
type Tracker struct {
	repo   ports.TrailingStopRepository
	logger ports.Logger
	now    func() time.Time
}

// Config holds the dependencies for the tracker.
type Config struct {
	Repo   ports.TrailingStopRepository
	Logger ports.Logger
	Now    func() time.Time // Defaults to time.Now
}

func New(cfg Config) (*Tracker, error) {
	if cfg.Repo == nil {
		return nil, errors.New("trailing stop repository is required")
	}
	if cfg.Logger == nil {
		return nil, errors.New("logger is required")
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Tracker{repo: cfg.Repo, logger: cfg.Logger, now: now}, nil
}

// Initialize creates (or resets) the record after a buy fill. Any previous
// record for the ticker is replaced: a re-entry starts a fresh ratchet from
// the new purchase price.
func (t *Tracker) Initialize(ctx context.Context, accountID, ticker string, purchasePrice float64, leveraged bool, cfg *domain.TradingConfig) (*domain.TrailingStopRecord, error) {
	if purchasePrice <= 0 {
		return nil, fmt.Errorf("purchase price must be positive, got %f", purchasePrice)
	}

	rec := domain.NewTrailingStopRecord(accountID, ticker, purchasePrice, cfg.DistanceFor(leveraged), leveraged, t.now())
	if err := t.repo.Upsert(ctx, rec); err != nil {
		return nil, fmt.Errorf("failed to store trailing stop for %s: %w", ticker, err)
	}
	t.logger.Info(ctx, "trailing stop initialized", map[string]interface{}{
		"ticker":    ticker,
		"purchase":  purchasePrice,
		"stop":      rec.DynamicStopPrice,
		"distance":  rec.DistancePercent,
		"leveraged": leveraged,
	})
	return rec, nil
}

// Observe feeds a price into the ratchet. Missing or inactive records are
// ignored; persistence only happens when the record actually moved.
func (t *Tracker) Observe(ctx context.Context, accountID, ticker string, price float64) (*domain.TrailingStopRecord, error) {
	if price <= 0 {
		return nil, nil
	}
	rec, err := t.repo.FindActive(ctx, accountID, ticker)
	if err != nil {
		return nil, fmt.Errorf("failed to load trailing stop for %s: %w", ticker, err)
	}
	if rec == nil || !rec.Active {
		return rec, nil
	}

	prevStop := rec.DynamicStopPrice
	if !rec.Ratchet(price, t.now()) {
		return rec, nil
	}
	if err := t.repo.Upsert(ctx, rec); err != nil {
		return nil, fmt.Errorf("failed to persist trailing stop for %s: %w", ticker, err)
	}
	if rec.DynamicStopPrice > prevStop {
		t.logger.Debug(ctx, "trailing stop raised", map[string]interface{}{
			"ticker": ticker,
			"peak":   rec.HighestPrice,
			"stop":   rec.DynamicStopPrice,
		})
	}
	return rec, nil
}

// IsTriggered reports whether the stop fires at the given price. Positions
// without an active record never trigger.
func (t *Tracker) IsTriggered(ctx context.Context, accountID, ticker string, price float64, cfg *domain.TradingConfig) (bool, *domain.TrailingStopRecord, error) {
	rec, err := t.repo.FindActive(ctx, accountID, ticker)
	if err != nil {
		return false, nil, fmt.Errorf("failed to load trailing stop for %s: %w", ticker, err)
	}
	if rec == nil {
		return false, nil, nil
	}
	return rec.Triggered(price, cfg.MinProfitFor(rec.IsLeveraged)), rec, nil
}

// ActiveRecords lists every active record for the account.
func (t *Tracker) ActiveRecords(ctx context.Context, accountID string) ([]*domain.TrailingStopRecord, error) {
	recs, err := t.repo.FindAllActive(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to list trailing stops: %w", err)
	}
	return recs, nil
}

// Deactivate closes the record after a full sell. Safe to call when no
// record exists.
func (t *Tracker) Deactivate(ctx context.Context, accountID, ticker string) error {
	if err := t.repo.Deactivate(ctx, accountID, ticker); err != nil {
		return fmt.Errorf("failed to deactivate trailing stop for %s: %w", ticker, err)
	}
	t.logger.Info(ctx, "trailing stop deactivated", map[string]interface{}{"ticker": ticker})
	return nil
}
