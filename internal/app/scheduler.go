package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"stockpilot/internal/ports"
)

const marketTimezone = "America/New_York"

// Scheduler drives the trading service on market hours: one buy cycle per
// trading day shortly after the open, sell cycles every interval while the
// market is open. A cycle still running when its next tick arrives is
// skipped, never interrupted.
type Scheduler struct {
	svc          *TradingService
	logger       ports.Logger
	loc          *time.Location
	buyInterval  time.Duration
	sellInterval time.Duration
	dryRun       bool
	now          func() time.Time

	lastBuyDay string // "2006-01-02" of the last buy cycle, in market time
}

// SchedulerConfig holds the scheduler settings.
type SchedulerConfig struct {
	Service      *TradingService
	Logger       ports.Logger
	BuyInterval  time.Duration // How often to check whether today's buy is due, defaults to 1m
	SellInterval time.Duration // Sell cycle cadence during market hours, defaults to 1m
	DryRun       bool
	Now          func() time.Time
}

// NewScheduler creates the scheduler. Loading the market timezone is the
// only way this can fail.
func NewScheduler(cfg SchedulerConfig) (*Scheduler, error) {
	if cfg.Service == nil {
		return nil, errors.New("trading service is required")
	}
	if cfg.Logger == nil {
		return nil, errors.New("logger is required")
	}
	loc, err := time.LoadLocation(marketTimezone)
	if err != nil {
		return nil, fmt.Errorf("failed to load market timezone: %w", err)
	}
	if cfg.BuyInterval <= 0 {
		cfg.BuyInterval = time.Minute
	}
	if cfg.SellInterval <= 0 {
		cfg.SellInterval = time.Minute
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Scheduler{
		svc:          cfg.Service,
		logger:       cfg.Logger,
		loc:          loc,
		buyInterval:  cfg.BuyInterval,
		sellInterval: cfg.SellInterval,
		dryRun:       cfg.DryRun,
		now:          now,
	}, nil
}

// Run blocks until the context is canceled.
func (sch *Scheduler) Run(ctx context.Context) error {
	sch.logger.Info(ctx, "Scheduler started", map[string]interface{}{
		"buy_interval": sch.buyInterval.String(), "sell_interval": sch.sellInterval.String(), "dry_run": sch.dryRun,
	})

	buyTicker := time.NewTicker(sch.buyInterval)
	sellTicker := time.NewTicker(sch.sellInterval)
	defer buyTicker.Stop()
	defer sellTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			sch.logger.Info(ctx, "Scheduler stopped")
			return ctx.Err()
		case <-buyTicker.C:
			sch.tickBuy(ctx)
		case <-sellTicker.C:
			sch.tickSell(ctx)
		}
	}
}

// tickBuy runs the daily buy cycle once per market day during open hours.
func (sch *Scheduler) tickBuy(ctx context.Context) {
	now := sch.now().In(sch.loc)
	if !sch.marketOpen(now) {
		return
	}
	day := now.Format("2006-01-02")
	if day == sch.lastBuyDay {
		return
	}

	// The journal backs the gate across restarts; the in-memory day only
	// saves the query. A journal error falls back to the in-memory gate.
	bought, err := sch.svc.BoughtToday(ctx, now)
	if err != nil {
		sch.logger.Error(ctx, err, "Daily buy check failed, relying on in-memory gate")
	} else if bought {
		sch.logger.Debug(ctx, "Buy already executed today, tick skipped", map[string]interface{}{"day": day})
		sch.lastBuyDay = day
		return
	}

	_, err = sch.svc.ExecuteBuyCycle(ctx, sch.dryRun)
	switch {
	case errors.Is(err, ports.ErrCycleAlreadyRunning):
		sch.logger.Debug(ctx, "Buy cycle still running, tick skipped")
		return
	case errors.Is(err, ports.ErrAutoTradingDisabled):
		sch.logger.Debug(ctx, "Auto trading disabled, buy tick skipped")
	case err != nil:
		sch.logger.Error(ctx, err, "Buy cycle failed")
	}
	// Failed or disabled cycles still consume the day: the daily buy is
	// one attempt, not a retry loop against a broken broker.
	sch.lastBuyDay = day
}

// tickSell runs a sell cycle whenever the market is open.
func (sch *Scheduler) tickSell(ctx context.Context) {
	now := sch.now().In(sch.loc)
	if !sch.marketOpen(now) {
		return
	}

	_, err := sch.svc.ExecuteSellCycle(ctx, sch.dryRun)
	switch {
	case errors.Is(err, ports.ErrCycleAlreadyRunning):
		sch.logger.Debug(ctx, "Sell cycle still running, tick skipped")
	case errors.Is(err, ports.ErrAutoTradingDisabled):
		sch.logger.Debug(ctx, "Auto trading disabled, sell tick skipped")
	case err != nil:
		sch.logger.Error(ctx, err, "Sell cycle failed")
	}
}

// marketOpen reports whether t (already in market time) falls inside the
// regular session: weekdays 09:30-16:00. Exchange holidays are not tracked;
// cycles on a holiday find no quotes and no-op.
func (sch *Scheduler) marketOpen(t time.Time) bool {
	switch t.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	minutes := t.Hour()*60 + t.Minute()
	return minutes >= 9*60+30 && minutes < 16*60
}
