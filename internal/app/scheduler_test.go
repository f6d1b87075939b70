package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockpilot/internal/domain"
)

func newTestScheduler(t *testing.T, f *fixture, dryRun bool, at time.Time) *Scheduler {
	t.Helper()
	sch, err := NewScheduler(SchedulerConfig{
		Service: f.svc,
		Logger:  &mockLogger{},
		DryRun:  dryRun,
		Now:     func() time.Time { return at },
	})
	require.NoError(t, err)
	return sch
}

func nyTime(t *testing.T, day string, hour, minute int) time.Time {
	t.Helper()
	loc, err := time.LoadLocation(marketTimezone)
	require.NoError(t, err)
	d, err := time.ParseInLocation("2006-01-02", day, loc)
	require.NoError(t, err)
	return d.Add(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute)
}

func TestMarketOpen(t *testing.T) {
	f := newFixture(t)
	sch := newTestScheduler(t, f, true, time.Time{})

	cases := []struct {
		name string
		at   time.Time
		want bool
	}{
		{"tuesday mid-session", nyTime(t, "2026-08-18", 12, 0), true},
		{"exactly at open", nyTime(t, "2026-08-18", 9, 30), true},
		{"minute before open", nyTime(t, "2026-08-18", 9, 29), false},
		{"exactly at close", nyTime(t, "2026-08-18", 16, 0), false},
		{"minute before close", nyTime(t, "2026-08-18", 15, 59), true},
		{"saturday", nyTime(t, "2026-08-22", 12, 0), false},
		{"sunday", nyTime(t, "2026-08-23", 12, 0), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, sch.marketOpen(tc.at))
		})
	}
}

func TestTickBuyRunsOncePerDay(t *testing.T) {
	f := newFixture(t)
	f.enabledConfig(t, nil)
	sch := newTestScheduler(t, f, true, nyTime(t, "2026-08-18", 10, 0))

	sch.tickBuy(context.Background())
	sch.tickBuy(context.Background())
	assert.Len(t, f.notifier.summaries, 1, "same day must not buy twice")

	sch.now = func() time.Time { return nyTime(t, "2026-08-19", 10, 0) }
	sch.tickBuy(context.Background())
	assert.Len(t, f.notifier.summaries, 2, "next day buys again")
}

func TestTickBuySkipsWhenJournalHasTodaysBuy(t *testing.T) {
	f := newFixture(t)
	f.enabledConfig(t, nil)

	// An executed buy from earlier today, before a process restart wiped
	// the in-memory day marker.
	_, err := f.orders.Append(context.Background(), &domain.OrderLog{
		AccountID: "acct-1", Ticker: "AAPL", Side: domain.Buy, Quantity: 7,
		Price: 130, Status: domain.OrderExecuted,
		CreatedAt: nyTime(t, "2026-08-18", 9, 35),
	})
	require.NoError(t, err)

	sch := newTestScheduler(t, f, true, nyTime(t, "2026-08-18", 10, 0))
	sch.tickBuy(context.Background())

	assert.Empty(t, f.notifier.summaries, "a journaled buy must hold the gate across restarts")
	assert.Equal(t, "2026-08-18", sch.lastBuyDay)

	sch.now = func() time.Time { return nyTime(t, "2026-08-19", 10, 0) }
	sch.tickBuy(context.Background())
	assert.Len(t, f.notifier.summaries, 1, "next day buys again")
}

func TestTickBuyOutsideMarketHours(t *testing.T) {
	f := newFixture(t)
	f.enabledConfig(t, nil)
	sch := newTestScheduler(t, f, true, nyTime(t, "2026-08-22", 12, 0))

	sch.tickBuy(context.Background())
	assert.Empty(t, f.notifier.summaries)
	assert.Empty(t, sch.lastBuyDay, "closed-market ticks must not consume the day")
}

func TestTickBuyDisabledStillConsumesDay(t *testing.T) {
	f := newFixture(t) // No stored config: auto trading disabled.
	sch := newTestScheduler(t, f, false, nyTime(t, "2026-08-18", 10, 0))

	sch.tickBuy(context.Background())
	assert.Equal(t, "2026-08-18", sch.lastBuyDay)

	sch.tickBuy(context.Background())
	assert.Len(t, f.notifier.summaries, 1, "the daily attempt is not retried")
}

func TestTickSellRunsEveryTick(t *testing.T) {
	f := newFixture(t)
	f.enabledConfig(t, nil)
	sch := newTestScheduler(t, f, true, nyTime(t, "2026-08-18", 10, 0))

	sch.tickSell(context.Background())
	sch.tickSell(context.Background())
	assert.Len(t, f.notifier.summaries, 2)
}
