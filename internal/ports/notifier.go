package ports

import (
	"context"

	"stockpilot/internal/domain"
)

// CycleSummary reports what one buy or sell cycle did. Every cycle produces
// a summary, including dry runs and partially failed cycles.
type CycleSummary struct {
	JobType    string // "buy" or "sell"
	AccountID  string
	DryRun     bool
	StartedAt  int64 // Unix seconds
	FinishedAt int64
	Evaluated  int // Candidates or positions considered
	Skipped    int // Filtered out or missing data
	Submitted  int // Orders submitted (or simulated in dry-run)
	Failed     int // Per-ticker failures that did not abort the cycle
	Orders     []*domain.OrderLog
}

// Notifier pushes trade events to an external channel. Implementations must
// never let a delivery failure propagate: log and drop.
type Notifier interface {
	// NotifyCycle delivers a cycle summary.
	NotifyCycle(ctx context.Context, summary *CycleSummary)
	// NotifyOrder delivers a single order event.
	NotifyOrder(ctx context.Context, entry *domain.OrderLog)
}
