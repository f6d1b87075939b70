package ports

import (
	"context"
	"time"

	"stockpilot/internal/domain"
)

// TrailingStopRepository stores trailing-stop records keyed by
// (account, ticker). At most one active record exists per key.
type TrailingStopRepository interface {
	// FindActive retrieves the active record for a ticker.
	// Returns nil, nil if none exists.
	FindActive(ctx context.Context, accountID, ticker string) (*domain.TrailingStopRecord, error)
	// Upsert inserts or replaces the record for (account, ticker).
	Upsert(ctx context.Context, rec *domain.TrailingStopRecord) error
	// FindAllActive retrieves every active record for the account.
	FindAllActive(ctx context.Context, accountID string) ([]*domain.TrailingStopRecord, error)
	// Deactivate marks the record for a ticker inactive. Missing records
	// are not an error.
	Deactivate(ctx context.Context, accountID, ticker string) error
}

// PartialProfitRepository stores the staged profit-taking history per
// (account, ticker).
type PartialProfitRepository interface {
	// FindPartialProfit retrieves the history for a ticker.
	// Returns nil, nil if none exists.
	FindPartialProfit(ctx context.Context, accountID, ticker string) (*domain.PartialProfitHistory, error)
	// UpsertPartialProfit inserts or replaces the history for
	// (account, ticker).
	UpsertPartialProfit(ctx context.Context, hist *domain.PartialProfitHistory) error
}

// OrderLogRepository is the order journal. Entries are append-only except
// for status resolution: an accepted order is later settled to its terminal
// status once the broker confirms the fill.
type OrderLogRepository interface {
	// Append saves a new entry and returns its assigned ID.
	Append(ctx context.Context, entry *domain.OrderLog) (int64, error)
	// UpdateOrderStatus resolves an entry's status. An empty message keeps
	// the stored one.
	UpdateOrderStatus(ctx context.Context, id int64, status domain.OrderStatus, message string) error
	// FindSince retrieves entries created at or after the cutoff, oldest
	// first.
	FindSince(ctx context.Context, accountID string, since time.Time) ([]*domain.OrderLog, error)
	// CountTodayBuys counts executed buy entries for the account on the
	// given trading day (local to loc).
	CountTodayBuys(ctx context.Context, accountID string, day time.Time) (int, error)
}

// ConfigRepository stores the per-account trading configuration.
type ConfigRepository interface {
	// FindConfig retrieves the stored config. Returns nil, nil if none
	// exists.
	FindConfig(ctx context.Context, accountID string) (*domain.TradingConfig, error)
	// UpsertConfig inserts or replaces the config for the account.
	UpsertConfig(ctx context.Context, accountID string, cfg *domain.TradingConfig) error
}

// WatchlistRepository stores the tickers evaluated in buy cycles.
type WatchlistRepository interface {
	// ListWatchlist retrieves the account's watchlist.
	ListWatchlist(ctx context.Context, accountID string) ([]*domain.WatchItem, error)
	// UpsertWatchItem inserts or replaces a watchlist entry.
	UpsertWatchItem(ctx context.Context, item *domain.WatchItem) error
}
