package sqlite

import (
	"context"
	"fmt"

	"stockpilot/internal/domain"
)

// --- WatchlistRepository Implementation ---

// ListWatchlist retrieves the account's watchlist, ordered by ticker.
func (r *Repository) ListWatchlist(ctx context.Context, accountID string) ([]*domain.WatchItem, error) {
	const query = `
	SELECT account_id, ticker, COALESCE(stock_name, ''), exchange, use_leverage, COALESCE(leverage_ticker, '')
	FROM watchlist
	WHERE account_id = ?
	ORDER BY ticker`

	rows, err := r.db.QueryContext(ctx, query, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to query watchlist for account %s: %w", accountID, err)
	}
	defer rows.Close()

	items := make([]*domain.WatchItem, 0)
	for rows.Next() {
		item := &domain.WatchItem{}
		var exchange string
		if err := rows.Scan(&item.AccountID, &item.Ticker, &item.StockName, &exchange, &item.UseLeverage, &item.LeverageTicker); err != nil {
			return nil, fmt.Errorf("failed to scan watchlist row: %w", err)
		}
		item.Exchange = domain.Exchange(exchange)
		items = append(items, item)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating watchlist rows: %w", err)
	}
	return items, nil
}

// UpsertWatchItem inserts or replaces a watchlist entry.
func (r *Repository) UpsertWatchItem(ctx context.Context, item *domain.WatchItem) error {
	const query = `
	INSERT INTO watchlist (account_id, ticker, stock_name, exchange, use_leverage, leverage_ticker)
	VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT(account_id, ticker) DO UPDATE SET
		stock_name = excluded.stock_name,
		exchange = excluded.exchange,
		use_leverage = excluded.use_leverage,
		leverage_ticker = excluded.leverage_ticker`

	_, err := r.db.ExecContext(ctx, query,
		item.AccountID, item.Ticker, item.StockName, item.Exchange, item.UseLeverage, item.LeverageTicker)
	if err != nil {
		return fmt.Errorf("failed to upsert watchlist entry for %s: %w", item.Ticker, err)
	}
	return nil
}
