package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"stockpilot/internal/domain"
)

// --- PartialProfitRepository Implementation ---

// FindPartialProfit retrieves the partial-profit history for a ticker.
func (r *Repository) FindPartialProfit(ctx context.Context, accountID, ticker string) (*domain.PartialProfitHistory, error) {
	const query = `
	SELECT account_id, ticker, initial_quantity, sales, is_completed, created_at, updated_at
	FROM partial_profit_history
	WHERE account_id = ? AND ticker = ?`

	hist := &domain.PartialProfitHistory{}
	var salesJSON string
	err := r.db.QueryRowContext(ctx, query, accountID, ticker).Scan(
		&hist.AccountID, &hist.Ticker, &hist.InitialQuantity, &salesJSON,
		&hist.IsCompleted, &hist.CreatedAt, &hist.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not an error, just not found
		}
		return nil, fmt.Errorf("failed to query partial profit history for %s: %w", ticker, err)
	}
	if err := json.Unmarshal([]byte(salesJSON), &hist.Sales); err != nil {
		return nil, fmt.Errorf("failed to decode partial sales for %s: %w", ticker, err)
	}
	return hist, nil
}

// Upsert inserts or replaces the history for (account, ticker).
func (r *Repository) UpsertPartialProfit(ctx context.Context, hist *domain.PartialProfitHistory) error {
	sales := hist.Sales
	if sales == nil {
		sales = []domain.PartialSale{}
	}
	salesJSON, err := json.Marshal(sales)
	if err != nil {
		return fmt.Errorf("failed to encode partial sales for %s: %w", hist.Ticker, err)
	}

	const query = `
	INSERT INTO partial_profit_history (account_id, ticker, initial_quantity, sales, is_completed, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(account_id, ticker) DO UPDATE SET
		initial_quantity = excluded.initial_quantity,
		sales = excluded.sales,
		is_completed = excluded.is_completed,
		created_at = excluded.created_at,
		updated_at = excluded.updated_at`

	_, err = r.db.ExecContext(ctx, query,
		hist.AccountID, hist.Ticker, hist.InitialQuantity, string(salesJSON),
		hist.IsCompleted, hist.CreatedAt, hist.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert partial profit history for %s: %w", hist.Ticker, err)
	}
	r.logger.Debug(ctx, "Partial profit history stored", map[string]interface{}{
		"ticker": hist.Ticker, "stages": len(hist.Sales), "completed": hist.IsCompleted,
	})
	return nil
}
