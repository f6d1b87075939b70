package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"stockpilot/internal/domain"
)

// --- TrailingStopRepository Implementation ---

// FindActive retrieves the active trailing-stop record for a ticker.
func (r *Repository) FindActive(ctx context.Context, accountID, ticker string) (*domain.TrailingStopRecord, error) {
	const query = `
	SELECT account_id, ticker, purchase_price, highest_price, highest_price_date,
	       distance_percent, dynamic_stop_price, is_leveraged, is_active, created_at, updated_at
	FROM trailing_stops
	WHERE account_id = ? AND ticker = ? AND is_active = 1`

	row := r.db.QueryRowContext(ctx, query, accountID, ticker)
	rec, err := scanTrailingStop(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not an error, just not found
		}
		return nil, fmt.Errorf("failed to query trailing stop for %s: %w", ticker, err)
	}
	return rec, nil
}

// Upsert inserts or replaces the record for (account, ticker).
func (r *Repository) Upsert(ctx context.Context, rec *domain.TrailingStopRecord) error {
	const query = `
	INSERT INTO trailing_stops (account_id, ticker, purchase_price, highest_price, highest_price_date,
	                            distance_percent, dynamic_stop_price, is_leveraged, is_active, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(account_id, ticker) DO UPDATE SET
		purchase_price = excluded.purchase_price,
		highest_price = excluded.highest_price,
		highest_price_date = excluded.highest_price_date,
		distance_percent = excluded.distance_percent,
		dynamic_stop_price = excluded.dynamic_stop_price,
		is_leveraged = excluded.is_leveraged,
		is_active = excluded.is_active,
		created_at = excluded.created_at,
		updated_at = excluded.updated_at`

	_, err := r.db.ExecContext(ctx, query,
		rec.AccountID, rec.Ticker, rec.PurchasePrice, rec.HighestPrice, rec.HighestPriceDate,
		rec.DistancePercent, rec.DynamicStopPrice, rec.IsLeveraged, rec.Active, rec.CreatedAt, rec.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert trailing stop for %s: %w", rec.Ticker, err)
	}
	r.logger.Debug(ctx, "Trailing stop stored", map[string]interface{}{
		"ticker": rec.Ticker, "stop": rec.DynamicStopPrice, "peak": rec.HighestPrice,
	})
	return nil
}

// FindAllActive retrieves every active trailing-stop record for the account.
func (r *Repository) FindAllActive(ctx context.Context, accountID string) ([]*domain.TrailingStopRecord, error) {
	const query = `
	SELECT account_id, ticker, purchase_price, highest_price, highest_price_date,
	       distance_percent, dynamic_stop_price, is_leveraged, is_active, created_at, updated_at
	FROM trailing_stops
	WHERE account_id = ? AND is_active = 1
	ORDER BY ticker`

	rows, err := r.db.QueryContext(ctx, query, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to query active trailing stops: %w", err)
	}
	defer rows.Close()

	records := make([]*domain.TrailingStopRecord, 0)
	for rows.Next() {
		rec, err := scanTrailingStop(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan trailing stop during FindAllActive: %w", err)
		}
		records = append(records, rec)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating trailing stop rows: %w", err)
	}
	return records, nil
}

// Deactivate marks the record for a ticker inactive. Missing records are not
// an error.
func (r *Repository) Deactivate(ctx context.Context, accountID, ticker string) error {
	const query = `UPDATE trailing_stops SET is_active = 0 WHERE account_id = ? AND ticker = ?`
	_, err := r.db.ExecContext(ctx, query, accountID, ticker)
	if err != nil {
		return fmt.Errorf("failed to deactivate trailing stop for %s: %w", ticker, err)
	}
	return nil
}

// scanTrailingStop scans a row into a domain.TrailingStopRecord struct.
func scanTrailingStop(s scanner) (*domain.TrailingStopRecord, error) {
	rec := &domain.TrailingStopRecord{}
	err := s.Scan(
		&rec.AccountID, &rec.Ticker, &rec.PurchasePrice, &rec.HighestPrice, &rec.HighestPriceDate,
		&rec.DistancePercent, &rec.DynamicStopPrice, &rec.IsLeveraged, &rec.Active, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return nil, err // Handle sql.ErrNoRows in the caller
	}
	return rec, nil
}
