package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"stockpilot/internal/domain"
)

// --- OrderLogRepository Implementation ---

// Append saves a new order-log entry and returns its assigned ID. The only
// later mutation is UpdateOrderStatus resolving an accepted order.
func (r *Repository) Append(ctx context.Context, entry *domain.OrderLog) (int64, error) {
	reasons := entry.SellReasons
	if reasons == nil {
		reasons = []string{}
	}
	reasonsJSON, err := json.Marshal(reasons)
	if err != nil {
		return 0, fmt.Errorf("failed to encode sell reasons for %s: %w", entry.Ticker, err)
	}

	const query = `
	INSERT INTO order_logs (account_id, ticker, stock_name, exchange, side, quantity, price,
	                        status, order_id, message, composite_score, change_percent,
	                        sell_kind, sell_reasons, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	var score, change sql.NullFloat64
	if entry.CompositeScore != nil {
		score = sql.NullFloat64{Float64: *entry.CompositeScore, Valid: true}
	}
	if entry.ChangePercent != nil {
		change = sql.NullFloat64{Float64: *entry.ChangePercent, Valid: true}
	}

	result, err := r.db.ExecContext(ctx, query,
		entry.AccountID, entry.Ticker, entry.StockName, entry.Exchange, entry.Side, entry.Quantity, entry.Price,
		entry.Status, entry.OrderID, entry.Message, score, change,
		entry.SellKind, string(reasonsJSON), entry.CreatedAt)
	if err != nil {
		return 0, fmt.Errorf("failed to insert order log for %s: %w", entry.Ticker, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID for order log %s: %w", entry.Ticker, err)
	}
	entry.ID = id
	r.logger.Debug(ctx, "Order log appended", map[string]interface{}{
		"orderLogID": id, "ticker": entry.Ticker, "side": entry.Side, "status": entry.Status,
	})
	return id, nil
}

// FindSince retrieves entries created at or after the cutoff, oldest first.
func (r *Repository) FindSince(ctx context.Context, accountID string, since time.Time) ([]*domain.OrderLog, error) {
	const query = `
	SELECT id, account_id, ticker, COALESCE(stock_name, ''), exchange, side, quantity, price,
	       status, COALESCE(order_id, ''), COALESCE(message, ''), composite_score, change_percent,
	       COALESCE(sell_kind, ''), sell_reasons, created_at
	FROM order_logs
	WHERE account_id = ? AND created_at >= ?
	ORDER BY created_at ASC, id ASC`

	rows, err := r.db.QueryContext(ctx, query, accountID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query order logs since %s: %w", since.Format(time.RFC3339), err)
	}
	defer rows.Close()

	entries := make([]*domain.OrderLog, 0)
	for rows.Next() {
		entry, err := scanOrderLog(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order log during FindSince: %w", err)
		}
		entries = append(entries, entry)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating order log rows: %w", err)
	}
	return entries, nil
}

// UpdateOrderStatus resolves an entry to its terminal status. An empty
// message keeps the stored one.
func (r *Repository) UpdateOrderStatus(ctx context.Context, id int64, status domain.OrderStatus, message string) error {
	const query = `
	UPDATE order_logs
	SET status = ?, message = CASE WHEN ? = '' THEN message ELSE ? END
	WHERE id = ?`

	result, err := r.db.ExecContext(ctx, query, status, message, message, id)
	if err != nil {
		return fmt.Errorf("failed to update order log %d: %w", id, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check order log update %d: %w", id, err)
	}
	if affected == 0 {
		return fmt.Errorf("order log %d not found", id)
	}
	r.logger.Debug(ctx, "Order log status resolved", map[string]interface{}{
		"orderLogID": id, "status": status,
	})
	return nil
}

// CountTodayBuys counts executed buy entries for the account on the given
// trading day.
func (r *Repository) CountTodayBuys(ctx context.Context, accountID string, day time.Time) (int, error) {
	const query = `
	SELECT COUNT(*) FROM order_logs
	WHERE account_id = ? AND side = ? AND status = ? AND date(created_at) = ?`

	var count int
	err := r.db.QueryRowContext(ctx, query, accountID, domain.Buy, domain.OrderExecuted, day.Format("2006-01-02")).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count today's buys: %w", err)
	}
	return count, nil
}

// scanOrderLog scans a row into a domain.OrderLog struct.
func scanOrderLog(s scanner) (*domain.OrderLog, error) {
	entry := &domain.OrderLog{}
	var score, change sql.NullFloat64
	var reasonsJSON string
	err := s.Scan(
		&entry.ID, &entry.AccountID, &entry.Ticker, &entry.StockName, &entry.Exchange, &entry.Side,
		&entry.Quantity, &entry.Price, &entry.Status, &entry.OrderID, &entry.Message,
		&score, &change, &entry.SellKind, &reasonsJSON, &entry.CreatedAt)
	if err != nil {
		return nil, err // Handle sql.ErrNoRows in the caller
	}
	if score.Valid {
		entry.CompositeScore = &score.Float64
	}
	if change.Valid {
		entry.ChangePercent = &change.Float64
	}
	if err := json.Unmarshal([]byte(reasonsJSON), &entry.SellReasons); err != nil {
		return nil, fmt.Errorf("failed to decode sell reasons: %w", err)
	}
	return entry, nil
}
