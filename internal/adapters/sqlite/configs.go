package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"stockpilot/internal/domain"
)

// --- ConfigRepository Implementation ---
//
// The config is stored as one JSON document per account. Fields come and go
// as the product evolves; a document survives additive changes without a
// migration, and Validate runs on every load path in the service anyway.

// FindConfig retrieves the stored trading config for the account.
func (r *Repository) FindConfig(ctx context.Context, accountID string) (*domain.TradingConfig, error) {
	const query = `SELECT config, updated_at FROM trading_configs WHERE account_id = ?`

	var doc string
	var updatedAt time.Time
	err := r.db.QueryRowContext(ctx, query, accountID).Scan(&doc, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not an error, just not found
		}
		return nil, fmt.Errorf("failed to query trading config for account %s: %w", accountID, err)
	}

	cfg := &domain.TradingConfig{}
	if err := json.Unmarshal([]byte(doc), cfg); err != nil {
		return nil, fmt.Errorf("failed to decode trading config for account %s: %w", accountID, err)
	}
	cfg.UpdatedAt = updatedAt
	return cfg, nil
}

// UpsertConfig inserts or replaces the config for the account.
func (r *Repository) UpsertConfig(ctx context.Context, accountID string, cfg *domain.TradingConfig) error {
	doc, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode trading config for account %s: %w", accountID, err)
	}

	const query = `
	INSERT INTO trading_configs (account_id, config, updated_at)
	VALUES (?, ?, ?)
	ON CONFLICT(account_id) DO UPDATE SET
		config = excluded.config,
		updated_at = excluded.updated_at`

	updatedAt := cfg.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}
	if _, err := r.db.ExecContext(ctx, query, accountID, string(doc), updatedAt); err != nil {
		return fmt.Errorf("failed to upsert trading config for account %s: %w", accountID, err)
	}
	r.logger.Debug(ctx, "Trading config stored", map[string]interface{}{"accountID": accountID})
	return nil
}
