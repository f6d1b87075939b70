package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"stockpilot/internal/ports"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// Repository implements the repository ports (trailing stops, partial-profit
// history, order log, trading config, watchlist) and ports.MarketData over a
// single SQLite database. The market-data tables are written by the external
// collection pipeline; this side only reads them.
type Repository struct {
	db     *sql.DB
	logger ports.Logger
}

// Interface assertions
var (
	_ ports.TrailingStopRepository  = (*Repository)(nil)
	_ ports.PartialProfitRepository = (*Repository)(nil)
	_ ports.OrderLogRepository      = (*Repository)(nil)
	_ ports.ConfigRepository        = (*Repository)(nil)
	_ ports.WatchlistRepository     = (*Repository)(nil)
	_ ports.MarketData              = (*Repository)(nil)
)

// Config holds configuration for the SQLite repository.
type Config struct {
	DBPath string
	Logger ports.Logger
}

// NewRepository creates a new SQLite repository instance.
func NewRepository(cfg Config) (*Repository, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for SQLite repository")
	}
	dbPath := cfg.DBPath
	if dbPath == "" {
		dbPath = "./data/stockpilot.db" // Default path
	}

	// Create data directory if it doesn't exist
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		err = fmt.Errorf("failed to create data directory '%s': %w", filepath.Dir(dbPath), err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	// WAL mode for better concurrency between the scheduler loops
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		err = fmt.Errorf("failed to open database at '%s': %w", dbPath, err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	if err := db.Ping(); err != nil {
		db.Close()
		err = fmt.Errorf("failed to ping database at '%s': %w", dbPath, err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	// SQLite handles concurrency internally, but the Go driver benefits
	// from limiting connections.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	cfg.Logger.Info(context.Background(), "SQLite database connection established", map[string]interface{}{"path": dbPath})

	repo := &Repository{db: db, logger: cfg.Logger}
	if err := repo.initializeSchema(context.Background()); err != nil {
		db.Close()
		err = fmt.Errorf("failed to initialize database schema: %w", err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}
	cfg.Logger.Info(context.Background(), "Database schema initialized/verified")

	return repo, nil
}

// initializeSchema creates tables if they don't exist.
// NOTE: This is a basic approach. A proper migration tool is recommended for production.
func (r *Repository) initializeSchema(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS trailing_stops (
		account_id TEXT NOT NULL,
		ticker TEXT NOT NULL,
		purchase_price REAL NOT NULL,
		highest_price REAL NOT NULL,
		highest_price_date TIMESTAMP NOT NULL,
		distance_percent REAL NOT NULL,
		dynamic_stop_price REAL NOT NULL,
		is_leveraged INTEGER NOT NULL DEFAULT 0,
		is_active INTEGER NOT NULL DEFAULT 1,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL,
		PRIMARY KEY (account_id, ticker)
	);

	CREATE TABLE IF NOT EXISTS partial_profit_history (
		account_id TEXT NOT NULL,
		ticker TEXT NOT NULL,
		initial_quantity INTEGER NOT NULL,
		sales TEXT NOT NULL DEFAULT '[]',
		is_completed INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL,
		PRIMARY KEY (account_id, ticker)
	);

	CREATE TABLE IF NOT EXISTS order_logs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		account_id TEXT NOT NULL,
		ticker TEXT NOT NULL,
		stock_name TEXT,
		exchange TEXT NOT NULL,
		side TEXT NOT NULL,
		quantity INTEGER NOT NULL,
		price REAL NOT NULL,
		status TEXT NOT NULL,
		order_id TEXT,
		message TEXT,
		composite_score REAL DEFAULT NULL,
		change_percent REAL DEFAULT NULL,
		sell_kind TEXT,
		sell_reasons TEXT NOT NULL DEFAULT '[]',
		created_at TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS trading_configs (
		account_id TEXT PRIMARY KEY,
		config TEXT NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS watchlist (
		account_id TEXT NOT NULL,
		ticker TEXT NOT NULL,
		stock_name TEXT,
		exchange TEXT NOT NULL,
		use_leverage INTEGER NOT NULL DEFAULT 0,
		leverage_ticker TEXT,
		PRIMARY KEY (account_id, ticker)
	);

	CREATE TABLE IF NOT EXISTS daily_prices (
		ticker TEXT NOT NULL,
		date TIMESTAMP NOT NULL,
		close REAL NOT NULL,
		PRIMARY KEY (ticker, date)
	);

	CREATE TABLE IF NOT EXISTS sentiment_scores (
		ticker TEXT NOT NULL,
		date TIMESTAMP NOT NULL,
		score REAL NOT NULL,
		article_count INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (ticker, date)
	);

	CREATE TABLE IF NOT EXISTS predictions (
		ticker TEXT NOT NULL,
		date TIMESTAMP NOT NULL,
		rise_probability REAL NOT NULL,
		PRIMARY KEY (ticker, date)
	);

	-- Common lookups
	CREATE INDEX IF NOT EXISTS idx_order_logs_account_created ON order_logs (account_id, created_at);
	CREATE INDEX IF NOT EXISTS idx_trailing_stops_account_active ON trailing_stops (account_id, is_active);
	CREATE INDEX IF NOT EXISTS idx_daily_prices_ticker_date ON daily_prices (ticker, date);
	`
	_, err := r.db.ExecContext(ctx, schema)
	if err != nil {
		return fmt.Errorf("failed to execute schema initialization: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (r *Repository) Close() error {
	if r.db != nil {
		r.logger.Info(context.Background(), "Closing SQLite database connection")
		return r.db.Close()
	}
	return nil
}

// scanner defines an interface compatible with *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}
