package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"stockpilot/internal/domain"
)

// --- MarketData Implementation ---
//
// The daily_prices, sentiment_scores and predictions tables are populated by
// the external research pipeline. Reads treat missing data as "no signal",
// not as an error.

// PriceHistory retrieves daily closes for the ticker, oldest first, covering
// at most lookbackDays calendar days.
func (r *Repository) PriceHistory(ctx context.Context, ticker string, lookbackDays int) ([]domain.PricePoint, error) {
	const query = `
	SELECT date, close FROM daily_prices
	WHERE ticker = ? AND date >= ?
	ORDER BY date ASC`

	cutoff := time.Now().AddDate(0, 0, -lookbackDays)
	rows, err := r.db.QueryContext(ctx, query, ticker, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to query price history for %s: %w", ticker, err)
	}
	defer rows.Close()

	points := make([]domain.PricePoint, 0)
	for rows.Next() {
		var p domain.PricePoint
		if err := rows.Scan(&p.Date, &p.Close); err != nil {
			return nil, fmt.Errorf("failed to scan price point for %s: %w", ticker, err)
		}
		points = append(points, p)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating price rows for %s: %w", ticker, err)
	}
	return points, nil
}

// Sentiment retrieves the latest aggregated sentiment for the ticker.
func (r *Repository) Sentiment(ctx context.Context, ticker string) (*domain.SentimentScore, error) {
	const query = `
	SELECT score, article_count, date FROM sentiment_scores
	WHERE ticker = ?
	ORDER BY date DESC LIMIT 1`

	s := &domain.SentimentScore{Ticker: ticker}
	err := r.db.QueryRowContext(ctx, query, ticker).Scan(&s.Score, &s.ArticleCount, &s.Date)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // No sentiment collected for this ticker
		}
		return nil, fmt.Errorf("failed to query sentiment for %s: %w", ticker, err)
	}
	return s, nil
}

// RiseProbability retrieves the latest model prediction for the ticker.
func (r *Repository) RiseProbability(ctx context.Context, ticker string) (float64, error) {
	const query = `
	SELECT rise_probability FROM predictions
	WHERE ticker = ?
	ORDER BY date DESC LIMIT 1`

	var p float64
	err := r.db.QueryRowContext(ctx, query, ticker).Scan(&p)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil // No prediction for this ticker
		}
		return 0, fmt.Errorf("failed to query rise probability for %s: %w", ticker, err)
	}
	return p, nil
}

// InsertDailyPrice stores one daily close. Used by the import tooling and
// tests; the production pipeline writes the table directly.
func (r *Repository) InsertDailyPrice(ctx context.Context, ticker string, date time.Time, close float64) error {
	const query = `
	INSERT INTO daily_prices (ticker, date, close) VALUES (?, ?, ?)
	ON CONFLICT(ticker, date) DO UPDATE SET close = excluded.close`
	if _, err := r.db.ExecContext(ctx, query, ticker, date, close); err != nil {
		return fmt.Errorf("failed to insert daily price for %s: %w", ticker, err)
	}
	return nil
}

// InsertSentiment stores one sentiment observation.
func (r *Repository) InsertSentiment(ctx context.Context, s *domain.SentimentScore) error {
	const query = `
	INSERT INTO sentiment_scores (ticker, date, score, article_count) VALUES (?, ?, ?, ?)
	ON CONFLICT(ticker, date) DO UPDATE SET score = excluded.score, article_count = excluded.article_count`
	if _, err := r.db.ExecContext(ctx, query, s.Ticker, s.Date, s.Score, s.ArticleCount); err != nil {
		return fmt.Errorf("failed to insert sentiment for %s: %w", s.Ticker, err)
	}
	return nil
}

// InsertPrediction stores one rise-probability prediction.
func (r *Repository) InsertPrediction(ctx context.Context, ticker string, date time.Time, riseProbability float64) error {
	const query = `
	INSERT INTO predictions (ticker, date, rise_probability) VALUES (?, ?, ?)
	ON CONFLICT(ticker, date) DO UPDATE SET rise_probability = excluded.rise_probability`
	if _, err := r.db.ExecContext(ctx, query, ticker, date, riseProbability); err != nil {
		return fmt.Errorf("failed to insert prediction for %s: %w", ticker, err)
	}
	return nil
}
