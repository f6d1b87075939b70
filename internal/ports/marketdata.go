package ports

import (
	"context"

	"stockpilot/internal/domain"
)

// MarketData provides the research inputs the scorer consumes: daily price
// history, aggregated news sentiment and the model's rise probability.
// Sentiment and RiseProbability return (nil, nil) / (0, nil) when no data
// exists for the ticker; only infrastructure failures are errors.
type MarketData interface {
	// PriceHistory retrieves daily closes for the ticker, oldest first,
	// covering at most lookbackDays calendar days.
	PriceHistory(ctx context.Context, ticker string, lookbackDays int) ([]domain.PricePoint, error)
	// Sentiment retrieves the latest aggregated sentiment for the ticker.
	// Returns nil, nil when no sentiment has been collected.
	Sentiment(ctx context.Context, ticker string) (*domain.SentimentScore, error)
	// RiseProbability retrieves the model's probability [0,1] that the
	// ticker rises. Returns 0, nil when no prediction exists.
	RiseProbability(ctx context.Context, ticker string) (float64, error)
}
