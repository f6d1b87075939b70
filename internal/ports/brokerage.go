package ports

import (
	"context"
	"time"

	"stockpilot/internal/domain"
)

// Quote is the latest price snapshot for a ticker.
type Quote struct {
	Ticker    string
	Exchange  domain.Exchange
	Price     float64
	PrevClose float64
	Timestamp time.Time
}

// OrderRequest describes a limit order to submit.
type OrderRequest struct {
	AccountID  string
	Ticker     string
	StockName  string
	Exchange   domain.Exchange
	Side       domain.OrderSide
	Quantity   int64
	LimitPrice float64
}

// OrderResult is the broker's answer to a submitted order.
type OrderResult struct {
	OrderID string
	Status  domain.OrderStatus
	Message string
}

// Brokerage defines the interface for the trading API.
// Implementations are expected to handle authentication and rate limiting
// internally; callers treat every method as a single logical request.
type Brokerage interface {
	// GetHoldings retrieves the currently held positions for the account.
	GetHoldings(ctx context.Context, accountID string) ([]*domain.Position, error)
	// GetQuote retrieves the current price for a ticker on an exchange.
	GetQuote(ctx context.Context, exchange domain.Exchange, ticker string) (*Quote, error)
	// GetAvailableCash retrieves the orderable USD cash balance.
	GetAvailableCash(ctx context.Context, accountID string) (float64, error)
	// SubmitOrder places a limit order and returns the broker's result.
	SubmitOrder(ctx context.Context, req *OrderRequest) (*OrderResult, error)
	// ConfirmOrder reports the current status of a previously submitted
	// order: OrderAccepted while it is still open at the broker, a terminal
	// status once the broker can report one.
	ConfirmOrder(ctx context.Context, accountID, orderID string) (domain.OrderStatus, error)
}
