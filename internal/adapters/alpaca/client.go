package alpaca

import (
	"context"
	"errors"
	"fmt"

	"github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"
	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	"github.com/shopspring/decimal"

	"stockpilot/internal/domain"
	"stockpilot/internal/ports"
)

// Config holds credentials for the Alpaca trading and market-data APIs.
type Config struct {
	APIKey    string
	APISecret string
	BaseURL   string // https://paper-api.alpaca.markets for paper trading
	Logger    ports.Logger
}

// Client implements ports.Brokerage on Alpaca. Alpaca addresses US equities
// by bare symbol, so the exchange field of requests is informational only.
type Client struct {
	trading    *alpaca.Client
	marketData *marketdata.Client
	logger     ports.Logger
}

// Ensure Client implements the interface
var _ ports.Brokerage = (*Client)(nil)

// New creates an Alpaca brokerage client.
func New(cfg Config) (*Client, error) {
	if cfg.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if cfg.APIKey == "" || cfg.APISecret == "" {
		return nil, errors.New("API key and secret are required")
	}
	return &Client{
		trading: alpaca.NewClient(alpaca.ClientOpts{
			APIKey:    cfg.APIKey,
			APISecret: cfg.APISecret,
			BaseURL:   cfg.BaseURL,
		}),
		marketData: marketdata.NewClient(marketdata.ClientOpts{
			APIKey:    cfg.APIKey,
			APISecret: cfg.APISecret,
		}),
		logger: cfg.Logger,
	}, nil
}

// GetHoldings retrieves open positions for the account.
func (c *Client) GetHoldings(ctx context.Context, accountID string) ([]*domain.Position, error) {
	alpacaPositions, err := c.trading.GetPositions()
	if err != nil {
		return nil, fmt.Errorf("%w: list positions: %v", ports.ErrBrokerUnavailable, err)
	}

	positions := make([]*domain.Position, 0, len(alpacaPositions))
	for _, p := range alpacaPositions {
		qty := p.Qty.IntPart()
		if qty <= 0 {
			continue // short or fractional dust, outside our universe
		}
		current := decimal.Zero
		if p.CurrentPrice != nil {
			current = *p.CurrentPrice
		}
		positions = append(positions, &domain.Position{
			AccountID:     accountID,
			Ticker:        p.Symbol,
			Exchange:      mapExchange(p.Exchange),
			Quantity:      qty,
			PurchasePrice: p.AvgEntryPrice.InexactFloat64(),
			CurrentPrice:  current.InexactFloat64(),
		})
	}
	return positions, nil
}

// GetQuote retrieves the latest trade price plus the previous daily close.
func (c *Client) GetQuote(ctx context.Context, exchange domain.Exchange, ticker string) (*ports.Quote, error) {
	snapshot, err := c.marketData.GetSnapshot(ticker, marketdata.GetSnapshotRequest{})
	if err != nil {
		return nil, fmt.Errorf("%w: snapshot for %s: %v", ports.ErrBrokerUnavailable, ticker, err)
	}
	if snapshot == nil || snapshot.LatestTrade == nil {
		return nil, fmt.Errorf("%w: no trade data for %s", ports.ErrNotFound, ticker)
	}

	quote := &ports.Quote{
		Ticker:    ticker,
		Exchange:  exchange,
		Price:     snapshot.LatestTrade.Price,
		Timestamp: snapshot.LatestTrade.Timestamp,
	}
	if snapshot.PrevDailyBar != nil {
		quote.PrevClose = snapshot.PrevDailyBar.Close
	}
	return quote, nil
}

// GetAvailableCash retrieves the account's cash balance.
func (c *Client) GetAvailableCash(ctx context.Context, accountID string) (float64, error) {
	account, err := c.trading.GetAccount()
	if err != nil {
		return 0, fmt.Errorf("%w: get account: %v", ports.ErrBrokerUnavailable, err)
	}
	return account.Cash.InexactFloat64(), nil
}

// SubmitOrder places a day limit order.
func (c *Client) SubmitOrder(ctx context.Context, req *ports.OrderRequest) (*ports.OrderResult, error) {
	if req.Quantity <= 0 {
		return nil, fmt.Errorf("%w: quantity must be positive", ports.ErrInvalidRequest)
	}
	if req.LimitPrice <= 0 {
		return nil, fmt.Errorf("%w: limit price must be positive", ports.ErrInvalidRequest)
	}

	var side alpaca.Side
	switch req.Side {
	case domain.Buy:
		side = alpaca.Buy
	case domain.Sell:
		side = alpaca.Sell
	default:
		return nil, fmt.Errorf("%w: unknown order side %q", ports.ErrInvalidRequest, req.Side)
	}

	qty := decimal.NewFromInt(req.Quantity)
	limitPrice := decimal.NewFromFloat(req.LimitPrice)
	order, err := c.trading.PlaceOrder(alpaca.PlaceOrderRequest{
		Symbol:      req.Ticker,
		Qty:         &qty,
		Side:        side,
		Type:        alpaca.Limit,
		LimitPrice:  &limitPrice,
		TimeInForce: alpaca.Day,
	})
	if err != nil {
		var apiErr *alpaca.APIError
		if errors.As(err, &apiErr) {
			c.logger.Warn(ctx, "Order rejected by broker", map[string]interface{}{
				"ticker": req.Ticker, "side": string(req.Side), "message": apiErr.Message,
			})
			return &ports.OrderResult{
				Status:  domain.OrderFailed,
				Message: apiErr.Message,
			}, nil
		}
		return nil, fmt.Errorf("%w: %s %s x%d: %v", ports.ErrOrderPlacementFailed, req.Side, req.Ticker, req.Quantity, err)
	}

	status := domain.OrderAccepted
	if order.Status == "filled" {
		status = domain.OrderExecuted
	}
	c.logger.Info(ctx, "Order accepted", map[string]interface{}{
		"ticker": req.Ticker, "side": string(req.Side), "quantity": req.Quantity,
		"limit_price": limitPrice.StringFixed(2), "order_id": order.ID,
	})
	return &ports.OrderResult{
		OrderID: order.ID,
		Status:  status,
		Message: string(order.Status),
	}, nil
}

// ConfirmOrder looks the order up and maps its lifecycle state onto the
// journal statuses.
func (c *Client) ConfirmOrder(ctx context.Context, accountID, orderID string) (domain.OrderStatus, error) {
	if orderID == "" {
		return "", fmt.Errorf("%w: order ID is required", ports.ErrInvalidRequest)
	}
	order, err := c.trading.GetOrder(orderID)
	if err != nil {
		return "", fmt.Errorf("%w: get order %s: %v", ports.ErrBrokerUnavailable, orderID, err)
	}
	switch order.Status {
	case "filled":
		return domain.OrderExecuted, nil
	case "canceled", "expired", "rejected":
		return domain.OrderFailed, nil
	default:
		return domain.OrderAccepted, nil
	}
}

// mapExchange normalizes Alpaca exchange names to our stored codes.
func mapExchange(name string) domain.Exchange {
	switch name {
	case "NASDAQ":
		return domain.ExchangeNASD
	case "NYSE":
		return domain.ExchangeNYSE
	case "AMEX", "NYSEARCA", "ARCA":
		return domain.ExchangeAMEX
	default:
		return domain.Exchange(name)
	}
}
