package kisclient

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"

	"stockpilot/internal/domain"
	"stockpilot/internal/ports"
)

// Interface assertion
var _ ports.Brokerage = (*Client)(nil)

// trID picks the live or paper transaction id.
func (c *Client) trID(live, paper string) string {
	if c.cfg.Virtual {
		return paper
	}
	return live
}

type balanceResponse struct {
	apiResponse
	Output1 []struct {
		Ticker        string `json:"ovrs_pdno"`
		StockName     string `json:"ovrs_item_name"`
		Quantity      string `json:"ovrs_cblc_qty"`
		PurchasePrice string `json:"pchs_avg_pric"`
		CurrentPrice  string `json:"now_pric2"`
		Exchange      string `json:"ovrs_excg_cd"`
	} `json:"output1"`
}

// GetHoldings retrieves the account's US stock positions. Rows with a zero
// quantity (fully sold but still listed by the API) are dropped.
func (c *Client) GetHoldings(ctx context.Context, accountID string) ([]*domain.Position, error) {
	var out balanceResponse
	err := c.invoke(ctx, c.trID("TTTS3012R", "VTTS3012R"), &out, func(req *resty.Request) (*resty.Response, error) {
		return req.SetQueryParams(map[string]string{
			"CANO":           c.cfg.AccountNo,
			"ACNT_PRDT_CD":   c.cfg.ProductCode,
			"OVRS_EXCG_CD":   "NASD",
			"TR_CRCY_CD":     "USD",
			"CTX_AREA_FK200": "",
			"CTX_AREA_NK200": "",
		}).Get("/uapi/overseas-stock/v1/trading/inquire-balance")
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch holdings: %w", err)
	}

	positions := make([]*domain.Position, 0, len(out.Output1))
	for _, row := range out.Output1 {
		qty, err := parseInt(row.Quantity)
		if err != nil {
			c.logger.Warn(ctx, "Skipping holding with unparseable quantity", map[string]interface{}{
				"ticker": row.Ticker, "quantity": row.Quantity,
			})
			continue
		}
		if qty <= 0 {
			continue
		}
		purchase, err := parsePrice(row.PurchasePrice)
		if err != nil {
			return nil, fmt.Errorf("invalid purchase price %q for %s: %w", row.PurchasePrice, row.Ticker, err)
		}
		current, err := parsePrice(row.CurrentPrice)
		if err != nil {
			return nil, fmt.Errorf("invalid current price %q for %s: %w", row.CurrentPrice, row.Ticker, err)
		}
		positions = append(positions, &domain.Position{
			AccountID:     accountID,
			Ticker:        row.Ticker,
			StockName:     row.StockName,
			Exchange:      domain.Exchange(row.Exchange),
			Quantity:      qty,
			PurchasePrice: purchase,
			CurrentPrice:  current,
		})
	}
	return positions, nil
}

type quoteResponse struct {
	apiResponse
	Output struct {
		Last string `json:"last"`
		Base string `json:"base"`
	} `json:"output"`
}

// GetQuote retrieves the current price for a ticker.
func (c *Client) GetQuote(ctx context.Context, exchange domain.Exchange, ticker string) (*ports.Quote, error) {
	var out quoteResponse
	err := c.invoke(ctx, "HHDFS00000300", &out, func(req *resty.Request) (*resty.Response, error) {
		return req.SetQueryParams(map[string]string{
			"AUTH": "",
			"EXCD": exchange.APICode(),
			"SYMB": ticker,
		}).Get("/uapi/overseas-price/v1/quotations/price")
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch quote for %s: %w", ticker, err)
	}

	price, err := parsePrice(out.Output.Last)
	if err != nil || price <= 0 {
		return nil, fmt.Errorf("no valid price for %s on %s (last=%q)", ticker, exchange, out.Output.Last)
	}
	prevClose, err := parsePrice(out.Output.Base)
	if err != nil {
		prevClose = 0 // base is informational, missing is not fatal
	}
	return &ports.Quote{
		Ticker:    ticker,
		Exchange:  exchange,
		Price:     price,
		PrevClose: prevClose,
		Timestamp: c.now(),
	}, nil
}

type buyableResponse struct {
	apiResponse
	Output struct {
		OrderableAmount string `json:"ovrs_ord_psbl_amt"`
	} `json:"output"`
}

// GetAvailableCash retrieves the orderable USD balance.
func (c *Client) GetAvailableCash(ctx context.Context, accountID string) (float64, error) {
	var out buyableResponse
	err := c.invoke(ctx, c.trID("TTTS3011R", "VTTS3011R"), &out, func(req *resty.Request) (*resty.Response, error) {
		return req.SetQueryParams(map[string]string{
			"CANO":          c.cfg.AccountNo,
			"ACNT_PRDT_CD":  c.cfg.ProductCode,
			"OVRS_EXCG_CD":  "NASD",
			"OVRS_ORD_UNPR": "0",
			"ITEM_CD":       "",
		}).Get("/uapi/overseas-stock/v1/trading/inquire-psamount")
	})
	if err != nil {
		return 0, fmt.Errorf("failed to fetch available cash: %w", err)
	}

	cash, err := parsePrice(out.Output.OrderableAmount)
	if err != nil {
		return 0, fmt.Errorf("invalid orderable amount %q: %w", out.Output.OrderableAmount, err)
	}
	return cash, nil
}

type orderResponse struct {
	apiResponse
	Output struct {
		OrderNo string `json:"ODNO"`
	} `json:"output"`
}

// SubmitOrder places a US limit order. A broker-side rejection comes back as
// an OrderResult with status failed rather than as an error, so the caller
// can log it alongside accepted orders. Transport, auth and rate-limit
// failures remain errors.
func (c *Client) SubmitOrder(ctx context.Context, req *ports.OrderRequest) (*ports.OrderResult, error) {
	if req.Quantity <= 0 {
		return nil, fmt.Errorf("%w: quantity must be positive", ports.ErrInvalidRequest)
	}
	if req.LimitPrice <= 0 {
		return nil, fmt.Errorf("%w: limit price must be positive", ports.ErrInvalidRequest)
	}

	var tr string
	switch req.Side {
	case domain.Buy:
		tr = c.trID("TTTT1002U", "VTTT1002U")
	case domain.Sell:
		tr = c.trID("TTTT1006U", "VTTT1001U")
	default:
		return nil, fmt.Errorf("%w: unknown order side %q", ports.ErrInvalidRequest, req.Side)
	}

	limitPrice := decimal.NewFromFloat(req.LimitPrice).StringFixed(2)
	body := map[string]string{
		"CANO":            c.cfg.AccountNo,
		"ACNT_PRDT_CD":    c.cfg.ProductCode,
		"OVRS_EXCG_CD":    string(req.Exchange),
		"PDNO":            req.Ticker,
		"ORD_QTY":         strconv.FormatInt(req.Quantity, 10),
		"OVRS_ORD_UNPR":   limitPrice,
		"ORD_SVR_DVSN_CD": "0",
		"ORD_DVSN":        "00",
	}

	var out orderResponse
	err := c.invoke(ctx, tr, &out, func(r *resty.Request) (*resty.Response, error) {
		return r.SetBody(body).Post("/uapi/overseas-stock/v1/trading/order")
	})
	if err != nil {
		var rejection *apiError
		if errors.As(err, &rejection) {
			c.logger.Warn(ctx, "Order rejected by broker", map[string]interface{}{
				"ticker": req.Ticker, "side": string(req.Side),
				"code": rejection.Code, "message": rejection.Message,
			})
			return &ports.OrderResult{
				Status:  domain.OrderFailed,
				Message: rejection.Error(),
			}, nil
		}
		return nil, fmt.Errorf("%w: %s %s x%d: %v", ports.ErrOrderPlacementFailed, req.Side, req.Ticker, req.Quantity, err)
	}

	c.logger.Info(ctx, "Order accepted", map[string]interface{}{
		"ticker": req.Ticker, "side": string(req.Side), "quantity": req.Quantity,
		"limit_price": limitPrice, "order_no": out.Output.OrderNo,
	})
	return &ports.OrderResult{
		OrderID: out.Output.OrderNo,
		Status:  domain.OrderAccepted,
		Message: out.Message,
	}, nil
}

type openOrdersResponse struct {
	apiResponse
	Output []struct {
		OrderNo     string `json:"odno"`
		Ticker      string `json:"pdno"`
		UnfilledQty string `json:"nccs_qty"`
	} `json:"output"`
}

// ConfirmOrder checks a submitted order against the unexecuted-order list.
// The API only lists open orders, so absence means the order has filled.
// The engine never cancels orders itself, so absence is not ambiguous here.
func (c *Client) ConfirmOrder(ctx context.Context, accountID, orderID string) (domain.OrderStatus, error) {
	if orderID == "" {
		return "", fmt.Errorf("%w: order ID is required", ports.ErrInvalidRequest)
	}

	var out openOrdersResponse
	err := c.invoke(ctx, c.trID("TTTS3018R", "VTTS3018R"), &out, func(req *resty.Request) (*resty.Response, error) {
		return req.SetQueryParams(map[string]string{
			"CANO":           c.cfg.AccountNo,
			"ACNT_PRDT_CD":   c.cfg.ProductCode,
			"OVRS_EXCG_CD":   "NASD",
			"SORT_SQN":       "DS",
			"CTX_AREA_FK200": "",
			"CTX_AREA_NK200": "",
		}).Get("/uapi/overseas-stock/v1/trading/inquire-nccs")
	})
	if err != nil {
		return "", fmt.Errorf("failed to confirm order %s: %w", orderID, err)
	}

	for _, row := range out.Output {
		if row.OrderNo == orderID {
			return domain.OrderAccepted, nil
		}
	}
	return domain.OrderExecuted, nil
}

func parseInt(s string) (int64, error) {
	return strconv.ParseInt(strings.TrimSpace(s), 10, 64)
}

// parsePrice parses the API's decimal strings. Empty strings read as zero,
// which callers treat as "no data".
func parsePrice(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, err
	}
	return d.InexactFloat64(), nil
}
