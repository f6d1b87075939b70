package kisclient

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/jpillora/backoff"

	"stockpilot/internal/ports"
)

// API error codes the client reacts to.
const (
	codeRateLimited   = "EGW00201" // per-second request quota exceeded
	codeTokenExpired  = "EGW00123" // access token expired
	codeTokenTooSoon  = "EGW00133" // token was issued less than a minute ago
	tokenRefreshWait  = 61 * time.Second
	defaultInterval   = 500 * time.Millisecond
	defaultCooldown   = 3 * time.Second
	defaultMaxRetries = 3
	defaultTimeout    = 15 * time.Second
)

// Config holds configuration for the KIS brokerage client.
type Config struct {
	BaseURL     string
	AppKey      string
	AppSecret   string
	AccountNo   string // CANO, the 8-digit account number
	ProductCode string // ACNT_PRDT_CD, usually "01"
	Virtual     bool   // Paper-trading endpoints use the V* transaction ids
	Logger      ports.Logger

	Timeout       time.Duration // HTTP timeout, defaults to 15s
	MinInterval   time.Duration // Minimum spacing between API calls, defaults to 500ms
	RetryCooldown time.Duration // Base wait after a rate-limit error, defaults to 3s
	MaxRetries    int           // Rate-limit retries per call, defaults to 3
	Now           func() time.Time
}

// Client implements ports.Brokerage against the KIS overseas-stock REST API.
// All calls flow through a single pacing gate so the engine never exceeds
// the per-second request quota regardless of which loop is calling.
type Client struct {
	http   *resty.Client
	cfg    Config
	logger ports.Logger
	now    func() time.Time

	// rateMu serializes the inter-call pacing gate.
	rateMu   sync.Mutex
	lastCall time.Time

	// tokenMu makes token refresh single-flight. Readers of a still-valid
	// token only take the read lock, so a refresh wait never stalls them.
	tokenMu     sync.RWMutex
	token       string
	tokenExpiry time.Time
}

// New creates a KIS client. The logger and credentials are required.
func New(cfg Config) (*Client, error) {
	if cfg.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if cfg.BaseURL == "" {
		return nil, errors.New("base URL is required")
	}
	if cfg.AppKey == "" || cfg.AppSecret == "" {
		return nil, errors.New("app key and secret are required")
	}
	if cfg.AccountNo == "" {
		return nil, errors.New("account number is required")
	}
	if cfg.ProductCode == "" {
		cfg.ProductCode = "01"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MinInterval <= 0 {
		cfg.MinInterval = defaultInterval
	}
	if cfg.RetryCooldown <= 0 {
		cfg.RetryCooldown = defaultCooldown
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = defaultMaxRetries
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	httpClient := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetHeader("Content-Type", "application/json; charset=utf-8")

	return &Client{
		http:   httpClient,
		cfg:    cfg,
		logger: cfg.Logger,
		now:    now,
	}, nil
}

// apiResponse is the common KIS response envelope. rt_cd "0" means success;
// everything else carries an error code in msg_cd.
type apiResponse struct {
	ReturnCode  string `json:"rt_cd"`
	MessageCode string `json:"msg_cd"`
	Message     string `json:"msg1"`
}

func (r *apiResponse) envelope() *apiResponse { return r }

type apiResult interface {
	envelope() *apiResponse
}

// apiError is a broker-side rejection: the request was understood but
// refused (bad ticker, insufficient funds, market closed). Distinct from
// transport, auth and rate-limit errors, which use the ports sentinels.
type apiError struct {
	TrID    string
	Code    string
	Message string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("API error %s (tr_id %s): %s", e.Code, e.TrID, e.Message)
}

// waitRateLimit enforces the minimum spacing between calls. The mutex is held
// through the sleep so concurrent callers queue up behind it.
func (c *Client) waitRateLimit(ctx context.Context) error {
	c.rateMu.Lock()
	defer c.rateMu.Unlock()

	if since := c.now().Sub(c.lastCall); since < c.cfg.MinInterval {
		if err := sleepCtx(ctx, c.cfg.MinInterval-since); err != nil {
			return err
		}
	}
	c.lastCall = c.now()
	return nil
}

// invoke runs one API call: pacing gate, token injection, envelope check,
// bounded rate-limit retries, one forced token refresh on an expired token.
func (c *Client) invoke(ctx context.Context, trID string, result apiResult, do func(req *resty.Request) (*resty.Response, error)) error {
	boff := &backoff.Backoff{
		Min:    c.cfg.RetryCooldown,
		Max:    4 * c.cfg.RetryCooldown,
		Factor: 2,
		Jitter: true,
	}
	refreshed := false

	for attempt := 0; ; attempt++ {
		if err := c.waitRateLimit(ctx); err != nil {
			return err
		}
		token, err := c.ensureToken(ctx)
		if err != nil {
			return err
		}

		req := c.http.R().
			SetContext(ctx).
			SetHeader("authorization", "Bearer "+token).
			SetHeader("appkey", c.cfg.AppKey).
			SetHeader("appsecret", c.cfg.AppSecret).
			SetHeader("tr_id", trID).
			SetResult(result)

		resp, err := do(req)
		if err != nil {
			return fmt.Errorf("%w: tr_id %s: %v", ports.ErrConnectionFailed, trID, err)
		}
		if !resp.IsSuccess() {
			return fmt.Errorf("%w: tr_id %s: HTTP %d", ports.ErrBrokerUnavailable, trID, resp.StatusCode())
		}

		env := result.envelope()
		if env.ReturnCode == "0" {
			return nil
		}

		switch env.MessageCode {
		case codeRateLimited:
			if attempt >= c.cfg.MaxRetries {
				return fmt.Errorf("%w: tr_id %s: %s", ports.ErrRateLimited, trID, env.Message)
			}
			wait := boff.Duration()
			c.logger.Warn(ctx, "API rate limited, backing off", map[string]interface{}{
				"tr_id": trID, "wait": wait.String(), "attempt": attempt + 1,
			})
			if err := sleepCtx(ctx, wait); err != nil {
				return err
			}
		case codeTokenExpired:
			if refreshed {
				return fmt.Errorf("%w: tr_id %s: %s", ports.ErrAuthenticationFailed, trID, env.Message)
			}
			refreshed = true
			c.invalidateToken()
			c.logger.Warn(ctx, "Access token expired, refreshing", map[string]interface{}{"tr_id": trID})
		default:
			return &apiError{TrID: trID, Code: env.MessageCode, Message: env.Message}
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", ports.ErrContextCanceled, ctx.Err())
	case <-timer.C:
		return nil
	}
}
