package kisclient

import (
	"context"
	"fmt"
	"time"

	"stockpilot/internal/ports"
)

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
	ErrorCode   string `json:"error_code"`
	ErrorDesc   string `json:"error_description"`
}

// tokenValid reports whether the cached token is usable. Callers hold
// tokenMu in either mode.
func (c *Client) tokenValid() bool {
	return c.token != "" && c.now().Before(c.tokenExpiry.Add(-time.Minute))
}

// ensureToken returns a cached access token, issuing a new one when the cache
// is empty or within a minute of expiry. The valid-token path only takes the
// read lock; refresh is single-flight behind the write lock with a re-check,
// so callers queued during a refresh reuse the token the first caller
// obtained.
func (c *Client) ensureToken(ctx context.Context) (string, error) {
	c.tokenMu.RLock()
	if c.tokenValid() {
		token := c.token
		c.tokenMu.RUnlock()
		return token, nil
	}
	c.tokenMu.RUnlock()

	c.tokenMu.Lock()
	defer c.tokenMu.Unlock()

	if c.tokenValid() {
		return c.token, nil
	}

	var out tokenResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]string{
			"grant_type": "client_credentials",
			"appkey":     c.cfg.AppKey,
			"appsecret":  c.cfg.AppSecret,
		}).
		SetResult(&out).
		SetError(&out).
		Post("/oauth2/tokenP")
	if err != nil {
		return "", fmt.Errorf("%w: token request: %v", ports.ErrConnectionFailed, err)
	}

	// The API refuses to issue a second token within a minute of the last
	// one. Wait out the window once and retry; a second refusal is fatal.
	if out.ErrorCode == codeTokenTooSoon {
		c.logger.Warn(ctx, "Token issued too recently, waiting before retry", map[string]interface{}{
			"wait": tokenRefreshWait.String(),
		})
		if err := sleepCtx(ctx, tokenRefreshWait); err != nil {
			return "", err
		}
		out = tokenResponse{}
		resp, err = c.http.R().
			SetContext(ctx).
			SetBody(map[string]string{
				"grant_type": "client_credentials",
				"appkey":     c.cfg.AppKey,
				"appsecret":  c.cfg.AppSecret,
			}).
			SetResult(&out).
			SetError(&out).
			Post("/oauth2/tokenP")
		if err != nil {
			return "", fmt.Errorf("%w: token request: %v", ports.ErrConnectionFailed, err)
		}
		if out.ErrorCode == codeTokenTooSoon {
			return "", fmt.Errorf("%w: %s", ports.ErrTokenRefreshLimited, out.ErrorDesc)
		}
	}

	if !resp.IsSuccess() || out.AccessToken == "" {
		return "", fmt.Errorf("%w: HTTP %d: %s %s",
			ports.ErrAuthenticationFailed, resp.StatusCode(), out.ErrorCode, out.ErrorDesc)
	}

	c.token = out.AccessToken
	c.tokenExpiry = c.now().Add(time.Duration(out.ExpiresIn) * time.Second)
	c.logger.Info(ctx, "Issued new access token", map[string]interface{}{
		"expires_in": out.ExpiresIn,
	})
	return c.token, nil
}

// invalidateToken drops the cached token so the next call re-authenticates.
func (c *Client) invalidateToken() {
	c.tokenMu.Lock()
	c.token = ""
	c.tokenExpiry = time.Time{}
	c.tokenMu.Unlock()
}
