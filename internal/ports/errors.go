package ports

import "errors"

// Standard application-level errors.
// Adapters should wrap underlying infrastructure errors with these standard errors.
var (
	// General Errors
	ErrUnknown            = errors.New("unknown error occurred")
	ErrInvalidRequest     = errors.New("invalid request parameters or format")
	ErrNotFound           = errors.New("resource not found")
	ErrTimeout            = errors.New("operation timed out")
	ErrContextCanceled    = errors.New("operation canceled via context")
	ErrConfigurationError = errors.New("invalid or missing configuration")

	// Brokerage Specific Errors
	ErrBrokerUnavailable    = errors.New("brokerage API is unavailable")
	ErrConnectionFailed     = errors.New("failed to connect to the brokerage")
	ErrRateLimited          = errors.New("API rate limit exceeded")
	ErrAuthenticationFailed = errors.New("brokerage authentication failed (check API keys)")
	ErrTokenRefreshLimited  = errors.New("access token was issued too recently")
	ErrInsufficientFunds    = errors.New("insufficient funds for operation")
	ErrOrderPlacementFailed = errors.New("failed to place order")

	// Strategy / Cycle Errors
	ErrInsufficientData    = errors.New("not enough price data for indicators")
	ErrCycleAlreadyRunning = errors.New("a cycle of this job type is already running")
	ErrAutoTradingDisabled = errors.New("auto trading is disabled for this account")
	ErrConfigInvalid       = errors.New("invalid trading configuration")

	// Database Specific Errors
	ErrDuplicateEntry = errors.New("database record already exists")
	ErrDBConnection   = errors.New("database connection error")
	ErrQueryFailed    = errors.New("database query failed")
	ErrUpdateFailed   = errors.New("database update failed")
)
