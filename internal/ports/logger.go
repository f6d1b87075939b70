package ports

import "context"

// Logger is the logging interface the trading engine writes through. The
// adapters package ships a std-log and a zap backend; tests inject no-ops.
// Fields are optional key/value maps appended to the message.
type Logger interface {
	// Debug logs fine-grained cycle internals (pacing, ratchet moves).
	Debug(ctx context.Context, msg string, fields ...map[string]interface{})
	// Info logs cycle milestones and order events.
	Info(ctx context.Context, msg string, fields ...map[string]interface{})
	// Warn logs recoverable conditions such as broker rejections.
	Warn(ctx context.Context, msg string, fields ...map[string]interface{})
	// Error logs a failure together with its error value.
	Error(ctx context.Context, err error, msg string, fields ...map[string]interface{})
}
