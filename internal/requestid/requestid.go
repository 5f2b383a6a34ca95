// Package requestid provides request ID generation and context utilities
// for correlating an outbound call, its redirect hops and its retries in logs.
package requestid

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// contextKey is an unexported type for context keys to prevent collisions
type contextKey int

const (
	requestIDKey contextKey = iota
	loggerKey
)

// Generate creates a new time-sortable request ID (a UUIDv7 string).
func Generate() string {
	id, err := uuid.NewV7()
	if err != nil {
		// only fails if the random source does
		return uuid.NewString()
	}
	return id.String()
}

// IsValid reports whether id is a canonical lowercase UUID string.
func IsValid(id string) bool {
	if len(id) != 36 {
		return false
	}
	parsed, err := uuid.Parse(id)
	return err == nil && parsed.String() == id
}

// WithRequestID adds a request ID to the context.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// FromContext retrieves the request ID from context.
// Returns empty string if no request ID is present.
func FromContext(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}

// WithLogger adds a request-scoped logger to the context.
func WithLogger(ctx context.Context, logger *zap.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// LoggerFromContext retrieves the request-scoped logger from context.
// Returns the fallback logger if no request logger is present.
func LoggerFromContext(ctx context.Context, fallback *zap.Logger) *zap.Logger {
	if logger, ok := ctx.Value(loggerKey).(*zap.Logger); ok {
		return logger
	}
	return fallback
}

// NewContext returns ctx carrying a fresh request ID and a logger tagged
// with it.
func NewContext(ctx context.Context, baseLogger *zap.Logger) context.Context {
	return NewContextWithID(ctx, Generate(), baseLogger)
}

// NewContextWithID is NewContext with a caller-supplied ID.
func NewContextWithID(ctx context.Context, id string, baseLogger *zap.Logger) context.Context {
	ctx = WithRequestID(ctx, id)
	return WithLogger(ctx, baseLogger.With(zap.String("requestID", id)))
}

// Ensure returns ctx unchanged if it already carries a request ID,
// otherwise NewContext(ctx, baseLogger).
func Ensure(ctx context.Context, baseLogger *zap.Logger) context.Context {
	if FromContext(ctx) != "" {
		return ctx
	}
	return NewContext(ctx, baseLogger)
}
