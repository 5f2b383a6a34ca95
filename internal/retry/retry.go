// Package retry provides bounded retry with exponential backoff and jitter.
package retry

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"
)

const (
	// DefaultBaseDelay is the delay after the first failed attempt, before jitter.
	DefaultBaseDelay = 100 * time.Millisecond

	// DefaultMaxJitter bounds the random addition to each delay (exclusive).
	DefaultMaxJitter = 50 * time.Millisecond
)

// NonRetryableError wraps an error to indicate it should not be retried.
type NonRetryableError struct {
	Err error
}

func (e *NonRetryableError) Error() string {
	return e.Err.Error()
}

func (e *NonRetryableError) Unwrap() error {
	return e.Err
}

// NonRetryable wraps an error to indicate it should not be retried.
func NonRetryable(err error) error {
	if err == nil {
		return nil
	}
	return &NonRetryableError{Err: err}
}

// Config controls retry behavior.
type Config struct {
	// MaxRetries is the number of retries after the first attempt.
	// Negative values are treated as 0 (a single attempt).
	MaxRetries int

	// Backoff returns the delay after failed attempt n (0-indexed).
	// If nil, defaults to Jittered(DefaultBaseDelay, DefaultMaxJitter).
	Backoff func(attempt int) time.Duration

	// Retryable decides whether an error may be retried.
	// If nil, defaults to IsTransient.
	Retryable func(error) bool

	// Logger receives one warning per retried failure. Nil means silent.
	Logger *zap.Logger

	// OnRetry is called before each backoff sleep.
	OnRetry func(attempt int, delay time.Duration, err error)
}

// Exponential returns a backoff function that waits base * 2^attempt.
// For example with base=100ms: 100ms, 200ms, 400ms, 800ms...
func Exponential(base time.Duration) func(int) time.Duration {
	return func(attempt int) time.Duration {
		if attempt < 0 {
			attempt = 0
		}
		d := base
		for i := 0; i < attempt; i++ {
			if d > math.MaxInt64/2 {
				return time.Duration(math.MaxInt64)
			}
			d *= 2
		}
		return d
	}
}

// Jittered returns Exponential(base) plus a uniform random duration in
// [0, maxJitter).
func Jittered(base, maxJitter time.Duration) func(int) time.Duration {
	exp := Exponential(base)
	return func(attempt int) time.Duration {
		d := exp(attempt)
		if maxJitter <= 0 || d > time.Duration(math.MaxInt64)-maxJitter {
			return d
		}
		return d + rand.N(maxJitter)
	}
}

// Linear returns a backoff function that waits (attempt+1) * base.
// For example with base=1s: 1s, 2s, 3s, 4s...
func Linear(base time.Duration) func(int) time.Duration {
	return func(attempt int) time.Duration {
		return time.Duration(attempt+1) * base
	}
}

// Constant returns a backoff function that always waits d.
func Constant(d time.Duration) func(int) time.Duration {
	return func(int) time.Duration {
		return d
	}
}

// Do executes fn until it succeeds, returns an error that is not retryable,
// or MaxRetries retries have been spent. The error returned is the one fn
// produced, unwrapped only from NonRetryableError. Once ctx is done no retry
// is scheduled and fn's error is returned as is; if ctx is cancelled during
// backoff, Do returns ctx.Err().
func Do[T any](ctx context.Context, cfg Config, fn func() (T, error)) (T, error) {
	var zero T

	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}

	backoff := cfg.Backoff
	if backoff == nil {
		backoff = Jittered(DefaultBaseDelay, DefaultMaxJitter)
	}

	retryable := cfg.Retryable
	if retryable == nil {
		retryable = IsTransient
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	for attempt := 0; ; attempt++ {
		result, err := fn()
		if err == nil {
			return result, nil
		}

		var nonRetryable *NonRetryableError
		if errors.As(err, &nonRetryable) {
			return zero, nonRetryable.Err
		}

		// a done ctx fails every later attempt too
		if attempt >= cfg.MaxRetries || ctx.Err() != nil || !retryable(err) {
			return zero, err
		}

		delay := backoff(attempt)
		logger.Warn("Retrying after transient failure",
			zap.Error(err),
			zap.String("kind", Classify(err).String()),
			zap.Int("attempt", attempt),
			zap.Int("maxRetries", cfg.MaxRetries),
			zap.Duration("delay", delay))

		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, delay, err)
		}

		if err := sleep(ctx, delay); err != nil {
			return zero, err
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
