// Package ratelimit paces outbound requests.
package ratelimit

import (
	"context"
	"math"
	"sync"

	"golang.org/x/time/rate"
)

// Limiter admits at most a configured number of requests per second.
// A nil or disabled Limiter admits everything immediately.
type Limiter struct {
	mu      sync.RWMutex
	limiter *rate.Limiter
	enabled bool
}

// New creates a limiter for requestsPerSecond with the given burst.
// requestsPerSecond of 0 or negative means unlimited. A burst below 1 is
// raised to ceil(requestsPerSecond), minimum 1.
func New(requestsPerSecond float64, burst int) *Limiter {
	l := &Limiter{}
	l.UpdateRate(requestsPerSecond, burst)
	return l
}

// Enabled returns whether rate limiting is active
func (l *Limiter) Enabled() bool {
	if l == nil {
		return false
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.enabled
}

// UpdateRate changes the rate limit dynamically.
// requestsPerSecond of 0 or negative disables rate limiting.
func (l *Limiter) UpdateRate(requestsPerSecond float64, burst int) {
	if l == nil {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if requestsPerSecond <= 0 {
		l.enabled = false
		return
	}

	if burst < 1 {
		burst = int(math.Ceil(requestsPerSecond))
		if burst < 1 {
			burst = 1
		}
	}

	if l.limiter == nil {
		l.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), burst)
	} else {
		l.limiter.SetLimit(rate.Limit(requestsPerSecond))
		l.limiter.SetBurst(burst)
	}
	l.enabled = true
}

// Wait blocks until one request may proceed or ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	if !l.Enabled() {
		return nil
	}

	l.mu.RLock()
	limiter := l.limiter
	l.mu.RUnlock()

	return limiter.Wait(ctx)
}
