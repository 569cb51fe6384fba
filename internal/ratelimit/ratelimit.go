// Package ratelimit wraps golang.org/x/time/rate for outbound frame
// throttling.
package ratelimit

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Limiter is a token bucket.
type Limiter struct {
	bucket *rate.Limiter
}

// PerInterval allows one event per interval with no burst, which is
// how venue control-frame budgets are specified.
func PerInterval(interval time.Duration) *Limiter {
	return &Limiter{bucket: rate.NewLimiter(rate.Every(interval), 1)}
}

// NewWithBurst allows eventsPerSecond sustained with the given burst.
func NewWithBurst(eventsPerSecond float64, burst int) *Limiter {
	return &Limiter{bucket: rate.NewLimiter(rate.Limit(eventsPerSecond), burst)}
}

// Wait blocks until a token is available or the context is cancelled.
func (l *Limiter) Wait(ctx context.Context) error {
	return l.bucket.Wait(ctx)
}

// Allow reports whether an event may happen now without blocking.
func (l *Limiter) Allow() bool {
	return l.bucket.Allow()
}

// Tokens returns the number of tokens currently available.
func (l *Limiter) Tokens() float64 {
	return l.bucket.Tokens()
}
