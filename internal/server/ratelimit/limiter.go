// Package ratelimit gates inbound connection events with a token bucket.
package ratelimit

import (
	"time"

	"golang.org/x/time/rate"
)

const (
	DefaultBurst     = 40
	DefaultPerSecond = 20
)

// Limiter is a per-connection token bucket. It is owned by a single
// connection, but safe for concurrent use.
type Limiter struct {
	bucket *rate.Limiter
	now    func() time.Time
}

// Option configures a Limiter
type Option func(*Limiter)

// WithClock replaces the wall clock used for refills
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// New creates a full bucket holding burst tokens, refilled at perSecond
// tokens per second. Non-positive values fall back to the defaults.
func New(burst int, perSecond float64, opts ...Option) *Limiter {
	if burst <= 0 {
		burst = DefaultBurst
	}
	if perSecond <= 0 {
		perSecond = DefaultPerSecond
	}
	l := &Limiter{now: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	l.bucket = rate.NewLimiter(rate.Limit(perSecond), burst)
	// Pin the bucket's notion of "last refill" to the injected clock
	l.bucket.SetBurstAt(l.now(), burst)
	return l
}

// Allow refills for the elapsed time and consumes one token if available
func (l *Limiter) Allow() bool {
	return l.bucket.AllowN(l.now(), 1)
}

// Tokens reports the tokens currently available
func (l *Limiter) Tokens() float64 {
	return l.bucket.TokensAt(l.now())
}
