// Package ratelimit gates outbound API calls with a token bucket.
package ratelimit

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/ylchen07/lazyjira/internal/clock"
)

// Default budget: 100 requests per minute with a full burst allowance.
const (
	DefaultCapacity  = 100
	DefaultPerSecond = 100.0 / 60.0
)

// epsilon absorbs float drift so that calls spaced exactly 1/rate apart
// always find a token.
const epsilon = 1e-9

// Option customises a Limiter.
type Option func(*Limiter)

// WithClock sets the time source used for refill.
func WithClock(c clock.Clock) Option {
	return func(l *Limiter) {
		if c != nil {
			l.clock = c
		}
	}
}

// Limiter is a token bucket holding up to capacity tokens and refilling at
// perSecond tokens per second. There is no waiter queue: callers that find
// the bucket empty are told how long to wait and try again.
type Limiter struct {
	capacity  float64
	perSecond float64
	clock     clock.Clock

	mu         sync.Mutex
	tokens     float64
	lastRefill time.Time
}

// New constructs a full Limiter.
func New(capacity int, perSecond float64, opts ...Option) (*Limiter, error) {
	if capacity < 1 {
		return nil, fmt.Errorf("ratelimit: capacity must be at least 1, got %d", capacity)
	}
	if perSecond <= 0 || math.IsInf(perSecond, 0) || math.IsNaN(perSecond) {
		return nil, fmt.Errorf("ratelimit: refill rate must be positive, got %v", perSecond)
	}

	l := &Limiter{
		capacity:  float64(capacity),
		perSecond: perSecond,
		clock:     clock.Real(),
	}
	for _, opt := range opts {
		opt(l)
	}

	l.tokens = l.capacity
	l.lastRefill = l.clock.Now()
	return l, nil
}

// Acquire takes one token and returns zero, or returns how long the caller
// must wait before a token is available. A non-zero result consumes nothing.
func (l *Limiter) Acquire() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.refill()
	if l.tokens >= 1-epsilon {
		l.tokens = math.Max(0, l.tokens-1)
		return 0
	}

	missing := 1 - l.tokens
	wait := time.Duration(math.Ceil(missing / l.perSecond * float64(time.Second)))
	if wait <= 0 {
		wait = time.Nanosecond
	}
	return wait
}

// Wait blocks until a token has been taken or ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	for {
		wait := l.Acquire()
		if wait == 0 {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.clock.After(wait):
		}
	}
}

// Tokens reports the current token count after refill.
func (l *Limiter) Tokens() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.refill()
	return l.tokens
}

func (l *Limiter) refill() {
	now := l.clock.Now()
	elapsed := now.Sub(l.lastRefill)
	if elapsed <= 0 {
		return
	}
	l.tokens = math.Min(l.capacity, l.tokens+elapsed.Seconds()*l.perSecond)
	l.lastRefill = now
}
