// Package retry runs an operation again when it fails with a transient
// error, waiting with exponential backoff and jitter between attempts.
//
// The policy knows nothing about tickets. Errors opt in to retries by
// implementing Transient, and may carry a server-supplied delay by
// implementing RetryAfter:
//
//	backoff := retry.New().WithMaxAttempts(5)
//	issue, err := retry.Do(ctx, backoff, func(ctx context.Context) (*Issue, error) {
//	    return fetch(ctx)
//	})
package retry

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net"
	"time"

	"github.com/ylchen07/lazyjira/internal/clock"
)

const (
	DefaultMaxAttempts = 5
	DefaultBaseDelay   = 100 * time.Millisecond
	DefaultMaxDelay    = 10 * time.Second
)

// Transient is implemented by errors that may succeed when retried.
type Transient interface {
	Transient() bool
}

// RetryAfter is implemented by errors that may carry a server-supplied
// delay. The flag reports whether a hint is present; a present zero delay
// means retry at once.
type RetryAfter interface {
	RetryAfter() (time.Duration, bool)
}

// ExhaustedError is returned when every attempt failed transiently.
type ExhaustedError struct {
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("max retry attempts (%d) exceeded: %v", e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error { return e.Err }

// Backoff is an exponential backoff policy. The zero value is not usable;
// construct with New.
type Backoff struct {
	maxAttempts int
	baseDelay   time.Duration
	maxDelay    time.Duration
	clock       clock.Clock
	jitter      func() float64
	onRetry     func(attempt int, delay time.Duration, err error)
}

// New returns a Backoff with the default policy: 5 attempts, 100ms base
// delay, 10s cap.
func New() *Backoff {
	return &Backoff{
		maxAttempts: DefaultMaxAttempts,
		baseDelay:   DefaultBaseDelay,
		maxDelay:    DefaultMaxDelay,
		clock:       clock.Real(),
		jitter:      rand.Float64,
	}
}

// WithMaxAttempts sets the total number of attempts, including the first.
func (b *Backoff) WithMaxAttempts(n int) *Backoff {
	if n > 0 {
		b.maxAttempts = n
	}
	return b
}

// WithBaseDelay sets the delay unit used for the first retry and for jitter.
func (b *Backoff) WithBaseDelay(d time.Duration) *Backoff {
	if d > 0 {
		b.baseDelay = d
	}
	return b
}

// WithMaxDelay caps computed delays. Server hints are not capped.
func (b *Backoff) WithMaxDelay(d time.Duration) *Backoff {
	if d > 0 {
		b.maxDelay = d
	}
	return b
}

// WithClock sets the clock used for waiting between attempts.
func (b *Backoff) WithClock(c clock.Clock) *Backoff {
	if c != nil {
		b.clock = c
	}
	return b
}

// WithJitter sets the source of jitter; f must return values in [0, 1).
func (b *Backoff) WithJitter(f func() float64) *Backoff {
	if f != nil {
		b.jitter = f
	}
	return b
}

// WithoutJitter disables jitter.
func (b *Backoff) WithoutJitter() *Backoff {
	b.jitter = func() float64 { return 0 }
	return b
}

// OnRetry registers a hook called before each wait.
func (b *Backoff) OnRetry(fn func(attempt int, delay time.Duration, err error)) *Backoff {
	b.onRetry = fn
	return b
}

// MaxAttempts returns the configured attempt budget.
func (b *Backoff) MaxAttempts() int { return b.maxAttempts }

// Delay returns the wait before attempt+1 given that attempt failed with err.
func (b *Backoff) Delay(attempt int, err error) time.Duration {
	var hint RetryAfter
	if errors.As(err, &hint) {
		if d, ok := hint.RetryAfter(); ok {
			return d
		}
	}

	delay := b.baseDelay
	for i := 1; i < attempt && delay < b.maxDelay; i++ {
		delay *= 2
	}
	delay += time.Duration(b.jitter() * float64(b.baseDelay))
	if delay > b.maxDelay {
		delay = b.maxDelay
	}
	return delay
}

// IsTransient reports whether err is worth retrying. Cancellation never is.
// Timeouts are: whether the caller gave up is decided by its context, not
// by the error chain, so Do checks that separately.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}

	var t Transient
	if errors.As(err, &t) {
		return t.Transient()
	}

	var netErr net.Error
	return errors.As(err, &netErr)
}

// Do calls op until it succeeds, fails with a non-transient error, or the
// attempt budget runs out. A nil Backoff runs op once.
func Do[T any](ctx context.Context, b *Backoff, op func(ctx context.Context) (T, error)) (T, error) {
	if b == nil {
		return op(ctx)
	}

	var zero T
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		result, err := op(ctx)
		if err == nil {
			return result, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return zero, ctxErr
		}
		if !IsTransient(err) {
			return zero, err
		}
		if attempt >= b.maxAttempts {
			return zero, &ExhaustedError{Attempts: attempt, Err: err}
		}

		delay := b.Delay(attempt, err)
		if b.onRetry != nil {
			b.onRetry(attempt, delay, err)
		}

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-b.clock.After(delay):
		}
	}
}
