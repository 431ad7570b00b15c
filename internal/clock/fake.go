package clock

import (
	"sync"
	"time"
)

// Fake returns a FakeClock starting at initial. Time only moves when
// Advance is called, unless auto-advance is enabled.
func Fake(initial time.Time) *FakeClock {
	c := &FakeClock{current: initial}
	c.changed = sync.NewCond(&c.mu)
	return c
}

// FakeClock is a deterministic Clock for tests. It is safe for concurrent use.
type FakeClock struct {
	mu          sync.Mutex
	current     time.Time
	waiters     []fakeWaiter
	changed     *sync.Cond
	autoAdvance bool
	slept       []time.Duration
}

type fakeWaiter struct {
	deadline time.Time
	ch       chan time.Time
}

// Now returns the current fake time.
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// After registers a waiter that fires once the clock passes now+d. With
// auto-advance enabled the clock jumps forward by d and the channel fires
// immediately.
func (c *FakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	ch := make(chan time.Time, 1)
	c.slept = append(c.slept, d)
	if d <= 0 {
		ch <- c.current
		return ch
	}
	if c.autoAdvance {
		c.current = c.current.Add(d)
		ch <- c.current
		return ch
	}

	c.waiters = append(c.waiters, fakeWaiter{deadline: c.current.Add(d), ch: ch})
	c.changed.Broadcast()
	return ch
}

// Advance moves the clock forward and fires every expired waiter.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.current = c.current.Add(d)
	remaining := c.waiters[:0]
	for _, w := range c.waiters {
		if w.deadline.After(c.current) {
			remaining = append(remaining, w)
			continue
		}
		w.ch <- c.current
	}
	c.waiters = remaining
}

// SetAutoAdvance makes every After call jump the clock forward instead of
// blocking until Advance.
func (c *FakeClock) SetAutoAdvance(on bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.autoAdvance = on
}

// WaitForTimers blocks until at least n waiters are pending.
func (c *FakeClock) WaitForTimers(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for len(c.waiters) < n {
		c.changed.Wait()
	}
}

// Waits returns the durations passed to After, in call order.
func (c *FakeClock) Waits() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.slept...)
}
