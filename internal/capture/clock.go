package capture

import (
	"sync"
	"time"
)

// Clock yields monotonic timestamps. The frame source and the sensor stream
// of one session share a Clock so their timestamps are comparable.
type Clock interface {
	Now() time.Duration
}

type monotonicClock struct {
	origin time.Time
}

// NewMonotonicClock returns a clock measuring elapsed time since now using
// Go's monotonic reading, immune to wall clock steps.
func NewMonotonicClock() Clock {
	return monotonicClock{origin: time.Now()}
}

func (c monotonicClock) Now() time.Duration {
	return time.Since(c.origin)
}

// ManualClock is a Clock advanced explicitly. Synthetic sources and tests use it.
type ManualClock struct {
	mu  sync.Mutex
	now time.Duration
}

// Now returns the current manual time.
func (c *ManualClock) Now() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d and returns the new time.
func (c *ManualClock) Advance(d time.Duration) time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now += d
	return c.now
}

// Set moves the clock to t, which may be in the past.
func (c *ManualClock) Set(t time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}
