package coach

import (
	"sync"
	"time"
)

// Clock supplies policy time as a monotonic offset from an arbitrary origin.
type Clock interface {
	Now() time.Duration
}

// SystemClock measures wall time since its creation.
type SystemClock struct {
	start time.Time
}

// NewSystemClock creates a clock starting at 0.
func NewSystemClock() *SystemClock {
	return &SystemClock{start: time.Now()}
}

// Now returns the elapsed time since creation.
func (c *SystemClock) Now() time.Duration {
	return time.Since(c.start)
}

// ManualClock is a settable clock for deterministic driving.
type ManualClock struct {
	mu  sync.Mutex
	now time.Duration
}

// Now returns the current time.
func (c *ManualClock) Now() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Set moves the clock to t.
func (c *ManualClock) Set(t time.Duration) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

// Advance moves the clock forward by d.
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now += d
	c.mu.Unlock()
}
