package testutil

import (
	"sync"
	"time"
)

// DefaultEpoch is the instant a FixedClock starts at when none is given:
// 2023-11-14T22:13:20Z (unix 1700000000).
var DefaultEpoch = time.Unix(1700000000, 0).UTC()

// FixedClock is a manually advanced wall clock for tests.
//
// Unlike the system clock, FixedClock only moves when told to, so record
// timestamps and challenge windows are reproducible across runs.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type FixedClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewFixedClock creates a clock stopped at start.
// A zero start selects DefaultEpoch.
func NewFixedClock(start time.Time) *FixedClock {
	if start.IsZero() {
		start = DefaultEpoch
	}
	return &FixedClock{now: start}
}

// Now returns the current instant without advancing.
func (c *FixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d and returns the new instant.
func (c *FixedClock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	return c.now
}

// Set jumps the clock to t.
func (c *FixedClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// TickingClock advances by a fixed step on every Now call, so that
// successive records get strictly increasing timestamps.
type TickingClock struct {
	mu   sync.Mutex
	now  time.Time
	step time.Duration
}

// NewTickingClock creates a clock whose first Now returns start.
func NewTickingClock(start time.Time, step time.Duration) *TickingClock {
	if start.IsZero() {
		start = DefaultEpoch
	}
	return &TickingClock{now: start, step: step}
}

// Now returns the current instant, then advances by step.
func (c *TickingClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.now
	c.now = c.now.Add(c.step)
	return t
}
