// Package testutil provides deterministic test fixtures: frozen wall
// clocks for stable elapsed-time columns, a reproducible random source,
// and on-shell particle builders.
package testutil

import (
	"sync"
	"time"
)

// FixedClock returns a wall-clock source frozen at the given instant.
// Wired into engine.WithWallClock so elapsed columns print as 0s.
func FixedClock(at time.Time) func() time.Time {
	return func() time.Time { return at }
}

// SteppingClock is a thread-safe wall clock that advances by a fixed
// step on every read. Unlike the real clock it can be reset, so a test
// can replay the same elapsed-time sequence.
type SteppingClock struct {
	mu    sync.Mutex
	start time.Time
	now   time.Time
	step  time.Duration
}

// NewSteppingClock creates a clock whose first read returns start.
func NewSteppingClock(start time.Time, step time.Duration) *SteppingClock {
	return &SteppingClock{start: start, now: start, step: step}
}

// Now returns the current instant and advances the clock by one step.
func (c *SteppingClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.now
	c.now = c.now.Add(c.step)
	return t
}

// Current returns the instant the next Now call will report.
func (c *SteppingClock) Current() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Reset rewinds the clock to its start instant.
func (c *SteppingClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.start
}
