package engine

import "math"

// Clock tracks simulated time for one event.
//
// Time is derived, never accumulated: the current time is always
// start + tick*dt computed from an integer tick counter, so a million
// steps drift no further than one multiplication's rounding. All window
// boundaries the driver and scheduler use come from here.
//
// The zero interval disables output scheduling; OutputDue then never fires.
type Clock struct {
	start    float64
	dt       float64
	interval float64
	tick     int
}

// NewClock creates a clock at the given start time with a fixed step dt
// and an output interval for OutputDue.
func NewClock(start, dt, interval float64) *Clock {
	return &Clock{start: start, dt: dt, interval: interval}
}

// Now returns the current simulated time, start + tick*dt.
func (c *Clock) Now() float64 {
	return c.start + float64(c.tick)*c.dt
}

// Next returns the time the pending tick ends at, start + (tick+1)*dt.
func (c *Clock) Next() float64 {
	return c.start + float64(c.tick+1)*c.dt
}

// Dt returns the fixed step width.
func (c *Clock) Dt() float64 {
	return c.dt
}

// Start returns the event's start time.
func (c *Clock) Start() float64 {
	return c.start
}

// Tick returns the number of completed steps.
func (c *Clock) Tick() int {
	return c.tick
}

// Advance completes the pending tick.
func (c *Clock) Advance() {
	c.tick++
}

// OutputDue reports whether a multiple of the output interval, counted from
// the start time, lies inside the pending tick window (Now, Next].
func (c *Clock) OutputDue() bool {
	if c.interval <= 0 {
		return false
	}
	before := math.Floor((c.Now() - c.start) / c.interval)
	after := math.Floor((c.Next() - c.start) / c.interval)
	return after > before
}
