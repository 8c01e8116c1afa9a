package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClock_Now_CounterArithmetic(t *testing.T) {
	c := NewClock(0, 0.1, 0)

	assert.Equal(t, 0.0, c.Now())
	assert.Equal(t, 0.1, c.Next())

	for i := 0; i < 10; i++ {
		c.Advance()
	}
	assert.Equal(t, 10, c.Tick())
	// Ten steps of 0.1 land exactly on 1.0; no accumulation drift.
	assert.Equal(t, 1.0, c.Now())
}

func TestClock_NonZeroStart(t *testing.T) {
	c := NewClock(2.5, 0.5, 0)
	c.Advance()
	c.Advance()

	assert.Equal(t, 3.5, c.Now())
	assert.Equal(t, 4.0, c.Next())
	assert.Equal(t, 2.5, c.Start())
	assert.Equal(t, 0.5, c.Dt())
}

func TestClock_OutputDue_IntervalMultipleOfStep(t *testing.T) {
	c := NewClock(0, 0.1, 0.5)

	var due []int
	for i := 0; i < 10; i++ {
		if c.OutputDue() {
			due = append(due, c.Tick())
		}
		c.Advance()
	}
	// Boundaries 0.5 and 1.0 fall at the end of ticks 4 and 9.
	assert.Equal(t, []int{4, 9}, due)
}

func TestClock_OutputDue_IntervalBetweenSteps(t *testing.T) {
	c := NewClock(0, 0.4, 1.0)

	var due []int
	for i := 0; i < 6; i++ {
		if c.OutputDue() {
			due = append(due, c.Tick())
		}
		c.Advance()
	}
	// 1.0 lies in (0.8, 1.2], 2.0 in (1.6, 2.0].
	assert.Equal(t, []int{2, 4}, due)
}

func TestClock_OutputDue_DisabledInterval(t *testing.T) {
	c := NewClock(0, 0.1, 0)
	for i := 0; i < 20; i++ {
		assert.False(t, c.OutputDue())
		c.Advance()
	}
}
