package engine

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cascade/internal/action"
	"github.com/roach88/cascade/internal/ensemble"
	"github.com/roach88/cascade/internal/phys"
)

// elasticStub returns the incoming snapshots unchanged as the final state.
var elasticStub = action.ResolverFunc(func(act *action.Action, _ *rand.Rand) error {
	act.Outgoing = append([]phys.Particle(nil), act.In...)
	act.Process = action.ProcessElastic
	return nil
})

func pion(e, px float64) phys.Particle {
	return phys.Particle{PDG: 211, Momentum: phys.FourVector{e, px, 0, 0}, XSecScale: 1}
}

func testRNG() *rand.Rand {
	return rand.New(rand.NewPCG(7, 11))
}

func tickClock() *Clock {
	return NewClock(0, 1.0, 0)
}

func TestScheduler_RunTick_CommitsInTimeOrder(t *testing.T) {
	st := ensemble.New()
	h := []ensemble.Handle{
		st.Insert(pion(1, 0)),
		st.Insert(pion(1, 0)),
		st.Insert(pion(1, 0)),
	}

	var order []float64
	recorder := action.ResolverFunc(func(act *action.Action, _ *rand.Rand) error {
		order = append(order, act.Time)
		act.Outgoing = append([]phys.Particle(nil), act.In...)
		act.Process = action.ProcessElastic
		return nil
	})

	gen := action.GeneratorFunc(func(st *ensemble.Store, now, dt float64, _ *rand.Rand) []*action.Action {
		snaps := st.Snapshot()
		return []*action.Action{
			action.NewDecay(0.9, h[0], snaps[0], recorder),
			action.NewDecay(0.1, h[1], snaps[1], recorder),
			action.NewDecay(0.5, h[2], snaps[2], recorder),
		}
	})

	sched := NewScheduler(gen)
	stats, err := sched.RunTick(st, tickClock(), 0, testRNG(), nil)
	require.NoError(t, err)

	assert.Equal(t, 3, stats.Candidates)
	assert.Equal(t, 3, stats.Committed)
	assert.Equal(t, 0, stats.Stale)
	assert.Equal(t, []float64{0.1, 0.5, 0.9}, order)
}

func TestScheduler_RunTick_EqualTimeTieGoesToFirstGenerator(t *testing.T) {
	st := ensemble.New()
	y := st.Insert(pion(1, 0))
	x1 := st.Insert(pion(1, 0.1))
	x2 := st.Insert(pion(1, -0.1))

	var winner string
	tagged := func(name string) action.Resolver {
		return action.ResolverFunc(func(act *action.Action, _ *rand.Rand) error {
			winner = name
			act.Outgoing = append([]phys.Particle(nil), act.In...)
			act.Process = action.ProcessElastic
			return nil
		})
	}

	ySnap, _ := st.Get(y)
	x1Snap, _ := st.Get(x1)
	x2Snap, _ := st.Get(x2)

	g1 := action.GeneratorFunc(func(*ensemble.Store, float64, float64, *rand.Rand) []*action.Action {
		return []*action.Action{action.NewScatter(0.5, y, x1, ySnap, x1Snap, tagged("g1"))}
	})
	g2 := action.GeneratorFunc(func(*ensemble.Store, float64, float64, *rand.Rand) []*action.Action {
		return []*action.Action{action.NewScatter(0.5, y, x2, ySnap, x2Snap, tagged("g2"))}
	})

	sched := NewScheduler(g1, g2)
	stats, err := sched.RunTick(st, tickClock(), 0, testRNG(), nil)
	require.NoError(t, err)

	// Both candidates reference Y at the identical time; the first
	// generator's commit restamps Y, so the second is discarded stale.
	assert.Equal(t, "g1", winner)
	assert.Equal(t, 1, stats.Committed)
	assert.Equal(t, 1, stats.Stale)
	assert.False(t, st.IsValid(y))
	assert.False(t, st.IsValid(x1))
	assert.True(t, st.IsValid(x2))
}

func TestScheduler_RunTick_EarlierTimeWinsSharedParticle(t *testing.T) {
	st := ensemble.New()
	y := st.Insert(pion(1, 0))
	other := st.Insert(pion(1, 0.2))
	ySnap, _ := st.Get(y)
	otherSnap, _ := st.Get(other)

	var committed []float64
	rec := action.ResolverFunc(func(act *action.Action, _ *rand.Rand) error {
		committed = append(committed, act.Time)
		act.Outgoing = append([]phys.Particle(nil), act.In...)
		act.Process = action.ProcessElastic
		return nil
	})

	gen := action.GeneratorFunc(func(*ensemble.Store, float64, float64, *rand.Rand) []*action.Action {
		return []*action.Action{
			action.NewScatter(0.7, y, other, ySnap, otherSnap, rec),
			action.NewDecay(0.2, y, ySnap, rec),
		}
	})

	stats, err := NewScheduler(gen).RunTick(st, tickClock(), 0, testRNG(), nil)
	require.NoError(t, err)

	assert.Equal(t, []float64{0.2}, committed)
	assert.Equal(t, 1, stats.Committed)
	assert.Equal(t, 1, stats.Stale)
}

func TestScheduler_RunTick_ElasticFallbackAfterBoundedRetries(t *testing.T) {
	st := ensemble.New()
	a := st.Insert(pion(1, 0.3))
	b := st.Insert(pion(1, -0.3))
	aSnap, _ := st.Get(a)
	bSnap, _ := st.Get(b)

	// A resolver whose sampling never succeeds: after its attempt budget
	// it must fall back to the elastic no-change outcome instead of
	// failing the tick.
	attempts := 0
	exhausting := action.ResolverFunc(func(act *action.Action, rng *rand.Rand) error {
		const maxAttempts = 10
		for i := 0; i < maxAttempts; i++ {
			attempts++
			if rng.Float64() > 1.1 { // unsatisfiable acceptance
				act.Process = action.ProcessTwoToOne
				return nil
			}
		}
		act.Outgoing = append([]phys.Particle(nil), act.In...)
		act.Process = action.ProcessElastic
		return nil
	})

	gen := action.GeneratorFunc(func(*ensemble.Store, float64, float64, *rand.Rand) []*action.Action {
		return []*action.Action{action.NewScatter(0.5, a, b, aSnap, bSnap, exhausting)}
	})

	stats, err := NewScheduler(gen).RunTick(st, tickClock(), 0, testRNG(), nil)
	require.NoError(t, err)

	assert.Equal(t, 10, attempts)
	assert.Equal(t, 1, stats.Committed)
	assert.Equal(t, 2, st.Len())

	// The pair was consumed and re-emitted unchanged under a new process.
	assert.False(t, st.IsValid(a))
	snaps := st.Snapshot()
	assert.Equal(t, aSnap.Momentum, snaps[1].Momentum)
	assert.Equal(t, bSnap.Momentum, snaps[0].Momentum)
}

func TestScheduler_RunTick_UnknownProcessIsFatal(t *testing.T) {
	st := ensemble.New()
	h := st.Insert(pion(1, 0))
	snap, _ := st.Get(h)

	bad := action.ResolverFunc(func(act *action.Action, _ *rand.Rand) error {
		act.Outgoing = append([]phys.Particle(nil), act.In...)
		act.Process = action.Process("annihilate")
		return nil
	})
	gen := action.GeneratorFunc(func(*ensemble.Store, float64, float64, *rand.Rand) []*action.Action {
		return []*action.Action{action.NewDecay(0.5, h, snap, bad)}
	})

	stats, err := NewScheduler(gen).RunTick(st, tickClock(), 3, testRNG(), nil)
	require.Error(t, err)

	assert.True(t, IsUnknownProcessError(err))
	assert.Contains(t, err.Error(), "annihilate")
	assert.Contains(t, err.Error(), "event=3")
	assert.Equal(t, 0, stats.Committed)
	// Nothing was committed: the record is untouched.
	assert.True(t, st.IsValid(h))
}

func TestScheduler_RunTick_ResolverErrorIsFatal(t *testing.T) {
	st := ensemble.New()
	h := st.Insert(pion(1, 0))
	snap, _ := st.Get(h)

	cause := errors.New("channel table corrupt")
	failing := action.ResolverFunc(func(*action.Action, *rand.Rand) error {
		return cause
	})
	gen := action.GeneratorFunc(func(*ensemble.Store, float64, float64, *rand.Rand) []*action.Action {
		return []*action.Action{action.NewDecay(0.5, h, snap, failing)}
	})

	_, err := NewScheduler(gen).RunTick(st, tickClock(), 0, testRNG(), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, cause)

	var re *RunError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, ErrCodeResolution, re.Code)
}

func TestScheduler_RunTick_EmptyFinalStateIsFatal(t *testing.T) {
	st := ensemble.New()
	h := st.Insert(pion(1, 0))
	snap, _ := st.Get(h)

	vanishing := action.ResolverFunc(func(act *action.Action, _ *rand.Rand) error {
		act.Process = action.ProcessDecay
		return nil
	})
	gen := action.GeneratorFunc(func(*ensemble.Store, float64, float64, *rand.Rand) []*action.Action {
		return []*action.Action{action.NewDecay(0.5, h, snap, vanishing)}
	})

	_, err := NewScheduler(gen).RunTick(st, tickClock(), 0, testRNG(), nil)
	require.Error(t, err)

	var re *RunError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, ErrCodeResolution, re.Code)
	assert.Contains(t, err.Error(), "no outgoing")
}

func TestScheduler_RunTick_ObserverSeesCommitsInOrder(t *testing.T) {
	st := ensemble.New()
	h0 := st.Insert(pion(1, 0))
	h1 := st.Insert(pion(1, 0))
	s0, _ := st.Get(h0)
	s1, _ := st.Get(h1)

	gen := action.GeneratorFunc(func(*ensemble.Store, float64, float64, *rand.Rand) []*action.Action {
		return []*action.Action{
			action.NewDecay(0.8, h0, s0, elasticStub),
			action.NewDecay(0.3, h1, s1, elasticStub),
		}
	})

	var seen []float64
	observe := func(act *action.Action) {
		require.Equal(t, action.ProcessElastic, act.Process)
		seen = append(seen, act.Time)
	}

	stats, err := NewScheduler(gen).RunTick(st, tickClock(), 0, testRNG(), observe)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Committed)
	assert.Equal(t, []float64{0.3, 0.8}, seen)
}

func TestScheduler_RunTick_NoGenerators(t *testing.T) {
	st := ensemble.New()
	st.Insert(pion(1, 0))

	stats, err := NewScheduler().RunTick(st, tickClock(), 0, testRNG(), nil)
	require.NoError(t, err)
	assert.Equal(t, TickStats{}, stats)
	assert.Equal(t, 1, st.Len())
}

func TestRunError_Formatting(t *testing.T) {
	err := &RunError{
		Code:    ErrCodeUnknownProcess,
		Message: "bad tag",
		Event:   2,
		Tick:    14,
	}
	assert.Equal(t, "UNKNOWN_PROCESS: bad tag (event=2, tick=14)", err.Error())
	assert.True(t, IsUnknownProcessError(fmt.Errorf("wrap: %w", err)))
	assert.False(t, IsConservationError(err))
}
