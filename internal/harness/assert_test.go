package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cascade/internal/phys"
	"github.com/roach88/cascade/internal/trace"
)

func intp(n int) *int { return &n }

// balancedResult builds a result whose single event swaps momentum
// between two pions without losing any.
func balancedResult() *Result {
	in := []trace.ParticleState{
		{PDG: 211, Momentum: phys.FourVector{1.0, 0.2, 0, 0}},
		{PDG: -211, Momentum: phys.FourVector{1.0, -0.2, 0, 0}},
	}
	out := []trace.ParticleState{
		{PDG: 211, Momentum: phys.FourVector{1.0, -0.2, 0, 0}},
		{PDG: -211, Momentum: phys.FourVector{1.0, 0.2, 0, 0}},
	}
	res := NewResult("balanced", 1)
	res.Events = []trace.EventRecord{{Event: 0, StartCount: 2, EndCount: 2, Interactions: 1}}
	res.Interactions = []trace.InteractionRecord{
		{Event: 0, Seq: 0, Time: 1.5, Process: "elastic", In: in, Out: out},
	}
	return res
}

func TestBoundsContain(t *testing.T) {
	tests := []struct {
		name string
		a    Assertion
		n    int
		want bool
	}{
		{"exact match", Assertion{Count: intp(3)}, 3, true},
		{"exact mismatch", Assertion{Count: intp(3)}, 4, false},
		{"min met", Assertion{Min: intp(2)}, 2, true},
		{"min unmet", Assertion{Min: intp(2)}, 1, false},
		{"max met", Assertion{Max: intp(5)}, 5, true},
		{"max exceeded", Assertion{Max: intp(5)}, 6, false},
		{"range inside", Assertion{Min: intp(3), Max: intp(6)}, 4, true},
		{"range below", Assertion{Min: intp(3), Max: intp(6)}, 2, false},
		{"range above", Assertion{Min: intp(3), Max: intp(6)}, 7, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, boundsContain(tt.a, tt.n))
		})
	}
}

func TestAssertFinalCount_ChecksEveryEvent(t *testing.T) {
	res := NewResult("r", 1)
	res.Events = []trace.EventRecord{
		{Event: 0, EndCount: 2},
		{Event: 1, EndCount: 3},
	}

	err := assertFinalCount(res, Assertion{Count: intp(2)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "3 in event 1")

	assert.NoError(t, assertFinalCount(res, Assertion{Min: intp(2), Max: intp(3)}))
}

func TestAssertFinalCount_NoEvents(t *testing.T) {
	res := NewResult("r", 1)
	err := assertFinalCount(res, Assertion{Count: intp(1)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no completed events")
}

func TestAssertInteractions_TotalAcrossRun(t *testing.T) {
	res := NewResult("r", 1)
	res.Interactions = []trace.InteractionRecord{
		{Event: 0, Seq: 0}, {Event: 0, Seq: 1}, {Event: 1, Seq: 0},
	}

	assert.NoError(t, assertInteractions(res, Assertion{Count: intp(3)}))

	err := assertInteractions(res, Assertion{Max: intp(2)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at most 2 interactions")
}

func TestAssertProcessCount_FiltersProcess(t *testing.T) {
	res := NewResult("r", 1)
	res.Interactions = []trace.InteractionRecord{
		{Process: "elastic"}, {Process: "decay"}, {Process: "elastic"},
	}

	assert.NoError(t, assertProcessCount(res, Assertion{Process: "elastic", Count: intp(2)}))
	assert.NoError(t, assertProcessCount(res, Assertion{Process: "2to1", Count: intp(0)}))

	err := assertProcessCount(res, Assertion{Process: "decay", Count: intp(0)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exactly 0 decay interactions")
}

func TestAssertConserved_BalancedTrace(t *testing.T) {
	res := balancedResult()
	assert.NoError(t, assertConserved(res, Assertion{}, phys.ReallySmall))
}

func TestAssertConserved_DetectsImbalance(t *testing.T) {
	res := balancedResult()
	res.Interactions[0].Out[0].Momentum[0] += 1e-3

	err := assertConserved(res, Assertion{}, phys.ReallySmall)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dE")
}

func TestAssertConserved_ToleranceOverride(t *testing.T) {
	res := balancedResult()
	res.Interactions[0].Out[0].Momentum[0] += 1e-3

	assert.NoError(t, assertConserved(res, Assertion{Tolerance: 0.01}, phys.ReallySmall))
}

func TestEvaluateAssertions_CollectsAllFailures(t *testing.T) {
	res := NewResult("r", 1)
	res.Events = []trace.EventRecord{{Event: 0, EndCount: 1}}
	sc := &Scenario{
		Expect: []Assertion{
			{Type: AssertFinalCount, Count: intp(1)},
			{Type: AssertFinalCount, Count: intp(5)},
			{Type: AssertInteractions, Min: intp(2)},
		},
	}

	errs := evaluateAssertions(res, sc)
	require.Len(t, errs, 2)
	assert.Contains(t, errs[0], "expect[1]")
	assert.Contains(t, errs[1], "expect[2]")
}

func TestAssertionError_Message(t *testing.T) {
	err := &AssertionError{Type: AssertFinalCount, Expected: "exactly 2 particles", Actual: "3 in event 0"}
	assert.Equal(t, "final_count: expected exactly 2 particles, got 3 in event 0", err.Error())
}
