package harness

import (
	"fmt"

	"github.com/roach88/cascade/internal/phys"
)

// AssertionError reports one failed expectation with what the run
// actually produced.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
}

func (e *AssertionError) Error() string {
	return fmt.Sprintf("%s: expected %s, got %s", e.Type, e.Expected, e.Actual)
}

// evaluateAssertions checks every expectation against the result and
// returns the failure messages in assertion order.
func evaluateAssertions(res *Result, sc *Scenario) []string {
	var errs []string
	for i, a := range sc.Expect {
		var err error
		switch a.Type {
		case AssertFinalCount:
			err = assertFinalCount(res, a)
		case AssertInteractions:
			err = assertInteractions(res, a)
		case AssertProcessCount:
			err = assertProcessCount(res, a)
		case AssertConserved:
			err = assertConserved(res, a, sc.Config.Tolerance)
		default:
			err = fmt.Errorf("unknown assertion type %q", a.Type)
		}
		if err != nil {
			errs = append(errs, fmt.Sprintf("expect[%d]: %v", i, err))
		}
	}
	return errs
}

// assertFinalCount checks the end-of-event particle count of every
// completed event.
func assertFinalCount(res *Result, a Assertion) error {
	if len(res.Events) == 0 {
		return &AssertionError{
			Type:     AssertFinalCount,
			Expected: describeBounds(a) + " particles",
			Actual:   "no completed events",
		}
	}
	for _, ev := range res.Events {
		if !boundsContain(a, ev.EndCount) {
			return &AssertionError{
				Type:     AssertFinalCount,
				Expected: describeBounds(a) + " particles at the end of every event",
				Actual:   fmt.Sprintf("%d in event %d", ev.EndCount, ev.Event),
			}
		}
	}
	return nil
}

// assertInteractions checks the total committed interaction count.
func assertInteractions(res *Result, a Assertion) error {
	n := len(res.Interactions)
	if !boundsContain(a, n) {
		return &AssertionError{
			Type:     AssertInteractions,
			Expected: describeBounds(a) + " interactions",
			Actual:   fmt.Sprintf("%d", n),
		}
	}
	return nil
}

// assertProcessCount checks how many committed interactions carry the
// named process.
func assertProcessCount(res *Result, a Assertion) error {
	n := 0
	for _, rec := range res.Interactions {
		if rec.Process == a.Process {
			n++
		}
	}
	if !boundsContain(a, n) {
		return &AssertionError{
			Type:     AssertProcessCount,
			Expected: fmt.Sprintf("%s %s interactions", describeBounds(a), a.Process),
			Actual:   fmt.Sprintf("%d", n),
		}
	}
	return nil
}

// assertConserved audits the trace itself: summed over an event's
// interactions, outgoing four-momentum must balance incoming within
// tolerance. This re-checks the recorded kinematics independently of
// the engine's own conservation monitor.
func assertConserved(res *Result, a Assertion, tol float64) error {
	if a.Tolerance > 0 {
		tol = a.Tolerance
	}

	drift := make(map[int]phys.FourVector)
	for _, rec := range res.Interactions {
		d := drift[rec.Event]
		for _, st := range rec.Out {
			d = d.Add(st.Momentum)
		}
		for _, st := range rec.In {
			d = d.Sub(st.Momentum)
		}
		drift[rec.Event] = d
	}

	for _, ev := range res.Events {
		d := drift[ev.Event]
		for i, label := range [4]string{"E", "px", "py", "pz"} {
			if d[i] > tol || d[i] < -tol {
				return &AssertionError{
					Type:     AssertConserved,
					Expected: fmt.Sprintf("|d%s| <= %g over event %d", label, tol, ev.Event),
					Actual:   fmt.Sprintf("d%s = %g", label, d[i]),
				}
			}
		}
	}
	return nil
}

// boundsContain reports whether n satisfies the assertion's count or
// min/max constraints.
func boundsContain(a Assertion, n int) bool {
	if a.Count != nil {
		return n == *a.Count
	}
	if a.Min != nil && n < *a.Min {
		return false
	}
	if a.Max != nil && n > *a.Max {
		return false
	}
	return true
}

// describeBounds renders the constraint for error messages.
func describeBounds(a Assertion) string {
	switch {
	case a.Count != nil:
		return fmt.Sprintf("exactly %d", *a.Count)
	case a.Min != nil && a.Max != nil:
		return fmt.Sprintf("between %d and %d", *a.Min, *a.Max)
	case a.Min != nil:
		return fmt.Sprintf("at least %d", *a.Min)
	case a.Max != nil:
		return fmt.Sprintf("at most %d", *a.Max)
	default:
		return "any number of"
	}
}
