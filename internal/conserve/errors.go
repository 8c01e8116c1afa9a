package conserve

import (
	"errors"
	"fmt"
	"strings"
)

// ViolationError reports a broken conservation law. It is fatal: the run
// that produced it terminates, not just the current event, because a
// violated invariant means every later state is untrustworthy.
type ViolationError struct {
	Report    Report
	Tolerance float64
	Time      float64 // simulated time of the failed check
	Tick      int
}

func (e *ViolationError) Error() string {
	var parts []string
	for i, label := range [4]string{"E", "px", "py", "pz"} {
		if d := e.Report.Momentum[i]; d > e.Tolerance || d < -e.Tolerance {
			parts = append(parts, fmt.Sprintf("d%s=%g", label, d))
		}
	}
	if e.Report.Charge != 0 {
		parts = append(parts, fmt.Sprintf("dQ=%d", e.Report.Charge))
	}
	if e.Report.Baryon != 0 {
		parts = append(parts, fmt.Sprintf("dB=%d", e.Report.Baryon))
	}
	if e.Report.Strangeness != 0 {
		parts = append(parts, fmt.Sprintf("dS=%d", e.Report.Strangeness))
	}
	return fmt.Sprintf("conservation violated at t=%.4f (tick %d): %s",
		e.Time, e.Tick, strings.Join(parts, ", "))
}

// IsViolation reports whether err is, or wraps, a conservation violation.
func IsViolation(err error) bool {
	var v *ViolationError
	return errors.As(err, &v)
}
