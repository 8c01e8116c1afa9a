package engine

import (
	"errors"
	"fmt"

	"github.com/roach88/cascade/internal/action"
	"github.com/roach88/cascade/internal/conserve"
)

// RunError represents a fatal condition detected while driving a run.
//
// Fatal here means the whole run stops, not just the current event:
//   - Conservation violation: the ensemble's conserved totals drifted
//     beyond tolerance, so every later state would be untrustworthy.
//   - Unknown process: a resolver produced a process tag outside the
//     supported taxonomy, so the commit cannot be recorded faithfully.
//   - Empty resolution: a resolver returned no outgoing particles.
//
// RunError carries structured fields for diagnostics; the underlying
// cause, when there is one, is available through Unwrap.
type RunError struct {
	// Code identifies the error category.
	Code RunErrorCode

	// Message is a human-readable description.
	Message string

	// Event is the zero-based event being evolved.
	Event int

	// Tick is the step counter at the time of failure.
	Tick int

	// Err is the wrapped cause, if any.
	Err error
}

// RunErrorCode categorizes fatal run errors.
type RunErrorCode string

const (
	// ErrCodeConservation indicates a conserved quantity drifted beyond
	// tolerance.
	ErrCodeConservation RunErrorCode = "CONSERVATION_VIOLATION"

	// ErrCodeUnknownProcess indicates a resolver tagged an action with a
	// process outside the supported taxonomy.
	ErrCodeUnknownProcess RunErrorCode = "UNKNOWN_PROCESS"

	// ErrCodeResolution indicates a resolver failed or produced an empty
	// final state.
	ErrCodeResolution RunErrorCode = "RESOLUTION_FAILED"
)

// Error implements the error interface.
func (e *RunError) Error() string {
	return fmt.Sprintf("%s: %s (event=%d, tick=%d)", e.Code, e.Message, e.Event, e.Tick)
}

// Unwrap returns the wrapped cause.
func (e *RunError) Unwrap() error {
	return e.Err
}

// IsConservationError reports whether err is a conservation violation.
// Uses errors.As to handle wrapped errors.
func IsConservationError(err error) bool {
	var re *RunError
	if errors.As(err, &re) && re.Code == ErrCodeConservation {
		return true
	}
	return conserve.IsViolation(err)
}

// IsUnknownProcessError reports whether err is an unknown-process failure.
// Uses errors.As to handle wrapped errors.
func IsUnknownProcessError(err error) bool {
	var re *RunError
	return errors.As(err, &re) && re.Code == ErrCodeUnknownProcess
}

// newConservationError wraps a violation from the per-tick check.
func newConservationError(event int, v *conserve.ViolationError) *RunError {
	return &RunError{
		Code:    ErrCodeConservation,
		Message: v.Error(),
		Event:   event,
		Tick:    v.Tick,
		Err:     v,
	}
}

// newUnknownProcessError reports an unsupported process tag on a resolved
// action.
func newUnknownProcessError(event, tick int, act *action.Action) *RunError {
	return &RunError{
		Code:    ErrCodeUnknownProcess,
		Message: fmt.Sprintf("resolver tagged %v with unsupported process %q", act, act.Process),
		Event:   event,
		Tick:    tick,
	}
}

// newResolutionError reports a resolver failure on a validated candidate.
func newResolutionError(event, tick int, act *action.Action, cause error) *RunError {
	return &RunError{
		Code:    ErrCodeResolution,
		Message: fmt.Sprintf("resolving %v failed", act),
		Event:   event,
		Tick:    tick,
		Err:     cause,
	}
}
