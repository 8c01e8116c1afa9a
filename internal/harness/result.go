package harness

import (
	"github.com/roach88/cascade/internal/engine"
	"github.com/roach88/cascade/internal/trace"
)

// Result captures one scenario execution: the engine's accounting, the
// collected trace, and every failure the run or the expectations hit.
type Result struct {
	// Scenario is the name of the executed scenario.
	Scenario string

	// Seed is the pinned seed the run used.
	Seed int64

	// Pass is true until an error is recorded.
	Pass bool

	// Errors lists engine failures and failed expectations in the
	// order they were found.
	Errors []string

	// Summary is the engine's per-event accounting. On a failed run it
	// covers the events that ran, including a partial one.
	Summary *engine.Summary

	// Events and Interactions are the collected trace records.
	Events       []trace.EventRecord
	Interactions []trace.InteractionRecord

	// RunDigest identifies the full trace; empty when the run failed
	// before completing.
	RunDigest string
}

// NewResult returns a passing result for the named scenario.
func NewResult(scenario string, seed int64) *Result {
	return &Result{Scenario: scenario, Seed: seed, Pass: true}
}

// AddError records a failure and marks the result failed.
func (r *Result) AddError(msg string) {
	r.Pass = false
	r.Errors = append(r.Errors, msg)
}
