package engine

import (
	"math/rand/v2"

	"github.com/roach88/cascade/internal/action"
	"github.com/roach88/cascade/internal/ensemble"
)

// Modus supplies the run geometry: how an event's initial ensemble is
// populated and how surviving particles move between ticks.
type Modus interface {
	// String names the modus for logs and reports.
	String() string

	// InitialConditions fills the freshly reset store with the event's
	// starting particles and returns the event's start time.
	InitialConditions(st *ensemble.Store, rng *rand.Rand) (float64, error)

	// Propagate advances every live record to time to, each from its own
	// current time, and applies the modus's boundary conditions. It must
	// not create, remove or reorder records.
	Propagate(st *ensemble.Store, to float64)
}

// Observer receives lifecycle notifications from the evolution driver.
//
// All callbacks run synchronously on the driver goroutine. The store and
// action values passed in are live views owned by the engine: observers
// may read them during the call but must not retain or mutate them.
type Observer interface {
	// AtEventStart fires after initial conditions, before the first tick.
	AtEventStart(st *ensemble.Store, event int)

	// AtEventEnd fires after the last tick of the event.
	AtEventEnd(st *ensemble.Store, event int)

	// AtInteraction fires after each committed action, in commit order.
	AtInteraction(act *action.Action)

	// AtIntermediate fires whenever the clock crosses an output boundary.
	AtIntermediate(st *ensemble.Store, event int, clk *Clock)
}
