// Package action defines the candidate state changes the scheduler orders
// and commits: the Action record itself, the process taxonomy, and the
// Generator and Resolver interfaces the dynamics plug into.
package action

import (
	"fmt"
	"math/rand/v2"

	"github.com/roach88/cascade/internal/ensemble"
	"github.com/roach88/cascade/internal/phys"
)

// Kind distinguishes the two candidate families the core schedules.
type Kind string

const (
	KindDecay   Kind = "decay"
	KindScatter Kind = "scatter"
)

// Process tags the physical process a resolver chose for a committed
// action. Resolvers must set one of the known tags; anything else aborts
// the run.
type Process string

const (
	ProcessNone     Process = "none"
	ProcessElastic  Process = "elastic"
	ProcessTwoToOne Process = "2to1"
	ProcessTwoToTwo Process = "2to2"
	ProcessDecay    Process = "decay"
)

// Known reports whether p is a tag the scheduler accepts on a resolved
// action. ProcessNone is the unset value and not accepted.
func (p Process) Known() bool {
	switch p {
	case ProcessElastic, ProcessTwoToOne, ProcessTwoToTwo, ProcessDecay:
		return true
	}
	return false
}

// Action is one candidate state change, scheduled for a point inside the
// current tick window. Incoming holds weak references used for validity
// checking at commit time; In holds snapshot copies taken at discovery,
// which is what resolvers compute from. Process and Outgoing are empty
// until a resolver fills them.
type Action struct {
	Kind     Kind
	Time     float64
	Incoming []ensemble.Handle
	In       []phys.Particle
	Process  Process
	Outgoing []phys.Particle
	Resolver Resolver
}

// NewDecay returns a one-body candidate for the given record.
func NewDecay(t float64, h ensemble.Handle, snap phys.Particle, r Resolver) *Action {
	return &Action{
		Kind:     KindDecay,
		Time:     t,
		Incoming: []ensemble.Handle{h},
		In:       []phys.Particle{snap},
		Resolver: r,
	}
}

// NewScatter returns a two-body candidate for the given pair.
func NewScatter(t float64, ha, hb ensemble.Handle, a, b phys.Particle, r Resolver) *Action {
	return &Action{
		Kind:     KindScatter,
		Time:     t,
		Incoming: []ensemble.Handle{ha, hb},
		In:       []phys.Particle{a, b},
		Resolver: r,
	}
}

// TotalMomentum returns the summed four-momentum of the incoming snapshots.
func (a *Action) TotalMomentum() phys.FourVector {
	var sum phys.FourVector
	for _, p := range a.In {
		sum = sum.Add(p.Momentum)
	}
	return sum
}

// SqrtS returns the invariant mass of the incoming system.
func (a *Action) SqrtS() float64 {
	return a.TotalMomentum().Abs()
}

func (a *Action) String() string {
	return fmt.Sprintf("%s t=%.4f in=%d", a.Kind, a.Time, len(a.In))
}

// Generator discovers candidate actions for the window [now, now+dt). It
// reads the store but never mutates it; candidates it returns are ordered
// by its own deterministic discovery order.
type Generator interface {
	FindActions(st *ensemble.Store, now, dt float64, rng *rand.Rand) []*Action
}

// Resolver turns a validated candidate into concrete outgoing particles,
// setting act.Process and act.Outgoing. Resolvers with internal sampling
// must bound their attempts and fall back deterministically, never spin.
type Resolver interface {
	Resolve(act *Action, rng *rand.Rand) error
}

// GeneratorFunc adapts a function to the Generator interface.
type GeneratorFunc func(st *ensemble.Store, now, dt float64, rng *rand.Rand) []*Action

func (f GeneratorFunc) FindActions(st *ensemble.Store, now, dt float64, rng *rand.Rand) []*Action {
	return f(st, now, dt, rng)
}

// ResolverFunc adapts a function to the Resolver interface.
type ResolverFunc func(act *Action, rng *rand.Rand) error

func (f ResolverFunc) Resolve(act *Action, rng *rand.Rand) error {
	return f(act, rng)
}
