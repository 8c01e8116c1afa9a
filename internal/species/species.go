// Package species holds the immutable particle-type table a run is built
// against: static species properties (mass, width, quantum numbers) and
// their decay channels, resolved by PDG code.
package species

import (
	"github.com/roach88/cascade/internal/phys"
)

// StableWidthCutoff is the width in GeV below which a species is treated
// as stable and never scheduled for decay.
const StableWidthCutoff = 1e-5

// DecayChannel is one decay mode of a species: a branching ratio and the
// two daughter species the parent decays into.
type DecayChannel struct {
	Ratio     float64
	Daughters [2]phys.PDG
}

// Type is the static description of one species. Values are immutable once
// the table is built; records reference them by PDG code only.
type Type struct {
	Name        string
	PDG         phys.PDG
	Mass        float64 // pole mass in GeV
	Width       float64 // total width in GeV
	Charge      int     // electric charge in units of e
	Baryon      int     // baryon number
	Strangeness int
	Decays      []DecayChannel
}

// Stable reports whether the species is below the decay width cutoff.
func (t Type) Stable() bool {
	return t.Width < StableWidthCutoff
}

func (t Type) String() string {
	return t.Name
}
