package species

import (
	"fmt"
	"math"
	"sort"

	"github.com/roach88/cascade/internal/phys"
)

// Table is the validated, immutable set of species for a run. Lookup is by
// PDG code; All returns a deterministic listing ordered by code.
type Table struct {
	byCode  map[phys.PDG]Type
	ordered []Type
}

// NewTable validates the given species and builds the lookup table.
// Every decay daughter must itself be a species in the table, branching
// ratios of each species must sum to one, and PDG codes must be unique.
func NewTable(types []Type) (*Table, error) {
	byCode := make(map[phys.PDG]Type, len(types))
	for _, t := range types {
		if t.Name == "" {
			return nil, fmt.Errorf("species %d: empty name", t.PDG)
		}
		if t.Mass <= 0 {
			return nil, fmt.Errorf("species %q: mass %g must be positive", t.Name, t.Mass)
		}
		if t.Width < 0 {
			return nil, fmt.Errorf("species %q: negative width %g", t.Name, t.Width)
		}
		if _, dup := byCode[t.PDG]; dup {
			return nil, fmt.Errorf("species %q: duplicate pdg code %d", t.Name, t.PDG)
		}
		byCode[t.PDG] = t
	}

	for _, t := range types {
		if err := checkDecays(t, byCode); err != nil {
			return nil, err
		}
	}

	ordered := make([]Type, len(types))
	copy(ordered, types)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].PDG < ordered[j].PDG })

	return &Table{byCode: byCode, ordered: ordered}, nil
}

func checkDecays(t Type, byCode map[phys.PDG]Type) error {
	if len(t.Decays) == 0 {
		return nil
	}
	if t.Stable() {
		return fmt.Errorf("species %q: stable species must not declare decays", t.Name)
	}
	sum := 0.0
	for i, d := range t.Decays {
		if d.Ratio < 0 || d.Ratio > 1 {
			return fmt.Errorf("species %q decay %d: ratio %g outside [0,1]", t.Name, i, d.Ratio)
		}
		sum += d.Ratio
		for _, code := range d.Daughters {
			if _, ok := byCode[code]; !ok {
				return fmt.Errorf("species %q decay %d: unknown daughter pdg %d", t.Name, i, code)
			}
		}
	}
	if math.Abs(sum-1) > phys.ReallySmall {
		return fmt.Errorf("species %q: branching ratios sum to %g, want 1", t.Name, sum)
	}
	return nil
}

// Lookup returns the species with the given PDG code.
func (tab *Table) Lookup(code phys.PDG) (Type, bool) {
	t, ok := tab.byCode[code]
	return t, ok
}

// All returns the species ordered by PDG code. The slice is shared; callers
// must not modify it.
func (tab *Table) All() []Type {
	return tab.ordered
}

// Len returns the number of species in the table.
func (tab *Table) Len() int {
	return len(tab.ordered)
}
