// Package conserve tracks the quantities the transport core must keep
// constant across an event: total four-momentum, electric charge, baryon
// number and strangeness. A snapshot is captured once after initial
// conditions; every check re-reduces the live ensemble and compares.
package conserve

import (
	"fmt"
	"math"

	"github.com/roach88/cascade/internal/ensemble"
	"github.com/roach88/cascade/internal/phys"
	"github.com/roach88/cascade/internal/species"
)

// Snapshot is the reduction of all live records at one point in time.
type Snapshot struct {
	Momentum    phys.FourVector
	Charge      int
	Baryon      int
	Strangeness int
}

// Capture reduces the live ensemble. Every record's species must be in the
// table; an unknown code means a collaborator fabricated a particle the run
// was not configured for.
func Capture(st *ensemble.Store, tab *species.Table) (Snapshot, error) {
	var snap Snapshot
	var unknown error
	st.ForEach(func(_ ensemble.Handle, p phys.Particle) bool {
		ty, ok := tab.Lookup(p.PDG)
		if !ok {
			unknown = fmt.Errorf("conserved capture: unknown species pdg %d (record %d)", p.PDG, p.ID)
			return false
		}
		snap.Momentum = snap.Momentum.Add(p.Momentum)
		snap.Charge += ty.Charge
		snap.Baryon += ty.Baryon
		snap.Strangeness += ty.Strangeness
		return true
	})
	if unknown != nil {
		return Snapshot{}, unknown
	}
	return snap, nil
}

// Deviation re-captures the ensemble and returns current minus initial.
func (s Snapshot) Deviation(st *ensemble.Store, tab *species.Table) (Report, error) {
	current, err := Capture(st, tab)
	if err != nil {
		return Report{}, err
	}
	return Report{
		Momentum:    current.Momentum.Sub(s.Momentum),
		Charge:      current.Charge - s.Charge,
		Baryon:      current.Baryon - s.Baryon,
		Strangeness: current.Strangeness - s.Strangeness,
	}, nil
}

// Report is the signed difference between two snapshots.
type Report struct {
	Momentum    phys.FourVector
	Charge      int
	Baryon      int
	Strangeness int
}

// EnergyDiff returns the signed energy deviation.
func (r Report) EnergyDiff() float64 {
	return r.Momentum[0]
}

// MomentumDiff returns the magnitude of the three-momentum deviation.
func (r Report) MomentumDiff() float64 {
	return r.Momentum.Spatial().Abs()
}

// Conserved reports whether every four-momentum component is within tol and
// every discrete quantity is exactly unchanged.
func (r Report) Conserved(tol float64) bool {
	for _, d := range r.Momentum {
		if math.Abs(d) > tol {
			return false
		}
	}
	return r.Charge == 0 && r.Baryon == 0 && r.Strangeness == 0
}
