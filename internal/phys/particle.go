package phys

import "strconv"

// PDG identifies a particle species by its Monte Carlo numbering code.
// Species properties (mass, width, charges, decay modes) are resolved
// through the species table, never stored on the record.
type PDG int32

func (c PDG) String() string {
	return strconv.FormatInt(int64(c), 10)
}

// Particle is the mutable per-particle record held by the ensemble store.
// Identity lives in ID and ProcessID: ID is unique over the lifetime of an
// event, and ProcessID is restamped whenever the record is regenerated by a
// committed process, even when the species is unchanged.
type Particle struct {
	ID        int64
	ProcessID int64
	PDG       PDG

	// Momentum is (E, px, py, pz) in GeV, Position is (t, x, y, z) in fm.
	// Position[0] tracks the computational-frame time of the record.
	Momentum FourVector
	Position FourVector

	// Products of inelastic processes form over a window: between
	// FormedFrom and FormedAt the particle scatters with its cross
	// sections scaled by XSecScale, afterwards with the full value.
	FormedFrom float64
	FormedAt   float64
	XSecScale  float64
}

// EffectiveMass returns sqrt(p·p) of the current momentum.
func (p Particle) EffectiveMass() float64 {
	return p.Momentum.Abs()
}

// Velocity returns the record's three-velocity.
func (p Particle) Velocity() ThreeVector {
	return p.Momentum.Velocity()
}

// FormedBy reports whether the particle has finished forming at time t.
func (p Particle) FormedBy(t float64) bool {
	return t+ReallySmall >= p.FormedAt
}

// ScaleAt returns the cross-section scaling factor in effect at time t.
func (p Particle) ScaleAt(t float64) float64 {
	if p.FormedBy(t) {
		return 1
	}
	return p.XSecScale
}
