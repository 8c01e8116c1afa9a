package testutil

import (
	"math"

	"github.com/roach88/cascade/internal/phys"
)

// Pion returns a fully formed on-shell π⁺ with the given momentum.
func Pion(p phys.ThreeVector) phys.Particle {
	return onShell(211, 0.138, p)
}

// AntiPion returns a fully formed on-shell π⁻ with the given momentum.
func AntiPion(p phys.ThreeVector) phys.Particle {
	return onShell(-211, 0.138, p)
}

func onShell(pdg phys.PDG, mass float64, p phys.ThreeVector) phys.Particle {
	e := math.Sqrt(mass*mass + p.Sqr())
	return phys.Particle{
		PDG:       pdg,
		Momentum:  phys.FourVector{e, p[0], p[1], p[2]},
		XSecScale: 1,
	}
}
