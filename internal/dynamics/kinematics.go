package dynamics

import (
	"math"
	"math/rand/v2"

	"github.com/roach88/cascade/internal/phys"
)

// twoBodyMomenta samples an isotropic two-body final state with total
// energy srts in the center-of-momentum frame and boosts both momenta
// back into the frame the pair moves with velocity beta in.
func twoBodyMomenta(srts, ma, mb float64, beta phys.ThreeVector, rng *rand.Rand) (phys.FourVector, phys.FourVector) {
	p := phys.PCM(srts, ma, mb)
	mom := phys.IsotropicUnit(rng).Mul(p)
	pa := phys.FourVector{math.Sqrt(p*p + ma*ma), mom[0], mom[1], mom[2]}
	pb := phys.FourVector{math.Sqrt(p*p + mb*mb), -mom[0], -mom[1], -mom[2]}
	back := beta.Neg()
	return pa.Boost(back), pb.Boost(back)
}

// interactionPoint free-streams each incoming snapshot to the execution
// time and averages the positions, giving the point where products of an
// inelastic process appear.
func interactionPoint(in []phys.Particle, t float64) phys.FourVector {
	var sum phys.ThreeVector
	for _, p := range in {
		d := t - p.Position[0]
		sum = sum.Add(p.Position.Spatial().Add(p.Velocity().Mul(d)))
	}
	mid := sum.Mul(1 / float64(len(in)))
	return phys.FourVector{t, mid[0], mid[1], mid[2]}
}

// inheritFormation applies the slow-formation rule. While any parent is
// still forming at the execution time, products continue the slowest
// parent's formation window with its initial scaling factor; otherwise
// they count as formed at the execution time with full cross sections.
func inheritFormation(out []phys.Particle, in []phys.Particle, texec float64) {
	slowest := 0
	for i := 1; i < len(in); i++ {
		if in[i].FormedAt > in[slowest].FormedAt {
			slowest = i
		}
	}
	if p := in[slowest]; p.FormedAt > texec {
		for i := range out {
			out[i].FormedFrom = p.FormedFrom
			out[i].FormedAt = p.FormedAt
			out[i].XSecScale = p.XSecScale
		}
		return
	}
	for i := range out {
		out[i].FormedFrom = texec
		out[i].FormedAt = texec
		out[i].XSecScale = 1
	}
}
