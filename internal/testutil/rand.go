package testutil

import "math/rand/v2"

// Rand returns a PCG source seeded the way the harness seeds a run:
// both stream words from the same seed. Tests that need to predict a
// run's random draws build their reference source with this.
func Rand(seed int64) *rand.Rand {
	return rand.New(rand.NewPCG(uint64(seed), uint64(seed)))
}
