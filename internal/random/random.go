// Package random provides the seedable generator used for split selection.
//
// The generator only affects which hyperplanes are chosen, never correctness.
// Swapping the implementation changes which forest is built for a given seed.
package random

import "math/rand/v2"

// DefaultSeed is used when no seed is configured.
const DefaultSeed uint64 = 123456789

// Source is the randomness a tree builder consumes.
// A Source is not safe for concurrent use; each tree owns its own.
type Source interface {
	// Index returns a uniform value in [0, n). n must be positive.
	Index(n int) int
}

// PCG is a Source backed by the PCG generator.
type PCG struct {
	r *rand.Rand
}

// New returns a PCG seeded with seed.
func New(seed uint64) *PCG {
	return &PCG{r: rand.New(rand.NewPCG(seed, splitmix(seed)))}
}

// ForTree derives an independent, reproducible Source for tree number t.
func ForTree(seed uint64, t int) *PCG {
	return New(splitmix(seed + uint64(t)*0x9E3779B97F4A7C15))
}

// Index implements Source.
func (p *PCG) Index(n int) int { return p.r.IntN(n) }

// splitmix is the SplitMix64 finalizer; it decorrelates nearby seeds.
func splitmix(x uint64) uint64 {
	x += 0x9E3779B97F4A7C15
	x = (x ^ (x >> 30)) * 0xBF58476D1CE4E5B9
	x = (x ^ (x >> 27)) * 0x94D049BB133111EB
	return x ^ (x >> 31)
}
