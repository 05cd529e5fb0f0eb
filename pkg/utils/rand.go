package utils

import (
	"math/rand"
	"sync"
)

// RandSource is a random number generator that is safe for concurrent use.
// A single source may be shared by evaluations running in parallel.
type RandSource struct {
	mu   sync.Mutex
	seed int64
	rng  *rand.Rand
}

// NewRandSource creates a new random source with the given seed.
// Every seed, including zero, yields a reproducible stream.
func NewRandSource(seed int64) *RandSource {
	return &RandSource{
		seed: seed,
		rng:  rand.New(rand.NewSource(seed)),
	}
}

// Seed returns the seed the source was created with
func (r *RandSource) Seed() int64 {
	return r.seed
}

// Float64 returns a random float64 in [0.0, 1.0)
func (r *RandSource) Float64() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rng.Float64()
}

// Rand returns a fresh *rand.Rand seeded from this source.
// Libraries that require their own *rand.Rand get a derived, reproducible stream.
func (r *RandSource) Rand() *rand.Rand {
	r.mu.Lock()
	defer r.mu.Unlock()
	return rand.New(rand.NewSource(r.rng.Int63()))
}
