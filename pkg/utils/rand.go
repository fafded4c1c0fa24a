package utils

import (
	"math/rand"
)

// RandSource is a seeded random number generator owned by a single run.
// It is not safe for concurrent use; every balance run creates its own.
type RandSource struct {
	seed int64
	rng  *rand.Rand
}

// NewRandSource creates a new random source with the given seed.
// A zero seed is a valid seed: the same seed always yields the same sequence.
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
	return r.rng.Float64()
}

// NormFloat64 returns a normally distributed random number with mean and stddev
func (r *RandSource) NormFloat64(mean, stddev float64) float64 {
	return r.rng.NormFloat64()*stddev + mean
}

// BernoulliBool returns true with probability p, false otherwise
func (r *RandSource) BernoulliBool(p float64) bool {
	return r.rng.Float64() < p
}

// Shuffle randomizes the order of n elements using swap
func (r *RandSource) Shuffle(n int, swap func(i, j int)) {
	r.rng.Shuffle(n, swap)
}
