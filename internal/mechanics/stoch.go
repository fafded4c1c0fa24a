package mechanics

import (
	"math"

	"github.com/avila-gabriel/game-balance/pkg/utils"
)

// Bernoulli succeeds with probability p, clamped to [0, 1].
func Bernoulli(rng *utils.RandSource, p float64) bool {
	return rng.BernoulliBool(Clamp(p, 0, 1))
}

// Gaussian draws a standard normal value.
func Gaussian(rng *utils.RandSource) float64 {
	return rng.NormFloat64(0, 1)
}

// CritFactor returns mult on a critical hit with probability chance, else 1.
func CritFactor(rng *utils.RandSource, chance, mult float64) float64 {
	if Bernoulli(rng, chance) {
		return mult
	}
	return 1
}

// Jitter is a non-negative multiplicative noise factor 1 + N(0, sd).
func Jitter(rng *utils.RandSource, sd float64) float64 {
	if sd <= 0 {
		return 1
	}
	return math.Max(0, 1+rng.NormFloat64(0, sd))
}
