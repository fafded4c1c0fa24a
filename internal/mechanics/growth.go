package mechanics

import "math"

// Exponential is base*rate^n, the cost of level n on a geometric curve.
func Exponential(base, rate, n float64) float64 {
	return base * math.Pow(rate, n)
}

// GeometricSum is the total cost of levels 0..n-1 on a geometric curve.
func GeometricSum(base, rate float64, n int) float64 {
	if n <= 0 {
		return 0
	}
	if rate == 1 {
		return base * float64(n)
	}
	return base * (math.Pow(rate, float64(n)) - 1) / (rate - 1)
}

// Logistic is an S-curve rising to limit with steepness k around midpoint.
func Logistic(x, limit, k, midpoint float64) float64 {
	return limit / (1 + math.Exp(-k*(x-midpoint)))
}
