package mechanics

import "github.com/avila-gabriel/game-balance/pkg/utils"

// Clamp forces x into [lo, hi].
func Clamp(x, lo, hi float64) float64 {
	return utils.ClampFloat64(x, lo, hi)
}

// Approach moves x a fraction k of the way toward target and clamps the result.
func Approach(x, target, k, lo, hi float64) float64 {
	return Clamp(x+k*(target-x), lo, hi)
}

// AgainstError moves x opposite to a signed error with gain k.
func AgainstError(x, err, k, lo, hi float64) float64 {
	return Clamp(x-k*err, lo, hi)
}
