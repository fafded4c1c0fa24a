package mechanics

import "math"

// Surplus is production left after upkeep and per-action costs.
func Surplus(prod, upkeep, actions, costPerAction float64) float64 {
	return prod - upkeep - actions*costPerAction
}

// SteadyStorage is the stock level where a leaky store balances its inflow,
// capped at storageCap.
func SteadyStorage(surplus, leak, storageCap float64) float64 {
	if leak <= 0 {
		if surplus > 0 {
			return storageCap
		}
		return 0
	}
	return Clamp(surplus/leak, 0, storageCap)
}

// SpendCap is the fraction of desired actions that net production can fund.
func SpendCap(prod, upkeep, costPerAction float64) float64 {
	if costPerAction <= 0 {
		return 1
	}
	return Clamp((prod-upkeep)/costPerAction, 0, 1)
}

// EconCap is the fraction of one action that production alone can fund.
func EconCap(prod, costPerAction float64) float64 {
	if costPerAction <= 0 {
		return 1
	}
	return Clamp(prod/costPerAction, 0, 1)
}

// EffectiveActions is the desired action rate limited by every cap, in [0, 1].
func EffectiveActions(desired float64, caps ...float64) float64 {
	out := desired
	for _, c := range caps {
		out = math.Min(out, c)
	}
	return Clamp(out, 0, 1)
}

// Utilization is spend over available energy, zero when nothing is available.
func Utilization(spend, energy float64) float64 {
	if energy <= 0 {
		return 0
	}
	return Clamp(spend/energy, 0, 1)
}
