package mechanics

import "math"

// AfterFee deducts a proportional fee; the rate is clamped to [0, 1].
func AfterFee(amount, rate float64) float64 {
	return amount * (1 - Clamp(rate, 0, 1))
}

// TaxBracket taxes the part of an amount above Threshold at Rate.
type TaxBracket struct {
	Threshold float64
	Rate      float64
}

// ProgressiveTax returns the tax owed on amount. Brackets must be sorted by
// ascending threshold; each one applies up to the next threshold.
func ProgressiveTax(amount float64, brackets []TaxBracket) float64 {
	tax := 0.0
	for i, b := range brackets {
		if amount <= b.Threshold {
			break
		}
		upper := amount
		if i+1 < len(brackets) && brackets[i+1].Threshold < upper {
			upper = brackets[i+1].Threshold
		}
		tax += (upper - b.Threshold) * Clamp(b.Rate, 0, 1)
	}
	return tax
}

// FeeMultiplier grows costs with hoarded money relative to production:
// 1 + slope*money/prod, clamped to [1, maxMult].
func FeeMultiplier(money, prod, slope, maxMult float64) float64 {
	ratio := money / math.Max(math.Abs(prod), 1e-9)
	return Clamp(1+slope*ratio, 1, math.Max(1, maxMult))
}
