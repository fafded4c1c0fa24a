package systems

import (
	"fmt"

	"github.com/avila-gabriel/game-balance/internal/balance"
	"github.com/avila-gabriel/game-balance/internal/mechanics"
)

// IncomeModifier scales the income of a production run. Modifiers compose by
// multiplication; negative multipliers are treated as zero.
type IncomeModifier interface {
	Name() string
	IncomeMultiplier(base float64, p balance.Params, env balance.Env) float64
}

// IncomeBoost multiplies income by a constant factor.
type IncomeBoost struct {
	Factor float64
}

func (m IncomeBoost) Name() string {
	return fmt.Sprintf("income x%.2f", m.Factor)
}

func (m IncomeBoost) IncomeMultiplier(float64, balance.Params, balance.Env) float64 {
	return m.Factor
}

// HoardingFee shrinks income as the starting stock grows relative to income.
type HoardingFee struct {
	Slope   float64
	MaxMult float64
}

func (m HoardingFee) Name() string {
	return "hoarding fee"
}

func (m HoardingFee) IncomeMultiplier(base float64, p balance.Params, _ balance.Env) float64 {
	return 1 / mechanics.FeeMultiplier(p[ParamStock0], base, m.Slope, m.MaxMult)
}

// ProgressiveIncomeTax deducts a bracketed tax from income.
type ProgressiveIncomeTax struct {
	Brackets []mechanics.TaxBracket
}

func (m ProgressiveIncomeTax) Name() string {
	return "progressive tax"
}

func (m ProgressiveIncomeTax) IncomeMultiplier(base float64, _ balance.Params, _ balance.Env) float64 {
	if base <= 0 {
		return 1
	}
	return (base - mechanics.ProgressiveTax(base, m.Brackets)) / base
}
