package mechanics

import "math"

// LinearWinRate moves from 0.5 toward the undefended edge as effectiveness rises.
func LinearWinRate(eff, def float64) float64 {
	eff = Clamp(eff, 0, 1)
	def = Clamp(def, 0, 1)
	return Clamp(0.5+eff*((1-def)-0.5), 0, 1)
}

// TanhWinRate is 0.5 + beta*tanh(alpha*eff*(1-def)), clamped to [0, 1].
func TanhWinRate(eff, def, alpha, beta float64) float64 {
	eff = Clamp(eff, 0, 1)
	def = Clamp(def, 0, 1)
	return Clamp(0.5+beta*math.Tanh(alpha*eff*(1-def)), 0, 1)
}

// EffForTarget inverts TanhWinRate: the effectiveness that yields target.
func EffForTarget(target, def, alpha, beta float64) float64 {
	den := alpha * (1 - Clamp(def, 0, 1))
	if den <= 0 || beta == 0 {
		return 0
	}
	y := (target - 0.5) / beta
	return Clamp(atanhSafe(y)/den, 0, 1)
}

func atanhSafe(y float64) float64 {
	const edge = 1 - 1e-9
	return math.Atanh(Clamp(y, -edge, edge))
}

// EloExpected is the expected score of a player rated gap points above the opponent.
func EloExpected(gap float64) float64 {
	return 1 / (1 + math.Pow(10, -gap/400))
}

// RatioWinRate is a/(a+b), or 0.5 when both strengths are zero.
func RatioWinRate(a, b float64) float64 {
	a = math.Max(a, 0)
	b = math.Max(b, 0)
	if a+b == 0 {
		return 0.5
	}
	return a / (a + b)
}
