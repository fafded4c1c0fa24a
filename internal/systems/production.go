package systems

import (
	"fmt"
	"math"

	"github.com/avila-gabriel/game-balance/internal/balance"
	"github.com/avila-gabriel/game-balance/internal/mechanics"
	"github.com/avila-gabriel/game-balance/pkg/utils"
)

// ProductionSpendName is the registry name of the production-vs-spend system.
const ProductionSpendName = "production_spend"

// Production-vs-spend parameter, environment and KPI names.
const (
	ParamGenerator = "generator"
	ParamSpend     = "spend"
	ParamStock0    = "stock0"

	EnvHorizon      = "horizon"
	EnvTick         = "tick"
	EnvUpgradeCost  = "upgrade_cost"
	EnvFeeRate      = "fee_rate"
	EnvLeak         = "leak"
	EnvStorageCap   = "storage_cap"
	EnvIncomeJitter = "income_jitter"

	KPIUtilization = "utilization"
	KPISurplus     = "surplus"
	KPITTU         = "ttu"
	KPIIncome      = "income"
)

// ProductionSpend models a generator filling a stock that a spender drains
// every tick. It reports how often spend was covered, the final stock, the
// tick at which an upgrade first became affordable and the effective income.
type ProductionSpend struct {
	modifiers []IncomeModifier
}

// NewProductionSpend creates the system with optional income modifiers.
func NewProductionSpend(mods ...IncomeModifier) *ProductionSpend {
	return &ProductionSpend{modifiers: mods}
}

// Modifiers returns the income modifiers applied on every simulation.
func (s *ProductionSpend) Modifiers() []IncomeModifier {
	return s.modifiers
}

func (s *ProductionSpend) Name() string {
	return ProductionSpendName
}

func (s *ProductionSpend) Spec() balance.Spec {
	return balance.Spec{
		Params: []balance.ParamSpec{
			{Name: ParamGenerator, Domain: balance.Domain{Min: 0, Max: 1e6}, Default: 5},
			{Name: ParamSpend, Domain: balance.Domain{Min: 0, Max: 1e6}, Default: 3},
			{Name: ParamStock0, Domain: balance.Domain{Min: 0, Max: 1e9}, Default: 0},
		},
		KPIs: []string{KPIUtilization, KPISurplus, KPITTU, KPIIncome},
		Controls: []balance.Control{
			{KPI: KPIUtilization, Param: ParamSpend, Sign: -1},
			{KPI: KPITTU, Param: ParamGenerator, Sign: -1},
		},
		Env: balance.Env{
			EnvHorizon:      1000,
			EnvTick:         1,
			EnvUpgradeCost:  100,
			EnvFeeRate:      0,
			EnvLeak:         0,
			EnvStorageCap:   0,
			EnvIncomeJitter: 0,
		},
	}
}

// Simulate runs the tick loop. Stock never goes negative: when it cannot
// cover a tick's spend, whatever is left is spent and the tick counts as
// unsatisfied. A TTU of ticks+1 means the upgrade was never affordable.
func (s *ProductionSpend) Simulate(p balance.Params, env balance.Env, rng *utils.RandSource) (balance.Obs, error) {
	gen, spend, stock := p[ParamGenerator], p[ParamSpend], p[ParamStock0]
	if gen <= 0 {
		return nil, balance.Degenerate("generator rate %g can never fund an upgrade", gen)
	}

	income := gen
	for _, m := range s.modifiers {
		income *= math.Max(0, m.IncomeMultiplier(income, p, env))
	}
	income = mechanics.AfterFee(income, env[EnvFeeRate])
	if income <= 0 {
		return nil, balance.Degenerate("effective income %g after modifiers and fees", income)
	}

	dt := env[EnvTick]
	if dt <= 0 {
		return nil, fmt.Errorf("%s must be positive, got %g", EnvTick, dt)
	}
	ticks, err := envCount(EnvHorizon+"/"+EnvTick, env[EnvHorizon]/dt, MaxTicks)
	if err != nil {
		return nil, err
	}
	if ticks <= 0 {
		return nil, fmt.Errorf("%s must be positive, got %g", EnvHorizon, env[EnvHorizon])
	}

	cost := env[EnvUpgradeCost]
	leak := mechanics.Clamp(env[EnvLeak]*dt, 0, 1)
	capacity := env[EnvStorageCap]
	jitter := env[EnvIncomeJitter]

	ttu := -1.0
	if stock >= cost {
		ttu = 0
	}
	satisfied := 0
	for t := 1; t <= ticks; t++ {
		stock += income * dt * mechanics.Jitter(rng, jitter)

		if want := spend * dt; stock >= want {
			stock -= want
			satisfied++
		} else {
			stock = 0
		}

		stock -= stock * leak
		if capacity > 0 {
			stock = math.Min(stock, capacity)
		}
		if ttu < 0 && stock >= cost {
			ttu = float64(t)
		}
	}
	if ttu < 0 {
		ttu = float64(ticks + 1)
	}

	return balance.Obs{
		KPIUtilization: float64(satisfied) / float64(ticks),
		KPISurplus:     stock,
		KPITTU:         ttu,
		KPIIncome:      income,
	}, nil
}
