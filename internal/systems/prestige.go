package systems

import (
	"github.com/avila-gabriel/game-balance/internal/balance"
	"github.com/avila-gabriel/game-balance/internal/mechanics"
	"github.com/avila-gabriel/game-balance/pkg/utils"
)

// ResetPrestigeName is the registry name of the reset/prestige system.
const ResetPrestigeName = "reset_prestige"

const (
	ParamReqScore   = "req_score"
	ParamRewardMult = "reward_mult"
	ParamDecay      = "decay"

	KPICycle       = "cycle"
	KPICycleGrowth = "cycle_growth"
	KPIRewardRate  = "reward_rate"
)

// ResetPrestige models the length of a prestige cycle and the meta growth it pays.
// Decay erodes both the score rate and the reward.
type ResetPrestige struct{}

func NewResetPrestige() *ResetPrestige {
	return &ResetPrestige{}
}

func (s *ResetPrestige) Name() string {
	return ResetPrestigeName
}

func (s *ResetPrestige) Spec() balance.Spec {
	return balance.Spec{
		Params: []balance.ParamSpec{
			{Name: ParamReqScore, Domain: balance.Domain{Min: 1, Max: 1e12}, Default: 1000},
			{Name: ParamRewardMult, Domain: balance.Domain{Min: 1, Max: 1e6}, Default: 1},
			{Name: ParamDecay, Domain: balance.Domain{Min: 0, Max: 0.5}, Default: 0.02},
		},
		KPIs: []string{KPICycle, KPICycleGrowth, KPIRewardRate},
		Controls: []balance.Control{
			{KPI: KPICycle, Param: ParamReqScore, Sign: 1},
			{KPI: KPICycleGrowth, Param: ParamRewardMult, Sign: 1},
		},
		Env: balance.Env{
			EnvRefIncome: 0,
		},
	}
}

func (s *ResetPrestige) Simulate(p balance.Params, env balance.Env, _ *utils.RandSource) (balance.Obs, error) {
	ref := env[EnvRefIncome]
	if ref <= 0 {
		return nil, balance.Degenerate("ref_income %g never completes a cycle", ref)
	}
	damp := 1 + 10*p[ParamDecay]
	eff := ref / damp
	cycle := mechanics.Clamp(p[ParamReqScore]/eff, 0.1, 1e6)
	growth := p[ParamRewardMult] / damp

	return balance.Obs{
		KPICycle:       cycle,
		KPICycleGrowth: growth,
		KPIRewardRate:  growth / cycle,
	}, nil
}
