package systems

import (
	"github.com/avila-gabriel/game-balance/internal/balance"
	"github.com/avila-gabriel/game-balance/internal/mechanics"
	"github.com/avila-gabriel/game-balance/pkg/utils"
)

// UpgradeCostCurveName is the registry name of the upgrade cost curve system.
const UpgradeCostCurveName = "upgrade_cost_curve"

const (
	ParamBase      = "base"
	ParamGrowth    = "growth"
	ParamTrackMult = "track_mult"

	EnvLevels    = "levels"
	EnvRefIncome = "ref_income"
	EnvSaveShare = "save_share"

	KPITTUMean  = "ttu_mean"
	KPITTUSlope = "ttu_slope"

	maxTTUSeconds = 86400
)

// UpgradeCostCurve paces a geometric cost curve against a reference income.
type UpgradeCostCurve struct{}

func NewUpgradeCostCurve() *UpgradeCostCurve {
	return &UpgradeCostCurve{}
}

func (s *UpgradeCostCurve) Name() string {
	return UpgradeCostCurveName
}

func (s *UpgradeCostCurve) Spec() balance.Spec {
	return balance.Spec{
		Params: []balance.ParamSpec{
			{Name: ParamBase, Domain: balance.Domain{Min: 0.01, Max: 1e9}, Default: 10},
			{Name: ParamGrowth, Domain: balance.Domain{Min: 1.01, Max: 2.5}, Default: 1.15, Step: 0.01},
			{Name: ParamTrackMult, Domain: balance.Domain{Min: 0.1, Max: 10}, Default: 1},
		},
		KPIs: []string{KPITTUMean, KPITTUSlope},
		Controls: []balance.Control{
			{KPI: KPITTUMean, Param: ParamBase, Sign: 1},
			{KPI: KPITTUSlope, Param: ParamGrowth, Sign: 1},
		},
		Env: balance.Env{
			EnvLevels:    10,
			EnvRefIncome: 0,
			EnvSaveShare: 0.1,
		},
	}
}

// Simulate computes the time to afford each level while saving a share of
// the reference income. Per-level TTU is capped at one day.
func (s *UpgradeCostCurve) Simulate(p balance.Params, env balance.Env, _ *utils.RandSource) (balance.Obs, error) {
	saveRate := env[EnvSaveShare] * env[EnvRefIncome]
	if saveRate <= 0 {
		return nil, balance.Degenerate("save rate %g (ref_income %g) never affords a level", saveRate, env[EnvRefIncome])
	}
	levels, err := envCount(EnvLevels, env[EnvLevels], MaxLevels)
	if err != nil {
		return nil, err
	}
	if levels < 1 {
		levels = 1
	}

	ttus := make([]float64, levels)
	for l := range ttus {
		cost := mechanics.Exponential(p[ParamBase], p[ParamGrowth], float64(l)) * p[ParamTrackMult]
		ttus[l] = mechanics.Clamp(cost/saveRate, 0, maxTTUSeconds)
	}

	slope := 1.0
	if levels > 1 {
		ratios := make([]float64, 0, levels-1)
		for l := 1; l < levels; l++ {
			if ttus[l-1] > 0 {
				ratios = append(ratios, ttus[l]/ttus[l-1])
			}
		}
		if len(ratios) > 0 {
			slope = utils.Mean(ratios)
		}
	}

	return balance.Obs{
		KPITTUMean:  utils.Mean(ttus),
		KPITTUSlope: slope,
	}, nil
}
