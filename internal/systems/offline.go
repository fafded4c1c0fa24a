package systems

import (
	"math"

	"github.com/avila-gabriel/game-balance/internal/balance"
	"github.com/avila-gabriel/game-balance/internal/mechanics"
	"github.com/avila-gabriel/game-balance/pkg/utils"
)

// OfflineAccumulationName is the registry name of the offline accumulation system.
const OfflineAccumulationName = "offline_accumulation"

const (
	ParamCapMinutes = "cap_minutes"
	ParamEfficiency = "efficiency"

	EnvAFKMinutes = "afk_minutes"

	KPIRetain = "retain"
)

// OfflineAccumulation models how much of online income a player keeps while away.
type OfflineAccumulation struct{}

func NewOfflineAccumulation() *OfflineAccumulation {
	return &OfflineAccumulation{}
}

func (s *OfflineAccumulation) Name() string {
	return OfflineAccumulationName
}

func (s *OfflineAccumulation) Spec() balance.Spec {
	return balance.Spec{
		Params: []balance.ParamSpec{
			{Name: ParamCapMinutes, Domain: balance.Domain{Min: 1, Max: 10080}, Default: 720},
			{Name: ParamDecay, Domain: balance.Domain{Min: 0, Max: 0.5}, Default: 0.02},
			{Name: ParamEfficiency, Domain: balance.Domain{Min: 0, Max: 1}, Default: 0.6},
		},
		KPIs: []string{KPIRetain},
		Controls: []balance.Control{
			{KPI: KPIRetain, Param: ParamEfficiency, Sign: 1},
		},
		Env: balance.Env{
			EnvAFKMinutes: 180,
		},
	}
}

// Simulate computes efficiency*(1-decay)^(afk/cap), clamped to [0, 1].
func (s *OfflineAccumulation) Simulate(p balance.Params, env balance.Env, _ *utils.RandSource) (balance.Obs, error) {
	afk := math.Max(0, env[EnvAFKMinutes])
	periods := afk / math.Max(1, p[ParamCapMinutes])
	retain := p[ParamEfficiency] * math.Pow(1-p[ParamDecay], periods)
	return balance.Obs{
		KPIRetain: mechanics.Clamp(retain, 0, 1),
	}, nil
}
