package systems

import (
	"math"

	"github.com/avila-gabriel/game-balance/internal/balance"
	"github.com/avila-gabriel/game-balance/internal/mechanics"
	"github.com/avila-gabriel/game-balance/pkg/utils"
)

// MatchupName is the registry name of the win-rate matchup system.
const MatchupName = "matchup"

const (
	ParamEffActions = "eff_actions"
	ParamDefense    = "defense"

	EnvAlpha     = "alpha"
	EnvBeta      = "beta"
	EnvRatingGap = "rating_gap"
	EnvMatches   = "matches"

	KPIWinRate         = "win_rate"
	KPIExpectedWinRate = "expected_win_rate"
)

// Matchup tunes how effective a side's actions must be to hit a win rate
// against a defender, optionally shifted by an Elo rating gap. With matches
// set, the win rate is measured from seeded simulated matches.
type Matchup struct{}

func NewMatchup() *Matchup {
	return &Matchup{}
}

func (s *Matchup) Name() string {
	return MatchupName
}

func (s *Matchup) Spec() balance.Spec {
	return balance.Spec{
		Params: []balance.ParamSpec{
			{Name: ParamEffActions, Domain: balance.Domain{Min: 0, Max: 1}, Default: 0.5},
			{Name: ParamDefense, Domain: balance.Domain{Min: 0, Max: 0.95}, Default: 0.2},
		},
		KPIs: []string{KPIWinRate, KPIExpectedWinRate},
		Controls: []balance.Control{
			{KPI: KPIWinRate, Param: ParamEffActions, Sign: 1},
		},
		Env: balance.Env{
			EnvAlpha:     1.5,
			EnvBeta:      0.5,
			EnvRatingGap: 0,
			EnvMatches:   0,
		},
	}
}

func (s *Matchup) Simulate(p balance.Params, env balance.Env, rng *utils.RandSource) (balance.Obs, error) {
	alpha, beta := env[EnvAlpha], env[EnvBeta]
	if alpha <= 0 || beta <= 0 {
		return nil, balance.Degenerate("alpha %g and beta %g must be positive for effectiveness to matter", alpha, beta)
	}

	expected := mechanics.TanhWinRate(p[ParamEffActions], p[ParamDefense], alpha, beta)
	expected = mechanics.Clamp(expected+mechanics.EloExpected(env[EnvRatingGap])-0.5, 0, 1)

	if _, err := envCount(EnvMatches, env[EnvMatches], MaxMatches); err != nil {
		return nil, err
	}
	winRate := expected
	if matches := int(math.Round(env[EnvMatches])); matches > 0 {
		wins := 0
		for i := 0; i < matches; i++ {
			if mechanics.Bernoulli(rng, expected) {
				wins++
			}
		}
		winRate = float64(wins) / float64(matches)
	}

	return balance.Obs{
		KPIWinRate:         winRate,
		KPIExpectedWinRate: expected,
	}, nil
}
