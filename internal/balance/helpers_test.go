package balance

import (
	"math"

	"github.com/avila-gabriel/game-balance/pkg/logger"
	"github.com/avila-gabriel/game-balance/pkg/utils"
)

// linearSystem reports y = offset + slope*x and an unbound KPI z = x.
type linearSystem struct {
	slope  float64
	offset float64
	domain Domain
	noise  float64
}

func (s *linearSystem) Name() string { return "linear" }

func (s *linearSystem) Spec() Spec {
	domain := s.domain
	if domain == (Domain{}) {
		domain = Domain{Min: 0, Max: 1e6}
	}
	return Spec{
		Params:   []ParamSpec{{Name: "x", Domain: domain, Default: 1}},
		KPIs:     []string{"y", "z"},
		Controls: []Control{{KPI: "y", Param: "x", Sign: s.slope}},
	}
}

func (s *linearSystem) Simulate(p Params, _ Env, rng *utils.RandSource) (Obs, error) {
	y := s.offset + s.slope*p["x"]
	if s.noise > 0 {
		y += rng.NormFloat64(0, s.noise)
	}
	return Obs{"y": y, "z": p["x"]}, nil
}

// flatSystem ignores its parameter, so no target away from 5 is reachable.
type flatSystem struct{}

func (flatSystem) Name() string { return "flat" }

func (flatSystem) Spec() Spec {
	return Spec{
		Params:   []ParamSpec{{Name: "x", Domain: Domain{Min: 0, Max: 100}, Default: 1}},
		KPIs:     []string{"y"},
		Controls: []Control{{KPI: "y", Param: "x", Sign: 1}},
	}
}

func (flatSystem) Simulate(Params, Env, *utils.RandSource) (Obs, error) {
	return Obs{"y": 5}, nil
}

// brokenSystem fails every simulation with the configured error, or reports NaN.
type brokenSystem struct {
	err error
}

func (brokenSystem) Name() string { return "broken" }

func (brokenSystem) Spec() Spec {
	return Spec{
		Params: []ParamSpec{{Name: "x", Domain: Domain{Min: 0, Max: 1}, Default: 0.5}},
		KPIs:   []string{"y"},
	}
}

func (s brokenSystem) Simulate(Params, Env, *utils.RandSource) (Obs, error) {
	if s.err != nil {
		return nil, s.err
	}
	return Obs{"y": math.NaN()}, nil
}

func quietBalancer(budget Budget) *Balancer {
	return NewBalancer(budget).WithLogger(logger.Discard())
}

// cliffSystem reports y = x but is degenerate below x = 1.
type cliffSystem struct{}

func (cliffSystem) Name() string { return "cliff" }

func (cliffSystem) Spec() Spec {
	return Spec{
		Params:   []ParamSpec{{Name: "x", Domain: Domain{Min: 0, Max: 100}, Default: 1}},
		KPIs:     []string{"y"},
		Controls: []Control{{KPI: "y", Param: "x", Sign: 1}},
	}
}

func (cliffSystem) Simulate(p Params, _ Env, _ *utils.RandSource) (Obs, error) {
	if p["x"] < 1 {
		return nil, Degenerate("x %g is below the cliff", p["x"])
	}
	return Obs{"y": p["x"]}, nil
}
