package config

import "math"

// Scenario describes a balance run: either a preset genre (optionally with
// per-stage overrides) or a custom list of stages.
type Scenario struct {
	Name          string             `yaml:"name"`
	LogLevel      string             `yaml:"log_level,omitempty"`
	Seed          int64              `yaml:"seed"`
	Budget        Budget             `yaml:"budget,omitempty"`
	Completeness  string             `yaml:"completeness,omitempty"`   // ignore_unbound, require_all
	FailurePolicy string             `yaml:"failure_policy,omitempty"` // continue, stop
	Passes        int                `yaml:"passes,omitempty"`
	Genre         string             `yaml:"genre,omitempty"`
	Signals       map[string]float64 `yaml:"signals,omitempty"`
	Draft         *Draft             `yaml:"draft,omitempty"`
	Stages        []Stage            `yaml:"stages,omitempty"`
}

// Budget bounds the iterations of every stage. Zero values take the defaults.
type Budget struct {
	MaxIterations    int `yaml:"max_iterations,omitempty"`
	StagnationWindow int `yaml:"stagnation_window,omitempty"`
}

// Draft picks core income modifiers before a genre runs.
type Draft struct {
	Rounds         int   `yaml:"rounds"`
	Seed           int64 `yaml:"seed"`
	Options        int   `yaml:"options,omitempty"`
	Rerolls        int   `yaml:"rerolls,omitempty"`
	PrioritizeTier *bool `yaml:"prioritize_tier,omitempty"`
}

// Stage is one balance stage. In genre mode it overrides the preset stage
// with the same name and System may be left empty.
type Stage struct {
	Name        string                `yaml:"name"`
	System      string                `yaml:"system,omitempty"`
	Params      map[string]float64    `yaml:"params,omitempty"`
	Env         map[string]float64    `yaml:"env,omitempty"`
	EnvFrom     map[string]string     `yaml:"env_from,omitempty"` // env key -> signal name
	Targets     map[string]Band       `yaml:"targets,omitempty"`
	TargetsFrom map[string]SignalBand `yaml:"targets_from,omitempty"`
}

// Band is either min/max (a missing edge is unbounded) or target ± tolerance.
type Band struct {
	Min       *float64 `yaml:"min,omitempty"`
	Max       *float64 `yaml:"max,omitempty"`
	Target    *float64 `yaml:"target,omitempty"`
	Tolerance *float64 `yaml:"tolerance,omitempty"`
}

// Bounds returns the inclusive edges of the band.
func (b Band) Bounds() (float64, float64) {
	if b.Target != nil {
		tol := 0.0
		if b.Tolerance != nil {
			tol = math.Abs(*b.Tolerance)
		}
		return *b.Target - tol, *b.Target + tol
	}
	lo, hi := math.Inf(-1), math.Inf(1)
	if b.Min != nil {
		lo = *b.Min
	}
	if b.Max != nil {
		hi = *b.Max
	}
	return lo, hi
}

// SignalBand derives a band by scaling a published signal:
// [signal*min_scale, signal*max_scale].
type SignalBand struct {
	Signal   string  `yaml:"signal"`
	MinScale float64 `yaml:"min_scale"`
	MaxScale float64 `yaml:"max_scale"`
}

// Bounds scales the signal value into band edges, ordered low to high.
func (s SignalBand) Bounds(v float64) (float64, float64) {
	lo, hi := v*s.MinScale, v*s.MaxScale
	if lo > hi {
		lo, hi = hi, lo
	}
	return lo, hi
}

// Preset reports whether the scenario runs a preset genre.
func (s *Scenario) Preset() bool {
	return s.Genre != ""
}
