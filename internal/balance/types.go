package balance

import (
	"encoding/json"
	"math"
	"sort"

	"github.com/avila-gabriel/game-balance/pkg/utils"
)

// Params maps tunable parameter names to values.
type Params map[string]float64

// Env maps environmental constant names to values. It is fixed for a run.
type Env map[string]float64

// Obs maps KPI names to the values observed from one simulation.
type Obs map[string]float64

// Clone returns a copy of p.
func (p Params) Clone() Params {
	return Params(cloneValues(p))
}

// Clone returns a copy of e.
func (e Env) Clone() Env {
	return Env(cloneValues(e))
}

// Clone returns a copy of o.
func (o Obs) Clone() Obs {
	return Obs(cloneValues(o))
}

// Merge returns the defaults in e overlaid with overrides.
func (e Env) Merge(overrides Env) Env {
	out := e.Clone()
	if out == nil {
		out = Env{}
	}
	for k, v := range overrides {
		out[k] = v
	}
	return out
}

func cloneValues(in map[string]float64) map[string]float64 {
	if in == nil {
		return nil
	}
	out := make(map[string]float64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// Band is an inclusive acceptable range for a KPI.
type Band struct {
	Min float64
	Max float64
}

type bandJSON struct {
	Min *float64 `json:"min,omitempty"`
	Max *float64 `json:"max,omitempty"`
}

// MarshalJSON omits infinite edges, which JSON cannot represent.
func (b Band) MarshalJSON() ([]byte, error) {
	var out bandJSON
	if !math.IsInf(b.Min, 0) {
		min := b.Min
		out.Min = &min
	}
	if !math.IsInf(b.Max, 0) {
		max := b.Max
		out.Max = &max
	}
	return json.Marshal(out)
}

// UnmarshalJSON treats a missing edge as unbounded.
func (b *Band) UnmarshalJSON(data []byte) error {
	var in bandJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*b = Band{Min: math.Inf(-1), Max: math.Inf(1)}
	if in.Min != nil {
		b.Min = *in.Min
	}
	if in.Max != nil {
		b.Max = *in.Max
	}
	return nil
}

// Between returns the band [min, max].
func Between(min, max float64) Band {
	return Band{Min: min, Max: max}
}

// Around returns the band [target-tol, target+tol].
func Around(target, tol float64) Band {
	tol = math.Abs(tol)
	return Band{Min: target - tol, Max: target + tol}
}

// AtLeast returns a band with no upper limit.
func AtLeast(min float64) Band {
	return Band{Min: min, Max: math.Inf(1)}
}

// AtMost returns a band with no lower limit.
func AtMost(max float64) Band {
	return Band{Min: math.Inf(-1), Max: max}
}

// Valid reports whether the band is well formed.
func (b Band) Valid() bool {
	return !math.IsNaN(b.Min) && !math.IsNaN(b.Max) && b.Min <= b.Max
}

// Contains reports whether v lies inside the band.
func (b Band) Contains(v float64) bool {
	return v >= b.Min && v <= b.Max
}

// Error returns the signed distance from v to the band: negative below Min,
// positive above Max and zero inside.
func (b Band) Error(v float64) float64 {
	switch {
	case v < b.Min:
		return v - b.Min
	case v > b.Max:
		return v - b.Max
	default:
		return 0
	}
}

// scale is the magnitude used to normalise errors so KPIs with different
// units contribute comparably to the distance.
func (b Band) scale() float64 {
	s := 1.0
	for _, edge := range []float64{b.Min, b.Max} {
		if utils.IsFinite(edge) && math.Abs(edge) > s {
			s = math.Abs(edge)
		}
	}
	return s
}

// Targets maps KPI names to acceptable bands.
type Targets map[string]Band

// KPIs returns the bound KPI names in sorted order.
func (t Targets) KPIs() []string {
	keys := make([]string, 0, len(t))
	for k := range t {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Clone returns a copy of t.
func (t Targets) Clone() Targets {
	if t == nil {
		return nil
	}
	out := make(Targets, len(t))
	for k, v := range t {
		out[k] = v
	}
	return out
}

// Satisfied reports whether every bound KPI in obs is inside its band.
// A bound KPI missing from obs is not satisfied.
func (t Targets) Satisfied(obs Obs) bool {
	for k, band := range t {
		v, ok := obs[k]
		if !ok || !band.Contains(v) {
			return false
		}
	}
	return true
}

// Distance is the sum of normalised absolute band errors, summed in sorted
// KPI order so repeated runs produce bit-identical values.
func (t Targets) Distance(obs Obs) float64 {
	d := 0.0
	for _, k := range t.KPIs() {
		band := t[k]
		v, ok := obs[k]
		if !ok {
			return math.Inf(1)
		}
		d += math.Abs(band.Error(v)) / band.scale()
	}
	return d
}

// Domain is the closed range a parameter may take.
type Domain struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Contains reports whether v lies inside the domain.
func (d Domain) Contains(v float64) bool {
	return v >= d.Min && v <= d.Max
}

// Clamp forces v into the domain.
func (d Domain) Clamp(v float64) float64 {
	return utils.ClampFloat64(v, d.Min, d.Max)
}

// Width is Max-Min, or +Inf for unbounded domains.
func (d Domain) Width() float64 {
	return d.Max - d.Min
}

// ParamSpec declares one tunable parameter.
type ParamSpec struct {
	Name    string  `json:"name"`
	Domain  Domain  `json:"domain"`
	Default float64 `json:"default"`
	// Step is the minimum initial adjustment step; zero means derive from the value.
	Step float64 `json:"step,omitempty"`
}

// Control binds a KPI to the parameter that most directly moves it.
// Sign is +1 when the KPI increases with the parameter and -1 otherwise.
type Control struct {
	KPI   string  `json:"kpi"`
	Param string  `json:"param"`
	Sign  float64 `json:"sign"`
}

// Spec describes the shape of a system.
type Spec struct {
	Params   []ParamSpec `json:"params"`
	KPIs     []string    `json:"kpis"`
	Controls []Control   `json:"controls"`
	Env      Env         `json:"env"`
}

// Param looks up a parameter declaration by name.
func (s Spec) Param(name string) (ParamSpec, bool) {
	for _, p := range s.Params {
		if p.Name == name {
			return p, true
		}
	}
	return ParamSpec{}, false
}

// HasKPI reports whether the system produces the named KPI.
func (s Spec) HasKPI(name string) bool {
	for _, k := range s.KPIs {
		if k == name {
			return true
		}
	}
	return false
}

// Defaults returns the declared default Params.
func (s Spec) Defaults() Params {
	p := make(Params, len(s.Params))
	for _, ps := range s.Params {
		p[ps.Name] = ps.Default
	}
	return p
}

// System is a self-contained balancing unit. Simulate must be a pure function
// of its inputs: the same Params, Env and generator state give the same Obs.
type System interface {
	Name() string
	Spec() Spec
	Simulate(p Params, env Env, rng *utils.RandSource) (Obs, error)
}
