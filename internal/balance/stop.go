package balance

import (
	"fmt"
	"math"
)

// StopRule decides whether a run has stagnated based on its history.
type StopRule interface {
	// Check reports whether the run should stop and why.
	Check(history []Step) (bool, string)
	// Name returns the name of the rule.
	Name() string
}

// NoImprovementRule stops when the best distance has not improved for Window iterations.
type NoImprovementRule struct {
	Window int
	// Tolerance is the minimum decrease in distance that counts as improvement.
	Tolerance float64
}

// NewNoImprovementRule creates a no-improvement rule over the given window.
func NewNoImprovementRule(window int) *NoImprovementRule {
	if window <= 0 {
		window = DefaultBudget().StagnationWindow
	}
	return &NoImprovementRule{Window: window, Tolerance: 1e-12}
}

func (r *NoImprovementRule) Name() string {
	return "no_improvement"
}

func (r *NoImprovementRule) Check(history []Step) (bool, string) {
	if len(history) <= r.Window {
		return false, ""
	}

	best := math.Inf(1)
	bestIdx := -1
	for i, step := range history {
		if step.Distance < best-r.Tolerance {
			best = step.Distance
			bestIdx = i
		}
	}
	if bestIdx < 0 {
		return false, ""
	}

	since := len(history) - 1 - bestIdx
	if since >= r.Window {
		return true, fmt.Sprintf("no improvement for %d iterations (best at iteration %d)", since, history[bestIdx].Iteration)
	}
	return false, ""
}

// PlateauRule stops when the last Window distances lie within Tolerance of each other.
type PlateauRule struct {
	Window    int
	Tolerance float64
}

// NewPlateauRule creates a plateau rule.
func NewPlateauRule(window int, tolerance float64) *PlateauRule {
	if window < 2 {
		window = 2
	}
	return &PlateauRule{Window: window, Tolerance: tolerance}
}

func (r *PlateauRule) Name() string {
	return "plateau"
}

func (r *PlateauRule) Check(history []Step) (bool, string) {
	if len(history) < r.Window {
		return false, ""
	}

	recent := history[len(history)-r.Window:]
	lo, hi := recent[0].Distance, recent[0].Distance
	for _, step := range recent {
		lo = math.Min(lo, step.Distance)
		hi = math.Max(hi, step.Distance)
	}

	if spread := hi - lo; spread <= r.Tolerance {
		return true, fmt.Sprintf("distance plateaued for %d iterations (range: %.6g)", r.Window, spread)
	}
	return false, ""
}

// AnyRule stops as soon as one of its rules fires.
type AnyRule struct {
	rules []StopRule
}

// NewAnyRule combines rules; nil entries are ignored.
func NewAnyRule(rules ...StopRule) *AnyRule {
	a := &AnyRule{}
	for _, r := range rules {
		a.Add(r)
	}
	return a
}

// Add appends a rule.
func (a *AnyRule) Add(rule StopRule) {
	if rule != nil {
		a.rules = append(a.rules, rule)
	}
}

func (a *AnyRule) Name() string {
	return "any"
}

func (a *AnyRule) Check(history []Step) (bool, string) {
	for _, rule := range a.rules {
		if stop, reason := rule.Check(history); stop {
			return true, fmt.Sprintf("%s: %s", rule.Name(), reason)
		}
	}
	return false, ""
}
