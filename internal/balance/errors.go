package balance

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidParams marks Params outside their declared domain or unknown to the system.
	ErrInvalidParams = errors.New("invalid params")
	// ErrIncompleteTargets marks Targets missing a band for a KPI under RequireAll.
	ErrIncompleteTargets = errors.New("incomplete targets")
	// ErrMalformedTargets marks Targets with an inverted or NaN band, or an unknown KPI.
	ErrMalformedTargets = errors.New("malformed targets")
	// ErrNonConvergence marks a run that stopped before every band was satisfied.
	ErrNonConvergence = errors.New("non-convergence")
	// ErrDegenerateModel marks a model that cannot structurally reach its targets.
	// Systems return it (wrapped) from Simulate.
	ErrDegenerateModel = errors.New("degenerate model")
)

// Reason explains why a balance run stopped.
type Reason string

const (
	ReasonConverged        Reason = "converged"
	ReasonBudgetExhausted  Reason = "budget_exhausted"
	ReasonStagnated        Reason = "stagnated"
	ReasonDegenerateModel  Reason = "degenerate_model"
	ReasonInvalidParams    Reason = "invalid_params"
	ReasonSimulationFailed Reason = "simulation_failed"
)

// NonConvergence reports whether the reason is an ordinary failure to reach
// the targets within budget.
func (r Reason) NonConvergence() bool {
	return r == ReasonBudgetExhausted || r == ReasonStagnated
}

// ParamDomainError indicates a parameter value outside its declared domain
type ParamDomainError struct {
	Param  string
	Value  float64
	Domain Domain
	// Unknown is set when the system does not declare the parameter at all.
	Unknown bool
}

func (e *ParamDomainError) Error() string {
	if e.Unknown {
		return "unknown parameter: " + e.Param
	}
	return fmt.Sprintf("parameter %s=%g outside domain [%g, %g]", e.Param, e.Value, e.Domain.Min, e.Domain.Max)
}

func (e *ParamDomainError) Unwrap() error {
	return ErrInvalidParams
}

// Degenerate wraps ErrDegenerateModel with a system-specific explanation.
func Degenerate(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrDegenerateModel, fmt.Sprintf(format, args...))
}
