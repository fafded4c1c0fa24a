package systems

import (
	"fmt"
	"math"
)

// Upper bounds on the loop counts a single simulate call will run.
const (
	MaxTicks   = 1_000_000
	MaxLevels  = 10_000
	MaxMatches = 1_000_000
)

// envCount reads a count-like env value, rounded up, and rejects values that
// are not finite or exceed limit.
func envCount(name string, v float64, limit int) (int, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%s must be finite, got %g", name, v)
	}
	if v > float64(limit) {
		return 0, fmt.Errorf("%s %g exceeds the limit of %d", name, v, limit)
	}
	return int(math.Ceil(v)), nil
}
