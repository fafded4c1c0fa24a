package systems

import (
	"math"

	"github.com/avila-gabriel/game-balance/internal/balance"
	"github.com/avila-gabriel/game-balance/pkg/logger"
)

func quietBalancer() *balance.Balancer {
	return balance.NewBalancer(balance.DefaultBudget()).WithLogger(logger.Discard())
}

func approxEqual(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}
