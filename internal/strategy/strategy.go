// Package strategy provides ready-made strategies that cmd binaries can
// build from scalar configuration. Each strategy locates its market on the
// broker by name during Initialize and registers its triggers there.
package strategy

import "defi-backtest-lab/internal/backtest"

// Strategy is a backtest strategy with a stable identifier embedding its
// parameters.
type Strategy interface {
	backtest.Strategy

	// ID returns the strategy identifier including parameters.
	ID() string
}
