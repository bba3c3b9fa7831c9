// Package backtest drives the simulation loop: one actuator owns a broker, a
// strategy and the price matrix, iterates the shared minute index and
// sequences market status updates, triggers, strategy hooks, passive market
// updates and account valuation for every bar.
package backtest

import (
	"time"

	"defi-backtest-lab/internal/domain"
)

// Snapshot is the read-only view of one bar handed to triggers and strategy
// hooks.
type Snapshot struct {
	Timestamp time.Time
	RowID     int
	Prices    domain.PriceRow
}
