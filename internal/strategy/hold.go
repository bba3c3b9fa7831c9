package strategy

import "defi-backtest-lab/internal/backtest"

// Hold never trades. It is the baseline every other strategy is compared
// against: net value moves only with market marks.
type Hold struct {
	backtest.BaseStrategy
}

var _ Strategy = (*Hold)(nil)

// NewHold creates a Hold strategy.
func NewHold() *Hold { return &Hold{} }

func (s *Hold) ID() string { return TypeHold }
