package decision

import (
	"defi-backtest-lab/internal/domain"
	"defi-backtest-lab/internal/metrics"
)

// BuildInput assembles a DecisionInput from a run's computed metrics and its
// action tally. Liquidations counts both Aave and Squeeth liquidation actions;
// a reduce-debt that saved the vault is not a liquidation.
func BuildInput(strategy string, bars int, m metrics.RunMetrics, actionCounts map[domain.ActionType]int) DecisionInput {
	return DecisionInput{
		Strategy:         strategy,
		Bars:             bars,
		TotalReturn:      m.TotalReturn,
		AnnualizedReturn: m.AnnualizedReturn,
		MaxDrawdown:      m.MaxDrawdown,
		ReturnMedian:     m.ReturnMedian,
		ReturnP10:        m.ReturnP10,
		Liquidations: actionCounts[domain.ActionAaveLiquidation] +
			actionCounts[domain.ActionSqueethLiquidation],
	}
}
