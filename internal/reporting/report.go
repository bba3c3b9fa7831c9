// Package reporting serializes finished runs: the account status series as
// CSV, the action list as JSON and a human-readable markdown summary.
package reporting

import (
	"time"

	"defi-backtest-lab/internal/backtest"
	"defi-backtest-lab/internal/decision"
	"defi-backtest-lab/internal/domain"
	"defi-backtest-lab/internal/metrics"
)

// RunReport is everything the serializers need about one finished run.
type RunReport struct {
	Name        string
	Strategy    string
	GeneratedAt time.Time

	Start time.Time
	End   time.Time
	Bars  int

	Elapsed      time.Duration
	Metrics      metrics.RunMetrics
	ActionCounts map[domain.ActionType]int
	Verdict      *decision.DecisionResult

	Statuses []domain.AccountStatus
	Actions  []domain.Action
}

// Build assembles a RunReport from an actuator result.
func Build(name, strategy string, res backtest.Result) RunReport {
	r := RunReport{
		Name:         name,
		Strategy:     strategy,
		GeneratedAt:  time.Now().UTC(),
		Bars:         res.Bars,
		Elapsed:      res.Duration,
		ActionCounts: metrics.CountActions(res.Actions),
		Statuses:     res.Statuses,
		Actions:      res.Actions,
	}
	if len(res.Statuses) > 0 {
		r.Start = res.Statuses[0].Timestamp
		r.End = res.Statuses[len(res.Statuses)-1].Timestamp
	}
	interval := time.Minute
	if len(res.Statuses) > 1 {
		interval = res.Statuses[1].Timestamp.Sub(res.Statuses[0].Timestamp)
	}
	r.Metrics = metrics.Compute(res.Statuses, interval)
	r.Verdict = decision.NewEvaluator().Evaluate(
		decision.BuildInput(strategy, res.Bars, r.Metrics, r.ActionCounts))
	return r
}
