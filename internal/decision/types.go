// Package decision gates finished backtest runs: it turns a run's performance
// metrics into an explicit GO/NO-GO verdict with a reviewable checklist, so a
// strategy is promoted or rejected on recorded criteria instead of a glance at
// the equity curve.
package decision

// Decision represents the final GO/NO-GO result.
type Decision string

const (
	DecisionGO   Decision = "GO"
	DecisionNOGO Decision = "NO-GO"
)

// DecisionInput contains the numeric facts one run is judged on.
type DecisionInput struct {
	// Strategy and run size for the report header.
	Strategy string
	Bars     int

	// Performance over the whole run.
	TotalReturn      float64
	AnnualizedReturn float64
	MaxDrawdown      float64

	// Per-bar return distribution.
	ReturnMedian float64
	ReturnP10    float64

	// Liquidations suffered during the run (Aave or Squeeth).
	Liquidations int
}

// CriterionResult represents pass/fail for one criterion.
type CriterionResult struct {
	Name      string
	Threshold string
	Actual    string
	Pass      bool
}

// DecisionResult contains the final decision with checklist.
type DecisionResult struct {
	Decision   Decision
	GOCriteria []CriterionResult
	NOGOChecks []CriterionResult
}
