// Package verification checks that backtest runs are deterministic: the same
// configuration executed twice must emit the same actions and the same
// account status series. A divergence means a strategy or market leaked
// unordered state into the loop.
package verification

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"defi-backtest-lab/internal/backtest"
)

// NetValueTolerance bounds the allowed per-bar net value difference between
// two executions. Replays of the same decimal arithmetic should agree far
// below this.
var NetValueTolerance = decimal.New(1, -10)

// FieldDivergence represents a mismatch between the reference execution and
// the replayed one.
type FieldDivergence struct {
	Field    string
	Expected interface{}
	Actual   interface{}
}

// RunVerification contains the result of verifying a single run.
type RunVerification struct {
	RunID       string
	Match       bool
	Divergences []FieldDivergence
}

// Report contains results for batch verification.
type Report struct {
	TotalRuns     int
	MatchedRuns   int
	DivergentRuns int
	Results       []RunVerification
}

// Verifier re-executes runs and compares the two results.
type Verifier struct {
	logger *zap.Logger
}

// New creates a Verifier.
func New(logger *zap.Logger) *Verifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Verifier{logger: logger}
}

// VerifyRun builds and executes the job twice with independent state and
// compares the results field by field.
func (v *Verifier) VerifyRun(ctx context.Context, runID string, build func(ctx context.Context) (*backtest.Actuator, error)) (*RunVerification, error) {
	reference, err := execute(ctx, build)
	if err != nil {
		return nil, fmt.Errorf("reference execution: %w", err)
	}
	replayed, err := execute(ctx, build)
	if err != nil {
		return nil, fmt.Errorf("replay execution: %w", err)
	}

	divergences := CompareResults(reference, replayed)
	result := &RunVerification{
		RunID:       runID,
		Match:       len(divergences) == 0,
		Divergences: divergences,
	}
	if result.Match {
		v.logger.Info("run verified deterministic",
			zap.String("run_id", runID),
			zap.Int("bars", reference.Bars),
			zap.Int("actions", len(reference.Actions)))
	} else {
		v.logger.Warn("run diverged between executions",
			zap.String("run_id", runID),
			zap.Int("divergences", len(divergences)))
	}
	return result, nil
}

// VerifyAll verifies every job and aggregates a report.
func (v *Verifier) VerifyAll(ctx context.Context, jobs map[string]func(ctx context.Context) (*backtest.Actuator, error)) (*Report, error) {
	report := &Report{}
	for runID, build := range jobs {
		result, err := v.VerifyRun(ctx, runID, build)
		if err != nil {
			return nil, fmt.Errorf("verify run %s: %w", runID, err)
		}
		report.TotalRuns++
		if result.Match {
			report.MatchedRuns++
		} else {
			report.DivergentRuns++
		}
		report.Results = append(report.Results, *result)
	}
	return report, nil
}

func execute(ctx context.Context, build func(ctx context.Context) (*backtest.Actuator, error)) (backtest.Result, error) {
	actuator, err := build(ctx)
	if err != nil {
		return backtest.Result{}, fmt.Errorf("build: %w", err)
	}
	return actuator.Run(ctx)
}

// CompareResults compares two run results and returns divergences. Actions
// must match exactly including their serialized detail payload; net values
// must agree within NetValueTolerance.
func CompareResults(reference, replayed backtest.Result) []FieldDivergence {
	var divergences []FieldDivergence

	if reference.Bars != replayed.Bars {
		divergences = append(divergences, FieldDivergence{
			Field:    "Bars",
			Expected: reference.Bars,
			Actual:   replayed.Bars,
		})
	}

	if len(reference.Actions) != len(replayed.Actions) {
		divergences = append(divergences, FieldDivergence{
			Field:    "ActionCount",
			Expected: len(reference.Actions),
			Actual:   len(replayed.Actions),
		})
	} else {
		for i := range reference.Actions {
			divergences = append(divergences, compareAction(i, reference, replayed)...)
		}
	}

	if len(reference.Statuses) != len(replayed.Statuses) {
		divergences = append(divergences, FieldDivergence{
			Field:    "StatusCount",
			Expected: len(reference.Statuses),
			Actual:   len(replayed.Statuses),
		})
		return divergences
	}
	for i := range reference.Statuses {
		ref, rep := reference.Statuses[i], replayed.Statuses[i]
		if !ref.Timestamp.Equal(rep.Timestamp) {
			divergences = append(divergences, FieldDivergence{
				Field:    fmt.Sprintf("Statuses[%d].Timestamp", i),
				Expected: ref.Timestamp,
				Actual:   rep.Timestamp,
			})
		}
		if ref.NetValue.Sub(rep.NetValue).Abs().GreaterThan(NetValueTolerance) {
			divergences = append(divergences, FieldDivergence{
				Field:    fmt.Sprintf("Statuses[%d].NetValue", i),
				Expected: ref.NetValue.String(),
				Actual:   rep.NetValue.String(),
			})
		}
	}
	return divergences
}

func compareAction(i int, reference, replayed backtest.Result) []FieldDivergence {
	var divergences []FieldDivergence
	ref, rep := reference.Actions[i], replayed.Actions[i]

	if !ref.Timestamp.Equal(rep.Timestamp) {
		divergences = append(divergences, FieldDivergence{
			Field:    fmt.Sprintf("Actions[%d].Timestamp", i),
			Expected: ref.Timestamp,
			Actual:   rep.Timestamp,
		})
	}
	if ref.Market.Name != rep.Market.Name {
		divergences = append(divergences, FieldDivergence{
			Field:    fmt.Sprintf("Actions[%d].Market", i),
			Expected: ref.Market.Name,
			Actual:   rep.Market.Name,
		})
	}
	if ref.Type != rep.Type {
		divergences = append(divergences, FieldDivergence{
			Field:    fmt.Sprintf("Actions[%d].Type", i),
			Expected: string(ref.Type),
			Actual:   string(rep.Type),
		})
	}

	refDetail, refErr := json.Marshal(ref.Detail)
	repDetail, repErr := json.Marshal(rep.Detail)
	if refErr != nil || repErr != nil || string(refDetail) != string(repDetail) {
		divergences = append(divergences, FieldDivergence{
			Field:    fmt.Sprintf("Actions[%d].Detail", i),
			Expected: string(refDetail),
			Actual:   string(repDetail),
		})
	}
	return divergences
}
