// Package orchestrator coordinates batches of backtests: it builds each
// run, executes them with bounded concurrency and fans the results out to
// storage, report artifacts and the live stream.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"defi-backtest-lab/internal/backtest"
	"defi-backtest-lab/internal/domain"
	"defi-backtest-lab/internal/observability"
	"defi-backtest-lab/internal/reporting"
	"defi-backtest-lab/internal/storage"
	"defi-backtest-lab/internal/stream"
)

// Job describes one backtest to execute. Build constructs a fresh actuator
// with its own broker, markets and strategy; jobs never share state, which
// is what makes them safe to run concurrently.
type Job struct {
	RunID    string
	Name     string
	Strategy string
	Build    func(ctx context.Context) (*backtest.Actuator, error)
}

// Options configures an Orchestrator. The stores, generator and hub are all
// optional: a nil field disables that output.
type Options struct {
	RunStore    storage.BacktestRunStore
	ActionStore storage.ActionStore
	StatusStore storage.AccountStatusStore
	Reports     *reporting.Generator
	Hub         *stream.Hub
	Metrics     *observability.Metrics

	// Concurrency bounds the number of runs in flight. Defaults to 1.
	Concurrency int
	Logger      *zap.Logger
}

// Orchestrator executes jobs and persists their results.
type Orchestrator struct {
	runStore    storage.BacktestRunStore
	actionStore storage.ActionStore
	statusStore storage.AccountStatusStore
	reports     *reporting.Generator
	hub         *stream.Hub
	metrics     *observability.Metrics

	concurrency int
	logger      *zap.Logger
}

// New creates a new Orchestrator.
func New(opts Options) *Orchestrator {
	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		runStore:    opts.RunStore,
		actionStore: opts.ActionStore,
		statusStore: opts.StatusStore,
		reports:     opts.Reports,
		hub:         opts.Hub,
		metrics:     opts.Metrics,
		concurrency: concurrency,
		logger:      logger,
	}
}

// Outcome is the result of one completed job.
type Outcome struct {
	RunID     string
	Name      string
	Report    reporting.RunReport
	Artifacts reporting.Artifacts
}

// RunResult contains results from one orchestrator batch.
type RunResult struct {
	Completed []Outcome
	Errors    []string
}

// Run executes all jobs and waits for them to finish. Job failures are
// collected into the result; Run itself fails only on invalid input.
func (o *Orchestrator) Run(ctx context.Context, jobs []Job) (*RunResult, error) {
	for i, job := range jobs {
		if job.RunID == "" || job.Build == nil {
			return nil, fmt.Errorf("job %d: run id and build function are required", i)
		}
	}

	result := &RunResult{}
	var mu sync.Mutex
	var wg sync.WaitGroup
	sem := make(chan struct{}, o.concurrency)

	for _, job := range jobs {
		wg.Add(1)
		go func(job Job) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			outcome, err := o.runJob(ctx, job)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.Errors = append(result.Errors, fmt.Sprintf("run %s: %v", job.RunID, err))
				return
			}
			result.Completed = append(result.Completed, outcome)
		}(job)
	}
	wg.Wait()

	o.logger.Info("batch finished",
		zap.Int("jobs", len(jobs)),
		zap.Int("completed", len(result.Completed)),
		zap.Int("failed", len(result.Errors)))
	return result, nil
}

func (o *Orchestrator) runJob(ctx context.Context, job Job) (Outcome, error) {
	logger := o.logger.With(zap.String("run_id", job.RunID), zap.String("name", job.Name))

	actuator, err := job.Build(ctx)
	if err != nil {
		return Outcome{}, fmt.Errorf("build: %w", err)
	}

	var finish func()
	if o.hub != nil {
		obs := stream.NewRunObserver(o.hub, job.RunID, actuator.BarCount())
		actuator.AddObserver(obs)
		finish = obs.Finish
	}

	o.metrics.RecordRunStart()
	res, err := actuator.Run(ctx)
	if err != nil {
		o.metrics.RecordRunFinished("error", 0, 0)
		return Outcome{}, fmt.Errorf("run: %w", err)
	}
	o.metrics.RecordRunFinished("ok", res.Duration.Seconds(), res.Bars)
	for _, act := range res.Actions {
		o.metrics.RecordAction(string(act.Type))
		switch act.Type {
		case domain.ActionAaveLiquidation, domain.ActionSqueethLiquidation:
			o.metrics.RecordLiquidation(act.Market.Name)
		}
	}
	if finish != nil {
		finish()
	}

	report := reporting.Build(job.Name, job.Strategy, res)
	outcome := Outcome{RunID: job.RunID, Name: job.Name, Report: report}

	if err := o.persist(ctx, job, report, res); err != nil {
		return Outcome{}, err
	}

	if o.reports != nil {
		art, err := o.reports.Generate(report)
		if err != nil {
			return Outcome{}, fmt.Errorf("generate report: %w", err)
		}
		outcome.Artifacts = art
		o.metrics.RecordReportGenerated()
	}

	logger.Info("run finished",
		zap.Int("bars", res.Bars),
		zap.Int("actions", len(res.Actions)),
		zap.Float64("total_return", report.Metrics.TotalReturn))
	return outcome, nil
}

// persist writes the run summary, actions and status series. Duplicate keys
// mean the run was already persisted; re-running a named job is not an error.
func (o *Orchestrator) persist(ctx context.Context, job Job, report reporting.RunReport, res backtest.Result) error {
	if o.runStore != nil {
		run := &storage.BacktestRun{
			RunID:            job.RunID,
			Name:             job.Name,
			Strategy:         job.Strategy,
			StartTimeMs:      report.Start.UnixMilli(),
			EndTimeMs:        report.End.UnixMilli(),
			Bars:             report.Bars,
			InitialNetValue:  report.Metrics.InitialNetValue,
			FinalNetValue:    report.Metrics.FinalNetValue,
			TotalReturn:      report.Metrics.TotalReturn,
			AnnualizedReturn: report.Metrics.AnnualizedReturn,
			MaxDrawdown:      report.Metrics.MaxDrawdown,
			ActionCount:      len(res.Actions),
			CreatedAtMs:      time.Now().UnixMilli(),
		}
		if err := o.runStore.Insert(ctx, run); err != nil && !errors.Is(err, storage.ErrDuplicateKey) {
			return fmt.Errorf("persist run: %w", err)
		}
	}

	if o.actionStore != nil {
		records, err := storage.ActionRecords(job.RunID, res.Actions)
		if err != nil {
			return err
		}
		if err := o.actionStore.InsertBulk(ctx, records); err != nil && !errors.Is(err, storage.ErrDuplicateKey) {
			return fmt.Errorf("persist actions: %w", err)
		}
	}

	if o.statusStore != nil {
		records := storage.AccountStatusRecords(job.RunID, res.Statuses)
		if err := o.statusStore.InsertBulk(ctx, records); err != nil && !errors.Is(err, storage.ErrDuplicateKey) {
			return fmt.Errorf("persist statuses: %w", err)
		}
	}

	return nil
}
