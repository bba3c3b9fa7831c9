// Package main runs the configured batch of backtests once: it loads the
// minute data, executes every run and writes reports plus optional database
// persistence.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"defi-backtest-lab/internal/backtest"
	"defi-backtest-lab/internal/config"
	"defi-backtest-lab/internal/idhash"
	"defi-backtest-lab/internal/logging"
	"defi-backtest-lab/internal/orchestrator"
	"defi-backtest-lab/internal/reporting"
	"defi-backtest-lab/internal/verification"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to the YAML configuration")
	verify := flag.Bool("verify", false, "Re-execute every run twice and fail on nondeterministic results")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, err := logging.New(cfg.Log.Dir, cfg.Log.Level)
	if err != nil {
		log.Fatalf("build logger: %v", err)
	}
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("shutting down", zap.String("signal", sig.String()))
		cancel()
	}()

	stores, closeStores, err := orchestrator.OpenStores(ctx, cfg)
	if err != nil {
		closeStores()
		logger.Fatal("build stores", zap.Error(err))
	}
	defer closeStores()

	var reports *reporting.Generator
	if cfg.Report.Dir != "" {
		reports = reporting.NewGenerator(cfg.Report.Dir, logger)
	}

	jobs, err := orchestrator.JobsFromConfig(cfg, logger)
	if err != nil {
		logger.Fatal("build jobs", zap.Error(err))
	}

	o := orchestrator.New(orchestrator.Options{
		RunStore:    stores.Runs,
		ActionStore: stores.Actions,
		StatusStore: stores.Statuses,
		Reports:     reports,
		Concurrency: cfg.Concurrency,
		Logger:      logger,
	})

	started := time.Now()
	result, err := o.Run(ctx, jobs)
	if err != nil {
		logger.Fatal("run batch", zap.Error(err))
	}

	printResult(result, time.Since(started))

	if *verify {
		builds := make(map[string]func(ctx context.Context) (*backtest.Actuator, error), len(jobs))
		for _, job := range jobs {
			builds[job.RunID] = job.Build
		}
		report, err := verification.New(logger).VerifyAll(ctx, builds)
		if err != nil {
			logger.Fatal("verify batch", zap.Error(err))
		}
		printVerification(report)
		if report.DivergentRuns > 0 {
			os.Exit(1)
		}
	}

	if len(result.Errors) > 0 {
		os.Exit(1)
	}
}

func printResult(result *orchestrator.RunResult, elapsed time.Duration) {
	fmt.Println()
	fmt.Println("=== Batch Result ===")
	fmt.Printf("Completed:  %d\n", len(result.Completed))
	fmt.Printf("Failed:     %d\n", len(result.Errors))
	fmt.Printf("Elapsed:    %v\n", elapsed.Round(time.Millisecond))
	fmt.Println()

	for _, outcome := range result.Completed {
		r := outcome.Report
		fmt.Printf("%s (%s)\n", outcome.Name, idhash.ShortRunID(outcome.RunID))
		fmt.Printf("  Window:            %s .. %s\n", r.Start.Format(time.RFC3339), r.End.Format(time.RFC3339))
		fmt.Printf("  Bars:              %d\n", r.Bars)
		fmt.Printf("  Net Value:         %.2f -> %.2f\n", r.Metrics.InitialNetValue, r.Metrics.FinalNetValue)
		fmt.Printf("  Total Return:      %.2f%%\n", r.Metrics.TotalReturn*100)
		fmt.Printf("  Annualized:        %.2f%%\n", r.Metrics.AnnualizedReturn*100)
		fmt.Printf("  Max Drawdown:      %.2f%%\n", r.Metrics.MaxDrawdown*100)
		if r.Verdict != nil {
			fmt.Printf("  Decision:          %s\n", r.Verdict.Decision)
		}
		if outcome.Artifacts.AccountCSV != "" {
			fmt.Printf("  Account CSV:       %s\n", outcome.Artifacts.AccountCSV)
			fmt.Printf("  Action JSON:       %s\n", outcome.Artifacts.ActionJSON)
			fmt.Printf("  Summary:           %s\n", outcome.Artifacts.Summary)
		}
		fmt.Println()
	}
	for _, msg := range result.Errors {
		fmt.Printf("FAILED: %s\n", msg)
	}
}

func printVerification(report *verification.Report) {
	fmt.Println("=== Verification ===")
	fmt.Printf("Runs:       %d\n", report.TotalRuns)
	fmt.Printf("Matched:    %d\n", report.MatchedRuns)
	fmt.Printf("Divergent:  %d\n", report.DivergentRuns)
	for _, r := range report.Results {
		if r.Match {
			continue
		}
		fmt.Printf("DIVERGED: %s\n", idhash.ShortRunID(r.RunID))
		for _, d := range r.Divergences {
			fmt.Printf("  %s: expected %v, got %v\n", d.Field, d.Expected, d.Actual)
		}
	}
	fmt.Println()
}
