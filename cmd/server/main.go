// Package main runs the long-lived service: it re-executes the configured
// batch of backtests on a schedule and serves Prometheus metrics plus a
// WebSocket stream of live run progress.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"defi-backtest-lab/internal/config"
	"defi-backtest-lab/internal/logging"
	"defi-backtest-lab/internal/observability"
	"defi-backtest-lab/internal/orchestrator"
	"defi-backtest-lab/internal/reporting"
	"defi-backtest-lab/internal/stream"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to the YAML configuration")
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

	metrics := observability.NewMetrics("", nil)
	hub := stream.NewHub(logger)
	go hub.Run()

	o := orchestrator.New(orchestrator.Options{
		RunStore:    stores.Runs,
		ActionStore: stores.Actions,
		StatusStore: stores.Statuses,
		Reports:     reports,
		Hub:         hub,
		Metrics:     metrics,
		Concurrency: cfg.Concurrency,
		Logger:      logger,
	})

	mux := http.NewServeMux()
	mux.Handle("/metrics", observability.Handler())
	mux.HandleFunc("/ws", hub.HandleWS)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	srv := &http.Server{Addr: cfg.Server.Addr, Handler: mux}
	go func() {
		logger.Info("http server listening", zap.String("addr", cfg.Server.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server failed", zap.Error(err))
			cancel()
		}
	}()

	runBatches(ctx, cfg, o, logger)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

// runBatches executes the configured batch immediately and then on every
// tick of the configured interval, until the context is cancelled. Jobs are
// rebuilt for every cycle so each execution gets fresh, disjoint state.
func runBatches(ctx context.Context, cfg *config.Config, o *orchestrator.Orchestrator, logger *zap.Logger) {
	ticker := time.NewTicker(cfg.Server.RunInterval)
	defer ticker.Stop()

	cycle := 0
	for {
		cycle++
		jobs, err := orchestrator.JobsFromConfig(cfg, logger)
		if err != nil {
			logger.Error("build jobs", zap.Int("cycle", cycle), zap.Error(err))
		} else {
			result, err := o.Run(ctx, jobs)
			if err != nil {
				logger.Error("run batch", zap.Int("cycle", cycle), zap.Error(err))
			} else {
				logger.Info("batch cycle finished",
					zap.Int("cycle", cycle),
					zap.Int("completed", len(result.Completed)),
					zap.Int("failed", len(result.Errors)))
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
