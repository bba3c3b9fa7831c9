package orchestrator

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"defi-backtest-lab/internal/aave"
	"defi-backtest-lab/internal/backtest"
	"defi-backtest-lab/internal/broker"
	"defi-backtest-lab/internal/config"
	"defi-backtest-lab/internal/data"
	"defi-backtest-lab/internal/domain"
	"defi-backtest-lab/internal/squeeth"
	"defi-backtest-lab/internal/storage"
	chstore "defi-backtest-lab/internal/storage/clickhouse"
	"defi-backtest-lab/internal/storage/memory"
	"defi-backtest-lab/internal/storage/migrations"
	pgstore "defi-backtest-lab/internal/storage/postgres"
	"defi-backtest-lab/internal/strategy"
	"defi-backtest-lab/internal/uniswap"
)

// Stores bundles the three result stores a batch writes to.
type Stores struct {
	Runs     storage.BacktestRunStore
	Actions  storage.ActionStore
	Statuses storage.AccountStatusStore
}

// OpenStores wires persistence: in-memory by default, postgres and clickhouse
// when their DSNs are configured. The returned close function is safe to call
// even when OpenStores fails.
func OpenStores(ctx context.Context, cfg *config.Config) (Stores, func(), error) {
	stores := Stores{
		Runs:     memory.NewBacktestRunStore(),
		Actions:  memory.NewActionStore(),
		Statuses: memory.NewAccountStatusStore(),
	}
	closers := []func(){}
	closeAll := func() {
		for _, c := range closers {
			c()
		}
	}

	if dsn := cfg.Storage.PostgresDSN; dsn != "" {
		pool, err := pgstore.NewPool(ctx, dsn)
		if err != nil {
			return Stores{}, closeAll, fmt.Errorf("connect to postgres: %w", err)
		}
		closers = append(closers, pool.Close)
		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			return Stores{}, closeAll, fmt.Errorf("postgres migrations: %w", err)
		}
		stores.Runs = pgstore.NewBacktestRunStore(pool)
		stores.Actions = pgstore.NewActionStore(pool)
	}

	if dsn := cfg.Storage.ClickhouseDSN; dsn != "" {
		conn, err := migrations.RunClickhouseMigrations(ctx, dsn)
		if err != nil {
			return Stores{}, closeAll, fmt.Errorf("clickhouse migrations: %w", err)
		}
		closers = append(closers, func() { conn.Close() })
		stores.Statuses = chstore.NewAccountStatusStore(conn)
	}

	return stores, closeAll, nil
}

// JobsFromConfig turns every configured run into a job with its own broker,
// markets and strategy.
func JobsFromConfig(cfg *config.Config, logger *zap.Logger) ([]Job, error) {
	tokens := tokenSet(cfg)
	if _, ok := tokens[strings.ToUpper(cfg.Quote)]; !ok {
		return nil, fmt.Errorf("%w: quote token %s not declared", domain.ErrConfiguration, cfg.Quote)
	}

	jobs := make([]Job, 0, len(cfg.Runs))
	for _, run := range cfg.Runs {
		run := run
		jobs = append(jobs, Job{
			RunID:    run.ID,
			Name:     run.Name,
			Strategy: run.Strategy.Type,
			Build: func(ctx context.Context) (*backtest.Actuator, error) {
				return assembleRun(cfg, run, tokens, logger)
			},
		})
	}
	return jobs, nil
}

func tokenSet(cfg *config.Config) strategy.TokenSet {
	tokens := make(strategy.TokenSet, len(cfg.Tokens))
	for _, tc := range cfg.Tokens {
		token := domain.NewTokenInfo(tc.Name, tc.Decimals)
		tokens[token.Name] = token
	}
	return tokens
}

// assembleRun loads the data window and assembles one independent run.
func assembleRun(cfg *config.Config, run config.RunConfig, tokens strategy.TokenSet, logger *zap.Logger) (*backtest.Actuator, error) {
	start, end, err := cfg.Data.Range()
	if err != nil {
		return nil, err
	}
	src := data.NewSource(cfg.Data.Dir, cfg.Data.Chain, logger)

	prices, err := src.LoadPrices(cfg.Data.PricesFile)
	if err != nil {
		return nil, fmt.Errorf("load prices: %w", err)
	}
	prices = prices.Window(start, end)

	quote := tokens[strings.ToUpper(cfg.Quote)]
	b, err := broker.New(broker.Options{QuoteToken: quote, Logger: logger})
	if err != nil {
		return nil, err
	}
	for name, amount := range run.Balances {
		token, ok := tokens[strings.ToUpper(name)]
		if !ok {
			return nil, fmt.Errorf("%w: run %s funds undeclared token %s", domain.ErrConfiguration, run.ID, name)
		}
		b.SetBalance(token, decimal.NewFromFloat(amount))
	}

	lpMarkets := make(map[string]*uniswap.LPMarket, len(cfg.Markets.Uniswap))
	for _, mc := range cfg.Markets.Uniswap {
		token0, ok := tokens[strings.ToUpper(mc.Token0)]
		if !ok {
			return nil, fmt.Errorf("%w: market %s uses undeclared token %s", domain.ErrConfiguration, mc.Name, mc.Token0)
		}
		token1, ok := tokens[strings.ToUpper(mc.Token1)]
		if !ok {
			return nil, fmt.Errorf("%w: market %s uses undeclared token %s", domain.ErrConfiguration, mc.Name, mc.Token1)
		}
		poolQuote, ok := tokens[strings.ToUpper(mc.Quote)]
		if !ok {
			return nil, fmt.Errorf("%w: market %s uses undeclared quote %s", domain.ErrConfiguration, mc.Name, mc.Quote)
		}
		pool, err := uniswap.NewPool(token0, token1, decimal.NewFromFloat(mc.Fee), poolQuote)
		if err != nil {
			return nil, err
		}
		rows, err := src.LoadUniswap(mc.Pool, start, end)
		if err != nil {
			return nil, fmt.Errorf("load uniswap %s: %w", mc.Name, err)
		}
		m, err := uniswap.New(uniswap.Options{Name: mc.Name, Pool: pool, Data: rows, Logger: logger})
		if err != nil {
			return nil, err
		}
		if err := b.AddMarket(m); err != nil {
			return nil, err
		}
		lpMarkets[mc.Name] = m
	}

	if mc := cfg.Markets.Aave; mc != nil {
		risk, _, err := src.LoadRiskParameters(mc.RiskParamsFile)
		if err != nil {
			return nil, fmt.Errorf("load risk parameters: %w", err)
		}
		m, err := aave.New(aave.Options{Name: mc.Name, QuoteToken: quote, RiskParameters: risk, Logger: logger})
		if err != nil {
			return nil, err
		}
		for name, address := range mc.Reserves {
			token, ok := tokens[strings.ToUpper(name)]
			if !ok {
				return nil, fmt.Errorf("%w: market %s uses undeclared token %s", domain.ErrConfiguration, mc.Name, name)
			}
			rows, err := src.LoadAave(address, start, end)
			if err != nil {
				return nil, fmt.Errorf("load aave reserve %s: %w", name, err)
			}
			if err := m.SetTokenData(token, rows); err != nil {
				return nil, err
			}
		}
		if err := b.AddMarket(m); err != nil {
			return nil, err
		}
	}

	if mc := cfg.Markets.Squeeth; mc != nil {
		eth, ok := tokens[strings.ToUpper(mc.Eth)]
		if !ok {
			return nil, fmt.Errorf("%w: market %s uses undeclared token %s", domain.ErrConfiguration, mc.Name, mc.Eth)
		}
		osqth, ok := tokens[strings.ToUpper(mc.Osqth)]
		if !ok {
			return nil, fmt.Errorf("%w: market %s uses undeclared token %s", domain.ErrConfiguration, mc.Name, mc.Osqth)
		}
		var uniMarket *uniswap.LPMarket
		if mc.UniMarket != "" {
			uniMarket, ok = lpMarkets[mc.UniMarket]
			if !ok {
				return nil, fmt.Errorf("%w: market %s references unknown LP market %s",
					domain.ErrConfiguration, mc.Name, mc.UniMarket)
			}
		}
		rows, err := src.LoadSqueeth(start, end)
		if err != nil {
			return nil, fmt.Errorf("load squeeth: %w", err)
		}
		m, err := squeeth.New(squeeth.Options{
			Name:       mc.Name,
			QuoteToken: quote,
			Eth:        eth,
			Osqth:      osqth,
			UniMarket:  uniMarket,
			Data:       rows,
			Logger:     logger,
		})
		if err != nil {
			return nil, err
		}
		if err := b.AddMarket(m); err != nil {
			return nil, err
		}
	}

	s, err := strategy.FromConfig(run.Strategy.Strategy(), tokens)
	if err != nil {
		return nil, fmt.Errorf("run %s: %w", run.ID, err)
	}

	return backtest.New(backtest.Options{
		Broker:   b,
		Strategy: s,
		Prices:   prices,
		Logger:   logger.With(zap.String("run_id", run.ID)),
	})
}
