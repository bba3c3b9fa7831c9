// Package config loads the YAML configuration of the cmd binaries.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"defi-backtest-lab/internal/idhash"
	"defi-backtest-lab/internal/strategy"
)

// Config is the full application configuration.
type Config struct {
	Log         LogConfig     `mapstructure:"log"`
	Data        DataConfig    `mapstructure:"data"`
	Quote       string        `mapstructure:"quote"`
	Tokens      []TokenConfig `mapstructure:"tokens"`
	Markets     MarketsConfig `mapstructure:"markets"`
	Runs        []RunConfig   `mapstructure:"runs"`
	Storage     StorageConfig `mapstructure:"storage"`
	Report      ReportConfig  `mapstructure:"report"`
	Server      ServerConfig  `mapstructure:"server"`
	Concurrency int           `mapstructure:"concurrency"`
}

// LogConfig configures the logger. An empty dir disables file output.
type LogConfig struct {
	Dir   string `mapstructure:"dir"`
	Level string `mapstructure:"level"`
}

// DataConfig locates the minute-data folder and the half-open backtest
// window [start, end). The YAML layer hands unquoted RFC 3339 timestamps to
// us as time.Time already; quoted ones go through the string decode hook.
type DataConfig struct {
	Dir        string    `mapstructure:"dir"`
	Chain      string    `mapstructure:"chain"`
	Start      time.Time `mapstructure:"start"`
	End        time.Time `mapstructure:"end"`
	PricesFile string    `mapstructure:"prices_file"`
}

// Range validates the backtest window and returns it in UTC.
func (d DataConfig) Range() (time.Time, time.Time, error) {
	if d.Start.IsZero() {
		return time.Time{}, time.Time{}, fmt.Errorf("data.start is required")
	}
	if d.End.IsZero() {
		return time.Time{}, time.Time{}, fmt.Errorf("data.end is required")
	}
	if !d.End.After(d.Start) {
		return time.Time{}, time.Time{}, fmt.Errorf("data.end %s is not after data.start %s",
			d.End.Format(time.RFC3339), d.Start.Format(time.RFC3339))
	}
	return d.Start.UTC(), d.End.UTC(), nil
}

// TokenConfig declares one token.
type TokenConfig struct {
	Name     string `mapstructure:"name"`
	Decimals int32  `mapstructure:"decimals"`
}

// MarketsConfig declares the markets every run gets.
type MarketsConfig struct {
	Uniswap []UniswapMarketConfig `mapstructure:"uniswap"`
	Aave    *AaveMarketConfig     `mapstructure:"aave"`
	Squeeth *SqueethMarketConfig  `mapstructure:"squeeth"`
}

// UniswapMarketConfig declares one LP market over a pool's minute data.
type UniswapMarketConfig struct {
	Name   string  `mapstructure:"name"`
	Pool   string  `mapstructure:"pool"`
	Token0 string  `mapstructure:"token0"`
	Token1 string  `mapstructure:"token1"`
	Quote  string  `mapstructure:"quote"`
	Fee    float64 `mapstructure:"fee"`
}

// AaveMarketConfig declares the Aave market and its reserve data files.
type AaveMarketConfig struct {
	Name           string            `mapstructure:"name"`
	RiskParamsFile string            `mapstructure:"risk_params_file"`
	Reserves       map[string]string `mapstructure:"reserves"` // token name -> address
}

// SqueethMarketConfig declares the squeeth controller market.
type SqueethMarketConfig struct {
	Name      string `mapstructure:"name"`
	Eth       string `mapstructure:"eth"`
	Osqth     string `mapstructure:"osqth"`
	UniMarket string `mapstructure:"uni_market"`
}

// RunConfig declares one backtest: wallet funding plus a strategy.
type RunConfig struct {
	ID       string             `mapstructure:"id"`
	Name     string             `mapstructure:"name"`
	Balances map[string]float64 `mapstructure:"balances"`
	Strategy StrategyConfig     `mapstructure:"strategy"`
}

// StrategyConfig mirrors strategy.Config with mapstructure tags.
type StrategyConfig struct {
	Type   string `mapstructure:"type"`
	Market string `mapstructure:"market"`

	IntervalMs *int64   `mapstructure:"interval_ms"`
	RangePct   *float64 `mapstructure:"range_pct"`

	CollateralToken    *string  `mapstructure:"collateral_token"`
	CollateralAmount   *float64 `mapstructure:"collateral_amount"`
	BorrowToken        *string  `mapstructure:"borrow_token"`
	BorrowRatio        *float64 `mapstructure:"borrow_ratio"`
	MinHealthFactor    *float64 `mapstructure:"min_health_factor"`
	TargetHealthFactor *float64 `mapstructure:"target_health_factor"`

	DepositEth *float64 `mapstructure:"deposit_eth"`
	CollatRate *float64 `mapstructure:"collat_rate"`
}

// Strategy converts to the factory's config type.
func (s StrategyConfig) Strategy() strategy.Config {
	return strategy.Config{
		Type:               s.Type,
		Market:             s.Market,
		IntervalMs:         s.IntervalMs,
		RangePct:           s.RangePct,
		CollateralToken:    s.CollateralToken,
		CollateralAmount:   s.CollateralAmount,
		BorrowToken:        s.BorrowToken,
		BorrowRatio:        s.BorrowRatio,
		MinHealthFactor:    s.MinHealthFactor,
		TargetHealthFactor: s.TargetHealthFactor,
		DepositEth:         s.DepositEth,
		CollatRate:         s.CollatRate,
	}
}

// StorageConfig holds the persistence DSNs. Empty DSNs keep results in
// memory only.
type StorageConfig struct {
	PostgresDSN   string `mapstructure:"postgres_dsn"`
	ClickhouseDSN string `mapstructure:"clickhouse_dsn"`
}

// ReportConfig configures report artifact output.
type ReportConfig struct {
	Dir string `mapstructure:"dir"`
}

// ServerConfig configures cmd/server.
type ServerConfig struct {
	Addr string `mapstructure:"addr"`
	// RunInterval is how often the batch is re-executed, e.g. "1h".
	RunInterval time.Duration `mapstructure:"run_interval"`
}

// LoadConfig reads, env-overrides and validates a config file.
func LoadConfig(filePath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(filePath)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	v.AutomaticEnv()
	v.SetEnvPrefix("BACKTEST")

	if dsn := os.Getenv("POSTGRES_DSN"); dsn != "" {
		v.Set("storage.postgres_dsn", dsn)
	}
	if dsn := os.Getenv("CLICKHOUSE_DSN"); dsn != "" {
		v.Set("storage.clickhouse_dsn", dsn)
	}

	var config Config
	if err := v.Unmarshal(&config, viper.DecodeHook(decodeHooks())); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	applyDefaults(&config)
	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &config, nil
}

// decodeHooks keeps viper's stock duration and slice hooks and adds RFC 3339
// string parsing so quoted timestamps decode like native YAML ones.
func decodeHooks() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeHookFunc(time.RFC3339),
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)
}

func applyDefaults(config *Config) {
	if config.Log.Level == "" {
		config.Log.Level = "info"
	}
	if config.Concurrency <= 0 {
		config.Concurrency = 1
	}
	if config.Server.Addr == "" {
		config.Server.Addr = ":8080"
	}
	if config.Server.RunInterval <= 0 {
		config.Server.RunInterval = time.Hour
	}
	// Runs without an explicit id get a deterministic one so that repeated
	// invocations of the same configuration persist idempotently.
	if start, end, err := config.Data.Range(); err == nil {
		for i := range config.Runs {
			run := &config.Runs[i]
			if run.ID == "" {
				run.ID = idhash.ComputeRunID(run.Name, run.Strategy.Type, start, end)
			}
		}
	}
}

func validateConfig(config *Config) error {
	if config.Data.Dir == "" {
		return fmt.Errorf("data.dir is required")
	}
	if config.Data.Chain == "" {
		return fmt.Errorf("data.chain is required")
	}
	if _, _, err := config.Data.Range(); err != nil {
		return err
	}
	if len(config.Tokens) == 0 {
		return fmt.Errorf("at least one token is required")
	}
	if config.Quote == "" {
		return fmt.Errorf("quote token is required")
	}
	var quoteDeclared bool
	for _, token := range config.Tokens {
		if strings.EqualFold(token.Name, config.Quote) {
			quoteDeclared = true
		}
	}
	if !quoteDeclared {
		return fmt.Errorf("quote token %s is not declared in tokens", config.Quote)
	}
	if len(config.Runs) == 0 {
		return fmt.Errorf("at least one run is required")
	}
	seen := make(map[string]struct{}, len(config.Runs))
	for i, run := range config.Runs {
		if run.Name == "" {
			return fmt.Errorf("runs[%d]: name is required", i)
		}
		if _, ok := seen[run.ID]; ok {
			return fmt.Errorf("runs[%d]: duplicate id %s", i, run.ID)
		}
		seen[run.ID] = struct{}{}
		if run.Strategy.Type == "" {
			return fmt.Errorf("run %s: strategy.type is required", run.ID)
		}
	}
	return nil
}
