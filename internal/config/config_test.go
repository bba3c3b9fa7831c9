package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"defi-backtest-lab/internal/idhash"
)

const sampleConfig = `
log:
  level: debug

data:
  dir: /data/minutes
  chain: ethereum
  start: 2023-08-15T00:00:00Z
  end: 2023-08-16T00:00:00Z
  prices_file: prices.csv

quote: USDC

tokens:
  - name: USDC
    decimals: 6
  - name: WETH
    decimals: 18

markets:
  uniswap:
    - name: uni
      pool: "0xpool"
      token0: USDC
      token1: WETH
      quote: USDC
      fee: 0.0005

runs:
  - id: run-001
    name: rebalance-1h
    balances:
      USDC: 10000
      WETH: 10
    strategy:
      type: UNI_LP_REBALANCE
      market: uni
      interval_ms: 3600000
      range_pct: 0.05

storage:
  postgres_dsn: postgres://localhost:5432/backtest

report:
  dir: /tmp/reports
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoadConfig(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, sampleConfig))
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "/data/minutes", cfg.Data.Dir)
	assert.Equal(t, "ethereum", cfg.Data.Chain)

	start, end, err := cfg.Data.Range()
	require.NoError(t, err)
	assert.Equal(t, 24.0, end.Sub(start).Hours())

	assert.Equal(t, "USDC", cfg.Quote)
	require.Len(t, cfg.Tokens, 2)
	assert.Equal(t, int32(18), cfg.Tokens[1].Decimals)

	require.Len(t, cfg.Markets.Uniswap, 1)
	assert.Equal(t, "0xpool", cfg.Markets.Uniswap[0].Pool)
	assert.Nil(t, cfg.Markets.Aave)

	require.Len(t, cfg.Runs, 1)
	run := cfg.Runs[0]
	assert.Equal(t, "run-001", run.ID)
	assert.Equal(t, 10000.0, run.Balances["USDC"])

	sc := run.Strategy.Strategy()
	assert.Equal(t, "UNI_LP_REBALANCE", sc.Type)
	require.NotNil(t, sc.IntervalMs)
	assert.Equal(t, int64(3600000), *sc.IntervalMs)
	require.NotNil(t, sc.RangePct)
	assert.Equal(t, 0.05, *sc.RangePct)

	// defaults
	assert.Equal(t, 1, cfg.Concurrency)
	assert.Equal(t, ":8080", cfg.Server.Addr)
}

func TestLoadConfigTimestampForms(t *testing.T) {
	// YAML hands unquoted RFC 3339 values to the decoder as time.Time;
	// quoted ones arrive as strings. Both forms load the same window.
	quoted := strings.ReplaceAll(sampleConfig, "start: 2023-08-15T00:00:00Z", `start: "2023-08-15T00:00:00Z"`)
	quoted = strings.ReplaceAll(quoted, "end: 2023-08-16T00:00:00Z", `end: "2023-08-16T00:00:00Z"`)

	for name, body := range map[string]string{"native": sampleConfig, "quoted": quoted} {
		t.Run(name, func(t *testing.T) {
			cfg, err := LoadConfig(writeConfig(t, body))
			require.NoError(t, err)

			start, end, err := cfg.Data.Range()
			require.NoError(t, err)
			assert.Equal(t, time.Date(2023, 8, 15, 0, 0, 0, 0, time.UTC), start)
			assert.Equal(t, time.Date(2023, 8, 16, 0, 0, 0, 0, time.UTC), end)
		})
	}
}

func TestLoadConfigDerivesRunID(t *testing.T) {
	body := `
data:
  dir: /data
  chain: ethereum
  start: 2023-08-15T00:00:00Z
  end: 2023-08-16T00:00:00Z
quote: USDC
tokens:
  - name: USDC
    decimals: 6
runs:
  - name: hold-only
    strategy:
      type: HOLD
`
	cfg, err := LoadConfig(writeConfig(t, body))
	require.NoError(t, err)

	start, end, err := cfg.Data.Range()
	require.NoError(t, err)
	want := idhash.ComputeRunID("hold-only", "HOLD", start, end)
	assert.Equal(t, want, cfg.Runs[0].ID)

	// Loading the same file again derives the same ID.
	cfg2, err := LoadConfig(writeConfig(t, body))
	require.NoError(t, err)
	assert.Equal(t, cfg.Runs[0].ID, cfg2.Runs[0].ID)
}

func TestLoadConfigEnvOverridesDSN(t *testing.T) {
	t.Setenv("POSTGRES_DSN", "postgres://env-host:5432/other")

	cfg, err := LoadConfig(writeConfig(t, sampleConfig))
	require.NoError(t, err)
	assert.Equal(t, "postgres://env-host:5432/other", cfg.Storage.PostgresDSN)
}

func TestLoadConfigValidation(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
	}{
		{"missing data dir", `
data:
  chain: ethereum
  start: 2023-08-15T00:00:00Z
  end: 2023-08-16T00:00:00Z
`, "data.dir"},
		{"bad time", `
data:
  dir: /data
  chain: ethereum
  start: yesterday
  end: 2023-08-16T00:00:00Z
tokens:
  - name: USDC
    decimals: 6
runs:
  - id: r1
    strategy:
      type: HOLD
`, "data.start"},
		{"window not after start", `
data:
  dir: /data
  chain: ethereum
  start: 2023-08-16T00:00:00Z
  end: 2023-08-16T00:00:00Z
tokens:
  - name: USDC
    decimals: 6
runs:
  - id: r1
    strategy:
      type: HOLD
`, "not after"},
		{"missing quote", `
data:
  dir: /data
  chain: ethereum
  start: 2023-08-15T00:00:00Z
  end: 2023-08-16T00:00:00Z
tokens:
  - name: USDC
    decimals: 6
runs:
  - id: r1
    strategy:
      type: HOLD
`, "quote token"},
		{"no runs", `
data:
  dir: /data
  chain: ethereum
  start: 2023-08-15T00:00:00Z
  end: 2023-08-16T00:00:00Z
quote: USDC
tokens:
  - name: USDC
    decimals: 6
`, "at least one run"},
		{"duplicate run id", `
data:
  dir: /data
  chain: ethereum
  start: 2023-08-15T00:00:00Z
  end: 2023-08-16T00:00:00Z
quote: USDC
tokens:
  - name: USDC
    decimals: 6
runs:
  - id: r1
    name: first
    strategy:
      type: HOLD
  - id: r1
    name: second
    strategy:
      type: HOLD
`, "duplicate id"},
		{"missing run name", `
data:
  dir: /data
  chain: ethereum
  start: 2023-08-15T00:00:00Z
  end: 2023-08-16T00:00:00Z
quote: USDC
tokens:
  - name: USDC
    decimals: 6
runs:
  - id: r1
    strategy:
      type: HOLD
`, "name is required"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tc.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}
