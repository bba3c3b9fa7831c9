package reporting

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"defi-backtest-lab/internal/backtest"
	"defi-backtest-lab/internal/domain"
)

func sampleStatuses() []domain.AccountStatus {
	base := time.Date(2023, 8, 15, 0, 0, 0, 0, time.UTC)
	mk := func(i int, net int64, hf string) domain.AccountStatus {
		return domain.AccountStatus{
			Timestamp: base.Add(time.Duration(i) * time.Minute),
			NetValue:  decimal.NewFromInt(net),
			Tokens: []domain.BalanceField{
				{Name: "USDC", Value: decimal.NewFromInt(net - 500)},
				{Name: "WETH", Value: decimal.New(25, -2)},
			},
			Markets: []domain.MarketStatusEntry{{
				Market: domain.NewMarketInfo("aave", domain.MarketTypeAaveV3),
				Balance: domain.MarketBalance{
					NetValue: decimal.NewFromInt(500),
					Fields: []domain.BalanceField{
						{Name: "health_factor", Value: decimal.RequireFromString(hf)},
					},
				},
			}},
		}
	}
	return []domain.AccountStatus{mk(0, 1000, "2.1"), mk(1, 1010, "2.0")}
}

func TestWriteAccountCSV_SchemaFromStatus(t *testing.T) {
	var sb strings.Builder
	require.NoError(t, WriteAccountCSV(&sb, sampleStatuses()))

	records, err := csv.NewReader(strings.NewReader(sb.String())).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, []string{
		"timestamp", "net_value", "tokens:USDC", "tokens:WETH",
		"aave:net_value", "aave:health_factor",
	}, records[0])
	assert.Equal(t, "2023-08-15T00:00:00Z", records[1][0])
	assert.Equal(t, "1000", records[1][1])
	assert.Equal(t, "2.1", records[1][5])
	assert.Equal(t, "1010", records[2][1])
}

func TestWriteAccountCSV_RejectsEmptySeries(t *testing.T) {
	var sb strings.Builder
	require.ErrorIs(t, WriteAccountCSV(&sb, nil), domain.ErrConfiguration)
}

func TestGenerateArtifacts(t *testing.T) {
	dir := t.TempDir()
	g := NewGenerator(dir, nil)

	res := backtest.Result{
		Statuses: sampleStatuses(),
		Actions: []domain.Action{{
			Timestamp: time.Date(2023, 8, 15, 0, 0, 0, 0, time.UTC),
			Market:    domain.NewMarketInfo("aave", domain.MarketTypeAaveV3),
			Type:      domain.ActionAaveSupply,
		}},
		Bars:     2,
		Duration: 40 * time.Millisecond,
	}
	report := Build("demo", "leverage", res)
	art, err := g.Generate(report)
	require.NoError(t, err)

	raw, err := os.ReadFile(art.ActionJSON)
	require.NoError(t, err)
	var decoded []map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	require.Len(t, decoded, 1)
	assert.Equal(t, "aave_supply", decoded[0]["action_type"])

	md, err := os.ReadFile(art.Summary)
	require.NoError(t, err)
	assert.Contains(t, string(md), "# Backtest Report: demo")
	assert.Contains(t, string(md), "| aave_supply | 1 |")
	assert.Contains(t, string(md), "Total Return | 1.0000%")
	// Two bars is far too little history for a GO.
	assert.Contains(t, string(md), "## Decision: NO-GO")

	_, err = os.Stat(art.AccountCSV)
	require.NoError(t, err)
}

func TestBuildComputesRange(t *testing.T) {
	res := backtest.Result{Statuses: sampleStatuses(), Bars: 2}
	r := Build("demo", "s", res)
	assert.Equal(t, res.Statuses[0].Timestamp, r.Start)
	assert.Equal(t, res.Statuses[1].Timestamp, r.End)
	assert.InDelta(t, 0.01, r.Metrics.TotalReturn, 1e-12)
}
