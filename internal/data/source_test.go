package data

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"defi-backtest-lab/internal/domain"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestLoadUniswap_FillsGaps(t *testing.T) {
	dir := t.TempDir()
	src := NewSource(dir, "ethereum", nil)
	d := day(2023, 8, 15)

	// Rows for minutes 0 and 2; minute 1 is missing.
	writeFile(t, dir, src.UniswapFileName("0xpool", d),
		"timestamp,netAmount0,netAmount1,closeTick,openTick,lowestTick,highestTick,inAmount0,inAmount1,currentLiquidity\n"+
			"2023-08-15 00:00:00,10,-20,100,99,98,101,30,40,5000\n"+
			"2023-08-15 00:02:00,-5,6,105,100,100,106,7,8,5100\n")

	rows, err := src.LoadUniswap("0xpool", d, d.AddDate(0, 0, 1))
	require.NoError(t, err)
	require.Len(t, rows, 1440)

	assert.Equal(t, 100, rows[0].CloseTick)
	assert.True(t, rows[0].InAmount0.Equal(decimal.NewFromInt(30)))

	// The gap carries the previous close tick and zeroes the flows.
	gap := rows[1]
	assert.Equal(t, d.Add(time.Minute), gap.Timestamp)
	assert.Equal(t, 100, gap.OpenTick)
	assert.Equal(t, 100, gap.CloseTick)
	assert.Equal(t, 100, gap.LowestTick)
	assert.Equal(t, 100, gap.HighestTick)
	assert.True(t, gap.InAmount0.IsZero())
	assert.True(t, gap.InAmount1.IsZero())
	assert.True(t, gap.CurrentLiquidity.IsZero())

	assert.Equal(t, 105, rows[2].CloseTick)
	// The tail of the day forward-fills from minute 2.
	assert.Equal(t, 105, rows[1439].CloseTick)
	assert.Equal(t, d.Add(1439*time.Minute), rows[1439].Timestamp)
}

func TestLoadUniswap_LeadingGapUsesFirstRow(t *testing.T) {
	dir := t.TempDir()
	src := NewSource(dir, "ethereum", nil)
	d := day(2023, 8, 15)

	writeFile(t, dir, src.UniswapFileName("0xpool", d),
		"timestamp,netAmount0,netAmount1,closeTick,openTick,lowestTick,highestTick,inAmount0,inAmount1,currentLiquidity\n"+
			"2023-08-15 00:03:00,1,2,200,199,198,201,3,4,9000\n")

	rows, err := src.LoadUniswap("0xpool", d, d.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.Equal(t, 200, rows[0].CloseTick)
	assert.True(t, rows[0].CurrentLiquidity.IsZero())
	assert.Equal(t, 200, rows[3].CloseTick)
	assert.True(t, rows[3].CurrentLiquidity.Equal(decimal.NewFromInt(9000)))
}

func TestLoadUniswap_MultiDayConcatenation(t *testing.T) {
	dir := t.TempDir()
	src := NewSource(dir, "ethereum", nil)
	d1 := day(2023, 8, 15)
	d2 := day(2023, 8, 16)

	header := "timestamp,netAmount0,netAmount1,closeTick,openTick,lowestTick,highestTick,inAmount0,inAmount1,currentLiquidity\n"
	writeFile(t, dir, src.UniswapFileName("0xpool", d1),
		header+"2023-08-15 00:00:00,0,0,100,100,100,100,0,0,1000\n")
	writeFile(t, dir, src.UniswapFileName("0xpool", d2),
		header+"2023-08-16 00:05:00,0,0,300,300,300,300,0,0,2000\n")

	rows, err := src.LoadUniswap("0xpool", d1, d2.AddDate(0, 0, 1))
	require.NoError(t, err)
	require.Len(t, rows, 2880)

	// Day two's leading gap continues day one's last tick.
	assert.Equal(t, 100, rows[1440].CloseTick)
	assert.Equal(t, 300, rows[1445].CloseTick)

	// The concatenated index is contiguous at the day boundary.
	assert.Equal(t, time.Minute, rows[1440].Timestamp.Sub(rows[1439].Timestamp))
}

func TestLoadUniswap_MissingFile(t *testing.T) {
	src := NewSource(t.TempDir(), "ethereum", nil)
	_, err := src.LoadUniswap("0xpool", day(2023, 8, 15), day(2023, 8, 16))
	require.ErrorIs(t, err, domain.ErrDataFormat)
}

func TestLoadUniswap_HalfOpenWindow(t *testing.T) {
	// A window ending at the next midnight must not demand the end day's
	// file, and the rows must line up one-to-one with the priced minutes.
	dir := t.TempDir()
	src := NewSource(dir, "ethereum", nil)
	d := day(2023, 8, 15)

	writeFile(t, dir, src.UniswapFileName("0xpool", d),
		"timestamp,netAmount0,netAmount1,closeTick,openTick,lowestTick,highestTick,inAmount0,inAmount1,currentLiquidity\n"+
			"2023-08-15 00:00:00,0,0,100,100,100,100,0,0,1000\n")

	rows, err := src.LoadUniswap("0xpool", d, d.AddDate(0, 0, 1))
	require.NoError(t, err)
	require.Len(t, rows, 1440)
	assert.Equal(t, d, rows[0].Timestamp)
	assert.Equal(t, d.Add(1439*time.Minute), rows[1439].Timestamp)

	// A mid-day window clips the loaded day to its own minutes.
	start := d.Add(6 * time.Hour)
	rows, err = src.LoadUniswap("0xpool", start, start.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, rows, 60)
	assert.Equal(t, start, rows[0].Timestamp)
	assert.Equal(t, start.Add(59*time.Minute), rows[59].Timestamp)
}

func TestLoadAave_ForwardFillsIndices(t *testing.T) {
	dir := t.TempDir()
	src := NewSource(dir, "ethereum", nil)
	d := day(2023, 8, 15)

	writeFile(t, dir, src.AaveFileName("0xtoken", d),
		"timestamp,liquidity_rate,stable_borrow_rate,variable_borrow_rate,liquidity_index,variable_borrow_index\n"+
			"2023-08-15 00:00:00,0.01,0.05,0.03,1.05,1.08\n"+
			"2023-08-15 00:02:00,0.02,0.05,0.04,1.051,1.081\n")

	rows, err := src.LoadAave("0xtoken", d, d.AddDate(0, 0, 1))
	require.NoError(t, err)
	require.Len(t, rows, 1440)

	gap := rows[1]
	assert.Equal(t, d.Add(time.Minute), gap.Timestamp)
	assert.True(t, gap.LiquidityIndex.Equal(decimal.RequireFromString("1.05")))
	assert.True(t, gap.VariableBorrowIndex.Equal(decimal.RequireFromString("1.08")))
	assert.True(t, gap.LiquidityRate.Equal(decimal.RequireFromString("0.01")))

	assert.True(t, rows[2].LiquidityIndex.Equal(decimal.RequireFromString("1.051")))
	assert.True(t, rows[1439].LiquidityIndex.Equal(decimal.RequireFromString("1.051")))
}

func TestLoadSqueeth_ForwardFills(t *testing.T) {
	dir := t.TempDir()
	src := NewSource(dir, "ethereum", nil)
	d := day(2023, 8, 15)

	writeFile(t, dir, src.SqueethFileName(d),
		"timestamp,norm_factor,eth,osqth\n"+
			"2023-08-15 00:00:00,0.52,1850.5,95.2\n")

	rows, err := src.LoadSqueeth(d, d.AddDate(0, 0, 1))
	require.NoError(t, err)
	require.Len(t, rows, 1440)
	assert.True(t, rows[700].NormFactor.Equal(decimal.RequireFromString("0.52")))
	assert.True(t, rows[700].EthPrice.Equal(decimal.RequireFromString("1850.5")))
	assert.Equal(t, d.Add(700*time.Minute), rows[700].Timestamp)
}

func TestLoadRiskParameters(t *testing.T) {
	dir := t.TempDir()
	src := NewSource(dir, "ethereum", nil)

	writeFile(t, dir, "ethereum-aave-risk-parameters.csv",
		"token,liquidation_threshold,ltv,liquidation_bonus,decimals,stable_borrow_enabled,reserve_factor\n"+
			"weth,0.825,0.8,0.05,18,false,0.15\n"+
			"USDC,0.87,0.77,0.045,6,true,0.1\n")

	params, tokens, err := src.LoadRiskParameters("ethereum-aave-risk-parameters.csv")
	require.NoError(t, err)
	require.Len(t, tokens, 2)

	weth, ok := params["WETH"]
	require.True(t, ok, "symbols are uppercased")
	assert.True(t, weth.LiquidationThreshold.Equal(decimal.RequireFromString("0.825")))
	assert.False(t, weth.StableBorrowEnabled)
	assert.True(t, params["USDC"].StableBorrowEnabled)
	assert.Equal(t, int32(18), tokens[0].Decimals)
}

func TestLoadPrices(t *testing.T) {
	dir := t.TempDir()
	src := NewSource(dir, "ethereum", nil)

	writeFile(t, dir, "prices.csv",
		"timestamp,WETH,usdc\n"+
			"2023-08-15 00:00:00,1850.5,1\n"+
			"2023-08-15 00:01:00,1851,1\n")

	matrix, err := src.LoadPrices("prices.csv")
	require.NoError(t, err)
	require.Equal(t, 2, matrix.Len())
	assert.Equal(t, time.Minute, matrix.Interval())
	assert.True(t, matrix.Rows[0]["WETH"].Equal(decimal.RequireFromString("1850.5")))
	assert.True(t, matrix.Rows[1]["USDC"].Equal(decimal.New(1, 0)), "symbols are uppercased")
}

func TestLoadPrices_RejectsNonIncreasingIndex(t *testing.T) {
	dir := t.TempDir()
	src := NewSource(dir, "ethereum", nil)

	writeFile(t, dir, "prices.csv",
		"timestamp,WETH\n"+
			"2023-08-15 00:01:00,1850\n"+
			"2023-08-15 00:01:00,1851\n")

	_, err := src.LoadPrices("prices.csv")
	require.ErrorIs(t, err, domain.ErrDataFormat)
}
