package aave

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"defi-backtest-lab/internal/broker"
	"defi-backtest-lab/internal/domain"
)

var (
	usdc = domain.NewTokenInfo("usdc", 6)
	weth = domain.NewTokenInfo("weth", 18)

	testRisk = RiskParameterTable{
		"WETH": {
			LiquidationThreshold: decimal.RequireFromString("0.825"),
			LTV:                  decimal.RequireFromString("0.8"),
			LiquidationBonus:     decimal.RequireFromString("0.05"),
			ReserveFactor:        decimal.RequireFromString("0.15"),
		},
		"USDC": {
			LiquidationThreshold: decimal.RequireFromString("0.87"),
			LTV:                  decimal.RequireFromString("0.77"),
			LiquidationBonus:     decimal.RequireFromString("0.045"),
			ReserveFactor:        decimal.RequireFromString("0.1"),
			StableBorrowEnabled:  true,
		},
	}
)

func minuteTS(i int) time.Time {
	return time.Date(2023, 8, 15, 0, 0, 0, 0, time.UTC).Add(time.Duration(i) * time.Minute)
}

func flatReserveRows(n int, index decimal.Decimal) []MinuteRow {
	rows := make([]MinuteRow, n)
	for i := range rows {
		rows[i] = MinuteRow{
			Timestamp:           minuteTS(i),
			LiquidityRate:       decimal.RequireFromString("0.02"),
			VariableBorrowRate:  decimal.RequireFromString("0.04"),
			LiquidityIndex:      index,
			VariableBorrowIndex: index,
		}
	}
	return rows
}

func newTestMarket(t *testing.T, n int) (*Market, *broker.Broker) {
	t.Helper()
	m, err := New(Options{Name: "aave", QuoteToken: usdc, RiskParameters: testRisk})
	require.NoError(t, err)
	one := decimal.New(1, 0)
	require.NoError(t, m.SetTokenData(weth, flatReserveRows(n, one)))
	require.NoError(t, m.SetTokenData(usdc, flatReserveRows(n, one)))

	b, err := broker.New(broker.Options{QuoteToken: usdc})
	require.NoError(t, err)
	require.NoError(t, b.AddMarket(m))
	return m, b
}

func setStatus(t *testing.T, m *Market, rowID int, wethPrice int64) {
	t.Helper()
	prices := domain.PriceRow{
		"WETH": decimal.NewFromInt(wethPrice),
		"USDC": decimal.New(1, 0),
	}
	require.NoError(t, m.SetStatus(minuteTS(rowID), rowID, prices))
}

func TestHealthFactorFormula(t *testing.T) {
	m, b := newTestMarket(t, 2)
	b.SetBalance(weth, decimal.NewFromInt(10))
	setStatus(t, m, 0, 1000)

	hf, err := m.HealthFactor()
	require.NoError(t, err)
	assert.True(t, hf.Equal(HealthFactorMax), "no positions: hf %s", hf)

	_, err = m.Supply(weth, decimal.NewFromInt(10), true)
	require.NoError(t, err)
	hf, err = m.HealthFactor()
	require.NoError(t, err)
	assert.True(t, hf.Equal(HealthFactorMax), "no borrows: hf %s", hf)

	_, err = m.Borrow(usdc, decimal.NewFromInt(5000), RateModeVariable)
	require.NoError(t, err)
	hf, err = m.HealthFactor()
	require.NoError(t, err)
	// 10 * 1000 * 0.825 / 5000.
	assert.True(t, hf.Equal(decimal.RequireFromString("1.65")), "hf %s", hf)
}

func TestMaxBorrowAmount(t *testing.T) {
	m, b := newTestMarket(t, 1)
	b.SetBalance(weth, decimal.NewFromInt(10))
	setStatus(t, m, 0, 1000)

	_, err := m.Supply(weth, decimal.NewFromInt(10), true)
	require.NoError(t, err)

	max, err := m.MaxBorrowAmount(usdc)
	require.NoError(t, err)
	assert.True(t, max.Equal(decimal.NewFromInt(8000)), "max %s", max)

	_, err = m.Borrow(usdc, decimal.NewFromInt(8001), RateModeVariable)
	require.ErrorIs(t, err, domain.ErrDomainViolation)

	_, err = m.Borrow(usdc, decimal.NewFromInt(8000), RateModeVariable)
	require.NoError(t, err)
	assert.True(t, b.Balance(usdc).Equal(decimal.NewFromInt(8000)))

	max, err = m.MaxBorrowAmount(usdc)
	require.NoError(t, err)
	assert.True(t, max.IsZero(), "max after borrowing to the cap: %s", max)
}

func TestBorrow_StableModeRejected(t *testing.T) {
	m, b := newTestMarket(t, 1)
	b.SetBalance(weth, decimal.NewFromInt(10))
	setStatus(t, m, 0, 1000)
	_, err := m.Supply(weth, decimal.NewFromInt(10), true)
	require.NoError(t, err)

	_, err = m.Borrow(usdc, decimal.NewFromInt(100), RateModeStable)
	require.ErrorIs(t, err, domain.ErrConfiguration)
}

func TestWithdraw_HealthFactorGuard(t *testing.T) {
	m, b := newTestMarket(t, 1)
	b.SetBalance(weth, decimal.NewFromInt(10))
	setStatus(t, m, 0, 1000)

	key, err := m.Supply(weth, decimal.NewFromInt(10), true)
	require.NoError(t, err)
	_, err = m.Borrow(usdc, decimal.NewFromInt(6000), RateModeVariable)
	require.NoError(t, err)

	// Dropping to 7 WETH leaves 7*1000*0.825 = 5775 < 6000 of debt.
	_, err = m.Withdraw(key, decimal.NewFromInt(3))
	require.ErrorIs(t, err, domain.ErrDomainViolation)

	// 9 WETH still covers: 7425 >= 6000.
	got, err := m.Withdraw(key, decimal.NewFromInt(1))
	require.NoError(t, err)
	assert.True(t, got.Equal(decimal.NewFromInt(1)))
	assert.True(t, b.Balance(weth).Equal(decimal.NewFromInt(1)))
}

func TestRepay_PartialAndFull(t *testing.T) {
	m, b := newTestMarket(t, 1)
	b.SetBalance(weth, decimal.NewFromInt(10))
	setStatus(t, m, 0, 1000)

	_, err := m.Supply(weth, decimal.NewFromInt(10), true)
	require.NoError(t, err)
	key, err := m.Borrow(usdc, decimal.NewFromInt(2000), RateModeVariable)
	require.NoError(t, err)

	_, err = m.Repay(key, decimal.NewFromInt(500), false)
	require.NoError(t, err)
	debt, err := m.BorrowAmount(key)
	require.NoError(t, err)
	assert.True(t, debt.Equal(decimal.NewFromInt(1500)))
	assert.True(t, b.Balance(usdc).Equal(decimal.NewFromInt(1500)))

	_, err = m.Repay(key, MaxAmount, false)
	require.NoError(t, err)
	assert.Zero(t, m.BorrowCount())
	assert.True(t, b.Balance(usdc).IsZero())
}

func TestRepayWithCollateral(t *testing.T) {
	m, b := newTestMarket(t, 1)
	b.SetBalance(usdc, decimal.NewFromInt(5000))
	setStatus(t, m, 0, 1000)

	skey, err := m.Supply(usdc, decimal.NewFromInt(5000), true)
	require.NoError(t, err)
	bkey, err := m.Borrow(usdc, decimal.NewFromInt(2000), RateModeVariable)
	require.NoError(t, err)
	require.True(t, b.Balance(usdc).Equal(decimal.NewFromInt(2000)))

	// The repay comes out of the supply; the borrowed funds stay in the
	// wallet.
	_, err = m.Repay(bkey, MaxAmount, true)
	require.NoError(t, err)
	assert.Zero(t, m.BorrowCount())
	supplied, err := m.SupplyAmount(skey)
	require.NoError(t, err)
	assert.True(t, supplied.Equal(decimal.NewFromInt(3000)), "supplied %s", supplied)
	assert.True(t, b.Balance(usdc).Equal(decimal.NewFromInt(2000)))
}

func TestLiquidation_FullRecovery(t *testing.T) {
	// Supply 10 WETH at 1000, borrow 7500 USDC, then WETH drops to 800:
	// hf = 10*800*0.825/7500 = 0.88, under water and below the deep
	// threshold, so the whole debt closes in one step and the account
	// returns to the no-debt state.
	m, b := newTestMarket(t, 2)
	b.SetBalance(weth, decimal.NewFromInt(10))
	setStatus(t, m, 0, 1000)

	var actions []domain.Action
	m.SetRecorder(func(a domain.Action) { actions = append(actions, a) })

	skey, err := m.Supply(weth, decimal.NewFromInt(10), true)
	require.NoError(t, err)
	_, err = m.Borrow(usdc, decimal.NewFromInt(7500), RateModeVariable)
	require.NoError(t, err)

	setStatus(t, m, 1, 800)
	hf, err := m.HealthFactor()
	require.NoError(t, err)
	require.True(t, hf.LessThan(decimal.New(1, 0)), "hf %s", hf)

	require.NoError(t, m.Update())

	var liquidations []domain.Action
	for _, a := range actions {
		if a.Type == domain.ActionAaveLiquidation {
			liquidations = append(liquidations, a)
		}
	}
	require.Len(t, liquidations, 1)

	hf, err = m.HealthFactor()
	require.NoError(t, err)
	assert.True(t, hf.Equal(HealthFactorMax), "hf %s", hf)
	assert.Zero(t, m.BorrowCount())

	// 7500 * 1.05 / 800 = 9.84375 WETH seized, the rest stays supplied.
	supplied, err := m.SupplyAmount(skey)
	require.NoError(t, err)
	assert.True(t, supplied.Equal(decimal.RequireFromString("0.15625")), "supplied %s", supplied)
}

func TestLiquidation_ResidualDebt(t *testing.T) {
	// WETH crashes to 500: collateral cannot cover debt * (1+bonus). All
	// collateral is seized, debt remains, health factor is 0.
	m, b := newTestMarket(t, 2)
	b.SetBalance(weth, decimal.NewFromInt(10))
	setStatus(t, m, 0, 1000)

	_, err := m.Supply(weth, decimal.NewFromInt(10), true)
	require.NoError(t, err)
	bkey, err := m.Borrow(usdc, decimal.NewFromInt(7500), RateModeVariable)
	require.NoError(t, err)

	setStatus(t, m, 1, 500)
	require.NoError(t, m.Update())

	assert.Zero(t, m.SupplyCount())
	assert.Equal(t, 1, m.BorrowCount())

	hf, err := m.HealthFactor()
	require.NoError(t, err)
	assert.True(t, hf.IsZero(), "hf %s", hf)

	// The residual debt blocks further borrowing.
	_, err = m.Borrow(usdc, decimal.NewFromInt(1), RateModeVariable)
	require.ErrorIs(t, err, domain.ErrDomainViolation)

	debt, err := m.BorrowAmount(bkey)
	require.NoError(t, err)
	// 7500 - 5000/1.05 of debt was covered by the seized collateral.
	want := decimal.NewFromInt(7500).Sub(decimal.NewFromInt(5000).Div(decimal.RequireFromString("1.05")))
	assert.True(t, debt.Sub(want).Abs().LessThan(decimal.New(1, -20)), "debt %s want %s", debt, want)
}

func TestIndexAccrual(t *testing.T) {
	// Indices grow 10% between the two rows: supply and debt grow with them.
	m, b := newTestMarket(t, 2)
	rows := flatReserveRows(2, decimal.New(1, 0))
	rows[1].LiquidityIndex = decimal.RequireFromString("1.1")
	rows[1].VariableBorrowIndex = decimal.RequireFromString("1.1")
	require.NoError(t, m.SetTokenData(weth, rows))

	b.SetBalance(weth, decimal.NewFromInt(10))
	setStatus(t, m, 0, 1000)

	skey, err := m.Supply(weth, decimal.NewFromInt(10), true)
	require.NoError(t, err)

	setStatus(t, m, 1, 1000)
	supplied, err := m.SupplyAmount(skey)
	require.NoError(t, err)
	assert.True(t, supplied.Equal(decimal.RequireFromString("11")), "supplied %s", supplied)
}

func TestRateToAPY(t *testing.T) {
	apy := RateToAPY(decimal.RequireFromString("0.05"))
	assert.InDelta(t, 0.05127, apy.InexactFloat64(), 1e-4)
}
