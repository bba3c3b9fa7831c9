package squeeth

import (
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"defi-backtest-lab/internal/broker"
	"defi-backtest-lab/internal/domain"
	"defi-backtest-lab/internal/uniswap"
)

var (
	usdc  = domain.NewTokenInfo("usdc", 6)
	weth  = domain.NewTokenInfo("weth", 18)
	osqth = domain.NewTokenInfo("osqth", 18)
)

func minuteTS(i int) time.Time {
	return time.Date(2023, 8, 15, 0, 0, 0, 0, time.UTC).Add(time.Duration(i) * time.Minute)
}

// controllerRows builds n minutes with the given ETH prices, norm factor 0.5
// and the oSQTH price implied by the index.
func controllerRows(ethPrices ...int64) []MinuteRow {
	nf := decimal.RequireFromString("0.5")
	rows := make([]MinuteRow, len(ethPrices))
	for i, p := range ethPrices {
		eth := decimal.NewFromInt(p)
		rows[i] = MinuteRow{
			Timestamp:  minuteTS(i),
			NormFactor: nf,
			EthPrice:   eth,
			OsqthPrice: nf.Mul(eth).Mul(eth).Div(IndexScale),
		}
	}
	return rows
}

// newTestSetup wires an oSQTH/WETH LP market and a squeeth market onto one
// broker. The LP pool sits at 0.1 WETH per oSQTH for every row.
func newTestSetup(t *testing.T, rows []MinuteRow) (*Market, *uniswap.LPMarket, *broker.Broker) {
	t.Helper()
	pool, err := uniswap.NewPool(osqth, weth, decimal.RequireFromString("0.003"), weth)
	require.NoError(t, err)
	tick, err := pool.PriceTick(decimal.RequireFromString("0.1"))
	require.NoError(t, err)

	uniRows := make([]uniswap.MinuteRow, len(rows))
	for i := range rows {
		uniRows[i] = uniswap.MinuteRow{
			Timestamp:        rows[i].Timestamp,
			OpenTick:         tick,
			CloseTick:        tick,
			LowestTick:       tick,
			HighestTick:      tick,
			CurrentLiquidity: decimal.New(1, 25),
		}
	}
	uni, err := uniswap.New(uniswap.Options{Name: "osqth-weth", Pool: pool, Data: uniRows})
	require.NoError(t, err)

	m, err := New(Options{
		Name:       "squeeth",
		QuoteToken: usdc,
		Eth:        weth,
		Osqth:      osqth,
		UniMarket:  uni,
		Data:       rows,
	})
	require.NoError(t, err)

	b, err := broker.New(broker.Options{QuoteToken: usdc})
	require.NoError(t, err)
	require.NoError(t, b.AddMarket(uni))
	require.NoError(t, b.AddMarket(m))
	require.NoError(t, b.CheckQuoteToken())
	return m, uni, b
}

func setStatus(t *testing.T, m *Market, uni *uniswap.LPMarket, rowID int) {
	t.Helper()
	require.NoError(t, uni.SetStatus(minuteTS(rowID), rowID, nil))
	require.NoError(t, m.SetStatus(minuteTS(rowID), rowID, nil))
}

func TestOpenDepositMintByCollatRate(t *testing.T) {
	// ETH at 2000, norm factor 0.5: 2 ETH at collateral rate 2 mints
	// 2 * 1e4 / (0.5 * 2000 * 2) = 10 oSQTH.
	m, uni, b := newTestSetup(t, controllerRows(2000, 2000))
	b.SetBalance(weth, decimal.NewFromInt(2))
	setStatus(t, m, uni, 0)

	key, mint, err := m.OpenDepositMintByCollatRate(decimal.NewFromInt(2), decimal.NewFromInt(2))
	require.NoError(t, err)
	assert.True(t, mint.Equal(decimal.NewFromInt(10)), "mint %s", mint)
	assert.True(t, b.Balance(osqth).Equal(decimal.NewFromInt(10)))
	assert.True(t, b.Balance(weth).IsZero())

	rate, err := m.CollateralRate(key)
	require.NoError(t, err)
	assert.True(t, rate.Equal(decimal.NewFromInt(2)), "rate %s", rate)

	v, ok := m.Vault(key)
	require.True(t, ok)
	assert.True(t, v.Collateral.Equal(decimal.NewFromInt(2)))
	assert.True(t, v.Short.Equal(decimal.NewFromInt(10)))
}

func TestOpenDepositMint_SafetyAndDust(t *testing.T) {
	m, uni, b := newTestSetup(t, controllerRows(2000))
	b.SetBalance(weth, decimal.NewFromInt(10))
	setStatus(t, m, uni, 0)

	// 10 oSQTH is 1 ETH of debt: 1.4 ETH of collateral misses the 150%
	// ratio. The failed open leaves no vault and an untouched wallet.
	_, err := m.OpenDepositMint(0, decimal.RequireFromString("1.4"), decimal.NewFromInt(10), nil)
	require.ErrorIs(t, err, domain.ErrDomainViolation)
	assert.Zero(t, m.VaultCount())
	assert.True(t, b.Balance(weth).Equal(decimal.NewFromInt(10)))
	assert.True(t, b.Balance(osqth).IsZero())

	// Safe ratio but below the 0.5 ETH minimum deposit.
	_, err = m.OpenDepositMint(0, decimal.RequireFromString("0.4"), decimal.RequireFromString("0.1"), nil)
	require.ErrorIs(t, err, domain.ErrDomainViolation)

	// Exactly at the ratio passes.
	_, err = m.OpenDepositMint(0, decimal.RequireFromString("1.5"), decimal.NewFromInt(10), nil)
	require.NoError(t, err)
}

func TestBurnAndWithdraw(t *testing.T) {
	m, uni, b := newTestSetup(t, controllerRows(2000))
	b.SetBalance(weth, decimal.NewFromInt(3))
	setStatus(t, m, uni, 0)

	key, err := m.OpenDepositMint(0, decimal.NewFromInt(3), decimal.NewFromInt(10), nil)
	require.NoError(t, err)

	// Burn half the short and take 1 ETH out: 2 ETH against 0.5 ETH of debt
	// stays safe.
	require.NoError(t, m.BurnAndWithdraw(key, decimal.NewFromInt(5), decimal.NewFromInt(1)))
	v, _ := m.Vault(key)
	assert.True(t, v.Short.Equal(decimal.NewFromInt(5)))
	assert.True(t, v.Collateral.Equal(decimal.NewFromInt(2)))
	assert.True(t, b.Balance(weth).Equal(decimal.NewFromInt(1)))
	assert.True(t, b.Balance(osqth).Equal(decimal.NewFromInt(5)))

	// Withdrawing the rest while debt remains breaks the ratio.
	err = m.BurnAndWithdraw(key, decimal.Zero, decimal.RequireFromString("1.5"))
	require.ErrorIs(t, err, domain.ErrDomainViolation)

	// Burning everything frees the collateral.
	require.NoError(t, m.BurnAndWithdraw(key, MaxAmount, MaxAmount))
	v, _ = m.Vault(key)
	assert.True(t, v.Short.IsZero())
	assert.True(t, v.Collateral.IsZero())
}

func TestReduceDebtOnUnsafeVault(t *testing.T) {
	// The vault holds an LP NFT. At ETH 4500 the vault is unsafe; update
	// must redeem the NFT: burn the withdrawn oSQTH, move the ETH into the
	// vault, pay the 2% bounty and end safe without a liquidation.
	m, uni, b := newTestSetup(t, controllerRows(2000, 4500))
	b.SetBalance(weth, decimal.NewFromInt(3))
	b.SetBalance(osqth, decimal.NewFromInt(5))
	setStatus(t, m, uni, 0)

	tick := positionTick(t, uni)
	lp, err := uni.AddLiquidityByTick(tick-600, tick+600, decimal.NewFromInt(5), decimal.RequireFromString("0.5"))
	require.NoError(t, err)

	key, err := m.OpenDepositMint(0, decimal.RequireFromString("1.5"), decimal.NewFromInt(10), &lp.Position)
	require.NoError(t, err)

	osqthBefore := b.Balance(osqth)

	var actions []domain.Action
	m.SetRecorder(func(a domain.Action) { actions = append(actions, a) })

	setStatus(t, m, uni, 1)
	require.NoError(t, m.Update())

	var reduces, liquidations int
	for _, a := range actions {
		switch a.Type {
		case domain.ActionSqueethReduceDebt:
			reduces++
		case domain.ActionSqueethLiquidation:
			liquidations++
		}
	}
	assert.Equal(t, 1, reduces)
	assert.Zero(t, liquidations)

	v, ok := m.Vault(key)
	require.True(t, ok)
	assert.False(t, v.HasNFT())

	// The short shrank by the oSQTH the LP held; the wallet kept only the
	// excess (none here, the LP held less than the short).
	wantShort := decimal.NewFromInt(10).Sub(lp.BaseUsed)
	assert.True(t, domain.ApproxEqual(v.Short, wantShort), "short %s want %s", v.Short, wantShort)
	assert.True(t, domain.ApproxEqual(b.Balance(osqth), osqthBefore), "osqth %s", b.Balance(osqth))

	// Collateral gained the LP's ETH minus the bounty on (burned oSQTH at
	// its traded price + ETH withdrawn).
	burnValueEth := lp.BaseUsed.Mul(m.OsqthPrice()).Div(m.EthPrice())
	bounty := ReduceDebtBounty.Mul(burnValueEth.Add(lp.QuoteUsed))
	wantCollateral := decimal.RequireFromString("1.5").Add(lp.QuoteUsed).Sub(bounty)
	assert.True(t, domain.ApproxEqual(v.Collateral, wantCollateral),
		"collateral %s want %s", v.Collateral, wantCollateral)

	safe, err := m.isSafe(m.vaults[key])
	require.NoError(t, err)
	assert.True(t, safe)
}

func TestLiquidation_HalfShort(t *testing.T) {
	// No NFT: at ETH 3000 the vault is unsafe; half the short is covered at
	// a 10% bounty.
	m, uni, b := newTestSetup(t, controllerRows(2000, 3000))
	b.SetBalance(weth, decimal.RequireFromString("1.5"))
	setStatus(t, m, uni, 0)

	key, err := m.OpenDepositMint(0, decimal.RequireFromString("1.5"), decimal.NewFromInt(10), nil)
	require.NoError(t, err)

	var actions []domain.Action
	m.SetRecorder(func(a domain.Action) { actions = append(actions, a) })

	setStatus(t, m, uni, 1)
	require.NoError(t, m.Update())

	require.Len(t, actions, 1)
	assert.Equal(t, domain.ActionSqueethLiquidation, actions[0].Type)

	// oSQTH trades on index: 0.5*3000/1e4 = 0.15 ETH each; pay = 5 * 0.15
	// * 1.1 = 0.825.
	v, _ := m.Vault(key)
	assert.True(t, v.Short.Equal(decimal.NewFromInt(5)), "short %s", v.Short)
	assert.True(t, v.Collateral.Equal(decimal.RequireFromString("0.675")), "collateral %s", v.Collateral)
}

func TestLiquidation_PaysTradedOsqthPrice(t *testing.T) {
	// When oSQTH trades above its index the liquidator is paid at the
	// traded price, not the index conversion.
	rows := controllerRows(2000, 3000)
	premium := decimal.RequireFromString("1.2")
	for i := range rows {
		rows[i].OsqthPrice = rows[i].OsqthPrice.Mul(premium)
	}
	m, uni, b := newTestSetup(t, rows)
	b.SetBalance(weth, decimal.RequireFromString("1.5"))
	setStatus(t, m, uni, 0)

	key, err := m.OpenDepositMint(0, decimal.RequireFromString("1.5"), decimal.NewFromInt(10), nil)
	require.NoError(t, err)

	setStatus(t, m, uni, 1)
	require.NoError(t, m.Update())

	// Each oSQTH costs 0.15 * 1.2 = 0.18 ETH; pay = 5 * 0.18 * 1.1 = 0.99.
	v, _ := m.Vault(key)
	assert.True(t, v.Short.Equal(decimal.NewFromInt(5)), "short %s", v.Short)
	assert.True(t, v.Collateral.Equal(decimal.RequireFromString("0.51")), "collateral %s", v.Collateral)
}

func TestLiquidation_FullCloseOnDust(t *testing.T) {
	// Covering half would leave less than the 0.5 ETH minimum: the whole
	// short closes and the payout caps at the vault collateral.
	m, uni, b := newTestSetup(t, controllerRows(2000, 3000))
	b.SetBalance(weth, decimal.RequireFromString("0.6"))
	setStatus(t, m, uni, 0)

	key, err := m.OpenDepositMint(0, decimal.RequireFromString("0.6"), decimal.NewFromInt(4), nil)
	require.NoError(t, err)

	setStatus(t, m, uni, 1)
	require.NoError(t, m.Update())

	v, _ := m.Vault(key)
	assert.True(t, v.Short.IsZero(), "short %s", v.Short)
	assert.True(t, v.Collateral.IsZero(), "collateral %s", v.Collateral)
}

func TestTwapWindow(t *testing.T) {
	prices := []int64{2000, 2050, 2100, 2150, 2200, 2250, 2300, 2350}
	m, uni, _ := newTestSetup(t, controllerRows(prices...))

	// Full window: geometric mean of the 7 prices ending at row 7.
	setStatus(t, m, uni, 7)
	want := geoMean(prices[1:8])
	assert.InDelta(t, want, m.TwapEthPrice().InexactFloat64(), 1e-6)

	// Early in the series the window clamps to the available rows.
	setStatus(t, m, uni, 1)
	want = geoMean(prices[0:2])
	assert.InDelta(t, want, m.TwapEthPrice().InexactFloat64(), 1e-6)
}

func geoMean(vals []int64) float64 {
	sum := 0.0
	for _, v := range vals {
		sum += math.Log(float64(v))
	}
	return math.Exp(sum / float64(len(vals)))
}

func positionTick(t *testing.T, uni *uniswap.LPMarket) int {
	t.Helper()
	tick, err := uni.Pool().PriceTick(decimal.RequireFromString("0.1"))
	require.NoError(t, err)
	return tick
}

func TestDepositUniPosition_Validation(t *testing.T) {
	m, uni, b := newTestSetup(t, controllerRows(2000))
	b.SetBalance(weth, decimal.NewFromInt(5))
	b.SetBalance(osqth, decimal.NewFromInt(5))
	setStatus(t, m, uni, 0)

	key, err := m.OpenDepositMint(0, decimal.NewFromInt(2), decimal.NewFromInt(10), nil)
	require.NoError(t, err)

	// Unknown position.
	err = m.DepositUniPosition(key, uniswap.PositionInfo{LowerTick: -60, UpperTick: 60})
	require.ErrorIs(t, err, domain.ErrDomainViolation)

	tick := positionTick(t, uni)
	lp, err := uni.AddLiquidityByTick(tick-600, tick+600, decimal.NewFromInt(5), decimal.RequireFromString("0.5"))
	require.NoError(t, err)
	require.NoError(t, m.DepositUniPosition(key, lp.Position))

	// The LP market no longer counts the transferred position...
	bal, err := uni.Balance(nil)
	require.NoError(t, err)
	assert.True(t, bal.NetValue.IsZero())

	// ...and the same NFT cannot enter twice.
	err = m.DepositUniPosition(key, lp.Position)
	require.ErrorIs(t, err, domain.ErrDomainViolation)
}
