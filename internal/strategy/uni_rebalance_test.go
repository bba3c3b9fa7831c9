package strategy

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"defi-backtest-lab/internal/backtest"
	"defi-backtest-lab/internal/broker"
	"defi-backtest-lab/internal/domain"
	"defi-backtest-lab/internal/uniswap"
)

// newUniFixture builds a USDC/WETH pool pinned at 1000 USDC per WETH over n
// minutes, on a broker holding 10000 USDC and 10 WETH.
func newUniFixture(t *testing.T, n int) (*uniswap.LPMarket, *broker.Broker) {
	t.Helper()
	pool, err := uniswap.NewPool(usdc, weth, decimal.RequireFromString("0.0005"), usdc)
	require.NoError(t, err)
	tick, err := pool.PriceTick(decimal.NewFromInt(1000))
	require.NoError(t, err)

	rows := make([]uniswap.MinuteRow, n)
	for i := range rows {
		rows[i] = uniswap.MinuteRow{
			Timestamp:        minuteTS(i),
			OpenTick:         tick,
			CloseTick:        tick,
			LowestTick:       tick,
			HighestTick:      tick,
			CurrentLiquidity: decimal.New(1, 25),
		}
	}
	m, err := uniswap.New(uniswap.Options{Name: "uni", Pool: pool, Data: rows})
	require.NoError(t, err)

	b, err := broker.New(broker.Options{QuoteToken: usdc})
	require.NoError(t, err)
	require.NoError(t, b.AddMarket(m))
	b.SetBalance(usdc, decimal.NewFromInt(10000))
	b.SetBalance(weth, decimal.NewFromInt(10))
	return m, b
}

func uniPrices(n int) domain.PriceMatrix {
	return priceMatrix(n, map[string]float64{"WETH": 1000, "USDC": 1})
}

func TestUniLPRebalanceMintsAndRecenters(t *testing.T) {
	m, b := newUniFixture(t, 5)

	s := NewUniLPRebalance("uni", 2*time.Minute, decimal.RequireFromString("0.05"))
	res := runBacktest(t, b, s, uniPrices(5))

	// fires on bars 0, 2 and 4; each pass burns the old range first
	assert.Equal(t, 3, countActions(res, domain.ActionUniLPAddLiquidity))
	assert.Equal(t, 2, countActions(res, domain.ActionUniLPRemoveLiquidity))
	assert.Equal(t, 1, m.PositionCount())

	var commented bool
	for _, a := range res.Actions {
		if a.Comment == "scheduled rebalance" {
			commented = true
		}
	}
	assert.True(t, commented, "rebalance actions carry a comment")

	// flat price, no volume: value only leaks through swap fees and rounding
	final := res.Statuses[len(res.Statuses)-1].NetValue.InexactFloat64()
	assert.InDelta(t, 20000, final, 100)
}

func TestUniLPRebalanceRequiresLPMarket(t *testing.T) {
	_, b := newUniFixture(t, 3)

	s := NewUniLPRebalance("nope", time.Minute, decimal.RequireFromString("0.05"))
	a, err := backtest.New(backtest.Options{Broker: b, Strategy: s, Prices: uniPrices(3)})
	require.NoError(t, err)

	_, err = a.Run(context.Background())
	require.ErrorIs(t, err, domain.ErrConfiguration)
}

func TestUniLPRebalanceID(t *testing.T) {
	s := NewUniLPRebalance("uni", time.Hour, decimal.RequireFromString("0.05"))
	assert.Equal(t, "UNI_LP_REBALANCE_uni_3600000ms_0.05", s.ID())
}
