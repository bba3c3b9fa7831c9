package uniswap

import (
	"time"

	"github.com/shopspring/decimal"
)

// MinuteRow is one minute of aggregated pool activity. Tick columns are pool
// ticks; amount columns are raw on-chain integer units (pre decimal shift);
// CurrentLiquidity is the pool's active liquidity during the minute.
type MinuteRow struct {
	Timestamp   time.Time
	OpenTick    int
	CloseTick   int
	LowestTick  int
	HighestTick int

	InAmount0  decimal.Decimal
	InAmount1  decimal.Decimal
	NetAmount0 decimal.Decimal
	NetAmount1 decimal.Decimal

	CurrentLiquidity decimal.Decimal
}

// Volume0 returns the token0 swap-in volume in human units.
func (r MinuteRow) Volume0(decimals0 int32) decimal.Decimal {
	return r.InAmount0.Shift(-decimals0)
}

// Volume1 returns the token1 swap-in volume in human units.
func (r MinuteRow) Volume1(decimals1 int32) decimal.Decimal {
	return r.InAmount1.Shift(-decimals1)
}
