package uniswap

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// PositionInfo identifies a liquidity position by its tick range. Two mints
// over the same range merge into one position.
type PositionInfo struct {
	LowerTick int
	UpperTick int
}

func (p PositionInfo) String() string {
	return fmt.Sprintf("[%d,%d]", p.LowerTick, p.UpperTick)
}

// Position is a live liquidity position. Pending amounts are human-unit
// token0/token1 balances waiting to be collected: burned principal plus
// accrued fees. Transferred positions are held by another market (a Squeeth
// vault NFT) and excluded from this market's balance.
type Position struct {
	Pending0  decimal.Decimal
	Pending1  decimal.Decimal
	Liquidity *big.Int

	LowerPrice decimal.Decimal
	UpperPrice decimal.Decimal

	Transferred bool
}

// Empty reports whether the position holds no liquidity and no pending
// amounts and can be deleted.
func (p *Position) Empty() bool {
	return p.Liquidity.Sign() == 0 && p.Pending0.IsZero() && p.Pending1.IsZero()
}
