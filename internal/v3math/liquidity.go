package v3math

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"

	"defi-backtest-lab/internal/domain"
)

// amount0Delta returns the raw token0 amount between two sqrt ratios for a
// given liquidity, rounded down: L * 2^96 * (b-a) / b / a.
func amount0Delta(sqrtA, sqrtB, liquidity *big.Int) *big.Int {
	if sqrtA.Cmp(sqrtB) > 0 {
		sqrtA, sqrtB = sqrtB, sqrtA
	}
	n := new(big.Int).Lsh(liquidity, 96)
	n.Mul(n, new(big.Int).Sub(sqrtB, sqrtA))
	n.Div(n, sqrtB)
	n.Div(n, sqrtA)
	return n
}

// amount1Delta returns the raw token1 amount between two sqrt ratios for a
// given liquidity, rounded down: L * (b-a) / 2^96.
func amount1Delta(sqrtA, sqrtB, liquidity *big.Int) *big.Int {
	if sqrtA.Cmp(sqrtB) > 0 {
		sqrtA, sqrtB = sqrtB, sqrtA
	}
	n := new(big.Int).Sub(sqrtB, sqrtA)
	n.Mul(n, liquidity)
	n.Rsh(n, 96)
	return n
}

// liquidityForAmount0 returns amount0 * (a*b/2^96) / (b-a).
func liquidityForAmount0(amount0, sqrtA, sqrtB *big.Int) *big.Int {
	if sqrtA.Cmp(sqrtB) > 0 {
		sqrtA, sqrtB = sqrtB, sqrtA
	}
	inter := new(big.Int).Mul(sqrtA, sqrtB)
	inter.Rsh(inter, 96)
	inter.Mul(inter, amount0)
	return inter.Div(inter, new(big.Int).Sub(sqrtB, sqrtA))
}

// liquidityForAmount1 returns amount1 * 2^96 / (b-a).
func liquidityForAmount1(amount1, sqrtA, sqrtB *big.Int) *big.Int {
	if sqrtA.Cmp(sqrtB) > 0 {
		sqrtA, sqrtB = sqrtB, sqrtA
	}
	n := new(big.Int).Lsh(amount1, 96)
	return n.Div(n, new(big.Int).Sub(sqrtB, sqrtA))
}

// GetAmounts returns the human-unit token amounts recoverable from a
// position of the given liquidity at the current sqrt price. Three branches:
// entirely below the range (all token0), in range (both), entirely above
// (all token1). Amounts round down, matching on-chain withdrawals.
func GetAmounts(sqrtPriceX96 *big.Int, tickLower, tickUpper int, liquidity *big.Int, decimals0, decimals1 int32) (decimal.Decimal, decimal.Decimal, error) {
	if liquidity.Sign() < 0 {
		return decimal.Decimal{}, decimal.Decimal{}, fmt.Errorf("%w: negative liquidity %s", domain.ErrDomainViolation, liquidity)
	}
	if tickLower > tickUpper {
		tickLower, tickUpper = tickUpper, tickLower
	}
	sqrtA, err := GetSqrtRatioAtTick(tickLower)
	if err != nil {
		return decimal.Decimal{}, decimal.Decimal{}, err
	}
	sqrtB, err := GetSqrtRatioAtTick(tickUpper)
	if err != nil {
		return decimal.Decimal{}, decimal.Decimal{}, err
	}

	var raw0, raw1 *big.Int
	switch {
	case sqrtPriceX96.Cmp(sqrtA) <= 0:
		raw0 = amount0Delta(sqrtA, sqrtB, liquidity)
		raw1 = big.NewInt(0)
	case sqrtPriceX96.Cmp(sqrtB) >= 0:
		raw0 = big.NewInt(0)
		raw1 = amount1Delta(sqrtA, sqrtB, liquidity)
	default:
		raw0 = amount0Delta(sqrtPriceX96, sqrtB, liquidity)
		raw1 = amount1Delta(sqrtA, sqrtPriceX96, liquidity)
	}
	return decimal.NewFromBigInt(raw0, -decimals0), decimal.NewFromBigInt(raw1, -decimals1), nil
}

// GetLiquidity returns the pool liquidity minted by supplying the given
// human-unit token amounts over [tickLower, tickUpper] at the current sqrt
// price. In range the result is the binding minimum of the two sides;
// liquidity is floored.
func GetLiquidity(sqrtPriceX96 *big.Int, tickLower, tickUpper int, amount0, amount1 decimal.Decimal, decimals0, decimals1 int32) (*big.Int, error) {
	if amount0.Sign() < 0 || amount1.Sign() < 0 {
		return nil, fmt.Errorf("%w: negative token amount", domain.ErrDomainViolation)
	}
	if tickLower > tickUpper {
		tickLower, tickUpper = tickUpper, tickLower
	}
	sqrtA, err := GetSqrtRatioAtTick(tickLower)
	if err != nil {
		return nil, err
	}
	sqrtB, err := GetSqrtRatioAtTick(tickUpper)
	if err != nil {
		return nil, err
	}

	raw0 := amount0.Shift(decimals0).BigInt()
	raw1 := amount1.Shift(decimals1).BigInt()

	switch {
	case sqrtPriceX96.Cmp(sqrtA) <= 0:
		return liquidityForAmount0(raw0, sqrtA, sqrtB), nil
	case sqrtPriceX96.Cmp(sqrtB) >= 0:
		return liquidityForAmount1(raw1, sqrtA, sqrtB), nil
	default:
		l0 := liquidityForAmount0(raw0, sqrtPriceX96, sqrtB)
		l1 := liquidityForAmount1(raw1, sqrtA, sqrtPriceX96)
		if l0.Cmp(l1) < 0 {
			return l0, nil
		}
		return l1, nil
	}
}
