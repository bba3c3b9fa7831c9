package v3math

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"

	"defi-backtest-lab/internal/domain"
)

// sqrtFloatPrec is the mantissa precision used for price → sqrt conversions.
// 256 bits keeps round trips exact beyond 30 significant digits.
const sqrtFloatPrec = 256

var q96Decimal = decimal.RequireFromString("79228162514264337593543950336") // 2^96

// SqrtPriceX96ToPoolPrice converts a Q64.96 sqrt price into the pool price
// of token0 denominated in token1, in human units:
// (sqrt/2^96)^2 * 10^(d0-d1).
func SqrtPriceX96ToPoolPrice(sqrtPriceX96 *big.Int, decimals0, decimals1 int32) decimal.Decimal {
	s := decimal.NewFromBigInt(sqrtPriceX96, 0).Div(q96Decimal)
	return s.Mul(s).Mul(decimal.New(1, decimals0-decimals1))
}

// SqrtPriceX96ToBasePrice converts a sqrt price into the quote-per-base
// price. When token0 is the quote token the pool price is inverted.
func SqrtPriceX96ToBasePrice(sqrtPriceX96 *big.Int, decimals0, decimals1 int32, token0IsQuote bool) decimal.Decimal {
	pool := SqrtPriceX96ToPoolPrice(sqrtPriceX96, decimals0, decimals1)
	if token0IsQuote {
		return decimal.New(1, 0).Div(pool)
	}
	return pool
}

// BasePriceToSqrtPriceX96 is the inverse of SqrtPriceX96ToBasePrice.
func BasePriceToSqrtPriceX96(price decimal.Decimal, decimals0, decimals1 int32, token0IsQuote bool) (*big.Int, error) {
	if price.Sign() <= 0 {
		return nil, fmt.Errorf("%w: price must be positive, got %s", domain.ErrDomainViolation, price)
	}
	pool := price
	if token0IsQuote {
		pool = decimal.New(1, 0).Div(price)
	}
	// sqrt = sqrt(pool * 10^(d1-d0)) * 2^96, computed on big.Float to keep
	// precision past decimal's sqrt-less API.
	raw := pool.Mul(decimal.New(1, decimals1-decimals0))
	f, ok := new(big.Float).SetPrec(sqrtFloatPrec).SetString(raw.String())
	if !ok {
		return nil, fmt.Errorf("%w: unparseable price %s", domain.ErrDomainViolation, raw)
	}
	f.Sqrt(f)
	f.Mul(f, new(big.Float).SetPrec(sqrtFloatPrec).SetInt(Q96))
	out, _ := f.Int(nil)
	return out, nil
}

// TickToBasePrice returns the quote-per-base price at a tick.
func TickToBasePrice(tick int, decimals0, decimals1 int32, token0IsQuote bool) (decimal.Decimal, error) {
	sqrt, err := GetSqrtRatioAtTick(tick)
	if err != nil {
		return decimal.Decimal{}, err
	}
	return SqrtPriceX96ToBasePrice(sqrt, decimals0, decimals1, token0IsQuote), nil
}

// BasePriceToTick returns the tick whose sqrt ratio floors the given
// quote-per-base price.
func BasePriceToTick(price decimal.Decimal, decimals0, decimals1 int32, token0IsQuote bool) (int, error) {
	sqrt, err := BasePriceToSqrtPriceX96(price, decimals0, decimals1, token0IsQuote)
	if err != nil {
		return 0, err
	}
	return GetTickAtSqrtRatio(sqrt)
}
