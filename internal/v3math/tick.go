// Package v3math implements Uniswap v3 fixed-point price math: conversions
// between ticks, sqrt prices in Q64.96 encoding and human-unit prices, plus
// the liquidity/amount formulas. The tick ladder reproduces the on-chain
// TickMath library bit for bit; everything monetary is shopspring decimal,
// raw pool integers are math/big.
package v3math

import (
	"fmt"
	"math"
	"math/big"

	"defi-backtest-lab/internal/domain"
)

// Tick bounds of Uniswap v3. Ticks outside this range have no sqrt ratio.
const (
	MinTick = -887272
	MaxTick = 887272
)

var (
	// Q96 is 2^96, the scale of sqrtPriceX96.
	Q96 = new(big.Int).Lsh(big.NewInt(1), 96)

	q32        = new(big.Int).Lsh(big.NewInt(1), 32)
	q128       = new(big.Int).Lsh(big.NewInt(1), 128)
	maxUint256 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

	// MinSqrtRatio is the sqrt ratio at MinTick.
	MinSqrtRatio = big.NewInt(4295128739)
	// MaxSqrtRatio is the sqrt ratio at MaxTick.
	MaxSqrtRatio = mustBig("1461446703485210103287273052203988822378723970342")
)

// tickRatios[i] is the precomputed Q128.128 ratio for tick bit i.
var tickRatios = []*big.Int{
	mustHex("fffcb933bd6fad37aa2d162d1a594001"),
	mustHex("fff97272373d413259a46990580e213a"),
	mustHex("fff2e50f5f656932ef12357cf3c7fdcc"),
	mustHex("ffe5caca7e10e4e61c3624eaa0941cd0"),
	mustHex("ffcb9843d60f6159c9db58835c926644"),
	mustHex("ff973b41fa98c081472e6896dfb254c0"),
	mustHex("ff2ea16466c96a3843ec78b326b52861"),
	mustHex("fe5dee046a99a2a811c461f1969c3053"),
	mustHex("fcbe86c7900a88aedcffc83b479aa3a4"),
	mustHex("f987a7253ac413176f2b074cf7815e54"),
	mustHex("f3392b0822b70005940c7a398e4b70f3"),
	mustHex("e7159475a2c29b7443b29c7fa6e889d9"),
	mustHex("d097f3bdfd2022b8845ad8f792aa5825"),
	mustHex("a9f746462d870fdf8a65dc1f90e061e5"),
	mustHex("70d869a156d2a1b890bb3df62baf32f7"),
	mustHex("31be135f97d08fd981231505542fcfa6"),
	mustHex("9aa508b5b7a84e1c677de54f3e99bc9"),
	mustHex("5d6af8dedb81196699c329225ee604"),
	mustHex("2216e584f5fa1ea926041bedfe98"),
	mustHex("48a170391f7dc42444e8fa2"),
}

func mustHex(s string) *big.Int {
	v, ok := new(big.Int).SetString(s, 16)
	if !ok {
		panic("v3math: bad hex constant " + s)
	}
	return v
}

func mustBig(s string) *big.Int {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		panic("v3math: bad constant " + s)
	}
	return v
}

// GetSqrtRatioAtTick returns sqrt(1.0001^tick) * 2^96, identical to the
// on-chain TickMath.getSqrtRatioAtTick.
func GetSqrtRatioAtTick(tick int) (*big.Int, error) {
	if tick < MinTick || tick > MaxTick {
		return nil, fmt.Errorf("%w: tick %d outside [%d, %d]", domain.ErrDomainViolation, tick, MinTick, MaxTick)
	}

	absTick := tick
	if absTick < 0 {
		absTick = -absTick
	}

	ratio := new(big.Int)
	if absTick&1 != 0 {
		ratio.Set(tickRatios[0])
	} else {
		ratio.Set(q128)
	}
	for i := 1; i < len(tickRatios); i++ {
		if absTick&(1<<uint(i)) != 0 {
			ratio.Mul(ratio, tickRatios[i])
			ratio.Rsh(ratio, 128)
		}
	}
	if tick > 0 {
		ratio.Div(maxUint256, ratio)
	}

	// Round up the Q128.128 → Q64.96 downscale, matching the reference.
	rem := new(big.Int).Mod(ratio, q32)
	ratio.Rsh(ratio, 32)
	if rem.Sign() != 0 {
		ratio.Add(ratio, big.NewInt(1))
	}
	return ratio, nil
}

// GetTickAtSqrtRatio returns the greatest tick whose sqrt ratio is at most
// sqrtPriceX96.
func GetTickAtSqrtRatio(sqrtPriceX96 *big.Int) (int, error) {
	if sqrtPriceX96.Cmp(MinSqrtRatio) < 0 || sqrtPriceX96.Cmp(MaxSqrtRatio) > 0 {
		return 0, fmt.Errorf("%w: sqrt price %s outside valid range", domain.ErrDomainViolation, sqrtPriceX96)
	}

	// Float estimate first, then a ladder walk to make the result exact.
	// tick = floor(log(sqrt/2^96) / log(sqrt(1.0001))).
	f, _ := new(big.Float).SetInt(sqrtPriceX96).Float64()
	r := f / math.Pow(2, 96)
	tick := int(math.Floor(2 * math.Log(r) / math.Log(1.0001)))
	if tick < MinTick {
		tick = MinTick
	}
	if tick > MaxTick {
		tick = MaxTick
	}

	for tick > MinTick {
		s, err := GetSqrtRatioAtTick(tick)
		if err != nil {
			return 0, err
		}
		if s.Cmp(sqrtPriceX96) <= 0 {
			break
		}
		tick--
	}
	for tick < MaxTick {
		s, err := GetSqrtRatioAtTick(tick + 1)
		if err != nil {
			return 0, err
		}
		if s.Cmp(sqrtPriceX96) > 0 {
			break
		}
		tick++
	}
	return tick, nil
}

// NearestUsableTick rounds tick to the nearest multiple of spacing and keeps
// the result inside the usable tick range.
func NearestUsableTick(tick, spacing int) int {
	if spacing <= 0 {
		return tick
	}
	rounded := int(math.Round(float64(tick)/float64(spacing))) * spacing
	if rounded < MinTick {
		rounded += spacing
	}
	if rounded > MaxTick {
		rounded -= spacing
	}
	return rounded
}
