// Package uniswap simulates a Uniswap v3 pool as a backtest market: minting
// and burning concentrated-liquidity positions, collecting fees accrued from
// per-minute aggregated swap volume, and spot conversions between the pool's
// two tokens.
package uniswap

import (
	"fmt"

	"github.com/shopspring/decimal"

	"defi-backtest-lab/internal/domain"
	"defi-backtest-lab/internal/v3math"
)

// feeTickSpacing maps the pool fee rate to its tick spacing, mirroring the
// deployed fee tiers.
var feeTickSpacing = map[string]int{
	"0.0001": 1,
	"0.0005": 10,
	"0.003":  60,
	"0.01":   200,
}

// Pool is the immutable description of one Uniswap v3 pool.
type Pool struct {
	Token0  domain.TokenInfo
	Token1  domain.TokenInfo
	FeeRate decimal.Decimal

	quoteToken  domain.TokenInfo
	baseToken   domain.TokenInfo
	tickSpacing int
}

// NewPool creates a Pool. The quote token must be one of the pair and the
// fee rate one of the deployed tiers (0.01%, 0.05%, 0.3%, 1%).
func NewPool(token0, token1 domain.TokenInfo, feeRate decimal.Decimal, quoteToken domain.TokenInfo) (*Pool, error) {
	spacing, ok := feeTickSpacing[feeRate.String()]
	if !ok {
		return nil, fmt.Errorf("%w: unsupported fee rate %s", domain.ErrConfiguration, feeRate)
	}
	p := &Pool{
		Token0:      token0,
		Token1:      token1,
		FeeRate:     feeRate,
		tickSpacing: spacing,
	}
	switch quoteToken.Name {
	case token0.Name:
		p.quoteToken, p.baseToken = token0, token1
	case token1.Name:
		p.quoteToken, p.baseToken = token1, token0
	default:
		return nil, fmt.Errorf("%w: quote token %s not in pool %s/%s",
			domain.ErrConfiguration, quoteToken.Name, token0.Name, token1.Name)
	}
	return p, nil
}

func (p *Pool) TickSpacing() int { return p.tickSpacing }

func (p *Pool) QuoteToken() domain.TokenInfo { return p.quoteToken }

func (p *Pool) BaseToken() domain.TokenInfo { return p.baseToken }

// Token0IsQuote reports whether token0 is the quote side of the pair.
func (p *Pool) Token0IsQuote() bool { return p.quoteToken.Name == p.Token0.Name }

// TickPrice returns the quote-per-base price at tick.
func (p *Pool) TickPrice(tick int) (decimal.Decimal, error) {
	return v3math.TickToBasePrice(tick, p.Token0.Decimals, p.Token1.Decimals, p.Token0IsQuote())
}

// PriceTick returns the tick whose ratio floors the quote-per-base price.
func (p *Pool) PriceTick(price decimal.Decimal) (int, error) {
	return v3math.BasePriceToTick(price, p.Token0.Decimals, p.Token1.Decimals, p.Token0IsQuote())
}

// BaseQuoteToToken01 maps (base, quote) amounts onto (token0, token1) order.
func (p *Pool) BaseQuoteToToken01(base, quote decimal.Decimal) (decimal.Decimal, decimal.Decimal) {
	if p.Token0IsQuote() {
		return quote, base
	}
	return base, quote
}

// Token01ToBaseQuote maps (token0, token1) amounts onto (base, quote) order.
func (p *Pool) Token01ToBaseQuote(amount0, amount1 decimal.Decimal) (decimal.Decimal, decimal.Decimal) {
	if p.Token0IsQuote() {
		return amount1, amount0
	}
	return amount0, amount1
}
