package domain

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

func init() {
	// Intermediate divisions must keep well over 28 significant digits so
	// index math and sqrt-price conversions stay exact at the reported scale.
	if decimal.DivisionPrecision < 40 {
		decimal.DivisionPrecision = 40
	}
}

// TokenInfo identifies an ERC-20 token. Identity is the uppercased name;
// two TokenInfo values with the same name refer to the same token.
type TokenInfo struct {
	Name     string // uppercased symbol, e.g. "USDC"
	Decimals int32  // on-chain decimals, e.g. 6 for USDC
	Address  string // optional contract address
}

// NewTokenInfo creates a TokenInfo with the name normalized to upper case.
func NewTokenInfo(name string, decimals int32) TokenInfo {
	return TokenInfo{Name: strings.ToUpper(name), Decimals: decimals}
}

// NewTokenInfoWithAddress creates a TokenInfo carrying a contract address.
func NewTokenInfoWithAddress(name string, decimals int32, address string) TokenInfo {
	t := NewTokenInfo(name, decimals)
	t.Address = address
	return t
}

func (t TokenInfo) String() string {
	return t.Name
}

// UnitValue pairs an amount with the unit it is denominated in.
// Action payloads carry UnitValue instead of bare decimals so serialized
// records stay self-describing.
type UnitValue struct {
	Value decimal.Decimal `json:"value"`
	Unit  string          `json:"unit"`
}

// NewUnitValue creates a UnitValue denominated in the given token.
func NewUnitValue(value decimal.Decimal, token TokenInfo) UnitValue {
	return UnitValue{Value: value, Unit: token.Name}
}

func (u UnitValue) String() string {
	return u.Value.String() + " " + u.Unit
}

// PriceRow holds per-token prices for a single timestamp, keyed by the
// uppercased token symbol. Prices are denominated in the run's quote token.
type PriceRow map[string]decimal.Decimal

// Price returns the price of token, or an error wrapping ErrConfiguration
// when the price column is missing.
func (p PriceRow) Price(token TokenInfo) (decimal.Decimal, error) {
	v, ok := p[token.Name]
	if !ok {
		return decimal.Decimal{}, fmt.Errorf("%w: no price for token %s", ErrConfiguration, token.Name)
	}
	return v, nil
}

// HasPrice reports whether a price column exists for token.
func (p PriceRow) HasPrice(token TokenInfo) bool {
	_, ok := p[token.Name]
	return ok
}
