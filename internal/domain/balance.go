package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// BalanceField is one named value inside a market or wallet balance.
// Fields are ordered so report columns stay stable across iterations.
type BalanceField struct {
	Name  string
	Value decimal.Decimal
}

// MarketBalance is the per-iteration valuation of one market. NetValue is
// denominated in the market's quote token; Fields carry market-specific
// extras (uncollected fees, health factor, ...) that reports expose as
// columns. The column set is derived from Fields at run time; nothing
// hard-codes a schema.
type MarketBalance struct {
	NetValue decimal.Decimal
	Fields   []BalanceField
}

// MarketStatusEntry pairs a market with its balance inside an AccountStatus.
type MarketStatusEntry struct {
	Market  MarketInfo
	Balance MarketBalance
}

// AccountStatus is the full portfolio valuation at one timestamp: wallet
// token balances plus every attached market's balance, with NetValue the
// quote-converted sum of everything.
type AccountStatus struct {
	Timestamp time.Time
	NetValue  decimal.Decimal
	Tokens    []BalanceField
	Markets   []MarketStatusEntry
}

// Asset is a wallet holding of one token.
type Asset struct {
	Token   TokenInfo
	Balance decimal.Decimal
}
