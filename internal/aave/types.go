// Package aave simulates an Aave v3 lending pool: variable-rate supply and
// borrow positions tracked as index shares, health-factor accounting and
// automatic liquidation when the account goes under water.
package aave

import (
	"time"

	"github.com/shopspring/decimal"

	"defi-backtest-lab/internal/domain"
)

// HealthFactorMax stands in for an infinite health factor (no borrows).
var HealthFactorMax = decimal.New(1, 20)

// MaxAmount marks an amount argument as "the full position".
var MaxAmount = decimal.NewFromInt(-1)

// DefaultCloseFactor is the debt fraction a single liquidation step covers.
var DefaultCloseFactor = decimal.RequireFromString("0.5")

// InterestRateMode selects the borrow rate kind. Only variable borrows are
// simulated; the stable mode exists for data compatibility.
type InterestRateMode int

const (
	RateModeStable   InterestRateMode = 1
	RateModeVariable InterestRateMode = 2
)

// RiskParameters are the per-reserve risk settings.
type RiskParameters struct {
	LiquidationThreshold decimal.Decimal
	LTV                  decimal.Decimal
	LiquidationBonus     decimal.Decimal
	ReserveFactor        decimal.Decimal
	StableBorrowEnabled  bool
}

// RiskParameterTable maps uppercased token symbols to their risk parameters.
type RiskParameterTable map[string]RiskParameters

// SupplyKey identifies a supply position. All supplies of one token merge.
type SupplyKey string

// BorrowKey identifies a borrow position by token and rate mode.
type BorrowKey struct {
	Token    string
	RateMode InterestRateMode
}

// SupplyInfo is a live supply position. BaseAmount is in index shares; the
// current token amount is BaseAmount times the reserve's liquidity index.
type SupplyInfo struct {
	Token      domain.TokenInfo
	BaseAmount decimal.Decimal
	Collateral bool
}

// BorrowInfo is a live borrow position. BaseAmount is in index shares; the
// current debt is BaseAmount times the variable borrow index.
type BorrowInfo struct {
	Token      domain.TokenInfo
	BaseAmount decimal.Decimal
	RateMode   InterestRateMode
}

// MinuteRow is one minute of reserve state for a single token. Rates are
// annualized with continuous compounding; indices grow monotonically.
type MinuteRow struct {
	Timestamp           time.Time
	LiquidityRate       decimal.Decimal
	StableBorrowRate    decimal.Decimal
	VariableBorrowRate  decimal.Decimal
	LiquidityIndex      decimal.Decimal
	VariableBorrowIndex decimal.Decimal
}
