// Package squeeth simulates the Squeeth controller: vaults shorting oSQTH (a
// power perpetual tracking ETH squared) against ETH collateral, optionally
// backed by a Uniswap LP NFT, with safety checks, debt reduction and
// liquidation.
package squeeth

import (
	"time"

	"github.com/shopspring/decimal"

	"defi-backtest-lab/internal/uniswap"
)

// Controller constants.
var (
	// TwapPeriod is the oracle averaging window in minutes.
	TwapPeriod = 7
	// MinDeposit is the smallest effective ETH collateral a vault with debt
	// may hold.
	MinDeposit = decimal.RequireFromString("0.5")
	// IndexScale divides the squeeth index: one oSQTH is worth
	// normFactor * ethPrice / IndexScale in ETH terms.
	IndexScale = decimal.New(1, 4)
	// LiquidationBounty is the liquidator premium on seized debt value.
	LiquidationBounty = decimal.RequireFromString("0.1")
	// ReduceDebtBounty rewards triggering the NFT redemption of an unsafe
	// vault.
	ReduceDebtBounty = decimal.RequireFromString("0.02")

	// crNumerator/crDenominator encode the 150% minimum collateral ratio.
	crNumerator   = decimal.NewFromInt(3)
	crDenominator = decimal.NewFromInt(2)
)

// MaxAmount marks an amount argument as "the full position".
var MaxAmount = decimal.NewFromInt(-1)

// VaultKey identifies a vault.
type VaultKey int

// Vault is one collateralized short position.
type Vault struct {
	ID          VaultKey
	Collateral  decimal.Decimal // ETH
	Short       decimal.Decimal // oSQTH minted
	UniPosition *uniswap.PositionInfo
}

// HasNFT reports whether a Uniswap LP position backs this vault.
func (v *Vault) HasNFT() bool { return v.UniPosition != nil }

// MinuteRow is one minute of controller state: the decaying normalization
// factor plus the USD prices of ETH and oSQTH.
type MinuteRow struct {
	Timestamp  time.Time
	NormFactor decimal.Decimal
	EthPrice   decimal.Decimal
	OsqthPrice decimal.Decimal
}
