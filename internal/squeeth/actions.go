package squeeth

import "defi-backtest-lab/internal/domain"

// OpenVaultDetail records a new vault.
type OpenVaultDetail struct {
	Vault int `json:"vault"`
}

func (OpenVaultDetail) Kind() domain.ActionType { return domain.ActionSqueethOpenVault }

// UpdateCollateralDetail records an ETH collateral change, negative for
// withdrawals.
type UpdateCollateralDetail struct {
	Vault  int              `json:"vault"`
	Change domain.UnitValue `json:"change"`
	Total  domain.UnitValue `json:"total"`
}

func (UpdateCollateralDetail) Kind() domain.ActionType { return domain.ActionSqueethUpdateCollateral }

// UpdateShortDetail records an oSQTH short change, negative for burns.
type UpdateShortDetail struct {
	Vault  int              `json:"vault"`
	Change domain.UnitValue `json:"change"`
	Total  domain.UnitValue `json:"total"`
}

func (UpdateShortDetail) Kind() domain.ActionType { return domain.ActionSqueethUpdateShort }

// DepositUniLPDetail records an LP NFT entering a vault as collateral.
type DepositUniLPDetail struct {
	Vault     int    `json:"vault"`
	LowerTick int    `json:"lower_tick"`
	UpperTick int    `json:"upper_tick"`
	Market    string `json:"lp_market"`
}

func (DepositUniLPDetail) Kind() domain.ActionType { return domain.ActionSqueethDepositUniLP }

// WithdrawUniLPDetail records an LP NFT leaving a vault.
type WithdrawUniLPDetail struct {
	Vault     int    `json:"vault"`
	LowerTick int    `json:"lower_tick"`
	UpperTick int    `json:"upper_tick"`
	Market    string `json:"lp_market"`
}

func (WithdrawUniLPDetail) Kind() domain.ActionType { return domain.ActionSqueethWithdrawUniLP }

// ReduceDebtDetail records an NFT redemption burning part of the short.
type ReduceDebtDetail struct {
	Vault          int              `json:"vault"`
	BurnedShort    domain.UnitValue `json:"burned_short"`
	ExcessReturned domain.UnitValue `json:"excess_returned"`
	EthToVault     domain.UnitValue `json:"eth_to_vault"`
	Bounty         domain.UnitValue `json:"bounty"`
}

func (ReduceDebtDetail) Kind() domain.ActionType { return domain.ActionSqueethReduceDebt }

// LiquidationDetail records a vault liquidation.
type LiquidationDetail struct {
	Vault          int              `json:"vault"`
	ShortCovered   domain.UnitValue `json:"short_covered"`
	CollateralPaid domain.UnitValue `json:"collateral_paid"`
}

func (LiquidationDetail) Kind() domain.ActionType { return domain.ActionSqueethLiquidation }
