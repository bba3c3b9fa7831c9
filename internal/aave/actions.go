package aave

import "defi-backtest-lab/internal/domain"

// SupplyDetail records a deposit into a reserve.
type SupplyDetail struct {
	Token        string           `json:"token"`
	Amount       domain.UnitValue `json:"amount"`
	BaseAmount   domain.UnitValue `json:"base_amount"`
	AsCollateral bool             `json:"collateral"`
}

func (SupplyDetail) Kind() domain.ActionType { return domain.ActionAaveSupply }

// WithdrawDetail records a withdrawal from a reserve.
type WithdrawDetail struct {
	Token      string           `json:"token"`
	Amount     domain.UnitValue `json:"amount"`
	BaseAmount domain.UnitValue `json:"base_amount"`
}

func (WithdrawDetail) Kind() domain.ActionType { return domain.ActionAaveWithdraw }

// BorrowDetail records a new debt.
type BorrowDetail struct {
	Token      string           `json:"token"`
	RateMode   int              `json:"rate_mode"`
	Amount     domain.UnitValue `json:"amount"`
	BaseAmount domain.UnitValue `json:"base_amount"`
}

func (BorrowDetail) Kind() domain.ActionType { return domain.ActionAaveBorrow }

// RepayDetail records a debt repayment.
type RepayDetail struct {
	Token          string           `json:"token"`
	RateMode       int              `json:"rate_mode"`
	Amount         domain.UnitValue `json:"amount"`
	BaseAmount     domain.UnitValue `json:"base_amount"`
	FromCollateral bool             `json:"from_collateral"`
}

func (RepayDetail) Kind() domain.ActionType { return domain.ActionAaveRepay }

// LiquidationDetail records one liquidation step.
type LiquidationDetail struct {
	DebtToken          string           `json:"debt_token"`
	CollateralToken    string           `json:"collateral_token"`
	DebtCovered        domain.UnitValue `json:"debt_covered"`
	CollateralSeized   domain.UnitValue `json:"collateral_seized"`
	HealthFactorBefore string           `json:"health_factor_before"`
	HealthFactorAfter  string           `json:"health_factor_after"`
}

func (LiquidationDetail) Kind() domain.ActionType { return domain.ActionAaveLiquidation }
