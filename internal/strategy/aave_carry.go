package strategy

import (
	"fmt"

	"github.com/shopspring/decimal"

	"defi-backtest-lab/internal/aave"
	"defi-backtest-lab/internal/backtest"
	"defi-backtest-lab/internal/domain"
)

// AaveCarry supplies collateral on the first bar and takes a variable-rate
// borrow sized at BorrowRatio of the allowed maximum. Whenever the health
// factor drops below MinHealthFactor it repays from the wallet until the
// factor is back at TargetHealthFactor.
type AaveCarry struct {
	backtest.BaseStrategy

	Market             string
	Collateral         domain.TokenInfo
	CollateralAmount   decimal.Decimal
	Borrow             domain.TokenInfo
	BorrowRatio        decimal.Decimal
	MinHealthFactor    decimal.Decimal
	TargetHealthFactor decimal.Decimal

	market    *aave.Market
	borrowKey aave.BorrowKey
	hasBorrow bool
	entered   bool
}

var _ Strategy = (*AaveCarry)(nil)

// ID returns the strategy identifier including parameters.
func (s *AaveCarry) ID() string {
	return fmt.Sprintf("%s_%s_%s%s_%s%s_%s", TypeAaveCarry, s.Market,
		s.CollateralAmount, s.Collateral.Name, s.BorrowRatio, s.Borrow.Name, s.MinHealthFactor)
}

func (s *AaveCarry) Initialize() error {
	m, err := s.Actuator().Broker().Market(s.Market)
	if err != nil {
		return err
	}
	av, ok := m.(*aave.Market)
	if !ok {
		return fmt.Errorf("%w: market %s is not an aave market", domain.ErrConfiguration, s.Market)
	}
	s.market = av
	return nil
}

func (s *AaveCarry) OnBar(backtest.Snapshot) error {
	if s.entered {
		return nil
	}
	if _, err := s.market.Supply(s.Collateral, s.CollateralAmount, true); err != nil {
		return err
	}
	max, err := s.market.MaxBorrowAmount(s.Borrow)
	if err != nil {
		return err
	}
	amount := max.Mul(s.BorrowRatio)
	if amount.Sign() > 0 {
		key, err := s.market.Borrow(s.Borrow, amount, aave.RateModeVariable)
		if err != nil {
			return err
		}
		s.borrowKey = key
		s.hasBorrow = true
		s.Actuator().CommentLastAction("carry entry")
	}
	s.entered = true
	return nil
}

// AfterBar deleverages after interest accrual. A liquidation wipes the
// borrow position, which shows up here as a maximal health factor.
func (s *AaveCarry) AfterBar(backtest.Snapshot) error {
	if !s.hasBorrow {
		return nil
	}
	hf, err := s.market.HealthFactor()
	if err != nil {
		return err
	}
	if hf.GreaterThanOrEqual(s.MinHealthFactor) {
		return nil
	}

	owed, err := s.market.BorrowAmount(s.borrowKey)
	if err != nil {
		return err
	}
	repay := owed.Sub(owed.Mul(hf).Div(s.TargetHealthFactor))
	if bal := s.Actuator().Broker().Balance(s.Borrow); repay.GreaterThan(bal) {
		repay = bal
	}
	if repay.Sign() <= 0 {
		return nil
	}
	if _, err := s.market.Repay(s.borrowKey, repay, false); err != nil {
		return err
	}
	s.Actuator().CommentLastAction("health factor restore")
	return nil
}

// Notify releases the borrow bookkeeping once a liquidation closes it.
func (s *AaveCarry) Notify(a domain.Action) {
	if a.Type == domain.ActionAaveLiquidation && s.market != nil && s.market.BorrowCount() == 0 {
		s.hasBorrow = false
	}
}
