package strategy

import (
	"fmt"

	"github.com/shopspring/decimal"

	"defi-backtest-lab/internal/backtest"
	"defi-backtest-lab/internal/domain"
	"defi-backtest-lab/internal/squeeth"
)

// SqueethShort opens a vault at a fixed collateral rate on the first bar and
// sells the minted oSQTH through the LP market, keeping the premium in the
// wallet. It holds the short for the rest of the run; an unsafe vault is
// liquidated by the market itself.
type SqueethShort struct {
	backtest.BaseStrategy

	Market     string
	DepositEth decimal.Decimal
	CollatRate decimal.Decimal

	market  *squeeth.Market
	vault   squeeth.VaultKey
	entered bool
}

var _ Strategy = (*SqueethShort)(nil)

// NewSqueethShort creates a SqueethShort strategy.
func NewSqueethShort(marketName string, depositEth, collatRate decimal.Decimal) *SqueethShort {
	return &SqueethShort{
		Market:     marketName,
		DepositEth: depositEth,
		CollatRate: collatRate,
	}
}

// ID returns the strategy identifier including parameters.
func (s *SqueethShort) ID() string {
	return fmt.Sprintf("%s_%s_%seth_%s", TypeSqueethShort, s.Market, s.DepositEth, s.CollatRate)
}

func (s *SqueethShort) Initialize() error {
	m, err := s.Actuator().Broker().Market(s.Market)
	if err != nil {
		return err
	}
	sq, ok := m.(*squeeth.Market)
	if !ok {
		return fmt.Errorf("%w: market %s is not a squeeth market", domain.ErrConfiguration, s.Market)
	}
	s.market = sq
	return nil
}

func (s *SqueethShort) OnBar(backtest.Snapshot) error {
	if s.entered {
		return nil
	}
	key, minted, err := s.market.OpenDepositMintByCollatRate(s.DepositEth, s.CollatRate)
	if err != nil {
		return err
	}
	if err := s.market.SellSqueeth(minted); err != nil {
		return err
	}
	s.vault = key
	s.entered = true
	s.Actuator().CommentLastAction("short entry")
	return nil
}
