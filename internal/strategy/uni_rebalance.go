package strategy

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"defi-backtest-lab/internal/backtest"
	"defi-backtest-lab/internal/domain"
	"defi-backtest-lab/internal/uniswap"
)

// UniLPRebalance re-centers one LP position around the pool price on a fixed
// schedule: burn and collect everything, even out the wallet, mint a fresh
// symmetric range of RangePct around the current price. The first mint
// happens on the first bar.
type UniLPRebalance struct {
	backtest.BaseStrategy

	Market   string
	Interval time.Duration
	RangePct decimal.Decimal

	market *uniswap.LPMarket
}

var _ Strategy = (*UniLPRebalance)(nil)

// NewUniLPRebalance creates a UniLPRebalance strategy.
func NewUniLPRebalance(marketName string, interval time.Duration, rangePct decimal.Decimal) *UniLPRebalance {
	return &UniLPRebalance{
		Market:   marketName,
		Interval: interval,
		RangePct: rangePct,
	}
}

// ID returns the strategy identifier including parameters.
func (s *UniLPRebalance) ID() string {
	return fmt.Sprintf("%s_%s_%dms_%s", TypeUniLPRebalance, s.Market, s.Interval.Milliseconds(), s.RangePct)
}

func (s *UniLPRebalance) Initialize() error {
	m, err := s.Actuator().Broker().Market(s.Market)
	if err != nil {
		return err
	}
	lp, ok := m.(*uniswap.LPMarket)
	if !ok {
		return fmt.Errorf("%w: market %s is not a uniswap LP market", domain.ErrConfiguration, s.Market)
	}
	s.market = lp
	s.AddTrigger(backtest.Period(s.Interval, true, 0, s.rebalance))
	return nil
}

func (s *UniLPRebalance) rebalance(backtest.Snapshot) error {
	for _, info := range s.market.Positions() {
		pos, ok := s.market.Position(info)
		if !ok || pos.Transferred {
			continue
		}
		if _, err := s.market.RemoveLiquidity(info, nil, true, true); err != nil {
			return err
		}
	}
	if err := s.market.EvenRebalance(); err != nil {
		return err
	}

	one := decimal.New(1, 0)
	price := s.market.Price()
	lower := price.Mul(one.Sub(s.RangePct))
	upper := price.Mul(one.Add(s.RangePct))
	if _, err := s.market.AddLiquidity(lower, upper, uniswap.FullBalance, uniswap.FullBalance); err != nil {
		return err
	}
	s.Actuator().CommentLastAction("scheduled rebalance")
	return nil
}
