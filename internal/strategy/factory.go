package strategy

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"defi-backtest-lab/internal/domain"
)

// Strategy types accepted by FromConfig.
const (
	TypeHold           = "HOLD"
	TypeUniLPRebalance = "UNI_LP_REBALANCE"
	TypeAaveCarry      = "AAVE_CARRY"
	TypeSqueethShort   = "SQUEETH_SHORT"
)

// Factory errors
var (
	ErrUnknownStrategyType       = errors.New("unknown strategy type")
	ErrUnknownToken              = errors.New("token not declared in configuration")
	ErrMissingMarket             = errors.New("strategy requires Market")
	ErrMissingInterval           = errors.New("UNI_LP_REBALANCE requires IntervalMs")
	ErrMissingRangePct           = errors.New("UNI_LP_REBALANCE requires RangePct")
	ErrMissingCollateral         = errors.New("AAVE_CARRY requires CollateralToken and CollateralAmount")
	ErrMissingBorrow             = errors.New("AAVE_CARRY requires BorrowToken and BorrowRatio")
	ErrMissingMinHealthFactor    = errors.New("AAVE_CARRY requires MinHealthFactor")
	ErrMissingTargetHealthFactor = errors.New("AAVE_CARRY requires TargetHealthFactor")
	ErrMissingDepositEth         = errors.New("SQUEETH_SHORT requires DepositEth")
	ErrMissingCollatRate         = errors.New("SQUEETH_SHORT requires CollatRate")
)

// Config holds the scalar parameters of one strategy. Pointer fields are
// required only by the strategy types that name them.
type Config struct {
	Type   string
	Market string

	IntervalMs *int64
	RangePct   *float64

	CollateralToken    *string
	CollateralAmount   *float64
	BorrowToken        *string
	BorrowRatio        *float64
	MinHealthFactor    *float64
	TargetHealthFactor *float64

	DepositEth *float64
	CollatRate *float64
}

// TokenSet maps upper-case token names to their metadata.
type TokenSet map[string]domain.TokenInfo

func (ts TokenSet) resolve(name string) (domain.TokenInfo, error) {
	token, ok := ts[strings.ToUpper(name)]
	if !ok {
		return domain.TokenInfo{}, fmt.Errorf("%w: %s", ErrUnknownToken, name)
	}
	return token, nil
}

// FromConfig creates a Strategy from its scalar configuration, validating
// the parameters the chosen type requires.
func FromConfig(cfg Config, tokens TokenSet) (Strategy, error) {
	switch cfg.Type {
	case TypeHold:
		return NewHold(), nil
	case TypeUniLPRebalance:
		return fromUniLPRebalanceConfig(cfg)
	case TypeAaveCarry:
		return fromAaveCarryConfig(cfg, tokens)
	case TypeSqueethShort:
		return fromSqueethShortConfig(cfg)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategyType, cfg.Type)
	}
}

func fromUniLPRebalanceConfig(cfg Config) (*UniLPRebalance, error) {
	if cfg.Market == "" {
		return nil, ErrMissingMarket
	}
	if cfg.IntervalMs == nil {
		return nil, ErrMissingInterval
	}
	if cfg.RangePct == nil {
		return nil, ErrMissingRangePct
	}
	return NewUniLPRebalance(
		cfg.Market,
		time.Duration(*cfg.IntervalMs)*time.Millisecond,
		decimal.NewFromFloat(*cfg.RangePct),
	), nil
}

func fromAaveCarryConfig(cfg Config, tokens TokenSet) (*AaveCarry, error) {
	if cfg.Market == "" {
		return nil, ErrMissingMarket
	}
	if cfg.CollateralToken == nil || cfg.CollateralAmount == nil {
		return nil, ErrMissingCollateral
	}
	if cfg.BorrowToken == nil || cfg.BorrowRatio == nil {
		return nil, ErrMissingBorrow
	}
	if cfg.MinHealthFactor == nil {
		return nil, ErrMissingMinHealthFactor
	}
	if cfg.TargetHealthFactor == nil {
		return nil, ErrMissingTargetHealthFactor
	}
	collateral, err := tokens.resolve(*cfg.CollateralToken)
	if err != nil {
		return nil, err
	}
	borrow, err := tokens.resolve(*cfg.BorrowToken)
	if err != nil {
		return nil, err
	}
	return &AaveCarry{
		Market:             cfg.Market,
		Collateral:         collateral,
		CollateralAmount:   decimal.NewFromFloat(*cfg.CollateralAmount),
		Borrow:             borrow,
		BorrowRatio:        decimal.NewFromFloat(*cfg.BorrowRatio),
		MinHealthFactor:    decimal.NewFromFloat(*cfg.MinHealthFactor),
		TargetHealthFactor: decimal.NewFromFloat(*cfg.TargetHealthFactor),
	}, nil
}

func fromSqueethShortConfig(cfg Config) (*SqueethShort, error) {
	if cfg.Market == "" {
		return nil, ErrMissingMarket
	}
	if cfg.DepositEth == nil {
		return nil, ErrMissingDepositEth
	}
	if cfg.CollatRate == nil {
		return nil, ErrMissingCollatRate
	}
	return NewSqueethShort(
		cfg.Market,
		decimal.NewFromFloat(*cfg.DepositEth),
		decimal.NewFromFloat(*cfg.CollatRate),
	), nil
}
