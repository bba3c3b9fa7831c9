// Package market defines the contract between the simulation loop, the broker
// and the individual market implementations. Markets never hold the wallet;
// they operate through the non-owning Wallet interface bound by the broker at
// attach time.
package market

import (
	"time"

	"github.com/shopspring/decimal"

	"defi-backtest-lab/internal/domain"
)

// Wallet is the funds side of a broker as seen by a market. Add and Sub move
// token balances; Sub fails with domain.ErrInsufficientBalance when the wallet
// would go negative and negative balances are not allowed.
type Wallet interface {
	Balance(token domain.TokenInfo) decimal.Decimal
	Add(token domain.TokenInfo, amount decimal.Decimal)
	Sub(token domain.TokenInfo, amount decimal.Decimal) error
	SetBalance(token domain.TokenInfo, amount decimal.Decimal)
}

// Market is one simulated venue driven by per-minute rows. The actuator calls
// SetStatus with the row for the current bar, lets the strategy and triggers
// act, then calls Update for passive effects (fee accrual, liquidations) and
// Balance for valuation.
type Market interface {
	Info() domain.MarketInfo
	QuoteToken() domain.TokenInfo

	// Check verifies the market is fully configured and its data loaded.
	Check() error

	SetStatus(ts time.Time, rowID int, prices domain.PriceRow) error
	Update() error
	Balance(prices domain.PriceRow) (domain.MarketBalance, error)

	BindWallet(w Wallet)
	SetRecorder(rec func(domain.Action))

	DataLen() int
	Timestamps() []time.Time
}

// Core carries the state every market shares. Embed it and set the fields via
// Init; the recorder and wallet are bound later by the broker/actuator.
type Core struct {
	info       domain.MarketInfo
	quoteToken domain.TokenInfo
	wallet     Wallet
	recorder   func(domain.Action)

	// Current bar, maintained by SetStatus implementations.
	Timestamp time.Time
	RowID     int
}

// Init sets the immutable identity of the market.
func (c *Core) Init(info domain.MarketInfo, quote domain.TokenInfo) {
	c.info = info
	c.quoteToken = quote
}

func (c *Core) Info() domain.MarketInfo { return c.info }

func (c *Core) QuoteToken() domain.TokenInfo { return c.quoteToken }

func (c *Core) BindWallet(w Wallet) { c.wallet = w }

func (c *Core) SetRecorder(r func(domain.Action)) { c.recorder = r }

// Wallet returns the bound wallet, nil before the market is attached to a
// broker.
func (c *Core) Wallet() Wallet { return c.wallet }

// Record emits an action for the current bar. A market detached from any
// actuator drops its actions silently.
func (c *Core) Record(typ domain.ActionType, detail domain.ActionDetail) {
	if c.recorder == nil {
		return
	}
	c.recorder(domain.Action{
		Timestamp: c.Timestamp,
		Market:    c.info,
		Type:      typ,
		Detail:    detail,
	})
}
