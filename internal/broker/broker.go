// Package broker implements the funds side of a backtest: wallet assets,
// attached markets and whole-account valuation. The broker is the single
// owner of token balances; markets mutate them only through the market.Wallet
// interface it implements.
package broker

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"defi-backtest-lab/internal/domain"
	"defi-backtest-lab/internal/market"
)

// stableTokens are the quote tokens accepted when an Aave or Squeeth market
// is attached. Those markets price risk in USD terms, so the account quote
// must track USD.
var stableTokens = map[string]bool{
	"USDC": true,
	"USDT": true,
	"DAI":  true,
	"BUSD": true,
}

// Options configures a Broker.
type Options struct {
	QuoteToken domain.TokenInfo
	// AllowNegativeBalance lets wallet balances go below zero instead of
	// failing the operation. Useful for strategies that model credit.
	AllowNegativeBalance bool
	Logger               *zap.Logger
}

// Broker owns the wallet and the ordered set of attached markets. The first
// attached market is the default one.
type Broker struct {
	quoteToken    domain.TokenInfo
	allowNegative bool
	logger        *zap.Logger

	assets     map[string]decimal.Decimal
	tokenOrder []domain.TokenInfo

	markets     []market.Market
	marketNames map[string]struct{}
}

var _ market.Wallet = (*Broker)(nil)

// New creates a Broker.
func New(opts Options) (*Broker, error) {
	if opts.QuoteToken.Name == "" {
		return nil, fmt.Errorf("%w: broker requires a quote token", domain.ErrConfiguration)
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Broker{
		quoteToken:    opts.QuoteToken,
		allowNegative: opts.AllowNegativeBalance,
		logger:        logger,
		assets:        make(map[string]decimal.Decimal),
		marketNames:   make(map[string]struct{}),
	}, nil
}

// QuoteToken returns the token all account values are denominated in.
func (b *Broker) QuoteToken() domain.TokenInfo { return b.quoteToken }

// AllowNegativeBalance reports whether wallet balances may go below zero.
func (b *Broker) AllowNegativeBalance() bool { return b.allowNegative }

// AddMarket attaches a market and binds the broker as its wallet. Market
// names must be unique; attach order is preserved and the first market
// becomes the default.
func (b *Broker) AddMarket(m market.Market) error {
	name := m.Info().Name
	if name == "" {
		return fmt.Errorf("%w: market has no name", domain.ErrConfiguration)
	}
	if _, ok := b.marketNames[name]; ok {
		return fmt.Errorf("%w: market %s already attached", domain.ErrConfiguration, name)
	}
	m.BindWallet(b)
	b.markets = append(b.markets, m)
	b.marketNames[name] = struct{}{}
	return nil
}

// Markets returns the attached markets in attach order.
func (b *Broker) Markets() []market.Market { return b.markets }

// DefaultMarket returns the first attached market, nil when none exist.
func (b *Broker) DefaultMarket() market.Market {
	if len(b.markets) == 0 {
		return nil
	}
	return b.markets[0]
}

// Market returns the attached market with the given name.
func (b *Broker) Market(name string) (market.Market, error) {
	for _, m := range b.markets {
		if m.Info().Name == name {
			return m, nil
		}
	}
	return nil, fmt.Errorf("%w: market %s not attached", domain.ErrConfiguration, name)
}

// Balance returns the wallet balance of token, zero when the token was never
// touched.
func (b *Broker) Balance(token domain.TokenInfo) decimal.Decimal {
	return b.assets[token.Name]
}

// SetBalance sets the wallet balance of token outright.
func (b *Broker) SetBalance(token domain.TokenInfo, amount decimal.Decimal) {
	b.touch(token)
	b.assets[token.Name] = amount
}

// Add credits amount of token to the wallet.
func (b *Broker) Add(token domain.TokenInfo, amount decimal.Decimal) {
	b.touch(token)
	b.assets[token.Name] = b.assets[token.Name].Add(amount)
}

// Sub debits amount of token from the wallet. A debit within
// domain.BalanceTolerance of the full balance zeroes the wallet out;
// anything larger fails with domain.ErrInsufficientBalance unless negative
// balances are allowed.
func (b *Broker) Sub(token domain.TokenInfo, amount decimal.Decimal) error {
	b.touch(token)
	current := b.assets[token.Name]
	remaining := current.Sub(amount)
	if remaining.Sign() < 0 && !b.allowNegative {
		if !domain.ApproxEqual(current, amount) {
			return fmt.Errorf("%w: %s balance %s cannot cover %s",
				domain.ErrInsufficientBalance, token.Name, current, amount)
		}
		remaining = decimal.Zero
	}
	b.assets[token.Name] = remaining
	return nil
}

func (b *Broker) touch(token domain.TokenInfo) {
	if _, ok := b.assets[token.Name]; !ok {
		b.assets[token.Name] = decimal.Zero
		b.tokenOrder = append(b.tokenOrder, token)
	}
}

// Assets returns every wallet holding in first-touch order.
func (b *Broker) Assets() []domain.Asset {
	out := make([]domain.Asset, 0, len(b.tokenOrder))
	for _, t := range b.tokenOrder {
		out = append(out, domain.Asset{Token: t, Balance: b.assets[t.Name]})
	}
	return out
}

// CheckQuoteToken verifies the broker quote token is compatible with the
// attached markets. Aave and Squeeth markets require a stablecoin quote.
func (b *Broker) CheckQuoteToken() error {
	for _, m := range b.markets {
		t := m.Info().Type
		if t != domain.MarketTypeAaveV3 && t != domain.MarketTypeSqueeth {
			continue
		}
		if !stableTokens[b.quoteToken.Name] {
			return fmt.Errorf("%w: market %s requires a stablecoin quote token, got %s",
				domain.ErrConfiguration, m.Info().Name, b.quoteToken.Name)
		}
	}
	return nil
}

// AccountStatus values the whole account at ts: wallet tokens converted at
// the given prices plus every market's net value, converted when the market
// quotes in a different token.
func (b *Broker) AccountStatus(prices domain.PriceRow, ts time.Time) (domain.AccountStatus, error) {
	status := domain.AccountStatus{Timestamp: ts, NetValue: decimal.Zero}

	for _, t := range b.tokenOrder {
		bal := b.assets[t.Name]
		price, err := b.tokenPrice(prices, t)
		if err != nil {
			return domain.AccountStatus{}, err
		}
		status.Tokens = append(status.Tokens, domain.BalanceField{Name: t.Name, Value: bal})
		status.NetValue = status.NetValue.Add(bal.Mul(price))
	}

	for _, m := range b.markets {
		mb, err := m.Balance(prices)
		if err != nil {
			return domain.AccountStatus{}, fmt.Errorf("market %s balance: %w", m.Info().Name, err)
		}
		net := mb.NetValue
		if q := m.QuoteToken(); q.Name != b.quoteToken.Name {
			price, err := b.tokenPrice(prices, q)
			if err != nil {
				return domain.AccountStatus{}, err
			}
			net = net.Mul(price)
		}
		status.Markets = append(status.Markets, domain.MarketStatusEntry{Market: m.Info(), Balance: mb})
		status.NetValue = status.NetValue.Add(net)
	}
	return status, nil
}

// tokenPrice resolves the quote-denominated price of token. The quote token
// itself defaults to 1 when the price matrix has no explicit column for it.
func (b *Broker) tokenPrice(prices domain.PriceRow, token domain.TokenInfo) (decimal.Decimal, error) {
	if prices.HasPrice(token) {
		return prices.Price(token)
	}
	if token.Name == b.quoteToken.Name {
		return decimal.New(1, 0), nil
	}
	return decimal.Decimal{}, fmt.Errorf("%w: no price for token %s", domain.ErrConfiguration, token.Name)
}
