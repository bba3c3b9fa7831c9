package aave

import (
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"defi-backtest-lab/internal/domain"
	"defi-backtest-lab/internal/market"
)

// closeFactorHFThreshold switches liquidation to a full close. Below this
// health factor half measures cannot restore solvency fast enough.
var closeFactorHFThreshold = decimal.RequireFromString("0.95")

// maxLiquidationSteps bounds one update's liquidation loop.
const maxLiquidationSteps = 20

// Options configures an aave Market.
type Options struct {
	Name           string
	QuoteToken     domain.TokenInfo
	RiskParameters RiskParameterTable
	Logger         *zap.Logger
}

// Market simulates an Aave v3 pool account over per-minute reserve data.
type Market struct {
	market.Core

	logger *zap.Logger
	risk   RiskParameterTable

	tokens []domain.TokenInfo
	data   map[string][]MinuteRow

	supplies map[SupplyKey]*SupplyInfo
	borrows  map[BorrowKey]*BorrowInfo

	rows   map[string]MinuteRow
	prices domain.PriceRow
	hasRow bool
}

var _ market.Market = (*Market)(nil)

// New creates a Market. Reserve data is attached per token via SetTokenData.
func New(opts Options) (*Market, error) {
	if opts.Name == "" {
		return nil, fmt.Errorf("%w: market requires a name", domain.ErrConfiguration)
	}
	if opts.QuoteToken.Name == "" {
		return nil, fmt.Errorf("%w: market %s requires a quote token", domain.ErrConfiguration, opts.Name)
	}
	if len(opts.RiskParameters) == 0 {
		return nil, fmt.Errorf("%w: market %s requires risk parameters", domain.ErrConfiguration, opts.Name)
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Market{
		logger:   logger.With(zap.String("market", opts.Name)),
		risk:     opts.RiskParameters,
		data:     make(map[string][]MinuteRow),
		supplies: make(map[SupplyKey]*SupplyInfo),
		borrows:  make(map[BorrowKey]*BorrowInfo),
	}
	m.Init(domain.NewMarketInfo(opts.Name, domain.MarketTypeAaveV3), opts.QuoteToken)
	return m, nil
}

// SetTokenData attaches the reserve minute rows for one token. The token must
// have risk parameters.
func (m *Market) SetTokenData(token domain.TokenInfo, rows []MinuteRow) error {
	if _, ok := m.risk[token.Name]; !ok {
		return fmt.Errorf("%w: no risk parameters for token %s", domain.ErrConfiguration, token.Name)
	}
	if _, ok := m.data[token.Name]; !ok {
		m.tokens = append(m.tokens, token)
	}
	m.data[token.Name] = rows
	return nil
}

func (m *Market) DataLen() int {
	if len(m.tokens) == 0 {
		return 0
	}
	return len(m.data[m.tokens[0].Name])
}

func (m *Market) Timestamps() []time.Time {
	if len(m.tokens) == 0 {
		return nil
	}
	rows := m.data[m.tokens[0].Name]
	out := make([]time.Time, len(rows))
	for i, r := range rows {
		out[i] = r.Timestamp
	}
	return out
}

// Check verifies reserves agree on length and timestamps.
func (m *Market) Check() error {
	if len(m.tokens) == 0 {
		return fmt.Errorf("%w: market %s has no reserve data", domain.ErrConfiguration, m.Info().Name)
	}
	if m.Wallet() == nil {
		return fmt.Errorf("%w: market %s is not attached to a broker", domain.ErrConfiguration, m.Info().Name)
	}
	first := m.data[m.tokens[0].Name]
	for _, t := range m.tokens[1:] {
		rows := m.data[t.Name]
		if len(rows) != len(first) {
			return fmt.Errorf("%w: reserve %s has %d rows, %s has %d",
				domain.ErrConfiguration, t.Name, len(rows), m.tokens[0].Name, len(first))
		}
		for i := range rows {
			if !rows[i].Timestamp.Equal(first[i].Timestamp) {
				return fmt.Errorf("%w: reserve %s timestamp mismatch at row %d",
					domain.ErrConfiguration, t.Name, i)
			}
		}
	}
	return nil
}

// SetStatus moves every reserve onto the bar at rowID.
func (m *Market) SetStatus(ts time.Time, rowID int, prices domain.PriceRow) error {
	rows := make(map[string]MinuteRow, len(m.tokens))
	for _, t := range m.tokens {
		series := m.data[t.Name]
		if rowID < 0 || rowID >= len(series) {
			return fmt.Errorf("%w: row %d outside reserve %s data of length %d",
				domain.ErrConfiguration, rowID, t.Name, len(series))
		}
		row := series[rowID]
		if !row.Timestamp.Equal(ts) {
			return fmt.Errorf("%w: reserve %s row %d has timestamp %s, index has %s",
				domain.ErrConfiguration, t.Name, rowID, row.Timestamp, ts)
		}
		rows[t.Name] = row
	}
	m.rows = rows
	m.prices = prices
	m.hasRow = true
	m.Timestamp = ts
	m.RowID = rowID
	return nil
}

func (m *Market) row(token string) (MinuteRow, error) {
	r, ok := m.rows[token]
	if !ok {
		return MinuteRow{}, fmt.Errorf("%w: no reserve data for token %s", domain.ErrConfiguration, token)
	}
	return r, nil
}

func (m *Market) price(token domain.TokenInfo) (decimal.Decimal, error) {
	if token.Name == m.QuoteToken().Name && !m.prices.HasPrice(token) {
		return decimal.New(1, 0), nil
	}
	return m.prices.Price(token)
}

// RateToAPY converts a continuously compounding rate to an APY.
func RateToAPY(rate decimal.Decimal) decimal.Decimal {
	return decimal.NewFromFloat(math.Exp(rate.InexactFloat64()) - 1)
}

// SupplyAmount returns the current token amount of a supply position.
func (m *Market) SupplyAmount(key SupplyKey) (decimal.Decimal, error) {
	s, ok := m.supplies[key]
	if !ok {
		return decimal.Decimal{}, fmt.Errorf("%w: no supply position for %s", domain.ErrDomainViolation, key)
	}
	row, err := m.row(s.Token.Name)
	if err != nil {
		return decimal.Decimal{}, err
	}
	return s.BaseAmount.Mul(row.LiquidityIndex), nil
}

// BorrowAmount returns the current debt of a borrow position.
func (m *Market) BorrowAmount(key BorrowKey) (decimal.Decimal, error) {
	b, ok := m.borrows[key]
	if !ok {
		return decimal.Decimal{}, fmt.Errorf("%w: no borrow position for %v", domain.ErrDomainViolation, key)
	}
	row, err := m.row(b.Token.Name)
	if err != nil {
		return decimal.Decimal{}, err
	}
	return b.BaseAmount.Mul(row.VariableBorrowIndex), nil
}

// SupplyCount returns the number of open supply positions.
func (m *Market) SupplyCount() int { return len(m.supplies) }

// BorrowCount returns the number of open borrow positions.
func (m *Market) BorrowCount() int { return len(m.borrows) }

// HealthFactor returns the current safety ratio, HealthFactorMax with no
// debt: sum of collateral value times liquidation threshold over total debt
// value.
func (m *Market) HealthFactor() (decimal.Decimal, error) {
	if !m.hasRow {
		return decimal.Decimal{}, fmt.Errorf("%w: market %s has no status yet", domain.ErrConfiguration, m.Info().Name)
	}
	borrowValue, err := m.totalBorrowValue()
	if err != nil {
		return decimal.Decimal{}, err
	}
	if borrowValue.Sign() == 0 {
		return HealthFactorMax, nil
	}
	threshold, err := m.collateralThresholdValue()
	if err != nil {
		return decimal.Decimal{}, err
	}
	return threshold.Div(borrowValue), nil
}

func (m *Market) totalBorrowValue() (decimal.Decimal, error) {
	total := decimal.Zero
	for key := range m.borrows {
		amt, err := m.BorrowAmount(key)
		if err != nil {
			return decimal.Decimal{}, err
		}
		p, err := m.price(m.borrows[key].Token)
		if err != nil {
			return decimal.Decimal{}, err
		}
		total = total.Add(amt.Mul(p))
	}
	return total, nil
}

// collateralThresholdValue sums collateral value weighted by each reserve's
// liquidation threshold.
func (m *Market) collateralThresholdValue() (decimal.Decimal, error) {
	total := decimal.Zero
	for key, s := range m.supplies {
		if !s.Collateral {
			continue
		}
		amt, err := m.SupplyAmount(key)
		if err != nil {
			return decimal.Decimal{}, err
		}
		p, err := m.price(s.Token)
		if err != nil {
			return decimal.Decimal{}, err
		}
		total = total.Add(amt.Mul(p).Mul(m.risk[s.Token.Name].LiquidationThreshold))
	}
	return total, nil
}

// Supply deposits amount of token from the wallet. Supplies of one token
// merge into a single position; the collateral flag is set at creation and
// kept on later deposits.
func (m *Market) Supply(token domain.TokenInfo, amount decimal.Decimal, asCollateral bool) (SupplyKey, error) {
	if !m.hasRow {
		return "", fmt.Errorf("%w: market %s has no status yet", domain.ErrConfiguration, m.Info().Name)
	}
	if amount.Sign() <= 0 {
		return "", fmt.Errorf("%w: supply amount must be positive, got %s", domain.ErrDomainViolation, amount)
	}
	row, err := m.row(token.Name)
	if err != nil {
		return "", err
	}
	if err := m.Wallet().Sub(token, amount); err != nil {
		return "", err
	}
	base := amount.Div(row.LiquidityIndex)
	key := SupplyKey(token.Name)
	if s, ok := m.supplies[key]; ok {
		s.BaseAmount = s.BaseAmount.Add(base)
	} else {
		m.supplies[key] = &SupplyInfo{Token: token, BaseAmount: base, Collateral: asCollateral}
	}
	m.Record(domain.ActionAaveSupply, SupplyDetail{
		Token:        token.Name,
		Amount:       domain.NewUnitValue(amount, token),
		BaseAmount:   domain.NewUnitValue(base, token),
		AsCollateral: m.supplies[key].Collateral,
	})
	return key, nil
}

// Withdraw takes amount of a supply back into the wallet, MaxAmount for all
// of it. Withdrawals that would push the health factor below 1 are rejected.
func (m *Market) Withdraw(key SupplyKey, amount decimal.Decimal) (decimal.Decimal, error) {
	s, ok := m.supplies[key]
	if !ok {
		return decimal.Decimal{}, fmt.Errorf("%w: no supply position for %s", domain.ErrDomainViolation, key)
	}
	current, err := m.SupplyAmount(key)
	if err != nil {
		return decimal.Decimal{}, err
	}
	amt := amount
	if amt.Sign() < 0 || amt.GreaterThan(current) {
		amt = current
	}

	if s.Collateral && len(m.borrows) > 0 {
		borrowValue, err := m.totalBorrowValue()
		if err != nil {
			return decimal.Decimal{}, err
		}
		threshold, err := m.collateralThresholdValue()
		if err != nil {
			return decimal.Decimal{}, err
		}
		p, err := m.price(s.Token)
		if err != nil {
			return decimal.Decimal{}, err
		}
		removed := amt.Mul(p).Mul(m.risk[s.Token.Name].LiquidationThreshold)
		if borrowValue.Sign() > 0 && threshold.Sub(removed).Div(borrowValue).LessThan(decimal.New(1, 0)) {
			return decimal.Decimal{}, fmt.Errorf("%w: withdrawing %s %s drops health factor below 1",
				domain.ErrDomainViolation, amt, s.Token.Name)
		}
	}

	row, err := m.row(s.Token.Name)
	if err != nil {
		return decimal.Decimal{}, err
	}
	base := amt.Div(row.LiquidityIndex)
	s.BaseAmount = s.BaseAmount.Sub(base)
	if s.BaseAmount.Sign() <= 0 || amt.Equal(current) {
		delete(m.supplies, key)
	}
	m.Wallet().Add(s.Token, amt)
	m.Record(domain.ActionAaveWithdraw, WithdrawDetail{
		Token:      s.Token.Name,
		Amount:     domain.NewUnitValue(amt, s.Token),
		BaseAmount: domain.NewUnitValue(base, s.Token),
	})
	return amt, nil
}

// MaxBorrowAmount returns how much of token can still be borrowed: the
// LTV-weighted collateral value at the token's price, minus existing debt in
// that token.
func (m *Market) MaxBorrowAmount(token domain.TokenInfo) (decimal.Decimal, error) {
	if !m.hasRow {
		return decimal.Decimal{}, fmt.Errorf("%w: market %s has no status yet", domain.ErrConfiguration, m.Info().Name)
	}
	capacity := decimal.Zero
	for key, s := range m.supplies {
		if !s.Collateral {
			continue
		}
		amt, err := m.SupplyAmount(key)
		if err != nil {
			return decimal.Decimal{}, err
		}
		p, err := m.price(s.Token)
		if err != nil {
			return decimal.Decimal{}, err
		}
		capacity = capacity.Add(amt.Mul(p).Mul(m.risk[s.Token.Name].LTV))
	}
	p, err := m.price(token)
	if err != nil {
		return decimal.Decimal{}, err
	}
	max := capacity.Div(p)
	if b, ok := m.borrows[BorrowKey{Token: token.Name, RateMode: RateModeVariable}]; ok {
		row, err := m.row(b.Token.Name)
		if err != nil {
			return decimal.Decimal{}, err
		}
		max = max.Sub(b.BaseAmount.Mul(row.VariableBorrowIndex))
	}
	if max.Sign() < 0 {
		max = decimal.Zero
	}
	return max, nil
}

// Borrow takes on variable-rate debt and credits the wallet.
func (m *Market) Borrow(token domain.TokenInfo, amount decimal.Decimal, rateMode InterestRateMode) (BorrowKey, error) {
	if !m.hasRow {
		return BorrowKey{}, fmt.Errorf("%w: market %s has no status yet", domain.ErrConfiguration, m.Info().Name)
	}
	if rateMode != RateModeVariable {
		return BorrowKey{}, fmt.Errorf("%w: only variable-rate borrows are supported", domain.ErrConfiguration)
	}
	if amount.Sign() <= 0 {
		return BorrowKey{}, fmt.Errorf("%w: borrow amount must be positive, got %s", domain.ErrDomainViolation, amount)
	}
	max, err := m.MaxBorrowAmount(token)
	if err != nil {
		return BorrowKey{}, err
	}
	if amount.GreaterThan(max) {
		return BorrowKey{}, fmt.Errorf("%w: borrow %s %s exceeds capacity %s",
			domain.ErrDomainViolation, amount, token.Name, max)
	}
	row, err := m.row(token.Name)
	if err != nil {
		return BorrowKey{}, err
	}
	base := amount.Div(row.VariableBorrowIndex)
	key := BorrowKey{Token: token.Name, RateMode: rateMode}
	if b, ok := m.borrows[key]; ok {
		b.BaseAmount = b.BaseAmount.Add(base)
	} else {
		m.borrows[key] = &BorrowInfo{Token: token, BaseAmount: base, RateMode: rateMode}
	}
	m.Wallet().Add(token, amount)
	m.Record(domain.ActionAaveBorrow, BorrowDetail{
		Token:      token.Name,
		RateMode:   int(rateMode),
		Amount:     domain.NewUnitValue(amount, token),
		BaseAmount: domain.NewUnitValue(base, token),
	})
	return key, nil
}

// Repay pays debt down, MaxAmount for all of it. With fromCollateral the
// repayment is funded by withdrawing the same token's supply instead of the
// wallet.
func (m *Market) Repay(key BorrowKey, amount decimal.Decimal, fromCollateral bool) (decimal.Decimal, error) {
	b, ok := m.borrows[key]
	if !ok {
		return decimal.Decimal{}, fmt.Errorf("%w: no borrow position for %v", domain.ErrDomainViolation, key)
	}
	current, err := m.BorrowAmount(key)
	if err != nil {
		return decimal.Decimal{}, err
	}
	amt := amount
	if amt.Sign() < 0 || amt.GreaterThan(current) {
		amt = current
	}

	if fromCollateral {
		skey := SupplyKey(b.Token.Name)
		s, ok := m.supplies[skey]
		if !ok {
			return decimal.Decimal{}, fmt.Errorf("%w: no %s supply to repay from", domain.ErrDomainViolation, b.Token.Name)
		}
		supplied, err := m.SupplyAmount(skey)
		if err != nil {
			return decimal.Decimal{}, err
		}
		if supplied.LessThan(amt) {
			return decimal.Decimal{}, fmt.Errorf("%w: %s supply %s cannot cover repay %s",
				domain.ErrDomainViolation, b.Token.Name, supplied, amt)
		}
		row, err := m.row(b.Token.Name)
		if err != nil {
			return decimal.Decimal{}, err
		}
		s.BaseAmount = s.BaseAmount.Sub(amt.Div(row.LiquidityIndex))
		if s.BaseAmount.Sign() <= 0 {
			delete(m.supplies, skey)
		}
	} else {
		if err := m.Wallet().Sub(b.Token, amt); err != nil {
			return decimal.Decimal{}, err
		}
	}

	row, err := m.row(b.Token.Name)
	if err != nil {
		return decimal.Decimal{}, err
	}
	base := amt.Div(row.VariableBorrowIndex)
	b.BaseAmount = b.BaseAmount.Sub(base)
	if b.BaseAmount.Sign() <= 0 || amt.Equal(current) {
		delete(m.borrows, key)
	}
	m.Record(domain.ActionAaveRepay, RepayDetail{
		Token:          b.Token.Name,
		RateMode:       int(b.RateMode),
		Amount:         domain.NewUnitValue(amt, b.Token),
		BaseAmount:     domain.NewUnitValue(base, b.Token),
		FromCollateral: fromCollateral,
	})
	return amt, nil
}

// Update recomputes the health factor against the current bar and runs the
// liquidation loop while the account is under water.
func (m *Market) Update() error {
	if !m.hasRow {
		return nil
	}
	for i := 0; i < maxLiquidationSteps; i++ {
		hf, err := m.HealthFactor()
		if err != nil {
			return err
		}
		if hf.GreaterThanOrEqual(decimal.New(1, 0)) || len(m.supplies) == 0 || len(m.borrows) == 0 {
			return nil
		}
		if err := m.liquidate(hf); err != nil {
			return err
		}
	}
	return nil
}

// liquidate performs one liquidation step: the largest debt is covered up to
// the close factor against the largest collateral, which is seized with the
// collateral reserve's bonus. Deeply unsafe accounts close the full debt.
func (m *Market) liquidate(hfBefore decimal.Decimal) error {
	debtKey, debtAmt, debtPrice, err := m.largestBorrow()
	if err != nil {
		return err
	}
	collKey, collAmt, collPrice, err := m.largestCollateral()
	if err != nil {
		return err
	}
	debt := m.borrows[debtKey]
	coll := m.supplies[collKey]

	closeFactor := DefaultCloseFactor
	if hfBefore.LessThan(closeFactorHFThreshold) {
		closeFactor = decimal.New(1, 0)
	}
	bonus := m.risk[coll.Token.Name].LiquidationBonus
	onePlusBonus := decimal.New(1, 0).Add(bonus)

	collValue := collAmt.Mul(collPrice)
	maxByDebt := closeFactor.Mul(debtAmt)
	maxByCollateral := collValue.Div(debtPrice).Div(onePlusBonus)

	var debtToCover, seized decimal.Decimal
	if maxByCollateral.LessThan(maxByDebt) {
		// Collateral cannot cover the full step: seize all of it exactly so
		// no dust position survives.
		debtToCover = maxByCollateral
		seized = collAmt
	} else {
		debtToCover = maxByDebt
		seized = debtToCover.Mul(debtPrice).Mul(onePlusBonus).Div(collPrice)
		if seized.GreaterThan(collAmt) {
			seized = collAmt
		}
	}

	debtRow, err := m.row(debt.Token.Name)
	if err != nil {
		return err
	}
	collRow, err := m.row(coll.Token.Name)
	if err != nil {
		return err
	}
	debt.BaseAmount = debt.BaseAmount.Sub(debtToCover.Div(debtRow.VariableBorrowIndex))
	coll.BaseAmount = coll.BaseAmount.Sub(seized.Div(collRow.LiquidityIndex))
	if debt.BaseAmount.Sign() <= 0 || debtToCover.Equal(debtAmt) {
		delete(m.borrows, debtKey)
	}
	if coll.BaseAmount.Sign() <= 0 || seized.Equal(collAmt) {
		delete(m.supplies, collKey)
	}

	hfAfter, err := m.HealthFactor()
	if err != nil {
		return err
	}
	m.logger.Info("liquidation",
		zap.String("debt_token", debt.Token.Name),
		zap.String("collateral_token", coll.Token.Name),
		zap.String("debt_covered", debtToCover.String()),
		zap.String("collateral_seized", seized.String()))
	m.Record(domain.ActionAaveLiquidation, LiquidationDetail{
		DebtToken:          debt.Token.Name,
		CollateralToken:    coll.Token.Name,
		DebtCovered:        domain.NewUnitValue(debtToCover, debt.Token),
		CollateralSeized:   domain.NewUnitValue(seized, coll.Token),
		HealthFactorBefore: hfBefore.String(),
		HealthFactorAfter:  hfAfter.String(),
	})
	return nil
}

// largestBorrow picks the borrow with the highest value, ties broken by the
// lexicographically smaller token name.
func (m *Market) largestBorrow() (BorrowKey, decimal.Decimal, decimal.Decimal, error) {
	var (
		bestKey   BorrowKey
		bestAmt   decimal.Decimal
		bestPrice decimal.Decimal
		bestValue decimal.Decimal
		found     bool
	)
	for key, b := range m.borrows {
		amt, err := m.BorrowAmount(key)
		if err != nil {
			return BorrowKey{}, decimal.Decimal{}, decimal.Decimal{}, err
		}
		p, err := m.price(b.Token)
		if err != nil {
			return BorrowKey{}, decimal.Decimal{}, decimal.Decimal{}, err
		}
		value := amt.Mul(p)
		better := value.GreaterThan(bestValue) ||
			(value.Equal(bestValue) && (!found || key.Token < bestKey.Token))
		if !found || better {
			bestKey, bestAmt, bestPrice, bestValue, found = key, amt, p, value, true
		}
	}
	if !found {
		return BorrowKey{}, decimal.Decimal{}, decimal.Decimal{}, fmt.Errorf("%w: no borrows to liquidate", domain.ErrDomainViolation)
	}
	return bestKey, bestAmt, bestPrice, nil
}

// largestCollateral picks the collateral supply with the highest value, same
// tie-break as largestBorrow.
func (m *Market) largestCollateral() (SupplyKey, decimal.Decimal, decimal.Decimal, error) {
	var (
		bestKey   SupplyKey
		bestAmt   decimal.Decimal
		bestPrice decimal.Decimal
		bestValue decimal.Decimal
		found     bool
	)
	for key, s := range m.supplies {
		if !s.Collateral {
			continue
		}
		amt, err := m.SupplyAmount(key)
		if err != nil {
			return "", decimal.Decimal{}, decimal.Decimal{}, err
		}
		p, err := m.price(s.Token)
		if err != nil {
			return "", decimal.Decimal{}, decimal.Decimal{}, err
		}
		value := amt.Mul(p)
		better := value.GreaterThan(bestValue) ||
			(value.Equal(bestValue) && (!found || key < bestKey))
		if !found || better {
			bestKey, bestAmt, bestPrice, bestValue, found = key, amt, p, value, true
		}
	}
	if !found {
		return "", decimal.Decimal{}, decimal.Decimal{}, fmt.Errorf("%w: no collateral to seize", domain.ErrDomainViolation)
	}
	return bestKey, bestAmt, bestPrice, nil
}

// Balance values the account: total supplied minus total borrowed, in quote.
func (m *Market) Balance(prices domain.PriceRow) (domain.MarketBalance, error) {
	if !m.hasRow {
		return domain.MarketBalance{}, fmt.Errorf("%w: market %s has no status yet", domain.ErrConfiguration, m.Info().Name)
	}
	supplied := decimal.Zero
	for key, s := range m.supplies {
		amt, err := m.SupplyAmount(key)
		if err != nil {
			return domain.MarketBalance{}, err
		}
		p, err := m.price(s.Token)
		if err != nil {
			return domain.MarketBalance{}, err
		}
		supplied = supplied.Add(amt.Mul(p))
	}
	borrowed, err := m.totalBorrowValue()
	if err != nil {
		return domain.MarketBalance{}, err
	}
	hf, err := m.HealthFactor()
	if err != nil {
		return domain.MarketBalance{}, err
	}
	return domain.MarketBalance{
		NetValue: supplied.Sub(borrowed),
		Fields: []domain.BalanceField{
			{Name: "supplied_value", Value: supplied},
			{Name: "borrowed_value", Value: borrowed},
			{Name: "health_factor", Value: hf},
			{Name: "supply_count", Value: decimal.NewFromInt(int64(len(m.supplies)))},
			{Name: "borrow_count", Value: decimal.NewFromInt(int64(len(m.borrows)))},
		},
	}, nil
}
