package uniswap

import (
	"fmt"
	"math/big"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"defi-backtest-lab/internal/domain"
	"defi-backtest-lab/internal/market"
	"defi-backtest-lab/internal/v3math"
)

// FullBalance marks an amount limit as "use the full wallet balance".
var FullBalance = decimal.NewFromInt(-1)

// Options configures an LPMarket.
type Options struct {
	Name   string
	Pool   *Pool
	Data   []MinuteRow
	Logger *zap.Logger
}

// LPMarket is a Uniswap v3 pool driven by per-minute aggregated rows.
type LPMarket struct {
	market.Core

	logger *zap.Logger
	pool   *Pool
	data   []MinuteRow

	positions map[PositionInfo]*Position

	row         MinuteRow
	hasRow      bool
	lastTick    int
	hasLastTick bool

	sqrtPriceX96 *big.Int
	price        decimal.Decimal
}

var _ market.Market = (*LPMarket)(nil)

// New creates an LPMarket. Data may be attached later via SetData but must be
// present before the run starts.
func New(opts Options) (*LPMarket, error) {
	if opts.Name == "" {
		return nil, fmt.Errorf("%w: market requires a name", domain.ErrConfiguration)
	}
	if opts.Pool == nil {
		return nil, fmt.Errorf("%w: market %s requires a pool", domain.ErrConfiguration, opts.Name)
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &LPMarket{
		logger:    logger.With(zap.String("market", opts.Name)),
		pool:      opts.Pool,
		data:      opts.Data,
		positions: make(map[PositionInfo]*Position),
	}
	m.Init(domain.NewMarketInfo(opts.Name, domain.MarketTypeUniLP), opts.Pool.QuoteToken())
	return m, nil
}

// Pool returns the pool description.
func (m *LPMarket) Pool() *Pool { return m.pool }

// SetData attaches the minute rows driving this market.
func (m *LPMarket) SetData(rows []MinuteRow) { m.data = rows }

func (m *LPMarket) DataLen() int { return len(m.data) }

func (m *LPMarket) Timestamps() []time.Time {
	out := make([]time.Time, len(m.data))
	for i, r := range m.data {
		out[i] = r.Timestamp
	}
	return out
}

// Check verifies the market can run.
func (m *LPMarket) Check() error {
	if len(m.data) == 0 {
		return fmt.Errorf("%w: market %s has no data", domain.ErrConfiguration, m.Info().Name)
	}
	if m.Wallet() == nil {
		return fmt.Errorf("%w: market %s is not attached to a broker", domain.ErrConfiguration, m.Info().Name)
	}
	return nil
}

// SetStatus moves the market onto the bar at rowID.
func (m *LPMarket) SetStatus(ts time.Time, rowID int, prices domain.PriceRow) error {
	if rowID < 0 || rowID >= len(m.data) {
		return fmt.Errorf("%w: row %d outside data of length %d", domain.ErrConfiguration, rowID, len(m.data))
	}
	row := m.data[rowID]
	if !row.Timestamp.Equal(ts) {
		return fmt.Errorf("%w: market %s row %d has timestamp %s, index has %s",
			domain.ErrConfiguration, m.Info().Name, rowID, row.Timestamp, ts)
	}
	if m.hasRow {
		m.lastTick = m.row.CloseTick
		m.hasLastTick = true
	}
	m.row = row
	m.hasRow = true
	m.Timestamp = ts
	m.RowID = rowID

	sqrt, err := v3math.GetSqrtRatioAtTick(row.CloseTick)
	if err != nil {
		return err
	}
	price, err := m.pool.TickPrice(row.CloseTick)
	if err != nil {
		return err
	}
	m.sqrtPriceX96 = sqrt
	m.price = price
	return nil
}

// Price returns the current quote-per-base price, zero before the first bar.
func (m *LPMarket) Price() decimal.Decimal { return m.price }

// SqrtPriceX96 returns the current sqrt price, nil before the first bar.
func (m *LPMarket) SqrtPriceX96() *big.Int { return m.sqrtPriceX96 }

// CurrentRow returns the active minute row.
func (m *LPMarket) CurrentRow() (MinuteRow, bool) { return m.row, m.hasRow }

// Update accrues swap fees into every position the price action touched this
// minute. A position earns its liquidity share of the minute's in-amounts at
// the pool fee rate; the pool liquidity is augmented by the position's own
// liquidity since recorded data never saw it.
func (m *LPMarket) Update() error {
	if !m.hasRow {
		return nil
	}
	feeRate := m.pool.FeeRate
	for info, pos := range m.positions {
		if pos.Liquidity.Sign() == 0 || !m.feeCondition(info) {
			continue
		}
		liq := decimal.NewFromBigInt(pos.Liquidity, 0)
		denom := m.row.CurrentLiquidity.Add(liq)
		if denom.Sign() <= 0 {
			continue
		}
		share := liq.Div(denom)
		pos.Pending0 = pos.Pending0.Add(m.row.Volume0(m.pool.Token0.Decimals).Mul(share).Mul(feeRate))
		pos.Pending1 = pos.Pending1.Add(m.row.Volume1(m.pool.Token1.Decimals).Mul(share).Mul(feeRate))
	}
	return nil
}

// feeCondition reports whether the minute's price action touched the
// position's range. With no prior bar only an in-range close counts;
// otherwise any overlap between the tick interval travelled and the range
// counts, covering in-range, crossed-over and moved-out minutes.
func (m *LPMarket) feeCondition(info PositionInfo) bool {
	closeTick := m.row.CloseTick
	if !m.hasLastTick {
		return info.LowerTick <= closeTick && closeTick <= info.UpperTick
	}
	lo, hi := m.lastTick, closeTick
	if lo > hi {
		lo, hi = hi, lo
	}
	return lo <= info.UpperTick && hi >= info.LowerTick
}

// Balance values the market in its quote token: principal of every owned
// position at the current price plus uncollected pending amounts. Positions
// transferred out as vault collateral are skipped.
func (m *LPMarket) Balance(prices domain.PriceRow) (domain.MarketBalance, error) {
	if !m.hasRow {
		return domain.MarketBalance{}, fmt.Errorf("%w: market %s has no status yet", domain.ErrConfiguration, m.Info().Name)
	}
	var inBase, inQuote, pendBase, pendQuote decimal.Decimal
	count := 0
	for info, pos := range m.positions {
		if pos.Transferred {
			continue
		}
		count++
		a0, a1, err := v3math.GetAmounts(m.sqrtPriceX96, info.LowerTick, info.UpperTick,
			pos.Liquidity, m.pool.Token0.Decimals, m.pool.Token1.Decimals)
		if err != nil {
			return domain.MarketBalance{}, err
		}
		b, q := m.pool.Token01ToBaseQuote(a0, a1)
		inBase = inBase.Add(b)
		inQuote = inQuote.Add(q)
		pb, pq := m.pool.Token01ToBaseQuote(pos.Pending0, pos.Pending1)
		pendBase = pendBase.Add(pb)
		pendQuote = pendQuote.Add(pq)
	}
	net := inBase.Add(pendBase).Mul(m.price).Add(inQuote).Add(pendQuote)
	return domain.MarketBalance{
		NetValue: net,
		Fields: []domain.BalanceField{
			{Name: "base_uncollected", Value: pendBase},
			{Name: "quote_uncollected", Value: pendQuote},
			{Name: "base_in_position", Value: inBase},
			{Name: "quote_in_position", Value: inQuote},
			{Name: "position_count", Value: decimal.NewFromInt(int64(count))},
		},
	}, nil
}

// MintResult reports what a mint consumed.
type MintResult struct {
	Position  PositionInfo
	BaseUsed  decimal.Decimal
	QuoteUsed decimal.Decimal
	Liquidity *big.Int
}

// AddLiquidity mints over a price range. Prices convert to ticks rounded
// outward so the requested range stays covered; an inverted range is
// reordered. Limits of FullBalance use the whole wallet side.
func (m *LPMarket) AddLiquidity(lowerPrice, upperPrice, maxBase, maxQuote decimal.Decimal) (MintResult, error) {
	if lowerPrice.GreaterThan(upperPrice) {
		lowerPrice, upperPrice = upperPrice, lowerPrice
	}
	tickA, err := m.pool.PriceTick(lowerPrice)
	if err != nil {
		return MintResult{}, err
	}
	tickB, err := m.pool.PriceTick(upperPrice)
	if err != nil {
		return MintResult{}, err
	}
	if tickA > tickB {
		tickA, tickB = tickB, tickA
	}
	spacing := m.pool.TickSpacing()
	lower := floorToSpacing(tickA, spacing)
	upper := ceilToSpacing(tickB, spacing)
	if lower < v3math.MinTick {
		lower += spacing
	}
	if upper > v3math.MaxTick {
		upper -= spacing
	}
	return m.AddLiquidityByTick(lower, upper, maxBase, maxQuote)
}

// AddLiquidityByTick mints over a tick range. Token amounts actually consumed
// are the floored amounts backing the minted liquidity; they are debited from
// the wallet. Minting over an existing range merges into that position.
func (m *LPMarket) AddLiquidityByTick(lowerTick, upperTick int, maxBase, maxQuote decimal.Decimal) (MintResult, error) {
	if !m.hasRow {
		return MintResult{}, fmt.Errorf("%w: market %s has no status yet", domain.ErrConfiguration, m.Info().Name)
	}
	if lowerTick > upperTick {
		lowerTick, upperTick = upperTick, lowerTick
	}
	w := m.Wallet()
	if maxBase.Sign() < 0 {
		maxBase = w.Balance(m.pool.BaseToken())
	}
	if maxQuote.Sign() < 0 {
		maxQuote = w.Balance(m.pool.QuoteToken())
	}
	a0, a1 := m.pool.BaseQuoteToToken01(maxBase, maxQuote)

	liq, err := v3math.GetLiquidity(m.sqrtPriceX96, lowerTick, upperTick, a0, a1,
		m.pool.Token0.Decimals, m.pool.Token1.Decimals)
	if err != nil {
		return MintResult{}, err
	}
	if liq.Sign() == 0 {
		return MintResult{}, fmt.Errorf("%w: amounts (%s, %s) mint no liquidity in [%d, %d]",
			domain.ErrDomainViolation, maxBase, maxQuote, lowerTick, upperTick)
	}
	used0, used1, err := v3math.GetAmounts(m.sqrtPriceX96, lowerTick, upperTick, liq,
		m.pool.Token0.Decimals, m.pool.Token1.Decimals)
	if err != nil {
		return MintResult{}, err
	}
	if err := w.Sub(m.pool.Token0, used0); err != nil {
		return MintResult{}, err
	}
	if err := w.Sub(m.pool.Token1, used1); err != nil {
		w.Add(m.pool.Token0, used0)
		return MintResult{}, err
	}

	info := PositionInfo{LowerTick: lowerTick, UpperTick: upperTick}
	pos, ok := m.positions[info]
	if ok {
		pos.Liquidity = new(big.Int).Add(pos.Liquidity, liq)
	} else {
		pa, err := m.pool.TickPrice(lowerTick)
		if err != nil {
			return MintResult{}, err
		}
		pb, err := m.pool.TickPrice(upperTick)
		if err != nil {
			return MintResult{}, err
		}
		pos = &Position{
			Liquidity:  new(big.Int).Set(liq),
			LowerPrice: decimal.Min(pa, pb),
			UpperPrice: decimal.Max(pa, pb),
		}
		m.positions[info] = pos
	}

	baseUsed, quoteUsed := m.pool.Token01ToBaseQuote(used0, used1)
	m.Record(domain.ActionUniLPAddLiquidity, AddLiquidityDetail{
		LowerTick:  lowerTick,
		UpperTick:  upperTick,
		BaseUsed:   domain.NewUnitValue(baseUsed, m.pool.BaseToken()),
		QuoteUsed:  domain.NewUnitValue(quoteUsed, m.pool.QuoteToken()),
		LowerPrice: domain.NewUnitValue(pos.LowerPrice, m.pool.QuoteToken()),
		UpperPrice: domain.NewUnitValue(pos.UpperPrice, m.pool.QuoteToken()),
		Liquidity:  liq.String(),
	})
	return MintResult{Position: info, BaseUsed: baseUsed, QuoteUsed: quoteUsed, Liquidity: new(big.Int).Set(liq)}, nil
}

// AddLiquidityByValue mints liquidity worth totalValue quote tokens over a
// tick range at the current price. When the wallet lacks one side, the
// shortfall is swapped from the other side at the pool fee rate.
func (m *LPMarket) AddLiquidityByValue(lowerTick, upperTick int, totalValue decimal.Decimal) (MintResult, error) {
	if !m.hasRow {
		return MintResult{}, fmt.Errorf("%w: market %s has no status yet", domain.ErrConfiguration, m.Info().Name)
	}
	if totalValue.Sign() <= 0 {
		return MintResult{}, fmt.Errorf("%w: target value must be positive, got %s", domain.ErrDomainViolation, totalValue)
	}
	if lowerTick > upperTick {
		lowerTick, upperTick = upperTick, lowerTick
	}
	needBase, needQuote, err := m.amountsForValue(lowerTick, upperTick, totalValue)
	if err != nil {
		return MintResult{}, err
	}

	w := m.Wallet()
	if short := needBase.Sub(w.Balance(m.pool.BaseToken())); short.Sign() > 0 {
		if err := m.swapForExact(m.pool.QuoteToken(), m.pool.BaseToken(), short); err != nil {
			return MintResult{}, err
		}
	} else if short := needQuote.Sub(w.Balance(m.pool.QuoteToken())); short.Sign() > 0 {
		if err := m.swapForExact(m.pool.BaseToken(), m.pool.QuoteToken(), short); err != nil {
			return MintResult{}, err
		}
	}
	return m.AddLiquidityByTick(lowerTick, upperTick, needBase, needQuote)
}

// amountsForValue sizes the two sides of a mint worth totalValue quote
// tokens. Out of range the whole value lands on the single required side; in
// range the split follows the amounts of a probe liquidity unit.
func (m *LPMarket) amountsForValue(lowerTick, upperTick int, totalValue decimal.Decimal) (decimal.Decimal, decimal.Decimal, error) {
	unit := new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
	u0, u1, err := v3math.GetAmounts(m.sqrtPriceX96, lowerTick, upperTick, unit,
		m.pool.Token0.Decimals, m.pool.Token1.Decimals)
	if err != nil {
		return decimal.Decimal{}, decimal.Decimal{}, err
	}
	uBase, uQuote := m.pool.Token01ToBaseQuote(u0, u1)
	unitValue := uBase.Mul(m.price).Add(uQuote)
	if unitValue.Sign() <= 0 {
		return decimal.Decimal{}, decimal.Decimal{}, fmt.Errorf("%w: range [%d, %d] holds no value",
			domain.ErrDomainViolation, lowerTick, upperTick)
	}
	scale := totalValue.Div(unitValue)
	return uBase.Mul(scale), uQuote.Mul(scale), nil
}

// swapForExact converts wallet funds so the wallet gains exactly toAmount of
// the to token, paying the pool fee on the from side.
func (m *LPMarket) swapForExact(from, to domain.TokenInfo, toAmount decimal.Decimal) error {
	one := decimal.New(1, 0)
	var fromAmount decimal.Decimal
	if from.Name == m.pool.QuoteToken().Name {
		fromAmount = toAmount.Mul(m.price).Div(one.Sub(m.pool.FeeRate))
	} else {
		fromAmount = toAmount.Div(m.price).Div(one.Sub(m.pool.FeeRate))
	}
	w := m.Wallet()
	if err := w.Sub(from, fromAmount); err != nil {
		return err
	}
	w.Add(to, toAmount)
	m.Record(domain.ActionUniLPSwap, SwapDetail{
		FromAmount: domain.NewUnitValue(fromAmount, from),
		ToAmount:   domain.NewUnitValue(toAmount, to),
		Fee:        domain.NewUnitValue(fromAmount.Mul(m.pool.FeeRate), from),
	})
	return nil
}

// BurnResult reports what a burn moved: removed principal goes to the
// position's pending balance; collected amounts reached the wallet.
type BurnResult struct {
	BaseRemoved    decimal.Decimal
	QuoteRemoved   decimal.Decimal
	BaseCollected  decimal.Decimal
	QuoteCollected decimal.Decimal
}

// RemoveLiquidity burns liquidity from a position. A nil liquidity burns all
// of it; burning more than held is clamped. Removed principal is credited to
// the position's pending amounts; with collect the pending balance then moves
// to the wallet. An empty position is deleted when removeDryPool is set.
func (m *LPMarket) RemoveLiquidity(info PositionInfo, liquidity *big.Int, collect, removeDryPool bool) (BurnResult, error) {
	if !m.hasRow {
		return BurnResult{}, fmt.Errorf("%w: market %s has no status yet", domain.ErrConfiguration, m.Info().Name)
	}
	pos, ok := m.positions[info]
	if !ok {
		return BurnResult{}, fmt.Errorf("%w: no position %s", domain.ErrDomainViolation, info)
	}
	if pos.Transferred {
		return BurnResult{}, fmt.Errorf("%w: position %s is vault collateral", domain.ErrDomainViolation, info)
	}
	burn := pos.Liquidity
	if liquidity != nil {
		if liquidity.Sign() < 0 {
			return BurnResult{}, fmt.Errorf("%w: negative liquidity %s", domain.ErrDomainViolation, liquidity)
		}
		burn = liquidity
	}
	if burn.Cmp(pos.Liquidity) > 0 {
		burn = pos.Liquidity
	}
	burn = new(big.Int).Set(burn)

	a0, a1, err := v3math.GetAmounts(m.sqrtPriceX96, info.LowerTick, info.UpperTick, burn,
		m.pool.Token0.Decimals, m.pool.Token1.Decimals)
	if err != nil {
		return BurnResult{}, err
	}
	pos.Pending0 = pos.Pending0.Add(a0)
	pos.Pending1 = pos.Pending1.Add(a1)
	pos.Liquidity = new(big.Int).Sub(pos.Liquidity, burn)

	baseRemoved, quoteRemoved := m.pool.Token01ToBaseQuote(a0, a1)
	m.Record(domain.ActionUniLPRemoveLiquidity, RemoveLiquidityDetail{
		LowerTick:        info.LowerTick,
		UpperTick:        info.UpperTick,
		BaseRemoved:      domain.NewUnitValue(baseRemoved, m.pool.BaseToken()),
		QuoteRemoved:     domain.NewUnitValue(quoteRemoved, m.pool.QuoteToken()),
		RemovedLiquidity: burn.String(),
	})

	res := BurnResult{BaseRemoved: baseRemoved, QuoteRemoved: quoteRemoved}
	if collect {
		cb, cq, err := m.CollectFee(info, FullBalance, FullBalance, removeDryPool)
		if err != nil {
			return BurnResult{}, err
		}
		res.BaseCollected, res.QuoteCollected = cb, cq
	} else if pos.Empty() && removeDryPool {
		delete(m.positions, info)
	}
	return res, nil
}

// CollectFee moves pending amounts into the wallet, up to the given limits
// (FullBalance collects everything). An emptied position is deleted when
// removeDryPool is set.
func (m *LPMarket) CollectFee(info PositionInfo, maxBase, maxQuote decimal.Decimal, removeDryPool bool) (decimal.Decimal, decimal.Decimal, error) {
	pos, ok := m.positions[info]
	if !ok {
		return decimal.Decimal{}, decimal.Decimal{}, fmt.Errorf("%w: no position %s", domain.ErrDomainViolation, info)
	}
	pendBase, pendQuote := m.pool.Token01ToBaseQuote(pos.Pending0, pos.Pending1)
	takeBase, takeQuote := pendBase, pendQuote
	if maxBase.Sign() >= 0 {
		takeBase = decimal.Min(pendBase, maxBase)
	}
	if maxQuote.Sign() >= 0 {
		takeQuote = decimal.Min(pendQuote, maxQuote)
	}

	take0, take1 := m.pool.BaseQuoteToToken01(takeBase, takeQuote)
	pos.Pending0 = pos.Pending0.Sub(take0)
	pos.Pending1 = pos.Pending1.Sub(take1)
	w := m.Wallet()
	w.Add(m.pool.BaseToken(), takeBase)
	w.Add(m.pool.QuoteToken(), takeQuote)

	m.Record(domain.ActionUniLPCollect, CollectDetail{
		LowerTick:      info.LowerTick,
		UpperTick:      info.UpperTick,
		BaseCollected:  domain.NewUnitValue(takeBase, m.pool.BaseToken()),
		QuoteCollected: domain.NewUnitValue(takeQuote, m.pool.QuoteToken()),
	})
	if pos.Empty() && removeDryPool {
		delete(m.positions, info)
	}
	return takeBase, takeQuote, nil
}

// Buy acquires amount of the base token at the current price.
func (m *LPMarket) Buy(amount decimal.Decimal) error { return m.BuyAt(amount, m.price) }

// BuyAt acquires amount of the base token at an explicit price, spending
// price*amount plus the pool fee in quote tokens.
func (m *LPMarket) BuyAt(amount, price decimal.Decimal) error {
	if amount.Sign() <= 0 {
		return fmt.Errorf("%w: buy amount must be positive, got %s", domain.ErrDomainViolation, amount)
	}
	cost := price.Mul(amount)
	fee := cost.Mul(m.pool.FeeRate)
	total := cost.Add(fee)
	w := m.Wallet()
	if err := w.Sub(m.pool.QuoteToken(), total); err != nil {
		return err
	}
	w.Add(m.pool.BaseToken(), amount)
	m.Record(domain.ActionUniLPBuy, BuyDetail{
		Amount: domain.NewUnitValue(amount, m.pool.BaseToken()),
		Price:  domain.NewUnitValue(price, m.pool.QuoteToken()),
		Fee:    domain.NewUnitValue(fee, m.pool.QuoteToken()),
		Spent:  domain.NewUnitValue(total, m.pool.QuoteToken()),
	})
	return nil
}

// Sell disposes amount of the base token at the current price.
func (m *LPMarket) Sell(amount decimal.Decimal) error { return m.SellAt(amount, m.price) }

// SellAt disposes amount of the base token at an explicit price. The fee is
// taken on the base side before conversion.
func (m *LPMarket) SellAt(amount, price decimal.Decimal) error {
	if amount.Sign() <= 0 {
		return fmt.Errorf("%w: sell amount must be positive, got %s", domain.ErrDomainViolation, amount)
	}
	w := m.Wallet()
	if err := w.Sub(m.pool.BaseToken(), amount); err != nil {
		return err
	}
	fee := amount.Mul(m.pool.FeeRate)
	received := amount.Sub(fee).Mul(price)
	w.Add(m.pool.QuoteToken(), received)
	m.Record(domain.ActionUniLPSell, SellDetail{
		Amount:   domain.NewUnitValue(amount, m.pool.BaseToken()),
		Price:    domain.NewUnitValue(price, m.pool.QuoteToken()),
		Fee:      domain.NewUnitValue(fee, m.pool.BaseToken()),
		Received: domain.NewUnitValue(received, m.pool.QuoteToken()),
	})
	return nil
}

// EvenRebalance swaps wallet funds so base and quote hold equal value at the
// current price.
func (m *LPMarket) EvenRebalance() error {
	if !m.hasRow {
		return fmt.Errorf("%w: market %s has no status yet", domain.ErrConfiguration, m.Info().Name)
	}
	w := m.Wallet()
	baseValue := w.Balance(m.pool.BaseToken()).Mul(m.price)
	quoteValue := w.Balance(m.pool.QuoteToken())
	diff := baseValue.Sub(quoteValue).Div(decimal.New(2, 0))
	switch {
	case diff.Sign() > 0:
		return m.Sell(diff.Div(m.price))
	case diff.Sign() < 0:
		return m.Buy(diff.Neg().Div(m.price))
	}
	return nil
}

// Position returns a copy of the position at info.
func (m *LPMarket) Position(info PositionInfo) (Position, bool) {
	pos, ok := m.positions[info]
	if !ok {
		return Position{}, false
	}
	cp := *pos
	cp.Liquidity = new(big.Int).Set(pos.Liquidity)
	return cp, true
}

// PositionCount returns the number of live positions, transferred included.
func (m *LPMarket) PositionCount() int { return len(m.positions) }

// Positions returns the live position keys ordered by tick range,
// transferred included.
func (m *LPMarket) Positions() []PositionInfo {
	infos := make([]PositionInfo, 0, len(m.positions))
	for info := range m.positions {
		infos = append(infos, info)
	}
	sort.Slice(infos, func(i, j int) bool {
		if infos[i].LowerTick != infos[j].LowerTick {
			return infos[i].LowerTick < infos[j].LowerTick
		}
		return infos[i].UpperTick < infos[j].UpperTick
	})
	return infos
}

// PositionTokenAmounts returns the position's current token0/token1 holdings
// in human units, pending amounts included.
func (m *LPMarket) PositionTokenAmounts(info PositionInfo) (decimal.Decimal, decimal.Decimal, error) {
	pos, ok := m.positions[info]
	if !ok {
		return decimal.Decimal{}, decimal.Decimal{}, fmt.Errorf("%w: no position %s", domain.ErrDomainViolation, info)
	}
	a0, a1, err := v3math.GetAmounts(m.sqrtPriceX96, info.LowerTick, info.UpperTick, pos.Liquidity,
		m.pool.Token0.Decimals, m.pool.Token1.Decimals)
	if err != nil {
		return decimal.Decimal{}, decimal.Decimal{}, err
	}
	return a0.Add(pos.Pending0), a1.Add(pos.Pending1), nil
}

// SetTransferred flags a position as held by another market.
func (m *LPMarket) SetTransferred(info PositionInfo, transferred bool) error {
	pos, ok := m.positions[info]
	if !ok {
		return fmt.Errorf("%w: no position %s", domain.ErrDomainViolation, info)
	}
	pos.Transferred = transferred
	return nil
}

func floorToSpacing(tick, spacing int) int {
	q := tick / spacing
	if tick%spacing != 0 && tick < 0 {
		q--
	}
	return q * spacing
}

func ceilToSpacing(tick, spacing int) int {
	q := tick / spacing
	if tick%spacing != 0 && tick > 0 {
		q++
	}
	return q * spacing
}
