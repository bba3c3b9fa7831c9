package squeeth

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"defi-backtest-lab/internal/domain"
	"defi-backtest-lab/internal/market"
	"defi-backtest-lab/internal/uniswap"
)

// Options configures a squeeth Market.
type Options struct {
	Name       string
	QuoteToken domain.TokenInfo
	Eth        domain.TokenInfo
	Osqth      domain.TokenInfo
	// UniMarket is the oSQTH/ETH pool used for LP NFT collateral and for
	// buying and selling oSQTH. Optional; vault-only strategies can run
	// without it.
	UniMarket *uniswap.LPMarket
	Data      []MinuteRow
	Logger    *zap.Logger
}

// Market simulates the squeeth controller over per-minute rows.
type Market struct {
	market.Core

	logger *zap.Logger
	eth    domain.TokenInfo
	osqth  domain.TokenInfo
	uni    *uniswap.LPMarket

	data   []MinuteRow
	vaults map[VaultKey]*Vault
	nextID int

	row    MinuteRow
	hasRow bool
}

var _ market.Market = (*Market)(nil)

// New creates a Market.
func New(opts Options) (*Market, error) {
	if opts.Name == "" {
		return nil, fmt.Errorf("%w: market requires a name", domain.ErrConfiguration)
	}
	if opts.Eth.Name == "" || opts.Osqth.Name == "" {
		return nil, fmt.Errorf("%w: market %s requires eth and osqth tokens", domain.ErrConfiguration, opts.Name)
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Market{
		logger: logger.With(zap.String("market", opts.Name)),
		eth:    opts.Eth,
		osqth:  opts.Osqth,
		uni:    opts.UniMarket,
		data:   opts.Data,
		vaults: make(map[VaultKey]*Vault),
		nextID: 1,
	}
	m.Init(domain.NewMarketInfo(opts.Name, domain.MarketTypeSqueeth), opts.QuoteToken)
	return m, nil
}

// SetData attaches the controller minute rows.
func (m *Market) SetData(rows []MinuteRow) { m.data = rows }

func (m *Market) DataLen() int { return len(m.data) }

func (m *Market) Timestamps() []time.Time {
	out := make([]time.Time, len(m.data))
	for i, r := range m.data {
		out[i] = r.Timestamp
	}
	return out
}

// Check verifies the market can run.
func (m *Market) Check() error {
	if len(m.data) == 0 {
		return fmt.Errorf("%w: market %s has no data", domain.ErrConfiguration, m.Info().Name)
	}
	if m.Wallet() == nil {
		return fmt.Errorf("%w: market %s is not attached to a broker", domain.ErrConfiguration, m.Info().Name)
	}
	return nil
}

// SetStatus moves the market onto the bar at rowID.
func (m *Market) SetStatus(ts time.Time, rowID int, prices domain.PriceRow) error {
	if rowID < 0 || rowID >= len(m.data) {
		return fmt.Errorf("%w: row %d outside data of length %d", domain.ErrConfiguration, rowID, len(m.data))
	}
	row := m.data[rowID]
	if !row.Timestamp.Equal(ts) {
		return fmt.Errorf("%w: market %s row %d has timestamp %s, index has %s",
			domain.ErrConfiguration, m.Info().Name, rowID, row.Timestamp, ts)
	}
	m.row = row
	m.hasRow = true
	m.Timestamp = ts
	m.RowID = rowID
	return nil
}

// NormFactor returns the current normalization factor.
func (m *Market) NormFactor() decimal.Decimal { return m.row.NormFactor }

// EthPrice returns the current USD price of ETH.
func (m *Market) EthPrice() decimal.Decimal { return m.row.EthPrice }

// OsqthPrice returns the current USD price of oSQTH.
func (m *Market) OsqthPrice() decimal.Decimal { return m.row.OsqthPrice }

// TwapEthPrice returns the geometric mean ETH price over the oracle window
// ending at the current bar.
func (m *Market) TwapEthPrice() decimal.Decimal {
	return m.twap(func(r MinuteRow) decimal.Decimal { return r.EthPrice })
}

// TwapOsqthPrice returns the geometric mean oSQTH price over the oracle
// window ending at the current bar.
func (m *Market) TwapOsqthPrice() decimal.Decimal {
	return m.twap(func(r MinuteRow) decimal.Decimal { return r.OsqthPrice })
}

func (m *Market) twap(pick func(MinuteRow) decimal.Decimal) decimal.Decimal {
	if !m.hasRow {
		return decimal.Zero
	}
	start := m.RowID - TwapPeriod + 1
	if start < 0 {
		start = 0
	}
	sum := 0.0
	n := 0
	for i := start; i <= m.RowID; i++ {
		v := pick(m.data[i]).InexactFloat64()
		if v <= 0 {
			continue
		}
		sum += math.Log(v)
		n++
	}
	if n == 0 {
		return decimal.Zero
	}
	return decimal.NewFromFloat(math.Exp(sum / float64(n)))
}

// debtEth converts an oSQTH short into its ETH-denominated debt value.
func (m *Market) debtEth(short decimal.Decimal) decimal.Decimal {
	return short.Mul(m.row.NormFactor).Mul(m.row.EthPrice).Div(IndexScale)
}

// marketEth values an oSQTH amount in ETH at the traded oSQTH price, which
// can sit off the index. Bounty payouts price here, debt does not.
func (m *Market) marketEth(amount decimal.Decimal) decimal.Decimal {
	if m.row.EthPrice.Sign() <= 0 {
		return decimal.Zero
	}
	return amount.Mul(m.row.OsqthPrice).Div(m.row.EthPrice)
}

// nftCollateralEth values a vault's LP NFT in ETH: its ETH tokens plus its
// oSQTH tokens at the index conversion, pending fees included.
func (m *Market) nftCollateralEth(v *Vault) (decimal.Decimal, error) {
	if !v.HasNFT() {
		return decimal.Zero, nil
	}
	if m.uni == nil {
		return decimal.Decimal{}, fmt.Errorf("%w: vault %d holds an NFT but no LP market is configured",
			domain.ErrConfiguration, v.ID)
	}
	a0, a1, err := m.uni.PositionTokenAmounts(*v.UniPosition)
	if err != nil {
		return decimal.Decimal{}, err
	}
	osqthAmt, ethAmt := a0, a1
	if m.uni.Pool().Token0.Name == m.eth.Name {
		osqthAmt, ethAmt = a1, a0
	}
	return ethAmt.Add(m.debtEth(osqthAmt)), nil
}

// effectiveCollateralEth is raw ETH collateral plus the NFT value.
func (m *Market) effectiveCollateralEth(v *Vault) (decimal.Decimal, error) {
	nft, err := m.nftCollateralEth(v)
	if err != nil {
		return decimal.Decimal{}, err
	}
	return v.Collateral.Add(nft), nil
}

// checkVault enforces the safety and dust predicates on a vault with debt.
func (m *Market) checkVault(v *Vault) error {
	if v.Short.Sign() <= 0 {
		return nil
	}
	eff, err := m.effectiveCollateralEth(v)
	if err != nil {
		return err
	}
	debt := m.debtEth(v.Short)
	if eff.Mul(crDenominator).LessThan(debt.Mul(crNumerator)) {
		return fmt.Errorf("%w: vault %d unsafe: collateral %s ETH against debt %s ETH",
			domain.ErrDomainViolation, v.ID, eff, debt)
	}
	if eff.LessThan(MinDeposit) {
		return fmt.Errorf("%w: vault %d collateral %s ETH below the %s minimum",
			domain.ErrDomainViolation, v.ID, eff, MinDeposit)
	}
	return nil
}

func (m *Market) isSafe(v *Vault) (bool, error) {
	if v.Short.Sign() <= 0 {
		return true, nil
	}
	eff, err := m.effectiveCollateralEth(v)
	if err != nil {
		return false, err
	}
	return !eff.Mul(crDenominator).LessThan(m.debtEth(v.Short).Mul(crNumerator)), nil
}

// Vault returns a copy of the vault at key.
func (m *Market) Vault(key VaultKey) (Vault, bool) {
	v, ok := m.vaults[key]
	if !ok {
		return Vault{}, false
	}
	return *v, true
}

// VaultCount returns the number of open vaults.
func (m *Market) VaultCount() int { return len(m.vaults) }

// CollateralRate returns effective collateral over debt value for a vault.
func (m *Market) CollateralRate(key VaultKey) (decimal.Decimal, error) {
	v, ok := m.vaults[key]
	if !ok {
		return decimal.Decimal{}, fmt.Errorf("%w: no vault %d", domain.ErrDomainViolation, key)
	}
	if v.Short.Sign() <= 0 {
		return decimal.Decimal{}, fmt.Errorf("%w: vault %d has no debt", domain.ErrDomainViolation, key)
	}
	eff, err := m.effectiveCollateralEth(v)
	if err != nil {
		return decimal.Decimal{}, err
	}
	return eff.Div(m.debtEth(v.Short)), nil
}

// LiquidationPrice returns the ETH price at which the vault hits the minimum
// collateral ratio, assuming the NFT value tracks its current ETH terms.
func (m *Market) LiquidationPrice(key VaultKey) (decimal.Decimal, error) {
	rate, err := m.CollateralRate(key)
	if err != nil {
		return decimal.Decimal{}, err
	}
	// Debt value scales linearly with the ETH price: the vault becomes
	// unsafe when the rate decays to 1.5.
	return m.row.EthPrice.Mul(rate).Mul(crDenominator).Div(crNumerator), nil
}

// OpenDepositMint opens or tops up a vault: deposits ETH collateral, mints
// oSQTH into the wallet, optionally deposits an LP NFT. Key 0 opens a fresh
// vault. The safety and dust checks run against the resulting state; a
// failing check leaves the vault and wallet untouched.
func (m *Market) OpenDepositMint(key VaultKey, depositEth, mintOsqth decimal.Decimal, nft *uniswap.PositionInfo) (VaultKey, error) {
	if !m.hasRow {
		return 0, fmt.Errorf("%w: market %s has no status yet", domain.ErrConfiguration, m.Info().Name)
	}
	var v *Vault
	isNew := key == 0
	if isNew {
		v = &Vault{ID: VaultKey(m.nextID)}
	} else {
		var ok bool
		v, ok = m.vaults[key]
		if !ok {
			return 0, fmt.Errorf("%w: no vault %d", domain.ErrDomainViolation, key)
		}
	}
	if nft != nil {
		if err := m.checkNFTDeposit(v, *nft); err != nil {
			return 0, err
		}
	}

	next := *v
	if depositEth.Sign() > 0 {
		next.Collateral = next.Collateral.Add(depositEth)
	}
	if mintOsqth.Sign() > 0 {
		next.Short = next.Short.Add(mintOsqth)
	}
	if nft != nil {
		pos := *nft
		next.UniPosition = &pos
	}
	if err := m.checkVault(&next); err != nil {
		return 0, err
	}

	if depositEth.Sign() > 0 {
		if err := m.Wallet().Sub(m.eth, depositEth); err != nil {
			return 0, err
		}
	}
	if next.HasNFT() && !v.HasNFT() {
		if err := m.uni.SetTransferred(*next.UniPosition, true); err != nil {
			if depositEth.Sign() > 0 {
				m.Wallet().Add(m.eth, depositEth)
			}
			return 0, err
		}
	}
	*v = next
	if isNew {
		m.vaults[v.ID] = v
		m.nextID++
		m.Record(domain.ActionSqueethOpenVault, OpenVaultDetail{Vault: int(v.ID)})
	}
	if depositEth.Sign() > 0 {
		m.Record(domain.ActionSqueethUpdateCollateral, UpdateCollateralDetail{
			Vault:  int(v.ID),
			Change: domain.NewUnitValue(depositEth, m.eth),
			Total:  domain.NewUnitValue(v.Collateral, m.eth),
		})
	}
	if mintOsqth.Sign() > 0 {
		m.Wallet().Add(m.osqth, mintOsqth)
		m.Record(domain.ActionSqueethUpdateShort, UpdateShortDetail{
			Vault:  int(v.ID),
			Change: domain.NewUnitValue(mintOsqth, m.osqth),
			Total:  domain.NewUnitValue(v.Short, m.osqth),
		})
	}
	if nft != nil {
		m.Record(domain.ActionSqueethDepositUniLP, DepositUniLPDetail{
			Vault:     int(v.ID),
			LowerTick: nft.LowerTick,
			UpperTick: nft.UpperTick,
			Market:    m.uni.Info().Name,
		})
	}
	return v.ID, nil
}

// OpenDepositMintByCollatRate opens a vault with depositEth collateral and
// mints exactly enough oSQTH to sit at the requested collateral rate.
func (m *Market) OpenDepositMintByCollatRate(depositEth, collatRate decimal.Decimal) (VaultKey, decimal.Decimal, error) {
	if !m.hasRow {
		return 0, decimal.Decimal{}, fmt.Errorf("%w: market %s has no status yet", domain.ErrConfiguration, m.Info().Name)
	}
	if collatRate.Sign() <= 0 {
		return 0, decimal.Decimal{}, fmt.Errorf("%w: collateral rate must be positive, got %s",
			domain.ErrDomainViolation, collatRate)
	}
	mint := depositEth.Mul(IndexScale).Div(m.row.NormFactor).Div(m.row.EthPrice).Div(collatRate)
	key, err := m.OpenDepositMint(0, depositEth, mint, nil)
	if err != nil {
		return 0, decimal.Decimal{}, err
	}
	return key, mint, nil
}

// checkNFTDeposit verifies a position can enter the vault as collateral.
func (m *Market) checkNFTDeposit(v *Vault, pos uniswap.PositionInfo) error {
	if m.uni == nil {
		return fmt.Errorf("%w: market %s has no LP market configured", domain.ErrConfiguration, m.Info().Name)
	}
	if v.HasNFT() {
		return fmt.Errorf("%w: vault %d already holds an NFT", domain.ErrDomainViolation, v.ID)
	}
	p, ok := m.uni.Position(pos)
	if !ok {
		return fmt.Errorf("%w: no LP position %s", domain.ErrDomainViolation, pos)
	}
	if p.Transferred {
		return fmt.Errorf("%w: LP position %s is already vault collateral", domain.ErrDomainViolation, pos)
	}
	if p.Liquidity.Sign() <= 0 {
		return fmt.Errorf("%w: LP position %s holds no liquidity", domain.ErrDomainViolation, pos)
	}
	return nil
}

// DepositUniPosition moves an LP position from the LP market into a vault as
// extra collateral. The position must hold liquidity and the vault must not
// already hold an NFT.
func (m *Market) DepositUniPosition(key VaultKey, pos uniswap.PositionInfo) error {
	v, ok := m.vaults[key]
	if !ok {
		return fmt.Errorf("%w: no vault %d", domain.ErrDomainViolation, key)
	}
	if err := m.checkNFTDeposit(v, pos); err != nil {
		return err
	}
	if err := m.uni.SetTransferred(pos, true); err != nil {
		return err
	}
	v.UniPosition = &pos
	m.Record(domain.ActionSqueethDepositUniLP, DepositUniLPDetail{
		Vault:     int(key),
		LowerTick: pos.LowerTick,
		UpperTick: pos.UpperTick,
		Market:    m.uni.Info().Name,
	})
	return nil
}

// WithdrawUniPosition returns the vault's NFT to the LP market. The vault
// must stay safe without it.
func (m *Market) WithdrawUniPosition(key VaultKey) error {
	v, ok := m.vaults[key]
	if !ok {
		return fmt.Errorf("%w: no vault %d", domain.ErrDomainViolation, key)
	}
	if !v.HasNFT() {
		return fmt.Errorf("%w: vault %d holds no NFT", domain.ErrDomainViolation, key)
	}
	next := *v
	next.UniPosition = nil
	if err := m.checkVault(&next); err != nil {
		return err
	}
	pos := *v.UniPosition
	if err := m.uni.SetTransferred(pos, false); err != nil {
		return err
	}
	v.UniPosition = nil
	m.Record(domain.ActionSqueethWithdrawUniLP, WithdrawUniLPDetail{
		Vault:     int(key),
		LowerTick: pos.LowerTick,
		UpperTick: pos.UpperTick,
		Market:    m.uni.Info().Name,
	})
	return nil
}

// BurnAndWithdraw burns oSQTH from the wallet against the vault's short and
// withdraws ETH collateral. MaxAmount burns the whole short or withdraws the
// whole collateral. The vault must end safe.
func (m *Market) BurnAndWithdraw(key VaultKey, burnOsqth, withdrawEth decimal.Decimal) error {
	v, ok := m.vaults[key]
	if !ok {
		return fmt.Errorf("%w: no vault %d", domain.ErrDomainViolation, key)
	}
	burn := burnOsqth
	if burn.Sign() < 0 || burn.GreaterThan(v.Short) {
		burn = v.Short
	}
	withdraw := withdrawEth
	if withdraw.Sign() < 0 {
		withdraw = v.Collateral
	}
	if withdraw.GreaterThan(v.Collateral) {
		return fmt.Errorf("%w: vault %d cannot withdraw %s ETH from %s",
			domain.ErrDomainViolation, key, withdraw, v.Collateral)
	}
	next := *v
	next.Short = next.Short.Sub(burn)
	next.Collateral = next.Collateral.Sub(withdraw)
	if err := m.checkVault(&next); err != nil {
		return err
	}

	if burn.Sign() > 0 {
		if err := m.Wallet().Sub(m.osqth, burn); err != nil {
			return err
		}
		v.Short = next.Short
		m.Record(domain.ActionSqueethUpdateShort, UpdateShortDetail{
			Vault:  int(key),
			Change: domain.NewUnitValue(burn.Neg(), m.osqth),
			Total:  domain.NewUnitValue(v.Short, m.osqth),
		})
	}
	if withdraw.Sign() > 0 {
		v.Collateral = next.Collateral
		m.Wallet().Add(m.eth, withdraw)
		m.Record(domain.ActionSqueethUpdateCollateral, UpdateCollateralDetail{
			Vault:  int(key),
			Change: domain.NewUnitValue(withdraw.Neg(), m.eth),
			Total:  domain.NewUnitValue(v.Collateral, m.eth),
		})
	}
	return nil
}

// BuySqueeth acquires oSQTH through the LP market.
func (m *Market) BuySqueeth(amount decimal.Decimal) error {
	if m.uni == nil {
		return fmt.Errorf("%w: market %s has no LP market configured", domain.ErrConfiguration, m.Info().Name)
	}
	return m.uni.Buy(amount)
}

// SellSqueeth disposes oSQTH through the LP market.
func (m *Market) SellSqueeth(amount decimal.Decimal) error {
	if m.uni == nil {
		return fmt.Errorf("%w: market %s has no LP market configured", domain.ErrConfiguration, m.Info().Name)
	}
	return m.uni.Sell(amount)
}

// Update checks every vault; unsafe vaults first redeem their NFT to burn
// debt, then get liquidated if still under water.
func (m *Market) Update() error {
	if !m.hasRow {
		return nil
	}
	keys := make([]VaultKey, 0, len(m.vaults))
	for k := range m.vaults {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	for _, k := range keys {
		v := m.vaults[k]
		safe, err := m.isSafe(v)
		if err != nil {
			return err
		}
		if safe {
			continue
		}
		if v.HasNFT() {
			if err := m.reduceDebt(v, true); err != nil {
				return err
			}
			if safe, err = m.isSafe(v); err != nil {
				return err
			}
			if safe {
				continue
			}
		}
		if err := m.liquidate(v); err != nil {
			return err
		}
	}
	return nil
}

// reduceDebt redeems the vault's NFT: the LP position is withdrawn, its
// oSQTH burns the short (excess stays with the wallet), its ETH joins the
// vault collateral, and a bounty is paid from the vault.
func (m *Market) reduceDebt(v *Vault, payBounty bool) error {
	if !v.HasNFT() {
		return nil
	}
	pos := *v.UniPosition
	if err := m.uni.SetTransferred(pos, false); err != nil {
		return err
	}
	v.UniPosition = nil
	res, err := m.uni.RemoveLiquidity(pos, nil, true, true)
	if err != nil {
		return err
	}
	osqthGot, ethGot := res.BaseCollected, res.QuoteCollected
	if m.uni.Pool().BaseToken().Name == m.eth.Name {
		osqthGot, ethGot = ethGot, osqthGot
	}

	burn := decimal.Min(osqthGot, v.Short)
	w := m.Wallet()
	if burn.Sign() > 0 {
		if err := w.Sub(m.osqth, burn); err != nil {
			return err
		}
		v.Short = v.Short.Sub(burn)
	}
	if ethGot.Sign() > 0 {
		if err := w.Sub(m.eth, ethGot); err != nil {
			return err
		}
		v.Collateral = v.Collateral.Add(ethGot)
	}

	bounty := decimal.Zero
	if payBounty {
		bounty = ReduceDebtBounty.Mul(m.marketEth(burn).Add(ethGot))
		v.Collateral = v.Collateral.Sub(bounty)
	}
	m.logger.Info("reduce debt",
		zap.Int("vault", int(v.ID)),
		zap.String("burned", burn.String()),
		zap.String("eth_to_vault", ethGot.String()),
		zap.String("bounty", bounty.String()))
	m.Record(domain.ActionSqueethReduceDebt, ReduceDebtDetail{
		Vault:          int(v.ID),
		BurnedShort:    domain.NewUnitValue(burn, m.osqth),
		ExcessReturned: domain.NewUnitValue(osqthGot.Sub(burn), m.osqth),
		EthToVault:     domain.NewUnitValue(ethGot, m.eth),
		Bounty:         domain.NewUnitValue(bounty, m.eth),
	})
	return nil
}

// liquidate covers half the short (or all of it when the remainder would
// leave a dust vault) and pays the liquidator from the vault collateral with
// a 10% bounty, capped at what the vault holds.
func (m *Market) liquidate(v *Vault) error {
	onePlusBounty := decimal.New(1, 0).Add(LiquidationBounty)

	cover := v.Short.Div(decimal.New(2, 0))
	payHalf := m.marketEth(cover).Mul(onePlusBounty)
	if v.Collateral.Sub(payHalf).LessThan(MinDeposit) {
		cover = v.Short
	}
	pay := m.marketEth(cover).Mul(onePlusBounty)
	if pay.GreaterThan(v.Collateral) {
		pay = v.Collateral
	}

	v.Short = v.Short.Sub(cover)
	v.Collateral = v.Collateral.Sub(pay)
	m.logger.Info("vault liquidation",
		zap.Int("vault", int(v.ID)),
		zap.String("short_covered", cover.String()),
		zap.String("collateral_paid", pay.String()))
	m.Record(domain.ActionSqueethLiquidation, LiquidationDetail{
		Vault:          int(v.ID),
		ShortCovered:   domain.NewUnitValue(cover, m.osqth),
		CollateralPaid: domain.NewUnitValue(pay, m.eth),
	})
	return nil
}

// Balance values every vault in quote terms: effective ETH collateral minus
// ETH debt, at the current ETH price.
func (m *Market) Balance(prices domain.PriceRow) (domain.MarketBalance, error) {
	if !m.hasRow {
		return domain.MarketBalance{}, fmt.Errorf("%w: market %s has no status yet", domain.ErrConfiguration, m.Info().Name)
	}
	var net, collateral, short decimal.Decimal
	for _, v := range m.vaults {
		eff, err := m.effectiveCollateralEth(v)
		if err != nil {
			return domain.MarketBalance{}, err
		}
		net = net.Add(eff.Sub(m.debtEth(v.Short)).Mul(m.row.EthPrice))
		collateral = collateral.Add(v.Collateral)
		short = short.Add(v.Short)
	}
	return domain.MarketBalance{
		NetValue: net,
		Fields: []domain.BalanceField{
			{Name: "collateral_eth", Value: collateral},
			{Name: "short_osqth", Value: short},
			{Name: "vault_count", Value: decimal.NewFromInt(int64(len(m.vaults)))},
		},
	}, nil
}
