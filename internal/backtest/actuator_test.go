package backtest

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"defi-backtest-lab/internal/broker"
	"defi-backtest-lab/internal/domain"
	"defi-backtest-lab/internal/market"
)

var (
	usdc = domain.NewTokenInfo("usdc", 6)
	weth = domain.NewTokenInfo("weth", 18)
)

func minuteIndex(n int) []time.Time {
	out := make([]time.Time, n)
	for i := range out {
		out[i] = time.Date(2023, 8, 15, 0, 0, 0, 0, time.UTC).Add(time.Duration(i) * time.Minute)
	}
	return out
}

func priceMatrix(ts []time.Time, wethPrice int64) domain.PriceMatrix {
	rows := make([]domain.PriceRow, len(ts))
	for i := range rows {
		rows[i] = domain.PriceRow{
			"USDC": decimal.New(1, 0),
			"WETH": decimal.NewFromInt(wethPrice),
		}
	}
	return domain.PriceMatrix{Timestamps: ts, Rows: rows}
}

type markDetail struct {
	Note string `json:"note"`
}

func (markDetail) Kind() domain.ActionType { return domain.ActionType("mark") }

// stubMarket logs its lifecycle calls and reports a fixed net value.
type stubMarket struct {
	market.Core
	timestamps []time.Time
	net        decimal.Decimal
	log        *[]string
}

var _ market.Market = (*stubMarket)(nil)

func newStubMarket(name string, ts []time.Time, net decimal.Decimal, log *[]string) *stubMarket {
	m := &stubMarket{timestamps: ts, net: net, log: log}
	m.Init(domain.NewMarketInfo(name, domain.MarketTypeUniLP), usdc)
	return m
}

func (m *stubMarket) trace(ev string) {
	if m.log != nil {
		*m.log = append(*m.log, ev+":"+m.Info().Name)
	}
}

func (m *stubMarket) Check() error {
	if m.Wallet() == nil {
		return fmt.Errorf("%w: market %s is not attached to a broker", domain.ErrConfiguration, m.Info().Name)
	}
	return nil
}

func (m *stubMarket) SetStatus(ts time.Time, rowID int, prices domain.PriceRow) error {
	m.Timestamp = ts
	m.RowID = rowID
	m.trace("status")
	return nil
}

func (m *stubMarket) Update() error {
	m.trace("update")
	return nil
}

func (m *stubMarket) Balance(prices domain.PriceRow) (domain.MarketBalance, error) {
	return domain.MarketBalance{NetValue: m.net}, nil
}

func (m *stubMarket) DataLen() int { return len(m.timestamps) }

func (m *stubMarket) Timestamps() []time.Time { return m.timestamps }

// traceStrategy logs every hook invocation.
type traceStrategy struct {
	BaseStrategy
	log     *[]string
	markets []*stubMarket
}

func (s *traceStrategy) trace(ev string) { *s.log = append(*s.log, ev) }

func (s *traceStrategy) BeforeBar(Snapshot) error { s.trace("before"); return nil }

func (s *traceStrategy) OnBar(snap Snapshot) error {
	s.trace("onbar")
	if len(s.markets) > 0 && snap.RowID == 0 {
		s.markets[0].Record(domain.ActionType("mark"), markDetail{Note: "opened"})
	}
	return nil
}

func (s *traceStrategy) AfterBar(Snapshot) error { s.trace("after"); return nil }

func (s *traceStrategy) Notify(a domain.Action) { s.trace("notify") }

func newRun(t *testing.T, bars int, strat Strategy, log *[]string) (*Actuator, *stubMarket, *broker.Broker) {
	t.Helper()
	ts := minuteIndex(bars)
	m := newStubMarket("stub", ts, decimal.NewFromInt(500), log)
	b, err := broker.New(broker.Options{QuoteToken: usdc})
	require.NoError(t, err)
	require.NoError(t, b.AddMarket(m))
	b.SetBalance(usdc, decimal.NewFromInt(1000))
	a, err := New(Options{Broker: b, Strategy: strat, Prices: priceMatrix(ts, 2000)})
	require.NoError(t, err)
	return a, m, b
}

func TestRunSequencePerBar(t *testing.T) {
	var log []string
	strat := &traceStrategy{log: &log}
	strat.AddTrigger(Customized(
		func(Snapshot) bool { return true },
		func(Snapshot) error { log = append(log, "trigger"); return nil },
	))
	a, m, _ := newRun(t, 2, strat, &log)
	strat.markets = []*stubMarket{m}

	res, err := a.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Bars)
	require.Len(t, res.Actions, 1)
	assert.Len(t, res.Statuses, 2)

	want := []string{
		"status:stub", "before", "trigger", "onbar", "update:stub", "after", "notify",
		"status:stub", "before", "trigger", "onbar", "update:stub", "after",
	}
	assert.Equal(t, want, log)
}

func TestTriggerOrdering(t *testing.T) {
	// The at-time trigger was registered first, so on its bar it runs before
	// the period trigger; OnBar runs after all triggers.
	ts := minuteIndex(3)
	var log []string
	strat := &traceStrategy{log: &log}
	strat.AddTrigger(
		AtTime(ts[1], func(Snapshot) error { log = append(log, "A"); return nil }),
		Period(time.Minute, true, 0, func(Snapshot) error { log = append(log, "B"); return nil }),
	)
	a, _, _ := newRun(t, 3, strat, &log)

	_, err := a.Run(context.Background())
	require.NoError(t, err)

	var fired []string
	for _, ev := range log {
		switch ev {
		case "A", "B", "onbar":
			fired = append(fired, ev)
		}
	}
	want := []string{
		"B", "onbar", // bar 0: immediate period fire
		"A", "B", "onbar", // bar 1: registration order
		"B", "onbar", // bar 2
	}
	assert.Equal(t, want, fired)
}

func TestPeriodTriggerPhase(t *testing.T) {
	ts := minuteIndex(6)
	var fired []int
	strat := &traceStrategy{log: new([]string)}
	strat.AddTrigger(Period(2*time.Minute, false, time.Minute, func(s Snapshot) error {
		fired = append(fired, s.RowID)
		return nil
	}))
	a, _, _ := newRun(t, len(ts), strat, new([]string))

	_, err := a.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int{1, 3, 5}, fired)
}

func TestNetValueAdditivity(t *testing.T) {
	// Every recorded status must equal wallet value plus the sum of the
	// market net values, in broker quote terms.
	ts := minuteIndex(4)
	var log []string
	a1 := newStubMarket("alpha", ts, decimal.NewFromInt(300), &log)
	a2 := newStubMarket("beta", ts, decimal.NewFromInt(200), &log)
	b, err := broker.New(broker.Options{QuoteToken: usdc})
	require.NoError(t, err)
	require.NoError(t, b.AddMarket(a1))
	require.NoError(t, b.AddMarket(a2))
	b.SetBalance(usdc, decimal.NewFromInt(1000))
	b.SetBalance(weth, decimal.NewFromInt(1))

	act, err := New(Options{Broker: b, Strategy: &BaseStrategy{}, Prices: priceMatrix(ts, 2000)})
	require.NoError(t, err)
	res, err := act.Run(context.Background())
	require.NoError(t, err)

	want := decimal.NewFromInt(1000 + 2000 + 300 + 200)
	for _, st := range res.Statuses {
		assert.True(t, st.NetValue.Equal(want), "net %s", st.NetValue)

		sum := decimal.Zero
		for _, tok := range st.Tokens {
			price := decimal.New(1, 0)
			if tok.Name == "WETH" {
				price = decimal.NewFromInt(2000)
			}
			sum = sum.Add(tok.Value.Mul(price))
		}
		for _, me := range st.Markets {
			sum = sum.Add(me.Balance.NetValue)
		}
		assert.True(t, st.NetValue.Equal(sum))
	}
}

func TestCheckRejectsMismatchedData(t *testing.T) {
	ts := minuteIndex(4)
	var log []string
	m := newStubMarket("stub", ts[:3], decimal.Zero, &log)
	b, err := broker.New(broker.Options{QuoteToken: usdc})
	require.NoError(t, err)
	require.NoError(t, b.AddMarket(m))

	a, err := New(Options{Broker: b, Strategy: &BaseStrategy{}, Prices: priceMatrix(ts, 2000)})
	require.NoError(t, err)
	_, err = a.Run(context.Background())
	require.ErrorIs(t, err, domain.ErrConfiguration)
}

func TestCheckRejectsUnpricedWalletToken(t *testing.T) {
	ts := minuteIndex(2)
	var log []string
	m := newStubMarket("stub", ts, decimal.Zero, &log)
	b, err := broker.New(broker.Options{QuoteToken: usdc})
	require.NoError(t, err)
	require.NoError(t, b.AddMarket(m))
	b.SetBalance(domain.NewTokenInfo("wbtc", 8), decimal.NewFromInt(1))

	a, err := New(Options{Broker: b, Strategy: &BaseStrategy{}, Prices: priceMatrix(ts, 2000)})
	require.NoError(t, err)
	_, err = a.Run(context.Background())
	require.ErrorIs(t, err, domain.ErrConfiguration)
}

type commentStrategy struct {
	BaseStrategy
	market *stubMarket
}

func (s *commentStrategy) OnBar(snap Snapshot) error {
	if snap.RowID == 0 {
		s.market.Record(domain.ActionType("mark"), markDetail{Note: "entry"})
		s.Actuator().CommentLastAction("first entry")
	}
	return nil
}

func TestCommentLastAction(t *testing.T) {
	ts := minuteIndex(2)
	var log []string
	m := newStubMarket("stub", ts, decimal.Zero, &log)
	b, err := broker.New(broker.Options{QuoteToken: usdc})
	require.NoError(t, err)
	require.NoError(t, b.AddMarket(m))

	strat := &commentStrategy{market: m}
	a, err := New(Options{Broker: b, Strategy: strat, Prices: priceMatrix(ts, 2000)})
	require.NoError(t, err)
	res, err := a.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Actions, 1)
	assert.Equal(t, "first entry", res.Actions[0].Comment)
}

type statusObserver struct {
	actions  int
	statuses int
}

func (o *statusObserver) OnAction(domain.Action)        { o.actions++ }
func (o *statusObserver) OnStatus(domain.AccountStatus) { o.statuses++ }

func TestObserverSeesRun(t *testing.T) {
	var log []string
	strat := &traceStrategy{log: &log}
	a, m, _ := newRun(t, 3, strat, &log)
	strat.markets = []*stubMarket{m}

	obs := &statusObserver{}
	a.AddObserver(obs)
	_, err := a.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, obs.statuses)
	assert.Equal(t, 1, obs.actions)
}

func TestRunHonorsContext(t *testing.T) {
	var log []string
	strat := &traceStrategy{log: &log}
	a, _, _ := newRun(t, 3, strat, &log)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := a.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
}
