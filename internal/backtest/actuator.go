package backtest

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"defi-backtest-lab/internal/broker"
	"defi-backtest-lab/internal/domain"
)

// Observer watches a run without being able to mutate it. Callbacks run
// synchronously on the loop goroutine.
type Observer interface {
	OnAction(a domain.Action)
	OnStatus(s domain.AccountStatus)
}

// Options configures an Actuator.
type Options struct {
	Broker   *broker.Broker
	Strategy Strategy
	Prices   domain.PriceMatrix
	Logger   *zap.Logger
}

// Actuator runs one backtest: it owns the action buffer and the account
// status series and drives every bar through the fixed sequence of market
// status, triggers, strategy hooks, market updates and valuation.
type Actuator struct {
	logger   *zap.Logger
	broker   *broker.Broker
	strategy Strategy
	prices   domain.PriceMatrix

	pending   []domain.Action
	actions   []domain.Action
	statuses  []domain.AccountStatus
	observers []Observer
}

// Result is the output of a completed run.
type Result struct {
	Actions  []domain.Action
	Statuses []domain.AccountStatus
	Bars     int
	Duration time.Duration
}

// New creates an Actuator.
func New(opts Options) (*Actuator, error) {
	if opts.Broker == nil {
		return nil, fmt.Errorf("%w: actuator requires a broker", domain.ErrConfiguration)
	}
	if opts.Strategy == nil {
		return nil, fmt.Errorf("%w: actuator requires a strategy", domain.ErrConfiguration)
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Actuator{
		logger:   logger,
		broker:   opts.Broker,
		strategy: opts.Strategy,
		prices:   opts.Prices,
	}, nil
}

// Broker returns the broker driving this run.
func (a *Actuator) Broker() *broker.Broker { return a.broker }

// BarCount returns the number of bars this run will process.
func (a *Actuator) BarCount() int { return a.prices.Len() }

// AccountStatuses returns the statuses recorded so far.
func (a *Actuator) AccountStatuses() []domain.AccountStatus { return a.statuses }

// Actions returns the delivered actions recorded so far.
func (a *Actuator) Actions() []domain.Action { return a.actions }

// AddObserver attaches a read-only observer. Not safe once Run has started.
func (a *Actuator) AddObserver(o Observer) { a.observers = append(a.observers, o) }

// CommentLastAction attaches a note to the most recently recorded action.
// A no-op when nothing has been recorded yet.
func (a *Actuator) CommentLastAction(msg string) {
	if n := len(a.pending); n > 0 {
		a.pending[n-1].Comment = msg
		return
	}
	if n := len(a.actions); n > 0 {
		a.actions[n-1].Comment = msg
	}
}

func (a *Actuator) record(act domain.Action) {
	a.pending = append(a.pending, act)
}

// check verifies the run is consistent before the first bar.
func (a *Actuator) check() error {
	markets := a.broker.Markets()
	if len(markets) == 0 {
		return fmt.Errorf("%w: no markets attached to the broker", domain.ErrConfiguration)
	}
	if a.prices.Len() == 0 {
		return fmt.Errorf("%w: empty price matrix", domain.ErrConfiguration)
	}
	interval := a.prices.Interval()
	for i := 2; i < len(a.prices.Timestamps); i++ {
		if a.prices.Timestamps[i].Sub(a.prices.Timestamps[i-1]) != interval {
			return fmt.Errorf("%w: price index interval breaks at %s",
				domain.ErrConfiguration, a.prices.Timestamps[i])
		}
	}
	for _, m := range markets {
		if m.DataLen() != a.prices.Len() {
			return fmt.Errorf("%w: market %s has %d rows, price index has %d",
				domain.ErrConfiguration, m.Info().Name, m.DataLen(), a.prices.Len())
		}
		for i, ts := range m.Timestamps() {
			if !ts.Equal(a.prices.Timestamps[i]) {
				return fmt.Errorf("%w: market %s row %d has timestamp %s, price index has %s",
					domain.ErrConfiguration, m.Info().Name, i, ts, a.prices.Timestamps[i])
			}
		}
		if err := m.Check(); err != nil {
			return err
		}
	}
	if err := a.broker.CheckQuoteToken(); err != nil {
		return err
	}
	first := a.prices.Rows[0]
	for _, asset := range a.broker.Assets() {
		if asset.Token.Name == a.broker.QuoteToken().Name {
			continue
		}
		if _, ok := first[asset.Token.Name]; !ok {
			return fmt.Errorf("%w: wallet holds %s but the price matrix has no column for it",
				domain.ErrConfiguration, asset.Token.Name)
		}
	}
	return nil
}

// Run executes the whole backtest. Errors from any hook, trigger or market
// abort the run immediately.
func (a *Actuator) Run(ctx context.Context) (Result, error) {
	start := time.Now()
	a.pending = nil
	a.actions = nil
	a.statuses = nil

	if err := a.check(); err != nil {
		return Result{}, err
	}
	for _, m := range a.broker.Markets() {
		m.SetRecorder(a.record)
	}
	a.strategy.Bind(a)
	if err := a.strategy.Initialize(); err != nil {
		return Result{}, fmt.Errorf("initialize strategy: %w", err)
	}

	a.logger.Info("backtest run started",
		zap.Int("bars", a.prices.Len()),
		zap.Int("markets", len(a.broker.Markets())),
		zap.Time("from", a.prices.Timestamps[0]),
		zap.Time("to", a.prices.Timestamps[a.prices.Len()-1]))

	for i, ts := range a.prices.Timestamps {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		if err := a.runBar(i, ts); err != nil {
			return Result{}, fmt.Errorf("bar %d (%s): %w", i, ts.Format(time.RFC3339), err)
		}
	}

	if err := a.strategy.Finalize(); err != nil {
		return Result{}, fmt.Errorf("finalize strategy: %w", err)
	}

	res := Result{
		Actions:  a.actions,
		Statuses: a.statuses,
		Bars:     a.prices.Len(),
		Duration: time.Since(start),
	}
	a.logger.Info("backtest run finished",
		zap.Int("bars", res.Bars),
		zap.Int("actions", len(res.Actions)),
		zap.Duration("elapsed", res.Duration))
	return res, nil
}

func (a *Actuator) runBar(rowID int, ts time.Time) error {
	snap := Snapshot{Timestamp: ts, RowID: rowID, Prices: a.prices.Rows[rowID]}

	for _, m := range a.broker.Markets() {
		if err := m.SetStatus(ts, rowID, snap.Prices); err != nil {
			return err
		}
	}
	if err := a.strategy.BeforeBar(snap); err != nil {
		return fmt.Errorf("before bar: %w", err)
	}
	for _, t := range a.strategy.Triggers() {
		if !t.When(snap) {
			continue
		}
		if err := t.Do(snap); err != nil {
			return fmt.Errorf("trigger: %w", err)
		}
	}
	if err := a.strategy.OnBar(snap); err != nil {
		return fmt.Errorf("on bar: %w", err)
	}
	for _, m := range a.broker.Markets() {
		if err := m.Update(); err != nil {
			return err
		}
	}
	if err := a.strategy.AfterBar(snap); err != nil {
		return fmt.Errorf("after bar: %w", err)
	}

	status, err := a.broker.AccountStatus(snap.Prices, ts)
	if err != nil {
		return err
	}
	a.statuses = append(a.statuses, status)
	for _, o := range a.observers {
		o.OnStatus(status)
	}

	delivered := a.pending
	a.pending = nil
	for _, act := range delivered {
		a.actions = append(a.actions, act)
		a.strategy.Notify(act)
		for _, o := range a.observers {
			o.OnAction(act)
		}
	}
	return nil
}
