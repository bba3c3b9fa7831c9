package backtest

import "defi-backtest-lab/internal/domain"

// Strategy receives the simulation callbacks. Embed BaseStrategy to get
// no-op defaults for the hooks you do not need and the trigger registry.
type Strategy interface {
	// Bind hands the strategy its actuator before Initialize. The actuator
	// exposes the broker, recorded statuses and CommentLastAction.
	Bind(a *Actuator)

	// Triggers returns the registered triggers in firing order.
	Triggers() []Trigger

	Initialize() error
	BeforeBar(s Snapshot) error
	OnBar(s Snapshot) error
	AfterBar(s Snapshot) error
	Finalize() error

	// Notify delivers every action recorded during the bar, after AfterBar.
	Notify(a domain.Action)
}

// BaseStrategy provides the trigger registry and no-op hook defaults.
type BaseStrategy struct {
	actuator *Actuator
	triggers []Trigger
}

var _ Strategy = (*BaseStrategy)(nil)

func (s *BaseStrategy) Bind(a *Actuator) { s.actuator = a }

// Actuator returns the running actuator, nil before Bind.
func (s *BaseStrategy) Actuator() *Actuator { return s.actuator }

// AddTrigger appends triggers; firing order is registration order.
func (s *BaseStrategy) AddTrigger(ts ...Trigger) { s.triggers = append(s.triggers, ts...) }

func (s *BaseStrategy) Triggers() []Trigger { return s.triggers }

func (s *BaseStrategy) Initialize() error { return nil }

func (s *BaseStrategy) BeforeBar(Snapshot) error { return nil }

func (s *BaseStrategy) OnBar(Snapshot) error { return nil }

func (s *BaseStrategy) AfterBar(Snapshot) error { return nil }

func (s *BaseStrategy) Finalize() error { return nil }

func (s *BaseStrategy) Notify(domain.Action) {}
