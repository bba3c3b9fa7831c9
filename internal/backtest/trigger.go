package backtest

import (
	"time"

	"defi-backtest-lab/internal/domain"
)

// DoFunc runs a trigger's action for the bar it fired on.
type DoFunc func(Snapshot) error

// Trigger pairs a firing predicate with an action. Triggers registered on a
// strategy are evaluated in registration order on every bar, before OnBar.
type Trigger interface {
	When(Snapshot) bool
	Do(Snapshot) error
}

type atTimeTrigger struct {
	at time.Time
	do DoFunc
}

// AtTime fires once, on the bar whose timestamp equals t truncated to the
// minute.
func AtTime(t time.Time, do DoFunc) Trigger {
	return &atTimeTrigger{at: t.Truncate(time.Minute), do: do}
}

func (t *atTimeTrigger) When(s Snapshot) bool { return s.Timestamp.Equal(t.at) }
func (t *atTimeTrigger) Do(s Snapshot) error  { return t.do(s) }

type atTimesTrigger struct {
	at map[int64]struct{}
	do DoFunc
}

// AtTimes fires on every bar whose timestamp appears in ts.
func AtTimes(ts []time.Time, do DoFunc) Trigger {
	at := make(map[int64]struct{}, len(ts))
	for _, t := range ts {
		at[t.Truncate(time.Minute).Unix()] = struct{}{}
	}
	return &atTimesTrigger{at: at, do: do}
}

func (t *atTimesTrigger) When(s Snapshot) bool {
	_, ok := t.at[s.Timestamp.Unix()]
	return ok
}
func (t *atTimesTrigger) Do(s Snapshot) error { return t.do(s) }

// Range is a half-open time interval [Start, End).
type Range struct {
	Start time.Time
	End   time.Time
}

func (r Range) contains(t time.Time) bool {
	return !t.Before(r.Start) && t.Before(r.End)
}

type timeRangesTrigger struct {
	ranges []Range
	do     DoFunc
}

// TimeRange fires on every bar inside [start, end).
func TimeRange(start, end time.Time, do DoFunc) Trigger {
	return TimeRanges([]Range{{Start: start, End: end}}, do)
}

// TimeRanges fires on every bar inside any of the given intervals.
func TimeRanges(ranges []Range, do DoFunc) Trigger {
	return &timeRangesTrigger{ranges: ranges, do: do}
}

func (t *timeRangesTrigger) When(s Snapshot) bool {
	for _, r := range t.ranges {
		if r.contains(s.Timestamp) {
			return true
		}
	}
	return false
}
func (t *timeRangesTrigger) Do(s Snapshot) error { return t.do(s) }

type periodTrigger struct {
	every     []time.Duration
	immediate bool
	pending   time.Duration
	do        DoFunc

	start    time.Time
	hasStart bool
}

// Period fires once every `every`, counting from the first bar plus
// `pending`. With immediate set it additionally fires on the very first bar.
func Period(every time.Duration, immediate bool, pending time.Duration, do DoFunc) Trigger {
	return Periods([]time.Duration{every}, immediate, pending, do)
}

// Periods is the multi-period variant: it fires when any of the periods
// elapses.
func Periods(every []time.Duration, immediate bool, pending time.Duration, do DoFunc) Trigger {
	return &periodTrigger{every: every, immediate: immediate, pending: pending, do: do}
}

func (t *periodTrigger) When(s Snapshot) bool {
	if !t.hasStart {
		t.start = s.Timestamp.Add(t.pending)
		t.hasStart = true
		if t.immediate {
			return true
		}
	}
	since := s.Timestamp.Sub(t.start)
	if since < 0 {
		return false
	}
	for _, every := range t.every {
		if every > 0 && since%every == 0 {
			return true
		}
	}
	return false
}
func (t *periodTrigger) Do(s Snapshot) error { return t.do(s) }

type predicateTrigger struct {
	pred func(Snapshot) bool
	do   DoFunc
}

// Price fires on every bar where pred accepts the price row.
func Price(pred func(domain.PriceRow) bool, do DoFunc) Trigger {
	return &predicateTrigger{
		pred: func(s Snapshot) bool { return pred(s.Prices) },
		do:   do,
	}
}

// Customized fires on every bar where pred accepts the snapshot.
func Customized(pred func(Snapshot) bool, do DoFunc) Trigger {
	return &predicateTrigger{pred: pred, do: do}
}

func (t *predicateTrigger) When(s Snapshot) bool { return t.pred(s) }
func (t *predicateTrigger) Do(s Snapshot) error  { return t.do(s) }
