package data

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"defi-backtest-lab/internal/domain"
	"defi-backtest-lab/internal/squeeth"
)

var squeethColumns = []string{"timestamp", "norm_factor", "eth", "osqth"}

// LoadSqueeth reads the controller minute files covering [start, end). Gaps
// carry the previous row forward: the norm factor and prices are level
// series, not flows.
func (s *Source) LoadSqueeth(start, end time.Time) ([]squeeth.MinuteRow, error) {
	dayList, err := days(start, end)
	if err != nil {
		return nil, err
	}
	var out []squeeth.MinuteRow
	var last *squeeth.MinuteRow
	for _, day := range dayList {
		rows, err := s.loadSqueethDay(day, &last)
		if err != nil {
			return nil, err
		}
		out = append(out, rows...)
	}
	out = clipWindow(out, func(r squeeth.MinuteRow) time.Time { return r.Timestamp }, start, end)
	s.logger.Info("loaded squeeth data", zap.Int("days", len(dayList)), zap.Int("rows", len(out)))
	return out, nil
}

func (s *Source) loadSqueethDay(day time.Time, last **squeeth.MinuteRow) ([]squeeth.MinuteRow, error) {
	t, err := readTable(s.path(s.SqueethFileName(day)))
	if err != nil {
		return nil, err
	}
	if err := t.require(squeethColumns...); err != nil {
		return nil, err
	}

	parsed := make([]*squeeth.MinuteRow, minutesPerDay)
	for _, raw := range t.rows {
		ts, err := t.timestamp(raw, "timestamp")
		if err != nil {
			return nil, err
		}
		slot, err := minuteOffset(ts, day, t.path)
		if err != nil {
			return nil, err
		}
		row := squeeth.MinuteRow{Timestamp: ts}
		for name, dst := range map[string]*decimal.Decimal{
			"norm_factor": &row.NormFactor,
			"eth":         &row.EthPrice,
			"osqth":       &row.OsqthPrice,
		} {
			v, err := decimal.NewFromString(t.cell(raw, name))
			if err != nil {
				return nil, fmt.Errorf("%w: %s column %s: %v", domain.ErrDataFormat, t.path, name, err)
			}
			*dst = v
		}
		parsed[slot] = &row
	}

	if *last == nil {
		for _, r := range parsed {
			if r != nil {
				*last = r
				break
			}
		}
		if *last == nil {
			return nil, fmt.Errorf("%w: %s has no rows", domain.ErrDataFormat, t.path)
		}
	}

	out := make([]squeeth.MinuteRow, minutesPerDay)
	for i := 0; i < minutesPerDay; i++ {
		ts := day.Add(time.Duration(i) * time.Minute)
		if parsed[i] != nil {
			out[i] = *parsed[i]
			*last = parsed[i]
			continue
		}
		filled := **last
		filled.Timestamp = ts
		out[i] = filled
	}
	return out, nil
}
