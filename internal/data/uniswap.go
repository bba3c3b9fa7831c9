package data

import (
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"defi-backtest-lab/internal/domain"
	"defi-backtest-lab/internal/uniswap"
)

var uniswapColumns = []string{
	"timestamp", "netAmount0", "netAmount1", "closeTick", "openTick",
	"lowestTick", "highestTick", "inAmount0", "inAmount1", "currentLiquidity",
}

// LoadUniswap reads the pool minute files covering [start, end) and returns
// one row per minute of the window. Gaps get the previous close tick on all
// tick columns and zero amounts and liquidity.
func (s *Source) LoadUniswap(pool string, start, end time.Time) ([]uniswap.MinuteRow, error) {
	dayList, err := days(start, end)
	if err != nil {
		return nil, err
	}
	var out []uniswap.MinuteRow
	var last *uniswap.MinuteRow
	for _, day := range dayList {
		rows, err := s.loadUniswapDay(pool, day, &last)
		if err != nil {
			return nil, err
		}
		out = append(out, rows...)
	}
	out = clipWindow(out, func(r uniswap.MinuteRow) time.Time { return r.Timestamp }, start, end)
	s.logger.Info("loaded uniswap data",
		zap.String("pool", pool),
		zap.Int("days", len(dayList)),
		zap.Int("rows", len(out)))
	return out, nil
}

func (s *Source) loadUniswapDay(pool string, day time.Time, last **uniswap.MinuteRow) ([]uniswap.MinuteRow, error) {
	t, err := readTable(s.path(s.UniswapFileName(pool, day)))
	if err != nil {
		return nil, err
	}
	if err := t.require(uniswapColumns...); err != nil {
		return nil, err
	}

	parsed := make([]*uniswap.MinuteRow, minutesPerDay)
	for _, raw := range t.rows {
		ts, err := t.timestamp(raw, "timestamp")
		if err != nil {
			return nil, err
		}
		slot, err := minuteOffset(ts, day, t.path)
		if err != nil {
			return nil, err
		}
		row := uniswap.MinuteRow{Timestamp: ts}
		for name, dst := range map[string]*int{
			"openTick":    &row.OpenTick,
			"closeTick":   &row.CloseTick,
			"lowestTick":  &row.LowestTick,
			"highestTick": &row.HighestTick,
		} {
			v, err := strconv.Atoi(t.cell(raw, name))
			if err != nil {
				return nil, fmt.Errorf("%w: %s column %s: %v", domain.ErrDataFormat, t.path, name, err)
			}
			*dst = v
		}
		for name, dst := range map[string]*decimal.Decimal{
			"inAmount0":        &row.InAmount0,
			"inAmount1":        &row.InAmount1,
			"netAmount0":       &row.NetAmount0,
			"netAmount1":       &row.NetAmount1,
			"currentLiquidity": &row.CurrentLiquidity,
		} {
			v, err := decimal.NewFromString(t.cell(raw, name))
			if err != nil {
				return nil, fmt.Errorf("%w: %s column %s: %v", domain.ErrDataFormat, t.path, name, err)
			}
			*dst = v
		}
		parsed[slot] = &row
	}

	// Leading gaps borrow the first row of the day when no previous day
	// exists.
	if *last == nil {
		first := firstUniswapRow(parsed)
		if first == nil {
			return nil, fmt.Errorf("%w: %s has no rows", domain.ErrDataFormat, t.path)
		}
		*last = first
	}

	out := make([]uniswap.MinuteRow, minutesPerDay)
	for i := 0; i < minutesPerDay; i++ {
		ts := day.Add(time.Duration(i) * time.Minute)
		if parsed[i] != nil {
			out[i] = *parsed[i]
			*last = parsed[i]
			continue
		}
		tick := (*last).CloseTick
		out[i] = uniswap.MinuteRow{
			Timestamp:   ts,
			OpenTick:    tick,
			CloseTick:   tick,
			LowestTick:  tick,
			HighestTick: tick,
		}
	}
	return out, nil
}

func firstUniswapRow(rows []*uniswap.MinuteRow) *uniswap.MinuteRow {
	for _, r := range rows {
		if r != nil {
			return r
		}
	}
	return nil
}
