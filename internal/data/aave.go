package data

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"defi-backtest-lab/internal/aave"
	"defi-backtest-lab/internal/domain"
)

var aaveColumns = []string{
	"timestamp", "liquidity_rate", "stable_borrow_rate", "variable_borrow_rate",
	"liquidity_index", "variable_borrow_index",
}

// LoadAave reads the per-reserve minute files covering [start, end). Gaps
// carry the whole previous row forward: indices never reset to zero.
func (s *Source) LoadAave(tokenAddress string, start, end time.Time) ([]aave.MinuteRow, error) {
	dayList, err := days(start, end)
	if err != nil {
		return nil, err
	}
	var out []aave.MinuteRow
	var last *aave.MinuteRow
	for _, day := range dayList {
		rows, err := s.loadAaveDay(tokenAddress, day, &last)
		if err != nil {
			return nil, err
		}
		out = append(out, rows...)
	}
	out = clipWindow(out, func(r aave.MinuteRow) time.Time { return r.Timestamp }, start, end)
	s.logger.Info("loaded aave data",
		zap.String("token", tokenAddress),
		zap.Int("days", len(dayList)),
		zap.Int("rows", len(out)))
	return out, nil
}

func (s *Source) loadAaveDay(tokenAddress string, day time.Time, last **aave.MinuteRow) ([]aave.MinuteRow, error) {
	t, err := readTable(s.path(s.AaveFileName(tokenAddress, day)))
	if err != nil {
		return nil, err
	}
	if err := t.require(aaveColumns...); err != nil {
		return nil, err
	}

	parsed := make([]*aave.MinuteRow, minutesPerDay)
	for _, raw := range t.rows {
		ts, err := t.timestamp(raw, "timestamp")
		if err != nil {
			return nil, err
		}
		slot, err := minuteOffset(ts, day, t.path)
		if err != nil {
			return nil, err
		}
		row := aave.MinuteRow{Timestamp: ts}
		for name, dst := range map[string]*decimal.Decimal{
			"liquidity_rate":        &row.LiquidityRate,
			"stable_borrow_rate":    &row.StableBorrowRate,
			"variable_borrow_rate":  &row.VariableBorrowRate,
			"liquidity_index":       &row.LiquidityIndex,
			"variable_borrow_index": &row.VariableBorrowIndex,
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

	out := make([]aave.MinuteRow, minutesPerDay)
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

var riskColumns = []string{
	"token", "liquidation_threshold", "ltv", "liquidation_bonus", "decimals",
	"stable_borrow_enabled", "reserve_factor",
}

// LoadRiskParameters reads the per-chain risk parameter file: one row per
// reserve token. Token symbols are uppercased; the returned token list
// carries the decimals column.
func (s *Source) LoadRiskParameters(fileName string) (aave.RiskParameterTable, []domain.TokenInfo, error) {
	t, err := readTable(s.path(fileName))
	if err != nil {
		return nil, nil, err
	}
	if err := t.require(riskColumns...); err != nil {
		return nil, nil, err
	}

	params := make(aave.RiskParameterTable, len(t.rows))
	tokens := make([]domain.TokenInfo, 0, len(t.rows))
	for _, raw := range t.rows {
		symbol := strings.ToUpper(t.cell(raw, "token"))
		var rp aave.RiskParameters
		for name, dst := range map[string]*decimal.Decimal{
			"liquidation_threshold": &rp.LiquidationThreshold,
			"ltv":                   &rp.LTV,
			"liquidation_bonus":     &rp.LiquidationBonus,
			"reserve_factor":        &rp.ReserveFactor,
		} {
			v, err := decimal.NewFromString(t.cell(raw, name))
			if err != nil {
				return nil, nil, fmt.Errorf("%w: %s column %s: %v", domain.ErrDataFormat, t.path, name, err)
			}
			*dst = v
		}
		rp.StableBorrowEnabled, err = strconv.ParseBool(t.cell(raw, "stable_borrow_enabled"))
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %s column stable_borrow_enabled: %v", domain.ErrDataFormat, t.path, err)
		}
		dec, err := strconv.Atoi(t.cell(raw, "decimals"))
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %s column decimals: %v", domain.ErrDataFormat, t.path, err)
		}
		params[symbol] = rp
		tokens = append(tokens, domain.NewTokenInfo(symbol, int32(dec)))
	}
	return params, tokens, nil
}
