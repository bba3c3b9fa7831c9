package data

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"defi-backtest-lab/internal/domain"
)

// LoadPrices reads a token price matrix: a timestamp column plus one column
// per token symbol. Symbols are uppercased; rows must be minute-aligned and
// strictly increasing.
func (s *Source) LoadPrices(fileName string) (domain.PriceMatrix, error) {
	t, err := readTable(s.path(fileName))
	if err != nil {
		return domain.PriceMatrix{}, err
	}
	if err := t.require("timestamp"); err != nil {
		return domain.PriceMatrix{}, err
	}

	symbols := make(map[string]int, len(t.columns)-1)
	for name, idx := range t.columns {
		if name == "timestamp" {
			continue
		}
		symbols[strings.ToUpper(name)] = idx
	}

	matrix := domain.PriceMatrix{
		Timestamps: make([]time.Time, 0, len(t.rows)),
		Rows:       make([]domain.PriceRow, 0, len(t.rows)),
	}
	var prev time.Time
	for _, raw := range t.rows {
		ts, err := t.timestamp(raw, "timestamp")
		if err != nil {
			return domain.PriceMatrix{}, err
		}
		if !ts.Equal(ts.Truncate(time.Minute)) {
			return domain.PriceMatrix{}, fmt.Errorf("%w: %s has unaligned timestamp %s", domain.ErrDataFormat, t.path, ts)
		}
		if !prev.IsZero() && !ts.After(prev) {
			return domain.PriceMatrix{}, fmt.Errorf("%w: %s has non-increasing timestamp %s", domain.ErrDataFormat, t.path, ts)
		}
		prev = ts

		row := make(domain.PriceRow, len(symbols))
		for symbol, idx := range symbols {
			v, err := decimal.NewFromString(raw[idx])
			if err != nil {
				return domain.PriceMatrix{}, fmt.Errorf("%w: %s column %s: %v", domain.ErrDataFormat, t.path, symbol, err)
			}
			row[symbol] = v
		}
		matrix.Timestamps = append(matrix.Timestamps, ts)
		matrix.Rows = append(matrix.Rows, row)
	}
	s.logger.Info("loaded price matrix",
		zap.String("file", fileName),
		zap.Int("tokens", len(symbols)),
		zap.Int("rows", matrix.Len()))
	return matrix, nil
}
