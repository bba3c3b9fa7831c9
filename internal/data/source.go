// Package data loads the per-day minute CSV files the markets consume. Each
// loader concatenates a date range into one row slice, filling missing
// minutes: tick and index columns carry the last seen value forward, amount
// columns become zero.
package data

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"defi-backtest-lab/internal/domain"
)

const minutesPerDay = 24 * 60

// Source reads market data files for one chain from a directory.
type Source struct {
	dir    string
	chain  string
	logger *zap.Logger
}

// NewSource creates a Source rooted at dir for the given chain slug.
func NewSource(dir, chain string, logger *zap.Logger) *Source {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Source{dir: dir, chain: chain, logger: logger.With(zap.String("chain", chain))}
}

// UniswapFileName returns the day file for a pool, e.g.
// "ethereum-0xpool-2023-08-15.minute.csv".
func (s *Source) UniswapFileName(pool string, day time.Time) string {
	return fmt.Sprintf("%s-%s-%s.minute.csv", s.chain, pool, day.UTC().Format("2006-01-02"))
}

// AaveFileName returns the day file for one reserve token.
func (s *Source) AaveFileName(tokenAddress string, day time.Time) string {
	return fmt.Sprintf("%s-aave_v3-%s-%s.minute.csv", s.chain, day.UTC().Format("2006-01-02"), tokenAddress)
}

// SqueethFileName returns the controller day file.
func (s *Source) SqueethFileName(day time.Time) string {
	return fmt.Sprintf("%s-squeeth-controller-%s.minute.csv", s.chain, day.UTC().Format("2006-01-02"))
}

// days expands the half-open window [start, end) into UTC day starts. A
// midnight-aligned end does not pull in the end day's file.
func days(start, end time.Time) ([]time.Time, error) {
	if !end.After(start) {
		return nil, fmt.Errorf("%w: window ends (%s) before it starts (%s)",
			domain.ErrConfiguration, end.Format(time.RFC3339), start.Format(time.RFC3339))
	}
	first := start.UTC().Truncate(minutesPerDay * time.Minute)
	last := end.UTC().Add(-time.Nanosecond).Truncate(minutesPerDay * time.Minute)
	var out []time.Time
	for d := first; !d.After(last); d = d.Add(minutesPerDay * time.Minute) {
		out = append(out, d)
	}
	return out, nil
}

// clipWindow trims concatenated full-day rows to [start, end) so loaders
// return exactly the minutes the price window covers.
func clipWindow[R any](rows []R, at func(R) time.Time, start, end time.Time) []R {
	lo := 0
	for lo < len(rows) && at(rows[lo]).Before(start) {
		lo++
	}
	hi := lo
	for hi < len(rows) && at(rows[hi]).Before(end) {
		hi++
	}
	return rows[lo:hi]
}

// table is a parsed CSV file with column lookup by header name.
type table struct {
	path    string
	columns map[string]int
	rows    [][]string
}

func readTable(path string) (*table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrDataFormat, err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", domain.ErrDataFormat, path, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: %s is empty", domain.ErrDataFormat, path)
	}
	columns := make(map[string]int, len(records[0]))
	for i, name := range records[0] {
		columns[name] = i
	}
	return &table{path: path, columns: columns, rows: records[1:]}, nil
}

// require verifies the header carries every named column.
func (t *table) require(names ...string) error {
	for _, n := range names {
		if _, ok := t.columns[n]; !ok {
			return fmt.Errorf("%w: %s lacks column %q", domain.ErrDataFormat, t.path, n)
		}
	}
	return nil
}

func (t *table) cell(row []string, name string) string {
	return row[t.columns[name]]
}

func (t *table) timestamp(row []string, name string) (time.Time, error) {
	raw := t.cell(row, name)
	for _, layout := range []string{"2006-01-02 15:04:05", time.RFC3339, "2006-01-02 15:04"} {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %s has unparseable timestamp %q", domain.ErrDataFormat, t.path, raw)
}

// minuteOffset maps a timestamp to its minute slot within day, rejecting
// out-of-day and unaligned values.
func minuteOffset(ts, day time.Time, path string) (int, error) {
	d := ts.Sub(day)
	if d < 0 || d >= minutesPerDay*time.Minute || d%time.Minute != 0 {
		return 0, fmt.Errorf("%w: %s has timestamp %s outside day %s",
			domain.ErrDataFormat, path, ts, day.Format("2006-01-02"))
	}
	return int(d / time.Minute), nil
}

func (s *Source) path(name string) string { return filepath.Join(s.dir, name) }
