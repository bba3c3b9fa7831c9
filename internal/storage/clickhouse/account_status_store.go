// Package clickhouse persists the per-bar account status series. The
// series is wide and append-only, which suits MergeTree far better than
// a row store.
package clickhouse

import (
	"context"
	"fmt"

	"defi-backtest-lab/internal/storage"
)

// AccountStatusStore implements storage.AccountStatusStore using ClickHouse.
type AccountStatusStore struct {
	conn *Conn
}

// NewAccountStatusStore creates a new AccountStatusStore.
func NewAccountStatusStore(conn *Conn) *AccountStatusStore {
	return &AccountStatusStore{conn: conn}
}

// Compile-time interface check.
var _ storage.AccountStatusStore = (*AccountStatusStore)(nil)

// InsertBulk adds multiple points. Fails entire batch on duplicate (run_id, timestamp_ms).
func (s *AccountStatusStore) InsertBulk(ctx context.Context, points []*storage.AccountStatusRecord) error {
	if len(points) == 0 {
		return nil
	}

	// Check for intra-batch duplicates
	type key struct {
		runID       string
		timestampMs int64
	}
	seen := make(map[key]struct{})
	for _, p := range points {
		if p == nil || p.RunID == "" {
			return storage.ErrInvalidInput
		}
		k := key{p.RunID, p.TimestampMs}
		if _, exists := seen[k]; exists {
			return storage.ErrDuplicateKey
		}
		seen[k] = struct{}{}
	}

	// MergeTree does not enforce uniqueness, so check against existing rows.
	// One run writes its whole series at once, so checking the range bounds
	// is enough in practice; check per-point to stay correct for partial
	// re-inserts.
	for _, p := range points {
		exists, err := s.exists(ctx, p.RunID, p.TimestampMs)
		if err != nil {
			return fmt.Errorf("check exists: %w", err)
		}
		if exists {
			return storage.ErrDuplicateKey
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO account_status (run_id, timestamp_ms, net_value, fields)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, p := range points {
		fields := p.Fields
		if fields == nil {
			fields = map[string]float64{}
		}
		if err := batch.Append(p.RunID, uint64(p.TimestampMs), p.NetValue, fields); err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetByRunID retrieves all points for a run, ordered by timestamp ASC.
func (s *AccountStatusStore) GetByRunID(ctx context.Context, runID string) ([]*storage.AccountStatusRecord, error) {
	query := `
		SELECT run_id, timestamp_ms, net_value, fields
		FROM account_status
		WHERE run_id = ?
		ORDER BY timestamp_ms ASC
	`

	rows, err := s.conn.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("query by run id: %w", err)
	}
	defer rows.Close()

	return scanAccountStatuses(rows)
}

// GetByTimeRange retrieves points for a run within [start, end] (inclusive).
func (s *AccountStatusStore) GetByTimeRange(ctx context.Context, runID string, start, end int64) ([]*storage.AccountStatusRecord, error) {
	query := `
		SELECT run_id, timestamp_ms, net_value, fields
		FROM account_status
		WHERE run_id = ? AND timestamp_ms >= ? AND timestamp_ms <= ?
		ORDER BY timestamp_ms ASC
	`

	rows, err := s.conn.Query(ctx, query, runID, uint64(start), uint64(end))
	if err != nil {
		return nil, fmt.Errorf("query by time range: %w", err)
	}
	defer rows.Close()

	return scanAccountStatuses(rows)
}

// exists checks if a point with the given key exists.
func (s *AccountStatusStore) exists(ctx context.Context, runID string, timestampMs int64) (bool, error) {
	query := `
		SELECT count(*) FROM account_status
		WHERE run_id = ? AND timestamp_ms = ?
	`

	var count uint64
	err := s.conn.QueryRow(ctx, query, runID, uint64(timestampMs)).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// chRows is the subset of driver.Rows the scanners need.
type chRows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

// scanAccountStatuses scans multiple rows.
func scanAccountStatuses(rows chRows) ([]*storage.AccountStatusRecord, error) {
	var points []*storage.AccountStatusRecord

	for rows.Next() {
		var p storage.AccountStatusRecord
		var timestampMs uint64
		var fields map[string]float64

		if err := rows.Scan(&p.RunID, &timestampMs, &p.NetValue, &fields); err != nil {
			return nil, fmt.Errorf("scan account status row: %w", err)
		}

		p.TimestampMs = int64(timestampMs)
		p.Fields = fields
		points = append(points, &p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate account status rows: %w", err)
	}

	return points, nil
}
