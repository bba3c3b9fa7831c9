package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"defi-backtest-lab/internal/storage"
)

// ActionStore implements storage.ActionStore using PostgreSQL.
type ActionStore struct {
	pool *Pool
}

// NewActionStore creates a new ActionStore.
func NewActionStore(pool *Pool) *ActionStore {
	return &ActionStore{pool: pool}
}

// Compile-time interface check.
var _ storage.ActionStore = (*ActionStore)(nil)

const actionColumns = `run_id, seq, timestamp_ms, market, action_type, detail, comment`

const insertActionQuery = `
	INSERT INTO backtest_actions (run_id, seq, timestamp_ms, market, action_type, detail, comment)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
`

// Insert adds a new action. Returns ErrDuplicateKey if (run_id, seq) exists.
func (s *ActionStore) Insert(ctx context.Context, a *storage.ActionRecord) error {
	_, err := s.pool.Exec(ctx, insertActionQuery,
		a.RunID, a.Seq, a.TimestampMs, a.Market, a.ActionType, a.Detail, a.Comment,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert action: %w", err)
	}
	return nil
}

// InsertBulk adds multiple actions atomically. Fails entire batch on any duplicate.
func (s *ActionStore) InsertBulk(ctx context.Context, actions []*storage.ActionRecord) error {
	if len(actions) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, a := range actions {
		_, err := tx.Exec(ctx, insertActionQuery,
			a.RunID, a.Seq, a.TimestampMs, a.Market, a.ActionType, a.Detail, a.Comment,
		)
		if err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert action in bulk: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// GetByRunID retrieves all actions for a run, ordered by seq ASC.
func (s *ActionStore) GetByRunID(ctx context.Context, runID string) ([]*storage.ActionRecord, error) {
	query := `
		SELECT ` + actionColumns + `
		FROM backtest_actions
		WHERE run_id = $1
		ORDER BY seq ASC
	`

	rows, err := s.pool.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("get actions by run id: %w", err)
	}
	defer rows.Close()

	return scanActions(rows)
}

// GetByTimeRange retrieves actions for a run within [start, end] (inclusive).
func (s *ActionStore) GetByTimeRange(ctx context.Context, runID string, start, end int64) ([]*storage.ActionRecord, error) {
	query := `
		SELECT ` + actionColumns + `
		FROM backtest_actions
		WHERE run_id = $1 AND timestamp_ms >= $2 AND timestamp_ms <= $3
		ORDER BY seq ASC
	`

	rows, err := s.pool.Query(ctx, query, runID, start, end)
	if err != nil {
		return nil, fmt.Errorf("get actions by time range: %w", err)
	}
	defer rows.Close()

	return scanActions(rows)
}

// scanActions scans multiple rows into a slice of ActionRecord.
func scanActions(rows pgx.Rows) ([]*storage.ActionRecord, error) {
	var actions []*storage.ActionRecord

	for rows.Next() {
		var a storage.ActionRecord

		err := rows.Scan(
			&a.RunID, &a.Seq, &a.TimestampMs, &a.Market, &a.ActionType, &a.Detail, &a.Comment,
		)
		if err != nil {
			return nil, fmt.Errorf("scan action row: %w", err)
		}

		actions = append(actions, &a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate action rows: %w", err)
	}

	return actions, nil
}
