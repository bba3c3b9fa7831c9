package storage

import "context"

// BacktestRunStore provides access to backtest_runs storage.
type BacktestRunStore interface {
	// Insert adds a new run summary. Returns ErrDuplicateKey if run_id exists.
	Insert(ctx context.Context, r *BacktestRun) error

	// GetByID retrieves a run by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, runID string) (*BacktestRun, error)

	// GetByName retrieves all runs sharing a configured name, ordered by created_at ASC.
	GetByName(ctx context.Context, name string) ([]*BacktestRun, error)

	// GetAll retrieves all runs, ordered by created_at ASC.
	GetAll(ctx context.Context) ([]*BacktestRun, error)
}

// ActionStore provides access to backtest_actions storage.
type ActionStore interface {
	// Insert adds a new action. Returns ErrDuplicateKey if (run_id, seq) exists.
	Insert(ctx context.Context, a *ActionRecord) error

	// InsertBulk adds multiple actions atomically. Fails entire batch on any duplicate.
	InsertBulk(ctx context.Context, actions []*ActionRecord) error

	// GetByRunID retrieves all actions for a run, ordered by seq ASC.
	GetByRunID(ctx context.Context, runID string) ([]*ActionRecord, error)

	// GetByTimeRange retrieves actions for a run within [start, end] (inclusive).
	GetByTimeRange(ctx context.Context, runID string, start, end int64) ([]*ActionRecord, error)
}

// AccountStatusStore provides access to account_status storage.
type AccountStatusStore interface {
	// InsertBulk adds multiple points. Fails entire batch on duplicate (run_id, timestamp_ms).
	InsertBulk(ctx context.Context, points []*AccountStatusRecord) error

	// GetByRunID retrieves all points for a run, ordered by timestamp ASC.
	GetByRunID(ctx context.Context, runID string) ([]*AccountStatusRecord, error)

	// GetByTimeRange retrieves points for a run within [start, end] (inclusive).
	GetByTimeRange(ctx context.Context, runID string, start, end int64) ([]*AccountStatusRecord, error)
}
