package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"defi-backtest-lab/internal/storage"
)

// BacktestRunStore implements storage.BacktestRunStore using PostgreSQL.
type BacktestRunStore struct {
	pool *Pool
}

// NewBacktestRunStore creates a new BacktestRunStore.
func NewBacktestRunStore(pool *Pool) *BacktestRunStore {
	return &BacktestRunStore{pool: pool}
}

// Compile-time interface check.
var _ storage.BacktestRunStore = (*BacktestRunStore)(nil)

const runColumns = `
	run_id, name, strategy,
	start_time_ms, end_time_ms, bars,
	initial_net_value, final_net_value, total_return,
	annualized_return, max_drawdown, action_count,
	created_at_ms
`

// Insert adds a new run summary. Returns ErrDuplicateKey if run_id exists.
func (s *BacktestRunStore) Insert(ctx context.Context, r *storage.BacktestRun) error {
	query := `
		INSERT INTO backtest_runs (` + runColumns + `) VALUES (
			$1, $2, $3,
			$4, $5, $6,
			$7, $8, $9,
			$10, $11, $12,
			$13
		)
	`

	_, err := s.pool.Exec(ctx, query,
		r.RunID, r.Name, r.Strategy,
		r.StartTimeMs, r.EndTimeMs, r.Bars,
		r.InitialNetValue, r.FinalNetValue, r.TotalReturn,
		r.AnnualizedReturn, r.MaxDrawdown, r.ActionCount,
		r.CreatedAtMs,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert backtest run: %w", err)
	}
	return nil
}

// GetByID retrieves a run by its ID. Returns ErrNotFound if not exists.
func (s *BacktestRunStore) GetByID(ctx context.Context, runID string) (*storage.BacktestRun, error) {
	query := `SELECT ` + runColumns + ` FROM backtest_runs WHERE run_id = $1`

	row := s.pool.QueryRow(ctx, query, runID)
	r, err := scanRun(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get backtest run by id: %w", err)
	}
	return r, nil
}

// GetByName retrieves all runs sharing a configured name, ordered by created_at ASC.
func (s *BacktestRunStore) GetByName(ctx context.Context, name string) ([]*storage.BacktestRun, error) {
	query := `
		SELECT ` + runColumns + `
		FROM backtest_runs
		WHERE name = $1
		ORDER BY created_at_ms ASC, run_id ASC
	`

	rows, err := s.pool.Query(ctx, query, name)
	if err != nil {
		return nil, fmt.Errorf("get backtest runs by name: %w", err)
	}
	defer rows.Close()

	return scanRuns(rows)
}

// GetAll retrieves all runs, ordered by created_at ASC.
func (s *BacktestRunStore) GetAll(ctx context.Context) ([]*storage.BacktestRun, error) {
	query := `
		SELECT ` + runColumns + `
		FROM backtest_runs
		ORDER BY created_at_ms ASC, run_id ASC
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("get all backtest runs: %w", err)
	}
	defer rows.Close()

	return scanRuns(rows)
}

// scanRun scans a single row into a BacktestRun.
func scanRun(row pgx.Row) (*storage.BacktestRun, error) {
	var r storage.BacktestRun

	err := row.Scan(
		&r.RunID, &r.Name, &r.Strategy,
		&r.StartTimeMs, &r.EndTimeMs, &r.Bars,
		&r.InitialNetValue, &r.FinalNetValue, &r.TotalReturn,
		&r.AnnualizedReturn, &r.MaxDrawdown, &r.ActionCount,
		&r.CreatedAtMs,
	)
	if err != nil {
		return nil, err
	}

	return &r, nil
}

// scanRuns scans multiple rows into a slice of BacktestRun.
func scanRuns(rows pgx.Rows) ([]*storage.BacktestRun, error) {
	var runs []*storage.BacktestRun

	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan backtest run row: %w", err)
		}
		runs = append(runs, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate backtest run rows: %w", err)
	}

	return runs, nil
}
