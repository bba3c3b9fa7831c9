package migrations

import (
	"context"
	"fmt"
	"io/fs"
	"strings"

	"defi-backtest-lab/internal/storage/postgres"
)

// RunPostgresMigrations creates the backtest_runs and backtest_actions
// tables. Every migration file must be idempotent (CREATE IF NOT EXISTS);
// there is no version ledger.
func RunPostgresMigrations(ctx context.Context, pool *postgres.Pool) error {
	files, err := sqlFiles(postgresFS, "postgres")
	if err != nil {
		return err
	}
	for _, file := range files {
		data, err := fs.ReadFile(postgresFS, "postgres/"+file)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", file, err)
		}
		if strings.TrimSpace(string(data)) == "" {
			continue
		}
		if _, err := pool.Exec(ctx, string(data)); err != nil {
			return fmt.Errorf("apply migration %s: %w", file, err)
		}
	}
	return nil
}
