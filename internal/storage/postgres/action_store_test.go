package postgres_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"defi-backtest-lab/internal/storage"
	pgstore "defi-backtest-lab/internal/storage/postgres"
)

func sampleAction(runID string, seq int, tsMs int64) *storage.ActionRecord {
	return &storage.ActionRecord{
		RunID:       runID,
		Seq:         seq,
		TimestampMs: tsMs,
		Market:      "uni",
		ActionType:  "uni_lp_add_liquidity",
		Detail:      `{"action_type":"uni_lp_add_liquidity","market":{"name":"uni"}}`,
		Comment:     "rebalance",
	}
}

func TestActionStore_InsertAndGetByRunID(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := pgstore.NewActionStore(pool)
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, sampleAction("run-001", 0, 1000)))

	got, err := store.GetByRunID(ctx, "run-001")
	require.NoError(t, err)
	require.Len(t, got, 1)

	assert.Equal(t, "uni_lp_add_liquidity", got[0].ActionType)
	assert.Equal(t, "rebalance", got[0].Comment)
	assert.JSONEq(t, `{"action_type":"uni_lp_add_liquidity","market":{"name":"uni"}}`, got[0].Detail)
}

func TestActionStore_InsertDuplicate(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := pgstore.NewActionStore(pool)
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, sampleAction("run-001", 0, 1000)))

	err := store.Insert(ctx, sampleAction("run-001", 0, 2000))
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)
}

func TestActionStore_InsertBulkRollsBackOnDuplicate(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := pgstore.NewActionStore(pool)
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, sampleAction("run-001", 1, 2000)))

	err := store.InsertBulk(ctx, []*storage.ActionRecord{
		sampleAction("run-001", 0, 1000),
		sampleAction("run-001", 1, 2000),
	})
	require.ErrorIs(t, err, storage.ErrDuplicateKey)

	got, err := store.GetByRunID(ctx, "run-001")
	require.NoError(t, err)
	assert.Len(t, got, 1, "failed batch must not apply partially")
}

func TestActionStore_GetByTimeRange(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := pgstore.NewActionStore(pool)
	ctx := context.Background()

	require.NoError(t, store.InsertBulk(ctx, []*storage.ActionRecord{
		sampleAction("run-001", 0, 1000),
		sampleAction("run-001", 1, 2000),
		sampleAction("run-001", 2, 3000),
		sampleAction("run-002", 0, 2000),
	}))

	got, err := store.GetByTimeRange(ctx, "run-001", 1000, 2000)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 0, got[0].Seq)
	assert.Equal(t, 1, got[1].Seq)
}
