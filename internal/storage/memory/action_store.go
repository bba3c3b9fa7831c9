package memory

import (
	"context"
	"sort"
	"sync"

	"defi-backtest-lab/internal/storage"
)

type actionKey struct {
	runID string
	seq   int
}

// ActionStore is an in-memory implementation of storage.ActionStore.
type ActionStore struct {
	mu   sync.RWMutex
	data map[actionKey]*storage.ActionRecord
}

// NewActionStore creates a new in-memory action store.
func NewActionStore() *ActionStore {
	return &ActionStore{
		data: make(map[actionKey]*storage.ActionRecord),
	}
}

var _ storage.ActionStore = (*ActionStore)(nil)

// Insert adds a new action. Returns ErrDuplicateKey if (run_id, seq) exists.
func (s *ActionStore) Insert(_ context.Context, a *storage.ActionRecord) error {
	if a == nil || a.RunID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	k := actionKey{a.RunID, a.Seq}
	if _, exists := s.data[k]; exists {
		return storage.ErrDuplicateKey
	}

	copy := *a
	s.data[k] = &copy
	return nil
}

// InsertBulk adds multiple actions atomically. Fails entire batch on any duplicate.
func (s *ActionStore) InsertBulk(_ context.Context, actions []*storage.ActionRecord) error {
	if len(actions) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// First pass: check for duplicates (existing + intra-batch)
	batchKeys := make(map[actionKey]struct{}, len(actions))
	for _, a := range actions {
		if a == nil || a.RunID == "" {
			return storage.ErrInvalidInput
		}

		k := actionKey{a.RunID, a.Seq}
		if _, exists := s.data[k]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[k]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[k] = struct{}{}
	}

	// Second pass: insert all
	for _, a := range actions {
		copy := *a
		s.data[actionKey{a.RunID, a.Seq}] = &copy
	}

	return nil
}

// GetByRunID retrieves all actions for a run, ordered by seq ASC.
func (s *ActionStore) GetByRunID(_ context.Context, runID string) ([]*storage.ActionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*storage.ActionRecord
	for _, a := range s.data {
		if a.RunID == runID {
			copy := *a
			result = append(result, &copy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Seq < result[j].Seq
	})

	return result, nil
}

// GetByTimeRange retrieves actions for a run within [start, end] (inclusive).
func (s *ActionStore) GetByTimeRange(_ context.Context, runID string, start, end int64) ([]*storage.ActionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*storage.ActionRecord
	for _, a := range s.data {
		if a.RunID == runID && a.TimestampMs >= start && a.TimestampMs <= end {
			copy := *a
			result = append(result, &copy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Seq < result[j].Seq
	})

	return result, nil
}
