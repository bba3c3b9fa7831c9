// Package memory provides in-memory store implementations used by unit
// tests and short single-run invocations that skip external databases.
package memory

import (
	"context"
	"sort"
	"sync"

	"defi-backtest-lab/internal/storage"
)

// BacktestRunStore is an in-memory implementation of storage.BacktestRunStore.
type BacktestRunStore struct {
	mu   sync.RWMutex
	data map[string]*storage.BacktestRun // keyed by run_id
}

// NewBacktestRunStore creates a new in-memory run store.
func NewBacktestRunStore() *BacktestRunStore {
	return &BacktestRunStore{
		data: make(map[string]*storage.BacktestRun),
	}
}

var _ storage.BacktestRunStore = (*BacktestRunStore)(nil)

// Insert adds a new run summary. Returns ErrDuplicateKey if run_id exists.
func (s *BacktestRunStore) Insert(_ context.Context, r *storage.BacktestRun) error {
	if r == nil || r.RunID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[r.RunID]; exists {
		return storage.ErrDuplicateKey
	}

	copy := *r
	s.data[r.RunID] = &copy
	return nil
}

// GetByID retrieves a run by its ID. Returns ErrNotFound if not exists.
func (s *BacktestRunStore) GetByID(_ context.Context, runID string) (*storage.BacktestRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, exists := s.data[runID]
	if !exists {
		return nil, storage.ErrNotFound
	}

	copy := *r
	return &copy, nil
}

// GetByName retrieves all runs sharing a configured name, ordered by created_at ASC.
func (s *BacktestRunStore) GetByName(_ context.Context, name string) ([]*storage.BacktestRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*storage.BacktestRun
	for _, r := range s.data {
		if r.Name == name {
			copy := *r
			result = append(result, &copy)
		}
	}

	sortRuns(result)
	return result, nil
}

// GetAll retrieves all runs, ordered by created_at ASC.
func (s *BacktestRunStore) GetAll(_ context.Context) ([]*storage.BacktestRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*storage.BacktestRun, 0, len(s.data))
	for _, r := range s.data {
		copy := *r
		result = append(result, &copy)
	}

	sortRuns(result)
	return result, nil
}

func sortRuns(runs []*storage.BacktestRun) {
	sort.Slice(runs, func(i, j int) bool {
		if runs[i].CreatedAtMs != runs[j].CreatedAtMs {
			return runs[i].CreatedAtMs < runs[j].CreatedAtMs
		}
		return runs[i].RunID < runs[j].RunID
	})
}
