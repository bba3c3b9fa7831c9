package memory

import (
	"context"
	"sort"
	"sync"

	"defi-backtest-lab/internal/storage"
)

type statusKey struct {
	runID       string
	timestampMs int64
}

// AccountStatusStore is an in-memory implementation of storage.AccountStatusStore.
type AccountStatusStore struct {
	mu   sync.RWMutex
	data map[statusKey]*storage.AccountStatusRecord
}

// NewAccountStatusStore creates a new in-memory account status store.
func NewAccountStatusStore() *AccountStatusStore {
	return &AccountStatusStore{
		data: make(map[statusKey]*storage.AccountStatusRecord),
	}
}

var _ storage.AccountStatusStore = (*AccountStatusStore)(nil)

// InsertBulk adds multiple points. Fails entire batch on duplicate (run_id, timestamp_ms).
func (s *AccountStatusStore) InsertBulk(_ context.Context, points []*storage.AccountStatusRecord) error {
	if len(points) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// First pass: check for duplicates (existing + intra-batch)
	batchKeys := make(map[statusKey]struct{}, len(points))
	for _, p := range points {
		if p == nil || p.RunID == "" {
			return storage.ErrInvalidInput
		}

		k := statusKey{p.RunID, p.TimestampMs}
		if _, exists := s.data[k]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[k]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[k] = struct{}{}
	}

	// Second pass: insert all
	for _, p := range points {
		s.data[statusKey{p.RunID, p.TimestampMs}] = copyStatus(p)
	}

	return nil
}

// GetByRunID retrieves all points for a run, ordered by timestamp ASC.
func (s *AccountStatusStore) GetByRunID(_ context.Context, runID string) ([]*storage.AccountStatusRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*storage.AccountStatusRecord
	for _, p := range s.data {
		if p.RunID == runID {
			result = append(result, copyStatus(p))
		}
	}

	sortStatuses(result)
	return result, nil
}

// GetByTimeRange retrieves points for a run within [start, end] (inclusive).
func (s *AccountStatusStore) GetByTimeRange(_ context.Context, runID string, start, end int64) ([]*storage.AccountStatusRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*storage.AccountStatusRecord
	for _, p := range s.data {
		if p.RunID == runID && p.TimestampMs >= start && p.TimestampMs <= end {
			result = append(result, copyStatus(p))
		}
	}

	sortStatuses(result)
	return result, nil
}

// copyStatus deep-copies a record so callers never share the Fields map.
func copyStatus(p *storage.AccountStatusRecord) *storage.AccountStatusRecord {
	copy := *p
	if p.Fields != nil {
		copy.Fields = make(map[string]float64, len(p.Fields))
		for k, v := range p.Fields {
			copy.Fields[k] = v
		}
	}
	return &copy
}

func sortStatuses(points []*storage.AccountStatusRecord) {
	sort.Slice(points, func(i, j int) bool {
		return points[i].TimestampMs < points[j].TimestampMs
	})
}
