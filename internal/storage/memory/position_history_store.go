package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/rainermokros/IBKR-BOT-sub002/internal/domain"
	"github.com/rainermokros/IBKR-BOT-sub002/internal/storage"
)

// PositionHistoryStore is an in-memory implementation of storage.PositionHistoryStore.
type PositionHistoryStore struct {
	mu   sync.RWMutex
	data []*domain.PositionHistorySample
}

// NewPositionHistoryStore creates a new in-memory position-history store.
func NewPositionHistoryStore() *PositionHistoryStore {
	return &PositionHistoryStore{}
}

// InsertBulk appends a batch of samples.
func (s *PositionHistoryStore) InsertBulk(_ context.Context, samples []*domain.PositionHistorySample) error {
	for _, sm := range samples {
		if sm == nil || sm.ExecutionID == "" {
			return storage.ErrInvalidInput
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, sm := range samples {
		sampleCopy := *sm
		s.data = append(s.data, &sampleCopy)
	}
	return nil
}

// GetByExecutionID retrieves all samples for a position, ordered by timestamp ASC.
func (s *PositionHistoryStore) GetByExecutionID(_ context.Context, executionID string) ([]*domain.PositionHistorySample, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.PositionHistorySample
	for _, sm := range s.data {
		if sm.ExecutionID == executionID {
			sampleCopy := *sm
			result = append(result, &sampleCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].TimestampMs < result[j].TimestampMs
	})
	return result, nil
}

var _ storage.PositionHistoryStore = (*PositionHistoryStore)(nil)
