package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/rainermokros/IBKR-BOT-sub002/internal/domain"
	"github.com/rainermokros/IBKR-BOT-sub002/internal/storage"
)

// PositionStore is an in-memory implementation of storage.PositionStore.
type PositionStore struct {
	mu   sync.RWMutex
	data map[string]*domain.PositionSnapshot // keyed by execution_id
}

// NewPositionStore creates a new in-memory position store.
func NewPositionStore() *PositionStore {
	return &PositionStore{
		data: make(map[string]*domain.PositionSnapshot),
	}
}

// Upsert inserts or replaces a position snapshot keyed by execution_id.
func (s *PositionStore) Upsert(_ context.Context, p *domain.PositionSnapshot) error {
	if p == nil || p.ExecutionID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	positionCopy := *p
	s.data[p.ExecutionID] = &positionCopy
	return nil
}

// GetByExecutionID retrieves a snapshot. Returns ErrNotFound if not exists.
func (s *PositionStore) GetByExecutionID(_ context.Context, executionID string) (*domain.PositionSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, exists := s.data[executionID]
	if !exists {
		return nil, storage.ErrNotFound
	}

	positionCopy := *p
	return &positionCopy, nil
}

// GetOpen retrieves all open positions, ordered by opened_at ASC.
func (s *PositionStore) GetOpen(_ context.Context) ([]*domain.PositionSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.PositionSnapshot
	for _, p := range s.data {
		if p.Open() {
			positionCopy := *p
			result = append(result, &positionCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].OpenedAt.Before(result[j].OpenedAt)
	})
	return result, nil
}

// Close marks a position closed at the given timestamp.
func (s *PositionStore) Close(_ context.Context, executionID string, closedAtMs int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, exists := s.data[executionID]
	if !exists {
		return storage.ErrNotFound
	}
	p.ClosedAtMs = closedAtMs
	return nil
}

var _ storage.PositionStore = (*PositionStore)(nil)
