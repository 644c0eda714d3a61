package memory

import (
	"context"
	"sync"

	"github.com/rainermokros/IBKR-BOT-sub002/internal/domain"
	"github.com/rainermokros/IBKR-BOT-sub002/internal/storage"
)

// TrailingStopStore is an in-memory implementation of storage.TrailingStopStore.
type TrailingStopStore struct {
	mu   sync.RWMutex
	data map[string]*domain.TrailingStopState // keyed by execution_id
}

// NewTrailingStopStore creates a new in-memory trailing-stop store.
func NewTrailingStopStore() *TrailingStopStore {
	return &TrailingStopStore{
		data: make(map[string]*domain.TrailingStopState),
	}
}

// Save inserts or replaces the state keyed by execution_id.
func (s *TrailingStopStore) Save(_ context.Context, st *domain.TrailingStopState) error {
	if st == nil || st.ExecutionID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Store a copy to prevent external mutation
	stateCopy := *st
	if st.StopPremium != nil {
		sp := *st.StopPremium
		stateCopy.StopPremium = &sp
	}
	s.data[st.ExecutionID] = &stateCopy
	return nil
}

// Get retrieves the state for a position. Returns ErrNotFound if not exists.
func (s *TrailingStopStore) Get(_ context.Context, executionID string) (*domain.TrailingStopState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, exists := s.data[executionID]
	if !exists {
		return nil, storage.ErrNotFound
	}

	stateCopy := *st
	if st.StopPremium != nil {
		sp := *st.StopPremium
		stateCopy.StopPremium = &sp
	}
	return &stateCopy, nil
}

// GetAll retrieves all persisted stop states.
func (s *TrailingStopStore) GetAll(_ context.Context) ([]*domain.TrailingStopState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.TrailingStopState, 0, len(s.data))
	for _, st := range s.data {
		stateCopy := *st
		if st.StopPremium != nil {
			sp := *st.StopPremium
			stateCopy.StopPremium = &sp
		}
		result = append(result, &stateCopy)
	}
	return result, nil
}

// Delete removes the state for a position.
func (s *TrailingStopStore) Delete(_ context.Context, executionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.data, executionID)
	return nil
}

var _ storage.TrailingStopStore = (*TrailingStopStore)(nil)
