package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/rainermokros/IBKR-BOT-sub002/internal/domain"
	"github.com/rainermokros/IBKR-BOT-sub002/internal/storage"
)

// RiskEventStore is an in-memory implementation of storage.RiskEventStore.
type RiskEventStore struct {
	mu   sync.RWMutex
	data map[string]*domain.RiskEvent // keyed by event_id
}

// NewRiskEventStore creates a new in-memory risk-event store.
func NewRiskEventStore() *RiskEventStore {
	return &RiskEventStore{
		data: make(map[string]*domain.RiskEvent),
	}
}

// InsertBulk appends a batch of events. Returns ErrDuplicateKey if any
// event_id already exists; the batch is applied atomically.
func (s *RiskEventStore) InsertBulk(_ context.Context, events []*domain.RiskEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range events {
		if e == nil || e.EventID == "" {
			return storage.ErrInvalidInput
		}
		if _, exists := s.data[e.EventID]; exists {
			return storage.ErrDuplicateKey
		}
	}
	for _, e := range events {
		eventCopy := *e
		s.data[e.EventID] = &eventCopy
	}
	return nil
}

// GetBySymbol retrieves all events for a symbol, ordered by timestamp ASC.
func (s *RiskEventStore) GetBySymbol(_ context.Context, symbol string) ([]*domain.RiskEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.RiskEvent
	for _, e := range s.data {
		if e.Symbol == symbol {
			eventCopy := *e
			result = append(result, &eventCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].TimestampMs < result[j].TimestampMs
	})
	return result, nil
}

// GetByTimeRange retrieves events for a symbol within [start, end]
// (inclusive, ms), ordered by timestamp ASC.
func (s *RiskEventStore) GetByTimeRange(_ context.Context, symbol string, start, end int64) ([]*domain.RiskEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.RiskEvent
	for _, e := range s.data {
		if e.Symbol == symbol && e.TimestampMs >= start && e.TimestampMs <= end {
			eventCopy := *e
			result = append(result, &eventCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].TimestampMs < result[j].TimestampMs
	})
	return result, nil
}

var _ storage.RiskEventStore = (*RiskEventStore)(nil)
