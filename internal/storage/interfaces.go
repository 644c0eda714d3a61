package storage

import (
	"context"

	"github.com/rainermokros/IBKR-BOT-sub002/internal/domain"
)

// RiskEventStore provides append-only access to risk_events storage.
// Backed by a columnar store partitioned by symbol and time.
type RiskEventStore interface {
	// InsertBulk appends a batch of events. Returns ErrDuplicateKey on
	// any duplicate event_id within the batch.
	InsertBulk(ctx context.Context, events []*domain.RiskEvent) error

	// GetBySymbol retrieves all events for a symbol, ordered by timestamp ASC.
	GetBySymbol(ctx context.Context, symbol string) ([]*domain.RiskEvent, error)

	// GetByTimeRange retrieves events for a symbol within [start, end] (inclusive, ms).
	GetByTimeRange(ctx context.Context, symbol string, start, end int64) ([]*domain.RiskEvent, error)
}

// PositionHistoryStore provides append-only access to position_history
// storage: one unrealized-P&L sample per position per monitoring cycle.
type PositionHistoryStore interface {
	// InsertBulk appends a batch of samples.
	InsertBulk(ctx context.Context, samples []*domain.PositionHistorySample) error

	// GetByExecutionID retrieves all samples for a position, ordered by timestamp ASC.
	GetByExecutionID(ctx context.Context, executionID string) ([]*domain.PositionHistorySample, error)
}

// PositionStore provides access to open-position snapshots. Unlike the
// event stores, positions are mutable: the monitor refreshes premiums
// every cycle and closes positions when a CLOSE decision executes.
type PositionStore interface {
	// Upsert inserts or replaces a position snapshot keyed by execution_id.
	Upsert(ctx context.Context, p *domain.PositionSnapshot) error

	// GetByExecutionID retrieves a snapshot. Returns ErrNotFound if not exists.
	GetByExecutionID(ctx context.Context, executionID string) (*domain.PositionSnapshot, error)

	// GetOpen retrieves all open positions.
	GetOpen(ctx context.Context) ([]*domain.PositionSnapshot, error)

	// Close marks a position closed at the given timestamp.
	// Returns ErrNotFound if the position does not exist.
	Close(ctx context.Context, executionID string, closedAtMs int64) error
}

// TrailingStopStore persists trailing-stop state so the monitor can
// restore stops after a restart.
type TrailingStopStore interface {
	// Save inserts or replaces the state keyed by execution_id.
	Save(ctx context.Context, s *domain.TrailingStopState) error

	// Get retrieves the state. Returns ErrNotFound if not exists.
	Get(ctx context.Context, executionID string) (*domain.TrailingStopState, error)

	// GetAll retrieves all persisted stop states.
	GetAll(ctx context.Context) ([]*domain.TrailingStopState, error)

	// Delete removes the state once a position is closed.
	Delete(ctx context.Context, executionID string) error
}
