package postgres

import (
	"context"
	"fmt"

	"github.com/rainermokros/IBKR-BOT-sub002/internal/domain"
	"github.com/rainermokros/IBKR-BOT-sub002/internal/storage"
)

// TrailingStopStore implements storage.TrailingStopStore using
// PostgreSQL, giving the monitor crash recovery for armed stops.
type TrailingStopStore struct {
	pool *Pool
}

// NewTrailingStopStore creates a new TrailingStopStore.
func NewTrailingStopStore(pool *Pool) *TrailingStopStore {
	return &TrailingStopStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TrailingStopStore = (*TrailingStopStore)(nil)

// Save inserts or replaces the state keyed by execution_id.
func (s *TrailingStopStore) Save(ctx context.Context, st *domain.TrailingStopState) error {
	if st == nil || st.ExecutionID == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO trailing_stops (
			execution_id, entry_premium, highest_premium, stop_premium,
			active, activation_pct, trail_pct, min_move_pct, updated_at_ms
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (execution_id) DO UPDATE SET
			entry_premium = EXCLUDED.entry_premium,
			highest_premium = EXCLUDED.highest_premium,
			stop_premium = EXCLUDED.stop_premium,
			active = EXCLUDED.active,
			activation_pct = EXCLUDED.activation_pct,
			trail_pct = EXCLUDED.trail_pct,
			min_move_pct = EXCLUDED.min_move_pct,
			updated_at_ms = EXCLUDED.updated_at_ms
	`

	_, err := s.pool.Exec(ctx, query,
		st.ExecutionID,
		st.EntryPremium,
		st.HighestPremium,
		st.StopPremium,
		st.Active,
		st.ActivationPct,
		st.TrailPct,
		st.MinMovePct,
		st.UpdatedAtMs,
	)
	if err != nil {
		return fmt.Errorf("save trailing stop state: %w", err)
	}
	return nil
}

// Get retrieves the state. Returns ErrNotFound if not exists.
func (s *TrailingStopStore) Get(ctx context.Context, executionID string) (*domain.TrailingStopState, error) {
	query := `
		SELECT execution_id, entry_premium, highest_premium, stop_premium,
		       active, activation_pct, trail_pct, min_move_pct, updated_at_ms
		FROM trailing_stops
		WHERE execution_id = $1
	`

	var st domain.TrailingStopState
	err := s.pool.QueryRow(ctx, query, executionID).Scan(
		&st.ExecutionID, &st.EntryPremium, &st.HighestPremium, &st.StopPremium,
		&st.Active, &st.ActivationPct, &st.TrailPct, &st.MinMovePct, &st.UpdatedAtMs,
	)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get trailing stop state: %w", err)
	}
	return &st, nil
}

// GetAll retrieves all persisted stop states.
func (s *TrailingStopStore) GetAll(ctx context.Context) ([]*domain.TrailingStopState, error) {
	query := `
		SELECT execution_id, entry_premium, highest_premium, stop_premium,
		       active, activation_pct, trail_pct, min_move_pct, updated_at_ms
		FROM trailing_stops
		ORDER BY execution_id ASC
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query trailing stop states: %w", err)
	}
	defer rows.Close()

	var states []*domain.TrailingStopState
	for rows.Next() {
		var st domain.TrailingStopState
		err := rows.Scan(
			&st.ExecutionID, &st.EntryPremium, &st.HighestPremium, &st.StopPremium,
			&st.Active, &st.ActivationPct, &st.TrailPct, &st.MinMovePct, &st.UpdatedAtMs,
		)
		if err != nil {
			return nil, fmt.Errorf("scan trailing stop row: %w", err)
		}
		states = append(states, &st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trailing stop rows: %w", err)
	}
	return states, nil
}

// Delete removes the state once a position is closed.
func (s *TrailingStopStore) Delete(ctx context.Context, executionID string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM trailing_stops WHERE execution_id = $1`, executionID)
	if err != nil {
		return fmt.Errorf("delete trailing stop state: %w", err)
	}
	return nil
}
