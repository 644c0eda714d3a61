package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/rainermokros/IBKR-BOT-sub002/internal/domain"
	"github.com/rainermokros/IBKR-BOT-sub002/internal/observability"
	"github.com/rainermokros/IBKR-BOT-sub002/internal/storage"
)

// PositionStore implements storage.PositionStore using PostgreSQL.
// Positions are the mutable working set of the monitor, so they live in
// the relational store rather than the columnar one.
type PositionStore struct {
	pool *Pool
}

// NewPositionStore creates a new PositionStore.
func NewPositionStore(pool *Pool) *PositionStore {
	return &PositionStore{pool: pool}
}

// Compile-time interface check.
var _ storage.PositionStore = (*PositionStore)(nil)

// Upsert inserts or replaces a position snapshot keyed by execution_id.
func (s *PositionStore) Upsert(ctx context.Context, p *domain.PositionSnapshot) (err error) {
	if p == nil || p.ExecutionID == "" {
		return storage.ErrInvalidInput
	}
	start := time.Now()
	defer func() {
		observability.RecordDBQuery("postgres", "positions_upsert", time.Since(start).Seconds(), err)
	}()

	query := `
		INSERT INTO positions (
			execution_id, symbol, strategy_id, entry_premium, current_premium,
			quantity, delta, gamma, days_to_expiry, opened_at, closed_at_ms
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (execution_id) DO UPDATE SET
			symbol = EXCLUDED.symbol,
			strategy_id = EXCLUDED.strategy_id,
			entry_premium = EXCLUDED.entry_premium,
			current_premium = EXCLUDED.current_premium,
			quantity = EXCLUDED.quantity,
			delta = EXCLUDED.delta,
			gamma = EXCLUDED.gamma,
			days_to_expiry = EXCLUDED.days_to_expiry,
			opened_at = EXCLUDED.opened_at,
			closed_at_ms = EXCLUDED.closed_at_ms
	`

	_, err = s.pool.Exec(ctx, query,
		p.ExecutionID,
		p.Symbol,
		p.StrategyID,
		p.EntryPremium,
		p.CurrentPremium,
		p.Quantity,
		p.Delta,
		p.Gamma,
		p.DaysToExpiry,
		p.OpenedAt,
		p.ClosedAtMs,
	)
	if err != nil {
		return fmt.Errorf("upsert position: %w", err)
	}
	return nil
}

// GetByExecutionID retrieves a snapshot. Returns ErrNotFound if not exists.
func (s *PositionStore) GetByExecutionID(ctx context.Context, executionID string) (*domain.PositionSnapshot, error) {
	query := `
		SELECT execution_id, symbol, strategy_id, entry_premium, current_premium,
		       quantity, delta, gamma, days_to_expiry, opened_at, closed_at_ms
		FROM positions
		WHERE execution_id = $1
	`

	row := s.pool.QueryRow(ctx, query, executionID)
	p, err := scanPosition(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get position by execution id: %w", err)
	}
	return p, nil
}

// GetOpen retrieves all open positions, ordered by opened_at ASC.
func (s *PositionStore) GetOpen(ctx context.Context) ([]*domain.PositionSnapshot, error) {
	query := `
		SELECT execution_id, symbol, strategy_id, entry_premium, current_premium,
		       quantity, delta, gamma, days_to_expiry, opened_at, closed_at_ms
		FROM positions
		WHERE closed_at_ms = 0
		ORDER BY opened_at ASC, execution_id ASC
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query open positions: %w", err)
	}
	defer rows.Close()

	var positions []*domain.PositionSnapshot
	for rows.Next() {
		p, err := scanPosition(rows)
		if err != nil {
			return nil, fmt.Errorf("scan position row: %w", err)
		}
		positions = append(positions, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate position rows: %w", err)
	}
	return positions, nil
}

// Close marks a position closed at the given timestamp.
func (s *PositionStore) Close(ctx context.Context, executionID string, closedAtMs int64) error {
	query := `UPDATE positions SET closed_at_ms = $2 WHERE execution_id = $1`

	tag, err := s.pool.Exec(ctx, query, executionID, closedAtMs)
	if err != nil {
		return fmt.Errorf("close position: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// scanPosition scans one position row.
func scanPosition(row pgx.Row) (*domain.PositionSnapshot, error) {
	var p domain.PositionSnapshot
	var openedAt time.Time

	err := row.Scan(
		&p.ExecutionID, &p.Symbol, &p.StrategyID, &p.EntryPremium, &p.CurrentPremium,
		&p.Quantity, &p.Delta, &p.Gamma, &p.DaysToExpiry, &openedAt, &p.ClosedAtMs,
	)
	if err != nil {
		return nil, err
	}
	p.OpenedAt = openedAt
	return &p, nil
}
