package clickhouse

import (
	"context"
	"fmt"
	"time"

	"github.com/rainermokros/IBKR-BOT-sub002/internal/domain"
	"github.com/rainermokros/IBKR-BOT-sub002/internal/observability"
	"github.com/rainermokros/IBKR-BOT-sub002/internal/storage"
)

// PositionHistoryStore implements storage.PositionHistoryStore using
// ClickHouse. One P&L sample lands per position per monitoring cycle.
type PositionHistoryStore struct {
	conn *Conn
}

// NewPositionHistoryStore creates a new PositionHistoryStore.
func NewPositionHistoryStore(conn *Conn) *PositionHistoryStore {
	return &PositionHistoryStore{conn: conn}
}

// Compile-time interface check.
var _ storage.PositionHistoryStore = (*PositionHistoryStore)(nil)

// InsertBulk appends a batch of samples.
func (s *PositionHistoryStore) InsertBulk(ctx context.Context, samples []*domain.PositionHistorySample) (err error) {
	if len(samples) == 0 {
		return nil
	}
	start := time.Now()
	defer func() {
		observability.RecordDBQuery("clickhouse", "position_history_insert_bulk", time.Since(start).Seconds(), err)
	}()
	for _, sm := range samples {
		if sm == nil || sm.ExecutionID == "" {
			return storage.ErrInvalidInput
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO position_history (
			execution_id, symbol, timestamp_ms, premium, unrealized_pnl, delta
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, sm := range samples {
		err = batch.Append(
			sm.ExecutionID, sm.Symbol, uint64(sm.TimestampMs),
			sm.Premium, sm.UnrealizedPnL, sm.Delta,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetByExecutionID retrieves all samples for a position, ordered by timestamp ASC.
func (s *PositionHistoryStore) GetByExecutionID(ctx context.Context, executionID string) ([]*domain.PositionHistorySample, error) {
	query := `
		SELECT execution_id, symbol, timestamp_ms, premium, unrealized_pnl, delta
		FROM position_history
		WHERE execution_id = ?
		ORDER BY timestamp_ms ASC
	`

	rows, err := s.conn.Query(ctx, query, executionID)
	if err != nil {
		return nil, fmt.Errorf("query by execution id: %w", err)
	}
	defer rows.Close()

	var samples []*domain.PositionHistorySample
	for rows.Next() {
		var sm domain.PositionHistorySample
		var timestampMs uint64

		err := rows.Scan(
			&sm.ExecutionID, &sm.Symbol, &timestampMs,
			&sm.Premium, &sm.UnrealizedPnL, &sm.Delta,
		)
		if err != nil {
			return nil, fmt.Errorf("scan position history row: %w", err)
		}

		sm.TimestampMs = int64(timestampMs)
		samples = append(samples, &sm)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate position history rows: %w", err)
	}

	return samples, nil
}
