package clickhouse

import (
	"context"
	"fmt"
	"time"

	"github.com/rainermokros/IBKR-BOT-sub002/internal/domain"
	"github.com/rainermokros/IBKR-BOT-sub002/internal/observability"
	"github.com/rainermokros/IBKR-BOT-sub002/internal/storage"
)

// RiskEventStore implements storage.RiskEventStore using ClickHouse.
// Events are append-only facts, so a columnar MergeTree partitioned by
// month fits the audit-query pattern.
type RiskEventStore struct {
	conn *Conn
}

// NewRiskEventStore creates a new RiskEventStore.
func NewRiskEventStore(conn *Conn) *RiskEventStore {
	return &RiskEventStore{conn: conn}
}

// Compile-time interface check.
var _ storage.RiskEventStore = (*RiskEventStore)(nil)

// InsertBulk appends a batch of events. Fails the entire batch on a
// duplicate event_id, within the batch or against existing rows.
func (s *RiskEventStore) InsertBulk(ctx context.Context, events []*domain.RiskEvent) (err error) {
	if len(events) == 0 {
		return nil
	}
	start := time.Now()
	defer func() {
		observability.RecordDBQuery("clickhouse", "risk_events_insert_bulk", time.Since(start).Seconds(), err)
	}()

	// Check for intra-batch duplicates
	seen := make(map[string]struct{})
	for _, e := range events {
		if e == nil || e.EventID == "" {
			return storage.ErrInvalidInput
		}
		if _, exists := seen[e.EventID]; exists {
			return storage.ErrDuplicateKey
		}
		seen[e.EventID] = struct{}{}
	}

	// Check for duplicates against existing DB rows
	for _, e := range events {
		exists, err := s.exists(ctx, e.EventID)
		if err != nil {
			return fmt.Errorf("check exists: %w", err)
		}
		if exists {
			return storage.ErrDuplicateKey
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO risk_events (
			event_id, component, event_type, symbol, execution_id, timestamp_ms, reason, value
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, e := range events {
		err = batch.Append(
			e.EventID, e.Component, string(e.Type), e.Symbol,
			e.ExecutionID, uint64(e.TimestampMs), e.Reason, e.Value,
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

// GetBySymbol retrieves all events for a symbol, ordered by timestamp ASC.
func (s *RiskEventStore) GetBySymbol(ctx context.Context, symbol string) ([]*domain.RiskEvent, error) {
	query := `
		SELECT event_id, component, event_type, symbol, execution_id, timestamp_ms, reason, value
		FROM risk_events
		WHERE symbol = ?
		ORDER BY timestamp_ms ASC
	`

	rows, err := s.conn.Query(ctx, query, symbol)
	if err != nil {
		return nil, fmt.Errorf("query by symbol: %w", err)
	}
	defer rows.Close()

	return scanRiskEvents(rows)
}

// GetByTimeRange retrieves events for a symbol within [start, end] (inclusive).
func (s *RiskEventStore) GetByTimeRange(ctx context.Context, symbol string, start, end int64) ([]*domain.RiskEvent, error) {
	query := `
		SELECT event_id, component, event_type, symbol, execution_id, timestamp_ms, reason, value
		FROM risk_events
		WHERE symbol = ? AND timestamp_ms >= ? AND timestamp_ms <= ?
		ORDER BY timestamp_ms ASC
	`

	rows, err := s.conn.Query(ctx, query, symbol, uint64(start), uint64(end))
	if err != nil {
		return nil, fmt.Errorf("query by time range: %w", err)
	}
	defer rows.Close()

	return scanRiskEvents(rows)
}

// exists checks if an event with the given id exists.
func (s *RiskEventStore) exists(ctx context.Context, eventID string) (bool, error) {
	query := `SELECT count(*) FROM risk_events WHERE event_id = ?`

	var count uint64
	err := s.conn.QueryRow(ctx, query, eventID).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// scanRiskEvents scans multiple rows.
func scanRiskEvents(rows chRows) ([]*domain.RiskEvent, error) {
	var events []*domain.RiskEvent

	for rows.Next() {
		var e domain.RiskEvent
		var eventType string
		var timestampMs uint64

		err := rows.Scan(
			&e.EventID, &e.Component, &eventType, &e.Symbol,
			&e.ExecutionID, &timestampMs, &e.Reason, &e.Value,
		)
		if err != nil {
			return nil, fmt.Errorf("scan risk event row: %w", err)
		}

		t, err := domain.ParseRiskEventType(eventType)
		if err != nil {
			return nil, fmt.Errorf("event %s: %w", e.EventID, err)
		}
		e.Type = t
		e.TimestampMs = int64(timestampMs)
		events = append(events, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate risk event rows: %w", err)
	}

	return events, nil
}
