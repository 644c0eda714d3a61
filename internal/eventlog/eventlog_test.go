package eventlog

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rainermokros/IBKR-BOT-sub002/internal/domain"
	"github.com/rainermokros/IBKR-BOT-sub002/internal/storage"
	"github.com/rainermokros/IBKR-BOT-sub002/internal/storage/memory"
)

func testEvent(component string) *domain.RiskEvent {
	return &domain.RiskEvent{
		Component:   component,
		Type:        domain.EventDecision,
		Symbol:      "SPY",
		ExecutionID: "exec-1",
		Reason:      "profit target reached",
		Value:       75,
	}
}

func TestLogger_AssignsTimestampAndID(t *testing.T) {
	store := memory.NewRiskEventStore()
	now := time.UnixMilli(1704067200000)
	l := New(store, nil, WithNowFn(func() time.Time { return now }))

	e := testEvent("position_monitor")
	if err := l.Record(context.Background(), e); err != nil {
		t.Fatalf("Record: %v", err)
	}

	if e.TimestampMs != 1704067200000 {
		t.Errorf("TimestampMs = %d, want 1704067200000", e.TimestampMs)
	}
	if e.EventID == "" {
		t.Error("EventID must be assigned")
	}
	if l.Buffered() != 1 {
		t.Errorf("Buffered = %d, want 1", l.Buffered())
	}
}

func TestLogger_FlushesAtThreshold(t *testing.T) {
	ctx := context.Background()
	store := memory.NewRiskEventStore()
	l := New(store, nil, WithFlushThreshold(3))

	base := time.UnixMilli(1704067200000)
	for i := 0; i < 3; i++ {
		ts := base.Add(time.Duration(i) * time.Second)
		e := testEvent("position_monitor")
		e.TimestampMs = ts.UnixMilli()
		if err := l.Record(ctx, e); err != nil {
			t.Fatalf("Record %d: %v", i, err)
		}
	}

	if l.Buffered() != 0 {
		t.Errorf("Buffered = %d after threshold flush, want 0", l.Buffered())
	}
	got, err := store.GetBySymbol(ctx, "SPY")
	if err != nil {
		t.Fatalf("GetBySymbol: %v", err)
	}
	if len(got) != 3 {
		t.Errorf("stored %d events, want 3", len(got))
	}
}

func TestLogger_ExplicitFlush(t *testing.T) {
	ctx := context.Background()
	store := memory.NewRiskEventStore()
	l := New(store, nil)

	if err := l.Record(ctx, testEvent("trailing_stop")); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := l.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if l.Buffered() != 0 {
		t.Errorf("Buffered = %d after flush, want 0", l.Buffered())
	}

	// Flushing an empty buffer is a no-op.
	if err := l.Flush(ctx); err != nil {
		t.Fatalf("Flush empty: %v", err)
	}
}

func TestLogger_RejectsInvalid(t *testing.T) {
	l := New(memory.NewRiskEventStore(), nil)
	ctx := context.Background()

	if err := l.Record(ctx, nil); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("nil event: err = %v, want ErrInvalidInput", err)
	}
	if err := l.Record(ctx, &domain.RiskEvent{Type: domain.EventDecision}); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("missing component: err = %v, want ErrInvalidInput", err)
	}

	bad := testEvent("position_monitor")
	bad.Type = "NOT_A_TYPE"
	if err := l.Record(ctx, bad); err == nil {
		t.Error("unknown event type must be rejected")
	}
}

// failingStore rejects every insert.
type failingStore struct {
	memory.RiskEventStore
}

func (f *failingStore) InsertBulk(ctx context.Context, events []*domain.RiskEvent) error {
	return errors.New("store unavailable")
}

func TestLogger_RebuffersOnFlushFailure(t *testing.T) {
	ctx := context.Background()
	l := New(&failingStore{}, nil)

	if err := l.Record(ctx, testEvent("circuit_breaker")); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := l.Flush(ctx); err == nil {
		t.Fatal("Flush must propagate the store error")
	}
	if l.Buffered() != 1 {
		t.Errorf("Buffered = %d after failed flush, want 1 (retained for retry)", l.Buffered())
	}
}
