package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rainermokros/IBKR-BOT-sub002/internal/domain"
	"github.com/rainermokros/IBKR-BOT-sub002/internal/storage"
)

func testPosition(executionID string, openedAt time.Time) *domain.PositionSnapshot {
	return &domain.PositionSnapshot{
		ExecutionID:    executionID,
		Symbol:         "SPY",
		StrategyID:     "a1b2c3d4e5f60718",
		EntryPremium:   1.50,
		CurrentPremium: 1.50,
		Quantity:       1,
		Delta:          -0.20,
		Gamma:          0.01,
		DaysToExpiry:   30,
		OpenedAt:       openedAt,
	}
}

func TestPositionStore_UpsertAndGet(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	store := NewPositionStore(pool)
	opened := time.Date(2024, 1, 2, 15, 0, 0, 0, time.UTC)

	p := testPosition("exec-1", opened)
	require.NoError(t, store.Upsert(ctx, p))

	got, err := store.GetByExecutionID(ctx, "exec-1")
	require.NoError(t, err)
	require.Equal(t, "SPY", got.Symbol)
	require.Equal(t, 1.50, got.EntryPremium)
	require.True(t, got.OpenedAt.Equal(opened))
	require.True(t, got.Open())

	// Upsert with the same key replaces the row.
	p.CurrentPremium = 0.80
	require.NoError(t, store.Upsert(ctx, p))

	got, err = store.GetByExecutionID(ctx, "exec-1")
	require.NoError(t, err)
	require.Equal(t, 0.80, got.CurrentPremium)
}

func TestPositionStore_GetByExecutionID_NotFound(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewPositionStore(pool)
	_, err := store.GetByExecutionID(context.Background(), "missing")
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestPositionStore_GetOpen(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	store := NewPositionStore(pool)
	base := time.Date(2024, 1, 2, 15, 0, 0, 0, time.UTC)

	require.NoError(t, store.Upsert(ctx, testPosition("exec-2", base.Add(time.Hour))))
	require.NoError(t, store.Upsert(ctx, testPosition("exec-1", base)))

	closed := testPosition("exec-3", base.Add(2*time.Hour))
	closed.ClosedAtMs = base.Add(3 * time.Hour).UnixMilli()
	require.NoError(t, store.Upsert(ctx, closed))

	open, err := store.GetOpen(ctx)
	require.NoError(t, err)
	require.Len(t, open, 2)
	require.Equal(t, "exec-1", open[0].ExecutionID, "open positions must be ordered by opened_at ASC")
	require.Equal(t, "exec-2", open[1].ExecutionID)
}

func TestPositionStore_Close(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	store := NewPositionStore(pool)
	opened := time.Date(2024, 1, 2, 15, 0, 0, 0, time.UTC)
	require.NoError(t, store.Upsert(ctx, testPosition("exec-1", opened)))

	closedAt := opened.Add(24 * time.Hour).UnixMilli()
	require.NoError(t, store.Close(ctx, "exec-1", closedAt))

	got, err := store.GetByExecutionID(ctx, "exec-1")
	require.NoError(t, err)
	require.Equal(t, closedAt, got.ClosedAtMs)
	require.False(t, got.Open())

	require.ErrorIs(t, store.Close(ctx, "missing", closedAt), storage.ErrNotFound)
}

func TestPositionStore_RejectsInvalid(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewPositionStore(pool)
	err := store.Upsert(context.Background(), &domain.PositionSnapshot{ExecutionID: ""})
	require.ErrorIs(t, err, storage.ErrInvalidInput)
}
