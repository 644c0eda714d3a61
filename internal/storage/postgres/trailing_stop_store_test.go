package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rainermokros/IBKR-BOT-sub002/internal/domain"
	"github.com/rainermokros/IBKR-BOT-sub002/internal/storage"
)

func TestTrailingStopStore_SaveAndGet(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	store := NewTrailingStopStore(pool)

	st := &domain.TrailingStopState{
		ExecutionID:    "exec-1",
		EntryPremium:   1.50,
		HighestPremium: 1.50,
		Active:         false,
		ActivationPct:  5,
		TrailPct:       3,
		MinMovePct:     0.5,
		UpdatedAtMs:    1704067200000,
	}
	require.NoError(t, store.Save(ctx, st))

	got, err := store.Get(ctx, "exec-1")
	require.NoError(t, err)
	require.Equal(t, 1.50, got.EntryPremium)
	require.Nil(t, got.StopPremium, "stop premium must stay NULL until activated")
	require.False(t, got.Active)

	// Activation sets the stop level; Save replaces the row.
	st.Active = true
	st.HighestPremium = 1.60
	st.StopPremium = ptr(1.552)
	require.NoError(t, store.Save(ctx, st))

	got, err = store.Get(ctx, "exec-1")
	require.NoError(t, err)
	require.True(t, got.Active)
	require.NotNil(t, got.StopPremium)
	require.Equal(t, 1.552, *got.StopPremium)
}

func TestTrailingStopStore_Get_NotFound(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewTrailingStopStore(pool)
	_, err := store.Get(context.Background(), "missing")
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestTrailingStopStore_GetAllAndDelete(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	store := NewTrailingStopStore(pool)

	for _, id := range []string{"exec-2", "exec-1"} {
		require.NoError(t, store.Save(ctx, &domain.TrailingStopState{
			ExecutionID:    id,
			EntryPremium:   1.50,
			HighestPremium: 1.50,
			ActivationPct:  5,
			TrailPct:       3,
			MinMovePct:     0.5,
			UpdatedAtMs:    1704067200000,
		}))
	}

	all, err := store.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)

	require.NoError(t, store.Delete(ctx, "exec-1"))

	all, err = store.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	require.Equal(t, "exec-2", all[0].ExecutionID)

	// Deleting a missing state is a no-op.
	require.NoError(t, store.Delete(ctx, "missing"))
}

func TestTrailingStopStore_RejectsInvalid(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewTrailingStopStore(pool)
	err := store.Save(context.Background(), &domain.TrailingStopState{ExecutionID: ""})
	require.ErrorIs(t, err, storage.ErrInvalidInput)
}
