package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupTestDB creates a PostgreSQL container for testing and applies the schema.
// Returns a cleanup function that must be called after tests complete.
func setupTestDB(t *testing.T) (*Pool, func()) {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()

	container, err := postgres.Run(ctx, "postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err, "failed to start postgres container")

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err, "failed to get connection string")

	pool, err := NewPool(ctx, dsn)
	require.NoError(t, err, "failed to create pool")

	createTables(t, ctx, pool)

	cleanup := func() {
		pool.Close()
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	}

	return pool, cleanup
}

// createTables applies the schema directly; the embedded migration
// files carry the same statements.
func createTables(t *testing.T, ctx context.Context, pool *Pool) {
	t.Helper()

	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS positions (
			execution_id     TEXT PRIMARY KEY,
			symbol           TEXT NOT NULL,
			strategy_id      TEXT NOT NULL,
			entry_premium    DOUBLE PRECISION NOT NULL,
			current_premium  DOUBLE PRECISION NOT NULL,
			quantity         INTEGER NOT NULL,
			delta            DOUBLE PRECISION NOT NULL,
			gamma            DOUBLE PRECISION NOT NULL,
			days_to_expiry   DOUBLE PRECISION NOT NULL,
			opened_at        TIMESTAMPTZ NOT NULL,
			closed_at_ms     BIGINT NOT NULL DEFAULT 0
		)
	`)
	require.NoError(t, err, "failed to create positions table")

	_, err = pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS trailing_stops (
			execution_id     TEXT PRIMARY KEY,
			entry_premium    DOUBLE PRECISION NOT NULL,
			highest_premium  DOUBLE PRECISION NOT NULL,
			stop_premium     DOUBLE PRECISION,
			active           BOOLEAN NOT NULL,
			activation_pct   DOUBLE PRECISION NOT NULL,
			trail_pct        DOUBLE PRECISION NOT NULL,
			min_move_pct     DOUBLE PRECISION NOT NULL,
			updated_at_ms    BIGINT NOT NULL
		)
	`)
	require.NoError(t, err, "failed to create trailing_stops table")
}

// ptr is a helper to create pointers to values.
func ptr[T any](v T) *T {
	return &v
}
