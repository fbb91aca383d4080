package item

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupTestDB starts a PostgreSQL container with the items table and returns a pool to it.
func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container backed test in short mode")
	}

	ctx := t.Context()
	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("restaurant"),
		postgres.WithUsername("postgres"),
		postgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = pgContainer.Terminate(context.Background())
	})

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	_, err = pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS items (
			id BIGINT PRIMARY KEY,
			name TEXT NOT NULL,
			price INTEGER NOT NULL
		);
		INSERT INTO items (id, name, price) VALUES
			(1, 'Mutton Biriyani', 220),
			(9007199254740993, 'Chicken 65', 180);
	`)
	require.NoError(t, err)

	return pool
}

func TestPostgresStoreItem(t *testing.T) {
	pool := setupTestDB(t)
	pstore, err := NewPostgresStore(pool)
	require.NoError(t, err)

	tests := []struct {
		name     string
		id       int64
		expected *Item
	}{
		{name: "existing item", id: 1, expected: &Item{ID: 1, Name: "Mutton Biriyani", Price: 220}},
		{name: "id beyond float precision", id: 9007199254740993, expected: &Item{ID: 9007199254740993, Name: "Chicken 65", Price: 180}},
		{name: "missing item", id: 99},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			item, err := pstore.Item(t.Context(), tt.id)
			if tt.expected == nil {
				require.ErrorIs(t, err, ErrNotFound)
				assert.Nil(t, item)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, item)
		})
	}
}

func TestPostgresServicePriced(t *testing.T) {
	pool := setupTestDB(t)
	pstore, err := NewPostgresStore(pool)
	require.NoError(t, err)

	svc, err := NewService(pstore, staticFactor(1.5))
	require.NoError(t, err)

	priced, err := svc.Priced(t.Context(), 1, TypeRestaurant)
	require.NoError(t, err)
	assert.Equal(t, 330, priced.Price)

	// the adjustment must not be written back
	stored, err := pstore.Item(t.Context(), 1)
	require.NoError(t, err)
	assert.Equal(t, 220, stored.Price)
}
