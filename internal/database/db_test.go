package database

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := New(Config{
		Path:    filepath.Join(t.TempDir(), "orders.db"),
		Profile: ProfileLedger,
		Name:    "orders",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return db
}

func TestMigrate_CreatesOrdersTable(t *testing.T) {
	db := newTestDB(t)

	require.NoError(t, db.Migrate())

	// Idempotent: running migrations again is safe
	require.NoError(t, db.Migrate())

	_, err := db.Exec(`
		INSERT INTO orders (id, type, ticker_symbol, quantity, price, created_at, updated_at)
		VALUES ('a', 'BUY', 'AAPL', 10, 100, 0, 0)
	`)
	assert.NoError(t, err)
}

func TestSchemaConstraints(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, db.Migrate())

	testCases := []struct {
		name  string
		query string
	}{
		{
			"Unknown order type",
			`INSERT INTO orders (id, type, ticker_symbol, quantity, price, created_at, updated_at)
			 VALUES ('b', 'SHORT', 'AAPL', 10, 100, 0, 0)`,
		},
		{
			"Zero quantity",
			`INSERT INTO orders (id, type, ticker_symbol, quantity, price, created_at, updated_at)
			 VALUES ('c', 'BUY', 'AAPL', 0, 100, 0, 0)`,
		},
		{
			"Negative price",
			`INSERT INTO orders (id, type, ticker_symbol, quantity, price, created_at, updated_at)
			 VALUES ('d', 'BUY', 'AAPL', 10, -1, 0, 0)`,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := db.Exec(tc.query)
			assert.Error(t, err)
		})
	}
}

func TestWithTransaction_CommitsOnSuccess(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, db.Migrate())

	err := WithTransaction(db.Conn(), func(tx *sql.Tx) error {
		_, err := tx.Exec(`
			INSERT INTO orders (id, type, ticker_symbol, quantity, price, created_at, updated_at)
			VALUES ('a', 'BUY', 'AAPL', 10, 100, 0, 0)
		`)
		return err
	})
	require.NoError(t, err)

	var count int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM orders").Scan(&count))
	assert.Equal(t, 1, count)
}

func TestWithTransaction_RollsBackOnError(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, db.Migrate())

	boom := errors.New("boom")
	err := WithTransaction(db.Conn(), func(tx *sql.Tx) error {
		_, execErr := tx.Exec(`
			INSERT INTO orders (id, type, ticker_symbol, quantity, price, created_at, updated_at)
			VALUES ('a', 'BUY', 'AAPL', 10, 100, 0, 0)
		`)
		require.NoError(t, execErr)
		return boom
	})
	assert.ErrorIs(t, err, boom)

	var count int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM orders").Scan(&count))
	assert.Equal(t, 0, count, "failed transaction must leave no effects")
}

func TestWithTransaction_RollsBackOnPanic(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, db.Migrate())

	err := WithTransaction(db.Conn(), func(tx *sql.Tx) error {
		_, execErr := tx.Exec(`
			INSERT INTO orders (id, type, ticker_symbol, quantity, price, created_at, updated_at)
			VALUES ('a', 'BUY', 'AAPL', 10, 100, 0, 0)
		`)
		require.NoError(t, execErr)
		panic("unexpected")
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panic in transaction")

	var count int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM orders").Scan(&count))
	assert.Equal(t, 0, count)
}

func TestWithTransaction_NilConnection(t *testing.T) {
	err := WithTransaction(nil, func(tx *sql.Tx) error { return nil })
	assert.Error(t, err)
}

func TestHealthCheck(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, db.Migrate())

	ctx := context.Background()
	assert.NoError(t, db.QuickCheck(ctx))
	assert.NoError(t, db.HealthCheck(ctx))
}

func TestWALCheckpointAndStats(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, db.Migrate())

	require.NoError(t, db.WALCheckpoint(""))

	stats, err := db.GetStats()
	require.NoError(t, err)
	assert.Greater(t, stats.PageSize, int64(0))
	assert.Greater(t, stats.PageCount, int64(0))
}
