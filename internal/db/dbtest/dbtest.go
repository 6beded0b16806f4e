// Package dbtest opens migrated in-memory databases for tests.
package dbtest

import (
	"testing"

	"github.com/AdamBeresnev/racetime/internal/db"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
)

// Open creates an in-memory SQLite database and applies migrations. Every pooled
// connection to ":memory:" would see its own empty database, so the pool is pinned to a
// single connection; concurrent transactions queue on it.
func Open(t *testing.T) *sqlx.DB {
	t.Helper()

	database, err := sqlx.Connect("sqlite3", "file::memory:?_foreign_keys=on&_txlock=immediate")
	require.NoError(t, err, "Failed to connect to in-memory DB")
	database.SetMaxOpenConns(1)
	database.SetConnMaxLifetime(0)

	require.NoError(t, db.RunMigrations(database.DB), "Failed to apply migrations")

	t.Cleanup(func() {
		_ = database.Close()
	})
	return database
}
