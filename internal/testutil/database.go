package testutil

import (
	"testing"

	"mediadex/internal/database"
	"mediadex/internal/database/migrations"
)

// NewTestStore creates a new in-memory SQLite store with migrations applied.
// The store is automatically closed when the test completes.
func NewTestStore(t *testing.T) *database.SQLiteStore {
	t.Helper()

	sqlDB, err := database.OpenConnection(":memory:")
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	// Every pooled connection to ":memory:" would get its own empty
	// database; pin the pool to one connection.
	sqlDB.SetMaxOpenConns(1)

	if err := migrations.Up(sqlDB); err != nil {
		sqlDB.Close()
		t.Fatalf("failed to apply migrations: %v", err)
	}

	store, err := database.NewSQLiteStoreFromDB(sqlDB)
	if err != nil {
		sqlDB.Close()
		t.Fatalf("failed to create store: %v", err)
	}

	t.Cleanup(func() {
		store.Close()
	})

	return store
}
