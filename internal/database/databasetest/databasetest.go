// Package databasetest provides in-memory indexes for tests of packages that
// sit on top of internal/database.
package databasetest

import (
	"context"
	"testing"

	"jobfeed/internal/database"
)

// OpenMemory opens an in-memory SQLite index and closes it on cleanup.
func OpenMemory(t testing.TB) *database.SQLite {
	t.Helper()
	s, err := database.OpenSQLite(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("databasetest.OpenMemory: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}
