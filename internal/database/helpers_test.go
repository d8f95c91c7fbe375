package database

import (
	"context"
	"testing"
)

func openMemory(t testing.TB) *SQLite {
	t.Helper()
	s, err := OpenSQLite(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("open in-memory sqlite: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}
