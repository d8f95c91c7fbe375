package database

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenSQLite_CreatesDirAndIsIdempotent(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "data", "index.db")

	s, err := OpenSQLite(ctx, path)
	require.NoError(t, err)
	require.NoError(t, s.InitSchema(ctx))
	require.NoError(t, s.Close())

	// reopening an existing file must not fail on schema creation
	s, err = OpenSQLite(ctx, path)
	require.NoError(t, err)
	defer s.Close()
	require.NoError(t, s.InitSchema(ctx))
}

func TestRecordHash_InsertThenTouch(t *testing.T) {
	ctx := context.Background()
	s := openMemory(t)

	first := time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)
	entry := HashEntry{
		Hash:      "full-1",
		BasicHash: "basic-1",
		Title:     "Backend Intern",
		Company:   "Acme",
		Location:  "Remote",
		FirstSeen: first,
		LastSeen:  first,
	}

	existed, err := s.RecordHash(ctx, entry)
	require.NoError(t, err)
	assert.False(t, existed)

	later := first.Add(48 * time.Hour)
	entry.FirstSeen, entry.LastSeen = later, later
	existed, err = s.RecordHash(ctx, entry)
	require.NoError(t, err)
	assert.True(t, existed)

	st, err := s.HashStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), st.Total)
	assert.True(t, st.Oldest.Equal(first), "first_seen must not move")
	assert.True(t, st.Newest.Equal(later), "last_seen must be refreshed")

	ok, err := s.HasBasic(ctx, "basic-1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.HasBasic(ctx, "basic-2")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestExpireHashes(t *testing.T) {
	ctx := context.Background()
	s := openMemory(t)
	now := time.Now()

	for i, age := range []time.Duration{0, 10 * 24 * time.Hour, 40 * 24 * time.Hour} {
		seen := now.Add(-age)
		_, err := s.RecordHash(ctx, HashEntry{Hash: string(rune('a' + i)), FirstSeen: seen, LastSeen: seen})
		require.NoError(t, err)
	}

	deleted, err := s.ExpireHashes(ctx, now.Add(-30*24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	deleted, err = s.ExpireHashes(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	st, err := s.HashStats(ctx)
	require.NoError(t, err)
	assert.Zero(t, st.Total)
	assert.True(t, st.Oldest.IsZero())
}

func TestDeleteHash(t *testing.T) {
	ctx := context.Background()
	s := openMemory(t)
	now := time.Now()

	_, err := s.RecordHash(ctx, HashEntry{Hash: "h", BasicHash: "b", FirstSeen: now, LastSeen: now})
	require.NoError(t, err)
	require.NoError(t, s.DeleteHash(ctx, "h"))

	ok, err := s.HasBasic(ctx, "b")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPosts_UpsertIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := openMemory(t)
	now := time.Now()

	ok, err := s.HasPost(ctx, "7380917238549340160")
	require.NoError(t, err)
	assert.False(t, ok)

	entry := PostEntry{PostID: "7380917238549340160", PersonName: "Jane Doe", ScrapedAt: now}
	require.NoError(t, s.UpsertPost(ctx, entry))
	require.NoError(t, s.UpsertPost(ctx, entry))

	ok, err = s.HasPost(ctx, "7380917238549340160")
	require.NoError(t, err)
	assert.True(t, ok)

	st, err := s.PostStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), st.Total)

	deleted, err := s.ExpirePosts(ctx, now.Add(time.Second))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)
}

func TestIsBusy(t *testing.T) {
	assert.False(t, IsBusy(nil))
	assert.False(t, IsBusy(errors.New("no such table: job_hashes")))
	assert.True(t, IsBusy(errors.New("database is locked (5) (SQLITE_BUSY)")))
}
