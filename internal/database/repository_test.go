package database

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// connectTestPostgres skips unless TEST_DATABASE_URL points at a scratch database.
func connectTestPostgres(t *testing.T) *Postgres {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping postgres integration test in short mode")
	}
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	p, err := ConnectPostgres(ctx, url)
	require.NoError(t, err)
	t.Cleanup(func() {
		p.db.Exec(ctx, "TRUNCATE job_hashes, scraped_posts")
		p.Close()
	})
	_, err = p.db.Exec(ctx, "TRUNCATE job_hashes, scraped_posts")
	require.NoError(t, err)
	return p
}

func TestPostgres_RecordHash(t *testing.T) {
	p := connectTestPostgres(t)
	ctx := context.Background()
	now := time.Now().UTC()

	entry := HashEntry{Hash: "full", BasicHash: "basic", Title: "Backend Intern", FirstSeen: now, LastSeen: now}
	existed, err := p.RecordHash(ctx, entry)
	require.NoError(t, err)
	assert.False(t, existed)

	existed, err = p.RecordHash(ctx, entry)
	require.NoError(t, err)
	assert.True(t, existed)

	ok, err := p.HasBasic(ctx, "basic")
	require.NoError(t, err)
	assert.True(t, ok)

	deleted, err := p.ExpireHashes(ctx, time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)
}

func TestPostgres_Posts(t *testing.T) {
	p := connectTestPostgres(t)
	ctx := context.Background()

	require.NoError(t, p.UpsertPost(ctx, PostEntry{PostID: "42", ScrapedAt: time.Now()}))
	require.NoError(t, p.UpsertPost(ctx, PostEntry{PostID: "42", PersonName: "Jane", ScrapedAt: time.Now()}))

	ok, err := p.HasPost(ctx, "42")
	require.NoError(t, err)
	assert.True(t, ok)

	st, err := p.PostStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), st.Total)
}
