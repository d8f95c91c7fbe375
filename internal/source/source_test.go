package source

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"jobfeed/internal/dedup"
	"jobfeed/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var scrapeTime = time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC)

func drain(t *testing.T, f *Feed) ([]models.Record, []error) {
	t.Helper()
	var recs []models.Record
	var errs []error
	for {
		rec, err := f.Next(context.Background())
		if errors.Is(err, io.EOF) {
			return recs, errs
		}
		if err != nil {
			errs = append(errs, err)
			if !errors.Is(err, ErrExtraction) {
				return recs, errs
			}
			continue
		}
		recs = append(recs, rec)
	}
}

func TestFeed_Array(t *testing.T) {
	f := NewFeed(strings.NewReader(`  [{"title":"A","company":"X"}, "oops", {"title":"B"}]`))
	recs, errs := drain(t, f)

	require.Len(t, recs, 2)
	assert.Equal(t, "A", recs[0].Get(models.FieldTitle))
	assert.Equal(t, "B", recs[1].Get(models.FieldTitle))
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], ErrExtraction)
}

func TestFeed_NDJSON(t *testing.T) {
	f := NewFeed(strings.NewReader("{\"post_id\":\"1\"}\n{\"post_id\":\"2\"}\n"))
	recs, errs := drain(t, f)

	assert.Empty(t, errs)
	require.Len(t, recs, 2)
	assert.Equal(t, "2", recs[1].Get(models.FieldPostID))
}

func TestFeed_TruncatedIsFatal(t *testing.T) {
	f := NewFeed(strings.NewReader(`[{"title":"A"}, {"title":`))
	recs, errs := drain(t, f)

	assert.Len(t, recs, 1)
	require.Len(t, errs, 1)
	assert.NotErrorIs(t, errs[0], ErrExtraction)

	_, err := f.Next(context.Background())
	assert.ErrorIs(t, err, io.EOF)
}

func TestFeed_EmptyInput(t *testing.T) {
	recs, errs := drain(t, NewFeed(strings.NewReader("")))
	assert.Empty(t, recs)
	assert.Empty(t, errs)
}

func TestFeed_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewFeed(strings.NewReader(`[]`)).Next(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFeed_CancelWhileWaitingForInput(t *testing.T) {
	pr, pw := io.Pipe()
	t.Cleanup(func() { pw.Close() })

	// nothing is read before the first Next, so constructing never blocks
	f := NewFeed(pr)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := f.Next(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 2*time.Second)

	_, err = f.Next(context.Background())
	assert.ErrorIs(t, err, io.EOF, "an abandoned feed is finished")
}

func TestOpenFeed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "capture.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"title":"A"}]`), 0o644))

	f, err := OpenFeed(path)
	require.NoError(t, err)
	defer f.Close()

	recs, errs := drain(t, f)
	assert.Empty(t, errs)
	assert.Len(t, recs, 1)

	_, err = OpenFeed(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestLookup(t *testing.T) {
	p, err := Lookup("JOBS")
	require.NoError(t, err)
	assert.Equal(t, "google_jobs", p.OutputPrefix())

	p, err = Lookup("posts")
	require.NoError(t, err)
	assert.Equal(t, "linkedin_posts", p.OutputPrefix())

	_, err = Lookup("facebook")
	assert.Error(t, err)
}

func TestJobs_PrepareAndSessionKey(t *testing.T) {
	_, err := Jobs{}.Prepare(models.NewRecord(models.FieldTitle, "  "))
	assert.ErrorIs(t, err, ErrExtraction)

	rec, err := Jobs{}.Prepare(models.NewRecord(models.FieldTitle, " Lập trình viên Go ", models.FieldCompany, "Công Ty  ABC"))
	require.NoError(t, err)
	assert.Equal(t, "Lập trình viên Go", rec.Get(models.FieldTitle))
	assert.Equal(t, "N/A", rec.Get(models.FieldLocation))
	assert.Equal(t, "lap trinh vien go_cong ty abc", Jobs{}.SessionKey(rec))
}

func TestJobs_Enrich(t *testing.T) {
	rec := models.NewRecord(
		models.FieldTitle, "Dev",
		models.FieldCompany, "Acme",
		models.FieldLocation, "Remote",
		models.FieldPosted, "3 days ago",
	)
	out := Jobs{}.Enrich(rec, scrapeTime)

	assert.Equal(t, "2026-10-19 08:00:00", out.Get(models.FieldScrapedDate))
	assert.Equal(t, "2026-10-16", out.Get(models.FieldEstimatedPostedDate))
	assert.Len(t, out.Get(models.FieldFingerprint), 32)
	_, ok := rec.Lookup(models.FieldScrapedDate)
	assert.False(t, ok, "enrich must not mutate its input")
}

func TestPosts_PrepareEnrichAndSessionKey(t *testing.T) {
	_, err := Posts{}.Prepare(models.NewRecord(models.FieldPersonName, "Ann"))
	assert.ErrorIs(t, err, ErrExtraction)

	rec, err := Posts{}.Prepare(models.NewRecord(
		models.FieldPostedTime, "45m",
		models.FieldPostContent, "Hiring Go interns",
		models.FieldPostLink, "https://www.linkedin.com/feed/update/urn:li:activity:7123/?utm=x",
	))
	require.NoError(t, err)
	assert.Equal(t, "Unknown", rec.Get(models.FieldPersonName))
	assert.Equal(t, "unknown_45m_17", Posts{}.SessionKey(rec))

	out := Posts{}.Enrich(rec, scrapeTime)
	assert.Equal(t, "7123", out.Get(models.FieldPostID))
	assert.Equal(t, "2026-10-19", out.Get(models.FieldEstimatedPostedDate))
}

func TestPosts_EnrichFillsBlankPostID(t *testing.T) {
	tests := []struct {
		name   string
		postID string
		want   string
	}{
		{name: "empty", postID: "", want: "8001"},
		{name: "whitespace", postID: "  ", want: "8001"},
		{name: "padded", postID: " 7002 ", want: "7002"},
		{name: "kept", postID: "7003", want: "7003"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := models.NewRecord(
				models.FieldPersonName, "Ann",
				models.FieldPostContent, "Hiring",
				models.FieldPostLink, "https://www.linkedin.com/feed/update/urn:li:activity:8001/",
				models.FieldPostID, tt.postID,
			)
			out := Posts{}.Enrich(rec, scrapeTime)
			assert.Equal(t, tt.want, out.Get(models.FieldPostID))
			assert.Equal(t, dedup.PostIdentifier(out), out.Get(models.FieldPostID))
		})
	}
}

func TestPassthrough(t *testing.T) {
	in := models.NewRecord(models.FieldTitle, "A")
	out, err := Passthrough{}.Fetch(context.Background(), in)
	require.NoError(t, err)
	out.Set(models.FieldTitle, "B")
	assert.Equal(t, "A", in.Get(models.FieldTitle))
}
