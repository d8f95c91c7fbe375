// Package dedup decides whether a scraped record has been seen before,
// within one run (Session) and across runs (HashStore, IDStore).
package dedup

import (
	"context"
	"errors"
	"time"

	"jobfeed/internal/database"
	"jobfeed/internal/models"
)

// ErrMissingField is returned when a record lacks a field used for fingerprinting.
var ErrMissingField = errors.New("record is missing a fingerprint field")

// DuplicateStore is the cross-run "has this been seen before?" capability.
// Both variants are driven by the same orchestration loop.
type DuplicateStore interface {
	// Seen is the cheap check on identity fields, before the detail fetch.
	Seen(ctx context.Context, identity models.Record) (bool, error)
	// Confirm is the authoritative check on the complete record. It must be
	// called at most once per distinct record per run.
	Confirm(ctx context.Context, complete models.Record) (bool, error)
	// Commit is called once the record has been persisted.
	Commit(ctx context.Context, complete models.Record) error
	// Abandon is called when persisting failed, so a later run retries it.
	Abandon(ctx context.Context, complete models.Record) error
	// Expire drops entries not seen within retentionDays.
	Expire(ctx context.Context, retentionDays int) (int64, error)
	Stats(ctx context.Context) (database.Stats, error)
}

// Keyed is implemented by stores whose protection depends on a
// provider-assigned identifier. Key returns "" when none can be extracted.
type Keyed interface {
	Key(rec models.Record) string
}

// HashIndex is the persistence needed by HashStore.
type HashIndex interface {
	HasBasic(ctx context.Context, basicHash string) (bool, error)
	RecordHash(ctx context.Context, e database.HashEntry) (bool, error)
	DeleteHash(ctx context.Context, hash string) error
	ExpireHashes(ctx context.Context, cutoff time.Time) (int64, error)
	HashStats(ctx context.Context) (database.Stats, error)
}

// PostIndex is the persistence needed by IDStore.
type PostIndex interface {
	HasPost(ctx context.Context, postID string) (bool, error)
	UpsertPost(ctx context.Context, p database.PostEntry) error
	ExpirePosts(ctx context.Context, cutoff time.Time) (int64, error)
	PostStats(ctx context.Context) (database.Stats, error)
}

type options struct {
	readOnly bool
	now      func() time.Time
}

type Option func(*options)

// WithReadOnly makes every record look new and never writes to the index.
// Used for rehearsal runs.
func WithReadOnly(readOnly bool) Option { return func(o *options) { o.readOnly = readOnly } }

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option { return func(o *options) { o.now = now } }

func buildOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, fn := range opts {
		fn(&o)
	}
	return o
}

func retentionCutoff(now time.Time, retentionDays int) time.Time {
	return now.Add(-time.Duration(retentionDays) * 24 * time.Hour)
}
