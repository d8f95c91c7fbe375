package dedup

import (
	"context"
	"errors"
	"strings"

	"jobfeed/internal/database"
	"jobfeed/internal/models"

	"charm.land/log/v2"
)

const activityURN = "urn:li:activity:"

var ErrNoIdentifier = errors.New("record has no provider identifier")

// Diagnostics are optional fields stored next to an identifier.
type Diagnostics struct {
	PersonName string
	PostLink   string
}

// IDStore is the single-tier store for social posts: the provider's post
// identifier is already a perfect fingerprint.
type IDStore struct {
	index PostIndex
	opts  options
}

func NewIDStore(index PostIndex, opts ...Option) *IDStore {
	return &IDStore{index: index, opts: buildOptions(opts)}
}

// IsKnown is a pure membership query. Always false in read-only mode.
func (s *IDStore) IsKnown(ctx context.Context, id string) (bool, error) {
	if s.opts.readOnly || id == "" {
		return false, nil
	}
	return s.index.HasPost(ctx, id)
}

// Remember inserts or refreshes the identifier. No-op in read-only mode.
func (s *IDStore) Remember(ctx context.Context, id string, diag Diagnostics) error {
	if s.opts.readOnly {
		log.Debug("Read-only mode, not remembering post", "post_id", id)
		return nil
	}
	if id == "" {
		return ErrNoIdentifier
	}
	return s.index.UpsertPost(ctx, database.PostEntry{
		PostID:     id,
		PersonName: diag.PersonName,
		PostLink:   diag.PostLink,
		ScrapedAt:  s.opts.now(),
	})
}

func (s *IDStore) Key(rec models.Record) string {
	return PostIdentifier(rec)
}

func (s *IDStore) Seen(ctx context.Context, identity models.Record) (bool, error) {
	return s.IsKnown(ctx, PostIdentifier(identity))
}

func (s *IDStore) Confirm(ctx context.Context, complete models.Record) (bool, error) {
	return s.IsKnown(ctx, PostIdentifier(complete))
}

// Commit remembers the record's identifier. A record without one is saved
// unprotected; that is accepted, not an error.
func (s *IDStore) Commit(ctx context.Context, complete models.Record) error {
	id := PostIdentifier(complete)
	if id == "" {
		log.Warn("⚠️ Post has no post_id, cannot protect it from future duplicates",
			"person", complete.Get(models.FieldPersonName))
		return nil
	}
	return s.Remember(ctx, id, Diagnostics{
		PersonName: complete.Get(models.FieldPersonName),
		PostLink:   complete.Get(models.FieldPostLink),
	})
}

// Abandon is a no-op: nothing is written before Commit.
func (s *IDStore) Abandon(ctx context.Context, complete models.Record) error {
	return nil
}

func (s *IDStore) Expire(ctx context.Context, retentionDays int) (int64, error) {
	if s.opts.readOnly {
		return 0, nil
	}
	deleted, err := s.index.ExpirePosts(ctx, retentionCutoff(s.opts.now(), retentionDays))
	if err != nil {
		return 0, err
	}
	if deleted > 0 {
		log.Info("🧹 Removed expired post ids", "count", deleted, "retention_days", retentionDays)
	}
	return deleted, nil
}

func (s *IDStore) Stats(ctx context.Context) (database.Stats, error) {
	return s.index.PostStats(ctx)
}

// PostIdentifier returns the provider post id from the post_id field, a
// post link of the form .../urn:li:activity:<id>/..., or an urn attribute.
func PostIdentifier(r models.Record) string {
	if id := strings.TrimSpace(r.Get(models.FieldPostID)); id != "" {
		return id
	}
	if id := idFromLink(r.Get(models.FieldPostLink)); id != "" {
		return id
	}
	return idFromURN(r.Get(models.FieldURN))
}

func idFromLink(link string) string {
	_, rest, ok := strings.Cut(link, activityURN)
	if !ok {
		return ""
	}
	if i := strings.IndexAny(rest, "/?#"); i >= 0 {
		rest = rest[:i]
	}
	return rest
}

func idFromURN(urn string) string {
	if !strings.Contains(urn, activityURN) {
		return ""
	}
	return urn[strings.LastIndex(urn, ":")+1:]
}
