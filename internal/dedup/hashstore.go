package dedup

import (
	"context"
	"fmt"

	"jobfeed/internal/database"
	"jobfeed/internal/models"

	"charm.land/log/v2"
)

// HashStore is the two-tier fingerprint store used for job listings.
type HashStore struct {
	index HashIndex
	opts  options
	// fingerprints inserted by this process, the only ones Abandon may drop
	created map[string]struct{}
}

func NewHashStore(index HashIndex, opts ...Option) *HashStore {
	return &HashStore{
		index:   index,
		opts:    buildOptions(opts),
		created: make(map[string]struct{}),
	}
}

// CheckBasic reports whether any stored entry shares the record's basic
// fingerprint. Read-only.
func (s *HashStore) CheckBasic(ctx context.Context, identity models.Record) (bool, error) {
	if s.opts.readOnly {
		return false, nil
	}
	basic, err := BasicFingerprint(identity)
	if err != nil {
		return false, err
	}
	return s.index.HasBasic(ctx, basic)
}

// CheckFull returns true and refreshes last_seen when the full fingerprint is
// known; otherwise it records the entry and returns false.
func (s *HashStore) CheckFull(ctx context.Context, complete models.Record) (bool, error) {
	if s.opts.readOnly {
		return false, nil
	}
	full, err := FullFingerprint(complete)
	if err != nil {
		return false, err
	}
	basic, _ := BasicFingerprint(complete)

	now := s.opts.now()
	existed, err := s.index.RecordHash(ctx, database.HashEntry{
		Hash:      full,
		BasicHash: basic,
		Title:     complete.Get(models.FieldTitle),
		Company:   complete.Get(models.FieldCompany),
		Location:  complete.Get(models.FieldLocation),
		FirstSeen: now,
		LastSeen:  now,
	})
	if err != nil {
		return false, err
	}
	if !existed {
		s.created[full] = struct{}{}
	}
	return existed, nil
}

func (s *HashStore) Seen(ctx context.Context, identity models.Record) (bool, error) {
	return s.CheckBasic(ctx, identity)
}

func (s *HashStore) Confirm(ctx context.Context, complete models.Record) (bool, error) {
	return s.CheckFull(ctx, complete)
}

// Commit is a no-op: CheckFull already recorded the fingerprint.
func (s *HashStore) Commit(ctx context.Context, complete models.Record) error {
	return nil
}

// Abandon removes a fingerprint that CheckFull inserted during this run.
// Entries from earlier runs are left alone.
func (s *HashStore) Abandon(ctx context.Context, complete models.Record) error {
	full, err := FullFingerprint(complete)
	if err != nil {
		return err
	}
	if _, ok := s.created[full]; !ok {
		return nil
	}
	if err := s.index.DeleteHash(ctx, full); err != nil {
		return fmt.Errorf("abandon %s: %w", full, err)
	}
	delete(s.created, full)
	log.Debug("↩️ Released fingerprint", "hash", full)
	return nil
}

func (s *HashStore) Expire(ctx context.Context, retentionDays int) (int64, error) {
	if s.opts.readOnly {
		return 0, nil
	}
	deleted, err := s.index.ExpireHashes(ctx, retentionCutoff(s.opts.now(), retentionDays))
	if err != nil {
		return 0, err
	}
	if deleted > 0 {
		log.Info("🧹 Removed expired job hashes", "count", deleted, "retention_days", retentionDays)
	}
	return deleted, nil
}

func (s *HashStore) Stats(ctx context.Context) (database.Stats, error) {
	return s.index.HashStats(ctx)
}
