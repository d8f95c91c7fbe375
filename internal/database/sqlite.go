package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Fixed-width so that text comparison orders like time.
const timeLayout = "2006-01-02 15:04:05.000000"

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS job_hashes (
		hash       TEXT PRIMARY KEY,
		first_seen TEXT NOT NULL,
		last_seen  TEXT NOT NULL,
		title      TEXT,
		company    TEXT,
		location   TEXT,
		basic_hash TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS idx_basic_hash ON job_hashes(basic_hash)`,
	`CREATE TABLE IF NOT EXISTS scraped_posts (
		post_id      TEXT PRIMARY KEY,
		scraped_date TEXT NOT NULL,
		person_name  TEXT,
		post_link    TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS idx_scraped_date ON scraped_posts(scraped_date)`,
}

// SQLite is the embedded index backend. One file holds both tables.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (creating parent directories) the database at path,
// applies WAL pragmas and makes sure the schema exists.
func OpenSQLite(ctx context.Context, path string) (*SQLite, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("sqlite: mkdir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %s: %w", path, err)
	}
	if path == ":memory:" {
		// every connection to :memory: is a separate database
		db.SetMaxOpenConns(1)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 10000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			db.Close()
			return nil, fmt.Errorf("sqlite: %s: %w", p, err)
		}
	}

	s := &SQLite{db: db}
	if err := s.InitSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// InitSchema is idempotent and safe to call on every start.
func (s *SQLite) InitSchema(ctx context.Context) error {
	for _, stmt := range sqliteSchema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("sqlite: init schema: %w", err)
		}
	}
	return nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

// ---------------- JOB HASHES ----------------

func (s *SQLite) HasBasic(ctx context.Context, basicHash string) (bool, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM job_hashes WHERE basic_hash = ?", basicHash).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to query basic hash: %w", err)
	}
	return count > 0, nil
}

// RecordHash refreshes last_seen when the fingerprint is known and inserts
// the entry otherwise. It reports whether the fingerprint already existed.
func (s *SQLite) RecordHash(ctx context.Context, e HashEntry) (bool, error) {
	var existed bool
	err := runTx(ctx, s.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, "UPDATE job_hashes SET last_seen = ? WHERE hash = ?", formatTime(e.LastSeen), e.Hash)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n > 0 {
			existed = true
			return nil
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO job_hashes (hash, first_seen, last_seen, title, company, location, basic_hash)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			e.Hash, formatTime(e.FirstSeen), formatTime(e.LastSeen), e.Title, e.Company, e.Location, e.BasicHash)
		return err
	})
	if err != nil {
		return false, fmt.Errorf("failed to record hash: %w", err)
	}
	return existed, nil
}

func (s *SQLite) DeleteHash(ctx context.Context, hash string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM job_hashes WHERE hash = ?", hash); err != nil {
		return fmt.Errorf("failed to delete hash: %w", err)
	}
	return nil
}

// ExpireHashes deletes every entry last seen at or before cutoff.
func (s *SQLite) ExpireHashes(ctx context.Context, cutoff time.Time) (int64, error) {
	return s.deleteBefore(ctx, "DELETE FROM job_hashes WHERE last_seen <= ?", cutoff)
}

func (s *SQLite) HashStats(ctx context.Context) (Stats, error) {
	return s.stats(ctx, "SELECT COUNT(*), MIN(first_seen), MAX(last_seen) FROM job_hashes")
}

// ---------------- POSTS ----------------

func (s *SQLite) HasPost(ctx context.Context, postID string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, "SELECT 1 FROM scraped_posts WHERE post_id = ? LIMIT 1", postID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to query post id: %w", err)
	}
	return true, nil
}

func (s *SQLite) UpsertPost(ctx context.Context, p PostEntry) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO scraped_posts (post_id, scraped_date, person_name, post_link)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (post_id)
		 DO UPDATE SET scraped_date = excluded.scraped_date, person_name = excluded.person_name, post_link = excluded.post_link`,
		p.PostID, formatTime(p.ScrapedAt), nullString(p.PersonName), nullString(p.PostLink))
	if err != nil {
		return fmt.Errorf("failed to upsert post: %w", err)
	}
	return nil
}

func (s *SQLite) ExpirePosts(ctx context.Context, cutoff time.Time) (int64, error) {
	return s.deleteBefore(ctx, "DELETE FROM scraped_posts WHERE scraped_date <= ?", cutoff)
}

func (s *SQLite) PostStats(ctx context.Context) (Stats, error) {
	return s.stats(ctx, "SELECT COUNT(*), MIN(scraped_date), MAX(scraped_date) FROM scraped_posts")
}

// ---------------- HELPERS ----------------

func (s *SQLite) deleteBefore(ctx context.Context, query string, cutoff time.Time) (int64, error) {
	var deleted int64
	err := runTx(ctx, s.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, query, formatTime(cutoff))
		if err != nil {
			return err
		}
		deleted, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("failed to expire entries: %w", err)
	}
	return deleted, nil
}

func (s *SQLite) stats(ctx context.Context, query string) (Stats, error) {
	var (
		st             Stats
		oldest, newest sql.NullString
	)
	if err := s.db.QueryRowContext(ctx, query).Scan(&st.Total, &oldest, &newest); err != nil {
		return Stats{}, fmt.Errorf("failed to read stats: %w", err)
	}
	if oldest.Valid {
		st.Oldest, _ = parseTime(oldest.String)
	}
	if newest.Valid {
		st.Newest, _ = parseTime(newest.String)
	}
	return st, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.ParseInLocation(timeLayout, s, time.UTC)
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
