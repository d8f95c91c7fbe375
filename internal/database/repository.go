package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS job_hashes (
		hash       TEXT PRIMARY KEY,
		first_seen TIMESTAMPTZ NOT NULL,
		last_seen  TIMESTAMPTZ NOT NULL,
		title      TEXT,
		company    TEXT,
		location   TEXT,
		basic_hash TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS idx_basic_hash ON job_hashes(basic_hash)`,
	`CREATE TABLE IF NOT EXISTS scraped_posts (
		post_id      TEXT PRIMARY KEY,
		scraped_date TIMESTAMPTZ NOT NULL,
		person_name  TEXT,
		post_link    TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS idx_scraped_date ON scraped_posts(scraped_date)`,
}

// Postgres is the shared index backend, used when several machines scrape
// into the same history.
type Postgres struct {
	db *pgxpool.Pool
}

func ConnectPostgres(ctx context.Context, connString string) (*Postgres, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database url: %w", err)
	}

	config.MaxConns = 4
	config.MinConns = 1
	config.MaxConnLifetime = time.Hour

	// PgBouncer in transaction mode does not support prepared statements.
	config.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeExec

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("database unreachable: %w", err)
	}

	p := &Postgres{db: pool}
	if err := p.InitSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return p, nil
}

func (p *Postgres) InitSchema(ctx context.Context) error {
	for _, stmt := range postgresSchema {
		if _, err := p.db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("postgres: init schema: %w", err)
		}
	}
	return nil
}

func (p *Postgres) Close() error {
	if p.db != nil {
		p.db.Close()
	}
	return nil
}

// ---------------- JOB HASHES ----------------

func (p *Postgres) HasBasic(ctx context.Context, basicHash string) (bool, error) {
	var exists bool
	err := p.db.QueryRow(ctx, "SELECT EXISTS (SELECT 1 FROM job_hashes WHERE basic_hash = $1)", basicHash).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to query basic hash: %w", err)
	}
	return exists, nil
}

// RecordHash upserts the entry; xmax = 0 only for freshly inserted rows.
func (p *Postgres) RecordHash(ctx context.Context, e HashEntry) (bool, error) {
	query := `
		INSERT INTO job_hashes (hash, first_seen, last_seen, title, company, location, basic_hash)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (hash)
		DO UPDATE SET last_seen = EXCLUDED.last_seen
		RETURNING (xmax = 0) AS inserted`

	var inserted bool
	err := p.db.QueryRow(ctx, query, e.Hash, e.FirstSeen, e.LastSeen, e.Title, e.Company, e.Location, e.BasicHash).
		Scan(&inserted)
	if err != nil {
		return false, fmt.Errorf("failed to record hash: %w", err)
	}
	return !inserted, nil
}

func (p *Postgres) DeleteHash(ctx context.Context, hash string) error {
	if _, err := p.db.Exec(ctx, "DELETE FROM job_hashes WHERE hash = $1", hash); err != nil {
		return fmt.Errorf("failed to delete hash: %w", err)
	}
	return nil
}

func (p *Postgres) ExpireHashes(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := p.db.Exec(ctx, "DELETE FROM job_hashes WHERE last_seen <= $1", cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to expire hashes: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (p *Postgres) HashStats(ctx context.Context) (Stats, error) {
	return p.stats(ctx, "SELECT COUNT(*), MIN(first_seen), MAX(last_seen) FROM job_hashes")
}

// ---------------- POSTS ----------------

func (p *Postgres) HasPost(ctx context.Context, postID string) (bool, error) {
	var one int
	err := p.db.QueryRow(ctx, "SELECT 1 FROM scraped_posts WHERE post_id = $1 LIMIT 1", postID).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to query post id: %w", err)
	}
	return true, nil
}

func (p *Postgres) UpsertPost(ctx context.Context, e PostEntry) error {
	query := `
		INSERT INTO scraped_posts (post_id, scraped_date, person_name, post_link)
		VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''))
		ON CONFLICT (post_id)
		DO UPDATE SET scraped_date = EXCLUDED.scraped_date, person_name = EXCLUDED.person_name, post_link = EXCLUDED.post_link`
	if _, err := p.db.Exec(ctx, query, e.PostID, e.ScrapedAt, e.PersonName, e.PostLink); err != nil {
		return fmt.Errorf("failed to upsert post: %w", err)
	}
	return nil
}

func (p *Postgres) ExpirePosts(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := p.db.Exec(ctx, "DELETE FROM scraped_posts WHERE scraped_date <= $1", cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to expire posts: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (p *Postgres) PostStats(ctx context.Context) (Stats, error) {
	return p.stats(ctx, "SELECT COUNT(*), MIN(scraped_date), MAX(scraped_date) FROM scraped_posts")
}

func (p *Postgres) stats(ctx context.Context, query string) (Stats, error) {
	var (
		st             Stats
		oldest, newest *time.Time
	)
	if err := p.db.QueryRow(ctx, query).Scan(&st.Total, &oldest, &newest); err != nil {
		return Stats{}, fmt.Errorf("failed to read stats: %w", err)
	}
	if oldest != nil {
		st.Oldest = oldest.UTC()
	}
	if newest != nil {
		st.Newest = newest.UTC()
	}
	return st, nil
}
