// Package postgres implements the profile store on a shared Postgres database.
package postgres

import (
	"context"
	"fmt"
	"regexp"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/directory-crawler/internal/profile"
	"github.com/JakeFAU/directory-crawler/internal/store"
)

const defaultTable = "profiles"

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Config controls the Postgres connection pool.
type Config struct {
	DSN             string
	Table           string
	MaxConns        int32
	MaxConnLifetime time.Duration
}

type pool interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	QueryRow(context.Context, string, ...any) pgx.Row
	Query(context.Context, string, ...any) (pgx.Rows, error)
	Close()
}

// Store writes profile rows into Postgres.
type Store struct {
	pool  pool
	table string
	clock store.Clock

	closeOnce sync.Once
	mu        sync.RWMutex
	closed    bool
}

// Open connects to Postgres and ensures the profile table exists.
func Open(ctx context.Context, cfg Config, clock store.Clock) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("store.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	p, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	s, err := NewWithPool(p, cfg.Table, clock)
	if err != nil {
		p.Close()
		return nil, err
	}
	if err := s.Migrate(ctx); err != nil {
		p.Close()
		return nil, err
	}
	return s, nil
}

// NewWithPool constructs a store from an existing pool (primarily for testing).
func NewWithPool(p pool, table string, clock store.Clock) (*Store, error) {
	if p == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if clock == nil {
		return nil, fmt.Errorf("clock is required")
	}
	if table == "" {
		table = defaultTable
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &Store{pool: p, table: table, clock: clock}, nil
}

// Migrate creates the profile table and its key index when missing.
func (s *Store) Migrate(ctx context.Context) error {
	ddl := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %[1]s (
	id          BIGSERIAL PRIMARY KEY,
	profile_url TEXT NOT NULL UNIQUE,
	name        TEXT NOT NULL DEFAULT '',
	emails      TEXT NOT NULL DEFAULT '',
	phones      TEXT NOT NULL DEFAULT '',
	linkedin    TEXT NOT NULL DEFAULT '',
	city        TEXT NOT NULL DEFAULT '',
	region      TEXT NOT NULL DEFAULT '',
	industry    TEXT NOT NULL DEFAULT '',
	job_title   TEXT NOT NULL DEFAULT '',
	company     TEXT NOT NULL DEFAULT '',
	class_year  TEXT NOT NULL DEFAULT '',
	scraped_at  TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_%[1]s_url ON %[1]s (profile_url);`, s.table)
	if _, err := s.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("migrate %s: %w", s.table, err)
	}
	return nil
}

func (s *Store) check() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return store.ErrClosed
	}
	return nil
}

// Exists implements store.Store.
func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	if err := s.check(); err != nil {
		return false, err
	}
	var ok bool
	query := fmt.Sprintf("SELECT EXISTS (SELECT 1 FROM %s WHERE profile_url = $1)", s.table)
	if err := s.pool.QueryRow(ctx, query, key).Scan(&ok); err != nil {
		return false, fmt.Errorf("lookup profile: %w", err)
	}
	return ok, nil
}

// Insert implements store.Store.
func (s *Store) Insert(ctx context.Context, rec profile.Record) (store.InsertResult, error) {
	if err := s.check(); err != nil {
		return 0, err
	}
	if rec.URL == "" {
		return 0, fmt.Errorf("insert profile: empty identity key")
	}
	query := fmt.Sprintf(`
INSERT INTO %s (
	profile_url, name, emails, phones, linkedin, city, region,
	industry, job_title, company, class_year, scraped_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
ON CONFLICT (profile_url) DO NOTHING`, s.table)
	tag, err := s.pool.Exec(ctx, query,
		rec.URL,
		rec.Name,
		profile.JoinList(rec.Emails),
		profile.JoinList(rec.Phones),
		rec.LinkedIn,
		rec.City,
		rec.Region,
		rec.Industry,
		rec.Title,
		rec.Company,
		rec.ClassYear,
		s.clock.Now().UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("insert profile %s: %w", rec.URL, err)
	}
	if tag.RowsAffected() == 0 {
		return store.Duplicate, nil
	}
	return store.Inserted, nil
}

// Count implements store.Store.
func (s *Store) Count(ctx context.Context) (int, error) {
	if err := s.check(); err != nil {
		return 0, err
	}
	var n int64
	if err := s.pool.QueryRow(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", s.table)).Scan(&n); err != nil {
		return 0, fmt.Errorf("count profiles: %w", err)
	}
	return int(n), nil
}

// Records implements store.Lister.
func (s *Store) Records(ctx context.Context) ([]profile.Record, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`
SELECT profile_url, name, emails, phones, linkedin, city, region,
	industry, job_title, company, class_year, scraped_at
FROM %s
ORDER BY class_year, name, id`, s.table)
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	defer rows.Close()

	var out []profile.Record
	for rows.Next() {
		var (
			rec            profile.Record
			emails, phones string
		)
		if err := rows.Scan(
			&rec.URL,
			&rec.Name,
			&emails,
			&phones,
			&rec.LinkedIn,
			&rec.City,
			&rec.Region,
			&rec.Industry,
			&rec.Title,
			&rec.Company,
			&rec.ClassYear,
			&rec.ScrapedAt,
		); err != nil {
			return nil, fmt.Errorf("scan profile row: %w", err)
		}
		rec.Emails = profile.SplitList(emails)
		rec.Phones = profile.SplitList(phones)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	return out, nil
}

// Close releases the pool. Calling it again is a no-op.
func (s *Store) Close() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
		s.pool.Close()
	})
	return nil
}

var (
	_ store.Store  = (*Store)(nil)
	_ store.Lister = (*Store)(nil)
)
