// Package sqlite implements the resumable profile store on a single SQLite
// file. Every insert is committed with synchronous=FULL so a record reported
// as Inserted survives the process being killed right after.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/JakeFAU/directory-crawler/internal/profile"
	"github.com/JakeFAU/directory-crawler/internal/store"
)

//go:embed schema.sql
var schema string

var pragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA synchronous=FULL",
	"PRAGMA busy_timeout=5000",
}

const insertQuery = `
INSERT INTO profiles (
	profile_url, name, emails, phones, linkedin, city, region,
	industry, job_title, company, class_year, scraped_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(profile_url) DO NOTHING`

const selectQuery = `
SELECT profile_url, name, emails, phones, linkedin, city, region,
	industry, job_title, company, class_year, scraped_at
FROM profiles
ORDER BY class_year, name, id`

// Store is a store.Store backed by SQLite.
type Store struct {
	db    *sql.DB
	clock store.Clock

	mu     sync.RWMutex
	keys   map[string]struct{}
	closed bool
}

// Open opens (creating if needed) the store at path and loads its key index.
func Open(ctx context.Context, path string, clock store.Clock) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	if clock == nil {
		return nil, fmt.Errorf("clock is required")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create store dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// One connection keeps writes serialized and the pragmas in effect.
	db.SetMaxOpenConns(1)

	s := &Store{db: db, clock: clock, keys: make(map[string]struct{})}
	if err := s.init(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// OpenExisting opens path only if it already exists.
func OpenExisting(ctx context.Context, path string, clock store.Clock) (*Store, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", store.ErrNotFound, path)
		}
		return nil, fmt.Errorf("stat store: %w", err)
	}
	return Open(ctx, path, clock)
}

func (s *Store) init(ctx context.Context) error {
	for _, p := range pragmas {
		if _, err := s.db.ExecContext(ctx, p); err != nil {
			return fmt.Errorf("apply %q: %w", p, err)
		}
	}
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, "SELECT profile_url FROM profiles")
	if err != nil {
		return fmt.Errorf("load key index: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return fmt.Errorf("scan key: %w", err)
		}
		s.keys[key] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("load key index: %w", err)
	}
	return nil
}

// Exists implements store.Store from the in-memory index.
func (s *Store) Exists(_ context.Context, key string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return false, store.ErrClosed
	}
	_, ok := s.keys[key]
	return ok, nil
}

// Insert implements store.Store.
func (s *Store) Insert(ctx context.Context, rec profile.Record) (store.InsertResult, error) {
	if rec.URL == "" {
		return 0, fmt.Errorf("insert profile: empty identity key")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, store.ErrClosed
	}
	if _, ok := s.keys[rec.URL]; ok {
		return store.Duplicate, nil
	}
	res, err := s.db.ExecContext(ctx, insertQuery,
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
		s.clock.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, fmt.Errorf("insert profile %s: %w", rec.URL, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("insert profile %s: %w", rec.URL, err)
	}
	s.keys[rec.URL] = struct{}{}
	if n == 0 {
		return store.Duplicate, nil
	}
	return store.Inserted, nil
}

// Count implements store.Store.
func (s *Store) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0, store.ErrClosed
	}
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM profiles").Scan(&n); err != nil {
		return 0, fmt.Errorf("count profiles: %w", err)
	}
	return n, nil
}

// Records implements store.Lister.
func (s *Store) Records(ctx context.Context) ([]profile.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, store.ErrClosed
	}
	rows, err := s.db.QueryContext(ctx, selectQuery)
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	defer rows.Close()

	var out []profile.Record
	for rows.Next() {
		var (
			rec            profile.Record
			emails, phones string
			scrapedAt      string
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
			&scrapedAt,
		); err != nil {
			return nil, fmt.Errorf("scan profile row: %w", err)
		}
		rec.Emails = profile.SplitList(emails)
		rec.Phones = profile.SplitList(phones)
		if ts, err := time.Parse(time.RFC3339Nano, scrapedAt); err == nil {
			rec.ScrapedAt = ts
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	return out, nil
}

// Close implements store.Store. The WAL is checkpointed into the main file.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if _, err := s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		_ = s.db.Close()
		return fmt.Errorf("checkpoint sqlite: %w", err)
	}
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close sqlite: %w", err)
	}
	return nil
}

var (
	_ store.Store  = (*Store)(nil)
	_ store.Lister = (*Store)(nil)
)
