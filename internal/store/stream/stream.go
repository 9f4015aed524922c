// Package stream implements the append-only delimited output mode. It does no
// deduplication: Exists always reports false and a restarted run appends again.
package stream

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/JakeFAU/directory-crawler/internal/profile"
	"github.com/JakeFAU/directory-crawler/internal/store"
)

const defaultFlushEvery = 10

// Config describes the output file.
type Config struct {
	Path string
	// Delimiter overrides the separator; zero picks ',' for .csv files and a
	// tab otherwise.
	Delimiter    rune
	IncludePhone bool
	// FlushEvery is the number of inserts between fsyncs.
	FlushEvery int
}

// Store appends rows to a delimited file.
type Store struct {
	mu     sync.Mutex
	file   *os.File
	w      *csv.Writer
	cfg    Config
	closed bool
	sync   func() error

	existing   int
	written    int
	sinceSync  int
	syncedOnce bool
}

// DelimiterFor returns the separator implied by path.
func DelimiterFor(path string) rune {
	if strings.EqualFold(filepath.Ext(path), ".csv") {
		return ','
	}
	return '\t'
}

// Open opens path for appending, writing the header when the file is new.
func Open(cfg Config) (*Store, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("stream path is required")
	}
	if cfg.Delimiter == 0 {
		cfg.Delimiter = DelimiterFor(cfg.Path)
	}
	if cfg.FlushEvery <= 0 {
		cfg.FlushEvery = defaultFlushEvery
	}
	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create output dir: %w", err)
		}
	}

	existing, err := countRows(cfg.Path, cfg.Delimiter)
	if err != nil {
		return nil, err
	}
	f, err := os.OpenFile(cfg.Path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open output %s: %w", cfg.Path, err)
	}
	w := csv.NewWriter(f)
	w.Comma = cfg.Delimiter
	s := &Store{file: f, w: w, cfg: cfg, existing: existing, sync: f.Sync}

	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("stat output: %w", err)
	}
	if info.Size() == 0 {
		if err := s.writeRow(profile.Header(cfg.IncludePhone)); err != nil {
			_ = f.Close()
			return nil, err
		}
		if err := f.Sync(); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("sync header: %w", err)
		}
	}
	return s, nil
}

// countRows returns the number of data rows in an existing file.
func countRows(path string, delim rune) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("open existing output: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.Comma = delim
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	rows := 0
	for {
		_, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return 0, fmt.Errorf("read existing output: %w", err)
		}
		rows++
	}
	if rows > 0 {
		rows-- // header
	}
	return rows, nil
}

func (s *Store) writeRow(row []string) error {
	if err := s.w.Write(row); err != nil {
		return fmt.Errorf("write row: %w", err)
	}
	s.w.Flush()
	if err := s.w.Error(); err != nil {
		return fmt.Errorf("flush row: %w", err)
	}
	return nil
}

// Exists implements store.Store. Streaming mode never resumes.
func (s *Store) Exists(context.Context, string) (bool, error) {
	return false, nil
}

// Insert appends rec. The file is fsynced on the first insert of the session
// and then every FlushEvery inserts.
func (s *Store) Insert(_ context.Context, rec profile.Record) (store.InsertResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, store.ErrClosed
	}
	if err := s.writeRow(profile.Row(rec, s.cfg.IncludePhone)); err != nil {
		return 0, err
	}
	s.written++
	s.sinceSync++
	if !s.syncedOnce || s.sinceSync >= s.cfg.FlushEvery {
		if err := s.sync(); err != nil {
			return 0, fmt.Errorf("sync output: %w", err)
		}
		s.syncedOnce = true
		s.sinceSync = 0
	}
	return store.Inserted, nil
}

// Count implements store.Store.
func (s *Store) Count(context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.existing + s.written, nil
}

// Written reports rows appended during this session.
func (s *Store) Written() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.written
}

// Close flushes, syncs and closes the file. Calling it again is a no-op.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.w.Flush()
	if err := s.w.Error(); err != nil {
		_ = s.file.Close()
		return fmt.Errorf("flush output: %w", err)
	}
	if err := s.file.Sync(); err != nil {
		_ = s.file.Close()
		return fmt.Errorf("sync output: %w", err)
	}
	if err := s.file.Close(); err != nil {
		return fmt.Errorf("close output: %w", err)
	}
	return nil
}

var _ store.Store = (*Store)(nil)
