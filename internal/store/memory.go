package store

import (
	"context"
	"sort"
	"sync"

	"github.com/JakeFAU/directory-crawler/internal/profile"
)

// Memory is an in-process Store for development and tests.
type Memory struct {
	mu      sync.RWMutex
	records []profile.Record
	keys    map[string]struct{}
	closed  bool

	// FailInsert, when set, is returned by Insert before recording anything.
	FailInsert error
}

// NewMemory returns an empty Memory store.
func NewMemory() *Memory {
	return &Memory{keys: make(map[string]struct{})}
}

// Exists implements Store.
func (m *Memory) Exists(_ context.Context, key string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return false, ErrClosed
	}
	_, ok := m.keys[key]
	return ok, nil
}

// Insert implements Store.
func (m *Memory) Insert(_ context.Context, rec profile.Record) (InsertResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return 0, ErrClosed
	}
	if m.FailInsert != nil {
		return 0, m.FailInsert
	}
	if _, ok := m.keys[rec.URL]; ok {
		return Duplicate, nil
	}
	m.keys[rec.URL] = struct{}{}
	m.records = append(m.records, rec)
	return Inserted, nil
}

// Count implements Store.
func (m *Memory) Count(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records), nil
}

// Records implements Lister.
func (m *Memory) Records(_ context.Context) ([]profile.Record, error) {
	m.mu.RLock()
	out := append([]profile.Record(nil), m.records...)
	m.mu.RUnlock()
	SortRecords(out)
	return out, nil
}

// Inserted returns records in insertion order.
func (m *Memory) Inserted() []profile.Record {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]profile.Record(nil), m.records...)
}

// Close implements Store.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// SortRecords orders records by (class year, name), keeping insertion order
// for ties.
func SortRecords(records []profile.Record) {
	sort.SliceStable(records, func(i, j int) bool {
		if records[i].ClassYear != records[j].ClassYear {
			return records[i].ClassYear < records[j].ClassYear
		}
		return records[i].Name < records[j].Name
	})
}
