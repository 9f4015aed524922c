package store

import (
	"context"
	"errors"
	"time"

	"github.com/JakeFAU/directory-crawler/internal/profile"
)

// ErrNotFound signals that an existing store was required but is missing.
var ErrNotFound = errors.New("store not found")

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("store closed")

// InsertResult reports what Insert did with a record.
type InsertResult int

// Insert outcomes.
const (
	Inserted InsertResult = iota + 1
	Duplicate
)

func (r InsertResult) String() string {
	switch r {
	case Inserted:
		return "inserted"
	case Duplicate:
		return "duplicate"
	default:
		return "unknown"
	}
}

// Store is the durable, deduplicating sink for profile records. A key is
// recorded at most once; inserting it again reports Duplicate and leaves the
// first record untouched.
type Store interface {
	// Exists reports whether key has already been recorded.
	Exists(ctx context.Context, key string) (bool, error)
	// Insert durably records rec. When Insert returns Inserted the record
	// survives process termination.
	Insert(ctx context.Context, rec profile.Record) (InsertResult, error)
	// Count returns the number of durable records.
	Count(ctx context.Context) (int, error)
	// Close flushes and releases resources. Calling it again is a no-op.
	Close() error
}

// Lister is implemented by stores that can replay their records for export.
type Lister interface {
	// Records returns every record ordered by (class year, name).
	Records(ctx context.Context) ([]profile.Record, error)
}

// Clock stamps records as they are stored.
type Clock interface {
	Now() time.Time
}
