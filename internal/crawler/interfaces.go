package crawler

import (
	"context"
	"time"

	"github.com/JakeFAU/directory-crawler/internal/profile"
	"github.com/JakeFAU/directory-crawler/internal/store"
)

// Extractor turns a profile key into a record. A returned error marks the
// profile as failed; the crawl continues.
type Extractor interface {
	Extract(ctx context.Context, key string) (profile.Record, error)
}

// Store is the part of store.Store the controller needs.
type Store interface {
	Exists(ctx context.Context, key string) (bool, error)
	Insert(ctx context.Context, rec profile.Record) (store.InsertResult, error)
}

// Pacer spaces out profile fetches.
type Pacer interface {
	Wait(ctx context.Context) error
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}
