// Package export renders a resumable store as a delimited text file.
package export

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"

	"github.com/JakeFAU/directory-crawler/internal/profile"
	"github.com/JakeFAU/directory-crawler/internal/store"
	"github.com/JakeFAU/directory-crawler/internal/store/stream"
)

// Options shape the exported file.
type Options struct {
	// Delimiter defaults to the one implied by the output extension.
	Delimiter    rune
	IncludePhone bool
}

// Write renders every record from src to path, ordered by (class year, name).
// The file is written to a temporary sibling and renamed into place so a
// failed export never leaves a truncated file behind.
func Write(ctx context.Context, src store.Lister, path string, opts Options) (int, error) {
	if path == "" {
		return 0, fmt.Errorf("export path is required")
	}
	records, err := src.Records(ctx)
	if err != nil {
		return 0, fmt.Errorf("read records: %w", err)
	}
	store.SortRecords(records)

	delim := opts.Delimiter
	if delim == 0 {
		delim = stream.DelimiterFor(path)
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, fmt.Errorf("create export dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return 0, fmt.Errorf("create temp export: %w", err)
	}
	defer os.Remove(tmp.Name())
	if err := tmp.Chmod(0o644); err != nil {
		_ = tmp.Close()
		return 0, fmt.Errorf("chmod temp export: %w", err)
	}

	w := csv.NewWriter(tmp)
	w.Comma = delim
	if err := w.Write(profile.Header(opts.IncludePhone)); err != nil {
		_ = tmp.Close()
		return 0, fmt.Errorf("write header: %w", err)
	}
	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			_ = tmp.Close()
			return 0, err
		}
		if err := w.Write(profile.Row(rec, opts.IncludePhone)); err != nil {
			_ = tmp.Close()
			return 0, fmt.Errorf("write row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		_ = tmp.Close()
		return 0, fmt.Errorf("flush export: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return 0, fmt.Errorf("sync export: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return 0, fmt.Errorf("close export: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return 0, fmt.Errorf("move export into place: %w", err)
	}
	return len(records), nil
}
