package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/directory-crawler/internal/profile"
	"github.com/JakeFAU/directory-crawler/internal/store"
)

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

var stamp = time.Date(2025, 3, 4, 5, 6, 7, 0, time.UTC)

func openTemp(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data", "profiles.db")
	s, err := Open(context.Background(), path, fixedClock{stamp})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, path
}

func record(key, name, year string) profile.Record {
	return profile.Record{
		URL:       "https://directory.example.com/users/" + key,
		Name:      name,
		Emails:    []string{key + "@example.com", key + "@alt.example.com"},
		Phones:    []string{"+16095550101"},
		LinkedIn:  "https://www.linkedin.com/in/" + key,
		City:      "Princeton",
		Region:    "NJ",
		Industry:  "Education",
		Title:     "Professor",
		Company:   "Example University",
		ClassYear: year,
	}
}

func TestInsertIsIdempotent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s, _ := openTemp(t)
	rec := record("jane", "Jane", "1997")

	res, err := s.Insert(ctx, rec)
	require.NoError(t, err)
	assert.Equal(t, store.Inserted, res)

	changed := rec
	changed.Name = "Someone Else"
	res, err = s.Insert(ctx, changed)
	require.NoError(t, err)
	assert.Equal(t, store.Duplicate, res)

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	recs, err := s.Records(ctx)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "Jane", recs[0].Name)
}

func TestRecordsRoundTrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s, _ := openTemp(t)
	want := record("jane", "Jane", "1997")
	_, err := s.Insert(ctx, want)
	require.NoError(t, err)

	recs, err := s.Records(ctx)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	want.ScrapedAt = stamp
	assert.Equal(t, want, recs[0])
}

func TestRecordsOrderedByClassYearThenName(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s, _ := openTemp(t)
	for _, rec := range []profile.Record{
		record("c", "Carol", "2004"),
		record("b", "Bob", "1997"),
		record("a", "Alice", "2004"),
		record("d", "Dan", ""),
	} {
		_, err := s.Insert(ctx, rec)
		require.NoError(t, err)
	}
	recs, err := s.Records(ctx)
	require.NoError(t, err)
	var names []string
	for _, r := range recs {
		names = append(names, r.Name)
	}
	assert.Equal(t, []string{"Dan", "Bob", "Alice", "Carol"}, names)
}

func TestReopenKeepsEveryInsertedRecord(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "profiles.db")
	s, err := Open(ctx, path, fixedClock{stamp})
	require.NoError(t, err)
	for _, key := range []string{"a", "b", "c"} {
		_, err := s.Insert(ctx, record(key, key, "2000"))
		require.NoError(t, err)
	}
	require.NoError(t, s.Close())
	require.NoError(t, s.Close(), "second close is a no-op")

	reopened, err := OpenExisting(ctx, path, fixedClock{stamp})
	require.NoError(t, err)
	defer reopened.Close()

	n, err := reopened.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	ok, err := reopened.Exists(ctx, record("b", "", "").URL)
	require.NoError(t, err)
	assert.True(t, ok)

	res, err := reopened.Insert(ctx, record("a", "again", "2000"))
	require.NoError(t, err)
	assert.Equal(t, store.Duplicate, res)
}

func TestClosedStoreRejectsOperations(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s, _ := openTemp(t)
	require.NoError(t, s.Close())

	_, err := s.Insert(ctx, record("x", "X", ""))
	require.ErrorIs(t, err, store.ErrClosed)
	_, err = s.Exists(ctx, "x")
	require.ErrorIs(t, err, store.ErrClosed)
	_, err = s.Count(ctx)
	require.ErrorIs(t, err, store.ErrClosed)
}

func TestOpenValidation(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	_, err := Open(ctx, "", fixedClock{stamp})
	require.Error(t, err)

	_, err = Open(ctx, filepath.Join(t.TempDir(), "x.db"), nil)
	require.Error(t, err)

	_, err = OpenExisting(ctx, filepath.Join(t.TempDir(), "missing.db"), fixedClock{stamp})
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestInsertRejectsEmptyKey(t *testing.T) {
	t.Parallel()

	s, _ := openTemp(t)
	_, err := s.Insert(context.Background(), profile.Record{Name: "nobody"})
	require.Error(t, err)
}
