package export_test

import (
	"context"
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/directory-crawler/internal/profile"
	"github.com/JakeFAU/directory-crawler/internal/store"
	"github.com/JakeFAU/directory-crawler/internal/store/export"
	"github.com/JakeFAU/directory-crawler/internal/store/sqlite"
)

type fixedClock struct{}

func (fixedClock) Now() time.Time { return time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC) }

type failingLister struct{ err error }

func (f failingLister) Records(context.Context) ([]profile.Record, error) { return nil, f.err }

func TestRoundTripSortedByClassYearThenName(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	dir := t.TempDir()
	db, err := sqlite.Open(ctx, filepath.Join(dir, "profiles.db"), fixedClock{})
	require.NoError(t, err)
	defer db.Close()

	inserted := []profile.Record{
		{URL: "https://d.example/users/3", Name: "Zoe", Emails: []string{"z@x.io"}, ClassYear: "2001"},
		{URL: "https://d.example/users/1", Name: "Ann", Emails: []string{"a@x.io", "ann@y.io"}, ClassYear: "2001", City: "Boston", Region: "MA"},
		{URL: "https://d.example/users/2", Name: "Max", Emails: []string{"m@x.io"}, ClassYear: "1988"},
	}
	for _, r := range inserted {
		_, err := db.Insert(ctx, r)
		require.NoError(t, err)
	}

	out := filepath.Join(dir, "export", "profiles.tsv")
	n, err := export.Write(ctx, db, out, export.Options{})
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	f, err := os.Open(out)
	require.NoError(t, err)
	defer f.Close()
	r := csv.NewReader(f)
	r.Comma = '\t'
	rows, err := r.ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, profile.Header(false), rows[0])

	var names []string
	for _, row := range rows[1:] {
		names = append(names, row[0])
	}
	assert.Equal(t, []string{"Max", "Ann", "Zoe"}, names)
	assert.Equal(t, "a@x.io, ann@y.io", rows[2][1])
	assert.Equal(t, "https://d.example/users/1", rows[2][2])
	assert.Equal(t, "Boston", rows[2][4])

	entries, err := os.ReadDir(filepath.Dir(out))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}

func TestCSVWithPhones(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m := store.NewMemory()
	_, err := m.Insert(ctx, profile.Record{URL: "u1", Name: "Ann", Emails: []string{"a@x.io"}, Phones: []string{"+1555", "+1666"}})
	require.NoError(t, err)

	out := filepath.Join(t.TempDir(), "out.csv")
	_, err = export.Write(ctx, m, out, export.Options{IncludePhone: true})
	require.NoError(t, err)

	raw, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "Name,Email(s),Phone(s),Profile URL,LinkedIn,City,Region,Industry,Title,Company,Class Year\n"+
		"Ann,a@x.io,\"+1555, +1666\",u1,,,,,,,\n", string(raw))
}

func TestSourceFailureLeavesNoFile(t *testing.T) {
	t.Parallel()

	out := filepath.Join(t.TempDir(), "out.tsv")
	boom := errors.New("disk gone")
	_, err := export.Write(context.Background(), failingLister{boom}, out, export.Options{})
	require.ErrorIs(t, err, boom)
	_, statErr := os.Stat(out)
	assert.True(t, os.IsNotExist(statErr))
}
