package stream

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/directory-crawler/internal/profile"
	"github.com/JakeFAU/directory-crawler/internal/store"
)

func rec(key string) profile.Record {
	return profile.Record{
		URL:    "https://directory.example.com/users/" + key,
		Name:   "Name " + key,
		Emails: []string{key + "@example.com", key + "@alt.example.com"},
		Phones: []string{"+16095550101"},
		City:   "Princeton",
	}
}

func readAll(t *testing.T, path string, comma rune) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	r := csv.NewReader(f)
	r.Comma = comma
	rows, err := r.ReadAll()
	require.NoError(t, err)
	return rows
}

func TestDelimiterFor(t *testing.T) {
	t.Parallel()

	assert.Equal(t, ',', DelimiterFor("out.CSV"))
	assert.Equal(t, '\t', DelimiterFor("out.tsv"))
	assert.Equal(t, '\t', DelimiterFor("out.hsv"))
}

func TestHeaderWrittenOnceAndRowsAppended(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "out.tsv")

	s, err := Open(Config{Path: path, IncludePhone: true})
	require.NoError(t, err)
	res, err := s.Insert(ctx, rec("a"))
	require.NoError(t, err)
	assert.Equal(t, store.Inserted, res)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	again, err := Open(Config{Path: path, IncludePhone: true})
	require.NoError(t, err)
	n, err := again.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n, "existing rows are counted")
	_, err = again.Insert(ctx, rec("a"))
	require.NoError(t, err)
	require.NoError(t, again.Close())

	rows := readAll(t, path, '\t')
	require.Len(t, rows, 3)
	assert.Equal(t, profile.Header(true), rows[0])
	assert.Equal(t, "a@example.com, a@alt.example.com", rows[1][1])
	assert.Equal(t, "+16095550101", rows[1][2])
	assert.Equal(t, rows[1], rows[2], "stream mode does not deduplicate")
}

func TestExistsAlwaysFalse(t *testing.T) {
	t.Parallel()

	s, err := Open(Config{Path: filepath.Join(t.TempDir(), "out.csv")})
	require.NoError(t, err)
	defer s.Close()

	_, err = s.Insert(context.Background(), rec("a"))
	require.NoError(t, err)
	ok, err := s.Exists(context.Background(), rec("a").URL)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSyncCadence(t *testing.T) {
	t.Parallel()

	s, err := Open(Config{Path: filepath.Join(t.TempDir(), "out.tsv"), FlushEvery: 3})
	require.NoError(t, err)
	defer s.Close()
	syncs := 0
	s.sync = func() error {
		syncs++
		return nil
	}

	ctx := context.Background()
	var after []int
	for i := 0; i < 7; i++ {
		_, err := s.Insert(ctx, rec(string(rune('a'+i))))
		require.NoError(t, err)
		after = append(after, syncs)
	}
	// first insert, then every third.
	assert.Equal(t, []int{1, 1, 1, 2, 2, 2, 3}, after)
	assert.Equal(t, 7, s.Written())
}

func TestCSVWithoutPhone(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "out.csv")
	s, err := Open(Config{Path: path})
	require.NoError(t, err)
	r := rec("b")
	r.Name = "Doe, Jane"
	_, err = s.Insert(context.Background(), r)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(raw), "Name,Email(s),Profile URL"))

	rows := readAll(t, path, ',')
	require.Len(t, rows, 2)
	assert.Equal(t, "Doe, Jane", rows[1][0])
	assert.Len(t, rows[1], len(profile.Header(false)))
}

func TestInsertAfterClose(t *testing.T) {
	t.Parallel()

	s, err := Open(Config{Path: filepath.Join(t.TempDir(), "out.tsv")})
	require.NoError(t, err)
	require.NoError(t, s.Close())
	_, err = s.Insert(context.Background(), rec("a"))
	require.ErrorIs(t, err, store.ErrClosed)
}
