package store_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/directory-crawler/internal/profile"
	"github.com/JakeFAU/directory-crawler/internal/store"
)

func TestMemoryInsertIdempotent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m := store.NewMemory()
	rec := profile.Record{URL: "https://d.example/users/1", Name: "A", Emails: []string{"a@x.io"}}

	res, err := m.Insert(ctx, rec)
	require.NoError(t, err)
	assert.Equal(t, store.Inserted, res)

	dup := rec
	dup.Name = "changed"
	res, err = m.Insert(ctx, dup)
	require.NoError(t, err)
	assert.Equal(t, store.Duplicate, res)

	n, err := m.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, "A", m.Inserted()[0].Name)

	ok, err := m.Exists(ctx, rec.URL)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, m.Close())
	require.NoError(t, m.Close())
	_, err = m.Insert(ctx, rec)
	require.ErrorIs(t, err, store.ErrClosed)
}

func TestSortRecords(t *testing.T) {
	t.Parallel()

	recs := []profile.Record{
		{Name: "Zed", ClassYear: "1990"},
		{Name: "Amy", ClassYear: ""},
		{Name: "Bob", ClassYear: "1990"},
		{Name: "Cat", ClassYear: "1985"},
	}
	store.SortRecords(recs)
	var names []string
	for _, r := range recs {
		names = append(names, r.Name)
	}
	assert.Equal(t, []string{"Amy", "Cat", "Bob", "Zed"}, names)
}

func TestInsertResultString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "inserted", store.Inserted.String())
	assert.Equal(t, "duplicate", store.Duplicate.String())
	assert.Equal(t, "unknown", store.InsertResult(0).String())
}
