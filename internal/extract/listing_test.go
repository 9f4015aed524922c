package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListingLinks(t *testing.T) {
	t.Parallel()

	html := `<html><body>
<div class="card"><a href="/users/1?ref=list">Go to profile</a></div>
<div class="card"><a href="https://directory.example.com/users/2#top"><span>Go to profile</span></a></div>
<div class="card"><a href="/users/1">Go to profile</a></div>
<a href="/users/3">Message</a>
<a href="/groups/9">Go to profile</a>
<a href="javascript:void(0)">Go to profile</a>
</body></html>`
	doc, err := NewDocument("https://directory.example.com/people?page=2", html)
	require.NoError(t, err)

	sel := DefaultSelectors()
	links, err := ListingLinks(doc, sel.ListingLink, sel.ListingLinkText)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"https://directory.example.com/users/1",
		"https://directory.example.com/users/2",
	}, links)

	all, err := ListingLinks(doc, sel.ListingLink, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)
}
