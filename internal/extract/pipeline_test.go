package extract_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/directory-crawler/internal/browser/browsertest"
	"github.com/JakeFAU/directory-crawler/internal/extract"
	"github.com/JakeFAU/directory-crawler/internal/profile"
)

const profileURL = "https://directory.example.com/users/jane"

func fixture(t *testing.T, name string) string {
	t.Helper()
	html, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err)
	return string(html)
}

func TestPipelineExtractPrimaryOnly(t *testing.T) {
	t.Parallel()

	session := browsertest.New(map[string]string{profileURL: fixture(t, "profile.html")})
	p := extract.NewPipeline(session, extract.DefaultSelectors(), extract.Options{}, zap.NewNop())

	rec, err := p.Extract(context.Background(), profileURL)
	require.NoError(t, err)

	assert.Equal(t, profileURL, rec.URL)
	assert.Equal(t, "Jane Q. Doe '97", rec.Name)
	assert.Equal(t, []string{"jane.doe@example.org"}, rec.Emails)
	assert.Empty(t, rec.Phones)
	assert.Equal(t, "Boston", rec.City)
	assert.Equal(t, "MA", rec.Region)
	assert.Equal(t, "1997", rec.ClassYear)
	assert.True(t, rec.Usable())
	assert.Equal(t, 1, session.Snapshots(), "one snapshot per profile")
	assert.Equal(t, []string{profileURL}, session.Navigations())
}

func TestPipelineExtractAllEmailsAndPhones(t *testing.T) {
	t.Parallel()

	session := browsertest.New(map[string]string{profileURL: fixture(t, "profile.html")})
	opts := extract.Options{IncludeAllEmails: true, IncludePhone: true}
	p := extract.NewPipeline(session, extract.DefaultSelectors(), opts, nil)

	rec, err := p.Extract(context.Background(), profileURL)
	require.NoError(t, err)
	assert.Equal(t, []string{"jane.doe@example.org", "jdoe@alumni.example.edu"}, rec.Emails)
	assert.Equal(t, []string{"6095550101", "+16095550199"}, rec.Phones)
}

func TestPipelineTimeoutKeepsIdentity(t *testing.T) {
	t.Parallel()

	session := browsertest.New(map[string]string{profileURL: "<html><body><h1>Loading</h1></body></html>"})
	p := extract.NewPipeline(session, extract.DefaultSelectors(), extract.Options{}, zap.NewNop())

	rec, err := p.Extract(context.Background(), profileURL)
	require.ErrorIs(t, err, extract.ErrProfileTimeout)
	assert.Equal(t, profile.Record{URL: profileURL}, rec, "only the identity key is set")
	assert.False(t, rec.Usable())
	assert.Zero(t, session.Snapshots())
}

func TestPipelineNavigationFault(t *testing.T) {
	t.Parallel()

	session := browsertest.New(nil)
	boom := errors.New("net::ERR_CONNECTION_RESET")
	session.FailNavigation(profileURL, boom)
	p := extract.NewPipeline(session, extract.DefaultSelectors(), extract.Options{}, zap.NewNop())

	_, err := p.Extract(context.Background(), profileURL)
	require.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, extract.ErrProfileTimeout)
}

func TestPipelineExtractDocumentIsPure(t *testing.T) {
	t.Parallel()

	doc, err := extract.NewDocument(profileURL, fixture(t, "sparse.html"))
	require.NoError(t, err)
	p := extract.NewPipeline(browsertest.New(nil), extract.DefaultSelectors(), extract.Options{}, zap.NewNop())

	first := p.ExtractDocument(doc, profileURL)
	second := p.ExtractDocument(doc, profileURL)
	assert.Equal(t, first, second)
	assert.Equal(t, "Sam Roe", first.Name)
	assert.Equal(t, "sam.roe@example.com", first.PrimaryEmail())
	assert.Equal(t, "2004", first.ClassYear)
}

func TestPipelineKeepsMailtoAddressIntact(t *testing.T) {
	t.Parallel()

	html := `<html><body><h1>Pat O'Neil</h1>
<div data-testid="display-attribute-email"><a href="mailto:pat.o'neil@princeton.edu">Email</a></div>
</body></html>`
	doc, err := extract.NewDocument(profileURL, html)
	require.NoError(t, err)
	p := extract.NewPipeline(browsertest.New(nil), extract.DefaultSelectors(), extract.Options{}, zap.NewNop())

	rec := p.ExtractDocument(doc, profileURL)
	assert.Equal(t, []string{"pat.o'neil@princeton.edu"}, rec.Emails)
	assert.True(t, rec.Usable())
}
