package metrics

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/directory-crawler/internal/crawler"
)

func get(t *testing.T, url string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Get(url) //nolint:noctx // test helper
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, body
}

func TestServerRoutes(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	id := uuid.MustParse("0190b7a4-0000-7000-8000-000000000001")
	snap := func() crawler.Session {
		return crawler.Session{ID: id, State: crawler.StateScrapingProfile, Page: 4, Stored: 17, Target: 50}
	}
	s, err := NewServer(reg, snap, nil)
	require.NoError(t, err)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	resp, body := get(t, ts.URL+"/healthz")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
	assert.JSONEq(t, `{"status":"ok"}`, string(body))

	resp, body = get(t, ts.URL+"/status")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var st Status
	require.NoError(t, json.Unmarshal(body, &st))
	assert.Equal(t, Status{SessionID: id.String(), State: "scraping-profile", Page: 4, Stored: 17, Target: 50}, st)

	resp, body = get(t, ts.URL+"/metrics")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "dircrawler_http_requests_total")

	resp, _ = get(t, ts.URL+"/nope")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	assert.InDelta(t, 3, testutil.ToFloat64(s.stats.requests.WithLabelValues("GET", "200")), 0.001)
	assert.InDelta(t, 1, testutil.ToFloat64(s.stats.requests.WithLabelValues("GET", "404")), 0.001)
}

func TestStatusWithoutCrawl(t *testing.T) {
	t.Parallel()

	s, err := NewServer(prometheus.NewRegistry(), nil, nil)
	require.NoError(t, err)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRecoverMiddleware(t *testing.T) {
	t.Parallel()

	h := recoverMiddleware(zap.NewNop())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestDuplicateRegistrationFails(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	_, err := NewServer(reg, nil, nil)
	require.NoError(t, err)
	_, err = NewServer(reg, nil, nil)
	require.Error(t, err)
}

func TestStartAndShutdown(t *testing.T) {
	t.Parallel()

	s, err := NewServer(prometheus.NewRegistry(), nil, nil)
	require.NoError(t, err)
	require.NoError(t, s.Start("127.0.0.1:0"))
	require.Error(t, s.Start("127.0.0.1:0"))

	resp, _ := get(t, "http://"+s.Addr()+"/healthz")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Shutdown(ctx))
}
