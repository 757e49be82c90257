package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/awertt/midi-proxy/internal/scraper"
)

type fakeSearcher struct {
	mu     sync.Mutex
	limits scraper.Limits
	result scraper.SearchResult
	err    error
	got    []scraper.SearchRequest
}

func (f *fakeSearcher) Limits() scraper.Limits { return f.limits }

func (f *fakeSearcher) Search(_ context.Context, req scraper.SearchRequest) (scraper.SearchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.got = append(f.got, req)
	if f.err != nil {
		return scraper.SearchResult{Query: req.Query}, f.err
	}
	res := f.result
	res.Query = req.Query
	return res, nil
}

func (f *fakeSearcher) requests() []scraper.SearchRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]scraper.SearchRequest(nil), f.got...)
}

type fakeRelay struct {
	body string
	err  error
}

func (f fakeRelay) Fetch(_ context.Context, rawURL string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.body, nil
}

func newTestServer(searcher Searcher, relay Relayer) *Server {
	if searcher == nil {
		searcher = &fakeSearcher{limits: scraper.DefaultLimits()}
	}
	if relay == nil {
		relay = fakeRelay{body: "4d546864"}
	}
	return NewServer(searcher, relay, Options{}, zap.NewNop())
}

func serve(t *testing.T, s *Server, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var payload map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	return payload
}

func TestServer_Healthz(t *testing.T) {
	t.Parallel()

	rec := serve(t, newTestServer(nil, nil), "/healthz")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "OK", rec.Body.String())
	require.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestServer_Readyz(t *testing.T) {
	t.Parallel()

	rec := serve(t, newTestServer(nil, nil), "/readyz")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "ready")
}

func TestServer_MetricsEndpoint(t *testing.T) {
	t.Parallel()

	s := newTestServer(nil, nil)
	serve(t, s, "/healthz")
	rec := serve(t, s, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "http_requests_total")
}

func TestServer_CORSHeaders(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("Origin", "https://awertt.org")
	rec := httptest.NewRecorder()
	newTestServer(nil, nil).Handler().ServeHTTP(rec, req)

	require.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestServer_GetMidi(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		target string
		relay  fakeRelay
		code   int
		body   string
	}{
		{
			name:   "success",
			target: "/getMidi?url=https://bitmidi.com/uploads/1.mid",
			relay:  fakeRelay{body: "4d546864"},
			code:   http.StatusOK,
			body:   "4d546864",
		},
		{
			name:   "missing url",
			target: "/getMidi",
			code:   http.StatusBadRequest,
			body:   "Missing 'url' parameter",
		},
		{
			name:   "blank url",
			target: "/getMidi?url=%20%20",
			code:   http.StatusBadRequest,
			body:   "Missing 'url' parameter",
		},
		{
			name:   "malformed url",
			target: "/getMidi?url=nope",
			relay:  fakeRelay{err: fmt.Errorf("%w: %q", scraper.ErrInvalidURL, "nope")},
			code:   http.StatusBadRequest,
			body:   "Bad 'url'",
		},
		{
			name:   "non http scheme",
			target: "/getMidi?url=ftp://bitmidi.com/1.mid",
			relay:  fakeRelay{err: scraper.ErrUnsupportedScheme},
			code:   http.StatusBadRequest,
			body:   "Only http(s) URLs allowed",
		},
		{
			name:   "upstream status",
			target: "/getMidi?url=https://bitmidi.com/missing.mid",
			relay:  fakeRelay{err: fmt.Errorf("relay: %w", scraper.NewStatusError("https://bitmidi.com/missing.mid", http.StatusNotFound))},
			code:   http.StatusBadGateway,
			body:   "Fetch failed: 404 Not Found",
		},
		{
			name:   "transport failure",
			target: "/getMidi?url=https://bitmidi.com/slow.mid",
			relay:  fakeRelay{err: scraper.ErrTimeout},
			code:   http.StatusInternalServerError,
			body:   "Error fetching MIDI: upstream request timed out",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			rec := serve(t, newTestServer(nil, tt.relay), tt.target)
			require.Equal(t, tt.code, rec.Code)
			require.Equal(t, tt.body, rec.Body.String())
			require.Equal(t, "text/plain; charset=utf-8", rec.Header().Get("Content-Type"))
		})
	}
}

func TestServer_SearchSuccess(t *testing.T) {
	t.Parallel()

	kb := 512
	searcher := &fakeSearcher{
		limits: scraper.DefaultLimits(),
		result: scraper.SearchResult{
			PagesVisited: 2,
			Records: []scraper.Record{
				{Title: "Mario", PageURL: "https://bitmidi.com/mario-mid", DownloadURL: "https://bitmidi.com/uploads/2.mid"},
				{Title: "Zelda", PageURL: "https://bitmidi.com/zelda-mid", DownloadURL: "https://bitmidi.com/uploads/1.mid", SizeKB: &kb},
			},
		},
	}
	rec := serve(t, newTestServer(searcher, nil), "/bitmidi/search?q=%20test%20")

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	require.JSONEq(t, `{
		"query": "test",
		"pagesVisited": 2,
		"count": 2,
		"results": [
			{"title":"Mario","url":"https://bitmidi.com/uploads/2.mid","downloadUrl":"https://bitmidi.com/uploads/2.mid","pageUrl":"https://bitmidi.com/mario-mid","kb":null},
			{"title":"Zelda","url":"https://bitmidi.com/uploads/1.mid","downloadUrl":"https://bitmidi.com/uploads/1.mid","pageUrl":"https://bitmidi.com/zelda-mid","kb":512}
		]
	}`, rec.Body.String())
}

func TestServer_SearchEmptyResultsIsArray(t *testing.T) {
	t.Parallel()

	searcher := &fakeSearcher{limits: scraper.DefaultLimits(), result: scraper.SearchResult{PagesVisited: 1}}
	rec := serve(t, newTestServer(searcher, nil), "/bitmidi/search?q=none")

	require.Equal(t, http.StatusOK, rec.Code)
	payload := decodeJSON(t, rec)
	require.Equal(t, []any{}, payload["results"])
	require.EqualValues(t, 0, payload["count"])
}

func TestServer_SearchClampsParameters(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		target string
		want   scraper.SearchRequest
	}{
		{
			name:   "defaults",
			target: "/bitmidi/search?q=x",
			want:   scraper.SearchRequest{Query: "x", MaxPages: 3, MaxResults: 10, Concurrency: 6, Timeout: 15 * time.Second},
		},
		{
			name:   "ceilings",
			target: "/bitmidi/search?q=x&maxPages=99&maxResults=1000&concurrency=999&timeoutMs=999999",
			want:   scraper.SearchRequest{Query: "x", MaxPages: 10, MaxResults: 25, Concurrency: 24, Timeout: 30 * time.Second},
		},
		{
			name:   "floors and garbage",
			target: "/bitmidi/search?q=x&maxPages=0&maxResults=-4&concurrency=abc&timeoutMs=0",
			want:   scraper.SearchRequest{Query: "x", MaxPages: 1, MaxResults: 1, Concurrency: 6, Timeout: time.Millisecond},
		},
		{
			name:   "limit alias",
			target: "/bitmidi/search?q=x&limit=4",
			want:   scraper.SearchRequest{Query: "x", MaxPages: 3, MaxResults: 4, Concurrency: 6, Timeout: 15 * time.Second},
		},
		{
			name:   "maxResults wins over limit",
			target: "/bitmidi/search?q=x&limit=4&maxResults=7",
			want:   scraper.SearchRequest{Query: "x", MaxPages: 3, MaxResults: 7, Concurrency: 6, Timeout: 15 * time.Second},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			searcher := &fakeSearcher{limits: scraper.DefaultLimits()}
			rec := serve(t, newTestServer(searcher, nil), tt.target)
			require.Equal(t, http.StatusOK, rec.Code)
			require.Equal(t, []scraper.SearchRequest{tt.want}, searcher.requests())
		})
	}
}

func TestServer_SearchErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		target string
		err    error
		code   int
		msg    string
	}{
		{"missing q", "/bitmidi/search", nil, http.StatusBadRequest, "Missing 'q' parameter"},
		{"blank q", "/bitmidi/search?q=%20", nil, http.StatusBadRequest, "Missing 'q' parameter"},
		{
			"upstream unavailable", "/bitmidi/search?q=x",
			fmt.Errorf("%w: page 0", scraper.ErrSearchUnavailable), http.StatusBadGateway,
			"Search failed: search unavailable: page 0",
		},
		{"unexpected", "/bitmidi/search?q=x", errors.New("boom"), http.StatusInternalServerError, "boom"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			searcher := &fakeSearcher{limits: scraper.DefaultLimits(), err: tt.err}
			rec := serve(t, newTestServer(searcher, nil), tt.target)
			require.Equal(t, tt.code, rec.Code)
			require.Equal(t, tt.msg, decodeJSON(t, rec)["error"])
		})
	}
}

type panicSearcher struct{ fakeSearcher }

func (p *panicSearcher) Search(context.Context, scraper.SearchRequest) (scraper.SearchResult, error) {
	panic("kaboom")
}

func TestServer_RecoversFromPanics(t *testing.T) {
	t.Parallel()

	searcher := &panicSearcher{fakeSearcher{limits: scraper.DefaultLimits()}}
	rec := serve(t, newTestServer(searcher, nil), "/bitmidi/search?q=x")
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Contains(t, rec.Body.String(), "internal server error")
}

func TestServer_StaticAssets(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<h1>home</h1>"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "player.html"), []byte("<h1>player</h1>"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "app.js"), []byte("console.log(1)"), 0o600))

	s := NewServer(&fakeSearcher{limits: scraper.DefaultLimits()}, fakeRelay{}, Options{StaticDir: dir}, nil)

	rec := serve(t, s, "/")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "home")

	rec = serve(t, s, "/player")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "player")

	rec = serve(t, s, "/app.js")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "console.log")

	rec = serve(t, s, "/missing")
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = serve(t, s, "/healthz")
	require.Equal(t, "OK", rec.Body.String())
}

type slowSearcher struct {
	fakeSearcher
	delay time.Duration
}

func (s *slowSearcher) Search(ctx context.Context, req scraper.SearchRequest) (scraper.SearchResult, error) {
	time.Sleep(s.delay)
	return s.fakeSearcher.Search(ctx, req)
}

func TestServer_SearchIsNotCappedByRequestTimeout(t *testing.T) {
	t.Parallel()

	searcher := &slowSearcher{
		fakeSearcher: fakeSearcher{limits: scraper.DefaultLimits(), result: scraper.SearchResult{PagesVisited: 5}},
		delay:        150 * time.Millisecond,
	}
	s := NewServer(searcher, fakeRelay{}, Options{RequestTimeout: 50 * time.Millisecond}, nil)

	rec := serve(t, s, "/bitmidi/search?q=slow&timeoutMs=1000&maxPages=5")
	require.Equal(t, http.StatusOK, rec.Code)
	require.EqualValues(t, 5, decodeJSON(t, rec)["pagesVisited"])
}

type slowRelay struct{ delay time.Duration }

func (s slowRelay) Fetch(ctx context.Context, _ string) (string, error) {
	select {
	case <-time.After(s.delay):
		return "00", nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func TestServer_RequestTimeoutStillCapsRelay(t *testing.T) {
	t.Parallel()

	s := NewServer(&fakeSearcher{limits: scraper.DefaultLimits()}, slowRelay{delay: time.Second},
		Options{RequestTimeout: 50 * time.Millisecond}, nil)

	rec := serve(t, s, "/getMidi?url=https://bitmidi.com/uploads/1.mid")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.Contains(t, rec.Body.String(), "request timed out")
}
