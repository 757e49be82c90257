package scraper

import (
	"context"
	"net/http"
	"sync"
	"time"
)

type fakePage struct {
	body  string
	err   error
	delay time.Duration
}

// fakeFetcher serves canned pages keyed by exact URL; unknown URLs are 404s.
type fakeFetcher struct {
	mu    sync.Mutex
	pages map[string]fakePage
	calls []string
}

func newFakeFetcher(pages map[string]fakePage) *fakeFetcher {
	return &fakeFetcher{pages: pages}
}

func (f *fakeFetcher) Fetch(ctx context.Context, req FetchRequest) (FetchResponse, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req.URL)
	page, ok := f.pages[req.URL]
	f.mu.Unlock()

	if page.delay > 0 {
		select {
		case <-time.After(page.delay):
		case <-ctx.Done():
			return FetchResponse{}, ctx.Err()
		}
	}
	if !ok {
		return FetchResponse{}, NewStatusError(req.URL, http.StatusNotFound)
	}
	if page.err != nil {
		return FetchResponse{}, page.err
	}
	return FetchResponse{URL: req.URL, StatusCode: http.StatusOK, Body: []byte(page.body)}, nil
}

func (f *fakeFetcher) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}
