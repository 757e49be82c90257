package scraper

import (
	"net/http"
	"time"
)

// SearchRequest captures one inbound search after clamping.
type SearchRequest struct {
	Query       string
	MaxPages    int
	MaxResults  int
	Concurrency int
	Timeout     time.Duration
}

// Record is one extracted, download-link-bearing result.
type Record struct {
	Title       string
	PageURL     string
	DownloadURL string
	SizeKB      *int
}

// SearchResult is returned by Service.Search.
type SearchResult struct {
	Query        string
	PagesVisited int
	Records      []Record
}

// Count reports the number of records.
func (r SearchResult) Count() int {
	return len(r.Records)
}

// FetchRequest captures everything needed for one bounded fetch.
type FetchRequest struct {
	URL     string
	Headers http.Header
	Timeout time.Duration
}

// FetchResponse is the result returned by a Fetcher implementation.
type FetchResponse struct {
	URL        string
	StatusCode int
	Headers    http.Header
	Body       []byte
	Duration   time.Duration
}
