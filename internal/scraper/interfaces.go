package scraper

import "context"

// Fetcher performs one bounded outbound GET. Implementations return a
// *StatusError for non-2xx responses and wrap ErrTimeout when the deadline
// passes.
type Fetcher interface {
	Fetch(ctx context.Context, request FetchRequest) (FetchResponse, error)
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, request FetchRequest) (FetchResponse, error)

// Fetch calls f.
func (f FetcherFunc) Fetch(ctx context.Context, request FetchRequest) (FetchResponse, error) {
	return f(ctx, request)
}
