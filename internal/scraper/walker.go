package scraper

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/awertt/midi-proxy/internal/extract"
)

// WalkResult is the outcome of walking the search listing.
type WalkResult struct {
	// Links holds detail-page URLs in first-seen order.
	Links []string
	// PagesVisited counts pages for which a fetch was attempted.
	PagesVisited int
}

// Walker visits search listing pages strictly in index order.
type Walker struct {
	fetcher  Fetcher
	upstream Upstream
	logger   *zap.Logger
}

// NewWalker constructs a Walker.
func NewWalker(fetcher Fetcher, upstream Upstream, logger *zap.Logger) *Walker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Walker{fetcher: fetcher, upstream: upstream, logger: logger}
}

// Walk collects detail links for query. It stops on the first page with no
// links, a fetch failure past page 0, maxPages, or once maxResults links are
// held; each of those is a normal stop. Only a page 0
// failure in both paginated and plain form is returned as an error.
func (w *Walker) Walk(ctx context.Context, query string, maxPages, maxResults int, timeout time.Duration) (WalkResult, error) {
	var result WalkResult
	seen := make(map[string]struct{})

	for page := 0; page < maxPages; page++ {
		if ctx.Err() != nil {
			break
		}
		body, err := w.fetchPage(ctx, query, page, timeout)
		result.PagesVisited++
		if err != nil {
			if page == 0 {
				return result, fmt.Errorf("%w: %w", ErrSearchUnavailable, err)
			}
			w.logger.Warn("search page fetch failed, keeping partial results",
				zap.Int("page", page), zap.Error(err))
			break
		}

		doc, err := extract.Parse(body)
		if err != nil {
			w.logger.Warn("search page parse failed", zap.Int("page", page), zap.Error(err))
			break
		}
		found := extract.DetailLinks(doc, w.upstream.Base)
		if len(found) == 0 {
			w.logger.Debug("search page empty, stopping", zap.Int("page", page))
			break
		}

		for _, link := range found {
			if _, dup := seen[link]; dup {
				continue
			}
			seen[link] = struct{}{}
			result.Links = append(result.Links, link)
		}
		if len(result.Links) >= maxResults {
			result.Links = result.Links[:maxResults]
			break
		}
	}
	return result, nil
}

func (w *Walker) fetchPage(ctx context.Context, query string, page int, timeout time.Duration) ([]byte, error) {
	resp, err := w.fetcher.Fetch(ctx, FetchRequest{
		URL:     w.upstream.SearchURL(query, page, true),
		Headers: w.upstream.Headers(),
		Timeout: timeout,
	})
	if err == nil {
		return resp.Body, nil
	}
	if page != 0 {
		return nil, err
	}
	w.logger.Debug("paginated first page failed, retrying plain form", zap.Error(err))
	resp, err = w.fetcher.Fetch(ctx, FetchRequest{
		URL:     w.upstream.SearchURL(query, 0, false),
		Headers: w.upstream.Headers(),
		Timeout: timeout,
	})
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}
