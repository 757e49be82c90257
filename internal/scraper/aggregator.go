package scraper

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/awertt/midi-proxy/internal/dispatcher"
	"github.com/awertt/midi-proxy/internal/extract"
)

// Aggregator fetches detail pages with a bounded worker pool and turns them
// into records.
type Aggregator struct {
	fetcher  Fetcher
	upstream Upstream
	logger   *zap.Logger
}

// NewAggregator constructs an Aggregator.
func NewAggregator(fetcher Fetcher, upstream Upstream, logger *zap.Logger) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Aggregator{fetcher: fetcher, upstream: upstream, logger: logger}
}

// Aggregate visits every detail URL with at most concurrency workers. Pages
// that fail to fetch or carry no download link contribute nothing. The
// result is sorted by title; equal titles keep discovery order.
func (a *Aggregator) Aggregate(ctx context.Context, pageURLs []string, concurrency int, timeout time.Duration) []Record {
	records := dispatcher.Map(ctx, pageURLs, concurrency, func(ctx context.Context, pageURL string) (Record, bool) {
		return a.collect(ctx, pageURL, timeout)
	})
	SortByTitle(records)
	return records
}

func (a *Aggregator) collect(ctx context.Context, pageURL string, timeout time.Duration) (Record, bool) {
	resp, err := a.fetcher.Fetch(ctx, FetchRequest{
		URL:     pageURL,
		Headers: a.upstream.Headers(),
		Timeout: timeout,
	})
	if err != nil {
		a.logger.Warn("detail page skipped", zap.String("url", pageURL), zap.Error(err))
		return Record{}, false
	}
	doc, err := extract.Parse(resp.Body)
	if err != nil {
		a.logger.Warn("detail page parse failed", zap.String("url", pageURL), zap.Error(err))
		return Record{}, false
	}
	detail, ok := extract.ExtractDetail(doc, a.upstream.Base)
	if !ok {
		a.logger.Debug("detail page has no download link", zap.String("url", pageURL))
		return Record{}, false
	}
	return Record{
		Title:       detail.Title,
		PageURL:     pageURL,
		DownloadURL: detail.DownloadURL,
		SizeKB:      detail.SizeKB,
	}, true
}
