package scraper

import (
	"context"

	"go.uber.org/zap"

	"github.com/awertt/midi-proxy/internal/metrics"
)

// Service runs the full search pipeline: walk listing pages, then aggregate
// detail pages.
type Service struct {
	walker     *Walker
	aggregator *Aggregator
	limits     Limits
	logger     *zap.Logger
}

// NewService wires a walker and aggregator over one fetcher.
func NewService(fetcher Fetcher, upstream Upstream, limits Limits, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		walker:     NewWalker(fetcher, upstream, logger.Named("walker")),
		aggregator: NewAggregator(fetcher, upstream, logger.Named("aggregator")),
		limits:     limits,
		logger:     logger,
	}
}

// Limits returns the clamping bounds used by the service.
func (s *Service) Limits() Limits {
	return s.limits
}

// Search clamps req and runs the pipeline. The returned error is non-nil only
// for a blank query or when the first listing page cannot be fetched.
func (s *Service) Search(ctx context.Context, req SearchRequest) (SearchResult, error) {
	req = s.limits.Clamp(req)
	if req.Query == "" {
		return SearchResult{}, ErrMissingQuery
	}
	result := SearchResult{Query: req.Query, Records: []Record{}}

	walk, err := s.walker.Walk(ctx, req.Query, req.MaxPages, req.MaxResults, req.Timeout)
	result.PagesVisited = walk.PagesVisited
	if err != nil {
		metrics.ObserveSearch(result.PagesVisited, 0)
		return result, err
	}

	if records := s.aggregator.Aggregate(ctx, walk.Links, req.Concurrency, req.Timeout); records != nil {
		result.Records = records
	}
	s.logger.Info("search finished",
		zap.String("query", req.Query),
		zap.Int("pages_visited", result.PagesVisited),
		zap.Int("links", len(walk.Links)),
		zap.Int("records", len(result.Records)),
	)
	metrics.ObserveSearch(result.PagesVisited, len(result.Records))
	return result, nil
}
