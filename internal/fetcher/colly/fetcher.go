// Package collyfetcher implements scraper.Fetcher using gocolly.
package collyfetcher

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/awertt/midi-proxy/internal/metrics"
	"github.com/awertt/midi-proxy/internal/scraper"
)

const (
	defaultTimeout      = 15 * time.Second
	defaultMaxRedirects = 10
)

// Config controls collector behavior.
type Config struct {
	UserAgent     string
	RespectRobots bool
	Timeout       time.Duration
	MaxRedirects  int
}

// Fetcher implements scraper.Fetcher with a fresh Colly collector per call.
// Collectors share one pooled transport but never share an http.Client, so
// per-call timeouts cannot leak across concurrent fetches.
type Fetcher struct {
	cfg       Config
	transport http.RoundTripper
	logger    *zap.Logger
}

type collectorHooks interface {
	OnRequest(colly.RequestCallback)
	OnResponse(colly.ResponseCallback)
	OnError(colly.ErrorCallback)
}

// New builds a Fetcher.
func New(cfg Config, logger *zap.Logger) *Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxRedirects <= 0 {
		cfg.MaxRedirects = defaultMaxRedirects
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics.Init()
	return &Fetcher{
		cfg:       cfg,
		transport: newHTTPTransport(),
		logger:    logger,
	}
}

// Fetch performs one GET bounded by request.Timeout (or the configured
// default). Non-2xx responses yield a *scraper.StatusError; an expired
// deadline yields an error wrapping scraper.ErrTimeout. No retries happen here.
func (f *Fetcher) Fetch(ctx context.Context, request scraper.FetchRequest) (scraper.FetchResponse, error) {
	timeout := request.Timeout
	if timeout <= 0 {
		timeout = f.cfg.Timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var (
		result   scraper.FetchResponse
		fetchErr error
	)
	start := time.Now()
	collector := f.buildCollector(ctx, timeout)
	f.configureCollectorHooks(collector, request, start, &result, &fetchErr)

	if err := f.runCollector(ctx, collector, request.URL, &fetchErr); err != nil {
		err = classify(ctx, err)
		metrics.ObserveFetch(request.URL, outcomeOf(err), 0, time.Since(start))
		f.logger.Debug("fetch failed", zap.String("url", request.URL), zap.Error(err))
		return scraper.FetchResponse{}, err
	}
	if result.StatusCode < http.StatusOK || result.StatusCode >= http.StatusMultipleChoices {
		err := scraper.NewStatusError(request.URL, result.StatusCode)
		metrics.ObserveFetch(request.URL, metrics.OutcomeStatus, 0, result.Duration)
		f.logger.Debug("upstream not ok", zap.String("url", request.URL), zap.Int("status", result.StatusCode))
		return scraper.FetchResponse{}, err
	}
	metrics.ObserveFetch(request.URL, metrics.OutcomeOK, len(result.Body), result.Duration)
	return result, nil
}

// buildCollector binds the collector to ctx so cancellation reaches the
// in-flight request. MaxBodySize 0 lifts colly's 10 MiB default; relayed
// files must round-trip unchanged.
func (f *Fetcher) buildCollector(ctx context.Context, timeout time.Duration) *colly.Collector {
	collector := colly.NewCollector(colly.Async(false), colly.StdlibContext(ctx))
	if f.cfg.UserAgent != "" {
		collector.UserAgent = f.cfg.UserAgent
	}
	collector.IgnoreRobotsTxt = !f.cfg.RespectRobots
	collector.AllowURLRevisit = true
	collector.ParseHTTPErrorResponse = true
	collector.MaxBodySize = 0
	collector.WithTransport(f.transport)
	collector.SetRequestTimeout(timeout)
	collector.SetRedirectHandler(f.redirectPolicy)
	return collector
}

func (f *Fetcher) redirectPolicy(_ *http.Request, via []*http.Request) error {
	if len(via) >= f.cfg.MaxRedirects {
		return fmt.Errorf("%w: stopped after %d", scraper.ErrTooManyRedirects, len(via))
	}
	return nil
}

func (f *Fetcher) configureCollectorHooks(
	hooks collectorHooks,
	request scraper.FetchRequest,
	start time.Time,
	result *scraper.FetchResponse,
	fetchErr *error,
) {
	hooks.OnRequest(func(r *colly.Request) {
		f.copyHeaders(request, r)
	})

	hooks.OnResponse(func(r *colly.Response) {
		finalURL := request.URL
		if r.Request != nil && r.Request.URL != nil {
			finalURL = r.Request.URL.String()
		}
		var headers http.Header
		if r.Headers != nil {
			headers = r.Headers.Clone()
		}
		*result = scraper.FetchResponse{
			URL:        finalURL,
			StatusCode: r.StatusCode,
			Headers:    headers,
			Body:       append([]byte(nil), r.Body...),
			Duration:   time.Since(start),
		}
	})

	hooks.OnError(func(_ *colly.Response, err error) {
		*fetchErr = err
	})
}

func (f *Fetcher) runCollector(ctx context.Context, collector *colly.Collector, url string, fetchErr *error) error {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("colly fetch canceled: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return fmt.Errorf("colly visit failed: %w", err)
		}
		if *fetchErr != nil {
			return fmt.Errorf("colly response failed: %w", *fetchErr)
		}
		return nil
	}
}

func (f *Fetcher) copyHeaders(request scraper.FetchRequest, r *colly.Request) {
	for key, values := range request.Headers {
		r.Headers.Del(key)
		for _, v := range values {
			r.Headers.Add(key, v)
		}
	}
}

func classify(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, scraper.ErrTooManyRedirects):
		return err
	case errors.Is(ctx.Err(), context.DeadlineExceeded), isTimeout(err):
		return fmt.Errorf("%w: %w", scraper.ErrTimeout, err)
	default:
		return err
	}
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func outcomeOf(err error) string {
	switch {
	case errors.Is(err, scraper.ErrTimeout):
		return metrics.OutcomeTimeout
	case errors.Is(err, scraper.ErrTooManyRedirects):
		return metrics.OutcomeRedirects
	default:
		return metrics.OutcomeError
	}
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   32,
		IdleConnTimeout:       90 * time.Second,
	}
}
