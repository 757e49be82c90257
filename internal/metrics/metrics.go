// Package metrics exposes Prometheus collectors for the relay service.
package metrics

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Fetch outcome label values.
const (
	OutcomeOK        = "ok"
	OutcomeStatus    = "status"
	OutcomeTimeout   = "timeout"
	OutcomeRedirects = "redirects"
	OutcomeError     = "error"
)

var (
	upstreamFetchTotal         *prometheus.CounterVec
	upstreamBytesTotal         *prometheus.CounterVec
	upstreamFetchDuration      *prometheus.HistogramVec
	searchPagesVisited         prometheus.Histogram
	searchRecordsTotal         prometheus.Counter
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		upstreamFetchTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "midiproxy_upstream_fetch_total",
				Help: "Total number of upstream fetches, labeled by site and outcome.",
			},
			[]string{"site", "outcome"},
		)

		upstreamBytesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "midiproxy_upstream_bytes_total",
				Help: "Total number of bytes fetched from upstream, labeled by site.",
			},
			[]string{"site"},
		)

		upstreamFetchDuration = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "midiproxy_upstream_fetch_duration_seconds",
				Help:    "Histogram of upstream fetch latencies, labeled by outcome.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 15, 30},
			},
			[]string{"outcome"},
		)

		searchPagesVisited = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "midiproxy_search_pages_visited",
				Help:    "Number of search result pages walked per search.",
				Buckets: []float64{0, 1, 2, 3, 5, 10},
			},
		)

		searchRecordsTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "midiproxy_search_records_total",
				Help: "Total number of records returned by searches.",
			},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)
	})
}

// SanitizeSite sanitizes a URL to extract a lowercase hostname.
// It returns "unknown" if the URL is invalid.
func SanitizeSite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveFetch records one upstream fetch.
func ObserveFetch(rawURL, outcome string, bytesFetched int, duration time.Duration) {
	Init()
	site := SanitizeSite(rawURL)
	upstreamFetchTotal.WithLabelValues(site, outcome).Inc()
	if bytesFetched > 0 {
		upstreamBytesTotal.WithLabelValues(site).Add(float64(bytesFetched))
	}
	upstreamFetchDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

// ObserveSearch records the shape of one finished search.
func ObserveSearch(pagesVisited, records int) {
	Init()
	searchPagesVisited.Observe(float64(pagesVisited))
	searchRecordsTotal.Add(float64(records))
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
