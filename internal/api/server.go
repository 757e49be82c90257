package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/awertt/midi-proxy/internal/metrics"
	"github.com/awertt/midi-proxy/internal/scraper"
)

// Searcher runs the bitmidi search pipeline.
type Searcher interface {
	Limits() scraper.Limits
	Search(ctx context.Context, req scraper.SearchRequest) (scraper.SearchResult, error)
}

// Relayer fetches one remote resource and returns it hex encoded.
type Relayer interface {
	Fetch(ctx context.Context, rawURL string) (string, error)
}

// Options carries the HTTP-facing settings. RequestTimeout caps every route
// except /bitmidi/search.
type Options struct {
	StaticDir      string
	RequestTimeout time.Duration
	CORSOrigins    []string
}

// Server wires HTTP handlers to the search service and relay.
type Server struct {
	router   chi.Router
	searcher Searcher
	relay    Relayer
	logger   *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(searcher Searcher, relay Relayer, opts Options, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 120 * time.Second
	}
	if len(opts.CORSOrigins) == 0 {
		opts.CORSOrigins = []string{"*"}
	}
	metrics.Init()

	s := &Server{
		searcher: searcher,
		relay:    relay,
		logger:   logger,
	}
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	r.Use(metrics.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: opts.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodHead, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	// Search is bounded per upstream call and by the page and result
	// ceilings, so it stays outside the whole-request timeout.
	r.Get("/bitmidi/search", s.search)

	r.Group(func(r chi.Router) {
		r.Use(timeoutMiddleware(opts.RequestTimeout))

		r.Get("/healthz", s.healthz)
		r.Get("/readyz", s.readyz)
		r.Method(http.MethodGet, "/metrics", metrics.Handler())

		r.Get("/getMidi", s.getMidi)

		if opts.StaticDir != "" {
			static := staticHandler(opts.StaticDir)
			r.Get("/*", static.ServeHTTP)
			r.Head("/*", static.ServeHTTP)
		}
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	s.writeText(w, http.StatusOK, "OK")
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
