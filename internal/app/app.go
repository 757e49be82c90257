// Package app initializes and holds long-lived application services, acting as a dependency injection container.
package app

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/awertt/midi-proxy/internal/api"
	"github.com/awertt/midi-proxy/internal/config"
	collyfetcher "github.com/awertt/midi-proxy/internal/fetcher/colly"
	"github.com/awertt/midi-proxy/internal/logging"
	"github.com/awertt/midi-proxy/internal/relay"
	"github.com/awertt/midi-proxy/internal/scraper"
)

// App holds all the shared, long-lived services for the application.
// It is built once per CLI invocation and handed to the command that runs.
type App struct {
	cfg     config.Config
	logger  *zap.Logger
	fetcher scraper.Fetcher
	search  *scraper.Service
	relay   *relay.Relay
	server  *api.Server
}

// GetConfig returns the validated configuration the app was built from.
func (a *App) GetConfig() config.Config {
	return a.cfg
}

// GetLogger returns the shared zap logger.
func (a *App) GetLogger() *zap.Logger {
	return a.logger
}

// GetSearch returns the bitmidi search service.
func (a *App) GetSearch() *scraper.Service {
	return a.search
}

// GetRelay returns the single-resource relay.
func (a *App) GetRelay() *relay.Relay {
	return a.relay
}

// GetServer returns the HTTP API server.
func (a *App) GetServer() *api.Server {
	return a.server
}

// New builds the logger first, then the outbound fetcher shared by the relay
// and the search pipeline, then the HTTP server on top of both.
func New(cfg config.Config) (*App, error) {
	logger, err := logging.New(cfg.Logging.Development, cfg.Logging.Level)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	return NewWithLogger(cfg, logger)
}

// NewWithLogger is New with a caller-supplied logger.
func NewWithLogger(cfg config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	fetcher := collyfetcher.New(collyfetcher.Config{
		UserAgent:     cfg.Upstream.UserAgent,
		RespectRobots: cfg.HTTP.RespectRobots,
		Timeout:       cfg.RelayTimeout(),
		MaxRedirects:  cfg.HTTP.MaxRedirects,
	}, logger.Named("fetcher"))

	upstream, err := scraper.NewUpstream(
		cfg.Upstream.BaseURL,
		cfg.Upstream.SearchPath,
		cfg.Upstream.QueryParam,
		cfg.Upstream.PageParam,
	)
	if err != nil {
		return nil, fmt.Errorf("init upstream: %w", err)
	}

	search := scraper.NewService(fetcher, upstream, cfg.SearchLimits(), logger.Named("search"))
	rel := relay.New(fetcher, relay.Config{
		Timeout:           cfg.RelayTimeout(),
		Referer:           cfg.Upstream.Referer,
		RefererHostSuffix: cfg.Upstream.RefererHostSuffix,
	}, logger.Named("relay"))
	server := api.NewServer(search, rel, api.Options{
		StaticDir:      cfg.Server.StaticDir,
		RequestTimeout: cfg.RequestTimeout(),
		CORSOrigins:    cfg.Server.CORSOrigins,
	}, logger.Named("api"))

	logger.Info("application services initialized",
		zap.String("upstream", upstream.Base.String()),
		zap.Int("port", cfg.Server.Port),
	)

	return &App{
		cfg:     cfg,
		logger:  logger,
		fetcher: fetcher,
		search:  search,
		relay:   rel,
		server:  server,
	}, nil
}

// Close flushes the logger. It is called by a Cobra hook after the command finishes.
func (a *App) Close() {
	a.logger.Debug("shutting down application services")
	_ = a.logger.Sync() //nolint:errcheck // stdout sync fails on some terminals
}
