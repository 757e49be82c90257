// Package relay fetches a single remote resource and re-encodes it as
// lowercase hexadecimal text.
package relay

import (
	"context"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/awertt/midi-proxy/internal/scraper"
)

// Config controls relay behavior.
type Config struct {
	Timeout           time.Duration
	Referer           string
	RefererHostSuffix string
}

// Relay fetches one resource with the bounded-fetch discipline.
type Relay struct {
	fetcher scraper.Fetcher
	cfg     Config
	logger  *zap.Logger
}

// New constructs a Relay.
func New(fetcher scraper.Fetcher, cfg Config, logger *zap.Logger) *Relay {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Relay{fetcher: fetcher, cfg: cfg, logger: logger}
}

// Validate parses raw and accepts only absolute http(s) URLs.
func Validate(raw string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || !u.IsAbs() {
		return nil, fmt.Errorf("%w: %q", scraper.ErrInvalidURL, raw)
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
	default:
		return nil, fmt.Errorf("%w: scheme %q", scraper.ErrUnsupportedScheme, u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("%w: %q", scraper.ErrInvalidURL, raw)
	}
	return u, nil
}

// Fetch validates raw, downloads it and returns the body as lowercase hex.
// Input problems are reported before any network call is made.
func (r *Relay) Fetch(ctx context.Context, raw string) (string, error) {
	u, err := Validate(raw)
	if err != nil {
		return "", err
	}
	resp, err := r.fetcher.Fetch(ctx, scraper.FetchRequest{
		URL:     u.String(),
		Headers: r.headersFor(u),
		Timeout: r.cfg.Timeout,
	})
	if err != nil {
		r.logger.Warn("relay fetch failed", zap.String("url", u.String()), zap.Error(err))
		return "", fmt.Errorf("relay %s: %w", u.Redacted(), err)
	}
	return hex.EncodeToString(resp.Body), nil
}

func (r *Relay) headersFor(u *url.URL) http.Header {
	h := http.Header{}
	h.Set("Accept", "*/*")
	if r.cfg.Referer != "" && hostMatches(u.Hostname(), r.cfg.RefererHostSuffix) {
		h.Set("Referer", r.cfg.Referer)
	}
	return h
}

func hostMatches(host, suffix string) bool {
	host = strings.ToLower(strings.TrimSuffix(host, "."))
	suffix = strings.ToLower(strings.TrimPrefix(suffix, "."))
	if suffix == "" {
		return false
	}
	return host == suffix || strings.HasSuffix(host, "."+suffix)
}
