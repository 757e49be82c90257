package scraper

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// Limits holds per-parameter defaults and ceilings for search requests.
type Limits struct {
	DefaultMaxPages    int
	MaxPagesCeiling    int
	DefaultMaxResults  int
	MaxResultsCeiling  int
	DefaultConcurrency int
	ConcurrencyCeiling int
	DefaultTimeout     time.Duration
	TimeoutCeiling     time.Duration
}

// DefaultLimits mirrors the configuration defaults.
func DefaultLimits() Limits {
	return Limits{
		DefaultMaxPages:    3,
		MaxPagesCeiling:    10,
		DefaultMaxResults:  10,
		MaxResultsCeiling:  25,
		DefaultConcurrency: 6,
		ConcurrencyCeiling: 24,
		DefaultTimeout:     15 * time.Second,
		TimeoutCeiling:     30 * time.Second,
	}
}

// RawSearchParams carries untrusted query-string values.
type RawSearchParams struct {
	Query       string
	MaxPages    string
	MaxResults  string
	Concurrency string
	TimeoutMs   string
}

// Normalize turns raw parameters into a SearchRequest. Numeric values are
// never rejected: absent or non-numeric values take the default, everything
// else is clamped into [1, ceiling]. Only a blank query is an error.
func (l Limits) Normalize(raw RawSearchParams) (SearchRequest, error) {
	query := strings.TrimSpace(raw.Query)
	if query == "" {
		return SearchRequest{}, ErrMissingQuery
	}
	timeoutMs := clampInt(
		raw.TimeoutMs,
		int(l.DefaultTimeout/time.Millisecond),
		int(l.TimeoutCeiling/time.Millisecond),
	)
	return SearchRequest{
		Query:       query,
		MaxPages:    clampInt(raw.MaxPages, l.DefaultMaxPages, l.MaxPagesCeiling),
		MaxResults:  clampInt(raw.MaxResults, l.DefaultMaxResults, l.MaxResultsCeiling),
		Concurrency: clampInt(raw.Concurrency, l.DefaultConcurrency, l.ConcurrencyCeiling),
		Timeout:     time.Duration(timeoutMs) * time.Millisecond,
	}, nil
}

// Clamp applies the same bounds to an already-typed request. Zero fields are
// treated as absent and take the default.
func (l Limits) Clamp(req SearchRequest) SearchRequest {
	req.Query = strings.TrimSpace(req.Query)
	req.MaxPages = clamp(orDefault(req.MaxPages, l.DefaultMaxPages), l.MaxPagesCeiling)
	req.MaxResults = clamp(orDefault(req.MaxResults, l.DefaultMaxResults), l.MaxResultsCeiling)
	req.Concurrency = clamp(orDefault(req.Concurrency, l.DefaultConcurrency), l.ConcurrencyCeiling)
	ms := clamp(
		orDefault(int(req.Timeout/time.Millisecond), int(l.DefaultTimeout/time.Millisecond)),
		int(l.TimeoutCeiling/time.Millisecond),
	)
	req.Timeout = time.Duration(ms) * time.Millisecond
	return req
}

func orDefault(value, def int) int {
	if value == 0 {
		return def
	}
	return value
}

func clampInt(raw string, def, ceiling int) int {
	value, ok := parseLenientInt(raw)
	if !ok {
		value = def
	}
	return clamp(value, ceiling)
}

func clamp(value, ceiling int) int {
	if ceiling < 1 {
		ceiling = 1
	}
	return min(max(value, 1), ceiling)
}

// parseLenientInt accepts integers and truncates finite decimals ("5.9" -> 5).
func parseLenientInt(raw string) (int, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false
	}
	if v, err := strconv.Atoi(raw); err == nil {
		return v, true
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	switch {
	case f > math.MaxInt32:
		return math.MaxInt32, true
	case f < math.MinInt32:
		return math.MinInt32, true
	}
	return int(f), true
}
