package scraper

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors shared by the fetcher, relay and search pipeline.
var (
	ErrTimeout           = errors.New("upstream request timed out")
	ErrTooManyRedirects  = errors.New("too many redirects")
	ErrInvalidURL        = errors.New("invalid url")
	ErrUnsupportedScheme = errors.New("only http(s) URLs allowed")
	ErrMissingQuery      = errors.New("missing query")
	ErrSearchUnavailable = errors.New("search unavailable")
)

// StatusError reports a non-2xx upstream response.
type StatusError struct {
	URL    string
	Code   int
	Status string
}

// NewStatusError builds a StatusError using the canonical status text.
func NewStatusError(rawURL string, code int) *StatusError {
	return &StatusError{URL: rawURL, Code: code, Status: http.StatusText(code)}
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%d %s", e.Code, e.Status)
}

// IsClientError reports whether err stems from caller input rather than the
// upstream.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidURL) ||
		errors.Is(err, ErrUnsupportedScheme) ||
		errors.Is(err, ErrMissingQuery)
}
