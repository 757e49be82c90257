package scraper

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

// Upstream describes the search site being scraped.
type Upstream struct {
	Base       *url.URL
	SearchPath string
	QueryParam string
	PageParam  string
	Accept     string
}

// NewUpstream parses baseURL and fills parameter names.
func NewUpstream(baseURL, searchPath, queryParam, pageParam string) (Upstream, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return Upstream{}, fmt.Errorf("parse upstream base url: %w", err)
	}
	if (base.Scheme != "http" && base.Scheme != "https") || base.Host == "" {
		return Upstream{}, fmt.Errorf("upstream base url %q must be absolute http(s)", baseURL)
	}
	if searchPath == "" {
		searchPath = "/search"
	}
	if queryParam == "" {
		queryParam = "q"
	}
	if pageParam == "" {
		pageParam = "page"
	}
	return Upstream{
		Base:       base,
		SearchPath: searchPath,
		QueryParam: queryParam,
		PageParam:  pageParam,
		Accept:     "text/html,*/*",
	}, nil
}

// SearchURL builds the listing URL for query. When paginated is false the
// page parameter is omitted, which the site treats as the first page.
func (u Upstream) SearchURL(query string, page int, paginated bool) string {
	target := u.Base.ResolveReference(&url.URL{Path: u.SearchPath})
	values := url.Values{}
	values.Set(u.QueryParam, query)
	if paginated {
		values.Set(u.PageParam, strconv.Itoa(page))
	}
	target.RawQuery = values.Encode()
	return target.String()
}

// Headers returns the request headers sent for HTML pages.
func (u Upstream) Headers() http.Header {
	h := http.Header{}
	if u.Accept != "" {
		h.Set("Accept", u.Accept)
	}
	return h
}
