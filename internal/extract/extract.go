// Package extract pulls detail-page links and record fields out of upstream
// markup. Every function is pure over a parsed goquery document so it can be
// exercised against canned fixtures.
package extract

import (
	"bytes"
	"fmt"
	"math"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var (
	detailPathPattern   = regexp.MustCompile(`(?i)^(?:/[a-z0-9-]+)*/[a-z0-9-]+-mid$`)
	downloadPathPattern = regexp.MustCompile(`(?i)\.mid$`)
	sizePattern         = regexp.MustCompile(`(?i)([0-9]+(?:\.[0-9]+)?)\s*(KB|MB)\b`)
)

// Detail holds the fields scraped from one detail page.
type Detail struct {
	Title       string
	DownloadURL string
	SizeKB      *int
}

// Parse builds a document from raw markup.
func Parse(body []byte) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return doc, nil
}

// DetailLinks returns every anchor whose resolved path looks like a detail
// page, deduplicated by absolute URL and kept in first-seen order.
func DetailLinks(doc *goquery.Document, base *url.URL) []string {
	seen := make(map[string]struct{})
	var links []string
	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		resolved, ok := resolve(base, a.AttrOr("href", ""))
		if !ok || !detailPathPattern.MatchString(resolved.Path) {
			return
		}
		abs := resolved.String()
		if _, dup := seen[abs]; dup {
			return
		}
		seen[abs] = struct{}{}
		links = append(links, abs)
	})
	return links
}

// ExtractDetail reads title, download link and size from a detail page.
// ok is false when the page carries no download link.
func ExtractDetail(doc *goquery.Document, base *url.URL) (Detail, bool) {
	download, ok := DownloadURL(doc, base)
	if !ok {
		return Detail{}, false
	}
	return Detail{
		Title:       Title(doc),
		DownloadURL: download,
		SizeKB:      SizeKB(doc.Find("body").Text()),
	}, true
}

// Title prefers the first h1 and falls back to the document title.
func Title(doc *goquery.Document) string {
	if h1 := strings.TrimSpace(doc.Find("h1").First().Text()); h1 != "" {
		return h1
	}
	return strings.TrimSpace(doc.Find("title").First().Text())
}

// DownloadURL returns the first anchor whose resolved path ends in ".mid".
func DownloadURL(doc *goquery.Document, base *url.URL) (string, bool) {
	var found string
	doc.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		resolved, ok := resolve(base, a.AttrOr("href", ""))
		if !ok || !downloadPathPattern.MatchString(resolved.Path) {
			return true
		}
		found = resolved.String()
		return false
	})
	return found, found != ""
}

// SizeKB finds the first "<n> KB" or "<n> MB" mention and converts it to
// whole kilobytes. It returns nil when the text has no size or the value does
// not fit in an int32.
func SizeKB(text string) *int {
	m := sizePattern.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return nil
	}
	if strings.EqualFold(m[2], "MB") {
		v *= 1024
	}
	v = math.Round(v)
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 || v > math.MaxInt32 {
		return nil
	}
	kb := int(v)
	return &kb
}

func resolve(base *url.URL, href string) (*url.URL, bool) {
	href = strings.TrimSpace(href)
	if href == "" {
		return nil, false
	}
	ref, err := url.Parse(href)
	if err != nil {
		return nil, false
	}
	resolved := base.ResolveReference(ref)
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return nil, false
	}
	resolved.Fragment = ""
	resolved.RawFragment = ""
	return resolved, true
}
