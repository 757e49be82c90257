package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/awertt/midi-proxy/internal/scraper"
)

// SearchResponse is the JSON body of a successful search.
type SearchResponse struct {
	Query        string         `json:"query"`
	PagesVisited int            `json:"pagesVisited"`
	Count        int            `json:"count"`
	Results      []SearchRecord `json:"results"`
}

// SearchRecord is one search hit. URL duplicates DownloadURL.
type SearchRecord struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	DownloadURL string `json:"downloadUrl"`
	PageURL     string `json:"pageUrl"`
	KB          *int   `json:"kb"`
}

// NewSearchResponse converts a pipeline result into its wire shape.
func NewSearchResponse(res scraper.SearchResult) SearchResponse {
	out := SearchResponse{
		Query:        res.Query,
		PagesVisited: res.PagesVisited,
		Count:        res.Count(),
		Results:      make([]SearchRecord, 0, len(res.Records)),
	}
	for _, rec := range res.Records {
		out.Results = append(out.Results, SearchRecord{
			Title:       rec.Title,
			URL:         rec.DownloadURL,
			DownloadURL: rec.DownloadURL,
			PageURL:     rec.PageURL,
			KB:          rec.SizeKB,
		})
	}
	return out
}

func (s *Server) getMidi(w http.ResponseWriter, r *http.Request) {
	raw := strings.TrimSpace(r.URL.Query().Get("url"))
	if raw == "" {
		s.writeText(w, http.StatusBadRequest, "Missing 'url' parameter")
		return
	}
	encoded, err := s.relay.Fetch(r.Context(), raw)
	if err != nil {
		status, msg := relayError(err)
		if status >= http.StatusInternalServerError {
			s.logger.Warn("getMidi failed", zap.String("url", raw), zap.Int("status", status), zap.Error(err))
		}
		s.writeText(w, status, msg)
		return
	}
	s.writeText(w, http.StatusOK, encoded)
}

func relayError(err error) (int, string) {
	var statusErr *scraper.StatusError
	switch {
	case errors.Is(err, scraper.ErrUnsupportedScheme):
		return http.StatusBadRequest, "Only http(s) URLs allowed"
	case errors.Is(err, scraper.ErrInvalidURL):
		return http.StatusBadRequest, "Bad 'url'"
	case errors.As(err, &statusErr):
		return http.StatusBadGateway, "Fetch failed: " + statusErr.Error()
	default:
		return http.StatusInternalServerError, "Error fetching MIDI: " + err.Error()
	}
}

func (s *Server) search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	maxResults := q.Get("maxResults")
	if !q.Has("maxResults") {
		maxResults = q.Get("limit")
	}
	req, err := s.searcher.Limits().Normalize(scraper.RawSearchParams{
		Query:       q.Get("q"),
		MaxPages:    q.Get("maxPages"),
		MaxResults:  maxResults,
		Concurrency: q.Get("concurrency"),
		TimeoutMs:   q.Get("timeoutMs"),
	})
	if err != nil {
		s.writeSearchError(w, err)
		return
	}
	res, err := s.searcher.Search(r.Context(), req)
	if err != nil {
		s.writeSearchError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, NewSearchResponse(res))
}

func (s *Server) writeSearchError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, scraper.ErrMissingQuery):
		s.writeError(w, http.StatusBadRequest, "Missing 'q' parameter")
	case errors.Is(err, scraper.ErrSearchUnavailable):
		s.logger.Warn("search upstream unavailable", zap.Error(err))
		s.writeError(w, http.StatusBadGateway, "Search failed: "+err.Error())
	default:
		s.logger.Error("search failed", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("write JSON failed", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) writeText(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	if _, err := w.Write([]byte(body)); err != nil {
		s.logger.Error("write text failed", zap.Error(err))
	}
}
