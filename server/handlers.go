package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/stb-erben/sitescope/pkg/feed"
	"github.com/stb-erben/sitescope/pkg/search"
)

// searchHandler answers GET /api/v1/search?q=... against the built index.
// While the index is still building the client gets a retryable 503.
func (s *Server) searchHandler(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")

	results, err := s.searcher.Search(query)
	if errors.Is(err, search.ErrIndexNotReady) {
		// kick the build so a retry has a chance to succeed
		s.warmer.Warm(context.Background())
		RenderJSON(w, r, http.StatusServiceUnavailable, map[string]string{"status": "loading"})
		return
	}
	if err != nil {
		RenderError(w, r, err, http.StatusBadRequest)
		return
	}

	RenderJSON(w, r, http.StatusOK, map[string]interface{}{
		"query":   query,
		"count":   len(results),
		"results": results,
	})
}

// warmupHandler answers POST /api/v1/search/warmup: a hint that a search is
// likely coming. Bursts of hints coalesce into a single background build.
func (s *Server) warmupHandler(w http.ResponseWriter, _ *http.Request) {
	s.warmup.Trigger(func() {
		s.warmer.Warm(context.Background())
	})
	w.WriteHeader(http.StatusNoContent)
}

// newsHandler answers GET /api/v1/news with the aggregated article list,
// optionally narrowed by ?category=
func (s *Server) newsHandler(w http.ResponseWriter, r *http.Request) {
	articles := s.aggregator.News(r.Context())
	categories := feed.Categories(articles)

	category := r.URL.Query().Get("category")
	articles = feed.FilterByCategory(articles, category)

	RenderJSON(w, r, http.StatusOK, map[string]interface{}{
		"articles":   articles,
		"count":      len(articles),
		"category":   category,
		"categories": categories,
		"timestamp":  time.Now().UTC(),
	})
}

// highlightHandler answers GET /api/v1/highlight?page=...&term=... with the
// page markup re-serialized around marked term occurrences
func (s *Server) highlightHandler(w http.ResponseWriter, r *http.Request) {
	pageURL := r.URL.Query().Get("page")
	term := r.URL.Query().Get("term")
	if pageURL == "" || term == "" {
		RenderError(w, r, fmt.Errorf("page and term parameters are required"), http.StatusBadRequest)
		return
	}

	markup, err := s.pages.FetchHTML(r.Context(), pageURL)
	if err != nil {
		RenderError(w, r, fmt.Errorf("load page: %w", err), http.StatusBadGateway)
		return
	}

	marked, matches, err := s.highlighter.Highlight(markup, term)
	if err != nil {
		RenderError(w, r, fmt.Errorf("highlight page: %w", err), http.StatusInternalServerError)
		return
	}

	RenderJSON(w, r, http.StatusOK, map[string]interface{}{
		"page":    pageURL,
		"term":    term,
		"matches": matches,
		"html":    marked,
	})
}

// feedProxyHandler answers GET /api/v1/feed-proxy?url=... by relaying an
// allowlisted feed document
func (s *Server) feedProxyHandler(w http.ResponseWriter, r *http.Request) {
	s.proxy.ServeHTTP(w, r)
}
