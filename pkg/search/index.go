package search

import (
	"context"
	"log"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/stb-erben/sitescope/pkg/domain"
)

// PageFetcher retrieves a page and segments it into sections
type PageFetcher interface {
	FetchSections(ctx context.Context, pageURL, title string) ([]domain.Section, error)
}

// IndexParams holds index build settings
type IndexParams struct {
	BaseURL       string
	Pages         []domain.Page
	MaxConcurrent int
	RateLimit     float64 // page fetches per second
}

// Index fetches the configured pages and holds their extracted sections for
// the lifetime of the process. The build runs at most once: concurrent and
// later callers share the single in-flight result instead of fetching again.
type Index struct {
	fetcher PageFetcher
	params  IndexParams
	limiter *rate.Limiter

	group   singleflight.Group
	mu      sync.RWMutex
	entries []domain.PageEntry
	built   bool
}

// NewIndex creates an index over the given pages
func NewIndex(fetcher PageFetcher, params IndexParams) *Index {
	if params.MaxConcurrent <= 0 {
		params.MaxConcurrent = 5
	}
	if params.RateLimit <= 0 {
		params.RateLimit = 10
	}
	return &Index{
		fetcher: fetcher,
		params:  params,
		limiter: rate.NewLimiter(rate.Limit(params.RateLimit), params.MaxConcurrent),
	}
}

// Build fetches and extracts all configured pages. Idempotent: the first call
// does the work, everyone else gets the memoized result. Pages that fail to
// fetch or yield no sections are omitted and not retried within the build.
func (ix *Index) Build(ctx context.Context) ([]domain.PageEntry, error) {
	ix.mu.RLock()
	if ix.built {
		entries := ix.entries
		ix.mu.RUnlock()
		return entries, nil
	}
	ix.mu.RUnlock()

	v, err, _ := ix.group.Do("build", func() (interface{}, error) {
		// a build may have completed while this call waited on the group
		ix.mu.RLock()
		if ix.built {
			entries := ix.entries
			ix.mu.RUnlock()
			return entries, nil
		}
		ix.mu.RUnlock()

		entries := ix.fetchAll(ctx)

		ix.mu.Lock()
		ix.entries = entries
		ix.built = true
		ix.mu.Unlock()

		log.Printf("[INFO] search index built: %d pages indexed of %d configured", len(entries), len(ix.params.Pages))
		return entries, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]domain.PageEntry), nil
}

// Warm triggers a background build, used on hover-intent over the search
// control. Safe to call repeatedly.
func (ix *Index) Warm(ctx context.Context) {
	if ix.Ready() {
		return
	}
	go func() {
		if _, err := ix.Build(ctx); err != nil {
			log.Printf("[WARN] background index build failed: %v", err)
		}
	}()
}

// Ready reports whether a build has completed
func (ix *Index) Ready() bool {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.built
}

// Entries returns the built index, or ok=false if no build completed yet
func (ix *Index) Entries() (entries []domain.PageEntry, ok bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.entries, ix.built
}

// fetchAll fans out over all configured pages, respecting the concurrency
// limit and rate budget. Failed pages are logged and skipped.
func (ix *Index) fetchAll(ctx context.Context) []domain.PageEntry {
	results := make([]*domain.PageEntry, len(ix.params.Pages))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(ix.params.MaxConcurrent)

	for i, page := range ix.params.Pages {
		g.Go(func() error {
			if err := ix.limiter.Wait(ctx); err != nil {
				return nil //nolint:nilerr // canceled build simply indexes fewer pages
			}

			pageURL := ix.resolveURL(page.URL)
			sections, err := ix.fetcher.FetchSections(ctx, pageURL, page.Title)
			if err != nil {
				log.Printf("[WARN] failed to index %s: %v", pageURL, err)
				return nil
			}
			if len(sections) == 0 {
				log.Printf("[DEBUG] no sections extracted from %s", pageURL)
				return nil
			}

			results[i] = &domain.PageEntry{URL: page.URL, Title: page.Title, Sections: sections}
			return nil
		})
	}
	_ = g.Wait() // workers never return errors, failures are per-page

	// keep configured page order, drop omitted pages
	entries := make([]domain.PageEntry, 0, len(results))
	for _, r := range results {
		if r != nil {
			entries = append(entries, *r)
		}
	}
	return entries
}

// resolveURL joins a page path with the configured base URL
func (ix *Index) resolveURL(page string) string {
	if strings.HasPrefix(page, "http://") || strings.HasPrefix(page, "https://") {
		return page
	}
	return strings.TrimSuffix(ix.params.BaseURL, "/") + "/" + strings.TrimPrefix(page, "/")
}
