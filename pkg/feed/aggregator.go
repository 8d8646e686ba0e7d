package feed

import (
	"context"
	"log"
	"sort"
	"strings"
	"sync"

	"github.com/stb-erben/sitescope/pkg/domain"
)

// ArticleFetcher retrieves all articles for one source
type ArticleFetcher interface {
	Fetch(ctx context.Context, src Source) []domain.Article
}

// ArticleCache persists the aggregated article list between runs
type ArticleCache interface {
	Get(ctx context.Context, key string, out interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}) error
}

// Aggregator produces the merged news list: cache first, otherwise all
// registered sources fetched concurrently, deduplicated by title and
// sorted newest first.
type Aggregator struct {
	fetcher  ArticleFetcher
	cache    ArticleCache
	cacheKey string
	sources  []Source
}

// NewAggregator creates an aggregator over the given sources. Cache may be
// nil, in which case every call fetches fresh.
func NewAggregator(fetcher ArticleFetcher, cache ArticleCache, cacheKey string, sources []Source) *Aggregator {
	return &Aggregator{fetcher: fetcher, cache: cache, cacheKey: cacheKey, sources: sources}
}

// News returns the aggregated article list. A fresh cache entry short-circuits
// the fetch entirely; otherwise all sources are queried concurrently and the
// merged result is persisted when non-empty.
func (a *Aggregator) News(ctx context.Context) []domain.Article {
	if a.cache != nil {
		var cached []domain.Article
		found, err := a.cache.Get(ctx, a.cacheKey, &cached)
		if err != nil {
			log.Printf("[WARN] news cache read failed: %v", err)
		}
		if found {
			log.Printf("[DEBUG] serving %d articles from cache", len(cached))
			return cached
		}
	}

	articles := a.fetchAll(ctx)
	if len(articles) > 0 && a.cache != nil {
		// an empty run never overwrites a previous good result
		if err := a.cache.Set(ctx, a.cacheKey, articles); err != nil {
			log.Printf("[WARN] news cache write failed: %v", err)
		}
	}
	return articles
}

// fetchAll queries every source concurrently and merges the results in
// source registration order before deduplication and sorting
func (a *Aggregator) fetchAll(ctx context.Context) []domain.Article {
	results := make([][]domain.Article, len(a.sources))

	var wg sync.WaitGroup
	for i, src := range a.sources {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = a.fetcher.Fetch(ctx, src)
		}()
	}
	wg.Wait()

	var merged []domain.Article
	for _, batch := range results {
		merged = append(merged, batch...)
	}

	merged = dedupeByTitle(merged)
	sort.SliceStable(merged, func(i, j int) bool { return merged[i].Date.After(merged[j].Date) })

	log.Printf("[INFO] aggregated %d articles from %d sources", len(merged), len(a.sources))
	return merged
}

// Sources returns the registered sources
func (a *Aggregator) Sources() []Source {
	return a.sources
}

// FilterByCategory returns the articles matching the given category,
// case-insensitively. An empty category matches everything.
func FilterByCategory(articles []domain.Article, category string) []domain.Article {
	if category == "" {
		return articles
	}
	filtered := make([]domain.Article, 0, len(articles))
	for _, article := range articles {
		if strings.EqualFold(article.Category, category) {
			filtered = append(filtered, article)
		}
	}
	return filtered
}

// Categories returns the distinct categories present in the articles,
// sorted alphabetically
func Categories(articles []domain.Article) []string {
	seen := make(map[string]struct{})
	var categories []string
	for _, article := range articles {
		if article.Category == "" {
			continue
		}
		if _, ok := seen[article.Category]; ok {
			continue
		}
		seen[article.Category] = struct{}{}
		categories = append(categories, article.Category)
	}
	sort.Strings(categories)
	return categories
}

// dedupeByTitle keeps the first article seen for each title. Syndicated
// press releases show up in several feeds with identical titles.
func dedupeByTitle(articles []domain.Article) []domain.Article {
	seen := make(map[string]struct{}, len(articles))
	deduped := make([]domain.Article, 0, len(articles))
	for _, article := range articles {
		if _, ok := seen[article.Title]; ok {
			continue
		}
		seen[article.Title] = struct{}{}
		deduped = append(deduped, article)
	}
	return deduped
}
