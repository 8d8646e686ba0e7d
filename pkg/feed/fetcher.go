package feed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"

	"github.com/stb-erben/sitescope/pkg/domain"
)

// FetcherParams configures the fetch strategies and their per-attempt
// timeouts
type FetcherParams struct {
	DirectTimeout   time.Duration // direct feed fetch
	EnvelopeURL     string        // JSON-envelope proxy base, feed URL appended escaped
	EnvelopeTimeout time.Duration
	ItemsURL        string // pre-parsed items proxy base, feed URL appended escaped
	ItemsTimeout    time.Duration
	MaxItems        int
	UserAgent       string
}

// Fetcher retrieves a feed by trying strategies in order until one yields
// articles: a direct fetch first, then a JSON-envelope proxy that tunnels
// the raw XML, then a proxy that returns pre-parsed items. Every failure
// is contained; a feed with no working strategy yields no articles and
// no error.
type Fetcher struct {
	client *http.Client
	parser *Parser
	params FetcherParams
}

// NewFetcher creates a waterfall fetcher. Per-strategy timeouts come from
// params, the shared client carries no timeout of its own.
func NewFetcher(params FetcherParams) *Fetcher {
	return &Fetcher{
		client: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		parser: NewParser(params.MaxItems),
		params: params,
	}
}

// strategy is one way of obtaining a feed's articles
type strategy struct {
	name string
	run  func(ctx context.Context, src Source) ([]domain.Article, error)
}

// Fetch tries each strategy in order and returns the first non-empty
// result. Total failure returns an empty slice, never an error: one dead
// feed must not break the aggregate.
func (f *Fetcher) Fetch(ctx context.Context, src Source) []domain.Article {
	strategies := []strategy{
		{name: "direct", run: f.fetchDirect},
		{name: "envelope proxy", run: f.fetchEnvelope},
		{name: "items proxy", run: f.fetchItems},
	}

	for _, s := range strategies {
		articles, err := s.run(ctx, src)
		if err != nil {
			log.Printf("[WARN] %s fetch failed for %s: %v", s.name, src.Name, err)
			continue
		}
		if len(articles) == 0 {
			log.Printf("[DEBUG] %s fetch returned no items for %s", s.name, src.Name)
			continue
		}
		log.Printf("[DEBUG] fetched %d items for %s via %s", len(articles), src.Name, s.name)
		return articles
	}

	log.Printf("[WARN] all fetch strategies exhausted for %s", src.Name)
	return []domain.Article{}
}

// fetchDirect requests the feed URL itself and parses the raw XML
func (f *Fetcher) fetchDirect(ctx context.Context, src Source) ([]domain.Article, error) {
	body, err := f.get(ctx, src.URL, f.params.DirectTimeout)
	if err != nil {
		return nil, err
	}
	defer body.Close()
	return f.parser.Parse(body, src)
}

// envelopeResponse is the JSON wrapper the envelope proxy returns, with
// the raw feed document tunneled in the contents field
type envelopeResponse struct {
	Contents string `json:"contents"`
}

// fetchEnvelope requests the feed through the JSON-envelope proxy and
// parses the tunneled XML
func (f *Fetcher) fetchEnvelope(ctx context.Context, src Source) ([]domain.Article, error) {
	if f.params.EnvelopeURL == "" {
		return nil, fmt.Errorf("envelope proxy not configured")
	}

	body, err := f.get(ctx, f.params.EnvelopeURL+url.QueryEscape(src.URL), f.params.EnvelopeTimeout)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	var envelope envelopeResponse
	if err := json.NewDecoder(body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	if envelope.Contents == "" {
		return nil, fmt.Errorf("empty envelope contents")
	}

	return f.parser.Parse(bytes.NewReader([]byte(envelope.Contents)), src)
}

// fetchItems requests the feed through the pre-parsed items proxy
func (f *Fetcher) fetchItems(ctx context.Context, src Source) ([]domain.Article, error) {
	if f.params.ItemsURL == "" {
		return nil, fmt.Errorf("items proxy not configured")
	}

	body, err := f.get(ctx, f.params.ItemsURL+url.QueryEscape(src.URL), f.params.ItemsTimeout)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	return f.parser.ParseProxyItems(body, src)
}

// get performs a GET with browser-like headers and a per-attempt timeout
func (f *Fetcher) get(ctx context.Context, reqURL string, timeout time.Duration) (io.ReadCloser, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", f.params.UserAgent)
	addBrowserHeaders(req)

	resp, err := f.client.Do(req) //nolint:bodyclose // closed via cancelReadCloser
	if err != nil {
		cancel()
		return nil, fmt.Errorf("fetch URL: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		cancel()
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	return &cancelReadCloser{ReadCloser: resp.Body, cancel: cancel}, nil
}

// cancelReadCloser releases the request context when the body is closed
type cancelReadCloser struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelReadCloser) Close() error {
	defer c.cancel()
	return c.ReadCloser.Close()
}
