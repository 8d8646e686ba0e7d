package server

import (
	"fmt"
	"io"
	"log"
	"net/http"
	"time"
)

// maxProxyRedirects caps redirect chains when relaying feeds
const maxProxyRedirects = 5

// proxyCacheMaxAge instructs clients and CDNs to reuse relayed feeds for
// half an hour
const proxyCacheMaxAge = 1800

// FeedProxy relays registered feed documents for clients that cannot reach
// the publishers directly. Only allowlisted URLs are fetched; everything
// else is refused.
type FeedProxy struct {
	client    *http.Client
	allowlist map[string]struct{}
	userAgent string
}

// NewFeedProxy creates a proxy restricted to the given feed URLs
func NewFeedProxy(allowed []string, timeout time.Duration, userAgent string) *FeedProxy {
	allowlist := make(map[string]struct{}, len(allowed))
	for _, u := range allowed {
		allowlist[u] = struct{}{}
	}

	return &FeedProxy{
		client: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(_ *http.Request, via []*http.Request) error {
				if len(via) >= maxProxyRedirects {
					return fmt.Errorf("stopped after %d redirects", maxProxyRedirects)
				}
				return nil
			},
		},
		allowlist: allowlist,
		userAgent: userAgent,
	}
}

// ServeHTTP relays the requested feed document verbatim
func (p *FeedProxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	feedURL := r.URL.Query().Get("url")
	if feedURL == "" {
		RenderError(w, r, fmt.Errorf("url parameter is required"), http.StatusBadRequest)
		return
	}

	if _, ok := p.allowlist[feedURL]; !ok {
		log.Printf("[WARN] refused proxy request for non-registered url %q", feedURL)
		RenderError(w, r, fmt.Errorf("url is not a registered feed"), http.StatusForbidden)
		return
	}

	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, feedURL, http.NoBody)
	if err != nil {
		RenderError(w, r, fmt.Errorf("create upstream request: %w", err), http.StatusBadGateway)
		return
	}
	req.Header.Set("User-Agent", p.userAgent)
	req.Header.Set("Accept", "application/rss+xml,application/atom+xml,application/xml;q=0.9,*/*;q=0.5")

	resp, err := p.client.Do(req)
	if err != nil {
		log.Printf("[WARN] feed proxy upstream failed for %s: %v", feedURL, err)
		RenderError(w, r, fmt.Errorf("upstream fetch failed"), http.StatusBadGateway)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Printf("[WARN] feed proxy upstream status %d for %s", resp.StatusCode, feedURL)
		RenderError(w, r, fmt.Errorf("upstream returned status %d", resp.StatusCode), http.StatusBadGateway)
		return
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/xml; charset=utf-8"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", fmt.Sprintf("public, max-age=%d", proxyCacheMaxAge))
	w.WriteHeader(http.StatusOK)

	if _, err := io.Copy(w, resp.Body); err != nil {
		log.Printf("[WARN] feed proxy copy failed for %s: %v", feedURL, err)
	}
}
