package feed

import (
	"encoding/json"
	"fmt"
	"html"
	"io"
	"log"
	"net/url"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/mmcdole/gofeed"

	"github.com/stb-erben/sitescope/pkg/domain"
)

// Source describes a registered feed: where to fetch it and how to label
// the articles it yields.
type Source struct {
	URL      string
	Name     string
	Category string
	Icon     string
}

const (
	minTitleLen    = 3   // items with shorter titles are discarded as junk
	descriptionMax = 240 // plain-text description budget in runes
)

// Parser converts raw RSS/Atom payloads and pre-parsed proxy responses
// into articles. Malformed items are dropped, not reported.
type Parser struct {
	policy   *bluemonday.Policy
	maxItems int
}

// NewParser creates a feed parser keeping at most maxItems items per feed
func NewParser(maxItems int) *Parser {
	return &Parser{
		policy:   bluemonday.StrictPolicy(),
		maxItems: maxItems,
	}
}

// Parse reads an RSS/Atom document and converts its items to articles
// labeled with the source metadata
func (p *Parser) Parse(r io.Reader, src Source) ([]domain.Article, error) {
	parsed, err := gofeed.NewParser().Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse feed %s: %w", src.Name, err)
	}

	items := parsed.Items
	if len(items) > p.maxItems {
		items = items[:p.maxItems]
	}

	articles := make([]domain.Article, 0, len(items))
	for _, item := range items {
		title := p.cleanText(item.Title, 0)
		if len([]rune(title)) < minTitleLen {
			log.Printf("[DEBUG] dropped item with junk title %q from %s", item.Title, src.Name)
			continue
		}

		article := domain.Article{
			Title:       title,
			Link:        itemLink(item.Link, item.GUID),
			Description: p.cleanText(item.Description, descriptionMax),
			Date:        itemDate(item.PublishedParsed, item.UpdatedParsed),
			Source:      src.Name,
			Category:    src.Category,
			Icon:        src.Icon,
		}
		articles = append(articles, article)
	}

	return articles, nil
}

// proxyFeedResponse is the shape returned by pre-parsed feed proxies
type proxyFeedResponse struct {
	Status string `json:"status"`
	Items  []struct {
		Title       string `json:"title"`
		Link        string `json:"link"`
		GUID        string `json:"guid"`
		PubDate     string `json:"pubDate"`
		Description string `json:"description"`
	} `json:"items"`
}

// ParseProxyItems reads a pre-parsed feed proxy response (JSON with a
// status field and an items array) and converts it to articles
func (p *Parser) ParseProxyItems(r io.Reader, src Source) ([]domain.Article, error) {
	var resp proxyFeedResponse
	if err := json.NewDecoder(r).Decode(&resp); err != nil {
		return nil, fmt.Errorf("decode proxy response for %s: %w", src.Name, err)
	}
	if resp.Status != "ok" {
		return nil, fmt.Errorf("proxy reported status %q for %s", resp.Status, src.Name)
	}

	items := resp.Items
	if len(items) > p.maxItems {
		items = items[:p.maxItems]
	}

	articles := make([]domain.Article, 0, len(items))
	for _, item := range items {
		title := p.cleanText(item.Title, 0)
		if len([]rune(title)) < minTitleLen {
			continue
		}

		articles = append(articles, domain.Article{
			Title:       title,
			Link:        itemLink(item.Link, item.GUID),
			Description: p.cleanText(item.Description, descriptionMax),
			Date:        proxyDate(item.PubDate),
			Source:      src.Name,
			Category:    src.Category,
			Icon:        src.Icon,
		})
	}

	return articles, nil
}

// cleanText strips markup and entities, collapses whitespace and, when max
// is positive, truncates to max runes with a trailing ellipsis
func (p *Parser) cleanText(s string, maxRunes int) string {
	cleaned := html.UnescapeString(p.policy.Sanitize(s))
	cleaned = strings.Join(strings.Fields(cleaned), " ")
	if maxRunes <= 0 {
		return cleaned
	}
	runes := []rune(cleaned)
	if len(runes) <= maxRunes {
		return cleaned
	}
	return strings.TrimSpace(string(runes[:maxRunes])) + "..."
}

// itemLink picks the article link: the item link when present, otherwise
// the GUID when it happens to be an absolute URL, otherwise a dead anchor
func itemLink(link, guid string) string {
	if link != "" {
		return link
	}
	if u, err := url.Parse(guid); err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != "" {
		return guid
	}
	return "#"
}

// itemDate prefers the published time, falls back to updated, then to now
// so undated items sort as fresh instead of sinking to the bottom
func itemDate(published, updated *time.Time) time.Time {
	if published != nil {
		return *published
	}
	if updated != nil {
		return *updated
	}
	return time.Now()
}

// proxyDate parses the "2006-01-02 15:04:05" timestamps pre-parsed proxies
// emit, falling back to RFC1123 variants and finally to now
func proxyDate(s string) time.Time {
	for _, layout := range []string{"2006-01-02 15:04:05", time.RFC1123Z, time.RFC1123, time.RFC3339} {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts
		}
	}
	return time.Now()
}
