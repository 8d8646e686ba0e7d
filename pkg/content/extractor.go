package content

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/markusmobius/go-trafilatura"

	"github.com/stb-erben/sitescope/pkg/domain"
)

// chromeSelector matches elements that never carry indexable content:
// scripts, navigation, page furniture and the search modal itself.
const chromeSelector = "script, style, noscript, nav, header, footer, .breadcrumb, .cookie-banner, .search-modal"

// headingSelector covers the heading levels that delimit sections
const headingSelector = "h1, h2, h3, h4"

// blockSelector matches the enclosing containers tried when a heading has no
// following sibling text
const blockSelector = "section, article, li, .card, div"

const (
	// minSectionText is the minimal visible text length for a heading-less
	// page to produce a section
	minSectionText = 10
	// containerMargin is how much longer than its heading a container's text
	// must be to count as a section body
	containerMargin = 10
)

// Extractor turns raw page markup into indexable sections. It strips chrome
// elements, locates the content root and segments the remaining text by
// heading.
type Extractor struct {
	client    *http.Client
	userAgent string
}

// NewExtractor creates a page extractor with the given fetch timeout
func NewExtractor(timeout time.Duration, userAgent string) *Extractor {
	return &Extractor{
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		userAgent: userAgent,
	}
}

// FetchSections retrieves a page and segments it. A non-2xx response or an
// unreadable body is reported as an error; the caller decides whether the
// page is simply omitted.
func (e *Extractor) FetchSections(ctx context.Context, pageURL, title string) ([]domain.Section, error) {
	markup, err := e.FetchHTML(ctx, pageURL)
	if err != nil {
		return nil, err
	}
	return e.Sections(markup, title, pageURL), nil
}

// FetchHTML retrieves a page's raw markup
func (e *Extractor) FetchHTML(ctx context.Context, pageURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, http.NoBody)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", e.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := e.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch page %s: %w", pageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status code %d for page %s", resp.StatusCode, pageURL)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read page %s: %w", pageURL, err)
	}

	return string(body), nil
}

// Sections segments an HTML document into (heading, text) sections. The page
// title serves as the heading for pages without any h1-h4. Parse problems
// yield zero sections, never an error.
func (e *Extractor) Sections(markup, title, pageURL string) []domain.Section {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil
	}

	doc.Find(chromeSelector).Remove()

	root := doc.Find("main").First()
	if root.Length() == 0 {
		root = doc.Find("section, .section").First()
	}
	if root.Length() == 0 {
		root = doc.Find("body").First()
	}
	if root.Length() == 0 {
		return nil
	}

	headings := root.Find(headingSelector)
	if headings.Length() == 0 {
		return e.wholePageSection(markup, title, pageURL, root)
	}

	sections := make([]domain.Section, 0, headings.Length())
	headings.Each(func(_ int, h *goquery.Selection) {
		heading := collapse(h.Text())
		if heading == "" {
			return
		}

		// body = everything between this heading and the next one
		body := collapse(h.NextUntil(headingSelector).Text())
		text := ""
		if body != "" {
			text = heading + " " + body
		} else {
			// heading sits alone in a card or similar block, take the text of
			// the nearest enclosing block that says more than the heading
			ancestors := h.ParentsFiltered(blockSelector)
			for i := 0; i < ancestors.Length() && text == ""; i++ {
				block := collapse(ancestors.Eq(i).Text())
				if utf8.RuneCountInString(block) > utf8.RuneCountInString(heading)+containerMargin {
					text = block
				}
			}
		}
		if text == "" {
			return
		}

		sections = append(sections, domain.Section{Heading: heading, Text: text})
	})

	return sections
}

// wholePageSection handles pages without headings: the root's visible text
// becomes a single section under the page title. The goquery text is already
// charset-decoded; trafilatura re-detects the encoding from raw bytes, so it
// only runs when the parsed DOM yields no text at all.
func (e *Extractor) wholePageSection(markup, title, pageURL string, root *goquery.Selection) []domain.Section {
	text := collapse(root.Text())

	if text == "" {
		opts := trafilatura.Options{
			EnableFallback:  true,
			ExcludeComments: true,
		}
		if u, err := url.Parse(pageURL); err == nil && u.Scheme != "" && u.Host != "" {
			opts.OriginalURL = u
		}
		if result, err := trafilatura.Extract(strings.NewReader(markup), opts); err == nil && result != nil {
			text = collapse(result.ContentText)
		}
	}

	if utf8.RuneCountInString(text) <= minSectionText {
		return nil
	}
	return []domain.Section{{Heading: title, Text: text}}
}

// collapse normalizes whitespace to single spaces and trims
func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
