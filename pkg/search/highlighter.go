package search

import (
	"strings"

	"golang.org/x/net/html"
)

// markClass is the class carried by injected highlight markers
const markClass = "search-highlight"

// skipElements are elements whose text is never highlighted
var skipElements = map[string]struct{}{
	"script": {}, "style": {}, "noscript": {},
	"nav": {}, "header": {}, "footer": {},
}

// Highlighter wraps occurrences of a search term in <mark> elements, the
// server-side half of the search-result landing behavior: the client only
// has to scroll to the first marker and fade it out.
type Highlighter struct {
	maxMarks int
}

// NewHighlighter creates a highlighter wrapping at most maxMarks occurrences
func NewHighlighter(maxMarks int) *Highlighter {
	if maxMarks <= 0 {
		maxMarks = 5
	}
	return &Highlighter{maxMarks: maxMarks}
}

// Highlight parses the document, wraps up to maxMarks case-insensitive
// occurrences of term under the content root and returns the re-serialized
// document with the number of matches wrapped. A term that appears nowhere
// leaves the document unchanged with zero matches: a stale link is a silent
// no-op, never an error.
func (h *Highlighter) Highlight(markup, term string) (marked string, matches int, err error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return markup, 0, nil
	}

	doc, err := html.Parse(strings.NewReader(markup))
	if err != nil {
		return "", 0, err
	}

	root := findContentRoot(doc)
	if root == nil {
		return markup, 0, nil
	}

	// collect candidates first, splicing replacements while walking would
	// disturb the traversal
	var textNodes []*html.Node
	collectTextNodes(root, &textNodes)

	count := 0
	for _, tn := range textNodes {
		if count >= h.maxMarks {
			break
		}
		count += wrapMatches(tn, term, h.maxMarks-count)
	}

	if count == 0 {
		return markup, 0, nil
	}

	var sb strings.Builder
	if err := html.Render(&sb, doc); err != nil {
		return "", 0, err
	}
	return sb.String(), count, nil
}

// findContentRoot prefers the main landmark, then body, then the whole tree
func findContentRoot(doc *html.Node) *html.Node {
	if main := findElement(doc, "main"); main != nil {
		return main
	}
	if body := findElement(doc, "body"); body != nil {
		return body
	}
	return doc
}

func findElement(n *html.Node, name string) *html.Node {
	if n.Type == html.ElementNode && n.Data == name {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, name); found != nil {
			return found
		}
	}
	return nil
}

// collectTextNodes gathers text nodes in document order, skipping subtrees
// of non-content elements and already-injected markers
func collectTextNodes(n *html.Node, out *[]*html.Node) {
	if n.Type == html.ElementNode {
		if _, skip := skipElements[n.Data]; skip {
			return
		}
		if n.Data == "mark" && hasClass(n, markClass) {
			return
		}
	}
	if n.Type == html.TextNode {
		*out = append(*out, n)
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectTextNodes(c, out)
	}
}

func hasClass(n *html.Node, class string) bool {
	for _, attr := range n.Attr {
		if attr.Key == "class" {
			for _, c := range strings.Fields(attr.Val) {
				if c == class {
					return true
				}
			}
		}
	}
	return false
}

// wrapMatches splits a text node into before/match/after fragments, wrapping
// each match in a marker element, and returns how many were wrapped. The
// node's siblings are left untouched.
func wrapMatches(tn *html.Node, term string, limit int) int {
	parent := tn.Parent
	if parent == nil {
		return 0
	}

	text := tn.Data
	lower := strings.ToLower(text)
	needle := strings.ToLower(term)

	var pieces []*html.Node
	pos, count := 0, 0
	for count < limit {
		idx := strings.Index(lower[pos:], needle)
		if idx < 0 {
			break
		}
		idx += pos

		if idx > pos {
			pieces = append(pieces, &html.Node{Type: html.TextNode, Data: text[pos:idx]})
		}
		mark := &html.Node{
			Type: html.ElementNode,
			Data: "mark",
			Attr: []html.Attribute{{Key: "class", Val: markClass}},
		}
		mark.AppendChild(&html.Node{Type: html.TextNode, Data: text[idx : idx+len(needle)]})
		pieces = append(pieces, mark)

		pos = idx + len(needle)
		count++
	}
	if count == 0 {
		return 0
	}
	if pos < len(text) {
		pieces = append(pieces, &html.Node{Type: html.TextNode, Data: text[pos:]})
	}

	for _, piece := range pieces {
		parent.InsertBefore(piece, tn)
	}
	parent.RemoveChild(tn)
	return count
}
