package search

import (
	"errors"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/stb-erben/sitescope/pkg/domain"
)

// ErrIndexNotReady signals that a query arrived before the first index build
// completed; distinct from an empty result set.
var ErrIndexNotReady = errors.New("search index not ready")

// paragraphMarker is the legal-section symbol German statutes are cited with
const paragraphMarker = "§"

// EngineParams holds query engine settings. The per-page and overall caps
// are deliberately configurable rather than baked in.
type EngineParams struct {
	PerPageLimit  int // max sections reported per page
	MaxResults    int // overall cap after the per-page cap
	SnippetLength int // approximate snippet size in bytes
}

// Engine answers queries against a built index. It only ever reads the
// index; all mutation stays with the builder.
type Engine struct {
	index  *Index
	params EngineParams
}

// NewEngine creates a query engine over the given index
func NewEngine(index *Index, params EngineParams) *Engine {
	if params.PerPageLimit <= 0 {
		params.PerPageLimit = 2
	}
	if params.MaxResults <= 0 {
		params.MaxResults = 12
	}
	if params.SnippetLength <= 0 {
		params.SnippetLength = 120
	}
	return &Engine{index: index, params: params}
}

// Search scans every section of every indexed page for the query. Matching
// is a case-insensitive substring test on heading and text; a query starting
// with a digit additionally matches with the paragraph marker prefixed, so
// "370" finds "§370". Returns ErrIndexNotReady before the first build.
func (e *Engine) Search(query string) ([]domain.SearchResult, error) {
	entries, ok := e.index.Entries()
	if !ok {
		return nil, ErrIndexNotReady
	}

	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return []domain.SearchResult{}, nil
	}

	runes := []rune(q)
	minLen := 2
	if unicode.IsDigit(runes[0]) {
		// bare paragraph numbers are searchable from the first digit
		minLen = 1
	}
	if len(runes) < minLen {
		return []domain.SearchResult{}, nil
	}

	// terms in match priority: the marker-prefixed form first so the snippet
	// centers on the full citation
	terms := []string{q}
	if unicode.IsDigit(runes[0]) {
		terms = []string{paragraphMarker + q, q}
	}

	results := make([]domain.SearchResult, 0, e.params.MaxResults)
	for _, entry := range entries {
		perPage := 0
		for _, section := range entry.Sections {
			if perPage >= e.params.PerPageLimit {
				break
			}

			term, offset := matchSection(section, terms)
			if term == "" {
				continue
			}

			results = append(results, domain.SearchResult{
				PageTitle:      entry.Title,
				SectionHeading: section.Heading,
				URL:            entry.URL,
				Snippet:        snippet(section.Text, offset, len(term), e.params.SnippetLength),
			})
			perPage++

			if len(results) >= e.params.MaxResults {
				return results, nil
			}
		}
	}

	return results, nil
}

// matchSection tests the terms in order against heading and text and returns
// the first matching term with its byte offset in the section text. A
// heading-only match reports offset 0 so the snippet starts at the top.
func matchSection(section domain.Section, terms []string) (term string, offset int) {
	for _, t := range terms {
		if idx := foldIndex(section.Text, t); idx >= 0 {
			return t, idx
		}
		if foldIndex(section.Heading, t) >= 0 {
			return t, 0
		}
	}
	return "", 0
}

// foldIndex returns the byte offset in s of the first case-insensitive
// occurrence of the already-lowercased needle, or -1. The offset refers to
// s itself, not its lowered form: runes like ẞ shrink when lowered, so the
// two can disagree.
func foldIndex(s, needle string) int {
	lower := strings.ToLower(s)
	idx := strings.Index(lower, needle)
	if idx < 0 {
		return -1
	}
	if len(lower) == len(s) {
		return idx
	}

	// lowering changed byte lengths somewhere, walk both strings in step to
	// translate the lowered offset back
	origOff, lowOff := 0, 0
	for lowOff < idx {
		r, size := utf8.DecodeRuneInString(s[origOff:])
		lowOff += utf8.RuneLen(unicode.ToLower(r))
		origOff += size
	}
	return origOff
}

// snippet cuts a window of roughly size bytes centered on the match, snapped
// outward to word boundaries so no word is truncated, with ellipses marking
// cuts at either edge.
func snippet(text string, offset, termLen, size int) string {
	if len(text) <= size {
		return text
	}

	start := offset + termLen/2 - size/2
	if start < 0 {
		start = 0
	}
	end := start + size
	if end > len(text) {
		end = len(text)
		if start = end - size; start < 0 {
			start = 0
		}
	}

	// snap outward: back to the start of the word the window begins in,
	// forward to the end of the word it stops in
	if start > 0 {
		if sp := strings.LastIndex(text[:start], " "); sp >= 0 {
			start = sp + 1
		} else {
			start = 0
		}
	}
	if end < len(text) {
		if sp := strings.Index(text[end:], " "); sp >= 0 {
			end += sp
		} else {
			end = len(text)
		}
	}

	out := text[start:end]
	if start > 0 {
		out = "…" + out
	}
	if end < len(text) {
		out += "…"
	}
	return out
}
