package search

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHighlighter_Highlight(t *testing.T) {
	h := NewHighlighter(5)

	t.Run("wraps matches in marker", func(t *testing.T) {
		markup := `<html><body><main><p>Die Selbstanzeige nach §371 AO ist an enge Voraussetzungen geknüpft. Eine Selbstanzeige muss vollständig sein.</p></main></body></html>`
		out, matches, err := h.Highlight(markup, "Selbstanzeige")
		require.NoError(t, err)
		assert.Equal(t, 2, matches)
		assert.Equal(t, 2, strings.Count(out, `<mark class="search-highlight">Selbstanzeige</mark>`))
		// surrounding text intact
		assert.Contains(t, out, "nach §371 AO")
	})

	t.Run("case-insensitive, original casing kept", func(t *testing.T) {
		markup := `<html><body><main><p>WEGZUGSSTEUER und Wegzugssteuer</p></main></body></html>`
		out, matches, err := h.Highlight(markup, "wegzugssteuer")
		require.NoError(t, err)
		assert.Equal(t, 2, matches)
		assert.Contains(t, out, `<mark class="search-highlight">WEGZUGSSTEUER</mark>`)
		assert.Contains(t, out, `<mark class="search-highlight">Wegzugssteuer</mark>`)
	})

	t.Run("caps at configured maximum", func(t *testing.T) {
		var sb strings.Builder
		sb.WriteString("<html><body><main>")
		for range 8 {
			sb.WriteString("<p>Steuer im Absatz</p>")
		}
		sb.WriteString("</main></body></html>")

		out, matches, err := h.Highlight(sb.String(), "Steuer")
		require.NoError(t, err)
		assert.Equal(t, 5, matches)
		assert.Equal(t, 5, strings.Count(out, "<mark"))
	})

	t.Run("skips non-content elements", func(t *testing.T) {
		markup := `<html><body><nav>Steuer Menü</nav><main><p>Steuer im Inhalt</p></main><footer>Steuer im Footer</footer></body></html>`
		out, matches, err := h.Highlight(markup, "Steuer")
		require.NoError(t, err)
		assert.Equal(t, 1, matches)
		assert.Contains(t, out, "<nav>Steuer Menü</nav>")
		assert.Contains(t, out, "<footer>Steuer im Footer</footer>")
	})

	t.Run("skips already marked text", func(t *testing.T) {
		markup := `<html><body><main><p><mark class="search-highlight">Steuer</mark> und nochmal Steuer</p></main></body></html>`
		_, matches, err := h.Highlight(markup, "Steuer")
		require.NoError(t, err)
		assert.Equal(t, 1, matches)
	})

	t.Run("term not found is a silent no-op", func(t *testing.T) {
		markup := `<html><body><main><p>Nur Inhalt ohne Treffer.</p></main></body></html>`
		out, matches, err := h.Highlight(markup, "Erbschaft")
		require.NoError(t, err)
		assert.Zero(t, matches)
		assert.Equal(t, markup, out)
	})

	t.Run("empty term is a no-op", func(t *testing.T) {
		markup := `<html><body><p>Inhalt</p></body></html>`
		out, matches, err := h.Highlight(markup, "  ")
		require.NoError(t, err)
		assert.Zero(t, matches)
		assert.Equal(t, markup, out)
	})

	t.Run("split keeps sibling structure", func(t *testing.T) {
		markup := `<html><body><main><p>Vorher <b>fett</b> Steuer danach</p></main></body></html>`
		out, matches, err := h.Highlight(markup, "Steuer")
		require.NoError(t, err)
		assert.Equal(t, 1, matches)
		assert.Contains(t, out, `<b>fett</b> <mark class="search-highlight">Steuer</mark> danach`)
	})
}
