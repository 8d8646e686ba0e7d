package feed

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleRSS = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
<channel>
	<title>BMF Pressemitteilungen</title>
	<item>
		<title>Jahressteuergesetz 2024 verabschiedet</title>
		<link>https://example.com/jstg-2024</link>
		<description><![CDATA[<p>Der Bundestag hat das <b>Jahressteuergesetz</b> verabschiedet.</p>]]></description>
		<pubDate>Fri, 15 Mar 2024 10:30:00 +0100</pubDate>
	</item>
	<item>
		<title>Neues BMF-Schreiben zur E-Rechnung</title>
		<guid isPermaLink="true">https://example.com/e-rechnung</guid>
		<description>Pflicht zur elektronischen Rechnung ab 2025.</description>
		<pubDate>Thu, 14 Mar 2024 08:00:00 +0100</pubDate>
	</item>
	<item>
		<title>--</title>
		<link>https://example.com/junk</link>
		<description>junk entry</description>
	</item>
	<item>
		<title>Referentenentwurf ohne Datum</title>
		<description>Noch kein Termin bekannt.</description>
	</item>
</channel>
</rss>`

func testSource() Source {
	return Source{
		URL:      "https://example.com/feed.xml",
		Name:     "BMF Presse",
		Category: "Steuerpolitik",
		Icon:     "🏛️",
	}
}

func TestParser_Parse(t *testing.T) {
	parser := NewParser(10)

	articles, err := parser.Parse(strings.NewReader(sampleRSS), testSource())
	require.NoError(t, err)
	require.Len(t, articles, 3, "junk-title item is dropped")

	first := articles[0]
	assert.Equal(t, "Jahressteuergesetz 2024 verabschiedet", first.Title)
	assert.Equal(t, "https://example.com/jstg-2024", first.Link)
	assert.Equal(t, "Der Bundestag hat das Jahressteuergesetz verabschiedet.", first.Description, "markup stripped")
	assert.Equal(t, "BMF Presse", first.Source)
	assert.Equal(t, "Steuerpolitik", first.Category)
	assert.Equal(t, "🏛️", first.Icon)
	assert.Equal(t, time.Date(2024, 3, 15, 9, 30, 0, 0, time.UTC), first.Date.UTC())

	assert.Equal(t, "https://example.com/e-rechnung", articles[1].Link, "absolute-URL guid used when link missing")

	undated := articles[2]
	assert.Equal(t, "#", undated.Link, "no link and no guid falls back to dead anchor")
	assert.WithinDuration(t, time.Now(), undated.Date, 5*time.Second, "undated items default to now")
}

func TestParser_Parse_MaxItems(t *testing.T) {
	parser := NewParser(1)

	articles, err := parser.Parse(strings.NewReader(sampleRSS), testSource())
	require.NoError(t, err)
	assert.Len(t, articles, 1)
	assert.Equal(t, "Jahressteuergesetz 2024 verabschiedet", articles[0].Title)
}

func TestParser_Parse_LongDescription(t *testing.T) {
	long := strings.Repeat("Umsatzsteuer ", 40) // well past the rune budget
	rss := `<?xml version="1.0"?><rss version="2.0"><channel><title>t</title>
		<item><title>Langer Artikel</title><link>https://example.com/a</link>
		<description>` + long + `</description></item></channel></rss>`

	parser := NewParser(10)
	articles, err := parser.Parse(strings.NewReader(rss), testSource())
	require.NoError(t, err)
	require.Len(t, articles, 1)
	assert.True(t, strings.HasSuffix(articles[0].Description, "..."))
	assert.LessOrEqual(t, len([]rune(articles[0].Description)), descriptionMax+3)
}

func TestParser_Parse_Invalid(t *testing.T) {
	parser := NewParser(10)
	_, err := parser.Parse(strings.NewReader("this is not xml"), testSource())
	assert.Error(t, err)
}

func TestParser_ParseProxyItems(t *testing.T) {
	payload := `{
		"status": "ok",
		"items": [
			{"title": "Grundsteuer: neue Messbeträge", "link": "https://example.com/grundsteuer",
			 "pubDate": "2024-03-15 10:30:00", "description": "<p>Die Kommunen passen die Hebesätze an.</p>"},
			{"title": "x", "link": "https://example.com/short", "pubDate": "2024-03-14 08:00:00", "description": "zu kurz"}
		]
	}`

	parser := NewParser(10)
	articles, err := parser.ParseProxyItems(strings.NewReader(payload), testSource())
	require.NoError(t, err)
	require.Len(t, articles, 1, "short-title item dropped")

	assert.Equal(t, "Grundsteuer: neue Messbeträge", articles[0].Title)
	assert.Equal(t, "Die Kommunen passen die Hebesätze an.", articles[0].Description)
	assert.Equal(t, time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC), articles[0].Date)
	assert.Equal(t, "Steuerpolitik", articles[0].Category)
}

func TestParser_ParseProxyItems_BadStatus(t *testing.T) {
	parser := NewParser(10)
	_, err := parser.ParseProxyItems(strings.NewReader(`{"status":"error","items":[]}`), testSource())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status")
}
