package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Run("valid config", func(t *testing.T) {
		configContent := `
server:
  listen: ":9090"
  timeout: 45s

site:
  base_url: https://example.com
  pages:
    - url: index.html
      title: Startseite
    - url: leistungen.html
      title: Leistungen

search:
  per_page_limit: 3
  max_results: 20
  snippet_length: 160

feeds:
  - url: https://example.com/feed1.xml
    source: Feed1
    category: Steuerrecht
    icon: "A"
  - url: https://example.com/feed2.xml
    source: Feed2
    category: Gesetzgebung
    icon: "B"

cache:
  ttl: 12h
  key: news_test
`
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "test-config.yml")
		err := os.WriteFile(configPath, []byte(configContent), 0o644)
		require.NoError(t, err)

		cfg, err := Load(configPath)
		require.NoError(t, err)
		require.NotNil(t, cfg)

		assert.Equal(t, ":9090", cfg.Server.Listen)
		assert.Equal(t, 45*time.Second, cfg.Server.Timeout)

		assert.Equal(t, "https://example.com", cfg.Site.BaseURL)
		require.Len(t, cfg.Site.Pages, 2)
		assert.Equal(t, "index.html", cfg.Site.Pages[0].URL)
		assert.Equal(t, "Startseite", cfg.Site.Pages[0].Title)

		assert.Equal(t, 3, cfg.Search.PerPageLimit)
		assert.Equal(t, 20, cfg.Search.MaxResults)
		assert.Equal(t, 160, cfg.Search.SnippetLength)

		require.Len(t, cfg.Feeds, 2)
		assert.Equal(t, "https://example.com/feed1.xml", cfg.Feeds[0].URL)
		assert.Equal(t, "Feed1", cfg.Feeds[0].Source)
		assert.Equal(t, "Steuerrecht", cfg.Feeds[0].Category)

		assert.Equal(t, 12*time.Hour, cfg.Cache.TTL)
		assert.Equal(t, "news_test", cfg.Cache.Key)
	})

	t.Run("defaults", func(t *testing.T) {
		configContent := `
site:
  base_url: https://example.com
`
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "test-config.yml")
		err := os.WriteFile(configPath, []byte(configContent), 0o644)
		require.NoError(t, err)

		cfg, err := Load(configPath)
		require.NoError(t, err)

		assert.Equal(t, ":8080", cfg.Server.Listen)
		assert.Equal(t, 30*time.Second, cfg.Server.Timeout)

		assert.Equal(t, 10*time.Second, cfg.Search.FetchTimeout)
		assert.Equal(t, 5, cfg.Search.MaxConcurrent)
		assert.Equal(t, 2, cfg.Search.PerPageLimit)
		assert.Equal(t, 12, cfg.Search.MaxResults)
		assert.Equal(t, 120, cfg.Search.SnippetLength)
		assert.Equal(t, 5, cfg.Search.MaxHighlights)
		assert.Equal(t, 300*time.Millisecond, cfg.Search.WarmupDelay)

		// four default German tax news sources
		require.Len(t, cfg.Feeds, 4)
		assert.Equal(t, "Bundesfinanzministerium", cfg.Feeds[0].Source)
		assert.Equal(t, "Bundesrat", cfg.Feeds[3].Source)

		assert.Equal(t, 10*time.Second, cfg.Proxy.DirectTimeout)
		assert.Equal(t, "https://api.allorigins.win/get?url=", cfg.Proxy.EnvelopeURL)
		assert.Equal(t, 8*time.Second, cfg.Proxy.EnvelopeTimeout)
		assert.Equal(t, "https://api.rss2json.com/v1/api.json?rss_url=", cfg.Proxy.ItemsURL)
		assert.Equal(t, 6*time.Second, cfg.Proxy.ItemsTimeout)
		assert.Equal(t, 10, cfg.Proxy.MaxItems)

		assert.Equal(t, 24*time.Hour, cfg.Cache.TTL)
		assert.Equal(t, "news_cache_v2", cfg.Cache.Key)
	})

	t.Run("env expansion", func(t *testing.T) {
		t.Setenv("TEST_BASE_URL", "https://env.example.com")
		configContent := `
site:
  base_url: ${TEST_BASE_URL}
`
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "test-config.yml")
		err := os.WriteFile(configPath, []byte(configContent), 0o644)
		require.NoError(t, err)

		cfg, err := Load(configPath)
		require.NoError(t, err)
		assert.Equal(t, "https://env.example.com", cfg.Site.BaseURL)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := Load("/nonexistent/config.yml")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "read config file")
	})

	t.Run("invalid yaml", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "bad.yml")
		err := os.WriteFile(configPath, []byte("{not valid: yaml: content"), 0o644)
		require.NoError(t, err)

		_, err = Load(configPath)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "parse config")
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "missing base url",
			yaml:    "server:\n  listen: \":8080\"\n",
			wantErr: "site.base_url is required",
		},
		{
			name:    "relative base url",
			yaml:    "site:\n  base_url: /relative/path\n",
			wantErr: "absolute URL",
		},
		{
			name:    "page without title",
			yaml:    "site:\n  base_url: https://example.com\n  pages:\n    - url: index.html\n",
			wantErr: "site.pages[0].title is required",
		},
		{
			name:    "feed without url",
			yaml:    "site:\n  base_url: https://example.com\nfeeds:\n  - source: NoURL\n",
			wantErr: "feeds[0].url is required",
		},
		{
			name:    "max results below per-page limit",
			yaml:    "site:\n  base_url: https://example.com\nsearch:\n  per_page_limit: 5\n  max_results: 2\n",
			wantErr: "max_results",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpDir := t.TempDir()
			configPath := filepath.Join(tmpDir, "cfg.yml")
			require.NoError(t, os.WriteFile(configPath, []byte(tt.yaml), 0o644))

			_, err := Load(configPath)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConfig_FeedAllowlist(t *testing.T) {
	cfg := &Config{Feeds: []Feed{
		{URL: "https://a.example.com/rss.xml"},
		{URL: "https://b.example.com/rss.xml"},
	}}
	assert.Equal(t, []string{"https://a.example.com/rss.xml", "https://b.example.com/rss.xml"}, cfg.FeedAllowlist())
}
