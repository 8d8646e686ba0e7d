package config

import (
	"fmt"
	"net/url"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

//go:generate go run ../../cmd/schema/main.go schema.json

// Config holds the application configuration
type Config struct {
	Server struct {
		Listen  string        `yaml:"listen" json:"listen" jsonschema:"default=:8080,description=HTTP server listen address"`
		Timeout time.Duration `yaml:"timeout" json:"timeout" jsonschema:"default=30s,description=HTTP server timeout"`
	} `yaml:"server" json:"server" jsonschema:"description=Server configuration"`

	Site SiteConfig `yaml:"site" json:"site" jsonschema:"description=Site pages eligible for search indexing"`

	Search SearchConfig `yaml:"search" json:"search" jsonschema:"description=Search index and query settings"`

	Feeds []Feed `yaml:"feeds" json:"feeds" jsonschema:"description=RSS feed sources for the news aggregator"`

	Proxy ProxyConfig `yaml:"proxy" json:"proxy" jsonschema:"description=Feed fetch strategies and proxy endpoints"`

	Cache CacheConfig `yaml:"cache" json:"cache" jsonschema:"description=Durable news cache settings"`
}

// SiteConfig describes the indexed site
type SiteConfig struct {
	BaseURL string `yaml:"base_url" json:"base_url" jsonschema:"required,description=Base URL the page paths are resolved against"`
	Pages   []Page `yaml:"pages" json:"pages" jsonschema:"description=Pages fetched into the search index"`
}

// Page is a single indexable page
type Page struct {
	URL   string `yaml:"url" json:"url" jsonschema:"required,description=Page path relative to base_url"`
	Title string `yaml:"title" json:"title" jsonschema:"required,description=Page title used as heading fallback"`
}

// Feed is a single RSS source with display metadata
type Feed struct {
	URL      string `yaml:"url" json:"url" jsonschema:"required,description=Feed URL"`
	Source   string `yaml:"source" json:"source" jsonschema:"description=Human-readable source name"`
	Category string `yaml:"category" json:"category" jsonschema:"description=Editorial category"`
	Icon     string `yaml:"icon" json:"icon" jsonschema:"description=Icon shown next to the source"`
}

// SearchConfig holds index build and query engine settings
type SearchConfig struct {
	FetchTimeout  time.Duration `yaml:"fetch_timeout" json:"fetch_timeout" jsonschema:"default=10s,description=Timeout per page fetch during index build"`
	MaxConcurrent int           `yaml:"max_concurrent" json:"max_concurrent" jsonschema:"default=5,description=Maximum concurrent page fetches"`
	RateLimit     float64       `yaml:"rate_limit" json:"rate_limit" jsonschema:"default=10,description=Page fetches per second during index build"`
	PerPageLimit  int           `yaml:"per_page_limit" json:"per_page_limit" jsonschema:"default=2,description=Maximum results reported per page"`
	MaxResults    int           `yaml:"max_results" json:"max_results" jsonschema:"default=12,description=Maximum results per query"`
	SnippetLength int           `yaml:"snippet_length" json:"snippet_length" jsonschema:"default=120,description=Approximate snippet length in characters"`
	MaxHighlights int           `yaml:"max_highlights" json:"max_highlights" jsonschema:"default=5,description=Maximum matches wrapped by the highlighter"`
	WarmupDelay   time.Duration `yaml:"warmup_delay" json:"warmup_delay" jsonschema:"default=300ms,description=Quiet period before a warmup signal triggers the index build"`
}

// ProxyConfig holds the feed fetch waterfall settings. Strategies run in
// order: direct origin fetch, JSON-envelope proxy, pre-parsed items proxy.
type ProxyConfig struct {
	DirectTimeout   time.Duration `yaml:"direct_timeout" json:"direct_timeout" jsonschema:"default=10s,description=Timeout for the direct origin fetch"`
	EnvelopeURL     string        `yaml:"envelope_url" json:"envelope_url" jsonschema:"default=https://api.allorigins.win/get?url=,description=Proxy returning JSON with the raw XML in a contents field; the escaped feed URL is appended"`
	EnvelopeTimeout time.Duration `yaml:"envelope_timeout" json:"envelope_timeout" jsonschema:"default=8s,description=Timeout for the envelope proxy"`
	ItemsURL        string        `yaml:"items_url" json:"items_url" jsonschema:"default=https://api.rss2json.com/v1/api.json?rss_url=,description=Proxy returning pre-parsed feed items; the escaped feed URL is appended"`
	ItemsTimeout    time.Duration `yaml:"items_timeout" json:"items_timeout" jsonschema:"default=6s,description=Timeout for the items proxy"`
	MaxItems        int           `yaml:"max_items" json:"max_items" jsonschema:"default=10,description=Maximum items taken per feed"`
	UserAgent       string        `yaml:"user_agent" json:"user_agent" jsonschema:"default=Mozilla/5.0 (compatible; SitescopeBot/1.0),description=User agent for feed requests"`
}

// CacheConfig holds the durable news cache settings
type CacheConfig struct {
	DSN string        `yaml:"dsn" json:"dsn" jsonschema:"default=file:sitescope.db?cache=shared&mode=rwc,description=SQLite connection string"`
	TTL time.Duration `yaml:"ttl" json:"ttl" jsonschema:"default=24h,description=Cache entry time to live"`
	Key string        `yaml:"key" json:"key" jsonschema:"default=news_cache_v2,description=Cache key for the aggregated news"`
}

// defaultFeeds are the sources used when the config lists none, matching the
// official German tax news outlets the site reports on.
var defaultFeeds = []Feed{
	{
		URL:      "https://www.bundesfinanzministerium.de/SiteGlobals/Functions/RSSFeed/DE/Pressemitteilungen/RSSPressemitteilungen.xml",
		Source:   "Bundesfinanzministerium",
		Category: "Steuerpolitik",
		Icon:     "🏛️",
	},
	{
		URL:      "https://www.bundesfinanzministerium.de/SiteGlobals/Functions/RSSFeed/DE/Steuern/RSSSteuern.xml",
		Source:   "BMF Steuern",
		Category: "Steuerrecht",
		Icon:     "📋",
	},
	{
		URL:      "https://www.haufe.de/xml/rss_129148.xml",
		Source:   "Haufe Steuer",
		Category: "Steuerrecht",
		Icon:     "⚖️",
	},
	{
		URL:      "https://www.bundesrat.de/SiteGlobals/Functions/RSSFeed/RSSGenerator_Announcement.xml?nn=4352850",
		Source:   "Bundesrat",
		Category: "Gesetzgebung",
		Icon:     "📜",
	},
}

// Load reads configuration from a YAML file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // file path comes from CLI flag
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	// expand environment variables
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	// set defaults for server
	if cfg.Server.Listen == "" {
		cfg.Server.Listen = ":8080"
	}
	if cfg.Server.Timeout == 0 {
		cfg.Server.Timeout = 30 * time.Second
	}

	// set defaults for search
	if cfg.Search.FetchTimeout == 0 {
		cfg.Search.FetchTimeout = 10 * time.Second
	}
	if cfg.Search.MaxConcurrent == 0 {
		cfg.Search.MaxConcurrent = 5
	}
	if cfg.Search.RateLimit == 0 {
		cfg.Search.RateLimit = 10
	}
	if cfg.Search.PerPageLimit == 0 {
		cfg.Search.PerPageLimit = 2
	}
	if cfg.Search.MaxResults == 0 {
		cfg.Search.MaxResults = 12
	}
	if cfg.Search.SnippetLength == 0 {
		cfg.Search.SnippetLength = 120
	}
	if cfg.Search.MaxHighlights == 0 {
		cfg.Search.MaxHighlights = 5
	}
	if cfg.Search.WarmupDelay == 0 {
		cfg.Search.WarmupDelay = 300 * time.Millisecond
	}

	// set defaults for feeds
	if len(cfg.Feeds) == 0 {
		cfg.Feeds = defaultFeeds
	}

	// set defaults for proxy waterfall
	if cfg.Proxy.DirectTimeout == 0 {
		cfg.Proxy.DirectTimeout = 10 * time.Second
	}
	if cfg.Proxy.EnvelopeURL == "" {
		cfg.Proxy.EnvelopeURL = "https://api.allorigins.win/get?url="
	}
	if cfg.Proxy.EnvelopeTimeout == 0 {
		cfg.Proxy.EnvelopeTimeout = 8 * time.Second
	}
	if cfg.Proxy.ItemsURL == "" {
		cfg.Proxy.ItemsURL = "https://api.rss2json.com/v1/api.json?rss_url="
	}
	if cfg.Proxy.ItemsTimeout == 0 {
		cfg.Proxy.ItemsTimeout = 6 * time.Second
	}
	if cfg.Proxy.MaxItems == 0 {
		cfg.Proxy.MaxItems = 10
	}
	if cfg.Proxy.UserAgent == "" {
		cfg.Proxy.UserAgent = "Mozilla/5.0 (compatible; SitescopeBot/1.0)"
	}

	// set defaults for cache
	if cfg.Cache.DSN == "" {
		cfg.Cache.DSN = "file:sitescope.db?cache=shared&mode=rwc"
	}
	if cfg.Cache.TTL == 0 {
		cfg.Cache.TTL = 24 * time.Hour
	}
	if cfg.Cache.Key == "" {
		cfg.Cache.Key = "news_cache_v2"
	}

	// validate configuration
	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// validate checks configuration for correctness
func validate(cfg *Config) error {
	if cfg.Site.BaseURL == "" {
		return fmt.Errorf("site.base_url is required")
	}
	if u, err := url.Parse(cfg.Site.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("site.base_url must be an absolute URL")
	}
	for i, p := range cfg.Site.Pages {
		if p.URL == "" {
			return fmt.Errorf("site.pages[%d].url is required", i)
		}
		if p.Title == "" {
			return fmt.Errorf("site.pages[%d].title is required", i)
		}
	}

	for i, f := range cfg.Feeds {
		if f.URL == "" {
			return fmt.Errorf("feeds[%d].url is required", i)
		}
	}

	if cfg.Server.Timeout < time.Second {
		return fmt.Errorf("server timeout must be at least 1 second")
	}
	if cfg.Search.FetchTimeout < time.Second {
		return fmt.Errorf("search fetch_timeout must be at least 1 second")
	}
	if cfg.Search.PerPageLimit < 1 {
		return fmt.Errorf("search per_page_limit must be at least 1")
	}
	if cfg.Search.MaxResults < cfg.Search.PerPageLimit {
		return fmt.Errorf("search max_results must be at least per_page_limit")
	}
	if cfg.Cache.TTL < time.Minute {
		return fmt.Errorf("cache ttl must be at least 1 minute")
	}

	return nil
}

// GetServerConfig returns server configuration
func (c *Config) GetServerConfig() (listen string, timeout time.Duration) {
	return c.Server.Listen, c.Server.Timeout
}

// GetFeeds returns the configured feed sources
func (c *Config) GetFeeds() []Feed {
	return c.Feeds
}

// FeedAllowlist returns the URLs the first-party proxy is willing to fetch
func (c *Config) FeedAllowlist() []string {
	urls := make([]string, 0, len(c.Feeds))
	for _, f := range c.Feeds {
		urls = append(urls, f.URL)
	}
	return urls
}
