package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/fatih/color"
	"github.com/go-pkgz/lgr"
	"github.com/jessevdk/go-flags"

	"github.com/stb-erben/sitescope/pkg/cache"
	"github.com/stb-erben/sitescope/pkg/config"
	"github.com/stb-erben/sitescope/pkg/content"
	"github.com/stb-erben/sitescope/pkg/domain"
	"github.com/stb-erben/sitescope/pkg/feed"
	"github.com/stb-erben/sitescope/pkg/search"
	"github.com/stb-erben/sitescope/server"
)

// Opts with all CLI options
type Opts struct {
	Config string `short:"c" long:"config" env:"CONFIG" default:"sitescope.yml" description:"config file path"`

	// Common options
	Debug   bool `long:"dbg" env:"DEBUG" description:"debug mode"`
	Version bool `short:"V" long:"version" description:"show version info"`
	NoColor bool `long:"no-color" env:"NO_COLOR" description:"disable color output"`
}

var revision = "unknown"

func main() {
	var opts Opts
	parser := flags.NewParser(&opts, flags.Default)
	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	if opts.Version {
		fmt.Printf("Version: %s\nGolang: %s\n", revision, runtime.Version())
		os.Exit(0)
	}

	if opts.NoColor {
		color.NoColor = true
	}
	setupLog(opts.Debug)

	log.Printf("[INFO] starting sitescope version %s", revision)

	ctx, cancel := context.WithCancel(context.Background())

	// handle termination signals
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan
		log.Print("[INFO] termination signal received")
		cancel()
	}()

	if err := run(ctx, opts); err != nil {
		log.Printf("[ERROR] %v", err)
		cancel()
		os.Exit(1)
	}
	cancel()

	log.Print("[INFO] shutdown complete")
}

// run wires the application together and serves until ctx is canceled
func run(ctx context.Context, opts Opts) error {
	cfg, err := config.Load(opts.Config)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// search side: extractor feeds the index, engine queries it
	extractor := content.NewExtractor(cfg.Search.FetchTimeout, cfg.Proxy.UserAgent)
	index := search.NewIndex(extractor, search.IndexParams{
		BaseURL:       cfg.Site.BaseURL,
		Pages:         pagesFromConfig(cfg),
		MaxConcurrent: cfg.Search.MaxConcurrent,
		RateLimit:     cfg.Search.RateLimit,
	})
	engine := search.NewEngine(index, search.EngineParams{
		PerPageLimit:  cfg.Search.PerPageLimit,
		MaxResults:    cfg.Search.MaxResults,
		SnippetLength: cfg.Search.SnippetLength,
	})
	highlighter := search.NewHighlighter(cfg.Search.MaxHighlights)

	// news side: waterfall fetcher behind a durable cache
	store, err := cache.NewStore(ctx, cfg.Cache.DSN, cfg.Cache.TTL)
	if err != nil {
		return fmt.Errorf("open cache: %w", err)
	}
	defer store.Close()

	fetcher := feed.NewFetcher(feed.FetcherParams{
		DirectTimeout:   cfg.Proxy.DirectTimeout,
		EnvelopeURL:     cfg.Proxy.EnvelopeURL,
		EnvelopeTimeout: cfg.Proxy.EnvelopeTimeout,
		ItemsURL:        cfg.Proxy.ItemsURL,
		ItemsTimeout:    cfg.Proxy.ItemsTimeout,
		MaxItems:        cfg.Proxy.MaxItems,
		UserAgent:       cfg.Proxy.UserAgent,
	})
	aggregator := feed.NewAggregator(fetcher, store, cfg.Cache.Key, sourcesFromConfig(cfg))

	srv := server.New(server.Params{
		Config:      cfg,
		Searcher:    engine,
		Warmer:      index,
		Aggregator:  aggregator,
		Highlighter: highlighter,
		Pages:       extractor,
		Proxy:       server.NewFeedProxy(cfg.FeedAllowlist(), cfg.Proxy.DirectTimeout, cfg.Proxy.UserAgent),
		WarmupDelay: cfg.Search.WarmupDelay,
		Version:     revision,
		Debug:       opts.Debug,
	})

	if err := srv.Run(ctx); err != nil {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// pagesFromConfig maps configured pages to the index input type
func pagesFromConfig(cfg *config.Config) []domain.Page {
	pages := make([]domain.Page, 0, len(cfg.Site.Pages))
	for _, p := range cfg.Site.Pages {
		pages = append(pages, domain.Page{URL: p.URL, Title: p.Title})
	}
	return pages
}

// sourcesFromConfig maps configured feeds to aggregator sources
func sourcesFromConfig(cfg *config.Config) []feed.Source {
	sources := make([]feed.Source, 0, len(cfg.Feeds))
	for _, f := range cfg.Feeds {
		sources = append(sources, feed.Source{URL: f.URL, Name: f.Source, Category: f.Category, Icon: f.Icon})
	}
	return sources
}

func setupLog(dbg bool, secs ...string) {
	logOpts := []lgr.Option{lgr.Msec, lgr.LevelBraces}
	if dbg {
		logOpts = []lgr.Option{lgr.Debug, lgr.CallerFile, lgr.CallerFunc, lgr.Msec, lgr.LevelBraces, lgr.StackTraceOnError}
	}

	colorizer := lgr.Mapper{
		ErrorFunc:  func(s string) string { return color.New(color.FgHiRed).Sprint(s) },
		WarnFunc:   func(s string) string { return color.New(color.FgRed).Sprint(s) },
		InfoFunc:   func(s string) string { return color.New(color.FgYellow).Sprint(s) },
		DebugFunc:  func(s string) string { return color.New(color.FgWhite).Sprint(s) },
		CallerFunc: func(s string) string { return color.New(color.FgBlue).Sprint(s) },
		TimeFunc:   func(s string) string { return color.New(color.FgCyan).Sprint(s) },
	}
	logOpts = append(logOpts, lgr.Map(colorizer))
	if len(secs) > 0 {
		logOpts = append(logOpts, lgr.Secret(secs...))
	}
	lgr.SetupStdLogger(logOpts...)
	lgr.Setup(logOpts...)
}
