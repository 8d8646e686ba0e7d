package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/go-pkgz/lgr"
	"github.com/go-pkgz/rest"
	"github.com/go-pkgz/rest/logger"
	"github.com/go-pkgz/routegroup"

	"github.com/stb-erben/sitescope/pkg/domain"
	"github.com/stb-erben/sitescope/pkg/search"
)

// Server represents HTTP server instance
type Server struct {
	config      ConfigProvider
	searcher    Searcher
	warmer      Warmer
	aggregator  NewsProvider
	highlighter PageHighlighter
	pages       PageLoader
	proxy       *FeedProxy
	warmup      *search.Debouncer
	version     string
	debug       bool

	started time.Time

	lock       sync.Mutex
	httpServer *http.Server
	router     *routegroup.Bundle
}

// Searcher answers search queries against the built index
type Searcher interface {
	Search(query string) ([]domain.SearchResult, error)
}

// Warmer triggers and reports on the background index build
type Warmer interface {
	Warm(ctx context.Context)
	Ready() bool
}

// NewsProvider supplies the aggregated article list
type NewsProvider interface {
	News(ctx context.Context) []domain.Article
}

// PageHighlighter marks term occurrences in page markup
type PageHighlighter interface {
	Highlight(markup, term string) (marked string, matches int, err error)
}

// PageLoader retrieves raw page markup for highlighting
type PageLoader interface {
	FetchHTML(ctx context.Context, pageURL string) (string, error)
}

// ConfigProvider provides server configuration
type ConfigProvider interface {
	GetServerConfig() (listen string, timeout time.Duration)
}

// Params groups the server dependencies
type Params struct {
	Config      ConfigProvider
	Searcher    Searcher
	Warmer      Warmer
	Aggregator  NewsProvider
	Highlighter PageHighlighter
	Pages       PageLoader
	Proxy       *FeedProxy
	WarmupDelay time.Duration
	Version     string
	Debug       bool
}

// New initializes a new server instance
func New(params Params) *Server {
	s := &Server{
		config:      params.Config,
		searcher:    params.Searcher,
		warmer:      params.Warmer,
		aggregator:  params.Aggregator,
		highlighter: params.Highlighter,
		pages:       params.Pages,
		proxy:       params.Proxy,
		version:     params.Version,
		debug:       params.Debug,
		started:     time.Now(),
		router:      routegroup.New(http.NewServeMux()),
	}
	s.warmup = search.NewDebouncer(params.WarmupDelay)

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// Run starts the HTTP server and handles graceful shutdown
func (s *Server) Run(ctx context.Context) error {
	listen, timeout := s.config.GetServerConfig()
	log.Printf("[INFO] starting server on %s", listen)

	s.lock.Lock()
	s.httpServer = &http.Server{
		Addr:         listen,
		Handler:      s.router,
		ReadTimeout:  timeout,
		WriteTimeout: timeout,
	}
	s.lock.Unlock()

	go func() {
		<-ctx.Done()
		log.Printf("[INFO] shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("[WARN] server shutdown error: %v", err)
		}
	}()

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server error: %w", err)
	}

	return nil
}

// setupMiddleware configures standard middleware for the server
func (s *Server) setupMiddleware() {
	s.router.Use(rest.AppInfo("sitescope", "stb-erben", s.version))
	s.router.Use(rest.Ping)

	if s.debug {
		s.router.Use(logger.New(logger.Log(lgr.Default()), logger.Prefix("[DEBUG]")).Handler)
	}

	s.router.Use(rest.Recoverer(lgr.Default()))
	s.router.Use(rest.Throttle(100))
	s.router.Use(rest.SizeLimit(1024 * 1024)) // 1MB
}

// setupRoutes configures application routes
func (s *Server) setupRoutes() {
	s.router.Mount("/api/v1").Route(func(r *routegroup.Bundle) {
		r.HandleFunc("GET /status", s.statusHandler)
		r.HandleFunc("GET /search", s.searchHandler)
		r.HandleFunc("POST /search/warmup", s.warmupHandler)
		r.HandleFunc("GET /news", s.newsHandler)
		r.HandleFunc("GET /highlight", s.highlightHandler)
		r.HandleFunc("GET /feed-proxy", s.feedProxyHandler)
	})
}

// statusHandler returns server status
func (s *Server) statusHandler(w http.ResponseWriter, r *http.Request) {
	status := map[string]interface{}{
		"status":      "ok",
		"version":     s.version,
		"index_ready": s.warmer.Ready(),
		"uptime":      time.Since(s.started).Round(time.Second).String(),
		"time":        time.Now().UTC(),
	}
	RenderJSON(w, r, http.StatusOK, status)
}

// RenderJSON sends JSON response
func RenderJSON(w http.ResponseWriter, _ *http.Request, code int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			log.Printf("[ERROR] can't encode response to JSON: %v", err)
		}
	}
}

// RenderError sends error response as JSON
func RenderError(w http.ResponseWriter, r *http.Request, err error, code int) {
	errMsg := "unknown error"
	if err != nil {
		errMsg = err.Error()
	}
	RenderJSON(w, r, code, map[string]string{"error": errMsg})
}
