// Package api exposes the aggregated content, the news store and the
// scraper over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/IshaanNene/newsblend/internal/config"
	"github.com/IshaanNene/newsblend/internal/observability"
	"github.com/IshaanNene/newsblend/internal/paginator"
	"github.com/IshaanNene/newsblend/internal/scheduler"
	"github.com/IshaanNene/newsblend/internal/types"
	"github.com/IshaanNene/newsblend/internal/wordpress"
)

// ContentProvider serves normalized content.
type ContentProvider interface {
	GetCombinedContent(ctx context.Context) ([]types.ContentItem, error)
	Posts(ctx context.Context) ([]types.ContentItem, error)
	StoreNews(ctx context.Context) ([]types.ContentItem, error)
	SeedNews() []types.ContentItem
}

// PageProvider serves windows of the news store.
type PageProvider interface {
	GetPage(ctx context.Context, page, limit int) (paginator.Page, error)
	DefaultLimit() int
}

// NewsInserter stores manually submitted news.
type NewsInserter interface {
	Insert(ctx context.Context, doc types.NewsDocument) (*types.NewsDocument, error)
}

// DryRunScraper scrapes without persisting.
type DryRunScraper interface {
	ScrapeAll(ctx context.Context) []types.ScrapedItem
}

// ScrapeTrigger runs a persisted scrape pass on demand.
type ScrapeTrigger interface {
	ScrapeNow(ctx context.Context) (scheduler.RunResult, error)
}

// WordPressInspector exposes the raw upstream view.
type WordPressInspector interface {
	Inspect(ctx context.Context) (*wordpress.Inspection, error)
}

// Deps are the components the server routes to.
type Deps struct {
	Content        ContentProvider
	Pages          PageProvider
	Store          NewsInserter
	Scraper        DryRunScraper
	Scheduler      ScrapeTrigger
	WordPress      WordPressInspector
	Metrics        *observability.Metrics
	MetricsHandler http.Handler
}

// Server is the HTTP boundary.
type Server struct {
	mux        *http.ServeMux
	httpServer *http.Server
	deps       Deps
	corsOrigin string
	scrapeKey  string
	metrics    *observability.Metrics
	now        func() time.Time
	logger     *slog.Logger
}

// NewServer creates the API server and registers its routes.
func NewServer(cfg *config.Config, deps Deps, logger *slog.Logger) *Server {
	s := &Server{
		mux:        http.NewServeMux(),
		deps:       deps,
		corsOrigin: cfg.Server.CORSOrigin,
		scrapeKey:  cfg.Scheduler.ScrapeKey,
		metrics:    deps.Metrics,
		now:        time.Now,
		logger:     logger.With("component", "api_server"),
	}
	if s.corsOrigin == "" {
		s.corsOrigin = "*"
	}

	s.registerRoutes(cfg)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      s.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	return s
}

func (s *Server) registerRoutes(cfg *config.Config) {
	// Health
	s.mux.HandleFunc("GET /api/health", s.handleHealth)

	// Content
	s.mux.HandleFunc("GET /api/posts", s.handlePosts)
	s.mux.HandleFunc("GET /api/content", s.handleContent)
	s.mux.HandleFunc("GET /api/debug/wordpress", s.handleDebugWordPress)

	// News
	s.mux.HandleFunc("GET /api/news", s.handleNews)
	s.mux.HandleFunc("GET /api/news/test", s.handleTestScrape)
	s.mux.HandleFunc("POST /api/news/scrape", s.handleScrape)

	// Store
	s.mux.HandleFunc("GET /api/mongo/news", s.handleStoreNews)
	s.mux.HandleFunc("POST /api/mongo/news", s.handleInsert)
	s.mux.HandleFunc("POST /api/mongo/news/insert", s.handleInsert)

	// Metrics
	if cfg.Metrics.Enabled && s.deps.MetricsHandler != nil {
		s.mux.Handle("GET "+cfg.Metrics.Path, s.deps.MetricsHandler)
	}
}

// Handler returns the routed handler wrapped in the server middleware.
func (s *Server) Handler() http.Handler {
	return s.withMiddleware(s.mux)
}

// ListenAndServe serves until Shutdown is called.
func (s *Server) ListenAndServe() error {
	s.logger.Info("API server starting", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("api server: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("API server shutting down")
	return s.httpServer.Shutdown(ctx)
}

// statusRecorder captures the status written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		defer func() {
			if p := recover(); p != nil {
				s.logger.Error("handler panicked", "method", r.Method, "path", r.URL.Path, "panic", p)
				s.errorResponse(rec, http.StatusInternalServerError, "Internal server error", nil)
			}

			route := r.Pattern
			if route == "" {
				route = "unmatched"
			}
			duration := time.Since(start)
			s.metrics.ObserveHTTPRequest(r.Method, route, rec.status, duration)
			s.logger.Debug("request served",
				"method", r.Method,
				"path", r.URL.Path,
				"status", rec.status,
				"duration", duration,
			)
		}()

		if r.Method == http.MethodOptions {
			w.Header().Set("Access-Control-Allow-Origin", s.corsOrigin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, x-scrape-key")
			rec.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(rec, r)
	})
}

func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", s.corsOrigin)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Warn("failed to encode response", "error", err)
	}
}

// errorBody is the shape of every error response.
type errorBody struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func (s *Server) errorResponse(w http.ResponseWriter, status int, msg string, err error) {
	body := errorBody{Error: msg}
	if err != nil {
		body.Details = err.Error()
	}
	s.jsonResponse(w, status, body)
}
