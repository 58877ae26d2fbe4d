// Package scraper extracts news items from configured HTML listing pages.
// Scraping is best effort: failures are logged and contribute no items.
package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/IshaanNene/newsblend/internal/config"
	"github.com/IshaanNene/newsblend/internal/fetcher"
	"github.com/IshaanNene/newsblend/internal/observability"
	"github.com/IshaanNene/newsblend/internal/pipeline"
	"github.com/IshaanNene/newsblend/internal/types"
)

// Fetcher kinds a Source can request.
const (
	FetcherHTTP    = "http"
	FetcherBrowser = "browser"
)

// Source is one HTML news listing.
type Source struct {
	Name    string `json:"name"`
	URL     string `json:"url"`
	Base    string `json:"base"`
	Fetcher string `json:"fetcher,omitempty"`
}

// SourcesFromConfig converts configured sources.
func SourcesFromConfig(cfgs []config.SourceConfig) []Source {
	sources := make([]Source, 0, len(cfgs))
	for _, c := range cfgs {
		sources = append(sources, Source{Name: c.Name, URL: c.URL, Base: c.Base, Fetcher: c.Fetcher})
	}
	return sources
}

// Scraper fetches every source and extracts items through a strategy chain.
type Scraper struct {
	sources        []Source
	strategies     []Strategy
	timeout        time.Duration
	minTitleLength int
	limiter        *rate.Limiter
	robots         *RobotsPolicy
	now            func() time.Time
	metrics        *observability.Metrics
	logger         *slog.Logger

	httpFetcher fetcher.Fetcher

	browserMu  sync.Mutex
	browser    fetcher.Fetcher
	newBrowser func() fetcher.Fetcher
}

// Option configures a Scraper.
type Option func(*Scraper)

// WithSources replaces the configured sources.
func WithSources(sources ...Source) Option {
	return func(s *Scraper) { s.sources = sources }
}

// WithHTTPFetcher overrides the fetcher used for plain HTTP sources.
func WithHTTPFetcher(f fetcher.Fetcher) Option {
	return func(s *Scraper) { s.httpFetcher = f }
}

// WithBrowserFetcher overrides the fetcher used for browser sources.
func WithBrowserFetcher(f fetcher.Fetcher) Option {
	return func(s *Scraper) { s.newBrowser = func() fetcher.Fetcher { return f } }
}

// WithStrategies replaces the extraction strategy chain.
func WithStrategies(strategies ...Strategy) Option {
	return func(s *Scraper) { s.strategies = strategies }
}

// WithClock sets the time source used for undated items.
func WithClock(now func() time.Time) Option {
	return func(s *Scraper) { s.now = now }
}

// WithRobotsPolicy enforces robots.txt before each source fetch.
func WithRobotsPolicy(rp *RobotsPolicy) Option {
	return func(s *Scraper) { s.robots = rp }
}

// WithMetrics records per-source outcomes.
func WithMetrics(m *observability.Metrics) Option {
	return func(s *Scraper) { s.metrics = m }
}

// New creates a Scraper from configuration.
func New(cfg *config.ScraperConfig, logger *slog.Logger, opts ...Option) *Scraper {
	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}

	s := &Scraper{
		sources:        SourcesFromConfig(cfg.Sources),
		timeout:        cfg.Timeout,
		minTitleLength: cfg.MinTitleLength,
		limiter:        rate.NewLimiter(limit, 1),
		now:            time.Now,
		logger:         logger.With("component", "scraper"),
		strategies: []Strategy{
			NewSelectorStrategy(cfg.MinTitleLength, logger),
			JSONLDStrategy{},
			&AnchorStrategy{PathFragment: cfg.FallbackPath, MinTextLength: cfg.FallbackMinLen},
		},
	}
	s.newBrowser = func() fetcher.Fetcher { return fetcher.NewBrowserFetcher(cfg, logger) }
	if cfg.RespectRobots {
		s.robots = NewRobotsPolicy(cfg.Timeout, cfg.RobotsTTL)
	}

	for _, opt := range opts {
		opt(s)
	}
	if s.httpFetcher == nil {
		s.httpFetcher = fetcher.NewHTTPFetcher(cfg, logger)
	}
	return s
}

// Sources returns the configured sources.
func (s *Scraper) Sources() []Source {
	out := make([]Source, len(s.sources))
	copy(out, s.sources)
	return out
}

// ScrapeAll scrapes every source sequentially and returns the combined
// items, deduplicated by case-insensitive link. It never fails; a source
// that errors contributes nothing.
func (s *Scraper) ScrapeAll(ctx context.Context) []types.ScrapedItem {
	var all []types.ScrapedItem

	for _, src := range s.sources {
		s.logger.Info("scraping source", "source", src.Name, "url", src.URL)
		items, err := s.ScrapeSource(ctx, src)
		if err != nil {
			s.logger.Error("source scrape failed", "source", src.Name, "error", err)
			continue
		}
		s.logger.Info("source scraped", "source", src.Name, "items", len(items))
		all = append(all, items...)
	}

	dedup := pipeline.New(s.logger)
	dedup.Use(pipeline.NewDedupMiddleware())
	return dedup.Run(all)
}

// ScrapeSource scrapes one source. Errors are *types.ScrapeSourceError.
func (s *Scraper) ScrapeSource(ctx context.Context, src Source) ([]types.ScrapedItem, error) {
	items, strategy, err := s.scrapeSource(ctx, src)
	s.metrics.ObserveScrapeSource(src.Name, strategy, len(items), err)
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Scraper) scrapeSource(ctx context.Context, src Source) ([]types.ScrapedItem, string, error) {
	fail := func(err error) ([]types.ScrapedItem, string, error) {
		return nil, "", &types.ScrapeSourceError{Source: src.Name, URL: src.URL, Err: err}
	}

	if s.robots != nil && !s.robots.Allowed(ctx, src.URL) {
		return fail(types.ErrRobotsDisallowed)
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return fail(err)
	}

	req, err := types.NewRequest(src.URL)
	if err != nil {
		return fail(err)
	}
	req.Timeout = s.timeout
	req.Source = src.Name
	req.FetcherType = src.Fetcher

	f, err := s.fetcherFor(src)
	if err != nil {
		return fail(err)
	}

	resp, err := f.Fetch(ctx, req)
	if err != nil {
		return fail(err)
	}

	doc, err := resp.Document()
	if err != nil {
		return fail(fmt.Errorf("parse html: %w", err))
	}

	page := NewPage(doc, src, resp.FinalURL, s.now())
	cleanup := s.cleanupPipeline(src)

	for _, strategy := range s.strategies {
		extracted, err := strategy.Extract(page)
		if err != nil {
			s.logger.Warn("strategy failed", "source", src.Name, "strategy", strategy.Name(), "error", err)
			continue
		}
		items := cleanup.Run(extracted)
		if len(items) > 0 {
			s.logger.Debug("strategy matched", "source", src.Name, "strategy", strategy.Name(), "items", len(items))
			return items, strategy.Name(), nil
		}
	}
	return nil, "", nil
}

func (s *Scraper) cleanupPipeline(src Source) *pipeline.Pipeline {
	p := pipeline.New(s.logger)
	p.Use(&pipeline.TrimMiddleware{})
	p.Use(pipeline.NewHTMLSanitizeMiddleware())
	p.Use(&pipeline.DefaultValueMiddleware{Source: src.Name, DescriptionLength: descriptionLength})
	p.Use(&pipeline.RequiredFieldsMiddleware{MinTitleLength: s.minTitleLength})
	p.Use(pipeline.NewDedupMiddleware())
	return p
}

// fetcherFor picks the fetcher for a source, launching the browser on
// first use.
func (s *Scraper) fetcherFor(src Source) (fetcher.Fetcher, error) {
	switch src.Fetcher {
	case "", FetcherHTTP:
		return s.httpFetcher, nil
	case FetcherBrowser:
		s.browserMu.Lock()
		defer s.browserMu.Unlock()
		if s.browser == nil {
			s.browser = s.newBrowser()
		}
		return s.browser, nil
	default:
		return nil, fmt.Errorf("unknown fetcher %q", src.Fetcher)
	}
}

// Close releases the fetchers.
func (s *Scraper) Close() error {
	var firstErr error
	if err := s.httpFetcher.Close(); err != nil {
		firstErr = err
	}
	s.browserMu.Lock()
	defer s.browserMu.Unlock()
	if s.browser != nil {
		if err := s.browser.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
