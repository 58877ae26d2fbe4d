// Package aggregator merges WordPress posts and stored news into one
// date-ordered feed. A failing source degrades the feed instead of failing
// it.
package aggregator

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/IshaanNene/newsblend/internal/config"
	"github.com/IshaanNene/newsblend/internal/observability"
	"github.com/IshaanNene/newsblend/internal/types"
)

// Source names used in logs and metrics.
const (
	SourceWordPress = "wordpress"
	SourceStore     = "store"
	SourceSeed      = "seed"
)

// PostFetcher returns the upstream WordPress posts.
type PostFetcher interface {
	FetchPosts(ctx context.Context) ([]types.WPPost, error)
}

// NewsReader returns stored news documents, newest first.
type NewsReader interface {
	FindRecent(ctx context.Context, limit int) ([]types.NewsDocument, error)
}

// Aggregator builds the combined content feed.
type Aggregator struct {
	wp            PostFetcher
	store         NewsReader
	seed          []SeedItem
	seedSource    string
	excerptLength int
	storeLimit    int
	now           func() time.Time
	metrics       *observability.Metrics
	logger        *slog.Logger
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithSeed sets the records served while the store is empty.
func WithSeed(items []SeedItem) Option {
	return func(a *Aggregator) { a.seed = items }
}

// WithClock sets the time source for undated items.
func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) { a.now = now }
}

// WithMetrics records per-source outcomes.
func WithMetrics(m *observability.Metrics) Option {
	return func(a *Aggregator) { a.metrics = m }
}

// New creates an Aggregator. The seed list is empty unless set with WithSeed.
func New(cfg *config.AggregatorConfig, wp PostFetcher, store NewsReader, logger *slog.Logger, opts ...Option) *Aggregator {
	a := &Aggregator{
		wp:            wp,
		store:         store,
		seedSource:    cfg.SeedSource,
		excerptLength: cfg.ExcerptLength,
		storeLimit:    cfg.StoreLimit,
		now:           time.Now,
		logger:        logger.With("component", "aggregator"),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// outcome captures one settled source fetch.
type outcome[T any] struct {
	value T
	err   error
	took  time.Duration
}

// settle runs fn in its own goroutine and records its result in out. A panic
// is recorded as a failure.
func settle[T any](wg *sync.WaitGroup, out *outcome[T], fn func() (T, error)) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		start := time.Now()
		defer func() {
			if r := recover(); r != nil {
				out.err = fmt.Errorf("panic: %v", r)
			}
			out.took = time.Since(start)
		}()
		out.value, out.err = fn()
	}()
}

// GetCombinedContent fetches all sources concurrently and returns the
// normalized items sorted by date descending. Source failures are logged and
// contribute nothing; only an internal failure while merging is returned.
func (a *Aggregator) GetCombinedContent(ctx context.Context) (items []types.ContentItem, err error) {
	var (
		wg       sync.WaitGroup
		wpOut    outcome[[]types.WPPost]
		storeOut outcome[[]types.NewsDocument]
	)
	settle(&wg, &wpOut, func() ([]types.WPPost, error) { return a.wp.FetchPosts(ctx) })
	settle(&wg, &storeOut, func() ([]types.NewsDocument, error) { return a.store.FindRecent(ctx, a.storeLimit) })
	wg.Wait()

	a.record(SourceWordPress, wpOut.err, wpOut.took)
	a.record(SourceStore, storeOut.err, storeOut.took)

	defer func() {
		if r := recover(); r != nil {
			items = nil
			err = fmt.Errorf("combine content: %v", r)
			a.logger.Error("combining content failed", "panic", r)
		}
	}()

	now := a.now()
	items = make([]types.ContentItem, 0, len(wpOut.value)+len(storeOut.value))
	for i, p := range wpOut.value {
		items = append(items, NormalizeWPPost(p, i, now))
	}
	for i, d := range storeOut.value {
		items = append(items, NormalizeNewsDocument(d, i, a.excerptLength, now))
	}
	if len(storeOut.value) == 0 && len(a.seed) > 0 {
		a.logger.Debug("store empty, serving seed news", "count", len(a.seed))
		items = append(items, a.SeedNews()...)
	}

	SortByDateDesc(items)
	a.metrics.SetCombinedItems(len(items))
	a.logger.Debug("combined content built",
		"wordpress", len(wpOut.value),
		"store", len(storeOut.value),
		"total", len(items),
	)
	return items, nil
}

// Posts returns the normalized WordPress posts. Upstream errors are returned.
func (a *Aggregator) Posts(ctx context.Context) ([]types.ContentItem, error) {
	start := time.Now()
	posts, err := a.wp.FetchPosts(ctx)
	a.record(SourceWordPress, err, time.Since(start))
	if err != nil {
		return nil, err
	}

	now := a.now()
	items := make([]types.ContentItem, 0, len(posts))
	for i, p := range posts {
		items = append(items, NormalizeWPPost(p, i, now))
	}
	return items, nil
}

// StoreNews returns the normalized stored documents in store order. Store
// errors are returned.
func (a *Aggregator) StoreNews(ctx context.Context) ([]types.ContentItem, error) {
	start := time.Now()
	docs, err := a.store.FindRecent(ctx, a.storeLimit)
	a.record(SourceStore, err, time.Since(start))
	if err != nil {
		return nil, err
	}

	now := a.now()
	items := make([]types.ContentItem, 0, len(docs))
	for i, d := range docs {
		items = append(items, NormalizeNewsDocument(d, i, a.excerptLength, now))
	}
	return items, nil
}

// SeedNews returns the normalized seed records.
func (a *Aggregator) SeedNews() []types.ContentItem {
	items := make([]types.ContentItem, 0, len(a.seed))
	for i, s := range a.seed {
		items = append(items, NormalizeSeed(s, i, a.excerptLength, a.seedSource))
	}
	return items
}

func (a *Aggregator) record(source string, err error, took time.Duration) {
	a.metrics.ObserveAggregatorSource(source, err, took)
	if err != nil {
		a.logger.Warn("content source failed", "source", source, "error", err, "duration", took)
	}
}
