// Package scheduler runs the scraper periodically and persists its results.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/IshaanNene/newsblend/internal/config"
	"github.com/IshaanNene/newsblend/internal/observability"
	"github.com/IshaanNene/newsblend/internal/types"
)

// Trigger labels for scrape runs.
const (
	TriggerSchedule = "schedule"
	TriggerInitial  = "initial"
	TriggerManual   = "manual"
)

// ItemScraper produces the items of one scrape pass.
type ItemScraper interface {
	ScrapeAll(ctx context.Context) []types.ScrapedItem
}

// Upserter persists scraped documents keyed by link.
type Upserter interface {
	UpsertByLink(ctx context.Context, doc types.NewsDocument) (*types.NewsDocument, error)
}

// RunResult summarizes one scrape pass.
type RunResult struct {
	Scraped    int           `json:"scraped"`
	Inserted   int           `json:"inserted"`
	Duplicates int           `json:"duplicates"`
	Failed     int           `json:"failed"`
	StartedAt  time.Time     `json:"startedAt"`
	Duration   time.Duration `json:"duration"`
}

// Scheduler triggers scrape passes on a schedule and on demand. At most one
// pass runs at a time.
type Scheduler struct {
	scraper      ItemScraper
	store        Upserter
	timer        Timer
	spec         string
	initialDelay time.Duration
	now          func() time.Time
	metrics      *observability.Metrics
	logger       *slog.Logger

	running atomic.Bool

	mu      sync.Mutex
	lastRun *RunResult
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithTimer overrides the timer chosen from the schedule expression.
func WithTimer(t Timer) Option {
	return func(s *Scheduler) { s.timer = t }
}

// WithMetrics records run outcomes.
func WithMetrics(m *observability.Metrics) Option {
	return func(s *Scheduler) { s.metrics = m }
}

// WithClock sets the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// New creates a Scheduler.
func New(cfg *config.SchedulerConfig, scraper ItemScraper, store Upserter, logger *slog.Logger, opts ...Option) *Scheduler {
	s := &Scheduler{
		scraper:      scraper,
		store:        store,
		spec:         cfg.Cron,
		initialDelay: cfg.InitialDelay,
		now:          time.Now,
		logger:       logger.With("component", "scheduler"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.timer == nil {
		s.timer = NewTimer(cfg.Cron, logger)
	}
	return s
}

// Start registers the repeating scrape and schedules one initial pass after
// the configured delay. Runs stop when ctx is cancelled or Stop is called.
func (s *Scheduler) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)

	err := s.timer.ScheduleRepeating(s.spec, func() {
		s.trigger(ctx, TriggerSchedule)
	})
	if err != nil {
		cancel()
		return err
	}

	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()

	s.timer.Start()
	s.logger.Info("scheduler started", "schedule", s.spec, "initial_delay", s.initialDelay)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		t := time.NewTimer(s.initialDelay)
		defer t.Stop()
		select {
		case <-ctx.Done():
		case <-t.C:
			s.trigger(ctx, TriggerInitial)
		}
	}()
	return nil
}

// Stop cancels in-flight work and waits for the timer to wind down.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	s.timer.Stop()
	s.wg.Wait()
	s.logger.Info("scheduler stopped")
}

// trigger runs a pass from the timer, where the result has no caller.
func (s *Scheduler) trigger(ctx context.Context, trigger string) {
	if _, err := s.run(ctx, trigger); err != nil && !errors.Is(err, types.ErrScrapeInProgress) {
		s.logger.Error("scrape run failed", "trigger", trigger, "error", err)
	}
}

// ScrapeNow runs a pass immediately. It returns types.ErrScrapeInProgress
// without scraping when another pass is running.
func (s *Scheduler) ScrapeNow(ctx context.Context) (RunResult, error) {
	return s.run(ctx, TriggerManual)
}

// Running reports whether a pass is in progress.
func (s *Scheduler) Running() bool { return s.running.Load() }

// LastRun returns the result of the last finished pass.
func (s *Scheduler) LastRun() (RunResult, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastRun == nil {
		return RunResult{}, false
	}
	return *s.lastRun, true
}

func (s *Scheduler) run(ctx context.Context, trigger string) (result RunResult, err error) {
	if !s.running.CompareAndSwap(false, true) {
		s.logger.Info("scrape already in progress, skipping", "trigger", trigger)
		s.metrics.SkipScrapeRun(trigger)
		return RunResult{}, types.ErrScrapeInProgress
	}
	defer s.running.Store(false)

	s.metrics.SetScrapeRunning(true)
	result.StartedAt = s.now()
	s.logger.Info("starting scrape", "trigger", trigger)

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("scrape run panicked: %v", r)
		}
		result.Duration = s.now().Sub(result.StartedAt)
		s.metrics.SetScrapeRunning(false)
		s.metrics.ObserveScrapeRun(trigger, err, result.Duration, s.now())

		if err == nil {
			s.mu.Lock()
			last := result
			s.lastRun = &last
			s.mu.Unlock()
			s.logger.Info("scrape completed",
				"trigger", trigger,
				"scraped", result.Scraped,
				"inserted", result.Inserted,
				"duplicates", result.Duplicates,
				"failed", result.Failed,
				"duration", result.Duration,
			)
		}
	}()

	items := s.scraper.ScrapeAll(ctx)
	result.Scraped = len(items)

	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		_, err := s.store.UpsertByLink(ctx, item.ToDocument(s.now()))
		switch {
		case err == nil:
			result.Inserted++
			s.metrics.ObserveUpsert(observability.OutcomeSuccess)
		case errors.Is(err, types.ErrDuplicateKey):
			result.Duplicates++
			s.metrics.ObserveUpsert(observability.OutcomeDuplicate)
		default:
			result.Failed++
			s.metrics.ObserveUpsert(observability.OutcomeFailure)
			s.logger.Warn("upsert failed", "title", item.Title, "link", item.Link, "error", err)
		}
	}
	return result, nil
}
