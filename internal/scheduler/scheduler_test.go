package scheduler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/IshaanNene/newsblend/internal/config"
	"github.com/IshaanNene/newsblend/internal/storage"
	"github.com/IshaanNene/newsblend/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

type fakeScraper struct {
	calls   atomic.Int32
	items   []types.ScrapedItem
	started chan struct{}
	release chan struct{}
	panics  bool
}

func (f *fakeScraper) ScrapeAll(ctx context.Context) []types.ScrapedItem {
	f.calls.Add(1)
	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.release != nil {
		<-f.release
	}
	if f.panics {
		panic("selector engine exploded")
	}
	return f.items
}

// flakyStore fails upserts for selected links.
type flakyStore struct {
	*storage.MemoryStore
	fail map[string]error
}

func (s *flakyStore) UpsertByLink(ctx context.Context, doc types.NewsDocument) (*types.NewsDocument, error) {
	if err, ok := s.fail[doc.Link]; ok {
		return nil, err
	}
	return s.MemoryStore.UpsertByLink(ctx, doc)
}

func item(n int) types.ScrapedItem {
	return types.ScrapedItem{
		Title:  fmt.Sprintf("Meldung Nummer %d", n),
		Link:   fmt.Sprintf("https://news.example/%d", n),
		Date:   time.Date(2025, 3, n, 0, 0, 0, 0, time.UTC),
		Source: "Stadt Dortmund",
	}
}

func testConfig() *config.SchedulerConfig {
	cfg := config.DefaultConfig().Scheduler
	cfg.Cron = "1h"
	cfg.InitialDelay = time.Hour
	return &cfg
}

func TestScrapeNowPersistsItems(t *testing.T) {
	store := storage.NewMemoryStore(testLogger)
	sc := &fakeScraper{items: []types.ScrapedItem{item(1), item(2), item(3)}}
	s := New(testConfig(), sc, store, testLogger)

	res, err := s.ScrapeNow(context.Background())
	if err != nil {
		t.Fatalf("scrape: %v", err)
	}
	if res.Scraped != 3 || res.Inserted != 3 || res.Failed != 0 {
		t.Errorf("result = %+v", res)
	}
	if n, _ := store.Count(context.Background()); n != 3 {
		t.Errorf("store count = %d", n)
	}

	// A second pass over the same links updates in place.
	if _, err := s.ScrapeNow(context.Background()); err != nil {
		t.Fatal(err)
	}
	if n, _ := store.Count(context.Background()); n != 3 {
		t.Errorf("store count after rerun = %d", n)
	}

	last, ok := s.LastRun()
	if !ok || last.Scraped != 3 {
		t.Errorf("last run = %+v, %v", last, ok)
	}
}

func TestConcurrentScrapeNowIsRejected(t *testing.T) {
	sc := &fakeScraper{
		items:   []types.ScrapedItem{item(1)},
		started: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
	s := New(testConfig(), sc, storage.NewMemoryStore(testLogger), testLogger)

	var wg sync.WaitGroup
	var firstErr error
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, firstErr = s.ScrapeNow(context.Background())
	}()

	<-sc.started
	if !s.Running() {
		t.Error("Running should report the in-flight pass")
	}

	_, err := s.ScrapeNow(context.Background())
	if !errors.Is(err, types.ErrScrapeInProgress) {
		t.Fatalf("expected ErrScrapeInProgress, got %v", err)
	}
	if got := sc.calls.Load(); got != 1 {
		t.Errorf("scraper invoked %d times while latched", got)
	}

	close(sc.release)
	wg.Wait()
	if firstErr != nil {
		t.Errorf("first pass: %v", firstErr)
	}
	if s.Running() {
		t.Error("latch should be released after the pass")
	}
}

func TestLatchReleasedAfterPanic(t *testing.T) {
	sc := &fakeScraper{panics: true}
	s := New(testConfig(), sc, storage.NewMemoryStore(testLogger), testLogger)

	if _, err := s.ScrapeNow(context.Background()); err == nil {
		t.Fatal("expected error from panicking scraper")
	}
	if s.Running() {
		t.Fatal("latch still held after panic")
	}

	sc.panics = false
	if _, err := s.ScrapeNow(context.Background()); err != nil {
		t.Errorf("pass after panic: %v", err)
	}
}

func TestUpsertFailuresDoNotAbortRun(t *testing.T) {
	store := &flakyStore{
		MemoryStore: storage.NewMemoryStore(testLogger),
		fail: map[string]error{
			item(2).Link: &types.StoreError{Op: "upsert", Err: errors.New("connection reset")},
			item(3).Link: &types.StoreError{Op: "upsert", Err: fmt.Errorf("%w: race", types.ErrDuplicateKey)},
		},
	}
	sc := &fakeScraper{items: []types.ScrapedItem{item(1), item(2), item(3), item(4)}}
	s := New(testConfig(), sc, store, testLogger)

	res, err := s.ScrapeNow(context.Background())
	if err != nil {
		t.Fatalf("scrape: %v", err)
	}
	if res.Inserted != 2 || res.Failed != 1 || res.Duplicates != 1 {
		t.Errorf("result = %+v", res)
	}
	if n, _ := store.Count(context.Background()); n != 2 {
		t.Errorf("store count = %d", n)
	}
}

type manualTimer struct {
	spec  string
	task  func()
	start atomic.Bool
	stop  atomic.Bool
}

func (m *manualTimer) ScheduleRepeating(spec string, task func()) error {
	m.spec, m.task = spec, task
	return nil
}
func (m *manualTimer) Start() { m.start.Store(true) }
func (m *manualTimer) Stop()  { m.stop.Store(true) }

func TestStartRunsInitialPassAndSchedules(t *testing.T) {
	cfg := testConfig()
	cfg.Cron = "0 */6 * * *"
	cfg.InitialDelay = 10 * time.Millisecond

	sc := &fakeScraper{items: []types.ScrapedItem{item(1)}, started: make(chan struct{}, 4)}
	timer := &manualTimer{}
	s := New(cfg, sc, storage.NewMemoryStore(testLogger), testLogger, WithTimer(timer))

	if err := s.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer s.Stop()

	select {
	case <-sc.started:
	case <-time.After(2 * time.Second):
		t.Fatal("initial pass did not run")
	}

	if timer.spec != "0 */6 * * *" || !timer.start.Load() {
		t.Errorf("timer not scheduled: spec=%q started=%v", timer.spec, timer.start.Load())
	}

	deadline := time.Now().Add(2 * time.Second)
	for s.Running() && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}

	timer.task()
	if got := sc.calls.Load(); got != 2 {
		t.Errorf("scheduled task calls = %d", got)
	}

	s.Stop()
	if !timer.stop.Load() {
		t.Error("Stop should stop the timer")
	}
}

func TestStopBeforeInitialDelaySkipsPass(t *testing.T) {
	sc := &fakeScraper{}
	s := New(testConfig(), sc, storage.NewMemoryStore(testLogger), testLogger, WithTimer(&manualTimer{}))
	if err := s.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	s.Stop()
	if got := sc.calls.Load(); got != 0 {
		t.Errorf("scraper called %d times", got)
	}
}

func TestNewTimerPicksImplementation(t *testing.T) {
	if _, ok := NewTimer("6h", testLogger).(*IntervalTimer); !ok {
		t.Error("duration spec should use IntervalTimer")
	}
	if _, ok := NewTimer("0 */6 * * *", testLogger).(*CronTimer); !ok {
		t.Error("cron spec should use CronTimer")
	}
}

func TestCronTimerRejectsInvalidSpec(t *testing.T) {
	timer := NewCronTimer(testLogger)
	if err := timer.ScheduleRepeating("every six hours", func() {}); err == nil {
		t.Error("expected error for invalid cron expression")
	}
	if err := timer.ScheduleRepeating("@hourly", func() {}); err != nil {
		t.Errorf("descriptor rejected: %v", err)
	}
	if err := timer.ScheduleRepeating("0 */6 * * *", func() {}); err != nil {
		t.Errorf("standard expression rejected: %v", err)
	}
}

func TestIntervalTimerTicks(t *testing.T) {
	timer := NewIntervalTimer(testLogger)
	var ticks atomic.Int32
	if err := timer.ScheduleRepeating("10ms", func() {
		if ticks.Add(1) == 1 {
			panic("first tick panics")
		}
	}); err != nil {
		t.Fatal(err)
	}
	timer.Start()

	deadline := time.Now().Add(2 * time.Second)
	for ticks.Load() < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	timer.Stop()

	if ticks.Load() < 3 {
		t.Errorf("expected ticks to continue after a panic, got %d", ticks.Load())
	}
	if err := timer.ScheduleRepeating("-1s", func() {}); err == nil {
		t.Error("negative interval accepted")
	}
}
