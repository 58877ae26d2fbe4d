package scheduler

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Timer runs a task repeatedly on a schedule.
type Timer interface {
	// ScheduleRepeating registers task to run on every tick of spec.
	ScheduleRepeating(spec string, task func()) error
	Start()
	// Stop halts the timer and waits for a running task to return.
	Stop()
}

// NewTimer returns an IntervalTimer when spec is a Go duration ("6h") and a
// CronTimer otherwise.
func NewTimer(spec string, logger *slog.Logger) Timer {
	if _, err := time.ParseDuration(spec); err == nil {
		return NewIntervalTimer(logger)
	}
	return NewCronTimer(logger)
}

// CronTimer schedules tasks with five-field cron expressions.
type CronTimer struct {
	cron *cron.Cron
}

// NewCronTimer creates a cron-backed timer. Task panics are recovered and
// logged.
func NewCronTimer(logger *slog.Logger) *CronTimer {
	// Standard 5-field parser (minute hour day month weekday) plus @every/@daily.
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	cl := cronLogger{logger: logger.With("component", "cron")}
	return &CronTimer{
		cron: cron.New(cron.WithParser(parser), cron.WithChain(cron.Recover(cl)), cron.WithLogger(cl)),
	}
}

func (t *CronTimer) ScheduleRepeating(spec string, task func()) error {
	if _, err := t.cron.AddFunc(spec, task); err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", spec, err)
	}
	return nil
}

func (t *CronTimer) Start() { t.cron.Start() }

func (t *CronTimer) Stop() { <-t.cron.Stop().Done() }

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error(msg, append(keysAndValues, "error", err)...)
}

// IntervalTimer runs tasks at a fixed interval.
type IntervalTimer struct {
	mu     sync.Mutex
	jobs   []intervalJob
	done   chan struct{}
	wg     sync.WaitGroup
	logger *slog.Logger
}

type intervalJob struct {
	every time.Duration
	task  func()
}

// NewIntervalTimer creates an interval timer.
func NewIntervalTimer(logger *slog.Logger) *IntervalTimer {
	return &IntervalTimer{logger: logger.With("component", "interval_timer")}
}

func (t *IntervalTimer) ScheduleRepeating(spec string, task func()) error {
	every, err := time.ParseDuration(spec)
	if err != nil {
		return fmt.Errorf("invalid interval %q: %w", spec, err)
	}
	if every <= 0 {
		return fmt.Errorf("invalid interval %q: must be positive", spec)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.jobs = append(t.jobs, intervalJob{every: every, task: task})
	return nil
}

func (t *IntervalTimer) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done != nil {
		return
	}
	t.done = make(chan struct{})
	for _, job := range t.jobs {
		t.wg.Add(1)
		go t.loop(job, t.done)
	}
}

func (t *IntervalTimer) loop(job intervalJob, done <-chan struct{}) {
	defer t.wg.Done()
	ticker := time.NewTicker(job.every)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			t.runTask(job.task)
		}
	}
}

func (t *IntervalTimer) runTask(task func()) {
	defer func() {
		if r := recover(); r != nil {
			t.logger.Error("task panicked", "panic", r)
		}
	}()
	task()
}

func (t *IntervalTimer) Stop() {
	t.mu.Lock()
	done := t.done
	t.done = nil
	t.mu.Unlock()

	if done == nil {
		return
	}
	close(done)
	t.wg.Wait()
}
