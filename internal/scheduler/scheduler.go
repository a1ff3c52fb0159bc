// Package scheduler runs the background poll loop that fires due tasks.
// Each tick scans the store for due tasks, claims them one at a time, and
// hands the winners to the configured runner. Claiming is what advances
// next_run, so a crash between claim and run costs at most one execution,
// never a stuck task.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/fridayhq/friday/internal/bus"
	"github.com/fridayhq/friday/internal/otel"
	"github.com/fridayhq/friday/internal/persistence"
)

// Runner executes a claimed task. A non-nil error is recorded as a failed
// run; the task's schedule is unaffected either way.
type Runner interface {
	Run(ctx context.Context, task persistence.Task) error
}

// RunnerFunc adapts a function to the Runner interface.
type RunnerFunc func(ctx context.Context, task persistence.Task) error

func (f RunnerFunc) Run(ctx context.Context, task persistence.Task) error {
	return f(ctx, task)
}

// Config holds the dependencies for the scheduler.
type Config struct {
	Store   *persistence.Store
	Eval    persistence.ScheduleEvaluator
	Runner  Runner
	Logger  *slog.Logger
	Bus     *bus.Bus
	Metrics *otel.Metrics

	// Interval is the tick interval; defaults to 30 seconds if zero.
	Interval time.Duration

	// Now overrides the clock, for tests.
	Now func() time.Time
}

// Scheduler periodically polls the store for due tasks and executes them.
type Scheduler struct {
	store    *persistence.Store
	eval     persistence.ScheduleEvaluator
	runner   Runner
	logger   *slog.Logger
	bus      *bus.Bus
	metrics  *otel.Metrics
	interval time.Duration
	now      func() time.Time

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a Scheduler from the given config.
func New(cfg Config) *Scheduler {
	interval := cfg.Interval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Scheduler{
		store:    cfg.Store,
		eval:     cfg.Eval,
		runner:   cfg.Runner,
		logger:   logger,
		bus:      cfg.Bus,
		metrics:  cfg.Metrics,
		interval: interval,
		now:      now,
	}
}

// Start begins the scheduler loop. It runs in a background goroutine
// and respects the provided context for shutdown.
func (s *Scheduler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(1)
	go s.loop(ctx)
	s.logger.Info("scheduler started", "interval", s.interval)
}

// Stop cancels the scheduler loop and waits for in-flight work to finish.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	s.logger.Info("scheduler stopped")
}

func (s *Scheduler) loop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	// Fire immediately on startup, then on each tick.
	s.Tick(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick performs one poll: scan due tasks, claim, run, record. It is
// exported so callers can drive the scheduler manually.
func (s *Scheduler) Tick(ctx context.Context) {
	started := time.Now()
	now := s.now()
	due, err := s.store.DueTasks(ctx, now)
	if err != nil {
		s.logger.Error("scheduler: due scan failed", "error", err)
		return
	}
	for _, task := range due {
		if ctx.Err() != nil {
			return
		}
		s.fire(ctx, task.ID, now)
	}
	if s.metrics != nil {
		s.metrics.TickDuration.Record(ctx, time.Since(started).Seconds())
	}
}

// fire claims a single due task and executes it. A lost claim means another
// poller took this firing window; that is normal operation, not an error.
func (s *Scheduler) fire(ctx context.Context, taskID string, now time.Time) {
	claimed, err := s.store.ClaimTask(ctx, taskID, now, s.eval)
	switch {
	case errors.Is(err, persistence.ErrConflictingClaim):
		if s.metrics != nil {
			s.metrics.ClaimConflicts.Add(ctx, 1)
		}
		s.logger.Debug("scheduler: claim lost", "task_id", taskID)
		return
	case errors.Is(err, persistence.ErrNotFound):
		s.logger.Warn("scheduler: due task vanished", "task_id", taskID)
		return
	case err != nil:
		s.logger.Error("scheduler: claim failed", "task_id", taskID, "error", err)
		return
	}
	if s.metrics != nil {
		s.metrics.TaskClaims.Add(ctx, 1)
	}

	var nextRun int64
	if claimed.NextRun != nil {
		nextRun = claimed.NextRun.Unix()
	}
	s.bus.Publish(bus.TopicTaskFired, bus.TaskFiredEvent{
		TaskID:  claimed.ID,
		Title:   claimed.Title,
		NextRun: nextRun,
	})
	s.logger.Info("scheduler: task fired",
		"task_id", claimed.ID,
		"title", claimed.Title,
		"next_run", claimed.NextRun,
	)

	runStart := time.Now()
	runErr := s.runner.Run(ctx, claimed)
	elapsed := time.Since(runStart)
	if s.metrics != nil {
		s.metrics.TaskRunDuration.Record(ctx, elapsed.Seconds())
	}

	detail := ""
	ok := runErr == nil
	if runErr != nil {
		detail = runErr.Error()
		if s.metrics != nil {
			s.metrics.TaskRunErrors.Add(ctx, 1)
		}
		s.logger.Error("scheduler: task run failed",
			"task_id", claimed.ID,
			"title", claimed.Title,
			"error", runErr,
		)
	}

	if err := s.store.RecordTaskOutcome(ctx, claimed.ID, ok, detail); err != nil {
		s.logger.Error("scheduler: record outcome failed", "task_id", claimed.ID, "error", err)
	}

	topic := bus.TopicTaskCompleted
	if !ok {
		topic = bus.TopicTaskFailed
	}
	s.bus.Publish(topic, bus.TaskOutcomeEvent{
		TaskID: claimed.ID,
		Title:  claimed.Title,
		OK:     ok,
		Detail: detail,
	})
}
