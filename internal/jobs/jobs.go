// Package jobs runs the periodic maintenance jobs on cron schedules.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Func is one run of a job. now is the run's reference time.
type Func func(ctx context.Context, now time.Time) error

type job struct {
	spec string
	fn   Func
}

// Runner schedules named jobs. Overlapping runs of the same job are skipped,
// and every run gets its own timeout.
type Runner struct {
	mu      sync.RWMutex
	cron    *cron.Cron
	jobs    map[string]job
	timeout time.Duration
	logger  *slog.Logger
	now     func() time.Time
	ctx     context.Context
	cancel  context.CancelFunc
}

// NewRunner creates a runner whose schedules are evaluated in loc.
func NewRunner(loc *time.Location, timeout time.Duration, logger *slog.Logger) *Runner {
	if loc == nil {
		loc = time.UTC
	}
	cl := cronLogger{logger: logger}
	return &Runner{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		jobs:    make(map[string]job),
		timeout: timeout,
		logger:  logger,
		now:     time.Now,
		ctx:     context.Background(),
	}
}

// Add registers a job under name. An empty spec registers the job for RunOnce
// only.
func (r *Runner) Add(name, spec string, fn Func) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, dup := r.jobs[name]; dup {
		return fmt.Errorf("job %q already registered", name)
	}
	if spec != "" {
		if _, err := r.cron.AddFunc(spec, func() { r.run(name, fn) }); err != nil {
			return fmt.Errorf("schedule job %q: %w", name, err)
		}
	}
	r.jobs[name] = job{spec: spec, fn: fn}
	return nil
}

// Names lists the registered jobs.
func (r *Runner) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.jobs))
	for name := range r.jobs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Start begins running scheduled jobs. Runs in progress are cancelled when
// ctx is done or Stop is called.
func (r *Runner) Start(ctx context.Context) {
	r.mu.Lock()
	r.ctx, r.cancel = context.WithCancel(ctx)
	r.mu.Unlock()

	r.cron.Start()
	r.logger.Info("job runner started", "jobs", len(r.cron.Entries()))
}

// Stop stops scheduling, cancels in-flight runs and waits for them to return.
func (r *Runner) Stop() {
	r.mu.RLock()
	cancel := r.cancel
	r.mu.RUnlock()

	done := r.cron.Stop()
	if cancel != nil {
		cancel()
	}
	<-done.Done()
}

// RunOnce runs the named job immediately in the caller's goroutine.
func (r *Runner) RunOnce(ctx context.Context, name string) error {
	r.mu.RLock()
	j, ok := r.jobs[name]
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("unknown job %q", name)
	}
	return r.exec(ctx, name, j.fn)
}

func (r *Runner) run(name string, fn Func) {
	r.mu.RLock()
	ctx := r.ctx
	r.mu.RUnlock()

	if err := r.exec(ctx, name, fn); err != nil {
		r.logger.Error("job failed", "job", name, "error", err)
	}
}

func (r *Runner) exec(ctx context.Context, name string, fn Func) error {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	start := r.now()
	err := fn(ctx, start)
	r.logger.Debug("job finished", "job", name, "duration", time.Since(start), "ok", err == nil)
	return err
}

// cronLogger adapts slog to the cron.Logger interface.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error(msg, append(keysAndValues, "error", err)...)
}
