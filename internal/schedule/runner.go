package schedule

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// JobFunc is the work a scheduled job performs. Errors are logged, not
// propagated; one job's failure never stops the tick loop.
type JobFunc func(ctx context.Context) error

// Job pairs a cron expression with the function it triggers.
type Job struct {
	Name string
	Cron *CronExpr
	Run  JobFunc

	lastFired time.Time
}

// Runner drives registered jobs from a tick loop. A per-process file lock
// is taken on each tick so two deployments sharing a data directory cannot
// both fire the same minute.
type Runner struct {
	tick time.Duration
	lock *FileLock
	log  *slog.Logger

	mu   sync.Mutex
	jobs map[string]*Job
}

// NewRunner creates a Runner. lockPath guards against a concurrent process;
// pass an empty path to disable the guard (tests).
func NewRunner(tick time.Duration, lockPath string, log *slog.Logger) *Runner {
	if tick <= 0 {
		tick = 30 * time.Second
	}
	if log == nil {
		log = slog.Default()
	}
	r := &Runner{tick: tick, log: log, jobs: make(map[string]*Job)}
	if lockPath != "" {
		r.lock = NewFileLock(lockPath)
	}
	return r
}

// Register adds a job. Re-registering a name replaces the previous job.
func (r *Runner) Register(job *Job) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs[job.Name] = job
	r.log.Info("job registered", "job", job.Name)
}

// Run blocks until ctx is cancelled, firing due jobs each tick.
func (r *Runner) Run(ctx context.Context) error {
	r.log.Info("schedule runner started", "tick", r.tick)
	ticker := time.NewTicker(r.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.log.Info("schedule runner stopped")
			return ctx.Err()
		case now := <-ticker.C:
			r.Tick(ctx, now)
		}
	}
}

// Tick fires every job whose expression matches the current minute. Ticks
// can arrive more than once per minute; a job fires at most once per
// matching minute.
func (r *Runner) Tick(ctx context.Context, now time.Time) {
	if r.lock != nil {
		acquired, err := r.lock.TryLock()
		if err != nil {
			r.log.Warn("schedule lock error", "error", err)
			return
		}
		if !acquired {
			return
		}
		defer r.lock.Unlock()
	}

	minute := now.Truncate(time.Minute)

	r.mu.Lock()
	var due []*Job
	for _, job := range r.jobs {
		if !job.Cron.Matches(now) || job.lastFired.Equal(minute) {
			continue
		}
		job.lastFired = minute
		due = append(due, job)
	}
	r.mu.Unlock()

	for _, job := range due {
		r.log.Info("job firing", "job", job.Name)
		if err := job.Run(ctx); err != nil {
			r.log.Error("job failed", "job", job.Name, "error", err)
		}
	}
}
