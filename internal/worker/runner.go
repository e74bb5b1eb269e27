// Package worker runs the background jobs: invoice recognition, deal
// polling, bank statement sync and recurring invoice generation. Each
// job ticks on its own interval; one slow job never delays another.
package worker

import (
	"context"
	"sync"
	"time"

	"stroyfin/pkg/logger"
)

const (
	// runTimeout bounds one tick of any job.
	runTimeout = 30 * time.Second

	maxAttempts  = 5
	retryBackoff = 2 * time.Second
)

// Job is one periodic background task.
type Job interface {
	Name() string
	Interval() time.Duration
	Run(ctx context.Context) error
}

// Runner drives a set of jobs until the context is cancelled.
type Runner struct {
	jobs []Job
	log  *logger.Logger
}

// NewRunner creates a runner over the given jobs.
func NewRunner(log *logger.Logger, jobs ...Job) *Runner {
	return &Runner{
		jobs: jobs,
		log:  log.WithComponent("worker"),
	}
}

// Run starts one goroutine per job and blocks until ctx is done and
// every in-flight tick has finished.
func (r *Runner) Run(ctx context.Context) {
	var wg sync.WaitGroup

	for _, job := range r.jobs {
		wg.Add(1)
		go func(job Job) {
			defer wg.Done()
			r.runLoop(ctx, job)
		}(job)
	}

	wg.Wait()
}

func (r *Runner) runLoop(ctx context.Context, job Job) {
	log := r.log.With("job", job.Name())
	log.Infow("job started", "interval", job.Interval().String())

	ticker := time.NewTicker(job.Interval())
	defer ticker.Stop()

	// First tick right away, then on the interval
	r.runOnce(ctx, job, log)

	for {
		select {
		case <-ctx.Done():
			log.Info("job stopped")
			return
		case <-ticker.C:
			r.runOnce(ctx, job, log)
		}
	}
}

// runOnce executes one tick with retries. Backoff doubles per attempt;
// transient failures (network, bank API hiccups) usually clear within
// the retry window, anything persistent waits for the next tick.
func (r *Runner) runOnce(ctx context.Context, job Job, log *logger.Logger) {
	var lastErr error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if ctx.Err() != nil {
			return
		}

		runCtx, cancel := context.WithTimeout(ctx, runTimeout)
		err := job.Run(runCtx)
		cancel()

		if err == nil {
			return
		}
		lastErr = err

		if attempt < maxAttempts {
			backoff := retryBackoff * time.Duration(1<<(attempt-1))
			log.Warnw("job tick failed, retrying",
				"attempt", attempt,
				"backoff", backoff.String(),
				"error", err)

			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
		}
	}

	log.Errorw("job tick failed, giving up until next tick",
		"attempts", maxAttempts,
		"error", lastErr)
}
