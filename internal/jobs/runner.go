// Package jobs runs independent tasks in parallel with a concurrency limit.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"candle-featuresv1/internal/logger"

	"golang.org/x/sync/errgroup"
)

// Func is one unit of work. ctx carries the job id (see logger.JobID).
type Func func(ctx context.Context) error

// Result reports how one submitted job finished.
type Result struct {
	ID       string
	Err      error
	Duration time.Duration
}

// Runner accepts jobs with Submit and waits for all of them with Wait.
// A failing job does not cancel the others.
type Runner struct {
	ctx context.Context
	g   errgroup.Group

	mu      sync.Mutex
	results []Result
}

// NewRunner creates a Runner that runs at most limit jobs at once.
// limit <= 0 means runtime.NumCPU().
func NewRunner(ctx context.Context, limit int) *Runner {
	if limit <= 0 {
		limit = runtime.NumCPU()
	}
	r := &Runner{ctx: ctx}
	r.g.SetLimit(limit)
	return r
}

// Submit schedules fn under id. It blocks while the runner is at its limit.
// Jobs submitted after ctx is done are recorded with ctx's error and not run.
func (r *Runner) Submit(id string, fn Func) {
	idx := r.reserve(id)
	r.g.Go(func() error {
		start := time.Now()
		var err error
		if err = r.ctx.Err(); err == nil {
			err = run(logger.WithJobID(r.ctx, id), fn)
		}
		r.finish(idx, err, time.Since(start))
		return nil
	})
}

func run(ctx context.Context, fn Func) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("job panicked: %v", p)
		}
	}()
	return fn(ctx)
}

func (r *Runner) reserve(id string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, Result{ID: id})
	return len(r.results) - 1
}

func (r *Runner) finish(idx int, err error, d time.Duration) {
	r.mu.Lock()
	res := &r.results[idx]
	res.Err = err
	res.Duration = d
	id := res.ID
	r.mu.Unlock()

	if err != nil {
		slog.Error("job failed", "job_id", id, "took", d, "error", err)
	} else {
		slog.Info("job done", "job_id", id, "took", d)
	}
}

// Wait blocks until every submitted job has finished and returns their
// results in submission order, plus the joined job errors.
func (r *Runner) Wait() ([]Result, error) {
	r.g.Wait()

	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Result, len(r.results))
	copy(out, r.results)

	var errs []error
	for _, res := range out {
		if res.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", res.ID, res.Err))
		}
	}
	return out, errors.Join(errs...)
}
