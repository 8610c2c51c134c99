package pipeline

import (
	"context"
	"runtime"
	"time"

	"github.com/alitto/pond/v2"

	"github.com/ironsheep/image-optim/internal/imaging"
)

// Runner executes pipeline runs on a bounded worker pool so codec work does
// not starve request handling.
type Runner struct {
	exec    *Executor
	pool    pond.ResultPool[*imaging.ImageState]
	timeout time.Duration
}

// NewRunner creates a runner with the given number of workers (NumCPU when
// zero or less). A positive timeout bounds every run.
func NewRunner(exec *Executor, workers int, timeout time.Duration) *Runner {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Runner{
		exec:    exec,
		pool:    pond.NewResultPool[*imaging.ImageState](workers),
		timeout: timeout,
	}
}

// Executor returns the executor the runner submits to.
func (r *Runner) Executor() *Executor { return r.exec }

// Run executes ops in the pool on a clone of st, which is left untouched.
// A worker abandoned by a timeout may still be writing to its clone, so
// the caller's state stays safe to reuse.
func (r *Runner) Run(ctx context.Context, st *imaging.ImageState, ops []Operation) (*imaging.ImageState, error) {
	var work *imaging.ImageState
	if st != nil {
		work = st.Clone()
	}
	return r.Do(ctx, func(ctx context.Context) (*imaging.ImageState, error) {
		return r.exec.RunWith(ctx, work, ops)
	})
}

// Do runs fn in the pool under the runner timeout. When the deadline passes
// first the context error is returned and fn is abandoned; executor runs
// stop at their next operation boundary.
func (r *Runner) Do(ctx context.Context, fn func(ctx context.Context) (*imaging.ImageState, error)) (*imaging.ImageState, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	task := r.pool.SubmitErr(func() (*imaging.ImageState, error) {
		return fn(ctx)
	})

	select {
	case <-task.Done():
		return task.Wait()
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Processing returns the number of runs executing or queued.
func (r *Runner) Processing() int64 {
	return r.pool.RunningWorkers() + int64(r.pool.WaitingTasks())
}

// Stop waits for queued runs to finish and releases the workers.
func (r *Runner) Stop() {
	r.pool.StopAndWait()
}
