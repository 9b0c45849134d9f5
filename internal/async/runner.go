// Package async runs fire-and-forget work on tracked goroutines.
package async

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"
)

// DefaultTaskTimeout bounds a single task when the runner is built without one.
const DefaultTaskTimeout = 30 * time.Second

// Runner executes tasks on goroutines with panic recovery, a per-task timeout and
// error logging. Wait blocks until in-flight tasks finish, for graceful shutdown.
type Runner struct {
	timeout time.Duration
	logger  *slog.Logger
	wg      sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

// NewRunner constructs a Runner. A non-positive timeout selects DefaultTaskTimeout.
func NewRunner(timeout time.Duration, logger *slog.Logger) *Runner {
	if timeout <= 0 {
		timeout = DefaultTaskTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{timeout: timeout, logger: logger}
}

// Go schedules fn. The task context derives from ctx with the runner timeout applied.
// Tasks submitted after Wait has started are run inline so none are lost.
func (r *Runner) Go(ctx context.Context, name string, fn func(context.Context) error) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		r.run(ctx, name, fn)
		return
	}
	r.wg.Add(1)
	r.mu.Unlock()

	go func() {
		defer r.wg.Done()
		r.run(ctx, name, fn)
	}()
}

func (r *Runner) run(parent context.Context, name string, fn func(context.Context) error) {
	ctx, cancel := context.WithTimeout(parent, r.timeout)
	defer cancel()

	logger := r.logger.With("task", name)
	defer func() {
		if rec := recover(); rec != nil {
			logger.ErrorContext(ctx, "background task panicked",
				"panic", fmt.Sprint(rec),
				"stack", string(debug.Stack()),
			)
		}
	}()

	started := time.Now()
	if err := fn(ctx); err != nil {
		logger.ErrorContext(ctx, "background task failed", "error", err, "duration", time.Since(started))
		return
	}
	logger.DebugContext(ctx, "background task completed", "duration", time.Since(started))
}

// Wait stops accepting asynchronous tasks and blocks until running ones finish or ctx ends.
func (r *Runner) Wait(ctx context.Context) error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for background tasks: %w", ctx.Err())
	}
}
