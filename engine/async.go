package engine

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"

	"github.com/quy267/spring-drools-integration-sub002/internal/logger"
)

// Future states.
const (
	futurePending int32 = iota
	futureRunning
	futureCancelled
)

// Future is the handle to one asynchronous execution. Waiters block on
// Done or Wait; the result is immutable once the future completes.
type Future struct {
	done  chan struct{}
	state atomic.Int32

	facts []any
	err   error
}

// Done is closed when the execution completed, failed or was cancelled.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Wait blocks until the execution completes or the context is done.
func (f *Future) Wait(ctx context.Context) ([]any, error) {
	select {
	case <-f.done:
		return f.facts, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Cancel prevents the execution from starting and reports whether it did.
// Once rule firing has started the call is not preemptible: cancelling is
// a no-op and the execution completes normally.
func (f *Future) Cancel() bool {
	return f.state.CompareAndSwap(futurePending, futureCancelled)
}

// asyncRunner bounds concurrently running async executions. Submission
// never blocks; the semaphore is acquired inside the spawned goroutine.
type asyncRunner struct {
	sem *semaphore.Weighted
	wg  sync.WaitGroup
}

func newAsyncRunner(workers int) *asyncRunner {
	if workers <= 0 {
		workers = 4
	}
	return &asyncRunner{sem: semaphore.NewWeighted(int64(workers))}
}

func (r *asyncRunner) submit(ctx context.Context, run func(ctx context.Context) ([]any, error)) *Future {
	f := &Future{done: make(chan struct{})}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		// the recover must set the error before waiters are released
		defer close(f.done)
		defer func() {
			if rec := recover(); rec != nil {
				logger.WithContext(ctx).Errorf("async execution panic : %v\n%v", rec, string(debug.Stack()))
				f.facts = nil
				f.err = fmt.Errorf("async execution panicked: %v", rec)
			}
		}()

		if err := r.sem.Acquire(ctx, 1); err != nil {
			f.err = err
			return
		}
		defer r.sem.Release(1)

		if !f.state.CompareAndSwap(futurePending, futureRunning) {
			f.err = ErrCancelled
			return
		}
		f.facts, f.err = run(ctx)
	}()

	return f
}

func (r *asyncRunner) wait() {
	r.wg.Wait()
}
