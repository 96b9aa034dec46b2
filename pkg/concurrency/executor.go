package concurrency

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/chris-alexander-pop/pubsub-go/pkg/logger"
)

// Executor is a cooperative task and timer queue. Callers hand it work via
// RunAsync and timers via MakeTimer; it runs both on its own worker pool so
// that publisher flush callbacks and subscriber dispatch callbacks never run
// on the caller's goroutine.
//
// An Executor is safe for concurrent use. It is built from WorkerPool plus
// panic recovery per task, generalized to also own timers, since nothing in
// this tree ships a reusable "queue with timers" primitive on its own.
type Executor struct {
	pool *WorkerPool

	mu      sync.Mutex
	timers  map[*time.Timer]*Future[time.Time]
	closed  bool
	stopped chan struct{}
}

// ErrExecutorShutdown is the error that timers still pending when Shutdown is
// called resolve with. Queued tasks are not failed; Shutdown runs them.
var ErrExecutorShutdown = fmt.Errorf("executor: shut down")

// NewExecutor starts an Executor with the given number of workers. workers
// must be >= 1; callers that will block a worker per in-flight pull (see
// Subscriber) should supply more than one.
func NewExecutor(workers int) *Executor {
	if workers < 1 {
		workers = 1
	}
	e := &Executor{
		pool:    NewWorkerPool(workers, workers*4),
		timers:  make(map[*time.Timer]*Future[time.Time]),
		stopped: make(chan struct{}),
	}
	e.pool.Start(context.Background())
	return e
}

// RunAsync submits task to the worker pool. Panics inside task are recovered
// and logged, matching the rest of this package's SafeGo convention, so one
// bad callback cannot take down a worker.
func (e *Executor) RunAsync(task Task) {
	e.pool.Submit(func(ctx context.Context) {
		defer func() {
			if r := recover(); r != nil {
				logger.L().ErrorContext(ctx, "executor task panic",
					"error", fmt.Errorf("panic recovered: %v", r),
					"stack", string(debug.Stack()))
			}
		}()
		task(ctx)
	})
}

// MakeTimer arranges for the returned future to resolve with the firing time
// after delay elapses. The continuation runs on the executor's own worker
// pool, not on a dedicated goroutine per timer, so arming many timers (one
// per pending batch) is cheap. If Shutdown is called first, the future
// resolves with ErrExecutorShutdown instead.
func (e *Executor) MakeTimer(delay time.Duration) *Future[time.Time] {
	fut := NewFuture[time.Time]()

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		fut.Resolve(time.Time{}, ErrExecutorShutdown)
		return fut
	}

	var t *time.Timer
	t = time.AfterFunc(delay, func() {
		e.mu.Lock()
		delete(e.timers, t)
		e.mu.Unlock()
		e.RunAsync(func(ctx context.Context) {
			fut.Resolve(time.Now(), nil)
		})
	})
	e.timers[t] = fut
	e.mu.Unlock()

	return fut
}

// Run blocks until Shutdown is called. It lets a caller that owns no other
// work keep the process alive while the executor's workers run in the
// background.
func (e *Executor) Run() {
	<-e.stopped
}

// Shutdown stops accepting new timers, cancels all pending ones (resolving
// their futures with ErrExecutorShutdown), and waits for in-flight tasks to
// drain before returning.
func (e *Executor) Shutdown() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	for t, fut := range e.timers {
		t.Stop()
		fut.Resolve(time.Time{}, ErrExecutorShutdown)
	}
	e.timers = make(map[*time.Timer]*Future[time.Time])
	e.mu.Unlock()

	e.pool.Stop()
	close(e.stopped)
}
