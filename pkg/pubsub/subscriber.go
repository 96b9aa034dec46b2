package pubsub

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync/atomic"
	"time"

	"github.com/chris-alexander-pop/pubsub-go/pkg/concurrency"
	"github.com/chris-alexander-pop/pubsub-go/pkg/logger"
	"github.com/chris-alexander-pop/pubsub-go/pkg/resilience"
)

const defaultMaxPullMessages = 1000

// Handler is called once per delivered message, on an executor thread.
// Exactly one of ack.Ack() / ack.Nack() should be called per invocation;
// neither is required, and an omitted call is equivalent to an eventual
// nack once the ack deadline lapses server-side.
type Handler func(msg Message, ack *AckHandler)

// Subscriber owns the pull/dispatch engine for a single subscription: it
// repeatedly pulls messages from the transport and dispatches each to a
// user handler on the executor.
type Subscriber struct {
	sub     Subscription
	stub    Stub
	exec    *concurrency.Executor
	owns    bool
	retry   resilience.RetryConfig
	maxPull int32

	// dispatchLimit bounds concurrent handler invocations independent of
	// the executor's own worker count. Nil when MaxConcurrentHandlers is
	// unset, leaving dispatch bounded only by the executor.
	dispatchLimit *concurrency.Semaphore
}

// NewSubscriber creates a Subscriber bound to sub, using stub for transport
// and opts for executor/connection configuration.
func NewSubscriber(sub Subscription, stub Stub, opts ConnectionOptions) (*Subscriber, error) {
	if !sub.Valid() {
		return nil, errInvalidArgument("subscription must have non-empty project and id")
	}
	exec, owns := opts.executorOrNew()
	var dispatchLimit *concurrency.Semaphore
	if opts.MaxConcurrentHandlers > 0 {
		dispatchLimit = concurrency.NewSemaphore(int64(opts.MaxConcurrentHandlers))
	}
	return &Subscriber{
		sub:           sub,
		stub:          stub,
		exec:          exec,
		owns:          owns,
		maxPull:       defaultMaxPullMessages,
		dispatchLimit: dispatchLimit,
		retry: resilience.RetryConfig{
			MaxAttempts:    3,
			InitialBackoff: 50 * time.Millisecond,
			MaxBackoff:     2 * time.Second,
			Multiplier:     2.0,
			Jitter:         0.1,
			RetryIf: func(err error) bool {
				return isTransient(StatusFromError(err).Code)
			},
		},
	}, nil
}

// Subscribe starts the pull loop on the executor and returns a cancellable
// future that resolves with the session's terminal Status: OK on cooperative
// cancellation, or the failing Status on a permanent (or retry-exhausted)
// Pull error.
func (s *Subscriber) Subscribe(handler Handler) *concurrency.CancellableFuture[Status] {
	var cancelled int32
	fut := concurrency.NewCancellableFuture[Status](func() {
		atomic.StoreInt32(&cancelled, 1)
	})

	s.exec.RunAsync(func(ctx context.Context) {
		s.pullLoop(ctx, &cancelled, handler, fut)
	})

	return fut
}

// pullLoop runs on a single executor worker for the life of the session —
// Pull is synchronous from the caller's perspective, so this worker is
// occupied for the duration of each pull call. Callers must size the
// connection's executor with more than one worker so dispatch isn't starved.
func (s *Subscriber) pullLoop(ctx context.Context, cancelled *int32, handler Handler, fut *concurrency.CancellableFuture[Status]) {
	for {
		if atomic.LoadInt32(cancelled) != 0 {
			fut.Resolve(OKStatus, nil)
			return
		}

		resp, err := s.pullWithRetry(ctx)
		if err != nil {
			fut.Resolve(StatusFromError(err), nil)
			return
		}

		for _, rm := range resp.ReceivedMessages {
			rm := rm
			s.exec.RunAsync(func(ctx context.Context) {
				s.dispatch(ctx, rm, handler)
			})
		}

		if atomic.LoadInt32(cancelled) != 0 {
			fut.Resolve(OKStatus, nil)
			return
		}
	}
}

// pullWithRetry issues Pull, retrying transient failures (UNAVAILABLE,
// DEADLINE_EXCEEDED, ABORTED, INTERNAL, RESOURCE_EXHAUSTED) with bounded
// backoff. Permanent failures (PERMISSION_DENIED, INVALID_ARGUMENT,
// NOT_FOUND, ...) and retries exhausted after bounded backoff both
// propagate as a terminal session error. Bounded retry was chosen over both
// silent infinite retry and terminating on the very first transient error.
func (s *Subscriber) pullWithRetry(ctx context.Context) (PullResponse, error) {
	var resp PullResponse
	err := resilience.Retry(ctx, s.retry, func(ctx context.Context) error {
		r, err := s.stub.Pull(ctx, PullRequest{
			Subscription: s.sub.FullName(),
			MaxMessages:  s.maxPull,
		})
		if err != nil {
			return err
		}
		resp = r
		return nil
	})
	return resp, err
}

// dispatch invokes handler for one delivery. Panics are recovered, logged,
// and treated as if the handler declined to ack — the session is never
// torn down by a bad handler. If dispatchLimit is set, it bounds how many
// handler invocations can run concurrently across the whole subscriber,
// independent of executor worker count.
func (s *Subscriber) dispatch(ctx context.Context, rm ReceivedMessage, handler Handler) {
	if s.dispatchLimit != nil {
		if err := s.dispatchLimit.Acquire(ctx, 1); err != nil {
			return
		}
		defer s.dispatchLimit.Release(1)
	}

	defer func() {
		if r := recover(); r != nil {
			logger.L().ErrorContext(ctx, "subscriber handler panic",
				"error", fmt.Errorf("panic recovered: %v", r),
				"stack", string(debug.Stack()),
				"ack_id", rm.AckID)
		}
	}()

	ack := newAckHandler(s.sub.FullName(), rm.AckID, s.stub, s.exec)
	handler(rm.Message, ack)
}

// Close shuts down the executor if this Subscriber owns it. It does not
// itself cancel any outstanding session (callers should Cancel() each
// session's future first) and does not close the transport stub, which may
// be shared with a Publisher on the same connection (see Dial).
func (s *Subscriber) Close() error {
	if s.owns {
		s.exec.Shutdown()
	}
	return nil
}
