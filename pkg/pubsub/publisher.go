package pubsub

import (
	"context"
	"time"

	"github.com/chris-alexander-pop/pubsub-go/pkg/concurrency"
)

// pendingBatch is the publisher's in-progress batch: an ordered sequence of
// (message, promise) pairs plus the accumulated serialized byte count.
// messages and futures are always the same length.
type pendingBatch struct {
	messages  []Message
	futures   []*concurrency.Future[string]
	byteCount int
}

func (b *pendingBatch) empty() bool {
	return len(b.messages) == 0
}

// Publisher owns the batching engine for a single topic: it accepts
// messages from any number of caller goroutines, batches them by count,
// byte size, and hold time, and issues one AsyncPublish call per batch.
type Publisher struct {
	topic Topic
	stub  Stub
	exec  *concurrency.Executor
	owns  bool
	cfg   BatchingConfig

	// mu guards pending/generation/closed. Publish holds it only long enough
	// to append and check triggers, so DebugMode's slow-hold logging acts as
	// a canary for a caller-side regression that turns that append into
	// something blocking.
	mu         *concurrency.SmartMutex
	pending    pendingBatch
	generation uint64
	closed     bool
}

// NewPublisher creates a Publisher bound to topic, using stub for transport
// and opts for batching/connection configuration. If opts.Connection.Executor
// is nil, the Publisher creates and owns its own executor.
func NewPublisher(topic Topic, stub Stub, opts PublisherOptions) (*Publisher, error) {
	if !topic.Valid() {
		return nil, errInvalidArgument("topic must have non-empty project and id")
	}
	exec, owns := opts.Connection.executorOrNew()
	return &Publisher{
		topic: topic,
		stub:  stub,
		exec:  exec,
		owns:  owns,
		cfg:   opts.Batching.normalize(),
		mu:    concurrency.NewSmartMutex(concurrency.MutexConfig{Name: topic.FullName(), DebugMode: true}),
	}, nil
}

// Publish appends msg to the current batch and returns a future for its
// eventual message id (on success) or failure Status (as the future's
// error). Publish never blocks: it appends under a short lock and returns.
func (p *Publisher) Publish(msg Message) (*concurrency.Future[string], error) {
	size := msg.approxSize()
	if size > p.cfg.MaximumBatchBytes {
		return nil, errInvalidArgument("message exceeds maximum_batch_bytes")
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, errClosed("publisher is closed")
	}

	fut := concurrency.NewFuture[string]()
	p.pending.messages = append(p.pending.messages, msg)
	p.pending.futures = append(p.pending.futures, fut)
	p.pending.byteCount += size

	var batch *pendingBatch
	armTimer := false
	switch {
	case len(p.pending.messages) >= p.cfg.MaximumMessageCount:
		batch = p.detachLocked()
	case p.pending.byteCount >= p.cfg.MaximumBatchBytes:
		batch = p.detachLocked()
	case len(p.pending.messages) == 1:
		armTimer = true
	}
	gen := p.generation
	p.mu.Unlock()

	switch {
	case batch != nil:
		p.startFlush(batch)
	case armTimer:
		p.armFlushTimer(gen)
	}

	return fut, nil
}

// detachLocked must be called with mu held. It detaches the current pending
// batch, resets pending to empty, and bumps the flush generation so any
// armed timer referencing the old generation becomes stale.
func (p *Publisher) detachLocked() *pendingBatch {
	if p.pending.empty() {
		return nil
	}
	batch := p.pending
	p.pending = pendingBatch{}
	p.generation++
	return &batch
}

// armFlushTimer schedules a flush at maximum_hold_time after the first
// message of the batch tagged gen arrived. If another trigger has already
// flushed that batch by the time the timer fires, generation will have
// moved on and this becomes a no-op — the timer-vs-size race the flush
// generation counter exists to resolve.
func (p *Publisher) armFlushTimer(gen uint64) {
	timerFut := p.exec.MakeTimer(p.cfg.MaximumHoldTime)
	timerFut.Then(p.exec, func(_ time.Time, err error) {
		if err != nil {
			// Executor shut down before the timer fired; Close already
			// drained this batch with CANCELLED.
			return
		}
		p.mu.Lock()
		if p.generation != gen {
			p.mu.Unlock()
			return
		}
		batch := p.detachLocked()
		p.mu.Unlock()
		if batch != nil {
			p.startFlush(batch)
		}
	})
}

// startFlush submits batch to the transport and arranges for its promises
// to be satisfied, on an executor thread, when the publish resolves.
func (p *Publisher) startFlush(batch *pendingBatch) {
	req := PublishRequest{Topic: p.topic.FullName(), Messages: batch.messages}
	fut := p.stub.AsyncPublish(p.exec, context.Background(), req)
	fut.Then(p.exec, func(resp PublishResponse, err error) {
		p.completeBatch(batch, resp, err)
	})
}

// completeBatch satisfies every promise in batch per the response, without
// ever touching the engine lock.
func (p *Publisher) completeBatch(batch *pendingBatch, resp PublishResponse, err error) {
	if err != nil {
		st := StatusFromError(err)
		for _, f := range batch.futures {
			f.Resolve("", st)
		}
		return
	}
	if len(resp.MessageIDs) != len(batch.messages) {
		st := Status{Code: Unknown, Message: "mismatched message id count"}
		for _, f := range batch.futures {
			f.Resolve("", st)
		}
		return
	}
	for i, f := range batch.futures {
		f.Resolve(resp.MessageIDs[i], nil)
	}
}

// Close stops accepting new messages, fails any remaining pending batch with
// CANCELLED (no message is ever silently dropped), and shuts down the
// executor if this Publisher owns it. It does not close the transport stub,
// which may be shared with a Subscriber on the same connection — callers
// own the stub's lifecycle (see Dial).
func (p *Publisher) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	batch := p.detachLocked()
	p.mu.Unlock()

	if batch != nil {
		st := Status{Code: Cancelled, Message: "publisher closed"}
		for _, f := range batch.futures {
			f.Resolve("", st)
		}
	}

	if p.owns {
		p.exec.Shutdown()
	}
	return nil
}
