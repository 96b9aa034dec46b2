package pubsub

import (
	"context"
	"sync/atomic"

	"github.com/chris-alexander-pop/pubsub-go/pkg/concurrency"
	"github.com/chris-alexander-pop/pubsub-go/pkg/logger"
)

// AckHandler is the one-shot, move-only capability a subscriber handler uses
// to acknowledge or negatively-acknowledge a single delivery. Each ack_id
// yields exactly one terminal action; a second call is a logged no-op
// rather than an error, since by the time it happens there is no submitter
// left to report it to.
type AckHandler struct {
	subscriptionFullName string
	ackID                string
	stub                 Stub
	exec                 *concurrency.Executor

	// done guards the one-shot invariant. 0 = not yet consumed, 1 = consumed.
	done int32
}

func newAckHandler(subFullName, ackID string, stub Stub, exec *concurrency.Executor) *AckHandler {
	return &AckHandler{
		subscriptionFullName: subFullName,
		ackID:                ackID,
		stub:                 stub,
		exec:                 exec,
	}
}

// AckID returns the server-assigned ack id. Safe to call any number of
// times; exists for tests and observability.
func (h *AckHandler) AckID() string {
	return h.ackID
}

// Ack acknowledges the delivery. It does not block waiting for the remote
// call; failures are logged, not surfaced, since the server will simply
// redeliver. A second call (ack or nack) on the same handle is a no-op.
func (h *AckHandler) Ack() {
	if !atomic.CompareAndSwapInt32(&h.done, 0, 1) {
		logger.L().Warn("ack handler reused", "ack_id", h.ackID)
		return
	}
	h.exec.RunAsync(func(ctx context.Context) {
		_, err := h.stub.Acknowledge(ctx, AcknowledgeRequest{
			Subscription: h.subscriptionFullName,
			AckIDs:       []string{h.ackID},
		})
		if err != nil {
			logger.L().ErrorContext(ctx, "ack failed", "ack_id", h.ackID, "error", err)
		}
	})
}

// Nack negatively-acknowledges the delivery by zeroing its ack deadline, so
// the server redelivers it as soon as possible. Same one-shot and
// non-blocking rules as Ack.
func (h *AckHandler) Nack() {
	if !atomic.CompareAndSwapInt32(&h.done, 0, 1) {
		logger.L().Warn("ack handler reused", "ack_id", h.ackID)
		return
	}
	h.exec.RunAsync(func(ctx context.Context) {
		_, err := h.stub.ModifyAckDeadline(ctx, ModifyAckDeadlineRequest{
			Subscription:       h.subscriptionFullName,
			AckIDs:             []string{h.ackID},
			AckDeadlineSeconds: 0,
		})
		if err != nil {
			logger.L().ErrorContext(ctx, "nack failed", "ack_id", h.ackID, "error", err)
		}
	})
}
