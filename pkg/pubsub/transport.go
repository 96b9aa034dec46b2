package pubsub

import (
	"context"
	"time"

	"github.com/chris-alexander-pop/pubsub-go/pkg/concurrency"
)

// Stub is the transport seam the core consumes. The concrete implementation
// (transport_grpc.go) wraps the real RPC surface; an injectable mock
// (pkg/pubsub/pstest) satisfies the same interface for tests. The six admin
// methods are referenced only for completeness — the core's pipelines never
// call them.
type Stub interface {
	// Admin surface — synchronous, out of scope for the core's own logic.
	CreateTopic(ctx context.Context, req CreateTopicRequest) (Topic, error)
	ListTopics(ctx context.Context, project string) ([]Topic, error)
	DeleteTopic(ctx context.Context, topic Topic) error
	CreateSubscription(ctx context.Context, req CreateSubscriptionRequest) (Subscription, error)
	ListSubscriptions(ctx context.Context, project string) ([]Subscription, error)
	DeleteSubscription(ctx context.Context, sub Subscription) error

	// Data plane — consumed directly by the publisher and subscriber engines.
	Pull(ctx context.Context, req PullRequest) (PullResponse, error)
	Acknowledge(ctx context.Context, req AcknowledgeRequest) (struct{}, error)
	ModifyAckDeadline(ctx context.Context, req ModifyAckDeadlineRequest) (struct{}, error)

	// AsyncPublish resolves on an executor thread, never on the caller's.
	AsyncPublish(exec *concurrency.Executor, ctx context.Context, req PublishRequest) *concurrency.Future[PublishResponse]

	// Close releases any transport-level resources (connections, clients).
	Close() error
}

// PublishRequest carries one batch's worth of messages bound for a topic.
type PublishRequest struct {
	Topic    string
	Messages []Message
}

// PublishResponse carries the server-assigned message ids, positionally
// matched to PublishRequest.Messages.
type PublishResponse struct {
	MessageIDs []string
}

// PullRequest requests up to MaxMessages deliveries from a subscription.
type PullRequest struct {
	Subscription      string
	MaxMessages       int32
	ReturnImmediately bool
}

// ReceivedMessage pairs a server-generated ack id with its delivered message.
type ReceivedMessage struct {
	AckID   string
	Message Message
}

// PullResponse carries zero or more deliveries.
type PullResponse struct {
	ReceivedMessages []ReceivedMessage
}

// AcknowledgeRequest acknowledges one or more deliveries by ack id.
type AcknowledgeRequest struct {
	Subscription string
	AckIDs       []string
}

// ModifyAckDeadlineRequest changes the ack deadline for one or more
// deliveries; a zero deadline is a nack.
type ModifyAckDeadlineRequest struct {
	Subscription       string
	AckIDs             []string
	AckDeadlineSeconds int32
}

// CreateTopicRequest names a topic to create. Admin surface, out of scope.
type CreateTopicRequest struct {
	Topic Topic
}

// CreateSubscriptionRequest names a subscription to create against a topic.
// Admin surface, out of scope.
type CreateSubscriptionRequest struct {
	Subscription       Subscription
	Topic              Topic
	AckDeadlineSeconds int32
	MessageRetention   time.Duration
}
