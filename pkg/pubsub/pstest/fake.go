// Package pstest provides an injectable, in-memory mock of pubsub.Stub for
// unit tests, grounded on the shape of Google's own pstest fake gRPC server:
// a programmable reactor per RPC method plus an in-memory log of the
// Acknowledge and nack calls it receives, without any actual network
// transport. Published messages are not stored or redelivered.
package pstest

import (
	"context"
	"sync/atomic"

	"github.com/chris-alexander-pop/pubsub-go/pkg/concurrency"
	"github.com/chris-alexander-pop/pubsub-go/pkg/pubsub"
	"github.com/google/uuid"
)

// PullReactor lets a test script the response (or error) for the next Pull
// call. Returning (nil, nil) yields an empty PullResponse.
type PullReactor func(req pubsub.PullRequest) (*pubsub.PullResponse, error)

// PublishReactor lets a test script the response (or error) for the next
// AsyncPublish call. Returning a nil response assigns a fresh server-side
// uuid per message instead.
type PublishReactor func(req pubsub.PublishRequest) (*pubsub.PublishResponse, error)

// Server is an in-memory mock transport Stub. Reactors are read on every
// Pull/AsyncPublish call but set rarely (once, at test setup), so access is
// guarded by a SmartRWMutex rather than a plain Mutex: concurrent Pull calls
// only ever need a read lock against the reactor pointer.
type Server struct {
	mu *concurrency.SmartRWMutex

	pullReactor    PullReactor
	publishReactor PublishReactor

	acks  []pubsub.AcknowledgeRequest
	nacks []pubsub.ModifyAckDeadlineRequest

	closed int32
}

// NewServer returns a ready-to-use mock Stub.
func NewServer() *Server {
	return &Server{mu: concurrency.NewSmartRWMutex(concurrency.MutexConfig{Name: "pstest.Server"})}
}

var _ pubsub.Stub = (*Server)(nil)

// SetPullReactor installs the reactor used to script Pull responses. Safe to
// call concurrently with in-flight Pull calls; takes effect on the next one.
func (s *Server) SetPullReactor(r PullReactor) {
	s.mu.Lock()
	s.pullReactor = r
	s.mu.Unlock()
}

// SetPublishReactor installs the reactor used to script AsyncPublish
// responses. Safe to call concurrently with in-flight publishes.
func (s *Server) SetPublishReactor(r PublishReactor) {
	s.mu.Lock()
	s.publishReactor = r
	s.mu.Unlock()
}

// Acks returns a snapshot of every Acknowledge call received so far, in order.
func (s *Server) Acks() []pubsub.AcknowledgeRequest {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]pubsub.AcknowledgeRequest, len(s.acks))
	copy(out, s.acks)
	return out
}

// Nacks returns a snapshot of every zero-deadline ModifyAckDeadline call
// received so far, in order.
func (s *Server) Nacks() []pubsub.ModifyAckDeadlineRequest {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]pubsub.ModifyAckDeadlineRequest, len(s.nacks))
	copy(out, s.nacks)
	return out
}

func (s *Server) CreateTopic(ctx context.Context, req pubsub.CreateTopicRequest) (pubsub.Topic, error) {
	return req.Topic, nil
}

func (s *Server) ListTopics(ctx context.Context, project string) ([]pubsub.Topic, error) {
	return nil, nil
}

func (s *Server) DeleteTopic(ctx context.Context, topic pubsub.Topic) error {
	return nil
}

func (s *Server) CreateSubscription(ctx context.Context, req pubsub.CreateSubscriptionRequest) (pubsub.Subscription, error) {
	return req.Subscription, nil
}

func (s *Server) ListSubscriptions(ctx context.Context, project string) ([]pubsub.Subscription, error) {
	return nil, nil
}

func (s *Server) DeleteSubscription(ctx context.Context, sub pubsub.Subscription) error {
	return nil
}

func (s *Server) Pull(ctx context.Context, req pubsub.PullRequest) (pubsub.PullResponse, error) {
	s.mu.RLock()
	reactor := s.pullReactor
	s.mu.RUnlock()

	if reactor == nil {
		return pubsub.PullResponse{}, nil
	}
	resp, err := reactor(req)
	if err != nil {
		return pubsub.PullResponse{}, err
	}
	if resp == nil {
		return pubsub.PullResponse{}, nil
	}
	return *resp, nil
}

func (s *Server) Acknowledge(ctx context.Context, req pubsub.AcknowledgeRequest) (struct{}, error) {
	s.mu.Lock()
	s.acks = append(s.acks, req)
	s.mu.Unlock()
	return struct{}{}, nil
}

func (s *Server) ModifyAckDeadline(ctx context.Context, req pubsub.ModifyAckDeadlineRequest) (struct{}, error) {
	s.mu.Lock()
	if req.AckDeadlineSeconds == 0 {
		s.nacks = append(s.nacks, req)
	}
	s.mu.Unlock()
	return struct{}{}, nil
}

// AsyncPublish runs the configured PublishReactor (or, absent one, assigns a
// fresh uuid per message) on the executor, matching the real Stub's
// contract that the future resolves on an executor thread.
func (s *Server) AsyncPublish(exec *concurrency.Executor, ctx context.Context, req pubsub.PublishRequest) *concurrency.Future[pubsub.PublishResponse] {
	fut := concurrency.NewFuture[pubsub.PublishResponse]()

	exec.RunAsync(func(ctx context.Context) {
		s.mu.RLock()
		reactor := s.publishReactor
		s.mu.RUnlock()

		if reactor != nil {
			resp, err := reactor(req)
			if err != nil {
				fut.Resolve(pubsub.PublishResponse{}, err)
				return
			}
			if resp != nil {
				fut.Resolve(*resp, nil)
				return
			}
		}

		ids := make([]string, len(req.Messages))
		for i := range req.Messages {
			ids[i] = uuid.NewString()
		}
		fut.Resolve(pubsub.PublishResponse{MessageIDs: ids}, nil)
	})

	return fut
}

func (s *Server) Close() error {
	atomic.StoreInt32(&s.closed, 1)
	return nil
}
