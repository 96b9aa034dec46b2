package pubsub_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/chris-alexander-pop/pubsub-go/pkg/pubsub"
	"github.com/chris-alexander-pop/pubsub-go/pkg/pubsub/pstest"
	"github.com/chris-alexander-pop/pubsub-go/pkg/test"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type PublisherTestSuite struct {
	test.Suite
}

func (s *PublisherTestSuite) newPublisher(cfg pubsub.BatchingConfig, server *pstest.Server) *pubsub.Publisher {
	topic := pubsub.Topic{Project: "proj", ID: "topic"}
	opts := pubsub.PublisherOptions{
		Batching:   cfg,
		Connection: pubsub.ConnectionOptions{ExecutorWorkers: 4},
	}
	pub, err := pubsub.NewPublisher(topic, server, opts)
	s.Require().NoError(err)
	return pub
}

// Scenario 1: single publish with default config resolves to the server's
// single assigned message id.
func (s *PublisherTestSuite) TestSinglePublish() {
	server := pstest.NewServer()
	var calls int32
	server.SetPublishReactor(func(req pubsub.PublishRequest) (*pubsub.PublishResponse, error) {
		atomic.AddInt32(&calls, 1)
		s.Len(req.Messages, 1)
		return &pubsub.PublishResponse{MessageIDs: []string{"mid-0"}}, nil
	})

	pub := s.newPublisher(pubsub.DefaultBatchingConfig(), server)
	fut, err := pub.Publish(pubsub.Message{Data: []byte("Hello World!")})
	s.Require().NoError(err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	id, err := fut.Get(ctx)
	s.NoError(err)
	s.Equal("mid-0", id)
	s.EqualValues(1, atomic.LoadInt32(&calls))
}

// Scenario 2: maximum_message_count=2 batches two messages into one call,
// dispatching ids positionally.
func (s *PublisherTestSuite) TestBatchByCount() {
	server := pstest.NewServer()
	var calls int32
	server.SetPublishReactor(func(req pubsub.PublishRequest) (*pubsub.PublishResponse, error) {
		atomic.AddInt32(&calls, 1)
		s.Len(req.Messages, 2)
		return &pubsub.PublishResponse{MessageIDs: []string{"mid-0", "mid-1"}}, nil
	})

	cfg := pubsub.DefaultBatchingConfig()
	cfg.MaximumMessageCount = 2
	pub := s.newPublisher(cfg, server)

	f0, err := pub.Publish(pubsub.Message{Data: []byte("test-data-0")})
	s.Require().NoError(err)
	f1, err := pub.Publish(pubsub.Message{Data: []byte("test-data-1")})
	s.Require().NoError(err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	id0, err := f0.Get(ctx)
	s.NoError(err)
	id1, err := f1.Get(ctx)
	s.NoError(err)
	s.Equal("mid-0", id0)
	s.Equal("mid-1", id1)
	s.EqualValues(1, atomic.LoadInt32(&calls))
}

// Scenario 3: a byte-size bound crossed by the second message flushes both
// in one call.
func (s *PublisherTestSuite) TestBatchByBytes() {
	server := pstest.NewServer()
	var calls int32
	server.SetPublishReactor(func(req pubsub.PublishRequest) (*pubsub.PublishResponse, error) {
		atomic.AddInt32(&calls, 1)
		s.Len(req.Messages, 2)
		return &pubsub.PublishResponse{MessageIDs: []string{"mid-0", "mid-1"}}, nil
	})

	cfg := pubsub.DefaultBatchingConfig()
	cfg.MaximumMessageCount = 4
	cfg.MaximumBatchBytes = len("test-data-0") + 2
	pub := s.newPublisher(cfg, server)

	_, err := pub.Publish(pubsub.Message{Data: []byte("test-data-0")})
	s.Require().NoError(err)
	// The second message is the one expected to cross the byte bound.
	f1, err := pub.Publish(pubsub.Message{Data: []byte("test-data-1")})
	s.Require().NoError(err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err = f1.Get(ctx)
	s.NoError(err)
	s.EqualValues(1, atomic.LoadInt32(&calls))
}

// Scenario 4: neither count nor byte trigger fires; the hold-time timer
// flushes both messages together after it elapses.
func (s *PublisherTestSuite) TestBatchByTime() {
	server := pstest.NewServer()
	var calls int32
	server.SetPublishReactor(func(req pubsub.PublishRequest) (*pubsub.PublishResponse, error) {
		atomic.AddInt32(&calls, 1)
		s.Len(req.Messages, 2)
		return &pubsub.PublishResponse{MessageIDs: []string{"mid-0", "mid-1"}}, nil
	})

	cfg := pubsub.BatchingConfig{
		MaximumMessageCount: 4,
		MaximumBatchBytes:   1 << 20,
		MaximumHoldTime:     5 * time.Millisecond,
	}
	pub := s.newPublisher(cfg, server)

	f0, err := pub.Publish(pubsub.Message{Data: []byte("a")})
	s.Require().NoError(err)
	f1, err := pub.Publish(pubsub.Message{Data: []byte("b")})
	s.Require().NoError(err)

	// Immediately after both publishes, neither count nor byte trigger
	// should have fired yet.
	s.EqualValues(0, atomic.LoadInt32(&calls))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err = f0.Get(ctx)
	s.NoError(err)
	_, err = f1.Get(ctx)
	s.NoError(err)
	s.EqualValues(1, atomic.LoadInt32(&calls))
}

// Scenario 5: a permanent transport failure surfaces on every submitted
// future in the failing batch.
func (s *PublisherTestSuite) TestPublishPermanentFailure() {
	server := pstest.NewServer()
	server.SetPublishReactor(func(req pubsub.PublishRequest) (*pubsub.PublishResponse, error) {
		return nil, status.Error(codes.PermissionDenied, "uh-oh")
	})

	cfg := pubsub.DefaultBatchingConfig()
	cfg.MaximumMessageCount = 2
	pub := s.newPublisher(cfg, server)

	f0, err := pub.Publish(pubsub.Message{Data: []byte("x")})
	s.Require().NoError(err)
	f1, err := pub.Publish(pubsub.Message{Data: []byte("y")})
	s.Require().NoError(err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	for _, f := range []interface {
		Get(context.Context) (string, error)
	}{f0, f1} {
		_, err := f.Get(ctx)
		s.Error(err)
		st, ok := err.(pubsub.Status)
		s.Require().True(ok)
		s.Equal(pubsub.PermissionDenied, st.Code)
		s.Equal("uh-oh", st.Message)
	}
}

// Oversized messages fail synchronously with INVALID_ARGUMENT, without
// ever reaching the transport.
func (s *PublisherTestSuite) TestOversizedMessageRejectedSynchronously() {
	server := pstest.NewServer()
	called := false
	server.SetPublishReactor(func(req pubsub.PublishRequest) (*pubsub.PublishResponse, error) {
		called = true
		return &pubsub.PublishResponse{MessageIDs: []string{"mid-0"}}, nil
	})

	cfg := pubsub.DefaultBatchingConfig()
	cfg.MaximumBatchBytes = 4
	pub := s.newPublisher(cfg, server)

	_, err := pub.Publish(pubsub.Message{Data: []byte("way too big")})
	s.Error(err)
	s.False(called)
}

func TestPublisherSuite(t *testing.T) {
	test.Run(t, new(PublisherTestSuite))
}
