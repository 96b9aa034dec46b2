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

type SubscriberTestSuite struct {
	test.Suite
}

func (s *SubscriberTestSuite) newSubscriber(server *pstest.Server) *pubsub.Subscriber {
	sub, err := pubsub.NewSubscriber(
		pubsub.Subscription{Project: "proj", ID: "sub"},
		server,
		pubsub.ConnectionOptions{ExecutorWorkers: 4},
	)
	s.Require().NoError(err)
	return sub
}

// Scenario 6: one delivered message is handed to the handler exactly once;
// acking it issues Acknowledge with the matching ack id; cancelling resolves
// the session future with OK.
func (s *SubscriberTestSuite) TestSubscribeAndAck() {
	server := pstest.NewServer()
	var pulls int32
	server.SetPullReactor(func(req pubsub.PullRequest) (*pubsub.PullResponse, error) {
		if atomic.AddInt32(&pulls, 1) == 1 {
			return &pubsub.PullResponse{ReceivedMessages: []pubsub.ReceivedMessage{
				{AckID: "a0", Message: pubsub.Message{ID: "m0"}},
			}}, nil
		}
		time.Sleep(2 * time.Millisecond)
		return &pubsub.PullResponse{}, nil
	})

	sub := s.newSubscriber(server)
	handled := make(chan struct{}, 1)

	fut := sub.Subscribe(func(msg pubsub.Message, ack *pubsub.AckHandler) {
		s.Equal("m0", msg.ID)
		s.Equal("a0", ack.AckID())
		ack.Ack()
		handled <- struct{}{}
	})

	select {
	case <-handled:
	case <-time.After(2 * time.Second):
		s.FailNow("handler was never invoked")
	}

	s.Require().Eventually(func() bool {
		for _, req := range server.Acks() {
			if len(req.AckIDs) == 1 && req.AckIDs[0] == "a0" {
				return true
			}
		}
		return false
	}, time.Second, 5*time.Millisecond)

	fut.Cancel()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	st, err := fut.Get(ctx)
	s.NoError(err)
	s.Equal(pubsub.OK, st.Code)
}

// Scenario 7: a permanent Pull failure terminates the session with the same
// status, without ever invoking the handler.
func (s *SubscriberTestSuite) TestSubscribePullFailure() {
	server := pstest.NewServer()
	server.SetPullReactor(func(req pubsub.PullRequest) (*pubsub.PullResponse, error) {
		return nil, status.Error(codes.PermissionDenied, "nope")
	})

	sub := s.newSubscriber(server)
	handlerCalled := false
	fut := sub.Subscribe(func(msg pubsub.Message, ack *pubsub.AckHandler) {
		handlerCalled = true
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	st, err := fut.Get(ctx)
	s.NoError(err)
	s.Equal(pubsub.PermissionDenied, st.Code)
	s.False(handlerCalled)
}

// Scenario 8: with a multi-worker executor, handlers for a batch of
// messages run concurrently with each other: at least two invocations are
// observed in flight at once.
func (s *SubscriberTestSuite) TestSubscribeDispatchConcurrency() {
	server := pstest.NewServer()
	var nextID int32
	var pulls int32
	server.SetPullReactor(func(req pubsub.PullRequest) (*pubsub.PullResponse, error) {
		if atomic.AddInt32(&pulls, 1) > 3 {
			time.Sleep(2 * time.Millisecond)
			return &pubsub.PullResponse{}, nil
		}
		a := atomic.AddInt32(&nextID, 1)
		b := atomic.AddInt32(&nextID, 1)
		return &pubsub.PullResponse{ReceivedMessages: []pubsub.ReceivedMessage{
			{AckID: intToAckID(a), Message: pubsub.Message{ID: intToAckID(a)}},
			{AckID: intToAckID(b), Message: pubsub.Message{ID: intToAckID(b)}},
		}}, nil
	})

	sub, err := pubsub.NewSubscriber(
		pubsub.Subscription{Project: "proj", ID: "sub"},
		server,
		pubsub.ConnectionOptions{ExecutorWorkers: 4},
	)
	s.Require().NoError(err)

	var inFlight, maxInFlight int32
	var invocations int32
	done := make(chan struct{}, 16)

	// Subscribe itself never blocks for a handler invocation: it returns a
	// future immediately and the pull loop (and every dispatch) runs on the
	// executor from then on.
	fut := sub.Subscribe(func(msg pubsub.Message, ack *pubsub.AckHandler) {
		n := atomic.AddInt32(&inFlight, 1)
		for {
			cur := atomic.LoadInt32(&maxInFlight)
			if n <= cur || atomic.CompareAndSwapInt32(&maxInFlight, cur, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
		atomic.AddInt32(&invocations, 1)
		ack.Ack()
		done <- struct{}{}
	})

	for i := 0; i < 6; i++ {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			s.FailNow("not enough handler invocations observed")
		}
	}

	s.GreaterOrEqual(atomic.LoadInt32(&maxInFlight), int32(2))

	fut.Cancel()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err = fut.Get(ctx)
	s.NoError(err)
}

// With MaxConcurrentHandlers set to 1, handler invocations never overlap
// even though the executor itself has multiple workers available.
func (s *SubscriberTestSuite) TestSubscribeDispatchLimit() {
	server := pstest.NewServer()
	var nextID int32
	var pulls int32
	server.SetPullReactor(func(req pubsub.PullRequest) (*pubsub.PullResponse, error) {
		if atomic.AddInt32(&pulls, 1) > 3 {
			time.Sleep(2 * time.Millisecond)
			return &pubsub.PullResponse{}, nil
		}
		a := atomic.AddInt32(&nextID, 1)
		b := atomic.AddInt32(&nextID, 1)
		return &pubsub.PullResponse{ReceivedMessages: []pubsub.ReceivedMessage{
			{AckID: intToAckID(a), Message: pubsub.Message{ID: intToAckID(a)}},
			{AckID: intToAckID(b), Message: pubsub.Message{ID: intToAckID(b)}},
		}}, nil
	})

	sub, err := pubsub.NewSubscriber(
		pubsub.Subscription{Project: "proj", ID: "sub"},
		server,
		pubsub.ConnectionOptions{ExecutorWorkers: 4, MaxConcurrentHandlers: 1},
	)
	s.Require().NoError(err)

	var inFlight, maxInFlight int32
	done := make(chan struct{}, 16)

	fut := sub.Subscribe(func(msg pubsub.Message, ack *pubsub.AckHandler) {
		n := atomic.AddInt32(&inFlight, 1)
		for {
			cur := atomic.LoadInt32(&maxInFlight)
			if n <= cur || atomic.CompareAndSwapInt32(&maxInFlight, cur, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
		ack.Ack()
		done <- struct{}{}
	})

	for i := 0; i < 6; i++ {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			s.FailNow("not enough handler invocations observed")
		}
	}

	s.EqualValues(1, atomic.LoadInt32(&maxInFlight))

	fut.Cancel()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err = fut.Get(ctx)
	s.NoError(err)
}

func intToAckID(n int32) string {
	const digits = "0123456789"
	if n == 0 {
		return "0"
	}
	var buf [8]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = digits[n%10]
		n /= 10
	}
	return string(buf[i:])
}

func TestSubscriberSuite(t *testing.T) {
	test.Run(t, new(SubscriberTestSuite))
}
