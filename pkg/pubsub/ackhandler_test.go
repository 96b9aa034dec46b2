package pubsub_test

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/chris-alexander-pop/pubsub-go/pkg/pubsub"
	"github.com/chris-alexander-pop/pubsub-go/pkg/pubsub/pstest"
	"github.com/chris-alexander-pop/pubsub-go/pkg/test"
)

type AckHandlerTestSuite struct {
	test.Suite
}

// At most one of ack()/nack() produces a transport call, even when both are
// attempted (simulating a caller that raced a copy of the handle before the
// move).
func (s *AckHandlerTestSuite) TestSecondCallIsNoOp() {
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

	sub, err := pubsub.NewSubscriber(
		pubsub.Subscription{Project: "proj", ID: "sub"},
		server,
		pubsub.ConnectionOptions{ExecutorWorkers: 2},
	)
	s.Require().NoError(err)

	got := make(chan *pubsub.AckHandler, 1)
	fut := sub.Subscribe(func(msg pubsub.Message, ack *pubsub.AckHandler) {
		got <- ack
	})
	defer fut.Cancel()

	var handle *pubsub.AckHandler
	select {
	case handle = <-got:
	case <-time.After(2 * time.Second):
		s.FailNow("handler never invoked")
	}

	handle.Ack()
	handle.Nack()

	s.Require().Eventually(func() bool {
		return len(server.Acks())+len(server.Nacks()) >= 1
	}, time.Second, 5*time.Millisecond)

	time.Sleep(20 * time.Millisecond) // let any erroneous second call land
	s.Equal(1, len(server.Acks())+len(server.Nacks()))
}

func TestAckHandlerSuite(t *testing.T) {
	test.Run(t, new(AckHandlerTestSuite))
}
