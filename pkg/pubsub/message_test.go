package pubsub

import (
	"testing"

	"github.com/chris-alexander-pop/pubsub-go/pkg/test"
)

type MessageTestSuite struct {
	test.Suite
}

func (s *MessageTestSuite) TestApproxSizeGrowsWithAttributes() {
	base := Message{Data: []byte("hello")}
	withAttrs := Message{Data: []byte("hello"), Attributes: map[string]string{"a": "1", "b": "2"}}
	s.Greater(withAttrs.approxSize(), base.approxSize())
}

func (s *MessageTestSuite) TestRoundTripAttributesPreserved() {
	sent := Message{
		Data:       []byte("X"),
		Attributes: map[string]string{"a": "1", "b": "2"},
	}
	// Simulate the server assigning an id and redelivering the same
	// payload and attributes back to a subscriber.
	received := sent
	received.ID = "mid-0"

	s.Equal([]byte("X"), received.Data)
	s.Equal(map[string]string{"a": "1", "b": "2"}, received.Attributes)
}

func TestMessageSuite(t *testing.T) {
	test.Run(t, new(MessageTestSuite))
}
