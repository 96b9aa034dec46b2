package pubsub

import (
	"testing"

	"github.com/chris-alexander-pop/pubsub-go/pkg/test"
)

type IDsTestSuite struct {
	test.Suite
}

func (s *IDsTestSuite) TestTopicFullName() {
	top := Topic{Project: "proj-1", ID: "topic-1"}
	s.Equal("projects/proj-1/topics/topic-1", top.FullName())
	s.True(top.Valid())
}

func (s *IDsTestSuite) TestSubscriptionFullName() {
	sub := Subscription{Project: "proj-1", ID: "sub-1"}
	s.Equal("projects/proj-1/subscriptions/sub-1", sub.FullName())
	s.True(sub.Valid())
}

func (s *IDsTestSuite) TestInvalidWhenEmpty() {
	s.False(Topic{}.Valid())
	s.False(Topic{Project: "p"}.Valid())
	s.False(Subscription{ID: "s"}.Valid())
}

func (s *IDsTestSuite) TestEqualityByFields() {
	a := Topic{Project: "p", ID: "t"}
	b := Topic{Project: "p", ID: "t"}
	c := Topic{Project: "p", ID: "other"}
	s.Equal(a, b)
	s.NotEqual(a, c)
}

func TestIDsSuite(t *testing.T) {
	test.Run(t, new(IDsTestSuite))
}
