package pubsub

import "fmt"

// Topic names a publish destination: a project and a topic id. Both fields
// are non-empty printable strings. Topic is an immutable value type;
// equality is by both fields.
type Topic struct {
	Project string
	ID      string
}

// FullName renders the topic's wire form: "projects/{p}/topics/{t}".
func (t Topic) FullName() string {
	return fmt.Sprintf("projects/%s/topics/%s", t.Project, t.ID)
}

func (t Topic) String() string {
	return t.FullName()
}

// Valid reports whether both fields are non-empty.
func (t Topic) Valid() bool {
	return t.Project != "" && t.ID != ""
}

// Subscription names a consumer view onto a topic: a project and a
// subscription id. Same rules as Topic.
type Subscription struct {
	Project string
	ID      string
}

// FullName renders the subscription's wire form:
// "projects/{p}/subscriptions/{s}".
func (s Subscription) FullName() string {
	return fmt.Sprintf("projects/%s/subscriptions/%s", s.Project, s.ID)
}

func (s Subscription) String() string {
	return s.FullName()
}

// Valid reports whether both fields are non-empty.
func (s Subscription) Valid() bool {
	return s.Project != "" && s.ID != ""
}
