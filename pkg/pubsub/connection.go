package pubsub

import "context"

// Dial opens the real gRPC transport per opts.Connection and constructs a
// Publisher bound to topic and a Subscriber bound to sub, sharing the same
// underlying Stub. The returned close function shuts down both pipelines'
// owned executors and then closes the shared stub; callers should cancel
// any outstanding subscriber session before calling it.
func Dial(ctx context.Context, topic Topic, sub Subscription, opts PublisherOptions) (*Publisher, *Subscriber, func() error, error) {
	stub, err := dialStub(ctx, opts.Connection)
	if err != nil {
		return nil, nil, nil, err
	}

	pub, err := NewPublisher(topic, stub, opts)
	if err != nil {
		_ = stub.Close()
		return nil, nil, nil, err
	}

	subr, err := NewSubscriber(sub, stub, opts.Connection)
	if err != nil {
		_ = pub.Close()
		_ = stub.Close()
		return nil, nil, nil, err
	}

	closeFn := func() error {
		_ = pub.Close()
		_ = subr.Close()
		return stub.Close()
	}

	return pub, subr, closeFn, nil
}
