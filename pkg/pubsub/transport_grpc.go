package pubsub

import (
	"context"
	"fmt"
	"time"

	"github.com/chris-alexander-pop/pubsub-go/pkg/concurrency"
	"github.com/chris-alexander-pop/pubsub-go/pkg/logger"
	pb "google.golang.org/genproto/googleapis/pubsub/v1"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/durationpb"
	"google.golang.org/protobuf/types/known/timestamppb"

	gtransport "google.golang.org/api/transport/grpc"

	"google.golang.org/api/option"
)

// grpcStub is the real transport Stub, built directly on the generated
// Pub/Sub gRPC clients rather than on cloud.google.com/go/pubsub — wrapping
// the high-level client here would make this package a thin shim over the
// very thing it reimplements.
type grpcStub struct {
	conn       *grpc.ClientConn
	publisher  pb.PublisherClient
	subscriber pb.SubscriberClient
	userAgent  string
}

// dialStub dials the transport per opts (endpoint, credentials, emulator
// override) and returns a Stub backed by the real Pub/Sub gRPC surface.
func dialStub(ctx context.Context, opts ConnectionOptions) (Stub, error) {
	opts = opts.withEmulatorOverride()

	var dialOpts []option.ClientOption
	dialOpts = append(dialOpts, option.WithEndpoint(opts.Endpoint))
	if opts.Insecure {
		dialOpts = append(dialOpts, option.WithGRPCDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())))
		dialOpts = append(dialOpts, option.WithoutAuthentication())
	} else if opts.TokenSource != nil {
		dialOpts = append(dialOpts, option.WithTokenSource(opts.TokenSource))
	}
	dialOpts = append(dialOpts, option.WithUserAgent(opts.userAgent()))

	conn, err := gtransport.Dial(ctx, dialOpts...)
	if err != nil {
		return nil, fmt.Errorf("dial pubsub transport: %w", err)
	}

	return &grpcStub{
		conn:       conn,
		publisher:  pb.NewPublisherClient(conn),
		subscriber: pb.NewSubscriberClient(conn),
		userAgent:  opts.userAgent(),
	}, nil
}

func (s *grpcStub) Close() error {
	return s.conn.Close()
}

func (s *grpcStub) CreateTopic(ctx context.Context, req CreateTopicRequest) (Topic, error) {
	_, err := s.publisher.CreateTopic(ctx, &pb.Topic{Name: req.Topic.FullName()})
	if err != nil {
		return Topic{}, err
	}
	return req.Topic, nil
}

func (s *grpcStub) ListTopics(ctx context.Context, project string) ([]Topic, error) {
	var out []Topic
	pageToken := ""
	for {
		resp, err := s.publisher.ListTopics(ctx, &pb.ListTopicsRequest{
			Project:   fmt.Sprintf("projects/%s", project),
			PageToken: pageToken,
		})
		if err != nil {
			return nil, err
		}
		for _, t := range resp.GetTopics() {
			out = append(out, parseTopicName(t.GetName()))
		}
		pageToken = resp.GetNextPageToken()
		if pageToken == "" {
			return out, nil
		}
	}
}

func (s *grpcStub) DeleteTopic(ctx context.Context, topic Topic) error {
	_, err := s.publisher.DeleteTopic(ctx, &pb.DeleteTopicRequest{Topic: topic.FullName()})
	return err
}

func (s *grpcStub) CreateSubscription(ctx context.Context, req CreateSubscriptionRequest) (Subscription, error) {
	ackDeadline := req.AckDeadlineSeconds
	if ackDeadline <= 0 {
		ackDeadline = 10
	}
	sub := &pb.Subscription{
		Name:               req.Subscription.FullName(),
		Topic:              req.Topic.FullName(),
		AckDeadlineSeconds: ackDeadline,
	}
	if req.MessageRetention > 0 {
		sub.MessageRetentionDuration = durationpb.New(req.MessageRetention)
	}
	_, err := s.subscriber.CreateSubscription(ctx, sub)
	if err != nil {
		return Subscription{}, err
	}
	return req.Subscription, nil
}

func (s *grpcStub) ListSubscriptions(ctx context.Context, project string) ([]Subscription, error) {
	var out []Subscription
	pageToken := ""
	for {
		resp, err := s.subscriber.ListSubscriptions(ctx, &pb.ListSubscriptionsRequest{
			Project:   fmt.Sprintf("projects/%s", project),
			PageToken: pageToken,
		})
		if err != nil {
			return nil, err
		}
		for _, sub := range resp.GetSubscriptions() {
			out = append(out, parseSubscriptionName(sub.GetName()))
		}
		pageToken = resp.GetNextPageToken()
		if pageToken == "" {
			return out, nil
		}
	}
}

func (s *grpcStub) DeleteSubscription(ctx context.Context, sub Subscription) error {
	_, err := s.subscriber.DeleteSubscription(ctx, &pb.DeleteSubscriptionRequest{Subscription: sub.FullName()})
	return err
}

func (s *grpcStub) Pull(ctx context.Context, req PullRequest) (PullResponse, error) {
	resp, err := s.subscriber.Pull(ctx, &pb.PullRequest{
		Subscription: req.Subscription,
		MaxMessages:  req.MaxMessages,
	}, grpc.WaitForReady(true))
	if err != nil {
		return PullResponse{}, err
	}

	out := PullResponse{}
	for _, rm := range resp.GetReceivedMessages() {
		out.ReceivedMessages = append(out.ReceivedMessages, ReceivedMessage{
			AckID:   rm.GetAckId(),
			Message: fromWireMessage(rm.GetMessage()),
		})
	}
	return out, nil
}

func (s *grpcStub) Acknowledge(ctx context.Context, req AcknowledgeRequest) (struct{}, error) {
	_, err := s.subscriber.Acknowledge(ctx, &pb.AcknowledgeRequest{
		Subscription: req.Subscription,
		AckIds:       req.AckIDs,
	})
	return struct{}{}, err
}

func (s *grpcStub) ModifyAckDeadline(ctx context.Context, req ModifyAckDeadlineRequest) (struct{}, error) {
	_, err := s.subscriber.ModifyAckDeadline(ctx, &pb.ModifyAckDeadlineRequest{
		Subscription:       req.Subscription,
		AckIds:             req.AckIDs,
		AckDeadlineSeconds: req.AckDeadlineSeconds,
	})
	return struct{}{}, err
}

// AsyncPublish issues the publish RPC on an executor worker and resolves the
// returned future there, so the submitter's goroutine never blocks on it.
func (s *grpcStub) AsyncPublish(exec *concurrency.Executor, ctx context.Context, req PublishRequest) *concurrency.Future[PublishResponse] {
	fut := concurrency.NewFuture[PublishResponse]()
	ctx = metadata.AppendToOutgoingContext(ctx, "x-goog-api-client", s.userAgent)

	exec.RunAsync(func(ctx context.Context) {
		wireMsgs := make([]*pb.PubsubMessage, len(req.Messages))
		for i, m := range req.Messages {
			wireMsgs[i] = toWireMessage(m)
		}

		resp, err := s.publisher.Publish(ctx, &pb.PublishRequest{
			Topic:    req.Topic,
			Messages: wireMsgs,
		})
		if err != nil {
			logger.L().ErrorContext(ctx, "publish rpc failed", "topic", req.Topic, "error", err)
			fut.Resolve(PublishResponse{}, err)
			return
		}
		fut.Resolve(PublishResponse{MessageIDs: resp.GetMessageIds()}, nil)
	})

	return fut
}

func toWireMessage(m Message) *pb.PubsubMessage {
	return &pb.PubsubMessage{
		Data:        m.Data,
		Attributes:  m.Attributes,
		OrderingKey: m.OrderingKey,
	}
}

func fromWireMessage(m *pb.PubsubMessage) Message {
	if m == nil {
		return Message{}
	}
	return Message{
		Data:        m.GetData(),
		Attributes:  m.GetAttributes(),
		ID:          m.GetMessageId(),
		PublishTime: timestampToTime(m.GetPublishTime()),
		OrderingKey: m.GetOrderingKey(),
	}
}

func timestampToTime(ts *timestamppb.Timestamp) time.Time {
	if ts == nil {
		return time.Time{}
	}
	return ts.AsTime()
}

func parseTopicName(full string) Topic {
	project, id := splitResourceName(full, "topics")
	return Topic{Project: project, ID: id}
}

func parseSubscriptionName(full string) Subscription {
	project, id := splitResourceName(full, "subscriptions")
	return Subscription{Project: project, ID: id}
}

// splitResourceName parses "projects/{p}/{kind}/{id}" into (p, id).
func splitResourceName(full, kind string) (project, id string) {
	const prefix = "projects/"
	rest := full
	if len(rest) > len(prefix) && rest[:len(prefix)] == prefix {
		rest = rest[len(prefix):]
	}
	mid := "/" + kind + "/"
	for i := 0; i+len(mid) <= len(rest); i++ {
		if rest[i:i+len(mid)] == mid {
			return rest[:i], rest[i+len(mid):]
		}
	}
	return "", ""
}
