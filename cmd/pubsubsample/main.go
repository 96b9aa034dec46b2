// Command pubsubsample is a small demo driver for pkg/pubsub: it publishes a
// handful of messages to a topic and, in the same process, runs a
// subscriber that prints and acks whatever it receives. It is peripheral to
// the client library itself — wiring glue for pkg/config, pkg/logger,
// pkg/telemetry, and pkg/pubsub, not part of the core's contract.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/chris-alexander-pop/pubsub-go/pkg/concurrency"
	"github.com/chris-alexander-pop/pubsub-go/pkg/config"
	"github.com/chris-alexander-pop/pubsub-go/pkg/logger"
	"github.com/chris-alexander-pop/pubsub-go/pkg/pubsub"
	"github.com/chris-alexander-pop/pubsub-go/pkg/telemetry"
)

// sampleConfig is loaded from the environment via pkg/config, the same way
// every other ambient package in this tree is configured.
type sampleConfig struct {
	Logging   logger.Config
	Telemetry telemetry.Config
	Project   string `env:"PUBSUB_PROJECT" env-default:"demo-project"`
	TopicID   string `env:"PUBSUB_TOPIC" env-default:"demo-topic"`
	SubID     string `env:"PUBSUB_SUBSCRIPTION" env-default:"demo-subscription"`
}

func main() {
	var cfg sampleConfig
	if err := config.Load(&cfg); err != nil {
		fmt.Fprintln(os.Stderr, "load config:", err)
		os.Exit(1)
	}

	logger.Init(cfg.Logging)
	log := logger.L()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdown, err := telemetry.Init(cfg.Telemetry)
	if err != nil {
		log.WarnContext(ctx, "telemetry init failed, continuing without tracing", "error", err)
	} else {
		defer func() {
			shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = shutdown(shutCtx)
		}()
	}

	topic := pubsub.Topic{Project: cfg.Project, ID: cfg.TopicID}
	sub := pubsub.Subscription{Project: cfg.Project, ID: cfg.SubID}

	connOpts := pubsub.DefaultConnectionOptions()

	publisher, subscriber, closeFn, err := pubsub.Dial(ctx, topic, sub, pubsub.PublisherOptions{
		Batching:   pubsub.DefaultBatchingConfig(),
		Connection: connOpts,
	})
	if err != nil {
		log.ErrorContext(ctx, "dial pubsub transport failed", "error", err)
		os.Exit(1)
	}
	defer closeFn()

	sessionFut := subscriber.Subscribe(func(msg pubsub.Message, ack *pubsub.AckHandler) {
		log.InfoContext(ctx, "received message",
			"message_id", msg.ID,
			"data", string(msg.Data),
			"attributes", msg.Attributes)
		ack.Ack()
	})

	concurrency.FanOut(ctx, 3, func(i int) {
		fut, err := publisher.Publish(pubsub.Message{
			Data:       []byte(fmt.Sprintf("sample message %d", i)),
			Attributes: map[string]string{"sample": "true"},
		})
		if err != nil {
			log.ErrorContext(ctx, "publish rejected synchronously", "error", err)
			return
		}
		id, err := fut.Get(ctx)
		if err != nil {
			log.ErrorContext(ctx, "publish failed", "index", i, "error", err)
			return
		}
		log.InfoContext(ctx, "published message", "index", i, "message_id", id)
	})

	<-ctx.Done()
	log.Info("shutting down")
	sessionFut.Cancel()

	shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := sessionFut.Get(shutCtx); err != nil {
		log.Warn("subscriber session did not shut down cleanly", "error", err)
	}
}
