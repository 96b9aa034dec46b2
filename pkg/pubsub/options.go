package pubsub

import (
	"fmt"
	"os"
	"time"

	"github.com/chris-alexander-pop/pubsub-go/pkg/concurrency"
	"golang.org/x/oauth2"
)

const (
	defaultEndpoint           = "pubsub.googleapis.com"
	defaultMaxMessageCount    = 100
	defaultMaxBatchBytes      = 1 << 20 // 1 MiB
	defaultMaxHoldTime        = 10 * time.Millisecond
	defaultExecutorWorkers    = 4
	libraryName               = "pubsub-go"
	libraryVersion            = "0.1.0"
	emulatorHostEnvVar        = "PUBSUB_EMULATOR_HOST"
)

// BatchingConfig controls the publisher's batching engine flush triggers.
type BatchingConfig struct {
	// MaximumMessageCount flushes a batch once pending reaches this count.
	// Default 100, minimum 1.
	MaximumMessageCount int `env:"PUBSUB_MAX_MESSAGE_COUNT" env-default:"100"`

	// MaximumBatchBytes flushes a batch once the accumulated serialized size
	// would exceed this bound. Default 1 MiB.
	MaximumBatchBytes int `env:"PUBSUB_MAX_BATCH_BYTES" env-default:"1048576"`

	// MaximumHoldTime flushes a batch no later than this after the first
	// message in it arrived. Default 10ms, minimum 0.
	MaximumHoldTime time.Duration `env:"PUBSUB_MAX_HOLD_TIME" env-default:"10ms"`
}

// DefaultBatchingConfig returns the documented defaults.
func DefaultBatchingConfig() BatchingConfig {
	return BatchingConfig{
		MaximumMessageCount: defaultMaxMessageCount,
		MaximumBatchBytes:   defaultMaxBatchBytes,
		MaximumHoldTime:     defaultMaxHoldTime,
	}
}

// normalize replaces out-of-range values (count or bytes below 1, negative
// hold time) with the defaults, so a zero-value BatchingConfig{} behaves
// sanely; a zero hold time is kept.
func (c BatchingConfig) normalize() BatchingConfig {
	if c.MaximumMessageCount < 1 {
		c.MaximumMessageCount = defaultMaxMessageCount
	}
	if c.MaximumBatchBytes < 1 {
		c.MaximumBatchBytes = defaultMaxBatchBytes
	}
	if c.MaximumHoldTime < 0 {
		c.MaximumHoldTime = defaultMaxHoldTime
	}
	return c
}

// PublisherOptions wraps a BatchingConfig and connection-level options for a
// single publisher connection.
type PublisherOptions struct {
	Batching   BatchingConfig
	Connection ConnectionOptions
}

// ConnectionOptions configures the transport and the executor a publisher
// or subscriber connection runs on.
type ConnectionOptions struct {
	// Endpoint is the transport address. Defaults to pubsub.googleapis.com,
	// overridden by PUBSUB_EMULATOR_HOST when set.
	Endpoint string `env:"PUBSUB_ENDPOINT" env-default:"pubsub.googleapis.com"`

	// Insecure disables transport credentials (set automatically for the
	// emulator).
	Insecure bool

	// TokenSource supplies OAuth2 credentials for the real transport. Nil
	// when Insecure is set or when running against the emulator.
	TokenSource oauth2.TokenSource

	// UserAgentPlatform is appended to the library's own name/version when
	// assembling the outgoing user-agent metadata value.
	UserAgentPlatform string

	// Executor is an externally-owned executor. If nil, the connection
	// creates and owns one with ExecutorWorkers workers.
	Executor *concurrency.Executor

	// ExecutorWorkers sizes the internally-owned executor when Executor is
	// nil. Must be >= 1; subscriber connections need > 1 so that pull calls
	// (which block a worker) don't starve handler dispatch.
	ExecutorWorkers int `env:"PUBSUB_EXECUTOR_WORKERS" env-default:"4"`

	// MaxConcurrentHandlers bounds how many subscriber handler invocations
	// may run at once, independent of ExecutorWorkers. Zero (the default)
	// leaves dispatch unbounded beyond the executor's own worker count.
	MaxConcurrentHandlers int `env:"PUBSUB_MAX_CONCURRENT_HANDLERS" env-default:"0"`
}

// DefaultConnectionOptions returns the documented defaults, with the
// PUBSUB_EMULATOR_HOST override applied if present.
func DefaultConnectionOptions() ConnectionOptions {
	opts := ConnectionOptions{
		Endpoint:        defaultEndpoint,
		ExecutorWorkers: defaultExecutorWorkers,
	}
	return opts.withEmulatorOverride()
}

// withEmulatorOverride redirects Endpoint and switches to insecure transport
// credentials when PUBSUB_EMULATOR_HOST is set, matching the real client.
func (o ConnectionOptions) withEmulatorOverride() ConnectionOptions {
	if host := os.Getenv(emulatorHostEnvVar); host != "" {
		o.Endpoint = host
		o.Insecure = true
		o.TokenSource = nil
	}
	return o
}

// userAgent assembles the outgoing user-agent metadata value: library name,
// version, then any caller-supplied platform fragments.
func (o ConnectionOptions) userAgent() string {
	ua := fmt.Sprintf("%s/%s", libraryName, libraryVersion)
	if o.UserAgentPlatform != "" {
		ua = ua + " " + o.UserAgentPlatform
	}
	return ua
}

// executorOrNew returns o.Executor if set, else a freshly created,
// library-owned Executor with ExecutorWorkers workers (at least 1).
func (o ConnectionOptions) executorOrNew() (exec *concurrency.Executor, owned bool) {
	if o.Executor != nil {
		return o.Executor, false
	}
	workers := o.ExecutorWorkers
	if workers < 1 {
		workers = defaultExecutorWorkers
	}
	return concurrency.NewExecutor(workers), true
}
