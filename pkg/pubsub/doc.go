// Package pubsub implements the data-plane core of a cloud publish/subscribe
// client: a batching publisher pipeline and a pull/dispatch subscriber
// pipeline, built on an injectable transport Stub and a cooperative
// concurrency.Executor.
//
// Administration RPCs (topic/subscription CRUD), the wire encoding itself,
// and exactly-once delivery are out of scope — the server is at-least-once
// and this package never deduplicates.
package pubsub
