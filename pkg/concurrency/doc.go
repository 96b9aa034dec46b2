/*
Package concurrency provides advanced concurrency primitives with observability.

Features:
  - Executor / Future: bounded worker pool with promise-style async results,
    used by the publisher's batching engine and the subscriber's dispatch loop
  - SmartMutex / SmartRWMutex: deadlock detection and slow lock logging,
    wired into the publisher's batch lock and the fake transport's reactor lock
  - Semaphore: weighted semaphore bounding concurrent subscriber handlers
  - WorkerPool: goroutine pool the Executor is built from
  - SafeGo / FanOut: panic-recovered goroutine helpers
*/
package concurrency
