package pubsub

import (
	pkgerrors "github.com/chris-alexander-pop/pubsub-go/pkg/errors"
)

// Error codes for pkg/errors.AppError wrapping of pubsub-level failures.
// These sit alongside the Status/Code taxonomy: Status is what callers see
// on futures, AppError is what synchronous rejections (invalid input to
// NewPublisher, NewSubscriber or Publish, and Publish after Close) return as
// a plain Go error.
const (
	CodeInvalidArgument = "PUBSUB_INVALID_ARGUMENT"
	CodeConnection      = "PUBSUB_CONNECTION_FAILED"
	CodeClosed          = "PUBSUB_CLOSED"
)

// errInvalidArgument builds an AppError for synchronous input validation
// failures (oversized message, empty topic/subscription) that are rejected
// before ever reaching the transport.
func errInvalidArgument(message string) *pkgerrors.AppError {
	return pkgerrors.New(CodeInvalidArgument, message, nil)
}

// errClosed builds an AppError for operations attempted after the owning
// connection has been closed.
func errClosed(message string) *pkgerrors.AppError {
	return pkgerrors.New(CodeClosed, message, nil)
}

// statusToAppError lets connection-setup code (which returns plain errors,
// not Status-bearing futures) surface a Status as an AppError.
func statusToAppError(s Status) *pkgerrors.AppError {
	return pkgerrors.New(s.Code.String(), s.Message, nil)
}
