package pubsub

import (
	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"
)

// Code is a transport-independent status kind. It mirrors the taxonomy the
// underlying RPC transport uses, since the core's contract is defined in
// terms of these kinds rather than any one transport's error type.
type Code int

const (
	OK Code = iota
	Cancelled
	Unknown
	InvalidArgument
	DeadlineExceeded
	NotFound
	AlreadyExists
	PermissionDenied
	ResourceExhausted
	FailedPrecondition
	Aborted
	OutOfRange
	Unimplemented
	Internal
	Unavailable
	DataLoss
	Unauthenticated
)

func (c Code) String() string {
	switch c {
	case OK:
		return "OK"
	case Cancelled:
		return "CANCELLED"
	case Unknown:
		return "UNKNOWN"
	case InvalidArgument:
		return "INVALID_ARGUMENT"
	case DeadlineExceeded:
		return "DEADLINE_EXCEEDED"
	case NotFound:
		return "NOT_FOUND"
	case AlreadyExists:
		return "ALREADY_EXISTS"
	case PermissionDenied:
		return "PERMISSION_DENIED"
	case ResourceExhausted:
		return "RESOURCE_EXHAUSTED"
	case FailedPrecondition:
		return "FAILED_PRECONDITION"
	case Aborted:
		return "ABORTED"
	case OutOfRange:
		return "OUT_OF_RANGE"
	case Unimplemented:
		return "UNIMPLEMENTED"
	case Internal:
		return "INTERNAL"
	case Unavailable:
		return "UNAVAILABLE"
	case DataLoss:
		return "DATA_LOSS"
	case Unauthenticated:
		return "UNAUTHENTICATED"
	default:
		return "UNKNOWN"
	}
}

// Status carries a Code and a human-readable message. It is the unit of
// failure propagated on publish futures and subscriber session futures.
type Status struct {
	Code    Code
	Message string
}

func (s Status) Error() string {
	return s.Code.String() + ": " + s.Message
}

// OKStatus is the zero-value success status.
var OKStatus = Status{Code: OK}

// fromGRPCCode maps a gRPC status code onto the unified taxonomy.
func fromGRPCCode(c codes.Code) Code {
	switch c {
	case codes.OK:
		return OK
	case codes.Canceled:
		return Cancelled
	case codes.Unknown:
		return Unknown
	case codes.InvalidArgument:
		return InvalidArgument
	case codes.DeadlineExceeded:
		return DeadlineExceeded
	case codes.NotFound:
		return NotFound
	case codes.AlreadyExists:
		return AlreadyExists
	case codes.PermissionDenied:
		return PermissionDenied
	case codes.ResourceExhausted:
		return ResourceExhausted
	case codes.FailedPrecondition:
		return FailedPrecondition
	case codes.Aborted:
		return Aborted
	case codes.OutOfRange:
		return OutOfRange
	case codes.Unimplemented:
		return Unimplemented
	case codes.Internal:
		return Internal
	case codes.Unavailable:
		return Unavailable
	case codes.DataLoss:
		return DataLoss
	case codes.Unauthenticated:
		return Unauthenticated
	default:
		return Unknown
	}
}

// StatusFromError converts an arbitrary transport error into a Status,
// extracting a gRPC status if present.
func StatusFromError(err error) Status {
	if err == nil {
		return OKStatus
	}
	if gs, ok := grpcstatus.FromError(err); ok {
		return Status{Code: fromGRPCCode(gs.Code()), Message: gs.Message()}
	}
	return Status{Code: Unknown, Message: err.Error()}
}

// isTransient reports whether code is worth a bounded retry in the pull
// loop. Grounded on the retryable-code set used by the vendored Pub/Sub
// client's publish/pull retry policy: deadline/resource/internal errors,
// ABORTED and UNAVAILABLE are transient; everything else (permission, not-found,
// invalid-argument, ...) is permanent.
func isTransient(c Code) bool {
	switch c {
	case DeadlineExceeded, ResourceExhausted, Internal, Unavailable, Aborted:
		return true
	default:
		return false
	}
}
