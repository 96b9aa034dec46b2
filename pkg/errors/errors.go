// Package errors provides structured error handling for the system.
//
// It defines a standard AppError type that includes:
//   - Error Code (standardized strings like NOT_FOUND, INTERNAL)
//   - Message (human-readable description)
//   - Underlying Error (chaining)
//
// It also provides New/Wrap constructors and CodeOf/Is helpers for reading a
// code back out of an error chain. It does not convert codes to HTTP or gRPC
// status codes.
package errors

import (
	"errors"
	"fmt"
)

// AppError is a structured application error with a stable code, a
// human-readable message, and an optional wrapped cause.
type AppError struct {
	Code    string
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates an AppError with the given code, message, and optional cause.
func New(code, message string, err error) *AppError {
	return &AppError{Code: code, Message: message, Err: err}
}

// Wrap attaches context to err, preserving its code if it is already an
// AppError, or assigning CodeInternal otherwise.
func Wrap(err error, message string) *AppError {
	if err == nil {
		return nil
	}
	var ae *AppError
	if errors.As(err, &ae) {
		return &AppError{Code: ae.Code, Message: message + ": " + ae.Message, Err: ae.Err}
	}
	return &AppError{Code: CodeInternal, Message: message, Err: err}
}

// CodeInternal is the fallback code for errors with no more specific classification.
const CodeInternal = "INTERNAL"

// CodeOf returns the AppError code carried by err, or CodeInternal if err
// is not (or does not wrap) an AppError.
func CodeOf(err error) string {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Code
	}
	return CodeInternal
}

// Is reports whether err carries the given code.
func Is(err error, code string) bool {
	return CodeOf(err) == code
}
