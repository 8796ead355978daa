package model

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrConfig is returned when a connection string or another identifying
	// argument is missing. It is always raised before any I/O.
	ErrConfig = errors.New("configuration error")
	// ErrInvalidOperation is returned for an unrecognized write or bulk-write kind
	ErrInvalidOperation = errors.New("invalid operation")
	// ErrValidation is returned when a required argument combination is missing
	ErrValidation = errors.New("validation error")
	// ErrInvalidQuery is returned when a query or pipeline is malformed
	ErrInvalidQuery = errors.New("invalid query")
	// ErrStore matches every *StoreError
	ErrStore = errors.New("store error")
	// ErrClose is returned when one or more handles fail to close during shutdown
	ErrClose = errors.New("close error")
	// ErrNotFound is returned when a document is not found
	ErrNotFound = errors.New("document not found")
	// ErrCanceled is returned when the operation is canceled by the client
	ErrCanceled = errors.New("operation canceled")
)

// Server error codes that indicate a malformed query rather than a
// runtime failure.
var invalidQueryCodes = map[int]bool{
	2:     true, // BadValue
	9:     true, // FailedToParse
	14:    true, // TypeMismatch
	15974: true, // sort key must be 1 or -1
	40323: true, // pipeline stage must have exactly one field
	40324: true, // unrecognized pipeline stage name
}

// StoreError is a failure surfaced by the document store, reduced to the
// most specific message the driver provided.
type StoreError struct {
	// Op is the facade operation that failed, e.g. "insertOne".
	Op string
	// Code is the server error code, 0 when the failure did not come from the server.
	Code int
	// Message is the most specific message available.
	Message string
	// Result holds the partial result reported by the store, if any.
	Result interface{}

	Err error
}

func (e *StoreError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("%s: %s (code %d)", e.Op, e.Message, e.Code)
	}
	return e.Op + ": " + e.Message
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// Is reports ErrStore for every store error, and ErrInvalidQuery when the
// server rejected the query shape.
func (e *StoreError) Is(target error) bool {
	switch target {
	case ErrStore:
		return true
	case ErrInvalidQuery:
		return invalidQueryCodes[e.Code]
	}
	return false
}

// Errorf wraps one of the sentinel errors with a formatted message.
func Errorf(kind error, format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", kind, fmt.Sprintf(format, args...))
}

// WrapError wraps storage errors to model errors.
// It converts context.Canceled and context.DeadlineExceeded to ErrCanceled.
func WrapError(err error) error {
	if err == nil {
		return nil
	}
	if IsCanceled(err) {
		return ErrCanceled
	}
	return err
}

// IsCanceled returns true if the error is due to context cancellation or deadline exceeded.
// It checks both direct context errors and wrapped errors (e.g., from MongoDB driver).
func IsCanceled(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if errors.Is(err, ErrCanceled) {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "context canceled") || strings.Contains(errStr, "context deadline exceeded")
}

// IsPreIO reports whether err was raised by argument checking, before the
// store was contacted.
func IsPreIO(err error) bool {
	return errors.Is(err, ErrConfig) ||
		errors.Is(err, ErrInvalidOperation) ||
		errors.Is(err, ErrValidation) ||
		(errors.Is(err, ErrInvalidQuery) && !errors.Is(err, ErrStore))
}
