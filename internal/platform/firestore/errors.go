package firestore

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Error carries the gRPC code Firestore answered with so repositories can classify failures
// without importing grpc themselves.
type Error struct {
	Op   string
	Code codes.Code
	Err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("firestore %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// IsNotFound reports a missing (or soft-deleted) document.
func (e *Error) IsNotFound() bool { return e.Code == codes.NotFound }

// IsConflict reports a create over an existing document or a lost transaction race.
func (e *Error) IsConflict() bool {
	switch e.Code {
	case codes.AlreadyExists, codes.Aborted, codes.FailedPrecondition:
		return true
	}
	return false
}

// IsUnavailable reports a failure worth retrying later.
func (e *Error) IsUnavailable() bool {
	switch e.Code {
	case codes.Unavailable, codes.ResourceExhausted, codes.Internal, codes.DeadlineExceeded:
		return true
	}
	return false
}

// WrapError tags err with op and its gRPC code. Cancellation surfaces as the context error and an
// already wrapped error is returned unchanged.
func WrapError(op string, err error) error {
	if err == nil {
		return nil
	}
	var wrapped *Error
	if errors.As(err, &wrapped) {
		return err
	}
	code := status.Code(err)
	switch {
	case code == codes.Canceled || errors.Is(err, context.Canceled):
		return context.Canceled
	case errors.Is(err, context.DeadlineExceeded):
		return context.DeadlineExceeded
	}
	return &Error{Op: op, Code: code, Err: err}
}
