package memory

import (
	"errors"
	"fmt"
)

type errorKind int

const (
	kindNotFound errorKind = iota + 1
	kindConflict
	kindUnavailable
)

// Error implements repositories.RepositoryError for the in-memory store.
type Error struct {
	op   string
	kind errorKind
	err  error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %v", e.op, e.err)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.err
}

// IsNotFound reports whether the record does not exist.
func (e *Error) IsNotFound() bool { return e != nil && e.kind == kindNotFound }

// IsConflict reports whether the write collided with an existing record.
func (e *Error) IsConflict() bool { return e != nil && e.kind == kindConflict }

// IsUnavailable reports whether the store has been closed.
func (e *Error) IsUnavailable() bool { return e != nil && e.kind == kindUnavailable }

var (
	errNotFound = errors.New("not found")
	errExists   = errors.New("already exists")
	errClosed   = errors.New("store closed")
)

func notFound(op, id string) error {
	return &Error{op: op, kind: kindNotFound, err: fmt.Errorf("%w: %s", errNotFound, id)}
}

func conflict(op, id string) error {
	return &Error{op: op, kind: kindConflict, err: fmt.Errorf("%w: %s", errExists, id)}
}

func unavailable(op string) error {
	return &Error{op: op, kind: kindUnavailable, err: errClosed}
}
