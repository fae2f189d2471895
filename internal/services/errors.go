package services

import (
	"errors"
	"fmt"

	domain "github.com/wrtnlabs/autobe-example-shopping-openai-gpt-4.1-mini-sub000/internal/domain"
	"github.com/wrtnlabs/autobe-example-shopping-openai-gpt-4.1-mini-sub000/internal/policy"
	"github.com/wrtnlabs/autobe-example-shopping-openai-gpt-4.1-mini-sub000/internal/repositories"
)

var (
	// ErrUnauthenticated indicates the call carries no valid identity.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrForbidden indicates the identity is valid but the policy denies the operation.
	ErrForbidden = errors.New("forbidden")
	// ErrNotFound indicates a referenced record does not exist or has been soft-deleted.
	ErrNotFound = errors.New("not found")
	// ErrConflict indicates a duplicate key or a stale version.
	ErrConflict = errors.New("conflict")
	// ErrInvalidArgument indicates malformed input.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrInvalidState indicates the record's lifecycle state forbids the operation.
	ErrInvalidState = errors.New("invalid state")
	// ErrUnavailable indicates a backing store could not be reached.
	ErrUnavailable = errors.New("unavailable")
)

var errorKinds = []error{
	ErrUnauthenticated,
	ErrForbidden,
	ErrNotFound,
	ErrConflict,
	ErrInvalidArgument,
	ErrInvalidState,
	ErrUnavailable,
}

func isKnownKind(err error) bool {
	for _, kind := range errorKinds {
		if errors.Is(err, kind) {
			return true
		}
	}
	return false
}

// mapRepositoryError translates persistence failures into service error kinds. Errors that already
// carry a kind pass through unchanged.
func mapRepositoryError(err error, subject string) error {
	if err == nil {
		return nil
	}
	if isKnownKind(err) {
		return err
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %s", ErrNotFound, subject)
		case repoErr.IsConflict():
			return fmt.Errorf("%w: %s", ErrConflict, subject)
		case repoErr.IsUnavailable():
			return fmt.Errorf("%w: %s: %v", ErrUnavailable, subject, err)
		}
	}
	return err
}

// authorize consults the policy for the actor. A zero actor is unauthenticated rather than forbidden.
func authorize(actor domain.Actor, op policy.Operation, refs policy.Refs) error {
	if actor.IsZero() || actor.ID == "" {
		return ErrUnauthenticated
	}
	if !policy.Allow(actor, op, refs) {
		return fmt.Errorf("%w: %s", ErrForbidden, op)
	}
	return nil
}

// checkVersion enforces optimistic concurrency when the caller supplied an expected version.
func checkVersion(subject string, expected *int64, actual int64) error {
	if expected == nil || *expected == actual {
		return nil
	}
	return fmt.Errorf("%w: %s version %d does not match %d", ErrConflict, subject, *expected, actual)
}

func validatePage(page domain.PageRequest) (domain.PageRequest, error) {
	if page.Limit == 0 && page.Page == 0 {
		return domain.PageRequest{Page: domain.DefaultPage, Limit: domain.DefaultLimit}, nil
	}
	if page.Limit <= 0 {
		return page, fmt.Errorf("%w: limit must be positive", ErrInvalidArgument)
	}
	if page.Page < 0 {
		return page, fmt.Errorf("%w: page must not be negative", ErrInvalidArgument)
	}
	return page, nil
}
