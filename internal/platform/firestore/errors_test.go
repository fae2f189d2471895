package firestore

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestWrapError_Classification(t *testing.T) {
	tests := []struct {
		code                            codes.Code
		notFound, conflict, unavailable bool
	}{
		{code: codes.NotFound, notFound: true},
		{code: codes.AlreadyExists, conflict: true},
		{code: codes.Aborted, conflict: true},
		{code: codes.FailedPrecondition, conflict: true},
		{code: codes.Unavailable, unavailable: true},
		{code: codes.ResourceExhausted, unavailable: true},
		{code: codes.DeadlineExceeded, unavailable: true},
		{code: codes.PermissionDenied},
	}
	for _, tt := range tests {
		t.Run(tt.code.String(), func(t *testing.T) {
			err := WrapError("orders.get", status.Error(tt.code, "boom"))
			var wrapped *Error
			require.ErrorAs(t, err, &wrapped)
			assert.Equal(t, tt.notFound, wrapped.IsNotFound())
			assert.Equal(t, tt.conflict, wrapped.IsConflict())
			assert.Equal(t, tt.unavailable, wrapped.IsUnavailable())
			assert.Contains(t, err.Error(), "firestore orders.get")
		})
	}
}

func TestWrapError_PassThrough(t *testing.T) {
	assert.NoError(t, WrapError("x", nil))
	assert.Equal(t, context.Canceled, WrapError("x", status.Error(codes.Canceled, "gone")))
	assert.Equal(t, context.DeadlineExceeded, WrapError("x", fmt.Errorf("wait: %w", context.DeadlineExceeded)))

	first := WrapError("carts.set", status.Error(codes.Aborted, "contention"))
	again := WrapError("transaction", fmt.Errorf("retry: %w", first))
	var wrapped *Error
	require.True(t, errors.As(again, &wrapped))
	assert.Equal(t, "carts.set", wrapped.Op)
}
