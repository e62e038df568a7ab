package coreerr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInvariantErrorUnwraps(t *testing.T) {
	err := NewInvariantError("counter mismatch", "total=5 sum=4")
	require.ErrorIs(t, err, ErrInvariantViolation)
	require.Contains(t, err.Error(), "counter mismatch")
	require.Contains(t, err.Error(), "total=5 sum=4")
}

func TestJobFailureErrorKind(t *testing.T) {
	retryable := &JobFailureError{Attempt: 2, Message: "node crash"}
	require.ErrorIs(t, retryable, ErrJobFailedRetryable)
	require.NotErrorIs(t, retryable, ErrJobFailedFatal)

	fatal := &JobFailureError{Attempt: 5, Fatal: true}
	require.ErrorIs(t, fatal, ErrJobFailedFatal)
}

func TestResourceExhaustedError(t *testing.T) {
	err := &ResourceExhaustedError{Resource: "chunk-list", Needed: 3, Have: 1}
	require.ErrorIs(t, err, ErrResourceExhausted)
	require.Contains(t, err.Error(), "chunk-list")
}

func TestWrapError(t *testing.T) {
	base := errors.New("rpc failed")
	wrapped := WrapError("fetch chunk specs", base)
	require.ErrorIs(t, wrapped, base)
	require.Contains(t, wrapped.Error(), "fetch chunk specs")

	require.Equal(t, "no cause", WrapError("no cause", nil).Error())
}
