package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorMatching(t *testing.T) {
	err := fmt.Errorf("loading rule: %w", ErrNotFound.WithDetail("rule_id", "r-1"))

	assert.True(t, IsNotFound(err))
	assert.False(t, IsValidation(err))
	assert.Equal(t, http.StatusNotFound, ToHTTPStatus(err))
	assert.Equal(t, http.StatusInternalServerError, ToHTTPStatus(errors.New("plain")))

	wrapped := Wrap(errors.New("duplicate key"), ErrConflict)
	assert.True(t, IsConflict(wrapped))
	assert.Contains(t, wrapped.Error(), "duplicate key")
	assert.Nil(t, Wrap(nil, ErrConflict))
}

func TestWithDetailDoesNotShareMaps(t *testing.T) {
	base := ErrValidation.WithDetail("field", "name")
	other := base.WithDetail("message", "name is required")

	assert.NotContains(t, base.Details, "message")
	assert.Empty(t, ErrValidation.Details)
	assert.Equal(t, "VALIDATION_ERROR: name is required", other.Error())
}

func TestIsFatal(t *testing.T) {
	assert.True(t, ErrValidation.IsFatal())
	assert.True(t, ErrNotFound.IsFatal())
	assert.False(t, ErrInternal.IsFatal())
	assert.False(t, ErrServiceUnavailable.IsFatal())
}

func TestRecoverPanic(t *testing.T) {
	assert.NoError(t, RecoverPanic(nil))

	err := RecoverPanic("boom")
	require.Error(t, err)

	var appErr *Error
	require.True(t, errors.As(err, &appErr))
	assert.True(t, appErr.IsFatal())
	assert.Contains(t, err.Error(), "panic: boom")

	resp := ToErrorResponse(err)
	assert.Equal(t, "INTERNAL_ERROR", resp.ErrorCode)
	assert.Equal(t, true, resp.Details["panic"])
	assert.NotContains(t, resp.Details, "stack_trace")
}

func TestToErrorResponse(t *testing.T) {
	resp := ToErrorResponse(errors.New("disk full"))
	assert.Equal(t, "internal server error", resp.Error)
	assert.Nil(t, resp.Details)
}
