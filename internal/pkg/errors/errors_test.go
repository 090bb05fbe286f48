package errors

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestErrorConstructors tests the class to status mapping
func TestErrorConstructors(t *testing.T) {
	tests := []struct {
		err    *AppError
		code   string
		status int
	}{
		{ErrValidation("bad input"), CodeValidationError, http.StatusBadRequest},
		{ErrNotFound("task"), CodeNotFound, http.StatusNotFound},
		{ErrConflict("version mismatch"), CodeConflict, http.StatusConflict},
		{ErrUnauthorized(""), CodeUnauthorized, http.StatusUnauthorized},
		{ErrForbidden(""), CodeForbidden, http.StatusForbidden},
		{ErrInternal(""), CodeInternalError, http.StatusInternalServerError},
		{ErrBadRequest("malformed"), CodeBadRequest, http.StatusBadRequest},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.code, tt.err.Code)
		assert.Equal(t, tt.status, tt.err.HTTPStatus)
		assert.NotEmpty(t, tt.err.Message)
	}
}

// TestAppErrorWrapping tests that a cause attached with Wrap is reachable
// through the AppError and shows in its message
func TestAppErrorWrapping(t *testing.T) {
	cause := errors.New("connection refused")
	appErr := ErrInternal("").Wrap(cause)

	assert.ErrorIs(t, appErr, cause)
	assert.Contains(t, appErr.Error(), "connection refused")

	found, ok := AsAppError(appErr)
	require.True(t, ok)
	assert.Equal(t, CodeInternalError, found.Code)
}

// TestFromError tests classification of arbitrary errors
func TestFromError(t *testing.T) {
	assert.Nil(t, FromError(nil))

	appErr := FromError(errors.New("boom"))
	assert.Equal(t, http.StatusInternalServerError, appErr.HTTPStatus)

	original := ErrConflict("stale version")
	assert.Same(t, original, FromError(original), "existing AppError passes through")
}

// TestWithDetail tests detail accumulation
func TestWithDetail(t *testing.T) {
	err := ErrNotFoundWithID("task", "t-1")
	assert.Equal(t, "t-1", err.Details["id"])

	err.WithDetail("zone", "z-9")
	assert.Equal(t, "z-9", err.Details["zone"])
}
