package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindsUnwrapToSentinels(t *testing.T) {
	tests := []struct {
		name   string
		err    *AppError
		cause  error
		code   string
		status int
	}{
		{"validation", Validation("bad", nil), ErrValidation, "VALIDATION_ERROR", http.StatusBadRequest},
		{"transition", InvalidTransition("case", "A", "B"), ErrInvalidTransition, "INVALID_TRANSITION", http.StatusUnprocessableEntity},
		{"terminal", TerminalState("beneficiary", "FALLECIDO"), ErrTerminalState, "TERMINAL_STATE", http.StatusConflict},
		{"forbidden", Forbidden("no"), ErrForbidden, "FORBIDDEN", http.StatusForbidden},
		{"conflict", Conflict("raced"), ErrConflict, "CONFLICT", http.StatusConflict},
		{"not found", NotFound("case", "x"), ErrNotFound, "NOT_FOUND", http.StatusNotFound},
		{"timeout", Timeout("lock wait"), ErrTimeout, "TIMEOUT", http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, Is(tt.err, tt.cause))
			assert.Equal(t, tt.code, tt.err.Code)
			assert.Equal(t, tt.status, tt.err.HTTPStatus)

			wrapped := fmt.Errorf("outer: %w", tt.err)
			assert.True(t, stderrors.Is(wrapped, tt.cause))
		})
	}
}

func TestWrapKeepsCode(t *testing.T) {
	original := Conflict("version mismatch")
	wrapped := Wrap(original, "failed to update case")

	assert.Equal(t, "CONFLICT", wrapped.Code)
	assert.True(t, Is(wrapped, ErrConflict))
	assert.Equal(t, "version mismatch", original.Message, "wrap must not mutate the original")

	plain := Wrap(stderrors.New("boom"), "failed to save")
	assert.Equal(t, "INTERNAL_ERROR", plain.Code)
}

func TestRetryable(t *testing.T) {
	assert.True(t, Timeout("lock").Retryable())
	assert.False(t, Conflict("x").Retryable())
}

func TestAsAndWithDetail(t *testing.T) {
	err := fmt.Errorf("ctx: %w", InvalidTransition("aid request", "PENDIENTE", "ENTREGADO"))
	appErr, ok := As(err)
	require.True(t, ok)

	withState := appErr.WithDetail("current", "PENDIENTE")
	assert.Equal(t, "PENDIENTE", withState.Details["current"])
	_, had := appErr.Details["current"]
	assert.False(t, had)
}
