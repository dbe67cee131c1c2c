package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel causes. Every AppError unwraps to exactly one of these so callers
// can branch with errors.Is regardless of how many times the error was wrapped.
var (
	ErrNotFound          = errors.New("resource not found")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrForbidden         = errors.New("forbidden")
	ErrBadRequest        = errors.New("bad request")
	ErrConflict          = errors.New("conflict")
	ErrInternal          = errors.New("internal error")
	ErrValidation        = errors.New("validation error")
	ErrInvalidTransition = errors.New("invalid transition")
	ErrTerminalState     = errors.New("terminal state")
	ErrTimeout           = errors.New("timeout")
)

// AppError represents an application error with context
type AppError struct {
	Err        error             `json:"-"`
	Message    string            `json:"message"`
	Code       string            `json:"code"`
	HTTPStatus int               `json:"-"`
	Details    map[string]string `json:"details,omitempty"`
}

func (e *AppError) Error() string {
	if e.Err != nil && e.Err.Error() != e.Message {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Retryable reports whether the caller may simply retry the operation.
func (e *AppError) Retryable() bool {
	return errors.Is(e.Err, ErrTimeout)
}

// NotFound creates a not found error
func NotFound(resource string, id string) *AppError {
	return &AppError{
		Err:        ErrNotFound,
		Message:    fmt.Sprintf("%s not found", resource),
		Code:       "NOT_FOUND",
		HTTPStatus: http.StatusNotFound,
		Details:    map[string]string{"resource": resource, "id": id},
	}
}

// Unauthorized creates an unauthorized error
func Unauthorized(message string) *AppError {
	return &AppError{
		Err:        ErrUnauthorized,
		Message:    message,
		Code:       "UNAUTHORIZED",
		HTTPStatus: http.StatusUnauthorized,
	}
}

// Forbidden is the authorization error: the actor's role may not run the operation.
func Forbidden(message string) *AppError {
	return &AppError{
		Err:        ErrForbidden,
		Message:    message,
		Code:       "FORBIDDEN",
		HTTPStatus: http.StatusForbidden,
	}
}

// BadRequest creates a bad request error
func BadRequest(message string) *AppError {
	return &AppError{
		Err:        ErrBadRequest,
		Message:    message,
		Code:       "BAD_REQUEST",
		HTTPStatus: http.StatusBadRequest,
	}
}

// Validation creates a validation error with field details
func Validation(message string, details map[string]string) *AppError {
	return &AppError{
		Err:        ErrValidation,
		Message:    message,
		Code:       "VALIDATION_ERROR",
		HTTPStatus: http.StatusBadRequest,
		Details:    details,
	}
}

// InvalidTransition reports a state machine edge that is not allowed.
func InvalidTransition(entity, from, to string) *AppError {
	return &AppError{
		Err:        ErrInvalidTransition,
		Message:    fmt.Sprintf("%s cannot move from %s to %s", entity, from, to),
		Code:       "INVALID_TRANSITION",
		HTTPStatus: http.StatusUnprocessableEntity,
		Details:    map[string]string{"entity": entity, "from": from, "to": to},
	}
}

// TerminalState reports a mutation attempted on an entity that reached a final state.
func TerminalState(entity, state string) *AppError {
	return &AppError{
		Err:        ErrTerminalState,
		Message:    fmt.Sprintf("%s is in terminal state %s", entity, state),
		Code:       "TERMINAL_STATE",
		HTTPStatus: http.StatusConflict,
		Details:    map[string]string{"entity": entity, "state": state},
	}
}

// Conflict creates a conflict error
func Conflict(message string) *AppError {
	return &AppError{
		Err:        ErrConflict,
		Message:    message,
		Code:       "CONFLICT",
		HTTPStatus: http.StatusConflict,
	}
}

// Timeout reports store contention beyond the configured bound. Retryable.
func Timeout(message string) *AppError {
	return &AppError{
		Err:        ErrTimeout,
		Message:    message,
		Code:       "TIMEOUT",
		HTTPStatus: http.StatusServiceUnavailable,
	}
}

// Internal creates an internal error
func Internal(err error) *AppError {
	return &AppError{
		Err:        err,
		Message:    "internal server error",
		Code:       "INTERNAL_ERROR",
		HTTPStatus: http.StatusInternalServerError,
	}
}

// Wrap wraps an error with additional context. AppErrors keep their code so a
// domain error raised inside a transaction survives the trip back to the caller.
func Wrap(err error, message string) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		wrapped := *appErr
		wrapped.Message = fmt.Sprintf("%s: %s", message, appErr.Message)
		return &wrapped
	}
	return &AppError{
		Err:        err,
		Message:    message,
		Code:       "INTERNAL_ERROR",
		HTTPStatus: http.StatusInternalServerError,
	}
}

// WithDetail returns a copy of e carrying an extra detail entry.
func (e *AppError) WithDetail(key, value string) *AppError {
	cp := *e
	cp.Details = make(map[string]string, len(e.Details)+1)
	for k, v := range e.Details {
		cp.Details[k] = v
	}
	cp.Details[key] = value
	return &cp
}

// As is a shorthand for errors.As against *AppError.
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// Is forwards to the standard library so callers need a single errors import.
func Is(err, target error) bool {
	return errors.Is(err, target)
}
