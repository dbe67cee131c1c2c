package infrastructure

import (
	"context"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"github.com/oncoayuda/casework/internal/shared/errors"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"unique", &pgconn.PgError{Code: pgUniqueViolation}, errors.ErrConflict},
		{"lock timeout", &pgconn.PgError{Code: pgLockNotAvailable}, errors.ErrTimeout},
		{"serialization", &pgconn.PgError{Code: pgSerializationFailure}, errors.ErrConflict},
		{"bad uuid", &pgconn.PgError{Code: pgInvalidText}, errors.ErrValidation},
		{"numeric overflow", &pgconn.PgError{Code: pgNumericOutOfRange}, errors.ErrValidation},
		{"string too long", fmt.Errorf("exec: %w", &pgconn.PgError{Code: pgStringTooLong}), errors.ErrValidation},
		{"deadline", context.DeadlineExceeded, errors.ErrTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, mapError(tt.err, "failed"), tt.want)
		})
	}
}

func TestMapErrorNamesColumn(t *testing.T) {
	err := mapError(&pgconn.PgError{Code: pgNumericOutOfRange, ColumnName: "estimated_cost"}, "failed")
	appErr, ok := errors.As(err)
	if assert.True(t, ok) {
		assert.Equal(t, "out of range", appErr.Details["estimated_cost"])
	}
}

func TestMapErrorUnclassified(t *testing.T) {
	err := mapError(&pgconn.PgError{Code: "XX000"}, "failed to insert")
	appErr, ok := errors.As(err)
	if assert.True(t, ok) {
		assert.Equal(t, "INTERNAL_ERROR", appErr.Code)
	}
}
