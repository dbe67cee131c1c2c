package document

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/oncoayuda/casework/internal/shared/errors"
)

func TestCheckFormat(t *testing.T) {
	tests := []struct {
		ref   string
		valid bool
	}{
		{"files/2026/report-01.pdf", true},
		{"s3:bucket/receipt_9.jpg", true},
		{"a1b2c3", true},
		{"", false},
		{"   ", false},
		{"../etc/passwd", false},
		{"files/../secret", false},
		{"has space.pdf", false},
		{"/absolute", false},
		{strings.Repeat("a", MaxRefLength+1), false},
	}

	for _, tt := range tests {
		t.Run(tt.ref, func(t *testing.T) {
			err := CheckFormat("report_file_id", tt.ref)
			if tt.valid {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, errors.ErrValidation)
		})
	}
}

func TestCheckOptional(t *testing.T) {
	v := NewValidator(nil)
	assert.NoError(t, v.CheckOptional(context.Background(), "receipt_file_id", ""))
	assert.ErrorIs(t, v.CheckOptional(context.Background(), "receipt_file_id", "bad ref"), errors.ErrValidation)
}

func TestRemoteVerifier(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, http.MethodHead, r.Method)
		switch r.URL.EscapedPath() {
		case "/files/known.pdf":
			w.WriteHeader(http.StatusOK)
		case "/files/flaky.pdf":
			w.WriteHeader(http.StatusBadGateway)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	v := NewValidator(NewRemoteVerifier(srv.URL, time.Second, zaptest.NewLogger(t)))
	ctx := context.Background()

	require.NoError(t, v.Check(ctx, "report_file_id", "known.pdf"))

	err := v.Check(ctx, "report_file_id", "missing.pdf")
	assert.ErrorIs(t, err, errors.ErrValidation)

	calls.Store(0)
	err = v.Check(ctx, "report_file_id", "flaky.pdf")
	require.Error(t, err)
	appErr, ok := errors.As(err)
	require.True(t, ok)
	assert.Equal(t, "INTERNAL_ERROR", appErr.Code)
	assert.Equal(t, int32(3), calls.Load(), "one attempt plus two retries")
}
