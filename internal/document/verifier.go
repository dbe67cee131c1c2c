package document

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// RemoteVerifier asks the upload collaborator whether a file exists with
// HEAD {baseURL}/files/{ref}.
type RemoteVerifier struct {
	httpClient *resty.Client
	logger     *zap.Logger
}

// NewRemoteVerifier creates a verifier for the upload service at baseURL.
func NewRemoteVerifier(baseURL string, timeout time.Duration, logger *zap.Logger) *RemoteVerifier {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetRetryCount(2).
		SetRetryWaitTime(100 * time.Millisecond).
		SetRetryMaxWaitTime(time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() >= http.StatusInternalServerError
		})

	return &RemoteVerifier{httpClient: client, logger: logger}
}

// Exists reports whether the upload service knows ref.
func (v *RemoteVerifier) Exists(ctx context.Context, ref string) (bool, error) {
	resp, err := v.httpClient.R().
		SetContext(ctx).
		SetPathParam("ref", ref).
		Head("/files/{ref}")
	if err != nil {
		v.logger.Warn("document lookup failed", zap.String("ref", ref), zap.Error(err))
		return false, fmt.Errorf("failed to reach upload service: %w", err)
	}

	switch resp.StatusCode() {
	case http.StatusOK, http.StatusNoContent:
		return true, nil
	case http.StatusNotFound, http.StatusGone:
		return false, nil
	default:
		v.logger.Warn("unexpected upload service status",
			zap.String("ref", ref),
			zap.Int("status_code", resp.StatusCode()),
		)
		return false, fmt.Errorf("upload service returned status %d", resp.StatusCode())
	}
}
