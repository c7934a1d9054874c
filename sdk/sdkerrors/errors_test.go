package sdkerrors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodeForStatus(t *testing.T) {
	t.Parallel()
	tests := []struct {
		status int
		want   Code
	}{
		{http.StatusUnauthorized, CodeAuth},
		{http.StatusForbidden, CodeAuth},
		{http.StatusNotFound, CodeNotFound},
		{http.StatusRequestTimeout, CodeTimeout},
		{http.StatusTooManyRequests, CodeRateLimit},
		{http.StatusBadRequest, CodeValidation},
		{http.StatusUnprocessableEntity, CodeValidation},
		{http.StatusInternalServerError, CodeHTTP},
		{http.StatusBadGateway, CodeHTTP},
		{http.StatusOK, CodeUnknown},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("Should map %d to %s", tt.status, tt.want), func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, CodeForStatus(tt.status))
		})
	}
}

func TestTransportError(t *testing.T) {
	t.Parallel()
	t.Run("Should describe an HTTP failure", func(t *testing.T) {
		t.Parallel()
		err := NewHTTPError(http.MethodGet, "/v4/workflows/wf-1", 503, "req-9", `{"error":"down"}`, "")
		assert.Equal(t, CodeHTTP, err.Code)
		assert.Contains(t, err.Error(), "GET /v4/workflows/wf-1")
		assert.Contains(t, err.Error(), "status 503")
		assert.Contains(t, err.Error(), "Service Unavailable")
		assert.Contains(t, err.Error(), "req-9")
		assert.True(t, err.Retryable())
	})
	t.Run("Should classify deadline failures as timeouts", func(t *testing.T) {
		t.Parallel()
		err := NewNetworkError(http.MethodGet, "/x", fmt.Errorf("dial: %w", context.DeadlineExceeded))
		assert.Equal(t, CodeTimeout, err.Code)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.True(t, err.Retryable())
	})
	t.Run("Should not retry canceled requests or client errors", func(t *testing.T) {
		t.Parallel()
		assert.False(t, NewNetworkError(http.MethodGet, "/x", context.Canceled).Retryable())
		assert.False(t, NewHTTPError(http.MethodGet, "/x", 404, "", "", "missing").Retryable())
	})
	t.Run("Should be found through wrapping", func(t *testing.T) {
		t.Parallel()
		wrapped := fmt.Errorf("fetch status: %w", NewNetworkError(http.MethodGet, "/x", errors.New("refused")))
		assert.True(t, IsTransport(wrapped))
		assert.False(t, IsTimeout(wrapped))
		assert.Equal(t, CodeNetwork, CodeOf(wrapped))
	})
}

func TestTimeoutError(t *testing.T) {
	t.Parallel()
	t.Run("Should carry workflow id and budget", func(t *testing.T) {
		t.Parallel()
		err := fmt.Errorf("wait: %w", &TimeoutError{WorkflowID: "wf-1", MaxWaitTime: 2 * time.Second})
		var te *TimeoutError
		require.ErrorAs(t, err, &te)
		assert.Equal(t, "wf-1", te.WorkflowID)
		assert.Equal(t, 2*time.Second, te.MaxWaitTime)
		assert.Equal(t, CodeTimeout, CodeOf(err))
		assert.False(t, IsTransport(err))
	})
}

func TestError(t *testing.T) {
	t.Parallel()
	t.Run("Should merge details without mutating the original", func(t *testing.T) {
		t.Parallel()
		base := New(CodeInternal, "unexpected workflow status").WithDetails(map[string]any{"a": 1})
		more := base.WithDetails(map[string]any{"b": 2})
		assert.Len(t, base.Details, 1)
		assert.Len(t, more.Details, 2)
		assert.Equal(t, CodeInternal, CodeOf(more))
	})
	t.Run("Should unwrap its cause", func(t *testing.T) {
		t.Parallel()
		cause := errors.New("boom")
		err := Wrap(CodeConfig, "bad config", cause)
		assert.ErrorIs(t, err, cause)
		assert.Equal(t, "CONFIG_ERROR: bad config: boom", err.Error())
	})
}

func TestBuildError(t *testing.T) {
	t.Parallel()
	t.Run("Should join collected errors", func(t *testing.T) {
		t.Parallel()
		sentinel := errors.New("url is required")
		err := &BuildError{Errors: []error{sentinel, errors.New("timeout must be positive")}}
		assert.Contains(t, err.Error(), "2 errors")
		assert.ErrorIs(t, err, sentinel)
		assert.Equal(t, CodeValidation, CodeOf(err))
	})
}
