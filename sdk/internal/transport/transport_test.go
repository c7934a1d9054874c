package transport

import (
	"context"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/kadoa-org/kadoa-sdk-go/pkg/version"
	"github.com/kadoa-org/kadoa-sdk-go/sdk/internal/testutil"
	"github.com/kadoa-org/kadoa-sdk-go/sdk/sdkerrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type workflowPayload struct {
	ID       string  `json:"_id"`
	State    string  `json:"state"`
	RunState *string `json:"runState"`
}

func newClient(t *testing.T, srv *testutil.APIServer, mutate ...func(*Config)) *Client {
	t.Helper()
	cfg := Config{
		BaseURL:      srv.URL,
		APIKey:       "tk-test",
		Timeout:      2 * time.Second,
		RetryWait:    time.Millisecond,
		RetryMaxWait: 5 * time.Millisecond,
	}
	for _, m := range mutate {
		m(&cfg)
	}
	c, err := New(cfg)
	require.NoError(t, err)
	return c
}

func TestNew(t *testing.T) {
	t.Parallel()
	t.Run("Should reject an empty base URL", func(t *testing.T) {
		t.Parallel()
		_, err := New(Config{BaseURL: " "})
		assert.ErrorContains(t, err, "base url is required")
	})
	t.Run("Should trim a trailing slash", func(t *testing.T) {
		t.Parallel()
		c, err := New(Config{BaseURL: "https://api.kadoa.com/", APIKey: "k"})
		require.NoError(t, err)
		assert.Equal(t, "https://api.kadoa.com", c.BaseURL())
		assert.Equal(t, "k", c.APIKey())
	})
}

func TestDo(t *testing.T) {
	t.Parallel()
	t.Run("Should decode a typed response and send SDK headers", func(t *testing.T) {
		t.Parallel()
		ctx := testutil.NewTestContext(t)
		srv := testutil.NewAPIServer(t)
		srv.JSON(http.MethodGet, "/v4/workflows/wf-1", http.StatusOK,
			map[string]any{"_id": "wf-1", "state": "ACTIVE", "runState": "RUNNING"})
		c := newClient(t, srv)

		got, err := Do[workflowPayload](ctx, c, http.MethodGet, "/v4/workflows/wf-1",
			WithParam("include", "state"), WithParam("empty", ""))

		require.NoError(t, err)
		assert.Equal(t, "ACTIVE", got.State)
		require.NotNil(t, got.RunState)
		assert.Equal(t, "RUNNING", *got.RunState)
		last, ok := srv.Last(http.MethodGet, "/v4/workflows/wf-1")
		require.True(t, ok)
		assert.Equal(t, "tk-test", last.Header.Get("x-api-key"))
		assert.Equal(t, version.Version, last.Header.Get("x-sdk-version"))
		assert.Equal(t, version.UserAgent(), last.Header.Get("User-Agent"))
		assert.NotEmpty(t, last.Header.Get("x-request-id"))
		assert.Equal(t, "state", last.Query.Get("include"))
		assert.False(t, last.Query.Has("empty"))
	})
	t.Run("Should decode a null run state as absent", func(t *testing.T) {
		t.Parallel()
		ctx := testutil.NewTestContext(t)
		srv := testutil.NewAPIServer(t)
		srv.JSON(http.MethodGet, "/v4/workflows/wf-2", http.StatusOK, `{"state":"ACTIVE","runState":null}`)

		got, err := Do[workflowPayload](ctx, newClient(t, srv), http.MethodGet, "/v4/workflows/wf-2")

		require.NoError(t, err)
		assert.Nil(t, got.RunState)
	})
	t.Run("Should send JSON bodies", func(t *testing.T) {
		t.Parallel()
		ctx := testutil.NewTestContext(t)
		srv := testutil.NewAPIServer(t)
		srv.JSON(http.MethodPut, "/v4/workflows/wf-1/run", http.StatusOK, map[string]any{"jobId": "job-1"})

		got, err := Do[map[string]string](ctx, newClient(t, srv), http.MethodPut, "/v4/workflows/wf-1/run",
			WithBody(map[string]any{"limit": 10}))

		require.NoError(t, err)
		assert.Equal(t, "job-1", got["jobId"])
		last, _ := srv.Last(http.MethodPut, "/v4/workflows/wf-1/run")
		testutil.AssertJSONEqual(t, map[string]any{"limit": 10}, last.Body)
		assert.Equal(t, "application/json", last.Header.Get("Content-Type"))
	})
	t.Run("Should report malformed bodies as internal errors", func(t *testing.T) {
		t.Parallel()
		ctx := testutil.NewTestContext(t)
		srv := testutil.NewAPIServer(t)
		srv.JSON(http.MethodGet, "/v5/user", http.StatusOK, `{"userId":`)

		_, err := Do[map[string]any](ctx, newClient(t, srv), http.MethodGet, "/v5/user")

		require.Error(t, err)
		assert.Equal(t, sdkerrors.CodeInternal, sdkerrors.CodeOf(err))
		assert.False(t, sdkerrors.IsTransport(err))
	})
	t.Run("Should follow absolute URLs outside the base URL", func(t *testing.T) {
		t.Parallel()
		ctx := testutil.NewTestContext(t)
		api := testutil.NewAPIServer(t)
		other := testutil.NewAPIServer(t)
		other.JSON(http.MethodPost, "/api/v1/events/ack", http.StatusOK, nil)

		err := newClient(t, api).Exec(ctx, http.MethodPost, other.URL+"/api/v1/events/ack",
			WithBody(map[string]string{"id": "evt-1"}))

		require.NoError(t, err)
		assert.Equal(t, 1, other.Calls(http.MethodPost, "/api/v1/events/ack"))
		assert.Empty(t, api.Requests())
	})
}

func TestErrors(t *testing.T) {
	t.Parallel()
	t.Run("Should map HTTP failures to transport errors", func(t *testing.T) {
		t.Parallel()
		cases := []struct {
			status int
			code   sdkerrors.Code
		}{
			{http.StatusUnauthorized, sdkerrors.CodeAuth},
			{http.StatusNotFound, sdkerrors.CodeNotFound},
			{http.StatusTooManyRequests, sdkerrors.CodeRateLimit},
			{http.StatusBadRequest, sdkerrors.CodeValidation},
			{http.StatusBadGateway, sdkerrors.CodeHTTP},
		}
		for _, tc := range cases {
			ctx := testutil.NewTestContext(t)
			srv := testutil.NewAPIServer(t)
			srv.Sequence(http.MethodGet, "/v4/workflows/wf-1", testutil.Response{
				Status: tc.status,
				Body:   map[string]any{"message": "nope"},
				Header: map[string]string{"x-amzn-requestid": "amzn-1"},
			})

			_, err := Do[workflowPayload](ctx, newClient(t, srv), http.MethodGet, "/v4/workflows/wf-1")

			var terr *sdkerrors.TransportError
			require.ErrorAs(t, err, &terr)
			assert.Equal(t, tc.code, terr.Code)
			assert.Equal(t, tc.status, terr.Status)
			assert.Equal(t, "nope", terr.Message)
			assert.Equal(t, "amzn-1", terr.RequestID)
			assert.Equal(t, "/v4/workflows/wf-1", terr.Endpoint)
		}
	})
	t.Run("Should map connection failures to network errors", func(t *testing.T) {
		t.Parallel()
		ctx := testutil.NewTestContext(t)
		srv := testutil.NewAPIServer(t)
		c := newClient(t, srv)
		srv.Close()

		err := c.Exec(ctx, http.MethodGet, "/v4/workflows/wf-1")

		var terr *sdkerrors.TransportError
		require.ErrorAs(t, err, &terr)
		assert.Equal(t, sdkerrors.CodeNetwork, terr.Code)
		assert.Zero(t, terr.Status)
	})
	t.Run("Should preserve context cancellation", func(t *testing.T) {
		t.Parallel()
		ctx, cancel := context.WithCancel(testutil.NewTestContext(t))
		cancel()
		srv := testutil.NewAPIServer(t)

		err := newClient(t, srv).Exec(ctx, http.MethodGet, "/v5/user")

		require.Error(t, err)
		assert.ErrorIs(t, err, context.Canceled)
		assert.True(t, sdkerrors.IsTransport(err))
	})
}

func TestRetries(t *testing.T) {
	t.Parallel()
	t.Run("Should retry transient failures when configured", func(t *testing.T) {
		t.Parallel()
		ctx := testutil.NewTestContext(t)
		srv := testutil.NewAPIServer(t)
		srv.Sequence(http.MethodGet, "/v4/workflows",
			testutil.Response{Status: http.StatusServiceUnavailable},
			testutil.Response{Status: http.StatusOK, Body: map[string]any{"workflows": []any{}}},
		)
		c := newClient(t, srv, func(cfg *Config) { cfg.RetryCount = 2 })

		_, err := Do[map[string]any](ctx, c, http.MethodGet, "/v4/workflows")

		require.NoError(t, err)
		assert.Equal(t, 2, srv.Calls(http.MethodGet, "/v4/workflows"))
	})
	t.Run("Should send NoRetry requests exactly once", func(t *testing.T) {
		t.Parallel()
		ctx := testutil.NewTestContext(t)
		srv := testutil.NewAPIServer(t)
		srv.Sequence(http.MethodGet, "/v4/workflows/wf-1",
			testutil.Response{Status: http.StatusServiceUnavailable},
			testutil.Response{Status: http.StatusOK, Body: map[string]any{"state": "ACTIVE"}},
		)
		c := newClient(t, srv, func(cfg *Config) { cfg.RetryCount = 3 })

		_, err := Do[workflowPayload](ctx, c, http.MethodGet, "/v4/workflows/wf-1", NoRetry())

		require.Error(t, err)
		assert.Equal(t, 1, srv.Calls(http.MethodGet, "/v4/workflows/wf-1"))
	})
	t.Run("Should not retry client errors", func(t *testing.T) {
		t.Parallel()
		ctx := testutil.NewTestContext(t)
		srv := testutil.NewAPIServer(t)
		srv.JSON(http.MethodGet, "/v4/workflows/missing", http.StatusNotFound, map[string]any{"message": "gone"})
		c := newClient(t, srv, func(cfg *Config) { cfg.RetryCount = 3 })

		err := c.Exec(ctx, http.MethodGet, "/v4/workflows/missing")

		require.Error(t, err)
		assert.Equal(t, 1, srv.Calls(http.MethodGet, "/v4/workflows/missing"))
	})
}

func TestRateLimit(t *testing.T) {
	t.Parallel()
	t.Run("Should space requests beyond the burst", func(t *testing.T) {
		t.Parallel()
		ctx := testutil.NewTestContext(t)
		srv := testutil.NewAPIServer(t)
		srv.JSON(http.MethodGet, "/v5/user", http.StatusOK, map[string]any{"userId": "u"})
		c := newClient(t, srv, func(cfg *Config) {
			cfg.RateLimit = 20
			cfg.RateBurst = 1
		})

		started := time.Now()
		for range 3 {
			require.NoError(t, c.Exec(ctx, http.MethodGet, "/v5/user"))
		}

		assert.GreaterOrEqual(t, time.Since(started), 90*time.Millisecond)
	})
}

func TestWithQuery(t *testing.T) {
	t.Parallel()
	t.Run("Should append repeated values", func(t *testing.T) {
		t.Parallel()
		ctx := testutil.NewTestContext(t)
		srv := testutil.NewAPIServer(t)
		srv.JSON(http.MethodGet, "/v4/workflows", http.StatusOK, map[string]any{})

		err := newClient(t, srv).Exec(ctx, http.MethodGet, "/v4/workflows",
			WithQuery(url.Values{"tags": {"a", "b"}}), WithHeader("x-trace", "1"))

		require.NoError(t, err)
		last, _ := srv.Last(http.MethodGet, "/v4/workflows")
		assert.Equal(t, []string{"a", "b"}, last.Query["tags"])
		assert.Equal(t, "1", last.Header.Get("x-trace"))
	})
}
