package testutil

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/kadoa-org/kadoa-sdk-go/pkg/config"
	"github.com/kadoa-org/kadoa-sdk-go/pkg/logger"
	"github.com/kadoa-org/kadoa-sdk-go/sdk/sdkerrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTestContext(t *testing.T) {
	t.Parallel()
	t.Run("Should carry a logger and the default configuration", func(t *testing.T) {
		t.Parallel()
		ctx := NewTestContext(t)

		assert.NotNil(t, logger.FromContext(ctx))
		require.NotNil(t, config.ManagerFromContext(ctx))
		cfg := config.FromContext(ctx)
		assert.Equal(t, "https://api.kadoa.com", cfg.API.BaseURL)
		assert.Equal(t, config.DefaultTerminalStates, cfg.Polling.TerminalStates)
	})
}

func TestAssertBuildError(t *testing.T) {
	t.Parallel()
	t.Run("Should accept a build error mentioning every substring", func(t *testing.T) {
		t.Parallel()
		err := &sdkerrors.BuildError{Errors: []error{
			errors.New("workflow id is required"),
			errors.New("interval must be one of [HOURLY DAILY]"),
		}}
		AssertBuildError(t, err, []string{"workflow id", "interval"})
	})
}

func TestRunTableTests(t *testing.T) {
	var ran []string
	RunTableTests(t, []TableTest{
		{
			Name: "Should hand the case a test context",
			BuildFunc: func(ctx context.Context) (any, error) {
				ran = append(ran, "ok")
				return config.FromContext(ctx).CLI.Output, nil
			},
			Validate: func(t *testing.T, v any) {
				assert.Equal(t, "auto", v)
			},
		},
		{
			Name:        "Should match the expected error",
			WantErr:     true,
			ErrContains: "max wait",
			BuildFunc: func(context.Context) (any, error) {
				ran = append(ran, "err")
				return nil, errors.New("max wait must be positive")
			},
		},
	})
	assert.Equal(t, []string{"ok", "err"}, ran)
}

func TestAssertJSONEqual(t *testing.T) {
	t.Parallel()
	t.Run("Should compare a value with captured bytes", func(t *testing.T) {
		t.Parallel()
		AssertJSONEqual(t,
			map[string]any{"workflowIds": []string{"wf-1"}, "limit": 10},
			[]byte(`{"limit":10,"workflowIds":["wf-1"]}`))
	})
}

func get(t *testing.T, url string) (int, string) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, strings.TrimSpace(string(body))
}

func TestAPIServer(t *testing.T) {
	t.Parallel()
	t.Run("Should replay a sequence and then repeat its last answer", func(t *testing.T) {
		t.Parallel()
		srv := NewAPIServer(t)
		srv.Sequence(http.MethodGet, "/v4/workflows/wf-1",
			Response{Body: map[string]any{"state": "ACTIVE", "runState": "RUNNING"}},
			Response{Status: http.StatusInternalServerError, Body: `{"message":"down"}`},
		)

		status, body := get(t, srv.URL+"/v4/workflows/wf-1")
		assert.Equal(t, http.StatusOK, status)
		assert.JSONEq(t, `{"state":"ACTIVE","runState":"RUNNING"}`, body)
		for range 2 {
			status, _ = get(t, srv.URL+"/v4/workflows/wf-1")
			assert.Equal(t, http.StatusInternalServerError, status)
		}
		assert.Equal(t, 3, srv.Calls(http.MethodGet, "/v4/workflows/wf-1"))
	})

	t.Run("Should answer 404 for unknown routes and still record them", func(t *testing.T) {
		t.Parallel()
		srv := NewAPIServer(t)

		resp, err := http.Post(srv.URL+"/v4/workflows/wf-9/run?force=1", "application/json",
			strings.NewReader(`{"limit":5}`))
		require.NoError(t, err)
		resp.Body.Close()

		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		last, ok := srv.Last(http.MethodPost, "/v4/workflows/wf-9/run")
		require.True(t, ok)
		assert.Equal(t, "1", last.Query.Get("force"))
		AssertJSONEqual(t, map[string]int{"limit": 5}, last.Body)
	})
}
