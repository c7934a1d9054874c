package cli

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/kadoa-org/kadoa-sdk-go/cli/cmd"
	"github.com/kadoa-org/kadoa-sdk-go/cli/helpers"
	"github.com/kadoa-org/kadoa-sdk-go/pkg/config"
	"github.com/kadoa-org/kadoa-sdk-go/pkg/version"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupGlobalConfig(t *testing.T) {
	writeConfig := func(t *testing.T, content string) string {
		t.Helper()
		path := filepath.Join(t.TempDir(), "kadoa.yaml")
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
		return path
	}

	t.Run("Should inject the YAML configuration into the command context", func(t *testing.T) {
		path := writeConfig(t, "cli:\n  output: text\npolling:\n  max_wait: 2m\n")
		root := RootCmd()
		root.SetContext(t.Context())
		require.NoError(t, root.ParseFlags([]string{"--config", path, "--env-file", ""}))

		require.NoError(t, SetupGlobalConfig(root))

		cfg := config.FromContext(root.Context())
		assert.Equal(t, "text", cfg.CLI.Output)
		assert.Equal(t, "2m0s", cfg.Polling.MaxWait.String())
		assert.NotNil(t, config.ManagerFromContext(root.Context()))
		require.NoError(t, closeGlobalConfig(root))
	})

	t.Run("Should let flags override the config file", func(t *testing.T) {
		path := writeConfig(t, "cli:\n  output: text\n")
		root := RootCmd()
		root.SetContext(t.Context())
		require.NoError(t, root.ParseFlags([]string{"--config", path, "--env-file", "", "-o", "json"}))

		require.NoError(t, SetupGlobalConfig(root))

		manager := config.ManagerFromContext(root.Context())
		require.NotNil(t, manager)
		assert.Equal(t, "json", manager.Get().CLI.Output)
		assert.Equal(t, config.SourceCLI, manager.Service.GetSource("cli.output"))
		require.NoError(t, closeGlobalConfig(root))
	})

	t.Run("Should reject an env file outside the working directory", func(t *testing.T) {
		root := RootCmd()
		root.SetContext(t.Context())
		require.NoError(t, root.ParseFlags([]string{"--env-file", "../../outside.env"}))

		err := SetupGlobalConfig(root)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "outside the working directory")
	})
}

type cliResult struct {
	stdout string
	stderr string
	err    error
}

func runCLI(t *testing.T, args ...string) cliResult {
	t.Helper()
	var stdout, stderr bytes.Buffer
	root := RootCmd()
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	base := []string{"--config", filepath.Join(t.TempDir(), "missing.yaml"), "--env-file", ""}
	root.SetArgs(append(base, args...))
	err := root.ExecuteContext(t.Context())
	return cliResult{stdout: stdout.String(), stderr: stderr.String(), err: err}
}

func TestWorkflowCommands(t *testing.T) {
	t.Run("Should print the status of a workflow as JSON", func(t *testing.T) {
		var apiKey atomic.Value
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			apiKey.Store(r.Header.Get("x-api-key"))
			assert.Equal(t, "/v4/workflows/wf-1", r.URL.Path)
			_, _ = w.Write([]byte(`{"_id":"wf-1","state":"ACTIVE","runState":"finished"}`))
		}))
		defer srv.Close()

		res := runCLI(t, "workflow", "status", "wf-1", "--base-url", srv.URL, "--api-key", "test-key", "-o", "json")

		require.NoError(t, res.err, res.stderr)
		var out struct {
			WorkflowID string `json:"workflowId"`
			State      string `json:"state"`
			RunState   string `json:"runState"`
			Terminal   bool   `json:"terminal"`
		}
		require.NoError(t, json.Unmarshal([]byte(res.stdout), &out))
		assert.Equal(t, "wf-1", out.WorkflowID)
		assert.Equal(t, "ACTIVE", out.State)
		assert.Equal(t, "finished", out.RunState)
		assert.True(t, out.Terminal)
		assert.Equal(t, "test-key", apiKey.Load())
	})

	t.Run("Should wait until the run state is terminal", func(t *testing.T) {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			if calls.Add(1) < 3 {
				_, _ = w.Write([]byte(`{"_id":"wf-1","state":"ACTIVE","runState":"RUNNING"}`))
				return
			}
			_, _ = w.Write([]byte(`{"_id":"wf-1","state":"ACTIVE","runState":"FINISHED"}`))
		}))
		defer srv.Close()

		res := runCLI(t, "workflow", "wait", "wf-1",
			"--base-url", srv.URL, "--api-key", "k", "--poll-interval", "10ms", "--max-wait", "5s", "-o", "json")

		require.NoError(t, res.err, res.stderr)
		var out struct {
			Status struct {
				RunState string `json:"runState"`
			} `json:"status"`
			Changes []json.RawMessage `json:"changes"`
		}
		require.NoError(t, json.Unmarshal([]byte(res.stdout), &out))
		assert.Equal(t, "FINISHED", out.Status.RunState)
		assert.Len(t, out.Changes, 2)
		assert.EqualValues(t, 3, calls.Load())
	})

	t.Run("Should report a timeout with the workflow id", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"_id":"wf-1","state":"ACTIVE","runState":"RUNNING"}`))
		}))
		defer srv.Close()

		res := runCLI(t, "workflow", "wait", "wf-1",
			"--base-url", srv.URL, "--api-key", "k", "--poll-interval", "10ms", "--max-wait", "50ms", "-o", "json")

		require.Error(t, res.err)
		assert.True(t, cmd.IsReported(res.err))
		var out struct {
			Code string `json:"code"`
		}
		require.NoError(t, json.Unmarshal([]byte(res.stderr), &out))
		assert.Equal(t, helpers.CodeTimeout, out.Code)
		assert.Contains(t, res.stderr, "wf-1")
	})

	t.Run("Should require an API key", func(t *testing.T) {
		res := runCLI(t, "workflow", "status", "wf-1", "--api-key", "", "-o", "json")

		require.Error(t, res.err)
		assert.True(t, cmd.IsReported(res.err))
		assert.Contains(t, res.stderr, helpers.CodeAuth)
		assert.Empty(t, res.stdout)
	})
}

func TestDataCommand(t *testing.T) {
	newServer := func(t *testing.T) *httptest.Server {
		t.Helper()
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/v4/workflows/wf-1/data", r.URL.Path)
			_, _ = w.Write([]byte(`{"workflowId":"wf-1","data":[{"title":"a","price":5},{"title":"b","price":12}],` +
				`"pagination":{"page":1,"totalPages":1,"totalCount":2,"limit":100}}`))
		}))
		t.Cleanup(srv.Close)
		return srv
	}

	t.Run("Should print selected values one per line", func(t *testing.T) {
		srv := newServer(t)

		res := runCLI(t, "data", "wf-1", "--select", "#.title", "--base-url", srv.URL, "--api-key", "k", "-o", "text")

		require.NoError(t, res.err, res.stderr)
		assert.Equal(t, "a\nb\n", res.stdout)
	})

	t.Run("Should print the raw selection in JSON mode", func(t *testing.T) {
		srv := newServer(t)

		res := runCLI(t, "data", "wf-1", "--select", "#(price>10)#.title", "--base-url", srv.URL, "--api-key", "k", "-o", "json")

		require.NoError(t, res.err, res.stderr)
		assert.JSONEq(t, `["b"]`, res.stdout)
	})

	t.Run("Should fail when the selection matches nothing", func(t *testing.T) {
		srv := newServer(t)

		res := runCLI(t, "data", "wf-1", "--select", "missing", "--base-url", srv.URL, "--api-key", "k", "-o", "json")

		require.Error(t, res.err)
		assert.Contains(t, res.stderr, helpers.CodeInvalid)
	})
}

func TestConfigShowCommand(t *testing.T) {
	t.Run("Should redact the API key and report sources", func(t *testing.T) {
		res := runCLI(t, "config", "show", "--sources", "--api-key", "secret-key", "-o", "json")

		require.NoError(t, res.err, res.stderr)
		assert.NotContains(t, res.stdout, "secret-key")
		var entries []struct {
			Key    string `json:"key"`
			Source string `json:"source"`
		}
		require.NoError(t, json.Unmarshal([]byte(res.stdout), &entries))
		sources := make(map[string]string, len(entries))
		for _, e := range entries {
			sources[e.Key] = e.Source
		}
		assert.Equal(t, string(config.SourceCLI), sources["api.key"])
		assert.Equal(t, string(config.SourceDefault), sources["polling.interval"])
	})
}

func TestVersionCommand(t *testing.T) {
	t.Run("Should print build information without an API key", func(t *testing.T) {
		res := runCLI(t, "version", "-o", "json")

		require.NoError(t, res.err, res.stderr)
		var info version.Info
		require.NoError(t, json.Unmarshal([]byte(res.stdout), &info))
		assert.Equal(t, version.Version, info.Version)
		assert.NotEmpty(t, info.GoVersion)
	})
}
