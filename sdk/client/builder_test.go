package client

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/kadoa-org/kadoa-sdk-go/pkg/config"
	"github.com/kadoa-org/kadoa-sdk-go/sdk/internal/testutil"
	"github.com/kadoa-org/kadoa-sdk-go/sdk/poll"
	"github.com/kadoa-org/kadoa-sdk-go/sdk/realtime"
	"github.com/kadoa-org/kadoa-sdk-go/sdk/sdkerrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilderBuildSuccess(t *testing.T) {
	t.Parallel()
	ctx := testutil.NewTestContext(t)
	c, err := New("https://api.kadoa.com/").WithAPIKey(" tk-secret ").WithTimeout(12 * time.Second).Build(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	assert.Equal(t, "https://api.kadoa.com", c.BaseURL())
	assert.Equal(t, "tk-secret", c.api.APIKey())
	assert.Equal(t, poll.Options{Interval: 5 * time.Second, MaxWait: 5 * time.Minute}, c.Polling())
	assert.Equal(t, 6, c.Workflows().Watcher().TerminalStates().Len())
	assert.NotNil(t, c.Extraction())
	assert.NotNil(t, c.Schemas())
	assert.NotNil(t, c.Notifications().Channels())
	assert.NotNil(t, c.Notifications().Settings())
	assert.NotNil(t, c.Crawler())
	assert.NotNil(t, c.Validation())
	assert.NotNil(t, c.User())
	assert.NotNil(t, c.Events())
}

func TestBuilderIsImmutable(t *testing.T) {
	t.Parallel()
	ctx := testutil.NewTestContext(t)
	base := New("https://api.kadoa.com").WithAPIKey("k").WithTerminalStates("DONE")
	custom := base.WithTerminalStates("FINISHED", "KILLED")

	first, err := base.Build(ctx)
	require.NoError(t, err)
	second, err := custom.Build(ctx)
	require.NoError(t, err)

	assert.Equal(t, []string{"DONE"}, first.Workflows().Watcher().TerminalStates().States())
	assert.True(t, second.Workflows().Watcher().TerminalStates().Contains("killed"))
	assert.False(t, first.Workflows().Watcher().TerminalStates().Contains("KILLED"))
}

func TestBuilderValidationErrors(t *testing.T) {
	t.Parallel()
	valid := New("https://api.kadoa.com").WithAPIKey("k")
	tests := []testutil.TableTest{
		{
			Name:        "empty base url",
			WantErr:     true,
			ErrContains: "url is required",
			BuildFunc: func(ctx context.Context) (any, error) {
				return New(" ").WithAPIKey("k").Build(ctx)
			},
		},
		{
			Name:        "non http base url",
			WantErr:     true,
			ErrContains: "scheme must be http or https",
			BuildFunc: func(ctx context.Context) (any, error) {
				return New("ftp://api.kadoa.com").WithAPIKey("k").Build(ctx)
			},
		},
		{
			Name:        "missing api key",
			WantErr:     true,
			ErrContains: "api key cannot be empty",
			BuildFunc: func(ctx context.Context) (any, error) {
				return New("https://api.kadoa.com").Build(ctx)
			},
		},
		{
			Name:        "invalid timeout",
			WantErr:     true,
			ErrContains: "timeout must be positive",
			BuildFunc: func(ctx context.Context) (any, error) {
				return valid.WithTimeout(0).Build(ctx)
			},
		},
		{
			Name:        "invalid polling",
			WantErr:     true,
			ErrContains: "interval",
			BuildFunc: func(ctx context.Context) (any, error) {
				return valid.WithPolling(poll.Options{MaxWait: time.Second}).Build(ctx)
			},
		},
		{
			Name:        "empty terminal states",
			WantErr:     true,
			ErrContains: "at least one terminal state",
			BuildFunc: func(ctx context.Context) (any, error) {
				return valid.WithTerminalStates().Build(ctx)
			},
		},
		{
			Name:        "blank terminal state",
			WantErr:     true,
			ErrContains: "must not be blank",
			BuildFunc: func(ctx context.Context) (any, error) {
				return valid.WithTerminalStates("FINISHED", " ").Build(ctx)
			},
		},
		{
			Name:        "negative retry count",
			WantErr:     true,
			ErrContains: "retry count",
			BuildFunc: func(ctx context.Context) (any, error) {
				return valid.WithRetry(RetryPolicy{Count: -1}).Build(ctx)
			},
		},
		{
			Name:        "unknown realtime source",
			WantErr:     true,
			ErrContains: "unsupported realtime source",
			BuildFunc: func(ctx context.Context) (any, error) {
				return valid.WithRealtime(realtime.Config{Source: "firehose"}).Build(ctx)
			},
		},
	}
	testutil.RunTableTests(t, tests)
}

func TestBuilderBuildErrorsWhenContextMissing(t *testing.T) {
	t.Parallel()
	//nolint:staticcheck // nil context is the case under test
	c, err := New("https://api.kadoa.com").WithAPIKey("k").Build(nil)
	require.Error(t, err)
	require.Nil(t, c)
}

func TestBuilderBuildReturnsBuildError(t *testing.T) {
	t.Parallel()
	ctx := testutil.NewTestContext(t)
	c, err := New("").WithTimeout(-1).Build(ctx)
	require.Error(t, err)
	require.Nil(t, c)
	var buildErr *sdkerrors.BuildError
	require.ErrorAs(t, err, &buildErr)
	assert.Len(t, buildErr.Errors, 3)
	assert.Equal(t, sdkerrors.CodeValidation, sdkerrors.CodeOf(err))
}

func TestFromConfig(t *testing.T) {
	t.Parallel()
	t.Run("Should map configuration sections onto the client", func(t *testing.T) {
		t.Parallel()
		ctx := testutil.NewTestContext(t)
		cfg := config.Default()
		cfg.API.Key = "tk-config"
		cfg.Polling.Interval = time.Second
		cfg.Polling.MaxWait = time.Minute
		cfg.Polling.TerminalStates = []string{"FINISHED"}

		c, err := FromConfig(ctx, cfg)

		require.NoError(t, err)
		t.Cleanup(func() { _ = c.Close() })
		assert.Equal(t, "https://api.kadoa.com", c.BaseURL())
		assert.Equal(t, poll.Options{Interval: time.Second, MaxWait: time.Minute}, c.Polling())
		assert.Equal(t, []string{"FINISHED"}, c.Workflows().Watcher().TerminalStates().States())
		assert.Nil(t, c.redis)
	})
	t.Run("Should apply options on top of the configuration", func(t *testing.T) {
		t.Parallel()
		ctx := testutil.NewTestContext(t)
		cfg := config.Default()
		cfg.API.Key = "tk-config"

		c, err := FromConfig(ctx, cfg, func(b Builder) Builder {
			return b.WithTerminalStates("DONE")
		})

		require.NoError(t, err)
		t.Cleanup(func() { _ = c.Close() })
		assert.Equal(t, []string{"DONE"}, c.Workflows().Watcher().TerminalStates().States())
	})
	t.Run("Should forward events to Redis when a redis url is set", func(t *testing.T) {
		t.Parallel()
		ctx := testutil.NewTestContext(t)
		mr := miniredis.RunT(t)
		cfg := config.Default()
		cfg.API.Key = "tk-config"
		cfg.Events.RedisURL = config.SensitiveString("redis://" + mr.Addr())
		cfg.Events.RedisChannel = "test:events"

		c, err := FromConfig(ctx, cfg)

		require.NoError(t, err)
		require.NotNil(t, c.redis)
		assert.Equal(t, "test:events", c.redis.Channel())
		require.NoError(t, c.Close())
	})
	t.Run("Should fail when Redis is unreachable", func(t *testing.T) {
		t.Parallel()
		ctx := testutil.NewTestContext(t)
		cfg := config.Default()
		cfg.API.Key = "tk-config"
		cfg.Events.RedisURL = "redis://127.0.0.1:1"

		_, err := FromConfig(ctx, cfg)

		assert.Equal(t, sdkerrors.CodeConfig, sdkerrors.CodeOf(err))
	})
	t.Run("Should reject a missing configuration", func(t *testing.T) {
		t.Parallel()
		_, err := FromConfig(testutil.NewTestContext(t), nil)
		assert.Equal(t, sdkerrors.CodeConfig, sdkerrors.CodeOf(err))
	})
}
