package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_Load(t *testing.T) {
	t.Run("Should expose the loaded configuration", func(t *testing.T) {
		ctx := t.Context()
		m := NewManager(ctx, nil)
		defer m.Close(ctx)

		cfg, err := m.Load(ctx, NewDefaultProvider())

		require.NoError(t, err)
		assert.Same(t, cfg, m.Get())
		assert.Len(t, m.Sources(), 1)
	})

	t.Run("Should reload when the YAML source changes", func(t *testing.T) {
		ctx := t.Context()
		path := filepath.Join(t.TempDir(), "kadoa.yaml")
		require.NoError(t, os.WriteFile(path, []byte("runtime:\n  log_level: info\n"), 0o644))
		m := NewManager(ctx, NewService())
		m.SetDebounce(10 * time.Millisecond)
		defer m.Close(ctx)

		changed := make(chan *Config, 4)
		m.OnChange(func(cfg *Config) { changed <- cfg })
		_, err := m.Load(ctx, NewDefaultProvider(), NewYAMLProvider(path))
		require.NoError(t, err)
		<-changed
		time.Sleep(100 * time.Millisecond)

		require.NoError(t, os.WriteFile(path, []byte("runtime:\n  log_level: debug\n"), 0o644))

		select {
		case cfg := <-changed:
			assert.Equal(t, "debug", cfg.Runtime.LogLevel)
		case <-time.After(2 * time.Second):
			t.Fatal("timeout waiting for reload")
		}
	})
}

func TestManager_Reload(t *testing.T) {
	t.Run("Should keep the previous configuration when reload fails", func(t *testing.T) {
		ctx := t.Context()
		source := yamlSource(map[string]any{})
		m := NewManager(ctx, NewService())
		defer m.Close(ctx)
		before, err := m.Load(ctx, source)
		require.NoError(t, err)

		source.data = map[string]any{"cli": map[string]any{"output": "xml"}}
		err = m.Reload(ctx)

		require.Error(t, err)
		assert.Same(t, before, m.Get())
	})

	t.Run("Should skip callbacks for identical configuration", func(t *testing.T) {
		ctx := t.Context()
		m := NewManager(ctx, NewService())
		defer m.Close(ctx)
		calls := 0
		m.OnChange(func(*Config) { calls++ })
		_, err := m.Load(ctx, NewDefaultProvider())
		require.NoError(t, err)

		require.NoError(t, m.Reload(ctx))

		assert.Equal(t, 1, calls)
	})
}

func TestConfigEqual(t *testing.T) {
	t.Run("Should compare configurations deeply", func(t *testing.T) {
		a := Default()
		b := Default()
		assert.True(t, configEqual(a, b))
		b.Polling.TerminalStates = append(b.Polling.TerminalStates, "ABORTED")
		assert.False(t, configEqual(a, b))
	})
}

func TestFromContext(t *testing.T) {
	t.Run("Should fall back to defaults without a manager", func(t *testing.T) {
		cfg := FromContext(context.Background())
		require.NotNil(t, cfg)
		assert.Equal(t, "https://api.kadoa.com", cfg.API.BaseURL)
	})

	t.Run("Should return the attached manager configuration", func(t *testing.T) {
		ctx := t.Context()
		m := NewManager(ctx, nil)
		defer m.Close(ctx)
		_, err := m.Load(ctx, NewCLIProvider(map[string]any{"output": "json"}))
		require.NoError(t, err)

		cfg := FromContext(ContextWithManager(ctx, m))
		assert.Equal(t, "json", cfg.CLI.Output)
		assert.Same(t, m, ManagerFromContext(ContextWithManager(ctx, m)))
	})
}
