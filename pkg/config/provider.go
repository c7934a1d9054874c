package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/kadoa-org/kadoa-sdk-go/pkg/config/definition"
	"github.com/knadh/koanf/providers/structs"
	"gopkg.in/yaml.v3"
)

// static is embedded by sources that never change while the process runs.
type static struct{ kind SourceType }

func (s static) Watch(context.Context, func()) error { return nil }
func (s static) Type() SourceType { return s.kind }
func (s static) Close() error { return nil }

type envProvider struct{ static }

// NewEnvProvider marks the environment layer. The loader always reads
// KADOA_* variables itself, so Load returns nothing.
func NewEnvProvider() Source { return envProvider{static{SourceEnv}} }

func (envProvider) Load() (map[string]any, error) { return map[string]any{}, nil }

type cliProvider struct {
	static
	flags map[string]any
}

// NewCLIProvider turns the changed flags of a command, keyed by flag name,
// into a source. Flags without a registered config path are ignored.
func NewCLIProvider(flags map[string]any) Source {
	return &cliProvider{static: static{SourceCLI}, flags: flags}
}

func (c *cliProvider) Load() (map[string]any, error) {
	out := map[string]any{}
	if len(c.flags) == 0 {
		return out, nil
	}
	paths := definition.CreateRegistry().GetCLIFlagMapping()
	for flag, value := range c.flags {
		path, ok := paths[flag]
		if !ok {
			continue
		}
		if err := setNested(out, path, value); err != nil {
			return nil, fmt.Errorf("failed to set CLI flag %s: %w", flag, err)
		}
	}
	return out, nil
}

// setNested stores value under a dotted path, creating sections on the way.
func setNested(m map[string]any, path string, value any) error {
	if path == "" {
		return nil
	}
	keys := strings.Split(path, ".")
	leaf := keys[len(keys)-1]
	for i, key := range keys[:len(keys)-1] {
		next, exists := m[key]
		if !exists {
			next = map[string]any{}
			m[key] = next
		}
		section, ok := next.(map[string]any)
		if !ok {
			return fmt.Errorf("configuration conflict: key %q is not a map", strings.Join(keys[:i+1], "."))
		}
		m = section
	}
	m[leaf] = value
	return nil
}

type yamlProvider struct {
	path string

	mu      sync.Mutex
	watcher *Watcher
	closed  bool
}

// NewYAMLProvider reads the kadoa config file at path. A missing file is an
// empty layer rather than an error.
func NewYAMLProvider(path string) Source {
	return &yamlProvider{path: path}
}

func (y *yamlProvider) Type() SourceType { return SourceYAML }

func (y *yamlProvider) Load() (map[string]any, error) {
	raw, err := os.ReadFile(y.path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]any{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read YAML file: %w", err)
	}
	var doc map[string]any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse YAML file: %w", err)
	}
	return dropNulls(doc), nil
}

// dropNulls removes `key:` entries with no value, and sections left empty,
// so they cannot blank out a lower layer.
func dropNulls(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		switch v := v.(type) {
		case nil:
		case map[string]any:
			if inner := dropNulls(v); len(inner) > 0 {
				out[k] = inner
			}
		default:
			out[k] = v
		}
	}
	return out
}

// Watch calls fn whenever the file is written. The first call starts the
// file watcher; later calls only add subscribers.
func (y *yamlProvider) Watch(ctx context.Context, fn func()) error {
	if _, err := os.Stat(y.path); err != nil {
		return fmt.Errorf("yaml source %s cannot be watched: %w", y.path, err)
	}
	y.mu.Lock()
	defer y.mu.Unlock()
	if y.closed {
		return fmt.Errorf("yaml source %s is closed", y.path)
	}
	if y.watcher == nil {
		w, err := NewWatcher(ctx)
		if err != nil {
			return fmt.Errorf("failed to create watcher: %w", err)
		}
		if err := w.Watch(ctx, y.path); err != nil {
			_ = w.Close()
			return fmt.Errorf("failed to watch YAML file: %w", err)
		}
		y.watcher = w
	}
	y.watcher.OnChange(fn)
	return nil
}

func (y *yamlProvider) Close() error {
	y.mu.Lock()
	defer y.mu.Unlock()
	y.closed = true
	if y.watcher == nil {
		return nil
	}
	w := y.watcher
	y.watcher = nil
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to close watcher: %w", err)
	}
	return nil
}

type defaultProvider struct {
	static
	defaults map[string]any
}

// NewDefaultProvider exposes Default as a source. Durations are rendered the
// way a user would write them in YAML.
func NewDefaultProvider() Source {
	raw, err := structs.Provider(Default(), "koanf").Read()
	if err != nil {
		raw = map[string]any{}
	}
	return &defaultProvider{static: static{SourceDefault}, defaults: humanize(raw)}
}

func (d *defaultProvider) Load() (map[string]any, error) { return d.defaults, nil }

func humanize(m map[string]any) map[string]any {
	for k, v := range m {
		switch v := v.(type) {
		case time.Duration:
			m[k] = v.String()
		case map[string]any:
			m[k] = humanize(v)
		}
	}
	return m
}
