package config

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// envPrefix scopes which environment variables the loader reads.
const envPrefix = "KADOA_"

type loader struct {
	validate *validator.Validate

	mu   sync.RWMutex
	meta Metadata
}

// NewService returns a Service that layers defaults, files, the environment
// and flags through koanf and validates the result.
func NewService() Service {
	v := validator.New()
	if err := RegisterCustomValidators(v); err != nil {
		panic(fmt.Sprintf("config: register validators: %v", err))
	}
	return &loader{
		validate: v,
		meta:     Metadata{Sources: map[string]SourceType{}},
	}
}

// layers accumulates configuration and remembers which layer last changed
// each key.
type layers struct {
	k      *koanf.Koanf
	origin map[string]SourceType
}

func newLayers() *layers {
	return &layers{k: koanf.New("."), origin: map[string]SourceType{}}
}

func (ls *layers) push(kind SourceType, apply func(k *koanf.Koanf) error) error {
	before := ls.k.All()
	if err := apply(ls.k); err != nil {
		return err
	}
	for key, val := range ls.k.All() {
		if old, ok := before[key]; !ok || !reflect.DeepEqual(old, val) {
			ls.origin[key] = kind
		}
	}
	return nil
}

// Load resolves the configuration in the order defaults, YAML, environment,
// CLI. Keys missing from a layer keep the value of the layer below.
func (l *loader) Load(_ context.Context, sources ...Source) (*Config, error) {
	ls := newLayers()
	err := ls.push(SourceDefault, func(k *koanf.Koanf) error {
		return k.Load(structs.Provider(Default(), "koanf"), nil)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}
	if err := l.pushSources(ls, sources, func(t SourceType) bool { return t != SourceCLI }); err != nil {
		return nil, err
	}
	if err := ls.push(SourceEnv, loadEnv); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}
	if err := l.pushSources(ls, sources, func(t SourceType) bool { return t == SourceCLI }); err != nil {
		return nil, err
	}

	cfg, err := decode(ls.k)
	if err != nil {
		return nil, err
	}
	if err := l.Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	l.mu.Lock()
	l.meta = Metadata{Sources: ls.origin, LoadedAt: time.Now()}
	l.mu.Unlock()
	return cfg, nil
}

func (l *loader) pushSources(ls *layers, sources []Source, want func(SourceType) bool) error {
	for _, src := range sources {
		// the environment is always read by loadEnv
		if src == nil || src.Type() == SourceEnv || !want(src.Type()) {
			continue
		}
		data, err := src.Load()
		if err != nil {
			return fmt.Errorf("failed to load from source %s: %w", src.Type(), err)
		}
		if len(data) == 0 {
			continue
		}
		err = ls.push(src.Type(), func(k *koanf.Koanf) error {
			if src.Type() != SourceYAML {
				return k.Load(rawMap(data), nil)
			}
			// set leaf by leaf so a partial section keeps its sibling defaults
			for key, val := range flattenMap("", data) {
				if err := k.Set(key, val); err != nil {
					return fmt.Errorf("set %s: %w", key, err)
				}
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("failed to apply source %s: %w", src.Type(), err)
		}
	}
	return nil
}

func loadEnv(k *koanf.Koanf) error {
	paths := make(map[string]string)
	for _, m := range GenerateEnvMappings() {
		paths[m.EnvVar] = m.ConfigPath
	}
	return k.Load(env.Provider(".", env.Opt{
		Prefix: envPrefix,
		TransformFunc: func(key, value string) (string, any) {
			if strings.TrimSpace(value) == "" {
				return "", nil
			}
			if path, ok := paths[key]; ok {
				return path, value
			}
			return transformEnvKey(key), value
		},
	}), nil)
}

// transformEnvKey maps an unmapped variable onto a koanf path: the first
// segment is the section and the rest is the field,
// so KADOA_REALTIME_RECONNECT_DELAY becomes realtime.reconnect_delay.
func transformEnvKey(name string) string {
	parts := strings.FieldsFunc(strings.ToLower(strings.TrimPrefix(name, envPrefix)), func(r rune) bool {
		return r == '_'
	})
	switch len(parts) {
	case 0:
		return ""
	case 1:
		return parts[0]
	default:
		return parts[0] + "." + strings.Join(parts[1:], "_")
	}
}

func flattenMap(prefix string, m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		if prefix != "" {
			k = prefix + "." + k
		}
		if nested, ok := v.(map[string]any); ok {
			maps.Copy(out, flattenMap(k, nested))
			continue
		}
		out[k] = v
	}
	return out
}

func decode(k *koanf.Koanf) (*Config, error) {
	var cfg Config
	err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			Result:           &cfg,
			TagName:          "koanf",
			WeaklyTypedInput: true,
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
				mapstructure.StringToSliceHookFunc(","),
				toSensitiveString,
			),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}
	return &cfg, nil
}

func toSensitiveString(_, to reflect.Type, data any) (any, error) {
	if to != reflect.TypeFor[SensitiveString]() {
		return data, nil
	}
	switch v := data.(type) {
	case string:
		return SensitiveString(v), nil
	case []byte:
		return SensitiveString(v), nil
	}
	return data, nil
}

// Validate runs the struct tag rules and then the cross-field checks.
func (l *loader) Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("configuration cannot be nil")
	}
	if err := l.validate.Struct(cfg); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	switch {
	case cfg.Polling.Interval >= cfg.Polling.MaxWait:
		return errors.New("polling interval must be shorter than polling max_wait")
	case cfg.HTTP.RetryCount > 0 && cfg.HTTP.RetryMaxWait < cfg.HTTP.RetryWait:
		return errors.New("http retry_max_wait must not be shorter than retry_wait")
	case cfg.Realtime.HeartbeatTimeout > 0 && cfg.Realtime.HeartbeatTimeout < cfg.Realtime.HeartbeatInterval:
		return errors.New("realtime heartbeat_timeout must not be shorter than heartbeat_interval")
	}
	return nil
}

// GetSource reports which layer supplied key in the last successful Load.
func (l *loader) GetSource(key string) SourceType {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if src, ok := l.meta.Sources[key]; ok {
		return src
	}
	return SourceDefault
}

// rawMap adapts an already parsed map to koanf.Provider.
type rawMap map[string]any

func (r rawMap) Read() (map[string]any, error) { return r, nil }

func (r rawMap) ReadBytes() ([]byte, error) {
	return nil, errors.New("rawMap does not support ReadBytes")
}
