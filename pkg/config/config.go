package config

import (
	"context"
	"time"
)

// Config represents the complete configuration for the Kadoa SDK and CLI.
// It provides type-safe access to all configuration values with validation.
type Config struct {
	API      APIConfig      `koanf:"api"      validate:"required"`
	HTTP     HTTPConfig     `koanf:"http"     validate:"required"`
	Polling  PollingConfig  `koanf:"polling"  validate:"required"`
	Realtime RealtimeConfig `koanf:"realtime"`
	Events   EventsConfig   `koanf:"events"`
	Metrics  MetricsConfig  `koanf:"metrics"`
	Runtime  RuntimeConfig  `koanf:"runtime"  validate:"required"`
	CLI      CLIConfig      `koanf:"cli"`
}

// APIConfig identifies the platform endpoint and credentials.
type APIConfig struct {
	Key     SensitiveString `koanf:"key"      env:"KADOA_API_KEY"        sensitive:"true"`
	BaseURL string          `koanf:"base_url" env:"KADOA_PUBLIC_API_URI" validate:"required,url"`
}

// HTTPConfig tunes the HTTP transport.
type HTTPConfig struct {
	Timeout      time.Duration `koanf:"timeout"        env:"KADOA_HTTP_TIMEOUT"        validate:"gt=0"`
	RetryCount   int           `koanf:"retry_count"    env:"KADOA_HTTP_RETRY_COUNT"    validate:"min=0,max=10"`
	RetryWait    time.Duration `koanf:"retry_wait"     env:"KADOA_HTTP_RETRY_WAIT"`
	RetryMaxWait time.Duration `koanf:"retry_max_wait" env:"KADOA_HTTP_RETRY_MAX_WAIT"`
	RateLimit    float64       `koanf:"rate_limit"     env:"KADOA_HTTP_RATE_LIMIT"     validate:"min=0"`
	RateBurst    int           `koanf:"rate_burst"     env:"KADOA_HTTP_RATE_BURST"     validate:"min=1"`
}

// PollingConfig holds the defaults used when waiting for workflows.
type PollingConfig struct {
	Interval       time.Duration `koanf:"interval"        env:"KADOA_POLL_INTERVAL"   validate:"gt=0"`
	MaxWait        time.Duration `koanf:"max_wait"        env:"KADOA_MAX_WAIT"        validate:"gt=0"`
	TerminalStates []string      `koanf:"terminal_states" env:"KADOA_TERMINAL_STATES" validate:"min=1,dive,run_state"`
}

// RealtimeConfig configures the WebSocket event channel.
type RealtimeConfig struct {
	URL               string        `koanf:"url"                env:"KADOA_WSS_API_URI"      validate:"required"`
	StreamURL         string        `koanf:"stream_url"         env:"KADOA_WSS_NEO_API_URI"  validate:"required"`
	AckURL            string        `koanf:"ack_url"            env:"KADOA_REALTIME_API_URI" validate:"required,url"`
	Source            string        `koanf:"source"             env:"KADOA_REALTIME_SOURCE"  validate:"omitempty,oneof=stream"`
	HeartbeatInterval time.Duration `koanf:"heartbeat_interval" env:"KADOA_REALTIME_HEARTBEAT_INTERVAL"`
	HeartbeatTimeout  time.Duration `koanf:"heartbeat_timeout"  env:"KADOA_REALTIME_HEARTBEAT_TIMEOUT"`
	ReconnectDelay    time.Duration `koanf:"reconnect_delay"    env:"KADOA_REALTIME_RECONNECT_DELAY"`
	MaxReconnects     int           `koanf:"max_reconnects"     env:"KADOA_REALTIME_MAX_RECONNECTS" validate:"min=0"`
}

// EventsConfig enables forwarding SDK events to Redis.
type EventsConfig struct {
	RedisURL     SensitiveString `koanf:"redis_url"     env:"KADOA_EVENTS_REDIS_URL"     sensitive:"true"`
	RedisChannel string          `koanf:"redis_channel" env:"KADOA_EVENTS_REDIS_CHANNEL"`
}

// MetricsConfig controls the Prometheus metrics endpoint.
type MetricsConfig struct {
	Enabled bool   `koanf:"enabled" env:"KADOA_METRICS_ENABLED"`
	Path    string `koanf:"path"    env:"KADOA_METRICS_PATH"    validate:"required,startswith=/"`
	Addr    string `koanf:"addr"    env:"KADOA_METRICS_ADDR"    validate:"required_if=Enabled true"`
}

// RuntimeConfig contains logging behavior.
type RuntimeConfig struct {
	LogLevel  string `koanf:"log_level"  validate:"oneof=debug info warn error disabled" env:"KADOA_LOG_LEVEL"`
	LogJSON   bool   `koanf:"log_json"                                                   env:"KADOA_LOG_JSON"`
	LogSource bool   `koanf:"log_source"                                                 env:"KADOA_LOG_SOURCE"`
}

// CLIConfig contains CLI-specific configuration.
type CLIConfig struct {
	Output      string `koanf:"output"      validate:"omitempty,oneof=auto json text" env:"KADOA_OUTPUT"`
	NoColor     bool   `koanf:"no_color"                                              env:"KADOA_NO_COLOR"`
	Interactive bool   `koanf:"interactive"                                           env:"KADOA_INTERACTIVE"`
}

// Service defines the configuration management service interface.
type Service interface {
	// Load loads configuration from the specified sources with precedence order.
	Load(ctx context.Context, sources ...Source) (*Config, error)
	// Validate checks if the configuration meets all validation requirements.
	Validate(config *Config) error
	// GetSource returns the source type that provided a configuration key.
	GetSource(key string) SourceType
}

// Source defines the interface for configuration sources.
type Source interface {
	// Load reads configuration from the source.
	Load() (map[string]any, error)
	// Watch monitors the source for changes.
	Watch(ctx context.Context, callback func()) error
	// Type returns the source type identifier.
	Type() SourceType
	// Close releases any resources held by the source.
	Close() error
}

// SourceType identifies the type of configuration source.
type SourceType string

const (
	SourceCLI     SourceType = "cli"
	SourceYAML    SourceType = "yaml"
	SourceEnv     SourceType = "env"
	SourceDefault SourceType = "default"
)

// Metadata contains metadata about configuration sources.
type Metadata struct {
	Sources  map[string]SourceType `json:"sources"`
	LoadedAt time.Time             `json:"loaded_at"`
}

// DefaultTerminalStates is the run-state vocabulary that ends a workflow wait.
var DefaultTerminalStates = []string{"FINISHED", "SUCCESS", "FAILED", "ERROR", "STOPPED", "CANCELLED"}

// Load loads configuration from defaults and the environment.
func Load() (*Config, error) {
	service := NewService()
	return service.Load(context.Background())
}

// Default returns a Config populated with production defaults.
func Default() *Config {
	return &Config{
		API: APIConfig{
			BaseURL: "https://api.kadoa.com",
		},
		HTTP: HTTPConfig{
			Timeout:      30 * time.Second,
			RetryCount:   0,
			RetryWait:    100 * time.Millisecond,
			RetryMaxWait: 2 * time.Second,
			RateLimit:    0,
			RateBurst:    1,
		},
		Polling: PollingConfig{
			Interval:       5 * time.Second,
			MaxWait:        5 * time.Minute,
			TerminalStates: append([]string(nil), DefaultTerminalStates...),
		},
		Realtime: RealtimeConfig{
			URL:               "wss://realtime.kadoa.com",
			StreamURL:         "wss://events.kadoa.com/events/ws",
			AckURL:            "https://realtime.kadoa.com",
			HeartbeatInterval: 10 * time.Second,
			HeartbeatTimeout:  30 * time.Second,
			ReconnectDelay:    5 * time.Second,
		},
		Events: EventsConfig{
			RedisChannel: "kadoa:events",
		},
		Metrics: MetricsConfig{
			Path: "/metrics",
			Addr: "127.0.0.1:9464",
		},
		Runtime: RuntimeConfig{
			LogLevel: "info",
		},
		CLI: CLIConfig{
			Output: "auto",
		},
	}
}
