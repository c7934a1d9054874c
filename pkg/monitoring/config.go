package monitoring

import (
	"fmt"
	"strings"
)

// Config holds configuration for the monitoring service.
type Config struct {
	Enabled bool   `json:"enabled" yaml:"enabled" mapstructure:"enabled"`
	Path    string `json:"path"    yaml:"path"    mapstructure:"path"`
	Addr    string `json:"addr"    yaml:"addr"    mapstructure:"addr"`
}

// DefaultConfig returns default monitoring configuration.
func DefaultConfig() *Config {
	return &Config{
		Enabled: false,
		Path:    "/metrics",
		Addr:    "127.0.0.1:9464",
	}
}

// Validate validates the monitoring configuration.
func (c *Config) Validate() error {
	if c.Path == "" {
		return fmt.Errorf("monitoring path cannot be empty")
	}
	if c.Path[0] != '/' {
		return fmt.Errorf("monitoring path must start with '/': got %s", c.Path)
	}
	if strings.ContainsRune(c.Path, '?') {
		return fmt.Errorf("monitoring path cannot contain query parameters")
	}
	if c.Enabled && strings.TrimSpace(c.Addr) == "" {
		return fmt.Errorf("monitoring addr is required when monitoring is enabled")
	}
	return nil
}
