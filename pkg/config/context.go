package config

import (
	"context"
)

// ContextKey is the type used for configuration values stored in a context.
type ContextKey string

const (
	// ManagerCtxKey is the context key used to store the *Manager instance
	ManagerCtxKey ContextKey = "config_manager"
)

// ContextWithManager stores the configuration manager in the context.
func ContextWithManager(ctx context.Context, m *Manager) context.Context {
	return context.WithValue(ctx, ManagerCtxKey, m)
}

// ManagerFromContext returns the manager attached to ctx, or nil.
func ManagerFromContext(ctx context.Context) *Manager {
	if ctx == nil {
		return nil
	}
	m, ok := ctx.Value(ManagerCtxKey).(*Manager)
	if !ok {
		return nil
	}
	return m
}

// FromContext returns the active configuration for ctx.
// Without an attached manager it falls back to Default.
func FromContext(ctx context.Context) *Config {
	if m := ManagerFromContext(ctx); m != nil {
		if cfg := m.Get(); cfg != nil {
			return cfg
		}
	}
	return Default()
}
