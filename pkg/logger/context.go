package logger

import (
	"context"
	"sync"
)

type ctxKey struct{}

var (
	fallbackMu sync.RWMutex
	fallback   Logger
)

// Init replaces the process default logger used when a context carries none.
func Init(cfg *Config) {
	l := New(cfg)
	fallbackMu.Lock()
	fallback = l
	fallbackMu.Unlock()
}

// Default returns the process default logger, creating it on first use.
func Default() Logger {
	fallbackMu.RLock()
	l := fallback
	fallbackMu.RUnlock()
	if l != nil {
		return l
	}
	fallbackMu.Lock()
	defer fallbackMu.Unlock()
	if fallback == nil {
		fallback = New(nil)
	}
	return fallback
}

func ContextWithLogger(ctx context.Context, l Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

func fromContext(ctx context.Context) Logger {
	if ctx == nil {
		return nil
	}
	l, _ := ctx.Value(ctxKey{}).(Logger)
	return l
}

func FromContext(ctx context.Context) Logger {
	return FromContextOr(ctx, nil)
}

// FromContextOr returns the logger carried by ctx, then fallback, then Default.
func FromContextOr(ctx context.Context, fb Logger) Logger {
	if l := fromContext(ctx); l != nil {
		return l
	}
	if fb != nil {
		return fb
	}
	return Default()
}
