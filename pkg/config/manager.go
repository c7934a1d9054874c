package config

import (
	"context"
	"fmt"
	"reflect"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kadoa-org/kadoa-sdk-go/pkg/logger"
)

// Manager owns the live configuration of a process. It reloads when a
// watched source changes and tells subscribers about every effective change.
type Manager struct {
	Service Service

	current  atomic.Pointer[Config]
	debounce time.Duration
	log      logger.Logger

	mu      sync.Mutex // guards sources and reloads
	sources []Source

	subMu sync.RWMutex
	subs  []func(*Config)

	stop      context.CancelFunc
	watchers  sync.WaitGroup
	closeOnce sync.Once
}

// NewManager returns a Manager that logs through the logger carried by ctx.
// A nil service means NewService.
func NewManager(ctx context.Context, service Service) *Manager {
	if service == nil {
		service = NewService()
	}
	return &Manager{
		Service:  service,
		debounce: 100 * time.Millisecond,
		log:      logger.FromContext(ctx),
	}
}

// SetDebounce sets how long a burst of source events is coalesced before a
// reload. It only affects watchers started by a later Load.
func (m *Manager) SetDebounce(d time.Duration) { m.debounce = d }

// Load resolves sources, publishes the result and starts watching every
// source that supports it. Watchers ignore the cancellation of ctx and run
// until Close.
func (m *Manager) Load(ctx context.Context, sources ...Source) (*Config, error) {
	m.mu.Lock()
	m.sources = slices.Clone(sources)
	m.mu.Unlock()

	cfg, err := m.Service.Load(ctx, sources...)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	m.publish(cfg)

	if m.stop != nil {
		m.stop()
	}
	watchCtx, stop := context.WithCancel(logger.ContextWithLogger(context.WithoutCancel(ctx), m.log))
	m.stop = stop
	for _, src := range sources {
		if src != nil {
			m.watch(watchCtx, src)
		}
	}
	return cfg, nil
}

func (m *Manager) watch(ctx context.Context, src Source) {
	m.watchers.Go(func() {
		var (
			mu    sync.Mutex
			timer *time.Timer
		)
		reload := func() {
			if err := m.Reload(ctx); err != nil {
				m.log.Error("failed to reload configuration", "source", src.Type(), "error", err)
			}
		}
		err := src.Watch(ctx, func() {
			if m.debounce <= 0 {
				reload()
				return
			}
			mu.Lock()
			defer mu.Unlock()
			if timer == nil {
				timer = time.AfterFunc(m.debounce, reload)
				return
			}
			timer.Reset(m.debounce)
		})
		if err != nil {
			m.log.Debug("source is not watchable", "source", src.Type(), "error", err)
		}
		<-ctx.Done()
		mu.Lock()
		if timer != nil {
			timer.Stop()
		}
		mu.Unlock()
	})
}

// Sources returns a copy of the sources passed to the last Load.
func (m *Manager) Sources() []Source {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Source{}, m.sources...)
}

// Get returns the current configuration, or nil before the first Load.
func (m *Manager) Get() *Config { return m.current.Load() }

// Reload resolves the sources again. On error the current configuration
// stays in place.
func (m *Manager) Reload(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cfg, err := m.Service.Load(ctx, m.sources...)
	if err != nil {
		return fmt.Errorf("failed to reload configuration: %w", err)
	}
	m.publish(cfg)
	m.log.Debug("configuration reloaded")
	return nil
}

// OnChange subscribes fn to configuration changes. Reloads that produce an
// identical configuration are not reported.
func (m *Manager) OnChange(fn func(*Config)) {
	if fn == nil {
		return
	}
	m.subMu.Lock()
	m.subs = append(m.subs, fn)
	m.subMu.Unlock()
}

// Close stops the watchers and closes every source. It is safe to call
// more than once.
func (m *Manager) Close(_ context.Context) error {
	m.closeOnce.Do(func() {
		if m.stop != nil {
			m.stop()
		}
		m.watchers.Wait()
		for _, src := range m.Sources() {
			if src == nil {
				continue
			}
			if err := src.Close(); err != nil {
				m.log.Error("failed to close configuration source", "source", src.Type(), "error", err)
			}
		}
	})
	return nil
}

func (m *Manager) publish(cfg *Config) {
	prev := m.current.Swap(cfg)
	if prev != nil && reflect.DeepEqual(prev, cfg) {
		return
	}
	m.subMu.RLock()
	subs := slices.Clone(m.subs)
	m.subMu.RUnlock()
	for _, fn := range subs {
		fn(cfg)
	}
}
