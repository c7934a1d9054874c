// Package monitoring exposes SDK telemetry through OpenTelemetry instruments
// exported in the Prometheus format.
package monitoring

import (
	"context"
	"fmt"
	"net/http"

	"github.com/kadoa-org/kadoa-sdk-go/pkg/logger"
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

const meterName = "github.com/kadoa-org/kadoa-sdk-go"

// Service owns the meter provider and the Prometheus registry it feeds.
type Service struct {
	meter       metric.Meter
	exporter    *prometheus.Exporter
	provider    *sdkmetric.MeterProvider
	registry    *prom.Registry
	config      *Config
	initialized bool
}

func newDisabledService(cfg *Config) *Service {
	return &Service{
		config: cfg,
		meter:  noop.NewMeterProvider().Meter(meterName),
	}
}

// NewService creates a monitoring service. A disabled configuration yields a no-op meter.
func NewService(ctx context.Context, cfg *Config) (*Service, error) {
	log := logger.FromContext(ctx)
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if !cfg.Enabled {
		log.Debug("Monitoring disabled, using no-op meter")
		return newDisabledService(cfg), nil
	}
	registry := prom.NewRegistry()
	exporter, err := prometheus.New(prometheus.WithRegisterer(registry))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Prometheus exporter: %w", err)
	}
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	log.Debug("Monitoring service initialized")
	return &Service{
		meter:       provider.Meter(meterName),
		exporter:    exporter,
		provider:    provider,
		registry:    registry,
		config:      cfg,
		initialized: true,
	}, nil
}

// Meter returns the OpenTelemetry meter for SDK instruments.
func (s *Service) Meter() metric.Meter {
	return s.meter
}

// Registry returns the Prometheus registry, or nil when monitoring is disabled.
func (s *Service) Registry() *prom.Registry {
	return s.registry
}

// Handler returns an HTTP handler serving the metrics endpoint.
func (s *Service) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.initialized {
			w.WriteHeader(http.StatusServiceUnavailable)
			if _, err := w.Write([]byte("Monitoring service not initialized")); err != nil {
				logger.FromContext(r.Context()).Error("Failed to write response", "error", err)
			}
			return
		}
		promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}).ServeHTTP(w, r)
	})
}

// Config returns the configuration the service was created with.
func (s *Service) Config() *Config {
	return s.config
}

// IsInitialized reports whether a real exporter backs the service.
func (s *Service) IsInitialized() bool {
	return s.initialized
}

// Shutdown flushes and stops the meter provider.
func (s *Service) Shutdown(ctx context.Context) error {
	if s.provider != nil {
		return s.provider.Shutdown(ctx)
	}
	return nil
}
