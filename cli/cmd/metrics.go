package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/kadoa-org/kadoa-sdk-go/pkg/config"
	"github.com/kadoa-org/kadoa-sdk-go/pkg/logger"
	"github.com/kadoa-org/kadoa-sdk-go/pkg/monitoring"
)

// metricsServer exposes the SDK instruments of one command run over HTTP.
type metricsServer struct {
	svc  *monitoring.Service
	sdk  *monitoring.SDKMetrics
	srv  *http.Server
	addr string
}

func startMetrics(ctx context.Context, cfg config.MetricsConfig) (*metricsServer, error) {
	log := logger.FromContext(ctx)
	svc, err := monitoring.NewService(ctx, &monitoring.Config{Enabled: true, Path: cfg.Path, Addr: cfg.Addr})
	if err != nil {
		return nil, fmt.Errorf("failed to start monitoring: %w", err)
	}
	instruments, err := monitoring.NewSDKMetrics(svc.Meter())
	if err != nil {
		_ = svc.Shutdown(ctx)
		return nil, fmt.Errorf("failed to create SDK metrics: %w", err)
	}
	ln, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		_ = svc.Shutdown(ctx)
		return nil, fmt.Errorf("failed to listen on %s: %w", cfg.Addr, err)
	}
	mux := http.NewServeMux()
	mux.Handle(cfg.Path, svc.Handler())
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics endpoint stopped", "error", err)
		}
	}()
	addr := ln.Addr().String()
	log.Info("serving metrics", "addr", addr, "path", cfg.Path)
	return &metricsServer{svc: svc, sdk: instruments, srv: srv, addr: addr}, nil
}

func (m *metricsServer) Shutdown(ctx context.Context) error {
	return errors.Join(m.srv.Shutdown(ctx), m.svc.Shutdown(ctx))
}
