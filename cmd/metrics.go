package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/sdk/metric"

	"clusterwatch/internal/reconciler"
	"clusterwatch/pkg/logging"
)

const metricsShutdownTimeout = 5 * time.Second

// metricsServer exposes the engine's instruments on /metrics.
type metricsServer struct {
	server   *http.Server
	provider *metric.MeterProvider
	metrics  *reconciler.Metrics
}

func newMetricsServer(addr string) (*metricsServer, error) {
	exporter, err := prometheus.New()
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}
	provider := metric.NewMeterProvider(metric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	m, err := reconciler.NewMetrics(provider.Meter(reconciler.MeterName))
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	return &metricsServer{
		server:   &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second},
		provider: provider,
		metrics:  m,
	}, nil
}

// Run serves until ctx is cancelled.
func (s *metricsServer) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.server.Addr, err)
	}
	logging.Info("Metrics", "Serving metrics on http://%s/metrics", ln.Addr())

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.server.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("metrics server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), metricsShutdownTimeout)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down metrics server: %w", err)
	}
	return s.provider.Shutdown(shutdownCtx)
}
