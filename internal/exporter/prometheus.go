package exporter

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Defaults for the exposition endpoint.
const (
	DefaultListenAddress = ":8526"
	DefaultMetricsPath   = "/metrics"
)

const shutdownTimeout = 5 * time.Second

// PrometheusExporter serves gathered metric families over HTTP.
type PrometheusExporter struct {
	addr    string
	path    string
	handler http.Handler
	server  *http.Server
}

// NewPrometheusExporter creates an exposition server for gatherer. When
// instrumentation is non-nil, scrape counters are registered on it.
func NewPrometheusExporter(
	addr string,
	path string,
	gatherer prometheus.Gatherer,
	instrumentation prometheus.Registerer,
) *PrometheusExporter {
	if addr == "" {
		addr = DefaultListenAddress
	}
	if path == "" {
		path = DefaultMetricsPath
	}

	handler := createHandler(gatherer, instrumentation)

	mux := http.NewServeMux()
	mux.Handle(path, handler)

	return &PrometheusExporter{
		addr:    addr,
		path:    path,
		handler: mux,
		server: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

// Handler returns the HTTP handler serving the metrics path.
func (e *PrometheusExporter) Handler() http.Handler {
	return e.handler
}

// Start serves HTTP requests until ctx is done or the listener fails.
func (e *PrometheusExporter) Start(ctx context.Context) error {
	errChan := make(chan error, 1)

	go func() {
		slog.Info("starting prometheus exporter", "addr", e.addr, "path", e.path)
		if err := e.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		return e.Stop()
	}
}

// Stop gracefully stops the exporter.
func (e *PrometheusExporter) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	slog.Info("shutting down prometheus exporter")
	return e.server.Shutdown(ctx)
}
