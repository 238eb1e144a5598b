package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/eunomia-bpf/eunomia-exporter/internal/config"
	"github.com/eunomia-bpf/eunomia-exporter/internal/exporter"
	"github.com/eunomia-bpf/eunomia-exporter/internal/ingest"
	"github.com/eunomia-bpf/eunomia-exporter/internal/metric"
	"github.com/eunomia-bpf/eunomia-exporter/internal/monitor"
	"github.com/eunomia-bpf/eunomia-exporter/internal/state"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	// DefaultShutdownTimeout bounds how long Close waits for draining.
	DefaultShutdownTimeout = 10 * time.Second

	meterName = "eunomia-exporter"

	// internalTasks is the number of tasks Run may spawn for the app itself:
	// event source, dispatcher, monitor and exposition server.
	internalTasks = 4
)

// Settings holds runtime options that are not part of the config document.
type Settings struct {
	ListenAddress   string
	MetricsPath     string
	Workers         int // extra producer tasks on top of the app's own; zero or less means no limit
	MonitorInterval time.Duration // zero disables the resource monitor
	InternalMetrics bool
	ShutdownTimeout time.Duration
}

// App holds initialized application components.
type App struct {
	Config             *config.ExporterConfig
	State              *state.State
	Metrics            *metric.Registry
	PrometheusExporter *exporter.PrometheusExporter
	Monitor            *monitor.Monitor

	settings Settings
}

// New initializes the application from a resolved configuration. An
// *state.InitError means the exporter cannot run at all.
func New(cfg *config.ExporterConfig, settings Settings) (*App, error) {
	if settings.ShutdownTimeout <= 0 {
		settings.ShutdownTimeout = DefaultShutdownTimeout
	}

	workers := settings.Workers
	if workers > 0 {
		workers += internalTasks
	}

	st, err := state.New(state.WithWorkers(workers))
	if err != nil {
		return nil, err
	}

	metrics, err := metric.New(cfg, st.Meter(meterName))
	if err != nil {
		_ = st.Shutdown()
		return nil, fmt.Errorf("failed to create metrics: %w", err)
	}

	var mon *monitor.Monitor
	if settings.MonitorInterval > 0 {
		mon, err = monitor.New(settings.MonitorInterval, slog.Default(), st.Meter(meterName))
		if err != nil {
			_ = st.Shutdown()
			return nil, fmt.Errorf("failed to create monitor: %w", err)
		}
	}

	var instrumentation prometheus.Registerer
	if settings.InternalMetrics {
		instrumentation = st.Registerer()
	}
	promExporter := exporter.NewPrometheusExporter(
		settings.ListenAddress,
		settings.MetricsPath,
		st.Gatherer(),
		instrumentation,
	)

	return &App{
		Config:             cfg,
		State:              st,
		Metrics:            metrics,
		PrometheusExporter: promExporter,
		Monitor:            mon,
		settings:           settings,
	}, nil
}

// Run starts the event dispatcher, the monitor and the exposition server on
// the shared executor. It returns when ctx is done or the server fails. A nil
// source runs the exporter without events.
func (a *App) Run(ctx context.Context, source ingest.Source) error {
	errChan := make(chan error, 1)

	if source != nil {
		events := make(chan ingest.Event, 1024)
		if err := a.State.Spawn(func(ctx context.Context) error {
			defer close(events)
			if err := source.Run(ctx, events); err != nil {
				return fmt.Errorf("event source: %w", err)
			}
			return nil
		}); err != nil {
			return err
		}
		if err := a.State.Spawn(func(ctx context.Context) error {
			return a.dispatch(ctx, events)
		}); err != nil {
			return err
		}
	}

	if a.Monitor != nil {
		if err := a.State.Spawn(a.Monitor.Run); err != nil {
			return err
		}
	}

	if err := a.State.Spawn(func(ctx context.Context) error {
		if err := a.PrometheusExporter.Start(ctx); err != nil {
			errChan <- fmt.Errorf("prometheus exporter: %w", err)
			return err
		}
		return nil
	}); err != nil {
		return err
	}

	slog.Debug("--- Application Running ---", "programs", len(a.Config.Programs))

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		return nil
	}
}

// dispatch routes events to program handlers until events is closed or ctx
// is done.
func (a *App) dispatch(ctx context.Context, events <-chan ingest.Event) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				slog.Info("event stream closed")
				return nil
			}
			if err := a.Metrics.Handle(ctx, ev); err != nil {
				slog.Warn("dropping event", "error", err)
			}
		}
	}
}

// Close shuts the state down and waits for draining up to the shutdown
// timeout.
func (a *App) Close() error {
	if err := a.State.Shutdown(); err != nil {
		if errors.Is(err, state.ErrShutDown) {
			return nil
		}
		return err
	}

	select {
	case <-a.State.Done():
		return nil
	case <-time.After(a.settings.ShutdownTimeout):
		return fmt.Errorf("shutdown did not complete within %s", a.settings.ShutdownTimeout)
	}
}
