package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/eunomia-bpf/eunomia-exporter/internal/app"
	"github.com/eunomia-bpf/eunomia-exporter/internal/config"
	"github.com/eunomia-bpf/eunomia-exporter/internal/exporter"
	"github.com/eunomia-bpf/eunomia-exporter/internal/ingest"
	"github.com/eunomia-bpf/eunomia-exporter/internal/state"
	"github.com/eunomia-bpf/eunomia-exporter/internal/version"
	"github.com/urfave/cli/v3"
)

func main() {
	cmd := &cli.Command{
		Name:    "eunomia-exporter",
		Usage:   "Expose eBPF program counters to Prometheus",
		Version: version.String(),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Value:   "config.yaml",
				Usage:   "path to configuration file (.json for JSON, YAML otherwise)",
			},
			&cli.StringFlag{
				Name:  "listen",
				Value: exporter.DefaultListenAddress,
				Usage: "address to serve metrics on",
			},
			&cli.StringFlag{
				Name:  "path",
				Value: exporter.DefaultMetricsPath,
				Usage: "HTTP path to serve metrics on",
			},
			&cli.StringFlag{
				Name:  "events",
				Usage: "JSON lines file of program events, - for stdin",
			},
			&cli.IntFlag{
				Name:  "workers",
				Usage: "maximum concurrent producer tasks besides the exporter's own, 0 for no limit",
			},
			&cli.DurationFlag{
				Name:  "monitor-interval",
				Value: 5 * time.Second,
				Usage: "resource monitor sampling interval, 0 to disable",
			},
			&cli.BoolFlag{
				Name:  "internal-metrics",
				Usage: "expose scrape handler metrics",
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "enable debug logging",
			},
		},
		Action: serve,
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func serve(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")
	debug := cmd.Bool("debug")

	// Configure logging level
	logLevel := slog.LevelInfo
	if debug {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	slog.Info("starting eunomia-exporter", "version", version.String(), "config", configPath)

	// Configuration must be complete before any metrics infrastructure starts
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	source, closeSource, err := openEvents(cmd.String("events"))
	if err != nil {
		return err
	}
	defer closeSource()

	application, err := app.New(cfg, app.Settings{
		ListenAddress:   cmd.String("listen"),
		MetricsPath:     cmd.String("path"),
		Workers:         cmd.Int("workers"),
		MonitorInterval: cmd.Duration("monitor-interval"),
		InternalMetrics: cmd.Bool("internal-metrics"),
	})
	if err != nil {
		var initErr *state.InitError
		if errors.As(err, &initErr) {
			slog.Error("fatal: exporter state unavailable", "error", err)
			os.Exit(1)
		}
		return fmt.Errorf("initialization failed: %w", err)
	}

	// Setup graceful shutdown
	shutdownCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	runErr := application.Run(shutdownCtx, source)
	if runErr != nil {
		slog.Error("exporter error", "error", runErr)
	}

	slog.Debug("--- Shutdown Initiated ---")
	if err := application.Close(); err != nil {
		return err
	}

	slog.Info("shutdown complete")
	return runErr
}

// openEvents opens the optional event stream.
func openEvents(path string) (ingest.Source, func(), error) {
	switch path {
	case "":
		return nil, func() {}, nil
	case "-":
		return ingest.NewJSONLines(os.Stdin), func() {}, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open events: %w", err)
	}
	return ingest.NewJSONLines(f), func() { _ = f.Close() }, nil
}
