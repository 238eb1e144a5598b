package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v4/process"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.uber.org/atomic"
)

// Self-monitoring gauge names.
const (
	cpuGaugeName        = "eunomia_exporter_process_cpu_percent"
	goroutineGaugeName  = "eunomia_exporter_goroutines"
	heapAllocGaugeName  = "eunomia_exporter_heap_alloc_bytes"
	defaultMonitorEvery = 5 * time.Second
)

// Monitor tracks exporter resource usage and saturation indicators.
type Monitor struct {
	interval time.Duration
	logger   *slog.Logger
	proc     *process.Process

	cpu        atomic.Float64
	goroutines atomic.Int64
	heapAlloc  atomic.Uint64
}

// New creates a monitor sampling every interval. When meter is non-nil the
// latest sample is exposed as gauges.
func New(interval time.Duration, logger *slog.Logger, meter otelmetric.Meter) (*Monitor, error) {
	if interval <= 0 {
		interval = defaultMonitorEvery
	}
	if logger == nil {
		logger = slog.Default()
	}

	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return nil, fmt.Errorf("failed to get process handle: %w", err)
	}

	m := &Monitor{
		interval: interval,
		logger:   logger,
		proc:     proc,
	}

	if meter != nil {
		if err := m.registerGauges(meter); err != nil {
			return nil, err
		}
	}

	return m, nil
}

func (m *Monitor) registerGauges(meter otelmetric.Meter) error {
	_, err := meter.Float64ObservableGauge(cpuGaugeName,
		otelmetric.WithDescription("Exporter process CPU usage in percent of one core"),
		otelmetric.WithFloat64Callback(func(_ context.Context, o otelmetric.Float64Observer) error {
			o.Observe(m.cpu.Load())
			return nil
		}))
	if err != nil {
		return fmt.Errorf("failed to create gauge %q: %w", cpuGaugeName, err)
	}

	_, err = meter.Int64ObservableGauge(goroutineGaugeName,
		otelmetric.WithDescription("Number of goroutines in the exporter"),
		otelmetric.WithInt64Callback(func(_ context.Context, o otelmetric.Int64Observer) error {
			o.Observe(m.goroutines.Load())
			return nil
		}))
	if err != nil {
		return fmt.Errorf("failed to create gauge %q: %w", goroutineGaugeName, err)
	}

	_, err = meter.Int64ObservableGauge(heapAllocGaugeName,
		otelmetric.WithDescription("Bytes of allocated heap objects"),
		otelmetric.WithInt64Callback(func(_ context.Context, o otelmetric.Int64Observer) error {
			o.Observe(int64(m.heapAlloc.Load()))
			return nil
		}))
	if err != nil {
		return fmt.Errorf("failed to create gauge %q: %w", heapAllocGaugeName, err)
	}

	return nil
}

// Run samples resource usage until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	// Immediate first collection
	m.collect()

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("monitor shutdown complete")
			return nil
		case <-ticker.C:
			m.collect()
		}
	}
}

// collect reads current usage, stores it for the gauges and logs it.
func (m *Monitor) collect() {
	processCPU, err := m.proc.CPUPercent()
	if err != nil {
		m.logger.Warn("failed to get CPU percent", "error", err)
		processCPU = 0
	}

	cores := runtime.GOMAXPROCS(-1)
	maxCPU := float64(cores * 100)

	utilization := 0.0
	if maxCPU > 0 {
		utilization = processCPU / maxCPU
	}

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	goroutines := runtime.NumGoroutine()

	m.cpu.Store(processCPU)
	m.goroutines.Store(int64(goroutines))
	m.heapAlloc.Store(ms.HeapAlloc)

	saturation := "normal"
	if utilization > 0.95 {
		saturation = "saturated"
	} else if utilization > 0.80 {
		saturation = "high"
	}

	mb := func(b uint64) float64 {
		return float64(b) / (1024 * 1024)
	}

	m.logger.LogAttrs(
		context.Background(),
		slog.LevelDebug,
		"resource",
		slog.String("cpu", fmt.Sprintf("%.4f%%", processCPU)),
		slog.String("util", fmt.Sprintf("%.4f%%", utilization*100)),
		slog.Int("cores", cores),
		slog.Int("gor", goroutines),
		slog.String("mem", fmt.Sprintf("alloc:%.2fMB sys:%.2fMB", mb(ms.HeapAlloc), mb(ms.HeapSys))),
		slog.Uint64("gc", uint64(ms.NumGC)),
		slog.String("sat", saturation),
	)

	if saturation == "saturated" {
		m.logger.Warn(
			"cpu saturation detected",
			"cpu", processCPU,
			"util_pct", utilization*100,
			"action", "reduce event rate or increase GOMAXPROCS",
		)
	}
}
