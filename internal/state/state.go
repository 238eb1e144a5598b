// Package state owns the process-wide metrics registry and execution context.
//
// A State is created once at startup, shared by reference with every
// producer and exposition handler, and shut down once before exit.
package state

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/atomic"
)

const (
	stateActive int32 = iota
	stateShutDown
)

// providerShutdownTimeout bounds the final meter provider flush.
const providerShutdownTimeout = 5 * time.Second

// State holds the metrics registry, the meter provider feeding it and the
// executor running producer tasks.
type State struct {
	registry *prometheus.Registry
	provider *sdkmetric.MeterProvider
	executor *Executor

	// mu orders Spawn against Shutdown so no task starts after draining began.
	mu     sync.RWMutex
	status atomic.Int32
	done   chan struct{}
}

type options struct {
	workers    int
	attributes []attribute.KeyValue
	registry   *prometheus.Registry
}

// Option configures New.
type Option func(*options)

// WithWorkers limits how many tasks run at once. Zero or less means no limit.
func WithWorkers(n int) Option {
	return func(o *options) { o.workers = n }
}

// WithResourceAttributes adds attributes to the exporter resource.
func WithResourceAttributes(attrs ...attribute.KeyValue) Option {
	return func(o *options) { o.attributes = append(o.attributes, attrs...) }
}

// WithRegistry uses reg instead of a fresh registry.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(o *options) { o.registry = reg }
}

// New creates the exporter state. Any error is an *InitError and should be
// treated as fatal.
func New(opts ...Option) (*State, error) {
	var o options
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}

	reg := o.registry
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	res, err := createResource(o.attributes)
	if err != nil {
		return nil, &InitError{Op: "resource", Err: err}
	}

	provider, err := createMeterProvider(reg, res)
	if err != nil {
		return nil, &InitError{Op: "meter provider", Err: err}
	}

	s := &State{
		registry: reg,
		provider: provider,
		executor: newExecutor(o.workers),
		done:     make(chan struct{}),
	}

	slog.Info("initialized exporter state",
		"identity", fmt.Sprintf("%s=%s", IdentityKey, IdentityValue),
		"workers", s.executor.workers)

	return s, nil
}

// MustNew is New for callers that cannot continue without a state.
func MustNew(opts ...Option) *State {
	s, err := New(opts...)
	if err != nil {
		panic(err)
	}
	return s
}

// Meter returns a meter whose instruments are exported through the registry.
func (s *State) Meter(name string) metric.Meter {
	s.mustBeActive("meter")
	return s.provider.Meter(name)
}

// Gather returns a snapshot of every metric family in the registry, sorted
// by name. It is safe to call concurrently with producer updates. Collection
// errors are logged and whatever could be gathered is returned.
func (s *State) Gather() []*dto.MetricFamily {
	s.mustBeActive("gather")
	return s.gather()
}

// Gatherer adapts the state for exposition handlers. After Shutdown the
// returned gatherer reports ErrShutDown.
func (s *State) Gatherer() prometheus.Gatherer {
	s.mustBeActive("gatherer")

	return prometheus.GathererFunc(func() ([]*dto.MetricFamily, error) {
		if s.status.Load() != stateActive {
			return nil, ErrShutDown
		}
		return s.gather(), nil
	})
}

func (s *State) gather() []*dto.MetricFamily {
	mfs, err := s.registry.Gather()
	if err != nil {
		slog.Warn("gather reported collection errors", "error", err)
	}
	return mfs
}

// Registerer exposes the registry for collectors outside the meter
// provider, such as scrape handler instrumentation.
func (s *State) Registerer() prometheus.Registerer {
	s.mustBeActive("registerer")
	return s.registry
}

// Spawn runs task on the shared executor. The task's context is cancelled
// by Shutdown.
func (s *State) Spawn(task Task) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.status.Load() != stateActive {
		return ErrShutDown
	}
	return s.executor.tryGo(task)
}

// Shutdown cancels every task and drains the executor and meter provider in
// the background. It returns once draining has been started; Done is closed
// when it finishes. The state cannot be used afterwards.
func (s *State) Shutdown() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.status.CompareAndSwap(stateActive, stateShutDown) {
		return ErrShutDown
	}

	slog.Info("shutting down exporter state")
	s.executor.stop()

	go s.drain()
	return nil
}

// Done is closed once background draining after Shutdown has completed.
func (s *State) Done() <-chan struct{} {
	return s.done
}

func (s *State) drain() {
	defer close(s.done)

	if err := s.executor.wait(); err != nil {
		slog.Warn("tasks exited with error", "error", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), providerShutdownTimeout)
	defer cancel()

	if err := s.provider.Shutdown(ctx); err != nil {
		slog.Warn("meter provider shutdown failed", "error", err)
	}

	slog.Info("exporter state drained")
}

func (s *State) mustBeActive(op string) {
	if s.status.Load() != stateActive {
		panic(fmt.Sprintf("state: %s called after shutdown", op))
	}
}
