// Package metric registers configured counters on the exporter meter and
// updates them from program events.
package metric

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/eunomia-bpf/eunomia-exporter/internal/config"
	"github.com/eunomia-bpf/eunomia-exporter/internal/ingest"
	"go.opentelemetry.io/otel/attribute"
	otelmetric "go.opentelemetry.io/otel/metric"
)

// Registry holds the counters of every configured program.
type Registry struct {
	counters map[string]*counter
	handlers map[string]*Handler
}

// Handler updates the counters of one program.
type Handler struct {
	program  string
	counters []*counter
}

// New registers one counter instrument per configured counter name. Programs
// declaring the same counter name share the instrument.
func New(cfg *config.ExporterConfig, meter otelmetric.Meter) (*Registry, error) {
	r := &Registry{
		counters: make(map[string]*counter),
		handlers: make(map[string]*Handler, len(cfg.Programs)),
	}

	for _, prog := range cfg.Programs {
		if _, exists := r.handlers[prog.Name]; exists {
			return nil, fmt.Errorf("duplicate program %q", prog.Name)
		}
		h := &Handler{program: prog.Name}

		for _, counterCfg := range prog.Metrics.Counters {
			c, exists := r.counters[counterCfg.Name]
			if exists && !sameLabels(c.labels, counterCfg.Labels) {
				return nil, fmt.Errorf("program %q: counter %q redeclared with labels %v, first declared with %v",
					prog.Name, counterCfg.Name, counterCfg.LabelNames(), labelNames(c.labels))
			}
			if !exists {
				instrument, err := meter.Float64Counter(
					counterCfg.Name,
					otelmetric.WithDescription(counterCfg.Description),
				)
				if err != nil {
					return nil, fmt.Errorf("failed to create counter %q: %w", counterCfg.Name, err)
				}
				c = &counter{
					name:       counterCfg.Name,
					instrument: instrument,
					labels:     counterCfg.Labels,
				}
				r.counters[counterCfg.Name] = c

				slog.Info("registered counter",
					"program", prog.Name,
					"name", counterCfg.Name,
					"labels", counterCfg.LabelNames())
			}
			// Same instrument, but label values come from this program's fields.
			h.counters = append(h.counters, &counter{
				name:       c.name,
				instrument: c.instrument,
				labels:     counterCfg.Labels,
			})
		}

		r.handlers[prog.Name] = h
	}

	return r, nil
}

// Program returns the handler for the named program.
func (r *Registry) Program(name string) (*Handler, bool) {
	h, ok := r.handlers[name]
	return h, ok
}

// Handle routes an event to its program's handler.
func (r *Registry) Handle(ctx context.Context, ev ingest.Event) error {
	h, ok := r.handlers[ev.Program]
	if !ok {
		return fmt.Errorf("event for unknown program %q", ev.Program)
	}
	h.Handle(ctx, ev)
	return nil
}

// Add increments a counter by value with explicit label values. Labels the
// counter does not declare are ignored.
func (r *Registry) Add(ctx context.Context, name string, value float64, labels map[string]string) error {
	c, ok := r.counters[name]
	if !ok {
		return fmt.Errorf("unknown counter %q", name)
	}
	if value < 0 {
		return fmt.Errorf("counter %q: negative increment %v", name, value)
	}

	attrs := make([]attribute.KeyValue, len(c.labels))
	for i, l := range c.labels {
		attrs[i] = attribute.String(l.Name, labels[l.Name])
	}
	c.instrument.Add(ctx, value, otelmetric.WithAttributes(attrs...))
	return nil
}

// Counters returns the registered counter names in sorted order.
func (r *Registry) Counters() []string {
	names := make([]string, 0, len(r.counters))
	for name := range r.counters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Handle increments every counter of the program once per event, by the
// event value or by one when it carries none.
func (h *Handler) Handle(ctx context.Context, ev ingest.Event) {
	value := 1.0
	if ev.Value != nil {
		value = *ev.Value
	}
	if value < 0 {
		slog.Warn("dropping event with negative value", "program", h.program, "value", value)
		return
	}

	for _, c := range h.counters {
		c.instrument.Add(ctx, value, otelmetric.WithAttributes(c.attributes(ev.Fields)...))
	}
}

func sameLabels(a, b []config.LabelConfig) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Name != b[i].Name {
			return false
		}
	}
	return true
}

func labelNames(labels []config.LabelConfig) []string {
	return config.CounterConfig{Labels: labels}.LabelNames()
}
