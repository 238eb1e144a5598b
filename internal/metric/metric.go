package metric

import (
	"fmt"
	"strconv"

	"github.com/eunomia-bpf/eunomia-exporter/internal/config"
	"go.opentelemetry.io/otel/attribute"
	otelmetric "go.opentelemetry.io/otel/metric"
)

// counter binds a configured counter to its instrument.
type counter struct {
	name       string
	instrument otelmetric.Float64Counter
	labels     []config.LabelConfig
}

// attributes reads the counter's label values from event fields. A missing
// field yields an empty value so every sample carries every declared label.
func (c *counter) attributes(fields map[string]any) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, len(c.labels))
	for i, l := range c.labels {
		attrs[i] = attribute.String(l.Name, formatValue(fields[l.Source()]))
	}
	return attrs
}

// formatValue renders an event field as a label value.
func formatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case bool:
		return strconv.FormatBool(val)
	case fmt.Stringer:
		return val.String()
	default:
		return fmt.Sprint(val)
	}
}
