package metric

import (
	"context"
	"testing"
	"time"

	"github.com/eunomia-bpf/eunomia-exporter/internal/config"
	"github.com/eunomia-bpf/eunomia-exporter/internal/ingest"
	"github.com/eunomia-bpf/eunomia-exporter/internal/state"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newState(t *testing.T) *state.State {
	t.Helper()
	s, err := state.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, s.Shutdown())
		select {
		case <-s.Done():
		case <-time.After(10 * time.Second):
			t.Error("state did not drain")
		}
	})
	return s
}

func family(t *testing.T, s *state.State, name string) *dto.MetricFamily {
	t.Helper()
	var found *dto.MetricFamily
	for _, mf := range s.Gather() {
		if mf.GetName() == name {
			require.Nil(t, found, "family %q gathered twice", name)
			found = mf
		}
	}
	require.NotNil(t, found, "family %q not gathered", name)
	return found
}

func labels(m *dto.Metric) map[string]string {
	out := make(map[string]string, len(m.GetLabel()))
	for _, lp := range m.GetLabel() {
		out[lp.GetName()] = lp.GetValue()
	}
	return out
}

func valueOf(v float64) *float64 { return &v }

func opensnoopConfig() *config.ExporterConfig {
	return &config.ExporterConfig{Programs: []config.ProgramConfig{
		{
			Name:     "opensnoop",
			EBPFData: "{}",
			Metrics: config.MetricsConfig{Counters: []config.CounterConfig{
				{
					Name:        "eunomia_file_open_counter",
					Description: "files opened",
					Labels: []config.LabelConfig{
						{Name: "pid"},
						{Name: "filename", From: "fname"},
					},
				},
			}},
		},
		{
			Name:     "bindsnoop",
			EBPFData: "{}",
			Metrics: config.MetricsConfig{Counters: []config.CounterConfig{
				{Name: "eunomia_bind_counter", Labels: []config.LabelConfig{}},
			}},
		},
	}}
}

func TestHandleRecordsLabelsFromFields(t *testing.T) {
	s := newState(t)
	reg, err := New(opensnoopConfig(), s.Meter("test"))
	require.NoError(t, err)

	h, ok := reg.Program("opensnoop")
	require.True(t, ok)

	ctx := context.Background()
	h.Handle(ctx, ingest.Event{Program: "opensnoop", Fields: map[string]any{"pid": float64(42), "fname": "/etc/passwd", "comm": "cat"}})
	h.Handle(ctx, ingest.Event{Program: "opensnoop", Fields: map[string]any{"pid": float64(42), "fname": "/etc/passwd"}})
	h.Handle(ctx, ingest.Event{Program: "opensnoop", Value: valueOf(3), Fields: map[string]any{"pid": "7"}})

	mf := family(t, s, "eunomia_file_open_counter")
	assert.Equal(t, "files opened", mf.GetHelp())
	require.Len(t, mf.GetMetric(), 2)

	got := map[string]float64{}
	for _, m := range mf.GetMetric() {
		l := labels(m)
		require.Contains(t, l, "pid")
		require.Contains(t, l, "filename")
		assert.NotContains(t, l, "comm")
		got[l["pid"]+"|"+l["filename"]] = m.GetCounter().GetValue()
	}
	assert.Equal(t, map[string]float64{
		"42|/etc/passwd": 2,
		"7|":             3,
	}, got)
}

func TestRegistryHandleRoutesByProgram(t *testing.T) {
	s := newState(t)
	reg, err := New(opensnoopConfig(), s.Meter("test"))
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, reg.Handle(ctx, ingest.Event{Program: "bindsnoop"}))
	require.NoError(t, reg.Handle(ctx, ingest.Event{Program: "bindsnoop"}))
	assert.Error(t, reg.Handle(ctx, ingest.Event{Program: "unknown"}))

	mf := family(t, s, "eunomia_bind_counter")
	require.Len(t, mf.GetMetric(), 1)
	assert.Equal(t, float64(2), mf.GetMetric()[0].GetCounter().GetValue())
}

func TestHandleDropsNegativeValues(t *testing.T) {
	s := newState(t)
	reg, err := New(opensnoopConfig(), s.Meter("test"))
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, reg.Handle(ctx, ingest.Event{Program: "bindsnoop", Value: valueOf(2)}))
	require.NoError(t, reg.Handle(ctx, ingest.Event{Program: "bindsnoop", Value: valueOf(-5)}))

	mf := family(t, s, "eunomia_bind_counter")
	assert.Equal(t, float64(2), mf.GetMetric()[0].GetCounter().GetValue())
}

func TestHandleExplicitZeroValue(t *testing.T) {
	s := newState(t)
	reg, err := New(opensnoopConfig(), s.Meter("test"))
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, reg.Handle(ctx, ingest.Event{Program: "bindsnoop"}))
	require.NoError(t, reg.Handle(ctx, ingest.Event{Program: "bindsnoop", Value: valueOf(0)}))

	mf := family(t, s, "eunomia_bind_counter")
	assert.Equal(t, float64(1), mf.GetMetric()[0].GetCounter().GetValue())
}

func TestAdd(t *testing.T) {
	s := newState(t)
	reg, err := New(opensnoopConfig(), s.Meter("test"))
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, reg.Add(ctx, "eunomia_file_open_counter", 4, map[string]string{
		"pid":      "1",
		"filename": "/tmp/x",
		"extra":    "ignored",
	}))
	assert.Error(t, reg.Add(ctx, "missing", 1, nil))
	assert.Error(t, reg.Add(ctx, "eunomia_file_open_counter", -1, nil))

	mf := family(t, s, "eunomia_file_open_counter")
	require.Len(t, mf.GetMetric(), 1)
	assert.Equal(t, map[string]string{"pid": "1", "filename": "/tmp/x"}, labels(mf.GetMetric()[0]))
	assert.Equal(t, float64(4), mf.GetMetric()[0].GetCounter().GetValue())

	assert.Equal(t, []string{"eunomia_bind_counter", "eunomia_file_open_counter"}, reg.Counters())
}

func TestSharedCounterAcrossPrograms(t *testing.T) {
	s := newState(t)
	cfg := &config.ExporterConfig{Programs: []config.ProgramConfig{
		{Name: "a", Metrics: config.MetricsConfig{Counters: []config.CounterConfig{
			{Name: "events", Labels: []config.LabelConfig{{Name: "pid"}}},
		}}},
		{Name: "b", Metrics: config.MetricsConfig{Counters: []config.CounterConfig{
			{Name: "events", Labels: []config.LabelConfig{{Name: "pid", From: "tgid"}}},
		}}},
	}}
	reg, err := New(cfg, s.Meter("test"))
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, reg.Handle(ctx, ingest.Event{Program: "a", Fields: map[string]any{"pid": "1"}}))
	require.NoError(t, reg.Handle(ctx, ingest.Event{Program: "b", Fields: map[string]any{"tgid": "1"}}))

	mf := family(t, s, "events")
	require.Len(t, mf.GetMetric(), 1)
	assert.Equal(t, float64(2), mf.GetMetric()[0].GetCounter().GetValue())
}

func TestNewRejectsConflictingDeclarations(t *testing.T) {
	s := newState(t)

	conflicting := &config.ExporterConfig{Programs: []config.ProgramConfig{
		{Name: "a", Metrics: config.MetricsConfig{Counters: []config.CounterConfig{
			{Name: "events", Labels: []config.LabelConfig{{Name: "pid"}}},
		}}},
		{Name: "b", Metrics: config.MetricsConfig{Counters: []config.CounterConfig{
			{Name: "events", Labels: []config.LabelConfig{{Name: "comm"}}},
		}}},
	}}
	_, err := New(conflicting, s.Meter("conflicting"))
	assert.ErrorContains(t, err, `counter "events" redeclared`)

	duplicate := &config.ExporterConfig{Programs: []config.ProgramConfig{{Name: "a"}, {Name: "a"}}}
	_, err = New(duplicate, s.Meter("duplicate"))
	assert.ErrorContains(t, err, `duplicate program "a"`)
}

func TestFormatValue(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{nil, ""},
		{"cat", "cat"},
		{float64(4242), "4242"},
		{float64(1.5), "1.5"},
		{true, "true"},
		{int64(-3), "-3"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, formatValue(tt.in))
	}
}
