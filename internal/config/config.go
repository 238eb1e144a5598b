package config

// ExporterConfig is the resolved exporter configuration document.
type ExporterConfig struct {
	Programs []ProgramConfig `yaml:"programs" json:"programs"`
}

// ProgramConfig describes one collection program and the counters it emits.
//
// After resolution EBPFData always holds the program payload, either as
// written inline or as read from CompiledEBPFFilename.
type ProgramConfig struct {
	Name                 string        `yaml:"name" json:"name"`
	Metrics              MetricsConfig `yaml:"metrics" json:"metrics"`
	EBPFData             string        `yaml:"ebpf_data" json:"ebpf_data"`
	CompiledEBPFFilename string        `yaml:"compiled_ebpf_filename" json:"compiled_ebpf_filename"`
}

// MetricsConfig holds the metric declarations of a program.
type MetricsConfig struct {
	Counters []CounterConfig `yaml:"counters" json:"counters"`
}

// CounterConfig declares one exposed counter.
type CounterConfig struct {
	Name        string        `yaml:"name" json:"name"`
	Description string        `yaml:"description" json:"description"`
	Labels      []LabelConfig `yaml:"labels" json:"labels"`
}

// LabelConfig declares a label attached to a counter's samples.
type LabelConfig struct {
	Name string `yaml:"name" json:"name"`
	From string `yaml:"from" json:"from"`
}

// Source returns the event field the label value is read from.
func (l LabelConfig) Source() string {
	if l.From == "" {
		return l.Name
	}
	return l.From
}

// LabelNames returns the counter's label names in declaration order.
func (c CounterConfig) LabelNames() []string {
	names := make([]string, len(c.Labels))
	for i, l := range c.Labels {
		names[i] = l.Name
	}
	return names
}

// Program returns the program with the given name.
func (c *ExporterConfig) Program(name string) (ProgramConfig, bool) {
	for _, p := range c.Programs {
		if p.Name == name {
			return p, true
		}
	}
	return ProgramConfig{}, false
}

// applyDefaults normalizes absent optional sequences to empty ones so that
// documents parsed from either syntax compare equal.
func (c *ExporterConfig) applyDefaults() {
	for i := range c.Programs {
		m := &c.Programs[i].Metrics
		if m.Counters == nil {
			m.Counters = []CounterConfig{}
		}
		for j := range m.Counters {
			if m.Counters[j].Labels == nil {
				m.Counters[j].Labels = []LabelConfig{}
			}
		}
	}
}
