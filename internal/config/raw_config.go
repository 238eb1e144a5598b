package config

import "fmt"

// rawConfig is the decoded document before required keys are checked.
// Pointer fields distinguish an absent key from an empty value.
type rawConfig struct {
	Programs *[]rawProgram `yaml:"programs" json:"programs"`
}

// rawProgram is a program entry as written.
type rawProgram struct {
	Name                 string         `yaml:"name" json:"name"`
	Metrics              *MetricsConfig `yaml:"metrics" json:"metrics"`
	EBPFData             string         `yaml:"ebpf_data" json:"ebpf_data"`
	CompiledEBPFFilename string         `yaml:"compiled_ebpf_filename" json:"compiled_ebpf_filename"`
}

// toConfig checks that every required key is present and converts the raw
// document into an ExporterConfig.
func (r *rawConfig) toConfig() (*ExporterConfig, error) {
	if r.Programs == nil {
		return nil, fmt.Errorf("missing required key %q", "programs")
	}

	cfg := &ExporterConfig{Programs: make([]ProgramConfig, len(*r.Programs))}
	for i, p := range *r.Programs {
		if p.Metrics == nil {
			return nil, fmt.Errorf("program at index %d: missing required key %q", i, "metrics")
		}
		cfg.Programs[i] = ProgramConfig{
			Name:                 p.Name,
			Metrics:              *p.Metrics,
			EBPFData:             p.EBPFData,
			CompiledEBPFFilename: p.CompiledEBPFFilename,
		}
	}

	return cfg, nil
}
