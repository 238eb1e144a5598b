package config

import "fmt"

// validate checks the required fields of a parsed document.
func validate(cfg *ExporterConfig) error {
	for i, prog := range cfg.Programs {
		if prog.Name == "" {
			return fmt.Errorf("program at index %d: name cannot be empty", i)
		}

		for j, counter := range prog.Metrics.Counters {
			if counter.Name == "" {
				return fmt.Errorf("program %q: counter at index %d: name cannot be empty", prog.Name, j)
			}

			seen := make(map[string]bool, len(counter.Labels))
			for k, label := range counter.Labels {
				if label.Name == "" {
					return fmt.Errorf("counter %q: label at index %d: name cannot be empty", counter.Name, k)
				}
				if seen[label.Name] {
					return fmt.Errorf("counter %q: duplicate label %q", counter.Name, label.Name)
				}
				seen[label.Name] = true
			}
		}
	}

	return nil
}
