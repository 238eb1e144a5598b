package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
)

// Load reads, parses and resolves a configuration file. The syntax is
// selected by FormatFor. Either a fully resolved configuration or an error is
// returned, never both.
func Load(path string) (*ExporterConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg, err := Parse(data, FormatFor(path))
	if err != nil {
		var perr *ParseError
		if errors.As(err, &perr) {
			perr.Path = path
		}
		return nil, err
	}

	if err := cfg.Resolve(); err != nil {
		return nil, fmt.Errorf("failed to resolve config %s: %w", path, err)
	}

	slog.Debug("loaded config", "path", path, "programs", len(cfg.Programs))
	return cfg, nil
}
