package config

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"unicode/utf8"
)

var errNotText = errors.New("file is not valid UTF-8 text")

// Resolve fills every program's EBPFData in place. Relative payload
// references are read relative to the working directory.
func (c *ExporterConfig) Resolve() error {
	return c.ResolveWithin("")
}

// ResolveWithin is Resolve with relative payload references read from baseDir.
//
// Inline ebpf_data takes precedence and compiled_ebpf_filename is then never
// read. On error c is left unchanged.
func (c *ExporterConfig) ResolveWithin(baseDir string) error {
	resolved := make([]ProgramConfig, len(c.Programs))
	copy(resolved, c.Programs)

	for i := range resolved {
		prog := &resolved[i]
		if prog.EBPFData != "" {
			if prog.CompiledEBPFFilename != "" {
				slog.Debug("inline ebpf_data shadows compiled_ebpf_filename",
					"program", prog.Name,
					"file", prog.CompiledEBPFFilename)
			}
			continue
		}
		if prog.CompiledEBPFFilename == "" {
			return &UnresolvedPayloadError{Program: prog.Name}
		}

		data, err := readPayload(baseDir, prog.CompiledEBPFFilename)
		if err != nil {
			return &IOError{Program: prog.Name, Path: prog.CompiledEBPFFilename, Err: err}
		}
		prog.EBPFData = data

		slog.Debug("resolved ebpf payload",
			"program", prog.Name,
			"file", prog.CompiledEBPFFilename,
			"bytes", len(data))
	}

	c.Programs = resolved
	return nil
}

// readPayload reads a payload file as text.
func readPayload(baseDir, name string) (string, error) {
	path := name
	if baseDir != "" && !filepath.IsAbs(name) {
		path = filepath.Join(baseDir, name)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(data) {
		return "", errNotText
	}
	return string(data), nil
}
