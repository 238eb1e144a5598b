package config

import (
	"fmt"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"go.yaml.in/yaml/v4"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Format is a configuration document syntax.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatFor selects the document syntax from the file suffix: ".json" is
// parsed as JSON, anything else as YAML. The match is case-sensitive.
func FormatFor(path string) Format {
	if strings.HasSuffix(path, ".json") {
		return FormatJSON
	}
	return FormatYAML
}

// Parse decodes a configuration document, fills defaults and checks the
// schema. Payloads are not resolved.
func Parse(data []byte, format Format) (*ExporterConfig, error) {
	var raw rawConfig

	switch format {
	case FormatJSON:
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, &ParseError{Err: fmt.Errorf("invalid JSON: %w", err)}
		}
	case FormatYAML:
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, &ParseError{Err: fmt.Errorf("invalid YAML: %w", err)}
		}
	default:
		return nil, &ParseError{Err: fmt.Errorf("unsupported format %q", format)}
	}

	cfg, err := raw.toConfig()
	if err != nil {
		return nil, &ParseError{Err: err}
	}

	cfg.applyDefaults()

	if err := validate(cfg); err != nil {
		return nil, &ParseError{Err: err}
	}

	return cfg, nil
}

// Marshal serializes a configuration in the given syntax. Parsing the output
// yields a configuration equal to cfg.
func Marshal(cfg *ExporterConfig, format Format) ([]byte, error) {
	switch format {
	case FormatJSON:
		return json.MarshalIndent(cfg, "", "  ")
	case FormatYAML:
		return yaml.Marshal(cfg)
	default:
		return nil, fmt.Errorf("unsupported format %q", format)
	}
}
