package config

import "fmt"

// ParseError reports a configuration document that is not valid syntax or
// does not match the expected schema.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("parse config: %v", e.Err)
	}
	return fmt.Sprintf("parse config %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// UnresolvedPayloadError reports a program with neither inline ebpf_data nor
// a compiled_ebpf_filename to read it from.
type UnresolvedPayloadError struct {
	Program string
}

func (e *UnresolvedPayloadError) Error() string {
	return fmt.Sprintf("program %q: cannot find ebpf program data (set ebpf_data or compiled_ebpf_filename)", e.Program)
}

// IOError reports a payload file that could not be read as text.
type IOError struct {
	Program string
	Path    string
	Err     error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("program %q: read %s: %v", e.Program, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }
