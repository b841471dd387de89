package engine

import "github.com/wippyai/lambdajobs/diag"

// Job describes one rewritten chain.
type Job struct {
	System string `json:"system" yaml:"system" cbor:"system"`
	Method string `json:"method" yaml:"method" cbor:"method"`
	// Struct is the name of the generated job struct.
	Struct string `json:"struct" yaml:"struct" cbor:"struct"`
	Kind   string `json:"kind" yaml:"kind" cbor:"kind"`
	Mode   string `json:"mode" yaml:"mode" cbor:"mode"`
	Burst  bool   `json:"burst" yaml:"burst" cbor:"burst"`
	// ClosureAsStruct is set when the closure of the chain was turned
	// into a value type.
	ClosureAsStruct bool `json:"closure_as_struct,omitempty" yaml:"closure_as_struct,omitempty" cbor:"closure_as_struct,omitempty"`
}

// Report is the outcome of processing a module.
type Report struct {
	Module      string            `json:"module" yaml:"module" cbor:"module"`
	Systems     int               `json:"systems" yaml:"systems" cbor:"systems"`
	Jobs        []Job             `json:"jobs,omitempty" yaml:"jobs,omitempty" cbor:"jobs,omitempty"`
	Diagnostics []diag.Diagnostic `json:"diagnostics,omitempty" yaml:"diagnostics,omitempty" cbor:"diagnostics,omitempty"`
}

// HasErrors reports whether any diagnostic is an error.
func (r *Report) HasErrors() bool {
	for _, d := range r.Diagnostics {
		if d.Severity == diag.SeverityError {
			return true
		}
	}
	return false
}

// Errors returns the error diagnostics.
func (r *Report) Errors() []diag.Diagnostic {
	var out []diag.Diagnostic
	for _, d := range r.Diagnostics {
		if d.Severity == diag.SeverityError {
			out = append(out, d)
		}
	}
	return out
}
