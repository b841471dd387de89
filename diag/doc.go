// Package diag defines the diagnostics reported by the lambda job pass.
//
// A diagnostic is a code, a message and a source location taken from the
// sequence points of the method being processed. Codes starting with "DC"
// report problems in user code; codes starting with "DCICE" report internal
// errors of the pass and ask for a bug report.
//
// Rule violations travel as *Error values so that they can be returned
// through ordinary error paths and recovered with AsDiagnostic:
//
//	if err := check(m); err != nil {
//		if d, ok := diag.AsDiagnostic(err); ok {
//			report(d)
//		}
//	}
package diag
