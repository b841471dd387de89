package diag

import (
	stderrors "errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/wippyai/lambdajobs/il"
)

// Code identifies a diagnostic.
type Code string

// Internal reports whether the code signals a defect in the pass itself.
func (c Code) Internal() bool {
	return strings.HasPrefix(string(c), "DCICE")
}

// Severity of a diagnostic.
type Severity uint8

const (
	SeverityError Severity = iota
	SeverityWarning
)

func (s Severity) String() string {
	if s == SeverityWarning {
		return "warning"
	}
	return "error"
}

// MarshalText renders the severity for JSON, YAML and CBOR reports.
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Location is a position in a source document.
type Location struct {
	File   string `json:"file,omitempty" yaml:"file,omitempty" cbor:"file,omitempty"`
	Line   int    `json:"line,omitempty" yaml:"line,omitempty" cbor:"line,omitempty"`
	Column int    `json:"column,omitempty" yaml:"column,omitempty" cbor:"column,omitempty"`
}

// Known reports whether the location names a document.
func (l Location) Known() bool {
	return l.File != ""
}

func (l Location) String() string {
	if !l.Known() {
		return ""
	}
	return l.File + "(" + strconv.Itoa(l.Line) + "," + strconv.Itoa(l.Column) + ")"
}

// Diagnostic is a single reported problem.
type Diagnostic struct {
	Location Location `json:"location" yaml:"location" cbor:"location"`
	Code     Code     `json:"code,omitempty" yaml:"code,omitempty" cbor:"code,omitempty"`
	Message  string   `json:"message" yaml:"message" cbor:"message"`
	Method   string   `json:"method,omitempty" yaml:"method,omitempty" cbor:"method,omitempty"`
	Severity Severity `json:"severity" yaml:"severity" cbor:"severity"`
}

// String formats the diagnostic the way compilers print them:
// "file(line,col): error CODE: message".
func (d Diagnostic) String() string {
	var b strings.Builder
	if d.Location.Known() {
		b.WriteString(d.Location.String())
		b.WriteString(": ")
	}
	b.WriteString(d.Severity.String())
	if d.Code != "" {
		b.WriteByte(' ')
		b.WriteString(string(d.Code))
	}
	b.WriteString(": ")
	b.WriteString(d.Message)
	return b.String()
}

// Error carries a diagnostic through error returns.
type Error struct {
	Diagnostic Diagnostic
}

func (e *Error) Error() string {
	return e.Diagnostic.String()
}

// AsDiagnostic extracts the diagnostic wrapped in err.
func AsDiagnostic(err error) (Diagnostic, bool) {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Diagnostic, true
	}
	return Diagnostic{}, false
}

// IsCode reports whether err carries a diagnostic with the given code.
func IsCode(err error, code Code) bool {
	d, ok := AsDiagnostic(err)
	return ok && d.Code == code
}

const internalSuffix = " Seeing this error indicates a bug in the lambda job post-processor. Please file a bug report."

// At returns the source location of ins inside m, walking back to the
// nearest visible sequence point.
func At(m *il.MethodDef, ins *il.Instruction) Location {
	if m == nil || m.Body == nil {
		return Location{}
	}
	sp, ok := m.Body.FindSequencePoint(ins)
	if !ok {
		return Location{}
	}
	return Location{File: sp.Document, Line: sp.Line, Column: sp.Column}
}

// New builds a diagnostic for code located at ins inside m. The message is
// rendered from the code's catalog entry with args.
func New(code Code, m *il.MethodDef, ins *il.Instruction, args ...any) Diagnostic {
	d := Diagnostic{
		Code:     code,
		Location: At(m, ins),
		Message:  format(code, args...),
		Severity: severityOf(code),
	}
	if m != nil {
		d.Method = m.FullName()
	}
	return d
}

// Raise builds a diagnostic like New and wraps it as an error.
func Raise(code Code, m *il.MethodDef, ins *il.Instruction, args ...any) error {
	return &Error{Diagnostic: New(code, m, ins, args...)}
}

// Unexpected converts a failure that is not a diagnostic into one located
// at the first sequence point of m.
func Unexpected(m *il.MethodDef, cause any) Diagnostic {
	d := Diagnostic{Severity: SeverityError}
	name := "<unknown>"
	if m != nil {
		d.Location = At(m, nil)
		d.Method = m.FullName()
		name = m.Name
		if m.DeclaringType != nil {
			name = m.DeclaringType.Name + ":" + m.Name
		}
	}
	d.Message = fmt.Sprintf("Unexpected error while post-processing %s. Please report this error.\n%v", name, cause)
	return d
}

func format(code Code, args ...any) string {
	tmpl, ok := catalog[code]
	if !ok {
		tmpl = "%v"
	}
	var msg string
	if strings.Contains(tmpl, "%") {
		msg = fmt.Sprintf(tmpl, args...)
	} else {
		msg = tmpl
	}
	if code.Internal() {
		msg += internalSuffix
	}
	return msg
}

func severityOf(code Code) Severity {
	if code == DC0032 {
		return SeverityWarning
	}
	return SeverityError
}
