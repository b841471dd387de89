package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Phase names the step of the pass that failed.
type Phase string

const (
	PhaseLoad       Phase = "load"       // reading module files
	PhaseConfig     Phase = "config"     // configuration
	PhaseDecode     Phase = "decode"     // binary module to model
	PhaseValidate   Phase = "validate"   // stack and operand checks
	PhaseAnalyze    Phase = "analyze"    // chain discovery
	PhaseSynthesize Phase = "synthesize" // job struct generation
	PhaseRewrite    Phase = "rewrite"    // call-site splicing
	PhaseEncode     Phase = "encode"     // model to binary module
)

// Kind categorizes the error.
type Kind string

const (
	KindInvalidData  Kind = "invalid_data"
	KindInvalidInput Kind = "invalid_input"
	KindNotFound     Kind = "not_found"
	KindOutOfBounds  Kind = "out_of_bounds"
	KindOverflow     Kind = "overflow"
	KindStack        Kind = "stack_imbalance"
	KindInternal     Kind = "internal"
)

// Error is a failure of the pass or of its input, as opposed to a rule
// violation in user code.
type Error struct {
	Value any
	Cause error
	Phase Phase
	Kind  Kind
	// Member is the type or method the error concerns, in
	// Namespace.Type::method form.
	Member string
	Detail string
	// Path locates the failing item inside the module, outermost first.
	Path []string
}

// Error renders "phase kind at path in member: detail: cause", leaving
// out the parts that are empty.
func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Phase))
	b.WriteByte(' ')
	b.WriteString(string(e.Kind))
	if len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(strings.Join(e.Path, "/"))
	}
	if e.Member != "" {
		b.WriteString(" in ")
		b.WriteString(e.Member)
	}
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches a target *Error on Phase and Kind. An empty field of the
// target matches any value.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return (t.Phase == "" || t.Phase == e.Phase) && (t.Kind == "" || t.Kind == e.Kind)
}

// KindOf returns the kind of the first *Error in err's chain, or "".
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Builder assembles an Error.
type Builder struct {
	err Error
}

func New(phase Phase, kind Kind) *Builder {
	return &Builder{err: Error{Phase: phase, Kind: kind}}
}

func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
	return b
}

func (b *Builder) Member(name string) *Builder {
	b.err.Member = name
	return b
}

func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the message, formatting it when args are given.
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		msg = fmt.Sprintf(msg, args...)
	}
	b.err.Detail = msg
	return b
}

func (b *Builder) Build() *Error {
	err := b.err
	return &err
}

// NotFound reports a member that does not resolve.
func NotFound(phase Phase, member string) *Error {
	return &Error{Phase: phase, Kind: KindNotFound, Member: member, Detail: "not found"}
}

// OutOfBounds reports an index past the end of a table of the module.
func OutOfBounds(phase Phase, path []string, index, length int) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindOutOfBounds,
		Path:   path,
		Value:  index,
		Detail: fmt.Sprintf("index %d out of range [0,%d)", index, length),
	}
}

// Overflow reports a value too large for target.
func Overflow(phase Phase, path []string, value any, target string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindOverflow,
		Path:   path,
		Value:  value,
		Detail: fmt.Sprintf("%v exceeds %s limit", value, target),
	}
}

// InvalidData reports malformed module content.
func InvalidData(phase Phase, path []string, detail string) *Error {
	return &Error{Phase: phase, Kind: KindInvalidData, Path: path, Detail: detail}
}

// InvalidInput reports a bad argument from the caller.
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{Phase: phase, Kind: KindInvalidInput, Detail: detail}
}

// Internal reports a broken invariant of the pass itself.
func Internal(phase Phase, detail string, args ...any) *Error {
	return &Error{Phase: phase, Kind: KindInternal, Detail: fmt.Sprintf(detail, args...)}
}

// Wrap attaches phase, kind and detail to cause.
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{Phase: phase, Kind: kind, Detail: detail, Cause: cause}
}
