package analyzer

import (
	"github.com/samber/lo"

	"github.com/wippyai/lambdajobs/il"
	"github.com/wippyai/lambdajobs/internal/cursor"
	"github.com/wippyai/lambdajobs/internal/known"
)

// Kind is the shape of the job body.
type Kind uint8

const (
	// KindEntities runs the lambda once per matching entity.
	KindEntities Kind = iota
	// KindJob runs the lambda once.
	KindJob
	// KindChunk runs the lambda once per matching chunk.
	KindChunk
)

func (k Kind) String() string {
	switch k {
	case KindEntities:
		return "Entities"
	case KindJob:
		return "Job"
	case KindChunk:
		return "Chunk"
	}
	return "Kind(?)"
}

// ExecutionMode selects how the job runs.
type ExecutionMode uint8

const (
	ModeSchedule ExecutionMode = iota
	ModeScheduleParallel
	ModeRun
)

func (m ExecutionMode) String() string {
	switch m {
	case ModeSchedule:
		return known.Schedule
	case ModeScheduleParallel:
		return known.ScheduleParallel
	case ModeRun:
		return known.Run
	}
	return "ExecutionMode(?)"
}

// Modifier is one construction call of a chain.
type Modifier struct {
	Name   string
	Method *il.MethodRef
	// TypeArgs are the generic arguments of the call without the
	// description type, e.g. the component types of WithAll<A, B>.
	TypeArgs []*il.TypeRef
	// Args holds the literal value of every argument after the
	// description: string, int32 or *il.FieldRef. Arguments computed at
	// run time are nil.
	Args        []any
	Instruction *il.Instruction
}

// Chain is one analysed lambda job.
type Chain struct {
	// Method is the system method containing the chain.
	Method *il.MethodDef
	Kind   Kind
	Mode   ExecutionMode

	Source    *il.Instruction
	Terminal  *il.Instruction
	Modifiers []Modifier
	// Body is the ForEach or WithCode call supplying the lambda.
	Body     *il.Instruction
	Delegate *cursor.DelegateSequence
	// Lambda is the method the lambda was compiled to.
	Lambda *il.MethodDef

	Name   string
	Number int

	WithStructuralChanges bool
	IsInSystemBase        bool
	UsesNoAlias           bool
	StoreQueryInField     *il.FieldDef

	// HasAllowedMethodInvokedWithThis is set by the synthesizer when the
	// lambda calls permitted system methods such as GetComponent.
	HasAllowedMethodInvokedWithThis bool
}

// Named returns the modifiers called name in source order.
func (c *Chain) Named(name string) []Modifier {
	return lo.Filter(c.Modifiers, func(m Modifier, _ int) bool { return m.Name == name })
}

// Has reports whether the chain calls the named modifier.
func (c *Chain) Has(name string) bool {
	return lo.ContainsBy(c.Modifiers, func(m Modifier) bool { return m.Name == name })
}

// UsesBurst reports whether the job is compiled with Burst.
func (c *Chain) UsesBurst() bool {
	if c.Has(known.WithoutBurst) || c.WithStructuralChanges {
		return false
	}
	for _, m := range c.Named(known.WithBurst) {
		if len(m.Args) == 1 {
			v, _ := m.Args[0].(int32)
			return v == 1
		}
	}
	return true
}

// BurstOptions are the arguments of WithBurst(FloatMode, FloatPrecision, bool).
type BurstOptions struct {
	FloatMode            int32
	FloatPrecision       int32
	CompileSynchronously bool
}

// Burst returns the explicit Burst options, if given.
func (c *Chain) Burst() (BurstOptions, bool) {
	for _, m := range c.Named(known.WithBurst) {
		if len(m.Args) != 3 {
			continue
		}
		mode, _ := m.Args[0].(int32)
		precision, _ := m.Args[1].(int32)
		sync, _ := m.Args[2].(int32)
		return BurstOptions{FloatMode: mode, FloatPrecision: precision, CompileSynchronously: sync != 0}, true
	}
	return BurstOptions{}, false
}

// UseImplicitSystemDependency reports whether the terminal reads and writes
// the system's Dependency instead of taking and returning a handle.
func (c *Chain) UseImplicitSystemDependency() bool {
	if !c.IsInSystemBase || c.Mode == ModeRun {
		return false
	}
	ref, _ := c.Terminal.Method()
	return ref != nil && ref.ReturnsVoid()
}

// AllowReferenceTypes reports whether captured reference types are
// tolerated: only managed code running on the calling thread may touch them.
func (c *Chain) AllowReferenceTypes() bool {
	return c.Mode == ModeRun && !c.UsesBurst()
}

// ClassName is the name of the synthesized job struct. The DisplayClass
// marker makes debuggers show its fields as locals.
func (c *Chain) ClassName() string {
	return "<>c__DisplayClass_" + c.Name
}

// CapturesLocals reports whether the lambda lives on a display class.
func (c *Chain) CapturesLocals() bool {
	return c.Delegate.CapturesLocals
}

// DisplayClass returns the closure type holding the captured locals, or
// nil when the lambda captures none.
func (c *Chain) DisplayClass() *il.TypeDef {
	if !c.Delegate.CapturesLocals {
		return nil
	}
	return c.Lambda.DeclaringType
}

// LambdaOnContainingType reports whether the lambda was compiled as a
// method of the system itself.
func (c *Chain) LambdaOnContainingType() bool {
	return c.Lambda.DeclaringType == c.Method.DeclaringType
}

// Containing returns the system type.
func (c *Chain) Containing() *il.TypeDef {
	return c.Method.DeclaringType
}

// Result pairs an analysed chain with the error that stopped it.
type Result struct {
	Chain *Chain
	Err   error
}
