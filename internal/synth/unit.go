package synth

import (
	"github.com/wippyai/lambdajobs/il"
	"github.com/wippyai/lambdajobs/internal/analyzer"
	"github.com/wippyai/lambdajobs/internal/known"
)

// CapturedVariable is a variable the lambda reads from its closure,
// copied into a field of the job struct.
type CapturedVariable struct {
	// Path is the field chain from the lambda's display class to the
	// variable. Every element but the last holds an enclosing closure.
	Path  []*il.FieldRef
	Field *il.FieldDef
	// Written is set when the lambda stores to the variable or takes its
	// address.
	Written bool
}

// Name returns the name of the variable in source.
func (v *CapturedVariable) Name() string {
	return v.Path[len(v.Path)-1].Name
}

// ComponentAccess is a ComponentDataFromEntity<T> the job uses in place
// of SystemBase.GetComponent<T> and its siblings.
type ComponentAccess struct {
	Type     *il.TypeRef
	Field    *il.FieldDef
	ReadOnly bool
}

// Unit is the synthesized job for one chain.
type Unit struct {
	Chain *analyzer.Chain
	// Type is the job struct, not yet attached to the system.
	Type *il.TypeDef

	// Lambda is OriginalLambdaBody: the cloned lambda, or a relay to the
	// lambda when it stays on the system.
	Lambda   *il.MethodDef
	Cloned   []*il.MethodDef
	Captured []*CapturedVariable
	Access   []*ComponentAccess

	// SystemInstance is set when the lambda stays on the system and the
	// job calls it through this field.
	SystemInstance *il.FieldDef

	ScheduleTimeInitialize *il.MethodDef
	ReadFromDisplayClass   *il.MethodDef
	WriteToDisplayClass    *il.MethodDef
	DeallocateOnCompletion *il.MethodDef
	Execute                *il.MethodDef
	IterateEntities        *il.MethodDef
	RunWithoutJobSystem    *il.MethodDef
	PerformLambda          *il.MethodDef

	RunDelegateType       *il.TypeRef
	RunDelegateNoBurst    *il.FieldDef
	RunDelegateBurst      *il.FieldDef
	PerformLambdaDelegate *il.FieldDef

	// Query is the EntityQuery field to add to the system; nil for Job.
	Query *il.FieldDef
	// CreateInit is appended to OnCreateForCompiler: it builds the query
	// and the run delegates.
	CreateInit []*il.Instruction

	s        *Synthesizer
	im       *known.Imports
	opts     Options
	elements []*element
	// providers and runtimes are the nested structs holding one value
	// provider and one runtime per lambda parameter.
	providers      *il.TypeDef
	runtimes       *il.TypeDef
	providersField *il.FieldDef
	cctor          *il.MethodDef
}

// Commit attaches the job struct and the query field to the system.
func (u *Unit) Commit() {
	containing := u.Chain.Containing()
	containing.AddNested(u.Type)
	if u.Query != nil {
		containing.AddField(u.Query)
	}
}

// Self returns a reference to the job struct.
func (u *Unit) Self() *il.TypeRef {
	return u.Type.Ref()
}

// ScheduleTimeInitializeRef returns the reference the call site invokes.
func (u *Unit) ScheduleTimeInitializeRef() *il.MethodRef {
	return u.ScheduleTimeInitialize.Ref()
}

// ClosureAsStruct reports whether the unit was built for closures that
// the rewriter turns into value types.
func (u *Unit) ClosureAsStruct() bool {
	return u.opts.ClosureAsStruct
}
