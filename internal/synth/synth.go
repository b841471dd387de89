package synth

import (
	"fmt"

	"github.com/wippyai/lambdajobs/diag"
	"github.com/wippyai/lambdajobs/il"
	"github.com/wippyai/lambdajobs/internal/analyzer"
	"github.com/wippyai/lambdajobs/internal/codegen"
	"github.com/wippyai/lambdajobs/internal/known"
)

// Member names of the synthesized job struct.
const (
	originalLambdaBody     = "OriginalLambdaBody"
	hostInstance           = "hostInstance"
	scheduleTimeInitialize = "ScheduleTimeInitialize"
	readFromDisplayClass   = "ReadFromDisplayClass"
	writeToDisplayClass    = "WriteToDisplayClass"
	deallocateOnCompletion = "DeallocateOnCompletion"
	runWithoutJobSystem    = "RunWithoutJobSystem"
	execute                = "Execute"
	iterateEntities        = "IterateEntities"
	performLambda          = "PerformLambda"
	performLambdaDelegate  = "_performLambdaDelegate"
	runDelegateNoBurst     = "s_RunWithoutJobSystemDelegateFieldNoBurst"
	runDelegateBurst       = "s_RunWithoutJobSystemDelegateFieldBurst"
)

// Options tune synthesis.
type Options struct {
	// ClosureAsStruct declares that the rewriter turns the lambda's
	// display classes into value types, so generated code reaches them by
	// reference.
	ClosureAsStruct bool
}

// Synthesizer builds job structs for analysed chains. It is safe to use
// from one goroutine at a time; Imports carries the lookups it shares
// with the rewriter.
type Synthesizer struct {
	im *known.Imports
	u  *il.Universe
}

// New returns a synthesizer resolving framework types through im.
func New(im *known.Imports) *Synthesizer {
	return &Synthesizer{im: im, u: im.Universe()}
}

// Synthesize builds the job struct for c. Nothing is attached to the
// system until Unit.Commit.
func (s *Synthesizer) Synthesize(c *analyzer.Chain, opts Options) (*Unit, error) {
	mark := s.im.Mark()
	containing := c.Containing()
	if containing.Nested(c.ClassName()) != nil {
		return nil, diag.Raise(diag.DC0003, c.Method, c.Source, c.Name)
	}
	if err := s.checkLambdaOnSystem(c); err != nil {
		return nil, err
	}

	u := s.newUnit(c, opts)
	if c.Kind == analyzer.KindEntities {
		if err := u.classifyParams(); err != nil {
			return nil, err
		}
	}
	if c.Kind != analyzer.KindJob {
		if err := u.buildQuery(); err != nil {
			return nil, err
		}
	}

	if c.LambdaOnContainingType() && !c.HasAllowedMethodInvokedWithThis {
		if err := u.relay(); err != nil {
			return nil, err
		}
	} else if err := u.clone(); err != nil {
		return nil, err
	}

	if err := u.applyFieldModifiers(); err != nil {
		return nil, err
	}
	if c.CapturesLocals() {
		if err := u.displayClassCopies(); err != nil {
			return nil, err
		}
	}
	if c.Kind == analyzer.KindEntities {
		u.declareProviders()
	}
	if c.Mode == analyzer.ModeRun {
		if err := u.deallocateOnCompletion(); err != nil {
			return nil, err
		}
	}

	structural := c.WithStructuralChanges && c.Kind == analyzer.KindEntities
	var err error
	if structural {
		err = u.structural()
	} else {
		err = u.execute()
	}
	if err != nil {
		return nil, err
	}
	if err := u.scheduleTimeInitialize(); err != nil {
		return nil, err
	}
	if c.Mode == analyzer.ModeRun && !structural {
		if err := u.runWithoutJobSystem(); err != nil {
			return nil, err
		}
	}
	u.burstAttributes()

	if miss := s.im.MissingSince(mark); miss != "" {
		return nil, diag.Raise(diag.DCICE005, c.Method, c.Source, miss)
	}
	return u, nil
}

func (s *Synthesizer) newUnit(c *analyzer.Chain, opts Options) *Unit {
	containing := c.Containing()
	job := &il.TypeDef{
		Name:          c.ClassName(),
		BaseType:      il.ValueType,
		DeclaringType: containing,
		Module:        containing.Module,
		Flags:         il.TypeNestedPrivate | il.TypeSealed | il.TypeSequentialLayout | il.TypeBeforeFieldInit,
		CustomAttributes: il.Attributes{
			s.im.Attribute(known.NsEntities, known.DOTSCompilerGenerated),
		},
	}
	switch {
	case c.Kind == analyzer.KindJob:
		job.Interfaces = []*il.TypeRef{s.im.Type(known.NsJobs, known.IJob)}
	case !c.WithStructuralChanges || c.Kind == analyzer.KindChunk:
		job.Interfaces = []*il.TypeRef{s.im.Entities(known.IJobChunk)}
	}
	return &Unit{Chain: c, Type: job, s: s, im: s.im, opts: opts}
}

// method declares an instance or static method on the job struct with an
// empty body.
func (u *Unit) method(name string, flags il.MethodAttributes, ret *il.TypeRef, params ...*il.ParamDef) *il.MethodDef {
	if ret == nil {
		ret = il.Void
	}
	m := u.Type.AddMethod(&il.MethodDef{
		Name:       name,
		ReturnType: ret,
		Params:     params,
		Flags:      flags | il.MethodHideBySig,
	})
	m.EnsureBody()
	return m
}

func param(name string, t *il.TypeRef) *il.ParamDef {
	return &il.ParamDef{Name: name, Type: t}
}

// field declares a field on the job struct, suffixing the name when it
// is already taken.
func (u *Unit) field(name string, t *il.TypeRef, flags il.FieldAttributes) *il.FieldDef {
	unique := name
	for n := 1; u.Type.Field(unique) != nil; n++ {
		unique = fmt.Sprintf("%s_%d", name, n)
	}
	return u.Type.AddField(&il.FieldDef{Name: unique, Type: t, Flags: flags})
}

// emit builds the body of m with a pooled emitter.
func emit(m *il.MethodDef, build func(e *codegen.Emitter)) error {
	e := codegen.GetEmitter()
	defer codegen.PutEmitter(e)
	build(e)
	return e.AppendTo(m.EnsureBody())
}

// raise reports code at ins inside the generated method at, attributing
// the diagnostic to the system method holding the chain.
func (u *Unit) raise(code diag.Code, at *il.MethodDef, ins *il.Instruction, args ...any) error {
	d := diag.New(code, at, ins, args...)
	d.Method = u.Chain.Method.FullName()
	if !d.Location.Known() {
		d.Location = diag.At(u.Chain.Method, u.Chain.Source)
	}
	return &diag.Error{Diagnostic: d}
}
