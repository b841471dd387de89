package rewrite

import (
	"github.com/wippyai/lambdajobs/diag"
	"github.com/wippyai/lambdajobs/errors"
	"github.com/wippyai/lambdajobs/il"
	"github.com/wippyai/lambdajobs/internal/analyzer"
	"github.com/wippyai/lambdajobs/internal/codegen"
	"github.com/wippyai/lambdajobs/internal/cursor"
	"github.com/wippyai/lambdajobs/internal/known"
	"github.com/wippyai/lambdajobs/internal/synth"
)

const setSharedFilter = "SetSharedComponentFilterOnQuery"

// Rewriter splices synthesized jobs into system methods. It is not safe
// for concurrent use.
type Rewriter struct {
	im    *known.Imports
	u     *il.Universe
	hooks map[*il.TypeDef]*il.MethodDef
}

// New returns a rewriter resolving framework members through im, which
// should be the instance the units were synthesized with.
func New(im *known.Imports) *Rewriter {
	return &Rewriter{
		im:    im,
		u:     im.Universe(),
		hooks: make(map[*il.TypeDef]*il.MethodDef),
	}
}

// Rewrite replaces the chain of u in its method with code initialising
// and running the job. Warnings are returned whether or not the rewrite
// succeeds. On error the method is left as it was.
func (r *Rewriter) Rewrite(u *synth.Unit) (warnings []diag.Diagnostic, err error) {
	c := u.Chain
	m := c.Method
	mark := r.im.Mark()
	if m.Body == nil {
		return nil, errors.New(errors.PhaseRewrite, errors.KindInvalidInput).
			Member(m.FullName()).
			Detail("method has no body").
			Build()
	}
	snap := Take(m.Body)
	defer func() {
		if p := recover(); p != nil {
			snap.Restore()
			panic(p)
		}
		if err != nil {
			snap.Restore()
		}
	}()

	if containing := c.Containing(); containing.CustomAttributes.Has(known.NsUnityEngine, known.ExecuteAlways) {
		warnings = append(warnings, diag.New(diag.DC0032, m, c.Source, containing.Name))
	}
	m.Body.Simplify()

	closure := c.Delegate.Local
	if c.CapturesLocals() {
		c.Delegate.KeepDisplayClassOnStack()
	} else {
		c.Delegate.ProduceSingleNull()
	}
	for _, mod := range c.Modifiers {
		if err := r.eraseModifier(u, mod); err != nil {
			return warnings, err
		}
	}
	if err := r.spliceTerminal(u, closure); err != nil {
		return warnings, err
	}
	if miss := r.im.MissingSince(mark); miss != "" {
		return warnings, diag.Raise(diag.DCICE005, m, c.Source, miss)
	}
	return warnings, nil
}

func isStructural(c *analyzer.Chain) bool {
	return c.WithStructuralChanges && c.Kind == analyzer.KindEntities
}

// eraseModifier turns a construction call into pops of its arguments,
// leaving the description on the stack. A shared component filter is
// applied to the query instead.
func (r *Rewriter) eraseModifier(u *synth.Unit, mod analyzer.Modifier) error {
	m := u.Chain.Method
	call := mod.Instruction
	want := cursor.EffectOf(m, call).Net()

	var repl []*il.Instruction
	if mod.Name == known.WithSharedComponentFilter {
		if u.Query == nil {
			return errors.Internal(errors.PhaseRewrite, "%s on a chain without a query", mod.Name)
		}
		repl = []*il.Instruction{
			il.NewInstruction(il.Ldarg, 0),
			il.NewInstruction(il.Ldfld, u.Query.Ref()),
			il.NewInstruction(il.Call, r.sharedFilter(u.Chain, mod)),
		}
	} else {
		for n := want; n < 0; n++ {
			repl = append(repl, il.NewInstruction(il.Pop, nil))
		}
	}
	if got := spanEffect(m, repl); got != want {
		return diag.Raise(diag.DCICE008, m, call, mod.Name, want, got)
	}
	m.Body.Replace(call, repl...)
	return nil
}

func (r *Rewriter) sharedFilter(c *analyzer.Chain, mod analyzer.Modifier) *il.MethodRef {
	if c.Kind == analyzer.KindChunk {
		return r.im.Method(r.im.Entities(known.ChunkSetShared), setSharedFilter, 3).MakeGeneric(mod.TypeArgs...)
	}
	desc := known.ForEachDescriptionJCS
	if c.IsInSystemBase {
		desc = known.ForEachDescription
	}
	args := append([]*il.TypeRef{r.im.Entities(desc)}, mod.TypeArgs...)
	return r.im.Method(r.im.Entities(known.ForEachSetShared), setSharedFilter, 3).MakeGeneric(args...)
}

// spliceTerminal inserts the job initialisation and execution after the
// terminal call and turns the terminal into a nop.
func (r *Rewriter) spliceTerminal(u *synth.Unit, closure *il.Local) error {
	c := u.Chain
	m := c.Method
	b := m.Body
	if u.ReadFromDisplayClass != nil && closure == nil {
		return errors.Internal(errors.PhaseRewrite, "chain %s reads a closure that is not held in a local", c.Name)
	}
	target, err := r.executionMethod(u)
	if err != nil {
		return err
	}
	structural := isStructural(c)
	schedule := c.Mode != analyzer.ModeRun
	implicit := c.UseImplicitSystemDependency()
	system := r.im.Entities(known.SystemBase)

	e := codegen.GetEmitter()
	defer codegen.PutEmitter(e)

	var handle *il.Local
	if schedule {
		handle = b.AddLocal(r.im.Type(known.NsJobs, known.JobHandle), "")
		if implicit {
			e.Ldarg(0).Call(r.im.Method(system, "get_Dependency", 0))
		}
		e.Stloc(handle)
	}
	e.Pop()

	self := u.Self()
	job := b.AddLocal(self, "")
	e.Ldloca(job).Initobj(self)
	e.Ldloca(job).Ldarg(0)
	if u.ReadFromDisplayClass != nil {
		loadClosure(e, u, closure)
	}
	e.Call(u.ScheduleTimeInitializeRef())

	if c.IsInSystemBase && !schedule {
		e.Ldarg(0).Call(r.im.Method(system, "CompleteDependency", 0))
	}
	if structural || target.Params[0].IsByRef() {
		e.Ldloca(job)
	} else {
		e.Ldloc(job)
	}
	if c.Kind != analyzer.KindJob {
		if structural {
			e.Ldarg(0)
		}
		e.Ldarg(0).Ldfld(u.Query.Ref())
	}
	if schedule {
		e.Ldloc(handle)
	}
	if !schedule && !structural {
		r.runDelegate(e, u)
	}
	e.Call(target)
	if implicit {
		e.Stloc(handle).Ldarg(0).Ldloc(handle).Call(r.im.Method(system, "set_Dependency", 1))
	}
	if !schedule && u.WriteToDisplayClass != nil {
		e.Ldloca(job)
		loadClosure(e, u, closure)
		e.Call(u.WriteToDisplayClass.Ref())
	}

	span, err := e.Instructions()
	if err != nil {
		return err
	}
	terminal, _ := c.Terminal.Method()
	want := cursor.EffectOf(m, c.Terminal).Net()
	if got := spanEffect(m, span); got != want {
		return diag.Raise(diag.DCICE008, m, c.Terminal, terminal.Name, want, got)
	}
	b.InsertAfter(c.Terminal, span...)
	c.Terminal.MakeNOP()
	return nil
}

// executionMethod picks the framework entry point the job is handed to.
// JobComponentSystem has no single-threaded Schedule, so its Schedule
// runs in parallel as it always did.
func (r *Rewriter) executionMethod(u *synth.Unit) (*il.MethodRef, error) {
	c := u.Chain
	if isStructural(c) {
		return u.Execute.Ref(), nil
	}
	ici := r.im.Entities(known.InternalCompilerIface)
	chunks := r.im.Entities(known.JobChunkExtensions)

	var owner *il.TypeRef
	var name string
	var params int
	switch {
	case c.Kind == analyzer.KindJob && c.Mode == analyzer.ModeRun:
		owner, name, params = ici, "RunIJob", 2
	case c.Kind == analyzer.KindJob && c.Mode == analyzer.ModeSchedule:
		owner, name, params = r.im.Type(known.NsJobs, known.IJobExtensions), "Schedule", 2
	case c.Kind == analyzer.KindJob:
		return nil, errors.Internal(errors.PhaseRewrite, "no execution method for %v %v", c.Kind, c.Mode)
	case c.Mode == analyzer.ModeRun:
		owner, name, params = ici, "RunJobChunk", 3
	case c.Mode == analyzer.ModeScheduleParallel || !c.IsInSystemBase:
		owner, name, params = chunks, "ScheduleParallel", 3
	default:
		owner, name, params = chunks, "ScheduleSingle", 3
	}
	return r.im.Method(owner, name, params).MakeGeneric(u.Self()), nil
}

// runDelegate loads the RunWithoutJobSystem delegate, choosing the Burst
// compiled one when the job compiler is enabled.
func (r *Rewriter) runDelegate(e *codegen.Emitter, u *synth.Unit) {
	if u.RunDelegateBurst == nil {
		e.Ldsfld(u.RunDelegateNoBurst.Ref())
		return
	}
	burst, done := e.Label(), e.Label()
	enabled := r.im.Method(r.im.Type(known.NsJobsLowLevel, known.JobsUtility), "get_JobCompilerEnabled", 0)
	e.Call(enabled).Brtrue(burst)
	e.Ldsfld(u.RunDelegateNoBurst.Ref()).Br(done)
	e.Mark(burst).Ldsfld(u.RunDelegateBurst.Ref())
	e.Mark(done).Nop()
}

func loadClosure(e *codegen.Emitter, u *synth.Unit, closure *il.Local) {
	if u.ClosureAsStruct() || u.Chain.DisplayClass().IsValueType() {
		e.Ldloca(closure)
		return
	}
	e.Ldloc(closure)
}

// spanEffect is the net stack effect of executing span from its first
// instruction, taking forward jumps that stay inside it.
func spanEffect(m *il.MethodDef, span []*il.Instruction) int {
	index := make(map[*il.Instruction]int, len(span))
	for i, ins := range span {
		index[ins] = i
	}
	net := 0
	for i := 0; i < len(span); {
		ins := span[i]
		net += cursor.EffectOf(m, ins).Net()
		if ins.Op == il.Br {
			if t, ok := ins.Operand.(*il.Instruction); ok {
				if n, in := index[t]; in && n > i {
					i = n
					continue
				}
			}
		}
		i++
	}
	return net
}
