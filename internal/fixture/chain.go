package fixture

import (
	"strings"

	"github.com/wippyai/lambdajobs/framework"
	"github.com/wippyai/lambdajobs/il"
	"github.com/wippyai/lambdajobs/internal/known"
)

// Chain emits a builder chain into a method. Each call appends the
// instructions a C# compiler produces for the corresponding fluent call.
type Chain struct {
	m    *Method
	desc *il.TypeRef
	kind string
	jcs  bool
}

// Entities starts an Entities chain: ldarg.0 ; call get_Entities.
func (m *Method) Entities() *Chain {
	return m.source(known.GetEntities, known.ForEachDescription, known.ForEachDescriptionJCS)
}

// Job starts a Job.WithCode chain.
func (m *Method) Job() *Chain {
	return m.source(known.GetJob, known.SingleJobDescription, known.SingleJobDescriptionJCS)
}

// Chunks starts a Chunks.ForEach chain. Only JobComponentSystem has it.
func (m *Method) Chunks() *Chain {
	return m.source(known.GetChunks, known.ChunkDescription, known.ChunkDescription)
}

func (m *Method) source(getter, desc, descJCS string) *Chain {
	im := m.f.Imports
	jcs := im.Universe().InheritsFrom(m.Def.DeclaringType, known.NsEntities, known.JobComponentSystem)
	owner := known.SystemBase
	if jcs {
		owner, desc = known.JobComponentSystem, descJCS
	}
	m.Line()
	m.Ldarg(0).Call(im.Method(im.Entities(owner), getter, 0))
	return &Chain{m: m, desc: im.Entities(desc), kind: getter, jcs: jcs}
}

// Method returns the method the chain is emitted into.
func (c *Chain) Method() *Method {
	return c.m
}

func (c *Chain) construction(class, name string, params int, typeArgs ...*il.TypeRef) *Chain {
	im := c.m.f.Imports
	ref := im.Method(im.Entities(class), name, params)
	c.m.Call(ref.MakeGeneric(append([]*il.TypeRef{c.desc}, typeArgs...)...))
	return c
}

// WithName emits WithName("name").
func (c *Chain) WithName(name string) *Chain {
	c.m.Ldstr(name)
	return c.construction(known.ConstructionMethods, known.WithName, 2)
}

// WithoutBurst emits WithoutBurst().
func (c *Chain) WithoutBurst() *Chain {
	return c.construction(known.ConstructionMethods, known.WithoutBurst, 1)
}

// WithBurst emits WithBurst(enabled).
func (c *Chain) WithBurst(enabled bool) *Chain {
	c.m.LdBool(enabled)
	return c.construction(known.ConstructionMethods, known.WithBurst, 2)
}

// WithBurstOptions emits WithBurst(floatMode, floatPrecision, synchronous).
func (c *Chain) WithBurstOptions(mode, precision int32, synchronous bool) *Chain {
	c.m.LdcI4(mode).LdcI4(precision).LdBool(synchronous)
	return c.construction(known.ConstructionMethods, known.WithBurst, 4)
}

// WithStructuralChanges emits WithStructuralChanges().
func (c *Chain) WithStructuralChanges() *Chain {
	return c.construction(known.ConstructionMethods, known.WithStructuralChanges, 1)
}

// Modify emits a per-field modifier such as WithReadOnly(captured) where
// captured is the closure field f loaded from local l.
func (c *Chain) Modify(modifier string, l *il.Local, f *il.FieldRef) *Chain {
	c.m.Ldloc(l).Ldfld(f)
	return c.construction(known.ConstructionMethods, modifier, 2, f.Type)
}

// ModifyValue emits a per-field modifier whose argument is produced by
// load, for arguments that are not captured fields.
func (c *Chain) ModifyValue(modifier string, t *il.TypeRef, load func(m *Method)) *Chain {
	load(c.m)
	return c.construction(known.ConstructionMethods, modifier, 2, t)
}

func (c *Chain) query(name string, types []*il.TypeRef) *Chain {
	im := c.m.f.Imports
	ref := im.GenericMethod(im.Entities(known.QueryConstructionMethods), name, 1, len(types), c.desc)
	c.m.Call(ref.MakeGeneric(types...))
	return c
}

// WithAll emits WithAll<T...>().
func (c *Chain) WithAll(types ...*il.TypeRef) *Chain { return c.query(known.WithAll, types) }

// WithAny emits WithAny<T...>().
func (c *Chain) WithAny(types ...*il.TypeRef) *Chain { return c.query(known.WithAny, types) }

// WithNone emits WithNone<T...>().
func (c *Chain) WithNone(types ...*il.TypeRef) *Chain { return c.query(known.WithNone, types) }

// WithChangeFilter emits WithChangeFilter<T...>().
func (c *Chain) WithChangeFilter(types ...*il.TypeRef) *Chain {
	return c.query(known.WithChangeFilter, types)
}

// WithEntityQueryOptions emits WithEntityQueryOptions(options).
func (c *Chain) WithEntityQueryOptions(options int32) *Chain {
	im := c.m.f.Imports
	c.m.LdcI4(options)
	c.m.Call(im.Method(im.Entities(known.QueryConstructionMethods), known.WithEntityQueryOptions, 2, c.desc))
	return c
}

// WithSharedComponentFilter emits WithSharedComponentFilter(value) with the
// value produced by load.
func (c *Chain) WithSharedComponentFilter(t *il.TypeRef, load func(m *Method)) *Chain {
	im := c.m.f.Imports
	load(c.m)
	ref := im.Method(im.Entities(known.QueryConstructionMethods), known.WithSharedComponentFilter, 2, c.desc)
	c.m.Call(ref.MakeGeneric(t))
	return c
}

// WithStoreEntityQueryInField emits WithStoreEntityQueryInField(ref field)
// for a field of the system.
func (c *Chain) WithStoreEntityQueryInField(f *il.FieldRef) *Chain {
	im := c.m.f.Imports
	c.m.Ldarg(0).Ldflda(f)
	c.m.Call(im.Method(im.Entities(known.QueryConstructionMethods), known.WithStoreEntityQueryInField, 2, c.desc))
	return c
}

// Target says how the delegate passed to ForEach or WithCode reaches its
// lambda.
type Target struct {
	local   *il.Local
	closure *Closure
	this    bool
}

// InClosure targets a lambda on the display class held in l.
func InClosure(l *il.Local) Target { return Target{local: l} }

// OnThis targets a lambda compiled onto the system.
func OnThis() Target { return Target{this: true} }

// Cached targets a non-capturing lambda on the statics class, created
// through the compiler's delegate cache.
func Cached(c *Closure) Target { return Target{closure: c} }

// ForEach emits ForEach(lambda).
func (c *Chain) ForEach(lambda *Method, target Target) *Chain {
	im := c.m.f.Imports
	if c.kind == known.GetChunks {
		d := im.Nested(known.NsEntities, known.ChunkConstructionMethods, "JobChunkDelegate")
		c.m.delegate(d, lambda, target)
		c.m.Call(im.Method(im.Entities(known.ChunkConstructionMethods), known.ForEach, 2))
		return c
	}
	d := UniversalDelegate(lambda.Def)
	c.m.delegate(d, lambda, target)
	ref := im.Method(im.Entities(known.ForEachConstructionMethods), known.ForEach, 2)
	c.m.Call(ref.MakeGeneric(c.desc, d))
	return c
}

// WithCode emits WithCode(lambda).
func (c *Chain) WithCode(lambda *Method, target Target) *Chain {
	im := c.m.f.Imports
	d := im.Nested(known.NsEntities, known.SingleJobConstructionMethods, "WithCodeAction")
	c.m.delegate(d, lambda, target)
	return c.construction(known.SingleJobConstructionMethods, known.WithCode, 2)
}

// UniversalDelegate returns the UniversalDelegates instance matching the
// parameters of lambda.
func UniversalDelegate(lambda *il.MethodDef) *il.TypeRef {
	var pattern strings.Builder
	args := make([]*il.TypeRef, 0, len(lambda.Params))
	for _, p := range lambda.Params {
		switch {
		case p.Type.IsByRef() && (p.Flags&il.ParamIn != 0 || p.CustomAttributes.HasName(known.IsReadOnly)):
			pattern.WriteByte('I')
		case p.Type.IsByRef():
			pattern.WriteByte('R')
		default:
			pattern.WriteByte('V')
		}
		args = append(args, p.Type.ElementType())
	}
	name := framework.UniversalDelegateName(pattern.String())
	return il.NewTypeRef(known.NsUniversal, name, false).MakeGeneric(args...)
}

// delegate emits the delegate construction for lambda: the simple
// target ; ldftn ; newobj form, or the cached form for static closures.
func (m *Method) delegate(d *il.TypeRef, lambda *Method, target Target) {
	im := m.f.Imports
	ctor := im.Method(d.Open(), ".ctor", 2).OnType(d)
	switch {
	case target.closure != nil:
		cache := target.closure.cache(d)
		done := m.Label()
		m.Ldsfld(cache).Dup().Brtrue(done).Pop()
		m.Ldsfld(target.closure.Instance).Ldftn(lambda.Ref()).Newobj(ctor).Dup().Stsfld(cache)
		m.Mark(done)
	case target.this:
		m.Ldarg(0).Ldftn(lambda.Ref()).Newobj(ctor)
	case target.local != nil:
		m.Ldloc(target.local).Ldftn(lambda.Ref()).Newobj(ctor)
	default:
		m.Ldnull().Ldftn(lambda.Ref()).Newobj(ctor)
	}
}

func (c *Chain) execution() string {
	switch {
	case c.kind == known.GetJob && c.jcs:
		return known.SingleJobExecutionMethodsJCS
	case c.kind == known.GetJob:
		return known.SingleJobExecutionMethods
	case c.jcs:
		return known.ExecutionMethodsJCS
	}
	return known.ExecutionMethods
}

// Run emits Run().
func (c *Chain) Run() *Method {
	c.construction(c.execution(), known.Run, 1)
	return c.m
}

// Schedule emits the implicit-dependency Schedule().
func (c *Chain) Schedule() *Method {
	c.construction(c.execution(), known.Schedule, 1)
	return c.m
}

// ScheduleParallel emits the implicit-dependency ScheduleParallel().
func (c *Chain) ScheduleParallel() *Method {
	c.construction(c.execution(), known.ScheduleParallel, 1)
	return c.m
}

// ScheduleWith emits Schedule(dependency) with the handle produced by
// load; the resulting JobHandle is left on the stack.
func (c *Chain) ScheduleWith(load func(m *Method)) *Method {
	load(c.m)
	c.construction(c.execution(), known.Schedule, 2)
	return c.m
}

// ScheduleParallelWith emits ScheduleParallel(dependency).
func (c *Chain) ScheduleParallelWith(load func(m *Method)) *Method {
	load(c.m)
	c.construction(c.execution(), known.ScheduleParallel, 2)
	return c.m
}

// Invoke emits a call to the generic chain method class.name instantiated
// over the description and typeArgs. Arguments must already be pushed.
func (c *Chain) Invoke(class, name string, params int, typeArgs ...*il.TypeRef) *Chain {
	return c.construction(class, name, params, typeArgs...)
}

// Terminal emits an arbitrary execution call, used to build chains that
// end in a method the family does not define.
func (c *Chain) Terminal(class, name string, params int) *Method {
	c.construction(class, name, params)
	return c.m
}
