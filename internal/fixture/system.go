package fixture

import (
	"fmt"

	"github.com/wippyai/lambdajobs/il"
	"github.com/wippyai/lambdajobs/internal/known"
)

// System is a user component system.
type System struct {
	Def *il.TypeDef
	// JCS is set for JobComponentSystem subclasses.
	JCS bool

	f        *Fixture
	closures int
	lambdas  int
	statics  *Closure
}

// System declares a SystemBase subclass.
func (f *Fixture) System(ns, name string) *System {
	return f.system(ns, name, known.SystemBase)
}

// JobComponentSystem declares a JobComponentSystem subclass.
func (f *Fixture) JobComponentSystem(ns, name string) *System {
	return f.system(ns, name, known.JobComponentSystem)
}

func (f *Fixture) system(ns, name, base string) *System {
	t := &il.TypeDef{
		Namespace: ns,
		Name:      name,
		BaseType:  f.Imports.Entities(base),
		Flags:     il.TypePublic | il.TypeBeforeFieldInit,
	}
	f.Module.AddType(t)
	objectCtor(f, t)
	return &System{Def: t, JCS: base == known.JobComponentSystem, f: f}
}

// Ref returns a reference to the system type.
func (s *System) Ref() *il.TypeRef {
	return s.Def.Ref()
}

// Field declares a private instance field.
func (s *System) Field(name string, t *il.TypeRef) *il.FieldRef {
	return s.Def.AddField(&il.FieldDef{Name: name, Type: t, Flags: il.FieldPrivate}).Ref()
}

// OnUpdate declares the update override: void OnUpdate() for SystemBase,
// JobHandle OnUpdate(JobHandle inputDeps) for JobComponentSystem.
func (s *System) OnUpdate() *Method {
	def := &il.MethodDef{
		Name:       "OnUpdate",
		ReturnType: il.Void,
		Flags:      il.MethodFamily | il.MethodVirtual | il.MethodHideBySig,
	}
	if s.JCS {
		def.ReturnType = s.f.JobHandle()
		def.Params = []*il.ParamDef{{Name: "inputDeps", Type: s.f.JobHandle()}}
	}
	return s.f.newMethod(s.Def, def)
}

// Method declares a private instance method.
func (s *System) Method(name string, ret *il.TypeRef, params ...Param) *Method {
	return s.f.newMethod(s.Def, s.f.methodDef(name, il.MethodPrivate|il.MethodHideBySig, ret, params))
}

// StaticMethod declares a private static method.
func (s *System) StaticMethod(name string, ret *il.TypeRef, params ...Param) *Method {
	return s.f.newMethod(s.Def, s.f.methodDef(name, il.MethodPrivate|il.MethodHideBySig|il.MethodStatic, ret, params))
}

// Lambda declares a lambda compiled to an instance method of the system,
// which is what the compiler does for lambdas capturing only this.
func (s *System) Lambda(params ...Param) *Method {
	name := fmt.Sprintf("<OnUpdate>b__%d_0", s.lambdas)
	s.lambdas++
	return s.f.newMethod(s.Def, s.f.methodDef(name, il.MethodPrivate|il.MethodHideBySig, il.Void, params))
}

func (f *Fixture) methodDef(name string, flags il.MethodAttributes, ret *il.TypeRef, params []Param) *il.MethodDef {
	if ret == nil {
		ret = il.Void
	}
	def := &il.MethodDef{Name: name, ReturnType: ret, Flags: flags}
	for _, p := range params {
		def.Params = append(def.Params, f.paramDef(p))
	}
	return def
}

// Closure is a compiler-generated class holding captured variables.
type Closure struct {
	Def *il.TypeDef
	// Static closures hold the lambdas that capture nothing; they are
	// reached through the singleton field Instance.
	Static   bool
	Instance *il.FieldRef

	s       *System
	lambdas int
	caches  int
}

// Closure declares a new display class nested in the system.
func (s *System) Closure() *Closure {
	name := fmt.Sprintf("<>c__DisplayClass%d_0", s.closures)
	s.closures++
	t := s.Def.AddNested(&il.TypeDef{
		Name:     name,
		BaseType: il.Object,
		Flags:    il.TypeNestedPrivate | il.TypeSealed | il.TypeBeforeFieldInit,
		CustomAttributes: il.Attributes{
			s.f.Imports.Attribute(known.NsCompilerServices, known.CompilerGenerated),
		},
	})
	objectCtor(s.f, t)
	return &Closure{Def: t, s: s}
}

// Statics returns the class holding the system's non-capturing lambdas.
func (s *System) Statics() *Closure {
	if s.statics != nil {
		return s.statics
	}
	t := s.Def.AddNested(&il.TypeDef{
		Name:     "<>c",
		BaseType: il.Object,
		Flags:    il.TypeNestedPrivate | il.TypeSealed | il.TypeBeforeFieldInit,
		CustomAttributes: il.Attributes{
			s.f.Imports.Attribute(known.NsCompilerServices, known.CompilerGenerated),
		},
	})
	ctor := objectCtor(s.f, t)
	inst := t.AddField(&il.FieldDef{Name: "<>9", Type: t.Ref(), Flags: il.FieldPublic | il.FieldStatic | il.FieldInitOnly}).Ref()

	cctor := t.AddMethod(&il.MethodDef{
		Name:       ".cctor",
		ReturnType: il.Void,
		Flags:      il.MethodPrivate | il.MethodStatic | il.MethodHideBySig | il.MethodSpecialName | il.MethodRTSpecialName,
	})
	b := cctor.EnsureBody()
	b.Emit(il.Newobj, ctor.Ref())
	b.Emit(il.Stsfld, inst)
	b.Emit(il.Ret, nil)

	s.statics = &Closure{Def: t, Static: true, Instance: inst, s: s}
	return s.statics
}

// Ref returns a reference to the closure type.
func (c *Closure) Ref() *il.TypeRef {
	return c.Def.Ref()
}

// Ctor returns the closure constructor.
func (c *Closure) Ctor() *il.MethodRef {
	return c.Def.Method(".ctor").Ref()
}

// Field declares a captured variable.
func (c *Closure) Field(name string, t *il.TypeRef) *il.FieldRef {
	if f := c.Def.Field(name); f != nil {
		return f.Ref()
	}
	return c.Def.AddField(&il.FieldDef{Name: name, Type: t, Flags: il.FieldPublic}).Ref()
}

// This returns the field holding the captured system instance.
func (c *Closure) This() *il.FieldRef {
	return c.Field("<>4__this", c.s.Ref())
}

// Parent returns the field linking to an enclosing scope's closure.
func (c *Closure) Parent(outer *Closure) *il.FieldRef {
	return c.Field("CS$<>8__locals1", outer.Ref())
}

// Lambda declares a lambda compiled to an instance method of the closure.
func (c *Closure) Lambda(params ...Param) *Method {
	name := fmt.Sprintf("<OnUpdate>b__%d", c.lambdas)
	if c.Static {
		name = fmt.Sprintf("<OnUpdate>b__%d_%d", c.s.closures, c.lambdas)
	}
	c.lambdas++
	return c.s.f.newMethod(c.Def, c.s.f.methodDef(name, il.MethodAssembly|il.MethodHideBySig, il.Void, params))
}

// Helper declares another instance method on the closure, the shape of a
// local function.
func (c *Closure) Helper(name string, ret *il.TypeRef, params ...Param) *Method {
	return c.s.f.newMethod(c.Def, c.s.f.methodDef(name, il.MethodAssembly|il.MethodHideBySig, ret, params))
}

func (c *Closure) cache(delegate *il.TypeRef) *il.FieldRef {
	name := fmt.Sprintf("<>9__%d_%d", c.s.closures, c.caches)
	c.caches++
	return c.Def.AddField(&il.FieldDef{Name: name, Type: delegate, Flags: il.FieldPublic | il.FieldStatic}).Ref()
}

// NewClosure emits the allocation of a closure into a fresh local.
func (m *Method) NewClosure(c *Closure) *il.Local {
	l := m.Local(c.Ref(), "")
	m.Newobj(c.Ctor()).Stloc(l)
	return l
}

// Capture emits the store of a captured value: ldloc l; load; stfld f.
func (m *Method) Capture(l *il.Local, f *il.FieldRef, load func(m *Method)) {
	m.Ldloc(l)
	load(m)
	m.Stfld(f)
}

// CaptureThis stores the system instance into the closure.
func (m *Method) CaptureThis(l *il.Local, c *Closure) {
	m.Capture(l, c.This(), func(m *Method) { m.Ldarg(0) })
}
