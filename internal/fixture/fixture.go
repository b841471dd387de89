// Package fixture builds user modules the way a C# compiler lays them out:
// component systems whose OnUpdate methods contain builder chains, display
// classes holding captured locals, and lambdas compiled to methods.
//
// Fixtures are resolved against the framework modules and are used by the
// package tests and by the CLI demo command.
package fixture

import (
	"fmt"

	"github.com/wippyai/lambdajobs/framework"
	"github.com/wippyai/lambdajobs/il"
	"github.com/wippyai/lambdajobs/internal/codegen"
	"github.com/wippyai/lambdajobs/internal/known"
)

// Fixture is a user module under construction.
type Fixture struct {
	Module   *il.Module
	Universe *il.Universe
	Imports  *known.Imports
	// Document is the source file name recorded in sequence points.
	Document string

	pending []*Method
	line    int
}

// New creates an empty module named name.
func New(name string) *Fixture {
	mod := il.NewModule(name)
	u := framework.Universe(mod)
	return &Fixture{
		Module:   mod,
		Universe: u,
		Imports:  known.NewImports(u),
		Document: name + ".cs",
		line:     10,
	}
}

// Field describes a field of a user type.
type Field struct {
	Type *il.TypeRef
	Name string
}

// F is shorthand for a Field.
func F(name string, t *il.TypeRef) Field {
	return Field{Name: name, Type: t}
}

// Finish builds every method body that has not been built yet and returns
// the module. It panics when a body cannot be assembled, which is a bug in
// the fixture itself.
func (f *Fixture) Finish() *il.Module {
	for _, m := range f.pending {
		m.Done()
	}
	f.pending = nil
	return f.Module
}

// Validate finishes the module and checks it.
func (f *Fixture) Validate() error {
	return il.Validate(f.Finish())
}

func (f *Fixture) nextLine() int {
	f.line++
	return f.line
}

func (f *Fixture) userType(ns, name string, base *il.TypeRef, iface string, fields []Field) *il.TypeDef {
	flags := il.TypePublic | il.TypeSequentialLayout | il.TypeSealed
	if base == il.Object {
		flags = il.TypePublic | il.TypeBeforeFieldInit
	}
	t := &il.TypeDef{Namespace: ns, Name: name, BaseType: base, Flags: flags}
	if iface != "" {
		t.Interfaces = []*il.TypeRef{f.Imports.Entities(iface)}
	}
	for _, fd := range fields {
		t.AddField(&il.FieldDef{Name: fd.Name, Type: fd.Type, Flags: il.FieldPublic})
	}
	if base == il.Object {
		objectCtor(f, t)
	}
	f.Module.AddType(t)
	return t
}

// Component declares an unmanaged IComponentData struct.
func (f *Fixture) Component(ns, name string, fields ...Field) *il.TypeRef {
	return f.userType(ns, name, il.ValueType, known.IComponentData, fields).Ref()
}

// Tag declares a component without fields.
func (f *Fixture) Tag(ns, name string) *il.TypeRef {
	return f.Component(ns, name)
}

// ManagedComponent declares a class implementing IComponentData.
func (f *Fixture) ManagedComponent(ns, name string, fields ...Field) *il.TypeRef {
	return f.userType(ns, name, il.Object, known.IComponentData, fields).Ref()
}

// SharedComponent declares an ISharedComponentData struct.
func (f *Fixture) SharedComponent(ns, name string, fields ...Field) *il.TypeRef {
	return f.userType(ns, name, il.ValueType, known.ISharedComponentData, fields).Ref()
}

// BufferElement declares an IBufferElementData struct.
func (f *Fixture) BufferElement(ns, name string, fields ...Field) *il.TypeRef {
	return f.userType(ns, name, il.ValueType, known.IBufferElementData, fields).Ref()
}

// Struct declares a plain user struct.
func (f *Fixture) Struct(ns, name string, fields ...Field) *il.TypeRef {
	return f.userType(ns, name, il.ValueType, "", fields).Ref()
}

// Class declares a plain user class.
func (f *Fixture) Class(ns, name string, fields ...Field) *il.TypeRef {
	return f.userType(ns, name, il.Object, "", fields).Ref()
}

// NativeArray returns NativeArray<elem>.
func (f *Fixture) NativeArray(elem *il.TypeRef) *il.TypeRef {
	return f.Imports.Type(known.NsCollections, known.NativeArray).MakeGeneric(elem)
}

// DynamicBuffer returns DynamicBuffer<elem>.
func (f *Fixture) DynamicBuffer(elem *il.TypeRef) *il.TypeRef {
	return f.Imports.Entities(known.DynamicBuffer).MakeGeneric(elem)
}

// JobHandle returns the JobHandle type.
func (f *Fixture) JobHandle() *il.TypeRef {
	return f.Imports.Type(known.NsJobs, known.JobHandle)
}

// Entity returns the Entity type.
func (f *Fixture) Entity() *il.TypeRef {
	return f.Imports.Entities(known.Entity)
}

func objectCtor(f *Fixture, t *il.TypeDef) *il.MethodDef {
	m := t.AddMethod(&il.MethodDef{
		Name:       ".ctor",
		ReturnType: il.Void,
		Flags:      il.MethodPublic | il.MethodHideBySig | il.MethodSpecialName | il.MethodRTSpecialName,
	})
	base := t.BaseType
	if base == nil {
		base = il.Object
	}
	b := m.EnsureBody()
	b.Emit(il.Ldarg, 0)
	b.Emit(il.Call, f.Imports.Method(base, ".ctor", 0))
	b.Emit(il.Ret, nil)
	return m
}

// Param is a lambda or method parameter.
type Param struct {
	Type *il.TypeRef
	Name string
	// ByRef passes the parameter by reference; In additionally marks
	// the reference readonly.
	ByRef bool
	In    bool
}

// V is a by-value parameter.
func V(name string, t *il.TypeRef) Param { return Param{Name: name, Type: t} }

// R is a by-reference parameter.
func R(name string, t *il.TypeRef) Param { return Param{Name: name, Type: t, ByRef: true} }

// I is a readonly by-reference parameter.
func I(name string, t *il.TypeRef) Param { return Param{Name: name, Type: t, ByRef: true, In: true} }

func (f *Fixture) paramDef(p Param) *il.ParamDef {
	pd := &il.ParamDef{Name: p.Name, Type: p.Type}
	if p.ByRef {
		pd.Type = p.Type.MakeByRef()
	}
	if p.In {
		pd.Flags |= il.ParamIn
		pd.CustomAttributes = il.Attributes{f.Imports.Attribute(known.NsCompilerServices, known.IsReadOnly)}
	}
	return pd
}

// Method is a method whose body is being emitted. The embedded emitter
// appends instructions; Line starts a new source statement.
type Method struct {
	*codegen.Emitter
	Def *il.MethodDef

	f      *Fixture
	points []point
	done   bool
}

type point struct {
	at   int
	line int
}

func (f *Fixture) newMethod(owner *il.TypeDef, def *il.MethodDef) *Method {
	owner.AddMethod(def)
	def.EnsureBody()
	m := &Method{Emitter: codegen.NewEmitter(), Def: def, f: f}
	f.pending = append(f.pending, m)
	return m
}

// Ref returns a reference to the method.
func (m *Method) Ref() *il.MethodRef {
	return m.Def.Ref()
}

// Local declares a local variable.
func (m *Method) Local(t *il.TypeRef, name string) *il.Local {
	return m.Def.Body.AddLocal(t, name)
}

// Line makes the next emitted instruction the start of a new source line.
func (m *Method) Line() *Method {
	m.points = append(m.points, point{at: m.Len(), line: m.f.nextLine()})
	return m
}

// Done assembles the body. It panics on unbound labels.
func (m *Method) Done() *il.MethodDef {
	if m.done {
		return m.Def
	}
	m.done = true
	code, err := m.Instructions()
	if err != nil {
		panic(fmt.Sprintf("fixture: %s: %v", m.Def.FullName(), err))
	}
	body := m.Def.Body
	body.Append(code...)
	for _, p := range m.points {
		if p.at < len(code) {
			body.SequencePoints = append(body.SequencePoints, il.SequencePoint{
				Instruction: code[p.at],
				Document:    m.f.Document,
				Line:        p.line,
				Column:      9,
			})
		}
	}
	return m.Def
}
