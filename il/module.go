package il

import (
	"strings"
	"sync/atomic"
)

// TypeAttributes are the flags of a type definition.
type TypeAttributes uint32

const (
	TypePublic TypeAttributes = 1 << iota
	TypeNestedPublic
	TypeNestedPrivate
	TypeAbstract
	TypeSealed
	TypeInterface
	TypeSequentialLayout
	TypeBeforeFieldInit
)

// FieldAttributes are the flags of a field definition.
type FieldAttributes uint16

const (
	FieldPublic FieldAttributes = 1 << iota
	FieldPrivate
	FieldStatic
	FieldInitOnly
)

// MethodAttributes are the flags of a method definition.
type MethodAttributes uint16

const (
	MethodPublic MethodAttributes = 1 << iota
	MethodPrivate
	MethodFamily
	MethodAssembly
	MethodStatic
	MethodVirtual
	MethodAbstract
	MethodHideBySig
	MethodSpecialName
	MethodRTSpecialName
	MethodNewSlot
)

// MethodImplAttributes are the implementation flags of a method definition.
type MethodImplAttributes uint8

const (
	ImplNoInlining MethodImplAttributes = 1 << iota
	ImplAggressiveInlining
)

// ParamAttributes are the flags of a parameter.
type ParamAttributes uint8

const (
	ParamIn ParamAttributes = 1 << iota
	ParamOut
)

// CustomAttribute is an attribute attached to a definition. Argument values
// are string, int32, bool or *TypeRef.
type CustomAttribute struct {
	Type  *TypeRef
	Args  []any
	Named []NamedArg
}

// NamedArg is a property or field assignment in a custom attribute.
type NamedArg struct {
	Value any
	Name  string
}

// NewAttribute creates an attribute of type t with positional arguments.
func NewAttribute(t *TypeRef, args ...any) *CustomAttribute {
	return &CustomAttribute{Type: t, Args: args}
}

// Attributes is a list of custom attributes.
type Attributes []*CustomAttribute

// Has reports whether an attribute of namespace.name is present.
func (a Attributes) Has(namespace, name string) bool {
	return a.Find(namespace, name) != nil
}

// HasName reports whether an attribute with the given simple name is present.
func (a Attributes) HasName(name string) bool {
	for _, ca := range a {
		if ca.Type.Name == name {
			return true
		}
	}
	return false
}

// Find returns the first attribute of namespace.name.
func (a Attributes) Find(namespace, name string) *CustomAttribute {
	for _, ca := range a {
		if ca.Type.Is(namespace, name) {
			return ca
		}
	}
	return nil
}

// Remove deletes every attribute of namespace.name and returns the result.
func (a Attributes) Remove(namespace, name string) Attributes {
	out := a[:0]
	for _, ca := range a {
		if !ca.Type.Is(namespace, name) {
			out = append(out, ca)
		}
	}
	return out
}

// Module is a unit of compiled code: a set of type definitions.
type Module struct {
	Name  string
	Types []*TypeDef
	// gen counts structural edits; universes reindex when it moves.
	gen uint64
}

// NewModule creates an empty module.
func NewModule(name string) *Module {
	return &Module{Name: name}
}

// AddType appends a top-level type to the module.
func (m *Module) AddType(t *TypeDef) *TypeDef {
	t.Module = m
	for _, n := range t.NestedTypes {
		n.setModule(m)
	}
	m.Types = append(m.Types, t)
	m.Changed()
	return t
}

// Changed records an edit to the type tree made without AddType or
// AddNested, such as removing a nested type, so resolvers over m reindex.
func (m *Module) Changed() {
	atomic.AddUint64(&m.gen, 1)
}

func (m *Module) generation() uint64 {
	return atomic.LoadUint64(&m.gen)
}

// AllTypes returns every type in the module, nested types following their
// declaring type.
func (m *Module) AllTypes() []*TypeDef {
	var out []*TypeDef
	var walk func(ts []*TypeDef)
	walk = func(ts []*TypeDef) {
		for _, t := range ts {
			out = append(out, t)
			walk(t.NestedTypes)
		}
	}
	walk(m.Types)
	return out
}

// FindType looks a type up by its open full name ("Ns.Outer/Inner").
func (m *Module) FindType(fullName string) *TypeDef {
	for _, t := range m.AllTypes() {
		if t.FullName() == fullName {
			return t
		}
	}
	return nil
}

// TypeDef is a type definition.
type TypeDef struct {
	BaseType         *TypeRef
	DeclaringType    *TypeDef
	Module           *Module
	Namespace        string
	Name             string
	Interfaces       []*TypeRef
	GenericParams    []string
	Fields           []*FieldDef
	Methods          []*MethodDef
	NestedTypes      []*TypeDef
	CustomAttributes Attributes
	Flags            TypeAttributes
}

func (t *TypeDef) setModule(m *Module) {
	t.Module = m
	for _, n := range t.NestedTypes {
		n.setModule(m)
	}
}

// FullName returns the open name, with "/" separating nested types.
func (t *TypeDef) FullName() string {
	if t.DeclaringType != nil {
		return t.DeclaringType.FullName() + "/" + t.Name
	}
	if t.Namespace == "" {
		return t.Name
	}
	return t.Namespace + "." + t.Name
}

func (t *TypeDef) String() string {
	return t.FullName()
}

// Ref returns an open reference to t.
func (t *TypeDef) Ref() *TypeRef {
	r := &TypeRef{Namespace: t.Namespace, Name: t.Name, ValueType: t.IsValueType()}
	if t.DeclaringType != nil {
		r.Namespace = ""
		r.DeclaringType = t.DeclaringType.Ref()
	}
	return r
}

// SelfRef returns a reference to t instantiated over its own generic
// parameters, the type of "this" inside t.
func (t *TypeDef) SelfRef() *TypeRef {
	r := t.Ref()
	if len(t.GenericParams) > 0 {
		args := make([]*TypeRef, len(t.GenericParams))
		for i := range args {
			args[i] = GenericParam(i)
		}
		r.Args = args
	}
	return r
}

// IsValueType reports whether t derives from System.ValueType or System.Enum.
func (t *TypeDef) IsValueType() bool {
	if t.BaseType == nil {
		return false
	}
	return t.BaseType.Is("System", "ValueType") || t.BaseType.Is("System", "Enum")
}

// IsInterface reports whether t is an interface.
func (t *TypeDef) IsInterface() bool {
	return t.Flags&TypeInterface != 0
}

// IsClass reports whether t is a reference type that is not an interface.
func (t *TypeDef) IsClass() bool {
	return !t.IsValueType() && !t.IsInterface()
}

// IsCompilerGenerated reports whether the name uses the compiler-reserved "<" prefix.
func (t *TypeDef) IsCompilerGenerated() bool {
	return strings.HasPrefix(t.Name, "<")
}

// IsDisplayClass reports whether t is a compiler-generated closure class.
func (t *TypeDef) IsDisplayClass() bool {
	return IsDisplayClassName(t.Name)
}

// IsDisplayClassName reports whether name is a compiler-generated closure name.
func IsDisplayClassName(name string) bool {
	return strings.Contains(name, "DisplayClass")
}

// AddField appends a field.
func (t *TypeDef) AddField(f *FieldDef) *FieldDef {
	f.DeclaringType = t
	t.Fields = append(t.Fields, f)
	return f
}

// AddMethod appends a method.
func (t *TypeDef) AddMethod(m *MethodDef) *MethodDef {
	m.DeclaringType = t
	t.Methods = append(t.Methods, m)
	return m
}

// AddNested appends a nested type.
func (t *TypeDef) AddNested(n *TypeDef) *TypeDef {
	n.DeclaringType = t
	n.Namespace = ""
	n.setModule(t.Module)
	t.NestedTypes = append(t.NestedTypes, n)
	if t.Module != nil {
		t.Module.Changed()
	}
	return n
}

// Field returns the field named name.
func (t *TypeDef) Field(name string) *FieldDef {
	for _, f := range t.Fields {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// Method returns the first method named name.
func (t *TypeDef) Method(name string) *MethodDef {
	for _, m := range t.Methods {
		if m.Name == name {
			return m
		}
	}
	return nil
}

// Nested returns the nested type named name.
func (t *TypeDef) Nested(name string) *TypeDef {
	for _, n := range t.NestedTypes {
		if n.Name == name {
			return n
		}
	}
	return nil
}

// FieldDef is a field definition.
type FieldDef struct {
	Type             *TypeRef
	DeclaringType    *TypeDef
	Name             string
	CustomAttributes Attributes
	Flags            FieldAttributes
}

// IsStatic reports whether the field is static.
func (f *FieldDef) IsStatic() bool {
	return f.Flags&FieldStatic != 0
}

// Ref returns a reference to f on its declaring type instantiated over its
// own generic parameters.
func (f *FieldDef) Ref() *FieldRef {
	return &FieldRef{DeclaringType: f.DeclaringType.SelfRef(), Name: f.Name, Type: f.Type}
}

// ParamDef is a method parameter.
type ParamDef struct {
	Type             *TypeRef
	Name             string
	CustomAttributes Attributes
	Flags            ParamAttributes
}

// MethodDef is a method definition.
type MethodDef struct {
	ReturnType       *TypeRef
	Body             *MethodBody
	DeclaringType    *TypeDef
	Name             string
	Params           []*ParamDef
	GenericParams    []string
	CustomAttributes Attributes
	Flags            MethodAttributes
	ImplFlags        MethodImplAttributes
}

// IsStatic reports whether the method has no this argument.
func (m *MethodDef) IsStatic() bool {
	return m.Flags&MethodStatic != 0
}

// HasThis reports whether argument 0 is the instance.
func (m *MethodDef) HasThis() bool {
	return !m.IsStatic()
}

// IsConstructor reports whether m is an instance or type initializer.
func (m *MethodDef) IsConstructor() bool {
	return m.Name == ".ctor" || m.Name == ".cctor"
}

// ReturnsVoid reports whether the method returns nothing.
func (m *MethodDef) ReturnsVoid() bool {
	return m.ReturnType == nil || m.ReturnType.IsVoid()
}

// FullName returns the declaring type and method name.
func (m *MethodDef) FullName() string {
	if m.DeclaringType == nil {
		return m.Name
	}
	return m.DeclaringType.FullName() + "::" + m.Name
}

func (m *MethodDef) String() string {
	return m.FullName()
}

// Ref returns a reference to m on its declaring type instantiated over its
// own generic parameters.
func (m *MethodDef) Ref() *MethodRef {
	params := make([]*TypeRef, len(m.Params))
	for i, p := range m.Params {
		params[i] = p.Type
	}
	ret := m.ReturnType
	if ret == nil {
		ret = Void
	}
	return &MethodRef{
		DeclaringType: m.DeclaringType.SelfRef(),
		Name:          m.Name,
		ReturnType:    ret,
		Params:        params,
		HasThis:       m.HasThis(),
		GenericArity:  len(m.GenericParams),
	}
}

// ArgCount returns the number of IL arguments including this.
func (m *MethodDef) ArgCount() int {
	if m.HasThis() {
		return len(m.Params) + 1
	}
	return len(m.Params)
}

// Param returns the parameter addressed by IL argument index, or nil for this.
func (m *MethodDef) Param(arg int) *ParamDef {
	if m.HasThis() {
		arg--
	}
	if arg < 0 || arg >= len(m.Params) {
		return nil
	}
	return m.Params[arg]
}

// ArgType returns the type of IL argument arg. The instance argument of a
// value type is a managed pointer.
func (m *MethodDef) ArgType(arg int) *TypeRef {
	if m.HasThis() && arg == 0 {
		self := m.DeclaringType.SelfRef()
		if m.DeclaringType.IsValueType() {
			return self.MakeByRef()
		}
		return self
	}
	if p := m.Param(arg); p != nil {
		return p.Type
	}
	return nil
}

// EnsureBody returns the method body, creating an empty one if needed.
func (m *MethodDef) EnsureBody() *MethodBody {
	if m.Body == nil {
		m.Body = &MethodBody{Method: m}
	}
	return m.Body
}

// Common System references.
var (
	Void      = NewTypeRef("System", "Void", true)
	Object    = NewTypeRef("System", "Object", false)
	ValueType = NewTypeRef("System", "ValueType", false)
	Int32     = NewTypeRef("System", "Int32", true)
	Boolean   = NewTypeRef("System", "Boolean", true)
	Single    = NewTypeRef("System", "Single", true)
	String    = NewTypeRef("System", "String", false)
	IntPtr    = NewTypeRef("System", "IntPtr", true)
	Delegate  = NewTypeRef("System", "MulticastDelegate", false)
)
