package il

import (
	"strconv"
	"strings"
)

// TypeKind distinguishes the shapes a type reference can take.
type TypeKind uint8

const (
	TypeNamed TypeKind = iota
	TypeByRef
	TypePointer
	TypeArray
	TypeGenericParam       // !N, a parameter of the declaring type
	TypeMethodGenericParam // !!N, a parameter of the method
)

// TypeRef refers to a type by name. References are compared by FullName;
// two distinct pointers naming the same type are equal.
type TypeRef struct {
	Elem          *TypeRef // element of byref, pointer and array types
	DeclaringType *TypeRef // outer type of a nested type
	Namespace     string
	Name          string
	Args          []*TypeRef // generic instance arguments
	Position      int        // generic parameter position
	Kind          TypeKind
	ValueType     bool
}

// NewTypeRef creates a named type reference.
func NewTypeRef(namespace, name string, valueType bool) *TypeRef {
	return &TypeRef{Namespace: namespace, Name: name, ValueType: valueType}
}

// NestedTypeRef creates a reference to a type nested in decl.
func NestedTypeRef(decl *TypeRef, name string, valueType bool) *TypeRef {
	return &TypeRef{DeclaringType: decl, Name: name, ValueType: valueType}
}

// GenericParam returns a reference to the type parameter at pos.
func GenericParam(pos int) *TypeRef {
	return &TypeRef{Kind: TypeGenericParam, Position: pos}
}

// MethodGenericParam returns a reference to the method type parameter at pos.
func MethodGenericParam(pos int) *TypeRef {
	return &TypeRef{Kind: TypeMethodGenericParam, Position: pos}
}

// MakeByRef returns a managed pointer to t.
func (t *TypeRef) MakeByRef() *TypeRef {
	return &TypeRef{Kind: TypeByRef, Elem: t}
}

// MakePointer returns an unmanaged pointer to t.
func (t *TypeRef) MakePointer() *TypeRef {
	return &TypeRef{Kind: TypePointer, Elem: t, ValueType: true}
}

// MakeArray returns a single-dimensional array of t.
func (t *TypeRef) MakeArray() *TypeRef {
	return &TypeRef{Kind: TypeArray, Elem: t}
}

// MakeGeneric returns a generic instance of t with the given arguments.
func (t *TypeRef) MakeGeneric(args ...*TypeRef) *TypeRef {
	c := *t
	c.Args = args
	return &c
}

// Open returns t without generic instance arguments.
func (t *TypeRef) Open() *TypeRef {
	if len(t.Args) == 0 {
		return t
	}
	c := *t
	c.Args = nil
	return &c
}

// IsByRef reports whether t is a managed pointer.
func (t *TypeRef) IsByRef() bool { return t != nil && t.Kind == TypeByRef }

// IsPointer reports whether t is an unmanaged pointer.
func (t *TypeRef) IsPointer() bool { return t != nil && t.Kind == TypePointer }

// IsArray reports whether t is an array.
func (t *TypeRef) IsArray() bool { return t != nil && t.Kind == TypeArray }

// IsGenericParameter reports whether t is a type or method generic parameter.
func (t *TypeRef) IsGenericParameter() bool {
	return t != nil && (t.Kind == TypeGenericParam || t.Kind == TypeMethodGenericParam)
}

// IsGenericInstance reports whether t carries generic arguments.
func (t *TypeRef) IsGenericInstance() bool { return t != nil && len(t.Args) > 0 }

// IsPrimitive reports whether t is one of the System primitive types.
func (t *TypeRef) IsPrimitive() bool {
	if t == nil || t.Kind != TypeNamed || t.Namespace != "System" {
		return false
	}
	switch t.Name {
	case "Boolean", "Char", "SByte", "Byte", "Int16", "UInt16", "Int32", "UInt32",
		"Int64", "UInt64", "Single", "Double", "IntPtr", "UIntPtr":
		return true
	}
	return false
}

// IsVoid reports whether t is System.Void.
func (t *TypeRef) IsVoid() bool {
	return t != nil && t.Kind == TypeNamed && t.Namespace == "System" && t.Name == "Void"
}

// IsValueType reports whether values of t are stored inline. Generic
// parameters report false; resolve them against their instantiation first.
func (t *TypeRef) IsValueType() bool {
	if t == nil {
		return false
	}
	switch t.Kind {
	case TypeNamed:
		return t.ValueType
	case TypePointer:
		return true
	}
	return false
}

// ElementType strips byref and pointer wrappers.
func (t *TypeRef) ElementType() *TypeRef {
	for t != nil && (t.Kind == TypeByRef || t.Kind == TypePointer) {
		t = t.Elem
	}
	return t
}

// OpenName returns the name of the named type without generic arguments,
// including its namespace or declaring type.
func (t *TypeRef) OpenName() string {
	if t.DeclaringType != nil {
		return t.DeclaringType.OpenName() + "/" + t.Name
	}
	if t.Namespace == "" {
		return t.Name
	}
	return t.Namespace + "." + t.Name
}

// FullName returns the canonical display and identity name of t.
func (t *TypeRef) FullName() string {
	if t == nil {
		return "<nil>"
	}
	var b strings.Builder
	t.writeName(&b)
	return b.String()
}

func (t *TypeRef) String() string {
	return t.FullName()
}

func (t *TypeRef) writeName(b *strings.Builder) {
	switch t.Kind {
	case TypeByRef:
		t.Elem.writeName(b)
		b.WriteByte('&')
		return
	case TypePointer:
		t.Elem.writeName(b)
		b.WriteByte('*')
		return
	case TypeArray:
		t.Elem.writeName(b)
		b.WriteString("[]")
		return
	case TypeGenericParam:
		b.WriteByte('!')
		b.WriteString(strconv.Itoa(t.Position))
		return
	case TypeMethodGenericParam:
		b.WriteString("!!")
		b.WriteString(strconv.Itoa(t.Position))
		return
	}
	b.WriteString(t.OpenName())
	if len(t.Args) > 0 {
		b.WriteByte('<')
		for i, a := range t.Args {
			if i > 0 {
				b.WriteByte(',')
			}
			a.writeName(b)
		}
		b.WriteByte('>')
	}
}

// Equal reports whether t and o name the same type.
func (t *TypeRef) Equal(o *TypeRef) bool {
	if t == o {
		return true
	}
	if t == nil || o == nil {
		return false
	}
	return t.FullName() == o.FullName()
}

// Is reports whether t is the named type namespace.name, ignoring generic arguments.
func (t *TypeRef) Is(namespace, name string) bool {
	return t != nil && t.Kind == TypeNamed && t.DeclaringType == nil &&
		t.Namespace == namespace && t.Name == name
}

// Substitute replaces generic parameters with the given arguments.
// Parameters without a matching argument are kept.
func (t *TypeRef) Substitute(typeArgs, methodArgs []*TypeRef) *TypeRef {
	if t == nil {
		return nil
	}
	switch t.Kind {
	case TypeGenericParam:
		if t.Position < len(typeArgs) {
			return typeArgs[t.Position]
		}
		return t
	case TypeMethodGenericParam:
		if t.Position < len(methodArgs) {
			return methodArgs[t.Position]
		}
		return t
	case TypeByRef, TypePointer, TypeArray:
		elem := t.Elem.Substitute(typeArgs, methodArgs)
		if elem == t.Elem {
			return t
		}
		c := *t
		c.Elem = elem
		return &c
	}
	if len(t.Args) == 0 {
		return t
	}
	args := make([]*TypeRef, len(t.Args))
	changed := false
	for i, a := range t.Args {
		args[i] = a.Substitute(typeArgs, methodArgs)
		changed = changed || args[i] != a
	}
	if !changed {
		return t
	}
	c := *t
	c.Args = args
	return &c
}

// FieldRef refers to a field of a type.
type FieldRef struct {
	DeclaringType *TypeRef
	Type          *TypeRef
	Name          string
}

// FullName returns "Type Declaring::Name".
func (f *FieldRef) FullName() string {
	return f.Type.FullName() + " " + f.DeclaringType.FullName() + "::" + f.Name
}

func (f *FieldRef) String() string {
	return f.FullName()
}

// Equal reports whether f and o name the same field.
func (f *FieldRef) Equal(o *FieldRef) bool {
	if f == o {
		return true
	}
	if f == nil || o == nil {
		return false
	}
	return f.Name == o.Name && f.DeclaringType.Equal(o.DeclaringType)
}

// ResolvedType returns the field type with the declaring type's generic
// arguments substituted.
func (f *FieldRef) ResolvedType() *TypeRef {
	return f.Type.Substitute(f.DeclaringType.Args, nil)
}

// MethodRef refers to a method. Params and ReturnType are kept in the
// open form of the declaration; use ParamType and Return for the
// instantiated types.
type MethodRef struct {
	DeclaringType *TypeRef
	ReturnType    *TypeRef
	Name          string
	Params        []*TypeRef
	GenericArgs   []*TypeRef
	GenericArity  int
	HasThis       bool
}

// MakeGeneric returns an instantiation of a generic method.
func (m *MethodRef) MakeGeneric(args ...*TypeRef) *MethodRef {
	c := *m
	c.GenericArgs = args
	if c.GenericArity < len(args) {
		c.GenericArity = len(args)
	}
	return &c
}

// OnType returns a copy of m declared on t, typically a generic instance of
// m's declaring type.
func (m *MethodRef) OnType(t *TypeRef) *MethodRef {
	c := *m
	c.DeclaringType = t
	return &c
}

// ReturnsVoid reports whether the method returns nothing.
func (m *MethodRef) ReturnsVoid() bool {
	return m.ReturnType == nil || m.ReturnType.IsVoid()
}

// ParamType returns the instantiated type of parameter i.
func (m *MethodRef) ParamType(i int) *TypeRef {
	return m.Params[i].Substitute(m.DeclaringType.Args, m.GenericArgs)
}

// Return returns the instantiated return type.
func (m *MethodRef) Return() *TypeRef {
	if m.ReturnType == nil {
		return nil
	}
	return m.ReturnType.Substitute(m.DeclaringType.Args, m.GenericArgs)
}

// FullName returns "Ret Declaring::Name<Args>(Params)".
func (m *MethodRef) FullName() string {
	var b strings.Builder
	if m.ReturnType != nil {
		m.ReturnType.writeName(&b)
	} else {
		b.WriteString("System.Void")
	}
	b.WriteByte(' ')
	m.DeclaringType.writeName(&b)
	b.WriteString("::")
	b.WriteString(m.Name)
	if len(m.GenericArgs) > 0 {
		b.WriteByte('<')
		for i, a := range m.GenericArgs {
			if i > 0 {
				b.WriteByte(',')
			}
			a.writeName(&b)
		}
		b.WriteByte('>')
	} else if m.GenericArity > 0 {
		b.WriteByte('`')
		b.WriteString(strconv.Itoa(m.GenericArity))
	}
	b.WriteByte('(')
	for i, p := range m.Params {
		if i > 0 {
			b.WriteByte(',')
		}
		p.writeName(&b)
	}
	b.WriteByte(')')
	return b.String()
}

func (m *MethodRef) String() string {
	return m.FullName()
}

// Equal reports whether m and o name the same method (same instantiation).
func (m *MethodRef) Equal(o *MethodRef) bool {
	if m == o {
		return true
	}
	if m == nil || o == nil {
		return false
	}
	return m.HasThis == o.HasThis && m.FullName() == o.FullName()
}

// SameSignature reports whether m and o name the same method definition,
// ignoring generic instantiation of the method and its declaring type.
func (m *MethodRef) SameSignature(o *MethodRef) bool {
	if m.Name != o.Name || len(m.Params) != len(o.Params) || m.HasThis != o.HasThis {
		return false
	}
	if m.DeclaringType.OpenName() != o.DeclaringType.OpenName() {
		return false
	}
	for i := range m.Params {
		if !m.Params[i].Equal(o.Params[i]) {
			return false
		}
	}
	return true
}
