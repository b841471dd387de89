package framework

import (
	"github.com/wippyai/lambdajobs/il"
)

// builder assembles definition-only types. Framework methods carry no
// bodies: the pass only needs their signatures and attributes.
type builder struct {
	mod *il.Module
}

func (b *builder) add(t *il.TypeDef) *il.TypeDef {
	return b.mod.AddType(t)
}

func (b *builder) class(ns, name string, base *il.TypeRef, generic ...string) *il.TypeDef {
	if base == nil {
		base = il.Object
	}
	return b.add(&il.TypeDef{Namespace: ns, Name: name, BaseType: base, Flags: il.TypePublic, GenericParams: generic})
}

func (b *builder) static(ns, name string) *il.TypeDef {
	return b.add(&il.TypeDef{Namespace: ns, Name: name, BaseType: il.Object, Flags: il.TypePublic | il.TypeAbstract | il.TypeSealed})
}

func (b *builder) structure(ns, name string, generic ...string) *il.TypeDef {
	return b.add(&il.TypeDef{Namespace: ns, Name: name, BaseType: il.ValueType, Flags: il.TypePublic | il.TypeSealed | il.TypeSequentialLayout, GenericParams: generic})
}

func (b *builder) enum(ns, name string) *il.TypeDef {
	return b.add(&il.TypeDef{Namespace: ns, Name: name, BaseType: il.NewTypeRef("System", "Enum", false), Flags: il.TypePublic | il.TypeSealed})
}

func (b *builder) iface(ns, name string, generic ...string) *il.TypeDef {
	return b.add(&il.TypeDef{Namespace: ns, Name: name, Flags: il.TypePublic | il.TypeInterface | il.TypeAbstract, GenericParams: generic})
}

func (b *builder) attribute(ns, name string) *il.TypeDef {
	t := b.class(ns, name, attributeBase)
	ctor(t)
	return t
}

func (b *builder) delegate(ns, name string, ret *il.TypeRef, params ...param) *il.TypeDef {
	t := b.class(ns, name, il.Delegate)
	t.Flags |= il.TypeSealed
	delegateMembers(t, ret, params...)
	return t
}

func nestedStruct(outer *il.TypeDef, name string) *il.TypeDef {
	return outer.AddNested(&il.TypeDef{Name: name, BaseType: il.ValueType, Flags: il.TypeNestedPublic | il.TypeSealed | il.TypeSequentialLayout, GenericParams: outer.GenericParams})
}

func nestedDelegate(outer *il.TypeDef, name string, ret *il.TypeRef, params ...param) *il.TypeDef {
	t := outer.AddNested(&il.TypeDef{Name: name, BaseType: il.Delegate, Flags: il.TypeNestedPublic | il.TypeSealed})
	delegateMembers(t, ret, params...)
	return t
}

func nestedAttribute(outer *il.TypeDef, name string) *il.TypeDef {
	t := outer.AddNested(&il.TypeDef{Name: name, BaseType: attributeBase, Flags: il.TypeNestedPublic})
	ctor(t)
	return t
}

func delegateMembers(t *il.TypeDef, ret *il.TypeRef, params ...param) {
	method(t, ".ctor", il.MethodPublic|il.MethodSpecialName|il.MethodRTSpecialName, il.Void,
		p("object", il.Object), p("method", il.IntPtr))
	method(t, "Invoke", il.MethodPublic|il.MethodVirtual, ret, params...)
}

func ctor(t *il.TypeDef, params ...param) *il.MethodDef {
	return method(t, ".ctor", il.MethodPublic|il.MethodSpecialName|il.MethodRTSpecialName|il.MethodHideBySig, il.Void, params...)
}

type param struct {
	typ   *il.TypeRef
	name  string
	attrs il.Attributes
	flags il.ParamAttributes
}

func p(name string, t *il.TypeRef, attrs ...*il.CustomAttribute) param {
	return param{name: name, typ: t, attrs: attrs}
}

func in(name string, t *il.TypeRef) param {
	return param{name: name, typ: t.MakeByRef(), attrs: il.Attributes{il.NewAttribute(isReadOnlyAttr)}, flags: il.ParamIn}
}

func out(name string, t *il.TypeRef) param {
	return param{name: name, typ: t.MakeByRef(), flags: il.ParamOut}
}

func method(t *il.TypeDef, name string, flags il.MethodAttributes, ret *il.TypeRef, params ...param) *il.MethodDef {
	m := &il.MethodDef{Name: name, Flags: flags | il.MethodHideBySig, ReturnType: ret}
	for _, pp := range params {
		m.Params = append(m.Params, &il.ParamDef{Name: pp.name, Type: pp.typ, CustomAttributes: pp.attrs, Flags: pp.flags})
	}
	return t.AddMethod(m)
}

func instance(t *il.TypeDef, name string, ret *il.TypeRef, params ...param) *il.MethodDef {
	return method(t, name, il.MethodPublic, ret, params...)
}

func staticMethod(t *il.TypeDef, name string, ret *il.TypeRef, params ...param) *il.MethodDef {
	return method(t, name, il.MethodPublic|il.MethodStatic, ret, params...)
}

func generic(m *il.MethodDef, names ...string) *il.MethodDef {
	m.GenericParams = names
	return m
}

func field(t *il.TypeDef, name string, typ *il.TypeRef) *il.FieldDef {
	return t.AddField(&il.FieldDef{Name: name, Type: typ, Flags: il.FieldPublic})
}

func mark(t *il.TypeDef, attrs ...*il.TypeRef) {
	for _, a := range attrs {
		t.CustomAttributes = append(t.CustomAttributes, il.NewAttribute(a))
	}
}

func markMethod(m *il.MethodDef, attrs ...*il.TypeRef) *il.MethodDef {
	for _, a := range attrs {
		m.CustomAttributes = append(m.CustomAttributes, il.NewAttribute(a))
	}
	return m
}

var (
	attributeBase  = il.NewTypeRef("System", "Attribute", false)
	isReadOnlyAttr = il.NewTypeRef("System.Runtime.CompilerServices", "IsReadOnlyAttribute", false)
	t0             = il.GenericParam(0)
	mt0            = il.MethodGenericParam(0)
	mt1            = il.MethodGenericParam(1)
)
