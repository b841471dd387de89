package known

import (
	"fmt"
	"strconv"
	"sync"

	"github.com/wippyai/lambdajobs/il"
)

// Imports interns references to framework members for one module. It is
// created for a single processing run and discarded afterwards.
//
// Lookups never fail at the call site: a missing member yields a
// placeholder reference and records a miss, so a sequence of emits can be
// checked once at the end. Misses are logged per lookup, including
// repeated lookups of an interned placeholder, so callers scope the check
// to their own work with Mark and ErrSince.
type Imports struct {
	u       *il.Universe
	types   map[string]*il.TypeRef
	methods map[string]*il.MethodRef
	fields  map[string]*il.FieldRef
	// missing maps the interning key of each placeholder to its member name.
	missing map[string]string
	misses  []string
	mu      sync.Mutex
}

// NewImports creates an import table resolving against u.
func NewImports(u *il.Universe) *Imports {
	return &Imports{
		u:       u,
		types:   make(map[string]*il.TypeRef),
		methods: make(map[string]*il.MethodRef),
		fields:  make(map[string]*il.FieldRef),
		missing: make(map[string]string),
	}
}

// Universe returns the resolver the table was built over.
func (im *Imports) Universe() *il.Universe {
	return im.u
}

// Err returns the first failed lookup of the table's lifetime.
func (im *Imports) Err() error {
	return im.ErrSince(0)
}

// Mark returns a position in the miss log for a later ErrSince.
func (im *Imports) Mark() int {
	im.mu.Lock()
	defer im.mu.Unlock()
	return len(im.misses)
}

// ErrSince returns the first failed lookup made after mark, or nil.
func (im *Imports) ErrSince(mark int) error {
	if name := im.MissingSince(mark); name != "" {
		return &MissingError{Name: name}
	}
	return nil
}

// MissingSince names the first member that failed to resolve after mark,
// or returns "".
func (im *Imports) MissingSince(mark int) string {
	im.mu.Lock()
	defer im.mu.Unlock()
	if mark < 0 || mark >= len(im.misses) {
		return ""
	}
	return im.misses[mark]
}

// MissingError reports a framework member that could not be found.
type MissingError struct {
	Name string
}

func (e *MissingError) Error() string {
	return "framework member " + e.Name + " not found"
}

// fail records a miss for key, remembering name for later hits on the
// same placeholder.
func (im *Imports) fail(key, name string) {
	im.missing[key] = name
	im.misses = append(im.misses, name)
}

// cached records a repeated miss when key interns a placeholder.
func (im *Imports) cached(key string) {
	if name, ok := im.missing[key]; ok {
		im.misses = append(im.misses, name)
	}
}

// Len returns the number of interned references.
func (im *Imports) Len() int {
	im.mu.Lock()
	defer im.mu.Unlock()
	return len(im.types) + len(im.methods) + len(im.fields)
}

// Def returns the definition of the named framework type.
func (im *Imports) Def(ns, name string) *il.TypeDef {
	full := name
	if ns != "" {
		full = ns + "." + name
	}
	return im.u.FindType(full)
}

// Type returns an open reference to the named framework type.
func (im *Imports) Type(ns, name string) *il.TypeRef {
	key := ns + "." + name
	im.mu.Lock()
	defer im.mu.Unlock()
	if t, ok := im.types[key]; ok {
		im.cached(key)
		return t
	}
	var t *il.TypeRef
	if def := im.u.FindType(key); def != nil {
		t = def.Ref()
	} else {
		im.fail(key, key)
		t = il.NewTypeRef(ns, name, false)
	}
	im.types[key] = t
	return t
}

// Nested returns an open reference to a type nested in ns.outer.
func (im *Imports) Nested(ns, outer, name string) *il.TypeRef {
	key := ns + "." + outer + "/" + name
	im.mu.Lock()
	defer im.mu.Unlock()
	if t, ok := im.types[key]; ok {
		im.cached(key)
		return t
	}
	var t *il.TypeRef
	if def := im.u.FindType(key); def != nil {
		t = def.Ref()
	} else {
		im.fail(key, key)
		t = il.NestedTypeRef(il.NewTypeRef(ns, outer, false), name, false)
	}
	im.types[key] = t
	return t
}

// Method returns a reference to the method of the given type with the given
// name and parameter count. Overloads with equal counts are told apart by
// the types of the first parameters when given.
func (im *Imports) Method(owner *il.TypeRef, name string, params int, first ...*il.TypeRef) *il.MethodRef {
	return im.GenericMethod(owner, name, params, -1, first...)
}

// GenericMethod is Method restricted to overloads with arity generic
// parameters. A negative arity accepts any.
func (im *Imports) GenericMethod(owner *il.TypeRef, name string, params, arity int, first ...*il.TypeRef) *il.MethodRef {
	key := owner.OpenName() + "::" + name + "/" + strconv.Itoa(params) + "`" + strconv.Itoa(arity)
	for _, f := range first {
		key += "," + f.FullName()
	}
	im.mu.Lock()
	defer im.mu.Unlock()
	if m, ok := im.methods[key]; ok {
		im.cached(key)
		return m
	}
	var found *il.MethodDef
	for t := im.u.ResolveType(owner); t != nil && found == nil; t = im.u.BaseOf(t) {
		for _, def := range t.Methods {
			if def.Name == name && len(def.Params) == params && (arity < 0 || len(def.GenericParams) == arity) &&
				paramsStartWith(def, first) {
				found = def
				break
			}
		}
	}
	var m *il.MethodRef
	if found != nil {
		m = found.Ref()
	} else {
		im.fail(key, fmt.Sprintf("%s::%s(%d)", owner.OpenName(), name, params))
		m = &il.MethodRef{DeclaringType: owner, Name: name, ReturnType: il.Void, Params: make([]*il.TypeRef, params)}
		for i := range m.Params {
			m.Params[i] = il.Object
		}
	}
	im.methods[key] = m
	return m
}

func paramsStartWith(def *il.MethodDef, first []*il.TypeRef) bool {
	if len(first) > len(def.Params) {
		return false
	}
	for i, f := range first {
		if !def.Params[i].Type.Equal(f) {
			return false
		}
	}
	return true
}

// Field returns a reference to a field of the given type.
func (im *Imports) Field(owner *il.TypeRef, name string) *il.FieldRef {
	key := owner.OpenName() + "::" + name
	im.mu.Lock()
	defer im.mu.Unlock()
	if f, ok := im.fields[key]; ok {
		im.cached(key)
		return f
	}
	var f *il.FieldRef
	if def := im.u.ResolveField(&il.FieldRef{DeclaringType: owner, Name: name}); def != nil {
		f = def.Ref()
	} else {
		im.fail(key, key)
		f = &il.FieldRef{DeclaringType: owner, Name: name, Type: il.Object}
	}
	im.fields[key] = f
	return f
}

// Attribute returns a parameterless attribute of the named framework type.
func (im *Imports) Attribute(ns, name string, args ...any) *il.CustomAttribute {
	return il.NewAttribute(im.Type(ns, name), args...)
}

// Entities returns a reference to a type in Unity.Entities.
func (im *Imports) Entities(name string) *il.TypeRef {
	return im.Type(NsEntities, name)
}
