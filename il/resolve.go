package il

import "sync"

// Universe resolves references against a set of modules: the module being
// processed plus the modules it references.
type Universe struct {
	index   map[string]*TypeDef
	modules []*Module
	// gens holds the module generations the index was built at.
	gens []uint64
	mu   sync.RWMutex
}

// NewUniverse creates a resolver over the given modules. Earlier modules
// win when two define the same type.
func NewUniverse(modules ...*Module) *Universe {
	u := &Universe{modules: modules}
	u.reindex()
	return u
}

// Modules returns the modules known to the universe.
func (u *Universe) Modules() []*Module {
	return u.modules
}

func (u *Universe) reindex() {
	idx := make(map[string]*TypeDef)
	gens := make([]uint64, len(u.modules))
	for i, m := range u.modules {
		gens[i] = m.generation()
		for _, t := range m.AllTypes() {
			if _, ok := idx[t.FullName()]; !ok {
				idx[t.FullName()] = t
			}
		}
	}
	u.index = idx
	u.gens = gens
}

// fresh reports whether no module has changed since the last reindex.
func (u *Universe) fresh() bool {
	for i, m := range u.modules {
		if m.generation() != u.gens[i] {
			return false
		}
	}
	return true
}

func (u *Universe) lookup(name string) *TypeDef {
	u.mu.RLock()
	fresh := u.fresh()
	t := u.index[name]
	u.mu.RUnlock()
	if fresh {
		return t
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	if !u.fresh() {
		u.reindex()
	}
	return u.index[name]
}

// ResolveType returns the definition of the named type underneath any
// byref, pointer or array wrapper. Generic parameters do not resolve.
func (u *Universe) ResolveType(t *TypeRef) *TypeDef {
	for t != nil && t.Kind != TypeNamed {
		if t.Kind == TypeGenericParam || t.Kind == TypeMethodGenericParam {
			return nil
		}
		t = t.Elem
	}
	if t == nil {
		return nil
	}
	return u.lookup(t.OpenName())
}

// FindType looks a definition up by its open full name.
func (u *Universe) FindType(fullName string) *TypeDef {
	return u.lookup(fullName)
}

// BaseOf returns the definition of t's base type.
func (u *Universe) BaseOf(t *TypeDef) *TypeDef {
	if t == nil || t.BaseType == nil {
		return nil
	}
	return u.ResolveType(t.BaseType)
}

// ResolveMethod finds the definition of m, searching the declaring type and
// then its base types.
func (u *Universe) ResolveMethod(m *MethodRef) *MethodDef {
	if m == nil {
		return nil
	}
	for t := u.ResolveType(m.DeclaringType); t != nil; t = u.BaseOf(t) {
		for _, def := range t.Methods {
			if matchesDef(m, def) {
				return def
			}
		}
	}
	return nil
}

func matchesDef(m *MethodRef, def *MethodDef) bool {
	if def.Name != m.Name || len(def.Params) != len(m.Params) || def.HasThis() != m.HasThis {
		return false
	}
	if len(def.GenericParams) != m.GenericArity {
		return false
	}
	for i, p := range def.Params {
		if !p.Type.Equal(m.Params[i]) {
			return false
		}
	}
	return true
}

// ResolveField finds the definition of f, searching base types.
func (u *Universe) ResolveField(f *FieldRef) *FieldDef {
	if f == nil {
		return nil
	}
	for t := u.ResolveType(f.DeclaringType); t != nil; t = u.BaseOf(t) {
		if def := t.Field(f.Name); def != nil {
			return def
		}
	}
	return nil
}

// InheritsFrom reports whether t is namespace.name or derives from it.
func (u *Universe) InheritsFrom(t *TypeDef, namespace, name string) bool {
	for ; t != nil; t = u.BaseOf(t) {
		if t.Namespace == namespace && t.Name == name && t.DeclaringType == nil {
			return true
		}
		if t.BaseType != nil && t.BaseType.Is(namespace, name) {
			return true
		}
	}
	return false
}

// Implements reports whether t or one of its base types lists the
// interface namespace.name.
func (u *Universe) Implements(t *TypeDef, namespace, name string) bool {
	for ; t != nil; t = u.BaseOf(t) {
		for _, i := range t.Interfaces {
			if i.Is(namespace, name) {
				return true
			}
			if def := u.ResolveType(i); def != nil && def != t && u.Implements(def, namespace, name) {
				return true
			}
		}
	}
	return false
}

// IsValueType reports whether t is a value type, consulting the definition
// when the reference does not carry the flag.
func (u *Universe) IsValueType(t *TypeRef) bool {
	if t == nil {
		return false
	}
	if t.IsValueType() {
		return true
	}
	if t.Kind != TypeNamed {
		return false
	}
	if def := u.ResolveType(t); def != nil {
		return def.IsValueType()
	}
	return false
}
