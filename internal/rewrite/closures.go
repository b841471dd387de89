package rewrite

import (
	"github.com/wippyai/lambdajobs/diag"
	"github.com/wippyai/lambdajobs/il"
	"github.com/wippyai/lambdajobs/internal/analyzer"
)

// closureType returns the compiler-generated closure class t refers to,
// or nil.
func closureType(u *il.Universe, t *il.TypeRef) *il.TypeDef {
	if t == nil || t.Kind != il.TypeNamed {
		return nil
	}
	def := u.ResolveType(t)
	if def == nil || !def.IsDisplayClass() || !def.IsCompilerGenerated() || !def.IsClass() {
		return nil
	}
	return def
}

// CanConvertClosures reports whether the closure classes of m can become
// value types once chains are rewritten. That holds when every delegate
// bound to a closure in m belongs to one of chains, closures do not
// reference each other and their locals are only loaded, or stored
// right after allocation.
func CanConvertClosures(u *il.Universe, m *il.MethodDef, chains []*analyzer.Chain) bool {
	b := m.Body
	if b == nil {
		return false
	}
	owned := make(map[*il.Instruction]bool)
	for _, c := range chains {
		for _, ins := range c.Delegate.Instructions {
			owned[ins] = true
		}
	}
	seen := make(map[*il.TypeDef]bool)
	for i, ins := range b.Instructions {
		switch ins.Op {
		case il.Ldftn, il.Ldvirtftn:
			ref, _ := ins.Method()
			if ref != nil && closureType(u, ref.DeclaringType) != nil && !owned[ins] {
				return false
			}
			continue
		}
		l, ok := b.Local(ins)
		if !ok {
			continue
		}
		def := closureType(u, l.Type)
		if def == nil {
			continue
		}
		if !seen[def] {
			seen[def] = true
			for _, f := range def.Fields {
				if closureType(u, f.Type) != nil {
					return false
				}
			}
		}
		if _, store := b.IsStoreLocal(ins); store {
			if i == 0 || !allocates(b.Instructions[i-1], def) {
				return false
			}
		}
	}
	return true
}

func allocates(ins *il.Instruction, def *il.TypeDef) bool {
	if ins.Op != il.Newobj {
		return false
	}
	ref, ok := ins.Method()
	return ok && len(ref.Params) == 0 && ref.DeclaringType.FullName() == def.FullName()
}

// ConvertClosures turns the closure classes allocated in m into value
// types held directly in their locals:
//
//	newobj <>c__DisplayClass0_0::.ctor ; stloc l   =>   ldloca l ; initobj <>c__DisplayClass0_0
//	ldloc l                                        =>   ldloca l
//
// The closure loses its constructor and gains sequential layout.
func ConvertClosures(u *il.Universe, m *il.MethodDef) error {
	b := m.Body
	type site struct {
		alloc, store *il.Instruction
		local        *il.Local
		def          *il.TypeDef
	}
	var sites []site
	for _, ins := range b.Instructions {
		if ins.Op != il.Newobj {
			continue
		}
		ref, _ := ins.Method()
		def := closureType(u, ref.DeclaringType)
		if def == nil || len(ref.Params) != 0 {
			continue
		}
		next := b.Next(ins)
		var l *il.Local
		ok := false
		if next != nil {
			l, ok = b.IsStoreLocal(next)
		}
		if !ok {
			return diag.Raise(diag.DCICE006, m, ins, def.Name)
		}
		sites = append(sites, site{alloc: ins, store: next, local: l, def: def})
	}

	converted := make(map[*il.Local]bool, len(sites))
	types := make(map[*il.TypeDef]bool)
	for _, s := range sites {
		t := s.def.Ref()
		t.ValueType = true
		s.alloc.Set(il.Ldloca, s.local)
		s.store.Set(il.Initobj, t)
		converted[s.local] = true
		types[s.def] = true
	}
	for _, ins := range b.Instructions {
		if l, ok := b.IsLoadLocal(ins); ok && converted[l] {
			ins.Set(il.Ldloca, l)
		}
	}
	for l := range converted {
		l.Type.ValueType = true
	}
	for def := range types {
		toValueType(def)
	}
	markValueTypes(b, types)
	return nil
}

func toValueType(def *il.TypeDef) {
	def.BaseType = il.ValueType
	def.Flags |= il.TypeSequentialLayout
	methods := def.Methods[:0]
	for _, md := range def.Methods {
		if md.IsConstructor() && !md.IsStatic() && len(md.Params) == 0 {
			continue
		}
		methods = append(methods, md)
	}
	def.Methods = methods
}

// markValueTypes flags references to the converted types in b as value
// types so they encode as such.
func markValueTypes(b *il.MethodBody, types map[*il.TypeDef]bool) {
	names := make(map[string]bool, len(types))
	for def := range types {
		names[def.FullName()] = true
	}
	mark := func(t *il.TypeRef) {
		if t != nil && names[t.FullName()] {
			t.ValueType = true
		}
	}
	for _, ins := range b.Instructions {
		switch op := ins.Operand.(type) {
		case *il.TypeRef:
			mark(op)
		case *il.FieldRef:
			mark(op.DeclaringType)
		case *il.MethodRef:
			mark(op.DeclaringType)
		}
	}
}
