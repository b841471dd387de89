package engine

import (
	"github.com/wippyai/lambdajobs/il"
	"github.com/wippyai/lambdajobs/internal/known"
	"github.com/wippyai/lambdajobs/internal/rewrite"
)

// systemState records a system before one of its methods is processed.
// Committing a job adds a nested struct, a query field and initialisation
// code to the system, and closure conversion edits nested closure types,
// so restoring the method body alone would leave them orphaned.
type systemState struct {
	t       *il.TypeDef
	fields  []*il.FieldDef
	methods []*il.MethodDef
	nested  []*il.TypeDef
	types   []nestedState
	hook    *rewrite.Snapshot
	jobs    int
}

type nestedState struct {
	t       *il.TypeDef
	base    *il.TypeRef
	methods []*il.MethodDef
	flags   il.TypeAttributes
}

func (p *pass) takeSystem(t *il.TypeDef) *systemState {
	s := &systemState{
		t:       t,
		fields:  append([]*il.FieldDef(nil), t.Fields...),
		methods: append([]*il.MethodDef(nil), t.Methods...),
		nested:  append([]*il.TypeDef(nil), t.NestedTypes...),
		jobs:    len(p.report.Jobs),
	}
	for _, n := range t.NestedTypes {
		s.types = append(s.types, nestedState{
			t:       n,
			base:    n.BaseType,
			methods: append([]*il.MethodDef(nil), n.Methods...),
			flags:   n.Flags,
		})
	}
	if hook := t.Method(known.OnCreateForCompiler); hook != nil && hook.Body != nil {
		s.hook = rewrite.Take(hook.Body)
	}
	return s
}

// restoreSystem puts the system back and drops jobs reported since the state
// was taken.
func (p *pass) restoreSystem(s *systemState) {
	t := s.t
	t.Fields = append(t.Fields[:0:0], s.fields...)
	t.Methods = append(t.Methods[:0:0], s.methods...)
	t.NestedTypes = append(t.NestedTypes[:0:0], s.nested...)
	for _, n := range s.types {
		n.t.BaseType = n.base
		n.t.Methods = append(n.t.Methods[:0:0], n.methods...)
		n.t.Flags = n.flags
	}
	if s.hook != nil {
		s.hook.Restore()
	}
	if t.Module != nil {
		t.Module.Changed()
	}
	p.report.Jobs = p.report.Jobs[:s.jobs]
}
