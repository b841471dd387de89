package rewrite

import (
	"github.com/wippyai/lambdajobs/diag"
	"github.com/wippyai/lambdajobs/il"
	"github.com/wippyai/lambdajobs/internal/known"
	"github.com/wippyai/lambdajobs/internal/synth"
)

// IsComponentSystem reports whether t is a user system, a type deriving
// from ComponentSystemBase outside the framework.
func IsComponentSystem(u *il.Universe, t *il.TypeDef) bool {
	if t.Namespace == known.NsEntities && t.DeclaringType == nil {
		return false
	}
	return u.InheritsFrom(t, known.NsEntities, known.ComponentSystemBase)
}

// InjectOnCreateForCompiler adds the OnCreateForCompiler override to the
// system t, calling the base implementation. Systems must not declare it
// themselves.
func (r *Rewriter) InjectOnCreateForCompiler(t *il.TypeDef) (*il.MethodDef, error) {
	if m, ok := r.hooks[t]; ok {
		return m, nil
	}
	if existing := t.Method(known.OnCreateForCompiler); existing != nil {
		return nil, diag.Raise(diag.DC0026, existing, nil,
			"It's not allowed to implement "+known.OnCreateForCompiler+" yourself. It is reserved for code generated by the lambda job post-processor.")
	}
	m := t.AddMethod(&il.MethodDef{
		Name:       known.OnCreateForCompiler,
		ReturnType: il.Void,
		Flags:      il.MethodFamily | il.MethodAssembly | il.MethodVirtual | il.MethodHideBySig,
	})
	base := &il.MethodRef{
		DeclaringType: t.BaseType,
		Name:          known.OnCreateForCompiler,
		ReturnType:    il.Void,
		HasThis:       true,
	}
	b := m.EnsureBody()
	b.InitLocals = true
	b.Emit(il.Ldarg, 0)
	b.Emit(il.Call, base)
	b.Emit(il.Ret, nil)
	r.hooks[t] = m
	return m, nil
}

// Commit attaches u to its system and appends its initialisation to the
// system's OnCreateForCompiler, injecting the override first if needed.
func (r *Rewriter) Commit(u *synth.Unit) error {
	hook, err := r.InjectOnCreateForCompiler(u.Chain.Containing())
	if err != nil {
		return err
	}
	u.Commit()
	if len(u.CreateInit) == 0 {
		return nil
	}
	b := hook.Body
	for i := len(b.Instructions) - 1; i >= 0; i-- {
		if b.Instructions[i].Op == il.Ret {
			b.InsertAt(i, u.CreateInit...)
			return nil
		}
	}
	b.Append(u.CreateInit...)
	b.Emit(il.Ret, nil)
	return nil
}
