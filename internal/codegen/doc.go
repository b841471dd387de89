// Package codegen builds IL instruction sequences for the synthesized job
// types and the rewritten call sites.
//
// An Emitter appends instructions through a fluent API. Branches target
// Labels; a label binds to the next instruction emitted after Mark, and
// branch operands are patched when the sequence is taken with Instructions.
//
//	em := codegen.NewEmitter()
//	defer codegen.PutEmitter(em)
//	loop, exit := em.Label(), em.Label()
//	em.Mark(loop).Ldloc(i).Ldloc(n).Emit(il.Clt, nil).Brfalse(exit)
//	...
//	em.Br(loop).Mark(exit).Ret()
//	code, err := em.Instructions()
//
// Emitters produce long forms only. Callers fold macro forms afterwards
// with MethodBody.Optimize.
package codegen
