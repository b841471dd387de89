package synth

import (
	"fmt"

	"github.com/wippyai/lambdajobs/diag"
	"github.com/wippyai/lambdajobs/il"
	"github.com/wippyai/lambdajobs/internal/analyzer"
	"github.com/wippyai/lambdajobs/internal/cursor"
	"github.com/wippyai/lambdajobs/internal/known"
)

const (
	getComponent = "GetComponent"
	setComponent = "SetComponent"
	hasComponent = "HasComponent"
)

// isComponentAccessor reports whether ref is one of the SystemBase
// component accessors a job can serve from ComponentDataFromEntity.
func isComponentAccessor(ref *il.MethodRef) bool {
	if !ref.DeclaringType.Is(known.NsEntities, known.SystemBase) || len(ref.GenericArgs) != 1 {
		return false
	}
	switch ref.Name {
	case getComponent, setComponent, hasComponent:
		return true
	}
	return false
}

// patchComponentAccess replaces system.GetComponent<T>(e) and friends in m
// with the matching ComponentDataFromEntity<T> member on a job field.
func (u *Unit) patchComponentAccess(m *il.MethodDef) error {
	calls := make([]*il.Instruction, 0)
	for _, ins := range m.Body.Instructions {
		if ref, ok := ins.IsInvocation(); ok && isComponentAccessor(ref) {
			calls = append(calls, ins)
		}
	}
	for _, call := range calls {
		ref, _ := call.Method()
		t := ref.GenericArgs[0]
		write := ref.Name == setComponent
		if err := u.checkAliasing(m, call, ref, t, write); err != nil {
			return err
		}
		this, hops, err := u.systemInstance(m, call, ref)
		if err != nil {
			return err
		}
		acc := u.componentAccess(t)
		if write && acc.ReadOnly {
			acc.ReadOnly = false
			acc.Field.CustomAttributes = acc.Field.CustomAttributes.Remove(known.NsCollections, known.ReadOnly)
		}
		for _, hop := range hops {
			hop.MakeNOP()
		}
		m.Body.InsertAfter(this, il.NewInstruction(il.Ldflda, acc.Field.Ref()))
		call.Set(il.Call, u.lookupMember(ref.Name, t))
	}
	return nil
}

// systemInstance walks from the instance argument of call back to the
// load of this, collecting the closure field loads in between.
func (u *Unit) systemInstance(m *il.MethodDef, call *il.Instruction, ref *il.MethodRef) (*il.Instruction, []*il.Instruction, error) {
	var hops []*il.Instruction
	p := cursor.FindInstructionThatPushedArg(m, 0, call)
	for p != nil && p.Op == il.Ldfld {
		f, _ := p.Field()
		if !u.isClosureField(f) {
			break
		}
		hops = append(hops, p)
		p = cursor.FindInstructionThatPushedArg(m, 0, p)
	}
	if p == nil || !p.IsLoadThis() {
		return nil, nil, u.raise(diag.DC0045, m, call, ref.Name)
	}
	return p, hops, nil
}

// checkAliasing rejects lookups of a component the lambda also receives
// as a parameter: writes always, reads when the parameter is a writable
// reference.
func (u *Unit) checkAliasing(m *il.MethodDef, call *il.Instruction, ref *il.MethodRef, t *il.TypeRef, write bool) error {
	if u.Chain.Kind != analyzer.KindEntities {
		return nil
	}
	for _, p := range u.Chain.Lambda.Params {
		if !p.Type.ElementType().Equal(t) {
			continue
		}
		if write {
			return u.raise(diag.DC0046, m, call, ref.Name, t.FullName())
		}
		if p.Type.IsByRef() && !isIn(p) {
			return u.raise(diag.DC0047, m, call, ref.Name, t.FullName())
		}
	}
	return nil
}

// componentAccess returns the job field serving lookups of t, declaring a
// read-only one on first use.
func (u *Unit) componentAccess(t *il.TypeRef) *ComponentAccess {
	for _, a := range u.Access {
		if a.Type.Equal(t) {
			return a
		}
	}
	cdfe := u.im.Entities(known.ComponentDataFromEnt).MakeGeneric(t)
	f := u.field(fmt.Sprintf("_ComponentDataFromEntity_%s_%d", t.Name, len(u.Access)), cdfe, il.FieldPrivate)
	f.CustomAttributes = il.Attributes{
		u.im.Attribute(known.NsCollections, known.ReadOnly),
		u.im.Attribute(known.NsBurst, known.NoAlias),
	}
	a := &ComponentAccess{Type: t, Field: f, ReadOnly: true}
	u.Access = append(u.Access, a)
	return a
}

// lookupMember maps a SystemBase accessor onto ComponentDataFromEntity<T>.
func (u *Unit) lookupMember(accessor string, t *il.TypeRef) *il.MethodRef {
	open := u.im.Entities(known.ComponentDataFromEnt)
	name, params := "get_Item", 1
	switch accessor {
	case setComponent:
		name, params = "set_Item", 2
	case hasComponent:
		name = hasComponent
	}
	return u.im.Method(open, name, params).OnType(open.MakeGeneric(t))
}
