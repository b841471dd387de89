package synth

import (
	"strings"

	"github.com/wippyai/lambdajobs/diag"
	"github.com/wippyai/lambdajobs/il"
	"github.com/wippyai/lambdajobs/internal/analyzer"
	"github.com/wippyai/lambdajobs/internal/codegen"
	"github.com/wippyai/lambdajobs/internal/cursor"
	"github.com/wippyai/lambdajobs/internal/known"
)

// checkLambdaOnSystem rejects a Burst or scheduled lambda compiled onto
// the system when it touches the system instance in ways a job cannot.
// Calls to the component accessors of SystemBase are the exception; they
// set HasAllowedMethodInvokedWithThis and the lambda gets cloned.
func (s *Synthesizer) checkLambdaOnSystem(c *analyzer.Chain) error {
	if !c.LambdaOnContainingType() || c.AllowReferenceTypes() {
		return nil
	}
	code := c.Lambda.Body.Instructions
	for i, ins := range code {
		if (ins.Op == il.Ldfld || ins.Op == il.Ldflda) && i > 0 && code[i-1].IsLoadThis() {
			f, _ := ins.Field()
			return diag.Raise(diag.DC0001, c.Method, c.Source, f.Name)
		}
	}
	visited := make(map[*il.MethodDef]bool)
	for _, ins := range code {
		ref, ok := ins.IsInvocation()
		if !ok || !s.touchesSystem(c, ref) {
			continue
		}
		if !s.permittedCall(c, ref, visited) {
			return diag.Raise(diag.DC0002, c.Method, c.Source, ref.Name, c.Containing().Name)
		}
		c.HasAllowedMethodInvokedWithThis = true
	}
	if !c.HasAllowedMethodInvokedWithThis {
		return diag.Raise(diag.DCICE001, c.Method, c.Source)
	}
	return nil
}

// touchesSystem reports whether ref is an instance method of the system or
// its bases, or takes the system as a parameter.
func (s *Synthesizer) touchesSystem(c *analyzer.Chain, ref *il.MethodRef) bool {
	containing := c.Containing()
	if def := s.u.ResolveMethod(ref); def != nil && !def.IsStatic() && s.isOrDerives(containing, ref.DeclaringType) {
		return true
	}
	for _, p := range ref.Params {
		if p.ElementType().Is("System", "Object") {
			continue
		}
		if s.isOrDerives(containing, p) {
			return true
		}
	}
	return false
}

func (s *Synthesizer) isOrDerives(t *il.TypeDef, ref *il.TypeRef) bool {
	name := ref.ElementType().OpenName()
	for d := t; d != nil; d = s.u.BaseOf(d) {
		if d.FullName() == name {
			return true
		}
	}
	return false
}

// permittedCall reports whether ref may be invoked on the system from job
// code. Local functions compiled onto the system are permitted when every
// call they make is.
func (s *Synthesizer) permittedCall(c *analyzer.Chain, ref *il.MethodRef, visited map[*il.MethodDef]bool) bool {
	if isComponentAccessor(ref) {
		return true
	}
	def := s.u.ResolveMethod(ref)
	if def == nil || def.DeclaringType != c.Containing() || def.Body == nil || !strings.HasPrefix(def.Name, "<") {
		return false
	}
	if visited[def] {
		return true
	}
	visited[def] = true
	for _, ins := range def.Body.Instructions {
		inner, ok := ins.IsInvocation()
		if ok && s.touchesSystem(c, inner) && !s.permittedCall(c, inner, visited) {
			return false
		}
	}
	return true
}

// relay makes OriginalLambdaBody forward to the lambda on the system
// instance stored in hostInstance.
func (u *Unit) relay() error {
	lambda := u.Chain.Lambda
	u.SystemInstance = u.field(hostInstance, u.Chain.Containing().SelfRef(), il.FieldPublic)

	params := make([]*il.ParamDef, len(lambda.Params))
	for i, p := range lambda.Params {
		np := *p
		np.CustomAttributes = append(il.Attributes(nil), p.CustomAttributes...)
		params[i] = &np
	}
	u.Lambda = u.method(originalLambdaBody, il.MethodPublic, lambda.ReturnType, params...)
	host := u.SystemInstance.Ref()
	return emit(u.Lambda, func(e *codegen.Emitter) {
		e.Ldarg(0).Ldfld(host)
		for i := range params {
			e.Ldarg(i + 1)
		}
		e.Callvirt(lambda.Ref()).Ret()
	})
}

// clone copies the lambda and the closure methods it reaches into the
// job struct, then rewires captured variable accesses to struct fields.
func (u *Unit) clone() error {
	c := u.Chain
	owner := c.Lambda.DeclaringType
	order := []*il.MethodDef{c.Lambda}
	seen := map[*il.MethodDef]bool{c.Lambda: true}
	for i := 0; i < len(order); i++ {
		m := order[i]
		if err := u.checkBody(m); err != nil {
			return err
		}
		for _, ins := range m.Body.Instructions {
			if ins.Op != il.Call && ins.Op != il.Callvirt && ins.Op != il.Ldftn {
				continue
			}
			ref, _ := ins.Method()
			def := u.s.u.ResolveMethod(ref)
			if def == nil || def.DeclaringType != owner || def.IsStatic() || def.Body == nil || seen[def] {
				continue
			}
			seen[def] = true
			order = append(order, def)
		}
	}

	clones := make(map[*il.MethodDef]*il.MethodDef, len(order))
	for i, m := range order {
		name := m.Name
		if i == 0 {
			name = originalLambdaBody
		}
		cm := il.CloneMethod(m, name)
		cm.Flags = cm.Flags&^(il.MethodPrivate|il.MethodAssembly|il.MethodFamily) | il.MethodPublic
		u.Type.AddMethod(cm)
		cm.Body.Simplify()
		clones[m] = cm
		u.Cloned = append(u.Cloned, cm)
	}
	u.Lambda = u.Cloned[0]

	for _, cm := range u.Cloned {
		for _, ins := range cm.Body.Instructions {
			ref, ok := ins.Method()
			if !ok {
				continue
			}
			target, ok := clones[u.s.u.ResolveMethod(ref)]
			if !ok {
				continue
			}
			ins.Operand = target.Ref()
			if ins.Op == il.Callvirt {
				ins.Op = il.Call
			}
		}
	}

	for _, cm := range u.Cloned {
		if err := u.patchComponentAccess(cm); err != nil {
			return err
		}
	}
	for _, cm := range u.Cloned {
		if err := u.remapCaptures(cm); err != nil {
			return err
		}
	}
	return nil
}

// checkBody rejects nested chains and structural changes made without
// WithStructuralChanges.
func (u *Unit) checkBody(m *il.MethodDef) error {
	c := u.Chain
	if src := analyzer.Sources(m); len(src) > 0 {
		return u.raise(diag.DC0029, m, src[0])
	}
	if c.WithStructuralChanges {
		return nil
	}
	for _, ins := range m.Body.Instructions {
		ref, ok := ins.IsInvocation()
		if !ok {
			continue
		}
		def := u.s.u.ResolveMethod(ref)
		if def != nil && def.CustomAttributes.Has(known.NsEntities, known.StructuralChangeMethod) {
			return u.raise(diag.DC0027, m, ins)
		}
	}
	return nil
}

// capture is one instruction reading or writing a captured variable
// through the lambda's closure.
type capture struct {
	ins  *il.Instruction
	path []*il.FieldRef
	// hops are the loads walking enclosing closures to reach the variable.
	hops []*il.Instruction
}

func (u *Unit) isClosure(t *il.TypeRef) bool {
	if t == nil || t.ElementType().OpenName() == u.Type.FullName() {
		return false
	}
	def := u.s.u.ResolveType(t)
	return def != nil && def.IsDisplayClass()
}

func (u *Unit) isClosureField(f *il.FieldRef) bool {
	return u.isClosure(f.DeclaringType)
}

// captures lists the accesses of m to captured variables. Every access
// must reach the variable from this through closure fields only.
func (u *Unit) captures(m *il.MethodDef) ([]capture, error) {
	var out []capture
	for _, ins := range m.Body.Instructions {
		if ins.Op != il.Ldfld && ins.Op != il.Ldflda && ins.Op != il.Stfld {
			continue
		}
		f, _ := ins.Field()
		if !u.isClosureField(f) || u.isClosure(f.Type) {
			continue
		}
		c := capture{ins: ins, path: []*il.FieldRef{f}}
		p := cursor.FindInstructionThatPushedArg(m, 0, ins)
		for p != nil && (p.Op == il.Ldfld || p.Op == il.Ldflda) {
			pf, _ := p.Field()
			if !u.isClosureField(pf) || !u.isClosure(pf.Type) {
				break
			}
			c.path = append([]*il.FieldRef{pf}, c.path...)
			c.hops = append(c.hops, p)
			p = cursor.FindInstructionThatPushedArg(m, 0, p)
		}
		if p == nil || !p.IsLoadThis() {
			return nil, u.raise(diag.DCICE004, m, ins, ins.Operand)
		}
		out = append(out, c)
	}
	return out, nil
}

// remapCaptures points every captured variable access in m at the job
// field holding that variable.
func (u *Unit) remapCaptures(m *il.MethodDef) error {
	found, err := u.captures(m)
	if err != nil {
		return err
	}
	for _, c := range found {
		if c.ins.Op == il.Stfld && u.Chain.Mode != analyzer.ModeRun {
			return u.raise(diag.DC0013, m, c.ins, c.path[len(c.path)-1].Name)
		}
	}
	for _, c := range found {
		v := u.captured(c.path)
		if c.ins.Op == il.Stfld || c.ins.Op == il.Ldflda {
			v.Written = true
		}
		for _, hop := range c.hops {
			hop.MakeNOP()
		}
		c.ins.Operand = v.Field.Ref()
	}
	if u.Chain.AllowReferenceTypes() {
		return nil
	}
	for _, c := range found {
		if err := u.checkReferenceCapture(m, c); err != nil {
			return err
		}
	}
	return nil
}

// captured returns the record for path, declaring its field on first use.
func (u *Unit) captured(path []*il.FieldRef) *CapturedVariable {
	key := pathKey(path)
	for _, v := range u.Captured {
		if pathKey(v.Path) == key {
			return v
		}
	}
	leaf := path[len(path)-1]
	v := &CapturedVariable{
		Path:  path,
		Field: u.field(leaf.Name, leaf.ResolvedType(), il.FieldPublic),
	}
	u.Captured = append(u.Captured, v)
	return v
}

func pathKey(path []*il.FieldRef) string {
	names := make([]string, len(path))
	for i, f := range path {
		names[i] = f.FullName()
	}
	return strings.Join(names, "/")
}

// checkReferenceCapture rejects Burst or scheduled code using a captured
// reference type. Delegates are tolerated; Burst rejects them later with a
// better message.
func (u *Unit) checkReferenceCapture(m *il.MethodDef, c capture) error {
	leaf := c.path[len(c.path)-1]
	t := leaf.ResolvedType()
	if t == nil || u.s.u.IsValueType(t) || t.IsPointer() || t.IsGenericParameter() {
		return nil
	}
	if def := u.s.u.ResolveType(t); def != nil && u.s.u.InheritsFrom(def, "System", "Delegate") {
		return nil
	}
	if c.ins.Op == il.Stfld {
		return u.raise(diag.DC0004, m, c.ins, leaf.Name)
	}
	consumer, ok := cursor.FindConsumer(m, c.ins)
	if ok {
		switch ins := consumer.Instruction; {
		case ins.Op == il.Ldfld || ins.Op == il.Ldflda || ins.Op == il.Stfld:
			if f, _ := ins.Field(); f != nil && consumer.Arg == 0 {
				return u.raise(diag.DC0001, m, ins, f.Name)
			}
		case ins.Op == il.Call || ins.Op == il.Callvirt:
			if ref, _ := ins.Method(); ref != nil && ref.HasThis && consumer.Arg == 0 {
				return u.raise(diag.DC0002, m, ins, ref.Name, t.Name)
			}
		}
	}
	return u.raise(diag.DC0004, m, c.ins, leaf.Name)
}
