package il

// Clone deep-copies the body. Branch targets, locals and sequence points are
// remapped to the copies; references to types, fields and methods are shared.
// The returned map takes original instructions to their copies.
func (b *MethodBody) Clone() (*MethodBody, map[*Instruction]*Instruction) {
	c := &MethodBody{
		Method:       b.Method,
		InitLocals:   b.InitLocals,
		Instructions: make([]*Instruction, len(b.Instructions)),
		Locals:       make([]*Local, len(b.Locals)),
	}
	locals := make(map[*Local]*Local, len(b.Locals))
	for i, l := range b.Locals {
		nl := *l
		c.Locals[i] = &nl
		locals[l] = &nl
	}
	insMap := make(map[*Instruction]*Instruction, len(b.Instructions))
	for i, ins := range b.Instructions {
		ni := *ins
		c.Instructions[i] = &ni
		insMap[ins] = &ni
	}
	for _, ins := range c.Instructions {
		switch o := ins.Operand.(type) {
		case *Instruction:
			if t, ok := insMap[o]; ok {
				ins.Operand = t
			}
		case []*Instruction:
			targets := make([]*Instruction, len(o))
			for i, t := range o {
				targets[i] = t
				if nt, ok := insMap[t]; ok {
					targets[i] = nt
				}
			}
			ins.Operand = targets
		case *Local:
			if nl, ok := locals[o]; ok {
				ins.Operand = nl
			}
		}
	}
	for _, sp := range b.SequencePoints {
		if ni, ok := insMap[sp.Instruction]; ok {
			sp.Instruction = ni
			c.SequencePoints = append(c.SequencePoints, sp)
		}
	}
	return c, insMap
}

// CloneMethod copies m under a new name. The copy is detached: callers add
// it to a type with AddMethod.
func CloneMethod(m *MethodDef, name string) *MethodDef {
	c := &MethodDef{
		Name:             name,
		ReturnType:       m.ReturnType,
		Flags:            m.Flags,
		ImplFlags:        m.ImplFlags,
		GenericParams:    append([]string(nil), m.GenericParams...),
		CustomAttributes: append(Attributes(nil), m.CustomAttributes...),
	}
	for _, p := range m.Params {
		np := *p
		np.CustomAttributes = append(Attributes(nil), p.CustomAttributes...)
		c.Params = append(c.Params, &np)
	}
	if m.Body != nil {
		c.Body, _ = m.Body.Clone()
		c.Body.Method = c
	}
	return c
}
