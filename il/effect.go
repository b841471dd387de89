package il

// StackEffect returns how many values ins pops and pushes when executed in
// method m. Call counts come from the method operand: parameters plus the
// instance (not for newobj) are popped, and a value is pushed unless the
// callee returns void. ret pops one value iff m returns one.
func StackEffect(m *MethodDef, ins *Instruction) (pops, pushes int) {
	info := ins.Op.Info()
	switch ins.Op {
	case Call, Callvirt, Newobj:
		ref, ok := ins.Operand.(*MethodRef)
		if !ok {
			return 0, 0
		}
		pops = len(ref.Params)
		if ref.HasThis && ins.Op != Newobj {
			pops++
		}
		if ins.Op == Newobj || !ref.ReturnsVoid() {
			pushes = 1
		}
		return pops, pushes
	case Ret:
		if m != nil && !m.ReturnsVoid() {
			return 1, 0
		}
		return 0, 0
	}
	return int(info.Pop), int(info.Push)
}

// NetStackEffect sums pushes minus pops over a span of instructions.
func NetStackEffect(m *MethodDef, span []*Instruction) int {
	net := 0
	for _, ins := range span {
		pops, pushes := StackEffect(m, ins)
		net += pushes - pops
	}
	return net
}
