package il

// MethodBody owns the instruction stream and local slots of a method.
type MethodBody struct {
	Method         *MethodDef
	Instructions   []*Instruction
	Locals         []*Local
	SequencePoints []SequencePoint
	InitLocals     bool
}

// AddLocal appends a local slot.
func (b *MethodBody) AddLocal(t *TypeRef, name string) *Local {
	l := &Local{Type: t, Name: name, Index: len(b.Locals)}
	b.Locals = append(b.Locals, l)
	b.InitLocals = true
	return l
}

// Local returns the local read, written or addressed by i, including the
// macro forms.
func (b *MethodBody) Local(i *Instruction) (*Local, bool) {
	idx := -1
	switch i.Op {
	case Ldloc0, Stloc0:
		idx = 0
	case Ldloc1, Stloc1:
		idx = 1
	case Ldloc2, Stloc2:
		idx = 2
	case Ldloc3, Stloc3:
		idx = 3
	case LdlocS, Ldloc, LdlocaS, Ldloca, StlocS, Stloc:
		l, ok := i.Operand.(*Local)
		return l, ok
	default:
		return nil, false
	}
	if idx >= len(b.Locals) {
		return nil, false
	}
	return b.Locals[idx], true
}

// IsLoadLocal reports whether i pushes the value of a local.
func (b *MethodBody) IsLoadLocal(i *Instruction) (*Local, bool) {
	switch i.Op {
	case Ldloc0, Ldloc1, Ldloc2, Ldloc3, LdlocS, Ldloc:
		return b.Local(i)
	}
	return nil, false
}

// IsStoreLocal reports whether i stores into a local.
func (b *MethodBody) IsStoreLocal(i *Instruction) (*Local, bool) {
	switch i.Op {
	case Stloc0, Stloc1, Stloc2, Stloc3, StlocS, Stloc:
		return b.Local(i)
	}
	return nil, false
}

// IndexOf returns the position of i in the body, or -1.
func (b *MethodBody) IndexOf(i *Instruction) int {
	for n, ins := range b.Instructions {
		if ins == i {
			return n
		}
	}
	return -1
}

// Next returns the instruction following i, or nil.
func (b *MethodBody) Next(i *Instruction) *Instruction {
	n := b.IndexOf(i)
	if n < 0 || n+1 >= len(b.Instructions) {
		return nil
	}
	return b.Instructions[n+1]
}

// Prev returns the instruction preceding i, or nil.
func (b *MethodBody) Prev(i *Instruction) *Instruction {
	n := b.IndexOf(i)
	if n <= 0 {
		return nil
	}
	return b.Instructions[n-1]
}

// Append adds instructions at the end.
func (b *MethodBody) Append(ins ...*Instruction) {
	b.Instructions = append(b.Instructions, ins...)
}

// Emit appends a new instruction and returns it.
func (b *MethodBody) Emit(op Opcode, operand any) *Instruction {
	i := NewInstruction(op, operand)
	b.Instructions = append(b.Instructions, i)
	return i
}

// InsertAt inserts instructions before position n.
func (b *MethodBody) InsertAt(n int, ins ...*Instruction) {
	if len(ins) == 0 {
		return
	}
	out := make([]*Instruction, 0, len(b.Instructions)+len(ins))
	out = append(out, b.Instructions[:n]...)
	out = append(out, ins...)
	out = append(out, b.Instructions[n:]...)
	b.Instructions = out
}

// InsertAfter inserts instructions directly after target. It panics if
// target is not in the body.
func (b *MethodBody) InsertAfter(target *Instruction, ins ...*Instruction) {
	n := b.IndexOf(target)
	if n < 0 {
		panic("il: InsertAfter target not in body")
	}
	b.InsertAt(n+1, ins...)
}

// InsertBefore inserts instructions directly before target. Branches to
// target keep pointing at target, not at the inserted code.
func (b *MethodBody) InsertBefore(target *Instruction, ins ...*Instruction) {
	n := b.IndexOf(target)
	if n < 0 {
		panic("il: InsertBefore target not in body")
	}
	b.InsertAt(n, ins...)
}

// Replace substitutes target with the given instructions. The first
// replacement is written into target itself so branches to it stay valid.
func (b *MethodBody) Replace(target *Instruction, ins ...*Instruction) {
	if len(ins) == 0 {
		target.MakeNOP()
		return
	}
	target.Set(ins[0].Op, ins[0].Operand)
	b.InsertAfter(target, ins[1:]...)
}

// BranchTargets returns every instruction that is the destination of a branch.
func (b *MethodBody) BranchTargets() map[*Instruction]bool {
	out := make(map[*Instruction]bool)
	for _, ins := range b.Instructions {
		switch t := ins.Operand.(type) {
		case *Instruction:
			if ins.Op.IsBranch() {
				out[t] = true
			}
		case []*Instruction:
			for _, x := range t {
				out[x] = true
			}
		}
	}
	return out
}

// SequencePointAt returns the sequence point attached to exactly i.
func (b *MethodBody) SequencePointAt(i *Instruction) (SequencePoint, bool) {
	for _, sp := range b.SequencePoints {
		if sp.Instruction == i {
			return sp, true
		}
	}
	return SequencePoint{}, false
}

// FindSequencePoint returns the closest visible sequence point at or before
// i, falling back to the first visible point of the body.
func (b *MethodBody) FindSequencePoint(i *Instruction) (SequencePoint, bool) {
	if i != nil {
		for n := b.IndexOf(i); n >= 0; n-- {
			if sp, ok := b.SequencePointAt(b.Instructions[n]); ok && !sp.Hidden() {
				return sp, true
			}
		}
	}
	return b.FirstSequencePoint()
}

// FirstSequencePoint returns the first visible sequence point of the body.
func (b *MethodBody) FirstSequencePoint() (SequencePoint, bool) {
	for _, sp := range b.SequencePoints {
		if !sp.Hidden() {
			return sp, true
		}
	}
	return SequencePoint{}, false
}
