package il

// longForm maps short branch and argument/local forms to their long forms.
var longForm = map[Opcode]Opcode{
	BrS:      Br,
	BrfalseS: Brfalse,
	BrtrueS:  Brtrue,
	BeqS:     Beq,
	BgeS:     Bge,
	BgtS:     Bgt,
	BleS:     Ble,
	BltS:     Blt,
	BneUnS:   BneUn,
	LeaveS:   Leave,
	LdargS:   Ldarg,
	LdargaS:  Ldarga,
	StargS:   Starg,
	LdlocS:   Ldloc,
	LdlocaS:  Ldloca,
	StlocS:   Stloc,
	LdcI4S:   LdcI4,
}

// Simplify rewrites every short and macro form in the body into its long
// form with an explicit operand. Rewriting code after Simplify never has to
// worry about branch displacement limits or implicit operands.
func (b *MethodBody) Simplify() {
	for _, ins := range b.Instructions {
		switch ins.Op {
		case Ldarg0, Ldarg1, Ldarg2, Ldarg3:
			n, _ := ins.ArgIndex()
			ins.Set(Ldarg, n)
		case Ldloc0, Ldloc1, Ldloc2, Ldloc3:
			if l, ok := b.Local(ins); ok {
				ins.Set(Ldloc, l)
			}
		case Stloc0, Stloc1, Stloc2, Stloc3:
			if l, ok := b.Local(ins); ok {
				ins.Set(Stloc, l)
			}
		case LdcI4M1, LdcI40, LdcI41, LdcI42, LdcI43, LdcI44, LdcI45, LdcI46, LdcI47, LdcI48:
			v, _ := ins.LoadsInt32()
			ins.Set(LdcI4, v)
		default:
			if long, ok := longForm[ins.Op]; ok {
				ins.Op = long
			}
		}
	}
}

// Optimize folds long forms back into macro forms where one exists. Branches
// stay in their long form since the model does not track displacements.
func (b *MethodBody) Optimize() {
	for _, ins := range b.Instructions {
		switch ins.Op {
		case Ldarg, LdargS:
			if n, ok := ins.Operand.(int); ok && n <= 3 {
				ins.Set(Ldarg0+Opcode(n), nil)
			}
		case Ldloc, LdlocS:
			if l, ok := ins.Operand.(*Local); ok && l.Index <= 3 && b.ownsLocal(l) {
				ins.Set(Ldloc0+Opcode(l.Index), nil)
			}
		case Stloc, StlocS:
			if l, ok := ins.Operand.(*Local); ok && l.Index <= 3 && b.ownsLocal(l) {
				ins.Set(Stloc0+Opcode(l.Index), nil)
			}
		case LdcI4, LdcI4S:
			v, ok := ins.Operand.(int32)
			switch {
			case ok && v == -1:
				ins.Set(LdcI4M1, nil)
			case ok && v >= 0 && v <= 8:
				ins.Set(LdcI40+Opcode(v), nil)
			}
		}
	}
}

func (b *MethodBody) ownsLocal(l *Local) bool {
	return l.Index < len(b.Locals) && b.Locals[l.Index] == l
}
