package il

import (
	"fmt"

	"github.com/wippyai/lambdajobs/errors"
)

// Validate checks every method body of the module.
func Validate(m *Module) error {
	for _, t := range m.AllTypes() {
		for _, md := range t.Methods {
			if md.Body == nil {
				continue
			}
			if err := ValidateMethod(md); err != nil {
				return err
			}
		}
	}
	return nil
}

// ValidateMethod checks operand shapes, branch targets, local ownership,
// argument ranges and that the operand stack has one consistent height at
// every reachable instruction.
func ValidateMethod(md *MethodDef) error {
	b := md.Body
	fail := func(kind errors.Kind, format string, args ...any) error {
		return errors.New(errors.PhaseValidate, kind).
			Member(md.FullName()).
			Detail(format, args...).
			Build()
	}

	index := make(map[*Instruction]int, len(b.Instructions))
	for i, ins := range b.Instructions {
		if _, dup := index[ins]; dup {
			return fail(errors.KindInvalidData, "instruction %d appears twice", i)
		}
		index[ins] = i
	}
	owned := make(map[*Local]bool, len(b.Locals))
	for _, l := range b.Locals {
		owned[l] = true
	}

	for i, ins := range b.Instructions {
		if !ins.Op.Valid() {
			return fail(errors.KindInvalidData, "instruction %d: invalid opcode %d", i, ins.Op)
		}
		if err := checkOperand(ins, index, owned); err != nil {
			return fail(errors.KindInvalidData, "instruction %d (%s): %v", i, ins.Op, err)
		}
		if n, ok := ins.ArgIndex(); ok && n >= md.ArgCount() {
			return fail(errors.KindOutOfBounds, "instruction %d (%s): argument %d of %d", i, ins.Op, n, md.ArgCount())
		}
		if _, ok := b.Local(ins); !ok && ins.Op.Info().Operand == OperandNone && isLocalMacro(ins.Op) {
			return fail(errors.KindOutOfBounds, "instruction %d (%s): no such local", i, ins.Op)
		}
	}
	for _, sp := range b.SequencePoints {
		if _, ok := index[sp.Instruction]; !ok {
			return fail(errors.KindInvalidData, "sequence point %s(%d) refers to a foreign instruction", sp.Document, sp.Line)
		}
	}
	return checkStack(md, index, fail)
}

func isLocalMacro(op Opcode) bool {
	return (op >= Ldloc0 && op <= Ldloc3) || (op >= Stloc0 && op <= Stloc3)
}

func checkOperand(ins *Instruction, index map[*Instruction]int, owned map[*Local]bool) error {
	var ok bool
	switch ins.Op.Info().Operand {
	case OperandNone:
		ok = ins.Operand == nil
	case OperandArg:
		_, ok = ins.Operand.(int)
	case OperandLocal:
		var l *Local
		l, ok = ins.Operand.(*Local)
		if ok && !owned[l] {
			return fmt.Errorf("local %s belongs to another body", FormatOperand(l))
		}
	case OperandInt32:
		_, ok = ins.Operand.(int32)
	case OperandInt64:
		_, ok = ins.Operand.(int64)
	case OperandFloat32:
		_, ok = ins.Operand.(float32)
	case OperandFloat64:
		_, ok = ins.Operand.(float64)
	case OperandString:
		_, ok = ins.Operand.(string)
	case OperandBranch:
		var t *Instruction
		t, ok = ins.Operand.(*Instruction)
		if ok {
			if _, in := index[t]; !in {
				return fmt.Errorf("branch target outside body")
			}
		}
	case OperandSwitch:
		var ts []*Instruction
		ts, ok = ins.Operand.([]*Instruction)
		for _, t := range ts {
			if _, in := index[t]; !in {
				return fmt.Errorf("switch target outside body")
			}
		}
	case OperandType:
		var t *TypeRef
		t, ok = ins.Operand.(*TypeRef)
		ok = ok && t != nil
	case OperandField:
		var f *FieldRef
		f, ok = ins.Operand.(*FieldRef)
		ok = ok && f != nil
	case OperandMethod:
		var m *MethodRef
		m, ok = ins.Operand.(*MethodRef)
		ok = ok && m != nil
	case OperandToken:
		switch ins.Operand.(type) {
		case *TypeRef, *FieldRef, *MethodRef:
			ok = true
		}
	}
	if !ok {
		return fmt.Errorf("operand %T does not fit", ins.Operand)
	}
	return nil
}

func checkStack(md *MethodDef, index map[*Instruction]int, fail func(errors.Kind, string, ...any) error) error {
	b := md.Body
	if len(b.Instructions) == 0 {
		return nil
	}
	heights := make([]int, len(b.Instructions))
	for i := range heights {
		heights[i] = -1
	}
	work := []int{0}
	heights[0] = 0

	propagate := func(from, to, h int) error {
		if to >= len(b.Instructions) {
			return fail(errors.KindInvalidData, "instruction %d falls off the end of the body", from)
		}
		switch heights[to] {
		case -1:
			heights[to] = h
			work = append(work, to)
		case h:
		default:
			return fail(errors.KindStack, "instruction %d reached with stack height %d and %d", to, heights[to], h)
		}
		return nil
	}

	for len(work) > 0 {
		i := work[len(work)-1]
		work = work[:len(work)-1]
		ins := b.Instructions[i]
		pops, pushes := StackEffect(md, ins)
		h := heights[i] - pops
		if h < 0 {
			return fail(errors.KindStack, "instruction %d (%s) pops %d with height %d", i, ins.Op, pops, heights[i])
		}
		h += pushes

		var err error
		switch ins.Op.Flow() {
		case FlowReturn:
			if ins.Op == Ret && h != 0 {
				return fail(errors.KindStack, "ret at %d leaves %d values", i, h)
			}
			continue
		case FlowThrow:
			continue
		case FlowBranch:
			t := index[ins.Operand.(*Instruction)]
			if ins.Op == Leave || ins.Op == LeaveS {
				h = 0
			}
			err = propagate(i, t, h)
		case FlowCondBranch:
			if ts, ok := ins.Operand.([]*Instruction); ok {
				for _, t := range ts {
					if err = propagate(i, index[t], h); err != nil {
						return err
					}
				}
			} else {
				err = propagate(i, index[ins.Operand.(*Instruction)], h)
			}
			if err == nil {
				err = propagate(i, i+1, h)
			}
		default:
			err = propagate(i, i+1, h)
		}
		if err != nil {
			return err
		}
	}
	return nil
}
