package il

import (
	"fmt"
	"strconv"
)

// Instruction is a single operation in a method body. Branch operands point
// at other instructions of the same body, so instructions are identified by
// pointer and must not be copied by value.
type Instruction struct {
	Operand any
	Op      Opcode
}

// NewInstruction creates an instruction.
func NewInstruction(op Opcode, operand any) *Instruction {
	return &Instruction{Op: op, Operand: operand}
}

// MakeNOP turns the instruction into a nop in place, keeping it a valid
// branch target.
func (i *Instruction) MakeNOP() {
	i.Op = Nop
	i.Operand = nil
}

// Set replaces opcode and operand in place.
func (i *Instruction) Set(op Opcode, operand any) {
	i.Op = op
	i.Operand = operand
}

// Method returns the method operand of a call, callvirt, newobj, ldftn or ldvirtftn.
func (i *Instruction) Method() (*MethodRef, bool) {
	m, ok := i.Operand.(*MethodRef)
	return m, ok
}

// Field returns the field operand of a field access.
func (i *Instruction) Field() (*FieldRef, bool) {
	f, ok := i.Operand.(*FieldRef)
	return f, ok
}

// IsInvocation reports whether i is a call or callvirt and returns the target.
func (i *Instruction) IsInvocation() (*MethodRef, bool) {
	if i.Op != Call && i.Op != Callvirt {
		return nil, false
	}
	return i.Method()
}

// ArgIndex returns the argument index read or written by i, including the
// macro forms.
func (i *Instruction) ArgIndex() (int, bool) {
	switch i.Op {
	case Ldarg0:
		return 0, true
	case Ldarg1:
		return 1, true
	case Ldarg2:
		return 2, true
	case Ldarg3:
		return 3, true
	case LdargS, Ldarg, LdargaS, Ldarga, StargS, Starg:
		n, ok := i.Operand.(int)
		return n, ok
	}
	return 0, false
}

// IsLoadArg reports whether i pushes an argument value (not its address).
func (i *Instruction) IsLoadArg() (int, bool) {
	switch i.Op {
	case Ldarg0, Ldarg1, Ldarg2, Ldarg3, LdargS, Ldarg:
		return i.ArgIndex()
	}
	return 0, false
}

// IsLoadThis reports whether i is ldarg 0.
func (i *Instruction) IsLoadThis() bool {
	n, ok := i.IsLoadArg()
	return ok && n == 0
}

// LoadsInt32 returns the constant pushed by an ldc.i4 form.
func (i *Instruction) LoadsInt32() (int32, bool) {
	switch i.Op {
	case LdcI4M1:
		return -1, true
	case LdcI40, LdcI41, LdcI42, LdcI43, LdcI44, LdcI45, LdcI46, LdcI47, LdcI48:
		return int32(i.Op - LdcI40), true
	case LdcI4S, LdcI4:
		v, ok := i.Operand.(int32)
		return v, ok
	}
	return 0, false
}

func (i *Instruction) String() string {
	info := i.Op.Info()
	if i.Operand == nil {
		return info.Name
	}
	return info.Name + " " + FormatOperand(i.Operand)
}

// FormatOperand renders an operand for listings.
func FormatOperand(v any) string {
	switch o := v.(type) {
	case string:
		return strconv.Quote(o)
	case int:
		return "arg" + strconv.Itoa(o)
	case *Local:
		if o.Name != "" {
			return o.Name
		}
		return "V_" + strconv.Itoa(o.Index)
	case *Instruction:
		return "-> " + o.Op.String()
	case []*Instruction:
		return fmt.Sprintf("(%d targets)", len(o))
	case *TypeRef:
		return o.FullName()
	case *FieldRef:
		return o.FullName()
	case *MethodRef:
		return o.FullName()
	}
	return fmt.Sprint(v)
}

// Local is a local variable slot.
type Local struct {
	Type  *TypeRef
	Name  string
	Index int
}

// SequencePoint maps an instruction to a source location.
type SequencePoint struct {
	Instruction *Instruction
	Document    string
	Line        int
	Column      int
}

// HiddenLine marks a sequence point with no source location.
const HiddenLine = 0xfeefee

// Hidden reports whether the point carries no source location.
func (s SequencePoint) Hidden() bool {
	return s.Line == HiddenLine
}
