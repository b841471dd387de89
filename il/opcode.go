package il

import "fmt"

// Opcode identifies an instruction. The set is the subset of CIL the pass
// reads or emits, including short and macro forms as produced by compilers.
type Opcode uint16

const (
	Nop Opcode = iota
	Ldarg0
	Ldarg1
	Ldarg2
	Ldarg3
	LdargS
	Ldarg
	LdargaS
	Ldarga
	StargS
	Starg
	Ldloc0
	Ldloc1
	Ldloc2
	Ldloc3
	LdlocS
	Ldloc
	LdlocaS
	Ldloca
	Stloc0
	Stloc1
	Stloc2
	Stloc3
	StlocS
	Stloc
	Ldnull
	LdcI4M1
	LdcI40
	LdcI41
	LdcI42
	LdcI43
	LdcI44
	LdcI45
	LdcI46
	LdcI47
	LdcI48
	LdcI4S
	LdcI4
	LdcI8
	LdcR4
	LdcR8
	Dup
	Pop
	Call
	Callvirt
	Ret
	BrS
	BrfalseS
	BrtrueS
	BeqS
	BgeS
	BgtS
	BleS
	BltS
	BneUnS
	Br
	Brfalse
	Brtrue
	Beq
	Bge
	Bgt
	Ble
	Blt
	BneUn
	Switch
	LdindI4
	LdindRef
	StindI4
	StindRef
	Add
	Sub
	Mul
	Div
	Rem
	And
	Or
	Xor
	Shl
	Shr
	Neg
	Not
	ConvI4
	ConvI8
	ConvR4
	ConvR8
	ConvI
	ConvU
	Ldobj
	Stobj
	Ldstr
	Newobj
	Castclass
	Isinst
	Box
	UnboxAny
	Throw
	Ldfld
	Ldflda
	Stfld
	Ldsfld
	Ldsflda
	Stsfld
	Newarr
	Ldlen
	Ldelema
	LdelemRef
	StelemRef
	Ldelem
	Stelem
	Ldtoken
	LeaveS
	Leave
	Endfinally
	Ceq
	Cgt
	Clt
	Ldftn
	Ldvirtftn
	Initobj
	Sizeof
	Constrained

	opcodeCount
)

// OperandKind describes the Go type carried by Instruction.Operand.
type OperandKind uint8

const (
	OperandNone    OperandKind = iota
	OperandArg                 // int, argument index including this
	OperandLocal               // *Local
	OperandInt32               // int32
	OperandInt64               // int64
	OperandFloat32             // float32
	OperandFloat64             // float64
	OperandString              // string
	OperandBranch              // *Instruction
	OperandSwitch              // []*Instruction
	OperandType                // *TypeRef
	OperandField               // *FieldRef
	OperandMethod              // *MethodRef
	OperandToken               // *TypeRef, *FieldRef or *MethodRef
)

// FlowControl classifies how an instruction transfers control.
type FlowControl uint8

const (
	FlowNext FlowControl = iota
	FlowBranch
	FlowCondBranch
	FlowCall
	FlowReturn
	FlowThrow
	FlowMeta
)

// Var marks a pop or push count that depends on the operand.
const Var = -1

// OpInfo holds the static properties of an opcode.
type OpInfo struct {
	Name    string
	Operand OperandKind
	Flow    FlowControl
	Pop     int8
	Push    int8
	Short   bool
}

var opTable = [opcodeCount]OpInfo{
	Nop:         {Name: "nop"},
	Ldarg0:      {Name: "ldarg.0", Push: 1},
	Ldarg1:      {Name: "ldarg.1", Push: 1},
	Ldarg2:      {Name: "ldarg.2", Push: 1},
	Ldarg3:      {Name: "ldarg.3", Push: 1},
	LdargS:      {Name: "ldarg.s", Operand: OperandArg, Push: 1, Short: true},
	Ldarg:       {Name: "ldarg", Operand: OperandArg, Push: 1},
	LdargaS:     {Name: "ldarga.s", Operand: OperandArg, Push: 1, Short: true},
	Ldarga:      {Name: "ldarga", Operand: OperandArg, Push: 1},
	StargS:      {Name: "starg.s", Operand: OperandArg, Pop: 1, Short: true},
	Starg:       {Name: "starg", Operand: OperandArg, Pop: 1},
	Ldloc0:      {Name: "ldloc.0", Push: 1},
	Ldloc1:      {Name: "ldloc.1", Push: 1},
	Ldloc2:      {Name: "ldloc.2", Push: 1},
	Ldloc3:      {Name: "ldloc.3", Push: 1},
	LdlocS:      {Name: "ldloc.s", Operand: OperandLocal, Push: 1, Short: true},
	Ldloc:       {Name: "ldloc", Operand: OperandLocal, Push: 1},
	LdlocaS:     {Name: "ldloca.s", Operand: OperandLocal, Push: 1, Short: true},
	Ldloca:      {Name: "ldloca", Operand: OperandLocal, Push: 1},
	Stloc0:      {Name: "stloc.0", Pop: 1},
	Stloc1:      {Name: "stloc.1", Pop: 1},
	Stloc2:      {Name: "stloc.2", Pop: 1},
	Stloc3:      {Name: "stloc.3", Pop: 1},
	StlocS:      {Name: "stloc.s", Operand: OperandLocal, Pop: 1, Short: true},
	Stloc:       {Name: "stloc", Operand: OperandLocal, Pop: 1},
	Ldnull:      {Name: "ldnull", Push: 1},
	LdcI4M1:     {Name: "ldc.i4.m1", Push: 1},
	LdcI40:      {Name: "ldc.i4.0", Push: 1},
	LdcI41:      {Name: "ldc.i4.1", Push: 1},
	LdcI42:      {Name: "ldc.i4.2", Push: 1},
	LdcI43:      {Name: "ldc.i4.3", Push: 1},
	LdcI44:      {Name: "ldc.i4.4", Push: 1},
	LdcI45:      {Name: "ldc.i4.5", Push: 1},
	LdcI46:      {Name: "ldc.i4.6", Push: 1},
	LdcI47:      {Name: "ldc.i4.7", Push: 1},
	LdcI48:      {Name: "ldc.i4.8", Push: 1},
	LdcI4S:      {Name: "ldc.i4.s", Operand: OperandInt32, Push: 1, Short: true},
	LdcI4:       {Name: "ldc.i4", Operand: OperandInt32, Push: 1},
	LdcI8:       {Name: "ldc.i8", Operand: OperandInt64, Push: 1},
	LdcR4:       {Name: "ldc.r4", Operand: OperandFloat32, Push: 1},
	LdcR8:       {Name: "ldc.r8", Operand: OperandFloat64, Push: 1},
	Dup:         {Name: "dup", Pop: 1, Push: 2},
	Pop:         {Name: "pop", Pop: 1},
	Call:        {Name: "call", Operand: OperandMethod, Flow: FlowCall, Pop: Var, Push: Var},
	Callvirt:    {Name: "callvirt", Operand: OperandMethod, Flow: FlowCall, Pop: Var, Push: Var},
	Ret:         {Name: "ret", Flow: FlowReturn, Pop: Var},
	BrS:         {Name: "br.s", Operand: OperandBranch, Flow: FlowBranch, Short: true},
	BrfalseS:    {Name: "brfalse.s", Operand: OperandBranch, Flow: FlowCondBranch, Pop: 1, Short: true},
	BrtrueS:     {Name: "brtrue.s", Operand: OperandBranch, Flow: FlowCondBranch, Pop: 1, Short: true},
	BeqS:        {Name: "beq.s", Operand: OperandBranch, Flow: FlowCondBranch, Pop: 2, Short: true},
	BgeS:        {Name: "bge.s", Operand: OperandBranch, Flow: FlowCondBranch, Pop: 2, Short: true},
	BgtS:        {Name: "bgt.s", Operand: OperandBranch, Flow: FlowCondBranch, Pop: 2, Short: true},
	BleS:        {Name: "ble.s", Operand: OperandBranch, Flow: FlowCondBranch, Pop: 2, Short: true},
	BltS:        {Name: "blt.s", Operand: OperandBranch, Flow: FlowCondBranch, Pop: 2, Short: true},
	BneUnS:      {Name: "bne.un.s", Operand: OperandBranch, Flow: FlowCondBranch, Pop: 2, Short: true},
	Br:          {Name: "br", Operand: OperandBranch, Flow: FlowBranch},
	Brfalse:     {Name: "brfalse", Operand: OperandBranch, Flow: FlowCondBranch, Pop: 1},
	Brtrue:      {Name: "brtrue", Operand: OperandBranch, Flow: FlowCondBranch, Pop: 1},
	Beq:         {Name: "beq", Operand: OperandBranch, Flow: FlowCondBranch, Pop: 2},
	Bge:         {Name: "bge", Operand: OperandBranch, Flow: FlowCondBranch, Pop: 2},
	Bgt:         {Name: "bgt", Operand: OperandBranch, Flow: FlowCondBranch, Pop: 2},
	Ble:         {Name: "ble", Operand: OperandBranch, Flow: FlowCondBranch, Pop: 2},
	Blt:         {Name: "blt", Operand: OperandBranch, Flow: FlowCondBranch, Pop: 2},
	BneUn:       {Name: "bne.un", Operand: OperandBranch, Flow: FlowCondBranch, Pop: 2},
	Switch:      {Name: "switch", Operand: OperandSwitch, Flow: FlowCondBranch, Pop: 1},
	LdindI4:     {Name: "ldind.i4", Pop: 1, Push: 1},
	LdindRef:    {Name: "ldind.ref", Pop: 1, Push: 1},
	StindI4:     {Name: "stind.i4", Pop: 2},
	StindRef:    {Name: "stind.ref", Pop: 2},
	Add:         {Name: "add", Pop: 2, Push: 1},
	Sub:         {Name: "sub", Pop: 2, Push: 1},
	Mul:         {Name: "mul", Pop: 2, Push: 1},
	Div:         {Name: "div", Pop: 2, Push: 1},
	Rem:         {Name: "rem", Pop: 2, Push: 1},
	And:         {Name: "and", Pop: 2, Push: 1},
	Or:          {Name: "or", Pop: 2, Push: 1},
	Xor:         {Name: "xor", Pop: 2, Push: 1},
	Shl:         {Name: "shl", Pop: 2, Push: 1},
	Shr:         {Name: "shr", Pop: 2, Push: 1},
	Neg:         {Name: "neg", Pop: 1, Push: 1},
	Not:         {Name: "not", Pop: 1, Push: 1},
	ConvI4:      {Name: "conv.i4", Pop: 1, Push: 1},
	ConvI8:      {Name: "conv.i8", Pop: 1, Push: 1},
	ConvR4:      {Name: "conv.r4", Pop: 1, Push: 1},
	ConvR8:      {Name: "conv.r8", Pop: 1, Push: 1},
	ConvI:       {Name: "conv.i", Pop: 1, Push: 1},
	ConvU:       {Name: "conv.u", Pop: 1, Push: 1},
	Ldobj:       {Name: "ldobj", Operand: OperandType, Pop: 1, Push: 1},
	Stobj:       {Name: "stobj", Operand: OperandType, Pop: 2},
	Ldstr:       {Name: "ldstr", Operand: OperandString, Push: 1},
	Newobj:      {Name: "newobj", Operand: OperandMethod, Flow: FlowCall, Pop: Var, Push: 1},
	Castclass:   {Name: "castclass", Operand: OperandType, Pop: 1, Push: 1},
	Isinst:      {Name: "isinst", Operand: OperandType, Pop: 1, Push: 1},
	Box:         {Name: "box", Operand: OperandType, Pop: 1, Push: 1},
	UnboxAny:    {Name: "unbox.any", Operand: OperandType, Pop: 1, Push: 1},
	Throw:       {Name: "throw", Flow: FlowThrow, Pop: 1},
	Ldfld:       {Name: "ldfld", Operand: OperandField, Pop: 1, Push: 1},
	Ldflda:      {Name: "ldflda", Operand: OperandField, Pop: 1, Push: 1},
	Stfld:       {Name: "stfld", Operand: OperandField, Pop: 2},
	Ldsfld:      {Name: "ldsfld", Operand: OperandField, Push: 1},
	Ldsflda:     {Name: "ldsflda", Operand: OperandField, Push: 1},
	Stsfld:      {Name: "stsfld", Operand: OperandField, Pop: 1},
	Newarr:      {Name: "newarr", Operand: OperandType, Pop: 1, Push: 1},
	Ldlen:       {Name: "ldlen", Pop: 1, Push: 1},
	Ldelema:     {Name: "ldelema", Operand: OperandType, Pop: 2, Push: 1},
	LdelemRef:   {Name: "ldelem.ref", Pop: 2, Push: 1},
	StelemRef:   {Name: "stelem.ref", Pop: 3},
	Ldelem:      {Name: "ldelem", Operand: OperandType, Pop: 2, Push: 1},
	Stelem:      {Name: "stelem", Operand: OperandType, Pop: 3},
	Ldtoken:     {Name: "ldtoken", Operand: OperandToken, Push: 1},
	LeaveS:      {Name: "leave.s", Operand: OperandBranch, Flow: FlowBranch, Short: true},
	Leave:       {Name: "leave", Operand: OperandBranch, Flow: FlowBranch},
	Endfinally:  {Name: "endfinally", Flow: FlowReturn},
	Ceq:         {Name: "ceq", Pop: 2, Push: 1},
	Cgt:         {Name: "cgt", Pop: 2, Push: 1},
	Clt:         {Name: "clt", Pop: 2, Push: 1},
	Ldftn:       {Name: "ldftn", Operand: OperandMethod, Push: 1},
	Ldvirtftn:   {Name: "ldvirtftn", Operand: OperandMethod, Pop: 1, Push: 1},
	Initobj:     {Name: "initobj", Operand: OperandType, Pop: 1},
	Sizeof:      {Name: "sizeof", Operand: OperandType, Push: 1},
	Constrained: {Name: "constrained.", Operand: OperandType, Flow: FlowMeta},
}

// Info returns the static description of the opcode.
func (o Opcode) Info() OpInfo {
	if o >= opcodeCount {
		return OpInfo{Name: fmt.Sprintf("<invalid 0x%x>", uint16(o))}
	}
	return opTable[o]
}

// Valid reports whether o is a known opcode.
func (o Opcode) Valid() bool {
	return o < opcodeCount
}

func (o Opcode) String() string {
	return o.Info().Name
}

// Flow returns the control flow class of the opcode.
func (o Opcode) Flow() FlowControl {
	return o.Info().Flow
}

// IsBranch reports whether the opcode transfers control to an operand target.
func (o Opcode) IsBranch() bool {
	f := o.Flow()
	return f == FlowBranch || f == FlowCondBranch
}

// IsCall reports whether the opcode invokes a method (call, callvirt, newobj).
func (o Opcode) IsCall() bool {
	return o == Call || o == Callvirt || o == Newobj
}

var opcodeByName = func() map[string]Opcode {
	m := make(map[string]Opcode, opcodeCount)
	for i := Opcode(0); i < opcodeCount; i++ {
		m[opTable[i].Name] = i
	}
	return m
}()

// OpcodeByName looks an opcode up by its mnemonic.
func OpcodeByName(name string) (Opcode, bool) {
	op, ok := opcodeByName[name]
	return op, ok
}
