package codegen

import (
	"sync"

	"github.com/wippyai/lambdajobs/errors"
	"github.com/wippyai/lambdajobs/il"
)

var emitterPool = sync.Pool{
	New: func() any { return NewEmitter() },
}

// GetEmitter returns a reset emitter from the pool.
func GetEmitter() *Emitter {
	e := emitterPool.Get().(*Emitter)
	e.Reset()
	return e
}

// PutEmitter returns an emitter to the pool. The emitter must not be used
// afterwards.
func PutEmitter(e *Emitter) {
	if e == nil {
		return
	}
	e.Reset()
	emitterPool.Put(e)
}

// Label is a branch target bound to an instruction by Mark.
type Label struct {
	target *il.Instruction
	id     int
	marked bool
}

// Target returns the instruction the label is bound to, or nil.
func (l *Label) Target() *il.Instruction {
	return l.target
}

type fixup struct {
	ins   *il.Instruction
	label *Label
}

// Emitter accumulates an instruction sequence.
type Emitter struct {
	code    []*il.Instruction
	pending []*Label
	fixups  []fixup
	labels  int
}

// NewEmitter creates an empty emitter.
func NewEmitter() *Emitter {
	return &Emitter{code: make([]*il.Instruction, 0, 32)}
}

// Len returns the number of emitted instructions.
func (e *Emitter) Len() int {
	return len(e.code)
}

// Reset discards all emitted instructions and labels.
func (e *Emitter) Reset() {
	clear(e.code)
	e.code = e.code[:0]
	e.pending = e.pending[:0]
	e.fixups = e.fixups[:0]
	e.labels = 0
}

// Emit appends one instruction and binds any pending labels to it.
func (e *Emitter) Emit(op il.Opcode, operand any) *Emitter {
	e.add(il.NewInstruction(op, operand))
	return e
}

// Append adds already built instructions.
func (e *Emitter) Append(ins ...*il.Instruction) *Emitter {
	for _, i := range ins {
		e.add(i)
	}
	return e
}

func (e *Emitter) add(ins *il.Instruction) {
	for _, l := range e.pending {
		l.target = ins
	}
	e.pending = e.pending[:0]
	e.code = append(e.code, ins)
}

// Last returns the most recently emitted instruction.
func (e *Emitter) Last() *il.Instruction {
	if len(e.code) == 0 {
		return nil
	}
	return e.code[len(e.code)-1]
}

// Label allocates an unbound label.
func (e *Emitter) Label() *Label {
	e.labels++
	return &Label{id: e.labels}
}

// Mark binds l to the next emitted instruction.
func (e *Emitter) Mark(l *Label) *Emitter {
	l.marked = true
	e.pending = append(e.pending, l)
	return e
}

func (e *Emitter) branch(op il.Opcode, l *Label) *Emitter {
	ins := il.NewInstruction(op, nil)
	e.fixups = append(e.fixups, fixup{ins: ins, label: l})
	e.add(ins)
	return e
}

// Br emits an unconditional branch to l.
func (e *Emitter) Br(l *Label) *Emitter { return e.branch(il.Br, l) }

// Brfalse emits a branch to l taken when the popped value is zero or null.
func (e *Emitter) Brfalse(l *Label) *Emitter { return e.branch(il.Brfalse, l) }

// Brtrue emits a branch to l taken when the popped value is non-zero.
func (e *Emitter) Brtrue(l *Label) *Emitter { return e.branch(il.Brtrue, l) }

// Instructions patches branch operands and returns the sequence. It fails
// when a branch targets a label that never bound to an instruction.
func (e *Emitter) Instructions() ([]*il.Instruction, error) {
	for _, f := range e.fixups {
		if f.label.target == nil {
			return nil, errors.New(errors.PhaseSynthesize, errors.KindInternal).
				Detail("branch to unbound label %d", f.label.id).
				Build()
		}
		f.ins.Operand = f.label.target
	}
	if len(e.pending) > 0 {
		return nil, errors.Internal(errors.PhaseSynthesize, "label %d marked past the last instruction", e.pending[0].id)
	}
	out := make([]*il.Instruction, len(e.code))
	copy(out, e.code)
	return out, nil
}

// AppendTo appends the sequence to b.
func (e *Emitter) AppendTo(b *il.MethodBody) error {
	code, err := e.Instructions()
	if err != nil {
		return err
	}
	b.Append(code...)
	return nil
}

// Argument and local access.

func (e *Emitter) Ldarg(n int) *Emitter  { return e.Emit(il.Ldarg, n) }
func (e *Emitter) Ldarga(n int) *Emitter { return e.Emit(il.Ldarga, n) }
func (e *Emitter) Starg(n int) *Emitter  { return e.Emit(il.Starg, n) }

func (e *Emitter) Ldloc(l *il.Local) *Emitter  { return e.Emit(il.Ldloc, l) }
func (e *Emitter) Ldloca(l *il.Local) *Emitter { return e.Emit(il.Ldloca, l) }
func (e *Emitter) Stloc(l *il.Local) *Emitter  { return e.Emit(il.Stloc, l) }

// Constants.

func (e *Emitter) LdcI4(v int32) *Emitter { return e.Emit(il.LdcI4, v) }
func (e *Emitter) Ldnull() *Emitter       { return e.Emit(il.Ldnull, nil) }
func (e *Emitter) Ldstr(s string) *Emitter {
	return e.Emit(il.Ldstr, s)
}

// LdBool pushes 1 for true and 0 for false.
func (e *Emitter) LdBool(v bool) *Emitter {
	if v {
		return e.LdcI4(1)
	}
	return e.LdcI4(0)
}

// Calls.

func (e *Emitter) Call(m *il.MethodRef) *Emitter     { return e.Emit(il.Call, m) }
func (e *Emitter) Callvirt(m *il.MethodRef) *Emitter { return e.Emit(il.Callvirt, m) }
func (e *Emitter) Newobj(m *il.MethodRef) *Emitter   { return e.Emit(il.Newobj, m) }
func (e *Emitter) Ldftn(m *il.MethodRef) *Emitter    { return e.Emit(il.Ldftn, m) }

// Fields.

func (e *Emitter) Ldfld(f *il.FieldRef) *Emitter  { return e.Emit(il.Ldfld, f) }
func (e *Emitter) Ldflda(f *il.FieldRef) *Emitter { return e.Emit(il.Ldflda, f) }
func (e *Emitter) Stfld(f *il.FieldRef) *Emitter  { return e.Emit(il.Stfld, f) }
func (e *Emitter) Ldsfld(f *il.FieldRef) *Emitter { return e.Emit(il.Ldsfld, f) }
func (e *Emitter) Stsfld(f *il.FieldRef) *Emitter { return e.Emit(il.Stsfld, f) }

// LdfldChain loads through a chain of fields, taking the address of every
// intermediate value type so nested display classes are not copied.
func (e *Emitter) LdfldChain(chain []*il.FieldRef) *Emitter {
	for i, f := range chain {
		if i < len(chain)-1 && f.Type != nil && f.Type.IsValueType() {
			e.Ldflda(f)
			continue
		}
		e.Ldfld(f)
	}
	return e
}

// Stack and objects.

func (e *Emitter) Dup() *Emitter                    { return e.Emit(il.Dup, nil) }
func (e *Emitter) Pop() *Emitter                    { return e.Emit(il.Pop, nil) }
func (e *Emitter) Ret() *Emitter                    { return e.Emit(il.Ret, nil) }
func (e *Emitter) Nop() *Emitter                    { return e.Emit(il.Nop, nil) }
func (e *Emitter) Initobj(t *il.TypeRef) *Emitter   { return e.Emit(il.Initobj, t) }
func (e *Emitter) Newarr(t *il.TypeRef) *Emitter    { return e.Emit(il.Newarr, t) }
func (e *Emitter) Stelem(t *il.TypeRef) *Emitter    { return e.Emit(il.Stelem, t) }
func (e *Emitter) StelemRef() *Emitter              { return e.Emit(il.StelemRef, nil) }
func (e *Emitter) Box(t *il.TypeRef) *Emitter       { return e.Emit(il.Box, t) }
func (e *Emitter) Ldobj(t *il.TypeRef) *Emitter     { return e.Emit(il.Ldobj, t) }
func (e *Emitter) Ldtoken(t *il.TypeRef) *Emitter   { return e.Emit(il.Ldtoken, t) }
func (e *Emitter) Castclass(t *il.TypeRef) *Emitter { return e.Emit(il.Castclass, t) }

// Pops emits n pop instructions.
func (e *Emitter) Pops(n int) *Emitter {
	for range n {
		e.Pop()
	}
	return e
}
