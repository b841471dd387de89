package cursor

import "github.com/wippyai/lambdajobs/il"

// Side selects which end of a delegate sequence an instruction must be.
type Side uint8

const (
	MatchStart Side = iota
	MatchEnd
)

// DelegateSequence is a run of instructions producing a single delegate
// value:
//
//	ldloc|ldarg|ldnull ; ldftn ; newobj
//	ldsfld ; dup ; brtrue L ; pop ; ldsfld ; ldftn ; newobj ; dup ; stsfld ; L:
//
// The second form is the cache the compiler emits for lambdas that capture
// nothing.
type DelegateSequence struct {
	Instructions []*il.Instruction
	// Method is the lambda the delegate points at.
	Method *il.MethodRef
	// Ctor is the delegate constructor.
	Ctor *il.MethodRef
	// Local holds the display class when the lambda captures locals.
	Local *il.Local
	// CapturesLocals is set when the target object is a display class
	// local; CapturesThis when it is the instance of the enclosing method.
	CapturesLocals bool
	CapturesThis   bool
	Cached         bool
}

// First returns the first instruction of the sequence.
func (d *DelegateSequence) First() *il.Instruction {
	return d.Instructions[0]
}

// Last returns the last instruction of the sequence.
func (d *DelegateSequence) Last() *il.Instruction {
	return d.Instructions[len(d.Instructions)-1]
}

// Contains reports whether ins belongs to the sequence.
func (d *DelegateSequence) Contains(ins *il.Instruction) bool {
	for _, x := range d.Instructions {
		if x == ins {
			return true
		}
	}
	return false
}

// KeepDisplayClassOnStack drops the delegate construction so the target
// object stays on the stack in its place.
func (d *DelegateSequence) KeepDisplayClassOnStack() {
	for _, ins := range d.Instructions[1:] {
		ins.MakeNOP()
	}
}

// ProduceSingleNull replaces the whole sequence with a single ldnull.
func (d *DelegateSequence) ProduceSingleNull() {
	d.Instructions[0].Set(il.Ldnull, nil)
	for _, ins := range d.Instructions[1:] {
		ins.MakeNOP()
	}
}

// MatchDelegatePattern matches a delegate sequence that starts or ends at
// ins, depending on side.
func MatchDelegatePattern(m *il.MethodDef, ins *il.Instruction, side Side) (*DelegateSequence, bool) {
	if m.Body == nil {
		return nil, false
	}
	n := m.Body.IndexOf(ins)
	if n < 0 {
		return nil, false
	}
	if side == MatchEnd {
		return matchEndingAt(m, n)
	}
	return matchStartingAt(m, n)
}

func matchStartingAt(m *il.MethodDef, n int) (*DelegateSequence, bool) {
	for _, length := range []int{3, 9} {
		if d, ok := matchEndingAt(m, n+length-1); ok && d.First() == m.Body.Instructions[n] {
			return d, true
		}
	}
	return nil, false
}

func matchEndingAt(m *il.MethodDef, end int) (*DelegateSequence, bool) {
	code := m.Body.Instructions
	if end < 0 || end >= len(code) {
		return nil, false
	}
	if code[end].Op == il.Stsfld {
		return matchCached(m, end)
	}
	if end < 2 {
		return nil, false
	}
	target, ftn, ctor := code[end-2], code[end-1], code[end]
	ctorRef, ok := delegateCtor(ctor)
	if !ok || ftn.Op != il.Ldftn {
		return nil, false
	}
	lambda, _ := ftn.Method()
	d := &DelegateSequence{
		Instructions: []*il.Instruction{target, ftn, ctor},
		Method:       lambda,
		Ctor:         ctorRef,
	}
	switch {
	case target.Op == il.Ldnull:
	case isLoadLocal(target.Op):
		l, ok := m.Body.Local(target)
		if !ok {
			return nil, false
		}
		d.Local = l
		d.CapturesLocals = true
	case isLoadArg(target.Op):
		arg, _ := target.ArgIndex()
		if arg != 0 || !m.HasThis() {
			return nil, false
		}
		d.CapturesThis = true
	default:
		return nil, false
	}
	return d, true
}

// matchCached matches the cached form ending at the stsfld at end.
func matchCached(m *il.MethodDef, end int) (*DelegateSequence, bool) {
	code := m.Body.Instructions
	start := end - 8
	if start < 0 || end+1 >= len(code) {
		return nil, false
	}
	s := code[start : end+1]
	cache, ok := s[0].Field()
	if !ok || s[0].Op != il.Ldsfld {
		return nil, false
	}
	if s[1].Op != il.Dup || (s[2].Op != il.Brtrue && s[2].Op != il.BrtrueS) || s[3].Op != il.Pop || s[4].Op != il.Ldsfld ||
		s[5].Op != il.Ldftn || s[7].Op != il.Dup {
		return nil, false
	}
	if target, _ := s[2].Operand.(*il.Instruction); target != code[end+1] {
		return nil, false
	}
	if stored, ok := s[8].Field(); !ok || !stored.Equal(cache) {
		return nil, false
	}
	ctorRef, ok := delegateCtor(s[6])
	if !ok {
		return nil, false
	}
	lambda, _ := s[5].Method()
	out := make([]*il.Instruction, len(s))
	copy(out, s)
	return &DelegateSequence{Instructions: out, Method: lambda, Ctor: ctorRef, Cached: true}, true
}

func delegateCtor(ins *il.Instruction) (*il.MethodRef, bool) {
	if ins.Op != il.Newobj {
		return nil, false
	}
	ref, ok := ins.Method()
	if !ok || ref.Name != ".ctor" || len(ref.Params) != 2 {
		return nil, false
	}
	return ref, true
}

func isLoadLocal(op il.Opcode) bool {
	switch op {
	case il.Ldloc0, il.Ldloc1, il.Ldloc2, il.Ldloc3, il.LdlocS, il.Ldloc:
		return true
	}
	return false
}

func isLoadArg(op il.Opcode) bool {
	switch op {
	case il.Ldarg0, il.Ldarg1, il.Ldarg2, il.Ldarg3, il.LdargS, il.Ldarg:
		return true
	}
	return false
}
