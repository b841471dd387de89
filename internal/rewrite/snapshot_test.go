package rewrite

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/wippyai/lambdajobs/il"
	"github.com/wippyai/lambdajobs/internal/codegen"
)

func TestSnapshotRestore(t *testing.T) {
	m := &il.MethodDef{Name: "M", ReturnType: il.Void, Flags: il.MethodStatic}
	b := m.EnsureBody()
	first := b.Emit(il.LdcI4, int32(1))
	b.Emit(il.Pop, nil)
	ret := b.Emit(il.Ret, nil)
	before := il.DumpString(m)

	s := Take(b)
	first.Set(il.LdcI4, int32(7))
	b.InsertBefore(ret, il.NewInstruction(il.Nop, nil))
	b.AddLocal(il.Int32, "x")
	s.Restore()

	if diff := cmp.Diff(before, il.DumpString(m)); diff != "" {
		t.Errorf("body mismatch (-want +got):\n%s", diff)
	}
	if b.Instructions[0] != first {
		t.Error("restore replaced the instruction instead of its value")
	}
	if len(b.Locals) != 0 {
		t.Errorf("locals = %d, want 0", len(b.Locals))
	}
}

func TestSpanEffectFollowsJumps(t *testing.T) {
	m := &il.MethodDef{Name: "M", ReturnType: il.Void, Flags: il.MethodStatic}
	m.EnsureBody()
	field := &il.FieldRef{DeclaringType: il.Object, Name: "f", Type: il.Object}

	e := codegen.NewEmitter()
	yes, done := e.Label(), e.Label()
	e.LdBool(true).Brtrue(yes)
	e.Ldsfld(field).Br(done)
	e.Mark(yes).Ldsfld(field)
	e.Mark(done).Nop()
	span, err := e.Instructions()
	if err != nil {
		t.Fatal(err)
	}
	if got := spanEffect(m, span); got != 1 {
		t.Errorf("spanEffect = %d, want 1", got)
	}
	if got := spanEffect(m, []*il.Instruction{il.NewInstruction(il.Pop, nil), il.NewInstruction(il.Pop, nil)}); got != -2 {
		t.Errorf("spanEffect of two pops = %d, want -2", got)
	}
}
