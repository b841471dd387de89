package codegen

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/wippyai/lambdajobs/il"
)

func ops(code []*il.Instruction) []string {
	out := make([]string, len(code))
	for i, ins := range code {
		out[i] = ins.Op.String()
	}
	return out
}

func TestEmitter_NewAndReset(t *testing.T) {
	e := NewEmitter()
	if e.Len() != 0 {
		t.Errorf("new emitter should be empty, got len %d", e.Len())
	}
	e.Ldarg(0).Ret()
	if e.Len() != 2 {
		t.Fatalf("len = %d, want 2", e.Len())
	}
	e.Reset()
	if e.Len() != 0 {
		t.Errorf("emitter should be empty after reset, got len %d", e.Len())
	}
	if e.Last() != nil {
		t.Error("Last should be nil after reset")
	}
}

func TestEmitter_Pool(t *testing.T) {
	e := GetEmitter()
	e.Ldnull().Pop()
	PutEmitter(e)

	again := GetEmitter()
	defer PutEmitter(again)
	if again.Len() != 0 {
		t.Errorf("pooled emitter should be reset, got len %d", again.Len())
	}
	PutEmitter(nil)
}

func TestEmitter_Sequences(t *testing.T) {
	owner := il.NewTypeRef("Game", "Job", true)
	fld := &il.FieldRef{DeclaringType: owner, Name: "speed", Type: il.Single}
	inner := &il.FieldRef{DeclaringType: owner, Name: "locals", Type: il.NewTypeRef("Game", "Locals", true)}
	call := &il.MethodRef{DeclaringType: owner, Name: "Run", ReturnType: il.Void, HasThis: true}

	tests := []struct {
		emit   func(e *Emitter)
		verify func(t *testing.T, code []*il.Instruction)
		name   string
	}{
		{
			name: "field copy",
			emit: func(e *Emitter) {
				e.Ldarg(0).Ldarg(1).Ldfld(fld).Stfld(fld).Ret()
			},
			verify: func(t *testing.T, code []*il.Instruction) {
				want := []string{"ldarg", "ldarg", "ldfld", "stfld", "ret"}
				if diff := cmp.Diff(want, ops(code)); diff != "" {
					t.Errorf("ops mismatch (-want +got):\n%s", diff)
				}
				if n := code[1].Operand.(int); n != 1 {
					t.Errorf("second ldarg operand = %d, want 1", n)
				}
			},
		},
		{
			name: "field chain takes addresses of value types",
			emit: func(e *Emitter) {
				e.LdfldChain([]*il.FieldRef{inner, fld})
			},
			verify: func(t *testing.T, code []*il.Instruction) {
				if diff := cmp.Diff([]string{"ldflda", "ldfld"}, ops(code)); diff != "" {
					t.Errorf("ops mismatch (-want +got):\n%s", diff)
				}
			},
		},
		{
			name: "booleans and pops",
			emit: func(e *Emitter) {
				e.LdBool(true).LdBool(false).Pops(2)
			},
			verify: func(t *testing.T, code []*il.Instruction) {
				if diff := cmp.Diff([]string{"ldc.i4", "ldc.i4", "pop", "pop"}, ops(code)); diff != "" {
					t.Errorf("ops mismatch (-want +got):\n%s", diff)
				}
				if v := code[0].Operand.(int32); v != 1 {
					t.Errorf("true = %d", v)
				}
			},
		},
		{
			name: "call",
			emit: func(e *Emitter) {
				e.Ldarg(0).Call(call).Ret()
			},
			verify: func(t *testing.T, code []*il.Instruction) {
				m, ok := code[1].Method()
				if !ok || m != call {
					t.Errorf("call operand = %v", code[1].Operand)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewEmitter()
			tt.emit(e)
			code, err := e.Instructions()
			if err != nil {
				t.Fatalf("Instructions: %v", err)
			}
			tt.verify(t, code)
		})
	}
}

func TestEmitter_Labels(t *testing.T) {
	e := NewEmitter()
	count := &il.Local{Name: "count", Type: il.Int32, Index: 0}
	i := &il.Local{Name: "i", Type: il.Int32, Index: 1}

	loop, exit := e.Label(), e.Label()
	e.LdcI4(0).Stloc(i)
	e.Mark(loop).Ldloc(i).Ldloc(count).Emit(il.Clt, nil).Brfalse(exit)
	e.Ldloc(i).LdcI4(1).Emit(il.Add, nil).Stloc(i).Br(loop)
	e.Mark(exit).Nop().Ret()

	code, err := e.Instructions()
	if err != nil {
		t.Fatalf("Instructions: %v", err)
	}
	if loop.Target() != code[2] {
		t.Errorf("loop bound to %v, want %v", loop.Target(), code[2])
	}
	if code[5].Operand != exit.Target() || exit.Target() != code[11] {
		t.Errorf("brfalse targets %v, want the nop", code[5].Operand)
	}
	if code[10].Operand != code[2] {
		t.Errorf("br targets %v, want the loop head", code[10].Operand)
	}
}

func TestEmitter_MarkSharedTarget(t *testing.T) {
	e := NewEmitter()
	a, b := e.Label(), e.Label()
	e.Br(a).Br(b).Mark(a).Mark(b).Ret()
	code, err := e.Instructions()
	if err != nil {
		t.Fatalf("Instructions: %v", err)
	}
	if code[0].Operand != code[2] || code[1].Operand != code[2] {
		t.Error("both labels should bind to ret")
	}
}

func TestEmitter_UnboundLabel(t *testing.T) {
	tests := []struct {
		emit func(e *Emitter)
		name string
	}{
		{
			name: "never marked",
			emit: func(e *Emitter) { e.Br(e.Label()) },
		},
		{
			name: "marked at end",
			emit: func(e *Emitter) {
				l := e.Label()
				e.Ret().Mark(l)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewEmitter()
			tt.emit(e)
			if _, err := e.Instructions(); err == nil {
				t.Fatal("expected an error")
			}
		})
	}
}

func TestEmitter_AppendTo(t *testing.T) {
	m := &il.MethodDef{Name: "Execute", ReturnType: il.Void}
	body := m.EnsureBody()
	e := NewEmitter()
	e.Nop().Ret()
	if err := e.AppendTo(body); err != nil {
		t.Fatalf("AppendTo: %v", err)
	}
	if len(body.Instructions) != 2 {
		t.Fatalf("body has %d instructions", len(body.Instructions))
	}
	if err := il.ValidateMethod(m); err != nil {
		t.Errorf("appended body is invalid: %v", err)
	}
}
