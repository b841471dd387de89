package il_test

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/wippyai/lambdajobs/il"
)

// sampleModule builds a small system with a branchy body and a generic helper.
func sampleModule() (*il.Module, *il.MethodDef) {
	mod := il.NewModule("Sample")
	base := il.NewTypeRef("Unity.Entities", "SystemBase", false)
	sys := mod.AddType(&il.TypeDef{Namespace: "Game", Name: "MoveSystem", BaseType: base, Flags: il.TypePublic})
	sys.AddField(&il.FieldDef{Name: "speed", Type: il.Single, Flags: il.FieldPrivate})

	m := sys.AddMethod(&il.MethodDef{
		Name:       "Step",
		ReturnType: il.Int32,
		Params:     []*il.ParamDef{{Name: "n", Type: il.Int32}},
		Flags:      il.MethodPublic | il.MethodHideBySig,
	})
	body := m.EnsureBody()
	tmp := body.AddLocal(il.Int32, "tmp")
	ret := il.NewInstruction(il.Ldloc0, nil)
	body.Append(
		il.NewInstruction(il.Ldarg1, nil),
		il.NewInstruction(il.Stloc0, nil),
		il.NewInstruction(il.Ldarg1, nil),
		il.NewInstruction(il.BrfalseS, ret),
		il.NewInstruction(il.Ldloc, tmp),
		il.NewInstruction(il.LdcI4S, int32(10)),
		il.NewInstruction(il.Add, nil),
		il.NewInstruction(il.Stloc, tmp),
		ret,
		il.NewInstruction(il.Ret, nil),
	)
	body.SequencePoints = []il.SequencePoint{
		{Instruction: body.Instructions[0], Document: "Move.cs", Line: 12, Column: 9},
		{Instruction: body.Instructions[4], Document: "Move.cs", Line: il.HiddenLine},
	}
	return mod, m
}

func TestTypeRefNames(t *testing.T) {
	list := il.NewTypeRef("System.Collections.Generic", "List`1", false)
	outer := il.NewTypeRef("Game", "Outer`1", false)
	nested := il.NestedTypeRef(outer, "Inner", true).MakeGeneric(il.Int32)

	tests := []struct {
		ref  *il.TypeRef
		want string
	}{
		{il.Int32, "System.Int32"},
		{il.Int32.MakeByRef(), "System.Int32&"},
		{il.Single.MakePointer(), "System.Single*"},
		{il.String.MakeArray(), "System.String[]"},
		{list.MakeGeneric(il.GenericParam(0)), "System.Collections.Generic.List`1<!0>"},
		{list.MakeGeneric(il.MethodGenericParam(1)), "System.Collections.Generic.List`1<!!1>"},
		{nested, "Game.Outer`1/Inner<System.Int32>"},
	}
	for _, tt := range tests {
		if got := tt.ref.FullName(); got != tt.want {
			t.Errorf("FullName() = %q, want %q", got, tt.want)
		}
	}
	if !nested.IsValueType() {
		t.Error("nested value type lost its flag")
	}
	if nested.Open().IsGenericInstance() {
		t.Error("Open() kept generic arguments")
	}
}

func TestSubstitute(t *testing.T) {
	list := il.NewTypeRef("System.Collections.Generic", "List`1", false)
	open := list.MakeGeneric(il.GenericParam(0)).MakeByRef()
	got := open.Substitute([]*il.TypeRef{il.Single}, nil)
	if got.FullName() != "System.Collections.Generic.List`1<System.Single>&" {
		t.Errorf("Substitute = %s", got)
	}
	if same := il.Int32.Substitute([]*il.TypeRef{il.Single}, nil); same != il.Int32 {
		t.Error("Substitute should return closed types unchanged")
	}
	if p := il.MethodGenericParam(3).Substitute(nil, []*il.TypeRef{il.Int32}); p.Kind != il.TypeMethodGenericParam {
		t.Error("unmatched parameter should be kept")
	}
}

func TestMethodRefInstantiation(t *testing.T) {
	decl := il.NewTypeRef("Unity.Entities", "ComponentDataFromEntity`1", true)
	get := &il.MethodRef{
		DeclaringType: decl,
		Name:          "get_Item",
		ReturnType:    il.GenericParam(0),
		Params:        []*il.TypeRef{il.NewTypeRef("Unity.Entities", "Entity", true)},
		HasThis:       true,
	}
	pos := il.NewTypeRef("Game", "Position", true)
	inst := get.OnType(decl.MakeGeneric(pos))
	if got := inst.Return(); !got.Equal(pos) {
		t.Errorf("Return() = %s, want %s", got, pos)
	}
	if get.Equal(inst) {
		t.Error("different instantiations compare equal")
	}
	if !get.SameSignature(inst) {
		t.Error("SameSignature should ignore instantiation")
	}

	generic := &il.MethodRef{
		DeclaringType: il.NewTypeRef("Unity.Entities", "SystemBase", false),
		Name:          "GetComponent",
		ReturnType:    il.MethodGenericParam(0),
		GenericArity:  1,
		HasThis:       true,
	}
	if !strings.HasSuffix(generic.FullName(), "GetComponent`1()") {
		t.Errorf("open generic FullName = %s", generic.FullName())
	}
	if got := generic.MakeGeneric(pos).Return(); !got.Equal(pos) {
		t.Errorf("generic Return() = %s", got)
	}
}

func TestBodyEditing(t *testing.T) {
	_, m := sampleModule()
	body := m.Body
	target := body.Instructions[8] // branch target
	body.Replace(target, il.NewInstruction(il.Ldloc, body.Locals[0]), il.NewInstruction(il.Nop, nil))

	if body.Instructions[8] != target || target.Op != il.Ldloc {
		t.Fatalf("Replace must keep the original instruction as first of the span")
	}
	if body.Instructions[9].Op != il.Nop {
		t.Errorf("Replace did not insert the tail, got %s", body.Instructions[9])
	}
	if !body.BranchTargets()[target] {
		t.Error("branch target lost after Replace")
	}
	if body.Next(target) != body.Instructions[9] || body.Prev(target) != body.Instructions[7] {
		t.Error("Next/Prev disagree with instruction order")
	}

	body.InsertBefore(body.Instructions[0], il.NewInstruction(il.Nop, nil))
	if body.IndexOf(target) != 9 {
		t.Errorf("IndexOf(target) = %d, want 9", body.IndexOf(target))
	}
}

func TestSequencePointLookup(t *testing.T) {
	_, m := sampleModule()
	body := m.Body
	sp, ok := body.FindSequencePoint(body.Instructions[6])
	if !ok || sp.Line != 12 {
		t.Fatalf("FindSequencePoint = %+v, %v; want line 12", sp, ok)
	}
	if _, ok := body.SequencePointAt(body.Instructions[4]); !ok {
		t.Error("hidden point should still be attached")
	}
}

func TestSimplifyOptimize(t *testing.T) {
	_, m := sampleModule()
	body := m.Body
	body.Simplify()

	for _, ins := range body.Instructions {
		if ins.Op.Info().Short {
			t.Errorf("short form %s survived Simplify", ins.Op)
		}
	}
	if l, ok := body.Instructions[1].Operand.(*il.Local); !ok || l != body.Locals[0] {
		t.Errorf("stloc.0 not expanded to stloc tmp: %s", body.Instructions[1])
	}
	if n, _ := body.Instructions[0].IsLoadArg(); n != 1 || body.Instructions[0].Op != il.Ldarg {
		t.Errorf("ldarg.1 not expanded: %s", body.Instructions[0])
	}
	if err := il.ValidateMethod(m); err != nil {
		t.Fatalf("simplified body invalid: %v", err)
	}

	body.Optimize()
	if body.Instructions[0].Op != il.Ldarg1 || body.Instructions[1].Op != il.Stloc0 {
		t.Errorf("Optimize = %s, %s", body.Instructions[0], body.Instructions[1])
	}
	if v, _ := body.Instructions[5].LoadsInt32(); v != 10 {
		t.Errorf("constant changed: %s", body.Instructions[5])
	}
}

func TestCloneRemaps(t *testing.T) {
	_, m := sampleModule()
	c := il.CloneMethod(m, "Step$Copy")
	if c.Body.Method != c {
		t.Fatal("clone body does not point at the clone")
	}
	branch := c.Body.Instructions[3]
	tgt := branch.Operand.(*il.Instruction)
	if c.Body.IndexOf(tgt) != 8 {
		t.Errorf("branch target not remapped, index %d", c.Body.IndexOf(tgt))
	}
	if c.Body.Instructions[4].Operand.(*il.Local) != c.Body.Locals[0] {
		t.Error("local operand not remapped")
	}
	if c.Body.SequencePoints[0].Instruction != c.Body.Instructions[0] {
		t.Error("sequence point not remapped")
	}
	c.Body.Instructions[0].MakeNOP()
	if m.Body.Instructions[0].Op == il.Nop {
		t.Error("clone shares instructions with the original")
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	mod, m := sampleModule()
	sys := m.DeclaringType
	sys.CustomAttributes = append(sys.CustomAttributes, &il.CustomAttribute{
		Type:  il.NewTypeRef("Unity.Burst", "BurstCompileAttribute", false),
		Args:  []any{int32(1), "x", true, il.Int32},
		Named: []il.NamedArg{{Name: "CompileSynchronously", Value: true}},
	})
	nested := sys.AddNested(&il.TypeDef{Name: "Job", BaseType: il.ValueType, Flags: il.TypeNestedPrivate | il.TypeSealed})
	exec := nested.AddMethod(&il.MethodDef{Name: "Execute", ReturnType: il.Void})
	eb := exec.EnsureBody()
	sw := il.NewInstruction(il.Switch, nil)
	end := il.NewInstruction(il.Ret, nil)
	sw.Operand = []*il.Instruction{end, end}
	eb.Append(
		il.NewInstruction(il.Ldtoken, il.Int32),
		il.NewInstruction(il.Pop, nil),
		il.NewInstruction(il.LdcI41, nil),
		sw,
		il.NewInstruction(il.Ldstr, "done"),
		il.NewInstruction(il.Pop, nil),
		end,
	)

	data, err := il.Encode(mod)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	back, err := il.DecodeValidate(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	var want, got bytes.Buffer
	for _, typ := range mod.Types {
		_ = il.DumpType(&want, typ)
	}
	for _, typ := range back.Types {
		_ = il.DumpType(&got, typ)
	}
	if diff := cmp.Diff(want.String(), got.String()); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
	if back.FindType("Game.MoveSystem/Job") == nil {
		t.Error("nested type lost")
	}
}

func TestDecodeErrors(t *testing.T) {
	mod, _ := sampleModule()
	data, err := il.Encode(mod)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := il.Decode([]byte("WASM\x01\x00\x00\x00")); !errors.Is(err, il.ErrInvalidMagic) {
		t.Errorf("bad magic: %v", err)
	}
	bad := append([]byte(nil), data...)
	bad[4] = 9
	if _, err := il.Decode(bad); !errors.Is(err, il.ErrInvalidVersion) {
		t.Errorf("bad version: %v", err)
	}

	_, err = il.Decode(data[:len(data)-3])
	var pe *il.ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("truncated input: want ParseError, got %v", err)
	}
	if pe.Position == 0 {
		t.Error("ParseError without position")
	}

	if _, err := il.Decode(append(data, 0)); err == nil {
		t.Error("trailing bytes accepted")
	}
}

func TestEncodeRejectsForeignTarget(t *testing.T) {
	mod, m := sampleModule()
	m.Body.Instructions[3].Operand = il.NewInstruction(il.Nop, nil)
	if _, err := il.Encode(mod); err == nil {
		t.Fatal("expected error for branch outside body")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		mutate func(m *il.MethodDef)
		want   string
		name   string
	}{
		{
			name:   "valid",
			mutate: func(m *il.MethodDef) {},
		},
		{
			name: "underflow",
			mutate: func(m *il.MethodDef) {
				m.Body.InsertAt(0, il.NewInstruction(il.Pop, nil))
			},
			want: "pops 1 with height 0",
		},
		{
			name: "join mismatch",
			mutate: func(m *il.MethodDef) {
				m.Body.InsertBefore(m.Body.Instructions[4], il.NewInstruction(il.Ldnull, nil))
			},
			want: "stack height",
		},
		{
			name: "argument range",
			mutate: func(m *il.MethodDef) {
				m.Body.Instructions[0].Set(il.Ldarg, 5)
			},
			want: "argument 5 of 2",
		},
		{
			name: "foreign local",
			mutate: func(m *il.MethodDef) {
				m.Body.Instructions[4].Operand = &il.Local{Type: il.Int32}
			},
			want: "belongs to another body",
		},
		{
			name: "operand shape",
			mutate: func(m *il.MethodDef) {
				m.Body.Instructions[5].Operand = "ten"
			},
			want: "does not fit",
		},
		{
			name: "ret leaves values",
			mutate: func(m *il.MethodDef) {
				m.Body.InsertBefore(m.Body.Instructions[9], il.NewInstruction(il.Dup, nil))
			},
			want: "leaves 1 values",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, m := sampleModule()
			tt.mutate(m)
			err := il.ValidateMethod(m)
			if tt.want == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("error = %v, want containing %q", err, tt.want)
			}
		})
	}
}

func TestUniverse(t *testing.T) {
	fw := il.NewModule("Framework")
	cbase := fw.AddType(&il.TypeDef{Namespace: "Unity.Entities", Name: "ComponentSystemBase", BaseType: il.Object, Flags: il.TypeAbstract})
	cbase.AddMethod(&il.MethodDef{Name: "OnCreateForCompiler", ReturnType: il.Void, Flags: il.MethodFamily | il.MethodVirtual})
	fw.AddType(&il.TypeDef{Namespace: "Unity.Entities", Name: "SystemBase", BaseType: cbase.Ref(), Flags: il.TypeAbstract})
	fw.AddType(&il.TypeDef{Namespace: "Unity.Jobs", Name: "IJob", Flags: il.TypeInterface})

	mod, m := sampleModule()
	u := il.NewUniverse(mod, fw)

	sys := m.DeclaringType
	if !u.InheritsFrom(sys, "Unity.Entities", "ComponentSystemBase") {
		t.Error("InheritsFrom failed through two levels")
	}
	if u.InheritsFrom(sys, "Unity.Jobs", "IJob") {
		t.Error("InheritsFrom matched an interface")
	}
	if got := u.ResolveMethod(m.Ref()); got != m {
		t.Errorf("ResolveMethod(own) = %v", got)
	}
	inherited := &il.MethodRef{DeclaringType: sys.Ref(), Name: "OnCreateForCompiler", ReturnType: il.Void, HasThis: true}
	if got := u.ResolveMethod(inherited); got == nil || got.DeclaringType != cbase {
		t.Errorf("ResolveMethod(inherited) = %v", got)
	}
	if f := u.ResolveField(sys.Field("speed").Ref()); f == nil || f.Name != "speed" {
		t.Errorf("ResolveField = %v", f)
	}

	job := sys.AddNested(&il.TypeDef{Name: "Job", BaseType: il.ValueType, Interfaces: []*il.TypeRef{il.NewTypeRef("Unity.Jobs", "IJob", false)}})
	if u.ResolveType(job.Ref().MakeByRef()) != job {
		t.Error("types added after indexing must resolve")
	}
	if !u.Implements(job, "Unity.Jobs", "IJob") {
		t.Error("Implements failed")
	}
	if !u.IsValueType(il.NestedTypeRef(sys.Ref(), "Job", false)) {
		t.Error("IsValueType should consult the definition")
	}
}

func TestDumpListing(t *testing.T) {
	_, m := sampleModule()
	out := il.DumpString(m)
	for _, want := range []string{
		".method instance System.Int32 Step(System.Int32 n)",
		"[0] System.Int32 tmp",
		"IL_0003: brfalse.s IL_0008",
		"IL_0005: ldc.i4.s 10",
		"// Move.cs(12,9)",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("listing missing %q:\n%s", want, out)
		}
	}
}

func TestStackEffect(t *testing.T) {
	decl := il.NewTypeRef("Game", "Thing", false)
	ctor := &il.MethodRef{DeclaringType: decl, Name: ".ctor", ReturnType: il.Void, Params: []*il.TypeRef{il.Int32}, HasThis: true}
	get := &il.MethodRef{DeclaringType: decl, Name: "Get", ReturnType: il.Int32, HasThis: true}
	static := &il.MethodRef{DeclaringType: decl, Name: "Log", ReturnType: il.Void, Params: []*il.TypeRef{il.String, il.Int32}}
	_, m := sampleModule()

	tests := []struct {
		ins          *il.Instruction
		pops, pushes int
	}{
		{il.NewInstruction(il.Newobj, ctor), 1, 1},
		{il.NewInstruction(il.Callvirt, get), 1, 1},
		{il.NewInstruction(il.Call, static), 2, 0},
		{il.NewInstruction(il.Ret, nil), 1, 0},
		{il.NewInstruction(il.Dup, nil), 1, 2},
		{il.NewInstruction(il.Stfld, &il.FieldRef{DeclaringType: decl, Type: il.Int32, Name: "x"}), 2, 0},
	}
	for _, tt := range tests {
		pops, pushes := il.StackEffect(m, tt.ins)
		if pops != tt.pops || pushes != tt.pushes {
			t.Errorf("%s: got (%d,%d), want (%d,%d)", tt.ins, pops, pushes, tt.pops, tt.pushes)
		}
	}
	if net := il.NetStackEffect(m, []*il.Instruction{tests[0].ins, tests[1].ins}); net != 0 {
		t.Errorf("NetStackEffect = %d, want 0", net)
	}
}
