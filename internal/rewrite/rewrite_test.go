package rewrite_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/wippyai/lambdajobs/diag"
	"github.com/wippyai/lambdajobs/il"
	"github.com/wippyai/lambdajobs/internal/analyzer"
	"github.com/wippyai/lambdajobs/internal/fixture"
	"github.com/wippyai/lambdajobs/internal/known"
	"github.com/wippyai/lambdajobs/internal/rewrite"
	"github.com/wippyai/lambdajobs/internal/synth"
)

func system(t *testing.T, g *fixture.Game, name string) *il.TypeDef {
	t.Helper()
	g.Finish()
	typ := g.Module.FindType("Game." + name)
	if typ == nil {
		t.Fatalf("system %s not found", name)
	}
	return typ
}

func unit(t *testing.T, g *fixture.Game, name string, asStruct bool) *synth.Unit {
	t.Helper()
	results := analyzer.New(g.Universe).FindIn(system(t, g, name).Method("OnUpdate"))
	if len(results) != 1 {
		t.Fatalf("found %d chains, want 1", len(results))
	}
	if results[0].Err != nil {
		t.Fatalf("Analyze: %v", results[0].Err)
	}
	u, err := synth.New(g.Imports).Synthesize(results[0].Chain, synth.Options{ClosureAsStruct: asStruct})
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	return u
}

// rewritten synthesizes and rewrites the single chain of name.
func rewritten(t *testing.T, g *fixture.Game, name string) (*rewrite.Rewriter, *synth.Unit) {
	t.Helper()
	u := unit(t, g, name, false)
	r := rewrite.New(g.Imports)
	warnings, err := r.Rewrite(u)
	if err != nil {
		t.Fatalf("Rewrite: %v", err)
	}
	if len(warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", warnings)
	}
	validate(t, u.Chain.Method)
	return r, u
}

func validate(t *testing.T, m *il.MethodDef) {
	t.Helper()
	if err := il.ValidateMethod(m); err != nil {
		t.Fatalf("%s is invalid: %v\n%s", m.Name, err, il.DumpString(m))
	}
}

func calls(m *il.MethodDef) []string {
	var out []string
	for _, ins := range m.Body.Instructions {
		if ref, ok := ins.Method(); ok {
			out = append(out, ref.Name)
		}
	}
	return out
}

func find(m *il.MethodDef, name string) *il.Instruction {
	for _, ins := range m.Body.Instructions {
		if ref, ok := ins.Method(); ok && ref.Name == name {
			return ins
		}
	}
	return nil
}

func TestScheduleParallelImplicitDependency(t *testing.T) {
	g := fixture.ScenarioA()
	_, u := rewritten(t, g, "MoveSystem")
	m := u.Chain.Method

	want := []string{".ctor", known.GetEntities, "get_Dependency", "ScheduleTimeInitialize", "ScheduleParallel", "set_Dependency"}
	if diff := cmp.Diff(want, calls(m)); diff != "" {
		t.Errorf("calls mismatch (-want +got):\n%s", diff)
	}
	ins := find(m, "ScheduleParallel")
	ref, _ := ins.Method()
	if ref.DeclaringType.Name != known.JobChunkExtensions {
		t.Errorf("ScheduleParallel declared on %s, want %s", ref.DeclaringType.Name, known.JobChunkExtensions)
	}
	if len(ref.GenericArgs) != 1 || ref.GenericArgs[0].Name != u.Type.Name {
		t.Errorf("ScheduleParallel instantiated over %v, want %s", ref.GenericArgs, u.Type.Name)
	}
	for _, ins := range m.Body.Instructions {
		if ins.Op == il.Ldftn {
			t.Errorf("delegate construction survived the rewrite:\n%s", il.DumpString(m))
		}
	}
}

func TestRunCompletesDependency(t *testing.T) {
	g := fixture.ScenarioB()
	_, u := rewritten(t, g, "SpawnSystem")
	m := u.Chain.Method

	want := []string{known.GetEntities, "ScheduleTimeInitialize", "CompleteDependency", "RunJobChunk"}
	if diff := cmp.Diff(want, calls(m)); diff != "" {
		t.Errorf("calls mismatch (-want +got):\n%s", diff)
	}
	run := find(m, "RunJobChunk")
	prev := m.Body.Prev(run)
	f, ok := prev.Field()
	if prev.Op != il.Ldsfld || !ok || f.Name != u.RunDelegateNoBurst.Name {
		t.Errorf("RunJobChunk not fed the managed delegate:\n%s", il.DumpString(m))
	}
}

func TestJobComponentSystemScheduleRunsParallel(t *testing.T) {
	g := fixture.ScenarioJCS()
	_, u := rewritten(t, g, "LookupSystem")
	m := u.Chain.Method

	want := []string{".ctor", known.GetEntities, "ScheduleTimeInitialize", "ScheduleParallel"}
	if diff := cmp.Diff(want, calls(m)); diff != "" {
		t.Errorf("calls mismatch (-want +got):\n%s", diff)
	}
}

func TestJobRunWritesBack(t *testing.T) {
	g := fixture.ScenarioJob()
	_, u := rewritten(t, g, "CountSystem")
	m := u.Chain.Method

	want := []string{".ctor", known.GetJob, "ScheduleTimeInitialize", "CompleteDependency", "get_JobCompilerEnabled", "RunIJob", "WriteToDisplayClass"}
	if diff := cmp.Diff(want, calls(m)); diff != "" {
		t.Errorf("calls mismatch (-want +got):\n%s", diff)
	}
	var loads []string
	for _, ins := range m.Body.Instructions {
		if f, ok := ins.Field(); ok && ins.Op == il.Ldsfld {
			loads = append(loads, f.Name)
		}
	}
	if diff := cmp.Diff([]string{u.RunDelegateNoBurst.Name, u.RunDelegateBurst.Name}, loads); diff != "" {
		t.Errorf("delegate loads mismatch (-want +got):\n%s", diff)
	}
}

func TestRunWithoutWritesSkipsWriteBack(t *testing.T) {
	_, u := rewritten(t, fixture.RunMove(), "MoveSystem")
	for _, name := range calls(u.Chain.Method) {
		if name == "WriteToDisplayClass" {
			t.Fatalf("call site writes back a read-only capture:\n%s", il.DumpString(u.Chain.Method))
		}
	}
}

func TestCommitInstallsQuery(t *testing.T) {
	g := fixture.ScenarioA()
	r, u := rewritten(t, g, "MoveSystem")
	if err := r.Commit(u); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	sys := u.Chain.Containing()
	if sys.Nested(u.Type.Name) == nil {
		t.Errorf("job struct %s not attached", u.Type.Name)
	}
	if sys.Field("_Move_entityQuery") == nil {
		t.Error("query field not attached")
	}
	hook := sys.Method(known.OnCreateForCompiler)
	if hook == nil {
		t.Fatal("OnCreateForCompiler not injected")
	}
	validate(t, hook)
	got := calls(hook)
	if got[0] != known.OnCreateForCompiler || got[len(got)-1] != "GetEntityQuery" {
		t.Errorf("OnCreateForCompiler calls %v, want the base call then the query", got)
	}
	if last := hook.Body.Instructions[len(hook.Body.Instructions)-1]; last.Op != il.Ret {
		t.Errorf("OnCreateForCompiler ends in %s", last.Op)
	}
}

func TestInjectOnCreateForCompiler(t *testing.T) {
	g := fixture.ScenarioB()
	sys := system(t, g, "SpawnSystem")
	r := rewrite.New(g.Imports)

	if !rewrite.IsComponentSystem(g.Universe, sys) {
		t.Fatal("SpawnSystem is not recognised as a system")
	}
	for _, name := range []string{"Unity.Entities.SystemBase", "Unity.Entities.ComponentSystemBase", "Game.Translation"} {
		if rewrite.IsComponentSystem(g.Universe, g.Universe.FindType(name)) {
			t.Errorf("%s recognised as a user system", name)
		}
	}

	hook, err := r.InjectOnCreateForCompiler(sys)
	if err != nil {
		t.Fatalf("InjectOnCreateForCompiler: %v", err)
	}
	validate(t, hook)
	base, _ := hook.Body.Instructions[1].Method()
	if base.DeclaringType.Name != known.SystemBase || !base.HasThis {
		t.Errorf("base call = %v, want SystemBase.OnCreateForCompiler", base)
	}
	again, err := r.InjectOnCreateForCompiler(sys)
	if err != nil || again != hook {
		t.Errorf("second injection = %v, %v; want the first method", again, err)
	}
}

func TestOnCreateForCompilerIsReserved(t *testing.T) {
	g := fixture.ScenarioB()
	sys := system(t, g, "SpawnSystem")
	user := sys.AddMethod(&il.MethodDef{Name: known.OnCreateForCompiler, ReturnType: il.Void, Flags: il.MethodFamily | il.MethodVirtual})
	user.EnsureBody().Emit(il.Ret, nil)

	_, err := rewrite.New(g.Imports).InjectOnCreateForCompiler(sys)
	if !diag.IsCode(err, diag.DC0026) {
		t.Fatalf("err = %v, want DC0026", err)
	}
}

func TestExecuteAlwaysWarns(t *testing.T) {
	g := fixture.ScenarioA()
	sys := system(t, g, "MoveSystem")
	sys.CustomAttributes = append(sys.CustomAttributes, il.NewAttribute(il.NewTypeRef(known.NsUnityEngine, known.ExecuteAlways, false)))

	u := unit(t, g, "MoveSystem", false)
	warnings, err := rewrite.New(g.Imports).Rewrite(u)
	if err != nil {
		t.Fatalf("Rewrite: %v", err)
	}
	if len(warnings) != 1 || warnings[0].Code != diag.DC0032 || warnings[0].Severity != diag.SeverityWarning {
		t.Fatalf("warnings = %v, want one DC0032 warning", warnings)
	}
}

func TestFailedRewriteRestoresMethod(t *testing.T) {
	g := fixture.ScenarioA()
	u := unit(t, g, "MoveSystem", false)
	m := u.Chain.Method
	before := il.DumpString(m)
	locals := len(m.Body.Locals)

	// Losing the closure local fails the splice after the modifiers are gone.
	u.Chain.Delegate.Local = nil
	if _, err := rewrite.New(g.Imports).Rewrite(u); err == nil {
		t.Fatal("Rewrite succeeded without the closure local")
	}
	if diff := cmp.Diff(before, il.DumpString(m)); diff != "" {
		t.Errorf("method changed (-want +got):\n%s", diff)
	}
	if len(m.Body.Locals) != locals {
		t.Errorf("locals = %d, want %d", len(m.Body.Locals), locals)
	}
}

func TestConvertClosures(t *testing.T) {
	g := fixture.ScenarioA()
	u := unit(t, g, "MoveSystem", true)
	c := u.Chain
	m := c.Method
	if !rewrite.CanConvertClosures(g.Universe, m, []*analyzer.Chain{c}) {
		t.Fatal("closure of MoveSystem.OnUpdate not convertible")
	}
	if rewrite.CanConvertClosures(g.Universe, m, nil) {
		t.Error("closure convertible while its delegate stays")
	}

	if _, err := rewrite.New(g.Imports).Rewrite(u); err != nil {
		t.Fatalf("Rewrite: %v", err)
	}
	sti := find(m, "ScheduleTimeInitialize")
	if prev := m.Body.Prev(sti); prev.Op != il.Ldloca {
		t.Errorf("closure passed by %s, want ldloca", prev.Op)
	}
	closure := c.DisplayClass()
	if err := rewrite.ConvertClosures(g.Universe, m); err != nil {
		t.Fatalf("ConvertClosures: %v", err)
	}
	validate(t, m)

	if !closure.IsValueType() || closure.Flags&il.TypeSequentialLayout == 0 {
		t.Errorf("%s is not a sequential value type", closure.Name)
	}
	if closure.Method(".ctor") != nil {
		t.Errorf("%s kept its constructor", closure.Name)
	}
	for _, ins := range m.Body.Instructions {
		if l, ok := m.Body.IsLoadLocal(ins); ok && l == c.Delegate.Local {
			t.Fatalf("closure still loaded by value:\n%s", il.DumpString(m))
		}
	}
	if find(m, ".ctor") != nil {
		t.Errorf("closure still allocated:\n%s", il.DumpString(m))
	}
}

func TestConvertClosuresNeedsStore(t *testing.T) {
	g := fixture.NewGame("Leak")
	sys := g.System("Game", "LeakSystem")
	dc := sys.Closure()
	leak := sys.Method("Leak", il.Void)
	leak.Newobj(dc.Ctor()).Pop().Ret()
	g.Finish()

	err := rewrite.ConvertClosures(g.Universe, leak.Def)
	if !diag.IsCode(err, diag.DCICE006) {
		t.Fatalf("err = %v, want DCICE006", err)
	}
	if dc.Def.IsValueType() {
		t.Error("closure converted despite the error")
	}
}
