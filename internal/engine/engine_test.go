package engine_test

import (
	"sort"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/wippyai/lambdajobs/diag"
	"github.com/wippyai/lambdajobs/il"
	"github.com/wippyai/lambdajobs/internal/engine"
	"github.com/wippyai/lambdajobs/internal/fixture"
	"github.com/wippyai/lambdajobs/internal/known"
)

func process(t *testing.T, g *fixture.Game, cfg engine.Config) *engine.Report {
	t.Helper()
	mod := g.Finish()
	r, err := engine.New(cfg).Process(mod, g.Universe)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	return r
}

func codes(ds []diag.Diagnostic) []diag.Code {
	var out []diag.Code
	for _, d := range ds {
		out = append(out, d.Code)
	}
	return out
}

func TestScenarios(t *testing.T) {
	tests := []struct {
		scenario string
		jobs     []string
		codes    []diag.Code
	}{
		{scenario: "a", jobs: []string{"<>c__DisplayClass_Move"}},
		{scenario: "b", jobs: []string{"<>c__DisplayClass_OnUpdate_LambdaJob0"}},
		{scenario: "c", codes: []diag.Code{diag.DC0010}},
		{scenario: "jcs", jobs: []string{"<>c__DisplayClass_OnUpdate_LambdaJob0"}},
		{scenario: "job", jobs: []string{"<>c__DisplayClass_OnUpdate_LambdaJob0"}},
	}
	for _, tt := range tests {
		t.Run(tt.scenario, func(t *testing.T) {
			r := process(t, fixture.Scenarios[tt.scenario](), engine.Config{Verify: true})
			var jobs []string
			for _, j := range r.Jobs {
				jobs = append(jobs, j.Struct)
			}
			if diff := cmp.Diff(tt.jobs, jobs); diff != "" {
				t.Errorf("jobs mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(tt.codes, codes(r.Diagnostics)); diff != "" {
				t.Errorf("diagnostics mismatch (-want +got):\n%s", diff)
			}
			if r.Systems != 1 {
				t.Errorf("systems = %d, want 1", r.Systems)
			}
		})
	}
}

func TestClosureBecomesStruct(t *testing.T) {
	g := fixture.ScenarioA()
	r := process(t, g, engine.Config{Verify: true})
	if len(r.Jobs) != 1 || !r.Jobs[0].ClosureAsStruct {
		t.Fatalf("jobs = %+v, want one job with a struct closure", r.Jobs)
	}
	sys := g.Module.FindType("Game.MoveSystem")
	closure := sys.Nested("<>c__DisplayClass0_0")
	if !closure.IsValueType() {
		t.Errorf("%s is still a class", closure.Name)
	}
	for _, ins := range sys.Method("OnUpdate").Body.Instructions {
		if ins.Op == il.Newobj {
			t.Errorf("OnUpdate still allocates:\n%s", il.DumpString(sys.Method("OnUpdate")))
			break
		}
	}
	if sys.Nested("<>c__DisplayClass_Move") == nil || sys.Field("_Move_entityQuery") == nil {
		t.Error("job struct or query not committed")
	}
}

func TestFailedChainLeavesMethod(t *testing.T) {
	g := fixture.ScenarioC()
	mod := g.Finish()
	up := mod.FindType("Game.BranchSystem").Method("OnUpdate")
	before := il.DumpString(up)

	r, err := engine.New(engine.Config{}).Process(mod, g.Universe)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if !r.HasErrors() {
		t.Fatal("no error reported for the branchy chain")
	}
	if diff := cmp.Diff(before, il.DumpString(up)); diff != "" {
		t.Errorf("method changed (-want +got):\n%s", diff)
	}
	if mod.FindType("Game.BranchSystem").Method(known.OnCreateForCompiler) == nil {
		t.Error("OnCreateForCompiler not injected into a system without rewritten chains")
	}
}

func TestDuplicateNamesInOneMethod(t *testing.T) {
	g := fixture.NewGame("Twice")
	sys := g.System("Game", "TwiceSystem")
	statics := sys.Statics()
	first := statics.Lambda(fixture.R("t", g.Translation))
	first.Line()
	first.Ret()
	second := statics.Lambda(fixture.R("t", g.Translation))
	second.Line()
	second.Ret()

	up := sys.OnUpdate()
	up.Line()
	up.Entities().WithName("Same").ForEach(first, fixture.Cached(statics)).Run()
	up.Line()
	up.Entities().WithName("Same").ForEach(second, fixture.Cached(statics)).Run()
	up.Ret()

	r := process(t, g, engine.Config{Verify: true})
	if diff := cmp.Diff([]diag.Code{diag.DC0003}, codes(r.Diagnostics)); diff != "" {
		t.Errorf("diagnostics mismatch (-want +got):\n%s", diff)
	}
	if len(r.Jobs) != 1 {
		t.Errorf("jobs = %d, want 1", len(r.Jobs))
	}
}

func TestReservedHookSkipsSystem(t *testing.T) {
	g := fixture.ScenarioB()
	mod := g.Finish()
	sys := mod.FindType("Game.SpawnSystem")
	user := sys.AddMethod(&il.MethodDef{Name: known.OnCreateForCompiler, ReturnType: il.Void, Flags: il.MethodFamily | il.MethodVirtual})
	user.EnsureBody().Emit(il.Ret, nil)

	r, err := engine.New(engine.Config{}).Process(mod, g.Universe)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if diff := cmp.Diff([]diag.Code{diag.DC0026}, codes(r.Diagnostics)); diff != "" {
		t.Errorf("diagnostics mismatch (-want +got):\n%s", diff)
	}
	if len(r.Jobs) != 0 {
		t.Errorf("jobs = %+v, want none", r.Jobs)
	}
}

func TestKeepOriginal(t *testing.T) {
	g := fixture.ScenarioA()
	r := process(t, g, engine.Config{KeepOriginal: true, Verify: true})
	if len(r.Jobs) != 1 || r.Jobs[0].ClosureAsStruct {
		t.Fatalf("jobs = %+v, want one job with a class closure", r.Jobs)
	}
	sys := g.Module.FindType("Game.MoveSystem")
	kept := sys.Method("OnUpdate$Unprocessed")
	if kept == nil {
		t.Fatal("original not kept")
	}
	var names []string
	for _, ins := range kept.Body.Instructions {
		if ref, ok := ins.Method(); ok {
			names = append(names, ref.Name)
		}
	}
	if !strings.Contains(strings.Join(names, " "), known.ForEach) {
		t.Errorf("kept method lost its chain: %v", names)
	}
	if kept.Flags&il.MethodVirtual != 0 {
		t.Error("kept method is still virtual")
	}
}

func TestMaxChainsPerMethod(t *testing.T) {
	g := fixture.ScenarioA()
	mod := g.Finish()
	r, err := engine.New(engine.Config{MaxChainsPerMethod: 1}).Process(mod, g.Universe)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(r.Jobs) != 1 {
		t.Fatalf("one chain rejected by a limit of one: %+v", r.Diagnostics)
	}

	g = fixture.NewGame("Many")
	sys := g.System("Game", "ManySystem")
	statics := sys.Statics()
	up := sys.OnUpdate()
	for _, name := range []string{"One", "Two"} {
		l := statics.Lambda(fixture.R("t", g.Translation))
		l.Ret()
		up.Entities().WithName(name).ForEach(l, fixture.Cached(statics)).Run()
	}
	up.Ret()
	r = process(t, g, engine.Config{MaxChainsPerMethod: 1})
	if len(r.Diagnostics) != 1 || !strings.HasPrefix(r.Diagnostics[0].Message, "Unexpected error while post-processing ManySystem:OnUpdate") {
		t.Fatalf("diagnostics = %v, want one unexpected error", r.Diagnostics)
	}
	if len(r.Jobs) != 0 {
		t.Errorf("jobs = %+v, want none", r.Jobs)
	}
}

func TestMultipleSystems(t *testing.T) {
	g := fixture.NewGame("Multi")
	var want []string
	for _, name := range []string{"First", "Second"} {
		sys := g.System("Game", name+"System")
		statics := sys.Statics()
		l := statics.Lambda(fixture.R("t", g.Translation))
		l.Ret()
		up := sys.OnUpdate()
		up.Entities().WithName(name).ForEach(l, fixture.Cached(statics)).Run()
		up.Ret()
		want = append(want, "Game."+name+"System")
	}
	r := process(t, g, engine.Config{Verify: true})

	var got []string
	for _, j := range r.Jobs {
		got = append(got, j.System)
	}
	sort.Strings(got)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("systems mismatch (-want +got):\n%s", diff)
	}
	if r.Systems != 2 {
		t.Errorf("systems = %d, want 2", r.Systems)
	}
}

func TestNilModule(t *testing.T) {
	if _, err := engine.New(engine.Config{}).Process(nil, nil); err == nil {
		t.Fatal("Process(nil) succeeded")
	}
}

func TestMissingFrameworkMemberFailsOnlyItsChain(t *testing.T) {
	g := fixture.NewGame("Missing")
	structural := g.System("Game", "ASystem")
	first := structural.Statics().Lambda(fixture.V("e", g.Entity()), fixture.R("t", g.Translation))
	first.Line()
	first.Ret()
	up := structural.OnUpdate()
	up.Entities().WithoutBurst().WithStructuralChanges().ForEach(first, fixture.Cached(structural.Statics())).Run()
	up.Ret()

	plain := g.System("Game", "BSystem")
	second := plain.Statics().Lambda(fixture.R("t", g.Translation))
	second.Line()
	second.Ret()
	up = plain.OnUpdate()
	up.Entities().WithName("Plain").ForEach(second, fixture.Cached(plain.Statics())).Run()
	up.Ret()

	provider := g.Universe.FindType(known.NsCodeGenerated + "." + known.StructuralChangeProvider)
	var kept []*il.TypeDef
	for _, n := range provider.NestedTypes {
		if n.Name != "PerformLambdaDelegate" {
			kept = append(kept, n)
		}
	}
	provider.NestedTypes = kept
	provider.Module.Changed()

	r := process(t, g, engine.Config{Verify: true})
	if diff := cmp.Diff([]diag.Code{diag.DCICE005}, codes(r.Diagnostics)); diff != "" {
		t.Fatalf("diagnostics mismatch (-want +got):\n%s", diff)
	}
	if len(r.Jobs) != 1 || r.Jobs[0].System != "Game.BSystem" {
		t.Errorf("jobs = %+v, want the BSystem job", r.Jobs)
	}
	if msg := r.Diagnostics[0].Message; strings.Contains(msg, "not found") || !strings.Contains(msg, "PerformLambdaDelegate") {
		t.Errorf("message = %q", msg)
	}
}
