package analyzer_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/wippyai/lambdajobs/diag"
	"github.com/wippyai/lambdajobs/il"
	"github.com/wippyai/lambdajobs/internal/analyzer"
	"github.com/wippyai/lambdajobs/internal/fixture"
	"github.com/wippyai/lambdajobs/internal/known"
)

func onUpdate(t *testing.T, g *fixture.Game, system string) *il.MethodDef {
	t.Helper()
	g.Finish()
	typ := g.Module.FindType("Game." + system)
	if typ == nil {
		t.Fatalf("system %s not found", system)
	}
	return typ.Method("OnUpdate")
}

func only(t *testing.T, g *fixture.Game, system string) (*analyzer.Chain, error) {
	t.Helper()
	results := analyzer.New(g.Universe).FindIn(onUpdate(t, g, system))
	if len(results) != 1 {
		t.Fatalf("found %d chains, want 1", len(results))
	}
	return results[0].Chain, results[0].Err
}

func modifierNames(c *analyzer.Chain) []string {
	out := make([]string, len(c.Modifiers))
	for i, m := range c.Modifiers {
		out[i] = m.Name
	}
	return out
}

func TestScenarioA(t *testing.T) {
	c, err := only(t, fixture.ScenarioA(), "MoveSystem")
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if c.Kind != analyzer.KindEntities || c.Mode != analyzer.ModeScheduleParallel {
		t.Errorf("kind %v mode %v", c.Kind, c.Mode)
	}
	if diff := cmp.Diff([]string{known.WithName, known.ForEach}, modifierNames(c)); diff != "" {
		t.Errorf("modifiers mismatch (-want +got):\n%s", diff)
	}
	if c.Name != "Move" || c.ClassName() != "<>c__DisplayClass_Move" {
		t.Errorf("name %q class %q", c.Name, c.ClassName())
	}
	if !c.IsInSystemBase || !c.UseImplicitSystemDependency() || !c.UsesBurst() || c.AllowReferenceTypes() {
		t.Errorf("derived properties wrong: %+v", c)
	}
	if !c.CapturesLocals() || c.DisplayClass() == nil || c.LambdaOnContainingType() {
		t.Error("lambda should live on the display class")
	}
	if c.Lambda.Name != "<OnUpdate>b__0" {
		t.Errorf("lambda = %s", c.Lambda.Name)
	}
	ref, _ := c.Terminal.Method()
	if ref.Name != known.ScheduleParallel {
		t.Errorf("terminal = %s", ref.Name)
	}
}

func TestScenarioB(t *testing.T) {
	c, err := only(t, fixture.ScenarioB(), "SpawnSystem")
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if c.Mode != analyzer.ModeRun || c.UsesBurst() || !c.AllowReferenceTypes() {
		t.Errorf("mode %v burst %v", c.Mode, c.UsesBurst())
	}
	if !c.LambdaOnContainingType() || c.CapturesLocals() || !c.Delegate.CapturesThis {
		t.Error("lambda should be a method of the system capturing this")
	}
	if c.Name != "OnUpdate_LambdaJob0" {
		t.Errorf("default name = %q", c.Name)
	}
	if c.UseImplicitSystemDependency() {
		t.Error("Run never uses the implicit dependency")
	}
}

func TestScenarioC(t *testing.T) {
	_, err := only(t, fixture.ScenarioC(), "BranchSystem")
	if !diag.IsCode(err, diag.DC0010) {
		t.Fatalf("err = %v, want DC0010", err)
	}
	d, _ := diag.AsDiagnostic(err)
	if !d.Location.Known() || d.Location.File != "ScenarioC.cs" {
		t.Errorf("location = %+v", d.Location)
	}
}

func TestJobComponentSystem(t *testing.T) {
	c, err := only(t, fixture.ScenarioJCS(), "LookupSystem")
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if c.IsInSystemBase || c.Mode != analyzer.ModeSchedule || c.UseImplicitSystemDependency() {
		t.Errorf("system base %v mode %v", c.IsInSystemBase, c.Mode)
	}
	mods := c.Named(known.WithReadOnly)
	if len(mods) != 1 {
		t.Fatalf("WithReadOnly modifiers = %d", len(mods))
	}
	f, ok := mods[0].Args[0].(*il.FieldRef)
	if !ok || f.Name != "lookup" {
		t.Errorf("WithReadOnly argument = %v", mods[0].Args[0])
	}
	if len(mods[0].TypeArgs) != 1 || mods[0].TypeArgs[0].Name != known.NativeArray {
		t.Errorf("type args = %v", mods[0].TypeArgs)
	}
}

func TestSingleJob(t *testing.T) {
	c, err := only(t, fixture.ScenarioJob(), "CountSystem")
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if c.Kind != analyzer.KindJob || c.Mode != analyzer.ModeRun {
		t.Errorf("kind %v mode %v", c.Kind, c.Mode)
	}
	if ref, _ := c.Body.Method(); ref.Name != known.WithCode {
		t.Errorf("body call = %s", ref.Name)
	}
}

// build creates a SystemBase named S with one non-capturing lambda and
// lets chain emit the OnUpdate body.
func build(chain func(g *fixture.Game, s *fixture.System, up *fixture.Method, lambda *fixture.Method)) *fixture.Game {
	g := fixture.NewGame("Rules")
	s := g.System("Game", "S")
	statics := s.Statics()
	lambda := statics.Lambda(fixture.R("t", g.Translation))
	lambda.Ret()
	up := s.OnUpdate()
	chain(g, s, up, lambda)
	up.Ret()
	return g
}

func TestChainRules(t *testing.T) {
	tests := []struct {
		name  string
		chain func(g *fixture.Game, s *fixture.System, up *fixture.Method, lambda *fixture.Method)
		want  diag.Code
	}{
		{
			name: "repeated modifier",
			chain: func(g *fixture.Game, s *fixture.System, up, lambda *fixture.Method) {
				up.Entities().WithName("A").WithName("B").ForEach(lambda, fixture.Cached(s.Statics())).Run()
			},
			want: diag.DC0009,
		},
		{
			name: "non literal argument",
			chain: func(g *fixture.Game, s *fixture.System, up, lambda *fixture.Method) {
				name := up.Local(il.String, "name")
				c := up.Entities()
				up.Ldloc(name)
				c.Invoke(known.ConstructionMethods, known.WithName, 2).ForEach(lambda, fixture.Cached(s.Statics())).Run()
			},
			want: diag.DC0008,
		},
		{
			name: "missing ForEach",
			chain: func(g *fixture.Game, s *fixture.System, up, lambda *fixture.Method) {
				up.Entities().WithName("Nothing").Run()
			},
			want: diag.DC0006,
		},
		{
			name: "missing WithCode",
			chain: func(g *fixture.Game, s *fixture.System, up, lambda *fixture.Method) {
				up.Job().WithName("Nothing").Run()
			},
			want: diag.DC0017,
		},
		{
			name: "name starting with a digit",
			chain: func(g *fixture.Game, s *fixture.System, up, lambda *fixture.Method) {
				up.Entities().WithName("9lives").ForEach(lambda, fixture.Cached(s.Statics())).Run()
			},
			want: diag.DC0043,
		},
		{
			name: "name with double underscore",
			chain: func(g *fixture.Game, s *fixture.System, up, lambda *fixture.Method) {
				up.Entities().WithName("a__b").ForEach(lambda, fixture.Cached(s.Statics())).Run()
			},
			want: diag.DC0043,
		},
		{
			name: "scheduled structural changes",
			chain: func(g *fixture.Game, s *fixture.System, up, lambda *fixture.Method) {
				up.Entities().WithStructuralChanges().ForEach(lambda, fixture.Cached(s.Statics())).Schedule()
			},
			want: diag.DC0028,
		},
		{
			name: "query stored in a local",
			chain: func(g *fixture.Game, s *fixture.System, up, lambda *fixture.Method) {
				q := up.Local(g.Imports.Entities(known.EntityQuery), "q")
				c := up.Entities()
				up.Ldloca(q)
				up.Call(g.Imports.Method(g.Imports.Entities(known.QueryConstructionMethods), known.WithStoreEntityQueryInField, 2,
					g.Imports.Entities(known.ForEachDescription)))
				c.ForEach(lambda, fixture.Cached(s.Statics())).Run()
			},
			want: diag.DC0031,
		},
		{
			name: "stored delegate",
			chain: func(g *fixture.Game, s *fixture.System, up, lambda *fixture.Method) {
				d := fixture.UniversalDelegate(lambda.Def)
				field := s.Field("stored", d)
				c := up.Entities()
				up.Ldarg(0).Ldfld(field)
				forEach := g.Imports.Method(g.Imports.Entities(known.ForEachConstructionMethods), known.ForEach, 2)
				up.Call(forEach.MakeGeneric(g.Imports.Entities(known.ForEachDescription), d))
				c.Run()
			},
			want: diag.DC0044,
		},
		{
			name: "description consumed",
			chain: func(g *fixture.Game, s *fixture.System, up, lambda *fixture.Method) {
				up.Entities()
				up.Pop()
			},
			want: diag.DC0011,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := only(t, build(tt.chain), "S")
			if !diag.IsCode(err, tt.want) {
				t.Fatalf("err = %v, want %s", err, tt.want)
			}
		})
	}
}

func TestGenericSystemRejected(t *testing.T) {
	g := build(func(g *fixture.Game, s *fixture.System, up, lambda *fixture.Method) {
		s.Def.GenericParams = []string{"T"}
		up.Entities().ForEach(lambda, fixture.Cached(s.Statics())).Run()
	})
	_, err := only(t, g, "S")
	if !diag.IsCode(err, diag.DC0025) {
		t.Fatalf("err = %v, want DC0025", err)
	}
}

func TestJobComponentSystemScheduleParallel(t *testing.T) {
	g := fixture.NewGame("Parallel")
	s := g.JobComponentSystem("Game", "S")
	statics := s.Statics()
	lambda := statics.Lambda(fixture.R("t", g.Translation))
	lambda.Ret()
	up := s.OnUpdate()
	c := up.Entities().ForEach(lambda, fixture.Cached(statics))
	up.Ldarg(1)
	c.Terminal(known.ExecutionMethods, known.ScheduleParallel, 2)
	up.Ret()

	_, err := only(t, g, "S")
	if !diag.IsCode(err, diag.DC0007) {
		t.Fatalf("err = %v, want DC0007", err)
	}
}

func TestSiblingChains(t *testing.T) {
	g := build(func(g *fixture.Game, s *fixture.System, up, lambda *fixture.Method) {
		up.Entities().ForEach(lambda, fixture.Cached(s.Statics())).Run()
		up.Entities().WithName("A").WithName("B").ForEach(lambda, fixture.Cached(s.Statics())).Run()
		up.Entities().ForEach(lambda, fixture.Cached(s.Statics())).Schedule()
	})
	results := analyzer.New(g.Universe).FindIn(onUpdate(t, g, "S"))
	if len(results) != 3 {
		t.Fatalf("found %d chains, want 3", len(results))
	}
	if results[0].Err != nil || results[0].Chain.Name != "OnUpdate_LambdaJob0" {
		t.Errorf("first chain: %+v", results[0])
	}
	if !diag.IsCode(results[1].Err, diag.DC0009) {
		t.Errorf("second chain err = %v, want DC0009", results[1].Err)
	}
	if results[2].Err != nil || results[2].Chain.Name != "OnUpdate_LambdaJob2" || results[2].Chain.Mode != analyzer.ModeSchedule {
		t.Errorf("third chain: %+v", results[2])
	}
}

func TestBurstOptions(t *testing.T) {
	tests := []struct {
		name      string
		chain     func(c *fixture.Chain) *fixture.Chain
		wantBurst bool
		wantOpts  *analyzer.BurstOptions
	}{
		{"default", func(c *fixture.Chain) *fixture.Chain { return c }, true, nil},
		{"disabled", func(c *fixture.Chain) *fixture.Chain { return c.WithBurst(false) }, false, nil},
		{"without", func(c *fixture.Chain) *fixture.Chain { return c.WithoutBurst() }, false, nil},
		{"options", func(c *fixture.Chain) *fixture.Chain { return c.WithBurstOptions(1, 2, true) }, true,
			&analyzer.BurstOptions{FloatMode: 1, FloatPrecision: 2, CompileSynchronously: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := build(func(g *fixture.Game, s *fixture.System, up, lambda *fixture.Method) {
				tt.chain(up.Entities()).ForEach(lambda, fixture.Cached(s.Statics())).Run()
			})
			c, err := only(t, g, "S")
			if err != nil {
				t.Fatalf("Analyze: %v", err)
			}
			if c.UsesBurst() != tt.wantBurst {
				t.Errorf("UsesBurst = %v, want %v", c.UsesBurst(), tt.wantBurst)
			}
			opts, ok := c.Burst()
			if (tt.wantOpts != nil) != ok {
				t.Fatalf("Burst() ok = %v", ok)
			}
			if ok && opts != *tt.wantOpts {
				t.Errorf("Burst() = %+v, want %+v", opts, *tt.wantOpts)
			}
		})
	}
}

func TestSources(t *testing.T) {
	g := fixture.ScenarioA()
	m := onUpdate(t, g, "MoveSystem")
	sources := analyzer.Sources(m)
	if len(sources) != 1 {
		t.Fatalf("Sources = %d", len(sources))
	}
	if ref, _ := sources[0].Method(); ref.Name != known.GetEntities {
		t.Errorf("source = %s", ref.Name)
	}
}
