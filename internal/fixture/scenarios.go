package fixture

import (
	"github.com/wippyai/lambdajobs/il"
	"github.com/wippyai/lambdajobs/internal/known"
)

// Game holds the component types shared by the canned scenarios.
type Game struct {
	*Fixture
	Translation *il.TypeRef
	Velocity    *il.TypeRef
	Frozen      *il.TypeRef
}

// NewGame creates a fixture with a few components in namespace Game.
func NewGame(name string) *Game {
	f := New(name)
	return &Game{
		Fixture:     f,
		Translation: f.Component("Game", "Translation", F("Value", il.Single)),
		Velocity:    f.Component("Game", "Velocity", F("Value", il.Single)),
		Frozen:      f.Tag("Game", "Frozen"),
	}
}

func (g *Game) field(t *il.TypeRef, name string) *il.FieldRef {
	return g.Imports.Field(t, name)
}

// Move builds the lambda body t.Value += v.Value * dt for a lambda
// (ref Translation t, in Velocity v) reading dt from the closure field dt.
func (g *Game) Move(lambda *Method, dt *il.FieldRef) {
	value := g.field(g.Translation, "Value")
	speed := g.field(g.Velocity, "Value")
	lambda.Line()
	lambda.Ldarg(1).Ldarg(1).Ldfld(value)
	lambda.Ldarg(2).Ldfld(speed)
	lambda.Ldarg(0).Ldfld(dt)
	lambda.Emit(il.Mul, nil).Emit(il.Add, nil).Stfld(value)
	lambda.Line()
	lambda.Ret()
}

// ScenarioA is a SystemBase whose OnUpdate schedules
//
//	float dt = 0.016f;
//	Entities.WithName("Move").ForEach((ref Translation t, in Velocity v) => t.Value += v.Value * dt).ScheduleParallel();
func ScenarioA() *Game {
	return move("ScenarioA", (*Chain).ScheduleParallel)
}

// RunMove is ScenarioA run immediately with Run. The lambda reads dt and
// never writes it.
func RunMove() *Game {
	return move("RunMove", (*Chain).Run)
}

func move(name string, terminal func(*Chain) *Method) *Game {
	g := NewGame(name)
	sys := g.System("Game", "MoveSystem")
	dc := sys.Closure()
	dt := dc.Field("dt", il.Single)

	lambda := dc.Lambda(R("t", g.Translation), I("v", g.Velocity))
	g.Move(lambda, dt)

	up := sys.OnUpdate()
	up.Line()
	l := up.NewClosure(dc)
	up.Capture(l, dt, func(m *Method) { m.Emit(il.LdcR4, float32(0.016)) })
	terminal(up.Entities().WithName("Move").ForEach(lambda, InClosure(l)))
	up.Line()
	up.Ret()
	return g
}

// ScenarioB is a SystemBase whose lambda captures only this and calls a
// helper of the system, run immediately without Burst:
//
//	Entities.WithoutBurst().ForEach((ref Translation t) => t.Value = Scale(t.Value)).Run();
func ScenarioB() *Game {
	g := NewGame("ScenarioB")
	sys := g.System("Game", "SpawnSystem")
	factor := sys.Field("factor", il.Single)

	scale := sys.Method("Scale", il.Single, V("x", il.Single))
	scale.Line()
	scale.Ldarg(1).Ldarg(0).Ldfld(factor).Emit(il.Mul, nil).Ret()

	value := g.field(g.Translation, "Value")
	lambda := sys.Lambda(R("t", g.Translation))
	lambda.Line()
	lambda.Ldarg(1).Ldarg(0).Ldarg(1).Ldfld(value).Call(scale.Ref()).Stfld(value)
	lambda.Ret()

	up := sys.OnUpdate()
	up.Entities().WithoutBurst().ForEach(lambda, OnThis()).Run()
	up.Line()
	up.Ret()
	return g
}

// ScenarioC inserts a branch between two modifier calls:
//
//	Entities.WithName("Branchy") ; if (flag) {} ; .WithoutBurst().ForEach(...).Run()
func ScenarioC() *Game {
	g := NewGame("ScenarioC")
	sys := g.System("Game", "BranchSystem")
	flag := sys.Field("flag", il.Boolean)
	statics := sys.Statics()

	lambda := statics.Lambda(R("t", g.Translation))
	lambda.Line()
	lambda.Ret()

	up := sys.OnUpdate()
	c := up.Entities().WithName("Branchy")
	skip := up.Label()
	up.Ldarg(0).Ldfld(flag).Brfalse(skip)
	up.Mark(skip)
	c.WithoutBurst().ForEach(lambda, Cached(statics)).Run()
	up.Line()
	up.Ret()
	return g
}

// ScenarioJCS is a JobComponentSystem scheduling a job that reads a
// captured NativeArray marked read-only and returns the handle:
//
//	var lookup = this.lookup;
//	return Entities.WithReadOnly(lookup).ForEach((ref Translation t) => t.Value = lookup[0]).Schedule(inputDeps);
func ScenarioJCS() *Game {
	g := NewGame("ScenarioJCS")
	sys := g.JobComponentSystem("Game", "LookupSystem")
	array := g.NativeArray(il.Single)
	source := sys.Field("lookup", array)
	dc := sys.Closure()
	lookup := dc.Field("lookup", array)

	get := g.Imports.Method(g.Imports.Type(known.NsCollections, known.NativeArray), "get_Item", 1).OnType(array)
	value := g.field(g.Translation, "Value")
	lambda := dc.Lambda(R("t", g.Translation))
	lambda.Line()
	lambda.Ldarg(1).Ldarg(0).Ldflda(lookup).LdcI4(0).Call(get).Stfld(value)
	lambda.Ret()

	up := sys.OnUpdate()
	up.Line()
	l := up.NewClosure(dc)
	up.Capture(l, lookup, func(m *Method) { m.Ldarg(0).Ldfld(source) })
	up.Entities().Modify(known.WithReadOnly, l, lookup).ForEach(lambda, InClosure(l)).
		ScheduleWith(func(m *Method) { m.Ldarg(1) })
	up.Ret()
	return g
}

// ScenarioJob is a SystemBase running Job.WithCode with a captured int
// written back after the run:
//
//	int count = 0;
//	Job.WithCode(() => { count = count + 1; }).Run();
func ScenarioJob() *Game {
	g := NewGame("ScenarioJob")
	sys := g.System("Game", "CountSystem")
	dc := sys.Closure()
	count := dc.Field("count", il.Int32)

	lambda := dc.Lambda()
	lambda.Line()
	lambda.Ldarg(0).Ldarg(0).Ldfld(count).LdcI4(1).Emit(il.Add, nil).Stfld(count)
	lambda.Ret()

	up := sys.OnUpdate()
	up.Line()
	l := up.NewClosure(dc)
	up.Capture(l, count, func(m *Method) { m.LdcI4(0) })
	up.Job().WithCode(lambda, InClosure(l)).Run()
	up.Line()
	up.Ret()
	return g
}

// Scenarios lists the canned fixtures by name.
var Scenarios = map[string]func() *Game{
	"a":   ScenarioA,
	"b":   ScenarioB,
	"c":   ScenarioC,
	"jcs": ScenarioJCS,
	"job": ScenarioJob,
}
