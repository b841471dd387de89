package lambdajobs_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/wippyai/lambdajobs"
	"github.com/wippyai/lambdajobs/diag"
	"github.com/wippyai/lambdajobs/il"
	"github.com/wippyai/lambdajobs/internal/fixture"
)

func TestProcess(t *testing.T) {
	mod := fixture.ScenarioA().Finish()
	res, err := lambdajobs.New(lambdajobs.Config{Verify: true}).Process(mod)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(res.Diagnostics) != 0 {
		t.Fatalf("unexpected diagnostics: %v", res.Diagnostics)
	}
	want := []lambdajobs.Job{{
		System:          "Game.MoveSystem",
		Method:          "OnUpdate",
		Struct:          "<>c__DisplayClass_Move",
		Kind:            "Entities",
		Mode:            "ScheduleParallel",
		Burst:           true,
		ClosureAsStruct: true,
	}}
	if diff := cmp.Diff(want, res.Jobs); diff != "" {
		t.Errorf("jobs mismatch (-want +got):\n%s", diff)
	}
	if lambdajobs.Err(res) != nil {
		t.Errorf("Err = %v, want nil", lambdajobs.Err(res))
	}
}

func TestProcessNil(t *testing.T) {
	if _, err := lambdajobs.New(lambdajobs.Config{}).Process(nil); err == nil {
		t.Fatal("expected error for nil module")
	}
}

func TestProcessReportsErrors(t *testing.T) {
	mod := fixture.ScenarioC().Finish()
	res, err := lambdajobs.New(lambdajobs.Config{}).Process(mod)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	err = lambdajobs.Err(res)
	if !diag.IsCode(err, diag.DC0010) {
		t.Fatalf("Err = %v, want %s", err, diag.DC0010)
	}
}

func TestTransform(t *testing.T) {
	data, err := il.Encode(fixture.ScenarioB().Finish())
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	out, res, err := lambdajobs.New(lambdajobs.Config{Verify: true}).Transform(data)
	if err != nil {
		t.Fatalf("Transform: %v", err)
	}
	if len(res.Jobs) != 1 {
		t.Fatalf("got %d jobs, want 1", len(res.Jobs))
	}
	mod, err := il.DecodeValidate(out)
	if err != nil {
		t.Fatalf("DecodeValidate: %v", err)
	}
	sys := mod.FindType("Game.SpawnSystem")
	if sys == nil {
		t.Fatal("SpawnSystem missing from output")
	}
	if sys.Nested(res.Jobs[0].Struct) == nil {
		t.Errorf("job struct %s missing from output", res.Jobs[0].Struct)
	}
	if sys.Method("OnCreateForCompiler") == nil {
		t.Error("OnCreateForCompiler missing from output")
	}
}

func TestTransformWithErrors(t *testing.T) {
	data, err := il.Encode(fixture.ScenarioC().Finish())
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	out, res, err := lambdajobs.New(lambdajobs.Config{}).Transform(data)
	if err != nil {
		t.Fatalf("Transform: %v", err)
	}
	if out != nil {
		t.Error("expected no output for a module with errors")
	}
	if !res.HasErrors() {
		t.Error("expected error diagnostics")
	}
}

func TestTransformRejectsGarbage(t *testing.T) {
	if _, _, err := lambdajobs.New(lambdajobs.Config{}).Transform([]byte("not a module")); err == nil {
		t.Fatal("expected decode error")
	}
}
