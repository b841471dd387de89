package main

import (
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/wippyai/lambdajobs/il"
	"github.com/wippyai/lambdajobs/internal/fixture"
)

func testApp(out string) *app {
	cfg := defaultConfig()
	cfg.Output.Dir = out
	return &app{cfg: cfg, log: zap.NewNop()}
}

func encodeScenario(t *testing.T, dir, name string) string {
	t.Helper()
	file := filepath.Join(dir, name+moduleExt)
	if err := writeModule(file, fixture.Scenarios[name]().Finish()); err != nil {
		t.Fatalf("writeModule: %v", err)
	}
	return file
}

func TestProcessFiles(t *testing.T) {
	in, out := t.TempDir(), t.TempDir()
	files := []string{encodeScenario(t, in, "a"), encodeScenario(t, in, "c"), filepath.Join(in, "missing.ilm")}

	reports, mods, err := testApp(out).process(files, nil)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if len(reports) != 3 {
		t.Fatalf("got %d reports, want 3", len(reports))
	}

	a := reports[0]
	if a.failed() || a.Output != filepath.Join(out, "a"+moduleExt) {
		t.Fatalf("report a = %+v", a)
	}
	mod, err := readModule(a.Output)
	if err != nil {
		t.Fatalf("readModule: %v", err)
	}
	if mod.FindType("Game.MoveSystem").Nested("<>c__DisplayClass_Move") == nil {
		t.Error("job struct missing from written module")
	}
	if findMethod(mods[files[0]], "Game.MoveSystem::OnUpdate") == nil {
		t.Error("processed module not kept for browsing")
	}

	if c := reports[1]; !c.failed() || c.Output != "" {
		t.Errorf("report c = %+v, want errors and no output", c)
	}
	if _, err := os.Stat(filepath.Join(out, "c"+moduleExt)); !os.IsNotExist(err) {
		t.Error("module with errors was written")
	}
	if missing := reports[2]; missing.Error == "" {
		t.Error("missing file not reported")
	}
}

func TestEntries(t *testing.T) {
	mod := fixture.ScenarioA().Finish()
	res, err := testApp("").cfg.processor(zap.NewNop()).Process(mod)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	items := entries([]*fileReport{{File: "a", Result: res}}, map[string]*il.Module{"a": mod})
	if len(items) != 1 {
		t.Fatalf("got %d entries, want 1", len(items))
	}
	e := items[0].(entry)
	if e.method == nil || e.method.Name != "OnUpdate" {
		t.Errorf("entry method = %v, want OnUpdate", e.method)
	}
}

func TestFindMethod(t *testing.T) {
	mod := fixture.ScenarioB().Finish()
	tests := []struct {
		name string
		want bool
	}{
		{"Game.SpawnSystem::OnUpdate", true},
		{"Game.SpawnSystem::Missing", false},
		{"Game.Missing::OnUpdate", false},
		{"OnUpdate", false},
	}
	for _, tt := range tests {
		if got := findMethod(mod, tt.name) != nil; got != tt.want {
			t.Errorf("findMethod(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}
