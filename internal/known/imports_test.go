package known_test

import (
	"errors"
	"testing"

	"github.com/wippyai/lambdajobs/framework"
	"github.com/wippyai/lambdajobs/internal/known"
)

func TestImportsInterning(t *testing.T) {
	im := known.NewImports(framework.Universe())
	a := im.Entities(known.EntityQuery)
	b := im.Entities(known.EntityQuery)
	if a != b {
		t.Fatal("repeated type lookups should return the same reference")
	}
	m1 := im.Method(im.Entities(known.ArchetypeChunk), "get_Count", 0)
	m2 := im.Method(im.Entities(known.ArchetypeChunk), "get_Count", 0)
	if m1 != m2 {
		t.Fatal("repeated method lookups should return the same reference")
	}
	if got := im.Len(); got != 3 {
		t.Errorf("Len = %d, want 3", got)
	}
	if err := im.Err(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestImportsOverloads(t *testing.T) {
	im := known.NewImports(framework.Universe())
	ici := im.Entities(known.InternalCompilerIface)
	jobDelegate := im.Nested(known.NsEntities, known.InternalCompilerIface, "JobRunWithoutJobSystemDelegate")
	chunkDelegate := im.Nested(known.NsEntities, known.InternalCompilerIface, "JobChunkRunWithoutJobSystemDelegate")

	forJob := im.Method(ici, "BurstCompile", 1, jobDelegate)
	forChunk := im.Method(ici, "BurstCompile", 1, chunkDelegate)
	if !forJob.ReturnType.Equal(jobDelegate) {
		t.Errorf("job overload returns %v", forJob.ReturnType)
	}
	if !forChunk.ReturnType.Equal(chunkDelegate) {
		t.Errorf("chunk overload returns %v", forChunk.ReturnType)
	}
	if err := im.Err(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestImportsBaseTypeSearch(t *testing.T) {
	im := known.NewImports(framework.Universe())
	sb := im.Entities(known.SystemBase)
	m := im.Method(sb, "GetComponentDataFromEntity", 1)
	if !m.DeclaringType.Is(known.NsEntities, known.ComponentSystemBase) {
		t.Errorf("declared on %v, want ComponentSystemBase", m.DeclaringType)
	}
	if !m.HasThis {
		t.Error("GetComponentDataFromEntity should be an instance method")
	}
}

func TestImportsMissing(t *testing.T) {
	im := known.NewImports(framework.Universe())
	q := im.Entities(known.EntityQuery)
	m := im.Method(q, "NoSuchMethod", 2)
	if m == nil || len(m.Params) != 2 {
		t.Fatalf("placeholder = %v, want a two parameter reference", m)
	}
	im.Type(known.NsEntities, "Missing")

	var missing *known.MissingError
	if !errors.As(im.Err(), &missing) {
		t.Fatalf("Err = %v, want *MissingError", im.Err())
	}
	if missing.Name != "Unity.Entities.EntityQuery::NoSuchMethod(2)" {
		t.Errorf("first missing member = %q", missing.Name)
	}
}

func TestImportsMissSince(t *testing.T) {
	im := known.NewImports(framework.Universe())
	q := im.Entities(known.EntityQuery)
	im.Method(q, "NoSuchMethod", 0)

	mark := im.Mark()
	im.Entities(known.ArchetypeChunk)
	if err := im.ErrSince(mark); err != nil {
		t.Fatalf("resolved lookups after the mark reported %v", err)
	}
	if im.Err() == nil {
		t.Fatal("Err forgot the earlier miss")
	}

	// An interned placeholder still counts as a miss for later callers.
	mark = im.Mark()
	im.Method(q, "NoSuchMethod", 0)
	if got := im.MissingSince(mark); got != "Unity.Entities.EntityQuery::NoSuchMethod(0)" {
		t.Errorf("MissingSince = %q", got)
	}
}

func TestFieldModifiers(t *testing.T) {
	u := framework.Universe()
	for _, fm := range known.FieldModifiers {
		if u.FindType(fm.AttributeNs+"."+fm.Attribute) == nil {
			t.Errorf("%s: attribute %s.%s not defined", fm.Method, fm.AttributeNs, fm.Attribute)
		}
		if (fm.Marker == "") != (fm.Code == "") {
			t.Errorf("%s: marker %q and code %q should be set together", fm.Method, fm.Marker, fm.Code)
		}
	}
}

func TestIsConstructionType(t *testing.T) {
	tests := []struct {
		ns, name string
		want     bool
	}{
		{known.NsEntities, known.ConstructionMethods, true},
		{known.NsEntities, known.ExecutionMethodsJCS, true},
		{"", known.QueryConstructionMethods, true},
		{"Game", known.ConstructionMethods, false},
		{known.NsEntities, known.SystemBase, false},
	}
	for _, tt := range tests {
		if got := known.IsConstructionType(tt.ns, tt.name); got != tt.want {
			t.Errorf("IsConstructionType(%q, %q) = %v, want %v", tt.ns, tt.name, got, tt.want)
		}
	}
	if !known.IsTerminal(known.ScheduleParallel) || known.IsTerminal(known.WithName) {
		t.Error("IsTerminal misclassifies chain methods")
	}
}
