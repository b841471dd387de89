package framework_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/wippyai/lambdajobs/framework"
	"github.com/wippyai/lambdajobs/il"
	"github.com/wippyai/lambdajobs/internal/known"
)

func TestModulesValidate(t *testing.T) {
	for _, m := range framework.Modules() {
		if err := il.Validate(m); err != nil {
			t.Errorf("%s: %v", m.Name, err)
		}
	}
}

func TestTypesResolve(t *testing.T) {
	u := framework.Universe()
	tests := []struct {
		name      string
		valueType bool
	}{
		{"System.Object", false},
		{"System.Int32", true},
		{"Unity.Entities.SystemBase", false},
		{"Unity.Entities.JobComponentSystem", false},
		{"Unity.Entities.Entity", true},
		{"Unity.Entities.ForEachLambdaJobDescription", true},
		{"Unity.Entities.LambdaJobChunkDescription", true},
		{"Unity.Entities.CodeGeneratedJobForEach.LambdaParameterValueProvider_IComponentData/Runtime", true},
		{"Unity.Entities.CodeGeneratedJobForEach.StructuralChangeEntityProvider/PerformLambdaDelegate", false},
		{"Unity.Entities.UniversalDelegates.VRI`3", false},
		{"Unity.Collections.NativeArray", true},
		{"Unity.Burst.BurstCompileAttribute", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			def := u.FindType(tt.name)
			if def == nil {
				t.Fatalf("type %s not defined", tt.name)
			}
			if got := def.IsValueType(); got != tt.valueType {
				t.Errorf("IsValueType = %v, want %v", got, tt.valueType)
			}
		})
	}
}

func TestSystemHierarchy(t *testing.T) {
	u := framework.Universe()
	sb := u.FindType("Unity.Entities.SystemBase")
	if !u.InheritsFrom(sb, known.NsEntities, known.ComponentSystemBase) {
		t.Fatal("SystemBase should derive from ComponentSystemBase")
	}
	if m := sb.Method(known.OnCreateForCompiler); m != nil {
		t.Fatal("OnCreateForCompiler belongs to ComponentSystemBase only")
	}
	base := u.FindType("Unity.Entities.ComponentSystemBase")
	hook := base.Method(known.OnCreateForCompiler)
	if hook == nil || hook.Flags&il.MethodVirtual == 0 {
		t.Fatalf("OnCreateForCompiler = %v, want a virtual method", hook)
	}
	desc := u.FindType("Unity.Entities.ForEachLambdaJobDescription")
	if !u.Implements(desc, known.NsEntities, "ILambdaJobDescription") {
		t.Error("ForEachLambdaJobDescription should implement ILambdaJobDescription")
	}
}

func TestChainVocabularyAttributes(t *testing.T) {
	u := framework.Universe()
	cm := u.FindType("Unity.Entities." + known.ConstructionMethods)

	var multi []string
	for _, m := range cm.Methods {
		if m.CustomAttributes.HasName(known.AllowMultipleInvocations) {
			multi = append(multi, m.Name)
		}
	}
	var want []string
	for _, fm := range known.FieldModifiers {
		want = append(want, fm.Method)
	}
	if diff := cmp.Diff(want, multi); diff != "" {
		t.Errorf("multi-invocation methods mismatch (-want +got):\n%s", diff)
	}

	fe := u.FindType("Unity.Entities." + known.ForEachConstructionMethods).Method(known.ForEach)
	if !fe.Params[1].CustomAttributes.Has(known.NsEntities, known.AllowDynamicValue) {
		t.Error("ForEach delegate argument should allow dynamic values")
	}
	if fe.Params[0].CustomAttributes.Has(known.NsEntities, known.AllowDynamicValue) {
		t.Error("ForEach description argument should not allow dynamic values")
	}
}

func TestStructuralChangeMethods(t *testing.T) {
	u := framework.Universe()
	em := u.FindType("Unity.Entities.EntityManager")
	got := map[string]bool{}
	for _, m := range em.Methods {
		got[m.Name] = m.CustomAttributes.Has(known.NsEntities, known.StructuralChangeMethod)
	}
	want := map[string]bool{
		"CreateEntity":     true,
		"DestroyEntity":    true,
		"AddComponent":     true,
		"RemoveComponent":  true,
		"AddComponentData": true,
		"GetComponentData": false,
		"SetComponentData": false,
		"HasComponent":     false,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("structural change markers mismatch (-want +got):\n%s", diff)
	}
}

func TestQueryOverloadsByArity(t *testing.T) {
	u := framework.Universe()
	qm := u.FindType("Unity.Entities." + known.QueryConstructionMethods)
	arities := map[int]int{}
	for _, m := range qm.Methods {
		if m.Name == known.WithAll && m.Params[0].Type.Is(known.NsEntities, known.ForEachDescription) {
			arities[len(m.GenericParams)]++
		}
	}
	if diff := cmp.Diff(map[int]int{1: 1, 2: 1, 3: 1}, arities); diff != "" {
		t.Errorf("WithAll arities mismatch (-want +got):\n%s", diff)
	}
}

func TestProviderRuntimes(t *testing.T) {
	u := framework.Universe()
	tests := []struct {
		provider string
		result   string
	}{
		{known.ProviderEntity, "Unity.Entities.Entity"},
		{known.ProviderComponent, "!0&"},
		{known.ProviderTag, "!0"},
		{known.ProviderBuffer, "Unity.Entities.DynamicBuffer<!0>"},
		{known.ProviderEntityInQueryIdx, "System.Int32"},
	}
	for _, tt := range tests {
		t.Run(tt.provider, func(t *testing.T) {
			def := u.FindType(known.NsCodeGenerated + "." + tt.provider + "/Runtime")
			if def == nil {
				t.Fatal("runtime not defined")
			}
			m := def.Method("For")
			if m == nil {
				t.Fatal("runtime has no For")
			}
			if got := m.ReturnType.FullName(); got != tt.result {
				t.Errorf("For returns %s, want %s", got, tt.result)
			}
		})
	}

	idx := u.FindType(known.NsCodeGenerated + "." + known.ProviderEntityInQueryIdx)
	if got := len(idx.Method("PrepareToExecuteOnEntitiesIn").Params); got != 3 {
		t.Errorf("entity in query index prepare takes %d params, want 3", got)
	}
}

func TestUniversalDelegates(t *testing.T) {
	u := framework.Universe()
	tests := []struct {
		pattern string
		params  []string
	}{
		{"V", []string{"!0"}},
		{"R", []string{"!0&"}},
		{"IR", []string{"!0&", "!1&"}},
		{"VRI", []string{"!0", "!1&", "!2&"}},
	}
	for _, tt := range tests {
		t.Run(tt.pattern, func(t *testing.T) {
			name := framework.UniversalDelegateName(tt.pattern)
			def := u.FindType(known.NsUniversal + "." + name)
			if def == nil {
				t.Fatalf("delegate %s not defined", name)
			}
			if len(def.GenericParams) != len(tt.pattern) {
				t.Errorf("generic params = %v", def.GenericParams)
			}
			var got []string
			for _, p := range def.Method("Invoke").Params {
				got = append(got, p.Type.FullName())
			}
			if diff := cmp.Diff(tt.params, got); diff != "" {
				t.Errorf("Invoke params mismatch (-want +got):\n%s", diff)
			}
		})
	}
	if got := framework.UniversalDelegateName("RR"); got != "RR`2" {
		t.Errorf("UniversalDelegateName = %q", got)
	}
}
