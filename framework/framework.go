// Package framework builds the reference modules the lambda job pass
// resolves user code against: a minimal System core library and the
// Unity.Entities surface (component systems, the builder chain vocabulary,
// job interfaces, element providers and the attributes the pass reads or
// emits).
//
// The modules carry signatures and attributes only. They are written to
// disk by the CLI so that user modules can be processed against them.
package framework

import (
	"github.com/wippyai/lambdajobs/il"
	"github.com/wippyai/lambdajobs/internal/known"
)

// Module names.
const (
	SystemModule   = "System.Runtime"
	EntitiesModule = "Unity.Entities"
)

// Modules returns freshly built System and Unity.Entities modules.
func Modules() []*il.Module {
	return []*il.Module{System(), Entities()}
}

// Universe returns a resolver over the framework modules and mods.
func Universe(mods ...*il.Module) *il.Universe {
	return il.NewUniverse(append(mods, Modules()...)...)
}

// System builds the core library subset.
func System() *il.Module {
	b := &builder{mod: il.NewModule(SystemModule)}
	ctor(b.add(&il.TypeDef{Namespace: "System", Name: "Object", Flags: il.TypePublic}))
	b.class("System", "ValueType", nil)
	b.class("System", "Enum", il.ValueType)
	b.class("System", "String", nil)
	b.class("System", "Type", nil)
	b.class("System", "Delegate", nil)
	b.class("System", "MulticastDelegate", il.NewTypeRef("System", "Delegate", false))
	b.class("System", "Attribute", nil)
	for _, name := range []string{"Void", "Boolean", "Char", "Byte", "Int16", "Int32", "Int64", "UInt32", "UInt64", "Single", "Double", "IntPtr", "UIntPtr"} {
		b.structure("System", name)
	}
	b.attribute(known.NsCompilerServices, known.IsReadOnly)
	b.attribute(known.NsCompilerServices, known.CompilerGenerated)
	return b.mod
}

// Entities builds the Unity.Entities surface.
func Entities() *il.Module {
	b := &builder{mod: il.NewModule(EntitiesModule)}
	r := buildAttributes(b)
	buildData(b, r)
	buildJobs(b, r)
	buildSystems(b, r)
	buildChain(b, r)
	buildProviders(b, r)
	buildUniversalDelegates(b)
	return b.mod
}

// refs collects references shared between the build steps.
type refs struct {
	allowDynamic    *il.TypeRef
	nativeContainer *il.TypeRef
	supportsDealloc *il.TypeRef
	structural      *il.TypeRef

	entity, entityQuery, entityQueryDesc *il.TypeRef
	queryOptions, componentType          *il.TypeRef
	chunk, chunkIterator, entityManager  *il.TypeRef
	cdfe, dynamicBuffer, jobHandle       *il.TypeRef

	componentSystemBase, floatMode, floatPrecision *il.TypeRef
}

func nsValue(name string) *il.TypeRef {
	return il.NewTypeRef(known.NsEntities, name, true)
}

func buildAttributes(b *builder) *refs {
	r := &refs{}
	r.allowDynamic = b.attribute(known.NsEntities, known.AllowDynamicValue).Ref()
	r.structural = b.attribute(known.NsEntities, known.StructuralChangeMethod).Ref()
	b.attribute(known.NsEntities, known.DOTSCompilerGenerated)

	r.nativeContainer = b.attribute(known.NsCollectionsLL, known.NativeContainer).Ref()
	r.supportsDealloc = b.attribute(known.NsCollectionsLL, known.NativeContainerSupportsDeallocate).Ref()
	b.attribute(known.NsCollectionsLL, known.NativeDisableContainerSafety)
	b.attribute(known.NsCollectionsLL, known.NativeDisableUnsafePtr)
	b.attribute(known.NsCollections, known.ReadOnly)
	b.attribute(known.NsCollections, known.DeallocateOnJobCompletion)
	b.attribute(known.NsCollections, known.NativeDisableParallelFor)

	r.floatMode = b.enum(known.NsBurst, known.FloatMode).Ref()
	r.floatPrecision = b.enum(known.NsBurst, known.FloatPrecision).Ref()
	burst := b.attribute(known.NsBurst, known.BurstCompile)
	field(burst, "FloatMode", r.floatMode)
	field(burst, "FloatPrecision", r.floatPrecision)
	field(burst, "CompileSynchronously", il.Boolean)
	b.attribute(known.NsBurst, known.NoAlias)

	b.attribute(known.NsUnityEngine, known.ExecuteAlways)
	cb := b.class(known.NsAOT, known.MonoPInvokeCallback, attributeBase)
	ctor(cb, p("type", il.NewTypeRef("System", "Type", false)))
	return r
}

func buildData(b *builder, r *refs) {
	r.entity = b.structure(known.NsEntities, known.Entity).Ref()
	b.iface(known.NsEntities, known.IComponentData)
	b.iface(known.NsEntities, known.ISharedComponentData)
	b.iface(known.NsEntities, known.IBufferElementData)

	r.queryOptions = b.enum(known.NsEntities, known.EntityQueryOptions).Ref()

	ct := b.structure(known.NsEntities, known.ComponentType)
	r.componentType = ct.Ref()
	generic(staticMethod(ct, "ReadOnly", r.componentType), "T")
	generic(staticMethod(ct, "ReadWrite", r.componentType), "T")

	desc := b.class(known.NsEntities, known.EntityQueryDesc, nil)
	r.entityQueryDesc = desc.Ref()
	ctor(desc)
	field(desc, "All", r.componentType.MakeArray())
	field(desc, "Any", r.componentType.MakeArray())
	field(desc, "None", r.componentType.MakeArray())
	field(desc, "Options", r.queryOptions)

	q := b.class(known.NsEntities, known.EntityQuery, nil)
	r.entityQuery = q.Ref()
	instance(q, "SetChangedVersionFilter", il.Void, p("componentType", r.componentType.MakeArray()))
	generic(instance(q, "SetSharedComponentFilter", il.Void, p("sharedComponent", mt0)), "T")
	instance(q, "ResetFilter", il.Void)

	chunk := b.structure(known.NsEntities, known.ArchetypeChunk)
	r.chunk = chunk.Ref()
	instance(chunk, "get_Count", il.Int32)
	r.chunkIterator = b.structure(known.NsEntities, known.ChunkIterator).Ref()

	buf := b.structure(known.NsEntities, known.DynamicBuffer, "T")
	mark(buf, r.nativeContainer)
	r.dynamicBuffer = buf.Ref()
	instance(buf, "get_Length", il.Int32)

	em := b.structure(known.NsEntities, known.EntityManager)
	r.entityManager = em.Ref()
	markMethod(instance(em, "CreateEntity", r.entity), r.structural)
	markMethod(instance(em, "DestroyEntity", il.Void, p("entity", r.entity)), r.structural)
	markMethod(generic(instance(em, "AddComponent", il.Boolean, p("entity", r.entity)), "T"), r.structural)
	markMethod(generic(instance(em, "RemoveComponent", il.Boolean, p("entity", r.entity)), "T"), r.structural)
	markMethod(generic(instance(em, "AddComponentData", il.Boolean, p("entity", r.entity), p("componentData", mt0)), "T"), r.structural)
	generic(instance(em, "GetComponentData", mt0, p("entity", r.entity)), "T")
	generic(instance(em, "SetComponentData", il.Void, p("entity", r.entity), p("componentData", mt0)), "T")
	generic(instance(em, "HasComponent", il.Boolean, p("entity", r.entity)), "T")

	cdfe := b.structure(known.NsEntities, known.ComponentDataFromEnt, "T")
	mark(cdfe, r.nativeContainer)
	r.cdfe = cdfe.Ref()
	instance(cdfe, "get_Item", t0, p("entity", r.entity))
	instance(cdfe, "set_Item", il.Void, p("entity", r.entity), p("value", t0))
	instance(cdfe, "HasComponent", il.Boolean, p("entity", r.entity))

	arr := b.structure(known.NsCollections, known.NativeArray, "T")
	mark(arr, r.nativeContainer, r.supportsDealloc)
	instance(arr, "Dispose", il.Void)
	instance(arr, "get_Length", il.Int32)
	instance(arr, "get_Item", t0, p("index", il.Int32))
	instance(arr, "set_Item", il.Void, p("index", il.Int32), p("value", t0))
}

func buildJobs(b *builder, r *refs) {
	jh := b.structure(known.NsJobs, known.JobHandle)
	r.jobHandle = jh.Ref()
	instance(jh, "Complete", il.Void)
	staticMethod(jh, "CombineDependencies", r.jobHandle, p("job0", r.jobHandle), p("job1", r.jobHandle))

	ijob := b.iface(known.NsJobs, known.IJob)
	method(ijob, "Execute", il.MethodPublic|il.MethodVirtual|il.MethodAbstract, il.Void)
	ext := b.static(known.NsJobs, known.IJobExtensions)
	generic(staticMethod(ext, "Schedule", r.jobHandle, p("jobData", mt0), p("dependsOn", r.jobHandle)), "T")
	generic(staticMethod(ext, "Run", il.Void, p("jobData", mt0)), "T")

	ju := b.static(known.NsJobsLowLevel, known.JobsUtility)
	staticMethod(ju, "get_JobCompilerEnabled", il.Boolean)

	uu := b.static(known.NsCollectionsLL, known.UnsafeUtilityEx)
	generic(staticMethod(uu, "AsRef", mt0.MakeByRef(), p("ptr", il.Void.MakePointer())), "T")

	ijc := b.iface(known.NsEntities, known.IJobChunk)
	method(ijc, "Execute", il.MethodPublic|il.MethodVirtual|il.MethodAbstract, il.Void,
		p("chunk", r.chunk), p("chunkIndex", il.Int32), p("firstEntityIndex", il.Int32))

	jce := b.static(known.NsEntities, known.JobChunkExtensions)
	for _, name := range []string{"Schedule", "ScheduleSingle", "ScheduleParallel"} {
		generic(staticMethod(jce, name, r.jobHandle, p("jobData", mt0), p("query", r.entityQuery), p("dependsOn", r.jobHandle)), "T")
	}
	generic(staticMethod(jce, "Run", il.Void, p("jobData", mt0), p("query", r.entityQuery)), "T")
	generic(staticMethod(jce, "RunWithoutJobs", il.Void, p("jobData", mt0.MakeByRef()), p("chunkIterator", r.chunkIterator.MakePointer())), "T")

	ici := b.static(known.NsEntities, known.InternalCompilerIface)
	runJob := nestedDelegate(ici, "JobRunWithoutJobSystemDelegate", il.Void, p("jobData", il.Void.MakePointer())).Ref()
	runChunk := nestedDelegate(ici, "JobChunkRunWithoutJobSystemDelegate", il.Void,
		p("iterator", r.chunkIterator.MakePointer()), p("jobData", il.Void.MakePointer())).Ref()
	staticMethod(ici, "BurstCompile", runJob, p("d", runJob))
	staticMethod(ici, "BurstCompile", runChunk, p("d", runChunk))
	generic(staticMethod(ici, "RunIJob", il.Void, p("jobData", mt0.MakeByRef()), p("functionPointer", runJob)), "T")
	generic(staticMethod(ici, "RunJobChunk", il.Void, p("jobData", mt0.MakeByRef()), p("query", r.entityQuery), p("functionPointer", runChunk)), "T")
}

func buildSystems(b *builder, r *refs) {
	csb := b.class(known.NsEntities, known.ComponentSystemBase, nil)
	csb.Flags |= il.TypeAbstract
	r.componentSystemBase = csb.Ref()
	ctor(csb)
	method(csb, known.OnCreateForCompiler, il.MethodFamily|il.MethodAssembly|il.MethodVirtual, il.Void)
	method(csb, "OnCreate", il.MethodFamily|il.MethodVirtual, il.Void)
	instance(csb, "get_EntityManager", r.entityManager)
	method(csb, "GetEntityQuery", il.MethodFamily, r.entityQuery, p("queryDesc", r.entityQueryDesc.MakeArray()))
	generic(instance(csb, "GetComponentDataFromEntity", r.cdfe.MakeGeneric(mt0), p("isReadOnly", il.Boolean)), "T")

	sb := b.class(known.NsEntities, known.SystemBase, r.componentSystemBase)
	sb.Flags |= il.TypeAbstract
	ctor(sb)
	method(sb, known.GetEntities, il.MethodFamily, nsValue(known.ForEachDescription))
	method(sb, known.GetJob, il.MethodFamily, nsValue(known.SingleJobDescription))
	instance(sb, "get_Dependency", r.jobHandle)
	instance(sb, "set_Dependency", il.Void, p("value", r.jobHandle))
	method(sb, "CompleteDependency", il.MethodFamily, il.Void)
	generic(method(sb, "GetComponent", il.MethodFamily, mt0, p("entity", r.entity)), "T")
	generic(method(sb, "SetComponent", il.MethodFamily, il.Void, p("entity", r.entity), p("component", mt0)), "T")
	generic(method(sb, "HasComponent", il.MethodFamily, il.Boolean, p("entity", r.entity)), "T")
	method(sb, "OnUpdate", il.MethodFamily|il.MethodVirtual|il.MethodAbstract, il.Void)

	jcs := b.class(known.NsEntities, known.JobComponentSystem, r.componentSystemBase)
	jcs.Flags |= il.TypeAbstract
	ctor(jcs)
	method(jcs, known.GetEntities, il.MethodFamily, nsValue(known.ForEachDescriptionJCS))
	method(jcs, known.GetJob, il.MethodFamily, nsValue(known.SingleJobDescriptionJCS))
	method(jcs, known.GetChunks, il.MethodFamily, nsValue(known.ChunkDescription))
	method(jcs, "OnUpdate", il.MethodFamily|il.MethodVirtual|il.MethodAbstract, r.jobHandle, p("inputDeps", r.jobHandle))
}

func buildChain(b *builder, r *refs) {
	desc := b.iface(known.NsEntities, "ILambdaJobDescription").Ref()
	exec := b.iface(known.NsEntities, "ILambdaJobExecutionDescription").Ref()
	execJCS := b.iface(known.NsEntities, "ILambdaJobExecutionDescriptionJCS").Ref()
	single := b.iface(known.NsEntities, "ILambdaSingleJobExecutionDescription").Ref()
	singleJCS := b.iface(known.NsEntities, "ILambdaSingleJobExecutionDescriptionJCS").Ref()

	forEach := b.structure(known.NsEntities, known.ForEachDescription)
	forEach.Interfaces = []*il.TypeRef{desc, exec}
	forEachJCS := b.structure(known.NsEntities, known.ForEachDescriptionJCS)
	forEachJCS.Interfaces = []*il.TypeRef{desc, execJCS}
	b.structure(known.NsEntities, known.SingleJobDescription).Interfaces = []*il.TypeRef{desc, single}
	b.structure(known.NsEntities, known.SingleJobDescriptionJCS).Interfaces = []*il.TypeRef{desc, singleJCS}
	chunk := b.structure(known.NsEntities, known.ChunkDescription)
	chunk.Interfaces = []*il.TypeRef{desc, execJCS}

	dyn := func(name string, t *il.TypeRef) param {
		return p(name, t, il.NewAttribute(r.allowDynamic))
	}

	cm := b.static(known.NsEntities, known.ConstructionMethods)
	multi := nestedAttribute(cm, known.AllowMultipleInvocations).Ref()
	generic(staticMethod(cm, known.WithoutBurst, mt0, p("description", mt0)), "TDescription")
	generic(staticMethod(cm, known.WithBurst, mt0, p("description", mt0), p("enabled", il.Boolean)), "TDescription")
	generic(staticMethod(cm, known.WithBurst, mt0, p("description", mt0),
		p("floatMode", r.floatMode), p("floatPrecision", r.floatPrecision), p("synchronousCompilation", il.Boolean)), "TDescription")
	generic(staticMethod(cm, known.WithName, mt0, p("description", mt0), p("name", il.String)), "TDescription")
	generic(staticMethod(cm, known.WithStructuralChanges, mt0, p("description", mt0)), "TDescription")
	for _, fm := range known.FieldModifiers {
		arg := mt1
		if fm.Method == known.WithNativeDisableUnsafePtr {
			arg = mt1.MakePointer()
		}
		markMethod(generic(staticMethod(cm, fm.Method, mt0, p("description", mt0), dyn("capturedVariable", arg)),
			"TDescription", "TCapturedVariableType"), multi)
	}

	qm := b.static(known.NsEntities, known.QueryConstructionMethods)
	for _, d := range []*il.TypeRef{forEach.Ref(), forEachJCS.Ref(), chunk.Ref()} {
		for _, name := range []string{known.WithNone, known.WithAny, known.WithAll} {
			for n := 1; n <= 3; n++ {
				generic(staticMethod(qm, name, d, p("description", d)), typeParams(n)...)
			}
		}
		for n := 1; n <= 2; n++ {
			generic(staticMethod(qm, known.WithChangeFilter, d, p("description", d)), typeParams(n)...)
		}
		staticMethod(qm, known.WithEntityQueryOptions, d, p("description", d), p("options", r.queryOptions))
		generic(staticMethod(qm, known.WithSharedComponentFilter, d, p("description", d), dyn("sharedComponent", mt0)), "T")
		staticMethod(qm, known.WithStoreEntityQueryInField, d, p("description", d), dyn("query", r.entityQuery.MakeByRef()))
	}

	fe := b.static(known.NsEntities, known.ForEachConstructionMethods)
	generic(staticMethod(fe, known.ForEach, mt0, p("description", mt0), dyn("code", mt1)), "TDescription", "TDelegate")

	sj := b.static(known.NsEntities, known.SingleJobConstructionMethods)
	withCode := nestedDelegate(sj, "WithCodeAction", il.Void).Ref()
	generic(staticMethod(sj, known.WithCode, mt0, p("description", mt0), dyn("code", withCode)), "TDescription")

	cc := b.static(known.NsEntities, known.ChunkConstructionMethods)
	chunkDelegate := nestedDelegate(cc, "JobChunkDelegate", il.Void,
		p("chunk", r.chunk), p("chunkIndex", il.Int32), p("queryIndexOfFirstEntityInChunk", il.Int32)).Ref()
	staticMethod(cc, known.ForEach, chunk.Ref(), p("description", chunk.Ref()), dyn("code", chunkDelegate))

	// Each execution class takes the description as its first argument.
	// Only the SystemBase flavours have the implicit-dependency overloads.
	for _, e := range []struct {
		name     string
		implicit bool
		parallel bool
	}{
		{known.ExecutionMethods, true, true},
		{known.ExecutionMethodsJCS, false, false},
		{known.SingleJobExecutionMethods, true, false},
		{known.SingleJobExecutionMethodsJCS, false, false},
	} {
		t := b.static(known.NsEntities, e.name)
		generic(staticMethod(t, known.Schedule, r.jobHandle, p("description", mt0), dyn("dependency", r.jobHandle)), "TDescription")
		if e.implicit {
			generic(staticMethod(t, known.Schedule, il.Void, p("description", mt0)), "TDescription")
		}
		if e.parallel {
			generic(staticMethod(t, known.ScheduleParallel, r.jobHandle, p("description", mt0), dyn("dependency", r.jobHandle)), "TDescription")
			generic(staticMethod(t, known.ScheduleParallel, il.Void, p("description", mt0)), "TDescription")
		}
		generic(staticMethod(t, known.Run, il.Void, p("description", mt0)), "TDescription")
	}

	fs := b.static(known.NsEntities, known.ForEachSetShared)
	generic(staticMethod(fs, "SetSharedComponentFilterOnQuery", mt0,
		p("description", mt0), p("sharedComponent", mt1), p("query", r.entityQuery)), "TDescription", "T")
	cs := b.static(known.NsEntities, known.ChunkSetShared)
	generic(staticMethod(cs, "SetSharedComponentFilterOnQuery", chunk.Ref(),
		p("description", chunk.Ref()), p("sharedComponent", mt0), p("query", r.entityQuery)), "T")
}

func typeParams(n int) []string {
	if n == 1 {
		return []string{"T"}
	}
	out := make([]string, n)
	for i := range out {
		out[i] = "T" + string(rune('1'+i))
	}
	return out
}

// provider describes one lambda parameter value provider: the type its
// runtime hands out per entity and whether preparing it needs the chunk
// and entity indices.
type provider struct {
	name    string
	generic bool
	result  func(r *refs) *il.TypeRef
	indexed bool
	// writeBack providers copy the element out and back around a
	// structural change.
	writeBack bool
}

var providers = []provider{
	{name: known.ProviderEntity, result: func(r *refs) *il.TypeRef { return r.entity }},
	{name: known.ProviderComponent, generic: true, result: func(*refs) *il.TypeRef { return t0.MakeByRef() }, writeBack: true},
	{name: known.ProviderTag, generic: true, result: func(*refs) *il.TypeRef { return t0 }},
	{name: known.ProviderManaged, generic: true, result: func(*refs) *il.TypeRef { return t0 }},
	{name: known.ProviderShared, generic: true, result: func(*refs) *il.TypeRef { return t0 }},
	{name: known.ProviderBuffer, generic: true, result: func(r *refs) *il.TypeRef { return r.dynamicBuffer.MakeGeneric(t0) }},
	{name: known.ProviderEntityInQueryIdx, result: func(*refs) *il.TypeRef { return il.Int32 }, indexed: true},
	{name: known.ProviderNativeThreadIndex, result: func(*refs) *il.TypeRef { return il.Int32 }},
}

func buildProviders(b *builder, r *refs) {
	for _, pv := range providers {
		var t *il.TypeDef
		if pv.generic {
			t = b.structure(known.NsCodeGenerated, pv.name, "T")
		} else {
			t = b.structure(known.NsCodeGenerated, pv.name)
		}
		runtime := nestedStruct(t, "Runtime")
		scRuntime := nestedStruct(t, "StructuralChangeRuntime")
		runtimeRef, scRef := nestedRef(t, runtime), nestedRef(t, scRuntime)

		instance(t, "ScheduleTimeInitialize", il.Void, p("system", r.componentSystemBase), p("isReadOnly", il.Boolean))
		prepare := []param{p("chunk", r.chunk.MakeByRef())}
		if pv.indexed {
			prepare = append(prepare, p("chunkIndex", il.Int32), p("firstEntityIndex", il.Int32))
		}
		instance(t, "PrepareToExecuteOnEntitiesIn", runtimeRef, prepare...)
		instance(t, "PrepareToExecuteWithStructuralChanges", scRef, p("system", r.componentSystemBase), p("query", r.entityQuery))

		ret := pv.result(r)
		instance(runtime, "For", ret, p("i", il.Int32))
		if pv.writeBack {
			instance(scRuntime, "For", t0, p("entity", r.entity), out("originalComponent", t0))
			instance(scRuntime, "WriteBack", il.Void, p("entity", r.entity), p("lambdaComponent", t0.MakeByRef()), p("originalComponent", t0.MakeByRef()))
			continue
		}
		if ret.IsByRef() {
			ret = ret.Elem
		}
		instance(scRuntime, "For", ret, p("entity", r.entity))
	}

	sc := b.structure(known.NsCodeGenerated, known.StructuralChangeProvider)
	perform := nestedDelegate(sc, "PerformLambdaDelegate", il.Void,
		p("jobStruct", il.Void.MakePointer()), p("runtimes", il.Void.MakePointer()), p("entity", r.entity)).Ref()
	instance(sc, "PrepareToExecuteWithStructuralChanges", il.Void, p("system", r.componentSystemBase), p("query", r.entityQuery))
	instance(sc, "IterateEntities", il.Void,
		p("jobStruct", il.Void.MakePointer()), p("runtimes", il.Void.MakePointer()), p("callback", perform))
	instance(sc, "FinishExecuteWithStructuralChanges", il.Void)
}

// nestedRef refers to a nested runtime type instantiated over the generic
// parameters of its outer type.
func nestedRef(outer, nested *il.TypeDef) *il.TypeRef {
	ref := nested.Ref()
	if len(outer.GenericParams) > 0 {
		ref = ref.MakeGeneric(t0)
	}
	return ref
}

// buildUniversalDelegates defines the generic delegate family lambda
// parameters are bound through. V passes by value, R by reference and I
// by readonly reference; R`2 and VI`2 are two of the combinations.
func buildUniversalDelegates(b *builder) {
	var patterns []string
	var grow func(prefix string)
	grow = func(prefix string) {
		if prefix != "" {
			patterns = append(patterns, prefix)
		}
		if len(prefix) == 3 {
			return
		}
		for _, c := range "VRI" {
			grow(prefix + string(c))
		}
	}
	grow("")

	for _, pat := range patterns {
		names := make([]string, len(pat))
		params := make([]param, len(pat))
		for i, c := range pat {
			names[i] = "T" + string(rune('0'+i))
			arg := il.GenericParam(i)
			switch c {
			case 'V':
				params[i] = p("t"+string(rune('0'+i)), arg)
			case 'R':
				params[i] = p("t"+string(rune('0'+i)), arg.MakeByRef())
			case 'I':
				params[i] = in("t"+string(rune('0'+i)), arg)
			}
		}
		d := b.delegate(known.NsUniversal, UniversalDelegateName(pat), il.Void, params...)
		d.GenericParams = names
	}
}

// UniversalDelegateName names the universal delegate for a parameter
// pattern such as "VRI".
func UniversalDelegateName(pattern string) string {
	return pattern + "`" + string(rune('0'+len(pattern)))
}
