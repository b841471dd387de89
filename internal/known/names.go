// Package known names the framework types and members the lambda job pass
// recognises or emits, and interns references to them per module.
package known

// Namespaces.
const (
	NsSystem           = "System"
	NsCompilerServices = "System.Runtime.CompilerServices"
	NsEntities         = "Unity.Entities"
	NsCodeGenerated    = "Unity.Entities.CodeGeneratedJobForEach"
	NsUniversal        = "Unity.Entities.UniversalDelegates"
	NsJobs             = "Unity.Jobs"
	NsJobsLowLevel     = "Unity.Jobs.LowLevel.Unsafe"
	NsCollections      = "Unity.Collections"
	NsCollectionsLL    = "Unity.Collections.LowLevel.Unsafe"
	NsBurst            = "Unity.Burst"
	NsUnityEngine      = "UnityEngine"
	NsAOT              = "AOT"
)

// System types.
const (
	ComponentSystemBase = "ComponentSystemBase"
	SystemBase          = "SystemBase"
	JobComponentSystem  = "JobComponentSystem"
)

// Builder description types returned by the source getters.
const (
	ForEachDescription       = "ForEachLambdaJobDescription"
	ForEachDescriptionJCS    = "ForEachLambdaJobDescriptionJCS"
	SingleJobDescription     = "LambdaSingleJobDescription"
	SingleJobDescriptionJCS  = "LambdaSingleJobDescriptionJCS"
	ChunkDescription         = "LambdaJobChunkDescription"
	ForEachSetShared         = "ForEachLambdaJobDescription_SetSharedComponent"
	ChunkSetShared           = "LambdaJobChunkDescription_SetSharedComponent"
	InternalCompilerIface    = "InternalCompilerInterface"
	JobChunkExtensions       = "JobChunkExtensions"
	StructuralChangeProvider = "StructuralChangeEntityProvider"
)

// Classes holding the chain vocabulary.
const (
	ConstructionMethods          = "LambdaJobDescriptionConstructionMethods"
	QueryConstructionMethods     = "LambdaJobQueryConstructionMethods"
	ForEachConstructionMethods   = "LambdaForEachDescriptionConstructionMethods"
	SingleJobConstructionMethods = "LambdaSingleJobDescriptionConstructionMethods"
	ChunkConstructionMethods     = "LambdaJobChunkDescriptionConstructionMethods"
	ExecutionMethods             = "LambdaJobDescriptionExecutionMethods"
	ExecutionMethodsJCS          = "LambdaJobDescriptionExecutionMethodsJCS"
	SingleJobExecutionMethods    = "LambdaSingleJobDescriptionExecutionMethods"
	SingleJobExecutionMethodsJCS = "LambdaSingleJobDescriptionExecutionMethodsJCS"
)

// Source getters.
const (
	GetEntities = "get_Entities"
	GetJob      = "get_Job"
	GetChunks   = "get_Chunks"
)

// Chain methods.
const (
	ForEach                          = "ForEach"
	WithCode                         = "WithCode"
	WithName                         = "WithName"
	WithBurst                        = "WithBurst"
	WithoutBurst                     = "WithoutBurst"
	WithStructuralChanges            = "WithStructuralChanges"
	WithReadOnly                     = "WithReadOnly"
	WithDeallocateOnJobCompletion    = "WithDeallocateOnJobCompletion"
	WithNativeDisableContainerSafety = "WithNativeDisableContainerSafetyRestriction"
	WithNativeDisableUnsafePtr       = "WithNativeDisableUnsafePtrRestriction"
	WithNativeDisableParallelFor     = "WithNativeDisableParallelForRestriction"
	WithAll                          = "WithAll"
	WithAny                          = "WithAny"
	WithNone                         = "WithNone"
	WithChangeFilter                 = "WithChangeFilter"
	WithEntityQueryOptions           = "WithEntityQueryOptions"
	WithSharedComponentFilter        = "WithSharedComponentFilter"
	WithStoreEntityQueryInField      = "WithStoreEntityQueryInField"
	Run                              = "Run"
	Schedule                         = "Schedule"
	ScheduleParallel                 = "ScheduleParallel"
)

// Attributes.
const (
	AllowDynamicValue                 = "AllowDynamicValueAttribute"
	AllowMultipleInvocations          = "AllowMultipleInvocationsAttribute"
	DOTSCompilerGenerated             = "DOTSCompilerGeneratedAttribute"
	StructuralChangeMethod            = "StructuralChangeMethodAttribute"
	ExecuteAlways                     = "ExecuteAlways"
	BurstCompile                      = "BurstCompileAttribute"
	NoAlias                           = "NoAliasAttribute"
	MonoPInvokeCallback               = "MonoPInvokeCallbackAttribute"
	ReadOnly                          = "ReadOnlyAttribute"
	DeallocateOnJobCompletion         = "DeallocateOnJobCompletionAttribute"
	NativeContainer                   = "NativeContainerAttribute"
	NativeContainerSupportsDeallocate = "NativeContainerSupportsDeallocateOnJobCompletionAttribute"
	NativeDisableContainerSafety      = "NativeDisableContainerSafetyRestrictionAttribute"
	NativeDisableUnsafePtr            = "NativeDisableUnsafePtrRestrictionAttribute"
	NativeDisableParallelFor          = "NativeDisableParallelForRestrictionAttribute"
	IsReadOnly                        = "IsReadOnlyAttribute"
	CompilerGenerated                 = "CompilerGeneratedAttribute"
)

// Lifecycle hook injected into every component system.
const OnCreateForCompiler = "OnCreateForCompiler"

// Data interfaces and iteration types.
const (
	IComponentData       = "IComponentData"
	ISharedComponentData = "ISharedComponentData"
	IBufferElementData   = "IBufferElementData"
	DynamicBuffer        = "DynamicBuffer"
	Entity               = "Entity"
	EntityManager        = "EntityManager"
	EntityQuery          = "EntityQuery"
	EntityQueryDesc      = "EntityQueryDesc"
	EntityQueryOptions   = "EntityQueryOptions"
	ComponentType        = "ComponentType"
	ArchetypeChunk       = "ArchetypeChunk"
	ChunkIterator        = "ArchetypeChunkIterator"
	ComponentDataFromEnt = "ComponentDataFromEntity"
	IJob                 = "IJob"
	IJobChunk            = "IJobChunk"
	IJobExtensions       = "IJobExtensions"
	JobHandle            = "JobHandle"
	JobsUtility          = "JobsUtility"
	UnsafeUtilityEx      = "UnsafeUtilityEx"
	NativeArray          = "NativeArray"
	FloatMode            = "FloatMode"
	FloatPrecision       = "FloatPrecision"
)

// Lambda parameter value providers.
const (
	ProviderEntity            = "LambdaParameterValueProvider_Entity"
	ProviderComponent         = "LambdaParameterValueProvider_IComponentData"
	ProviderTag               = "LambdaParameterValueProvider_IComponentData_Tag"
	ProviderManaged           = "LambdaParameterValueProvider_ManagedComponentData"
	ProviderShared            = "LambdaParameterValueProvider_ISharedComponentData"
	ProviderBuffer            = "LambdaParameterValueProvider_DynamicBuffer"
	ProviderEntityInQueryIdx  = "LambdaParameterValueProvider_EntityInQueryIndex"
	ProviderNativeThreadIndex = "LambdaParameterValueProvider_NativeThreadIndex"
)

// Special lambda parameter names.
const (
	ParamEntityInQueryIndex = "entityInQueryIndex"
	ParamNativeThreadIndex  = "nativeThreadIndex"
)

// FieldModifiers are the chain methods that mark a captured variable with
// a job-system attribute.
var FieldModifiers = []FieldModifier{
	{Method: WithReadOnly, Attribute: ReadOnly, AttributeNs: NsCollections, Marker: NativeContainer, Code: "DC0034"},
	{Method: WithDeallocateOnJobCompletion, Attribute: DeallocateOnJobCompletion, AttributeNs: NsCollections, Marker: NativeContainerSupportsDeallocate, Code: "DC0035"},
	{Method: WithNativeDisableContainerSafety, Attribute: NativeDisableContainerSafety, AttributeNs: NsCollectionsLL, Marker: NativeContainer, Code: "DC0036"},
	{Method: WithNativeDisableUnsafePtr, Attribute: NativeDisableUnsafePtr, AttributeNs: NsCollectionsLL},
	{Method: WithNativeDisableParallelFor, Attribute: NativeDisableParallelFor, AttributeNs: NsCollections, Marker: NativeContainer, Code: "DC0037"},
}

// FieldModifier describes one per-field chain method. Marker is the type
// attribute the field type (or one of its fields) must carry; an empty
// Marker accepts any field.
type FieldModifier struct {
	Method      string
	Attribute   string
	AttributeNs string
	Marker      string
	Code        string
}

// IsTerminal reports whether name ends a chain.
func IsTerminal(name string) bool {
	return name == Run || name == Schedule || name == ScheduleParallel
}

// IsConstructionType reports whether a type named ns.name holds chain
// methods.
func IsConstructionType(ns, name string) bool {
	if ns != NsEntities && ns != "" {
		return false
	}
	switch name {
	case ConstructionMethods, QueryConstructionMethods, ForEachConstructionMethods,
		SingleJobConstructionMethods, ChunkConstructionMethods,
		ExecutionMethods, ExecutionMethodsJCS, SingleJobExecutionMethods, SingleJobExecutionMethodsJCS:
		return true
	}
	return false
}
