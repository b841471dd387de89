// Package synth generates the job struct that replaces a lambda job.
//
// For every analysed chain the synthesizer builds a nested value type on
// the system:
//
//	struct <>c__DisplayClass_Move : IJobChunk
//	{
//	    public float dt;                                   // captured locals
//	    LambdaParameterValueProviders _lambdaParameterValueProviders;
//	    public void OriginalLambdaBody(ref Translation t, in Velocity v);
//	    public void ScheduleTimeInitialize(MoveSystem system, <>c__DisplayClass0_0 dc);
//	    public void Execute(ArchetypeChunk chunk, int chunkIndex, int firstEntityIndex);
//	}
//
// The lambda is cloned into the struct together with every local helper
// it calls on its closure. Accesses to captured variables are redirected
// to fields of the struct, flattening chains of nested closures into one
// field per captured variable. Calls to SystemBase.GetComponent and its
// siblings are turned into ComponentDataFromEntity lookups stored on the
// struct.
//
// Synthesis produces a Unit without touching the system. The rewriter
// commits the unit once the call site has been rewritten successfully.
package synth
