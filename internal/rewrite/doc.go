// Package rewrite replaces lambda job chains in system methods with code
// that initialises and schedules the synthesized job struct.
//
// A chain such as
//
//	Entities.WithName("Move").ForEach(...).ScheduleParallel();
//
// keeps its source call and loses everything else. Construction calls
// become pops, the delegate becomes null (or the closure it was bound to)
// and the terminal is spliced into
//
//	JobHandle tmp = this.Dependency;
//	<>c__DisplayClass_Move job = default;
//	job.ScheduleTimeInitialize(this, closure);
//	tmp = JobChunkExtensions.ScheduleParallel(job, this._Move_entityQuery, tmp);
//	this.Dependency = tmp;
//
// Every rewrite keeps the net stack effect of what it replaces, so the
// surrounding code is untouched. A failed rewrite restores the method to
// the state it had before.
//
// The package also installs the OnCreateForCompiler override that builds
// the entity queries of a system, and turns closure classes into value
// types once nothing allocates delegates from them.
package rewrite
