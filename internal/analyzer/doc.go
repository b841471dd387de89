// Package analyzer recognises lambda job chains in component system
// methods.
//
// A chain starts at a source getter (Entities, Job or Chunks on a system),
// continues through construction methods that configure it and ends at Run,
// Schedule or ScheduleParallel:
//
//	Entities.WithName("Move").ForEach((ref Translation t, in Velocity v) => {...}).Schedule();
//
// The analyzer walks forward from each source call, simulating the
// operand stack, and records every construction call with the literal
// arguments it was given. It rejects chains it cannot reason about
// statically: branches in the middle of a chain, arguments computed at run
// time, modifiers repeated where only one is allowed. The result is a
// Chain describing the job, consumed by the synthesizer and the rewriter.
//
// Analysis never mutates the method.
package analyzer
