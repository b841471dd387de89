// Package cursor walks method bodies while tracking the operand stack.
//
// The pass never builds a data-flow graph. Questions such as "which
// instruction produced the second argument of this call" are answered by
// walking the straight-line code backwards and counting pushes and pops.
// Any branch, or any instruction that is the target of a branch, ends the
// walk: the answer would depend on the path taken at run time.
//
// Delegate construction sequences are matched as a unit. The cached form
// emitted for non-capturing lambdas contains a branch of its own, which
// would otherwise stop every walk that crosses it.
package cursor
