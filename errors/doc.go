// Package errors holds the structured error type of the pass.
//
// An Error carries the Phase that failed and a Kind, plus optional
// member, path, value and cause:
//
//	err := errors.New(errors.PhaseDecode, errors.KindInvalidData).
//		Path("Game.MoveSystem", "OnUpdate").
//		Detail("unknown opcode %d", op).
//		Build()
//
// errors.Is compares Phase and Kind, treating empty fields of the target
// as wildcards, so callers can test for a kind across phases:
//
//	if stderrors.Is(err, &errors.Error{Kind: errors.KindNotFound}) { ... }
//
// Rule violations in user code are diagnostics (package diag), not
// errors of this package.
package errors
