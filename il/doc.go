// Package il models compiled .NET-style code: modules, type and member
// definitions, references, and method bodies made of stack-machine
// instructions.
//
// The model is pointer based. Branch operands are *Instruction values of the
// same body and local operands are *Local values of the same body, so
// instructions can be inserted and replaced without renumbering. The binary
// form produced by Encode and read by Decode stores them as indices.
//
// A typical pass simplifies a body before editing it:
//
//	body := method.Body
//	body.Simplify()
//	body.InsertAfter(target, il.NewInstruction(il.Pop, nil))
//	if err := il.ValidateMethod(method); err != nil {
//		return err
//	}
//
// Types, fields and methods are referenced by *TypeRef, *FieldRef and
// *MethodRef and resolved to definitions with a Universe.
package il
