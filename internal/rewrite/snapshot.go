package rewrite

import "github.com/wippyai/lambdajobs/il"

// Snapshot is a copy of a method body taken before rewriting. Restoring
// it puts the original values back into the original instructions, so
// references held by analysed chains stay valid. The value-type flag of
// every type reference the body's operands and locals point at is saved
// too, since closure conversion sets it in place.
type Snapshot struct {
	body       *il.MethodBody
	code       []*il.Instruction
	values     []il.Instruction
	locals     []*il.Local
	localVals  []il.Local
	points     []il.SequencePoint
	valueTypes map[*il.TypeRef]bool
	initLocals bool
}

// Take records the current state of b.
func Take(b *il.MethodBody) *Snapshot {
	s := &Snapshot{
		body:       b,
		code:       append([]*il.Instruction(nil), b.Instructions...),
		values:     make([]il.Instruction, len(b.Instructions)),
		locals:     append([]*il.Local(nil), b.Locals...),
		points:     append([]il.SequencePoint(nil), b.SequencePoints...),
		localVals:  make([]il.Local, len(b.Locals)),
		valueTypes: make(map[*il.TypeRef]bool),
		initLocals: b.InitLocals,
	}
	save := func(t *il.TypeRef) {
		if t != nil {
			s.valueTypes[t] = t.ValueType
		}
	}
	for i, ins := range b.Instructions {
		s.values[i] = *ins
		switch op := ins.Operand.(type) {
		case *il.TypeRef:
			save(op)
		case *il.FieldRef:
			save(op.DeclaringType)
		case *il.MethodRef:
			save(op.DeclaringType)
		}
	}
	for i, l := range b.Locals {
		s.localVals[i] = *l
		save(l.Type)
	}
	return s
}

// Restore undoes every change made to the body since Take.
func (s *Snapshot) Restore() {
	for i, ins := range s.code {
		*ins = s.values[i]
	}
	for i, l := range s.locals {
		*l = s.localVals[i]
	}
	for t, v := range s.valueTypes {
		if t.ValueType != v {
			t.ValueType = v
		}
	}
	s.body.Instructions = append(s.body.Instructions[:0:0], s.code...)
	s.body.Locals = append(s.body.Locals[:0:0], s.locals...)
	s.body.SequencePoints = append(s.body.SequencePoints[:0:0], s.points...)
	s.body.InitLocals = s.initLocals
}
