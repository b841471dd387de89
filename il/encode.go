package il

import (
	"fmt"

	"github.com/wippyai/lambdajobs/errors"
	"github.com/wippyai/lambdajobs/il/internal/binary"
)

// Binary module header.
const (
	Magic   uint32 = 0x4c494a4c // "LJIL" little-endian
	Version uint32 = 1
)

// Tags of a type reference in the binary form. Zero encodes a nil reference.
const (
	refNil byte = iota
	refNamed
	refByRef
	refPointer
	refArray
	refGenericParam
	refMethodGenericParam
)

// Tags of attribute argument values and token operands.
const (
	valString byte = iota
	valInt32
	valBool
	valType
	valField
	valMethod
)

// Encode serializes the module. It fails when a body refers to an
// instruction or local that does not belong to it.
func Encode(m *Module) ([]byte, error) {
	w := binary.NewWriter()
	w.WriteU32LE(Magic)
	w.WriteU32LE(Version)
	w.WriteName(m.Name)
	w.WriteU32(uint32(len(m.Types)))
	for _, t := range m.Types {
		if err := writeTypeDef(w, t); err != nil {
			return nil, err
		}
	}
	return w.Bytes(), nil
}

func writeTypeDef(w *binary.Writer, t *TypeDef) error {
	w.WriteName(t.Namespace)
	w.WriteName(t.Name)
	w.WriteU32(uint32(t.Flags))
	writeTypeRef(w, t.BaseType)
	writeTypeRefs(w, t.Interfaces)
	writeNames(w, t.GenericParams)
	writeAttributes(w, t.CustomAttributes)

	w.WriteU32(uint32(len(t.Fields)))
	for _, f := range t.Fields {
		w.WriteName(f.Name)
		writeTypeRef(w, f.Type)
		w.WriteU32(uint32(f.Flags))
		writeAttributes(w, f.CustomAttributes)
	}

	w.WriteU32(uint32(len(t.Methods)))
	for _, m := range t.Methods {
		if err := writeMethodDef(w, m); err != nil {
			return err
		}
	}

	w.WriteU32(uint32(len(t.NestedTypes)))
	for _, n := range t.NestedTypes {
		if err := writeTypeDef(w, n); err != nil {
			return err
		}
	}
	return nil
}

func writeMethodDef(w *binary.Writer, m *MethodDef) error {
	w.WriteName(m.Name)
	w.WriteU32(uint32(m.Flags))
	w.Byte(byte(m.ImplFlags))
	writeTypeRef(w, m.ReturnType)
	w.WriteU32(uint32(len(m.Params)))
	for _, p := range m.Params {
		w.WriteName(p.Name)
		writeTypeRef(w, p.Type)
		w.Byte(byte(p.Flags))
		writeAttributes(w, p.CustomAttributes)
	}
	writeNames(w, m.GenericParams)
	writeAttributes(w, m.CustomAttributes)
	w.WriteBool(m.Body != nil)
	if m.Body == nil {
		return nil
	}
	if err := writeBody(w, m.Body); err != nil {
		return errors.New(errors.PhaseEncode, errors.KindInvalidData).
			Member(m.FullName()).
			Cause(err).
			Build()
	}
	return nil
}

func writeBody(w *binary.Writer, b *MethodBody) error {
	w.WriteBool(b.InitLocals)
	w.WriteU32(uint32(len(b.Locals)))
	localIdx := make(map[*Local]int, len(b.Locals))
	for i, l := range b.Locals {
		localIdx[l] = i
		writeTypeRef(w, l.Type)
		w.WriteName(l.Name)
	}
	insIdx := make(map[*Instruction]int, len(b.Instructions))
	for i, ins := range b.Instructions {
		insIdx[ins] = i
	}
	target := func(t *Instruction) (uint32, error) {
		n, ok := insIdx[t]
		if !ok {
			return 0, fmt.Errorf("branch target %v not in body", t)
		}
		return uint32(n), nil
	}

	w.WriteU32(uint32(len(b.Instructions)))
	for i, ins := range b.Instructions {
		if !ins.Op.Valid() {
			return fmt.Errorf("instruction %d: invalid opcode %d", i, ins.Op)
		}
		w.WriteU32(uint32(ins.Op))
		switch ins.Op.Info().Operand {
		case OperandNone:
		case OperandArg:
			n, ok := ins.Operand.(int)
			if !ok && ins.Operand != nil {
				return fmt.Errorf("instruction %d: %s wants an argument index", i, ins.Op)
			}
			w.WriteU32(uint32(n))
		case OperandLocal:
			l, ok := ins.Operand.(*Local)
			n, owned := localIdx[l]
			if !ok || !owned {
				return fmt.Errorf("instruction %d: %s refers to a foreign local", i, ins.Op)
			}
			w.WriteU32(uint32(n))
		case OperandInt32:
			v, _ := ins.Operand.(int32)
			w.WriteS32(v)
		case OperandInt64:
			v, _ := ins.Operand.(int64)
			w.WriteS64(v)
		case OperandFloat32:
			v, _ := ins.Operand.(float32)
			w.WriteF32(v)
		case OperandFloat64:
			v, _ := ins.Operand.(float64)
			w.WriteF64(v)
		case OperandString:
			v, _ := ins.Operand.(string)
			w.WriteName(v)
		case OperandBranch:
			t, _ := ins.Operand.(*Instruction)
			n, err := target(t)
			if err != nil {
				return fmt.Errorf("instruction %d: %w", i, err)
			}
			w.WriteU32(n)
		case OperandSwitch:
			ts, _ := ins.Operand.([]*Instruction)
			w.WriteU32(uint32(len(ts)))
			for _, t := range ts {
				n, err := target(t)
				if err != nil {
					return fmt.Errorf("instruction %d: %w", i, err)
				}
				w.WriteU32(n)
			}
		case OperandType:
			t, _ := ins.Operand.(*TypeRef)
			writeTypeRef(w, t)
		case OperandField:
			f, ok := ins.Operand.(*FieldRef)
			if !ok {
				return fmt.Errorf("instruction %d: %s wants a field", i, ins.Op)
			}
			writeFieldRef(w, f)
		case OperandMethod:
			m, ok := ins.Operand.(*MethodRef)
			if !ok {
				return fmt.Errorf("instruction %d: %s wants a method", i, ins.Op)
			}
			writeMethodRef(w, m)
		case OperandToken:
			if err := writeValue(w, ins.Operand); err != nil {
				return fmt.Errorf("instruction %d: %w", i, err)
			}
		}
	}

	w.WriteU32(uint32(len(b.SequencePoints)))
	for _, sp := range b.SequencePoints {
		n, err := target(sp.Instruction)
		if err != nil {
			return fmt.Errorf("sequence point: %w", err)
		}
		w.WriteU32(n)
		w.WriteName(sp.Document)
		w.WriteU32(uint32(sp.Line))
		w.WriteU32(uint32(sp.Column))
	}
	return nil
}

func writeNames(w *binary.Writer, names []string) {
	w.WriteU32(uint32(len(names)))
	for _, n := range names {
		w.WriteName(n)
	}
}

func writeTypeRefs(w *binary.Writer, ts []*TypeRef) {
	w.WriteU32(uint32(len(ts)))
	for _, t := range ts {
		writeTypeRef(w, t)
	}
}

func writeTypeRef(w *binary.Writer, t *TypeRef) {
	if t == nil {
		w.Byte(refNil)
		return
	}
	switch t.Kind {
	case TypeByRef:
		w.Byte(refByRef)
		writeTypeRef(w, t.Elem)
	case TypePointer:
		w.Byte(refPointer)
		writeTypeRef(w, t.Elem)
	case TypeArray:
		w.Byte(refArray)
		writeTypeRef(w, t.Elem)
	case TypeGenericParam:
		w.Byte(refGenericParam)
		w.WriteU32(uint32(t.Position))
	case TypeMethodGenericParam:
		w.Byte(refMethodGenericParam)
		w.WriteU32(uint32(t.Position))
	default:
		w.Byte(refNamed)
		w.WriteName(t.Namespace)
		w.WriteName(t.Name)
		w.WriteBool(t.ValueType)
		writeTypeRef(w, t.DeclaringType)
		writeTypeRefs(w, t.Args)
	}
}

func writeFieldRef(w *binary.Writer, f *FieldRef) {
	writeTypeRef(w, f.DeclaringType)
	writeTypeRef(w, f.Type)
	w.WriteName(f.Name)
}

func writeMethodRef(w *binary.Writer, m *MethodRef) {
	writeTypeRef(w, m.DeclaringType)
	writeTypeRef(w, m.ReturnType)
	w.WriteName(m.Name)
	w.WriteBool(m.HasThis)
	writeTypeRefs(w, m.Params)
	w.WriteU32(uint32(m.GenericArity))
	writeTypeRefs(w, m.GenericArgs)
}

func writeValue(w *binary.Writer, v any) error {
	switch x := v.(type) {
	case string:
		w.Byte(valString)
		w.WriteName(x)
	case int32:
		w.Byte(valInt32)
		w.WriteS32(x)
	case bool:
		w.Byte(valBool)
		w.WriteBool(x)
	case *TypeRef:
		w.Byte(valType)
		writeTypeRef(w, x)
	case *FieldRef:
		w.Byte(valField)
		writeFieldRef(w, x)
	case *MethodRef:
		w.Byte(valMethod)
		writeMethodRef(w, x)
	default:
		return fmt.Errorf("unsupported value %T", v)
	}
	return nil
}

func writeAttributes(w *binary.Writer, attrs Attributes) {
	w.WriteU32(uint32(len(attrs)))
	for _, ca := range attrs {
		writeTypeRef(w, ca.Type)
		w.WriteU32(uint32(len(ca.Args)))
		for _, a := range ca.Args {
			if err := writeValue(w, a); err != nil {
				// Unsupported values degrade to their string form.
				w.Byte(valString)
				w.WriteName(fmt.Sprint(a))
			}
		}
		w.WriteU32(uint32(len(ca.Named)))
		for _, n := range ca.Named {
			w.WriteName(n.Name)
			if err := writeValue(w, n.Value); err != nil {
				w.Byte(valString)
				w.WriteName(fmt.Sprint(n.Value))
			}
		}
	}
}
