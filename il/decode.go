package il

import (
	stderrors "errors"
	"fmt"

	"github.com/wippyai/lambdajobs/errors"
	"github.com/wippyai/lambdajobs/il/internal/binary"
)

// ParseError is a decoding failure with its byte position.
type ParseError = binary.ParseError

// Decoding errors returned by Decode.
var (
	ErrInvalidMagic   = stderrors.New("invalid module magic number")
	ErrInvalidVersion = stderrors.New("invalid module version")
)

// limits guard against hostile counts in corrupt input.
const maxCount = 1 << 24

// Decode parses a module from its binary form.
func Decode(data []byte) (*Module, error) {
	r := binary.NewReader(data)

	magic, err := r.ReadU32LE()
	if err != nil {
		return nil, r.WrapError("header", err)
	}
	if magic != Magic {
		return nil, ErrInvalidMagic
	}
	version, err := r.ReadU32LE()
	if err != nil {
		return nil, r.WrapError("header", err)
	}
	if version != Version {
		return nil, ErrInvalidVersion
	}

	d := &decoder{r: r}
	name, err := r.ReadName()
	if err != nil {
		return nil, r.WrapError("module name", err)
	}
	m := NewModule(name)
	n, err := d.count()
	if err != nil {
		return nil, r.WrapError("types", err)
	}
	for i := 0; i < n; i++ {
		t, err := d.typeDef()
		if err != nil {
			return nil, err
		}
		m.AddType(t)
	}
	if r.Position() != len(data) {
		return nil, r.WrapError("trailer", fmt.Errorf("%d trailing bytes", len(data)-r.Position()))
	}
	return m, nil
}

// DecodeValidate decodes a module and validates every method body.
func DecodeValidate(data []byte) (*Module, error) {
	m, err := Decode(data)
	if err != nil {
		return nil, err
	}
	if err := Validate(m); err != nil {
		return nil, err
	}
	return m, nil
}

type decoder struct {
	r *binary.Reader
}

func (d *decoder) count() (int, error) {
	n, err := d.r.ReadU32()
	if err != nil {
		return 0, err
	}
	if n > maxCount {
		return 0, errors.Overflow(errors.PhaseDecode, nil, n, "count")
	}
	return int(n), nil
}

func (d *decoder) names() ([]string, error) {
	n, err := d.count()
	if err != nil {
		return nil, err
	}
	var out []string
	for i := 0; i < n; i++ {
		s, err := d.r.ReadName()
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func (d *decoder) typeDef() (*TypeDef, error) {
	r := d.r
	t := &TypeDef{}
	var err error
	if t.Namespace, err = r.ReadName(); err != nil {
		return nil, r.WrapError("type", err)
	}
	if t.Name, err = r.ReadName(); err != nil {
		return nil, r.WrapError("type", err)
	}
	flags, err := r.ReadU32()
	if err != nil {
		return nil, r.WrapError("type "+t.Name, err)
	}
	t.Flags = TypeAttributes(flags)
	if t.BaseType, err = d.typeRef(); err != nil {
		return nil, r.WrapError("type "+t.Name, err)
	}
	if t.Interfaces, err = d.typeRefs(); err != nil {
		return nil, r.WrapError("type "+t.Name, err)
	}
	if t.GenericParams, err = d.names(); err != nil {
		return nil, r.WrapError("type "+t.Name, err)
	}
	if t.CustomAttributes, err = d.attributes(); err != nil {
		return nil, r.WrapError("type "+t.Name, err)
	}

	n, err := d.count()
	if err != nil {
		return nil, r.WrapError("fields of "+t.Name, err)
	}
	for i := 0; i < n; i++ {
		f := &FieldDef{}
		if f.Name, err = r.ReadName(); err != nil {
			return nil, r.WrapError("fields of "+t.Name, err)
		}
		if f.Type, err = d.typeRef(); err != nil {
			return nil, r.WrapError("field "+f.Name, err)
		}
		flags, err := r.ReadU32()
		if err != nil {
			return nil, r.WrapError("field "+f.Name, err)
		}
		f.Flags = FieldAttributes(flags)
		if f.CustomAttributes, err = d.attributes(); err != nil {
			return nil, r.WrapError("field "+f.Name, err)
		}
		t.AddField(f)
	}

	if n, err = d.count(); err != nil {
		return nil, r.WrapError("methods of "+t.Name, err)
	}
	for i := 0; i < n; i++ {
		m, err := d.methodDef()
		if err != nil {
			return nil, err
		}
		t.AddMethod(m)
	}

	if n, err = d.count(); err != nil {
		return nil, r.WrapError("nested types of "+t.Name, err)
	}
	for i := 0; i < n; i++ {
		nt, err := d.typeDef()
		if err != nil {
			return nil, err
		}
		t.AddNested(nt)
	}
	return t, nil
}

func (d *decoder) methodDef() (*MethodDef, error) {
	r := d.r
	m := &MethodDef{}
	var err error
	if m.Name, err = r.ReadName(); err != nil {
		return nil, r.WrapError("method", err)
	}
	section := "method " + m.Name
	flags, err := r.ReadU32()
	if err != nil {
		return nil, r.WrapError(section, err)
	}
	m.Flags = MethodAttributes(flags)
	impl, err := r.ReadByte()
	if err != nil {
		return nil, r.WrapError(section, err)
	}
	m.ImplFlags = MethodImplAttributes(impl)
	if m.ReturnType, err = d.typeRef(); err != nil {
		return nil, r.WrapError(section, err)
	}
	n, err := d.count()
	if err != nil {
		return nil, r.WrapError(section, err)
	}
	for i := 0; i < n; i++ {
		p := &ParamDef{}
		if p.Name, err = r.ReadName(); err != nil {
			return nil, r.WrapError(section, err)
		}
		if p.Type, err = d.typeRef(); err != nil {
			return nil, r.WrapError(section, err)
		}
		pf, err := r.ReadByte()
		if err != nil {
			return nil, r.WrapError(section, err)
		}
		p.Flags = ParamAttributes(pf)
		if p.CustomAttributes, err = d.attributes(); err != nil {
			return nil, r.WrapError(section, err)
		}
		m.Params = append(m.Params, p)
	}
	if m.GenericParams, err = d.names(); err != nil {
		return nil, r.WrapError(section, err)
	}
	if m.CustomAttributes, err = d.attributes(); err != nil {
		return nil, r.WrapError(section, err)
	}
	hasBody, err := r.ReadBool()
	if err != nil {
		return nil, r.WrapError(section, err)
	}
	if hasBody {
		if err := d.body(m.EnsureBody()); err != nil {
			return nil, r.WrapError(section+" body", err)
		}
	}
	return m, nil
}

func (d *decoder) body(b *MethodBody) error {
	r := d.r
	var err error
	if b.InitLocals, err = r.ReadBool(); err != nil {
		return err
	}
	n, err := d.count()
	if err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		t, err := d.typeRef()
		if err != nil {
			return err
		}
		name, err := r.ReadName()
		if err != nil {
			return err
		}
		b.Locals = append(b.Locals, &Local{Type: t, Name: name, Index: i})
	}

	if n, err = d.count(); err != nil {
		return err
	}
	type fixup struct {
		ins     *Instruction
		targets []uint32
		single  bool
	}
	var fixups []fixup
	b.Instructions = make([]*Instruction, 0, n)
	for i := 0; i < n; i++ {
		raw, err := r.ReadU32()
		if err != nil {
			return err
		}
		op := Opcode(raw)
		if !op.Valid() {
			return errors.New(errors.PhaseDecode, errors.KindInvalidData).
				Detail("invalid opcode %d at instruction %d", raw, i).
				Build()
		}
		ins := &Instruction{Op: op}
		switch op.Info().Operand {
		case OperandNone:
		case OperandArg:
			v, err := r.ReadU32()
			if err != nil {
				return err
			}
			ins.Operand = int(v)
		case OperandLocal:
			v, err := r.ReadU32()
			if err != nil {
				return err
			}
			if int(v) >= len(b.Locals) {
				return errors.OutOfBounds(errors.PhaseDecode, []string{"local"}, int(v), len(b.Locals))
			}
			ins.Operand = b.Locals[v]
		case OperandInt32:
			v, err := r.ReadS32()
			if err != nil {
				return err
			}
			ins.Operand = v
		case OperandInt64:
			v, err := r.ReadS64()
			if err != nil {
				return err
			}
			ins.Operand = v
		case OperandFloat32:
			v, err := r.ReadF32()
			if err != nil {
				return err
			}
			ins.Operand = v
		case OperandFloat64:
			v, err := r.ReadF64()
			if err != nil {
				return err
			}
			ins.Operand = v
		case OperandString:
			v, err := r.ReadName()
			if err != nil {
				return err
			}
			ins.Operand = v
		case OperandBranch:
			v, err := r.ReadU32()
			if err != nil {
				return err
			}
			fixups = append(fixups, fixup{ins: ins, targets: []uint32{v}, single: true})
		case OperandSwitch:
			c, err := d.count()
			if err != nil {
				return err
			}
			ts := make([]uint32, c)
			for k := range ts {
				if ts[k], err = r.ReadU32(); err != nil {
					return err
				}
			}
			fixups = append(fixups, fixup{ins: ins, targets: ts})
		case OperandType:
			if ins.Operand, err = d.typeRef(); err != nil {
				return err
			}
		case OperandField:
			if ins.Operand, err = d.fieldRef(); err != nil {
				return err
			}
		case OperandMethod:
			if ins.Operand, err = d.methodRef(); err != nil {
				return err
			}
		case OperandToken:
			if ins.Operand, err = d.value(); err != nil {
				return err
			}
		}
		b.Instructions = append(b.Instructions, ins)
	}
	at := func(v uint32) (*Instruction, error) {
		if int(v) >= len(b.Instructions) {
			return nil, errors.OutOfBounds(errors.PhaseDecode, []string{"branch"}, int(v), len(b.Instructions))
		}
		return b.Instructions[v], nil
	}
	for _, f := range fixups {
		ts := make([]*Instruction, len(f.targets))
		for k, v := range f.targets {
			if ts[k], err = at(v); err != nil {
				return err
			}
		}
		if f.single {
			f.ins.Operand = ts[0]
		} else {
			f.ins.Operand = ts
		}
	}

	if n, err = d.count(); err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		idx, err := r.ReadU32()
		if err != nil {
			return err
		}
		ins, err := at(idx)
		if err != nil {
			return err
		}
		sp := SequencePoint{Instruction: ins}
		if sp.Document, err = r.ReadName(); err != nil {
			return err
		}
		line, err := r.ReadU32()
		if err != nil {
			return err
		}
		col, err := r.ReadU32()
		if err != nil {
			return err
		}
		sp.Line, sp.Column = int(line), int(col)
		b.SequencePoints = append(b.SequencePoints, sp)
	}
	return nil
}

func (d *decoder) typeRefs() ([]*TypeRef, error) {
	n, err := d.count()
	if err != nil {
		return nil, err
	}
	var out []*TypeRef
	for i := 0; i < n; i++ {
		t, err := d.typeRef()
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

func (d *decoder) typeRef() (*TypeRef, error) {
	tag, err := d.r.ReadByte()
	if err != nil {
		return nil, err
	}
	switch tag {
	case refNil:
		return nil, nil
	case refByRef, refPointer, refArray:
		elem, err := d.typeRef()
		if err != nil {
			return nil, err
		}
		if elem == nil {
			return nil, errors.InvalidData(errors.PhaseDecode, []string{"type"}, "wrapper without element type")
		}
		switch tag {
		case refByRef:
			return elem.MakeByRef(), nil
		case refPointer:
			return elem.MakePointer(), nil
		}
		return elem.MakeArray(), nil
	case refGenericParam, refMethodGenericParam:
		pos, err := d.r.ReadU32()
		if err != nil {
			return nil, err
		}
		if tag == refGenericParam {
			return GenericParam(int(pos)), nil
		}
		return MethodGenericParam(int(pos)), nil
	case refNamed:
		t := &TypeRef{}
		if t.Namespace, err = d.r.ReadName(); err != nil {
			return nil, err
		}
		if t.Name, err = d.r.ReadName(); err != nil {
			return nil, err
		}
		if t.ValueType, err = d.r.ReadBool(); err != nil {
			return nil, err
		}
		if t.DeclaringType, err = d.typeRef(); err != nil {
			return nil, err
		}
		if t.Args, err = d.typeRefs(); err != nil {
			return nil, err
		}
		return t, nil
	}
	return nil, errors.InvalidData(errors.PhaseDecode, []string{"type"}, fmt.Sprintf("unknown type tag %d", tag))
}

func (d *decoder) fieldRef() (*FieldRef, error) {
	f := &FieldRef{}
	var err error
	if f.DeclaringType, err = d.typeRef(); err != nil {
		return nil, err
	}
	if f.Type, err = d.typeRef(); err != nil {
		return nil, err
	}
	if f.Name, err = d.r.ReadName(); err != nil {
		return nil, err
	}
	if f.DeclaringType == nil {
		return nil, errors.InvalidData(errors.PhaseDecode, []string{"field", f.Name}, "missing declaring type")
	}
	return f, nil
}

func (d *decoder) methodRef() (*MethodRef, error) {
	m := &MethodRef{}
	var err error
	if m.DeclaringType, err = d.typeRef(); err != nil {
		return nil, err
	}
	if m.ReturnType, err = d.typeRef(); err != nil {
		return nil, err
	}
	if m.Name, err = d.r.ReadName(); err != nil {
		return nil, err
	}
	if m.HasThis, err = d.r.ReadBool(); err != nil {
		return nil, err
	}
	if m.Params, err = d.typeRefs(); err != nil {
		return nil, err
	}
	arity, err := d.r.ReadU32()
	if err != nil {
		return nil, err
	}
	m.GenericArity = int(arity)
	if m.GenericArgs, err = d.typeRefs(); err != nil {
		return nil, err
	}
	if m.DeclaringType == nil {
		return nil, errors.InvalidData(errors.PhaseDecode, []string{"method", m.Name}, "missing declaring type")
	}
	return m, nil
}

func (d *decoder) value() (any, error) {
	tag, err := d.r.ReadByte()
	if err != nil {
		return nil, err
	}
	switch tag {
	case valString:
		return d.r.ReadName()
	case valInt32:
		return d.r.ReadS32()
	case valBool:
		return d.r.ReadBool()
	case valType:
		return d.typeRef()
	case valField:
		return d.fieldRef()
	case valMethod:
		return d.methodRef()
	}
	return nil, errors.InvalidData(errors.PhaseDecode, []string{"value"}, fmt.Sprintf("unknown value tag %d", tag))
}

func (d *decoder) attributes() (Attributes, error) {
	n, err := d.count()
	if err != nil {
		return nil, err
	}
	var out Attributes
	for i := 0; i < n; i++ {
		ca := &CustomAttribute{}
		if ca.Type, err = d.typeRef(); err != nil {
			return nil, err
		}
		c, err := d.count()
		if err != nil {
			return nil, err
		}
		for k := 0; k < c; k++ {
			v, err := d.value()
			if err != nil {
				return nil, err
			}
			ca.Args = append(ca.Args, v)
		}
		if c, err = d.count(); err != nil {
			return nil, err
		}
		for k := 0; k < c; k++ {
			name, err := d.r.ReadName()
			if err != nil {
				return nil, err
			}
			v, err := d.value()
			if err != nil {
				return nil, err
			}
			ca.Named = append(ca.Named, NamedArg{Name: name, Value: v})
		}
		out = append(out, ca)
	}
	return out, nil
}
