package il

import (
	"fmt"
	"io"
	"strings"
)

// Dump writes an ildasm-style listing of the method.
func Dump(w io.Writer, m *MethodDef) error {
	var b strings.Builder
	writeMethod(&b, m, "")
	_, err := io.WriteString(w, b.String())
	return err
}

// DumpString returns the listing of m.
func DumpString(m *MethodDef) string {
	var b strings.Builder
	writeMethod(&b, m, "")
	return b.String()
}

// DumpType writes the listing of a type with its fields, methods and nested types.
func DumpType(w io.Writer, t *TypeDef) error {
	var b strings.Builder
	writeType(&b, t, "")
	_, err := io.WriteString(w, b.String())
	return err
}

func writeType(b *strings.Builder, t *TypeDef, indent string) {
	kind := "class"
	switch {
	case t.IsInterface():
		kind = "interface"
	case t.IsValueType():
		kind = "struct"
	}
	fmt.Fprintf(b, "%s.%s %s", indent, kind, t.FullName())
	if len(t.GenericParams) > 0 {
		fmt.Fprintf(b, "<%s>", strings.Join(t.GenericParams, ","))
	}
	if t.BaseType != nil && !t.IsValueType() {
		fmt.Fprintf(b, " extends %s", t.BaseType)
	}
	if len(t.Interfaces) > 0 {
		names := make([]string, len(t.Interfaces))
		for i, it := range t.Interfaces {
			names[i] = it.FullName()
		}
		fmt.Fprintf(b, " implements %s", strings.Join(names, ", "))
	}
	b.WriteString("\n" + indent + "{\n")
	inner := indent + "  "
	writeAttrs(b, t.CustomAttributes, inner)
	for _, f := range t.Fields {
		static := ""
		if f.IsStatic() {
			static = "static "
		}
		fmt.Fprintf(b, "%s.field %s%s %s\n", inner, static, f.Type, f.Name)
		writeAttrs(b, f.CustomAttributes, inner+"  ")
	}
	for _, m := range t.Methods {
		writeMethod(b, m, inner)
	}
	for _, n := range t.NestedTypes {
		writeType(b, n, inner)
	}
	b.WriteString(indent + "}\n")
}

func writeAttrs(b *strings.Builder, attrs Attributes, indent string) {
	for _, ca := range attrs {
		args := make([]string, 0, len(ca.Args)+len(ca.Named))
		for _, a := range ca.Args {
			args = append(args, FormatOperand(a))
		}
		for _, n := range ca.Named {
			args = append(args, n.Name+"="+FormatOperand(n.Value))
		}
		fmt.Fprintf(b, "%s.custom %s(%s)\n", indent, ca.Type, strings.Join(args, ", "))
	}
}

func writeMethod(b *strings.Builder, m *MethodDef, indent string) {
	fmt.Fprintf(b, "%s.method ", indent)
	if m.IsStatic() {
		b.WriteString("static ")
	} else {
		b.WriteString("instance ")
	}
	ret := m.ReturnType
	if ret == nil {
		ret = Void
	}
	fmt.Fprintf(b, "%s %s", ret, m.Name)
	if len(m.GenericParams) > 0 {
		fmt.Fprintf(b, "<%s>", strings.Join(m.GenericParams, ","))
	}
	params := make([]string, len(m.Params))
	for i, p := range m.Params {
		params[i] = p.Type.FullName() + " " + p.Name
	}
	fmt.Fprintf(b, "(%s)\n", strings.Join(params, ", "))
	if m.Body == nil {
		return
	}
	inner := indent + "  "
	b.WriteString(indent + "{\n")
	writeAttrs(b, m.CustomAttributes, inner)
	body := m.Body
	if len(body.Locals) > 0 {
		b.WriteString(inner + ".locals init (\n")
		for _, l := range body.Locals {
			fmt.Fprintf(b, "%s  [%d] %s %s\n", inner, l.Index, l.Type, FormatOperand(l))
		}
		b.WriteString(inner + ")\n")
	}
	labels := make(map[*Instruction]int, len(body.Instructions))
	for i, ins := range body.Instructions {
		labels[ins] = i
	}
	label := func(t *Instruction) string {
		if n, ok := labels[t]; ok {
			return fmt.Sprintf("IL_%04d", n)
		}
		return "IL_????"
	}
	for i, ins := range body.Instructions {
		if sp, ok := body.SequencePointAt(ins); ok && !sp.Hidden() {
			fmt.Fprintf(b, "%s// %s(%d,%d)\n", inner, sp.Document, sp.Line, sp.Column)
		}
		fmt.Fprintf(b, "%sIL_%04d: %s", inner, i, ins.Op)
		switch o := ins.Operand.(type) {
		case nil:
		case *Instruction:
			b.WriteString(" " + label(o))
		case []*Instruction:
			ts := make([]string, len(o))
			for k, t := range o {
				ts[k] = label(t)
			}
			fmt.Fprintf(b, " (%s)", strings.Join(ts, ", "))
		default:
			b.WriteString(" " + FormatOperand(o))
		}
		b.WriteByte('\n')
	}
	b.WriteString(indent + "}\n")
}
