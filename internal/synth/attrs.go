package synth

import (
	"github.com/wippyai/lambdajobs/diag"
	"github.com/wippyai/lambdajobs/il"
	"github.com/wippyai/lambdajobs/internal/analyzer"
	"github.com/wippyai/lambdajobs/internal/known"
)

// applyFieldModifiers validates WithReadOnly and the other per-field
// modifiers and copies their attribute onto the captured field. Run jobs
// execute on the calling thread, so the attributes are left off there.
func (u *Unit) applyFieldModifiers() error {
	c := u.Chain
	for _, fm := range known.FieldModifiers {
		for _, mod := range c.Named(fm.Method) {
			v, err := u.modifierTarget(fm, mod)
			if err != nil {
				return err
			}
			if c.Mode == analyzer.ModeRun {
				continue
			}
			attr := u.im.Attribute(fm.AttributeNs, fm.Attribute)
			if !v.Field.CustomAttributes.Has(fm.AttributeNs, fm.Attribute) {
				v.Field.CustomAttributes = append(v.Field.CustomAttributes, attr)
			}
		}
	}
	return nil
}

// modifierTarget finds the captured variable a field modifier names.
func (u *Unit) modifierTarget(fm known.FieldModifier, mod analyzer.Modifier) (*CapturedVariable, error) {
	c := u.Chain
	var f *il.FieldRef
	if len(mod.Args) == 1 {
		f, _ = mod.Args[0].(*il.FieldRef)
	}
	if f == nil {
		return nil, diag.Raise(diag.DC0012, c.Method, mod.Instruction, fm.Method)
	}
	if !u.isClosureField(f) {
		return nil, diag.Raise(diag.DC0038, c.Method, mod.Instruction, fm.Method, f.Name)
	}
	t := f.ResolvedType()
	if fm.Marker != "" && !u.carriesMarker(t, fm.Marker) {
		return nil, diag.Raise(diag.Code(fm.Code), c.Method, mod.Instruction, f.Name, t.Name)
	}
	for _, v := range u.Captured {
		if v.Path[len(v.Path)-1].Equal(f) {
			return v, nil
		}
	}
	return nil, diag.Raise(diag.DCICE007, c.Method, mod.Instruction, fm.Method)
}

// carriesMarker reports whether t, or a type reachable through its
// instance fields, carries the marker attribute.
func (u *Unit) carriesMarker(t *il.TypeRef, marker string) bool {
	visited := make(map[string]bool)
	work := []*il.TypeRef{t}
	for len(work) > 0 {
		t := work[len(work)-1]
		work = work[:len(work)-1]
		if t == nil || t.IsPrimitive() || t.IsGenericParameter() || t.IsPointer() || t.IsArray() || t.IsByRef() {
			continue
		}
		if visited[t.FullName()] {
			continue
		}
		visited[t.FullName()] = true
		def := u.s.u.ResolveType(t)
		if def == nil {
			continue
		}
		if def.CustomAttributes.HasName(marker) {
			return true
		}
		for _, f := range def.Fields {
			if !f.IsStatic() {
				work = append(work, f.Type.Substitute(t.Args, nil))
			}
		}
	}
	return false
}

// burstAttributes marks the job and its run entry point for Burst.
func (u *Unit) burstAttributes() {
	c := u.Chain
	if !c.UsesBurst() {
		return
	}
	burst := u.im.Attribute(known.NsBurst, known.BurstCompile)
	if opts, ok := c.Burst(); ok {
		burst.Named = []il.NamedArg{
			{Name: "FloatMode", Value: opts.FloatMode},
			{Name: "FloatPrecision", Value: opts.FloatPrecision},
			{Name: "CompileSynchronously", Value: opts.CompileSynchronously},
		}
	}
	u.Type.CustomAttributes = append(u.Type.CustomAttributes, burst)
	if u.RunWithoutJobSystem != nil {
		u.RunWithoutJobSystem.CustomAttributes = append(u.RunWithoutJobSystem.CustomAttributes, burst)
	}
	if c.UsesNoAlias {
		u.Type.CustomAttributes = append(u.Type.CustomAttributes, u.im.Attribute(known.NsBurst, known.NoAlias))
	}
}
