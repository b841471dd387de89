package synth

import (
	"fmt"
	"strings"

	"github.com/samber/lo"

	"github.com/wippyai/lambdajobs/diag"
	"github.com/wippyai/lambdajobs/il"
	"github.com/wippyai/lambdajobs/internal/codegen"
	"github.com/wippyai/lambdajobs/internal/known"
)

// componentType is one entry of an EntityQueryDesc array.
type componentType struct {
	t        *il.TypeRef
	readOnly bool
}

// buildQuery declares the system's EntityQuery field for the chain and
// emits its construction into CreateInit.
func (u *Unit) buildQuery() error {
	c := u.Chain
	all := u.queryAll()
	anyOf := u.modifierTypes(known.WithAny)
	noneOf := u.modifierTypes(known.WithNone)
	if err := u.checkQuery(all, anyOf, noneOf); err != nil {
		return err
	}

	u.Query = &il.FieldDef{
		Name:          fmt.Sprintf("_%s_entityQuery", c.Name),
		Type:          u.im.Entities(known.EntityQuery),
		Flags:         il.FieldPrivate,
		DeclaringType: c.Containing(),
	}
	query := u.Query.Ref()

	var options int32
	hasOptions := false
	for _, mod := range c.Named(known.WithEntityQueryOptions) {
		if v, ok := mod.Args[0].(int32); ok {
			options, hasOptions = v, true
		}
	}
	changed := lo.Map(u.modifierTypes(known.WithChangeFilter), func(t *il.TypeRef, _ int) componentType {
		return componentType{t: t, readOnly: true}
	})

	descType := u.im.Entities(known.EntityQueryDesc)
	descField := func(name string) *il.FieldRef { return u.im.Field(descType, name) }
	csb := u.im.Entities(known.ComponentSystemBase)
	return u.appendInit(func(e *codegen.Emitter) {
		e.Ldarg(0).Ldarg(0)
		e.LdcI4(1).Newarr(descType).Dup().LdcI4(0)
		e.Newobj(u.im.Method(descType, ".ctor", 0))
		for _, part := range []struct {
			name  string
			types []componentType
		}{{"All", all}, {"Any", readOnlyTypes(anyOf)}, {"None", readOnlyTypes(noneOf)}} {
			if len(part.types) == 0 {
				continue
			}
			e.Dup()
			u.componentTypes(e, part.types)
			e.Stfld(descField(part.name))
		}
		if hasOptions {
			e.Dup().LdcI4(options).Stfld(descField("Options"))
		}
		e.StelemRef()
		e.Call(u.im.Method(csb, "GetEntityQuery", 1)).Stfld(query)

		if len(changed) > 0 {
			e.Ldarg(0).Ldfld(query)
			u.componentTypes(e, changed)
			e.Callvirt(u.im.Method(u.im.Entities(known.EntityQuery), "SetChangedVersionFilter", 1))
		}
		if f := c.StoreQueryInField; f != nil {
			e.Ldarg(0).Ldarg(0).Ldfld(query).Stfld(f.Ref())
		}
	})
}

// queryAll collects the required components: those the lambda receives
// plus WithAll, WithChangeFilter and WithSharedComponentFilter types.
func (u *Unit) queryAll() []componentType {
	var all []componentType
	add := func(t *il.TypeRef, readOnly bool) {
		for i, ct := range all {
			if ct.t.Equal(t) {
				all[i].readOnly = ct.readOnly && readOnly
				return
			}
		}
		all = append(all, componentType{t: t, readOnly: readOnly})
	}
	for _, el := range u.elements {
		switch el.provider {
		case known.ProviderEntity, known.ProviderEntityInQueryIdx, known.ProviderNativeThreadIndex:
		case known.ProviderBuffer:
			add(el.typeArg, false)
		default:
			add(el.typeArg, el.readOnly())
		}
	}
	for _, name := range []string{known.WithAll, known.WithChangeFilter, known.WithSharedComponentFilter} {
		for _, t := range u.modifierTypes(name) {
			add(t, true)
		}
	}
	return all
}

func (u *Unit) modifierTypes(name string) []*il.TypeRef {
	var out []*il.TypeRef
	for _, mod := range u.Chain.Named(name) {
		for _, t := range mod.TypeArgs {
			if !lo.ContainsBy(out, func(o *il.TypeRef) bool { return o.Equal(t) }) {
				out = append(out, t)
			}
		}
	}
	return out
}

func readOnlyTypes(types []*il.TypeRef) []componentType {
	return lo.Map(types, func(t *il.TypeRef, _ int) componentType {
		return componentType{t: t, readOnly: true}
	})
}

// checkQuery rejects queries that can never match.
func (u *Unit) checkQuery(all []componentType, anyOf, noneOf []*il.TypeRef) error {
	c := u.Chain
	names := func(types []*il.TypeRef) string {
		return strings.Join(lo.Map(types, func(t *il.TypeRef, _ int) string { return t.Name }), ", ")
	}
	inNone := func(t *il.TypeRef) bool {
		return lo.ContainsBy(noneOf, func(n *il.TypeRef) bool { return n.Equal(t) })
	}
	if both := lo.Filter(lo.Map(all, func(ct componentType, _ int) *il.TypeRef { return ct.t }), func(t *il.TypeRef, _ int) bool {
		return inNone(t)
	}); len(both) > 0 {
		return diag.Raise(diag.DC0015, c.Method, c.Source, names(both))
	}
	if both := lo.Filter(anyOf, func(t *il.TypeRef, _ int) bool { return inNone(t) }); len(both) > 0 {
		return diag.Raise(diag.DC0016, c.Method, c.Source, names(both))
	}
	shared := u.modifierTypes(known.WithSharedComponentFilter)
	for _, t := range u.modifierTypes(known.WithAll) {
		if lo.ContainsBy(shared, func(s *il.TypeRef) bool { return s.Equal(t) }) {
			return diag.Raise(diag.DC0026, c.Method, c.Source,
				fmt.Sprintf("Entities.ForEach lists %s both in WithAll and WithSharedComponentFilter. Remove it from WithAll.", t.Name))
		}
	}
	return nil
}

// componentTypes emits a ComponentType[] holding types.
func (u *Unit) componentTypes(e *codegen.Emitter, types []componentType) {
	ct := u.im.Entities(known.ComponentType)
	e.LdcI4(int32(len(types))).Newarr(ct)
	for i, t := range types {
		access := "ReadWrite"
		if t.readOnly {
			access = "ReadOnly"
		}
		e.Dup().LdcI4(int32(i)).Call(u.im.Method(ct, access, 0).MakeGeneric(t.t)).Stelem(ct)
	}
}
