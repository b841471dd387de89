package synth

import (
	"github.com/wippyai/lambdajobs/diag"
	"github.com/wippyai/lambdajobs/il"
	"github.com/wippyai/lambdajobs/internal/analyzer"
	"github.com/wippyai/lambdajobs/internal/known"
)

// element is a lambda parameter together with the provider serving it.
type element struct {
	param *il.ParamDef
	// arg is the IL argument index of the parameter in the lambda.
	arg      int
	provider string
	// typeArg instantiates generic providers; nil otherwise.
	typeArg *il.TypeRef
	byRef   bool
	in      bool

	providerField *il.FieldDef
	runtimeField  *il.FieldDef
}

// readOnly reports whether the lambda cannot write the element back.
func (e *element) readOnly() bool {
	return !e.byRef || e.in
}

// valueType is the parameter type without the reference.
func (e *element) valueType() *il.TypeRef {
	return e.param.Type.ElementType()
}

func isIn(p *il.ParamDef) bool {
	return p.Type.IsByRef() && (p.Flags&il.ParamIn != 0 || p.CustomAttributes.HasName(known.IsReadOnly))
}

// classifyParams picks a value provider for every parameter of the lambda.
func (u *Unit) classifyParams() error {
	lambda := u.Chain.Lambda
	for i, p := range lambda.Params {
		e := &element{param: p, arg: i + 1, byRef: p.Type.IsByRef(), in: isIn(p)}
		if err := u.classify(e); err != nil {
			return err
		}
		u.elements = append(u.elements, e)
	}
	return nil
}

func (u *Unit) classify(e *element) error {
	c := u.Chain
	t := e.valueType()
	fail := func(code diag.Code, args ...any) error {
		return diag.Raise(code, c.Method, c.Body, args...)
	}
	managedAllowed := c.Mode == analyzer.ModeRun && !c.UsesBurst()

	switch {
	case t.Is(known.NsEntities, known.Entity):
		e.provider = known.ProviderEntity
		return nil
	case t.Is("System", "Int32"):
		switch e.param.Name {
		case known.ParamEntityInQueryIndex:
			e.provider = known.ProviderEntityInQueryIdx
		case known.ParamNativeThreadIndex:
			e.provider = known.ProviderNativeThreadIndex
		default:
			return fail(diag.DC0014, e.param.Name, known.ParamEntityInQueryIndex+", "+known.ParamNativeThreadIndex)
		}
		return nil
	case t.Is(known.NsEntities, known.DynamicBuffer) && len(t.Args) == 1:
		e.provider, e.typeArg = known.ProviderBuffer, t.Args[0]
		return nil
	}

	def := u.s.u.ResolveType(t)
	if def == nil {
		return fail(diag.DC0005, e.param.Name, t.FullName())
	}
	switch {
	case u.s.u.Implements(def, known.NsEntities, known.IComponentData):
		e.typeArg = t
		if !def.IsValueType() {
			if !managedAllowed {
				return fail(diag.DC0023, t.Name)
			}
			if e.byRef {
				return fail(diag.DC0024, t.Name)
			}
			e.provider = known.ProviderManaged
			return nil
		}
		e.provider = known.ProviderComponent
		if !hasInstanceFields(def) {
			e.provider = known.ProviderTag
		}
		return nil
	case u.s.u.Implements(def, known.NsEntities, known.ISharedComponentData):
		if !managedAllowed {
			return fail(diag.DC0019, t.Name)
		}
		if e.byRef && !e.in {
			return fail(diag.DC0020, t.Name)
		}
		e.provider, e.typeArg = known.ProviderShared, t
		return nil
	case u.s.u.Implements(def, known.NsEntities, known.IBufferElementData):
		return fail(diag.DC0033, e.param.Name, t.Name)
	}
	return fail(diag.DC0021, e.param.Name, t.Name)
}

func hasInstanceFields(t *il.TypeDef) bool {
	for _, f := range t.Fields {
		if !f.IsStatic() {
			return true
		}
	}
	return false
}

// providerType returns the instantiated provider of e.
func (u *Unit) providerType(e *element) *il.TypeRef {
	t := u.im.Type(known.NsCodeGenerated, e.provider)
	if e.typeArg != nil {
		t = t.MakeGeneric(e.typeArg)
	}
	return t
}

// runtimeType returns the runtime e's provider hands out for the current
// mode.
func (u *Unit) runtimeType(e *element) *il.TypeRef {
	name := "Runtime"
	if u.Chain.WithStructuralChanges {
		name = "StructuralChangeRuntime"
	}
	t := u.im.Nested(known.NsCodeGenerated, e.provider, name)
	if e.typeArg != nil {
		t = t.MakeGeneric(e.typeArg)
	}
	return t
}

// providerMethod returns a member of the provider, bound to e's instance.
func (u *Unit) providerMethod(e *element, name string, params int) *il.MethodRef {
	open := u.im.Type(known.NsCodeGenerated, e.provider)
	return u.im.Method(open, name, params).OnType(u.providerType(e))
}

// runtimeMethod returns a member of e's runtime.
func (u *Unit) runtimeMethod(e *element, name string, params int) *il.MethodRef {
	rt := u.runtimeType(e)
	return u.im.Method(rt.Open(), name, params).OnType(rt)
}

// declareProviders adds the nested provider and runtime structs with one
// field per lambda parameter.
func (u *Unit) declareProviders() {
	u.providers = u.nestedStruct("LambdaParameterValueProviders")
	u.runtimes = u.nestedStruct("Runtimes")
	for _, e := range u.elements {
		e.providerField = u.providers.AddField(&il.FieldDef{
			Name:  "forParameter_" + e.param.Name,
			Type:  u.providerType(e),
			Flags: il.FieldPublic,
		})
		e.runtimeField = u.runtimes.AddField(&il.FieldDef{
			Name:  "runtime_" + e.param.Name,
			Type:  u.runtimeType(e),
			Flags: il.FieldPublic,
		})
	}
	u.providersField = u.field("_lambdaParameterValueProviders", u.providers.Ref(), il.FieldPrivate)
}

func (u *Unit) nestedStruct(name string) *il.TypeDef {
	return u.Type.AddNested(&il.TypeDef{
		Name:     name,
		BaseType: il.ValueType,
		Flags:    il.TypeNestedPublic | il.TypeSequentialLayout,
	})
}
