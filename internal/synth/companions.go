package synth

import (
	"github.com/samber/lo"

	"github.com/wippyai/lambdajobs/il"
	"github.com/wippyai/lambdajobs/internal/analyzer"
	"github.com/wippyai/lambdajobs/internal/codegen"
	"github.com/wippyai/lambdajobs/internal/known"
)

const (
	instanceEntry = il.MethodPublic | il.MethodVirtual | il.MethodNewSlot
	staticEntry   = il.MethodPublic | il.MethodStatic
)

// displayClassParam is the type ReadFromDisplayClass and friends receive
// the lambda's closure as.
func (u *Unit) displayClassParam() *il.TypeRef {
	r := u.Chain.DisplayClass().Ref()
	if u.opts.ClosureAsStruct {
		r.ValueType = true
	}
	if r.ValueType {
		return r.MakeByRef()
	}
	return r
}

// walkClosures loads through the enclosing closures of a captured path,
// by address when closures are value types.
func (u *Unit) walkClosures(e *codegen.Emitter, hops []*il.FieldRef) {
	for _, f := range hops {
		if u.opts.ClosureAsStruct || u.s.u.IsValueType(f.Type) {
			e.Ldflda(f)
			continue
		}
		e.Ldfld(f)
	}
}

// displayClassCopies builds ReadFromDisplayClass, and for Run jobs that
// write captured variables the WriteToDisplayClass copying them back
// after the run.
func (u *Unit) displayClassCopies() error {
	dc := u.displayClassParam()
	u.ReadFromDisplayClass = u.method(readFromDisplayClass, il.MethodPublic, nil, param("displayClass", dc))
	err := emit(u.ReadFromDisplayClass, func(e *codegen.Emitter) {
		for _, v := range u.Captured {
			n := len(v.Path)
			e.Ldarg(0).Ldarg(1)
			u.walkClosures(e, v.Path[:n-1])
			e.Ldfld(v.Path[n-1]).Stfld(v.Field.Ref())
		}
		e.Ret()
	})
	if err != nil || u.Chain.Mode != analyzer.ModeRun {
		return err
	}
	written := lo.Filter(u.Captured, func(v *CapturedVariable, _ int) bool { return v.Written })
	if len(written) == 0 {
		return nil
	}

	u.WriteToDisplayClass = u.method(writeToDisplayClass, il.MethodPublic, nil, param("displayClass", dc))
	return emit(u.WriteToDisplayClass, func(e *codegen.Emitter) {
		for _, v := range written {
			n := len(v.Path)
			e.Ldarg(1)
			u.walkClosures(e, v.Path[:n-1])
			e.Ldarg(0).Ldfld(v.Field.Ref()).Stfld(v.Path[n-1])
		}
		e.Ret()
	})
}

// deallocateOnCompletion disposes the WithDeallocateOnJobCompletion
// containers of a Run job; the job system does it for scheduled ones.
func (u *Unit) deallocateOnCompletion() error {
	var dispose []*CapturedVariable
	for _, mod := range u.Chain.Named(known.WithDeallocateOnJobCompletion) {
		f, _ := mod.Args[0].(*il.FieldRef)
		for _, v := range u.Captured {
			if v.Path[len(v.Path)-1].Equal(f) {
				dispose = append(dispose, v)
			}
		}
	}
	if len(dispose) == 0 {
		return nil
	}
	u.DeallocateOnCompletion = u.method(deallocateOnCompletion, il.MethodPublic, nil)
	return emit(u.DeallocateOnCompletion, func(e *codegen.Emitter) {
		for _, v := range dispose {
			t := v.Field.Type
			def := u.s.u.ResolveType(t)
			if def == nil || def.Method("Dispose") == nil {
				continue
			}
			e.Ldarg(0).Ldflda(v.Field.Ref()).Call(u.im.Method(t.Open(), "Dispose", 0).OnType(t))
		}
		e.Ret()
	})
}

// execute builds the entry point the job system calls: IJob.Execute,
// IJobChunk.Execute, or for Entities.ForEach a chunk loop over the
// parameter runtimes.
func (u *Unit) execute() error {
	lambda := u.Lambda.Ref()
	switch u.Chain.Kind {
	case analyzer.KindJob:
		u.Execute = u.method(execute, instanceEntry, nil)
		return emit(u.Execute, func(e *codegen.Emitter) {
			e.Ldarg(0).Call(lambda).Ret()
		})
	case analyzer.KindChunk:
		u.Execute = u.method(execute, instanceEntry, nil, u.chunkParams()...)
		return emit(u.Execute, func(e *codegen.Emitter) {
			e.Ldarg(0).Ldarg(1).Ldarg(2).Ldarg(3).Call(lambda).Ret()
		})
	}

	if err := u.iterateEntities(); err != nil {
		return err
	}
	u.Execute = u.method(execute, instanceEntry, nil, u.chunkParams()...)
	runtimes := u.Execute.Body.AddLocal(u.runtimes.Ref(), "runtimes")
	providers := u.providersField.Ref()
	return emit(u.Execute, func(e *codegen.Emitter) {
		for _, el := range u.elements {
			e.Ldloca(runtimes).Ldarg(0).Ldflda(providers).Ldflda(el.providerField.Ref()).Ldarga(1)
			if el.provider == known.ProviderEntityInQueryIdx {
				e.Ldarg(2).Ldarg(3).Call(u.providerMethod(el, "PrepareToExecuteOnEntitiesIn", 3))
			} else {
				e.Call(u.providerMethod(el, "PrepareToExecuteOnEntitiesIn", 1))
			}
			e.Stfld(el.runtimeField.Ref())
		}
		e.Ldarg(0).Ldarga(1).Ldloca(runtimes).Call(u.IterateEntities.Ref()).Ret()
	})
}

func (u *Unit) chunkParams() []*il.ParamDef {
	return []*il.ParamDef{
		param("chunk", u.im.Entities(known.ArchetypeChunk)),
		param("chunkIndex", il.Int32),
		param("firstEntityIndex", il.Int32),
	}
}

// iterateEntities builds the per-entity loop:
//
//	for (int i = 0; i < chunk.Count; i++)
//	    OriginalLambdaBody(runtimes.runtime_t.For(i), ...);
func (u *Unit) iterateEntities() error {
	c := u.Chain
	rt := param("runtimes", u.runtimes.Ref().MakeByRef())
	m := u.method(iterateEntities, il.MethodPublic, nil,
		param("chunk", u.im.Entities(known.ArchetypeChunk).MakeByRef()), rt)
	if c.UsesBurst() && c.UsesNoAlias {
		m.ImplFlags |= il.ImplNoInlining
		rt.CustomAttributes = il.Attributes{u.im.Attribute(known.NsBurst, known.NoAlias)}
	}
	u.IterateEntities = m

	count := m.Body.AddLocal(il.Int32, "count")
	i := m.Body.AddLocal(il.Int32, "i")
	temps := make(map[*element]*il.Local)
	for _, el := range u.elements {
		if el.byRef && el.provider != known.ProviderComponent {
			temps[el] = m.Body.AddLocal(el.valueType(), "")
		}
	}
	getCount := u.im.Method(u.im.Entities(known.ArchetypeChunk), "get_Count", 0)
	return emit(m, func(e *codegen.Emitter) {
		body, check := e.Label(), e.Label()
		e.Ldarg(1).Call(getCount).Stloc(count)
		e.LdcI4(0).Stloc(i)
		e.Br(check)
		e.Mark(body).Ldarg(0)
		for _, el := range u.elements {
			e.Ldarg(2).Ldflda(el.runtimeField.Ref()).Ldloc(i).Call(u.runtimeMethod(el, "For", 1))
			switch {
			case el.provider == known.ProviderComponent && !el.byRef:
				e.Ldobj(el.valueType())
			case temps[el] != nil:
				e.Stloc(temps[el]).Ldloca(temps[el])
			}
		}
		e.Call(u.Lambda.Ref())
		e.Ldloc(i).LdcI4(1).Emit(il.Add, nil).Stloc(i)
		e.Mark(check).Ldloc(i).Ldloc(count).Emit(il.Clt, nil).Brtrue(body)
		e.Ret()
	})
}

// structural builds the main-thread path of WithStructuralChanges: the
// lambda runs once per entity through a callback, with components copied
// out before and written back after each call.
func (u *Unit) structural() error {
	if err := u.performLambda(); err != nil {
		return err
	}
	scp := u.im.Type(known.NsCodeGenerated, known.StructuralChangeProvider)
	u.Execute = u.method(execute, il.MethodPublic, nil,
		param("system", u.im.Entities(known.ComponentSystemBase)),
		param("query", u.im.Entities(known.EntityQuery)))
	runtimes := u.Execute.Body.AddLocal(u.runtimes.Ref(), "runtimes")
	provider := u.Execute.Body.AddLocal(scp, "provider")
	providers := u.providersField.Ref()
	return emit(u.Execute, func(e *codegen.Emitter) {
		e.Ldloca(provider).Ldarg(1).Ldarg(2).Call(u.im.Method(scp, "PrepareToExecuteWithStructuralChanges", 2))
		for _, el := range u.elements {
			e.Ldloca(runtimes).Ldarg(0).Ldflda(providers).Ldflda(el.providerField.Ref())
			e.Ldarg(1).Ldarg(2).Call(u.providerMethod(el, "PrepareToExecuteWithStructuralChanges", 2))
			e.Stfld(el.runtimeField.Ref())
		}
		e.Ldloca(provider).Ldarg(0).Emit(il.ConvU, nil).Ldloca(runtimes).Emit(il.ConvU, nil)
		e.Ldsfld(u.PerformLambdaDelegate.Ref()).Call(u.im.Method(scp, "IterateEntities", 3))
		e.Ldloca(provider).Call(u.im.Method(scp, "FinishExecuteWithStructuralChanges", 0))
		if u.DeallocateOnCompletion != nil {
			e.Ldarg(0).Call(u.DeallocateOnCompletion.Ref())
		}
		e.Ret()
	})
}

// performLambda builds the static per-entity callback and the delegate
// field pointing at it, initialised in the static constructor.
func (u *Unit) performLambda() error {
	voidPtr := il.Void.MakePointer()
	entity := u.im.Entities(known.Entity)
	m := u.method(performLambda, staticEntry, nil,
		param("jobStruct", voidPtr), param("runtimesPtr", voidPtr), param("entity", entity))
	u.PerformLambda = m

	rt := m.Body.AddLocal(u.runtimes.Ref().MakeByRef(), "runtimes")
	values := make([]*il.Local, len(u.elements))
	originals := make(map[*element]*il.Local)
	for i, el := range u.elements {
		values[i] = m.Body.AddLocal(el.valueType(), "")
		if el.provider == known.ProviderComponent {
			originals[el] = m.Body.AddLocal(el.valueType(), "")
		}
	}
	err := emit(m, func(e *codegen.Emitter) {
		e.Ldarg(1).Call(u.asRef(u.runtimes.Ref())).Stloc(rt)
		for i, el := range u.elements {
			e.Ldloc(rt).Ldflda(el.runtimeField.Ref()).Ldarg(2)
			if orig := originals[el]; orig != nil {
				e.Ldloca(orig).Call(u.runtimeMethod(el, "For", 2))
			} else {
				e.Call(u.runtimeMethod(el, "For", 1))
			}
			e.Stloc(values[i])
		}
		e.Ldarg(0).Call(u.asRef(u.Self()))
		for i, el := range u.elements {
			if el.byRef {
				e.Ldloca(values[i])
			} else {
				e.Ldloc(values[i])
			}
		}
		e.Call(u.Lambda.Ref())
		for i, el := range u.elements {
			orig := originals[el]
			if orig == nil || el.readOnly() {
				continue
			}
			e.Ldloc(rt).Ldflda(el.runtimeField.Ref()).Ldarg(2).Ldloca(values[i]).Ldloca(orig)
			e.Call(u.runtimeMethod(el, "WriteBack", 3))
		}
		e.Ret()
	})
	if err != nil {
		return err
	}

	d := u.im.Nested(known.NsCodeGenerated, known.StructuralChangeProvider, "PerformLambdaDelegate")
	u.PerformLambdaDelegate = u.field(performLambdaDelegate, d, il.FieldPublic|il.FieldStatic)
	u.cctor = u.method(".cctor", il.MethodPrivate|il.MethodStatic|il.MethodSpecialName|il.MethodRTSpecialName, nil)
	return emit(u.cctor, func(e *codegen.Emitter) {
		e.Ldnull().Ldftn(m.Ref()).Newobj(u.im.Method(d, ".ctor", 2)).Stsfld(u.PerformLambdaDelegate.Ref()).Ret()
	})
}

// asRef returns UnsafeUtilityEx.AsRef<T>.
func (u *Unit) asRef(t *il.TypeRef) *il.MethodRef {
	return u.im.Method(u.im.Type(known.NsCollectionsLL, known.UnsafeUtilityEx), "AsRef", 1).MakeGeneric(t)
}

// scheduleTimeInitialize builds the method the call site invokes before
// running or scheduling: it initialises the providers, copies the
// captured variables in and fetches the component lookups.
func (u *Unit) scheduleTimeInitialize() error {
	c := u.Chain
	params := []*il.ParamDef{param("componentSystem", c.Containing().SelfRef())}
	if u.ReadFromDisplayClass != nil {
		params = append(params, param("displayClass", u.displayClassParam()))
	}
	m := u.method(scheduleTimeInitialize, il.MethodPublic, nil, params...)
	u.ScheduleTimeInitialize = m
	csb := u.im.Entities(known.ComponentSystemBase)
	return emit(m, func(e *codegen.Emitter) {
		for _, el := range u.elements {
			e.Ldarg(0).Ldflda(u.providersField.Ref()).Ldflda(el.providerField.Ref())
			e.Ldarg(1).LdBool(el.readOnly()).Call(u.providerMethod(el, "ScheduleTimeInitialize", 2))
		}
		if u.ReadFromDisplayClass != nil {
			e.Ldarg(0).Ldarg(2).Call(u.ReadFromDisplayClass.Ref())
		}
		if u.SystemInstance != nil {
			e.Ldarg(0).Ldarg(1).Stfld(u.SystemInstance.Ref())
		}
		for _, a := range u.Access {
			get := u.im.Method(csb, "GetComponentDataFromEntity", 1).MakeGeneric(a.Type)
			e.Ldarg(0).Ldarg(1).LdBool(a.ReadOnly).Call(get).Stfld(a.Field.Ref())
		}
		e.Ret()
	})
}

// runWithoutJobSystem builds the static entry point Run passes to
// InternalCompilerInterface, with the delegate fields holding it and the
// initialisation appended to CreateInit.
func (u *Unit) runWithoutJobSystem() error {
	c := u.Chain
	self := u.Self()
	voidPtr := il.Void.MakePointer()
	ici := known.InternalCompilerIface

	var m *il.MethodDef
	var build func(e *codegen.Emitter)
	if c.Kind == analyzer.KindJob {
		u.RunDelegateType = u.im.Nested(known.NsEntities, ici, "JobRunWithoutJobSystemDelegate")
		m = u.method(runWithoutJobSystem, staticEntry, nil, param("jobData", voidPtr))
		build = func(e *codegen.Emitter) {
			e.Ldarg(0).Call(u.asRef(self)).Call(u.Execute.Ref())
			if u.DeallocateOnCompletion != nil {
				e.Ldarg(0).Call(u.asRef(self)).Call(u.DeallocateOnCompletion.Ref())
			}
			e.Ret()
		}
	} else {
		u.RunDelegateType = u.im.Nested(known.NsEntities, ici, "JobChunkRunWithoutJobSystemDelegate")
		iterator := u.im.Entities(known.ChunkIterator).MakePointer()
		m = u.method(runWithoutJobSystem, staticEntry, nil, param("archetypeChunkIterator", iterator), param("jobData", voidPtr))
		run := u.im.Method(u.im.Entities(known.JobChunkExtensions), "RunWithoutJobs", 2).MakeGeneric(self)
		build = func(e *codegen.Emitter) {
			e.Ldarg(1).Call(u.asRef(self)).Ldarg(0).Call(run)
			if u.DeallocateOnCompletion != nil {
				e.Ldarg(1).Call(u.asRef(self)).Call(u.DeallocateOnCompletion.Ref())
			}
			e.Ret()
		}
	}
	u.RunWithoutJobSystem = m
	m.CustomAttributes = il.Attributes{u.im.Attribute(known.NsAOT, known.MonoPInvokeCallback, u.RunDelegateType)}
	if err := emit(m, build); err != nil {
		return err
	}

	u.RunDelegateNoBurst = u.field(runDelegateNoBurst, u.RunDelegateType, il.FieldPublic|il.FieldStatic)
	if c.UsesBurst() {
		u.RunDelegateBurst = u.field(runDelegateBurst, u.RunDelegateType, il.FieldPublic|il.FieldStatic)
	}
	return u.appendInit(func(e *codegen.Emitter) {
		noBurst := u.RunDelegateNoBurst.Ref()
		e.Ldnull().Ldftn(m.Ref()).Newobj(u.im.Method(u.RunDelegateType, ".ctor", 2)).Stsfld(noBurst)
		if u.RunDelegateBurst != nil {
			compile := u.im.Method(u.im.Entities(ici), "BurstCompile", 1, u.RunDelegateType)
			e.Ldsfld(noBurst).Call(compile).Stsfld(u.RunDelegateBurst.Ref())
		}
	})
}

// appendInit adds instructions to the OnCreateForCompiler initialisation.
func (u *Unit) appendInit(build func(e *codegen.Emitter)) error {
	e := codegen.GetEmitter()
	defer codegen.PutEmitter(e)
	build(e)
	code, err := e.Instructions()
	if err != nil {
		return err
	}
	u.CreateInit = append(u.CreateInit, code...)
	return nil
}
