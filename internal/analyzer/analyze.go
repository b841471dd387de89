package analyzer

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/samber/lo"

	"github.com/wippyai/lambdajobs/diag"
	"github.com/wippyai/lambdajobs/errors"
	"github.com/wippyai/lambdajobs/il"
	"github.com/wippyai/lambdajobs/internal/cursor"
	"github.com/wippyai/lambdajobs/internal/known"
)

// Analyzer finds chains in methods resolved against a universe.
type Analyzer struct {
	u *il.Universe
	// UsesNoAlias marks generated jobs and iteration parameters as not
	// aliasing each other.
	UsesNoAlias bool
}

// New creates an analyzer over u.
func New(u *il.Universe) *Analyzer {
	return &Analyzer{u: u, UsesNoAlias: true}
}

// Sources returns every instruction in m that starts a chain.
func Sources(m *il.MethodDef) []*il.Instruction {
	if m.Body == nil {
		return nil
	}
	return lo.Filter(m.Body.Instructions, func(ins *il.Instruction, _ int) bool {
		_, ok := sourceKind(ins)
		return ok
	})
}

func sourceKind(ins *il.Instruction) (Kind, bool) {
	ref, ok := ins.IsInvocation()
	if !ok {
		return 0, false
	}
	switch ref.Name {
	case known.GetEntities:
		ret := ref.Return()
		if ret.Name == known.ForEachDescription || ret.Name == known.ForEachDescriptionJCS {
			return KindEntities, true
		}
	case known.GetJob:
		if decl := ref.DeclaringType.Name; decl == known.JobComponentSystem || decl == known.SystemBase {
			return KindJob, true
		}
	case known.GetChunks:
		if ref.DeclaringType.Name == known.JobComponentSystem {
			return KindChunk, true
		}
	}
	return 0, false
}

// FindIn analyses every chain of m. Each source call yields one result so
// that a failing chain does not hide its siblings.
func (a *Analyzer) FindIn(m *il.MethodDef) []Result {
	sources := Sources(m)
	out := make([]Result, 0, len(sources))
	for n, src := range sources {
		c, err := a.Analyze(m, src, n)
		out = append(out, Result{Chain: c, Err: err})
	}
	return out
}

// Analyze walks the chain starting at source. number distinguishes the
// default job names of several chains in one method.
func (a *Analyzer) Analyze(m *il.MethodDef, source *il.Instruction, number int) (*Chain, error) {
	kind, ok := sourceKind(source)
	if !ok {
		return nil, diag.Raise(diag.DC0007, m, source)
	}
	var modifiers []Modifier
	cur := source
	expected := source
	for {
		next, err := nextConstructionCall(m, cur)
		if err != nil {
			return nil, err
		}
		cur = next
		ref, _ := cur.Method()

		if known.IsTerminal(ref.Name) {
			return a.finish(m, kind, source, cur, modifiers, number)
		}

		mod := Modifier{Name: ref.Name, Method: ref, Instruction: cur}
		mod.TypeArgs = ref.GenericArgs
		if len(ref.GenericArgs) > 0 && len(ref.Params) > 0 && ref.ParamType(0).Equal(ref.GenericArgs[0]) {
			// Drop the description type argument.
			mod.TypeArgs = ref.GenericArgs[1:]
		}
		for p := 1; p < len(ref.Params); p++ {
			mod.Args = append(mod.Args, operandFor(cursor.FindInstructionThatPushedArg(m, p, cur)))
		}

		def := a.u.ResolveMethod(ref)
		if def == nil {
			return nil, diag.Raise(diag.DCICE005, m, cur, ref)
		}
		for i, arg := range mod.Args {
			if arg == nil && !def.Params[i+1].CustomAttributes.Has(known.NsEntities, known.AllowDynamicValue) {
				return nil, diag.Raise(diag.DC0008, m, cur, ref.Name)
			}
		}
		if lo.ContainsBy(modifiers, func(x Modifier) bool { return x.Name == ref.Name }) &&
			!def.CustomAttributes.HasName(known.AllowMultipleInvocations) {
			return nil, diag.Raise(diag.DC0009, m, cur, ref.Name)
		}
		if cursor.FindInstructionThatPushedArg(m, 0, cur) != expected {
			return nil, diag.Raise(diag.DC0007, m, cur)
		}
		expected = cur
		modifiers = append(modifiers, mod)
	}
}

// nextConstructionCall scans forward from ins for the next construction or
// execution call. The description is on top of the stack after ins; code
// that consumes it before the next call is not part of a chain.
func nextConstructionCall(m *il.MethodDef, ins *il.Instruction) (*il.Instruction, error) {
	code := m.Body.Instructions
	depth := 1
	for i := m.Body.IndexOf(ins) + 1; i < len(code); i++ {
		cur := code[i]
		if d, ok := cursor.MatchDelegatePattern(m, cur, cursor.MatchStart); ok {
			i = m.Body.IndexOf(d.Last())
			depth++
			continue
		}
		if cur.Op.IsBranch() || cur.Op == il.Switch {
			return nil, diag.Raise(diag.DC0010, m, cur)
		}
		if ref, ok := cur.Method(); ok && cur.Op == il.Call && isConstructionMethod(ref) {
			return cur, nil
		}
		e := cursor.EffectOf(m, cur)
		depth -= e.Pops
		if depth < 1 {
			return nil, diag.Raise(diag.DC0011, m, cur)
		}
		depth += e.Pushes
	}
	return nil, diag.Raise(diag.DC0011, m, ins)
}

func isConstructionMethod(ref *il.MethodRef) bool {
	decl := ref.DeclaringType
	name := decl.Name
	if decl.DeclaringType != nil {
		return false
	}
	return (strings.HasSuffix(name, "ConstructionMethods") || strings.HasSuffix(name, "ExecutionMethods") ||
		strings.HasSuffix(name, "ExecutionMethodsJCS")) &&
		(decl.Namespace == known.NsEntities || decl.Namespace == "")
}

// operandFor returns the literal an argument was pushed as, or nil.
func operandFor(ins *il.Instruction) any {
	if ins == nil {
		return nil
	}
	if v, ok := ins.LoadsInt32(); ok {
		return v
	}
	switch ins.Op {
	case il.Ldstr:
		s, _ := ins.Operand.(string)
		return s
	case il.Ldfld:
		f, _ := ins.Field()
		return f
	}
	return nil
}

func (a *Analyzer) finish(m *il.MethodDef, kind Kind, source, terminal *il.Instruction, modifiers []Modifier, number int) (*Chain, error) {
	c := &Chain{
		Method:         m,
		Kind:           kind,
		Source:         source,
		Terminal:       terminal,
		Modifiers:      modifiers,
		Number:         number,
		UsesNoAlias:    a.UsesNoAlias,
		IsInSystemBase: a.u.InheritsFrom(m.DeclaringType, known.NsEntities, known.SystemBase),
	}

	c.Name = fmt.Sprintf("%s_LambdaJob%d", m.Name, number)
	if named := c.Named(known.WithName); len(named) > 0 {
		given, _ := named[0].Args[0].(string)
		if !validJobName(given) {
			return nil, diag.Raise(diag.DC0043, m, source, given)
		}
		c.Name = given
	}

	mode, err := executionMode(c)
	if err != nil {
		return nil, err
	}
	c.Mode = mode

	c.WithStructuralChanges = c.Has(known.WithStructuralChanges)
	if c.WithStructuralChanges && c.Mode != ModeRun {
		return nil, diag.Raise(diag.DC0028, m, source)
	}

	for _, mod := range c.Named(known.WithStoreEntityQueryInField) {
		field, err := a.storedQueryField(m, mod)
		if err != nil {
			return nil, err
		}
		c.StoreQueryInField = field
	}

	bodies := lo.Filter(modifiers, func(x Modifier, _ int) bool {
		return x.Name == known.ForEach || x.Name == known.WithCode
	})
	if len(bodies) == 0 {
		switch kind {
		case KindEntities:
			return nil, diag.Raise(diag.DC0006, m, source)
		case KindJob:
			return nil, diag.Raise(diag.DC0017, m, source)
		case KindChunk:
			return nil, diag.Raise(diag.DC0018, m, source)
		}
		return nil, errors.Internal(errors.PhaseAnalyze, "unhandled chain kind %v", kind)
	}

	if len(m.DeclaringType.GenericParams) > 0 {
		return nil, diag.Raise(diag.DC0025, m, source,
			fmt.Sprintf("Entities.ForEach cannot be used in system %s as Entities.ForEach in generic system types are not supported.", m.DeclaringType.Name))
	}

	c.Body = bodies[0].Instruction
	d, err := AnalyzeBodyInvocation(m, c.Body)
	if err != nil {
		return nil, err
	}
	c.Delegate = d
	c.Lambda = a.u.ResolveMethod(d.Method)
	if c.Lambda == nil || c.Lambda.Body == nil {
		return nil, diag.Raise(diag.DCICE005, m, c.Body, d.Method)
	}
	return c, nil
}

// executionMode maps the terminal call to a mode. JobComponentSystem
// chains know Run and Schedule only.
func executionMode(c *Chain) (ExecutionMode, error) {
	ref, _ := c.Terminal.Method()
	switch ref.Name {
	case known.Run:
		return ModeRun, nil
	case known.Schedule:
		return ModeSchedule, nil
	case known.ScheduleParallel:
		if c.IsInSystemBase {
			return ModeScheduleParallel, nil
		}
	}
	return 0, diag.Raise(diag.DC0007, c.Method, c.Terminal)
}

// storedQueryField checks that WithStoreEntityQueryInField was passed the
// address of a field of the system itself.
func (a *Analyzer) storedQueryField(m *il.MethodDef, mod Modifier) (*il.FieldDef, error) {
	pusher := cursor.FindInstructionThatPushedArg(m, 1, mod.Instruction)
	if pusher == nil || pusher.Op != il.Ldflda {
		return nil, diag.Raise(diag.DC0031, m, mod.Instruction)
	}
	ref, ok := pusher.Field()
	prev := m.Body.Prev(pusher)
	if !ok || prev == nil || !prev.IsLoadThis() {
		return nil, diag.Raise(diag.DC0031, m, mod.Instruction)
	}
	def := a.u.ResolveField(ref)
	if def == nil {
		return nil, diag.Raise(diag.DCICE005, m, pusher, ref)
	}
	return def, nil
}

// AnalyzeBodyInvocation matches the delegate passed to a ForEach or
// WithCode call. Delegates that were stored before being passed are
// rejected: the lambda body must be known at the call site.
func AnalyzeBodyInvocation(m *il.MethodDef, call *il.Instruction) (*cursor.DelegateSequence, error) {
	pusher := cursor.FindInstructionThatPushedArg(m, 1, call)
	if pusher == nil {
		return nil, diag.Raise(diag.DCICE002, m, call, call.Operand)
	}
	if d, ok := cursor.MatchDelegatePattern(m, pusher, cursor.MatchStart); ok {
		return d, nil
	}

	universal := func(t *il.TypeRef) bool {
		return t != nil && t.ElementType().Namespace == known.NsUniversal
	}
	stored := false
	switch {
	case pusher.Op == il.Ldfld:
		if f, ok := pusher.Field(); ok {
			stored = universal(f.Type)
		}
	case pusher.Op == il.Call || pusher.Op == il.Callvirt:
		if ref, ok := pusher.Method(); ok {
			stored = universal(ref.Return())
		}
	}
	if l, ok := m.Body.IsLoadLocal(pusher); ok {
		stored = universal(l.Type)
	}
	if arg, ok := pusher.IsLoadArg(); ok {
		stored = universal(m.ArgType(arg))
	}
	if stored {
		return nil, diag.Raise(diag.DC0044, m, pusher)
	}
	return nil, diag.Raise(diag.DCICE002, m, pusher, call.Operand)
}

// validJobName accepts identifiers made of letters, digits and underscores
// that do not start with a digit and do not contain "__", which the
// compiler reserves.
func validJobName(name string) bool {
	if name == "" {
		return false
	}
	for i, r := range name {
		if i == 0 && unicode.IsDigit(r) {
			return false
		}
		if r != '_' && !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			return false
		}
	}
	return !strings.Contains(name, "__")
}
