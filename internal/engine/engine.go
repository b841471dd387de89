package engine

import (
	"go.uber.org/zap"

	"github.com/wippyai/lambdajobs/diag"
	"github.com/wippyai/lambdajobs/errors"
	"github.com/wippyai/lambdajobs/il"
	"github.com/wippyai/lambdajobs/internal/analyzer"
	"github.com/wippyai/lambdajobs/internal/known"
	"github.com/wippyai/lambdajobs/internal/rewrite"
	"github.com/wippyai/lambdajobs/internal/synth"
)

// DefaultMaxChainsPerMethod bounds the chains processed in one method
// when Config leaves it unset.
const DefaultMaxChainsPerMethod = 256

// unprocessedSuffix names the copy kept of a method before rewriting.
const unprocessedSuffix = "$Unprocessed"

// Config configures the pass.
type Config struct {
	// MaxChainsPerMethod rejects methods holding more chains.
	MaxChainsPerMethod int
	// Verify validates every rewritten method before committing it and
	// the whole module at the end.
	Verify bool
	// KeepOriginal adds a copy of every rewritten method, named with the
	// $Unprocessed suffix. Closures of such methods stay classes since the
	// copy still allocates them.
	KeepOriginal bool
	// DisableClosureStructs keeps every closure a class.
	DisableClosureStructs bool
}

// Engine runs the lambda job pass.
//
// The engine is stateless between Process calls. Each call builds its
// own import cache, discarded when the call returns.
type Engine struct {
	maxChains      int
	verify         bool
	keepOriginal   bool
	closureStructs bool
}

// New creates an engine with the given config.
func New(cfg Config) *Engine {
	maxChains := cfg.MaxChainsPerMethod
	if maxChains <= 0 {
		maxChains = DefaultMaxChainsPerMethod
	}
	return &Engine{
		maxChains:      maxChains,
		verify:         cfg.Verify,
		keepOriginal:   cfg.KeepOriginal,
		closureStructs: !cfg.DisableClosureStructs,
	}
}

// pass is the state of one Process call.
type pass struct {
	e        *Engine
	u        *il.Universe
	im       *known.Imports
	analyzer *analyzer.Analyzer
	synth    *synth.Synthesizer
	rw       *rewrite.Rewriter
	report   *Report
}

func (e *Engine) newPass(mod *il.Module, u *il.Universe) *pass {
	im := known.NewImports(u)
	return &pass{
		e:        e,
		u:        u,
		im:       im,
		analyzer: analyzer.New(u),
		synth:    synth.New(im),
		rw:       rewrite.New(im),
		report:   &Report{Module: mod.Name},
	}
}

// Process rewrites every lambda job of mod in place. The universe must
// contain mod and the framework modules it references; nil resolves mod
// alone. Diagnostics are returned in the report; the error is reserved
// for failures of the module as a whole.
func (e *Engine) Process(mod *il.Module, u *il.Universe) (*Report, error) {
	if mod == nil {
		return nil, errors.InvalidInput(errors.PhaseRewrite, "nil module")
	}
	if u == nil {
		u = il.NewUniverse(mod)
	}
	p := e.newPass(mod, u)

	var systems []*il.TypeDef
	for _, t := range mod.AllTypes() {
		if rewrite.IsComponentSystem(u, t) {
			systems = append(systems, t)
		}
	}
	p.report.Systems = len(systems)
	Logger().Debug("processing module",
		zap.String("module", mod.Name),
		zap.Int("systems", len(systems)))

	for _, t := range systems {
		if _, err := p.rw.InjectOnCreateForCompiler(t); err != nil {
			p.fail(nil, err)
			continue
		}
		methods := append([]*il.MethodDef(nil), t.Methods...)
		for _, m := range methods {
			if m.Body == nil || len(analyzer.Sources(m)) == 0 {
				continue
			}
			p.guard(m, func() { p.method(m) })
		}
	}

	Logger().Info("processed module",
		zap.String("module", mod.Name),
		zap.Int("jobs", len(p.report.Jobs)),
		zap.Int("diagnostics", len(p.report.Diagnostics)))

	if e.verify {
		if err := il.Validate(mod); err != nil {
			return p.report, errors.Wrap(errors.PhaseValidate, errors.KindInternal, err, "rewritten module is invalid")
		}
	}
	return p.report, nil
}

// guard runs fn for m, turning a panic into an unexpected-error
// diagnostic and restoring the method body together with everything its
// jobs added to the system.
func (p *pass) guard(m *il.MethodDef, fn func()) {
	snap := rewrite.Take(m.Body)
	var sys *systemState
	if m.DeclaringType != nil {
		sys = p.takeSystem(m.DeclaringType)
	}
	defer func() {
		if r := recover(); r != nil {
			snap.Restore()
			if sys != nil {
				p.restoreSystem(sys)
			}
			p.unexpected(m, r)
		}
	}()
	fn()
}

func (p *pass) fail(m *il.MethodDef, err error) {
	if d, ok := diag.AsDiagnostic(err); ok {
		p.report.Diagnostics = append(p.report.Diagnostics, d)
		return
	}
	p.unexpected(m, err)
}

func (p *pass) unexpected(m *il.MethodDef, cause any) {
	d := diag.Unexpected(m, cause)
	Logger().Error("unexpected failure",
		zap.String("method", d.Method),
		zap.Any("cause", cause))
	p.report.Diagnostics = append(p.report.Diagnostics, d)
}

func (p *pass) warn(ds []diag.Diagnostic) {
	p.report.Diagnostics = append(p.report.Diagnostics, ds...)
}

// method processes every chain of m.
func (p *pass) method(m *il.MethodDef) {
	results := p.analyzer.FindIn(m)
	if len(results) > p.e.maxChains {
		p.fail(m, errors.New(errors.PhaseAnalyze, errors.KindOutOfBounds).
			Member(m.FullName()).
			Detail("%d chains exceed the limit of %d", len(results), p.e.maxChains).
			Build())
		return
	}
	var chains []*analyzer.Chain
	for _, r := range results {
		if r.Err != nil {
			p.fail(m, r.Err)
			continue
		}
		chains = append(chains, r.Chain)
	}
	if len(chains) == 0 {
		return
	}
	debugf("%s: %d chains", m.FullName(), len(chains))

	var original *il.MethodDef
	if p.e.keepOriginal {
		original = il.CloneMethod(m, m.Name+unprocessedSuffix)
		original.Flags = original.Flags&^(il.MethodVirtual|il.MethodPublic|il.MethodFamily|il.MethodAssembly) | il.MethodPrivate
	}

	asStruct := p.e.closureStructs && !p.e.keepOriginal && rewrite.CanConvertClosures(p.u, m, chains)
	out := p.attempt(m, chains, asStruct)
	if out.retry {
		debugf("%s: closures stay classes", m.FullName())
		carried := out.carried
		out = p.attempt(m, chains, false)
		out.errs = append(carried, out.errs...)
	}
	p.warn(out.warnings)
	for _, err := range out.errs {
		p.fail(m, err)
	}
	if len(out.units) == 0 {
		return
	}

	for _, u := range out.units {
		if err := p.rw.Commit(u); err != nil {
			p.fail(m, err)
			continue
		}
		c := u.Chain
		p.report.Jobs = append(p.report.Jobs, Job{
			System:          c.Containing().FullName(),
			Method:          m.Name,
			Struct:          u.Type.Name,
			Kind:            c.Kind.String(),
			Mode:            c.Mode.String(),
			Burst:           c.UsesBurst(),
			ClosureAsStruct: out.asStruct && c.CapturesLocals(),
		})
	}
	m.Body.Optimize()
	if original != nil {
		m.DeclaringType.AddMethod(original)
	}
	Logger().Debug("rewrote method",
		zap.String("method", m.FullName()),
		zap.Int("chains", len(out.units)),
		zap.Bool("closure_structs", out.asStruct))
}

// outcome is the result of planning and rewriting a method once.
type outcome struct {
	units    []*synth.Unit
	warnings []diag.Diagnostic
	errs     []error
	asStruct bool
	// retry asks for another attempt with closures left as classes. The
	// method has been restored; carried holds errors that attempt will
	// not reproduce.
	retry   bool
	carried []error
}

// attempt synthesizes and rewrites the chains of m. With asStruct any
// failure restores the method and asks for a retry, since a chain left
// in place still allocates its delegate from the closure.
func (p *pass) attempt(m *il.MethodDef, chains []*analyzer.Chain, asStruct bool) outcome {
	out := outcome{asStruct: asStruct}
	opts := synth.Options{ClosureAsStruct: asStruct}
	names := make(map[string]bool, len(chains))
	var units []*synth.Unit
	for _, c := range chains {
		u, err := p.synth.Synthesize(c, opts)
		if err == nil && names[u.Type.Name] {
			err = diag.Raise(diag.DC0003, c.Method, c.Source, c.Name)
		}
		if err != nil {
			out.errs = append(out.errs, err)
			continue
		}
		names[u.Type.Name] = true
		units = append(units, u)
	}
	if asStruct && len(out.errs) > 0 {
		return outcome{retry: true}
	}

	snap := rewrite.Take(m.Body)
	for _, u := range units {
		warnings, err := p.rw.Rewrite(u)
		out.warnings = append(out.warnings, warnings...)
		if err != nil {
			out.errs = append(out.errs, err)
			continue
		}
		out.units = append(out.units, u)
	}
	if asStruct && len(out.errs) > 0 {
		snap.Restore()
		return outcome{retry: true}
	}
	if len(out.units) == 0 {
		return out
	}

	if p.e.verify {
		if err := il.ValidateMethod(m); err != nil {
			snap.Restore()
			out.units = nil
			out.errs = append(out.errs, err)
			return out
		}
	}
	if asStruct {
		if err := rewrite.ConvertClosures(p.u, m); err != nil {
			snap.Restore()
			return outcome{retry: true, carried: []error{err}}
		}
	}
	return out
}
