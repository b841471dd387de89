package lambdajobs

import (
	"go.uber.org/zap"

	"github.com/wippyai/lambdajobs/diag"
	"github.com/wippyai/lambdajobs/errors"
	"github.com/wippyai/lambdajobs/framework"
	"github.com/wippyai/lambdajobs/il"
	"github.com/wippyai/lambdajobs/internal/engine"
)

// DefaultMaxChainsPerMethod bounds the chains of one method when Config
// leaves MaxChainsPerMethod unset.
const DefaultMaxChainsPerMethod = engine.DefaultMaxChainsPerMethod

// Result is the outcome of processing a module.
type Result = engine.Report

// Job describes one rewritten chain.
type Job = engine.Job

// Config configures a Processor.
type Config struct {
	// Logger receives progress and unexpected failures. Nil keeps the
	// current logger, a no-op unless set earlier.
	Logger *zap.Logger

	// MaxChainsPerMethod rejects methods with more chains. Zero means
	// DefaultMaxChainsPerMethod.
	MaxChainsPerMethod int

	// Verify validates each rewritten method and the module as a whole.
	Verify bool

	// KeepOriginal keeps a copy of every rewritten method, named with
	// the $Unprocessed suffix.
	KeepOriginal bool

	// DisableClosureStructs keeps display classes as classes.
	DisableClosureStructs bool
}

// Processor rewrites lambda jobs.
type Processor struct {
	engine *engine.Engine
}

// New creates a processor. The logger, when set, is installed globally.
func New(cfg Config) *Processor {
	if cfg.Logger != nil {
		engine.SetLogger(cfg.Logger)
	}
	return &Processor{
		engine: engine.New(engine.Config{
			MaxChainsPerMethod:    cfg.MaxChainsPerMethod,
			Verify:                cfg.Verify,
			KeepOriginal:          cfg.KeepOriginal,
			DisableClosureStructs: cfg.DisableClosureStructs,
		}),
	}
}

// Process rewrites mod in place. refs are the other modules mod
// references; the built-in framework modules are always available.
func (p *Processor) Process(mod *il.Module, refs ...*il.Module) (*Result, error) {
	if mod == nil {
		return nil, errors.InvalidInput(errors.PhaseRewrite, "nil module")
	}
	mods := append([]*il.Module{mod}, refs...)
	return p.engine.Process(mod, framework.Universe(mods...))
}

// Transform decodes a module, processes it and encodes the result. The
// output is nil when the result holds errors; the input is then still
// the module to ship.
func (p *Processor) Transform(data []byte, refs ...*il.Module) ([]byte, *Result, error) {
	mod, err := il.DecodeValidate(data)
	if err != nil {
		return nil, nil, errors.Wrap(errors.PhaseDecode, errors.KindInvalidData, err, "decode module")
	}
	res, err := p.Process(mod, refs...)
	if err != nil {
		return nil, res, err
	}
	if res.HasErrors() {
		return nil, res, nil
	}
	out, err := il.Encode(mod)
	if err != nil {
		return nil, res, errors.Wrap(errors.PhaseEncode, errors.KindInternal, err, "encode module")
	}
	return out, res, nil
}

// Err returns the first error diagnostic of res as an error, or nil.
func Err(res *Result) error {
	if res == nil {
		return nil
	}
	if errs := res.Errors(); len(errs) > 0 {
		return &diag.Error{Diagnostic: errs[0]}
	}
	return nil
}
