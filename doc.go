// Package lambdajobs rewrites the lambda jobs of an ECS module into
// explicit job structs.
//
// A lambda job is a fluent chain written inside a component system:
//
//	Entities.WithName("Move")
//	    .ForEach((ref Translation t, in Velocity v) => t.Value += v.Value * dt)
//	    .ScheduleParallel();
//
// The chain compiles to a delegate plus a run of builder calls. The
// processor finds each chain, synthesizes a job struct implementing
// IJobChunk (or IJob for Job.WithCode) that iterates the matching chunks
// and calls a copy of the lambda, and replaces the chain with code that
// fills the struct and hands it to the job scheduler.
//
// # Architecture Overview
//
//	lambdajobs/          Root package with Processor, Config and Result
//	├── il/              Instruction model, binary codec and validation
//	├── diag/            Diagnostic catalog and located errors
//	├── errors/          Structured error types for debugging
//	├── framework/       Built-in System and Unity.Entities modules
//	├── internal/cursor/ Stack-effect simulator over method bodies
//	├── internal/analyzer/ Chain discovery and validation
//	├── internal/synth/  Job struct synthesis
//	├── internal/rewrite/ Call-site rewriting and closure conversion
//	└── internal/engine/ The per-module pass
//
// # Quick Start
//
// Process a module held in memory:
//
//	p := lambdajobs.New(lambdajobs.Config{Verify: true})
//	res, err := p.Process(mod)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, d := range res.Diagnostics {
//	    fmt.Println(d)
//	}
//
// Or a module in its binary form:
//
//	out, res, err := p.Transform(data)
//
// # Diagnostics
//
// Rule violations in user code are reported as diagnostics, never as
// errors. A chain that fails leaves its method untouched; sibling chains
// in the same method are still rewritten. The error return is reserved
// for input that cannot be processed at all.
//
// # Thread Safety
//
// A Processor may be shared between goroutines; every call works on its
// own state. A module must not be processed by two calls at once.
package lambdajobs
