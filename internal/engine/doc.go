// Package engine drives the lambda job pass over one module.
//
// For every component system in the module the engine installs the
// OnCreateForCompiler override, then walks the system's methods in
// declaration order. Each method goes through analysis, synthesis of one
// job struct per chain and rewriting of the call sites. Closures are
// turned into value types when every delegate built from them is
// replaced; otherwise the method is planned again with closures left as
// classes.
//
// Failures never cross a method: diagnostics raised for one chain leave
// the other chains of the method to be rewritten, and a panic or an
// internal error restores the method and is reported as an unexpected
// error located at the method's first sequence point.
package engine
