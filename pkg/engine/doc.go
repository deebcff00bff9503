// Package engine provides the shared core types of the xbuild resolver.
//
// # Overview
//
// xbuild turns a declarative project description into a fully resolved,
// per-configuration build plan. The resolution runs in phases:
//
//  1. Parse - Read the project descriptor (config package)
//  2. Discover - Walk the installed xPack dependency tree (deps package)
//  3. Toolchains - Resolve named toolchains with inheritance (toolchain package)
//  4. Merge - Layer project, dependency, target, profile and configuration
//     contributions (options package)
//  5. Plan - Select the tool and artefact and emit a PlanSnapshot (project package)
//
// This package is a leaf: it holds the classified error taxonomy, the plan
// snapshot handed to downstream builders, and the small interfaces shared by
// the stores, policy and telemetry packages.
//
// # Errors
//
// Every failure surfaced by the resolver is an *EngineError carrying one of
// five classes:
//
//   - schema: a value of the wrong shape ("must be a string")
//   - reference: a name that does not resolve ("Toolchain 'x' not defined")
//   - internal: a broken graph or hierarchy ("duplicate package")
//   - io: a missing file or folder, with the offending relative path
//   - parse: a descriptor that could not be decoded
//
// Nothing in the resolver retries; callers inspect the class with IsSchema,
// IsReference, IsInternal, IsIO and IsParse.
package engine
