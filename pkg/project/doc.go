// Package project turns a project folder into a resolved build plan.
//
// A Resolver reads the project descriptor, registers the built-in and
// project toolchains, discovers the folders contributed by installed xPacks
// and builds one Configuration per descriptor entry. Preparing a
// configuration merges its layers in a fixed order:
//
//	project, discovered dependencies, target, profiles (in order), configuration
//
// Removals apply to source folders only; include folders and symbols keep
// their add and remove lists for the build tree stage. The artefact is
// filled from the highest precedence layer down (configuration, profiles,
// toolchain, target, project) and the tool is the first linker, or archiver
// for static libraries, supporting the resolved language.
//
// Usage:
//
//	r := project.NewResolver(logger, project.WithMetrics(metrics))
//	plan, err := r.Resolve(ctx, folder, "debug")
//	if err != nil {
//	    return err
//	}
//	snapshot := plan.Snapshot()
package project
