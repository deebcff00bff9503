package commands

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/xbuild/xbuild/pkg/config"
	"github.com/xbuild/xbuild/pkg/engine"
	"github.com/xbuild/xbuild/pkg/project"
	"github.com/xbuild/xbuild/pkg/stores"
	"github.com/xbuild/xbuild/pkg/telemetry"
)

type resolveOptions struct {
	configurations []string
	format         string
	outFile        string
	storePath      string
	check          bool
	policyPaths    []string
	watch          bool
}

func newResolveCommand() *cobra.Command {
	opts := &resolveOptions{}

	cmd := &cobra.Command{
		Use:   "resolve [folder]",
		Short: "Resolve build configurations into a plan",
		Long: `Resolve the build configurations of a project into a build plan.

For each configuration the resolver:
  - Registers the built-in and project toolchains
  - Discovers folders contributed by installed xPacks
  - Merges project, target, profile and configuration layers
  - Computes the artefact name and selects the linker or archiver`,
		Example: `  # Resolve every configuration of the project in the current folder
  xbuild resolve

  # Resolve one configuration as YAML
  xbuild resolve ./blinky --configuration debug --format yaml

  # Store the plan and reject it when a policy fails
  xbuild resolve --store xbuild.db --check --policy ./policies

  # Resolve again whenever a descriptor changes
  xbuild resolve --watch`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			folder, err := projectFolder(args)
			if err != nil {
				return err
			}
			return runResolve(cmd, folder, opts)
		},
	}

	cmd.Flags().StringSliceVarP(&opts.configurations, "configuration", "C", nil, "resolve only these configurations")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "json", "output format (json, yaml)")
	cmd.Flags().StringVarP(&opts.outFile, "out", "o", "", "write the plan to a file instead of stdout")
	cmd.Flags().StringVar(&opts.storePath, "store", "", "SQLite database recording resolved plans")
	cmd.Flags().BoolVar(&opts.check, "check", false, "check the plan against policies")
	cmd.Flags().StringSliceVar(&opts.policyPaths, "policy", nil, "additional policy files or folders (implies --check)")
	cmd.Flags().BoolVarP(&opts.watch, "watch", "w", false, "resolve again when a descriptor changes")

	return cmd
}

func runResolve(cmd *cobra.Command, folder string, opts *resolveOptions) error {
	ctx := cmd.Context()
	resolver := newResolver(ctx)

	var store *stores.SQLiteStore
	if opts.storePath != "" {
		var err error
		store, err = openStore(ctx, opts.storePath)
		if err != nil {
			return err
		}
		defer store.Close()
	}

	var checker engine.PlanChecker
	if opts.check || len(opts.policyPaths) > 0 {
		eng, err := newPolicyEngine(ctx, opts.policyPaths)
		if err != nil {
			return err
		}
		checker = eng
	}

	resolveOnce := func(ctx context.Context) error {
		return resolveRun(ctx, cmd, resolver, folder, opts, store, checker)
	}

	if !opts.watch {
		return resolveOnce(ctx)
	}

	if err := resolveOnce(ctx); err != nil {
		log.Error().Err(err).Msg("Resolution failed")
	}

	watcher := config.NewWatcher(folder, componentLogger(ctx))
	return watcher.Run(ctx, func(path string) error {
		log.Info().Str("file", path).Msg("Descriptor changed, resolving again")
		resolver.Clear()
		return resolveOnce(ctx)
	})
}

// resolveRun performs one resolution run with its own run ID.
func resolveRun(ctx context.Context, cmd *cobra.Command, resolver *project.Resolver, folder string,
	opts *resolveOptions, store *stores.SQLiteStore, checker engine.PlanChecker) error {
	runID := uuid.NewString()
	ctx = telemetry.WithRunContext(ctx, runID, folder)
	ctx = project.ContextWithRunID(ctx, runID)

	plan, err := resolver.Resolve(ctx, folder, opts.configurations...)
	telemetry.EndRunContext(ctx, err)
	if err != nil {
		if store != nil {
			recordFailure(ctx, store, runID, folder, err)
		}
		return err
	}

	snapshot := plan.Snapshot()
	zl := telemetry.FromContext(ctx).WithProject(snapshot.Project, folder).Zerolog()
	zl.Debug().
		Int("configurations", len(snapshot.Configurations)).
		Msg("Plan resolved")

	if checker != nil {
		op := telemetry.StartOperation(ctx, "plan.check", telemetry.AttrRunID.String(runID))
		result, err := checker.CheckPlan(op.Ctx, snapshot)
		op.End(err)
		if err != nil {
			return err
		}
		printViolations(cmd.ErrOrStderr(), result)
		if !result.Allowed {
			return errPlanRejected
		}
	}

	if store != nil {
		metrics := metricsFrom(ctx)
		op := telemetry.StartOperation(ctx, "plan.store", telemetry.AttrRunID.String(runID))
		err := store.SavePlan(op.Ctx, snapshot)
		op.End(err)
		if err != nil {
			metrics.RecordPlanStored("failed")
			return fmt.Errorf("failed to store plan: %w", err)
		}
		metrics.RecordPlanStored("success")
	}

	return writeDocumentFile(output(cmd), opts.outFile, opts.format, snapshot)
}

// recordFailure stores a failed run. Storage errors are logged only, the
// resolution error is what the caller reports.
func recordFailure(ctx context.Context, store *stores.SQLiteStore, runID, folder string, cause error) {
	message := cause.Error()
	run := &stores.Run{
		ID:      runID,
		Project: filepath.Base(folder),
		Folder:  folder,
		Error:   &message,
	}
	if err := store.SaveFailure(ctx, run); err != nil {
		telemetry.FromContext(ctx).WithRunID(runID).WithError(err).Warn("Failed to record failed run")
		metricsFrom(ctx).RecordPlanStored("failed")
		return
	}
	metricsFrom(ctx).RecordPlanStored("success")
}
