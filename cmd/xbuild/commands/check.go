package commands

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/xbuild/xbuild/pkg/engine"
	"github.com/xbuild/xbuild/pkg/project"
)

func newCheckCommand() *cobra.Command {
	var (
		configurations []string
		policyPaths    []string
		storePath      string
		latest         bool
		projectName    string
		format         string
		list           bool
	)

	cmd := &cobra.Command{
		Use:   "check [folder]",
		Short: "Check a build plan against policies",
		Long: `Check a build plan against the built-in and user supplied Rego policies.

The plan is resolved from the project folder, or read from the plan store
with --latest. Violations of severity "error" make the command fail.`,
		Example: `  # Check every configuration of the project
  xbuild check

  # Add organization policies
  xbuild check --policy ./policies

  # Check the last stored plan of a project
  xbuild check --store xbuild.db --latest --project blinky

  # List the available policies
  xbuild check --list --policy ./policies`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			eng, err := newPolicyEngine(ctx, policyPaths)
			if err != nil {
				return err
			}

			if list {
				for _, p := range eng.ListPolicies() {
					fmt.Fprintf(output(cmd), "%-20s %-8s %s\n", p.Name, p.Severity, p.Description)
				}
				return nil
			}

			var snapshot *engine.PlanSnapshot
			if latest {
				if storePath == "" {
					return fmt.Errorf("--latest requires --store")
				}
				store, err := openStore(ctx, storePath)
				if err != nil {
					return err
				}
				defer store.Close()

				name := projectName
				if name == "" {
					folder, err := projectFolder(args)
					if err != nil {
						return err
					}
					p, err := newResolver(ctx).Load(ctx, folder)
					if err != nil {
						return err
					}
					name = p.Name
				}

				snapshot, err = store.LatestPlan(ctx, name)
				if err != nil {
					return err
				}
			} else {
				folder, err := projectFolder(args)
				if err != nil {
					return err
				}
				ctx = project.ContextWithRunID(ctx, uuid.NewString())
				plan, err := newResolver(ctx).Resolve(ctx, folder, configurations...)
				if err != nil {
					return err
				}
				snapshot = plan.Snapshot()
			}

			result, err := eng.CheckPlan(ctx, snapshot)
			if err != nil {
				return err
			}

			if format == "text" {
				printViolations(output(cmd), result)
				fmt.Fprintf(output(cmd), "%d violation(s), %d policies evaluated\n",
					len(result.Violations), len(result.EvaluatedPolicies))
			} else if err := writeDocument(output(cmd), format, result); err != nil {
				return err
			}

			if !result.Allowed {
				return errPlanRejected
			}
			return nil
		},
	}

	cmd.Flags().StringSliceVarP(&configurations, "configuration", "C", nil, "check only these configurations")
	cmd.Flags().StringSliceVar(&policyPaths, "policy", nil, "additional policy files or folders")
	cmd.Flags().StringVar(&storePath, "store", "", "SQLite database recording resolved plans")
	cmd.Flags().BoolVar(&latest, "latest", false, "check the latest stored plan instead of resolving")
	cmd.Flags().StringVar(&projectName, "project", "", "project name for --latest (default: read from the folder)")
	cmd.Flags().StringVarP(&format, "format", "f", "text", "output format (text, json, yaml)")
	cmd.Flags().BoolVar(&list, "list", false, "list policies and exit")

	return cmd
}
