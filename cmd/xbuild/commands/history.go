package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newHistoryCommand() *cobra.Command {
	var (
		storePath   string
		projectName string
		toolchain   string
		limit       int
		offset      int
		format      string
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show stored resolution runs",
		Long: `Show the resolution runs recorded with 'xbuild resolve --store'.

With --toolchain the configurations resolved with that toolchain are listed
instead of the runs.`,
		Example: `  # Last runs of every project
  xbuild history --store xbuild.db

  # Runs of one project
  xbuild history --store xbuild.db --project blinky --limit 5

  # Configurations built with a toolchain
  xbuild history --store xbuild.db --toolchain arm-none-eabi-gcc`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			store, err := openStore(ctx, storePath)
			if err != nil {
				return err
			}
			defer store.Close()

			if toolchain != "" {
				records, err := store.FindByToolchain(ctx, toolchain, limit)
				if err != nil {
					return err
				}
				if format != "text" {
					return writeDocument(output(cmd), format, records)
				}
				for _, r := range records {
					fmt.Fprintf(output(cmd), "%s  %-16s %-12s %-12s %s\n", r.RunID, r.Name, r.Target, r.Tool, r.Artefact)
				}
				return nil
			}

			runs, err := store.ListRuns(ctx, projectName, limit, offset)
			if err != nil {
				return err
			}
			if format != "text" {
				return writeDocument(output(cmd), format, runs)
			}
			for _, run := range runs {
				line := fmt.Sprintf("%s  %s  %-9s %s", run.ID, run.ResolvedAt.Local().Format(time.DateTime), run.Status, run.Project)
				if run.Error != nil {
					line += ": " + *run.Error
				} else if configs, err := store.ListConfigurations(ctx, run.ID); err == nil {
					line += fmt.Sprintf(" (%d configurations)", len(configs))
				}
				fmt.Fprintln(output(cmd), line)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&storePath, "store", "xbuild.db", "SQLite database recording resolved plans")
	cmd.Flags().StringVar(&projectName, "project", "", "show only runs of this project")
	cmd.Flags().StringVar(&toolchain, "toolchain", "", "list configurations resolved with this toolchain")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum number of entries")
	cmd.Flags().IntVar(&offset, "offset", 0, "number of runs to skip")
	cmd.Flags().StringVarP(&format, "format", "f", "text", "output format (text, json, yaml)")

	return cmd
}
