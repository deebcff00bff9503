package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/xbuild/xbuild/pkg/toolchain"
)

type toolView struct {
	Name      string   `json:"name" yaml:"name"`
	Type      string   `json:"type" yaml:"type"`
	Command   string   `json:"command" yaml:"command"`
	Languages []string `json:"languages,omitempty" yaml:"languages,omitempty"`
}

type toolchainView struct {
	Name     string     `json:"name" yaml:"name"`
	Ancestry []string   `json:"ancestry" yaml:"ancestry"`
	Tools    []toolView `json:"tools" yaml:"tools"`
}

func newToolchainsCommand() *cobra.Command {
	var (
		builtin bool
		format  string
	)

	cmd := &cobra.Command{
		Use:   "toolchains [folder]",
		Short: "List available toolchains",
		Long: `List the built-in toolchains together with those declared by a project,
showing each toolchain's parent chain and tools.`,
		Example: `  # Toolchains visible to the project in the current folder
  xbuild toolchains

  # Built-in toolchains only, as JSON
  xbuild toolchains --builtin --format json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			var registry *toolchain.Registry
			if builtin {
				registry = toolchain.NewRegistry(componentLogger(ctx))
				if err := registry.LoadAssets(); err != nil {
					return err
				}
			} else {
				folder, err := projectFolder(args)
				if err != nil {
					return err
				}
				resolver := newResolver(ctx)
				if _, err := resolver.Load(ctx, folder); err != nil {
					return err
				}
				registry = resolver.Registry()
			}

			views := make([]toolchainView, 0)
			for _, name := range registry.Names() {
				tc, err := registry.Retrieve(name)
				if err != nil {
					return err
				}
				view := toolchainView{Name: tc.Name, Ancestry: tc.Ancestry(), Tools: []toolView{}}
				for _, tool := range tc.Tools() {
					view.Tools = append(view.Tools, toolView{
						Name:      tool.Name,
						Type:      string(tool.Type),
						Command:   tool.FullCommandName(),
						Languages: tool.Languages,
					})
				}
				views = append(views, view)
			}

			if format != "text" {
				return writeDocument(output(cmd), format, views)
			}

			for _, v := range views {
				fmt.Fprintf(output(cmd), "%s (%s)\n", v.Name, strings.Join(v.Ancestry, " -> "))
				for _, t := range v.Tools {
					fmt.Fprintf(output(cmd), "  %-12s %-10s %s\n", t.Name, t.Type, t.Command)
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&builtin, "builtin", false, "list only the built-in toolchains")
	cmd.Flags().StringVarP(&format, "format", "f", "text", "output format (text, json, yaml)")

	return cmd
}
