package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/xbuild/xbuild/pkg/config"
)

func newValidateCommand() *cobra.Command {
	var (
		strict bool
		schema string
	)

	cmd := &cobra.Command{
		Use:   "validate [folder]",
		Short: "Validate project and package descriptors",
		Long: `Validate the project descriptor and the package.json of a folder.

This command checks:
  - Descriptor syntax and schemaVersion
  - Conformance to the built-in CUE schemas
  - Unrecognized fields (errors with --strict)`,
		Example: `  # Validate the project in the current folder
  xbuild validate

  # Fail on unrecognized fields
  xbuild validate --strict ./blinky

  # Validate against an additional CUE schema defining #Project
  xbuild validate --schema ./company.cue`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			folder, err := projectFolder(args)
			if err != nil {
				return err
			}

			registry := config.NewSchemaRegistry()
			if schema != "" {
				source, err := os.ReadFile(schema)
				if err != nil {
					return fmt.Errorf("failed to read schema: %w", err)
				}
				if err := registry.RegisterSchema("custom", "#Project", string(source)); err != nil {
					return err
				}
			}

			parser := config.NewParser(config.NewFileCache(), componentLogger(ctx))
			pd, err := parser.LoadProject(folder)
			if err != nil {
				return err
			}

			var problems []config.ValidationError
			errs, err := registry.ValidateProject(ctx, pd)
			if err != nil {
				return err
			}
			problems = append(problems, errs...)

			if schema != "" {
				errs, err := registry.Validate(ctx, "custom", pd.Raw)
				if err != nil {
					return err
				}
				for i := range errs {
					if errs[i].File == "" {
						errs[i].File = pd.Path
					}
				}
				problems = append(problems, errs...)
			}

			pkgPath := filepath.Join(folder, config.PackageFileName)
			if _, err := os.Stat(pkgPath); err == nil {
				doc, err := parser.Cache().ReadDocument(pkgPath)
				if err != nil {
					return err
				}
				errs, err := registry.ValidatePackage(ctx, doc)
				if err != nil {
					return err
				}
				problems = append(problems, errs...)
			}

			for _, field := range pd.Ignored {
				severity := "warning"
				if strict {
					severity = "error"
				}
				problems = append(problems, config.ValidationError{
					File:     pd.Path,
					Path:     field,
					Message:  "unrecognized field",
					Severity: severity,
				})
			}

			failed := 0
			for _, p := range problems {
				fmt.Fprintln(output(cmd), formatProblem(p))
				if p.Severity != "warning" && p.Severity != "info" {
					failed++
				}
			}

			if failed > 0 {
				return fmt.Errorf("validation failed with %d error(s)", failed)
			}

			log.Info().Str("descriptor", pd.Path).Msg("Descriptors are valid")
			return nil
		},
	}

	cmd.Flags().BoolVar(&strict, "strict", false, "treat unrecognized fields as errors")
	cmd.Flags().StringVar(&schema, "schema", "", "additional CUE schema file defining #Project")

	return cmd
}

func formatProblem(p config.ValidationError) string {
	location := p.File
	if p.Line > 0 {
		location = fmt.Sprintf("%s:%d:%d", p.File, p.Line, p.Column)
	}
	severity := p.Severity
	if severity == "" {
		severity = "error"
	}
	if p.Path != "" {
		return fmt.Sprintf("%s: %s: %s: %s", location, severity, p.Path, p.Message)
	}
	return fmt.Sprintf("%s: %s: %s", location, severity, p.Message)
}
