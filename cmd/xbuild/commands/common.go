package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/xbuild/xbuild/pkg/engine"
	"github.com/xbuild/xbuild/pkg/policy"
	"github.com/xbuild/xbuild/pkg/project"
	"github.com/xbuild/xbuild/pkg/stores"
	"github.com/xbuild/xbuild/pkg/telemetry"
)

// projectFolder returns the absolute folder named by the optional argument.
func projectFolder(args []string) (string, error) {
	folder := "."
	if len(args) > 0 {
		folder = args[0]
	}
	abs, err := filepath.Abs(folder)
	if err != nil {
		return "", fmt.Errorf("failed to resolve folder %s: %w", folder, err)
	}
	return abs, nil
}

// componentLogger returns the telemetry logger of ctx, or the global one.
func componentLogger(ctx context.Context) zerolog.Logger {
	if tel := telemetry.FromTelemetryContext(ctx); tel != nil {
		return tel.Logger.Zerolog()
	}
	return log.Logger
}

func metricsFrom(ctx context.Context) *telemetry.Metrics {
	if tel := telemetry.FromTelemetryContext(ctx); tel != nil {
		return tel.Metrics
	}
	return nil
}

// newResolver creates a resolver wired to the command telemetry.
func newResolver(ctx context.Context) *project.Resolver {
	opts := []project.Option{project.WithMetrics(metricsFrom(ctx))}
	if tel := telemetry.FromTelemetryContext(ctx); tel != nil {
		opts = append(opts, project.WithTracer(tel.Tracer))
	}
	return project.NewResolver(componentLogger(ctx), opts...)
}

// newPolicyEngine creates a policy engine with the built-in policies and
// those found under paths.
func newPolicyEngine(ctx context.Context, paths []string) (*policy.Engine, error) {
	eng, err := policy.NewEngine(componentLogger(ctx))
	if err != nil {
		return nil, err
	}
	if m := metricsFrom(ctx); m != nil {
		eng.SetObserver(m)
	}
	if len(paths) > 0 {
		if err := eng.LoadPolicies(ctx, paths); err != nil {
			return nil, err
		}
	}
	return eng, nil
}

// openStore opens and migrates the plan store at path.
func openStore(ctx context.Context, path string) (*stores.SQLiteStore, error) {
	store, err := stores.NewSQLiteStore(stores.Config{Path: path})
	if err != nil {
		return nil, err
	}
	if err := store.Init(ctx); err != nil {
		return nil, err
	}
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, err
	}
	return store, nil
}

// writeDocument encodes v as JSON or YAML.
func writeDocument(w io.Writer, format string, v any) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unsupported format %q (must be 'json' or 'yaml')", format)
	}
}

// writeDocumentFile writes the document to path, or to w when path is empty.
func writeDocumentFile(w io.Writer, path, format string, v any) error {
	if path == "" {
		return writeDocument(w, format, v)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := writeDocument(f, format, v); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// printViolations writes one line per policy violation.
func printViolations(w io.Writer, result *engine.CheckResult) {
	for _, v := range result.Violations {
		fmt.Fprintf(w, "%-8s %-18s %-16s %s\n", v.Severity, v.Policy, v.Configuration, v.Message)
	}
	for _, warning := range result.Warnings {
		fmt.Fprintf(w, "%-8s %s\n", "warning", warning)
	}
}

// errPlanRejected is returned when a policy check rejects a plan.
var errPlanRejected = errors.New("plan rejected by policy")
