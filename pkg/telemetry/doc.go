// Package telemetry provides observability instrumentation for xbuild.
//
// The telemetry package integrates structured logging (zerolog), distributed
// tracing (OpenTelemetry) and metrics (Prometheus) into a unified system for
// monitoring and debugging configuration resolution.
//
// # Usage
//
// Initialize telemetry at startup:
//
//	cfg := telemetry.DefaultConfig()
//	cfg.ServiceVersion = version
//
//	tel, err := telemetry.NewTelemetry(cfg)
//	if err != nil {
//	    return err
//	}
//	defer tel.Shutdown(context.Background())
//
//	ctx = tel.WithContext(ctx)
//
// # Structured Logging
//
//	logger := telemetry.FromContext(ctx)
//	logger = logger.WithProject("blinky", folder).WithConfiguration("debug")
//	logger.Debug("Resolving configuration")
//
// Packages that take a zerolog.Logger by value receive tel.Logger.Zerolog()
// and wrap it back with WrapLogger.
//
// # Distributed Tracing
//
// NewTracer installs the global tracer provider, so tracers obtained
// through GlobalTracer or otel.Tracer report to the configured exporter.
// Components that accept a *Tracer open their spans on tel.Tracer instead.
// StartOperation wraps one step of a run in a span and a logger carrying
// the trace and span IDs:
//
//	op := telemetry.StartOperation(ctx, "plan.store")
//	err := store.SavePlan(op.Ctx, snapshot)
//	op.End(err)
//
// Supported exporters:
//
//   - "stdout": print traces to stdout (development)
//   - "otlp": export via OTLP/gRPC
//   - "none": generate traces but do not export them
//
// # Metrics
//
// Metrics implements engine.CacheObserver and can be installed on the
// toolchain registry, the file cache and the dependency discoverer. All
// Record methods are safe on a nil or disabled Metrics.
//
// Key metrics exposed:
//
//   - xbuild_project_loads_total{status}
//   - xbuild_configurations_resolved_total{toolchain,status}
//   - xbuild_cache_lookups_total{cache,result}
//   - xbuild_discovered_packages
//   - xbuild_errors_by_class_total{class}
//   - xbuild_policy_violations_total{policy,severity}
//   - xbuild_plans_stored_total{status}
//
// # Run Context
//
//	ctx = telemetry.WithRunContext(ctx, runID, folder)
//	plan, err := resolver.Resolve(ctx, folder)
//	telemetry.EndRunContext(ctx, err)
package telemetry
