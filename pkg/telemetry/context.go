package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/xbuild/xbuild/pkg/engine"
)

// Telemetry provides a unified telemetry interface combining logging, tracing and metrics.
type Telemetry struct {
	Logger  *Logger
	Tracer  *Tracer
	Metrics *Metrics
	Config  *Config
}

// telemetryContextKey is the context key for telemetry instances.
type telemetryContextKey struct{}

// NewTelemetry creates a new telemetry instance from configuration.
func NewTelemetry(cfg *Config) (*Telemetry, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// Initialize logger
	logger, err := NewLogger(cfg.Logging)
	if err != nil {
		return nil, err
	}

	// Initialize tracer
	tracer, err := NewTracer(cfg.Tracing, cfg.ServiceName, cfg.ServiceVersion, cfg.Environment)
	if err != nil {
		return nil, err
	}

	// Initialize metrics
	metrics, err := NewMetrics(cfg.Metrics)
	if err != nil {
		return nil, err
	}

	return &Telemetry{
		Logger:  logger,
		Tracer:  tracer,
		Metrics: metrics,
		Config:  cfg,
	}, nil
}

// WithContext adds the telemetry instance to the context.
func (t *Telemetry) WithContext(ctx context.Context) context.Context {
	ctx = context.WithValue(ctx, telemetryContextKey{}, t)
	ctx = t.Logger.WithContext(ctx)
	return ctx
}

// FromContext retrieves the telemetry instance from the context.
// If no telemetry is found, it returns nil.
func FromTelemetryContext(ctx context.Context) *Telemetry {
	if t, ok := ctx.Value(telemetryContextKey{}).(*Telemetry); ok {
		return t
	}
	return nil
}

// Shutdown gracefully shuts down all telemetry components.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	if err := t.Tracer.Shutdown(ctx); err != nil {
		return err
	}

	// Metrics server is not explicitly shut down here as it may need to continue
	// serving metrics until the very end of the application lifecycle

	return nil
}

// StartMetricsServer starts the metrics HTTP server if metrics are enabled.
func (t *Telemetry) StartMetricsServer() error {
	return t.Metrics.StartMetricsServer()
}

// Operation is one instrumented step of a run, such as a policy check or
// storing a plan.
type Operation struct {
	Ctx    context.Context
	Span   trace.Span
	Logger *Logger
	Timer  *Timer
}

// StartOperation opens a span named operation below the span of ctx. The
// operation logger extends the logger of ctx, so run fields are kept, and
// carries the trace and span IDs when tracing is enabled.
func StartOperation(ctx context.Context, operation string, attrs ...attribute.KeyValue) *Operation {
	op := &Operation{
		Ctx:    ctx,
		Logger: FromContext(ctx).WithField("operation", operation),
		Timer:  NewTimer(),
	}

	tel := FromTelemetryContext(ctx)
	if tel == nil {
		return op
	}

	op.Ctx, op.Span = tel.Tracer.StartSpan(ctx, operation, attrs...)
	if traceID := TraceID(op.Ctx); traceID != "" {
		op.Logger = op.Logger.WithFields(map[string]any{
			"trace_id": traceID,
			"span_id":  SpanID(op.Ctx),
		})
	}
	op.Ctx = op.Logger.WithContext(op.Ctx)
	return op
}

// End closes the operation span with the outcome of err and logs the
// duration.
func (op *Operation) End(err error) {
	duration := op.Timer.Duration()
	if op.Span != nil {
		if err != nil {
			RecordError(op.Span, err)
		} else {
			RecordSuccess(op.Span)
		}
		op.Span.End()
	}

	if err != nil {
		zl := op.Logger.WithError(err).Zerolog()
		zl.Debug().Dur("duration", duration).Msg("Operation failed")
		return
	}
	zl := op.Logger.Zerolog()
	zl.Debug().Dur("duration", duration).Msg("Operation completed")
}

// WithRunContext creates a context enriched with the telemetry of one
// resolution run.
func WithRunContext(ctx context.Context, runID, folder string) context.Context {
	tel := FromTelemetryContext(ctx)
	if tel == nil {
		return ctx
	}

	spanCtx, span := tel.Tracer.StartResolveSpan(ctx, runID, folder)

	logger := tel.Logger.WithRunID(runID).WithField("folder", folder)
	spanCtx = logger.WithContext(spanCtx)

	spanCtx = context.WithValue(spanCtx, runSpanKey{}, span)
	spanCtx = context.WithValue(spanCtx, runTimerKey{}, NewTimer())

	return spanCtx
}

// runSpanKey is the context key for run spans.
type runSpanKey struct{}

// runTimerKey is the context key for run timers.
type runTimerKey struct{}

// EndRunContext completes the run context, recording the load metric and
// the error class when the run failed.
func EndRunContext(ctx context.Context, err error) {
	tel := FromTelemetryContext(ctx)
	if tel == nil {
		return
	}

	if span, ok := ctx.Value(runSpanKey{}).(trace.Span); ok {
		if err != nil {
			RecordError(span, err)
			span.SetAttributes(
				AttrErrorClass.String(string(engine.ClassOf(err))),
				AttrErrorCode.String(engine.CodeOf(err)),
			)
		} else {
			RecordSuccess(span)
		}
		span.End()
	}

	var duration time.Duration
	if timer, ok := ctx.Value(runTimerKey{}).(*Timer); ok {
		duration = timer.Duration()
	}

	status := "success"
	if err != nil {
		status = "failed"
		tel.Metrics.RecordError(string(engine.ClassOf(err)), engine.CodeOf(err))
	}
	tel.Metrics.RecordProjectLoad(status, duration)
}
