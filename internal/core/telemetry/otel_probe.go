package telemetry

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jefferypippitt/essential-todo/internal/core/port"
)

const tracerName = "essential-todo"

// OTELProbe implements port.Telemetry with OpenTelemetry spans, slog records
// and the Prometheus collectors in AppMetrics. metrics may be nil.
type OTELProbe struct {
	tracer  trace.Tracer
	logger  *slog.Logger
	metrics *AppMetrics
}

func NewOTELProbe(logger *slog.Logger, metrics *AppMetrics) port.Telemetry {
	if logger == nil {
		logger = slog.Default()
	}

	return &OTELProbe{
		tracer:  otel.Tracer(tracerName),
		logger:  logger,
		metrics: metrics,
	}
}

type otelSpan struct {
	trace.Span
}

func (s otelSpan) End() {
	s.Span.End()
}

func (s otelSpan) SetAttributes(attrs map[string]interface{}) {
	s.Span.SetAttributes(toAttributes(attrs)...)
}

func (s otelSpan) SetStatus(code string, message string) {
	s.Span.SetStatus(statusCode(code), message)
}

func (s otelSpan) RecordError(err error) {
	s.Span.RecordError(err)
}

func statusCode(code string) codes.Code {
	switch code {
	case "ok":
		return codes.Ok
	case "error":
		return codes.Error
	}

	return codes.Unset
}

func toAttributes(attrs map[string]interface{}) []attribute.KeyValue {
	kv := make([]attribute.KeyValue, 0, len(attrs))

	for key, value := range attrs {
		var attr attribute.KeyValue

		switch v := value.(type) {
		case string:
			attr = attribute.String(key, v)
		case int:
			attr = attribute.Int(key, v)
		case int64:
			attr = attribute.Int64(key, v)
		case float64:
			attr = attribute.Float64(key, v)
		case bool:
			attr = attribute.Bool(key, v)
		case []string:
			attr = attribute.StringSlice(key, v)
		default:
			attr = attribute.String(key, fmt.Sprint(v))
		}

		kv = append(kv, attr)
	}

	return kv
}

func (p *OTELProbe) start(ctx context.Context, component, scope, operation string, attrs map[string]interface{}) (context.Context, port.Span) {
	base := []attribute.KeyValue{
		attribute.String("component", component),
		attribute.String(component+".scope", scope),
		attribute.String(component+".operation", operation),
	}

	ctx, span := p.tracer.Start(ctx, component+"."+scope+"."+operation,
		trace.WithAttributes(append(base, toAttributes(attrs)...)...))

	return ctx, otelSpan{Span: span}
}

// finish annotates the span already on ctx with the outcome of an operation
// and logs failures.
func (p *OTELProbe) finish(ctx context.Context, component, scope, operation string, duration time.Duration, err error) {
	span := trace.SpanFromContext(ctx)
	span.SetAttributes(
		attribute.Int64("duration_ms", duration.Milliseconds()),
		attribute.Bool("failed", err != nil),
	)

	if err == nil {
		span.SetStatus(codes.Ok, "")
		return
	}

	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())

	p.logger.ErrorContext(ctx, component+" operation failed",
		slog.String("scope", scope),
		slog.String("operation", operation),
		slog.Duration("duration", duration),
		slog.Any("error", err))
}

func (p *OTELProbe) StartRepositorySpan(ctx context.Context, operation string, entity string, attrs map[string]interface{}) (context.Context, port.Span) {
	return p.start(ctx, "repository", entity, operation, attrs)
}

func (p *OTELProbe) StartServiceSpan(ctx context.Context, service string, operation string, attrs map[string]interface{}) (context.Context, port.Span) {
	return p.start(ctx, "service", service, operation, attrs)
}

func (p *OTELProbe) RecordRepositoryOperation(ctx context.Context, operation string, entity string, duration time.Duration, err error) {
	if p.metrics != nil {
		p.metrics.RecordDatabaseOperation(ctx, operation, entity)
	}

	p.finish(ctx, "repository", entity, operation, duration, err)
}

// RecordRepositoryQuery logs the SQL at debug level. Bound values are
// reduced to their Go types.
func (p *OTELProbe) RecordRepositoryQuery(ctx context.Context, operation string, entity string, query string, args []interface{}) {
	if !p.logger.Enabled(ctx, slog.LevelDebug) {
		return
	}

	types := make([]string, len(args))
	for i, arg := range args {
		types[i] = fmt.Sprintf("%T", arg)
	}

	p.logger.DebugContext(ctx, "repository query",
		slog.String("entity", entity),
		slog.String("operation", operation),
		slog.String("query", query),
		slog.Any("arg_types", types))
}

func (p *OTELProbe) RecordServiceOperation(ctx context.Context, service string, operation string, duration time.Duration, err error) {
	if p.metrics != nil {
		p.metrics.RecordTodoOperation(ctx, operation, err)
	}

	p.finish(ctx, "service", service, operation, duration, err)
}

// RecordBusinessEvent adds a span event named entity.event. Reorders also
// feed the shifted-rows histogram.
func (p *OTELProbe) RecordBusinessEvent(ctx context.Context, event string, entity string, entityID string, metadata map[string]interface{}) {
	attrs := append([]attribute.KeyValue{
		attribute.String("entity", entity),
		attribute.String("entity_id", entityID),
	}, toAttributes(metadata)...)

	trace.SpanFromContext(ctx).AddEvent(entity+"."+event, trace.WithAttributes(attrs...))

	if shifted, ok := metadata["shifted_rows"].(int64); ok && event == "reordered" && p.metrics != nil {
		p.metrics.RecordReorderShift(ctx, shifted)
	}

	p.logger.InfoContext(ctx, entity+" "+event,
		slog.String("entity_id", entityID),
		slog.Any("metadata", metadata))
}

func (p *OTELProbe) RecordError(ctx context.Context, operation string, err error, metadata map[string]interface{}) {
	p.logger.ErrorContext(ctx, "operation error",
		slog.String("operation", operation),
		slog.Any("error", err),
		slog.Any("metadata", metadata))
}
