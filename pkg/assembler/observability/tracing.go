package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Tracer is the assembler tracer instance.
// Uses the global OTel tracer provider.
var tracer = otel.Tracer("assembler")

// SpanManager handles trace span lifecycle.
// Use NewSpanManager() for OTel tracing or NoopSpanManager{} when disabled.
type SpanManager interface {
	// StartAssembleSpan starts a span for the entire assembly run.
	// Returns the context with span and the span itself.
	StartAssembleSpan(ctx context.Context, runID string, roots int) (context.Context, trace.Span)

	// StartRuleSpan starts a span for one rule resolution.
	// The rule span should be a child of the assembly span.
	StartRuleSpan(ctx context.Context, rule string) (context.Context, trace.Span)

	// EndSpanWithError completes a span, optionally recording an error.
	EndSpanWithError(span trace.Span, err error)

	// AddSpanEvent adds an event to the current span in context.
	AddSpanEvent(ctx context.Context, name string, attrs ...attribute.KeyValue)
}

// otelSpanManager implements SpanManager using OpenTelemetry.
type otelSpanManager struct{}

// NewSpanManager returns a SpanManager that uses OpenTelemetry.
//
// The span manager uses the global OTel tracer provider. Configure the provider
// before calling this function:
//
//	import "go.opentelemetry.io/otel"
//	otel.SetTracerProvider(yourProvider)
func NewSpanManager() SpanManager {
	return &otelSpanManager{}
}

// StartAssembleSpan starts a span for the entire assembly run.
func (m *otelSpanManager) StartAssembleSpan(ctx context.Context, runID string, roots int) (context.Context, trace.Span) {
	return tracer.Start(ctx, "assembler.assemble",
		trace.WithAttributes(
			attribute.String("run.id", runID),
			attribute.Int("roots", roots),
		),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// StartRuleSpan starts a span for one rule resolution.
func (m *otelSpanManager) StartRuleSpan(ctx context.Context, rule string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "assembler.rule."+rule,
		trace.WithAttributes(
			attribute.String("rule", rule),
		),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// EndSpanWithError completes a span, optionally recording an error.
func (m *otelSpanManager) EndSpanWithError(span trace.Span, err error) {
	if span == nil {
		return
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// AddSpanEvent adds an event to the current span.
func (m *otelSpanManager) AddSpanEvent(ctx context.Context, name string, attrs ...attribute.KeyValue) {
	span := trace.SpanFromContext(ctx)
	if span == nil || !span.IsRecording() {
		return
	}
	span.AddEvent(name, trace.WithAttributes(attrs...))
}
