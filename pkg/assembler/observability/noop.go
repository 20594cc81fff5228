package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// NoopMetrics is a MetricsRecorder that does nothing.
// Use when metrics are disabled to avoid overhead.
type NoopMetrics struct{}

// Compile-time interface check.
var _ MetricsRecorder = NoopMetrics{}

// RecordAssemble does nothing.
func (NoopMetrics) RecordAssemble(_ context.Context, _ bool, _ time.Duration) {}

// RecordRuleResolution does nothing.
func (NoopMetrics) RecordRuleResolution(_ context.Context, _ string, _ time.Duration, _ error) {}

// RecordCacheAccess does nothing.
func (NoopMetrics) RecordCacheAccess(_ context.Context, _, _ int64) {}

// RecordFetch does nothing.
func (NoopMetrics) RecordFetch(_ context.Context, _ time.Duration, _ int, _ error) {}

// RecordFeedWindow does nothing.
func (NoopMetrics) RecordFeedWindow(_ context.Context, _ int, _ error) {}

// NoopSpanManager is a SpanManager that does nothing.
// Use when tracing is disabled to avoid overhead.
type NoopSpanManager struct{}

// Compile-time interface check.
var _ SpanManager = NoopSpanManager{}

// noopSpan is a span that does nothing.
// We use the OTel noop package for a proper no-op span implementation.
var noopSpan = noop.Span{}

// StartAssembleSpan returns the context unchanged and a no-op span.
func (NoopSpanManager) StartAssembleSpan(ctx context.Context, _ string, _ int) (context.Context, trace.Span) {
	return ctx, noopSpan
}

// StartRuleSpan returns the context unchanged and a no-op span.
func (NoopSpanManager) StartRuleSpan(ctx context.Context, _ string) (context.Context, trace.Span) {
	return ctx, noopSpan
}

// EndSpanWithError does nothing.
func (NoopSpanManager) EndSpanWithError(_ trace.Span, _ error) {}

// AddSpanEvent does nothing.
func (NoopSpanManager) AddSpanEvent(_ context.Context, _ string, _ ...attribute.KeyValue) {}
