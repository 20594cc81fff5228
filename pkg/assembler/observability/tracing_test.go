package observability

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// setupTracingTest installs an in-memory span exporter as the global tracer
// provider.
func setupTracingTest(t *testing.T) (*tracetest.SpanRecorder, func()) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	original := otel.GetTracerProvider()
	otel.SetTracerProvider(provider)

	cleanup := func() {
		otel.SetTracerProvider(original)
		if err := provider.Shutdown(context.Background()); err != nil {
			t.Logf("Error shutting down tracer provider: %v", err)
		}
	}
	return recorder, cleanup
}

func TestSpanManagerRecordsSpans(t *testing.T) {
	recorder, cleanup := setupTracingTest(t)
	defer cleanup()

	m := NewSpanManager()
	ctx := context.Background()

	runCtx, runSpan := m.StartAssembleSpan(ctx, "asm-1", 3)
	_, ruleSpan := m.StartRuleSpan(runCtx, "orders")

	m.AddSpanEvent(runCtx, "ids extracted", attribute.Int("count", 3))

	m.EndSpanWithError(ruleSpan, errors.New("rule failed"))
	m.EndSpanWithError(runSpan, nil)

	spans := recorder.Ended()
	require.Len(t, spans, 2)

	assert.Equal(t, "assembler.rule.orders", spans[0].Name())
	assert.Equal(t, codes.Error, spans[0].Status().Code)

	assert.Equal(t, "assembler.assemble", spans[1].Name())
	assert.Equal(t, codes.Ok, spans[1].Status().Code)
}

func TestEndSpanWithErrorNilSpan(t *testing.T) {
	m := NewSpanManager()
	m.EndSpanWithError(nil, errors.New("ignored"))
}
