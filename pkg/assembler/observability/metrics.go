package observability

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MetricsRecorder records assembler metrics.
// Use NewMetricsRecorder() for OTel metrics or NoopMetrics{} when disabled.
type MetricsRecorder interface {
	// RecordAssemble records an assembly run completion.
	RecordAssemble(ctx context.Context, success bool, duration time.Duration)

	// RecordRuleResolution records one rule resolution with its duration
	// and error status.
	RecordRuleResolution(ctx context.Context, rule string, duration time.Duration, err error)

	// RecordCacheAccess records hit and miss counts of one cache read.
	RecordCacheAccess(ctx context.Context, hits, misses int64)

	// RecordFetch records a cache-miss fetch against the data source.
	RecordFetch(ctx context.Context, duration time.Duration, ids int, err error)

	// RecordFeedWindow records one folded feed window.
	RecordFeedWindow(ctx context.Context, events int, err error)
}

// otelMetrics implements MetricsRecorder using OpenTelemetry.
type otelMetrics struct {
	runs            metric.Int64Counter
	runLatency      metric.Float64Histogram
	ruleResolutions metric.Int64Counter
	ruleLatency     metric.Float64Histogram
	ruleErrors      metric.Int64Counter
	cacheHits       metric.Int64Counter
	cacheMisses     metric.Int64Counter
	fetchLatency    metric.Float64Histogram
	feedWindows     metric.Int64Counter
	feedErrors      metric.Int64Counter
}

var (
	defaultMetrics     *otelMetrics
	defaultMetricsOnce sync.Once
	defaultMetricsErr  error
)

// getDefaultMetrics returns the default OTel metrics instance.
// Lazily initializes the metrics on first call.
func getDefaultMetrics() (*otelMetrics, error) {
	defaultMetricsOnce.Do(func() {
		defaultMetrics, defaultMetricsErr = newOtelMetrics()
	})
	return defaultMetrics, defaultMetricsErr
}

// newOtelMetrics creates a new OTel metrics instance.
func newOtelMetrics() (*otelMetrics, error) {
	meter := otel.Meter("assembler")

	runs, err := meter.Int64Counter("assembler.runs",
		metric.WithDescription("Number of assembly runs"),
	)
	if err != nil {
		return nil, err
	}

	runLatency, err := meter.Float64Histogram("assembler.run.latency_ms",
		metric.WithDescription("Assembly run latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	ruleResolutions, err := meter.Int64Counter("assembler.rule.resolutions",
		metric.WithDescription("Number of rule resolutions"),
	)
	if err != nil {
		return nil, err
	}

	ruleLatency, err := meter.Float64Histogram("assembler.rule.latency_ms",
		metric.WithDescription("Rule resolution latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	ruleErrors, err := meter.Int64Counter("assembler.rule.errors",
		metric.WithDescription("Number of rule resolution errors"),
	)
	if err != nil {
		return nil, err
	}

	cacheHits, err := meter.Int64Counter("assembler.cache.hits",
		metric.WithDescription("Number of cache hits"),
	)
	if err != nil {
		return nil, err
	}

	cacheMisses, err := meter.Int64Counter("assembler.cache.misses",
		metric.WithDescription("Number of cache misses"),
	)
	if err != nil {
		return nil, err
	}

	fetchLatency, err := meter.Float64Histogram("assembler.fetch.latency_ms",
		metric.WithDescription("Cache-miss fetch latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	feedWindows, err := meter.Int64Counter("assembler.feed.windows",
		metric.WithDescription("Number of folded feed windows"),
	)
	if err != nil {
		return nil, err
	}

	feedErrors, err := meter.Int64Counter("assembler.feed.errors",
		metric.WithDescription("Number of failed feed windows"),
	)
	if err != nil {
		return nil, err
	}

	return &otelMetrics{
		runs:            runs,
		runLatency:      runLatency,
		ruleResolutions: ruleResolutions,
		ruleLatency:     ruleLatency,
		ruleErrors:      ruleErrors,
		cacheHits:       cacheHits,
		cacheMisses:     cacheMisses,
		fetchLatency:    fetchLatency,
		feedWindows:     feedWindows,
		feedErrors:      feedErrors,
	}, nil
}

// NewMetricsRecorder returns a MetricsRecorder that uses OpenTelemetry.
// If metrics initialization fails, returns a no-op recorder.
//
// The recorder uses the global OTel meter provider. Configure the provider
// before calling this function:
//
//	import "go.opentelemetry.io/otel"
//	otel.SetMeterProvider(yourProvider)
func NewMetricsRecorder() MetricsRecorder {
	m, err := getDefaultMetrics()
	if err != nil {
		slog.Warn("metrics initialization failed, using no-op recorder",
			slog.String("error", err.Error()))
		return NoopMetrics{}
	}
	return m
}

// RecordAssemble records an assembly run.
func (m *otelMetrics) RecordAssemble(ctx context.Context, success bool, duration time.Duration) {
	attrs := []attribute.KeyValue{
		attribute.Bool("success", success),
	}
	m.runs.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.runLatency.Record(ctx, float64(duration.Milliseconds()), metric.WithAttributes(attrs...))
}

// RecordRuleResolution records one rule resolution.
func (m *otelMetrics) RecordRuleResolution(ctx context.Context, rule string, duration time.Duration, err error) {
	attrs := []attribute.KeyValue{
		attribute.String("rule", rule),
	}

	m.ruleResolutions.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.ruleLatency.Record(ctx, float64(duration.Milliseconds()), metric.WithAttributes(attrs...))

	if err != nil {
		m.ruleErrors.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
}

// RecordCacheAccess records cache hit and miss counts.
func (m *otelMetrics) RecordCacheAccess(ctx context.Context, hits, misses int64) {
	if hits > 0 {
		m.cacheHits.Add(ctx, hits)
	}
	if misses > 0 {
		m.cacheMisses.Add(ctx, misses)
	}
}

// RecordFetch records a cache-miss fetch.
func (m *otelMetrics) RecordFetch(ctx context.Context, duration time.Duration, ids int, err error) {
	attrs := []attribute.KeyValue{
		attribute.Int("ids", ids),
		attribute.Bool("success", err == nil),
	}
	m.fetchLatency.Record(ctx, float64(duration.Milliseconds()), metric.WithAttributes(attrs...))
}

// RecordFeedWindow records one folded feed window.
func (m *otelMetrics) RecordFeedWindow(ctx context.Context, events int, err error) {
	attrs := []attribute.KeyValue{
		attribute.Int("events", events),
	}
	m.feedWindows.Add(ctx, 1, metric.WithAttributes(attrs...))
	if err != nil {
		m.feedErrors.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
}
