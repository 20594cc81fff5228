package observability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// setupMetricsTest creates a test meter provider and returns a function to collect metrics.
func setupMetricsTest(t *testing.T) (*sdkmetric.ManualReader, func()) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	originalProvider := otel.GetMeterProvider()
	otel.SetMeterProvider(provider)

	cleanup := func() {
		otel.SetMeterProvider(originalProvider)
		if err := provider.Shutdown(context.Background()); err != nil {
			t.Logf("Error shutting down meter provider: %v", err)
		}
	}

	return reader, cleanup
}

// collectMetrics collects all metrics from the reader.
func collectMetrics(t *testing.T, reader *sdkmetric.ManualReader) *metricdata.ResourceMetrics {
	var rm metricdata.ResourceMetrics
	err := reader.Collect(context.Background(), &rm)
	require.NoError(t, err)
	return &rm
}

// findMetric finds a metric by name in the collected data.
func findMetric(rm *metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

func TestNewMetricsRecorder(t *testing.T) {
	_, cleanup := setupMetricsTest(t)
	defer cleanup()

	recorder := NewMetricsRecorder()
	require.NotNil(t, recorder)

	_, isNoop := recorder.(NoopMetrics)
	assert.False(t, isNoop, "Expected real metrics recorder, got noop")
}

func TestRecordRuleResolution(t *testing.T) {
	reader, cleanup := setupMetricsTest(t)
	defer cleanup()

	m, err := newOtelMetrics()
	require.NoError(t, err)

	ctx := context.Background()

	t.Run("records resolution count", func(t *testing.T) {
		m.RecordRuleResolution(ctx, "orders", 50*time.Millisecond, nil)

		rm := collectMetrics(t, reader)
		metric := findMetric(rm, "assembler.rule.resolutions")
		require.NotNil(t, metric)

		sum, ok := metric.Data.(metricdata.Sum[int64])
		require.True(t, ok, "Expected Sum type")
		require.NotEmpty(t, sum.DataPoints)

		found := false
		for _, dp := range sum.DataPoints {
			for _, attr := range dp.Attributes.ToSlice() {
				if attr.Key == "rule" && attr.Value.AsString() == "orders" {
					found = true
					assert.GreaterOrEqual(t, dp.Value, int64(1))
				}
			}
		}
		assert.True(t, found, "Expected to find datapoint for rule=orders")
	})

	t.Run("records latency", func(t *testing.T) {
		m.RecordRuleResolution(ctx, "billing", 100*time.Millisecond, nil)

		rm := collectMetrics(t, reader)
		metric := findMetric(rm, "assembler.rule.latency_ms")
		require.NotNil(t, metric)

		hist, ok := metric.Data.(metricdata.Histogram[float64])
		require.True(t, ok, "Expected Histogram type")
		require.NotEmpty(t, hist.DataPoints)
	})

	t.Run("records errors when present", func(t *testing.T) {
		m.RecordRuleResolution(ctx, "failing", 10*time.Millisecond, errors.New("rule failed"))

		rm := collectMetrics(t, reader)
		metric := findMetric(rm, "assembler.rule.errors")
		require.NotNil(t, metric)

		sum, ok := metric.Data.(metricdata.Sum[int64])
		require.True(t, ok, "Expected Sum type")
		require.NotEmpty(t, sum.DataPoints)
	})
}

func TestRecordAssemble(t *testing.T) {
	reader, cleanup := setupMetricsTest(t)
	defer cleanup()

	m, err := newOtelMetrics()
	require.NoError(t, err)

	ctx := context.Background()

	t.Run("records successful runs", func(t *testing.T) {
		m.RecordAssemble(ctx, true, 500*time.Millisecond)

		rm := collectMetrics(t, reader)
		metric := findMetric(rm, "assembler.runs")
		require.NotNil(t, metric)

		sum, ok := metric.Data.(metricdata.Sum[int64])
		require.True(t, ok)
		require.NotEmpty(t, sum.DataPoints)
	})

	t.Run("records run latency", func(t *testing.T) {
		m.RecordAssemble(ctx, false, 200*time.Millisecond)

		rm := collectMetrics(t, reader)
		metric := findMetric(rm, "assembler.run.latency_ms")
		require.NotNil(t, metric)

		hist, ok := metric.Data.(metricdata.Histogram[float64])
		require.True(t, ok, "Expected Histogram type")
		require.NotEmpty(t, hist.DataPoints)
	})
}

func TestRecordCacheAccess(t *testing.T) {
	reader, cleanup := setupMetricsTest(t)
	defer cleanup()

	m, err := newOtelMetrics()
	require.NoError(t, err)

	ctx := context.Background()
	m.RecordCacheAccess(ctx, 3, 2)

	rm := collectMetrics(t, reader)

	hits := findMetric(rm, "assembler.cache.hits")
	require.NotNil(t, hits)
	hitSum, ok := hits.Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.NotEmpty(t, hitSum.DataPoints)
	assert.Equal(t, int64(3), hitSum.DataPoints[0].Value)

	misses := findMetric(rm, "assembler.cache.misses")
	require.NotNil(t, misses)
	missSum, ok := misses.Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.NotEmpty(t, missSum.DataPoints)
	assert.Equal(t, int64(2), missSum.DataPoints[0].Value)
}

func TestRecordCacheAccessZeroCounts(t *testing.T) {
	reader, cleanup := setupMetricsTest(t)
	defer cleanup()

	m, err := newOtelMetrics()
	require.NoError(t, err)

	m.RecordCacheAccess(context.Background(), 0, 0)

	rm := collectMetrics(t, reader)
	assert.Nil(t, findMetric(rm, "assembler.cache.hits"))
	assert.Nil(t, findMetric(rm, "assembler.cache.misses"))
}

func TestRecordFeedWindow(t *testing.T) {
	reader, cleanup := setupMetricsTest(t)
	defer cleanup()

	m, err := newOtelMetrics()
	require.NoError(t, err)

	ctx := context.Background()

	m.RecordFeedWindow(ctx, 5, nil)
	m.RecordFeedWindow(ctx, 3, errors.New("fold failed"))

	rm := collectMetrics(t, reader)

	windows := findMetric(rm, "assembler.feed.windows")
	require.NotNil(t, windows)

	errs := findMetric(rm, "assembler.feed.errors")
	require.NotNil(t, errs)
}

func TestOtelMetrics_AllMethods(t *testing.T) {
	reader, cleanup := setupMetricsTest(t)
	defer cleanup()

	m, err := newOtelMetrics()
	require.NoError(t, err)
	require.NotNil(t, m)

	ctx := context.Background()

	m.RecordAssemble(ctx, true, 100*time.Millisecond)
	m.RecordRuleResolution(ctx, "orders", 25*time.Millisecond, nil)
	m.RecordRuleResolution(ctx, "billing", 10*time.Millisecond, errors.New("test"))
	m.RecordCacheAccess(ctx, 4, 1)
	m.RecordFetch(ctx, 30*time.Millisecond, 1, nil)
	m.RecordFeedWindow(ctx, 2, nil)

	rm := collectMetrics(t, reader)

	assert.NotNil(t, findMetric(rm, "assembler.runs"))
	assert.NotNil(t, findMetric(rm, "assembler.run.latency_ms"))
	assert.NotNil(t, findMetric(rm, "assembler.rule.resolutions"))
	assert.NotNil(t, findMetric(rm, "assembler.rule.latency_ms"))
	assert.NotNil(t, findMetric(rm, "assembler.rule.errors"))
	assert.NotNil(t, findMetric(rm, "assembler.cache.hits"))
	assert.NotNil(t, findMetric(rm, "assembler.cache.misses"))
	assert.NotNil(t, findMetric(rm, "assembler.fetch.latency_ms"))
	assert.NotNil(t, findMetric(rm, "assembler.feed.windows"))
}

func TestNewOtelMetrics_Creation(t *testing.T) {
	_, cleanup := setupMetricsTest(t)
	defer cleanup()

	m, err := newOtelMetrics()
	require.NoError(t, err)
	require.NotNil(t, m)

	assert.NotNil(t, m.runs)
	assert.NotNil(t, m.runLatency)
	assert.NotNil(t, m.ruleResolutions)
	assert.NotNil(t, m.ruleLatency)
	assert.NotNil(t, m.ruleErrors)
	assert.NotNil(t, m.cacheHits)
	assert.NotNil(t, m.cacheMisses)
	assert.NotNil(t, m.fetchLatency)
	assert.NotNil(t, m.feedWindows)
	assert.NotNil(t, m.feedErrors)
}
