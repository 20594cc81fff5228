// Package observability provides production-grade observability features
// for assembler: structured logging, metrics, and distributed tracing.
//
// Features:
//   - Structured logging via slog (Go stdlib)
//   - Metrics via OpenTelemetry
//   - Tracing via OpenTelemetry
//
// All features are opt-in and have no-op implementations when disabled.
package observability

import (
	"log/slog"
	"time"
)

// EnrichLogger adds assembly context to a logger.
// Returns a new logger with run_id and rule fields.
//
// Example:
//
//	enriched := EnrichLogger(logger, "asm-123", "orders")
//	enriched.Info("doing work") // includes run_id, rule
func EnrichLogger(logger *slog.Logger, runID, rule string) *slog.Logger {
	if logger == nil {
		return nil
	}
	return logger.With(
		slog.String("run_id", runID),
		slog.String("rule", rule),
	)
}

// LogAssembleStart logs the start of an assembly run.
func LogAssembleStart(logger *slog.Logger, runID string, roots, rules int) {
	if logger == nil {
		return
	}
	logger.Info("assembly starting",
		slog.String("run_id", runID),
		slog.Int("roots", roots),
		slog.Int("rules", rules),
	)
}

// LogAssembleComplete logs successful assembly completion.
func LogAssembleComplete(logger *slog.Logger, runID string, durationMs float64) {
	if logger == nil {
		return
	}
	logger.Info("assembly completed",
		slog.String("run_id", runID),
		slog.Float64("duration_ms", durationMs),
	)
}

// LogAssembleError logs assembly failure.
func LogAssembleError(logger *slog.Logger, runID string, err error, durationMs float64) {
	if logger == nil {
		return
	}
	logger.Error("assembly failed",
		slog.String("run_id", runID),
		slog.String("error", err.Error()),
		slog.Float64("duration_ms", durationMs),
	)
}

// LogRuleStart logs rule resolution start.
func LogRuleStart(logger *slog.Logger, rule string, ids int) {
	if logger == nil {
		return
	}
	logger.Debug("rule resolving",
		slog.String("rule", rule),
		slog.Int("ids", ids),
	)
}

// LogRuleComplete logs successful rule resolution.
func LogRuleComplete(logger *slog.Logger, rule string, durationMs float64) {
	if logger == nil {
		return
	}
	logger.Debug("rule resolved",
		slog.String("rule", rule),
		slog.Float64("duration_ms", durationMs),
	)
}

// LogRuleError logs rule resolution failure.
func LogRuleError(logger *slog.Logger, rule string, err error) {
	if logger == nil {
		return
	}
	logger.Error("rule failed",
		slog.String("rule", rule),
		slog.String("error", err.Error()),
	)
}

// LogCacheFetch logs a cache-miss fetch against the data source.
func LogCacheFetch(logger *slog.Logger, ids int, durationMs float64, err error) {
	if logger == nil {
		return
	}
	if err != nil {
		logger.Warn("cache fetch failed",
			slog.Int("ids", ids),
			slog.Float64("duration_ms", durationMs),
			slog.String("error", err.Error()),
		)
		return
	}
	logger.Debug("cache fetch completed",
		slog.Int("ids", ids),
		slog.Float64("duration_ms", durationMs),
	)
}

// LogFeedStart logs feed startup.
func LogFeedStart(logger *slog.Logger, feedID string, maxEvents int, maxAge time.Duration) {
	if logger == nil {
		return
	}
	logger.Info("feed starting",
		slog.String("feed_id", feedID),
		slog.Int("max_events", maxEvents),
		slog.Duration("max_age", maxAge),
	)
}

// LogFeedStop logs feed shutdown.
func LogFeedStop(logger *slog.Logger, feedID string) {
	if logger == nil {
		return
	}
	logger.Info("feed stopped",
		slog.String("feed_id", feedID),
	)
}

// LogWindowApplied logs a successfully folded event window.
func LogWindowApplied(logger *slog.Logger, feedID string, events int, duration time.Duration) {
	if logger == nil {
		return
	}
	logger.Debug("window applied",
		slog.String("feed_id", feedID),
		slog.Int("events", events),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)
}

// LogFeedError logs a failed window fold. terminal reports whether the
// failure stops the feed.
func LogFeedError(logger *slog.Logger, feedID string, err error, terminal bool) {
	if logger == nil {
		return
	}
	if terminal {
		logger.Error("feed terminated",
			slog.String("feed_id", feedID),
			slog.String("error", err.Error()),
		)
		return
	}
	logger.Warn("window failed",
		slog.String("feed_id", feedID),
		slog.String("error", err.Error()),
	)
}

// TimedOperation measures the duration of an operation.
// Returns a function that, when called, returns the elapsed time in milliseconds.
//
// Example:
//
//	done := TimedOperation()
//	// ... do work ...
//	durationMs := done()
func TimedOperation() func() float64 {
	start := time.Now()
	return func() float64 {
		return float64(time.Since(start).Milliseconds())
	}
}
