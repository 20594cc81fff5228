package assembler

import (
	"fmt"
	"log/slog"

	"github.com/randalmurphal/assembler/pkg/assembler/observability"
)

// Config describes a composition: how to extract correlation ids from root
// entities, which secondary sources to resolve, and how to combine the
// results into the composite type C.
type Config[T any, ID comparable, C any] struct {
	// IDFor extracts the correlation id from a root entity. Required.
	IDFor func(T) ID

	// Rules are the secondary sources, resolved concurrently per Assemble
	// call. Required, at least one.
	Rules []Rule[T, ID]

	// Aggregate combines one root entity with its resolved values into a
	// composite. values[i] holds the contribution of Rules[i]: the
	// sub-entity for a one-to-one rule, the sub-entity slice for a
	// one-to-many rule. Required.
	Aggregate func(root T, values []any) (C, error)

	// MaxConcurrency limits how many rules resolve simultaneously.
	// 0 = unlimited (all rules start immediately).
	MaxConcurrency int
}

// Assembler executes a composition. Immutable after New, safe for
// concurrent use.
type Assembler[T any, ID comparable, C any] struct {
	cfg     Config[T, ID, C]
	logger  *slog.Logger
	metrics observability.MetricsRecorder
	spans   observability.SpanManager
}

// engineOptions holds the observability wiring of an Assembler.
type engineOptions struct {
	logger  *slog.Logger
	metrics observability.MetricsRecorder
	spans   observability.SpanManager
}

// Option configures an Assembler.
type Option func(*engineOptions)

// WithLogger sets the structured logger. Default: slog.Default().
// A nil logger disables logging.
func WithLogger(logger *slog.Logger) Option {
	return func(o *engineOptions) {
		o.logger = logger
	}
}

// WithMetrics records assembly and rule metrics to the given recorder.
// Default: no-op.
func WithMetrics(recorder observability.MetricsRecorder) Option {
	return func(o *engineOptions) {
		if recorder != nil {
			o.metrics = recorder
		}
	}
}

// WithSpanManager emits trace spans for assemblies and rule resolutions.
// Default: no-op.
func WithSpanManager(spans observability.SpanManager) Option {
	return func(o *engineOptions) {
		if spans != nil {
			o.spans = spans
		}
	}
}

// New validates cfg and returns an Assembler. Configuration defects
// surface here, not at Assemble time:
//
//   - nil IDFor: ErrNilIDExtractor
//   - nil Aggregate: ErrNilAggregator
//   - no rules: ErrNoRules
//   - a nil or misbuilt rule: the defect wrapped with the rule position
func New[T any, ID comparable, C any](cfg Config[T, ID, C], opts ...Option) (*Assembler[T, ID, C], error) {
	if cfg.IDFor == nil {
		return nil, ErrNilIDExtractor
	}
	if cfg.Aggregate == nil {
		return nil, ErrNilAggregator
	}
	if len(cfg.Rules) == 0 {
		return nil, ErrNoRules
	}
	for i, r := range cfg.Rules {
		if r == nil {
			return nil, fmt.Errorf("rule %d: %w", i, ErrNilRule)
		}
		if err := r.validate(); err != nil {
			return nil, fmt.Errorf("rule %d (%s): %w", i, r.Name(), err)
		}
	}

	options := engineOptions{
		logger:  slog.Default(),
		metrics: observability.NoopMetrics{},
		spans:   observability.NoopSpanManager{},
	}
	for _, opt := range opts {
		opt(&options)
	}

	// Defensive copy so later mutation of cfg.Rules cannot reach the
	// running engine.
	rules := make([]Rule[T, ID], len(cfg.Rules))
	copy(rules, cfg.Rules)
	cfg.Rules = rules

	return &Assembler[T, ID, C]{
		cfg:     cfg,
		logger:  options.logger,
		metrics: options.metrics,
		spans:   options.spans,
	}, nil
}

// Rules returns the names of the configured rules, in position order.
func (a *Assembler[T, ID, C]) Rules() []string {
	names := make([]string, len(a.cfg.Rules))
	for i, r := range a.cfg.Rules {
		names[i] = r.Name()
	}
	return names
}
