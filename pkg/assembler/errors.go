package assembler

import (
	"errors"
	"fmt"
)

// Sentinel errors for composition configuration.
var (
	// ErrNilIDExtractor indicates Config.IDFor was nil.
	ErrNilIDExtractor = errors.New("id extractor cannot be nil")

	// ErrNilAggregator indicates Config.Aggregate was nil.
	ErrNilAggregator = errors.New("aggregator cannot be nil")

	// ErrNoRules indicates Config.Rules was empty.
	ErrNoRules = errors.New("at least one rule is required")

	// ErrNilRule indicates Config.Rules contained a nil entry.
	ErrNilRule = errors.New("rule cannot be nil")
)

// Sentinel errors for rule construction.
var (
	// ErrNilQuery indicates a rule was built without a query function.
	ErrNilQuery = errors.New("query function cannot be nil")

	// ErrNilCorrelation indicates a rule was built without a correlation
	// id extractor.
	ErrNilCorrelation = errors.New("correlation extractor cannot be nil")
)

// RuleError wraps a rule resolution failure with the rule's name.
// A failing rule fails the whole Assemble call.
type RuleError struct {
	// Rule is the name of the rule that failed.
	Rule string
	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *RuleError) Error() string {
	return fmt.Sprintf("rule %s: %v", e.Rule, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *RuleError) Unwrap() error {
	return e.Err
}

// AggregateError wraps a failure of the caller-supplied aggregator.
type AggregateError struct {
	// Index is the position of the root entity in the input slice.
	Index int
	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *AggregateError) Error() string {
	return fmt.Sprintf("aggregate entity %d: %v", e.Index, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *AggregateError) Unwrap() error {
	return e.Err
}
