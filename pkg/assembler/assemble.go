package assembler

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/randalmurphal/assembler/pkg/assembler/observability"
)

// ruleResult carries one rule's resolution back to the collector.
type ruleResult[ID comparable] struct {
	index  int
	values map[ID]any
	err    error
}

// Assemble builds one composite per root entity, in input order.
//
// Correlation ids are extracted once and deduplicated; every rule resolves
// against the same id set, concurrently, each invoking its query function at
// most once. The first rule failure fails the call with a *RuleError and no
// composite slice is returned. An empty roots slice returns an empty slice
// without resolving any rule.
func (a *Assembler[T, ID, C]) Assemble(ctx context.Context, roots []T) ([]C, error) {
	runID := "asm-" + uuid.New().String()[:8]
	start := time.Now()

	ctx, span := a.spans.StartAssembleSpan(ctx, runID, len(roots))
	observability.LogAssembleStart(a.logger, runID, len(roots), len(a.cfg.Rules))

	composites, err := a.assemble(ctx, roots)

	duration := time.Since(start)
	a.metrics.RecordAssemble(ctx, err == nil, duration)
	a.spans.EndSpanWithError(span, err)
	if err != nil {
		observability.LogAssembleError(a.logger, runID, err, float64(duration.Milliseconds()))
		return nil, err
	}
	observability.LogAssembleComplete(a.logger, runID, float64(duration.Milliseconds()))
	return composites, nil
}

func (a *Assembler[T, ID, C]) assemble(ctx context.Context, roots []T) ([]C, error) {
	if len(roots) == 0 {
		return []C{}, nil
	}

	// One id per root for the zip step, deduplicated set for the rules.
	rootIDs := make([]ID, len(roots))
	seen := make(map[ID]struct{}, len(roots))
	ids := make([]ID, 0, len(roots))
	for i, root := range roots {
		id := a.cfg.IDFor(root)
		rootIDs[i] = id
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}

	resolved, err := a.resolveRules(ctx, ids)
	if err != nil {
		return nil, err
	}

	composites := make([]C, len(roots))
	for i, root := range roots {
		values := make([]any, len(a.cfg.Rules))
		for j := range a.cfg.Rules {
			values[j] = resolved[j][rootIDs[i]]
		}
		c, err := a.cfg.Aggregate(root, values)
		if err != nil {
			return nil, &AggregateError{Index: i, Err: err}
		}
		composites[i] = c
	}
	return composites, nil
}

// resolveRules runs every rule against ids concurrently and returns their
// values indexed by rule position.
func (a *Assembler[T, ID, C]) resolveRules(ctx context.Context, ids []ID) ([]map[ID]any, error) {
	var sem chan struct{}
	if a.cfg.MaxConcurrency > 0 {
		sem = make(chan struct{}, a.cfg.MaxConcurrency)
	}

	results := make(chan ruleResult[ID], len(a.cfg.Rules))
	var wg sync.WaitGroup

	for i, r := range a.cfg.Rules {
		wg.Add(1)
		go func(idx int, rule Rule[T, ID]) {
			defer wg.Done()

			if sem != nil {
				select {
				case sem <- struct{}{}:
					defer func() { <-sem }()
				case <-ctx.Done():
					results <- ruleResult[ID]{index: idx, err: &RuleError{Rule: rule.Name(), Err: ctx.Err()}}
					return
				}
			}

			observability.LogRuleStart(a.logger, rule.Name(), len(ids))
			rctx, rspan := a.spans.StartRuleSpan(ctx, rule.Name())
			start := time.Now()

			values, err := rule.resolve(rctx, ids)

			duration := time.Since(start)
			a.metrics.RecordRuleResolution(rctx, rule.Name(), duration, err)
			a.spans.EndSpanWithError(rspan, err)

			if err != nil {
				observability.LogRuleError(a.logger, rule.Name(), err)
				results <- ruleResult[ID]{index: idx, err: &RuleError{Rule: rule.Name(), Err: err}}
				return
			}
			observability.LogRuleComplete(a.logger, rule.Name(), float64(duration.Milliseconds()))
			results <- ruleResult[ID]{index: idx, values: values}
		}(i, r)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	resolved := make([]map[ID]any, len(a.cfg.Rules))
	var firstErr error
	for res := range results {
		if res.err != nil {
			if firstErr == nil {
				firstErr = res.err
			}
			continue
		}
		resolved[res.index] = res.values
	}
	if firstErr != nil {
		return nil, firstErr
	}
	return resolved, nil
}
