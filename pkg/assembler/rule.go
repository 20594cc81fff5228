package assembler

import (
	"context"
	"errors"

	"github.com/randalmurphal/assembler/pkg/assembler/cache"
	"github.com/randalmurphal/assembler/pkg/assembler/query"
)

// Rule describes one secondary data source of a composition: a batch query
// keyed by correlation id, plus the cardinality of its contribution to each
// root entity.
//
// T is the root entity type the rule composes into; ID is the correlation id
// type. Build rules with OneToOne or OneToMany.
type Rule[T any, ID comparable] interface {
	// Name identifies the rule in logs, metrics, and errors.
	Name() string

	// validate reports a construction defect. Called once by New.
	validate() error

	// resolve runs the rule's query for the full id set and returns one
	// value per id: the sub-entity for one-to-one rules, the sub-entity
	// collection for one-to-many rules.
	resolve(ctx context.Context, ids []ID) (map[ID]any, error)
}

// querySpec holds what both rule cardinalities share: the query, the
// correlation extractor, and the optional cache and default.
type querySpec[ID comparable, R any] struct {
	name       string
	fn         query.Func[ID, R]
	correlate  func(R) ID
	defaultFor func(ID) []R
	cache      cache.Cache[ID, R]
}

// RuleOption configures a rule at construction.
type RuleOption[ID comparable, R any] func(*querySpec[ID, R])

// WithCache routes the rule's reads through c: ids already cached are
// served from memory, only the missing ids reach the query function, and
// fetched data is merged back into c.
//
// When c fails for a reason other than the query function itself, the rule
// falls back to querying the source directly.
func WithCache[ID comparable, R any](c cache.Cache[ID, R]) RuleOption[ID, R] {
	return func(s *querySpec[ID, R]) {
		s.cache = c
	}
}

// WithDefault supplies the sub-entities used for ids the query returned
// nothing for. Default: an empty collection, which a one-to-one rule
// renders as the zero value of R.
func WithDefault[ID comparable, R any](defaultFor func(ID) []R) RuleOption[ID, R] {
	return func(s *querySpec[ID, R]) {
		s.defaultFor = defaultFor
	}
}

func (s *querySpec[ID, R]) validate() error {
	if s.fn == nil {
		return ErrNilQuery
	}
	if s.correlate == nil {
		return ErrNilCorrelation
	}
	return nil
}

// groups resolves the id set to grouped sub-entities, through the cache
// when one is configured.
func (s *querySpec[ID, R]) groups(ctx context.Context, ids []ID) (map[ID][]R, error) {
	if s.cache == nil {
		return query.Resolve(ctx, ids, s.fn, s.correlate, s.defaultFor)
	}

	fetch := func(ctx context.Context, missing []ID) (map[ID][]R, error) {
		return query.Resolve(ctx, missing, s.fn, s.correlate, s.defaultFor)
	}

	grouped, err := s.cache.GetAll(ctx, ids, fetch)
	if err == nil {
		return grouped, nil
	}

	var qerr *query.Error
	if errors.As(err, &qerr) {
		// The data source itself failed; retrying without the cache
		// would hit the same source again.
		return nil, err
	}

	// Cache infrastructure failure: degrade to a direct query so a broken
	// cache costs performance, not correctness.
	return query.Resolve(ctx, ids, s.fn, s.correlate, s.defaultFor)
}

// oneToOne is a rule contributing a single sub-entity per root entity.
type oneToOne[T any, ID comparable, R any] struct {
	spec querySpec[ID, R]
}

// OneToOne builds a rule whose query returns at most one sub-entity per
// correlation id. Ids with no match resolve to the default, or the zero
// value of R when no default is configured. If the query returns several
// sub-entities for an id, the first wins.
//
// The root entity type T cannot be inferred and is given explicitly:
//
//	assembler.OneToOne[Customer]("billing", fetchAddresses, byCustomerID)
func OneToOne[T any, ID comparable, R any](
	name string,
	fn query.Func[ID, R],
	correlate func(R) ID,
	opts ...RuleOption[ID, R],
) Rule[T, ID] {
	spec := querySpec[ID, R]{name: name, fn: fn, correlate: correlate}
	for _, opt := range opts {
		opt(&spec)
	}
	return &oneToOne[T, ID, R]{spec: spec}
}

// Name implements Rule.
func (r *oneToOne[T, ID, R]) Name() string { return r.spec.name }

func (r *oneToOne[T, ID, R]) validate() error { return r.spec.validate() }

func (r *oneToOne[T, ID, R]) resolve(ctx context.Context, ids []ID) (map[ID]any, error) {
	grouped, err := r.spec.groups(ctx, ids)
	if err != nil {
		return nil, err
	}

	out := make(map[ID]any, len(ids))
	for _, id := range ids {
		if g := grouped[id]; len(g) > 0 {
			out[id] = g[0]
		} else {
			var zero R
			out[id] = zero
		}
	}
	return out, nil
}

// oneToMany is a rule contributing a sub-entity collection per root entity.
type oneToMany[T any, ID comparable, R any] struct {
	spec querySpec[ID, R]
}

// OneToMany builds a rule whose query returns any number of sub-entities
// per correlation id. Ids with no match resolve to the default, or an empty
// collection when no default is configured; callers never see a nil slice.
//
// The root entity type T cannot be inferred and is given explicitly:
//
//	assembler.OneToMany[Customer]("orders", fetchOrders, byCustomerID)
func OneToMany[T any, ID comparable, R any](
	name string,
	fn query.Func[ID, R],
	correlate func(R) ID,
	opts ...RuleOption[ID, R],
) Rule[T, ID] {
	spec := querySpec[ID, R]{name: name, fn: fn, correlate: correlate}
	for _, opt := range opts {
		opt(&spec)
	}
	return &oneToMany[T, ID, R]{spec: spec}
}

// Name implements Rule.
func (r *oneToMany[T, ID, R]) Name() string { return r.spec.name }

func (r *oneToMany[T, ID, R]) validate() error { return r.spec.validate() }

func (r *oneToMany[T, ID, R]) resolve(ctx context.Context, ids []ID) (map[ID]any, error) {
	grouped, err := r.spec.groups(ctx, ids)
	if err != nil {
		return nil, err
	}

	out := make(map[ID]any, len(ids))
	for _, id := range ids {
		g := grouped[id]
		if g == nil {
			g = []R{}
		}
		out[id] = g
	}
	return out, nil
}
