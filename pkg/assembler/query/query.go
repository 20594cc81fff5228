// Package query implements the batched id-set resolution step shared by all
// assembler rules: invoke a caller-supplied query function once for a set of
// correlation ids, group the returned sub-entities by id, and default-fill
// the ids the query returned nothing for.
//
// The guarantees callers rely on:
//   - the query function is invoked at most once per Resolve call, and never
//     with an empty id slice
//   - every requested id is a key of the returned map, even when the query
//     returned no sub-entity for it
//   - a query failure surfaces as *Error with the original cause preserved,
//     and no partial map is returned
package query

import (
	"context"
	"fmt"
)

// Func is the caller-supplied batch query: given a set of correlation ids,
// return all sub-entities owned by any of those ids. Implementations
// typically translate the id set into one SQL IN clause, one multi-get, or
// one downstream API call.
type Func[ID comparable, R any] func(ctx context.Context, ids []ID) ([]R, error)

// Error wraps a failure of the underlying query function. It lets callers
// distinguish "the data source failed" from cache or configuration failures
// when deciding whether to fall back.
type Error struct {
	// Err is the error returned by the query function.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("query function: %v", e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Err
}

// GroupBy buckets sub-entities by their correlation id. The order of
// sub-entities within each bucket follows the order of results.
func GroupBy[ID comparable, R any](results []R, correlate func(R) ID) map[ID][]R {
	grouped := make(map[ID][]R, len(results))
	for _, r := range results {
		id := correlate(r)
		grouped[id] = append(grouped[id], r)
	}
	return grouped
}

// Resolve executes fn once for the full id set and returns the results
// grouped by correlation id, with every requested id present as a key.
//
// Ids absent from the query results are filled from defaultFor; a nil
// defaultFor fills them with an empty collection. An empty id slice
// short-circuits to an empty map without invoking fn.
func Resolve[ID comparable, R any](
	ctx context.Context,
	ids []ID,
	fn Func[ID, R],
	correlate func(R) ID,
	defaultFor func(ID) []R,
) (map[ID][]R, error) {
	if len(ids) == 0 {
		return map[ID][]R{}, nil
	}

	results, err := fn(ctx, ids)
	if err != nil {
		return nil, &Error{Err: err}
	}

	grouped := GroupBy(results, correlate)

	// Default-fill so callers can assume id coverage.
	for _, id := range ids {
		if _, ok := grouped[id]; ok {
			continue
		}
		if defaultFor != nil {
			grouped[id] = defaultFor(id)
		} else {
			grouped[id] = []R{}
		}
	}

	return grouped, nil
}
