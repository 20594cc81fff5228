// Package cache provides the correlation-id keyed caching layer of the
// assembler: a Cache contract shared by the request path and the change-event
// feed, an in-memory implementation, pluggable merge strategies, a
// concurrency decorator, and the auto-cache Feed that keeps a cache warm
// from an external event stream.
//
// A cache entry is always the fully-merged collection of sub-entities known
// for its correlation id; no operation ever stores a partial fragment. Both
// the fetch-and-hydrate read path and the event feed funnel their writes
// through the same UpdateAll contract so merge correctness lives in one
// place.
package cache

import "context"

// FetchFunc loads sub-entities for ids that were not found in the cache.
// It is invoked with the missing ids only, never with an empty slice, and
// must return a map covering every requested id.
type FetchFunc[ID comparable, R any] func(ctx context.Context, missing []ID) (map[ID][]R, error)

// Cache stores collections of sub-entities keyed by correlation id.
//
// Implementations must treat empty input maps as no-ops and must keep every
// stored collection fully merged: PutAll combines incoming data with the
// stored collection via the configured merge strategy, RemoveAll subtracts
// sub-entities by their own identity and deletes ids whose collection
// becomes empty.
type Cache[ID comparable, R any] interface {
	// GetAll returns the cached collections for the requested ids.
	//
	// With a nil fetch, ids not present in the cache are simply absent from
	// the result. With a non-nil fetch, GetAll invokes it for exactly the
	// missing ids, merges the fetched data into the cache, and includes it
	// in the result, so every requested id is covered.
	GetAll(ctx context.Context, ids []ID, fetch FetchFunc[ID, R]) (map[ID][]R, error)

	// PutAll merges the given collections into the cache, per id.
	PutAll(ctx context.Context, entries map[ID][]R) error

	// RemoveAll subtracts the given sub-entities from the cached
	// collections. An id whose collection becomes empty is removed.
	RemoveAll(ctx context.Context, entries map[ID][]R) error

	// UpdateAll applies toAdd and toRemove as one logical unit, additions
	// first. The maps may share ids: removal subtracts by sub-entity
	// identity, so an id can gain some sub-entities and lose others in
	// the same call.
	UpdateAll(ctx context.Context, toAdd, toRemove map[ID][]R) error
}

// GetAllFunc is the read operation of an adapter-built cache.
type GetAllFunc[ID comparable, R any] func(ctx context.Context, ids []ID, fetch FetchFunc[ID, R]) (map[ID][]R, error)

// MutateFunc is a single-map mutation operation of an adapter-built cache.
type MutateFunc[ID comparable, R any] func(ctx context.Context, entries map[ID][]R) error

// UpdateFunc is the combined mutation operation of an adapter-built cache.
type UpdateFunc[ID comparable, R any] func(ctx context.Context, toAdd, toRemove map[ID][]R) error

// adapter assembles a Cache from plain functions.
type adapter[ID comparable, R any] struct {
	getAll    GetAllFunc[ID, R]
	putAll    MutateFunc[ID, R]
	removeAll MutateFunc[ID, R]
	updateAll UpdateFunc[ID, R]
}

// Adapter builds a Cache from plain functions, so external stores can be
// plugged in without implementing the full interface. A nil updateAll
// defaults to putAll followed by removeAll.
//
// Empty inputs short-circuit before reaching the supplied functions, so
// adapters never see an empty id slice or an empty map.
func Adapter[ID comparable, R any](
	getAll GetAllFunc[ID, R],
	putAll MutateFunc[ID, R],
	removeAll MutateFunc[ID, R],
	updateAll UpdateFunc[ID, R],
) Cache[ID, R] {
	return &adapter[ID, R]{
		getAll:    getAll,
		putAll:    putAll,
		removeAll: removeAll,
		updateAll: updateAll,
	}
}

// GetAll implements Cache.
func (a *adapter[ID, R]) GetAll(ctx context.Context, ids []ID, fetch FetchFunc[ID, R]) (map[ID][]R, error) {
	if len(ids) == 0 {
		return map[ID][]R{}, nil
	}
	return a.getAll(ctx, ids, fetch)
}

// PutAll implements Cache.
func (a *adapter[ID, R]) PutAll(ctx context.Context, entries map[ID][]R) error {
	if len(entries) == 0 {
		return nil
	}
	return a.putAll(ctx, entries)
}

// RemoveAll implements Cache.
func (a *adapter[ID, R]) RemoveAll(ctx context.Context, entries map[ID][]R) error {
	if len(entries) == 0 {
		return nil
	}
	return a.removeAll(ctx, entries)
}

// UpdateAll implements Cache.
func (a *adapter[ID, R]) UpdateAll(ctx context.Context, toAdd, toRemove map[ID][]R) error {
	if len(toAdd) == 0 && len(toRemove) == 0 {
		return nil
	}
	if a.updateAll != nil {
		return a.updateAll(ctx, toAdd, toRemove)
	}
	if err := a.PutAll(ctx, toAdd); err != nil {
		return err
	}
	return a.RemoveAll(ctx, toRemove)
}
