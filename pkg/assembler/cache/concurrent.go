package cache

import (
	"context"
	"sync"
)

// concurrent serializes mutations on a delegate Cache while letting
// read-only GetAll calls proceed untouched.
type concurrent[ID comparable, R any] struct {
	delegate Cache[ID, R]
	mu       sync.Mutex
}

// Concurrent wraps a Cache so that fetch-and-hydrate reads and all
// mutations are serialized against each other, while read-only GetAll calls
// pass through concurrently.
//
// Serialization is what coalesces identical fetches: a second hydrating
// GetAll for an overlapping id set queues behind the first, re-reads the
// now-hydrated cache, and finds nothing left to fetch. It also prevents a
// slow fetch from overwriting fresher data written by a later mutation.
//
// The decorator is transparent: it implements the same Cache contract and
// can wrap any Cache. Wrapping an already-wrapped cache returns it
// unchanged.
func Concurrent[ID comparable, R any](delegate Cache[ID, R]) Cache[ID, R] {
	if c, ok := delegate.(*concurrent[ID, R]); ok {
		return c
	}
	return &concurrent[ID, R]{delegate: delegate}
}

// GetAll implements Cache. Calls without a fetch function are not
// serialized.
func (c *concurrent[ID, R]) GetAll(ctx context.Context, ids []ID, fetch FetchFunc[ID, R]) (map[ID][]R, error) {
	if fetch == nil {
		return c.delegate.GetAll(ctx, ids, nil)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.delegate.GetAll(ctx, ids, fetch)
}

// PutAll implements Cache.
func (c *concurrent[ID, R]) PutAll(ctx context.Context, entries map[ID][]R) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.delegate.PutAll(ctx, entries)
}

// RemoveAll implements Cache.
func (c *concurrent[ID, R]) RemoveAll(ctx context.Context, entries map[ID][]R) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.delegate.RemoveAll(ctx, entries)
}

// UpdateAll implements Cache.
func (c *concurrent[ID, R]) UpdateAll(ctx context.Context, toAdd, toRemove map[ID][]R) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.delegate.UpdateAll(ctx, toAdd, toRemove)
}
