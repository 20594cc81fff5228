package cache

import (
	"context"
	"sync"
	"time"

	"github.com/randalmurphal/assembler/pkg/assembler/observability"
)

// Memory is an in-memory Cache implementation. Data is lost when the
// process exits.
//
// Memory is safe for concurrent use, but the read-fetch-writeback sequence
// of a hydrating GetAll is not serialized against other hydrating calls;
// wrap the cache with Concurrent when multiple goroutines fetch through it.
type Memory[ID comparable, R any] struct {
	mu      sync.RWMutex
	entries map[ID][]R
	merge   MergeStrategy[R]
	remove  func(existing, removals []R) []R
	metrics observability.MetricsRecorder
}

// memoryConfig holds construction options for Memory.
type memoryConfig[R any] struct {
	merge   MergeStrategy[R]
	metrics observability.MetricsRecorder
}

// Option configures a Memory cache.
type Option[R any] func(*memoryConfig[R])

// WithMergeStrategy overrides the merge strategy used on PutAll and on
// hydration. Default: UnionByID with the cache's sub-entity id extractor.
func WithMergeStrategy[R any](strategy MergeStrategy[R]) Option[R] {
	return func(c *memoryConfig[R]) {
		if strategy != nil {
			c.merge = strategy
		}
	}
}

// WithMetrics records cache hits, misses, and fetch latency to the given
// recorder. Default: no-op.
func WithMetrics[R any](recorder observability.MetricsRecorder) Option[R] {
	return func(c *memoryConfig[R]) {
		if recorder != nil {
			c.metrics = recorder
		}
	}
}

// New creates an in-memory cache keyed by correlation id ID.
//
// elemID extracts a sub-entity's own identity; it drives RemoveAll
// subtraction and the default UnionByID merge strategy. The correlation id
// type cannot be inferred from the arguments, so call sites name it
// explicitly:
//
//	c := cache.New[int](func(p Post) int64 { return p.PostID })
func New[ID comparable, EID comparable, R any](elemID func(R) EID, opts ...Option[R]) *Memory[ID, R] {
	cfg := memoryConfig[R]{
		merge:   UnionByID(elemID),
		metrics: observability.NoopMetrics{},
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Memory[ID, R]{
		entries: make(map[ID][]R),
		merge:   cfg.merge,
		remove: func(existing, removals []R) []R {
			return subtractByID(elemID, existing, removals)
		},
		metrics: cfg.metrics,
	}
}

// GetAll implements Cache.
//
// The hydration write-back runs under context.WithoutCancel: once the fetch
// has succeeded, cancelling the caller no longer prevents the cache from
// reaching a consistent state.
func (m *Memory[ID, R]) GetAll(ctx context.Context, ids []ID, fetch FetchFunc[ID, R]) (map[ID][]R, error) {
	if len(ids) == 0 {
		return map[ID][]R{}, nil
	}

	cached, missing := m.readAll(ids)
	m.metrics.RecordCacheAccess(ctx, int64(len(cached)), int64(len(missing)))

	if fetch == nil || len(missing) == 0 {
		return cached, nil
	}

	start := time.Now()
	fetched, err := fetch(ctx, missing)
	m.metrics.RecordFetch(ctx, time.Since(start), len(missing), err)
	if err != nil {
		return nil, err
	}

	if err := m.PutAll(context.WithoutCancel(ctx), fetched); err != nil {
		return nil, err
	}

	// missing and cached are disjoint, so overlaying is a plain union.
	for id, coll := range fetched {
		cached[id] = coll
	}
	return cached, nil
}

// readAll returns copies of the cached entries for ids, plus the ids that
// were not present. Duplicate ids are collapsed; input order is kept for
// the missing list.
func (m *Memory[ID, R]) readAll(ids []ID) (map[ID][]R, []ID) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	cached := make(map[ID][]R, len(ids))
	var missing []ID
	seen := make(map[ID]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if coll, ok := m.entries[id]; ok {
			cached[id] = append([]R(nil), coll...)
		} else {
			missing = append(missing, id)
		}
	}
	return cached, missing
}

// PutAll implements Cache.
func (m *Memory[ID, R]) PutAll(_ context.Context, entries map[ID][]R) error {
	if len(entries) == 0 {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.putLocked(entries)
	return nil
}

// RemoveAll implements Cache.
func (m *Memory[ID, R]) RemoveAll(_ context.Context, entries map[ID][]R) error {
	if len(entries) == 0 {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.removeLocked(entries)
	return nil
}

// UpdateAll implements Cache. Both halves are applied under a single lock
// acquisition, so no read observes the additions without the removals.
func (m *Memory[ID, R]) UpdateAll(_ context.Context, toAdd, toRemove map[ID][]R) error {
	if len(toAdd) == 0 && len(toRemove) == 0 {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.putLocked(toAdd)
	m.removeLocked(toRemove)
	return nil
}

// Len returns the number of ids currently cached. Useful for testing.
func (m *Memory[ID, R]) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

func (m *Memory[ID, R]) putLocked(entries map[ID][]R) {
	for id, incoming := range entries {
		m.entries[id] = m.merge(m.entries[id], incoming)
	}
}

func (m *Memory[ID, R]) removeLocked(entries map[ID][]R) {
	for id, removals := range entries {
		stored, ok := m.entries[id]
		if !ok {
			continue
		}
		reduced := m.remove(stored, removals)
		if len(reduced) == 0 {
			delete(m.entries, id)
		} else {
			m.entries[id] = reduced
		}
	}
}
