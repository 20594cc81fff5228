package cache

// MergeStrategy combines the stored collection for a correlation id with an
// incoming collection for the same id. It is applied on cache hydration
// (fetched data merged into the cache) and by the change-event feed
// (updated events folded into the cache).
//
// Strategies must not modify either input slice; the result must be a fresh
// slice (or one of the inputs unchanged) so in-flight readers holding a
// previously returned collection are never corrupted.
type MergeStrategy[R any] func(existing, incoming []R) []R

// Replace returns the strategy where the incoming collection fully replaces
// the stored one. Suitable when every fetch and every event carries the
// complete collection for its id.
func Replace[R any]() MergeStrategy[R] {
	return func(_, incoming []R) []R {
		return incoming
	}
}

// UnionByID returns the strategy that combines stored and incoming
// collections, deduplicating sub-entities by their own identity. The
// incoming version wins on conflict; stored order is preserved and new
// sub-entities are appended in incoming order.
//
// Applying the same incoming collection twice yields the same result as
// applying it once, which makes this the right strategy for event feeds
// that may replay.
func UnionByID[R any, EID comparable](idOf func(R) EID) MergeStrategy[R] {
	return func(existing, incoming []R) []R {
		if len(existing) == 0 {
			return append([]R(nil), incoming...)
		}

		byID := make(map[EID]R, len(incoming))
		for _, r := range incoming {
			byID[idOf(r)] = r
		}

		merged := make([]R, 0, len(existing)+len(incoming))
		seen := make(map[EID]struct{}, len(existing)+len(incoming))
		for _, r := range existing {
			id := idOf(r)
			if repl, ok := byID[id]; ok {
				merged = append(merged, repl)
			} else {
				merged = append(merged, r)
			}
			seen[id] = struct{}{}
		}
		for _, r := range incoming {
			if _, ok := seen[idOf(r)]; !ok {
				merged = append(merged, r)
				seen[idOf(r)] = struct{}{}
			}
		}
		return merged
	}
}

// subtractByID removes from existing every sub-entity whose identity appears
// in removals. Returns a fresh slice; the inputs are left untouched.
func subtractByID[R any, EID comparable](idOf func(R) EID, existing, removals []R) []R {
	if len(existing) == 0 || len(removals) == 0 {
		return existing
	}

	drop := make(map[EID]struct{}, len(removals))
	for _, r := range removals {
		drop[idOf(r)] = struct{}{}
	}

	kept := make([]R, 0, len(existing))
	for _, r := range existing {
		if _, ok := drop[idOf(r)]; !ok {
			kept = append(kept, r)
		}
	}
	return kept
}
