package cache

// Kind distinguishes the two variants of a change event.
type Kind int

// Event kinds.
const (
	// KindUpdated marks a sub-entity that was created or modified upstream.
	KindUpdated Kind = iota

	// KindRemoved marks a sub-entity that was deleted upstream.
	KindRemoved
)

// String returns the kind name for logs.
func (k Kind) String() string {
	switch k {
	case KindUpdated:
		return "updated"
	case KindRemoved:
		return "removed"
	default:
		return "unknown"
	}
}

// Event is one entry of a change feed: a sub-entity together with whether it
// was updated or removed upstream.
type Event[R any] struct {
	Kind  Kind
	Value R
}

// Updated builds an event marking v as created or modified.
func Updated[R any](v R) Event[R] {
	return Event[R]{Kind: KindUpdated, Value: v}
}

// Removed builds an event marking v as deleted.
func Removed[R any](v R) Event[R] {
	return Event[R]{Kind: KindRemoved, Value: v}
}
