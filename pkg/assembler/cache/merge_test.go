package cache_test

import (
	"testing"

	"github.com/randalmurphal/assembler/pkg/assembler/cache"
	"github.com/stretchr/testify/assert"
)

type order struct {
	Ref    string
	Amount int
}

func byRef(o order) string { return o.Ref }

// TestReplace verifies the incoming collection fully replaces the stored one.
func TestReplace(t *testing.T) {
	merge := cache.Replace[order]()

	existing := []order{{Ref: "a", Amount: 1}}
	incoming := []order{{Ref: "b", Amount: 2}}

	got := merge(existing, incoming)
	assert.Equal(t, incoming, got)

	got = merge(existing, nil)
	assert.Empty(t, got)
}

// TestUnionByID verifies union semantics: incoming wins on conflict, stored
// order is preserved, new sub-entities append in incoming order.
func TestUnionByID(t *testing.T) {
	merge := cache.UnionByID(byRef)

	existing := []order{
		{Ref: "a", Amount: 1},
		{Ref: "b", Amount: 2},
	}
	incoming := []order{
		{Ref: "b", Amount: 20},
		{Ref: "c", Amount: 3},
	}

	got := merge(existing, incoming)

	assert.Equal(t, []order{
		{Ref: "a", Amount: 1},
		{Ref: "b", Amount: 20},
		{Ref: "c", Amount: 3},
	}, got)
}

// TestUnionByIDIdempotent verifies replaying the same incoming collection
// does not change the result.
func TestUnionByIDIdempotent(t *testing.T) {
	merge := cache.UnionByID(byRef)

	existing := []order{{Ref: "a", Amount: 1}}
	incoming := []order{{Ref: "a", Amount: 10}, {Ref: "b", Amount: 2}}

	once := merge(existing, incoming)
	twice := merge(once, incoming)

	assert.Equal(t, once, twice)
}

// TestUnionByIDEmptyExisting verifies merging into an empty collection
// copies the incoming slice.
func TestUnionByIDEmptyExisting(t *testing.T) {
	merge := cache.UnionByID(byRef)

	incoming := []order{{Ref: "a", Amount: 1}}
	got := merge(nil, incoming)

	assert.Equal(t, incoming, got)

	// The result must be independent of the input slice.
	got[0].Amount = 99
	assert.Equal(t, 1, incoming[0].Amount)
}

// TestUnionByIDDoesNotMutateInputs verifies both input slices survive a
// merge unchanged.
func TestUnionByIDDoesNotMutateInputs(t *testing.T) {
	merge := cache.UnionByID(byRef)

	existing := []order{{Ref: "a", Amount: 1}, {Ref: "b", Amount: 2}}
	incoming := []order{{Ref: "a", Amount: 10}}

	_ = merge(existing, incoming)

	assert.Equal(t, []order{{Ref: "a", Amount: 1}, {Ref: "b", Amount: 2}}, existing)
	assert.Equal(t, []order{{Ref: "a", Amount: 10}}, incoming)
}
