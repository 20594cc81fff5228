package benchmarks

import (
	"context"
	"fmt"
	"testing"

	"github.com/randalmurphal/assembler/pkg/assembler"
	"github.com/randalmurphal/assembler/pkg/assembler/cache"
)

type customer struct {
	ID   int
	Name string
}

type order struct {
	CustomerID int
	Ref        string
	Total      float64
}

type view struct {
	Customer customer
	Orders   []order
}

// makeCustomers builds n root entities.
func makeCustomers(n int) []customer {
	out := make([]customer, n)
	for i := range out {
		out[i] = customer{ID: i + 1, Name: fmt.Sprintf("c%d", i+1)}
	}
	return out
}

// fetchOrders returns two orders per id.
func fetchOrders(_ context.Context, ids []int) ([]order, error) {
	out := make([]order, 0, 2*len(ids))
	for _, id := range ids {
		out = append(out,
			order{CustomerID: id, Ref: fmt.Sprintf("a-%d", id), Total: 10},
			order{CustomerID: id, Ref: fmt.Sprintf("b-%d", id), Total: 20},
		)
	}
	return out, nil
}

func byCustomer(o order) int { return o.CustomerID }

// mustAssembler builds a single-rule assembler with logging disabled.
func mustAssembler(b *testing.B, rules []assembler.Rule[customer, int]) *assembler.Assembler[customer, int, view] {
	b.Helper()
	asm, err := assembler.New(assembler.Config[customer, int, view]{
		IDFor: func(c customer) int { return c.ID },
		Rules: rules,
		Aggregate: func(c customer, values []any) (view, error) {
			return view{Customer: c, Orders: values[0].([]order)}, nil
		},
	}, assembler.WithLogger(nil))
	if err != nil {
		b.Fatal(err)
	}
	return asm
}

// BenchmarkAssemble_10 composes 10 entities through one rule.
func BenchmarkAssemble_10(b *testing.B) {
	asm := mustAssembler(b, []assembler.Rule[customer, int]{
		assembler.OneToMany[customer]("orders", fetchOrders, byCustomer),
	})
	roots := makeCustomers(10)
	ctx := context.Background()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = asm.Assemble(ctx, roots)
	}
}

// BenchmarkAssemble_100 composes 100 entities through one rule.
func BenchmarkAssemble_100(b *testing.B) {
	asm := mustAssembler(b, []assembler.Rule[customer, int]{
		assembler.OneToMany[customer]("orders", fetchOrders, byCustomer),
	})
	roots := makeCustomers(100)
	ctx := context.Background()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = asm.Assemble(ctx, roots)
	}
}

// BenchmarkAssemble_1000 composes 1000 entities through one rule.
func BenchmarkAssemble_1000(b *testing.B) {
	asm := mustAssembler(b, []assembler.Rule[customer, int]{
		assembler.OneToMany[customer]("orders", fetchOrders, byCustomer),
	})
	roots := makeCustomers(1000)
	ctx := context.Background()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = asm.Assemble(ctx, roots)
	}
}

// BenchmarkAssemble_4Rules composes 100 entities through four parallel
// rules.
func BenchmarkAssemble_4Rules(b *testing.B) {
	rules := make([]assembler.Rule[customer, int], 4)
	for i := range rules {
		rules[i] = assembler.OneToMany[customer](fmt.Sprintf("orders%d", i), fetchOrders, byCustomer)
	}
	asm := mustAssembler(b, rules)
	roots := makeCustomers(100)
	ctx := context.Background()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = asm.Assemble(ctx, roots)
	}
}

// BenchmarkAssemble_Cached composes 100 entities with a warm cache; after
// the first iteration no fetch runs at all.
func BenchmarkAssemble_Cached(b *testing.B) {
	c := cache.New[int](func(o order) string { return o.Ref })
	asm := mustAssembler(b, []assembler.Rule[customer, int]{
		assembler.OneToMany[customer]("orders", fetchOrders, byCustomer,
			assembler.WithCache[int, order](c)),
	})
	roots := makeCustomers(100)
	ctx := context.Background()

	// Warm the cache outside the timed loop.
	if _, err := asm.Assemble(ctx, roots); err != nil {
		b.Fatal(err)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = asm.Assemble(ctx, roots)
	}
}

// BenchmarkMemoryGetAll measures a fully cached read.
func BenchmarkMemoryGetAll(b *testing.B) {
	c := cache.New[int](func(o order) string { return o.Ref })
	ctx := context.Background()

	entries := make(map[int][]order, 100)
	ids := make([]int, 100)
	for i := 0; i < 100; i++ {
		ids[i] = i
		entries[i] = []order{{CustomerID: i, Ref: fmt.Sprintf("a-%d", i)}}
	}
	if err := c.PutAll(ctx, entries); err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = c.GetAll(ctx, ids, nil)
	}
}
