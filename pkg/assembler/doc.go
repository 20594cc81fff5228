/*
Package assembler implements API composition over batched queries.

# Overview

assembler builds composite views from a primary collection of entities and
several secondary data sources, without issuing one query per entity. Each
secondary source is described by a Rule: a batch query keyed by correlation
id plus a cardinality (one sub-entity per entity, or a collection). An
Assembler extracts the correlation ids from the root entities once, resolves
every rule against the full id set in parallel, and zips the results back
together in input order.

The library is built with:
  - Type-safe generics for entities, ids, and sub-entities
  - Eager validation of the composition configuration
  - A pluggable caching layer with merge strategies and event feeds
  - OpenTelemetry integration for observability

# Basic Usage

Describe each secondary source as a rule, then assemble:

	type Customer struct{ ID int }
	type Order struct{ CustomerID int; Total float64 }
	type View struct {
	    Customer Customer
	    Orders   []Order
	}

	rule := assembler.OneToMany[Customer](
	    "orders",
	    func(ctx context.Context, ids []int) ([]Order, error) {
	        return orderRepo.FindByCustomerIDs(ctx, ids)
	    },
	    func(o Order) int { return o.CustomerID },
	)

	asm, err := assembler.New(assembler.Config[Customer, int, View]{
	    IDFor: func(c Customer) int { return c.ID },
	    Rules: []assembler.Rule[Customer, int]{rule},
	    Aggregate: func(c Customer, values []any) (View, error) {
	        return View{Customer: c, Orders: values[0].([]Order)}, nil
	    },
	})
	if err != nil {
	    log.Fatal(err)
	}

	views, err := asm.Assemble(ctx, customers)

Each rule's query function is invoked exactly once per Assemble call, with
the full deduplicated id set. Rules resolve concurrently; results are
returned in the same order as the input entities.

# Caching

Wrap a rule's query with a cache so repeated assemblies only fetch ids not
seen before:

	orders := cache.New[int](func(o Order) string { return o.Ref })
	rule := assembler.OneToMany[Customer]("orders", fetchOrders, byCustomer,
	    assembler.WithCache(orders))

Cache failures that are not query failures fall back to querying the source
directly, so a broken cache degrades performance, not correctness.

# Auto-Caching

Keep a cache warm from a change-event stream, independent of requests:

	feed := cache.NewFeed(orders, events, byCustomer,
	    cache.WithWindow(cache.Window{MaxEvents: 100, MaxAge: time.Second}))
	feed.Start()
	defer feed.Stop()

	rule := assembler.OneToMany[Customer]("orders", fetchOrders, byCustomer,
	    assembler.WithCache(feed.Cache()))

# Observability

Enable logging, metrics, and tracing:

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	asm, err := assembler.New(cfg,
	    assembler.WithLogger(logger),
	    assembler.WithMetrics(observability.NewMetricsRecorder()),
	    assembler.WithSpanManager(observability.NewSpanManager()))

Logs include structured fields: run_id, rule, duration_ms.
OpenTelemetry metrics: assembler.runs, assembler.rule.latency_ms, etc.
OpenTelemetry tracing: assembler.assemble > assembler.rule.{name} spans.

# Error Handling

Errors include context about which rule failed:

	views, err := asm.Assemble(ctx, customers)
	var ruleErr *assembler.RuleError
	if errors.As(err, &ruleErr) {
	    log.Printf("rule %s failed: %v", ruleErr.Rule, ruleErr.Err)
	}

A failing rule fails the whole Assemble call; no partial composite slice is
returned.

# Thread Safety

  - Assembler IS safe for concurrent use (immutable after New)
  - cache.Memory IS safe for concurrent use
  - cache.Feed folds and request-path hydration serialize when rules share
    the feed's cache via Feed.Cache

# Subpackages

  - query: batched id-set resolution shared by all rules
  - cache: caching layer, merge strategies, and event feeds
  - config: typed configuration maps with YAML/JSON loaders
  - observability: logging, metrics, and tracing helpers
*/
package assembler
