package cache

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/randalmurphal/assembler/pkg/assembler/config"
	"github.com/randalmurphal/assembler/pkg/assembler/observability"
	"github.com/randalmurphal/assembler/pkg/assembler/query"
)

// Window bounds how many change events are folded into the cache at once.
// A window closes when it holds MaxEvents events or when MaxAge has elapsed
// since its first event, whichever comes first.
type Window struct {
	// MaxEvents closes the window by count. Values below 1 are treated
	// as 1.
	MaxEvents int

	// MaxAge closes the window by time. 0 disables the timer, so windows
	// close on count alone.
	MaxAge time.Duration
}

// DefaultWindow applies every event immediately. Larger windows amortize
// merge cost at the price of staleness bounded by the window.
var DefaultWindow = Window{MaxEvents: 1}

// WindowFromConfig builds a Window from the "feed.max_events" and
// "feed.max_age" keys of a config, falling back to DefaultWindow values.
func WindowFromConfig(cfg config.Config) Window {
	return Window{
		MaxEvents: cfg.Int("feed.max_events", DefaultWindow.MaxEvents),
		MaxAge:    cfg.Duration("feed.max_age", DefaultWindow.MaxAge),
	}
}

// ErrorHandler decides what happens when folding a window into the cache
// fails. Use OnErrorStop, OnErrorContinue, or OnErrorMap.
type ErrorHandler interface {
	// handle returns the error that terminates the feed, or nil to keep
	// consuming events.
	handle(err error) error
}

type stopHandler struct{}

func (stopHandler) handle(err error) error { return err }

// OnErrorStop terminates the feed on the first failed window. This is the
// default. The terminal error is reported by Feed.Err after the feed stops;
// the request path is unaffected.
func OnErrorStop() ErrorHandler {
	return stopHandler{}
}

type continueHandler struct {
	report func(error)
}

func (h continueHandler) handle(err error) error {
	if h.report != nil {
		h.report(err)
	}
	return nil
}

// OnErrorContinue reports each failed window to the given sink and keeps
// consuming events, leaving the cache as of the last successful window. A
// nil report discards the errors.
func OnErrorContinue(report func(error)) ErrorHandler {
	return continueHandler{report: report}
}

type mapHandler struct {
	mapper func(error) error
}

func (h mapHandler) handle(err error) error {
	if h.mapper == nil {
		return err
	}
	return h.mapper(err)
}

// OnErrorMap rewrites the error of a failed window through mapper, then
// terminates the feed with the rewritten error.
func OnErrorMap(mapper func(error) error) ErrorHandler {
	return mapHandler{mapper: mapper}
}

// FeedError wraps a window fold failure with feed context.
type FeedError struct {
	// FeedID identifies the feed whose window failed.
	FeedID string
	// Events is the number of events in the failed window.
	Events int
	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *FeedError) Error() string {
	return fmt.Sprintf("feed %s: window of %d events: %v", e.FeedID, e.Events, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *FeedError) Unwrap() error {
	return e.Err
}

// Feed keeps a cache warm from an external stream of change events,
// independently of any request. Events are collected into windows; each
// closed window is partitioned into updated and removed sub-entities,
// grouped by correlation id, and folded into the cache with a single
// UpdateAll call. A window may carry both updates and removals for the
// same id; UpdateAll applies additions first, then subtracts removals by
// sub-entity identity.
type Feed[ID comparable, R any] struct {
	id        string
	cache     Cache[ID, R]
	events    <-chan Event[R]
	correlate func(R) ID

	window  Window
	errh    ErrorHandler
	logger  *slog.Logger
	metrics observability.MetricsRecorder

	started atomic.Bool
	stopped atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}

	errMu sync.Mutex
	err   error
}

// feedConfig holds construction options for Feed.
type feedConfig struct {
	window  Window
	errh    ErrorHandler
	logger  *slog.Logger
	metrics observability.MetricsRecorder
}

// FeedOption configures a Feed.
type FeedOption func(*feedConfig)

// WithWindow sets the windowing policy. Default: DefaultWindow.
func WithWindow(w Window) FeedOption {
	return func(c *feedConfig) {
		c.window = w
	}
}

// WithErrorHandler sets the window failure policy. Default: OnErrorStop.
func WithErrorHandler(h ErrorHandler) FeedOption {
	return func(c *feedConfig) {
		if h != nil {
			c.errh = h
		}
	}
}

// WithFeedLogger sets the logger for feed lifecycle and window events.
// Default: slog.Default(). A nil logger disables logging.
func WithFeedLogger(logger *slog.Logger) FeedOption {
	return func(c *feedConfig) {
		c.logger = logger
	}
}

// WithFeedMetrics records window folds to the given recorder. Default:
// no-op.
func WithFeedMetrics(recorder observability.MetricsRecorder) FeedOption {
	return func(c *feedConfig) {
		if recorder != nil {
			c.metrics = recorder
		}
	}
}

// NewFeed binds a change-event stream to a cache. correlate maps a
// sub-entity to its correlation id. The target cache is wrapped with
// Concurrent so feed folds and request-path hydration contend on the same
// serialization point.
//
// The feed does not consume events until Start is called.
func NewFeed[ID comparable, R any](
	target Cache[ID, R],
	events <-chan Event[R],
	correlate func(R) ID,
	opts ...FeedOption,
) *Feed[ID, R] {
	cfg := feedConfig{
		window:  DefaultWindow,
		errh:    OnErrorStop(),
		logger:  slog.Default(),
		metrics: observability.NoopMetrics{},
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.window.MaxEvents < 1 {
		cfg.window.MaxEvents = 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Feed[ID, R]{
		id:        fmt.Sprintf("feed-%s", uuid.New().String()[:8]),
		cache:     Concurrent(target),
		events:    events,
		correlate: correlate,
		window:    cfg.window,
		errh:      cfg.errh,
		logger:    cfg.logger,
		metrics:   cfg.metrics,
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
	}
}

// Cache returns the concurrency-wrapped cache the feed folds into. Rules
// sharing the feed's cache should use this instance so request-path
// hydration and feed folds serialize on the same lock.
func (f *Feed[ID, R]) Cache() Cache[ID, R] {
	return f.cache
}

// ID returns the feed identifier used in logs and errors.
func (f *Feed[ID, R]) ID() string {
	return f.id
}

// Start begins consuming events. It is idempotent: only the first call
// starts the feed, later calls are no-ops.
func (f *Feed[ID, R]) Start() {
	if !f.started.CompareAndSwap(false, true) {
		return
	}

	observability.LogFeedStart(f.logger, f.id, f.window.MaxEvents, f.window.MaxAge)
	go f.run(f.ctx)
}

// Stop ends consumption and waits for the feed goroutine to exit. A pending
// partial window is folded before exit, and an in-flight fold always runs
// to completion. Stop is idempotent and a no-op if the feed was never
// started.
func (f *Feed[ID, R]) Stop() {
	if !f.started.Load() {
		return
	}
	if !f.stopped.CompareAndSwap(false, true) {
		<-f.done
		return
	}
	f.cancel()
	<-f.done
}

// Err returns the error that terminated the feed, or nil if the feed is
// running or stopped cleanly.
func (f *Feed[ID, R]) Err() error {
	f.errMu.Lock()
	defer f.errMu.Unlock()
	return f.err
}

// run is the feed goroutine: collect events into a window, fold on close.
func (f *Feed[ID, R]) run(ctx context.Context) {
	defer close(f.done)

	var timerC <-chan time.Time
	var timer *time.Timer
	if f.window.MaxAge > 0 {
		timer = time.NewTimer(f.window.MaxAge)
		if !timer.Stop() {
			<-timer.C
		}
		timerC = timer.C
		defer timer.Stop()
	}

	buf := make([]Event[R], 0, f.window.MaxEvents)

	flush := func() bool {
		if len(buf) == 0 {
			return false
		}
		stop := f.fold(buf)
		buf = buf[:0]
		if timer != nil {
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
		}
		return stop
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			observability.LogFeedStop(f.logger, f.id)
			return

		case <-timerC:
			if flush() {
				return
			}

		case ev, ok := <-f.events:
			if !ok {
				flush()
				observability.LogFeedStop(f.logger, f.id)
				return
			}
			if len(buf) == 0 && timer != nil {
				timer.Reset(f.window.MaxAge)
			}
			buf = append(buf, ev)
			if len(buf) >= f.window.MaxEvents && flush() {
				return
			}
		}
	}
}

// fold partitions one window and applies it to the cache. Returns true when
// the feed must terminate.
func (f *Feed[ID, R]) fold(events []Event[R]) bool {
	var updated, removed []R
	for _, ev := range events {
		if ev.Kind == KindUpdated {
			updated = append(updated, ev.Value)
		} else {
			removed = append(removed, ev.Value)
		}
	}

	toAdd := query.GroupBy(updated, f.correlate)
	toRemove := query.GroupBy(removed, f.correlate)

	start := time.Now()
	err := f.cache.UpdateAll(context.Background(), toAdd, toRemove)
	f.metrics.RecordFeedWindow(context.Background(), len(events), err)
	if err == nil {
		observability.LogWindowApplied(f.logger, f.id, len(events), time.Since(start))
		return false
	}

	ferr := &FeedError{FeedID: f.id, Events: len(events), Err: err}
	terminal := f.errh.handle(ferr)
	if terminal == nil {
		observability.LogFeedError(f.logger, f.id, ferr, false)
		return false
	}

	f.errMu.Lock()
	f.err = terminal
	f.errMu.Unlock()
	observability.LogFeedError(f.logger, f.id, terminal, true)
	return true
}
