package eventbus

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Bus is the in-process event bus facade. It composes the subscription
// registry, dispatch scheduler, middleware chain, retry engine, history log,
// dead letter store and metrics collector behind a single surface.
//
// All methods are safe for concurrent use. Handler failures never propagate
// to publishers or unrelated subscribers.
//
// Example:
//
//	bus := eventbus.New(eventbus.WithHistoryLimit(200))
//	if err := bus.Initialize(ctx); err != nil {
//	    return err
//	}
//	defer bus.Shutdown(context.Background())
//
//	id, _ := bus.Subscribe("user.created", eventbus.HandlerFunc(onUserCreated))
//	bus.Publish(ctx, "user.created", UserCreated{UserID: "123"})
type Bus struct {
	registry   *registry
	chain      *middlewareChain
	sched      *scheduler
	history    *historyStore
	deadLetter *deadLetterStore
	stats      *statsCollector
	exec       *executor

	historyLimit    int
	defaultTimeout  time.Duration
	shutdownTimeout time.Duration
	metricsEnabled  bool
	logger          *slog.Logger
	newBackoff      func() backoff.BackOff
	fallback        func(ctx context.Context, event Event) error

	mu        sync.Mutex
	cancel    context.CancelFunc
	ctx       context.Context
	wg        sync.WaitGroup
	startedAt time.Time
	closed    bool

	totalPublished  atomic.Int64
	eventsCompleted atomic.Int64
	eventsFailed    atomic.Int64
	activeHandlers  atomic.Int32
	lastActivityAt  atomic.Int64
}

// BusStats provides runtime observability metrics for monitoring and debugging.
type BusStats struct {
	EventsCompleted int64
	EventsFailed    int64
	ActiveHandlers  int32
	QueueSize       int
	IsRunning       bool
	LastActivityAt  time.Time
}

// New creates a new Bus with the given options.
//
// Example:
//
//	bus := eventbus.New(
//	    eventbus.WithHistoryLimit(500),
//	    eventbus.WithDefaultTimeout(10*time.Second),
//	    eventbus.WithLogger(logger),
//	)
func New(opts ...Option) *Bus {
	b := &Bus{
		historyLimit:    DefaultHistoryLimit,
		defaultTimeout:  DefaultTimeout,
		shutdownTimeout: DefaultShutdownTimeout,
		metricsEnabled:  true,
		logger:          slog.New(slog.NewTextHandler(io.Discard, nil)),
		newBackoff:      func() backoff.BackOff { return &backoff.ZeroBackOff{} },
	}

	for _, opt := range opts {
		opt(b)
	}

	b.registry = newRegistry(b.logger)
	b.chain = &middlewareChain{}
	b.sched = newScheduler()
	b.history = newHistoryStore(b.historyLimit)
	b.deadLetter = newDeadLetterStore()
	b.stats = newStatsCollector(b.metricsEnabled)
	b.exec = &executor{
		chain:      b.chain,
		deadLetter: b.deadLetter,
		stats:      b.stats,
		logger:     b.logger,
		newBackoff: b.newBackoff,
	}

	return b
}

// Initialize starts the dispatch drain loop. It is idempotent: calling it on a
// running bus is a no-op. A bus cannot be restarted after Shutdown.
func (b *Bus) Initialize(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrBusClosed
	}
	if b.cancel != nil {
		return nil
	}

	b.ctx, b.cancel = context.WithCancel(ctx)
	b.startedAt = time.Now()

	b.wg.Add(1)
	go b.drainLoop()

	b.logger.InfoContext(ctx, "event bus started")
	return nil
}

// Shutdown stops accepting new work and waits for in-flight handler
// executions to finish. Pending events that were never dispatched are
// dropped. Shutdown is idempotent; repeated calls return nil.
func (b *Bus) Shutdown(ctx context.Context) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	cancel := b.cancel
	b.cancel = nil
	b.mu.Unlock()

	b.sched.close()
	if cancel != nil {
		cancel()
	}

	b.logger.Info("event bus stopping, waiting for active handlers to complete",
		slog.Duration("timeout", b.shutdownTimeout))

	waitCtx, waitCancel := context.WithTimeout(ctx, b.shutdownTimeout)
	defer waitCancel()

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		b.logger.Info("event bus stopped cleanly")
		return nil
	case <-waitCtx.Done():
		b.logger.Warn("event bus shutdown timeout exceeded - some handlers may be abandoned",
			slog.Duration("timeout", b.shutdownTimeout))
		return fmt.Errorf("shutdown timeout exceeded after %s", b.shutdownTimeout)
	}
}

// Run provides errgroup compatibility for coordinated lifecycle management.
// Returns a function that initializes the bus, monitors context cancellation,
// and performs graceful shutdown when the context is cancelled.
func (b *Bus) Run(ctx context.Context) func() error {
	return func() error {
		if err := b.Initialize(ctx); err != nil {
			return err
		}
		<-ctx.Done()
		return b.Shutdown(context.WithoutCancel(ctx))
	}
}

// Subscribe registers a handler for the exact event type and returns the
// subscription ID.
func (b *Bus) Subscribe(eventType string, handler Handler, cfg ...SubscriptionConfig) (string, error) {
	return b.subscribe(exactMatcher(eventType), handler, cfg)
}

// SubscribePattern registers a handler whose pattern is evaluated against
// every published event type at dispatch time. Unsupported pattern kinds and
// malformed expressions fail here, before any event involvement.
func (b *Bus) SubscribePattern(pattern Pattern, handler Handler, cfg ...SubscriptionConfig) (string, error) {
	m, err := compileMatcher(pattern)
	if err != nil {
		return "", err
	}
	return b.subscribe(m, handler, cfg)
}

func (b *Bus) subscribe(m matcher, handler Handler, cfg []SubscriptionConfig) (string, error) {
	if handler == nil {
		return "", ErrNilHandler
	}
	config := SubscriptionConfig{}
	if len(cfg) > 0 {
		config = cfg[0]
	}
	sub := b.registry.add(m, handler, config.normalize(b.defaultTimeout))
	return sub.ID, nil
}

// Unsubscribe removes the subscription if present and reports whether it was
// found. Unknown IDs return false; concurrent unsubscribe races are expected
// and non-fatal.
func (b *Bus) Unsubscribe(id string) bool {
	return b.registry.remove(id)
}

// Subscriptions returns all subscriptions whose matcher accepts the given
// event type, in registration order.
func (b *Bus) Subscriptions(eventType string) []*Subscription {
	return b.registry.matching(eventType)
}

// SubscriberCount returns the current number of active subscriptions.
// Useful for monitoring and testing.
func (b *Bus) SubscriberCount() int {
	return b.registry.count()
}

// Use appends a middleware to the dispatch chain. Middlewares wrap every
// handler invocation in registration order (first registered is outermost).
func (b *Bus) Use(mw Middleware) {
	b.chain.add(mw)
}

// RemoveMiddleware removes the first matching middleware and reports whether
// one was found.
func (b *Bus) RemoveMiddleware(mw Middleware) bool {
	return b.chain.remove(mw)
}

// Publish constructs an Event, records it, and enqueues it for dispatch.
// It returns the event ID immediately without waiting for handler completion.
func (b *Bus) Publish(ctx context.Context, eventType string, payload any, opts ...PublishOption) (string, error) {
	event := NewEvent(eventType, payload)
	for _, opt := range opts {
		opt(&event)
	}

	if err := b.sched.enqueue(event); err != nil {
		return "", err
	}

	b.record(event)
	b.logger.DebugContext(ctx, "event published",
		slog.String("event_id", event.ID),
		slog.String("event_type", event.Type),
		slog.Int("priority", int(event.Priority)))

	return event.ID, nil
}

// Batch describes a set of events published together with shared options.
type Batch struct {
	Events   []BatchEvent
	Priority Priority
	Mode     ProcessingMode
	Source   string
}

// BatchEvent is a single entry in a Batch.
type BatchEvent struct {
	Type    string
	Payload any
}

// PublishBatch publishes every event in the batch with the shared priority
// and processing mode, assigning each its own ID. Returns the ordered list of
// event IDs.
func (b *Bus) PublishBatch(ctx context.Context, batch Batch) ([]string, error) {
	opts := make([]PublishOption, 0, 3)
	if batch.Priority != 0 {
		opts = append(opts, WithPriority(batch.Priority))
	}
	if batch.Mode != "" {
		opts = append(opts, WithProcessingMode(batch.Mode))
	}
	if batch.Source != "" {
		opts = append(opts, WithSource(batch.Source))
	}

	ids := make([]string, 0, len(batch.Events))
	for _, be := range batch.Events {
		id, err := b.Publish(ctx, be.Type, be.Payload, opts...)
		if err != nil {
			return ids, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// EmitSync bypasses the queue and runs each matching handler's synchronous
// path immediately in the caller's goroutine, collecting one HandlerResult
// per subscription. Subscriptions configured for asynchronous processing are
// recorded as FAILED without being invoked.
func (b *Bus) EmitSync(ctx context.Context, eventType string, payload any, opts ...PublishOption) []HandlerResult {
	event := NewEvent(eventType, payload)
	event.Mode = ModeSync
	for _, opt := range opts {
		opt(&event)
	}

	if !b.enterDispatch() {
		return nil
	}
	defer b.leaveDispatch()

	b.record(event)
	results := b.exec.dispatchSync(ctx, event, b.registry.matching(event.Type))
	b.tally(results)
	return results
}

// EmitAsync matches subscriptions and awaits each handler's completion,
// including retries, collecting one HandlerResult per subscription. It always
// returns a result slice, even when every handler failed.
func (b *Bus) EmitAsync(ctx context.Context, eventType string, payload any, opts ...PublishOption) []HandlerResult {
	event := NewEvent(eventType, payload)
	for _, opt := range opts {
		opt(&event)
	}

	if !b.enterDispatch() {
		return nil
	}
	defer b.leaveDispatch()

	b.record(event)
	results := b.exec.dispatchAsync(ctx, event, b.registry.matching(event.Type))
	b.tally(results)
	return results
}

// Pause stops the scheduler from draining queues; published events still
// accumulate.
func (b *Bus) Pause() {
	b.sched.pause()
	b.logger.Info("event bus paused")
}

// Resume restarts queue draining.
func (b *Bus) Resume() {
	b.sched.resume()
	b.logger.Info("event bus resumed")
}

// History returns the most recent limit events for the given type, or across
// all types when eventType is empty, oldest-first within the returned window.
// A limit of zero or less returns all retained events.
func (b *Bus) History(eventType string, limit int) []Event {
	if eventType == "" {
		return b.history.getAll(limit)
	}
	return b.history.get(eventType, limit)
}

// Metrics returns a live snapshot recomputed from the bus counters.
func (b *Bus) Metrics() Metrics {
	b.mu.Lock()
	startedAt := b.startedAt
	b.mu.Unlock()

	var uptime time.Duration
	if !startedAt.IsZero() {
		uptime = time.Since(startedAt)
	}

	return Metrics{
		TotalEventsPublished: b.totalPublished.Load(),
		ActiveSubscriptions:  b.registry.count(),
		Uptime:               uptime,
		QueueSize:            b.sched.queueSize(),
	}
}

// Stats returns dispatch outcome counters for a single event type.
// Unobserved types return zero counters.
func (b *Bus) Stats(eventType string) TypeStats {
	return b.stats.stats(eventType)
}

// AllStats returns a mapping from every observed event type to its counters.
func (b *Bus) AllStats() map[string]TypeStats {
	return b.stats.allStats()
}

// DeadLetterQueue returns all events whose handlers permanently failed.
func (b *Bus) DeadLetterQueue() []DeadLetterEntry {
	return b.deadLetter.snapshot()
}

// RetryDeadLetterEvents re-enqueues every dead letter entry's event back into
// the dispatch scheduler as if freshly published, removing entries only once
// re-enqueued. Re-enqueue and removal happen in a single critical section.
// Returns the number of events replayed.
func (b *Bus) RetryDeadLetterEvents() int {
	replayed := b.deadLetter.drain(func(event Event) error {
		if err := b.sched.enqueue(event); err != nil {
			return err
		}
		b.record(event)
		return nil
	})
	if replayed > 0 {
		b.logger.Info("dead letter events replayed", slog.Int("count", replayed))
	}
	return replayed
}

// ClearDeadLetterQueue discards all dead letter entries unconditionally and
// returns how many were dropped.
func (b *Bus) ClearDeadLetterQueue() int {
	return b.deadLetter.clear()
}

// BusStats returns current runtime statistics for observability and monitoring.
func (b *Bus) BusStats() BusStats {
	b.mu.Lock()
	isRunning := b.cancel != nil
	b.mu.Unlock()

	var lastActivity time.Time
	if ts := b.lastActivityAt.Load(); ts > 0 {
		lastActivity = time.Unix(ts, 0)
	}

	return BusStats{
		EventsCompleted: b.eventsCompleted.Load(),
		EventsFailed:    b.eventsFailed.Load(),
		ActiveHandlers:  b.activeHandlers.Load(),
		QueueSize:       b.sched.queueSize(),
		IsRunning:       isRunning,
		LastActivityAt:  lastActivity,
	}
}

// Healthcheck validates that the bus is operational.
// Returns nil if healthy, or an error describing the health issue.
func (b *Bus) Healthcheck(ctx context.Context) error {
	if !b.BusStats().IsRunning {
		return errors.Join(ErrHealthcheckFailed, ErrBusNotStarted)
	}
	return nil
}

// drainLoop is the single consumer of the scheduler's queues. It executes
// dequeued events one at a time, so higher-priority events are never delayed
// behind a lower-priority event that was still pending when they arrived.
func (b *Bus) drainLoop() {
	defer b.wg.Done()

	for {
		select {
		case <-b.ctx.Done():
			b.logger.Info("event bus drain loop stopping")
			return
		case <-b.sched.notify:
		}

		for {
			if b.ctx.Err() != nil {
				return
			}
			event, ok := b.sched.pop()
			if !ok {
				break
			}
			b.dispatch(b.ctx, event)
		}
	}
}

// dispatch executes a dequeued event against all matching subscriptions.
func (b *Bus) dispatch(ctx context.Context, event Event) {
	b.activeHandlers.Add(1)
	defer b.activeHandlers.Add(-1)

	subs := b.registry.matching(event.Type)
	if len(subs) == 0 {
		if b.fallback != nil {
			b.runFallback(ctx, event)
		}
		return
	}

	var results []HandlerResult
	if event.Mode == ModeSync {
		results = b.exec.dispatchSync(ctx, event, subs)
	} else {
		results = b.exec.dispatchAsync(ctx, event, subs)
	}
	b.tally(results)
}

// runFallback invokes the fallback handler for events with no subscribers.
func (b *Bus) runFallback(ctx context.Context, event Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.ErrorContext(ctx, "fallback handler panicked",
				slog.String("event_id", event.ID),
				slog.String("event_type", event.Type),
				slog.Any("panic", r))
		}
	}()

	if err := b.fallback(WithEventMeta(ctx, event), event); err != nil {
		b.logger.ErrorContext(ctx, "fallback handler failed",
			slog.String("event_id", event.ID),
			slog.String("event_type", event.Type),
			slog.String("error", err.Error()))
	}
}

// record books a published event into history and metrics.
func (b *Bus) record(event Event) {
	b.history.add(event)
	b.totalPublished.Add(1)
	b.stats.recordPublished(event.Type)
}

// tally folds terminal handler results into the runtime counters.
func (b *Bus) tally(results []HandlerResult) {
	for _, res := range results {
		if res.Status == StatusCompleted {
			b.eventsCompleted.Add(1)
		} else {
			b.eventsFailed.Add(1)
		}
	}
	b.lastActivityAt.Store(time.Now().Unix())
}

// enterDispatch registers an emit-path execution with the shutdown waiter.
// Returns false when the bus is closed.
func (b *Bus) enterDispatch() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return false
	}
	b.wg.Add(1)
	b.activeHandlers.Add(1)
	return true
}

func (b *Bus) leaveDispatch() {
	b.activeHandlers.Add(-1)
	b.wg.Done()
}
