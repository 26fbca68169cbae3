package eventbus

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// executor runs matched handlers for a single event: lifecycle hooks, the
// middleware chain, per-attempt timeouts, the retry loop and dead-letter
// routing. It never lets a handler failure escape to the publisher; every
// outcome is captured in a HandlerResult.
type executor struct {
	chain      *middlewareChain
	deadLetter *deadLetterStore
	stats      *statsCollector
	logger     *slog.Logger
	newBackoff func() backoff.BackOff
}

// dispatchSync executes matching handlers strictly sequentially in the
// caller's goroutine. Subscriptions configured for asynchronous processing are
// a configuration error on this path: they are recorded as FAILED without
// being invoked and without retries.
func (x *executor) dispatchSync(ctx context.Context, event Event, subs []*Subscription) []HandlerResult {
	subs = orderSubscriptions(subs)
	results := make([]HandlerResult, 0, len(subs))
	for _, sub := range subs {
		if sub.config.Mode == ModeAsync {
			x.stats.recordOutcome(event.Type, false)
			results = append(results, HandlerResult{
				SubscriptionID: sub.ID,
				Status:         StatusFailed,
				Err:            ErrAsyncHandlerInSync,
			})
			continue
		}
		if res, ok := x.run(ctx, event, sub); ok {
			results = append(results, res)
		}
	}
	return results
}

// dispatchAsync executes matching handlers concurrently and waits for all of
// them to settle, preserving subscription order in the returned results.
func (x *executor) dispatchAsync(ctx context.Context, event Event, subs []*Subscription) []HandlerResult {
	subs = orderSubscriptions(subs)
	type slot struct {
		res HandlerResult
		ok  bool
	}
	slots := make([]slot, len(subs))

	var wg sync.WaitGroup
	for i, sub := range subs {
		wg.Add(1)
		go func(i int, sub *Subscription) {
			defer wg.Done()
			res, ok := x.run(ctx, event, sub)
			slots[i] = slot{res: res, ok: ok}
		}(i, sub)
	}
	wg.Wait()

	results := make([]HandlerResult, 0, len(subs))
	for _, s := range slots {
		if s.ok {
			results = append(results, s.res)
		}
	}
	return results
}

// orderSubscriptions sorts subscriptions by priority (highest first),
// preserving registration order within the same priority.
func orderSubscriptions(subs []*Subscription) []*Subscription {
	out := make([]*Subscription, len(subs))
	copy(out, subs)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].config.Priority > out[j].config.Priority
	})
	return out
}

// run executes one subscription's full attempt sequence for an event.
// Returns ok=false when the subscription's filter skipped the handler; skipped
// handlers produce no result at all.
func (x *executor) run(ctx context.Context, event Event, sub *Subscription) (result HandlerResult, ok bool) {
	// A panicking lifecycle hook must not crash the drain loop or the caller.
	defer func() {
		if r := recover(); r != nil {
			x.logger.ErrorContext(ctx, "subscription lifecycle panicked",
				slog.String("event_id", event.ID),
				slog.String("event_type", event.Type),
				slog.String("subscription_id", sub.ID),
				slog.Any("panic", r))
			result = HandlerResult{
				SubscriptionID: sub.ID,
				Status:         StatusFailed,
				Err:            fmt.Errorf("%w: %v", ErrHandlerPanic, r),
			}
			ok = true
			x.stats.recordOutcome(event.Type, false)
		}
	}()

	cfg := sub.config

	if cfg.Filter != nil && !cfg.Filter(event) {
		x.logger.DebugContext(ctx, "event filtered out",
			slog.String("event_id", event.ID),
			slog.String("subscription_id", sub.ID))
		return HandlerResult{}, false
	}

	ctx = WithEventMeta(ctx, event)

	if cfg.BeforeHandler != nil {
		cfg.BeforeHandler(ctx, event)
	}

	handler := x.chain.wrap(sub.handler)
	bo := x.newBackoff()
	start := time.Now()

	var lastErr error
	for attempt := 0; ; attempt++ {
		res, err := x.invoke(ctx, handler, event, cfg.Timeout)
		if err == nil {
			if cfg.AfterHandler != nil {
				cfg.AfterHandler(ctx, event, res)
			}
			x.stats.recordOutcome(event.Type, true)
			x.logger.DebugContext(ctx, "event handler completed",
				slog.String("event_id", event.ID),
				slog.String("event_type", event.Type),
				slog.String("subscription_id", sub.ID),
				slog.Int("retries", attempt),
				slog.Duration("duration", time.Since(start)))
			return HandlerResult{
				SubscriptionID: sub.ID,
				Status:         StatusCompleted,
				Result:         res,
				RetryCount:     attempt,
			}, true
		}

		lastErr = err
		if attempt < cfg.MaxRetries {
			x.logger.DebugContext(ctx, "retrying event handler",
				slog.String("event_id", event.ID),
				slog.String("subscription_id", sub.ID),
				slog.Int("attempt", attempt+1),
				slog.String("error", err.Error()))
			if delay := bo.NextBackOff(); delay > 0 && delay != backoff.Stop {
				time.Sleep(delay)
			}
			continue
		}

		// Retries exhausted: terminal failure.
		if cfg.ErrorHandler != nil {
			cfg.ErrorHandler(ctx, event, lastErr)
		}
		x.deadLetter.add(DeadLetterEntry{
			Event:          event,
			SubscriptionID: sub.ID,
			LastError:      lastErr,
			Attempts:       attempt + 1,
		})
		x.stats.recordOutcome(event.Type, false)
		x.logger.ErrorContext(ctx, "event handler failed",
			slog.String("event_id", event.ID),
			slog.String("event_type", event.Type),
			slog.String("subscription_id", sub.ID),
			slog.Int("retries", attempt),
			slog.Duration("duration", time.Since(start)),
			slog.String("error", lastErr.Error()))
		return HandlerResult{
			SubscriptionID: sub.ID,
			Status:         StatusFailed,
			Err:            lastErr,
			RetryCount:     attempt,
		}, true
	}
}

// invoke runs a single handler attempt bounded by the configured timeout.
// The attempt context carries the deadline so well-behaved handlers can stop
// early, but the engine itself only gives up on timeout: in-flight handlers
// run to completion even while the bus is shutting down. On timeout the
// handler goroutine is abandoned and the attempt counts as failed. Panics
// become errors.
func (x *executor) invoke(ctx context.Context, handler Handler, event Event, timeout time.Duration) (any, error) {
	type outcome struct {
		result any
		err    error
	}
	done := make(chan outcome, 1)

	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("%w: %v", ErrHandlerPanic, r)}
			}
		}()
		res, err := handler.Handle(attemptCtx, event)
		done <- outcome{result: res, err: err}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case o := <-done:
		return o.result, o.err
	case <-timer.C:
		return nil, fmt.Errorf("%w after %s", ErrHandlerTimeout, timeout)
	}
}
