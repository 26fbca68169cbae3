// Package eventbus provides an in-process event bus for decoupled producers
// and consumers, with priority scheduling, retries, dead-letter routing, a
// middleware chain, and built-in history and metrics.
//
// # Core Components
//
// Event represents a published notification with metadata (ID, Type, Payload,
// Priority, Timestamp). Events are automatically assigned UUIDs and timestamps
// upon publish and are immutable afterwards.
//
// Handler processes events through a single-method interface. Plain functions
// adapt via HandlerFunc, so closures and named types register uniformly.
//
// Subscriptions bind an exact event type, a glob pattern, or a regular
// expression to a handler, with per-subscription configuration: priority,
// processing mode, timeout, retries, a filter predicate, and lifecycle hooks.
//
// The dispatch scheduler maintains per-priority FIFO queues. Higher-priority
// pending events always drain before lower-priority ones, regardless of
// arrival order. Pause and Resume control draining; Shutdown stops intake and
// waits for in-flight handlers.
//
// Handlers that fail are retried up to the subscription's MaxRetries (with an
// optional backoff policy); events whose handlers exhaust their retries land
// in the dead letter store for operator-triggered replay.
//
// Middleware wraps every handler invocation in onion order: the first
// registered middleware runs its pre-phase first and its post-phase last.
//
// # Basic Usage
//
//	import (
//		"context"
//		"log/slog"
//		"os"
//
//		"github.com/dmitrymomot/eventbus"
//	)
//
//	func main() {
//		logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
//
//		bus := eventbus.New(
//			eventbus.WithLogger(logger),
//			eventbus.WithHistoryLimit(500),
//		)
//
//		ctx := context.Background()
//		if err := bus.Initialize(ctx); err != nil {
//			logger.Error("failed to start bus", "error", err)
//			os.Exit(1)
//		}
//		defer bus.Shutdown(context.Background())
//
//		bus.Subscribe("user.created", eventbus.HandlerFunc(
//			func(ctx context.Context, evt eventbus.Event) (any, error) {
//				logger.Info("user created", "payload", evt.Payload)
//				return nil, nil
//			},
//		), eventbus.SubscriptionConfig{MaxRetries: 3})
//
//		bus.Publish(ctx, "user.created", map[string]string{"user_id": "123"},
//			eventbus.WithPriority(eventbus.PriorityHigh))
//	}
//
// # Pattern Subscriptions
//
// SubscribePattern evaluates glob or regex patterns against every published
// event type at dispatch time:
//
//	bus.SubscribePattern(eventbus.Pattern{
//		Kind: eventbus.PatternGlob,
//		Expr: "user.*",
//	}, handler)
//
// # Synchronous Dispatch
//
// EmitSync bypasses the queue and runs matching handlers sequentially in the
// caller's goroutine, returning one HandlerResult per subscription.
// Subscriptions configured for asynchronous processing are a configuration
// error on this path and are recorded as FAILED without being invoked.
//
// # Configuration
//
// The bus is configured via functional options or environment variables:
//
//	cfg, err := eventbus.LoadConfig()
//	if err != nil {
//		return err
//	}
//	bus := eventbus.NewFromConfig(cfg, eventbus.WithLogger(logger))
//
// # Delivery Guarantees
//
// The bus is single-process and in-memory. History and dead letter entries do
// not survive restarts, and delivery is at-most-once: a crash between
// dead-letter replay and dispatch is an accepted risk.
package eventbus
