package eventbus

import (
	"context"
	"log/slog"
	"reflect"
	"sync"
	"time"
)

// Middleware wraps a Handler to add cross-cutting functionality around every
// handler invocation. Middlewares compose in onion order: the first registered
// middleware is the outermost wrapper (its pre-phase runs first, its
// post-phase runs last).
type Middleware func(Handler) Handler

// middlewareChain holds registered middlewares in registration order.
// Order is significant and preserved exactly; no reordering by priority or
// event type.
type middlewareChain struct {
	mu          sync.RWMutex
	middlewares []Middleware
}

// add appends a middleware to the chain.
func (c *middlewareChain) add(mw Middleware) {
	if mw == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.middlewares = append(c.middlewares, mw)
}

// remove deletes the first entry matching the given middleware and reports
// whether one was found. Function values are compared by code pointer since Go
// functions are not otherwise comparable.
func (c *middlewareChain) remove(mw Middleware) bool {
	if mw == nil {
		return false
	}
	target := reflect.ValueOf(mw).Pointer()

	c.mu.Lock()
	defer c.mu.Unlock()
	for i, m := range c.middlewares {
		if reflect.ValueOf(m).Pointer() == target {
			c.middlewares = append(c.middlewares[:i], c.middlewares[i+1:]...)
			return true
		}
	}
	return false
}

// wrap applies the chain around a handler. Middlewares are applied from last
// to first so the first registered middleware becomes the outermost wrapper.
func (c *middlewareChain) wrap(handler Handler) Handler {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for i := len(c.middlewares) - 1; i >= 0; i-- {
		handler = c.middlewares[i](handler)
	}
	return handler
}

// LoggingMiddleware logs handler execution with timing.
// Logs start, completion, and errors for all event handlers.
//
// Example:
//
//	bus := eventbus.New(eventbus.WithLogger(logger))
//	bus.Use(eventbus.LoggingMiddleware(logger))
func LoggingMiddleware(logger *slog.Logger) Middleware {
	return func(next Handler) Handler {
		return HandlerFunc(func(ctx context.Context, event Event) (any, error) {
			start := time.Now()
			logger.InfoContext(ctx, "event handler started",
				slog.String("event_id", event.ID),
				slog.String("event_type", event.Type))

			result, err := next.Handle(ctx, event)
			duration := time.Since(start)

			if err != nil {
				logger.ErrorContext(ctx, "event handler failed",
					slog.String("event_id", event.ID),
					slog.String("event_type", event.Type),
					slog.Duration("duration", duration),
					slog.Any("error", err))
			} else {
				logger.InfoContext(ctx, "event handler completed",
					slog.String("event_id", event.ID),
					slog.String("event_type", event.Type),
					slog.Duration("duration", duration))
			}

			return result, err
		})
	}
}
