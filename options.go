package eventbus

import (
	"context"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	// DefaultHistoryLimit is the default per-type history ring buffer size.
	DefaultHistoryLimit = 100

	// DefaultTimeout is the default bound for a single handler attempt.
	DefaultTimeout = 30 * time.Second

	// DefaultShutdownTimeout is the default wait for in-flight handlers
	// during Shutdown.
	DefaultShutdownTimeout = 30 * time.Second
)

// Option is a functional option for configuring a Bus.
type Option func(*Bus)

// WithLogger configures structured logging for bus operations.
// Use slog.New(slog.NewTextHandler(io.Discard, nil)) to disable logging.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Bus) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// WithHistoryLimit sets the maximum number of events retained per event type.
// Insertion beyond the limit evicts the oldest entry first. Default: 100.
func WithHistoryLimit(limit int) Option {
	return func(b *Bus) {
		if limit > 0 {
			b.historyLimit = limit
		}
	}
}

// WithDefaultTimeout sets the handler attempt timeout used by subscriptions
// that do not specify their own. Default: 30s.
func WithDefaultTimeout(d time.Duration) Option {
	return func(b *Bus) {
		if d > 0 {
			b.defaultTimeout = d
		}
	}
}

// WithShutdownTimeout configures maximum wait time for active handlers during
// shutdown. The bus will wait this long before abandoning them. Default: 30s.
func WithShutdownTimeout(d time.Duration) Option {
	return func(b *Bus) {
		if d > 0 {
			b.shutdownTimeout = d
		}
	}
}

// WithMetrics enables or disables per-type stats collection.
// Bus-level counters (Metrics, BusStats) are always maintained. Default: enabled.
func WithMetrics(enabled bool) Option {
	return func(b *Bus) {
		b.metricsEnabled = enabled
	}
}

// WithRetryBackoff sets the factory producing the delay policy between retry
// attempts. Each attempt sequence gets its own backoff instance. The default
// retries immediately, which keeps retry timing out of the observable
// contract.
//
// Example:
//
//	bus := eventbus.New(eventbus.WithRetryBackoff(func() backoff.BackOff {
//	    return backoff.NewExponentialBackOff()
//	}))
func WithRetryBackoff(factory func() backoff.BackOff) Option {
	return func(b *Bus) {
		if factory != nil {
			b.newBackoff = factory
		}
	}
}

// WithFallbackHandler sets a handler for events that match no subscription.
// Useful for logging unhandled events or forwarding them elsewhere.
//
// Example:
//
//	bus := eventbus.New(eventbus.WithFallbackHandler(func(ctx context.Context, evt eventbus.Event) error {
//	    log.Warn("unhandled event", "id", evt.ID, "type", evt.Type)
//	    return nil
//	}))
func WithFallbackHandler(fn func(ctx context.Context, event Event) error) Option {
	return func(b *Bus) {
		if fn != nil {
			b.fallback = fn
		}
	}
}
