package eventbus

import (
	"context"
	"time"
)

// Handler processes events. Both user-supplied closures (via HandlerFunc) and
// named types satisfy it uniformly.
type Handler interface {
	// Handle executes the handler for the given event.
	// The returned value is surfaced on the HandlerResult.
	Handle(ctx context.Context, event Event) (any, error)
}

// HandlerFunc adapts a plain function to the Handler interface.
type HandlerFunc func(ctx context.Context, event Event) (any, error)

// Handle implements the Handler interface.
func (f HandlerFunc) Handle(ctx context.Context, event Event) (any, error) {
	return f(ctx, event)
}

// SubscriptionConfig tunes how a single subscription's handler is executed.
// The zero value is usable: async processing, normal priority, no retries and
// the bus default timeout.
type SubscriptionConfig struct {
	// Priority orders this subscription's execution within a dispatch.
	Priority Priority

	// Mode selects the execution path. Subscriptions in ModeAsync are
	// rejected by EmitSync with a configuration error.
	Mode ProcessingMode

	// Timeout bounds a single handler attempt. Zero means the bus default.
	Timeout time.Duration

	// MaxRetries is the number of additional attempts after a failure.
	MaxRetries int

	// Filter skips the handler entirely when it returns false.
	// Skipped handlers produce no HandlerResult at all.
	Filter func(Event) bool

	// BeforeHandler runs before the handler on every attempt sequence.
	BeforeHandler func(ctx context.Context, event Event)

	// AfterHandler runs after the handler completes successfully.
	AfterHandler func(ctx context.Context, event Event, result any)

	// ErrorHandler runs after the handler terminally fails (retries exhausted).
	ErrorHandler func(ctx context.Context, event Event, err error)
}

// normalize fills defaulted fields, using the bus default timeout for zero.
func (c SubscriptionConfig) normalize(defaultTimeout time.Duration) SubscriptionConfig {
	if !c.Priority.Valid() || c.Priority == 0 {
		c.Priority = PriorityDefault
	}
	if c.Mode != ModeSync && c.Mode != ModeAsync {
		c.Mode = ModeAsync
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	return c
}

// Subscription binds a matcher to a handler with its execution config.
// Subscriptions are created only via Subscribe/SubscribePattern and destroyed
// only via Unsubscribe; the registry owns their lifetime.
type Subscription struct {
	ID        string
	matcher   matcher
	handler   Handler
	config    SubscriptionConfig
	createdAt time.Time
}

// Config returns the normalized subscription configuration.
func (s *Subscription) Config() SubscriptionConfig {
	return s.config
}

// Matches reports whether the subscription accepts the given event type.
func (s *Subscription) Matches(eventType string) bool {
	return s.matcher.Match(eventType)
}

// ResultStatus reports the terminal outcome of a handler attempt sequence.
type ResultStatus string

const (
	StatusCompleted ResultStatus = "completed"
	StatusFailed    ResultStatus = "failed"
)

// HandlerResult is produced once per (event, subscription) pair per dispatch
// attempt sequence and is never mutated after return.
type HandlerResult struct {
	SubscriptionID string
	Status         ResultStatus
	Result         any
	Err            error
	RetryCount     int
}
