package eventbus

import (
	"context"
	"time"
)

type eventIDCtx struct{}

// WithEventID attaches an event ID to the context.
func WithEventID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, eventIDCtx{}, id)
}

// EventID extracts the event ID from the context.
// Returns empty string if not present.
func EventID(ctx context.Context) string {
	if id, ok := ctx.Value(eventIDCtx{}).(string); ok {
		return id
	}
	return ""
}

type eventTypeCtx struct{}

// WithEventType attaches an event type to the context.
func WithEventType(ctx context.Context, eventType string) context.Context {
	return context.WithValue(ctx, eventTypeCtx{}, eventType)
}

// EventType extracts the event type from the context.
// Returns empty string if not present.
func EventType(ctx context.Context) string {
	if name, ok := ctx.Value(eventTypeCtx{}).(string); ok {
		return name
	}
	return ""
}

type eventTimeCtx struct{}

// WithEventTime attaches the event publish time to the context.
func WithEventTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, eventTimeCtx{}, t)
}

// EventTime extracts the event publish time from the context.
// Returns zero time if not present.
func EventTime(ctx context.Context) time.Time {
	if t, ok := ctx.Value(eventTimeCtx{}).(time.Time); ok {
		return t
	}
	return time.Time{}
}

type correlationIDCtx struct{}

// WithCorrelation attaches a correlation ID to the context.
func WithCorrelation(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationIDCtx{}, id)
}

// CorrelationID extracts the correlation ID from the context.
// Returns empty string if not present.
func CorrelationID(ctx context.Context) string {
	if id, ok := ctx.Value(correlationIDCtx{}).(string); ok {
		return id
	}
	return ""
}

// WithEventMeta attaches all event metadata (ID, type, timestamp, correlation
// ID) to the context so hooks and middleware can read event identity without
// extra plumbing.
func WithEventMeta(ctx context.Context, event Event) context.Context {
	ctx = WithEventID(ctx, event.ID)
	ctx = WithEventType(ctx, event.Type)
	ctx = WithEventTime(ctx, event.Timestamp)
	if event.CorrelationID != "" {
		ctx = WithCorrelation(ctx, event.CorrelationID)
	}
	return ctx
}
