package eventbus

import (
	"time"

	"github.com/google/uuid"
)

// Priority represents event scheduling weight (0-100, higher drains first).
// Using int8 provides sufficient range while keeping memory footprint minimal.
type Priority int8

const (
	PriorityLow      Priority = 25
	PriorityNormal   Priority = 50
	PriorityHigh     Priority = 75
	PriorityCritical Priority = 100
	PriorityDefault  Priority = PriorityNormal
)

// Valid checks if the priority is within the allowed range (0-100).
func (p Priority) Valid() bool {
	return p >= 0 && p <= 100
}

// ProcessingMode determines whether an event's handlers run on the strict
// synchronous path or the awaited asynchronous path with retries.
type ProcessingMode string

const (
	ModeSync  ProcessingMode = "sync"
	ModeAsync ProcessingMode = "async"
)

// Event represents a single published notification with metadata and payload.
// Events are immutable once published; ID is unique per publish call, even
// within a batch.
type Event struct {
	ID            string         `json:"id"`
	Type          string         `json:"type"`
	Payload       any            `json:"payload,omitempty"`
	Source        string         `json:"source,omitempty"`
	Priority      Priority       `json:"priority"`
	CorrelationID string         `json:"correlation_id,omitempty"`
	Tags          []string       `json:"tags,omitempty"`
	Timestamp     time.Time      `json:"timestamp"`
	Mode          ProcessingMode `json:"processing_mode"`
}

// NewEvent creates a new Event with auto-generated ID and timestamp.
// Priority defaults to PriorityNormal and the processing mode to ModeAsync.
//
// Example:
//
//	evt := eventbus.NewEvent("user.created", UserCreated{UserID: "123"})
//	// evt.ID will be a UUID
//	// evt.Timestamp will be time.Now()
func NewEvent(eventType string, payload any) Event {
	return Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		Payload:   payload,
		Priority:  PriorityDefault,
		Timestamp: time.Now(),
		Mode:      ModeAsync,
	}
}

// PublishOption customizes a single publish call.
type PublishOption func(*Event)

// WithSource records the component that produced the event.
func WithSource(source string) PublishOption {
	return func(e *Event) {
		e.Source = source
	}
}

// WithPriority sets the scheduling priority for the event.
// Invalid values are ignored and the default is kept.
func WithPriority(p Priority) PublishOption {
	return func(e *Event) {
		if p.Valid() {
			e.Priority = p
		}
	}
}

// WithCorrelationID ties the event to a request or trace identifier.
func WithCorrelationID(id string) PublishOption {
	return func(e *Event) {
		e.CorrelationID = id
	}
}

// WithTags attaches free-form labels to the event.
func WithTags(tags ...string) PublishOption {
	return func(e *Event) {
		if len(tags) > 0 {
			e.Tags = tags
		}
	}
}

// WithProcessingMode selects the dispatch path for the event's handlers.
func WithProcessingMode(mode ProcessingMode) PublishOption {
	return func(e *Event) {
		if mode == ModeSync || mode == ModeAsync {
			e.Mode = mode
		}
	}
}
