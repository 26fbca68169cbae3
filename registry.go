package eventbus

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// registry stores handler registrations keyed by subscription ID and preserves
// registration order for dispatch. It owns subscription lifetimes and is the
// single source of truth for "is this subscription active". It owns no
// scheduling logic.
type registry struct {
	mu      sync.RWMutex
	byID    map[string]*Subscription
	ordered []*Subscription
	logger  *slog.Logger
}

func newRegistry(logger *slog.Logger) *registry {
	return &registry{
		byID:   make(map[string]*Subscription),
		logger: logger,
	}
}

// add registers a subscription for the compiled matcher and returns it.
func (r *registry) add(m matcher, handler Handler, config SubscriptionConfig) *Subscription {
	r.mu.Lock()
	defer r.mu.Unlock()

	sub := &Subscription{
		ID:        uuid.New().String(),
		matcher:   m,
		handler:   handler,
		config:    config,
		createdAt: time.Now(),
	}

	r.byID[sub.ID] = sub
	r.ordered = append(r.ordered, sub)

	r.logger.Debug("subscription added",
		slog.String("subscription_id", sub.ID),
		slog.String("pattern_kind", string(m.kind)),
		slog.String("pattern", m.expr))

	return sub
}

// remove deletes a subscription by ID and reports whether it was found.
// Unknown IDs are non-fatal: concurrent unsubscribe races are expected, so
// they only log a warning.
func (r *registry) remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	sub, ok := r.byID[id]
	if !ok {
		r.logger.Warn("unsubscribe for unknown subscription",
			slog.String("subscription_id", id))
		return false
	}

	delete(r.byID, id)
	for i, s := range r.ordered {
		if s == sub {
			r.ordered = append(r.ordered[:i], r.ordered[i+1:]...)
			break
		}
	}

	r.logger.Debug("subscription removed",
		slog.String("subscription_id", id),
		slog.Duration("lifetime", time.Since(sub.createdAt)))

	return true
}

// matching returns all subscriptions (exact and pattern) whose matcher accepts
// the event type, in registration order.
func (r *registry) matching(eventType string) []*Subscription {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matched []*Subscription
	for _, sub := range r.ordered {
		if sub.Matches(eventType) {
			matched = append(matched, sub)
		}
	}
	return matched
}

// count returns the number of live subscriptions.
func (r *registry) count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}
