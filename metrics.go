package eventbus

import (
	"sync"
	"time"
)

// Metrics is a live snapshot of bus-level counters, recomputed on read.
type Metrics struct {
	TotalEventsPublished int64
	ActiveSubscriptions  int
	Uptime               time.Duration
	QueueSize            int
}

// TypeStats aggregates dispatch outcomes for a single event type.
type TypeStats struct {
	EventType        string
	TotalEvents      int64
	SuccessfulEvents int64
	FailedEvents     int64
}

// statsCollector aggregates per-type publish counts and handler outcomes.
// Collection is skipped entirely when disabled via configuration.
type statsCollector struct {
	mu      sync.Mutex
	enabled bool
	byType  map[string]*TypeStats
}

func newStatsCollector(enabled bool) *statsCollector {
	return &statsCollector{
		enabled: enabled,
		byType:  make(map[string]*TypeStats),
	}
}

func (c *statsCollector) counters(eventType string) *TypeStats {
	st, ok := c.byType[eventType]
	if !ok {
		st = &TypeStats{EventType: eventType}
		c.byType[eventType] = st
	}
	return st
}

// recordPublished counts an event of the given type entering the bus.
func (c *statsCollector) recordPublished(eventType string) {
	if !c.enabled {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counters(eventType).TotalEvents++
}

// recordOutcome counts one terminal handler result for the given type.
func (c *statsCollector) recordOutcome(eventType string, success bool) {
	if !c.enabled {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	st := c.counters(eventType)
	if success {
		st.SuccessfulEvents++
	} else {
		st.FailedEvents++
	}
}

// stats returns aggregated counters for one event type.
// Unobserved types return zero counters.
func (c *statsCollector) stats(eventType string) TypeStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	if st, ok := c.byType[eventType]; ok {
		return *st
	}
	return TypeStats{EventType: eventType}
}

// allStats returns a mapping from every observed event type to its counters.
func (c *statsCollector) allStats() map[string]TypeStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]TypeStats, len(c.byType))
	for name, st := range c.byType {
		out[name] = *st
	}
	return out
}
