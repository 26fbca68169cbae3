package eventbus

import (
	"sort"
	"sync"
)

// historyEntry wraps a dispatched event with a global sequence number so
// windows spanning multiple types can be ordered by publish order.
type historyEntry struct {
	event Event
	seq   uint64
}

// typeHistory is a fixed-capacity ring buffer of events for one event type.
// Insertion evicts the oldest entry first.
type typeHistory struct {
	entries  []historyEntry
	head     int // index of the oldest entry
	count    int
	capacity int
}

func newTypeHistory(capacity int) *typeHistory {
	return &typeHistory{
		entries:  make([]historyEntry, capacity),
		capacity: capacity,
	}
}

func (h *typeHistory) add(e historyEntry) {
	if h.count == h.capacity {
		// Overwrite oldest
		h.entries[h.head] = e
		h.head = (h.head + 1) % h.capacity
		return
	}
	h.entries[(h.head+h.count)%h.capacity] = e
	h.count++
}

// snapshot returns all retained entries, oldest first.
func (h *typeHistory) snapshot() []historyEntry {
	out := make([]historyEntry, h.count)
	for i := 0; i < h.count; i++ {
		out[i] = h.entries[(h.head+i)%h.capacity]
	}
	return out
}

// historyStore keeps a bounded per-type log of published events for audit and
// debugging. The log is in-memory and lives for the process lifetime only.
type historyStore struct {
	mu     sync.Mutex
	limit  int
	byType map[string]*typeHistory
	seq    uint64
}

func newHistoryStore(limit int) *historyStore {
	return &historyStore{
		limit:  limit,
		byType: make(map[string]*typeHistory),
	}
}

// add records a published event in its type's ring buffer.
func (s *historyStore) add(event Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	h, ok := s.byType[event.Type]
	if !ok {
		h = newTypeHistory(s.limit)
		s.byType[event.Type] = h
	}

	s.seq++
	h.add(historyEntry{event: event, seq: s.seq})
}

// get returns the most recent limit events for the given type, oldest first.
// A limit of zero or less returns all retained events.
func (s *historyStore) get(eventType string, limit int) []Event {
	s.mu.Lock()
	defer s.mu.Unlock()

	h, ok := s.byType[eventType]
	if !ok {
		return nil
	}
	return tail(h.snapshot(), limit)
}

// getAll returns the most recent limit events across all types, ordered by
// publish order (oldest first within the returned window).
func (s *historyStore) getAll(limit int) []Event {
	s.mu.Lock()
	defer s.mu.Unlock()

	var merged []historyEntry
	for _, h := range s.byType {
		merged = append(merged, h.snapshot()...)
	}
	sort.Slice(merged, func(i, j int) bool {
		return merged[i].seq < merged[j].seq
	})
	return tail(merged, limit)
}

// tail returns the last limit entries' events, preserving order.
func tail(entries []historyEntry, limit int) []Event {
	if limit > 0 && len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}
	if len(entries) == 0 {
		return nil
	}
	out := make([]Event, len(entries))
	for i, e := range entries {
		out[i] = e.event
	}
	return out
}
