package eventbus

import (
	"sync"
	"time"
)

// DeadLetterEntry holds an event whose handler exhausted all retries.
// Entries are created only by the retry engine and removed only by
// ClearDeadLetterQueue or a successful replay via RetryDeadLetterEvents.
type DeadLetterEntry struct {
	Event          Event
	SubscriptionID string
	LastError      error
	Attempts       int
	FailedAt       time.Time
}

// deadLetterStore holds permanently failed events for operator-triggered replay.
type deadLetterStore struct {
	mu      sync.Mutex
	entries []DeadLetterEntry
}

func newDeadLetterStore() *deadLetterStore {
	return &deadLetterStore{}
}

// add appends an exhausted (event, subscription, error) triple.
func (s *deadLetterStore) add(entry DeadLetterEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry.FailedAt = time.Now()
	s.entries = append(s.entries, entry)
}

// snapshot returns a copy of all current entries.
func (s *deadLetterStore) snapshot() []DeadLetterEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]DeadLetterEntry, len(s.entries))
	copy(out, s.entries)
	return out
}

// drain atomically re-enqueues every entry via the given function and removes
// the entries that were accepted. Re-enqueue and removal happen in a single
// critical section so an entry is never removed before it is back in the
// scheduler. Entries the scheduler rejects (e.g. bus shutting down) are kept.
func (s *deadLetterStore) drain(enqueue func(Event) error) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	var kept []DeadLetterEntry
	replayed := 0
	for _, entry := range s.entries {
		if err := enqueue(entry.Event); err != nil {
			kept = append(kept, entry)
			continue
		}
		replayed++
	}
	s.entries = kept
	return replayed
}

// clear discards all entries unconditionally and returns how many were dropped.
func (s *deadLetterStore) clear() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.entries)
	s.entries = nil
	return n
}
