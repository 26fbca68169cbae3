package eventbus

import (
	"sort"
	"sync"
)

// scheduler maintains per-priority FIFO queues of pending events. Across
// priority levels, all pending higher-priority events drain before any
// lower-priority event, even if the higher-priority event was enqueued later.
// Within a level, ordering is FIFO.
//
// The scheduler only orders work; execution is driven by the bus drain loop,
// which is the single consumer.
type scheduler struct {
	mu     sync.Mutex
	queues map[Priority][]Event
	size   int
	paused bool
	closed bool
	notify chan struct{}
}

func newScheduler() *scheduler {
	return &scheduler{
		queues: make(map[Priority][]Event),
		notify: make(chan struct{}, 1),
	}
}

// enqueue appends an event to its priority queue and wakes the drain loop.
func (s *scheduler) enqueue(event Event) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrBusClosed
	}
	s.queues[event.Priority] = append(s.queues[event.Priority], event)
	s.size++
	s.mu.Unlock()

	s.wake()
	return nil
}

// pop removes and returns the next event: the head of the highest-priority
// non-empty queue. Returns false when paused, closed for draining, or empty.
func (s *scheduler) pop() (Event, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.paused || s.size == 0 {
		return Event{}, false
	}

	levels := make([]Priority, 0, len(s.queues))
	for p, q := range s.queues {
		if len(q) > 0 {
			levels = append(levels, p)
		}
	}
	sort.Slice(levels, func(i, j int) bool { return levels[i] > levels[j] })

	p := levels[0]
	q := s.queues[p]
	event := q[0]
	s.queues[p] = q[1:]
	s.size--

	return event, true
}

// pause stops the drain loop from consuming; published events still accumulate.
func (s *scheduler) pause() {
	s.mu.Lock()
	s.paused = true
	s.mu.Unlock()
}

// resume restarts draining.
func (s *scheduler) resume() {
	s.mu.Lock()
	s.paused = false
	s.mu.Unlock()
	s.wake()
}

// close stops accepting new work. Pending events are left in place so the
// queue depth remains observable after shutdown.
func (s *scheduler) close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.wake()
}

// queueSize returns the number of pending events across all priority levels.
func (s *scheduler) queueSize() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.size
}

// wake signals the drain loop without blocking.
func (s *scheduler) wake() {
	select {
	case s.notify <- struct{}{}:
	default:
	}
}
