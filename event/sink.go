package event

import (
	"sync"
	"sync/atomic"

	"github.com/c360/conveyor/errors"
)

// DropCallback is called with each event discarded to make room for a newer
// one. It runs outside the sink lock.
type DropCallback func(Event)

// Option configures sink behavior using the functional options pattern.
type Option func(*sinkOptions)

type sinkOptions struct {
	dropCallback DropCallback
}

// WithDropCallback sets a callback invoked for every event dropped because
// the sink was full.
func WithDropCallback(callback DropCallback) Option {
	return func(opts *sinkOptions) {
		opts.dropCallback = callback
	}
}

// Stats is a snapshot of sink counters.
type Stats struct {
	Published int64 `json:"published"`
	Delivered int64 `json:"delivered"`
	Dropped   int64 `json:"dropped"`
}

// Sink is a fixed-capacity ring of events. Publish never blocks: when the
// ring is full the oldest unread event is dropped. A single consumer drains
// events with Poll or Drain; Signal provides an edge-triggered wakeup so the
// consumer need not spin.
type Sink struct {
	mu       sync.Mutex
	events   []Event
	capacity int
	size     int
	head     int // next write position
	tail     int // next read position
	closed   bool

	signal chan struct{}
	opts   sinkOptions

	published atomic.Int64
	delivered atomic.Int64
	dropped   atomic.Int64
}

// NewSink creates a sink holding at most capacity events.
func NewSink(capacity int, options ...Option) (*Sink, error) {
	if capacity <= 0 {
		return nil, errors.WrapInvalid(errors.ErrInvalidConfig,
			"Sink", "NewSink", "capacity must be positive")
	}

	s := &Sink{
		events:   make([]Event, capacity),
		capacity: capacity,
		signal:   make(chan struct{}, 1),
	}
	for _, opt := range options {
		if opt != nil {
			opt(&s.opts)
		}
	}
	return s, nil
}

// Publish appends an event, dropping the oldest unread one if the ring is
// full. Publishing to a closed sink is a no-op so late worker shutdown events
// cannot fail.
func (s *Sink) Publish(e Event) {
	e = e.stamped()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}

	var droppedEvent Event
	droppedOne := false
	if s.size == s.capacity {
		droppedEvent = s.events[s.tail]
		s.tail = (s.tail + 1) % s.capacity
		s.size--
		droppedOne = true
		s.dropped.Add(1)
	}

	s.events[s.head] = e
	s.head = (s.head + 1) % s.capacity
	s.size++
	s.published.Add(1)
	s.mu.Unlock()

	// Edge-triggered wakeup; a pending signal already covers this publish.
	select {
	case s.signal <- struct{}{}:
	default:
	}

	if droppedOne && s.opts.dropCallback != nil {
		s.opts.dropCallback(droppedEvent)
	}
}

// Poll retrieves and removes the oldest event.
func (s *Sink) Poll() (Event, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var zero Event
	if s.size == 0 {
		return zero, false
	}

	e := s.events[s.tail]
	s.events[s.tail] = zero
	s.tail = (s.tail + 1) % s.capacity
	s.size--
	s.delivered.Add(1)

	return e, true
}

// Drain retrieves and removes up to max events in publish order.
func (s *Sink) Drain(max int) []Event {
	if max <= 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.size == 0 {
		return nil
	}

	n := max
	if n > s.size {
		n = s.size
	}

	var zero Event
	result := make([]Event, n)
	for i := 0; i < n; i++ {
		result[i] = s.events[s.tail]
		s.events[s.tail] = zero
		s.tail = (s.tail + 1) % s.capacity
		s.size--
	}
	s.delivered.Add(int64(n))

	return result
}

// Signal returns a channel that receives after new events arrive. The channel
// is edge-triggered with a one-slot buffer: after a wakeup, drain until empty.
func (s *Sink) Signal() <-chan struct{} {
	return s.signal
}

// Len returns the number of unread events.
func (s *Sink) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.size
}

// Capacity returns the maximum number of unread events the sink can hold.
func (s *Sink) Capacity() int {
	return s.capacity
}

// Stats returns a snapshot of the sink counters.
func (s *Sink) Stats() Stats {
	return Stats{
		Published: s.published.Load(),
		Delivered: s.delivered.Load(),
		Dropped:   s.dropped.Load(),
	}
}

// Close marks the sink closed. Later publishes are discarded; unread events
// remain drainable.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errors.ErrAlreadyStopped
	}
	s.closed = true
	return nil
}
