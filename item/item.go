package item

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/c360/conveyor/errors"
	"github.com/c360/conveyor/pkg/timestamp"
)

// Status tracks an item's position in its lifecycle. Transitions are strictly
// forward; an item never revisits a prior status.
type Status int

const (
	// StatusCreated indicates the item was built but not yet ready to enqueue
	StatusCreated Status = iota
	// StatusReady indicates the producer finished preparing the item
	StatusReady
	// StatusEnqueued indicates the item sits in the buffer
	StatusEnqueued
	// StatusDequeued indicates a consumer took the item out of the buffer
	StatusDequeued
	// StatusCompleted indicates delivery finished; terminal
	StatusCompleted
)

// String returns a string representation of the item status
func (s Status) String() string {
	switch s {
	case StatusCreated:
		return "created"
	case StatusReady:
		return "ready"
	case StatusEnqueued:
		return "enqueued"
	case StatusDequeued:
		return "dequeued"
	case StatusCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

// Sequence hands out process-wide unique, monotonically increasing item IDs.
type Sequence struct {
	last atomic.Int64
}

// NewSequence creates a sequence starting at 1.
func NewSequence() *Sequence {
	return &Sequence{}
}

// Next returns the next ID.
func (s *Sequence) Next() int64 {
	return s.last.Add(1)
}

// Item is a single unit of work handed from a producer to a consumer through
// the buffer. Identity fields are immutable after creation; the lifecycle
// timestamps are each set exactly once as the status advances.
type Item struct {
	ID         int64  `json:"id"`
	Label      string `json:"label"`
	ProducerID int    `json:"producer_id"`
	ConsumerID int    `json:"consumer_id,omitempty"`

	CreatedAt   int64 `json:"created_at"`
	ReadyAt     int64 `json:"ready_at,omitempty"`
	EnqueuedAt  int64 `json:"enqueued_at,omitempty"`
	DequeuedAt  int64 `json:"dequeued_at,omitempty"`
	CompletedAt int64 `json:"completed_at,omitempty"`

	status Status
}

// New creates an item in StatusCreated, stamped with the creation time.
func New(id int64, label string, producerID int) *Item {
	return &Item{
		ID:         id,
		Label:      label,
		ProducerID: producerID,
		CreatedAt:  timestamp.Now(),
		status:     StatusCreated,
	}
}

// Status returns the item's current lifecycle status.
func (it *Item) Status() Status {
	return it.status
}

// transition advances the status by exactly one step.
func (it *Item) transition(to Status) error {
	if to != it.status+1 {
		return errors.WrapInvalid(errors.ErrInvalidTransition, "Item", "transition",
			fmt.Sprintf("item %d: %s -> %s", it.ID, it.status, to))
	}
	it.status = to
	return nil
}

// MarkReady records the end of preparation. Called by the owning producer.
func (it *Item) MarkReady() error {
	if err := it.transition(StatusReady); err != nil {
		return err
	}
	it.ReadyAt = timestamp.Now()
	return nil
}

// MarkEnqueued records the handoff into the buffer. Called by the buffer
// inside its critical section.
func (it *Item) MarkEnqueued() error {
	if err := it.transition(StatusEnqueued); err != nil {
		return err
	}
	it.EnqueuedAt = timestamp.Now()
	return nil
}

// MarkDequeued records the handoff to a consumer. Called by the buffer inside
// its critical section.
func (it *Item) MarkDequeued(consumerID int) error {
	if err := it.transition(StatusDequeued); err != nil {
		return err
	}
	it.ConsumerID = consumerID
	it.DequeuedAt = timestamp.Now()
	return nil
}

// MarkCompleted records the end of delivery. Called by the owning consumer.
func (it *Item) MarkCompleted() error {
	if err := it.transition(StatusCompleted); err != nil {
		return err
	}
	it.CompletedAt = timestamp.Now()
	return nil
}

// ProcessingTime returns the creation-to-completion duration, or 0 if the
// item has not completed.
func (it *Item) ProcessingTime() time.Duration {
	return timestamp.Between(it.CreatedAt, it.CompletedAt)
}

// WaitTime returns how long the item sat in the buffer, or 0 if it was never
// dequeued.
func (it *Item) WaitTime() time.Duration {
	return timestamp.Between(it.EnqueuedAt, it.DequeuedAt)
}

// String returns a short description for logs.
func (it *Item) String() string {
	return fmt.Sprintf("item #%d (%s)", it.ID, it.Label)
}
