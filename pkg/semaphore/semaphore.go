package semaphore

import (
	"context"
	"time"

	"github.com/c360/conveyor/errors"
)

// Semaphore is a counting semaphore backed by a buffered channel. Acquire
// blocks while the count is zero; Release increments the count and wakes one
// waiter. The count never exceeds the capacity given at construction.
type Semaphore struct {
	slots chan struct{}
}

// New creates a semaphore with the given capacity and initial count.
// Capacity must be positive and initial must be in [0, capacity].
func New(capacity, initial int) (*Semaphore, error) {
	if capacity <= 0 {
		return nil, errors.WrapInvalid(errors.ErrInvalidConfig,
			"Semaphore", "New", "capacity must be positive")
	}
	if initial < 0 || initial > capacity {
		return nil, errors.WrapInvalid(errors.ErrInvalidConfig,
			"Semaphore", "New", "initial count out of range")
	}

	s := &Semaphore{slots: make(chan struct{}, capacity)}
	for i := 0; i < initial; i++ {
		s.slots <- struct{}{}
	}
	return s, nil
}

// TryAcquire attempts to take one slot without blocking.
func (s *Semaphore) TryAcquire() bool {
	select {
	case <-s.slots:
		return true
	default:
		return false
	}
}

// Acquire takes one slot, blocking up to timeout. Returns ErrTimeout if no
// slot became available in time.
func (s *Semaphore) Acquire(timeout time.Duration) error {
	// Fast path: slot already available
	select {
	case <-s.slots:
		return nil
	default:
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-s.slots:
		return nil
	case <-timer.C:
		return errors.ErrTimeout
	}
}

// AcquireContext takes one slot, blocking until the context is done.
func (s *Semaphore) AcquireContext(ctx context.Context) error {
	select {
	case <-s.slots:
		return nil
	default:
	}

	select {
	case <-s.slots:
		return nil
	case <-ctx.Done():
		if ctx.Err() == context.DeadlineExceeded {
			return errors.ErrTimeout
		}
		return ctx.Err()
	}
}

// Release returns one slot. Releasing more slots than the semaphore's
// capacity panics: the put/take protocol pairs every release with an acquire
// on the sibling semaphore, so an overflow is always a caller bug.
func (s *Semaphore) Release() {
	select {
	case s.slots <- struct{}{}:
	default:
		panic(errors.ErrSemaphoreOverflow)
	}
}

// Value returns the current count: how many acquisitions would succeed
// immediately. The value is a snapshot and may be stale by the time the
// caller acts on it.
func (s *Semaphore) Value() int {
	return len(s.slots)
}

// Capacity returns the maximum count the semaphore can hold.
func (s *Semaphore) Capacity() int {
	return cap(s.slots)
}
