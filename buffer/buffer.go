package buffer

import (
	"log/slog"
	"sync"
	"time"

	"github.com/c360/conveyor/errors"
	"github.com/c360/conveyor/event"
	"github.com/c360/conveyor/item"
	"github.com/c360/conveyor/pkg/semaphore"
)

// Buffer is the fixed-capacity FIFO queue shared between producers and
// consumers. Items are dequeued in the order their Put calls completed the
// critical section; no ordering is guaranteed across distinct producers
// beyond that.
type Buffer struct {
	capacity int

	mu    sync.Mutex
	items []*item.Item
	head  int // next read position
	tail  int // next write position
	size  int

	empty *semaphore.Semaphore
	full  *semaphore.Semaphore

	stats   statistics
	opts    *bufferOptions
	logger  *slog.Logger
	metrics *bufferMetrics

	// Test seam: invoked while the mutex is held, nil in production.
	onMutate func()
}

// New creates a buffer with the given capacity. Capacity must be positive;
// a violation is fatal and nothing is constructed.
func New(capacity int, options ...Option) (*Buffer, error) {
	if capacity <= 0 {
		return nil, errors.WrapInvalid(errors.ErrInvalidConfig,
			"Buffer", "New", "capacity must be positive")
	}

	opts := applyOptions(options...)

	empty, err := semaphore.New(capacity, capacity)
	if err != nil {
		return nil, errors.Wrap(err, "Buffer", "New", "create empty-slot semaphore")
	}
	full, err := semaphore.New(capacity, 0)
	if err != nil {
		return nil, errors.Wrap(err, "Buffer", "New", "create full-slot semaphore")
	}

	b := &Buffer{
		capacity: capacity,
		items:    make([]*item.Item, capacity),
		empty:    empty,
		full:     full,
		opts:     opts,
		logger:   opts.logger,
	}

	if opts.metricsReg != nil {
		b.metrics, err = newBufferMetrics(opts.metricsReg, opts.metricsPrefix)
		if err != nil {
			return nil, errors.Wrap(err, "Buffer", "New", "metrics registration")
		}
	}

	return b, nil
}

// Put places an item at the tail, blocking up to timeout for a free slot.
// On timeout the buffer is untouched and the caller keeps ownership of the
// item. The item must be in StatusReady.
func (b *Buffer) Put(it *item.Item, timeout time.Duration) error {
	if it == nil {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Buffer", "Put", "nil item")
	}

	// P(emptySlots), bounded. Semaphore before mutex, always.
	if err := b.empty.Acquire(timeout); err != nil {
		b.stats.addProduceTimeout()
		if b.metrics != nil {
			b.metrics.recordProduceTimeout()
		}
		b.emit(event.Event{
			Kind:     event.KindTimeout,
			WorkerID: it.ProducerID,
			Role:     "producer",
			ItemID:   it.ID,
		})
		return errors.WrapTransient(err, "Buffer", "Put", "acquire empty slot")
	}

	b.mu.Lock()
	if err := it.MarkEnqueued(); err != nil {
		b.mu.Unlock()
		// Undo the acquisition so the slot count stays consistent.
		b.empty.Release()
		return err
	}
	b.items[b.tail] = it
	b.tail = (b.tail + 1) % b.capacity
	b.size++
	size := b.size
	if b.onMutate != nil {
		b.onMutate()
	}
	b.mu.Unlock()

	// V(fullSlots): wake one waiting consumer.
	b.full.Release()

	b.stats.addProduced()
	if b.metrics != nil {
		b.metrics.recordPut(size, b.capacity)
	}

	b.emit(event.Event{
		Kind:     event.KindProduced,
		WorkerID: it.ProducerID,
		Role:     "producer",
		ItemID:   it.ID,
	})

	return nil
}

// Take removes and returns the head item, blocking up to timeout for an
// occupied slot. workerID identifies the consumer for the item record and
// the emitted event.
func (b *Buffer) Take(workerID int, timeout time.Duration) (*item.Item, error) {
	// P(fullSlots), bounded.
	if err := b.full.Acquire(timeout); err != nil {
		b.stats.addConsumeTimeout()
		if b.metrics != nil {
			b.metrics.recordConsumeTimeout()
		}
		b.emit(event.Event{
			Kind:     event.KindTimeout,
			WorkerID: workerID,
			Role:     "consumer",
		})
		return nil, errors.WrapTransient(err, "Buffer", "Take", "acquire full slot")
	}

	b.mu.Lock()
	it := b.items[b.head]
	if err := it.MarkDequeued(workerID); err != nil {
		b.mu.Unlock()
		b.full.Release()
		return nil, err
	}
	b.items[b.head] = nil
	b.head = (b.head + 1) % b.capacity
	b.size--
	size := b.size
	if b.onMutate != nil {
		b.onMutate()
	}
	b.mu.Unlock()

	// V(emptySlots): wake one waiting producer.
	b.empty.Release()

	b.stats.addConsumed()
	if b.metrics != nil {
		b.metrics.recordTake(size, b.capacity)
	}

	b.emit(event.Event{
		Kind:     event.KindConsumed,
		WorkerID: workerID,
		Role:     "consumer",
		ItemID:   it.ID,
	})

	return it, nil
}

// SnapshotStats copies the counters under the stats lock only; it never
// blocks on the buffer mutex.
func (b *Buffer) SnapshotStats() Stats {
	return b.stats.snapshot()
}

// ResetStats zeroes the counters.
func (b *Buffer) ResetStats() {
	b.stats.reset()
}

// SnapshotItems returns value copies of the queued items in FIFO order. The
// snapshot is consistent at the instant it is taken; the queue may change
// immediately afterwards.
func (b *Buffer) SnapshotItems() []item.Item {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]item.Item, 0, b.size)
	for i := 0; i < b.size; i++ {
		out = append(out, *b.items[(b.head+i)%b.capacity])
	}
	return out
}

// Size returns the current number of queued items.
func (b *Buffer) Size() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.size
}

// Capacity returns the fixed capacity set at construction.
func (b *Buffer) Capacity() int {
	return b.capacity
}

// IsEmpty reports whether no items are queued.
func (b *Buffer) IsEmpty() bool {
	return b.Size() == 0
}

// IsFull reports whether the buffer is at capacity.
func (b *Buffer) IsFull() bool {
	return b.Size() == b.capacity
}

// EmptySlots returns the current empty-slot semaphore count.
func (b *Buffer) EmptySlots() int {
	return b.empty.Value()
}

// FullSlots returns the current full-slot semaphore count.
func (b *Buffer) FullSlots() int {
	return b.full.Value()
}

func (b *Buffer) emit(e event.Event) {
	if b.opts.sink != nil {
		b.opts.sink.Publish(e)
	}
}
