package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/c360/conveyor/buffer"
	"github.com/c360/conveyor/errors"
	"github.com/c360/conveyor/event"
	"github.com/c360/conveyor/item"
)

// BuildFunc creates the next item for a producer worker. Simulated
// preparation latency belongs inside the func; it should respect ctx and
// return ctx.Err() when cancelled.
type BuildFunc func(ctx context.Context, workerID int) (*item.Item, error)

// DeliverFunc handles an item a consumer worker took from the buffer.
// Simulated delivery latency belongs inside the func.
type DeliverFunc func(ctx context.Context, it *item.Item) error

// Config assembles a worker's dependencies.
type Config struct {
	ID      int
	Role    Role
	Buffer  *buffer.Buffer
	Sink    *event.Sink
	Timeout time.Duration
	Build   BuildFunc   // required for RoleProducer
	Deliver DeliverFunc // optional for RoleConsumer
	Logger  *slog.Logger
}

// Worker owns one goroutine of control interacting with the buffer. All
// control methods are idempotent and safe to call from any goroutine.
type Worker struct {
	id      int
	role    Role
	buf     *buffer.Buffer
	sink    *event.Sink
	timeout time.Duration
	build   BuildFunc
	deliver DeliverFunc
	logger  *slog.Logger

	ctl struct {
		mu      sync.Mutex
		cond    *sync.Cond
		paused  bool
		stopped bool
	}

	state    atomic.Int32
	started  atomic.Bool
	done     chan struct{}
	doneOnce sync.Once

	activityMu sync.Mutex
	activity   string

	// pending holds a built item across put timeouts so it is retried, not lost
	pending *item.Item

	produced atomic.Int64
	consumed atomic.Int64
	timeouts atomic.Int64
}

// New creates a worker in StateIdle. Timeout must be positive and the buffer
// non-nil; producers additionally need a build func.
func New(cfg Config) (*Worker, error) {
	if cfg.Buffer == nil {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "Worker", "New", "buffer is required")
	}
	if cfg.Timeout <= 0 {
		return nil, errors.WrapInvalid(errors.ErrInvalidConfig, "Worker", "New", "timeout must be positive")
	}
	if cfg.Role == RoleProducer && cfg.Build == nil {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "Worker", "New", "producer requires a build func")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	w := &Worker{
		id:      cfg.ID,
		role:    cfg.Role,
		buf:     cfg.Buffer,
		sink:    cfg.Sink,
		timeout: cfg.Timeout,
		build:   cfg.Build,
		deliver: cfg.Deliver,
		logger:  logger.With("worker", cfg.ID, "role", cfg.Role.String()),
		done:    make(chan struct{}),
	}
	w.ctl.cond = sync.NewCond(&w.ctl.mu)
	w.state.Store(int32(StateIdle))
	w.setActivity("waiting to start")
	return w, nil
}

// ID returns the worker's identifier.
func (w *Worker) ID() int { return w.id }

// Role returns the worker's role.
func (w *Worker) Role() Role { return w.role }

// State returns the worker's current lifecycle state.
func (w *Worker) State() State {
	return State(w.state.Load())
}

// Counts returns a snapshot of the worker's local counters.
func (w *Worker) Counts() Counts {
	return Counts{
		Produced: w.produced.Load(),
		Consumed: w.consumed.Load(),
		Timeouts: w.timeouts.Load(),
	}
}

// Info returns a point-in-time description of the worker.
func (w *Worker) Info() Info {
	w.activityMu.Lock()
	activity := w.activity
	w.activityMu.Unlock()

	return Info{
		ID:       w.id,
		Role:     w.role.String(),
		State:    w.State().String(),
		Activity: activity,
		Counts:   w.Counts(),
	}
}

// Done returns a channel closed when the worker has terminated.
func (w *Worker) Done() <-chan struct{} { return w.done }

// Start launches the worker loop. Starting an already-started worker is a
// no-op.
func (w *Worker) Start(ctx context.Context) error {
	if !w.started.CompareAndSwap(false, true) {
		return nil
	}

	go w.run(ctx)

	// External cancellation counts as a stop signal, including for workers
	// blocked on the pause gate.
	go func() {
		select {
		case <-ctx.Done():
			w.Stop()
		case <-w.done:
		}
	}()

	return nil
}

// Stop requests termination. One-shot and irreversible; stopping a stopped
// worker is a no-op. The worker finishes the item it is handling, then
// terminates.
func (w *Worker) Stop() {
	w.ctl.mu.Lock()
	already := w.ctl.stopped
	w.ctl.stopped = true
	w.ctl.mu.Unlock()

	if already {
		return
	}
	w.ctl.cond.Broadcast()

	// A worker that was never started terminates immediately.
	if !w.started.Load() {
		w.state.Store(int32(StateTerminated))
		w.doneOnce.Do(func() { close(w.done) })
	}
}

// Pause closes the gate. The worker blocks before starting its next item; an
// in-flight semaphore wait is not interrupted.
func (w *Worker) Pause() {
	w.ctl.mu.Lock()
	w.ctl.paused = true
	w.ctl.mu.Unlock()
}

// Resume reopens the gate.
func (w *Worker) Resume() {
	w.ctl.mu.Lock()
	w.ctl.paused = false
	w.ctl.mu.Unlock()
	w.ctl.cond.Broadcast()
}

// stopRequested reports whether Stop has been called.
func (w *Worker) stopRequested() bool {
	w.ctl.mu.Lock()
	defer w.ctl.mu.Unlock()
	return w.ctl.stopped
}

// gate blocks while paused. Returns false if stop was observed.
func (w *Worker) gate() bool {
	w.ctl.mu.Lock()
	defer w.ctl.mu.Unlock()

	if w.ctl.stopped {
		return false
	}
	if !w.ctl.paused {
		return true
	}

	w.setState(StatePaused)
	w.setActivity("paused")
	for w.ctl.paused && !w.ctl.stopped {
		w.ctl.cond.Wait()
	}
	if w.ctl.stopped {
		return false
	}
	w.setState(StateRunning)
	return true
}

func (w *Worker) run(ctx context.Context) {
	defer func() {
		w.setState(StateTerminated)
		w.setActivity("terminated")
		w.doneOnce.Do(func() { close(w.done) })
		w.logger.Info("worker terminated",
			"produced", w.produced.Load(),
			"consumed", w.consumed.Load(),
			"timeouts", w.timeouts.Load())
	}()

	w.setState(StateRunning)
	w.logger.Info("worker started")

	for {
		if !w.gate() {
			return
		}
		if ctx.Err() != nil {
			return
		}

		switch w.role {
		case RoleProducer:
			w.produceOne(ctx)
		case RoleConsumer:
			w.consumeOne(ctx)
		}
	}
}

// produceOne builds an item if none is pending and attempts to place it. A
// put timeout keeps the item pending so the next iteration retries it.
func (w *Worker) produceOne(ctx context.Context) {
	if w.pending == nil {
		w.setActivity("building item")
		it, err := w.build(ctx, w.id)
		if err != nil {
			if ctx.Err() == nil && !w.stopRequested() {
				w.logger.Warn("build failed", "error", err)
			}
			return
		}
		if it == nil {
			return
		}
		if it.Status() == item.StatusCreated {
			if err := it.MarkReady(); err != nil {
				w.logger.Warn("discarding unbuildable item", "item", it.ID, "error", err)
				return
			}
		}
		w.pending = it
	}

	it := w.pending
	w.setActivity(fmt.Sprintf("waiting to place %s", it))
	w.setState(StateWaiting)
	err := w.buf.Put(it, w.timeout)
	w.setState(StateRunning)

	if err != nil {
		if errors.IsTimeout(err) {
			// Not fatal: keep the item and retry on the next iteration.
			w.timeouts.Add(1)
			w.setActivity("buffer full, retrying")
			w.logger.Debug("put timed out, retrying", "item", it.ID)
			return
		}
		w.logger.Error("put failed, discarding item", "item", it.ID, "error", err)
		w.pending = nil
		return
	}

	w.pending = nil
	w.produced.Add(1)
	w.setActivity(fmt.Sprintf("placed %s", it))
}

// consumeOne takes one item and delivers it. An item taken out of the buffer
// is always finished, even if stop arrived during the wait.
func (w *Worker) consumeOne(ctx context.Context) {
	w.setActivity("waiting for item")
	w.setState(StateWaiting)
	it, err := w.buf.Take(w.id, w.timeout)
	w.setState(StateRunning)

	if err != nil {
		if errors.IsTimeout(err) {
			w.timeouts.Add(1)
			w.setActivity("buffer empty, retrying")
			w.logger.Debug("take timed out, retrying")
			return
		}
		w.logger.Error("take failed", "error", err)
		return
	}

	w.setActivity(fmt.Sprintf("delivering %s", it))
	if w.deliver != nil {
		if err := w.deliver(ctx, it); err != nil {
			w.logger.Warn("delivery reported error", "item", it.ID, "error", err)
		}
	}
	if err := it.MarkCompleted(); err != nil {
		w.logger.Warn("could not complete item", "item", it.ID, "error", err)
		return
	}

	w.consumed.Add(1)
	w.setActivity(fmt.Sprintf("delivered %s", it))
}

// setState updates the state, reporting the transition to the sink and log.
func (w *Worker) setState(next State) {
	prev := State(w.state.Swap(int32(next)))
	if prev == next {
		return
	}

	if w.sink != nil {
		w.sink.Publish(event.Event{
			Kind:     event.KindStateChanged,
			WorkerID: w.id,
			Role:     w.role.String(),
			From:     prev.String(),
			To:       next.String(),
		})
	}
	w.logger.Debug("state changed", "from", prev.String(), "to", next.String())
}

func (w *Worker) setActivity(activity string) {
	w.activityMu.Lock()
	w.activity = activity
	w.activityMu.Unlock()
}
