package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/c360/conveyor/buffer"
	"github.com/c360/conveyor/config"
	"github.com/c360/conveyor/errors"
	"github.com/c360/conveyor/event"
	"github.com/c360/conveyor/item"
	"github.com/c360/conveyor/metric"
	"github.com/c360/conveyor/worker"
)

// Option configures engine construction.
type Option func(*engineOptions)

type engineOptions struct {
	logger   *slog.Logger
	registry *metric.Registry
	build    worker.BuildFunc
	deliver  worker.DeliverFunc
}

// WithLogger sets the structured logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(opts *engineOptions) {
		if logger != nil {
			opts.logger = logger
		}
	}
}

// WithMetrics enables Prometheus metrics for the engine and its buffer.
func WithMetrics(registry *metric.Registry) Option {
	return func(opts *engineOptions) {
		opts.registry = registry
	}
}

// WithBuild replaces the default item builder given to every producer.
func WithBuild(build worker.BuildFunc) Option {
	return func(opts *engineOptions) {
		opts.build = build
	}
}

// WithDeliver sets the delivery func given to every consumer.
func WithDeliver(deliver worker.DeliverFunc) Option {
	return func(opts *engineOptions) {
		opts.deliver = deliver
	}
}

// BufferSnapshot captures the buffer alongside its occupancy.
type BufferSnapshot struct {
	buffer.Stats
	Size     int `json:"size"`
	Capacity int `json:"capacity"`
}

// Snapshot is a point-in-time view of the whole engine for observers. All
// fields are copies; holding a Snapshot never blocks the engine.
type Snapshot struct {
	RunID   string         `json:"run_id"`
	Paused  bool           `json:"paused"`
	Buffer  BufferSnapshot `json:"buffer"`
	Workers []worker.Info  `json:"workers"`
	Events  event.Stats    `json:"events"`
}

// Engine wires a bounded buffer to N producers and M consumers and exposes
// one control surface over all of them.
type Engine struct {
	id        string
	cfg       *config.Config
	buf       *buffer.Buffer
	sink      *event.Sink
	producers []*worker.Worker
	consumers []*worker.Worker
	seq       *item.Sequence
	logger    *slog.Logger
	metrics   *engineMetrics

	lifecycleMu sync.Mutex
	started     bool
	stopped     bool
	paused      bool
}

// New validates the configuration and constructs the buffer, the sink and
// every worker. Nothing runs until Start; a non-nil error means nothing was
// constructed that needs cleanup.
func New(cfg *config.Config, options ...Option) (*Engine, error) {
	if cfg == nil {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "Engine", "New", "config is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	opts := &engineOptions{logger: slog.Default()}
	for _, opt := range options {
		if opt != nil {
			opt(opts)
		}
	}

	runID := uuid.NewString()
	logger := opts.logger.With("run_id", runID)

	metrics, err := newEngineMetrics(opts.registry)
	if err != nil {
		logger.Error("engine metrics unavailable", "error", err)
		metrics = nil
	}

	sink, err := event.NewSink(cfg.Events.BufferSize)
	if err != nil {
		return nil, err
	}

	buf, err := buffer.New(cfg.Buffer.Capacity,
		buffer.WithSink(sink),
		buffer.WithLogger(logger),
		buffer.WithMetrics(opts.registry, "buffer"),
	)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		id:      runID,
		cfg:     cfg,
		buf:     buf,
		sink:    sink,
		seq:     item.NewSequence(),
		logger:  logger,
		metrics: metrics,
	}

	build := opts.build
	if build == nil {
		build = e.defaultBuild
	}

	for i := 0; i < cfg.Workers.Producers; i++ {
		w, err := worker.New(worker.Config{
			ID:      i + 1,
			Role:    worker.RoleProducer,
			Buffer:  buf,
			Sink:    sink,
			Timeout: cfg.Workers.PutTimeout.Std(),
			Build:   build,
			Logger:  logger,
		})
		if err != nil {
			return nil, err
		}
		e.producers = append(e.producers, w)
	}

	// Consumer ids continue after the producers so events are unambiguous.
	for i := 0; i < cfg.Workers.Consumers; i++ {
		w, err := worker.New(worker.Config{
			ID:      cfg.Workers.Producers + i + 1,
			Role:    worker.RoleConsumer,
			Buffer:  buf,
			Sink:    sink,
			Timeout: cfg.Workers.TakeTimeout.Std(),
			Deliver: opts.deliver,
			Logger:  logger,
		})
		if err != nil {
			return nil, err
		}
		e.consumers = append(e.consumers, w)
	}

	e.metrics.setWorkerCounts(cfg.Workers.Producers, cfg.Workers.Consumers)
	return e, nil
}

// defaultBuild produces unlabeled items off the engine sequence.
func (e *Engine) defaultBuild(_ context.Context, workerID int) (*item.Item, error) {
	return item.New(e.seq.Next(), "item", workerID), nil
}

// RunID returns the unique identifier of this engine instance.
func (e *Engine) RunID() string { return e.id }

// Buffer returns the engine's buffer for direct observation.
func (e *Engine) Buffer() *buffer.Buffer { return e.buf }

// Sink returns the engine's event sink for dispatchers.
func (e *Engine) Sink() *event.Sink { return e.sink }

// Sequence returns the item id sequence, shared with custom build funcs.
func (e *Engine) Sequence() *item.Sequence { return e.seq }

// Start launches all workers. Starting a started engine is a no-op; starting
// a stopped engine is an error since workers terminate one-shot.
func (e *Engine) Start(ctx context.Context) error {
	e.lifecycleMu.Lock()
	defer e.lifecycleMu.Unlock()

	if e.stopped {
		return errors.WrapInvalid(errors.ErrAlreadyStopped, "Engine", "Start", "engine already stopped")
	}
	if e.started {
		return nil
	}
	e.started = true

	for _, w := range e.allWorkers() {
		if err := w.Start(ctx); err != nil {
			return err
		}
	}

	e.logger.Info("engine started",
		"producers", len(e.producers),
		"consumers", len(e.consumers),
		"capacity", e.buf.Capacity())
	return nil
}

// Stop signals every worker to terminate and waits for them to drain. If the
// workers do not finish within timeout a fatal ErrStopTimeout is returned;
// stopping again is a no-op.
func (e *Engine) Stop(timeout time.Duration) error {
	e.lifecycleMu.Lock()
	if e.stopped {
		e.lifecycleMu.Unlock()
		return nil
	}
	e.stopped = true
	e.lifecycleMu.Unlock()

	start := time.Now()
	workers := e.allWorkers()
	for _, w := range workers {
		w.Stop()
	}

	done := make(chan struct{})
	go func() {
		for _, w := range workers {
			<-w.Done()
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(timeout):
		e.metrics.recordStop(time.Since(start), false)
		e.logger.Error("engine stop timed out", "timeout", timeout)
		return errors.WrapFatal(errors.ErrStopTimeout, "Engine", "Stop", "workers did not terminate")
	}

	// Unread events stay drainable after close.
	if err := e.sink.Close(); err != nil && err != errors.ErrAlreadyStopped {
		e.logger.Warn("sink close failed", "error", err)
	}

	e.metrics.recordStop(time.Since(start), true)
	e.logger.Info("engine stopped",
		"duration", time.Since(start),
		"stats", e.buf.SnapshotStats())
	return nil
}

// Pause closes every worker's gate. Idempotent.
func (e *Engine) Pause() {
	e.lifecycleMu.Lock()
	defer e.lifecycleMu.Unlock()

	if e.paused || e.stopped {
		return
	}
	e.paused = true

	for _, w := range e.allWorkers() {
		w.Pause()
	}
	e.metrics.setPaused(true)
	e.metrics.recordPause()
	e.logger.Info("engine paused")
}

// Resume reopens every worker's gate. Idempotent.
func (e *Engine) Resume() {
	e.lifecycleMu.Lock()
	defer e.lifecycleMu.Unlock()

	if !e.paused || e.stopped {
		return
	}
	e.paused = false

	for _, w := range e.allWorkers() {
		w.Resume()
	}
	e.metrics.setPaused(false)
	e.metrics.recordResume()
	e.logger.Info("engine resumed")
}

// Paused reports whether the engine is paused.
func (e *Engine) Paused() bool {
	e.lifecycleMu.Lock()
	defer e.lifecycleMu.Unlock()
	return e.paused
}

// Snapshot aggregates buffer stats, worker states and sink counters without
// touching the buffer mutex.
func (e *Engine) Snapshot() Snapshot {
	e.lifecycleMu.Lock()
	paused := e.paused
	e.lifecycleMu.Unlock()

	workers := e.allWorkers()
	infos := make([]worker.Info, 0, len(workers))
	for _, w := range workers {
		infos = append(infos, w.Info())
	}

	return Snapshot{
		RunID:  e.id,
		Paused: paused,
		Buffer: BufferSnapshot{
			Stats:    e.buf.SnapshotStats(),
			Size:     e.buf.Size(),
			Capacity: e.buf.Capacity(),
		},
		Workers: infos,
		Events:  e.sink.Stats(),
	}
}

// Items returns a copy of the queued items, oldest first.
func (e *Engine) Items() []item.Item {
	return e.buf.SnapshotItems()
}

func (e *Engine) allWorkers() []*worker.Worker {
	all := make([]*worker.Worker, 0, len(e.producers)+len(e.consumers))
	all = append(all, e.producers...)
	all = append(all, e.consumers...)
	return all
}
