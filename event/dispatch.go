package event

import (
	"context"
	"log/slog"
)

// Observer receives events in publish order. Observe must not block for long;
// a slow observer delays every observer behind it.
type Observer interface {
	Observe(Event)
}

// ObserverFunc adapts a func to the Observer interface.
type ObserverFunc func(Event)

// Observe implements Observer.
func (f ObserverFunc) Observe(e Event) { f(e) }

// drainBatch bounds how many events one wakeup processes before rechecking
// for cancellation.
const drainBatch = 64

// Dispatcher is the single consumer of a sink. It waits on the sink's signal
// channel and fans each drained event out to the registered observers.
type Dispatcher struct {
	sink      *Sink
	observers []Observer
	logger    *slog.Logger
}

// NewDispatcher creates a dispatcher for sink. The observer list is fixed at
// construction.
func NewDispatcher(sink *Sink, logger *slog.Logger, observers ...Observer) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		sink:      sink,
		observers: observers,
		logger:    logger,
	}
}

// Run drains the sink until ctx is cancelled, then performs one final drain
// so events published before cancellation still reach the observers.
func (d *Dispatcher) Run(ctx context.Context) error {
	for {
		d.drainAll(ctx)

		select {
		case <-ctx.Done():
			d.drainAll(context.Background())
			d.logger.Debug("dispatcher stopped", "sink", d.sink.Stats())
			return nil
		case <-d.sink.Signal():
		}
	}
}

func (d *Dispatcher) drainAll(ctx context.Context) {
	for {
		events := d.sink.Drain(drainBatch)
		if len(events) == 0 {
			return
		}
		for _, e := range events {
			for _, obs := range d.observers {
				obs.Observe(e)
			}
		}
		if ctx.Err() != nil {
			return
		}
	}
}
