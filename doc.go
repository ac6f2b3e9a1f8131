// Package conveyor provides a bounded-buffer synchronization engine that
// coordinates pools of producer and consumer workers over a fixed-capacity
// shared queue.
//
// # Architecture
//
// The engine is built from four cooperating pieces:
//
//	┌─────────────────────────────────────┐
//	│             Engine                  │  Construction, start/stop,
//	│  (pause, resume, snapshot, events)  │  pause/resume fan-out
//	└─────────────────────────────────────┘
//	           ↓ owns
//	┌──────────────┐      ┌──────────────┐
//	│  Producers   │ ───► │ BoundedBuffer│ ───► Consumers
//	│  (workers)   │ Put  │ (sem + mutex)│ Take
//	└──────────────┘      └──────────────┘
//	           ↓ report via
//	┌─────────────────────────────────────┐
//	│            EventSink                │  Bounded, drop-oldest,
//	│   (produced/consumed/state/timeout) │  never blocks a worker
//	└─────────────────────────────────────┘
//
// The buffer implements the classic producer-consumer protocol: a counting
// semaphore per direction (empty slots, full slots) acquired before a single
// mutex that guards the item queue. The fixed semaphore-then-mutex acquisition
// order rules out circular wait, and every semaphore acquisition is bounded by
// a timeout so a blocked worker always regains control.
//
// Workers share one state machine (Idle, Running, Waiting, Paused, Terminated)
// with the producer and consumer roles differing only in which buffer
// operation they drive. Control signals are cooperative: pause, resume and
// stop are observed at loop boundaries, never by interrupting an in-flight
// wait, so no item is ever abandoned mid-transfer.
//
// Presentation code (terminal UIs, dashboards, log files) attaches to the
// EventSink and must never call back into the engine.
//
// # Packages
//
// Core:
//   - item: the record moving through the buffer, with a forward-only status machine
//   - buffer: the synchronized FIFO queue and its statistics
//   - worker: the generic producer/consumer worker
//   - event: the bounded event sink
//   - engine: orchestration and the external control surface
//
// Infrastructure:
//   - config: YAML configuration loading and validation
//   - errors: structured error handling and classification
//   - metric: Prometheus metrics registry
//   - pkg/semaphore: counting semaphore with bounded acquisition
//   - pkg/timestamp: unix-millisecond time utilities
//
// Observers:
//   - output/logfeed: slog-backed event log
//   - output/wsfeed: WebSocket event broadcaster
package conveyor
