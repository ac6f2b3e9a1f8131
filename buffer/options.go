package buffer

import (
	"log/slog"

	"github.com/c360/conveyor/event"
	"github.com/c360/conveyor/metric"
)

// Option configures buffer behavior using the functional options pattern.
type Option func(*bufferOptions)

type bufferOptions struct {
	sink   *event.Sink
	logger *slog.Logger

	// metricsReg is optional - if provided, buffer counters are also exposed
	// as Prometheus metrics
	metricsReg    *metric.Registry
	metricsPrefix string
}

// WithSink attaches an event sink; the buffer reports produced, consumed and
// timeout events to it. Events are emitted after the mutex is released,
// never while held.
func WithSink(sink *event.Sink) Option {
	return func(opts *bufferOptions) {
		opts.sink = sink
	}
}

// WithLogger sets the structured logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(opts *bufferOptions) {
		if logger != nil {
			opts.logger = logger
		}
	}
}

// WithMetrics enables Prometheus metrics export for buffer statistics.
// If registry is nil or prefix empty, the option is ignored.
func WithMetrics(registry *metric.Registry, prefix string) Option {
	return func(opts *bufferOptions) {
		if registry != nil && prefix != "" {
			opts.metricsReg = registry
			opts.metricsPrefix = prefix
		}
	}
}

func applyOptions(options ...Option) *bufferOptions {
	opts := &bufferOptions{
		logger: slog.Default(),
	}
	for _, opt := range options {
		if opt != nil {
			opt(opts)
		}
	}
	return opts
}
