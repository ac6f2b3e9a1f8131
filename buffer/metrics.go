package buffer

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/conveyor/metric"
)

// bufferMetrics holds Prometheus metrics for buffer operations.
type bufferMetrics struct {
	produced        prometheus.Counter
	consumed        prometheus.Counter
	produceTimeouts prometheus.Counter
	consumeTimeouts prometheus.Counter

	size        prometheus.Gauge
	utilization prometheus.Gauge
}

// newBufferMetrics creates and registers buffer metrics with the provided registry.
func newBufferMetrics(registry *metric.Registry, prefix string) (*bufferMetrics, error) {
	m := &bufferMetrics{
		produced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "conveyor",
			Subsystem:   "buffer",
			Name:        "produced_total",
			ConstLabels: prometheus.Labels{"component": prefix},
			Help:        "Total items placed into the buffer",
		}),
		consumed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "conveyor",
			Subsystem:   "buffer",
			Name:        "consumed_total",
			ConstLabels: prometheus.Labels{"component": prefix},
			Help:        "Total items taken out of the buffer",
		}),
		produceTimeouts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "conveyor",
			Subsystem:   "buffer",
			Name:        "produce_timeouts_total",
			ConstLabels: prometheus.Labels{"component": prefix},
			Help:        "Total Put calls that timed out waiting for a free slot",
		}),
		consumeTimeouts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "conveyor",
			Subsystem:   "buffer",
			Name:        "consume_timeouts_total",
			ConstLabels: prometheus.Labels{"component": prefix},
			Help:        "Total Take calls that timed out waiting for an item",
		}),
		size: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "conveyor",
			Subsystem:   "buffer",
			Name:        "size",
			ConstLabels: prometheus.Labels{"component": prefix},
			Help:        "Current number of queued items",
		}),
		utilization: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "conveyor",
			Subsystem:   "buffer",
			Name:        "utilization",
			ConstLabels: prometheus.Labels{"component": prefix},
			Help:        "Buffer utilization as a fraction (0.0 to 1.0)",
		}),
	}

	if err := registry.RegisterCounter(prefix, "buffer_produced", m.produced); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounter(prefix, "buffer_consumed", m.consumed); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounter(prefix, "buffer_produce_timeouts", m.produceTimeouts); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounter(prefix, "buffer_consume_timeouts", m.consumeTimeouts); err != nil {
		return nil, err
	}
	if err := registry.RegisterGauge(prefix, "buffer_size", m.size); err != nil {
		return nil, err
	}
	if err := registry.RegisterGauge(prefix, "buffer_utilization", m.utilization); err != nil {
		return nil, err
	}

	return m, nil
}

// recordPut increments the produced counter and updates size/utilization.
func (m *bufferMetrics) recordPut(size, capacity int) {
	m.produced.Inc()
	m.size.Set(float64(size))
	m.utilization.Set(float64(size) / float64(capacity))
}

// recordTake increments the consumed counter and updates size/utilization.
func (m *bufferMetrics) recordTake(size, capacity int) {
	m.consumed.Inc()
	m.size.Set(float64(size))
	m.utilization.Set(float64(size) / float64(capacity))
}

func (m *bufferMetrics) recordProduceTimeout() {
	m.produceTimeouts.Inc()
}

func (m *bufferMetrics) recordConsumeTimeout() {
	m.consumeTimeouts.Inc()
}
