package engine

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/conveyor/metric"
)

// engineMetrics holds Prometheus metrics for engine lifecycle operations.
// All record methods tolerate a nil receiver so callers never branch on
// whether metrics are enabled.
type engineMetrics struct {
	producers prometheus.Gauge
	consumers prometheus.Gauge
	paused    prometheus.Gauge

	pauses  prometheus.Counter
	resumes prometheus.Counter
	stops   *prometheus.CounterVec

	stopDuration prometheus.Histogram
}

// newEngineMetrics creates and registers engine metrics with the provided
// registry. A nil registry disables metrics.
func newEngineMetrics(registry *metric.Registry) (*engineMetrics, error) {
	if registry == nil {
		return nil, nil
	}

	m := &engineMetrics{
		producers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "conveyor",
			Subsystem: "engine",
			Name:      "producers",
			Help:      "Number of configured producer workers",
		}),
		consumers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "conveyor",
			Subsystem: "engine",
			Name:      "consumers",
			Help:      "Number of configured consumer workers",
		}),
		paused: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "conveyor",
			Subsystem: "engine",
			Name:      "paused",
			Help:      "Whether the engine is paused (1) or running (0)",
		}),
		pauses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "conveyor",
			Subsystem: "engine",
			Name:      "pauses_total",
			Help:      "Total number of pause operations",
		}),
		resumes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "conveyor",
			Subsystem: "engine",
			Name:      "resumes_total",
			Help:      "Total number of resume operations",
		}),
		stops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "conveyor",
			Subsystem: "engine",
			Name:      "stops_total",
			Help:      "Total number of stop operations by outcome",
		}, []string{"status"}), // status: success, timeout
		stopDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "conveyor",
			Subsystem: "engine",
			Name:      "stop_duration_seconds",
			Help:      "Engine stop duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1.0, 2.0, 5.0},
		}),
	}

	if err := registry.RegisterGauge("engine", "producers", m.producers); err != nil {
		return nil, err
	}
	if err := registry.RegisterGauge("engine", "consumers", m.consumers); err != nil {
		return nil, err
	}
	if err := registry.RegisterGauge("engine", "paused", m.paused); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounter("engine", "pauses", m.pauses); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounter("engine", "resumes", m.resumes); err != nil {
		return nil, err
	}
	if err := registry.PrometheusRegistry().Register(m.stops); err != nil {
		return nil, err
	}
	if err := registry.RegisterHistogram("engine", "stop_duration", m.stopDuration); err != nil {
		return nil, err
	}

	return m, nil
}

func (m *engineMetrics) setWorkerCounts(producers, consumers int) {
	if m == nil {
		return
	}
	m.producers.Set(float64(producers))
	m.consumers.Set(float64(consumers))
}

func (m *engineMetrics) setPaused(paused bool) {
	if m == nil {
		return
	}
	if paused {
		m.paused.Set(1)
	} else {
		m.paused.Set(0)
	}
}

func (m *engineMetrics) recordPause() {
	if m == nil {
		return
	}
	m.pauses.Inc()
}

func (m *engineMetrics) recordResume() {
	if m == nil {
		return
	}
	m.resumes.Inc()
}

func (m *engineMetrics) recordStop(duration time.Duration, success bool) {
	if m == nil {
		return
	}
	status := "success"
	if !success {
		status = "timeout"
	}
	m.stops.WithLabelValues(status).Inc()
	m.stopDuration.Observe(duration.Seconds())
}
