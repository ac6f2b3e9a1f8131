// Package metric manages Prometheus metric registration for the engine.
//
// The registry wraps a private prometheus.Registry so component metrics never
// collide with a process-global default, and tracks registrations by
// component and name so duplicates fail fast with a classified error.
package metric
