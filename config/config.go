package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/c360/conveyor/errors"
)

// Duration wraps time.Duration so YAML values like "250ms" parse directly.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	parsed, err := time.ParseDuration(node.Value)
	if err != nil {
		return errors.WrapInvalid(err, "config", "UnmarshalYAML",
			fmt.Sprintf("invalid duration %q", node.Value))
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// BufferConfig sizes the bounded buffer.
type BufferConfig struct {
	Capacity int `yaml:"capacity"`
}

// WorkersConfig sets worker counts and how long a blocked buffer operation
// may wait before it is reported as a timeout and retried.
type WorkersConfig struct {
	Producers   int      `yaml:"producers"`
	Consumers   int      `yaml:"consumers"`
	PutTimeout  Duration `yaml:"put_timeout"`
	TakeTimeout Duration `yaml:"take_timeout"`
}

// EventsConfig sizes the event sink ring.
type EventsConfig struct {
	BufferSize int `yaml:"buffer_size"`
}

// SimulationConfig drives the demo workload in cmd/conveyor. The core engine
// never reads it; build and deliver latency are injected as funcs.
type SimulationConfig struct {
	Labels     []string `yaml:"labels"`
	PrepareMin Duration `yaml:"prepare_min"`
	PrepareMax Duration `yaml:"prepare_max"`
	DeliverMin Duration `yaml:"deliver_min"`
	DeliverMax Duration `yaml:"deliver_max"`
	Seed       int64    `yaml:"seed"`

	// Rate caps item creation per producer in items/second. Zero means
	// latency ranges alone pace the simulation.
	Rate float64 `yaml:"rate"`
}

// ObserveConfig configures the external observation surfaces.
type ObserveConfig struct {
	MetricsAddr string `yaml:"metrics_addr"`
	FeedAddr    string `yaml:"feed_addr"`
	LogEvents   bool   `yaml:"log_events"`
}

// Config is the complete conveyor configuration.
type Config struct {
	Buffer     BufferConfig     `yaml:"buffer"`
	Workers    WorkersConfig    `yaml:"workers"`
	Events     EventsConfig     `yaml:"events"`
	Simulation SimulationConfig `yaml:"simulation"`
	Observe    ObserveConfig    `yaml:"observe"`
}

// Default returns the configuration used when no file or section is given.
func Default() *Config {
	return &Config{
		Buffer: BufferConfig{Capacity: 5},
		Workers: WorkersConfig{
			Producers:   2,
			Consumers:   3,
			PutTimeout:  Duration(2 * time.Second),
			TakeTimeout: Duration(2 * time.Second),
		},
		Events: EventsConfig{BufferSize: 256},
		Simulation: SimulationConfig{
			Labels:     []string{"margherita", "carbonara", "risotto", "tiramisu", "espresso"},
			PrepareMin: Duration(200 * time.Millisecond),
			PrepareMax: Duration(800 * time.Millisecond),
			DeliverMin: Duration(300 * time.Millisecond),
			DeliverMax: Duration(900 * time.Millisecond),
		},
		Observe: ObserveConfig{
			MetricsAddr: ":9090",
			FeedAddr:    ":8080",
			LogEvents:   true,
		},
	}
}

// Load reads a YAML config file, applies defaults for absent fields and
// validates the result. An empty path returns the validated defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.WrapInvalid(err, "config", "Load", "read config file")
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errors.WrapInvalid(err, "config", "Load", "parse config file")
		}
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyDefaults fills zero-valued fields that have a sensible default.
// Explicit invalid values (negative counts) are left for Validate to reject.
func (c *Config) applyDefaults() {
	def := Default()

	if c.Buffer.Capacity == 0 {
		c.Buffer.Capacity = def.Buffer.Capacity
	}
	if c.Workers.Producers == 0 {
		c.Workers.Producers = def.Workers.Producers
	}
	if c.Workers.Consumers == 0 {
		c.Workers.Consumers = def.Workers.Consumers
	}
	if c.Workers.PutTimeout == 0 {
		c.Workers.PutTimeout = def.Workers.PutTimeout
	}
	if c.Workers.TakeTimeout == 0 {
		c.Workers.TakeTimeout = def.Workers.TakeTimeout
	}
	if c.Events.BufferSize == 0 {
		c.Events.BufferSize = def.Events.BufferSize
	}
	if len(c.Simulation.Labels) == 0 {
		c.Simulation.Labels = def.Simulation.Labels
	}
	if c.Simulation.PrepareMin == 0 {
		c.Simulation.PrepareMin = def.Simulation.PrepareMin
	}
	if c.Simulation.PrepareMax == 0 {
		c.Simulation.PrepareMax = def.Simulation.PrepareMax
	}
	if c.Simulation.DeliverMin == 0 {
		c.Simulation.DeliverMin = def.Simulation.DeliverMin
	}
	if c.Simulation.DeliverMax == 0 {
		c.Simulation.DeliverMax = def.Simulation.DeliverMax
	}
	if c.Observe.MetricsAddr == "" {
		c.Observe.MetricsAddr = def.Observe.MetricsAddr
	}
	if c.Observe.FeedAddr == "" {
		c.Observe.FeedAddr = def.Observe.FeedAddr
	}
}

// Validate checks the configuration for values the engine cannot run with.
func (c *Config) Validate() error {
	invalid := func(msg string) error {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "config", "Validate", msg)
	}

	if c.Buffer.Capacity <= 0 {
		return invalid(fmt.Sprintf("buffer capacity must be positive, got %d", c.Buffer.Capacity))
	}
	if c.Workers.Producers <= 0 {
		return invalid(fmt.Sprintf("producers must be positive, got %d", c.Workers.Producers))
	}
	if c.Workers.Consumers <= 0 {
		return invalid(fmt.Sprintf("consumers must be positive, got %d", c.Workers.Consumers))
	}
	if c.Workers.PutTimeout <= 0 {
		return invalid("put_timeout must be positive")
	}
	if c.Workers.TakeTimeout <= 0 {
		return invalid("take_timeout must be positive")
	}
	if c.Events.BufferSize <= 0 {
		return invalid(fmt.Sprintf("events buffer_size must be positive, got %d", c.Events.BufferSize))
	}
	if c.Simulation.PrepareMax < c.Simulation.PrepareMin {
		return invalid("prepare_max must be >= prepare_min")
	}
	if c.Simulation.DeliverMax < c.Simulation.DeliverMin {
		return invalid("deliver_max must be >= deliver_min")
	}
	if c.Simulation.Rate < 0 {
		return invalid("simulation rate must not be negative")
	}
	return nil
}
