package main

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/c360/conveyor/config"
	"github.com/c360/conveyor/item"
)

// simulation synthesizes the workload: producers prepare labeled items with
// randomized latency, consumers deliver them with randomized latency. All
// timing lives here; the engine only sees build and deliver funcs.
type simulation struct {
	labels     []string
	prepareMin time.Duration
	prepareMax time.Duration
	deliverMin time.Duration
	deliverMax time.Duration

	// limiter paces item creation across all producers; nil means the
	// prepare latency alone sets the pace
	limiter *rate.Limiter

	seq *item.Sequence

	rngMu sync.Mutex
	rng   *rand.Rand
}

func newSimulation(cfg *config.Config, seq *item.Sequence) *simulation {
	sim := &simulation{
		labels:     cfg.Simulation.Labels,
		prepareMin: cfg.Simulation.PrepareMin.Std(),
		prepareMax: cfg.Simulation.PrepareMax.Std(),
		deliverMin: cfg.Simulation.DeliverMin.Std(),
		deliverMax: cfg.Simulation.DeliverMax.Std(),
		seq:        seq,
	}

	if cfg.Simulation.Rate > 0 {
		producers := cfg.Workers.Producers
		sim.limiter = rate.NewLimiter(
			rate.Limit(cfg.Simulation.Rate*float64(producers)), producers)
	}

	seed := cfg.Simulation.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	sim.rng = rand.New(rand.NewSource(seed))

	return sim
}

// build implements worker.BuildFunc.
func (s *simulation) build(ctx context.Context, workerID int) (*item.Item, error) {
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
	if err := s.sleep(ctx, s.prepareMin, s.prepareMax); err != nil {
		return nil, err
	}
	return item.New(s.seq.Next(), s.pickLabel(), workerID), nil
}

// deliver implements worker.DeliverFunc.
func (s *simulation) deliver(ctx context.Context, _ *item.Item) error {
	return s.sleep(ctx, s.deliverMin, s.deliverMax)
}

func (s *simulation) pickLabel() string {
	if len(s.labels) == 0 {
		return "item"
	}
	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	return s.labels[s.rng.Intn(len(s.labels))]
}

// sleep waits a random duration in [min, max], returning early on ctx cancel.
func (s *simulation) sleep(ctx context.Context, min, max time.Duration) error {
	d := min
	if max > min {
		s.rngMu.Lock()
		d += time.Duration(s.rng.Int63n(int64(max - min + 1)))
		s.rngMu.Unlock()
	}
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
