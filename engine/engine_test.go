package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/conveyor/config"
	"github.com/c360/conveyor/errors"
	"github.com/c360/conveyor/item"
	"github.com/c360/conveyor/metric"
)

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Buffer.Capacity = 2
	cfg.Workers.Producers = 2
	cfg.Workers.Consumers = 2
	cfg.Workers.PutTimeout = config.Duration(100 * time.Millisecond)
	cfg.Workers.TakeTimeout = config.Duration(100 * time.Millisecond)
	cfg.Events.BufferSize = 512
	return cfg
}

func waitFor(t *testing.T, d time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestNewValidation(t *testing.T) {
	e, err := New(nil)
	require.Error(t, err)
	assert.Nil(t, e)
	assert.True(t, errors.IsInvalid(err))

	bad := testConfig()
	bad.Buffer.Capacity = -1
	e, err = New(bad)
	require.Error(t, err)
	assert.Nil(t, e)
	assert.True(t, errors.IsInvalid(err))
}

func TestEngineLifecycle(t *testing.T) {
	e, err := New(testConfig())
	require.NoError(t, err)
	require.NotEmpty(t, e.RunID())

	ctx := context.Background()
	require.NoError(t, e.Start(ctx))
	require.NoError(t, e.Start(ctx), "second start is a no-op")

	waitFor(t, 10*time.Second, func() bool {
		return e.Snapshot().Buffer.Consumed >= 20
	}, "engine made no progress")

	e.Pause()
	e.Pause()
	assert.True(t, e.Paused())
	waitFor(t, 5*time.Second, func() bool {
		for _, info := range e.Snapshot().Workers {
			if info.State != "paused" {
				return false
			}
		}
		return true
	}, "workers never all paused")

	frozen := e.Snapshot().Buffer.Stats
	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, frozen, e.Snapshot().Buffer.Stats, "stats must not move while paused")

	e.Resume()
	e.Resume()
	assert.False(t, e.Paused())
	waitFor(t, 5*time.Second, func() bool {
		return e.Snapshot().Buffer.Consumed > frozen.Consumed
	}, "no progress after resume")

	require.NoError(t, e.Stop(5*time.Second))
	require.NoError(t, e.Stop(5*time.Second), "second stop is a no-op")

	snap := e.Snapshot()
	for _, info := range snap.Workers {
		assert.Equal(t, "terminated", info.State, "worker %d not terminated", info.ID)
	}
	assert.Equal(t, snap.Buffer.Produced, snap.Buffer.Consumed+int64(snap.Buffer.Size),
		"every produced item must be consumed or still queued")

	err = e.Start(ctx)
	require.Error(t, err, "start after stop must fail")
	assert.True(t, errors.IsInvalid(err))
}

func TestBlockedProducerRecovers(t *testing.T) {
	cfg := testConfig()
	cfg.Workers.Producers = 1
	cfg.Workers.Consumers = 1
	cfg.Workers.PutTimeout = config.Duration(40 * time.Millisecond)

	release := make(chan struct{})
	e, err := New(cfg, WithDeliver(func(ctx context.Context, _ *item.Item) error {
		select {
		case <-release:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, e.Start(ctx))

	// The consumer wedges in delivery, the buffer fills, and the producer
	// starts timing out on its pending item.
	waitFor(t, 10*time.Second, func() bool {
		return e.Snapshot().Buffer.ProduceTimeouts >= 2
	}, "producer never hit the full buffer")
	assert.True(t, e.Buffer().IsFull())

	// Releasing delivery frees slots; the pending item must make it through.
	before := e.Snapshot().Buffer.Produced
	close(release)
	waitFor(t, 10*time.Second, func() bool {
		return e.Snapshot().Buffer.Produced > before
	}, "blocked producer never recovered")

	require.NoError(t, e.Stop(5*time.Second))

	snap := e.Snapshot()
	assert.Equal(t, snap.Buffer.Produced, snap.Buffer.Consumed+int64(snap.Buffer.Size))
}

func TestEngineWithMetrics(t *testing.T) {
	registry := metric.NewRegistry()

	e, err := New(testConfig(), WithMetrics(registry))
	require.NoError(t, err)

	require.NoError(t, e.Start(context.Background()))
	waitFor(t, 10*time.Second, func() bool {
		return e.Snapshot().Buffer.Consumed >= 5
	}, "engine made no progress")

	e.Pause()
	e.Resume()
	require.NoError(t, e.Stop(5*time.Second))

	families, err := registry.PrometheusRegistry().Gather()
	require.NoError(t, err)

	names := make(map[string]bool, len(families))
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["conveyor_engine_pauses_total"])
	assert.True(t, names["conveyor_engine_stop_duration_seconds"])
	assert.True(t, names["conveyor_buffer_produced_total"])
}

func TestCustomBuildUsesEngineSequence(t *testing.T) {
	cfg := testConfig()
	cfg.Workers.Producers = 1
	cfg.Workers.Consumers = 1

	delivered := make(chan *item.Item, 256)

	var e *Engine
	e, err := New(cfg,
		WithBuild(func(_ context.Context, workerID int) (*item.Item, error) {
			return item.New(e.Sequence().Next(), "custom", workerID), nil
		}),
		WithDeliver(func(_ context.Context, it *item.Item) error {
			select {
			case delivered <- it:
			default:
			}
			return nil
		}),
	)
	require.NoError(t, err)

	require.NoError(t, e.Start(context.Background()))
	waitFor(t, 10*time.Second, func() bool {
		return e.Snapshot().Buffer.Consumed >= 5
	}, "engine made no progress")
	require.NoError(t, e.Stop(5*time.Second))

	close(delivered)
	seen := make(map[int64]struct{})
	for it := range delivered {
		assert.Equal(t, "custom", it.Label)
		_, dup := seen[it.ID]
		require.False(t, dup, "item %d delivered twice", it.ID)
		seen[it.ID] = struct{}{}
	}
	assert.GreaterOrEqual(t, len(seen), 5)
}
