package worker

import (
	"context"
	"testing"
	"time"

	"github.com/c360/conveyor/buffer"
	cerrors "github.com/c360/conveyor/errors"
	"github.com/c360/conveyor/event"
	"github.com/c360/conveyor/item"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testBuild(seq *item.Sequence) BuildFunc {
	return func(_ context.Context, workerID int) (*item.Item, error) {
		return item.New(seq.Next(), "test dish", workerID), nil
	}
}

// waitFor polls until cond holds or the deadline expires.
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
	b, err := buffer.New(2)
	require.NoError(t, err)
	seq := item.NewSequence()

	tests := []struct {
		name string
		cfg  Config
	}{
		{"missing buffer", Config{Role: RoleConsumer, Timeout: time.Second}},
		{"zero timeout", Config{Role: RoleConsumer, Buffer: b}},
		{"negative timeout", Config{Role: RoleConsumer, Buffer: b, Timeout: -time.Second}},
		{"producer without build", Config{Role: RoleProducer, Buffer: b, Timeout: time.Second}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, err := New(tt.cfg)
			require.Error(t, err)
			assert.True(t, cerrors.IsInvalid(err))
			assert.Nil(t, w)
		})
	}

	w, err := New(Config{ID: 1, Role: RoleProducer, Buffer: b, Timeout: time.Second, Build: testBuild(seq)})
	require.NoError(t, err)
	assert.Equal(t, StateIdle, w.State())
	assert.Equal(t, RoleProducer, w.Role())
	assert.Equal(t, 1, w.ID())
}

func TestProduceConsumeRoundTrip(t *testing.T) {
	b, err := buffer.New(4)
	require.NoError(t, err)
	seq := item.NewSequence()

	producer, err := New(Config{
		ID: 1, Role: RoleProducer, Buffer: b,
		Timeout: 200 * time.Millisecond, Build: testBuild(seq),
	})
	require.NoError(t, err)

	var delivered []int64
	deliveredCh := make(chan int64, 64)
	consumer, err := New(Config{
		ID: 2, Role: RoleConsumer, Buffer: b,
		Timeout: 200 * time.Millisecond,
		Deliver: func(_ context.Context, it *item.Item) error {
			// Non-blocking: delivery must not wedge the worker once the
			// recording channel is full.
			select {
			case deliveredCh <- it.ID:
			default:
			}
			return nil
		},
	})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, producer.Start(ctx))
	require.NoError(t, consumer.Start(ctx))

	waitFor(t, 5*time.Second, func() bool {
		return consumer.Counts().Consumed >= 10
	}, "consumer never reached 10 items")

	producer.Stop()
	consumer.Stop()

	select {
	case <-producer.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("producer did not terminate")
	}
	select {
	case <-consumer.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("consumer did not terminate")
	}

	assert.Equal(t, StateTerminated, producer.State())
	assert.Equal(t, StateTerminated, consumer.State())

	// Conservation: everything produced was consumed or still queued
	stats := b.SnapshotStats()
	assert.Equal(t, stats.Produced, stats.Consumed+int64(b.Size()))

	// Delivered IDs are unique
	close(deliveredCh)
	seen := make(map[int64]struct{})
	for id := range deliveredCh {
		_, dup := seen[id]
		require.False(t, dup, "item %d delivered twice", id)
		seen[id] = struct{}{}
		delivered = append(delivered, id)
	}
	assert.GreaterOrEqual(t, len(delivered), 10)
}

func TestPauseFreezesProgress(t *testing.T) {
	b, err := buffer.New(4)
	require.NoError(t, err)
	seq := item.NewSequence()

	producer, err := New(Config{
		ID: 1, Role: RoleProducer, Buffer: b,
		Timeout: 100 * time.Millisecond, Build: testBuild(seq),
	})
	require.NoError(t, err)
	consumer, err := New(Config{
		ID: 2, Role: RoleConsumer, Buffer: b,
		Timeout: 100 * time.Millisecond,
	})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, producer.Start(ctx))
	require.NoError(t, consumer.Start(ctx))

	waitFor(t, 5*time.Second, func() bool {
		return b.SnapshotStats().Consumed >= 3
	}, "no initial progress")

	producer.Pause()
	consumer.Pause()
	waitFor(t, 5*time.Second, func() bool {
		return producer.State() == StatePaused && consumer.State() == StatePaused
	}, "workers never reached paused state")

	frozen := b.SnapshotStats()
	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, frozen, b.SnapshotStats(), "stats must not change while paused")

	producer.Resume()
	consumer.Resume()
	waitFor(t, 5*time.Second, func() bool {
		return b.SnapshotStats().Consumed > frozen.Consumed
	}, "no progress after resume")

	producer.Stop()
	consumer.Stop()
	<-producer.Done()
	<-consumer.Done()

	// No loss or duplication across the pause
	stats := b.SnapshotStats()
	assert.Equal(t, stats.Produced, stats.Consumed+int64(b.Size()))
}

func TestPutTimeoutRetriesSameItem(t *testing.T) {
	b, err := buffer.New(1)
	require.NoError(t, err)
	seq := item.NewSequence()

	producer, err := New(Config{
		ID: 1, Role: RoleProducer, Buffer: b,
		Timeout: 30 * time.Millisecond, Build: testBuild(seq),
	})
	require.NoError(t, err)

	require.NoError(t, producer.Start(context.Background()))

	// First item fills the buffer; the second keeps timing out
	waitFor(t, 5*time.Second, func() bool {
		return producer.Counts().Timeouts >= 3
	}, "producer never accumulated retries")
	assert.Equal(t, int64(1), producer.Counts().Produced)

	// Free a slot: the pending item is placed, not rebuilt
	first, err := b.Take(9, time.Second)
	require.NoError(t, err)
	assert.Equal(t, int64(1), first.ID)

	waitFor(t, 5*time.Second, func() bool {
		return producer.Counts().Produced >= 2
	}, "pending item was never placed")

	second, err := b.Take(9, time.Second)
	require.NoError(t, err)
	assert.Equal(t, int64(2), second.ID, "retried item must not be duplicated or skipped")

	producer.Stop()
	<-producer.Done()
}

func TestConsumerTimeoutIsNonFatal(t *testing.T) {
	b, err := buffer.New(2)
	require.NoError(t, err)

	consumer, err := New(Config{
		ID: 1, Role: RoleConsumer, Buffer: b,
		Timeout: 20 * time.Millisecond,
	})
	require.NoError(t, err)

	require.NoError(t, consumer.Start(context.Background()))

	waitFor(t, 5*time.Second, func() bool {
		return consumer.Counts().Timeouts >= 3
	}, "consumer should keep retrying on an empty buffer")
	assert.NotEqual(t, StateTerminated, consumer.State())

	consumer.Stop()
	<-consumer.Done()
}

func TestControlSurfaceIdempotent(t *testing.T) {
	b, err := buffer.New(2)
	require.NoError(t, err)
	seq := item.NewSequence()

	w, err := New(Config{
		ID: 1, Role: RoleProducer, Buffer: b,
		Timeout: 50 * time.Millisecond, Build: testBuild(seq),
	})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, w.Start(ctx))
	require.NoError(t, w.Start(ctx), "double start is a no-op")

	w.Pause()
	w.Pause()
	w.Resume()
	w.Resume()

	w.Stop()
	w.Stop()

	select {
	case <-w.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not terminate")
	}
	assert.Equal(t, StateTerminated, w.State())

	// Terminated is terminal: restart attempts change nothing
	require.NoError(t, w.Start(ctx))
	assert.Equal(t, StateTerminated, w.State())
}

func TestStopBeforeStartTerminates(t *testing.T) {
	b, err := buffer.New(2)
	require.NoError(t, err)

	w, err := New(Config{ID: 1, Role: RoleConsumer, Buffer: b, Timeout: time.Second})
	require.NoError(t, err)

	w.Stop()
	select {
	case <-w.Done():
	case <-time.After(time.Second):
		t.Fatal("unstarted worker did not terminate on stop")
	}
	assert.Equal(t, StateTerminated, w.State())
}

func TestStateChangeEventsEmitted(t *testing.T) {
	sink, err := event.NewSink(128)
	require.NoError(t, err)

	b, err := buffer.New(2)
	require.NoError(t, err)
	seq := item.NewSequence()

	w, err := New(Config{
		ID: 5, Role: RoleProducer, Buffer: b, Sink: sink,
		Timeout: 50 * time.Millisecond, Build: testBuild(seq),
	})
	require.NoError(t, err)

	require.NoError(t, w.Start(context.Background()))
	waitFor(t, 5*time.Second, func() bool {
		return w.Counts().Produced >= 1
	}, "producer made no progress")
	w.Stop()
	<-w.Done()

	var transitions [][2]string
	for _, e := range sink.Drain(1000) {
		if e.Kind != event.KindStateChanged {
			continue
		}
		assert.Equal(t, 5, e.WorkerID)
		assert.Equal(t, "producer", e.Role)
		transitions = append(transitions, [2]string{e.From, e.To})
	}

	require.NotEmpty(t, transitions)
	assert.Equal(t, [2]string{"idle", "running"}, transitions[0])
	last := transitions[len(transitions)-1]
	assert.Equal(t, "terminated", last[1])
}

func TestContextCancellationStopsWorker(t *testing.T) {
	b, err := buffer.New(2)
	require.NoError(t, err)

	w, err := New(Config{ID: 1, Role: RoleConsumer, Buffer: b, Timeout: 20 * time.Millisecond})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, w.Start(ctx))

	waitFor(t, 2*time.Second, func() bool {
		return w.State() != StateIdle
	}, "worker never started")

	cancel()
	select {
	case <-w.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not terminate on context cancellation")
	}
}
