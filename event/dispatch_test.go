package event

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingObserver struct {
	mu     sync.Mutex
	events []Event
}

func (r *recordingObserver) Observe(e Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func (r *recordingObserver) snapshot() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

func TestDispatcherDeliversInOrder(t *testing.T) {
	sink, err := NewSink(64)
	require.NoError(t, err)

	rec := &recordingObserver{}
	d := NewDispatcher(sink, nil, rec)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = d.Run(ctx)
	}()

	for i := 1; i <= 10; i++ {
		sink.Publish(Event{Kind: KindProduced, ItemID: int64(i)})
	}

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if len(rec.snapshot()) == 10 {
			break
		}
		time.Sleep(2 * time.Millisecond)
	}

	got := rec.snapshot()
	require.Len(t, got, 10)
	for i, e := range got {
		assert.Equal(t, int64(i+1), e.ItemID)
		assert.Equal(t, KindProduced, e.Kind)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("dispatcher did not stop")
	}
}

func TestDispatcherFinalDrainOnCancel(t *testing.T) {
	sink, err := NewSink(64)
	require.NoError(t, err)

	rec := &recordingObserver{}
	d := NewDispatcher(sink, nil, rec)

	// Events published before Run even starts are delivered by the final drain.
	for i := 1; i <= 5; i++ {
		sink.Publish(Event{Kind: KindConsumed, ItemID: int64(i)})
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, d.Run(ctx))

	assert.Len(t, rec.snapshot(), 5)
	assert.Equal(t, int64(5), sink.Stats().Delivered)
}

func TestDispatcherFansOutToAllObservers(t *testing.T) {
	sink, err := NewSink(8)
	require.NoError(t, err)

	first := &recordingObserver{}
	var funcCount int
	d := NewDispatcher(sink, nil, first, ObserverFunc(func(Event) { funcCount++ }))

	sink.Publish(Event{Kind: KindTimeout, WorkerID: 3})
	sink.Publish(Event{Kind: KindStateChanged, WorkerID: 3})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, d.Run(ctx))

	assert.Len(t, first.snapshot(), 2)
	assert.Equal(t, 2, funcCount)
}
