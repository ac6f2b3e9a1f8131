package event

import (
	"sync"
	"testing"
	"time"

	cerrors "github.com/c360/conveyor/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSinkValidation(t *testing.T) {
	s, err := NewSink(0)
	require.Error(t, err)
	assert.True(t, cerrors.IsInvalid(err))
	assert.Nil(t, s)

	s, err = NewSink(4)
	require.NoError(t, err)
	assert.Equal(t, 4, s.Capacity())
	assert.Equal(t, 0, s.Len())
}

func TestPublishPollOrder(t *testing.T) {
	s, err := NewSink(8)
	require.NoError(t, err)

	s.Publish(Event{Kind: KindProduced, WorkerID: 1, ItemID: 10})
	s.Publish(Event{Kind: KindConsumed, WorkerID: 2, ItemID: 10})
	s.Publish(Event{Kind: KindTimeout, WorkerID: 1})

	first, ok := s.Poll()
	require.True(t, ok)
	assert.Equal(t, KindProduced, first.Kind)
	assert.NotZero(t, first.Timestamp, "publish stamps events")

	second, ok := s.Poll()
	require.True(t, ok)
	assert.Equal(t, KindConsumed, second.Kind)

	third, ok := s.Poll()
	require.True(t, ok)
	assert.Equal(t, KindTimeout, third.Kind)

	_, ok = s.Poll()
	assert.False(t, ok)
}

func TestFullSinkDropsOldest(t *testing.T) {
	var droppedIDs []int64
	s, err := NewSink(3, WithDropCallback(func(e Event) {
		droppedIDs = append(droppedIDs, e.ItemID)
	}))
	require.NoError(t, err)

	for i := int64(1); i <= 5; i++ {
		s.Publish(Event{Kind: KindProduced, ItemID: i})
	}

	// Events 1 and 2 were dropped to make room for 4 and 5
	assert.Equal(t, []int64{1, 2}, droppedIDs)

	got := s.Drain(10)
	require.Len(t, got, 3)
	assert.Equal(t, int64(3), got[0].ItemID)
	assert.Equal(t, int64(4), got[1].ItemID)
	assert.Equal(t, int64(5), got[2].ItemID)

	stats := s.Stats()
	assert.Equal(t, int64(5), stats.Published)
	assert.Equal(t, int64(2), stats.Dropped)
	assert.Equal(t, int64(3), stats.Delivered)
}

func TestPublishNeverBlocks(t *testing.T) {
	s, err := NewSink(1)
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 1000; i++ {
			s.Publish(Event{Kind: KindProduced, ItemID: int64(i)})
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a full sink")
	}
	assert.Equal(t, 1, s.Len())
}

func TestSignalWakesConsumer(t *testing.T) {
	s, err := NewSink(16)
	require.NoError(t, err)

	received := make(chan Event, 1)
	go func() {
		<-s.Signal()
		if e, ok := s.Poll(); ok {
			received <- e
		}
	}()

	time.Sleep(10 * time.Millisecond)
	s.Publish(Event{Kind: KindStateChanged, WorkerID: 3})

	select {
	case e := <-received:
		assert.Equal(t, KindStateChanged, e.Kind)
	case <-time.After(time.Second):
		t.Fatal("consumer was not woken by signal")
	}
}

func TestDrainBatches(t *testing.T) {
	s, err := NewSink(8)
	require.NoError(t, err)

	assert.Nil(t, s.Drain(0))
	assert.Nil(t, s.Drain(5))

	for i := int64(1); i <= 6; i++ {
		s.Publish(Event{ItemID: i})
	}

	batch := s.Drain(4)
	require.Len(t, batch, 4)
	assert.Equal(t, int64(1), batch[0].ItemID)
	assert.Equal(t, int64(4), batch[3].ItemID)
	assert.Equal(t, 2, s.Len())
}

func TestCloseDiscardsLatePublishes(t *testing.T) {
	s, err := NewSink(4)
	require.NoError(t, err)

	s.Publish(Event{ItemID: 1})
	require.NoError(t, s.Close())
	assert.ErrorIs(t, s.Close(), cerrors.ErrAlreadyStopped)

	s.Publish(Event{ItemID: 2})

	// The pre-close event is still drainable, the late one is gone
	got := s.Drain(10)
	require.Len(t, got, 1)
	assert.Equal(t, int64(1), got[0].ItemID)
}

func TestConcurrentPublishersConserveCounts(t *testing.T) {
	const publishers = 8
	const perPublisher = 250

	s, err := NewSink(64)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < publishers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < perPublisher; j++ {
				s.Publish(Event{Kind: KindProduced, WorkerID: id})
			}
		}(i)
	}
	wg.Wait()

	stats := s.Stats()
	assert.Equal(t, int64(publishers*perPublisher), stats.Published)
	assert.Equal(t, int64(s.Len()), stats.Published-stats.Dropped)
}
