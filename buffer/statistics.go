package buffer

import "sync"

// Stats is a point-in-time copy of the buffer counters. Callers never
// receive a live reference into buffer-owned state.
type Stats struct {
	Produced        int64 `json:"produced"`
	Consumed        int64 `json:"consumed"`
	ProduceTimeouts int64 `json:"produce_timeouts"`
	ConsumeTimeouts int64 `json:"consume_timeouts"`
}

// statistics holds the live counters. The lock is deliberately separate from
// the buffer mutex so snapshot reads never serialize with queue mutation.
type statistics struct {
	mu              sync.Mutex
	produced        int64
	consumed        int64
	produceTimeouts int64
	consumeTimeouts int64
}

func (s *statistics) addProduced() {
	s.mu.Lock()
	s.produced++
	s.mu.Unlock()
}

func (s *statistics) addConsumed() {
	s.mu.Lock()
	s.consumed++
	s.mu.Unlock()
}

func (s *statistics) addProduceTimeout() {
	s.mu.Lock()
	s.produceTimeouts++
	s.mu.Unlock()
}

func (s *statistics) addConsumeTimeout() {
	s.mu.Lock()
	s.consumeTimeouts++
	s.mu.Unlock()
}

func (s *statistics) snapshot() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{
		Produced:        s.produced,
		Consumed:        s.consumed,
		ProduceTimeouts: s.produceTimeouts,
		ConsumeTimeouts: s.consumeTimeouts,
	}
}

func (s *statistics) reset() {
	s.mu.Lock()
	s.produced = 0
	s.consumed = 0
	s.produceTimeouts = 0
	s.consumeTimeouts = 0
	s.mu.Unlock()
}
