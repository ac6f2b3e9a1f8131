package event

import "github.com/c360/conveyor/pkg/timestamp"

// Kind identifies what an event reports.
type Kind string

const (
	// KindProduced reports an item successfully placed into the buffer
	KindProduced Kind = "produced"
	// KindConsumed reports an item successfully taken out of the buffer
	KindConsumed Kind = "consumed"
	// KindStateChanged reports a worker state transition
	KindStateChanged Kind = "stateChanged"
	// KindTimeout reports a bounded semaphore wait that expired
	KindTimeout Kind = "timeout"
)

// Event is a single engine activity record. ItemID is zero for events that
// do not concern a specific item.
type Event struct {
	Kind      Kind   `json:"kind"`
	WorkerID  int    `json:"worker_id"`
	Role      string `json:"role,omitempty"`
	ItemID    int64  `json:"item_id,omitempty"`
	From      string `json:"from,omitempty"`
	To        string `json:"to,omitempty"`
	Detail    string `json:"detail,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// stamped returns a copy of e with the timestamp filled in if the publisher
// left it zero.
func (e Event) stamped() Event {
	if e.Timestamp == 0 {
		e.Timestamp = timestamp.Now()
	}
	return e
}
