package worker

// Role distinguishes the two worker kinds sharing the state machine.
type Role int

const (
	// RoleProducer builds items and places them into the buffer
	RoleProducer Role = iota
	// RoleConsumer takes items out of the buffer and delivers them
	RoleConsumer
)

// String returns a string representation of the role
func (r Role) String() string {
	switch r {
	case RoleProducer:
		return "producer"
	case RoleConsumer:
		return "consumer"
	default:
		return "unknown"
	}
}

// State represents the current lifecycle state of a worker
type State int32

const (
	// StateIdle indicates the worker was created but its loop has not started
	StateIdle State = iota
	// StateRunning indicates the worker is actively building or delivering
	StateRunning
	// StateWaiting indicates the worker is blocked inside a bounded semaphore wait
	StateWaiting
	// StatePaused indicates the worker is blocked on the pause gate
	StatePaused
	// StateTerminated indicates the worker observed stop; terminal
	StateTerminated
)

// String returns a string representation of the worker state
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateWaiting:
		return "waiting"
	case StatePaused:
		return "paused"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// Counts is a snapshot of a worker's local counters.
type Counts struct {
	Produced int64 `json:"produced"`
	Consumed int64 `json:"consumed"`
	Timeouts int64 `json:"timeouts"`
}

// Info is a point-in-time description of a worker for observers.
type Info struct {
	ID       int    `json:"id"`
	Role     string `json:"role"`
	State    string `json:"state"`
	Activity string `json:"activity"`
	Counts   Counts `json:"counts"`
}
