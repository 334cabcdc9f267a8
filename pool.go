package threadpool

type Pool interface {
	// Start spawns the workers, and is only valid once, on a new pool
	Start() error

	// Shutdown stops the workers, abandons anything still queued and waits for
	// every worker to exit. Calling it again is a no-op
	Shutdown() error

	// Submit queues a WorkItem for a worker to run. It is valid before Start,
	// items wait in the queue until workers exist
	Submit(WorkItem) error
}

// State is where a pool is in its lifecycle. It only moves forward:
// StateCreated, StateRunning, StateStopped.
type State int

const (
	StateCreated State = iota
	StateRunning
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}
