package threadpool

import "time"

// EventKind names a point in the life of a worker or a work item.
type EventKind string

const (
	EventWorkerStarted EventKind = "worker_started"
	EventWorkerStopped EventKind = "worker_stopped"
	EventSubmitted     EventKind = "submitted"
	EventStarted       EventKind = "started"
	EventFinished      EventKind = "finished"
	EventPanicked      EventKind = "panicked"
	EventAbandoned     EventKind = "abandoned"
)

// Event describes something that happened inside a pool.
type Event struct {
	Kind EventKind

	// ItemID is empty for worker events
	ItemID string

	// WorkerID is empty for submitted and abandoned events
	WorkerID string

	At time.Time

	// Duration is how long the item took, set on finished and panicked events
	Duration time.Duration

	// Panic holds the recovered value, formatted, on panicked events
	Panic string
}

// An Observer is told about pool events. It is never called with the pool's
// lock held, but it is called from workers and submitters concurrently, so it
// must be safe for concurrent use. A slow Observer slows the pool down.
//
// Events of one item are not ordered across goroutines: a worker may report
// an item started before its submitter reports it submitted.
type Observer interface {
	Observe(Event)
}

// ObserverFunc adapts an ordinary function to an Observer.
type ObserverFunc func(Event)

// Observe calls fn(ev)
func (fn ObserverFunc) Observe(ev Event) { fn(ev) }

type observers []Observer

func (o observers) Observe(ev Event) {
	for _, ob := range o {
		ob.Observe(ev)
	}
}

// Observers returns an Observer that hands every event to each of obs, in order.
// Nil observers are skipped.
func Observers(obs ...Observer) Observer {
	out := make(observers, 0, len(obs))
	for _, ob := range obs {
		if ob != nil {
			out = append(out, ob)
		}
	}
	return out
}

type noopObserver struct{}

func (noopObserver) Observe(Event) {}
