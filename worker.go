package threadpool

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"
)

// Worker is one of the pool's long-lived workers.
type Worker struct {
	// the worker id
	id string

	pool *WorkerPool

	// closed when the worker's loop has returned
	done chan struct{}

	// only touched by the pool under its lifecycle lock
	joined bool

	log *slog.Logger
}

func newWorker(id string, pool *WorkerPool) *Worker {
	return &Worker{
		id:   id,
		pool: pool,
		done: make(chan struct{}),
		log:  pool.log.With("worker", id),
	}
}

func (w *Worker) start() {
	p := w.pool

	defer close(w.done)

	p.live.Add(1)
	w.log.Debug(fmt.Sprintf("starting worker %s", w.id))
	p.observer.Observe(Event{Kind: EventWorkerStarted, WorkerID: w.id, At: time.Now()})
	p.ready.Done()

	defer func() {
		p.live.Add(-1)
		w.log.Debug(fmt.Sprintf("worker %s has been stopped", w.id))
		p.observer.Observe(Event{Kind: EventWorkerStopped, WorkerID: w.id, At: time.Now()})
	}()

	for {
		e, ok := w.next()
		if !ok {
			return
		}

		w.execute(e)
	}
}

// next blocks until there is an item to run or the pool is stopped. It
// returns false only when the pool is stopped, even if items are queued.
func (w *Worker) next() (*entry, bool) {
	p := w.pool

	w.log.Debug("locking")
	p.mu.Lock()

	// Wait can return without anything having changed, and a Signal meant for
	// this worker can be consumed by another one before this one reacquires
	// the lock, so the condition is checked again after every wake up.
	for p.state != StateStopped && p.tasks.Len() == 0 {
		w.log.Debug("unlocking and waiting")
		p.cond.Wait()
		w.log.Debug("signaled and locking")
	}

	if p.state == StateStopped {
		w.log.Debug("unlocking and exiting")
		p.mu.Unlock()
		return nil, false
	}

	e, _ := p.tasks.Pop()
	w.log.Debug("unlocking")
	p.mu.Unlock()

	return e, true
}

// execute runs the item without the pool lock held, then lets go of it.
func (w *Worker) execute(e *entry) {
	p := w.pool

	started := time.Now()
	p.observer.Observe(Event{Kind: EventStarted, ItemID: e.id, WorkerID: w.id, At: started})

	recovered, stack := run(e.item)
	e.release()

	ev := Event{ItemID: e.id, WorkerID: w.id, At: time.Now(), Duration: time.Since(started)}
	if recovered != nil {
		ev.Kind = EventPanicked
		ev.Panic = fmt.Sprint(recovered)
		w.log.Error(fmt.Sprintf("work item %s panicked", e.id), "panic", ev.Panic, "stack", string(stack))
	} else {
		ev.Kind = EventFinished
	}
	p.observer.Observe(ev)
}

func run(item WorkItem) (recovered any, stack []byte) {
	defer func() {
		if recovered = recover(); recovered != nil {
			stack = debug.Stack()
		}
	}()

	item.Run()
	return nil, nil
}

// join waits for the worker's loop to return.
func (w *Worker) join(ctx context.Context) error {
	select {
	case <-w.done:
		w.joined = true
		return nil
	default:
	}

	select {
	case <-w.done:
		w.joined = true
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
