package threadpool

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jirevwe/threadpool/queue"
)

var (
	ErrInvalidSize    = errors.New("worker pool size must be at least 1")
	ErrAlreadyStarted = errors.New("worker pool has already been started")
	ErrSpawn          = errors.New("failed to spawn worker")
	ErrPoolStopped    = errors.New("worker pool is not active")
	ErrNilWorkItem    = errors.New("work item is nil")
)

var _ Pool = (*WorkerPool)(nil)

// WorkerPool runs WorkItems on a fixed number of workers, taking them from a
// single unbounded FIFO queue.
//
// Items are dequeued in the order they were submitted. With more than one
// worker, items that were dequeued one after the other can still finish in
// any order.
//
// A WorkerPool must be shut down to release its workers; Go has no
// destructors, so callers should defer Close right after a successful Start.
type WorkerPool struct {
	size uint

	// mu guards state and tasks. cond is bound to it and is signalled whenever
	// either changes in a way a waiting worker cares about
	mu    sync.Mutex
	cond  *sync.Cond
	state State
	tasks *queue.FIFO[*entry]

	// lifecycle serialises Start and Shutdown, it is never taken by workers
	lifecycle sync.Mutex
	workers   []*Worker

	// live counts workers inside their loop
	live atomic.Int32

	// ready lets Start wait for spawned workers to enter their loop
	ready sync.WaitGroup

	spawn    Spawner
	observer Observer
	log      *slog.Logger
}

func NewWorkerPool(cfg *Config) *WorkerPool {
	if cfg == nil {
		cfg = &Config{}
	}
	cfg = cfg.withDefaults()

	p := &WorkerPool{
		size:     cfg.Size,
		state:    StateCreated,
		tasks:    queue.NewFIFO[*entry](),
		spawn:    cfg.Spawner,
		observer: cfg.Observer,
		log:      cfg.Logger,
	}
	p.cond = sync.NewCond(&p.mu)

	p.log.Info(fmt.Sprintf("constructed worker pool of size %d", p.size))
	return p
}

// Start spawns the pool's workers and returns once every one of them is
// running. If a worker cannot be spawned Start returns an error wrapping
// ErrSpawn; the workers spawned before it keep running and the pool is not
// usable, the caller still has to Shutdown.
func (p *WorkerPool) Start() error {
	p.lifecycle.Lock()
	defer p.lifecycle.Unlock()

	if p.size == 0 {
		return ErrInvalidSize
	}

	p.mu.Lock()
	if p.state != StateCreated {
		state := p.state
		p.mu.Unlock()
		return fmt.Errorf("%w: pool is %s", ErrAlreadyStarted, state)
	}
	p.state = StateRunning
	p.mu.Unlock()

	p.log.Info("starting worker pool")

	for i := uint(0); i < p.size; i++ {
		w := newWorker(fmt.Sprintf("worker_%d", i+1), p)

		p.ready.Add(1)
		if err := p.spawn(w.start); err != nil {
			p.ready.Done()
			p.log.Error(fmt.Sprintf("failed to spawn worker %s", w.id), "error", err)

			// the ones already spawned are live, same as on success
			p.ready.Wait()
			return fmt.Errorf("%w %s: %w", ErrSpawn, w.id, err)
		}
		p.workers = append(p.workers, w)
	}

	p.ready.Wait()
	p.log.Info(fmt.Sprintf("%d threads created by the worker pool", len(p.workers)))

	return nil
}

// Submit adds item to the tail of the queue and wakes one idle worker.
//
// Submit never blocks on other work items, the queue has no bound. Items
// submitted before Start wait for the workers. Once the pool is stopped
// Submit returns ErrPoolStopped and the item is not kept.
func (p *WorkerPool) Submit(item WorkItem) error {
	if item == nil {
		return ErrNilWorkItem
	}

	e := newEntry(item)

	p.mu.Lock()
	if p.state == StateStopped {
		p.mu.Unlock()
		return ErrPoolStopped
	}
	p.tasks.Push(e)
	p.cond.Signal()
	p.mu.Unlock()

	p.observer.Observe(Event{Kind: EventSubmitted, ItemID: e.id, At: e.submittedAt})
	return nil
}

// Shutdown is ShutdownContext without a deadline.
func (p *WorkerPool) Shutdown() error {
	return p.ShutdownContext(context.Background())
}

// ShutdownContext stops the pool and waits for every worker to exit.
//
// Items still queued are abandoned: they are never run. A running item is
// not interrupted, its worker is waited for until ctx is done. A worker that
// could not be joined is logged and the remaining workers are still joined;
// the first such error is returned and a later call picks up the workers
// that were missed. Once every worker was joined, further calls do nothing.
//
// ShutdownContext must not be called from inside a WorkItem, the worker
// would wait for itself.
func (p *WorkerPool) ShutdownContext(ctx context.Context) error {
	p.lifecycle.Lock()
	defer p.lifecycle.Unlock()

	p.mu.Lock()
	alreadyStopped := p.state == StateStopped
	p.state = StateStopped
	abandoned := p.tasks.Drain()
	p.mu.Unlock()

	if !alreadyStopped {
		p.log.Info("broadcasting stop signal to all workers")
	}
	p.cond.Broadcast()

	p.abandon(abandoned)

	var joinErr error
	exited := 0
	for _, w := range p.workers {
		if w.joined {
			continue
		}

		err := w.join(ctx)
		p.log.Debug(fmt.Sprintf("join %s returned", w.id), "error", err)
		if err != nil {
			p.log.Error(fmt.Sprintf("failed to join worker %s", w.id), "error", err)
			if joinErr == nil {
				joinErr = fmt.Errorf("failed to join worker %s: %w", w.id, err)
			}
		} else {
			exited++
		}

		// wake anyone who has not looked at the state yet
		p.cond.Broadcast()
	}

	if exited > 0 || !alreadyStopped {
		p.log.Info(fmt.Sprintf("%d threads exited from the worker pool", exited))
	}

	return joinErr
}

// Close shuts the pool down, it is what a deferred cleanup should call.
func (p *WorkerPool) Close() error {
	return p.Shutdown()
}

func (p *WorkerPool) abandon(entries []*entry) {
	if len(entries) == 0 {
		return
	}

	p.log.Info(fmt.Sprintf("abandoning %d queued work items", len(entries)))

	now := time.Now()
	for _, e := range entries {
		e.release()
		p.observer.Observe(Event{Kind: EventAbandoned, ItemID: e.id, At: now})
	}
}

// State reports where the pool is in its lifecycle.
func (p *WorkerPool) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Size is the number of workers the pool was configured with.
func (p *WorkerPool) Size() uint { return p.size }

// Workers reports how many workers are currently running their loop.
func (p *WorkerPool) Workers() int { return int(p.live.Load()) }

// Pending reports how many items are queued and not yet picked up.
func (p *WorkerPool) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.tasks.Len()
}
