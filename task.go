package threadpool

import (
	"time"

	"github.com/oklog/ulid/v2"
)

// A WorkItem is a one-shot unit of work.
//
// Run is called exactly once, by whichever worker dequeues the item, and the
// pool forgets the item as soon as Run returns. Run has no error channel:
// failures are the item's own business. A panic is recovered by the worker
// and reported, it never takes the worker down.
type WorkItem interface {
	Run()
}

// The Func type is an adapter to allow the use of ordinary functions as a
// WorkItem. If f is a function with the appropriate signature, Func(f) is a
// WorkItem that calls f.
type Func func()

// Run calls fn()
func (fn Func) Run() { fn() }

// Task binds a function to the argument it will be called with.
type Task struct {
	fn  func(any)
	arg any
}

// NewTask returns a WorkItem that calls fn(arg) when run.
func NewTask(fn func(any), arg any) *Task {
	return &Task{fn: fn, arg: arg}
}

func (t *Task) Run() {
	if t.fn != nil {
		t.fn(t.arg)
	}
}

// entry is what sits on the pool's queue: the caller's item plus the
// bookkeeping the pool logs and reports with it.
type entry struct {
	id          string
	item        WorkItem
	submittedAt time.Time
}

func newEntry(item WorkItem) *entry {
	return &entry{
		id:          ulid.Make().String(),
		item:        item,
		submittedAt: time.Now(),
	}
}

// release drops the reference to the caller's item.
func (e *entry) release() {
	e.item = nil
}
