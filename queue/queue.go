package queue

// minCompact is the number of consumed slots a FIFO tolerates before it
// reclaims the front of its backing slice.
const minCompact = 64

// Queue is an unbounded first-in first-out container.
//
// A Queue is not safe for concurrent use, callers guard it with their own lock.
type Queue[T any] interface {
	// Push puts an item at the tail of the Queue
	Push(T)

	// Pop removes the item at the head of the Queue
	Pop() (T, bool)

	// Len reports how many items are waiting
	Len() int

	// Drain removes every item, returning them oldest first
	Drain() []T
}

// FIFO is a slice backed Queue. Popped slots are zeroed so the queue never
// keeps a reference to an item that has been handed out.
type FIFO[T any] struct {
	items []T
	head  int
}

func NewFIFO[T any]() *FIFO[T] {
	return &FIFO[T]{}
}

func (q *FIFO[T]) Push(item T) {
	q.items = append(q.items, item)
}

func (q *FIFO[T]) Pop() (item T, ok bool) {
	if q.head == len(q.items) {
		return item, false
	}

	var zero T
	item = q.items[q.head]
	q.items[q.head] = zero
	q.head++

	switch {
	case q.head == len(q.items):
		// empty, rewind so the backing array is reused
		q.items = q.items[:0]
		q.head = 0
	case q.head >= minCompact && q.head*2 >= len(q.items):
		n := copy(q.items, q.items[q.head:])
		clear(q.items[n:])
		q.items = q.items[:n]
		q.head = 0
	}

	return item, true
}

func (q *FIFO[T]) Len() int {
	return len(q.items) - q.head
}

func (q *FIFO[T]) Drain() []T {
	if q.Len() == 0 {
		q.items = q.items[:0]
		q.head = 0
		return nil
	}

	out := make([]T, q.Len())
	copy(out, q.items[q.head:])

	// drop the backing array entirely, nothing drained should stay reachable
	q.items = nil
	q.head = 0
	return out
}
