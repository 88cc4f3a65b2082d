package recording

import "sync"

// DropQueue is a bounded FIFO whose Push never blocks. When full, Push evicts
// the oldest item and counts it as dropped. A single consumer drains it with
// Pop.
type DropQueue[T any] struct {
	mu     sync.Mutex
	cond   *sync.Cond
	items  []T
	head   int
	size   int
	closed bool

	pushed  uint64
	dropped uint64
}

// NewDropQueue returns a queue holding at most depth items.
func NewDropQueue[T any](depth int) *DropQueue[T] {
	if depth < 1 {
		depth = 1
	}
	q := &DropQueue[T]{items: make([]T, depth)}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Push enqueues v. It reports false when the queue is closed and v was not
// accepted. Evicting the oldest item still returns true.
func (q *DropQueue[T]) Push(v T) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	if q.size == len(q.items) {
		var zero T
		q.items[q.head] = zero
		q.head = (q.head + 1) % len(q.items)
		q.size--
		q.dropped++
	}
	q.items[(q.head+q.size)%len(q.items)] = v
	q.size++
	q.pushed++
	q.cond.Signal()
	return true
}

// Pop blocks until an item is available or the queue is closed and empty.
// The second result is false once no more items will arrive.
func (q *DropQueue[T]) Pop() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for q.size == 0 && !q.closed {
		q.cond.Wait()
	}
	var zero T
	if q.size == 0 {
		return zero, false
	}
	v := q.items[q.head]
	q.items[q.head] = zero
	q.head = (q.head + 1) % len(q.items)
	q.size--
	return v, true
}

// Close stops accepting items. Items already queued are still returned by Pop.
func (q *DropQueue[T]) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.cond.Broadcast()
}

// Abort closes the queue and discards what is still queued, counting it as
// dropped. It returns the number of discarded items.
func (q *DropQueue[T]) Abort() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	discarded := q.size
	var zero T
	for i := range q.items {
		q.items[i] = zero
	}
	q.head = 0
	q.size = 0
	q.dropped += uint64(discarded)
	q.closed = true
	q.cond.Broadcast()
	return discarded
}

// Len returns the number of queued items.
func (q *DropQueue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.size
}

// Dropped returns how many items were evicted or discarded. It never decreases.
func (q *DropQueue[T]) Dropped() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}

// Pushed returns how many items were accepted.
func (q *DropQueue[T]) Pushed() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.pushed
}
