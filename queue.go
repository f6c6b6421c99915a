package replyx

import (
	"sync"
	"time"
)

type workItem struct {
	fn       func()
	queuedAt time.Time
}

// Unbounded FIFO queue with a single consumer. Push never blocks on the
// consumer, which is what lets Schedule return immediately.
type workQueue struct {
	items  []workItem
	lock   sync.Mutex
	wait   *sync.Cond
	closed bool
}

func newWorkQueue() *workQueue {
	q := &workQueue{}
	q.wait = sync.NewCond(&q.lock)

	return q
}

// Next blocks until an item is available. Once the queue is closed, Next
// keeps handing out the remaining items and then reports false.
func (q *workQueue) Next() (workItem, bool) {
	q.lock.Lock()
	for len(q.items) == 0 && !q.closed {
		q.wait.Wait()
	}
	if len(q.items) == 0 {
		q.lock.Unlock()
		return workItem{}, false
	}

	next := q.items[0]
	q.items[0] = workItem{}
	q.items = q.items[1:]
	q.lock.Unlock()

	return next, true
}

// Push appends an item, reporting false if the queue has been closed.
func (q *workQueue) Push(item workItem) bool {
	q.lock.Lock()
	if q.closed {
		q.lock.Unlock()
		return false
	}
	q.items = append(q.items, item)
	q.lock.Unlock()

	q.wait.Signal()

	return true
}

func (q *workQueue) Len() int {
	q.lock.Lock()
	n := len(q.items)
	q.lock.Unlock()
	return n
}

// Close stops the queue accepting new items. Items already queued are still
// handed out by Next.
func (q *workQueue) Close() {
	q.lock.Lock()
	q.closed = true
	q.lock.Unlock()

	q.wait.Broadcast()
}

// Drain empties a closed queue without running anything.
func (q *workQueue) Drain() int {
	q.lock.Lock()
	n := len(q.items)
	q.items = nil
	q.lock.Unlock()
	return n
}
