package session

import "sync"

type op struct {
	fn     func()
	notify bool
}

// opQueue is an unbounded FIFO of loop work. push never blocks, so transport
// callbacks, timers and the loop itself can all enqueue without losing order.
type opQueue struct {
	mu    sync.Mutex
	items []op
	ready chan struct{}
}

func newOpQueue() *opQueue {
	return &opQueue{ready: make(chan struct{}, 1)}
}

func (q *opQueue) push(o op) {
	q.mu.Lock()
	q.items = append(q.items, o)
	q.mu.Unlock()
	select {
	case q.ready <- struct{}{}:
	default:
	}
}

// take removes and returns everything queued so far, oldest first.
func (q *opQueue) take() []op {
	q.mu.Lock()
	defer q.mu.Unlock()
	items := q.items
	q.items = nil
	return items
}
