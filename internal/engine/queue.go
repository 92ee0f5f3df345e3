package engine

// queue is a bounded FIFO. Producers never block; the engine goroutine is the
// only consumer.
type queue[T any] struct {
	ch chan T
}

func newQueue[T any](capacity int) *queue[T] {
	return &queue[T]{ch: make(chan T, capacity)}
}

// Submit enqueues an item without blocking (returns false if full).
func (q *queue[T]) Submit(t T) bool {
	select {
	case q.ch <- t:
		return true
	default:
		return false
	}
}

// C exposes the receive side for use in a select.
func (q *queue[T]) C() <-chan T { return q.ch }

// Drain hands every item queued at the time of the call to fn, in order.
func (q *queue[T]) Drain(fn func(T)) int {
	n := len(q.ch)
	for i := 0; i < n; i++ {
		fn(<-q.ch)
	}
	return n
}

// Len returns how many items are currently queued.
func (q *queue[T]) Len() int { return len(q.ch) }

// Cap returns the total queue capacity.
func (q *queue[T]) Cap() int { return cap(q.ch) }
