// internal/writer/queue.go
package writer

// DefaultQueueSize is the per-unit pending-write capacity.
const DefaultQueueSize = 16

// Queue is the bounded FIFO of pending writes for one unit.
// Producers never block; the unit's poller is the only consumer.
type Queue struct {
	ch chan PendingWrite
}

func NewQueue(size int) *Queue {
	if size <= 0 {
		size = DefaultQueueSize
	}
	return &Queue{ch: make(chan PendingWrite, size)}
}

// Submit enqueues w or returns ErrQueueFull.
func (q *Queue) Submit(w PendingWrite) error {
	select {
	case q.ch <- w:
		return nil
	default:
		return ErrQueueFull
	}
}

// C is the consumer side.
func (q *Queue) C() <-chan PendingWrite {
	return q.ch
}

// Len reports the number of queued writes.
func (q *Queue) Len() int {
	return len(q.ch)
}
