package runtime

import (
	"sync"
)

// SubQueue decouples a producer from one subscriber: Enqueue never blocks,
// and a dispatcher goroutine feeds the subscriber channel in order.
type SubQueue[T any] struct {
	mu     sync.Mutex
	cond   *sync.Cond
	queue  []T
	limit  int // 0 means unbounded
	closed bool

	outCh chan T        // consumer reads from this
	done  chan struct{} // closed by Close; unblocks a pending send
}

func NewSubQueue[T any](outBuf int) *SubQueue[T] {
	return NewBoundedSubQueue[T](outBuf, 0)
}

// NewBoundedSubQueue returns a queue that closes itself once more than
// limit events are waiting behind the channel buffer.
func NewBoundedSubQueue[T any](outBuf, limit int) *SubQueue[T] {
	sq := &SubQueue[T]{
		limit: limit,
		outCh: make(chan T, outBuf),
		done:  make(chan struct{}),
	}
	sq.cond = sync.NewCond(&sq.mu)
	go sq.dispatch()
	return sq
}

// Channel exposed to subscriber.
func (sq *SubQueue[T]) Chan() <-chan T { return sq.outCh }

// Enqueue appends to the in-memory queue and wakes the dispatcher. It
// reports false once the queue is closed, including when this event would
// exceed the limit; the queue is closed in that case.
func (sq *SubQueue[T]) Enqueue(ev T) bool {
	sq.mu.Lock()
	defer sq.mu.Unlock()
	if sq.closed {
		return false
	}
	if sq.limit > 0 && len(sq.queue) >= sq.limit {
		sq.closeLocked()
		return false
	}
	sq.queue = append(sq.queue, ev)
	sq.cond.Signal()
	return true
}

// Len returns the number of events not yet handed to the channel.
func (sq *SubQueue[T]) Len() int {
	sq.mu.Lock()
	defer sq.mu.Unlock()
	return len(sq.queue)
}

// Close stops the dispatcher and closes the out channel. Pending events are
// discarded.
func (sq *SubQueue[T]) Close() {
	sq.mu.Lock()
	defer sq.mu.Unlock()
	sq.closeLocked()
}

func (sq *SubQueue[T]) closeLocked() {
	if sq.closed {
		return
	}
	sq.closed = true
	sq.queue = nil
	close(sq.done)
	sq.cond.Broadcast()
}

func (sq *SubQueue[T]) dispatch() {
	for {
		sq.mu.Lock()
		for !sq.closed && len(sq.queue) == 0 {
			sq.cond.Wait()
		}
		if sq.closed {
			sq.mu.Unlock()
			close(sq.outCh)
			return
		}
		ev := sq.queue[0]
		var zero T
		sq.queue[0] = zero
		sq.queue = sq.queue[1:]
		sq.mu.Unlock()

		// Blocks only on the channel buffer / reader, or until Close.
		select {
		case sq.outCh <- ev:
		case <-sq.done:
			close(sq.outCh)
			return
		}
	}
}
