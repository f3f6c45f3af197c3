package runtime

import "sync"

// Fanout broadcasts events to any number of SubQueue subscribers.
type Fanout[T any] struct {
	outBuf     int
	limit      int
	onOverflow func()

	mu     sync.Mutex
	subs   map[int]*SubQueue[T]
	nextID int
	closed bool
}

func NewFanout[T any](outBuf int) *Fanout[T] {
	return NewBoundedFanout[T](outBuf, 0, nil)
}

// NewBoundedFanout caps every subscriber's backlog at limit events. A
// subscriber that falls further behind is dropped: its channel closes and
// onOverflow, if set, is called under the fanout lock.
func NewBoundedFanout[T any](outBuf, limit int, onOverflow func()) *Fanout[T] {
	return &Fanout[T]{
		outBuf:     outBuf,
		limit:      limit,
		onOverflow: onOverflow,
		subs:       make(map[int]*SubQueue[T]),
	}
}

// Subscribe returns the subscriber channel and an unsubscribe closure. After
// Close the returned channel is already closed.
func (f *Fanout[T]) Subscribe() (<-chan T, func()) {
	sub := NewBoundedSubQueue[T](f.outBuf, f.limit)

	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		sub.Close()
		return sub.Chan(), func() {}
	}
	id := f.nextID
	f.nextID++
	f.subs[id] = sub
	f.mu.Unlock()

	unsub := func() {
		f.mu.Lock()
		if q, ok := f.subs[id]; ok {
			delete(f.subs, id)
			q.Close()
		}
		f.mu.Unlock()
	}
	return sub.Chan(), unsub
}

// Broadcast enqueues ev on every subscriber. It never blocks on readers.
func (f *Fanout[T]) Broadcast(ev T) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, sub := range f.subs {
		if sub.Enqueue(ev) {
			continue
		}
		delete(f.subs, id)
		if f.onOverflow != nil {
			f.onOverflow()
		}
	}
}

// Len returns the number of live subscribers.
func (f *Fanout[T]) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

// Close closes every subscriber channel. Idempotent.
func (f *Fanout[T]) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.closed = true
	for id, q := range f.subs {
		q.Close()
		delete(f.subs, id)
	}
}
