// Package queue provides the bounded drop-oldest buffer used on every
// audio hop that must not block the real-time path.
package queue

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

const (
	// CriticalCapacity bounds live two-way audio: five 20 ms frames or five
	// ingress chunks.
	CriticalCapacity = 5
	// BroadcastCapacity holds 500 ms for passive subscribers.
	BroadcastCapacity = 25
	// BackendCapacity buffers one second for a recognizer sender.
	BackendCapacity = 50
	// PlayoutCapacity bounds synthesized turns waiting for playout.
	PlayoutCapacity = 4
	// TurnCapacity bounds dispatcher turns waiting for translation.
	TurnCapacity = 8
)

// Option configures a Queue.
type Option func(*options)

type options struct {
	onOverflow func()
}

// WithOverflowHook registers fn to be called once per evicted item.
func WithOverflowHook(fn func()) Option {
	return func(o *options) {
		o.onOverflow = fn
	}
}

// Queue is a fixed-capacity FIFO. TryEnqueue never blocks: on a full
// queue it evicts the oldest item before inserting. Len never exceeds Cap.
type Queue[T any] struct {
	mu     sync.Mutex
	items  []T
	head   int
	size   int
	closed bool

	ready      chan struct{}
	done       chan struct{}
	closeOnce  sync.Once
	overflows  atomic.Uint64
	onOverflow func()
}

// New creates a queue holding at most capacity items.
func New[T any](capacity int, opts ...Option) *Queue[T] {
	if capacity < 1 {
		capacity = 1
	}
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	return &Queue[T]{
		items:      make([]T, capacity),
		ready:      make(chan struct{}, 1),
		done:       make(chan struct{}),
		onOverflow: o.onOverflow,
	}
}

// NewCritical creates a low-latency queue for live audio.
func NewCritical[T any](opts ...Option) *Queue[T] {
	return New[T](CriticalCapacity, opts...)
}

// NewBroadcast creates a queue for passive subscriber fan-out.
func NewBroadcast[T any](opts ...Option) *Queue[T] {
	return New[T](BroadcastCapacity, opts...)
}

// TryEnqueue inserts item, evicting the oldest entry when full. It
// returns false only when the queue is closed.
func (q *Queue[T]) TryEnqueue(item T) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}

	evicted := false
	if q.size == len(q.items) {
		var zero T
		q.items[q.head] = zero
		q.head = (q.head + 1) % len(q.items)
		q.size--
		evicted = true
	}
	q.items[(q.head+q.size)%len(q.items)] = item
	q.size++
	q.mu.Unlock()

	if evicted {
		q.overflows.Add(1)
		if q.onOverflow != nil {
			q.onOverflow()
		}
	}
	q.signal()
	return true
}

// TryDequeue pops the oldest item without waiting.
func (q *Queue[T]) TryDequeue() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.pop()
}

// Dequeue pops the oldest item, waiting up to timeout for one to arrive.
// It returns false on timeout, context cancellation, or once the queue
// is closed and empty.
func (q *Queue[T]) Dequeue(ctx context.Context, timeout time.Duration) (T, bool) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		q.mu.Lock()
		item, ok := q.pop()
		closed := q.closed
		q.mu.Unlock()
		if ok || closed {
			return item, ok
		}

		select {
		case <-q.ready:
		case <-q.done:
		case <-timer.C:
			var zero T
			return zero, false
		case <-ctx.Done():
			var zero T
			return zero, false
		}
	}
}

func (q *Queue[T]) pop() (T, bool) {
	var zero T
	if q.size == 0 {
		return zero, false
	}
	item := q.items[q.head]
	q.items[q.head] = zero
	q.head = (q.head + 1) % len(q.items)
	q.size--
	if q.size > 0 {
		q.signal()
	}
	return item, true
}

func (q *Queue[T]) signal() {
	select {
	case q.ready <- struct{}{}:
	default:
	}
}

// Drain removes and returns every queued item, oldest first.
func (q *Queue[T]) Drain() []T {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]T, 0, q.size)
	for {
		item, ok := q.pop()
		if !ok {
			return out
		}
		out = append(out, item)
	}
}

// Close rejects further enqueues and wakes waiting consumers. Items
// already queued can still be dequeued.
func (q *Queue[T]) Close() {
	q.closeOnce.Do(func() {
		q.mu.Lock()
		q.closed = true
		q.mu.Unlock()
		close(q.done)
	})
}

// Len reports the number of queued items.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.size
}

// Cap reports the capacity.
func (q *Queue[T]) Cap() int {
	return len(q.items)
}

// Overflows reports how many items were evicted.
func (q *Queue[T]) Overflows() uint64 {
	return q.overflows.Load()
}

// Closed reports whether Close has been called.
func (q *Queue[T]) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}
