// Package ringbuf provides a lock-free, single-producer single-consumer (SPSC)
// ring buffer. The live engine uses it between the WebSocket reader and the
// indicator loop so a slow consumer drops klines instead of stalling the feed.
package ringbuf

import (
	"context"
	"sync/atomic"
	"time"
)

// cacheLine is the typical x86-64 cache line size used for padding.
const cacheLine = 64

// Ring is a lock-free SPSC ring buffer.
// Size is a power of two for fast bitwise modulo.
type Ring[T any] struct {
	buf  []T
	mask uint64

	// Separate cache lines to prevent false sharing between producer and consumer.
	_pad0 [cacheLine]byte
	head  atomic.Uint64 // written by producer
	_pad1 [cacheLine]byte
	tail  atomic.Uint64 // written by consumer
	_pad2 [cacheLine]byte

	overflow atomic.Uint64
}

// New creates a ring buffer. capacity is rounded up to the next power of two,
// minimum 2.
func New[T any](capacity int) *Ring[T] {
	size := nextPow2(capacity)
	if size < 2 {
		size = 2
	}
	return &Ring[T]{
		buf:  make([]T, size),
		mask: uint64(size - 1),
	}
}

// Push appends v. Returns false, without writing, if the buffer is full.
func (r *Ring[T]) Push(v T) bool {
	head := r.head.Load()
	tail := r.tail.Load()

	if head-tail >= uint64(len(r.buf)) {
		r.overflow.Add(1)
		return false
	}

	r.buf[head&r.mask] = v
	r.head.Store(head + 1)
	return true
}

// Pop retrieves the oldest value. Returns false if the buffer is empty.
func (r *Ring[T]) Pop() (T, bool) {
	tail := r.tail.Load()
	head := r.head.Load()

	if tail >= head {
		var zero T
		return zero, false
	}

	v := r.buf[tail&r.mask]
	r.tail.Store(tail + 1)
	return v, true
}

// Len returns the current number of items in the buffer.
func (r *Ring[T]) Len() int {
	return int(r.head.Load() - r.tail.Load())
}

// Cap returns the buffer capacity.
func (r *Ring[T]) Cap() int {
	return len(r.buf)
}

// Overflow returns the total number of dropped pushes due to full buffer.
func (r *Ring[T]) Overflow() uint64 {
	return r.overflow.Load()
}

// Fill pushes everything from in until it is closed or ctx is done.
// onDrop is called for each value that did not fit.
func (r *Ring[T]) Fill(ctx context.Context, in <-chan T, onDrop func(T)) {
	for {
		select {
		case <-ctx.Done():
			return
		case v, ok := <-in:
			if !ok {
				return
			}
			if !r.Push(v) && onDrop != nil {
				onDrop(v)
			}
		}
	}
}

// Drain pops values into out until ctx is done, sleeping idle between
// polls of an empty ring.
func (r *Ring[T]) Drain(ctx context.Context, out chan<- T, idle time.Duration) {
	for {
		v, ok := r.Pop()
		if !ok {
			select {
			case <-ctx.Done():
				return
			case <-time.After(idle):
			}
			continue
		}
		select {
		case out <- v:
		case <-ctx.Done():
			return
		}
	}
}

// nextPow2 returns the smallest power of 2 >= n.
func nextPow2(n int) int {
	if n <= 0 {
		return 1
	}
	n--
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	n |= n >> 32
	return n + 1
}
