// Package buffer provides the queue between trade producers (poll loops,
// the live collector) and the batch writer.
package buffer

import (
	"context"
	"errors"
	"sync"
)

var (
	// ErrClosed is returned by Push after Close.
	ErrClosed = errors.New("buffer closed")
)

// Ring is a thread-safe FIFO that doubles its capacity at 70% fill, up to
// a hard limit. Once at the limit the oldest items are overwritten and
// counted as dropped.
type Ring[T any] struct {
	mu       sync.Mutex
	buf      []T
	head     int
	count    int
	limit    int
	closed   bool
	notEmpty chan struct{}

	pushed  int64
	popped  int64
	dropped int64
	resizes int
}

// Stats is a snapshot of Ring counters.
type Stats struct {
	Len      int
	Capacity int
	Pushed   int64
	Popped   int64
	Dropped  int64
	Resizes  int
}

// NewRing creates a ring starting at initial capacity and never growing past limit.
// A limit below initial is raised to initial.
func NewRing[T any](initial, limit int) *Ring[T] {
	if initial < 1 {
		initial = 1
	}
	if limit < initial {
		limit = initial
	}
	return &Ring[T]{
		buf:      make([]T, initial),
		limit:    limit,
		notEmpty: make(chan struct{}, 1),
	}
}

// Push appends items. It returns the number of older items overwritten.
func (r *Ring[T]) Push(items ...T) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return 0, ErrClosed
	}

	dropped := 0
	for _, item := range items {
		if r.count+1 >= len(r.buf)*70/100 && len(r.buf) < r.limit {
			r.grow()
		}
		if r.count == len(r.buf) {
			r.buf[r.head] = item
			r.head = (r.head + 1) % len(r.buf)
			dropped++
			continue
		}
		r.buf[(r.head+r.count)%len(r.buf)] = item
		r.count++
	}

	r.pushed += int64(len(items))
	r.dropped += int64(dropped)
	r.signal()
	return dropped, nil
}

// PopBatch blocks until at least one item is available and returns up to max
// items. It returns nil, false when ctx is done or the ring is closed and drained.
func (r *Ring[T]) PopBatch(ctx context.Context, max int) ([]T, bool) {
	for {
		r.mu.Lock()
		if r.count > 0 {
			items := r.take(max)
			if r.count > 0 {
				r.signal()
			}
			r.mu.Unlock()
			return items, true
		}
		closed := r.closed
		r.mu.Unlock()

		if closed {
			return nil, false
		}

		select {
		case <-ctx.Done():
			return nil, false
		case <-r.notEmpty:
		}
	}
}

// Drain removes and returns everything currently buffered without blocking.
func (r *Ring[T]) Drain() []T {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.count == 0 {
		return nil
	}
	return r.take(0)
}

// Close stops accepting pushes and wakes blocked readers.
func (r *Ring[T]) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.closed = true
	close(r.notEmpty)
}

// Len returns the number of buffered items.
func (r *Ring[T]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

// Stats returns counters.
func (r *Ring[T]) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Stats{
		Len:      r.count,
		Capacity: len(r.buf),
		Pushed:   r.pushed,
		Popped:   r.popped,
		Dropped:  r.dropped,
		Resizes:  r.resizes,
	}
}

// take removes up to max items (all when max <= 0). Caller holds mu.
func (r *Ring[T]) take(max int) []T {
	n := r.count
	if max > 0 && max < n {
		n = max
	}

	var zero T
	out := make([]T, n)
	for i := range n {
		out[i] = r.buf[r.head]
		r.buf[r.head] = zero
		r.head = (r.head + 1) % len(r.buf)
	}
	r.count -= n
	r.popped += int64(n)
	return out
}

// grow doubles capacity, clamped to limit. Caller holds mu.
func (r *Ring[T]) grow() {
	size := min(len(r.buf)*2, r.limit)
	next := make([]T, size)
	for i := range r.count {
		next[i] = r.buf[(r.head+i)%len(r.buf)]
	}
	r.buf = next
	r.head = 0
	r.resizes++
}

// signal wakes one waiting reader without blocking. Caller holds mu and
// the ring is not closed.
func (r *Ring[T]) signal() {
	if r.closed {
		return
	}
	select {
	case r.notEmpty <- struct{}{}:
	default:
	}
}
