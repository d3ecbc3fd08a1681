package memory

import "sync/atomic"

// Ring is a bounded single-producer single-consumer queue.
//
// One slot always stays empty, so a ring built with n slots holds at
// most n-1 values. Push must only be called from the producer goroutine
// and Pop only from the consumer goroutine.
type Ring[T any] struct {
	head  atomic.Uint64 // next slot to read, owned by the consumer
	_pad1 [56]byte
	tail  atomic.Uint64 // next slot to write, owned by the producer
	_pad2 [56]byte
	buf   []T
	mask  uint64
}

func NewRing[T any](slots uint64) *Ring[T] {
	if slots < 2 || slots&(slots-1) != 0 {
		panic("memory.Ring slots must be a power of two >= 2")
	}
	return &Ring[T]{
		buf:  make([]T, slots),
		mask: slots - 1,
	}
}

// Push appends v. It returns false, leaving the ring untouched, when
// the ring is full.
func (r *Ring[T]) Push(v T) bool {
	t := r.tail.Load()
	next := (t + 1) & r.mask
	if next == r.head.Load() {
		return false
	}
	r.buf[t] = v
	r.tail.Store(next)
	return true
}

// Pop removes the oldest value. ok is false when the ring is empty.
func (r *Ring[T]) Pop() (v T, ok bool) {
	h := r.head.Load()
	if h == r.tail.Load() {
		return v, false
	}
	v = r.buf[h]
	var zero T
	r.buf[h] = zero
	r.head.Store((h + 1) & r.mask)
	return v, true
}

// Len is the current occupancy. It is exact only when called from the
// producer or consumer; other goroutines see an approximation.
func (r *Ring[T]) Len() int {
	return int((r.tail.Load() - r.head.Load()) & r.mask)
}

// Cap is the maximum number of values the ring holds at once.
func (r *Ring[T]) Cap() int {
	return len(r.buf) - 1
}
