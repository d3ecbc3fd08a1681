package nic

import (
	"sync/atomic"

	"tickloop/infra/memory"
)

// Loopback delivers every sent frame back to its own receive side.
// Any goroutine may send; a single goroutine receives.
type Loopback struct {
	ch     chan Frame
	pool   *memory.Pool[[]byte]
	closed atomic.Bool
}

// NewLoopback creates a loopback port buffering up to depth frames.
func NewLoopback(depth int) *Loopback {
	return &Loopback{
		ch:   make(chan Frame, depth),
		pool: memory.NewBufferPool(DefaultFrameSize),
	}
}

func (l *Loopback) SendBurst(frames [][]byte) int {
	if l.closed.Load() {
		return 0
	}
	for i, data := range frames {
		f := pooledFrame(l.pool, data)
		select {
		case l.ch <- f:
		default:
			f.Release()
			return i
		}
	}
	return len(frames)
}

func (l *Loopback) ReceiveBurst(frames []Frame) int {
	for i := range frames {
		select {
		case f := <-l.ch:
			frames[i] = f
		default:
			return i
		}
	}
	return len(frames)
}

// Pending reports frames sent but not yet received.
func (l *Loopback) Pending() int {
	return len(l.ch)
}

// Close stops accepting frames. Frames already queued can still be
// received.
func (l *Loopback) Close() error {
	l.closed.Store(true)
	return nil
}
