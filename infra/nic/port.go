package nic

import (
	"errors"

	"tickloop/infra/memory"
)

var ErrClosed = errors.New("nic: port closed")

// Frame is a received frame whose buffer belongs to the port's pool.
// The receiver must call Release once it no longer needs Data.
type Frame struct {
	Data []byte

	buf  *[]byte
	pool *memory.Pool[[]byte]
}

func (f *Frame) Release() {
	if f.pool != nil && f.buf != nil {
		*f.buf = (*f.buf)[:0]
		f.pool.Put(f.buf)
	}
	*f = Frame{}
}

type Port interface {
	// ReceiveBurst fills frames with up to len(frames) received frames
	// and returns how many it filled.
	ReceiveBurst(frames []Frame) int
	// SendBurst transmits frames and returns how many were accepted.
	SendBurst(frames [][]byte) int
	Close() error
}

// DefaultFrameSize bounds the buffers pooled by the drivers.
const DefaultFrameSize = 2048

func pooledFrame(pool *memory.Pool[[]byte], data []byte) Frame {
	buf := pool.Get()
	*buf = append((*buf)[:0], data...)
	return Frame{Data: *buf, buf: buf, pool: pool}
}
