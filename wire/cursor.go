package wire

import (
	"encoding/binary"
	"errors"
)

var ErrShortBuffer = errors.New("wire: short buffer")

var byteOrder = binary.NativeEndian

// cursor reads fields sequentially. The first out-of-range read latches
// ErrShortBuffer and every later read returns zero.
type cursor struct {
	b   []byte
	off int
	err error
}

func (c *cursor) take(n int) []byte {
	if c.err != nil {
		return nil
	}
	if len(c.b)-c.off < n {
		c.err = ErrShortBuffer
		return nil
	}
	p := c.b[c.off : c.off+n]
	c.off += n
	return p
}

func (c *cursor) u8() uint8 {
	if p := c.take(1); p != nil {
		return p[0]
	}
	return 0
}

func (c *cursor) u32() uint32 {
	if p := c.take(4); p != nil {
		return byteOrder.Uint32(p)
	}
	return 0
}

func (c *cursor) u64() uint64 {
	if p := c.take(8); p != nil {
		return byteOrder.Uint64(p)
	}
	return 0
}

func (c *cursor) skip(n int) {
	c.take(n)
}

func (c *cursor) copyTo(dst []byte) {
	if p := c.take(len(dst)); p != nil {
		copy(dst, p)
	}
}
