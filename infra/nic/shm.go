package nic

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"sync/atomic"
	"unsafe"

	"github.com/edsrzf/mmap-go"

	"tickloop/infra/memory"
)

// ringHeader sits at offset 0 of a shared ring file. Head and Tail are
// free-running counters on separate cache lines.
type ringHeader struct {
	Head     uint64 // consumer
	_pad1    [56]byte
	Tail     uint64 // producer
	_pad2    [56]byte
	Magic    uint32
	Slots    uint32
	SlotSize uint32
}

const (
	ringMagic      = 0x544b5247 // "TKRG"
	ringDataOffset = 192
	slotLenSize    = 4
)

var ErrBadRing = errors.New("nic: invalid shared ring file")

// SharedRing is a single-producer single-consumer frame queue in a
// memory-mapped file, so the two ends may live in different processes.
// Each slot holds [len:4][frame].
type SharedRing struct {
	file     *os.File
	mem      mmap.MMap
	hdr      *ringHeader
	data     []byte
	slots    uint64
	slotSize int
}

func ringFileSize(slots, slotSize int) int64 {
	return int64(ringDataOffset + slots*slotSize)
}

// CreateSharedRing creates or truncates the ring file at path.
func CreateSharedRing(path string, slots, slotSize int) (*SharedRing, error) {
	if slots <= 0 || slotSize <= slotLenSize {
		return nil, fmt.Errorf("shared ring %s: slots=%d slot size=%d: %w", path, slots, slotSize, ErrBadRing)
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("create shared ring: %w", err)
	}
	if err := f.Truncate(ringFileSize(slots, slotSize)); err != nil {
		f.Close()
		return nil, fmt.Errorf("size shared ring: %w", err)
	}

	r, err := mapRing(f)
	if err != nil {
		return nil, err
	}
	atomic.StoreUint64(&r.hdr.Head, 0)
	atomic.StoreUint64(&r.hdr.Tail, 0)
	atomic.StoreUint32(&r.hdr.Slots, uint32(slots))
	atomic.StoreUint32(&r.hdr.SlotSize, uint32(slotSize))
	atomic.StoreUint32(&r.hdr.Magic, ringMagic)
	if err := r.mem.Flush(); err != nil {
		r.Close()
		return nil, fmt.Errorf("flush shared ring: %w", err)
	}
	if err := r.layout(); err != nil {
		r.Close()
		return nil, err
	}
	return r, nil
}

// OpenSharedRing maps an existing ring file created by CreateSharedRing.
func OpenSharedRing(path string) (*SharedRing, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open shared ring: %w", err)
	}
	r, err := mapRing(f)
	if err != nil {
		return nil, err
	}
	if atomic.LoadUint32(&r.hdr.Magic) != ringMagic {
		r.Close()
		return nil, fmt.Errorf("shared ring %s: magic: %w", path, ErrBadRing)
	}
	if err := r.layout(); err != nil {
		r.Close()
		return nil, err
	}
	return r, nil
}

// OpenOrCreateSharedRing opens path when it holds a ring and creates a
// fresh one otherwise.
func OpenOrCreateSharedRing(path string, slots, slotSize int) (*SharedRing, error) {
	if _, err := os.Stat(path); err == nil {
		return OpenSharedRing(path)
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	return CreateSharedRing(path, slots, slotSize)
}

func mapRing(f *os.File) (*SharedRing, error) {
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if st.Size() < ringDataOffset {
		f.Close()
		return nil, fmt.Errorf("shared ring %s: size %d: %w", f.Name(), st.Size(), ErrBadRing)
	}
	m, err := mmap.Map(f, mmap.RDWR, 0)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("mmap shared ring: %w", err)
	}
	// Best effort; fails without CAP_IPC_LOCK or a raised memlock limit.
	_ = m.Lock()

	return &SharedRing{
		file: f,
		mem:  m,
		hdr:  (*ringHeader)(unsafe.Pointer(&m[0])),
	}, nil
}

func (r *SharedRing) layout() error {
	slots := int(atomic.LoadUint32(&r.hdr.Slots))
	slotSize := int(atomic.LoadUint32(&r.hdr.SlotSize))
	if slots == 0 || slotSize <= slotLenSize || int64(len(r.mem)) < ringFileSize(slots, slotSize) {
		return fmt.Errorf("shared ring %s: layout: %w", r.file.Name(), ErrBadRing)
	}
	r.slots = uint64(slots)
	r.slotSize = slotSize
	r.data = r.mem[ringDataOffset:ringFileSize(slots, slotSize)]
	return nil
}

// MaxFrame is the largest frame a slot holds.
func (r *SharedRing) MaxFrame() int {
	return r.slotSize - slotLenSize
}

func (r *SharedRing) slot(i uint64) []byte {
	off := int(i%r.slots) * r.slotSize
	return r.data[off : off+r.slotSize]
}

// Push copies frame into the next free slot. It fails when the ring is
// full or the frame does not fit a slot.
func (r *SharedRing) Push(frame []byte) bool {
	if len(frame) > r.MaxFrame() {
		return false
	}
	tail := atomic.LoadUint64(&r.hdr.Tail)
	head := atomic.LoadUint64(&r.hdr.Head)
	if tail-head >= r.slots {
		return false
	}
	s := r.slot(tail)
	binary.NativeEndian.PutUint32(s[:slotLenSize], uint32(len(frame)))
	copy(s[slotLenSize:], frame)
	atomic.StoreUint64(&r.hdr.Tail, tail+1)
	return true
}

// Pop appends the oldest frame to dst and frees its slot.
func (r *SharedRing) Pop(dst []byte) ([]byte, bool) {
	head := atomic.LoadUint64(&r.hdr.Head)
	if head == atomic.LoadUint64(&r.hdr.Tail) {
		return dst, false
	}
	s := r.slot(head)
	n := int(binary.NativeEndian.Uint32(s[:slotLenSize]))
	if n > r.MaxFrame() {
		n = r.MaxFrame()
	}
	dst = append(dst, s[slotLenSize:slotLenSize+n]...)
	atomic.StoreUint64(&r.hdr.Head, head+1)
	return dst, true
}

func (r *SharedRing) Depth() int {
	return int(atomic.LoadUint64(&r.hdr.Tail) - atomic.LoadUint64(&r.hdr.Head))
}

func (r *SharedRing) Close() error {
	var flushErr, unmapErr error
	if err := r.mem.Flush(); err != nil {
		flushErr = fmt.Errorf("flush shared ring: %w", err)
	}
	if err := r.mem.Unmap(); err != nil {
		unmapErr = fmt.Errorf("unmap shared ring: %w", err)
	}
	return errors.Join(flushErr, unmapErr, r.file.Close())
}

// SharedRingPort receives from one shared ring and transmits into
// another. Two processes pair up by swapping the paths.
type SharedRingPort struct {
	rx   *SharedRing
	tx   *SharedRing
	pool *memory.Pool[[]byte]
}

type SharedRingConfig struct {
	RxPath   string
	TxPath   string
	Slots    int
	SlotSize int
}

func OpenSharedRingPort(cfg SharedRingConfig) (*SharedRingPort, error) {
	rx, err := OpenOrCreateSharedRing(cfg.RxPath, cfg.Slots, cfg.SlotSize)
	if err != nil {
		return nil, err
	}
	tx, err := OpenOrCreateSharedRing(cfg.TxPath, cfg.Slots, cfg.SlotSize)
	if err != nil {
		rx.Close()
		return nil, err
	}
	return &SharedRingPort{
		rx:   rx,
		tx:   tx,
		pool: memory.NewBufferPool(rx.MaxFrame()),
	}, nil
}

func (p *SharedRingPort) ReceiveBurst(frames []Frame) int {
	for i := range frames {
		buf := p.pool.Get()
		data, ok := p.rx.Pop((*buf)[:0])
		if !ok {
			p.pool.Put(buf)
			return i
		}
		*buf = data
		frames[i] = Frame{Data: data, buf: buf, pool: p.pool}
	}
	return len(frames)
}

func (p *SharedRingPort) SendBurst(frames [][]byte) int {
	for i, f := range frames {
		if !p.tx.Push(f) {
			return i
		}
	}
	return len(frames)
}

func (p *SharedRingPort) Close() error {
	return errors.Join(p.rx.Close(), p.tx.Close())
}
