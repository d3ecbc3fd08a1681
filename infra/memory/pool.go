package memory

import "sync"

// Pool is a typed object pool.
type Pool[T any] struct {
	p *sync.Pool
}

func NewPool[T any](ctor func() *T) *Pool[T] {
	return &Pool[T]{
		p: &sync.Pool{
			New: func() any { return ctor() },
		},
	}
}

func (p *Pool[T]) Get() *T {
	return p.p.Get().(*T)
}

func (p *Pool[T]) Put(v *T) {
	p.p.Put(v)
}

// NewBufferPool pools byte slices with at least size bytes of capacity.
// Callers reslice to the length they need and Put the same pointer back.
func NewBufferPool(size int) *Pool[[]byte] {
	return NewPool(func() *[]byte {
		b := make([]byte, 0, size)
		return &b
	})
}
