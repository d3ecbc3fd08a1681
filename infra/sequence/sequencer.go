package sequence

import "sync/atomic"

// Sequencer hands out strictly increasing ids and is safe for
// concurrent use.
type Sequencer struct {
	next atomic.Uint64
}

// New creates a sequencer whose first Next returns start+1.
func New(start uint64) *Sequencer {
	s := &Sequencer{}
	s.next.Store(start)
	return s
}

func (s *Sequencer) Next() uint64 {
	return s.next.Add(1)
}

// NextN reserves n consecutive ids and returns the first of them.
func (s *Sequencer) NextN(n uint64) uint64 {
	return s.next.Add(n) - n + 1
}

// Current returns the last issued id.
func (s *Sequencer) Current() uint64 {
	return s.next.Load()
}

// Reset moves the sequencer to v, typically after journal replay.
func (s *Sequencer) Reset(v uint64) {
	s.next.Store(v)
}
