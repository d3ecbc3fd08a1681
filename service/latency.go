package service

import (
	"slices"
	"sync"
)

// LatencyWindow keeps the most recent samples, in nanoseconds, up to a
// fixed capacity. Safe for concurrent use.
type LatencyWindow struct {
	mu   sync.Mutex
	buf  []uint64
	next int
	full bool
}

func NewLatencyWindow(capacity int) *LatencyWindow {
	return &LatencyWindow{buf: make([]uint64, capacity)}
}

func (w *LatencyWindow) Record(ns uint64) {
	w.mu.Lock()
	w.buf[w.next] = ns
	w.next++
	if w.next == len(w.buf) {
		w.next = 0
		w.full = true
	}
	w.mu.Unlock()
}

func (w *LatencyWindow) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.full {
		return len(w.buf)
	}
	return w.next
}

// Summary returns the maximum and the 99th percentile (the sample at
// index floor(n*0.99) in sorted order) of the retained samples.
func (w *LatencyWindow) Summary() (maxNs, p99Ns uint64, n int) {
	w.mu.Lock()
	n = w.next
	if w.full {
		n = len(w.buf)
	}
	sorted := slices.Clone(w.buf[:n])
	w.mu.Unlock()

	if n == 0 {
		return 0, 0, 0
	}
	slices.Sort(sorted)
	return sorted[n-1], sorted[n*99/100], n
}
