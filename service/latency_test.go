package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLatencyWindowEmpty(t *testing.T) {
	w := NewLatencyWindow(8)
	maxNs, p99Ns, n := w.Summary()
	assert.Zero(t, maxNs)
	assert.Zero(t, p99Ns)
	assert.Zero(t, n)
}

func TestLatencyWindowPercentile(t *testing.T) {
	w := NewLatencyWindow(256)
	for i := uint64(200); i >= 1; i-- {
		w.Record(i)
	}
	maxNs, p99Ns, n := w.Summary()
	assert.Equal(t, 200, n)
	assert.Equal(t, uint64(200), maxNs)
	assert.Equal(t, uint64(199), p99Ns)
}

func TestLatencyWindowKeepsMostRecent(t *testing.T) {
	w := NewLatencyWindow(4)
	for i := uint64(1); i <= 6; i++ {
		w.Record(i * 10)
	}
	assert.Equal(t, 4, w.Len())

	maxNs, _, n := w.Summary()
	assert.Equal(t, 4, n)
	assert.Equal(t, uint64(60), maxNs)

	w.Record(1)
	w.Record(1)
	w.Record(1)
	w.Record(1)
	maxNs, _, _ = w.Summary()
	assert.Equal(t, uint64(1), maxNs)
}
