package snapshot

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tickloop/domain/orderbook"
)

func TestWriteLoadRoundTrip(t *testing.T) {
	book := orderbook.NewOrderBook()
	book.AddOrder(1, 100, 10, orderbook.Buy)
	book.AddOrder(2, 99, 5, orderbook.Buy)
	book.AddOrder(3, 105, 7, orderbook.Sell)
	book.ModifyOrder(2, 0)

	w := &Writer{Dir: t.TempDir()}
	require.NoError(t, w.Write(42, book))

	restored := orderbook.NewOrderBook()
	seq, err := Load(w.Path(), restored)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), seq)
	assert.Equal(t, 3, restored.Len())
	assert.Equal(t, uint32(100), restored.BestBid())
	assert.Equal(t, uint32(105), restored.BestAsk())

	o, ok := restored.Lookup(2)
	require.True(t, ok)
	assert.Equal(t, uint32(0), o.Quantity)
}

func TestWriteReplacesPrevious(t *testing.T) {
	w := &Writer{Dir: t.TempDir()}
	book := orderbook.NewOrderBook()
	require.NoError(t, w.Write(1, book))
	book.AddOrder(9, 50, 1, orderbook.Sell)
	require.NoError(t, w.Write(2, book))

	entries, err := os.ReadDir(w.Dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files are cleaned up")

	restored := orderbook.NewOrderBook()
	seq, err := Load(w.Path(), restored)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), seq)
	assert.Equal(t, 1, restored.Len())
}

func TestLoadMissingIsEmpty(t *testing.T) {
	book := orderbook.NewOrderBook()
	seq, err := Load(filepath.Join(t.TempDir(), "nope.bin"), book)
	require.NoError(t, err)
	assert.Zero(t, seq)
	assert.Equal(t, 0, book.Len())
}

func TestLoadCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), fileName)
	require.NoError(t, os.WriteFile(path, []byte("not gob"), 0o644))

	_, err := Load(path, orderbook.NewOrderBook())
	assert.Error(t, err)
}
