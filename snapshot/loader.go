package snapshot

import (
	"encoding/gob"
	"errors"
	"fmt"
	"os"

	"tickloop/domain/orderbook"
)

// Load applies the snapshot at path to book and returns its sequence.
// A missing file is not an error: the book stays empty and seq is 0.
func Load(path string, book *orderbook.OrderBook) (uint64, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	defer f.Close()

	var s Snapshot
	if err := gob.NewDecoder(f).Decode(&s); err != nil {
		return 0, fmt.Errorf("decode snapshot %s: %w", path, err)
	}

	for _, o := range s.Orders {
		book.AddOrder(o.ID, o.Price, o.Quantity, o.Side)
	}
	return s.Seq, nil
}
