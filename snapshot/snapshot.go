package snapshot

import (
	"time"

	"tickloop/domain/orderbook"
)

const fileName = "snapshot.bin"

type Snapshot struct {
	Seq     uint64
	Created time.Time
	Orders  []orderbook.Order
}
