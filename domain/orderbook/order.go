package orderbook

import "math"

type Side uint8

const (
	Buy Side = iota
	Sell
)

func (s Side) String() string {
	if s == Buy {
		return "BUY"
	}
	return "SELL"
}

// Sentinels reported by BestBid and BestAsk when a side is empty.
const (
	NoBid uint32 = 0
	NoAsk uint32 = math.MaxUint32
)

// Order is a resting limit order. Price is immutable once the order
// rests; Quantity may be replaced through ModifyOrder.
type Order struct {
	ID       uint64
	Price    uint32
	Quantity uint32
	Side     Side
}

// orderKey locates an order's level without holding a pointer into it.
type orderKey struct {
	side  Side
	price uint32
}
