package wire

import "tickloop/domain/orderbook"

// Order record layout:
//
//	[order_id:8][price:4][quantity:4][side:1][pad:7]
//
// side is 1 for buy and 0 for sell.
const OrderSize = 24

const (
	sideSell byte = 0
	sideBuy  byte = 1
)

// AppendOrder appends the 24-byte record for o to dst.
func AppendOrder(dst []byte, o orderbook.Order) []byte {
	var rec [OrderSize]byte
	byteOrder.PutUint64(rec[0:8], o.ID)
	byteOrder.PutUint32(rec[8:12], o.Price)
	byteOrder.PutUint32(rec[12:16], o.Quantity)
	if o.Side == orderbook.Buy {
		rec[16] = sideBuy
	} else {
		rec[16] = sideSell
	}
	return append(dst, rec[:]...)
}

func EncodeOrder(o orderbook.Order) []byte {
	return AppendOrder(make([]byte, 0, OrderSize), o)
}

// ParseOrder decodes the leading order record of b.
// Any non-zero side byte reads as buy.
func ParseOrder(b []byte) (orderbook.Order, error) {
	c := cursor{b: b}
	o := orderbook.Order{
		ID:       c.u64(),
		Price:    c.u32(),
		Quantity: c.u32(),
	}
	if c.u8() == sideSell {
		o.Side = orderbook.Sell
	} else {
		o.Side = orderbook.Buy
	}
	c.skip(OrderSize - 17)
	if c.err != nil {
		return orderbook.Order{}, c.err
	}
	return o, nil
}

// DecodeOrder is ParseOrder for callers that treat a truncated record
// as an empty one: short input yields the zero Order.
func DecodeOrder(b []byte) orderbook.Order {
	o, err := ParseOrder(b)
	if err != nil {
		return orderbook.Order{}
	}
	return o
}
