package wire

import (
	"fmt"

	"tickloop/domain/orderbook"
)

// Market-data record layout, packed:
//
//	[timestamp:8][sequence:4][type:1][symbol:8][order_id:8][price:4][quantity:4]
const MarketDataSize = 37

// Message types carried in MarketDataMessage.MessageType.
const (
	TypeBuy    byte = 'B'
	TypeSell   byte = 'S'
	TypeCancel byte = 'X'
	TypeModify byte = 'U'
)

type MarketDataMessage struct {
	Timestamp      uint64
	SequenceNumber uint32
	MessageType    byte
	Symbol         [8]byte
	OrderID        uint64
	Price          uint32
	Quantity       uint32
}

// Side maps an add message to the book side it rests on.
func (m MarketDataMessage) Side() orderbook.Side {
	if m.MessageType == TypeSell {
		return orderbook.Sell
	}
	return orderbook.Buy
}

func (m MarketDataMessage) String() string {
	return fmt.Sprintf("md{seq=%d type=%c id=%d px=%d qty=%d}",
		m.SequenceNumber, m.MessageType, m.OrderID, m.Price, m.Quantity)
}

// MessageFromOrder wraps an order record as an add message.
func MessageFromOrder(o orderbook.Order, ts uint64, seq uint32, symbol [8]byte) MarketDataMessage {
	typ := TypeSell
	if o.Side == orderbook.Buy {
		typ = TypeBuy
	}
	return MarketDataMessage{
		Timestamp:      ts,
		SequenceNumber: seq,
		MessageType:    typ,
		Symbol:         symbol,
		OrderID:        o.ID,
		Price:          o.Price,
		Quantity:       o.Quantity,
	}
}

// SymbolFrom truncates or zero-pads s to eight bytes.
func SymbolFrom(s string) [8]byte {
	var sym [8]byte
	copy(sym[:], s)
	return sym
}

func AppendMarketData(dst []byte, m MarketDataMessage) []byte {
	var rec [MarketDataSize]byte
	byteOrder.PutUint64(rec[0:8], m.Timestamp)
	byteOrder.PutUint32(rec[8:12], m.SequenceNumber)
	rec[12] = m.MessageType
	copy(rec[13:21], m.Symbol[:])
	byteOrder.PutUint64(rec[21:29], m.OrderID)
	byteOrder.PutUint32(rec[29:33], m.Price)
	byteOrder.PutUint32(rec[33:37], m.Quantity)
	return append(dst, rec[:]...)
}

func EncodeMarketData(m MarketDataMessage) []byte {
	return AppendMarketData(make([]byte, 0, MarketDataSize), m)
}

func ParseMarketData(b []byte) (MarketDataMessage, error) {
	c := cursor{b: b}
	var m MarketDataMessage
	m.Timestamp = c.u64()
	m.SequenceNumber = c.u32()
	m.MessageType = c.u8()
	c.copyTo(m.Symbol[:])
	m.OrderID = c.u64()
	m.Price = c.u32()
	m.Quantity = c.u32()
	if c.err != nil {
		return MarketDataMessage{}, c.err
	}
	return m, nil
}
