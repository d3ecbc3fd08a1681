package entry

import "time"

type RecordType uint8

const (
	// RecordMarketData carries one applied wire.MarketDataMessage.
	RecordMarketData RecordType = iota + 1
)

// Frame: [type:1][seq:8][time:8][len:4][payload][crc:4], big endian.
const headerSize = 1 + 8 + 8 + 4

type Record struct {
	Type RecordType
	Seq  uint64
	Time int64
	Data []byte
}

func NewRecord(t RecordType, seq uint64, data []byte) *Record {
	return &Record{
		Type: t,
		Seq:  seq,
		Time: time.Now().UnixNano(),
		Data: data,
	}
}
