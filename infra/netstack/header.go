package netstack

import "encoding/binary"

const (
	IPHeaderSize  = 12
	TCPHeaderSize = 12
	HeaderSize    = IPHeaderSize + TCPHeaderSize

	ProtocolTCP uint8 = 6
)

var byteOrder = binary.NativeEndian

// IPHeader layout: [src:4][dest:4][protocol:1][pad:3]
type IPHeader struct {
	SrcIP    uint32
	DestIP   uint32
	Protocol uint8
}

// TCPHeader layout: [src_port:2][dest_port:2][seq:4][ack:4]
type TCPHeader struct {
	SrcPort  uint16
	DestPort uint16
	Seq      uint32
	Ack      uint32
}

func (h IPHeader) put(b []byte) {
	byteOrder.PutUint32(b[0:4], h.SrcIP)
	byteOrder.PutUint32(b[4:8], h.DestIP)
	b[8] = h.Protocol
	b[9], b[10], b[11] = 0, 0, 0
}

func (h TCPHeader) put(b []byte) {
	byteOrder.PutUint16(b[0:2], h.SrcPort)
	byteOrder.PutUint16(b[2:4], h.DestPort)
	byteOrder.PutUint32(b[4:8], h.Seq)
	byteOrder.PutUint32(b[8:12], h.Ack)
}

// ParseFrame splits a frame into its headers and payload. The payload
// aliases frame. ok is false for frames shorter than HeaderSize.
func ParseFrame(frame []byte) (ip IPHeader, tcp TCPHeader, payload []byte, ok bool) {
	if len(frame) < HeaderSize {
		return ip, tcp, nil, false
	}
	ip = IPHeader{
		SrcIP:    byteOrder.Uint32(frame[0:4]),
		DestIP:   byteOrder.Uint32(frame[4:8]),
		Protocol: frame[8],
	}
	t := frame[IPHeaderSize:HeaderSize]
	tcp = TCPHeader{
		SrcPort:  byteOrder.Uint16(t[0:2]),
		DestPort: byteOrder.Uint16(t[2:4]),
		Seq:      byteOrder.Uint32(t[4:8]),
		Ack:      byteOrder.Uint32(t[8:12]),
	}
	return ip, tcp, frame[HeaderSize:], true
}

// AppendFrame appends the encoded headers followed by payload to dst.
func AppendFrame(dst []byte, ip IPHeader, tcp TCPHeader, payload []byte) []byte {
	var hdr [HeaderSize]byte
	ip.put(hdr[:IPHeaderSize])
	tcp.put(hdr[IPHeaderSize:])
	dst = append(dst, hdr[:]...)
	return append(dst, payload...)
}
