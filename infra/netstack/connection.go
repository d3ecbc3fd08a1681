package netstack

import "time"

// Key identifies a connection by its remote endpoint: ip<<16 | port.
type Key uint64

func KeyFor(ip uint32, port uint16) Key {
	return Key(uint64(ip)<<16 | uint64(port))
}

type Connection struct {
	RemoteIP   uint32
	RemotePort uint16
	LocalIP    uint32
	LocalPort  uint16

	nextSeq  uint32 // stamped on the next outbound frame
	nextAck  uint32 // seq + len of the last inbound frame
	chunks   [][]byte
	lastSeen time.Time
}

func (c *Connection) push(p []byte) {
	c.chunks = append(c.chunks, p)
}

func (c *Connection) pop() []byte {
	p := c.chunks[0]
	c.chunks[0] = nil
	c.chunks = c.chunks[1:]
	return p
}

// ConnectionState is a point-in-time copy of a connection.
type ConnectionState struct {
	RemoteIP   uint32
	RemotePort uint16
	LocalIP    uint32
	LocalPort  uint16
	NextSeq    uint32
	NextAck    uint32
	Pending    int
	LastSeen   time.Time
}

func (c *Connection) state() ConnectionState {
	return ConnectionState{
		RemoteIP:   c.RemoteIP,
		RemotePort: c.RemotePort,
		LocalIP:    c.LocalIP,
		LocalPort:  c.LocalPort,
		NextSeq:    c.nextSeq,
		NextAck:    c.nextAck,
		Pending:    len(c.chunks),
		LastSeen:   c.lastSeen,
	}
}
