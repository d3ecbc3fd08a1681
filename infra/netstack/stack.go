package netstack

import (
	"bytes"
	"sync"
	"time"

	"github.com/tidwall/btree"
)

// Stack demultiplexes inbound frames into per-connection message
// queues and frames outbound payloads. It is safe for concurrent use.
type Stack struct {
	mu     sync.Mutex
	conns  *btree.Map[Key, *Connection]
	cursor Key
	served bool
	now    func() time.Time
}

type Option func(*Stack)

// WithClock replaces time.Now for last-seen bookkeeping.
func WithClock(now func() time.Time) Option {
	return func(s *Stack) { s.now = now }
}

func New(opts ...Option) *Stack {
	s := &Stack{
		conns: btree.NewMap[Key, *Connection](32),
		now:   time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Stack) lookup(ip uint32, port uint16) *Connection {
	k := KeyFor(ip, port)
	c, ok := s.conns.Get(k)
	if !ok {
		c = &Connection{RemoteIP: ip, RemotePort: port}
		s.conns.Set(k, c)
	}
	return c
}

// Process ingests one frame. The payload is copied, so the caller may
// release frame as soon as Process returns. Frames too short to carry
// both headers are rejected.
func (s *Stack) Process(frame []byte) bool {
	ip, tcp, payload, ok := ParseFrame(frame)
	if !ok {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.lookup(ip.SrcIP, tcp.SrcPort)
	if c.LocalIP == 0 && c.LocalPort == 0 {
		c.LocalIP = ip.DestIP
		c.LocalPort = tcp.DestPort
	}
	c.nextAck = tcp.Seq + uint32(len(payload))
	if len(payload) > 0 {
		c.push(bytes.Clone(payload))
	}
	c.lastSeen = s.now()
	return true
}

// Build frames payload for the connection to destIP:destPort, creating
// it if needed. The source IP is left as 0 for the port to fill in.
func (s *Stack) Build(destIP uint32, destPort uint16, payload []byte) []byte {
	s.mu.Lock()
	c := s.lookup(destIP, destPort)
	tcp := TCPHeader{
		SrcPort:  c.LocalPort,
		DestPort: destPort,
		Seq:      c.nextSeq,
		Ack:      c.nextAck,
	}
	c.nextSeq += uint32(len(payload))
	c.lastSeen = s.now()
	s.mu.Unlock()

	ip := IPHeader{DestIP: destIP, Protocol: ProtocolTCP}
	return AppendFrame(make([]byte, 0, HeaderSize+len(payload)), ip, tcp, payload)
}

// NextMessage returns the oldest pending payload of the first connection
// after the one served last, wrapping around, so a busy peer cannot
// starve the others.
func (s *Stack) NextMessage() ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		picked *Connection
		at     Key
	)
	pick := func(k Key, c *Connection) bool {
		if len(c.chunks) == 0 {
			return true
		}
		picked, at = c, k
		return false
	}

	if s.served {
		s.conns.Ascend(s.cursor+1, pick)
	}
	if picked == nil {
		s.conns.Scan(pick)
	}
	if picked == nil {
		return nil, false
	}

	s.cursor, s.served = at, true
	return picked.pop(), true
}

// EvictIdle drops connections with no pending messages that have not
// seen traffic for longer than ttl. It returns the number evicted.
func (s *Stack) EvictIdle(ttl time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-ttl)
	var stale []Key
	s.conns.Scan(func(k Key, c *Connection) bool {
		if len(c.chunks) == 0 && c.lastSeen.Before(cutoff) {
			stale = append(stale, k)
		}
		return true
	})
	for _, k := range stale {
		s.conns.Delete(k)
	}
	return len(stale)
}

func (s *Stack) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conns.Len()
}

// State reports the connection keyed by the remote endpoint ip:port.
func (s *Stack) State(ip uint32, port uint16) (ConnectionState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.conns.Get(KeyFor(ip, port))
	if !ok {
		return ConnectionState{}, false
	}
	return c.state(), true
}
