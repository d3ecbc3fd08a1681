package service

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"tickloop/domain/orderbook"
	"tickloop/infra/memory"
	"tickloop/infra/metrics"
	"tickloop/infra/netstack"
	"tickloop/infra/nic"
	"tickloop/infra/sequence"
	entrywal "tickloop/infra/wal/entry"
	exitwal "tickloop/infra/wal/exit"
	"tickloop/snapshot"
	"tickloop/wire"
)

// SubmitMode selects where SubmitOrder sends frames.
type SubmitMode int

const (
	// SubmitLoopback feeds submitted orders straight back into
	// ingestion, closing the loop inside the process.
	SubmitLoopback SubmitMode = iota
	// SubmitTransmit sends submitted orders out through the port.
	SubmitTransmit
)

func (m SubmitMode) String() string {
	if m == SubmitTransmit {
		return "transmit"
	}
	return "loopback"
}

type Options struct {
	QueueCapacity uint64
	BurstSize     int
	Symbol        string

	SubmitMode  SubmitMode
	SubmitDelay time.Duration
	DestIP      uint32
	DestPort    uint16

	StrategyEnabled bool
	MaxSpread       uint32
	StrategyQty     uint32

	LatencyWindow    int
	IdleTimeout      time.Duration
	EvictInterval    time.Duration
	SnapshotInterval time.Duration
}

func DefaultOptions() Options {
	return Options{
		QueueCapacity:    1024,
		BurstSize:        32,
		Symbol:           "TICK",
		SubmitMode:       SubmitLoopback,
		SubmitDelay:      50 * time.Microsecond,
		DestIP:           0x0A000001, // 10.0.0.1
		DestPort:         12345,
		StrategyEnabled:  true,
		MaxSpread:        2,
		StrategyQty:      100,
		LatencyWindow:    1 << 16,
		IdleTimeout:      5 * time.Minute,
		EvictInterval:    30 * time.Second,
		SnapshotInterval: time.Minute,
	}
}

// Deps are the collaborators of a Pipeline. Only Port is required.
type Deps struct {
	Port nic.Port
	// Loopback receives submitted orders in SubmitLoopback mode. When
	// nil, Port is used if it is a *nic.Loopback, else one is created.
	Loopback  *nic.Loopback
	Journal   *entrywal.WAL
	Outbox    *exitwal.Outbox
	Snapshots *snapshot.Writer
	Metrics   *metrics.Metrics
	Logger    *zap.Logger
}

var (
	ErrNoPort         = errors.New("service: no port")
	ErrQueueCapacity  = errors.New("service: queue capacity must be a power of two >= 2")
	ErrSubmitRejected = errors.New("service: port rejected order")
)

type Pipeline struct {
	opts Options
	log  *zap.Logger
	m    *metrics.Metrics

	queue *memory.Ring[wire.MarketDataMessage]
	book  *orderbook.OrderBook
	stack *netstack.Stack
	rx    []nic.Port
	tx    nic.Port

	journal *entrywal.WAL
	outbox  *exitwal.Outbox
	snaps   *snapshot.Writer

	ingestSeq  *sequence.Sequencer
	orderIDs   *sequence.Sequencer
	journalSeq *sequence.Sequencer

	symbol  [8]byte
	started time.Time
	window  *LatencyWindow

	ingestLatencyTotal atomic.Uint64
	messageCount       atomic.Uint64
	processed          atomic.Uint64
	drops              atomic.Uint64
	malformed          atomic.Uint64
	submitted          atomic.Uint64
	signals            atomic.Uint64
	bestBid            atomic.Uint32
	bestAsk            atomic.Uint32

	// ingestion goroutine only
	frames []nic.Frame

	// processing goroutine only
	lastBid, lastAsk uint32
	journalBuf       []byte
}

func New(deps Deps, opts Options) (*Pipeline, error) {
	if deps.Port == nil {
		return nil, ErrNoPort
	}
	if q := opts.QueueCapacity; q < 2 || q&(q-1) != 0 {
		return nil, ErrQueueCapacity
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.New()
	}
	if opts.BurstSize <= 0 {
		opts.BurstSize = 1
	}
	if opts.LatencyWindow <= 0 {
		opts.LatencyWindow = 1
	}

	p := &Pipeline{
		opts:       opts,
		log:        deps.Logger.With(zap.String("component", "pipeline")),
		m:          deps.Metrics,
		queue:      memory.NewRing[wire.MarketDataMessage](opts.QueueCapacity),
		book:       orderbook.NewOrderBook(),
		stack:      netstack.New(),
		rx:         []nic.Port{deps.Port},
		journal:    deps.Journal,
		outbox:     deps.Outbox,
		snaps:      deps.Snapshots,
		ingestSeq:  sequence.New(0),
		orderIDs:   sequence.New(0),
		journalSeq: sequence.New(0),
		symbol:     wire.SymbolFrom(opts.Symbol),
		started:    time.Now(),
		window:     NewLatencyWindow(opts.LatencyWindow),
		frames:     make([]nic.Frame, opts.BurstSize),
		lastBid:    orderbook.NoBid,
		lastAsk:    orderbook.NoAsk,
	}
	p.bestBid.Store(orderbook.NoBid)
	p.bestAsk.Store(orderbook.NoAsk)

	switch opts.SubmitMode {
	case SubmitTransmit:
		p.tx = deps.Port
	default:
		lb := deps.Loopback
		if lb == nil {
			if l, ok := deps.Port.(*nic.Loopback); ok {
				lb = l
			} else {
				lb = nic.NewLoopback(4096)
			}
		}
		p.tx = lb
		if nic.Port(lb) != deps.Port {
			p.rx = append(p.rx, lb)
		}
	}
	return p, nil
}

// Book exposes the order book. It is only safe to use while neither
// loop is running.
func (p *Pipeline) Book() *orderbook.OrderBook {
	return p.book
}

// BestBid and BestAsk report the top of book as of the last drain.
// Safe from any goroutine.
func (p *Pipeline) BestBid() uint32 { return p.bestBid.Load() }
func (p *Pipeline) BestAsk() uint32 { return p.bestAsk.Load() }

// NextOrderID reserves an id from the sequence used for emitted orders.
func (p *Pipeline) NextOrderID() uint64 {
	return p.orderIDs.Next()
}

// ---------------- Ingestion ----------------

// HandleMessage records ingestion latency and enqueues msg for
// processing. A full queue drops msg and returns false. Ingestion role
// only.
func (p *Pipeline) HandleMessage(msg wire.MarketDataMessage) bool {
	var lat uint64
	if now := Now(); now > msg.Timestamp {
		lat = now - msg.Timestamp
	}
	p.ingestLatencyTotal.Add(lat)
	p.messageCount.Add(1)
	p.m.IngestLatency.Observe(float64(lat))

	if !p.queue.Push(msg) {
		p.drops.Add(1)
		p.m.QueueDrops.Inc()
		return false
	}
	p.m.MessagesQueued.Inc()
	return true
}

// ProcessFrame reassembles one frame and hands every complete message
// to HandleMessage. Ingestion role only.
func (p *Pipeline) ProcessFrame(frame []byte) {
	p.ingestFrame(frame)
	p.drainMessages()
}

// PollOnce runs a single ingestion iteration over every receive port
// and returns the number of frames handled.
func (p *Pipeline) PollOnce() int {
	total := 0
	for _, port := range p.rx {
		n := port.ReceiveBurst(p.frames)
		for i := 0; i < n; i++ {
			p.ingestFrame(p.frames[i].Data)
			p.frames[i].Release()
		}
		total += n
	}
	if total > 0 {
		p.drainMessages()
	}
	return total
}

func (p *Pipeline) ingestFrame(frame []byte) {
	p.m.FramesReceived.Inc()
	if !p.stack.Process(frame) {
		p.countMalformed()
	}
}

func (p *Pipeline) drainMessages() {
	for {
		payload, ok := p.stack.NextMessage()
		if !ok {
			return
		}
		p.handlePayload(payload)
	}
}

func (p *Pipeline) handlePayload(payload []byte) {
	switch len(payload) {
	case wire.OrderSize:
		o, err := wire.ParseOrder(payload)
		if err != nil {
			p.countMalformed()
			return
		}
		p.HandleMessage(wire.MessageFromOrder(o, Now(), uint32(p.ingestSeq.Next()), p.symbol))
	case wire.MarketDataSize:
		msg, err := wire.ParseMarketData(payload)
		if err != nil {
			p.countMalformed()
			return
		}
		p.HandleMessage(msg)
	default:
		p.countMalformed()
	}
}

func (p *Pipeline) countMalformed() {
	p.malformed.Add(1)
	p.m.FramesMalformed.Inc()
}

// ---------------- Processing ----------------

// ProcessMessages drains the queue into the book until it is empty or
// ctx is done, and returns the number of messages applied. Processing
// role only.
func (p *Pipeline) ProcessMessages(ctx context.Context) int {
	done := ctx.Done()
	n := 0
	for {
		select {
		case <-done:
			p.publishTop()
			return n
		default:
		}
		msg, ok := p.queue.Pop()
		if !ok {
			break
		}
		if p.apply(msg) {
			n++
		}
	}
	p.publishTop()
	return n
}

func (p *Pipeline) apply(msg wire.MarketDataMessage) bool {
	if !knownType(msg.MessageType) {
		p.countMalformed()
		return false
	}
	p.journalAppend(msg)

	start := time.Now()
	p.applyToBook(msg)
	elapsed := uint64(time.Since(start))

	p.window.Record(elapsed)
	p.m.ProcessLatency.Observe(float64(elapsed))
	p.processed.Add(1)
	p.m.Processed.Inc()
	return true
}

func knownType(t byte) bool {
	switch t {
	case wire.TypeBuy, wire.TypeSell, wire.TypeCancel, wire.TypeModify:
		return true
	}
	return false
}

func (p *Pipeline) applyToBook(msg wire.MarketDataMessage) {
	switch msg.MessageType {
	case wire.TypeBuy, wire.TypeSell:
		p.book.AddOrder(msg.OrderID, msg.Price, msg.Quantity, msg.Side())
	case wire.TypeCancel:
		p.book.RemoveOrder(msg.OrderID)
	case wire.TypeModify:
		p.book.ModifyOrder(msg.OrderID, msg.Quantity)
	}
}

func (p *Pipeline) journalAppend(msg wire.MarketDataMessage) {
	if p.journal == nil {
		return
	}
	p.journalBuf = wire.AppendMarketData(p.journalBuf[:0], msg)
	rec := entrywal.NewRecord(entrywal.RecordMarketData, p.journalSeq.Next(), p.journalBuf)
	if err := p.journal.Append(rec); err != nil {
		p.m.JournalErrors.Inc()
		p.log.Warn("journal append failed", zap.Uint64("seq", rec.Seq), zap.Error(err))
	}
}

func (p *Pipeline) publishTop() {
	bid, ask := p.book.BestBid(), p.book.BestAsk()
	p.bestBid.Store(bid)
	p.bestAsk.Store(ask)
	p.m.BestBid.Set(float64(bid))
	p.m.BestAsk.Set(float64(ask))
	p.m.QueueDepth.Set(float64(p.queue.Len()))
}

// topChanged reports whether the top of book moved since the last call.
func (p *Pipeline) topChanged() bool {
	bid, ask := p.book.BestBid(), p.book.BestAsk()
	if bid == p.lastBid && ask == p.lastAsk {
		return false
	}
	p.lastBid, p.lastAsk = bid, ask
	return true
}
