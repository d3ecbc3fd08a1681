package service

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"tickloop/domain/orderbook"
	"tickloop/infra/netstack"
	"tickloop/infra/nic"
	entrywal "tickloop/infra/wal/entry"
	exitwal "tickloop/infra/wal/exit"
	"tickloop/snapshot"
	"tickloop/wire"
)

const peerIP uint32 = 0xC0A80001 // 192.168.0.1

// capturePort records everything sent and never receives.
type capturePort struct {
	mu     sync.Mutex
	sent   [][]byte
	reject bool
}

func (c *capturePort) ReceiveBurst([]nic.Frame) int { return 0 }

func (c *capturePort) SendBurst(frames [][]byte) int {
	if c.reject {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, f := range frames {
		c.sent = append(c.sent, bytes.Clone(f))
	}
	return len(frames)
}

func (c *capturePort) Close() error { return nil }

func (c *capturePort) orders(t *testing.T) []orderbook.Order {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]orderbook.Order, 0, len(c.sent))
	for _, f := range c.sent {
		_, _, payload, ok := netstack.ParseFrame(f)
		require.True(t, ok)
		o, err := wire.ParseOrder(payload)
		require.NoError(t, err)
		out = append(out, o)
	}
	return out
}

func testOptions() Options {
	opts := DefaultOptions()
	opts.QueueCapacity = 64
	opts.SubmitDelay = 0
	opts.StrategyEnabled = false
	opts.LatencyWindow = 128
	return opts
}

func newPipeline(t *testing.T, deps Deps, opts Options) *Pipeline {
	t.Helper()
	if deps.Port == nil {
		deps.Port = nic.NewLoopback(64)
	}
	deps.Logger = zaptest.NewLogger(t)
	p, err := New(deps, opts)
	require.NoError(t, err)
	return p
}

func peerFrame(seq uint32, payload []byte) []byte {
	return netstack.AppendFrame(nil,
		netstack.IPHeader{SrcIP: peerIP, DestIP: 0x0A000001, Protocol: netstack.ProtocolTCP},
		netstack.TCPHeader{SrcPort: 40000, DestPort: 12345, Seq: seq},
		payload)
}

func md(typ byte, id uint64, price, qty uint32) wire.MarketDataMessage {
	return wire.MarketDataMessage{
		Timestamp:   Now(),
		MessageType: typ,
		Symbol:      wire.SymbolFrom("TICK"),
		OrderID:     id,
		Price:       price,
		Quantity:    qty,
	}
}

func TestNewRequiresPort(t *testing.T) {
	_, err := New(Deps{}, DefaultOptions())
	require.ErrorIs(t, err, ErrNoPort)
}

func TestSubmittedOrderReachesBook(t *testing.T) {
	p := newPipeline(t, Deps{}, testOptions())

	require.NoError(t, p.SubmitOrder(orderbook.Order{ID: 1, Price: 150, Quantity: 20, Side: orderbook.Buy}))
	require.Equal(t, 1, p.PollOnce())
	require.Equal(t, 1, p.ProcessMessages(context.Background()))

	assert.Equal(t, uint32(150), p.BestBid())
	assert.Equal(t, orderbook.NoAsk, p.BestAsk())
	assert.Equal(t, uint64(1), p.Stats().Processed)

	o, ok := p.Book().Lookup(1)
	require.True(t, ok)
	assert.Equal(t, uint32(20), o.Quantity)
	assert.Equal(t, orderbook.Buy, o.Side)
}

func TestRunEndToEnd(t *testing.T) {
	p := newPipeline(t, Deps{}, testOptions())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	require.NoError(t, p.SubmitOrder(orderbook.Order{ID: 1, Price: 150, Quantity: 20, Side: orderbook.Buy}))
	require.Eventually(t, func() bool {
		return p.BestBid() == 150
	}, 2*time.Second, time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("pipeline did not stop")
	}
	assert.Equal(t, uint64(1), p.Stats().Processed)
}

func TestStrategyFiresOnTightSpread(t *testing.T) {
	port := &capturePort{}
	opts := testOptions()
	opts.SubmitMode = SubmitTransmit
	p := newPipeline(t, Deps{Port: port}, opts)

	require.True(t, p.HandleMessage(md(wire.TypeBuy, 10, 100, 5)))
	require.True(t, p.HandleMessage(md(wire.TypeSell, 11, 101, 5)))
	require.Equal(t, 2, p.ProcessMessages(context.Background()))

	require.True(t, p.ExecuteTradingStrategy())

	sent := port.orders(t)
	require.Len(t, sent, 2)
	assert.Equal(t, orderbook.Order{ID: 1, Price: 100, Quantity: opts.StrategyQty, Side: orderbook.Buy}, sent[0])
	assert.Equal(t, orderbook.Order{ID: 2, Price: 101, Quantity: opts.StrategyQty, Side: orderbook.Sell}, sent[1])
	assert.Equal(t, uint64(1), p.Stats().Signals)
	assert.Equal(t, uint64(2), p.Stats().Submitted)
}

func TestStrategyIdleOnWideSpread(t *testing.T) {
	port := &capturePort{}
	opts := testOptions()
	opts.SubmitMode = SubmitTransmit
	p := newPipeline(t, Deps{Port: port}, opts)

	p.HandleMessage(md(wire.TypeBuy, 10, 100, 5))
	p.HandleMessage(md(wire.TypeSell, 11, 105, 5))
	p.ProcessMessages(context.Background())

	assert.False(t, p.ExecuteTradingStrategy())
	assert.Empty(t, port.orders(t))
}

func TestStrategyIdleOnOneSidedOrCrossedBook(t *testing.T) {
	port := &capturePort{}
	opts := testOptions()
	opts.SubmitMode = SubmitTransmit
	p := newPipeline(t, Deps{Port: port}, opts)

	p.HandleMessage(md(wire.TypeBuy, 10, 100, 5))
	p.ProcessMessages(context.Background())
	assert.False(t, p.ExecuteTradingStrategy())

	p.HandleMessage(md(wire.TypeSell, 11, 99, 5))
	p.ProcessMessages(context.Background())
	assert.False(t, p.ExecuteTradingStrategy())
	assert.Empty(t, port.orders(t))
}

func TestLoopedBackQuotesDoNotRetrigger(t *testing.T) {
	lb := nic.NewLoopback(64)
	opts := testOptions()
	opts.StrategyEnabled = true
	p := newPipeline(t, Deps{Port: lb}, opts)
	ctx := context.Background()

	require.Equal(t, 2, lb.SendBurst([][]byte{
		peerFrame(0, wire.EncodeMarketData(md(wire.TypeBuy, 500, 100, 5))),
		peerFrame(wire.MarketDataSize, wire.EncodeMarketData(md(wire.TypeSell, 501, 101, 5))),
	}))
	require.Equal(t, 2, p.PollOnce())
	require.Equal(t, 2, p.step(ctx))
	require.Equal(t, uint64(1), p.Stats().Signals)

	// the two quotes come back through the loopback
	require.Equal(t, 2, p.PollOnce())
	require.Equal(t, 2, p.step(ctx))

	assert.Equal(t, uint64(1), p.Stats().Signals)
	assert.Equal(t, 4, p.Book().Len())
	assert.Equal(t, uint32(100), p.BestBid())
	assert.Equal(t, uint32(101), p.BestAsk())
}

func TestFullQueueDropsNewest(t *testing.T) {
	opts := testOptions()
	opts.QueueCapacity = 4
	p := newPipeline(t, Deps{}, opts)

	for i := uint64(1); i <= 3; i++ {
		require.True(t, p.HandleMessage(md(wire.TypeBuy, i, uint32(100+i), 1)))
	}
	assert.False(t, p.HandleMessage(md(wire.TypeBuy, 4, 200, 1)))
	assert.False(t, p.HandleMessage(md(wire.TypeBuy, 5, 201, 1)))

	assert.Equal(t, 3, p.ProcessMessages(context.Background()))
	assert.Equal(t, uint32(103), p.BestBid())

	s := p.Stats()
	assert.Equal(t, uint64(2), s.Drops)
	assert.Equal(t, uint64(5), s.Messages)
}

func TestMalformedInputIsCounted(t *testing.T) {
	p := newPipeline(t, Deps{}, testOptions())

	p.ProcessFrame([]byte{1, 2, 3})
	p.ProcessFrame(peerFrame(0, make([]byte, 10)))
	p.HandleMessage(md('Z', 1, 100, 1))

	assert.Equal(t, 0, p.ProcessMessages(context.Background()))
	s := p.Stats()
	assert.Equal(t, uint64(3), s.Malformed)
	assert.Equal(t, uint64(0), s.Processed)
	assert.Equal(t, 0, p.Book().Len())
}

func TestMarketDataModifyAndCancel(t *testing.T) {
	p := newPipeline(t, Deps{}, testOptions())
	ctx := context.Background()

	var seq uint32
	send := func(m wire.MarketDataMessage) {
		p.ProcessFrame(peerFrame(seq, wire.EncodeMarketData(m)))
		seq += wire.MarketDataSize
	}

	send(md(wire.TypeBuy, 7, 120, 10))
	send(md(wire.TypeModify, 7, 0, 4))
	require.Equal(t, 2, p.ProcessMessages(ctx))

	o, ok := p.Book().Lookup(7)
	require.True(t, ok)
	assert.Equal(t, uint32(4), o.Quantity)
	assert.Equal(t, uint32(120), p.BestBid())

	send(md(wire.TypeCancel, 7, 0, 0))
	require.Equal(t, 1, p.ProcessMessages(ctx))
	assert.Equal(t, orderbook.NoBid, p.BestBid())
}

func TestProcessMessagesStopsOnCancelledContext(t *testing.T) {
	p := newPipeline(t, Deps{}, testOptions())
	p.HandleMessage(md(wire.TypeBuy, 1, 100, 1))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Equal(t, 0, p.ProcessMessages(ctx))
	assert.Equal(t, 1, p.Stats().QueueDepth)
}

func TestSubmitRejectedByPort(t *testing.T) {
	opts := testOptions()
	opts.SubmitMode = SubmitTransmit
	p := newPipeline(t, Deps{Port: &capturePort{reject: true}}, opts)

	err := p.SubmitOrder(orderbook.Order{ID: 1, Price: 1, Quantity: 1, Side: orderbook.Sell})
	require.ErrorIs(t, err, ErrSubmitRejected)
	assert.Equal(t, uint64(0), p.Stats().Submitted)
}

func openJournal(t *testing.T, dir string) *entrywal.WAL {
	t.Helper()
	w, err := entrywal.Open(entrywal.Config{Dir: dir, SegmentSize: 1 << 20})
	require.NoError(t, err)
	return w
}

func TestRestoreFromJournal(t *testing.T) {
	dir := t.TempDir()
	journal := openJournal(t, dir)

	p := newPipeline(t, Deps{Journal: journal}, testOptions())
	p.HandleMessage(md(wire.TypeBuy, 1, 100, 5))
	p.HandleMessage(md(wire.TypeSell, 2, 105, 5))
	p.HandleMessage(md(wire.TypeBuy, 3, 99, 5))
	p.HandleMessage(md(wire.TypeCancel, 3, 0, 0))
	require.Equal(t, 4, p.ProcessMessages(context.Background()))
	require.NoError(t, journal.Close())

	restored := newPipeline(t, Deps{}, testOptions())
	require.NoError(t, restored.Restore("", dir))

	assert.Equal(t, 2, restored.Book().Len())
	assert.Equal(t, uint32(100), restored.BestBid())
	assert.Equal(t, uint32(105), restored.BestAsk())
	assert.Equal(t, uint64(4), restored.journalSeq.Current())
	assert.Greater(t, restored.NextOrderID(), uint64(3))
}

func TestRestoreFromSnapshotAndJournal(t *testing.T) {
	journalDir := t.TempDir()
	snaps := &snapshot.Writer{Dir: t.TempDir()}
	journal := openJournal(t, journalDir)
	ctx := context.Background()

	p := newPipeline(t, Deps{Journal: journal, Snapshots: snaps}, testOptions())
	p.HandleMessage(md(wire.TypeBuy, 1, 100, 5))
	p.HandleMessage(md(wire.TypeBuy, 2, 101, 5))
	p.ProcessMessages(ctx)
	require.NoError(t, p.TakeSnapshot())

	p.HandleMessage(md(wire.TypeCancel, 2, 0, 0))
	p.HandleMessage(md(wire.TypeSell, 3, 110, 7))
	p.ProcessMessages(ctx)
	require.NoError(t, journal.Close())

	restored := newPipeline(t, Deps{}, testOptions())
	require.NoError(t, restored.Restore(snaps.Path(), journalDir))

	assert.Equal(t, 2, restored.Book().Len())
	assert.Equal(t, uint32(100), restored.BestBid())
	assert.Equal(t, uint32(110), restored.BestAsk())
	_, ok := restored.Book().Lookup(2)
	assert.False(t, ok)
}

func TestRestoreAfterCrashMidAppend(t *testing.T) {
	dir := t.TempDir()
	journal := openJournal(t, dir)

	p := newPipeline(t, Deps{Journal: journal}, testOptions())
	p.HandleMessage(md(wire.TypeBuy, 1, 100, 5))
	p.HandleMessage(md(wire.TypeSell, 2, 105, 5))
	require.Equal(t, 2, p.ProcessMessages(context.Background()))
	require.NoError(t, journal.Close())

	seg := filepath.Join(dir, "segment-000000.wal")
	b, err := os.ReadFile(seg)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(seg, b[:len(b)-5], 0o644))

	// startup order: open the journal, then restore from it
	journal = openJournal(t, dir)
	restored := newPipeline(t, Deps{Journal: journal}, testOptions())
	require.NoError(t, restored.Restore("", dir))
	assert.Equal(t, 1, restored.Book().Len())
	assert.Equal(t, uint32(100), restored.BestBid())
	assert.Equal(t, orderbook.NoAsk, restored.BestAsk())

	restored.HandleMessage(md(wire.TypeSell, 3, 107, 5))
	require.Equal(t, 1, restored.ProcessMessages(context.Background()))
	require.NoError(t, journal.Close())

	journal = openJournal(t, dir)
	defer journal.Close()
	again := newPipeline(t, Deps{Journal: journal}, testOptions())
	require.NoError(t, again.Restore("", dir))
	assert.Equal(t, 2, again.Book().Len())
	assert.Equal(t, uint32(107), again.BestAsk())
}

func TestTakeSnapshotWithoutWriter(t *testing.T) {
	p := newPipeline(t, Deps{}, testOptions())
	require.ErrorIs(t, p.TakeSnapshot(), ErrNoSnapshotWriter)
}

func TestStrategyOrdersRecordedInOutbox(t *testing.T) {
	outbox, err := exitwal.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { outbox.Close() })

	opts := testOptions()
	opts.SubmitMode = SubmitTransmit
	p := newPipeline(t, Deps{Port: &capturePort{}, Outbox: outbox}, opts)

	p.HandleMessage(md(wire.TypeBuy, 10, 100, 5))
	p.HandleMessage(md(wire.TypeSell, 11, 102, 5))
	p.ProcessMessages(context.Background())
	require.True(t, p.ExecuteTradingStrategy())

	var got []orderbook.Order
	require.NoError(t, outbox.ScanByState(exitwal.StateNew, func(id uint64, rec exitwal.Record) error {
		o, err := wire.ParseOrder(rec.Payload)
		require.NoError(t, err)
		assert.Equal(t, id, o.ID)
		got = append(got, o)
		return nil
	}))
	require.Len(t, got, 2)
	assert.Equal(t, uint32(100), got[0].Price)
	assert.Equal(t, uint32(102), got[1].Price)
}

func TestPrintStats(t *testing.T) {
	p := newPipeline(t, Deps{}, testOptions())

	var buf bytes.Buffer
	p.PrintStats(&buf)
	assert.Contains(t, buf.String(), "p99 process lat:  n/a")
	assert.Contains(t, buf.String(), "top of book:      - / -")

	p.HandleMessage(md(wire.TypeBuy, 1, 150, 20))
	p.ProcessMessages(context.Background())

	buf.Reset()
	p.PrintStats(&buf)
	out := buf.String()
	assert.Contains(t, out, "processed:        1\n")
	assert.Contains(t, out, "(1 samples)")
	assert.Contains(t, out, "top of book:      150 / -")
}

func TestNewRejectsQueueCapacity(t *testing.T) {
	opts := testOptions()
	opts.QueueCapacity = 1000
	_, err := New(Deps{Port: nic.NewLoopback(1)}, opts)
	require.ErrorIs(t, err, ErrQueueCapacity)
}
