package nic

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"tickloop/infra/memory"
)

// Receive failures back off from minReceiveBackoff, doubling up to
// maxReceiveBackoff until a frame arrives again.
const (
	minReceiveBackoff = 10 * time.Millisecond
	maxReceiveBackoff = time.Second
)

// FrameSource yields one frame per call, blocking until one arrives.
type FrameSource interface {
	Receive(ctx context.Context) ([]byte, error)
	Close() error
}

// FrameSink ships a batch of frames.
type FrameSink interface {
	SendBatch(ctx context.Context, frames [][]byte) error
	Close() error
}

// KafkaPort carries frames as Kafka message values. A background
// goroutine pulls from the source into a bounded buffer so that
// ReceiveBurst never blocks.
type KafkaPort struct {
	src  FrameSource
	sink FrameSink
	log  *zap.Logger

	inbound chan Frame
	pool    *memory.Pool[[]byte]
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	dropped atomic.Uint64
}

// NewKafkaPort starts pumping src. depth bounds the frames buffered
// between the pump and ReceiveBurst; overflow is dropped.
func NewKafkaPort(src FrameSource, sink FrameSink, depth int, log *zap.Logger) *KafkaPort {
	ctx, cancel := context.WithCancel(context.Background())
	p := &KafkaPort{
		src:     src,
		sink:    sink,
		log:     log.With(zap.String("component", "nic.kafka")),
		inbound: make(chan Frame, depth),
		pool:    memory.NewBufferPool(DefaultFrameSize),
		ctx:     ctx,
		cancel:  cancel,
	}
	p.wg.Add(1)
	go p.pump()
	return p
}

func (p *KafkaPort) pump() {
	defer p.wg.Done()
	backoff := minReceiveBackoff
	for {
		data, err := p.src.Receive(p.ctx)
		if err != nil {
			if p.ctx.Err() != nil {
				return
			}
			p.log.Warn("receive failed", zap.Duration("backoff", backoff), zap.Error(err))
			select {
			case <-p.ctx.Done():
				return
			case <-time.After(backoff):
			}
			backoff = min(2*backoff, maxReceiveBackoff)
			continue
		}
		backoff = minReceiveBackoff
		f := pooledFrame(p.pool, data)
		select {
		case p.inbound <- f:
		default:
			f.Release()
			p.dropped.Add(1)
		}
	}
}

func (p *KafkaPort) ReceiveBurst(frames []Frame) int {
	for i := range frames {
		select {
		case f := <-p.inbound:
			frames[i] = f
		default:
			return i
		}
	}
	return len(frames)
}

func (p *KafkaPort) SendBurst(frames [][]byte) int {
	if len(frames) == 0 || p.ctx.Err() != nil {
		return 0
	}
	if err := p.sink.SendBatch(p.ctx, frames); err != nil {
		p.log.Warn("send failed", zap.Int("frames", len(frames)), zap.Error(err))
		return 0
	}
	return len(frames)
}

// Dropped counts inbound frames discarded because the buffer was full.
func (p *KafkaPort) Dropped() uint64 {
	return p.dropped.Load()
}

func (p *KafkaPort) Close() error {
	p.cancel()
	err := errors.Join(p.src.Close(), p.sink.Close())
	p.wg.Wait()
	return err
}
