package service

import (
	"context"
	"errors"
	"runtime"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// RunIngestion polls the receive ports until ctx is done. It also
// evicts connections idle for longer than IdleTimeout.
func (p *Pipeline) RunIngestion(ctx context.Context) error {
	var evict <-chan time.Time
	if p.opts.IdleTimeout > 0 && p.opts.EvictInterval > 0 {
		t := time.NewTicker(p.opts.EvictInterval)
		defer t.Stop()
		evict = t.C
	}

	done := ctx.Done()
	for {
		select {
		case <-done:
			return nil
		case <-evict:
			if n := p.stack.EvictIdle(p.opts.IdleTimeout); n > 0 {
				p.m.Evicted.Add(float64(n))
				p.log.Debug("idle connections evicted", zap.Int("count", n))
			}
			p.m.Connections.Set(float64(p.stack.Len()))
		default:
		}

		if p.PollOnce() == 0 {
			runtime.Gosched()
		}
	}
}

// RunProcessing drains the queue into the book until ctx is done and
// runs the strategy whenever the top of book moves.
func (p *Pipeline) RunProcessing(ctx context.Context) error {
	var snap <-chan time.Time
	if p.snaps != nil && p.opts.SnapshotInterval > 0 {
		t := time.NewTicker(p.opts.SnapshotInterval)
		defer t.Stop()
		snap = t.C
	}

	done := ctx.Done()
	for {
		select {
		case <-done:
			return nil
		case <-snap:
			if err := p.TakeSnapshot(); err != nil {
				p.log.Warn("snapshot failed", zap.Error(err))
			}
		default:
		}

		if p.step(ctx) == 0 {
			runtime.Gosched()
		}
	}
}

// step is one processing iteration: drain, then quote if the top of
// book moved. Orders the strategy loops back leave the top unchanged,
// so they never retrigger it.
func (p *Pipeline) step(ctx context.Context) int {
	n := p.ProcessMessages(ctx)
	if n > 0 && p.opts.StrategyEnabled && p.topChanged() {
		p.ExecuteTradingStrategy()
	}
	return n
}

// Run starts both loops and blocks until ctx is done or one of them
// fails.
func (p *Pipeline) Run(ctx context.Context) error {
	p.log.Info("pipeline started",
		zap.Int("queue_capacity", p.queue.Cap()),
		zap.Stringer("submit_mode", p.opts.SubmitMode),
		zap.Bool("strategy", p.opts.StrategyEnabled),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return p.RunIngestion(gctx) })
	g.Go(func() error { return p.RunProcessing(gctx) })

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	p.log.Info("pipeline stopped", zap.Uint64("processed", p.processed.Load()))
	return err
}
