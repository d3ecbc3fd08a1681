package service

import (
	"time"

	"go.uber.org/zap"

	"tickloop/domain/orderbook"
	"tickloop/wire"
)

// SubmitOrder encodes o, frames it for the configured destination and
// sends it after SubmitDelay. In SubmitLoopback mode the frame comes
// back through ingestion. Safe from any goroutine.
func (p *Pipeline) SubmitOrder(o orderbook.Order) error {
	frame := p.stack.Build(p.opts.DestIP, p.opts.DestPort, wire.EncodeOrder(o))

	if p.opts.SubmitDelay > 0 {
		time.Sleep(p.opts.SubmitDelay)
	}

	if p.tx.SendBurst([][]byte{frame}) != 1 {
		p.m.SubmitFailures.Inc()
		return ErrSubmitRejected
	}
	p.submitted.Add(1)
	p.m.OrdersSubmitted.Inc()

	p.log.Debug("order submitted",
		zap.Uint64("order_id", o.ID),
		zap.Uint32("price", o.Price),
		zap.Uint32("qty", o.Quantity),
		zap.Stringer("side", o.Side),
		zap.Stringer("mode", p.opts.SubmitMode),
	)
	return nil
}
