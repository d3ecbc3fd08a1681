package service

import (
	"go.uber.org/zap"

	"tickloop/domain/orderbook"
	"tickloop/wire"
)

// ExecuteTradingStrategy quotes a buy at the best bid and a sell at the
// best ask whenever both sides are live, the book is not crossed and
// the spread is within MaxSpread ticks. It reports whether it fired.
// Processing role only.
func (p *Pipeline) ExecuteTradingStrategy() bool {
	bid, ask := p.book.BestBid(), p.book.BestAsk()
	if bid == orderbook.NoBid || ask == orderbook.NoAsk || ask < bid {
		return false
	}
	if ask-bid > p.opts.MaxSpread {
		return false
	}

	p.signals.Add(1)
	p.m.StrategySignals.Inc()

	first := p.orderIDs.NextN(2)
	pair := [2]orderbook.Order{
		{ID: first, Price: bid, Quantity: p.opts.StrategyQty, Side: orderbook.Buy},
		{ID: first + 1, Price: ask, Quantity: p.opts.StrategyQty, Side: orderbook.Sell},
	}
	for _, o := range pair {
		if err := p.SubmitOrder(o); err != nil {
			p.log.Warn("strategy order not submitted",
				zap.Uint64("order_id", o.ID),
				zap.Stringer("side", o.Side),
				zap.Error(err),
			)
			continue
		}
		p.recordEmitted(o)
	}
	return true
}

// recordEmitted stores o in the outbox for the broadcaster to publish.
func (p *Pipeline) recordEmitted(o orderbook.Order) {
	if p.outbox == nil {
		return
	}
	if err := p.outbox.PutNew(o.ID, wire.EncodeOrder(o)); err != nil {
		p.log.Warn("outbox write failed", zap.Uint64("order_id", o.ID), zap.Error(err))
	}
}
