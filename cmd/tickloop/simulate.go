package main

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"

	"tickloop/domain/orderbook"
	"tickloop/service"
)

var errSimulationDone = errors.New("simulation finished")

// simulate submits n random orders through the pipeline, lets them
// settle and then ends the run.
func simulate(ctx context.Context, p *service.Pipeline, n int, settle time.Duration, log *zap.Logger) error {
	log.Info("simulation started", zap.Int("orders", n))

	rejected := 0
	for i := 0; i < n; i++ {
		if ctx.Err() != nil {
			return nil
		}
		side := orderbook.Sell
		if rand.IntN(2) == 0 {
			side = orderbook.Buy
		}
		o := orderbook.Order{
			ID:       p.NextOrderID(),
			Price:    1000 + rand.Uint32N(1001),
			Quantity: 1 + rand.Uint32N(1000),
			Side:     side,
		}
		if err := p.SubmitOrder(o); err != nil {
			rejected++
		}
	}
	log.Info("simulation submitted", zap.Int("orders", n), zap.Int("rejected", rejected))

	select {
	case <-ctx.Done():
		return nil
	case <-time.After(settle):
	}
	return errSimulationDone
}
