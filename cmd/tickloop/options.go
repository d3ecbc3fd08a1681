package main

import (
	"tickloop/infra/config"
	"tickloop/service"
)

func optionsFrom(cfg *config.Config) (service.Options, error) {
	destIP, err := cfg.Pipeline.DestIPv4()
	if err != nil {
		return service.Options{}, err
	}

	mode := service.SubmitLoopback
	if cfg.Pipeline.SubmitMode == config.SubmitTransmit {
		mode = service.SubmitTransmit
	}

	return service.Options{
		QueueCapacity:    cfg.Pipeline.QueueCapacity,
		BurstSize:        cfg.Port.BurstSize,
		Symbol:           cfg.Pipeline.Symbol,
		SubmitMode:       mode,
		SubmitDelay:      cfg.Pipeline.SubmitDelay,
		DestIP:           destIP,
		DestPort:         cfg.Pipeline.DestPort,
		StrategyEnabled:  cfg.Pipeline.StrategyEnabled,
		MaxSpread:        cfg.Pipeline.MaxSpread,
		StrategyQty:      cfg.Pipeline.StrategyQty,
		LatencyWindow:    cfg.Pipeline.LatencyWindow,
		IdleTimeout:      cfg.Pipeline.IdleTimeout,
		EvictInterval:    cfg.Pipeline.EvictInterval,
		SnapshotInterval: cfg.Journal.SnapshotInterval,
	}, nil
}
