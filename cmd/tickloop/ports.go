package main

import (
	"go.uber.org/zap"

	"tickloop/infra/config"
	"tickloop/infra/kafka"
	"tickloop/infra/nic"
)

func openPort(cfg config.PortConfig, log *zap.Logger) (nic.Port, error) {
	switch cfg.Driver {
	case config.DriverShm:
		port, err := nic.OpenSharedRingPort(nic.SharedRingConfig{
			RxPath:   cfg.RxPath,
			TxPath:   cfg.TxPath,
			Slots:    cfg.Slots,
			SlotSize: cfg.SlotSize,
		})
		if err != nil {
			return nil, err
		}
		return port, nil
	case config.DriverKafka:
		src := kafka.NewConsumer(kafka.ConsumerConfig{
			Brokers: cfg.Brokers,
			Topic:   cfg.RxTopic,
			GroupID: cfg.GroupID,
		})
		sink := kafka.NewProducer(kafka.ProducerConfig{
			Brokers: cfg.Brokers,
			Topic:   cfg.TxTopic,
		})
		return nic.NewKafkaPort(src, sink, cfg.Depth, log), nil
	default:
		return nic.NewLoopback(cfg.Depth), nil
	}
}
