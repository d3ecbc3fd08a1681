package broadcaster

import (
	"context"
	"strconv"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"tickloop/infra/metrics"
	exitwal "tickloop/infra/wal/exit"
)

// DefaultMaxRetries bounds how often a FAILED order is offered again.
const DefaultMaxRetries = 5

// Broadcaster publishes the orders the strategy emitted, read from the
// outbox, to a Kafka topic. Delivery is at least once: an order is
// marked SENT before the produce call and ACKED only after the broker
// confirms it.
type Broadcaster struct {
	outbox     *exitwal.Outbox
	producer   sarama.SyncProducer
	topic      string
	interval   time.Duration
	maxRetries uint32
	metrics    *metrics.Metrics
	log        *zap.Logger
}

type Config struct {
	Topic      string
	Interval   time.Duration
	MaxRetries uint32
}

// ------------------------------------------------
// CONSTRUCTOR
// ------------------------------------------------

// NewSyncProducer dials brokers with the settings the broadcaster
// relies on: every replica acks and successes are returned.
func NewSyncProducer(brokers []string) (sarama.SyncProducer, error) {
	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 5

	return sarama.NewSyncProducer(brokers, cfg)
}

func New(
	outbox *exitwal.Outbox,
	producer sarama.SyncProducer,
	cfg Config,
	m *metrics.Metrics,
	log *zap.Logger,
) *Broadcaster {
	if cfg.Interval <= 0 {
		cfg.Interval = 250 * time.Millisecond
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if m == nil {
		m = metrics.New()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Broadcaster{
		outbox:     outbox,
		producer:   producer,
		topic:      cfg.Topic,
		interval:   cfg.Interval,
		maxRetries: cfg.MaxRetries,
		metrics:    m,
		log:        log.With(zap.String("component", "broadcaster")),
	}
}

// ------------------------------------------------
// RUN LOOP
// ------------------------------------------------

// Run publishes pending orders every interval until ctx is done. A
// final pass runs on the way out so nothing emitted before shutdown
// waits for the next start.
func (b *Broadcaster) Run(ctx context.Context) error {
	b.log.Info("broadcaster started", zap.String("topic", b.topic), zap.Duration("interval", b.interval))

	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			b.PublishOnce()
			b.log.Info("broadcaster stopped")
			return nil
		case <-ticker.C:
			b.PublishOnce()
		}
	}
}

// ------------------------------------------------
// PUBLISH LOGIC
// ------------------------------------------------

// PublishOnce offers every NEW order, every SENT order left over from a
// crash mid-publish and every FAILED order still under the retry bound,
// then purges acknowledged ones. Pending orders are
// collected before any is published, so an order failing in this pass
// waits for the next one. It returns how many orders were acknowledged.
func (b *Broadcaster) PublishOnce() int {
	type pending struct {
		id  uint64
		rec exitwal.Record
	}
	var batch []pending
	collect := func(id uint64, rec exitwal.Record) error {
		if rec.State == exitwal.StateFailed && rec.Retries >= b.maxRetries {
			return nil
		}
		batch = append(batch, pending{id: id, rec: rec})
		return nil
	}
	for _, state := range []exitwal.State{exitwal.StateNew, exitwal.StateSent, exitwal.StateFailed} {
		if err := b.outbox.ScanByState(state, collect); err != nil {
			b.log.Warn("outbox scan failed", zap.Stringer("state", state), zap.Error(err))
		}
	}

	acked := 0
	for _, p := range batch {
		if b.publish(p.id, p.rec) {
			acked++
		}
	}

	if acked > 0 {
		if n, err := b.outbox.PurgeAcked(); err != nil {
			b.log.Warn("outbox purge failed", zap.Error(err))
		} else {
			b.log.Debug("outbox purged", zap.Int("count", n))
		}
	}
	return acked
}

func (b *Broadcaster) publish(id uint64, rec exitwal.Record) bool {
	// 1. Mark SENT (idempotent)
	if err := b.outbox.UpdateState(id, exitwal.StateSent, rec.Retries); err != nil {
		b.log.Warn("outbox update failed", zap.Uint64("order_id", id), zap.Error(err))
		return false
	}

	// 2. Publish to Kafka
	msg := &sarama.ProducerMessage{
		Topic: b.topic,
		Key:   sarama.StringEncoder(strconv.FormatUint(id, 10)),
		Value: sarama.ByteEncoder(rec.Payload),
	}
	partition, offset, err := b.producer.SendMessage(msg)
	if err != nil {
		b.metrics.OutboxFailures.Inc()
		b.log.Warn("publish failed",
			zap.Uint64("order_id", id),
			zap.Uint32("retries", rec.Retries+1),
			zap.Error(err),
		)
		if err := b.outbox.UpdateState(id, exitwal.StateFailed, rec.Retries+1); err != nil {
			b.log.Warn("outbox update failed", zap.Uint64("order_id", id), zap.Error(err))
		}
		return false
	}

	// 3. Mark ACKED
	b.metrics.OutboxPublished.Inc()
	if err := b.outbox.UpdateState(id, exitwal.StateAcked, rec.Retries); err != nil {
		b.log.Warn("outbox update failed", zap.Uint64("order_id", id), zap.Error(err))
		return false
	}
	b.log.Debug("order published",
		zap.Uint64("order_id", id),
		zap.Int32("partition", partition),
		zap.Int64("offset", offset),
	)
	return true
}

// ------------------------------------------------
// SHUTDOWN
// ------------------------------------------------

func (b *Broadcaster) Close() error {
	return b.producer.Close()
}
