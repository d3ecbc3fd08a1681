package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "tickloop"

// Metrics owns its registry so several pipelines (tests) never clash
// on the global one.
type Metrics struct {
	registry *prometheus.Registry

	FramesReceived  prometheus.Counter
	FramesMalformed prometheus.Counter
	MessagesQueued  prometheus.Counter
	QueueDrops      prometheus.Counter
	Processed       prometheus.Counter
	JournalErrors   prometheus.Counter
	StrategySignals prometheus.Counter
	OrdersSubmitted prometheus.Counter
	SubmitFailures  prometheus.Counter
	OutboxPublished prometheus.Counter
	OutboxFailures  prometheus.Counter
	Evicted         prometheus.Counter

	IngestLatency  prometheus.Histogram
	ProcessLatency prometheus.Histogram

	QueueDepth  prometheus.Gauge
	Connections prometheus.Gauge
	BestBid     prometheus.Gauge
	BestAsk     prometheus.Gauge
}

func counter(name, help string) prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: name, Help: help})
}

func gauge(name, help string) prometheus.Gauge {
	return prometheus.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: name, Help: help})
}

// nanosecond buckets from 100ns to ~3.3ms
func latency(name, help string) prometheus.Histogram {
	return prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      name,
		Help:      help,
		Buckets:   prometheus.ExponentialBuckets(100, 2, 16),
	})
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		FramesReceived:  counter("frames_received_total", "Frames pulled from the port."),
		FramesMalformed: counter("malformed_frames_total", "Frames or payloads dropped as malformed."),
		MessagesQueued:  counter("messages_queued_total", "Market-data messages pushed onto the queue."),
		QueueDrops:      counter("queue_drops_total", "Messages dropped because the queue was full."),
		Processed:       counter("messages_processed_total", "Messages applied to the order book."),
		JournalErrors:   counter("journal_errors_total", "Failed journal appends."),
		StrategySignals: counter("strategy_signals_total", "Times the spread strategy fired."),
		OrdersSubmitted: counter("orders_submitted_total", "Orders handed to the port."),
		SubmitFailures:  counter("submit_failures_total", "Orders the port did not accept."),
		OutboxPublished: counter("outbox_published_total", "Outbox records published to Kafka."),
		OutboxFailures:  counter("outbox_failures_total", "Outbox publish attempts that failed."),
		Evicted:         counter("connections_evicted_total", "Idle connections evicted."),

		IngestLatency:  latency("ingest_latency_ns", "Message timestamp to enqueue, in nanoseconds."),
		ProcessLatency: latency("process_latency_ns", "Time to apply one message to the book, in nanoseconds."),

		QueueDepth:  gauge("queue_depth", "Messages waiting in the queue."),
		Connections: gauge("connections", "Tracked connections."),
		BestBid:     gauge("best_bid", "Best bid price, 0 when empty."),
		BestAsk:     gauge("best_ask", "Best ask price, 4294967295 when empty."),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.FramesReceived, m.FramesMalformed, m.MessagesQueued, m.QueueDrops,
		m.Processed, m.JournalErrors, m.StrategySignals, m.OrdersSubmitted,
		m.SubmitFailures, m.OutboxPublished, m.OutboxFailures, m.Evicted,
		m.IngestLatency, m.ProcessLatency,
		m.QueueDepth, m.Connections, m.BestBid, m.BestAsk,
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
