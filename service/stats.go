package service

import (
	"fmt"
	"io"
	"time"

	"tickloop/domain/orderbook"
)

type Stats struct {
	Processed  uint64
	Elapsed    time.Duration
	Throughput float64 // messages per second

	Messages          uint64
	MeanIngestLatency time.Duration
	MaxProcessLatency time.Duration
	P99ProcessLatency time.Duration
	Samples           int

	Drops     uint64
	Malformed uint64
	Submitted uint64
	Signals   uint64

	BestBid     uint32
	BestAsk     uint32
	Connections int
	QueueDepth  int
}

// Stats is eventually consistent: counters are read one at a time
// while the loops keep running.
func (p *Pipeline) Stats() Stats {
	s := Stats{
		Processed:   p.processed.Load(),
		Elapsed:     time.Since(p.started),
		Messages:    p.messageCount.Load(),
		Drops:       p.drops.Load(),
		Malformed:   p.malformed.Load(),
		Submitted:   p.submitted.Load(),
		Signals:     p.signals.Load(),
		BestBid:     p.bestBid.Load(),
		BestAsk:     p.bestAsk.Load(),
		Connections: p.stack.Len(),
		QueueDepth:  p.queue.Len(),
	}
	if secs := s.Elapsed.Seconds(); secs > 0 {
		s.Throughput = float64(s.Processed) / secs
	}
	if s.Messages > 0 {
		s.MeanIngestLatency = time.Duration(p.ingestLatencyTotal.Load() / s.Messages)
	}
	maxNs, p99Ns, n := p.window.Summary()
	s.MaxProcessLatency = time.Duration(maxNs)
	s.P99ProcessLatency = time.Duration(p99Ns)
	s.Samples = n
	return s
}

// PrintStats writes a human readable summary of Stats to w.
func (p *Pipeline) PrintStats(w io.Writer) {
	s := p.Stats()

	fmt.Fprintln(w, "---- pipeline stats ----")
	fmt.Fprintf(w, "processed:        %d\n", s.Processed)
	fmt.Fprintf(w, "elapsed:          %s\n", s.Elapsed.Round(time.Millisecond))
	fmt.Fprintf(w, "throughput:       %.0f msg/s\n", s.Throughput)
	fmt.Fprintf(w, "ingested:         %d (dropped %d, malformed %d)\n", s.Messages, s.Drops, s.Malformed)
	if s.Messages > 0 {
		fmt.Fprintf(w, "mean ingest lat:  %s\n", s.MeanIngestLatency)
	} else {
		fmt.Fprintln(w, "mean ingest lat:  n/a")
	}
	if s.Samples > 0 {
		fmt.Fprintf(w, "max process lat:  %s\n", s.MaxProcessLatency)
		fmt.Fprintf(w, "p99 process lat:  %s (%d samples)\n", s.P99ProcessLatency, s.Samples)
	} else {
		fmt.Fprintln(w, "max process lat:  n/a")
		fmt.Fprintln(w, "p99 process lat:  n/a")
	}
	fmt.Fprintf(w, "orders submitted: %d (signals %d)\n", s.Submitted, s.Signals)
	fmt.Fprintf(w, "top of book:      %s / %s\n", priceString(s.BestBid, orderbook.NoBid), priceString(s.BestAsk, orderbook.NoAsk))
	fmt.Fprintf(w, "connections:      %d, queue depth %d\n", s.Connections, s.QueueDepth)
}

func priceString(p, none uint32) string {
	if p == none {
		return "-"
	}
	return fmt.Sprint(p)
}
